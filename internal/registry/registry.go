package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"homedash/internal/config"
	"homedash/internal/ha"
	"homedash/internal/observable"
)

// Session is the slice of a connection session the registry and its
// consumers drive. *ha.Session satisfies it; tests substitute fakes.
type Session interface {
	Connect(ctx context.Context) error
	Disconnect()
	Connected() bool
	Backend() config.Backend
	Status() *observable.Store[ha.ConnectionStatus]
	Entities() *observable.Store[[]ha.State]
	CallService(ctx context.Context, domain, service string, data map[string]any) (json.RawMessage, error)
	FetchRegistry(ctx context.Context) (*ha.RegistryTables, error)
}

// Status is one backend's connection progress as tracked by the registry.
type Status struct {
	State   string `json:"state"` // pending, ok, error
	Message string `json:"message,omitempty"`
}

const (
	StatusPending = "pending"
	StatusOK      = "ok"
	StatusError   = "error"
)

// Registry holds the configured backends and owns at most one live
// session per backend id. Sessions are created lazily when a backend is
// selected and released when their connection attempt fails, so a later
// selection retries with a fresh object instead of reusing a dead one.
type Registry struct {
	logger *zap.Logger
	vault  *config.Vault

	// newSession is swapped out by tests.
	newSession func(config.Backend, *zap.Logger) (Session, error)

	mu       sync.Mutex
	configs  []config.Backend
	sessions map[string]Session
	activeID string

	statuses *observable.Store[map[string]Status]
}

// New builds a registry. A nil vault disables persistence; otherwise the
// stored backend list is loaded immediately.
func New(vault *config.Vault, logger *zap.Logger) *Registry {
	r := &Registry{
		logger: logger,
		vault:  vault,
		newSession: func(backend config.Backend, logger *zap.Logger) (Session, error) {
			return ha.NewSession(backend, logger)
		},
		sessions: make(map[string]Session),
		statuses: observable.New(map[string]Status{}),
	}
	if vault != nil {
		r.configs = vault.Load()
	}
	return r
}

// Backends returns a copy of the configured backend list.
func (r *Registry) Backends() []config.Backend {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]config.Backend(nil), r.configs...)
}

// Statuses returns the observable per-backend status map.
func (r *Registry) Statuses() *observable.Store[map[string]Status] {
	return r.statuses
}

// Add validates and appends a backend config, persisting the new list.
func (r *Registry) Add(backend config.Backend) error {
	if err := backend.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	for _, existing := range r.configs {
		if existing.ID == backend.ID {
			r.mu.Unlock()
			return fmt.Errorf("backend %s already configured", backend.ID)
		}
	}
	r.configs = append(r.configs, backend)
	r.mu.Unlock()

	r.persist()
	r.logger.Info("Backend added",
		zap.String("backend_id", backend.ID),
		zap.String("name", backend.Name))
	return nil
}

// Remove disconnects and discards the backend's session if it owns one,
// then drops its config and status entry. Removing the active backend
// clears the active selection.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	if session, ok := r.sessions[id]; ok {
		delete(r.sessions, id)
		defer session.Disconnect()
	}
	if r.activeID == id {
		r.activeID = ""
	}
	for i, existing := range r.configs {
		if existing.ID == id {
			r.configs = append(r.configs[:i], r.configs[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	r.statuses.Update(func(cur map[string]Status) map[string]Status {
		next := copyStatuses(cur)
		delete(next, id)
		return next
	})
	r.persist()
	r.logger.Info("Backend removed", zap.String("backend_id", id))
}

// Select makes the backend active and returns its session, constructing
// and connecting one asynchronously if none is live. An existing live
// session is returned unchanged.
func (r *Registry) Select(id string) (Session, error) {
	r.mu.Lock()

	var backend *config.Backend
	for i := range r.configs {
		if r.configs[i].ID == id {
			backend = &r.configs[i]
			break
		}
	}
	if backend == nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("unknown backend %s", id)
	}
	if !backend.Enabled {
		r.mu.Unlock()
		return nil, fmt.Errorf("backend %s is disabled", id)
	}

	r.activeID = id
	if session, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		return session, nil
	}

	session, err := r.newSession(*backend, r.logger)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.sessions[id] = session
	r.mu.Unlock()

	r.setStatus(id, StatusPending, "")
	go r.connect(id, session)

	return session, nil
}

// connect runs the asynchronous connection attempt begun by Select. A
// failure releases the owned session so reselection starts clean.
func (r *Registry) connect(id string, session Session) {
	if err := session.Connect(context.Background()); err != nil {
		r.logger.Error("Backend connection failed",
			zap.String("backend_id", id),
			zap.Error(err))

		r.mu.Lock()
		if r.sessions[id] == session {
			delete(r.sessions, id)
		}
		r.mu.Unlock()

		r.setStatus(id, StatusError, err.Error())
		return
	}
	r.setStatus(id, StatusOK, "")
}

// Active returns the session of the active backend, or nil when no
// backend is selected or the selection has no live session.
func (r *Registry) Active() Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeID == "" {
		return nil
	}
	return r.sessions[r.activeID]
}

// ActiveID returns the id of the active backend, empty when none.
func (r *Registry) ActiveID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeID
}

// Shutdown disconnects every owned session.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := make([]Session, 0, len(r.sessions))
	for id, session := range r.sessions {
		sessions = append(sessions, session)
		delete(r.sessions, id)
	}
	r.activeID = ""
	r.mu.Unlock()

	for _, session := range sessions {
		session.Disconnect()
	}
}

func (r *Registry) setStatus(id, state, message string) {
	r.statuses.Update(func(cur map[string]Status) map[string]Status {
		next := copyStatuses(cur)
		next[id] = Status{State: state, Message: message}
		return next
	})
}

func (r *Registry) persist() {
	if r.vault == nil {
		return
	}
	r.mu.Lock()
	configs := append([]config.Backend(nil), r.configs...)
	r.mu.Unlock()

	if err := r.vault.Save(configs); err != nil {
		r.logger.Error("Failed to persist backends", zap.Error(err))
	}
}

func copyStatuses(cur map[string]Status) map[string]Status {
	next := make(map[string]Status, len(cur))
	for k, v := range cur {
		next[k] = v
	}
	return next
}
