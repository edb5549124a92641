package registry

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"homedash/internal/config"
	"homedash/internal/ha"
	"homedash/internal/observable"
	"homedash/internal/storage"
)

type fakeSession struct {
	backend      config.Backend
	connectErr   error
	connectCalls atomic.Int32
	disconnects  atomic.Int32
	connected    atomic.Bool
	status       *observable.Store[ha.ConnectionStatus]
	entities     *observable.Store[[]ha.State]
}

func newFakeSession(backend config.Backend) *fakeSession {
	return &fakeSession{
		backend:  backend,
		status:   observable.New(ha.ConnectionStatus{BackendID: backend.ID}),
		entities: observable.New[[]ha.State](nil),
	}
}

func (f *fakeSession) Connect(ctx context.Context) error {
	f.connectCalls.Add(1)
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected.Store(true)
	return nil
}

func (f *fakeSession) Disconnect() {
	f.disconnects.Add(1)
	f.connected.Store(false)
}

func (f *fakeSession) Connected() bool            { return f.connected.Load() }
func (f *fakeSession) Backend() config.Backend    { return f.backend }
func (f *fakeSession) Status() *observable.Store[ha.ConnectionStatus] {
	return f.status
}
func (f *fakeSession) Entities() *observable.Store[[]ha.State] { return f.entities }

func (f *fakeSession) CallService(ctx context.Context, domain, service string, data map[string]any) (json.RawMessage, error) {
	return nil, nil
}

func (f *fakeSession) FetchRegistry(ctx context.Context) (*ha.RegistryTables, error) {
	return &ha.RegistryTables{}, nil
}

func testRegistry(t *testing.T) (*Registry, map[string]*fakeSession) {
	t.Helper()
	created := make(map[string]*fakeSession)
	r := New(nil, zap.NewNop())
	r.newSession = func(backend config.Backend, _ *zap.Logger) (Session, error) {
		session := newFakeSession(backend)
		created[backend.ID] = session
		return session, nil
	}
	return r, created
}

func enabledBackend(id string) config.Backend {
	return config.Backend{ID: id, Name: id, URL: "http://homeassistant.local:8123", Token: "t", Enabled: true}
}

func waitForStatus(t *testing.T, r *Registry, id, state string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return r.Statuses().Get()[id].State == state
	}, 2*time.Second, 5*time.Millisecond, "expected backend %s to reach status %s", id, state)
}

func TestRegistry_SelectConstructsAndConnects(t *testing.T) {
	r, created := testRegistry(t)
	require.NoError(t, r.Add(enabledBackend("b1")))

	session, err := r.Select("b1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "b1", r.ActiveID())

	waitForStatus(t, r, "b1", StatusOK)
	assert.Equal(t, int32(1), created["b1"].connectCalls.Load())
}

func TestRegistry_SelectReusesLiveSession(t *testing.T) {
	r, created := testRegistry(t)
	require.NoError(t, r.Add(enabledBackend("b1")))

	first, err := r.Select("b1")
	require.NoError(t, err)
	waitForStatus(t, r, "b1", StatusOK)

	second, err := r.Select("b1")
	require.NoError(t, err)
	assert.Same(t, first, second, "reselecting a live backend must reuse its session")
	assert.Equal(t, int32(1), created["b1"].connectCalls.Load())
}

func TestRegistry_FailedConnectReleasesSession(t *testing.T) {
	r := New(nil, zap.NewNop())
	attempts := 0
	r.newSession = func(backend config.Backend, _ *zap.Logger) (Session, error) {
		attempts++
		session := newFakeSession(backend)
		if attempts == 1 {
			session.connectErr = errors.New("dial refused")
		}
		return session, nil
	}
	require.NoError(t, r.Add(enabledBackend("b1")))

	_, err := r.Select("b1")
	require.NoError(t, err)
	waitForStatus(t, r, "b1", StatusError)
	assert.Equal(t, "dial refused", r.Statuses().Get()["b1"].Message)
	assert.Nil(t, r.Active(), "failed session must be released")

	// Reselecting retries with a fresh session instead of the dead one.
	_, err = r.Select("b1")
	require.NoError(t, err)
	waitForStatus(t, r, "b1", StatusOK)
	assert.Equal(t, 2, attempts)
}

func TestRegistry_SelectUnknownOrDisabled(t *testing.T) {
	r, _ := testRegistry(t)

	_, err := r.Select("nope")
	assert.Error(t, err)

	disabled := enabledBackend("b2")
	disabled.Enabled = false
	require.NoError(t, r.Add(disabled))

	_, err = r.Select("b2")
	assert.Error(t, err)
}

func TestRegistry_AddRejectsDuplicatesAndInvalid(t *testing.T) {
	r, _ := testRegistry(t)
	backend := enabledBackend("b1")

	require.NoError(t, r.Add(backend))
	assert.Error(t, r.Add(backend))

	var cfgErr *config.ConfigError
	err := r.Add(config.Backend{ID: "bad", URL: "ftp://nope"})
	assert.ErrorAs(t, err, &cfgErr)
}

func TestRegistry_RemoveDisconnectsAndClearsActive(t *testing.T) {
	r, created := testRegistry(t)
	require.NoError(t, r.Add(enabledBackend("b1")))

	_, err := r.Select("b1")
	require.NoError(t, err)
	waitForStatus(t, r, "b1", StatusOK)

	r.Remove("b1")

	assert.Equal(t, int32(1), created["b1"].disconnects.Load())
	assert.Empty(t, r.ActiveID())
	assert.Nil(t, r.Active())
	assert.Empty(t, r.Backends())
	_, ok := r.Statuses().Get()["b1"]
	assert.False(t, ok, "status entry must be dropped")
}

func TestRegistry_RemoveUnknownIsHarmless(t *testing.T) {
	r, _ := testRegistry(t)
	r.Remove("ghost")
}

func TestRegistry_PersistsThroughVault(t *testing.T) {
	store := storage.NewMemoryStore()
	vault, err := config.NewVault(store, "passphrase", zap.NewNop())
	require.NoError(t, err)

	r := New(vault, zap.NewNop())
	require.NoError(t, r.Add(enabledBackend("b1")))
	require.NoError(t, r.Add(enabledBackend("b2")))
	r.Remove("b1")

	reloaded := New(vault, zap.NewNop())
	backends := reloaded.Backends()
	require.Len(t, backends, 1)
	assert.Equal(t, "b2", backends[0].ID)
}

func TestRegistry_Shutdown(t *testing.T) {
	r, created := testRegistry(t)
	require.NoError(t, r.Add(enabledBackend("b1")))
	require.NoError(t, r.Add(enabledBackend("b2")))

	_, err := r.Select("b1")
	require.NoError(t, err)
	waitForStatus(t, r, "b1", StatusOK)
	_, err = r.Select("b2")
	require.NoError(t, err)
	waitForStatus(t, r, "b2", StatusOK)

	r.Shutdown()

	assert.Equal(t, int32(1), created["b1"].disconnects.Load())
	assert.Equal(t, int32(1), created["b2"].disconnects.Load())
	assert.Nil(t, r.Active())
}
