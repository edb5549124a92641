package ha

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"homedash/internal/config"
	"homedash/internal/observable"
)

// handshakeTimeout bounds how long a connection attempt may take to reach
// the authenticated state before the channel is force-closed.
const handshakeTimeout = 10 * time.Second

type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
	stateFailed
)

// Session owns exactly one websocket channel to one backend. It drives
// the authentication handshake, correlates request/response frames by id,
// mirrors entity state into an order-preserving cache, and publishes
// connection status and full entity snapshots as observables.
type Session struct {
	backend config.Backend
	logger  *zap.Logger
	timeout time.Duration

	connMu    sync.Mutex
	conn      *websocket.Conn
	state     connState
	handshake chan error

	msgID   int
	msgIDMu sync.Mutex

	pending    map[int]chan Message
	snapshotID int
	pendingMu  sync.Mutex

	writeMu sync.Mutex

	cacheMu sync.Mutex
	cache   []State
	index   map[string]int

	status   *observable.Store[ConnectionStatus]
	entities *observable.Store[[]State]
}

// NewSession validates the backend config and builds a disconnected
// session for it. Validation failure is the only synchronous error.
func NewSession(backend config.Backend, logger *zap.Logger) (*Session, error) {
	if err := backend.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		backend:  backend,
		logger:   logger,
		timeout:  handshakeTimeout,
		pending:  make(map[int]chan Message),
		index:    make(map[string]int),
		status:   observable.New(ConnectionStatus{BackendID: backend.ID}),
		entities: observable.New[[]State](nil),
	}, nil
}

// Backend returns the config this session was built from.
func (s *Session) Backend() config.Backend {
	return s.backend
}

// Status returns the observable connection status.
func (s *Session) Status() *observable.Store[ConnectionStatus] {
	return s.status
}

// Entities returns the observable entity cache. Every change publishes a
// full snapshot, not a delta.
func (s *Session) Entities() *observable.Store[[]State] {
	return s.entities
}

// Connected reports whether the session is authenticated and live.
func (s *Session) Connected() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.state == stateConnected
}

// Connect opens the channel and waits for the handshake to complete. It
// resolves once authenticated and subscribed, and fails with
// ErrAuthFailed, ErrHandshakeTimeout, or a transport error. Calling it
// while already connected is a no-op.
func (s *Session) Connect(ctx context.Context) error {
	s.connMu.Lock()
	switch s.state {
	case stateConnected:
		s.connMu.Unlock()
		return nil
	case stateConnecting:
		s.connMu.Unlock()
		return ErrConnectInProgress
	}
	s.connMu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.backend.WebsocketURL(), nil)
	if err != nil {
		s.setStatus(false, fmt.Sprintf("connection failed: %v", err))
		return fmt.Errorf("failed to open channel: %w", err)
	}

	handshake := make(chan error, 1)
	s.connMu.Lock()
	s.conn = conn
	s.state = stateConnecting
	s.handshake = handshake
	s.connMu.Unlock()

	go s.readLoop(conn)

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case err := <-handshake:
		return err
	case <-timer.C:
		s.abortHandshake("handshake timed out")
		return ErrHandshakeTimeout
	case <-ctx.Done():
		s.abortHandshake("connection attempt cancelled")
		return ctx.Err()
	}
}

// Disconnect closes the channel and discards the correlation table. It is
// idempotent and safe to call from any state.
func (s *Session) Disconnect() {
	s.connMu.Lock()
	if s.state == stateDisconnected && s.conn == nil {
		s.connMu.Unlock()
		return
	}
	s.state = stateDisconnected
	handshake := s.handshake
	s.handshake = nil
	conn := s.conn
	s.conn = nil
	s.connMu.Unlock()

	if conn != nil {
		s.writeMu.Lock()
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		conn.Close()
	}

	s.teardownPending()
	if handshake != nil {
		handshake <- fmt.Errorf("disconnected before handshake completed")
	}
	s.setStatus(false, "")
	s.logger.Info("Disconnected from backend", zap.String("backend_id", s.backend.ID))
}

// CallService sends a correlated call_service request and returns the raw
// remote result. There is no automatic retry; the caller's context bounds
// the wait.
func (s *Session) CallService(ctx context.Context, domain, service string, data map[string]any) (json.RawMessage, error) {
	if !s.Connected() {
		return nil, ErrNotConnected
	}

	id := s.nextMsgID()
	ch := s.register(id)
	defer s.removePending(id)

	req := &callServiceRequest{
		ID:          id,
		Type:        "call_service",
		Domain:      domain,
		Service:     service,
		ServiceData: data,
	}
	if err := s.writeJSON(req); err != nil {
		return nil, fmt.Errorf("failed to send call_service: %w", err)
	}

	return s.awaitResult(ctx, ch)
}

// FetchRegistry pulls the area, device, and entity registry tables used
// for room grouping.
func (s *Session) FetchRegistry(ctx context.Context) (*RegistryTables, error) {
	tables := &RegistryTables{}
	if err := s.fetchList(ctx, "config/area_registry/list", &tables.Areas); err != nil {
		return nil, err
	}
	if err := s.fetchList(ctx, "config/device_registry/list", &tables.Devices); err != nil {
		return nil, err
	}
	if err := s.fetchList(ctx, "config/entity_registry/list", &tables.Entities); err != nil {
		return nil, err
	}
	return tables, nil
}

func (s *Session) fetchList(ctx context.Context, command string, out any) error {
	if !s.Connected() {
		return ErrNotConnected
	}

	id := s.nextMsgID()
	ch := s.register(id)
	defer s.removePending(id)

	if err := s.writeJSON(&commandRequest{ID: id, Type: command}); err != nil {
		return fmt.Errorf("failed to send %s: %w", command, err)
	}

	result, err := s.awaitResult(ctx, ch)
	if err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s result: %w", command, err)
	}
	return nil
}

// awaitResult waits for the correlated reply. A closed reply channel
// means the session tore down the correlation table mid-flight.
func (s *Session) awaitResult(ctx context.Context, ch chan Message) (json.RawMessage, error) {
	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrNotConnected
		}
		if resp.Success != nil && !*resp.Success {
			if resp.Error != nil {
				return nil, fmt.Errorf("backend error: %s - %s", resp.Error.Code, resp.Error.Message)
			}
			return nil, fmt.Errorf("request failed")
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// readLoop processes inbound frames in arrival order and drives the
// handshake state machine.
func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			s.handleTransportClose(err)
			return
		}

		switch msg.Type {
		case "auth_required":
			s.sendAuth()
		case "auth_ok":
			s.handleAuthOK()
		case "auth_invalid":
			s.handleAuthInvalid()
		case "result":
			s.routeResult(&msg)
		case "event":
			s.handleEvent(&msg)
		default:
			// Unknown frame kinds are ignored.
		}
	}
}

func (s *Session) sendAuth() {
	auth := &authMessage{Type: "auth", AccessToken: s.backend.Token}
	if err := s.writeJSON(auth); err != nil {
		s.logger.Error("Failed to send auth", zap.Error(err))
	}
}

func (s *Session) handleAuthOK() {
	s.connMu.Lock()
	if s.state != stateConnecting {
		s.connMu.Unlock()
		return
	}
	s.state = stateConnected
	s.connMu.Unlock()

	s.setStatus(true, "")
	s.logger.Info("Connected to backend",
		zap.String("backend_id", s.backend.ID),
		zap.String("name", s.backend.Name))

	s.subscribeStateChanges()
	s.requestStates()
	s.finishHandshake(nil)
}

func (s *Session) handleAuthInvalid() {
	s.logger.Warn("Authentication rejected by backend",
		zap.String("backend_id", s.backend.ID))

	s.connMu.Lock()
	s.state = stateFailed
	conn := s.conn
	s.conn = nil
	s.connMu.Unlock()

	if conn != nil {
		conn.Close()
	}
	s.teardownPending()
	s.setStatus(false, "authentication failed")
	s.finishHandshake(ErrAuthFailed)
}

func (s *Session) handleTransportClose(err error) {
	s.connMu.Lock()
	if s.state == stateDisconnected || s.state == stateFailed {
		// Already torn down by Disconnect or a failed handshake.
		s.connMu.Unlock()
		return
	}
	wasConnecting := s.state == stateConnecting
	s.state = stateDisconnected
	conn := s.conn
	s.conn = nil
	s.connMu.Unlock()

	if conn != nil {
		conn.Close()
	}
	s.teardownPending()

	s.logger.Warn("Connection lost",
		zap.String("backend_id", s.backend.ID),
		zap.Error(err))
	s.setStatus(false, err.Error())

	if wasConnecting {
		s.finishHandshake(fmt.Errorf("transport error: %w", err))
	}
}

// abortHandshake force-closes the channel after a timeout or cancelled
// connection attempt.
func (s *Session) abortHandshake(reason string) {
	s.connMu.Lock()
	s.handshake = nil
	s.state = stateDisconnected
	conn := s.conn
	s.conn = nil
	s.connMu.Unlock()

	if conn != nil {
		conn.Close()
	}
	s.teardownPending()
	s.setStatus(false, reason)
}

// finishHandshake resolves the pending Connect call exactly once.
func (s *Session) finishHandshake(err error) {
	s.connMu.Lock()
	handshake := s.handshake
	s.handshake = nil
	s.connMu.Unlock()

	if handshake != nil {
		handshake <- err
	}
}

// subscribeStateChanges subscribes to state_changed events. The reply is
// consumed asynchronously because it arrives through the same read loop.
func (s *Session) subscribeStateChanges() {
	id := s.nextMsgID()
	ch := s.register(id)

	req := &subscribeEventsRequest{
		ID:        id,
		Type:      "subscribe_events",
		EventType: "state_changed",
	}
	if err := s.writeJSON(req); err != nil {
		s.removePending(id)
		s.logger.Warn("Failed to subscribe to state changes", zap.Error(err))
		return
	}

	go func() {
		resp, ok := <-ch
		s.removePending(id)
		if !ok {
			return
		}
		if resp.Success != nil && !*resp.Success {
			s.logger.Warn("Subscribe to state changes rejected",
				zap.String("backend_id", s.backend.ID))
		}
	}()
}

// requestStates fetches the initial full entity snapshot. The reply is
// installed inline by the read loop, not on a waiter goroutine, so
// state_changed frames delivered after it can never be overwritten by a
// late-running snapshot install.
func (s *Session) requestStates() {
	id := s.nextMsgID()
	s.pendingMu.Lock()
	s.snapshotID = id
	s.pendingMu.Unlock()

	if err := s.writeJSON(&commandRequest{ID: id, Type: "get_states"}); err != nil {
		s.pendingMu.Lock()
		s.snapshotID = 0
		s.pendingMu.Unlock()
		s.logger.Warn("Failed to request states", zap.Error(err))
	}
}

// routeResult hands a reply frame to the goroutine waiting on its id.
// The snapshot reply is handled here in the read loop instead, keeping
// cache writes in transport delivery order. Replies for unknown or
// untagged ids are ignored, not errors.
func (s *Session) routeResult(msg *Message) {
	if msg.ID == 0 {
		return
	}
	s.pendingMu.Lock()
	if msg.ID == s.snapshotID {
		s.snapshotID = 0
		s.pendingMu.Unlock()
		s.installSnapshot(msg)
		return
	}
	ch, ok := s.pending[msg.ID]
	if ok {
		delete(s.pending, msg.ID)
	}
	s.pendingMu.Unlock()

	if ok {
		ch <- *msg
	}
}

func (s *Session) installSnapshot(msg *Message) {
	if msg.Success != nil && !*msg.Success {
		s.logger.Warn("get_states rejected", zap.String("backend_id", s.backend.ID))
		return
	}
	var states []State
	if err := json.Unmarshal(msg.Result, &states); err != nil {
		s.logger.Error("Failed to unmarshal states", zap.Error(err))
		return
	}
	s.replaceCache(states)
}

func (s *Session) handleEvent(msg *Message) {
	if msg.Event == nil || msg.Event.EventType != "state_changed" {
		return
	}

	var change stateChangedEvent
	if err := json.Unmarshal(msg.Event.Data, &change); err != nil {
		s.logger.Error("Failed to unmarshal state_changed event", zap.Error(err))
		return
	}
	if change.NewState == nil || change.NewState.EntityID == "" {
		// One bad record must not disturb the rest of the cache.
		return
	}

	s.applyState(*change.NewState)
}

// applyState replaces the cached record for the entity, or appends it if
// new, and publishes the full snapshot.
func (s *Session) applyState(state State) {
	s.cacheMu.Lock()
	if i, ok := s.index[state.EntityID]; ok {
		s.cache[i] = state
	} else {
		s.index[state.EntityID] = len(s.cache)
		s.cache = append(s.cache, state)
	}
	snapshot := append([]State(nil), s.cache...)
	s.cacheMu.Unlock()

	s.entities.Set(snapshot)
}

// replaceCache installs a full snapshot, keeping at most one record per
// identifier (last occurrence wins).
func (s *Session) replaceCache(states []State) {
	s.cacheMu.Lock()
	s.cache = s.cache[:0]
	s.index = make(map[string]int, len(states))
	for _, state := range states {
		if state.EntityID == "" {
			continue
		}
		if i, ok := s.index[state.EntityID]; ok {
			s.cache[i] = state
			continue
		}
		s.index[state.EntityID] = len(s.cache)
		s.cache = append(s.cache, state)
	}
	snapshot := append([]State(nil), s.cache...)
	s.cacheMu.Unlock()

	s.entities.Set(snapshot)
}

// setStatus merges the new link state into the published status. The
// backend id is always carried forward.
func (s *Session) setStatus(connected bool, errMsg string) {
	s.status.Update(func(cur ConnectionStatus) ConnectionStatus {
		cur.Connected = connected
		cur.Error = errMsg
		return cur
	})
}

func (s *Session) nextMsgID() int {
	s.msgIDMu.Lock()
	defer s.msgIDMu.Unlock()
	s.msgID++
	return s.msgID
}

func (s *Session) register(id int) chan Message {
	ch := make(chan Message, 1)
	s.pendingMu.Lock()
	s.pending[id] = ch
	s.pendingMu.Unlock()
	return ch
}

func (s *Session) removePending(id int) {
	s.pendingMu.Lock()
	delete(s.pending, id)
	s.pendingMu.Unlock()
}

// teardownPending discards the correlation table, waking every waiter.
func (s *Session) teardownPending() {
	s.pendingMu.Lock()
	s.snapshotID = 0
	for id, ch := range s.pending {
		delete(s.pending, id)
		close(ch)
	}
	s.pendingMu.Unlock()
}

// writeJSON serializes one outbound frame. Writes are serialized because
// gorilla/websocket allows only one concurrent writer.
func (s *Session) writeJSON(v any) error {
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(v)
}
