package haven

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// HASourceConfig configures the Home Assistant WebSocket event source.
type HASourceConfig struct {
	// URL is the WebSocket API endpoint, e.g. "ws://homeassistant:8123/api/websocket".
	URL string

	// AccessToken is a long-lived access token.
	AccessToken string

	// ReconnectInitial is the first reconnect delay. Default: 1s.
	ReconnectInitial time.Duration

	// ReconnectMax caps the reconnect backoff. Default: 60s.
	ReconnectMax time.Duration

	// CallTimeout bounds how long CallService waits for a result.
	// Default: 10s.
	CallTimeout time.Duration

	Logger *slog.Logger
}

// haMessage is the wire shape of Home Assistant WebSocket frames, request
// and response fields overlaid.
type haMessage struct {
	ID          int64           `json:"id,omitempty"`
	Type        string          `json:"type"`
	AccessToken string          `json:"access_token,omitempty"`
	EventType   string          `json:"event_type,omitempty"`
	Domain      string          `json:"domain,omitempty"`
	Service     string          `json:"service,omitempty"`
	ServiceData map[string]any  `json:"service_data,omitempty"`
	Success     *bool           `json:"success,omitempty"`
	Event       *haEvent        `json:"event,omitempty"`
	Error       *haError        `json:"error,omitempty"`
	Message     string          `json:"message,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

type haError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type haEvent struct {
	EventType string      `json:"event_type"`
	TimeFired string      `json:"time_fired"`
	Data      haEventData `json:"data"`
}

type haEventData struct {
	EntityID string       `json:"entity_id"`
	OldState *haStateBlob `json:"old_state"`
	NewState *haStateBlob `json:"new_state"`
}

type haStateBlob struct {
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// HASource consumes state_changed events from the Home Assistant
// WebSocket API and dispatches them to an EventHandler. It also serves as
// the ServiceCaller behind notification sinks. Run reconnects with
// exponential backoff until Close or context cancellation.
type HASource struct {
	cfg    HASourceConfig
	logger *slog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	nextID  int64
	pending map[int64]chan haMessage
	closed  bool
	done    chan struct{}
}

var _ EventSource = (*HASource)(nil)
var _ ServiceCaller = (*HASource)(nil)

// NewHASource creates a source. Run must be called before events flow.
func NewHASource(cfg HASourceConfig) *HASource {
	if cfg.ReconnectInitial <= 0 {
		cfg.ReconnectInitial = time.Second
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = 60 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HASource{
		cfg:     cfg,
		logger:  logger,
		pending: make(map[int64]chan haMessage),
		done:    make(chan struct{}),
	}
}

// Run connects and pumps events until ctx is canceled or Close is called.
// Connection failures trigger reconnection with backoff; only a canceled
// context or Close ends the loop.
func (s *HASource) Run(ctx context.Context, handler EventHandler) error {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		default:
		}

		err := s.connectAndPump(ctx, handler)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-s.done:
			return nil
		default:
		}

		attempt++
		delay := computeBackoff(attempt, s.cfg.ReconnectInitial, s.cfg.ReconnectMax, 2.0)
		s.logger.Warn("event source disconnected, reconnecting",
			"error", err, "attempt", attempt, "delay", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-time.After(delay):
		}
	}
}

func (s *HASource) connectAndPump(ctx context.Context, handler EventHandler) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}
	defer func() { _ = conn.Close() }()

	if err := s.authenticate(conn); err != nil {
		return err
	}

	subID := s.claimID()
	if err := conn.WriteJSON(haMessage{
		ID:        subID,
		Type:      "subscribe_events",
		EventType: "state_changed",
	}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		for id, ch := range s.pending {
			close(ch)
			delete(s.pending, id)
		}
		s.mu.Unlock()
	}()

	s.logger.Info("connected to event stream", "url", s.cfg.URL)

	for {
		var msg haMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		switch msg.Type {
		case "event":
			if msg.Event == nil || msg.Event.EventType != "state_changed" {
				continue
			}
			if ev, ok := convertStateChanged(msg.Event); ok {
				handler(ev)
			}
		case "result":
			s.mu.Lock()
			ch, ok := s.pending[msg.ID]
			if ok {
				delete(s.pending, msg.ID)
			}
			s.mu.Unlock()
			if ok {
				ch <- msg
				close(ch)
			} else if msg.ID == subID && msg.Success != nil && !*msg.Success {
				return fmt.Errorf("subscription rejected: %s", errText(msg.Error))
			}
		case "ping":
			_ = conn.WriteJSON(haMessage{ID: msg.ID, Type: "pong"})
		}
	}
}

// authenticate performs the auth_required / auth / auth_ok handshake.
func (s *HASource) authenticate(conn *websocket.Conn) error {
	var hello haMessage
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("auth handshake: %w", err)
	}
	if hello.Type != "auth_required" {
		return fmt.Errorf("auth handshake: unexpected frame %q", hello.Type)
	}

	if err := conn.WriteJSON(haMessage{
		Type:        "auth",
		AccessToken: s.cfg.AccessToken,
	}); err != nil {
		return fmt.Errorf("auth handshake: %w", err)
	}

	var reply haMessage
	if err := conn.ReadJSON(&reply); err != nil {
		return fmt.Errorf("auth handshake: %w", err)
	}
	if reply.Type != "auth_ok" {
		return fmt.Errorf("authentication rejected: %s", reply.Message)
	}
	return nil
}

func (s *HASource) claimID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return s.nextID
}

// CallService invokes a platform service and waits for its result frame.
func (s *HASource) CallService(ctx context.Context, domain, service string, data map[string]any) error {
	s.mu.Lock()
	conn := s.conn
	if conn == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.nextID++
	id := s.nextID
	ch := make(chan haMessage, 1)
	s.pending[id] = ch
	err := conn.WriteJSON(haMessage{
		ID:          id,
		Type:        "call_service",
		Domain:      domain,
		Service:     service,
		ServiceData: data,
	})
	if err != nil {
		delete(s.pending, id)
		s.mu.Unlock()
		return fmt.Errorf("call %s.%s: %w", domain, service, err)
	}
	s.mu.Unlock()

	timer := time.NewTimer(s.cfg.CallTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		s.dropPending(id)
		return ctx.Err()
	case <-timer.C:
		s.dropPending(id)
		return fmt.Errorf("call %s.%s: timeout", domain, service)
	case msg, ok := <-ch:
		if !ok {
			return ErrNotConnected
		}
		if msg.Success != nil && !*msg.Success {
			return fmt.Errorf("call %s.%s: %s", domain, service, errText(msg.Error))
		}
		return nil
	}
}

func (s *HASource) dropPending(id int64) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// Close stops the run loop and closes the connection.
func (s *HASource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// convertStateChanged maps a platform state_changed event onto a
// StateChangeEvent. Events missing either side (entity appearing or
// disappearing) carry no behavioral signal and are skipped.
func convertStateChanged(ev *haEvent) (StateChangeEvent, bool) {
	if ev.Data.EntityID == "" || ev.Data.OldState == nil || ev.Data.NewState == nil {
		return StateChangeEvent{}, false
	}

	ts := time.Now()
	if ev.TimeFired != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, ev.TimeFired); err == nil {
			ts = parsed
		}
	}

	return StateChangeEvent{
		EntityID:  ev.Data.EntityID,
		Timestamp: ts,
		OldState:  convertState(ev.Data.OldState),
		NewState:  convertState(ev.Data.NewState),
	}, true
}

func convertState(blob *haStateBlob) StateSnapshot {
	snap := StateSnapshot{State: blob.State}
	if len(blob.Attributes) > 0 {
		snap.Attributes = make(map[string]string, len(blob.Attributes))
		for k, v := range blob.Attributes {
			snap.Attributes[k] = fmt.Sprint(v)
		}
	}
	return snap
}

func errText(e *haError) string {
	if e == nil {
		return "unknown error"
	}
	return e.Message
}
