// Package progress implements the Server-Sent Events contract a running
// backtest streams to its caller: preparation/progress/delta/trade/
// completed/error events, published best-effort (non-blocking, dropping on
// a full buffer) so a slow or vanished subscriber can never stall the
// simulation itself.
package progress

import (
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType names one SSE event kind.
type EventType string

const (
	EventPreparation EventType = "preparation"
	EventProgress    EventType = "progress"
	EventDelta       EventType = "delta"
	EventTrade       EventType = "trade"
	EventCompleted   EventType = "completed"
	EventError       EventType = "error"
)

// Event is one SSE message: Type identifies the event, Data is the
// JSON-serializable payload.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Encode renders the event as an SSE "data: ...\n\n" frame.
func (e Event) Encode() ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	out := append([]byte("data: "), payload...)
	out = append(out, '\n', '\n')
	return out, nil
}

const channelBuffer = 100

// Session is one backtest run's progress channel and delta-mode encoding
// state.
type Session struct {
	ID     string
	ch     chan Event
	mu     sync.Mutex
	closed bool

	lastStage  string                 // delta-mode state: last stage reported
	lastFields map[string]interface{} // last full set of fields sent (stage+percent+extra)
}

// Manager tracks active sessions and fans out published events to each
// session's subscribers.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	log      zerolog.Logger
}

func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		log:      log.With().Str("component", "progress").Logger(),
	}
}

// Open creates (or returns the existing) session for id.
func (m *Manager) Open(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s
	}
	s := &Session{ID: id, ch: make(chan Event, channelBuffer)}
	m.sessions[id] = s
	return s
}

// Close removes a session and closes its channel; safe to call more than
// once.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return
	}
	s.mu.Lock()
	if !s.closed {
		close(s.ch)
		s.closed = true
	}
	s.mu.Unlock()
	delete(m.sessions, id)
}

// Subscribe returns the session's event channel for an HTTP handler to
// range over until the request context is cancelled.
func (m *Manager) Subscribe(id string) (<-chan Event, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return s.ch, true
}

// Publish sends an event to a session's subscribers. Sends are non-blocking:
// if the channel is full, the event is dropped and logged rather than
// stalling the backtest that is generating it.
func (m *Manager) Publish(id string, evt Event) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return
	}
	evt.Timestamp = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- evt:
	default:
		m.log.Warn().Str("session_id", id).Str("event_type", string(evt.Type)).Msg("progress channel full, dropping event")
	}
}

// PublishProgress emits a delta-mode progress update: a full "progress"
// event the first time or whenever the stage changes, and otherwise a
// "delta" event carrying only the fields whose values actually changed
// since the last full or delta send, so a long-running backtest doesn't
// re-send its whole snapshot on every tick. percent and extra's "date" (when
// present) are always included in a delta even if unchanged, so a listener
// always has an anchor to place the update against.
func (m *Manager) PublishProgress(id, stage string, percent int, extra map[string]interface{}) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return
	}

	fields := make(map[string]interface{}, len(extra)+2)
	fields["stage"] = stage
	fields["percent"] = percent
	for k, v := range extra {
		fields[k] = v
	}

	s.mu.Lock()
	stageChanged := stage != s.lastStage || s.lastFields == nil
	prev := s.lastFields
	s.lastStage = stage
	s.lastFields = fields
	s.mu.Unlock()

	if stageChanged {
		m.Publish(id, Event{Type: EventProgress, Data: fields})
		return
	}

	delta := diffFields(prev, fields)
	delta["percent"] = percent
	if date, ok := fields["date"]; ok {
		delta["date"] = date
	}
	m.Publish(id, Event{Type: EventDelta, Data: delta})
}

// diffFields returns the entries of next whose value differs from (or is
// absent from) prev.
func diffFields(prev, next map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(next))
	for k, v := range next {
		if pv, ok := prev[k]; !ok || !reflect.DeepEqual(pv, v) {
			out[k] = v
		}
	}
	return out
}

// PublishTrade emits a single trade execution event as it happens.
func (m *Manager) PublishTrade(id string, trade interface{}) {
	m.Publish(id, Event{Type: EventTrade, Data: trade})
}

// PublishCompleted emits the guaranteed terminal event carrying the final
// result, then closes the session.
func (m *Manager) PublishCompleted(id string, result interface{}) {
	m.Publish(id, Event{Type: EventCompleted, Data: result})
	m.Close(id)
}

// PublishError emits the terminal error event, then closes the session.
func (m *Manager) PublishError(id string, err error) {
	m.Publish(id, Event{Type: EventError, Data: map[string]interface{}{"message": err.Error()}})
	m.Close(id)
}
