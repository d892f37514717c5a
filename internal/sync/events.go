package sync

import (
	"acp-sync/internal/hlc"

	"go.uber.org/zap"
)

// Status mirrors the connection lifecycle the transport collaborator
// drives the engine through; the engine itself only emits ready (on
// Boot), syncing (causal gap detected) and disconnected (on Stop).
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusSyncing
	StatusReady
	StatusReconnecting
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusSyncing:
		return "syncing"
	case StatusReady:
		return "ready"
	case StatusReconnecting:
		return "reconnecting"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// EventKind discriminates the payload carried by an Event.
type EventKind int

const (
	EventOp EventKind = iota
	EventStatus
	EventQueueChange
	EventReady
	EventError
	EventCAS
)

// Event is the single type delivered to every Listener; only the
// fields relevant to Kind are populated.
type Event struct {
	Kind EventKind

	// EventOp
	Key       string
	Value     any
	IsLocal   bool
	Timestamp hlc.HLC

	// EventStatus
	NewStatus Status

	// EventQueueChange
	QueueSize int

	// EventReady
	FullState map[string]any

	// EventError
	ErrorKind string
	Detail    string

	// EventCAS
	WireBytes []byte
}

// Listener receives engine events. A listener that panics is
// recovered and logged; it never interrupts delivery to the remaining
// listeners or the operation that raised the event.
type Listener func(Event)

// Subscribe registers l and returns a function that removes it. A
// destroyed engine has no listener registry left; Subscribe is then a
// no-op whose returned unsubscribe function does nothing.
func (e *Engine) Subscribe(l Listener) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		return func() {}
	}

	id := e.nextListenerID
	e.nextListenerID++
	e.listeners[id] = l

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.listeners != nil {
			delete(e.listeners, id)
		}
	}
}

// emit notifies every listener, recovering and logging individual
// listener panics so one bad subscriber never breaks the others or
// aborts the caller. Callers hold e.mu for the duration of the
// operation that raises the event, so emit runs under that same lock.
func (e *Engine) emit(ev Event) {
	for id, l := range e.listeners {
		e.invokeListener(id, l, ev)
	}
}

func (e *Engine) invokeListener(id int, l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("listener panicked",
				zap.Int("listener_id", id),
				zap.Any("event_kind", ev.Kind),
				zap.Any("recovered", r))
		}
	}()
	l(ev)
}
