package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// PlatformEvent is an inbound message observed by a platform adapter
// (a Farcaster cast, a Matrix room message).
type PlatformEvent struct {
	Platform  string // "farcaster", "matrix"
	RoomID    string
	MessageID string
	Sender    string
	Content   string
	Received  time.Time
}

// ActionRequest asks a platform adapter to perform a side-effecting action.
// The adapter is expected to consult the action gate before executing and to
// report the outcome back to the ledger.
type ActionRequest struct {
	Platform string
	Action   string // "send_post", "send_chat_message", "like_cast", ...
	Target   string
	Content  string
	BeatID   string // set when the request originates from a heartbeat
}

// Dispatcher executes an action request on its platform.
type Dispatcher func(req ActionRequest) error

// MessageBus decouples platform adapters from the agent core. Buffers are
// bounded; publishing into a full buffer waits briefly, then drops and
// counts.
type MessageBus struct {
	events   chan PlatformEvent
	actions  chan ActionRequest
	dispatch map[string]Dispatcher
	closed   bool
	dropped  droppedCounters
	mu       sync.RWMutex
}

type droppedCounters struct {
	events  atomic.Uint64
	actions atomic.Uint64
}

const publishTimeout = 100 * time.Millisecond

func NewMessageBus() *MessageBus {
	return &MessageBus{
		events:   make(chan PlatformEvent, 100),
		actions:  make(chan ActionRequest, 100),
		dispatch: make(map[string]Dispatcher),
	}
}

func (mb *MessageBus) PublishEvent(ev PlatformEvent) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return
	}

	select {
	case mb.events <- ev:
	default:
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case mb.events <- ev:
		case <-timer.C:
			mb.dropped.events.Add(1)
		}
	}
}

func (mb *MessageBus) ConsumeEvent(ctx context.Context) (PlatformEvent, bool) {
	select {
	case ev, ok := <-mb.events:
		if !ok {
			return PlatformEvent{}, false
		}
		return ev, true
	case <-ctx.Done():
		return PlatformEvent{}, false
	}
}

func (mb *MessageBus) PublishAction(req ActionRequest) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if mb.closed {
		return
	}

	select {
	case mb.actions <- req:
	default:
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case mb.actions <- req:
		case <-timer.C:
			mb.dropped.actions.Add(1)
		}
	}
}

func (mb *MessageBus) ConsumeAction(ctx context.Context) (ActionRequest, bool) {
	select {
	case req, ok := <-mb.actions:
		if !ok {
			return ActionRequest{}, false
		}
		return req, true
	case <-ctx.Done():
		return ActionRequest{}, false
	}
}

// RegisterDispatcher binds an outbound executor to a platform name.
func (mb *MessageBus) RegisterDispatcher(platform string, d Dispatcher) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.dispatch[platform] = d
}

func (mb *MessageBus) GetDispatcher(platform string) (Dispatcher, bool) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	d, ok := mb.dispatch[platform]
	return d, ok
}

func (mb *MessageBus) Close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return
	}
	mb.closed = true
	close(mb.events)
	close(mb.actions)
}

func (mb *MessageBus) DroppedEvents() uint64 {
	return mb.dropped.events.Load()
}

func (mb *MessageBus) DroppedActions() uint64 {
	return mb.dropped.actions.Load()
}
