package bus

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestPublishEventDropsWhenBufferFull(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	for i := 0; i < cap(mb.events); i++ {
		mb.PublishEvent(PlatformEvent{MessageID: fmt.Sprintf("m%d", i), Content: "hi"})
	}
	if got := mb.DroppedEvents(); got != 0 {
		t.Fatalf("expected no drops while buffer has room, got %d", got)
	}

	start := time.Now()
	mb.PublishEvent(PlatformEvent{MessageID: "overflow", Content: "hi"})
	elapsed := time.Since(start)

	if got := mb.DroppedEvents(); got != 1 {
		t.Errorf("expected 1 dropped event, got %d", got)
	}
	if elapsed < publishTimeout {
		t.Errorf("publish returned before timeout: %v", elapsed)
	}
}

func TestPublishActionDropsWhenBufferFull(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	for i := 0; i < cap(mb.actions); i++ {
		mb.PublishAction(ActionRequest{Action: "send_post", Content: fmt.Sprintf("c%d", i)})
	}
	mb.PublishAction(ActionRequest{Action: "send_post", Content: "overflow"})

	if got := mb.DroppedActions(); got != 1 {
		t.Errorf("expected 1 dropped action, got %d", got)
	}
}

func TestConsumeAfterClose(t *testing.T) {
	mb := NewMessageBus()
	mb.PublishEvent(PlatformEvent{MessageID: "m1"})
	mb.Close()

	ctx := context.Background()
	if _, ok := mb.ConsumeEvent(ctx); !ok {
		t.Fatal("buffered event should survive Close")
	}
	if _, ok := mb.ConsumeEvent(ctx); ok {
		t.Error("consume on drained closed bus should report not ok")
	}
	if _, ok := mb.ConsumeAction(ctx); ok {
		t.Error("consume on closed action channel should report not ok")
	}
}

func TestConsumeRespectsContext(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, ok := mb.ConsumeEvent(ctx); ok {
		t.Error("expected consume to give up when context expires")
	}
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	mb := NewMessageBus()
	mb.Close()

	mb.PublishEvent(PlatformEvent{MessageID: "late"})
	mb.PublishAction(ActionRequest{Action: "send_post"})

	if mb.DroppedEvents() != 0 || mb.DroppedActions() != 0 {
		t.Error("publish after close should not count drops")
	}
}

func TestDispatcherRegistry(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	called := false
	mb.RegisterDispatcher("farcaster", func(req ActionRequest) error {
		called = true
		return nil
	})

	d, ok := mb.GetDispatcher("farcaster")
	if !ok {
		t.Fatal("registered dispatcher not found")
	}
	if err := d(ActionRequest{Action: "send_post"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !called {
		t.Error("dispatcher was not invoked")
	}
	if _, ok := mb.GetDispatcher("matrix"); ok {
		t.Error("unexpected dispatcher for unregistered platform")
	}
}
