package heartbeat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/atimics/rati-sub002/pkg/bus"
	"github.com/atimics/rati-sub002/pkg/ledger"
	"github.com/atimics/rati-sub002/pkg/logger"
)

// Service wakes the agent on a cron schedule so it can act without an
// inbound message. Each beat injects a synthetic event onto the bus; beats
// are skipped entirely while posting is in cooldown, so a rate-limited agent
// stays quiet instead of queueing wake-ups.
type Service struct {
	schedule string
	enabled  bool
	bus      *bus.MessageBus
	ledger   *ledger.Ledger
	clock    func() time.Time

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// DefaultSchedule fires every 30 minutes.
const DefaultSchedule = "*/30 * * * *"

const beatPrompt = "Heartbeat: review recent activity and decide whether to act."

func NewService(schedule string, enabled bool, mb *bus.MessageBus, l *ledger.Ledger) (*Service, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if !gronx.New().IsValid(schedule) {
		return nil, fmt.Errorf("invalid heartbeat schedule %q", schedule)
	}
	return &Service{
		schedule: schedule,
		enabled:  enabled,
		bus:      mb,
		ledger:   l,
		clock:    time.Now,
	}, nil
}

func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		logger.InfoC("heartbeat", "Heartbeat disabled, not starting")
		return nil
	}
	if s.running {
		return fmt.Errorf("heartbeat service already running")
	}

	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running = true
	go s.loop(s.stopCh, s.doneCh)

	logger.InfoCF("heartbeat", "Heartbeat service started",
		map[string]interface{}{"schedule": s.schedule})
	return nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
	logger.InfoC("heartbeat", "Heartbeat service stopped")
}

func (s *Service) loop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	for {
		next, err := gronx.NextTickAfter(s.schedule, s.clock(), false)
		if err != nil {
			logger.ErrorCF("heartbeat", "Failed to compute next tick",
				map[string]interface{}{"schedule": s.schedule, "error": err.Error()})
			return
		}

		timer := time.NewTimer(next.Sub(s.clock()))
		select {
		case <-stopCh:
			timer.Stop()
			return
		case now := <-timer.C:
			s.tick(now)
		}
	}
}

// tick runs one beat. Split out so tests can drive beats without the cron
// loop.
func (s *Service) tick(now time.Time) {
	if s.ledger != nil && s.ledger.InCooldown(context.Background(), "send_post", "") {
		logger.DebugC("heartbeat", "Skipping beat, posting in cooldown")
		return
	}

	beatID := uuid.NewString()
	s.bus.PublishEvent(bus.PlatformEvent{
		Platform:  "heartbeat",
		MessageID: beatID,
		Content:   beatPrompt,
		Received:  now,
	})
	logger.DebugCF("heartbeat", "Beat published",
		map[string]interface{}{"beat_id": beatID})
}
