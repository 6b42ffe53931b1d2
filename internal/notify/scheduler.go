package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wochagonnadu/taskbot/internal/config"
)

// Scheduler fires the morning digest at the start of the workday and the
// evening digest at its end, every day, in the configured zone.
type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler(notifier *Notifier, workStart, workEnd config.Clock, loc *time.Location) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	if _, err := c.AddFunc(dailySpec(workStart), func() {
		if err := notifier.SendDigest(context.Background(), DigestMorning); err != nil {
			log.Printf("notify: morning digest: %v", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule morning digest: %w", err)
	}
	if _, err := c.AddFunc(dailySpec(workEnd), func() {
		if err := notifier.SendDigest(context.Background(), DigestEvening); err != nil {
			log.Printf("notify: evening digest: %v", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule evening digest: %w", err)
	}
	return &Scheduler{cron: c}, nil
}

func dailySpec(at config.Clock) string {
	return fmt.Sprintf("%d %d * * *", at.Minute, at.Hour)
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and waits for any running digest to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
