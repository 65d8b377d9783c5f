// Package scheduler drives periodic dispatch cycles with cron.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/wb-go/wbf/zlog"

	"github.com/notofine/backend/internal/service"
)

// Scheduler runs the reminder engine on a fixed interval.
type Scheduler struct {
	cron   *cron.Cron
	engine *service.ReminderEngine
}

// New registers a "@every <interval>" job for the engine; interval is a
// Go duration string such as "1h" or "30s".
func New(engine *service.ReminderEngine, interval string) (*Scheduler, error) {
	c := cron.New()
	_, err := c.AddFunc("@every "+interval, func() {
		summary, err := engine.ProcessDue(context.Background())
		if err != nil {
			zlog.Logger.Error().Err(err).Msg("scheduled dispatch cycle failed")
			return
		}
		zlog.Logger.Info().
			Int("processed", summary.Processed).
			Interface("channels", summary.Channels).
			Msg("scheduled dispatch cycle done")
	})
	if err != nil {
		return nil, fmt.Errorf("register dispatch job: %w", err)
	}
	return &Scheduler{cron: c, engine: engine}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	zlog.Logger.Info().Msg("reminder scheduler started")
}

// Stop halts the ticker and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	zlog.Logger.Info().Msg("reminder scheduler stopped")
}
