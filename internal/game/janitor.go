package game

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Janitor periodically evicts abandoned open rooms.
type Janitor struct {
	cron     *cron.Cron
	registry *Registry
	clock    Clock
	grace    time.Duration
	log      *zap.Logger
}

func NewJanitor(registry *Registry, clock Clock, grace time.Duration, schedule string, logger *zap.Logger) (*Janitor, error) {
	j := &Janitor{
		cron:     cron.New(),
		registry: registry,
		clock:    clock,
		grace:    grace,
		log:      logger,
	}
	if _, err := j.cron.AddFunc(schedule, j.Sweep); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts the schedule; the returned context is done once a running sweep finishes.
func (j *Janitor) Stop() context.Context {
	return j.cron.Stop()
}

func (j *Janitor) Sweep() {
	evicted := j.registry.EvictIdle(j.clock.Now(), j.grace)
	if len(evicted) > 0 {
		j.log.Info("[Janitor] evicted idle rooms",
			zap.Strings("rooms", evicted),
			zap.Int("remaining", j.registry.Len()))
	}
}
