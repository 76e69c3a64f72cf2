package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/marketintel/mia/config"
)

// Scheduler fires standing missions on their cron schedules. A redis lock
// keeps replicas from running the same order twice.
type Scheduler struct {
	Orders  []config.StandingOrder
	Runner  MissionRunner
	Rdb     *redis.Client
	Stop    chan struct{}
	Tick    time.Duration
	lastRun map[int]time.Time
	logger  *log.Logger
}

func NewScheduler(orders []config.StandingOrder, runner MissionRunner, rdb *redis.Client) *Scheduler {
	return &Scheduler{
		Orders:  orders,
		Runner:  runner,
		Rdb:     rdb,
		Stop:    make(chan struct{}),
		Tick:    time.Minute,
		lastRun: make(map[int]time.Time),
		logger:  log.New(log.Writer(), "[SCHED] ", log.LstdFlags),
	}
}

func (s *Scheduler) Start() {
	if len(s.Orders) == 0 {
		return
	}
	ticker := time.NewTicker(s.Tick)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick(time.Now())
			}
		}
	}()
}

func (s *Scheduler) tick(now time.Time) {
	ctx := context.Background()
	for i, order := range s.Orders {
		if !s.due(i, order.Cron, now) {
			continue
		}
		if s.Rdb != nil {
			lockKey := "mia:sched:lock:" + order.Cron + ":" + order.Mission
			ok, err := s.Rdb.SetNX(ctx, lockKey, "1", 2*time.Minute).Result()
			if err != nil || !ok {
				continue
			}
		}
		s.lastRun[i] = now
		s.logger.Printf("Firing standing order: %s", order.Mission)
		go func(mission string) {
			res := s.Runner.Run(ctx, mission, "", nil)
			s.logger.Printf("Standing order finished: %s (%d trace entries)", res.MissionID, len(res.Trace))
		}(order.Mission)
	}
}

// due reports whether the order's next fire time after its last run has
// passed.
func (s *Scheduler) due(i int, spec string, now time.Time) bool {
	expr, err := cronexpr.Parse(spec)
	if err != nil {
		s.logger.Printf("Bad cron spec %q: %v", spec, err)
		return false
	}
	last, ok := s.lastRun[i]
	if !ok {
		last = now.Add(-s.Tick)
	}
	next := expr.Next(last)
	return !next.IsZero() && !next.After(now)
}
