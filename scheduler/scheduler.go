package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"carwatch/config"
)

// Runner is the harvest entry point. Implemented by scraper.Orchestrator.
type Runner interface {
	RunAll(ctx context.Context) error
}

// Scheduler runs the harvester on a cron expression or a fixed interval.
// Runs never overlap: a tick that fires while a run is in flight is skipped.
type Scheduler struct {
	cfg     *config.Config
	runner  Runner
	cron    *cron.Cron
	ticker  *time.Ticker
	stopCh  chan struct{}
	running chan struct{}
}

func New(cfg *config.Config, runner Runner) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		runner:  runner,
		cron:    cron.New(),
		stopCh:  make(chan struct{}),
		running: make(chan struct{}, 1),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			s.runOnce(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Scheduler.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.runOnce(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No schedule configured, daemon runs checker only")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// TriggerNow runs a harvest immediately, subject to the same no-overlap rule.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	select {
	case s.running <- struct{}{}:
		defer func() { <-s.running }()
		return s.runner.RunAll(ctx)
	default:
		return fmt.Errorf("a run is already in progress")
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	select {
	case s.running <- struct{}{}:
		defer func() { <-s.running }()
	default:
		log.Println("Previous run still in progress, skipping tick")
		return
	}

	if err := s.runner.RunAll(ctx); err != nil {
		log.Printf("Scheduled run error: %v", err)
	}
}
