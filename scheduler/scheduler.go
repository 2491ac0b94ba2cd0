package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"dealwatch/config"
	"dealwatch/services"
)

// Triggerable allows workers to be kicked outside their own schedule.
type Triggerable interface {
	Trigger()
}

// Scheduler drives the ingest pipeline on a cron expression or fixed
// interval, and optionally the snapshot export on its own cron.
type Scheduler struct {
	cfg      *config.Config
	pipeline *services.Pipeline
	exporter *services.Exporter
	cron     *cron.Cron
	ticker   *time.Ticker
	stopCh   chan struct{}

	kbbWorker Triggerable
}

func New(cfg *config.Config, pipeline *services.Pipeline, exporter *services.Exporter) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		pipeline: pipeline,
		exporter: exporter,
		cron:     cron.New(),
		stopCh:   make(chan struct{}),
	}
}

// SetKBBWorker registers the KBB link backfill worker so an ingest cycle
// can kick it right after new listings land.
func (s *Scheduler) SetKBBWorker(w Triggerable) {
	s.kbbWorker = w
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			s.runIngest(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
	} else if s.cfg.Scheduler.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.runIngest(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No ingest schedule configured, daemon will only respond to API triggers")
	}

	if s.cfg.Export.Cron != "" && s.exporter != nil {
		log.Printf("Starting export schedule with cron: %s", s.cfg.Export.Cron)
		_, err := s.cron.AddFunc(s.cfg.Export.Cron, func() {
			if _, err := s.exporter.Export(ctx); err != nil {
				log.Printf("Scheduled export error: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid export cron expression: %w", err)
		}
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) runIngest(ctx context.Context) {
	_, err := s.pipeline.Run(ctx)
	if errors.Is(err, services.ErrRunInProgress) {
		return
	}
	if err != nil {
		log.Printf("Scheduled ingest error: %v", err)
		return
	}
	if s.kbbWorker != nil {
		s.kbbWorker.Trigger()
	}
}

// TriggerNow runs one ingest cycle outside the schedule.
func (s *Scheduler) TriggerNow(ctx context.Context) (err error) {
	_, err = s.pipeline.Run(ctx)
	return err
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
