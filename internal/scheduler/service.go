// Package scheduler drives the task registry: one cron loop owns the poll
// tick and the periodic full reconciliation, so every subscription shares a
// single driver instead of a timer per task.
package scheduler

import (
	"context"
	"fmt"

	"github.com/aidso/geo-console/internal/config"
	"github.com/aidso/geo-console/internal/tasks"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Service schedules poll ticks and full task-list refreshes
type Service struct {
	config   *config.Config
	registry *tasks.Registry
	cron     *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, registry *tasks.Registry) *Service {
	return &Service{
		config:   cfg,
		registry: registry,
		cron:     cron.New(cron.WithSeconds()),
	}
}

// Start begins the poll loop and the reconciliation schedule
func (s *Service) Start() error {
	pollSpec := s.pollSpec()
	_, err := s.cron.AddFunc(pollSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.PollInterval*30)
		defer cancel()
		s.registry.PollActive(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule poll loop: %w", err)
	}

	_, err = s.cron.AddFunc(s.config.RefreshSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.PollInterval*30)
		defer cancel()
		if err := s.registry.Refresh(ctx); err != nil {
			logrus.Errorf("Scheduled task refresh failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}

	s.cron.Start()
	logrus.Infof("Scheduler started (poll %q, refresh %q)", pollSpec, s.config.RefreshSchedule)
	return nil
}

// pollSpec renders the poll interval as a cron entry. Cron resolution is
// one second, so shorter intervals round up to every second.
func (s *Service) pollSpec() string {
	seconds := int(s.config.PollInterval.Seconds())
	if seconds <= 1 {
		return "* * * * * *"
	}
	return fmt.Sprintf("*/%d * * * * *", seconds)
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
