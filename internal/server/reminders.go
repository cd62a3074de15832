package server

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"taskdeck/internal/engine"
)

const defaultReminderInterval = 15 * time.Minute

// ReminderSweeper periodically records due-today notifications for tasks
// that are not done. One pass runs immediately on Start.
type ReminderSweeper struct {
	engine   engine.Engine
	interval time.Duration
	log      logrus.FieldLogger

	mu   sync.Mutex
	done chan struct{}
}

func NewReminderSweeper(e engine.Engine, interval time.Duration, log logrus.FieldLogger) *ReminderSweeper {
	if interval <= 0 {
		interval = defaultReminderInterval
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ReminderSweeper{engine: e, interval: interval, log: log}
}

// Start launches the sweep loop; it stops when ctx is cancelled. Calling
// Start on a running sweeper is a no-op.
func (s *ReminderSweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
}

// Wait blocks until the loop started by Start has exited.
func (s *ReminderSweeper) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *ReminderSweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			s.log.Debug("reminder sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *ReminderSweeper) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	created, err := s.engine.SweepDueReminders(ctx)
	if err != nil {
		s.log.WithError(err).Warn("reminder sweep failed")
		return
	}
	if created > 0 {
		s.log.WithField("created", created).Info("due date reminders recorded")
	}
}
