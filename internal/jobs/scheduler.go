// Package jobs runs the periodic maintenance tasks of the back-office.
// Package jobs exécute les tâches de maintenance périodiques du back-office.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// StatusRecorder exposes job state and run outcomes / Expose l'état et le résultat des tâches
type StatusRecorder interface {
	SetBackgroundTaskStatus(taskName string, running bool)
	ObserveJobRun(taskName string, d time.Duration, err error)
}

// Func is a job body / Corps d'une tâche
type Func func(ctx context.Context) error

// Scheduler wraps cron with logging, overlap protection and status metrics
// Scheduler enveloppe cron avec journalisation, anti-chevauchement et métriques
type Scheduler struct {
	cron    *cron.Cron
	status  StatusRecorder
	timeout time.Duration

	mu     sync.Mutex
	names  []string
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates scheduler; status may be nil / Crée le planificateur ; status peut être nil
func NewScheduler(status StatusRecorder) *Scheduler {
	logger := slogAdapter{}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		status:  status,
		timeout: 10 * time.Minute,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers job under standard cron spec or descriptor (@daily, @every 1m)
// Add enregistre une tâche selon une expression cron ou un descripteur
func (s *Scheduler) Add(name, spec string, fn Func) error {
	if spec == "" {
		slog.Info("job disabled", "job", name)
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() { s.run(name, fn) })
	if err != nil {
		return fmt.Errorf("job %s: invalid schedule %q: %w", name, spec, err)
	}

	s.mu.Lock()
	s.names = append(s.names, name)
	s.mu.Unlock()
	return nil
}

// RunNow executes job synchronously, outside the schedule / Exécute la tâche immédiatement
func (s *Scheduler) RunNow(name string, fn Func) error {
	return s.run(name, fn)
}

func (s *Scheduler) run(name string, fn Func) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if s.status != nil {
		s.status.ObserveJobRun(name, elapsed, err)
	}
	if err != nil {
		slog.Error("job failed", "job", name, "duration", elapsed, "err", err)
		return err
	}
	slog.Info("job completed", "job", name, "duration", elapsed)
	return nil
}

// Start launches the cron loop / Démarre la boucle cron
func (s *Scheduler) Start() {
	s.mu.Lock()
	names := append([]string(nil), s.names...)
	s.mu.Unlock()

	for _, n := range names {
		s.setStatus(n, true)
	}
	s.cron.Start()
	slog.Info("job scheduler started", "jobs", names)
}

// Stop halts scheduling and waits for running jobs / Arrête la planification et attend les tâches en cours
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		slog.Warn("job scheduler stop timed out")
	}

	s.mu.Lock()
	names := append([]string(nil), s.names...)
	s.mu.Unlock()
	for _, n := range names {
		s.setStatus(n, false)
	}
}

// Jobs lists registered job names / Liste les tâches enregistrées
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.names...)
}

func (s *Scheduler) setStatus(name string, running bool) {
	if s.status != nil {
		s.status.SetBackgroundTaskStatus(name, running)
	}
}

// slogAdapter satisfies cron.Logger / Satisfait cron.Logger
type slogAdapter struct{}

func (slogAdapter) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogAdapter) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
