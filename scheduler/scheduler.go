// Package scheduler runs named jobs at fixed intervals until cancelled.
package scheduler

import (
	"context"
	"sync"
	"time"

	"tagtint/logger"
)

// Job is invoked on every tick of its interval.
type Job func(ctx context.Context)

type entry struct {
	name  string
	every time.Duration
	run   Job
}

type Scheduler struct {
	mu      sync.Mutex
	entries []entry
	lastRun map[string]time.Time
	log     *logger.Logger
}

func New(log *logger.Logger) *Scheduler {
	return &Scheduler{
		lastRun: make(map[string]time.Time),
		log:     log.Component("scheduler"),
	}
}

// Add registers a job. Jobs with a non-positive interval are ignored.
func (s *Scheduler) Add(name string, every time.Duration, run Job) {
	if every <= 0 || run == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry{name: name, every: every, run: run})
}

// Start runs every job on its own ticker until ctx is done. The returned
// WaitGroup completes once all job goroutines have exited.
func (s *Scheduler) Start(ctx context.Context) *sync.WaitGroup {
	s.mu.Lock()
	entries := append([]entry(nil), s.entries...)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e entry) {
			defer wg.Done()
			s.loop(ctx, e)
		}(e)
	}
	s.log.WithFields(map[string]any{"jobs": len(entries)}).Debug("scheduler started")
	return &wg
}

func (s *Scheduler) loop(ctx context.Context, e entry) {
	ticker := time.NewTicker(e.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.runOnce(ctx, e, now)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, e entry, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithFields(map[string]any{"job": e.name, "panic": r}).Warn("job panicked")
		}
	}()
	e.run(ctx)

	s.mu.Lock()
	s.lastRun[e.name] = now
	s.mu.Unlock()
}

// LastRun returns when each job last completed.
func (s *Scheduler) LastRun() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]time.Time, len(s.lastRun))
	for k, v := range s.lastRun {
		out[k] = v
	}
	return out
}
