// Package schedule runs named recurring jobs on cron expressions. It is
// a thin wrapper over robfig/cron so callers can drive periodic request
// batches without touching the cron API directly.
package schedule

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/fetchwave/fetchwave/pkg/logging"
)

// Scheduler owns a cron runner and a name index over its entries.
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	jobs   map[string]cron.EntryID
	logger zerolog.Logger
}

// Entry describes one registered job.
type Entry struct {
	Name string
	Next time.Time
}

// NewScheduler builds a stopped scheduler. Expressions use the standard
// five-field cron syntax; @every and the other descriptors also work.
func NewScheduler() *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		jobs:   make(map[string]cron.EntryID),
		logger: logging.NewLogger("schedule"),
	}
}

// AddJob registers fn to run on the given cron expression. Reusing a
// name replaces the previous job.
func (s *Scheduler) AddJob(name, expr string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wrapped := func() {
		s.logger.Debug().Str("job", name).Msg("Job firing")
		fn()
	}

	id, err := s.cron.AddFunc(expr, wrapped)
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}
	if prev, ok := s.jobs[name]; ok {
		s.cron.Remove(prev)
	}
	s.jobs[name] = id

	s.logger.Info().Str("job", name).Str("schedule", expr).Msg("Job registered")
	return nil
}

// RemoveJob drops a named job. Unknown names are ignored.
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.jobs[name]
	if !ok {
		return
	}
	s.cron.Remove(id)
	delete(s.jobs, name)
	s.logger.Info().Str("job", name).Msg("Job removed")
}

// Entries lists registered jobs sorted by name. Next is zero until the
// scheduler has started.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.jobs))
	for name, id := range s.jobs {
		out = append(out, Entry{Name: name, Next: s.cron.Entry(id).Next})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start launches the runner in its own goroutine.
func (s *Scheduler) Start() {
	s.mu.Lock()
	jobs := len(s.jobs)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info().Int("jobs", jobs).Msg("Scheduler started")
}

// Stop halts scheduling and blocks until running jobs finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
}
