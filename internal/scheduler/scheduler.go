// Package scheduler runs the background analysis jobs on cron schedules and
// tracks their outcomes for the system status surface.
package scheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a named unit of background work, such as the analysis refresh.
type Job interface {
	Run() error
	Name() string
}

// JobStatus is the recorded outcome of a job's most recent run.
type JobStatus struct {
	Name         string    `json:"name"`
	Schedule     string    `json:"schedule,omitempty"`
	LastRun      time.Time `json:"last_run,omitempty"`
	LastDuration float64   `json:"last_duration_seconds,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

// Scheduler runs registered jobs on second-granularity cron schedules.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu   sync.Mutex
	jobs map[string]*JobStatus
}

// New creates a scheduler. Schedules use the six-field form with seconds,
// e.g. "0 0 6 * * *" for 06:00 daily.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "scheduler").Logger(),
		jobs: make(map[string]*JobStatus),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job with a cron schedule and begins tracking its runs.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.execute(job)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.jobs[job.Name()] = &JobStatus{Name: job.Name(), Schedule: schedule}
	s.mu.Unlock()

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately, outside its schedule, recording the
// outcome the same way a scheduled run would.
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return s.execute(job)
}

// Status returns the last-run outcome of every known job, ordered by name.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, status := range s.jobs {
		out = append(out, *status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// execute runs a job, logs the outcome, and records it for Status. Analysis
// recomputes can take a while, so durations are always captured.
func (s *Scheduler) execute(job Job) error {
	s.log.Debug().Str("job", job.Name()).Msg("Running job")

	started := time.Now()
	err := job.Run()
	elapsed := time.Since(started)

	s.mu.Lock()
	status, ok := s.jobs[job.Name()]
	if !ok {
		status = &JobStatus{Name: job.Name()}
		s.jobs[job.Name()] = status
	}
	status.LastRun = started
	status.LastDuration = elapsed.Seconds()
	status.LastError = ""
	if err != nil {
		status.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Dur("elapsed", elapsed).
			Msg("Job failed")
		return err
	}

	s.log.Info().
		Str("job", job.Name()).
		Dur("elapsed", elapsed).
		Msg("Job completed")
	return nil
}
