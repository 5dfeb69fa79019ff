package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one periodic maintenance task
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type scheduled struct {
	job      Job
	interval time.Duration
}

// Runner drives periodic jobs on independent tickers. A job error is logged
// and the ticker keeps firing.
type Runner struct {
	jobs   []scheduled
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewRunner creates an empty job runner
func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{logger: logger}
}

// Add registers a job to run at the given interval
func (r *Runner) Add(job Job, interval time.Duration) {
	r.jobs = append(r.jobs, scheduled{job: job, interval: interval})
}

// Start launches one goroutine per job. Each job also runs once immediately.
func (r *Runner) Start(ctx context.Context) {
	for _, s := range r.jobs {
		r.wg.Add(1)
		go r.loop(ctx, s)
	}
}

// Wait blocks until all job goroutines have stopped
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context, s scheduled) {
	defer r.wg.Done()

	r.logger.Info("Starting periodic job",
		zap.String("job", s.job.Name()),
		zap.Duration("interval", s.interval))

	r.runOnce(ctx, s.job)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Stopping periodic job", zap.String("job", s.job.Name()))
			return
		case <-ticker.C:
			r.runOnce(ctx, s.job)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, job Job) {
	if err := job.Run(ctx); err != nil {
		r.logger.Error("Job run failed",
			zap.String("job", job.Name()),
			zap.Error(err))
	}
}
