package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pep299/econ-news-digest/internal/lock"
	"github.com/pep299/econ-news-digest/internal/metrics"
	"github.com/pep299/econ-news-digest/internal/model"
)

// Outcome is how a run ended
type Outcome string

const (
	// OutcomeRejected means another run held the guard.
	OutcomeRejected Outcome = "rejected"
	// OutcomeEmpty means no article was fetched and nothing was rendered.
	OutcomeEmpty     Outcome = "empty"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

type Fetcher interface {
	FetchAll(ctx context.Context, keywords []string) []model.Article
}

type Summarizer interface {
	Summarize(ctx context.Context, articles []model.Article) string
}

type Renderer interface {
	Render(ctx context.Context, summary string, articles []model.Article, date time.Time) (model.Report, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, report model.Report) ([]model.Receipt, error)
}

// Deps are the collaborators of a Runner
type Deps struct {
	Guard      lock.Guard
	Fetcher    Fetcher
	Summarizer Summarizer
	Renderer   Renderer
	Deliverer  Deliverer
}

// Status describes the runner for the status page
type Status struct {
	Running      bool      `json:"running"`
	LastRunID    string    `json:"last_run_id,omitempty"`
	LastOutcome  Outcome   `json:"last_outcome,omitempty"`
	LastFinished time.Time `json:"last_finished,omitempty"`
}

// Runner executes the fetch, summarize, render and deliver sequence under
// the guard. Nothing a stage does escapes Run.
type Runner struct {
	deps     Deps
	keywords []string
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	running    atomic.Bool
	background sync.WaitGroup

	mu   sync.Mutex
	last Status
}

// NewRunner creates a Runner
func NewRunner(deps Deps, keywords []string, logger *zap.Logger, m *metrics.Metrics) *Runner {
	return &Runner{
		deps:     deps,
		keywords: keywords,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Run performs one guarded run and reports how it ended.
func (r *Runner) Run(ctx context.Context) (outcome Outcome) {
	runID := uuid.NewString()
	logger := r.logger.With(zap.String("run_id", runID))

	release, ok := r.deps.Guard.TryAcquire(ctx)
	if !ok {
		logger.Warn("Another report run is in progress, trigger ignored")
		r.metrics.RunFinished(string(OutcomeRejected), 0, false)
		return OutcomeRejected
	}
	defer release()

	r.running.Store(true)
	r.metrics.RunStarted()
	start := r.now()
	logger.Info("Report run started", zap.Time("start", start))

	var (
		stage      = "fetch"
		reportPath string
	)
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("Report run panicked",
				zap.String("stage", stage),
				zap.Any("panic", recovered),
				zap.Stack("stack"))
			outcome = OutcomeFailed
		}

		if reportPath != "" {
			if err := os.Remove(reportPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
				logger.Warn("Removing temporary report failed", zap.String("path", reportPath), zap.Error(err))
			} else {
				logger.Info("Temporary report removed", zap.String("path", reportPath))
			}
		}

		elapsed := r.now().Sub(start)
		r.metrics.RunFinished(string(outcome), elapsed, true)
		r.finish(runID, outcome)
		logger.Info("Report run finished", zap.String("outcome", string(outcome)), zap.Duration("elapsed", elapsed))
	}()

	articles := r.deps.Fetcher.FetchAll(ctx, r.keywords)
	r.metrics.ArticlesFetched(len(articles))
	if len(articles) == 0 {
		logger.Info("No articles fetched, skipping report")
		return OutcomeEmpty
	}
	logger.Info("Analyzing articles", zap.Int("count", len(articles)))

	stage = "summarize"
	summary := r.deps.Summarizer.Summarize(ctx, articles)

	stage = "render"
	report, err := r.deps.Renderer.Render(ctx, summary, articles, start)
	if report.Path != "" {
		reportPath = report.Path
	}
	if err != nil {
		logger.Error("Rendering report failed", zap.String("stage", stage), zap.Error(err))
		return OutcomeFailed
	}

	stage = "deliver"
	receipts, err := r.deps.Deliverer.Deliver(ctx, report)
	if err != nil {
		logger.Error("Delivering report failed", zap.String("stage", stage), zap.Error(err))
		return OutcomeFailed
	}

	logger.Info("Report delivered", zap.Int("receipts", len(receipts)), zap.Int("articles", report.ArticleCount))
	return OutcomeCompleted
}

func (r *Runner) finish(runID string, outcome Outcome) {
	r.running.Store(false)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = Status{
		LastRunID:    runID,
		LastOutcome:  outcome,
		LastFinished: r.now(),
	}
}

// Trigger starts Run in the background and returns at once. The run keeps
// going after ctx is cancelled.
func (r *Runner) Trigger(ctx context.Context) {
	r.background.Add(1)
	go func() {
		defer r.background.Done()
		r.Run(context.WithoutCancel(ctx))
	}()
}

// Wait blocks until every triggered run has returned.
func (r *Runner) Wait() {
	r.background.Wait()
}

// Status returns whether a run is active and how the last one ended.
func (r *Runner) Status() Status {
	r.mu.Lock()
	status := r.last
	r.mu.Unlock()
	status.Running = r.running.Load()
	return status
}
