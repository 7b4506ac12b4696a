package scheduler

import (
	"context"
	"time"

	"github.com/hray3182/Upkeep/internal/logger"
	"github.com/hray3182/Upkeep/internal/metrics"
	"github.com/hray3182/Upkeep/internal/reminder"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

// Evaluator runs one full reevaluation pass.
type Evaluator interface {
	EvaluateAll(ctx context.Context) (reminder.Summary, error)
}

type Options struct {
	// Debounce is how long the loop waits after the last data-changed event
	// before running a pass.
	Debounce time.Duration
	// Interval is the period of the safety pass that runs without events.
	Interval time.Duration
	Clock    clockz.Clock
	Metrics  *metrics.Metrics
}

// Reevaluator re-runs the reminder scheduler after data changes. Bursts of
// events coalesce into a single pass, and passes never overlap since they
// all run on the Start loop.
type Reevaluator struct {
	evaluator Evaluator
	logger    *zap.Logger
	metrics   *metrics.Metrics
	clock     clockz.Clock
	debounce  time.Duration
	interval  time.Duration
	notifyCh  chan struct{}
}

func New(evaluator Evaluator, log *zap.Logger, opts Options) *Reevaluator {
	r := &Reevaluator{
		evaluator: evaluator,
		logger:    logger.OrNop(log),
		metrics:   opts.Metrics,
		clock:     opts.Clock,
		debounce:  opts.Debounce,
		interval:  opts.Interval,
		notifyCh:  make(chan struct{}, 1),
	}
	if r.clock == nil {
		r.clock = clockz.RealClock
	}
	if r.debounce <= 0 {
		r.debounce = 500 * time.Millisecond
	}
	if r.interval <= 0 {
		r.interval = 15 * time.Minute
	}
	return r
}

// Notify reports a data change from source. Non-blocking if a change is
// already pending.
func (r *Reevaluator) Notify(source string) {
	r.metrics.Trigger(source)
	select {
	case r.notifyCh <- struct{}{}:
	default:
	}
}

// Start runs an initial pass, then serves change notifications and the
// periodic safety pass until ctx is cancelled.
func (r *Reevaluator) Start(ctx context.Context) {
	r.logger.Info("Reevaluator started",
		zap.Duration("debounce", r.debounce),
		zap.Duration("interval", r.interval))

	r.RunPass(ctx)

	var pending <-chan time.Time
	safety := r.clock.After(r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reevaluator stopped")
			return
		case <-r.notifyCh:
			// a new event replaces the pending timer
			pending = r.clock.After(r.debounce)
		case <-pending:
			pending = nil
			r.RunPass(ctx)
		case <-safety:
			r.RunPass(ctx)
			safety = r.clock.After(r.interval)
		}
	}
}

// RunPass evaluates every vehicle and item once.
func (r *Reevaluator) RunPass(ctx context.Context) {
	start := r.clock.Now()

	sum, err := r.evaluator.EvaluateAll(ctx)
	r.metrics.ObservePass(r.clock.Since(start).Seconds())
	if err != nil {
		r.logger.Error("Reevaluation pass failed", zap.Error(err))
		r.metrics.Failure("pass")
		return
	}

	if sum.Skipped {
		r.logger.Debug("Reevaluation pass skipped, delivery not authorized")
		return
	}
	r.logger.Debug("Reevaluation pass finished",
		zap.Int("vehicles", sum.Vehicles),
		zap.Int("items", sum.Items),
		zap.Int("changed", sum.Changed),
		zap.Int("failed", sum.Failed))
}
