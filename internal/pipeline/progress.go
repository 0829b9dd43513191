package pipeline

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"
)

// ProgressReporter logs step progress through a token bucket so per-entity
// updates from large datasets do not flood the log. Terminal updates always
// log regardless of the limit.
type ProgressReporter struct {
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewProgressReporter creates a reporter emitting at most rps updates per
// second with the given burst.
func NewProgressReporter(rps float64, burst int, logger *slog.Logger) *ProgressReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressReporter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}
}

// Report logs one progress update, dropping it when over the rate limit.
func (p *ProgressReporter) Report(ctx context.Context, stepID string, percent int, message string) {
	if percent < 100 && !p.limiter.Allow() {
		return
	}
	p.logger.InfoContext(ctx, "step progress",
		slog.String("step", stepID),
		slog.Int("percent", percent),
		slog.String("message", message))
}

// reportProgress records progress on the step state and forwards it to the
// run's progress reporter when one is attached.
func reportProgress(ctx context.Context, options *StepOptions, stepState *StepState, stepID string, percent int, message string) {
	if stepState != nil {
		stepState.UpdateProgress(float64(percent), message)
	}
	if options != nil && options.Progress != nil {
		options.Progress.Report(ctx, stepID, percent, message)
	}
}

// percentOf converts a done/total pair into a whole percentage
func percentOf(done, total int) int {
	if total <= 0 {
		return 100
	}
	return done * 100 / total
}
