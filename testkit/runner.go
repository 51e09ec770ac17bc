package testkit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/snow-ghost/eaknn/core"
	"github.com/snow-ghost/eaknn/pkg/logging"
	"github.com/snow-ghost/eaknn/pkg/metrics"
	"github.com/snow-ghost/eaknn/pkg/tracing"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"
)

// StreamLearner is what a prequential evaluation drives.
type StreamLearner interface {
	Train(e core.Example) error
	Predict(ctx context.Context, attrs []float64) core.Votes
}

// Point is the running accuracy after Processed examples.
type Point struct {
	Processed int64
	Accuracy  float64
}

// Report summarises a prequential evaluation.
type Report struct {
	Processed int64
	Correct   int64
	Rejected  int64
	Accuracy  float64
	Duration  time.Duration
	Curve     []Point
}

// Runner evaluates a learner test-then-train: every example is first
// predicted, then used for training.
type Runner struct {
	limiter     *rate.Limiter
	logger      *logging.Logger
	metrics     *metrics.PrometheusMetrics
	tracer      *tracing.Tracer
	reportEvery int64
}

// Option configures a Runner.
type Option func(*Runner)

// WithRate paces the stream to perSecond examples; zero or less disables pacing.
func WithRate(perSecond float64) Option {
	return func(r *Runner) {
		if perSecond > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

func WithLogger(l *logging.Logger) Option { return func(r *Runner) { r.logger = l } }

func WithMetrics(m *metrics.PrometheusMetrics) Option { return func(r *Runner) { r.metrics = m } }

func WithTracer(t *tracing.Tracer) Option { return func(r *Runner) { r.tracer = t } }

// WithReportEvery records a curve point and logs accuracy every n examples.
func WithReportEvery(n int64) Option { return func(r *Runner) { r.reportEvery = n } }

func NewRunner(opts ...Option) *Runner {
	r := &Runner{reportEvery: 100}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.Nop()
	}
	if r.tracer == nil {
		r.tracer = tracing.FromProvider(otel.GetTracerProvider(), "github.com/snow-ghost/eaknn/testkit")
	}
	return r
}

// Run consumes src until io.EOF or ctx is done. Examples the learner
// refuses to train on are counted as rejected and skipped.
func (r *Runner) Run(ctx context.Context, name string, l StreamLearner, src Source) (Report, error) {
	ctx, span := r.tracer.StartEvaluationSpan(ctx, name)
	defer span.End()

	start := time.Now()
	var rep Report
	finish := func() Report {
		rep.Duration = time.Since(start)
		if rep.Processed > 0 {
			rep.Accuracy = float64(rep.Correct) / float64(rep.Processed)
		}
		return rep
	}

	for {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				tracing.RecordSpanError(span, err)
				return finish(), err
			}
		} else if err := ctx.Err(); err != nil {
			tracing.RecordSpanError(span, err)
			return finish(), err
		}

		e, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			tracing.RecordSpanError(span, err)
			return finish(), fmt.Errorf("read %s: %w", name, err)
		}

		predicted := l.Predict(ctx, e.Attributes).ArgMax()
		if err := l.Train(e); err != nil {
			rep.Rejected++
			r.logger.Warn("Example rejected", "stream", name, "error", err)
			continue
		}

		rep.Processed++
		if predicted == e.Class {
			rep.Correct++
		}
		if r.reportEvery > 0 && rep.Processed%r.reportEvery == 0 {
			r.report(ctx, &rep)
		}
	}

	out := finish()
	tracing.RecordSpanDuration(span, out.Duration)
	tracing.RecordSpanSuccess(span)
	return out, nil
}

func (r *Runner) report(ctx context.Context, rep *Report) {
	acc := float64(rep.Correct) / float64(rep.Processed)
	rep.Curve = append(rep.Curve, Point{Processed: rep.Processed, Accuracy: acc})
	r.logger.LogAccuracy(ctx, rep.Processed, acc)
	if r.metrics != nil {
		r.metrics.RecordAccuracy(acc)
	}
}
