package task

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ZebulonRouseFrantzich/wsbuild/internal/logctx"
)

// Status is the outcome of a planned task.
type Status string

const (
	StatusSuccess   Status = "SUCCESS"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Report describes one planned task after Run returns.
type Report struct {
	Task     string
	Status   Status
	Err      error
	Duration time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithConcurrency bounds the number of tasks running at once. n <= 0 removes the bound.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		r.limit = n
	}
}

// WithTracerProvider records a span per task.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Runner) {
		if tp != nil {
			r.tracer = tp.Tracer("github.com/ZebulonRouseFrantzich/wsbuild/internal/task")
		}
	}
}

// Runner executes tasks from a Graph.
type Runner struct {
	graph  *Graph
	limit  int
	tracer trace.Tracer
}

func NewRunner(g *Graph, opts ...Option) *Runner {
	r := &Runner{
		graph:  g,
		tracer: noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var errDependencyFailed = errors.New("dependency did not succeed")

type node struct {
	done   chan struct{}
	report Report
}

// Run executes targets and their dependencies. The first failing task
// cancels the rest and is returned as a *TaskError. Reports are returned in
// plan order, also on failure; tasks that never started are CANCELLED.
func (r *Runner) Run(ctx context.Context, targets ...string) ([]Report, error) {
	plan, err := r.graph.Plan(targets...)
	if err != nil {
		return nil, err
	}

	nodes := make(map[string]*node, len(plan))
	for _, name := range plan {
		nodes[name] = &node{
			done:   make(chan struct{}),
			report: Report{Task: name, Status: StatusCancelled},
		}
	}

	var sem *semaphore.Weighted
	if r.limit > 0 {
		sem = semaphore.NewWeighted(int64(r.limit))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		failOnce sync.Once
		failure  error
	)
	fail := func(err error) error {
		failOnce.Do(func() {
			failure = err
			cancel()
		})
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range plan {
		n := nodes[name]
		t := r.graph.tasks[name]
		g.Go(func() error {
			// dependents only read n.report after done is closed
			defer close(n.done)

			for _, dep := range t.Deps {
				select {
				case <-nodes[dep].done:
					if nodes[dep].report.Status != StatusSuccess {
						return errDependencyFailed
					}
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			if err := gctx.Err(); err != nil {
				return err
			}

			if sem != nil {
				if err := sem.Acquire(gctx, 1); err != nil {
					return err
				}
				defer sem.Release(1)
			}

			n.report = r.execute(gctx, t)
			if n.report.Err != nil {
				return fail(&TaskError{Task: t.Name, Err: n.report.Err})
			}
			return nil
		})
	}

	err = g.Wait()
	if failure != nil {
		err = failure
	}

	reports := make([]Report, 0, len(plan))
	for _, name := range plan {
		reports = append(reports, nodes[name].report)
	}
	return reports, err
}

// execute runs a single task inside a span, converting a panic into an error.
func (r *Runner) execute(ctx context.Context, t *Task) (report Report) {
	ctx, span := r.tracer.Start(ctx, "task "+t.Name, trace.WithAttributes(attribute.String("task.name", t.Name)))
	defer span.End()

	ctx = logctx.With(ctx, "task", t.Name)
	logger := logctx.LoggerFromContext(ctx)

	start := time.Now()
	report.Task = t.Name

	defer func() {
		if v := recover(); v != nil {
			perr := &PanicError{Value: v, Stack: debug.Stack()}
			logger.ErrorContext(ctx, "task panicked", "panic", v, "stack", string(perr.Stack))
			report.Err = perr
		}

		report.Duration = time.Since(start)
		switch {
		case report.Err == nil:
			report.Status = StatusSuccess
			logger.InfoContext(ctx, "task finished", "duration", report.Duration.Round(time.Millisecond))
		case errors.Is(report.Err, context.Canceled) && ctx.Err() != nil:
			report.Status = StatusCancelled
			span.SetStatus(codes.Error, "cancelled")
			logger.WarnContext(ctx, "task cancelled", "duration", report.Duration.Round(time.Millisecond))
		default:
			report.Status = StatusFailed
			span.RecordError(report.Err)
			span.SetStatus(codes.Error, report.Err.Error())
			logger.ErrorContext(ctx, "task failed", "error", report.Err, "duration", report.Duration.Round(time.Millisecond))
		}
	}()

	if t.Run == nil {
		return report
	}

	logger.InfoContext(ctx, "task started")
	report.Err = t.Run(ctx)
	return report
}
