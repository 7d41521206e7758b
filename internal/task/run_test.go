package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// recorder collects task names in the order they finish.
type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) task(name string, deps ...string) Task {
	return Task{Name: name, Deps: deps, Run: func(ctx context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.order = append(r.order, name)
		return nil
	}}
}

func (r *recorder) index(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.order {
		if n == name {
			return i
		}
	}
	return -1
}

func TestRunner_DependencyOrder(t *testing.T) {
	rec := &recorder{}
	g := newTestGraph(t,
		Task{Name: "build", Deps: []string{"build:workspace"}},
		Task{Name: "build:workspace", Deps: []string{"npm", "node", "cli"}},
		rec.task("npm"),
		rec.task("node"),
		rec.task("cli"),
		rec.task("package", "build"),
	)

	reports, err := NewRunner(g).Run(context.Background(), "package")
	require.NoError(t, err)

	require.Len(t, rec.order, 4, "each task runs exactly once")
	for _, dep := range []string{"npm", "node", "cli"} {
		assert.Less(t, rec.index(dep), rec.index("package"), "%s must finish before package", dep)
	}

	require.Len(t, reports, 6)
	for _, report := range reports {
		assert.Equal(t, StatusSuccess, report.Status, report.Task)
	}
}

func TestRunner_RunsIndependentTasksConcurrently(t *testing.T) {
	var started sync.WaitGroup
	started.Add(2)
	meet := func(ctx context.Context) error {
		started.Done()
		// both tasks must be running at once to get past here
		done := make(chan struct{})
		go func() { started.Wait(); close(done) }()
		select {
		case <-done:
			return nil
		case <-time.After(5 * time.Second):
			return errors.New("tasks did not overlap")
		}
	}

	g := newTestGraph(t, Task{Name: "a", Run: meet}, Task{Name: "b", Run: meet})
	_, err := NewRunner(g).Run(context.Background())
	require.NoError(t, err)
}

func TestRunner_ConcurrencyLimit(t *testing.T) {
	var running, peak atomic.Int32
	work := func(ctx context.Context) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return nil
	}

	g := NewGraph()
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		require.NoError(t, g.Add(Task{Name: name, Run: work}))
	}

	_, err := NewRunner(g, WithConcurrency(2)).Run(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunner_FirstFailureCancelsRest(t *testing.T) {
	boom := errors.New("download failed")
	var dependentRan atomic.Bool

	g := newTestGraph(t,
		Task{Name: "node", Run: func(ctx context.Context) error { return boom }},
		Task{Name: "slow", Run: func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
				return errors.New("slow task was not cancelled")
			}
		}},
		Task{Name: "workspace", Deps: []string{"node", "slow"}, Run: func(ctx context.Context) error {
			dependentRan.Store(true)
			return nil
		}},
	)

	reports, err := NewRunner(g).Run(context.Background(), "workspace")

	var taskErr *TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, "node", taskErr.Task)
	assert.ErrorIs(t, err, boom)
	assert.False(t, dependentRan.Load(), "dependent of a failed task must not run")

	statuses := make(map[string]Status)
	for _, report := range reports {
		statuses[report.Task] = report.Status
	}
	assert.Equal(t, StatusFailed, statuses["node"])
	assert.Equal(t, StatusCancelled, statuses["slow"])
	assert.Equal(t, StatusCancelled, statuses["workspace"])
}

func TestRunner_FailedDependencyWithUnlimitedSiblings(t *testing.T) {
	boom := errors.New("boom")
	for range 20 {
		var ran atomic.Bool
		g := newTestGraph(t,
			Task{Name: "dep", Run: func(ctx context.Context) error { return boom }},
			Task{Name: "child", Deps: []string{"dep"}, Run: func(ctx context.Context) error {
				ran.Store(true)
				return nil
			}},
		)

		_, err := NewRunner(g).Run(context.Background(), "child")
		var taskErr *TaskError
		require.ErrorAs(t, err, &taskErr)
		require.Equal(t, "dep", taskErr.Task)
		require.False(t, ran.Load())
	}
}

func TestRunner_RecoversPanic(t *testing.T) {
	g := newTestGraph(t, Task{Name: "cli", Run: func(ctx context.Context) error {
		panic("go toolchain exploded")
	}})

	reports, err := NewRunner(g).Run(context.Background())

	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "go toolchain exploded", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
	assert.Equal(t, StatusFailed, reports[0].Status)
}

func TestRunner_ParentCancelled(t *testing.T) {
	rec := &recorder{}
	g := newTestGraph(t, rec.task("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reports, err := NewRunner(g).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.order)
	assert.Equal(t, StatusCancelled, reports[0].Status)
}

func TestRunner_PlanErrors(t *testing.T) {
	g := newTestGraph(t, Task{Name: "a", Deps: []string{"missing"}})

	_, err := NewRunner(g).Run(context.Background(), "a")
	assert.ErrorIs(t, err, ErrMissingDependency)

	_, err = NewRunner(NewGraph()).Run(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestRunner_Spans(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	g := newTestGraph(t,
		Task{Name: "ok", Run: func(ctx context.Context) error { return nil }},
		Task{Name: "bad", Deps: []string{"ok"}, Run: func(ctx context.Context) error { return errors.New("exit status 1") }},
	)

	_, err := NewRunner(g, WithTracerProvider(tp)).Run(context.Background(), "bad")
	require.Error(t, err)

	ended := spans.Ended()
	require.Len(t, ended, 2)

	byName := make(map[string]sdktrace.ReadOnlySpan)
	for _, span := range ended {
		byName[span.Name()] = span
	}
	require.Contains(t, byName, "task ok")
	require.Contains(t, byName, "task bad")
	assert.Equal(t, codes.Unset, byName["task ok"].Status().Code)
	assert.Equal(t, codes.Error, byName["task bad"].Status().Code)
	assert.Equal(t, "exit status 1", byName["task bad"].Status().Description)
}

func TestTaskError(t *testing.T) {
	inner := errors.New("exit status 2")
	err := &TaskError{Task: "build:workspace:cli", Err: inner}

	assert.Equal(t, "task build:workspace:cli: exit status 2", err.Error())
	assert.ErrorIs(t, err, inner)
}
