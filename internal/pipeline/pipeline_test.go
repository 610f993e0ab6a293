package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"github.com/nao1215/linkcrawl/internal/model"
)

var errStep = errors.New("step failed")

// recordStep is a Step that records its calls and returns err.
type recordStep struct {
	name string
	err  error

	mu    sync.Mutex
	calls int
}

func (s *recordStep) Do(_ context.Context, _ *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func (s *recordStep) Name() string {
	return s.name
}

func (s *recordStep) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// fakeCollector returns results in order, repeating the last one.
type fakeCollector struct {
	mu      sync.Mutex
	results []*model.CrawlResult
	err     error
	calls   int
}

func (c *fakeCollector) Collect(_ context.Context, req model.CrawlRequest) (*model.CrawlResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	if len(c.results) == 0 {
		r := model.NewCrawlResult(req.InitialURL, req.ClampedDepth())
		r.AllCollectedURLs = []string{req.InitialURL}
		return r, nil
	}
	i := min(c.calls-1, len(c.results)-1)
	return c.results[i], nil
}

func (c *fakeCollector) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestNew(t *testing.T) {
	t.Parallel()

	p := New()
	if p.StepCount() != 0 {
		t.Errorf("StepCount() = %d, want 0", p.StepCount())
	}
	if p.logger == nil {
		t.Error("logger should default to slog.Default()")
	}
	if p.continueOnError {
		t.Error("continueOnError should default to false")
	}
}

func TestPipelineAddSteps(t *testing.T) {
	t.Parallel()

	p := New(WithLogger(discardLogger()))
	p.AddStep(&recordStep{name: "a"})
	p.AddSteps(&recordStep{name: "b"}, &recordStep{name: "c"})

	if got, want := p.StepNames(), []string{"a", "b", "c"}; !slices.Equal(got, want) {
		t.Errorf("StepNames() = %v, want %v", got, want)
	}
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("runs every step in order", func(t *testing.T) {
		t.Parallel()

		a, b := &recordStep{name: "a"}, &recordStep{name: "b"}
		p := New(WithLogger(discardLogger()))
		p.AddSteps(a, b)

		job := NewJob(0, "https://example.com")
		if err := p.Execute(context.Background(), job); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if a.count() != 1 || b.count() != 1 {
			t.Errorf("calls = %d, %d, want 1, 1", a.count(), b.count())
		}
		if !slices.Equal(job.Steps, []string{"a", "b"}) {
			t.Errorf("job.Steps = %v", job.Steps)
		}
		if job.Err != nil {
			t.Errorf("job.Err = %v, want nil", job.Err)
		}
	})

	t.Run("stops at the first failure", func(t *testing.T) {
		t.Parallel()

		a, b := &recordStep{name: "a", err: errStep}, &recordStep{name: "b"}
		p := New(WithLogger(discardLogger()))
		p.AddSteps(a, b)

		job := NewJob(0, "https://example.com")
		err := p.Execute(context.Background(), job)
		if !errors.Is(err, errStep) {
			t.Fatalf("Execute() error = %v, want %v", err, errStep)
		}
		if b.count() != 0 {
			t.Error("step after the failure should not run")
		}
		if !errors.Is(job.Err, errStep) {
			t.Errorf("job.Err = %v, want %v", job.Err, errStep)
		}
	})

	t.Run("continue on error", func(t *testing.T) {
		t.Parallel()

		a, b := &recordStep{name: "a", err: errStep}, &recordStep{name: "b"}
		p := New(WithLogger(discardLogger()), WithContinueOnError(true))
		p.AddSteps(a, b)

		job := NewJob(0, "https://example.com")
		if err := p.Execute(context.Background(), job); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if b.count() != 1 {
			t.Error("step after the failure should run")
		}
		if !errors.Is(job.Err, errStep) {
			t.Errorf("job.Err = %v, want %v", job.Err, errStep)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		a := &recordStep{name: "a"}
		p := New(WithLogger(discardLogger()))
		p.AddStep(a)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		job := NewJob(0, "https://example.com")
		err := p.Execute(ctx, job)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Execute() error = %v, want context.Canceled", err)
		}
		if a.count() != 0 {
			t.Error("no step should run after cancellation")
		}
		if len(job.Steps) != 0 {
			t.Errorf("job.Steps = %v, want empty", job.Steps)
		}
	})
}
