package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nao1215/linkcrawl/internal/model"
)

func collectFactory(c Collector) Factory {
	return func(target string) (*Pipeline, error) {
		req := model.CrawlRequest{InitialURL: target, MaxDepth: 1}
		return DefaultPipeline(c, req, []Option{WithLogger(discardLogger())}), nil
	}
}

func TestNewBatchProcessor(t *testing.T) {
	t.Parallel()

	bp := NewBatchProcessor(collectFactory(&fakeCollector{}))
	if bp.concurrency != DefaultConcurrency {
		t.Errorf("concurrency = %d, want %d", bp.concurrency, DefaultConcurrency)
	}
	if bp.logger == nil {
		t.Error("logger should default to slog.Default()")
	}

	bp = NewBatchProcessor(nil, WithConcurrency(4), WithConcurrency(0))
	if bp.concurrency != 4 {
		t.Errorf("concurrency = %d, want 4", bp.concurrency)
	}
}

func TestProcessBatch(t *testing.T) {
	t.Parallel()

	targets := []string{
		"https://a.example/",
		"https://b.example/",
		"https://c.example/",
	}

	t.Run("one job per target in input order", func(t *testing.T) {
		t.Parallel()

		c := &fakeCollector{}
		bp := NewBatchProcessor(collectFactory(c),
			WithConcurrency(2),
			WithBatchLogger(discardLogger()),
		)

		jobs, err := bp.ProcessBatch(context.Background(), targets)
		if err != nil {
			t.Fatalf("ProcessBatch() error = %v", err)
		}
		if len(jobs) != len(targets) {
			t.Fatalf("len(jobs) = %d, want %d", len(jobs), len(targets))
		}
		for i, job := range jobs {
			if job.Target != targets[i] || job.Index != i {
				t.Errorf("jobs[%d] = %s/%d", i, job.Target, job.Index)
			}
			if job.Err != nil || job.Result == nil {
				t.Errorf("jobs[%d]: err = %v, result = %v", i, job.Err, job.Result)
			}
		}
		if c.callCount() != len(targets) {
			t.Errorf("collector calls = %d, want %d", c.callCount(), len(targets))
		}
	})

	t.Run("factory error stays in the job", func(t *testing.T) {
		t.Parallel()

		factory := func(target string) (*Pipeline, error) {
			if target == targets[1] {
				return nil, errStep
			}
			return collectFactory(&fakeCollector{})(target)
		}
		bp := NewBatchProcessor(factory, WithBatchLogger(discardLogger()))

		jobs, err := bp.ProcessBatch(context.Background(), targets)
		if err != nil {
			t.Fatalf("ProcessBatch() error = %v", err)
		}
		if !errors.Is(jobs[1].Err, errStep) {
			t.Errorf("jobs[1].Err = %v, want %v", jobs[1].Err, errStep)
		}
		if jobs[0].Err != nil || jobs[2].Err != nil {
			t.Error("other targets should succeed")
		}
	})

	t.Run("step failure does not stop the batch", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(collectFactory(&fakeCollector{err: errStep}),
			WithConcurrency(3),
			WithBatchLogger(discardLogger()),
		)

		jobs, err := bp.ProcessBatch(context.Background(), targets)
		if err != nil {
			t.Fatalf("ProcessBatch() error = %v", err)
		}
		for i, job := range jobs {
			if !errors.Is(job.Err, errStep) {
				t.Errorf("jobs[%d].Err = %v, want %v", i, job.Err, errStep)
			}
		}
	})

	t.Run("cancelled before start", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		c := &fakeCollector{}
		bp := NewBatchProcessor(collectFactory(c), WithBatchLogger(discardLogger()))

		jobs, err := bp.ProcessBatch(ctx, targets)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("ProcessBatch() error = %v, want context.Canceled", err)
		}
		for i, job := range jobs {
			if job == nil || !errors.Is(job.Err, context.Canceled) {
				t.Errorf("jobs[%d] = %+v, want a cancelled job", i, job)
			}
		}
		if c.callCount() != 0 {
			t.Errorf("collector calls = %d, want 0", c.callCount())
		}
	})
}

func TestProcessBatchWithCallback(t *testing.T) {
	t.Parallel()

	targets := []string{"https://a.example/", "https://b.example/"}

	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		n    atomic.Int32
	)
	bp := NewBatchProcessor(collectFactory(&fakeCollector{}),
		WithConcurrency(2),
		WithBatchLogger(discardLogger()),
	)

	err := bp.ProcessBatchWithCallback(context.Background(), targets, func(job *Job) {
		n.Add(1)
		mu.Lock()
		seen[job.Target] = true
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("ProcessBatchWithCallback() error = %v", err)
	}
	if int(n.Load()) != len(targets) {
		t.Errorf("callback calls = %d, want %d", n.Load(), len(targets))
	}
	for _, target := range targets {
		if !seen[target] {
			t.Errorf("no callback for %s", target)
		}
	}
}
