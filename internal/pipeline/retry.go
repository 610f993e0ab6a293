package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/linkcrawl/internal/model"
)

// Collector runs one crawl. *crawler.Collector implements it.
type Collector interface {
	Collect(ctx context.Context, req model.CrawlRequest) (*model.CrawlResult, error)
}

// RetryPolicy controls whole-crawl retries.
type RetryPolicy struct {
	// Attempts is the total number of crawls to try, at least 1.
	Attempts int

	// Backoff is the base wait; attempt n waits n*Backoff before retrying.
	Backoff time.Duration
}

// DefaultRetryPolicy runs each crawl once.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 1,
		Backoff:  2 * time.Second,
	}
}

// SeedFailed reports whether the seed page itself could not be fetched,
// which leaves the result with nothing beyond the seed.
func SeedFailed(result *model.CrawlResult) bool {
	if result == nil {
		return false
	}
	for _, e := range result.Errors {
		if e.ErrorType == model.ErrorTypeFetch && e.URL == result.InitialURL {
			return true
		}
	}
	return false
}

// CollectWithRetry runs the crawl and repeats it, with linear backoff, while
// the seed page fails to fetch. It returns the last result and the number
// of attempts made. Input errors and cancellation are returned at once.
func CollectWithRetry(
	ctx context.Context,
	c Collector,
	req model.CrawlRequest,
	policy RetryPolicy,
	logger *slog.Logger,
) (*model.CrawlResult, int, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	attempts := max(policy.Attempts, 1)

	var result *model.CrawlResult
	for attempt := 1; ; attempt++ {
		var err error
		result, err = c.Collect(ctx, req)
		if err != nil {
			return result, attempt, err
		}
		if attempt >= attempts || !SeedFailed(result) {
			return result, attempt, nil
		}

		wait := time.Duration(attempt) * policy.Backoff
		logger.Warn("seed fetch failed, retrying",
			"url", req.InitialURL,
			"attempt", attempt,
			"max_attempts", attempts,
			"backoff", wait,
		)

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return result, attempt, ctx.Err()
			case <-timer.C:
			}
		}
	}
}
