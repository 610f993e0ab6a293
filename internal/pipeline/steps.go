package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/nao1215/linkcrawl/internal/database"
	"github.com/nao1215/linkcrawl/internal/model"
	"github.com/nao1215/linkcrawl/internal/tor"
)

// ErrOnionWithoutProxy is returned for a .onion target when no SOCKS5
// proxy was configured; such a crawl could only fail.
var ErrOnionWithoutProxy = errors.New("onion targets require --proxy or --tor")

// TargetCheckStep validates the target host before any network I/O.
type TargetCheckStep struct {
	// allowOnion is true when traffic goes through a SOCKS5 proxy.
	allowOnion bool
}

// NewTargetCheckStep creates a target check. Pass allowOnion=true when the
// fetcher dials through a proxy that can reach onion services.
func NewTargetCheckStep(allowOnion bool) *TargetCheckStep {
	return &TargetCheckStep{allowOnion: allowOnion}
}

// Name returns the step name.
func (s *TargetCheckStep) Name() string {
	return "target_check"
}

// Do rejects malformed onion hosts, and onion hosts without a proxy.
// Other input problems are left to the crawler's own validation.
func (s *TargetCheckStep) Do(_ context.Context, job *Job) error {
	u, err := url.Parse(job.Target)
	if err != nil || !tor.IsOnionHost(u.Hostname()) {
		return nil
	}

	if err := tor.CheckOnionURL(job.Target); err != nil {
		return err
	}
	if !s.allowOnion {
		return fmt.Errorf("%w: %s", ErrOnionWithoutProxy, u.Hostname())
	}
	return nil
}

// CollectStep runs the crawl for the job's target.
type CollectStep struct {
	collector Collector
	request   model.CrawlRequest
	retry     RetryPolicy
	logger    *slog.Logger
}

// CollectStepOption configures a CollectStep.
type CollectStepOption func(*CollectStep)

// WithRetryPolicy sets how often a crawl with a failed seed is retried.
func WithRetryPolicy(policy RetryPolicy) CollectStepOption {
	return func(s *CollectStep) {
		s.retry = policy
	}
}

// WithCollectLogger sets a custom logger for the collect step.
func WithCollectLogger(logger *slog.Logger) CollectStepOption {
	return func(s *CollectStep) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewCollectStep creates a step that crawls req with collector.
func NewCollectStep(collector Collector, req model.CrawlRequest, opts ...CollectStepOption) *CollectStep {
	s := &CollectStep{
		collector: collector,
		request:   req,
		retry:     DefaultRetryPolicy(),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *CollectStep) Name() string {
	return "collect"
}

// Do runs the crawl and stores the result, partial or not, in the job.
func (s *CollectStep) Do(ctx context.Context, job *Job) error {
	result, attempts, err := CollectWithRetry(ctx, s.collector, s.request, s.retry, s.logger)
	job.Result = result
	job.Attempts = attempts
	if err != nil {
		return err
	}

	s.logger.Info("target collected",
		"url", job.Target,
		"collected", len(result.AllCollectedURLs),
		"errors", len(result.Errors),
		"attempts", attempts,
	)
	return nil
}

// Archiver stores finished results. *database.HistoryDB implements it.
type Archiver interface {
	SaveResult(ctx context.Context, result *model.CrawlResult) (*database.RunMetadata, error)
}

// ArchiveStep saves the job's result to the history database.
type ArchiveStep struct {
	archiver Archiver
	logger   *slog.Logger
}

// NewArchiveStep creates an archive step.
func NewArchiveStep(archiver Archiver, logger *slog.Logger) *ArchiveStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveStep{archiver: archiver, logger: logger}
}

// Name returns the step name.
func (s *ArchiveStep) Name() string {
	return "archive"
}

// Do archives the result. A job without a result is skipped.
func (s *ArchiveStep) Do(ctx context.Context, job *Job) error {
	if job.Result == nil {
		return nil
	}

	meta, err := s.archiver.SaveResult(ctx, job.Result)
	if err != nil {
		return fmt.Errorf("failed to archive result: %w", err)
	}
	job.Run = meta

	s.logger.Info("result archived", "url", job.Target, "run_id", meta.RunID)
	return nil
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// Retry controls whole-crawl retries.
	Retry RetryPolicy

	// Archiver, when set, adds the archive step.
	Archiver Archiver

	// AllowOnion permits .onion targets (a SOCKS5 proxy is configured).
	AllowOnion bool
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineRetry sets the retry policy of the collect step.
func WithPipelineRetry(policy RetryPolicy) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Retry = policy
	}
}

// WithPipelineArchiver enables archiving of finished results.
func WithPipelineArchiver(archiver Archiver) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Archiver = archiver
	}
}

// WithPipelineAllowOnion permits .onion targets.
func WithPipelineAllowOnion(allow bool) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.AllowOnion = allow
	}
}

// DefaultPipeline builds the standard pipeline for one target:
// target_check, collect, then archive when an archiver is configured.
//
// The first variadic parameter accepts pipeline options (WithLogger, etc).
// The second accepts pipeline config options (WithPipelineRetry, etc).
func DefaultPipeline(collector Collector, req model.CrawlRequest, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(pipelineOpts...)

	cfg := &DefaultPipelineConfig{
		Retry: DefaultRetryPolicy(),
	}
	for _, opt := range configOpts {
		opt(cfg)
	}

	p.AddSteps(
		NewTargetCheckStep(cfg.AllowOnion),
		NewCollectStep(collector, req,
			WithRetryPolicy(cfg.Retry),
			WithCollectLogger(p.logger),
		),
	)
	if cfg.Archiver != nil {
		p.AddStep(NewArchiveStep(cfg.Archiver, p.logger))
	}

	return p
}
