package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/linkcrawl/internal/database"
	"github.com/nao1215/linkcrawl/internal/model"
)

// Job is one target moving through a pipeline.
type Job struct {
	// Index is the position of the target in the batch input.
	Index int

	// Target is the seed URL as given by the user.
	Target string

	// Result is the crawl result, partial when the crawl was cancelled.
	// It is nil when the crawl never started.
	Result *model.CrawlResult

	// Attempts counts crawls run for this target (retries included).
	Attempts int

	// Run is set when the result was archived.
	Run *database.RunMetadata

	// Err is the error that stopped the pipeline, if any.
	Err error

	// Steps lists the steps that ran, in order.
	Steps []string
}

// NewJob creates a job for target at position index.
func NewJob(index int, target string) *Job {
	return &Job{
		Index:  index,
		Target: target,
		Steps:  make([]string, 0),
	}
}

// Step is one stage of a pipeline.
type Step interface {
	// Do executes the step. A returned error stops the pipeline unless it
	// was built with WithContinueOnError.
	Do(ctx context.Context, job *Job) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline runs steps in order for one job.
type Pipeline struct {
	steps []Step

	logger *slog.Logger

	// continueOnError keeps running later steps after a failure.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to run later steps after a
// step fails. Job.Err keeps the last failure.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps in order. Cancellation is checked before each
// step; a step in progress handles its own cancellation. The error that
// stopped the pipeline is returned and recorded in job.Err.
func (p *Pipeline) Execute(ctx context.Context, job *Job) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"target", job.Target,
				"reason", err,
			)
			job.Err = err
			return err
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"target", job.Target,
		)

		job.Steps = append(job.Steps, step.Name())

		if err := step.Do(ctx, job); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"target", job.Target,
				"error", err,
			)
			job.Err = err

			if !p.continueOnError {
				return err
			}
		}
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
