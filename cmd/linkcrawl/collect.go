package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/nao1215/linkcrawl/internal/config"
	"github.com/nao1215/linkcrawl/internal/crawler"
	"github.com/nao1215/linkcrawl/internal/database"
	"github.com/nao1215/linkcrawl/internal/log"
	"github.com/nao1215/linkcrawl/internal/model"
	"github.com/nao1215/linkcrawl/internal/pipeline"
	"github.com/nao1215/linkcrawl/internal/report"
	"github.com/nao1215/linkcrawl/internal/tor"
)

// NewCollectCmd creates the collect command.
func NewCollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect <url>...",
		Short: "Collect the links reachable from seed URLs",
		Long: `Collect fetches each seed URL, follows the links it finds up to --depth
hops, and reports every URL admitted by the filters along with the page
that linked to it.

A URL is admitted when it matches any filter condition. The flags --domain,
--path-prefix, --regex and --keyword together form one condition (all given
fields must match); conditions from the configuration file and --profile are
added to it. Account and checkout pages (login, admin, cart...) are never
followed.

Examples:
  # Collect links two hops deep
  linkcrawl collect https://example.com

  # Stay on one host and only follow the docs section
  linkcrawl collect --domain example.com --path-prefix /docs https://example.com/docs/

  # Only look at the navigation of the seed page
  linkcrawl collect --selector "nav" --depth 1 https://example.com

  # Crawl three sites concurrently, at most 5 requests per second in total
  linkcrawl collect -b 3 --rate 5 https://a.example https://b.example https://c.example

  # Plain URL list, archived for later comparison
  linkcrawl collect --text --save https://example.com

  # Crawl an onion service through an embedded Tor daemon
  linkcrawl collect --tor http://<address>.onion/`,
		Args: cobra.ArbitraryArgs,
		RunE: runCollectCmd,
	}

	// Traversal flags
	cmd.Flags().IntP("depth", "d", config.DefaultDepth,
		"Maximum number of hops from the seed (capped at 5)")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Pause before every request")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().IntP("max-pages", "p", 0,
		"Maximum number of pages fetched per target (0 means unlimited)")

	// Extraction scope flags
	cmd.Flags().String("selector", "",
		"CSS selector narrowing link extraction on the seed page")
	cmd.Flags().String("element", "",
		"Element name narrowing link extraction on the seed page")

	// Filter flags
	cmd.Flags().StringArray("domain", nil,
		"Admit URLs whose host contains this value (repeatable)")
	cmd.Flags().StringArray("path-prefix", nil,
		"Admit URLs whose path starts with this value (repeatable)")
	cmd.Flags().StringArray("regex", nil,
		"Admit URLs matching this regular expression (repeatable)")
	cmd.Flags().StringArray("keyword", nil,
		"Admit URLs containing this keyword (repeatable)")
	cmd.Flags().String("profile", "",
		"Filter profile from the configuration file")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .linkcrawl in current or home directory)")

	// Batch flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of targets crawled concurrently")
	cmd.Flags().Float64("rate", 0,
		"Maximum requests per second across all targets (0 means unlimited)")
	cmd.Flags().Int("retry", config.DefaultRetry,
		"Attempts per target when the seed page cannot be fetched")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown and --text)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json and --text)")
	cmd.Flags().Bool("text", false,
		"Output collected URLs only, one per line")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	// History flags
	cmd.Flags().Bool("save", false,
		"Archive results in the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	// Proxy flags
	cmd.Flags().String("proxy", "",
		"Route requests through a SOCKS5 proxy at host:port (e.g., 127.0.0.1:9050)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and route requests through it")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	return cmd
}

// runCollectCmd executes the collect command.
func runCollectCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, writing partial results...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCollect(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error

	if cfg.Depth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.Delay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.Selector, err = flags.GetString("selector"); err != nil {
		return nil, err
	}
	if cfg.Element, err = flags.GetString("element"); err != nil {
		return nil, err
	}

	// Values from the command line win over the configuration file.
	for flag, setting := range map[string]string{
		"depth":    config.SettingDepth,
		"delay":    config.SettingDelay,
		"selector": config.SettingSelector,
		"element":  config.SettingElement,
	} {
		if flags.Changed(flag) {
			cfg.Explicit[setting] = true
		}
	}

	if cfg.Filter.Domain, err = flags.GetStringArray("domain"); err != nil {
		return nil, err
	}
	if cfg.Filter.PathPrefix, err = flags.GetStringArray("path-prefix"); err != nil {
		return nil, err
	}
	if cfg.Filter.Regex, err = flags.GetStringArray("regex"); err != nil {
		return nil, err
	}
	if cfg.Filter.Keywords, err = flags.GetStringArray("keyword"); err != nil {
		return nil, err
	}
	if cfg.Profile, err = flags.GetString("profile"); err != nil {
		return nil, err
	}

	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.Rate, err = flags.GetFloat64("rate"); err != nil {
		return nil, err
	}
	if cfg.Retry, err = flags.GetInt("retry"); err != nil {
		return nil, err
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.TextReport, err = flags.GetBool("text"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}

	if cfg.SaveToDB, err = flags.GetBool("save"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}

	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// If the user named a config file, it must exist.
	// Otherwise a missing file means an empty configuration.
	if configPath := config.FindConfigFile(cfg.ConfigFilePath); configPath != "" {
		cfg.File, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Targets = args

	return cfg, nil
}

// reportFormat maps the report flags to a report format.
func reportFormat(cfg *config.Config) report.Format {
	switch {
	case cfg.JSONReport:
		return report.FormatJSON
	case cfg.MarkdownReport:
		return report.FormatMarkdown
	case cfg.TextReport:
		return report.FormatText
	default:
		return report.FormatSimple
	}
}

// runCollect crawls every target and writes one report per target to out.
// A JSON report over several targets is a single array in target order.
// Progress messages go to status.
func runCollect(ctx context.Context, cfg *config.Config, out, status io.Writer, logger *slog.Logger) error {
	logger.Info("starting collection",
		"targets", len(cfg.Targets),
		"depth", cfg.Depth,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	var db *database.HistoryDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	transport, stopProxy, err := setupProxy(ctx, cfg, status, logger)
	if err != nil {
		return err
	}
	defer stopProxy()

	if tor.HasOnionTarget(cfg.Targets) && transport == nil {
		fmt.Fprintln(status, "Warning: onion targets need --proxy or --tor; they will fail without one.")
	}

	output, closeOutput, err := openOutput(cfg.ReportFile, out)
	if err != nil {
		return err
	}
	defer closeOutput()

	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}

	factory := newPipelineFactory(cfg, transport, limiter, db, logger)
	bp := pipeline.NewBatchProcessor(factory,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	format := reportFormat(cfg)
	writer := report.New(format, output, cfg.Verbose)
	startTime := time.Now()

	var (
		mu       sync.Mutex
		failed   int
		buffered []*model.CrawlResult
	)
	jsonArray := format == report.FormatJSON && len(cfg.Targets) > 1
	if jsonArray {
		buffered = make([]*model.CrawlResult, len(cfg.Targets))
	}

	err = bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(job *pipeline.Job) {
		mu.Lock()
		defer mu.Unlock()

		// A cancelled crawl still carries its partial result.
		switch {
		case job.Result == nil:
		case jsonArray:
			buffered[job.Index] = job.Result
		default:
			if _, err := writer.Write(job.Result); err != nil {
				logger.Error("report failed", "target", job.Target, "error", err)
			}
		}

		if job.Run != nil {
			fmt.Fprintf(status, "Archived %s as run %s\n", job.Target, job.Run.RunID)
		}

		if job.Err != nil && !errors.Is(job.Err, context.Canceled) {
			failed++
			fmt.Fprintf(status, "Collection error for %s: %v\n", job.Target, job.Err)
		}
	})

	if jsonArray {
		results := make([]*model.CrawlResult, 0, len(buffered))
		for _, result := range buffered {
			if result != nil {
				results = append(results, result)
			}
		}
		if _, werr := report.NewJSONWriter(output, report.WithPrettyPrint()).Encode(results); werr != nil {
			logger.Error("report failed", "error", werr)
		}
	}

	logger.Info("collection finished",
		"targets", len(cfg.Targets),
		"failed", failed,
		"elapsed", time.Since(startTime).Round(time.Millisecond),
	)

	if err != nil {
		return fmt.Errorf("collection interrupted: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d targets failed", failed, len(cfg.Targets))
	}
	return nil
}

// newPipelineFactory returns a factory building one pipeline per target.
// Each target gets its own fetcher so that cookies and headers from the
// configuration file apply per target; transport and limiter are shared.
func newPipelineFactory(
	cfg *config.Config,
	transport http.RoundTripper,
	limiter *rate.Limiter,
	db *database.HistoryDB,
	logger *slog.Logger,
) pipeline.Factory {
	return func(target string) (*pipeline.Pipeline, error) {
		req, err := cfg.CrawlRequest(target)
		if err != nil {
			return nil, err
		}

		cookie, headers := cfg.TargetHTTP(target)
		fetcherOpts := []crawler.FetcherOption{
			crawler.WithUserAgent(cfg.UserAgent),
			crawler.WithTimeout(cfg.Timeout),
			crawler.WithMaxBodySize(cfg.MaxBodySize),
		}
		if cookie != "" {
			fetcherOpts = append(fetcherOpts, crawler.WithCookie(cookie))
		}
		if len(headers) > 0 {
			fetcherOpts = append(fetcherOpts, crawler.WithHeaders(headers))
		}
		if transport != nil {
			fetcherOpts = append(fetcherOpts, crawler.WithTransport(transport))
		}
		if limiter != nil {
			fetcherOpts = append(fetcherOpts, crawler.WithRateLimiter(limiter))
		}

		collector := crawler.NewCollector(
			crawler.NewHTTPFetcher(fetcherOpts...),
			crawler.WithLogger(logger.With("target", target)),
			crawler.WithMaxPages(cfg.MaxPages),
		)

		configOpts := []pipeline.DefaultPipelineOption{
			pipeline.WithPipelineRetry(pipeline.RetryPolicy{
				Attempts: cfg.Retry,
				Backoff:  pipeline.DefaultRetryPolicy().Backoff,
			}),
			pipeline.WithPipelineAllowOnion(transport != nil),
		}
		if db != nil {
			configOpts = append(configOpts, pipeline.WithPipelineArchiver(db))
		}

		return pipeline.DefaultPipeline(collector, req,
			[]pipeline.Option{pipeline.WithLogger(logger)},
			configOpts...,
		), nil
	}
}

// setupProxy returns the SOCKS5 transport selected by --proxy or --tor, or
// nil for direct connections. The returned stop function is always safe to call.
func setupProxy(ctx context.Context, cfg *config.Config, status io.Writer, logger *slog.Logger) (http.RoundTripper, func(), error) {
	noop := func() {}

	switch {
	case cfg.ProxyAddress != "":
		client, err := tor.NewClient(cfg.ProxyAddress, cfg.Timeout)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create proxy client: %w", err)
		}

		if st := client.CheckConnection(ctx); st != tor.ProxyStatusOK {
			return nil, noop, fmt.Errorf("proxy check failed (make sure a SOCKS5 proxy is running at %s): %w",
				cfg.ProxyAddress, st.Error())
		}

		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
		return client.Transport(), noop, nil

	case cfg.UseTor:
		client, embedded, err := startEmbeddedTor(ctx, cfg, status, logger)
		if err != nil {
			return nil, noop, err
		}
		stop := func() {
			logger.Info("stopping embedded Tor daemon...")
			if err := embedded.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}
		return client.Transport(), stop, nil

	default:
		return nil, noop, nil
	}
}

// startEmbeddedTor starts an embedded Tor daemon and returns a verified
// client for its SOCKS port.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, status io.Writer, logger *slog.Logger) (*tor.Client, *tor.EmbeddedTor, error) {
	fmt.Fprintln(status, "Starting embedded Tor daemon...")
	fmt.Fprintf(status, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embedded := tor.NewEmbeddedTor(
		tor.WithStartupTimeout(cfg.TorStartupTimeout),
	)

	if err := embedded.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	logger.Info("embedded Tor daemon started",
		"socksAddr", embedded.SocksAddr(),
		"controlAddr", embedded.ControlAddr(),
	)
	fmt.Fprintf(status, "SOCKS proxy: %s\n\n", embedded.SocksAddr())

	client, err := embedded.NewClient(cfg.Timeout)
	if err != nil {
		_ = embedded.Stop() //nolint:errcheck // Best effort cleanup
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}

	if st := client.CheckConnection(ctx); st != tor.ProxyStatusOK {
		_ = embedded.Stop() //nolint:errcheck // Best effort cleanup
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %w", st.Error())
	}

	return client, embedded, nil
}

// openOutput returns the report destination: the file at path, or out when
// path is empty. The file is opened once so every target's report lands in it.
func openOutput(path string, out io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return out, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may contain session URLs; keep them owner-readable only.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil //nolint:errcheck // Best effort close
}
