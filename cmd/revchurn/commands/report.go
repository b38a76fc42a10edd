// Package commands implements CLI command handlers for revchurn.
package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/revchurn/pkg/churn"
	"github.com/Sumatoshi-tech/revchurn/pkg/config"
	"github.com/Sumatoshi-tech/revchurn/pkg/observability"
	"github.com/Sumatoshi-tech/revchurn/pkg/pipeline"
	"github.com/Sumatoshi-tech/revchurn/pkg/report"
	"github.com/Sumatoshi-tech/revchurn/pkg/vcs"
	"github.com/Sumatoshi-tech/revchurn/pkg/version"
)

// ErrRangeRequired is returned when the revision range is missing or
// incomplete.
var ErrRangeRequired = errors.New(
	"a revision range is required. Use --from and --to; for git sources --to 0 means HEAD",
)

// churnExecutor runs the aggregation pipeline against a configured source.
// It is replaceable in tests.
type churnExecutor func(
	ctx context.Context,
	cfg *config.Config,
	opts pipeline.Options,
	providers observability.Providers,
) (churn.Result, error)

// ReportCommand holds configuration and dependencies for the report command.
type ReportCommand struct {
	configPath string

	repo    string
	vcsType string

	from int64
	to   int64

	author       string
	includeExts  []string
	excludeExts  []string
	excludeGlobs []string

	ignoreWhitespace bool
	ignoreEOL        bool

	perRevision bool
	noColor     bool
	formats     []string
	outputs     []string

	workers       int
	onError       string
	sourceTimeout time.Duration

	cacheDir string

	logLevel  string
	logFormat string

	otlpEndpoint   string
	otlpInsecure   bool
	prometheusAddr string

	exec churnExecutor
}

// NewReportCommand creates the report command.
func NewReportCommand() *cobra.Command {
	return newReportCommandWithDeps(executeChurn)
}

func newReportCommandWithDeps(exec churnExecutor) *cobra.Command {
	rc := &ReportCommand{exec: exec}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Aggregate added and removed lines over a revision range",
		Long: "Aggregate per-file added and removed line counts across a revision range,\n" +
			"with author, extension, and path filters.",
		Args: cobra.NoArgs,
		RunE: rc.run,
	}

	cmd.Flags().StringVar(&rc.configPath, "config", "", "Config file path (default: .revchurn.yaml)")

	cmd.Flags().StringVarP(&rc.repo, "repo", "r", "", "Repository URL or local path")
	cmd.Flags().StringVar(&rc.vcsType, "vcs", "", "Source type: svn, git")

	cmd.Flags().Int64Var(&rc.from, "from", 0, "First revision of the range (inclusive)")
	cmd.Flags().Int64Var(&rc.to, "to", 0, "Last revision of the range (inclusive; 0 = HEAD for git)")

	cmd.Flags().StringVar(&rc.author, "author", "", "Only count revisions committed by this author (exact match)")
	cmd.Flags().StringSliceVar(&rc.includeExts, "ext", nil, "Only count files with these extensions (example: go,ts)")
	cmd.Flags().StringSliceVar(&rc.excludeExts, "exclude-ext", nil, "Never count files with these extensions")
	cmd.Flags().StringSliceVar(&rc.excludeGlobs, "exclude-path", nil, "Never count files matching these glob patterns (example: vendor/**)")

	cmd.Flags().BoolVar(&rc.ignoreWhitespace, "ignore-whitespace", false, "Ignore whitespace-only line changes")
	cmd.Flags().BoolVar(&rc.ignoreEOL, "ignore-eol", false, "Ignore end-of-line style changes")

	cmd.Flags().BoolVar(&rc.perRevision, "per-revision", false, "Include the per-revision breakdown in reports")
	cmd.Flags().BoolVar(&rc.noColor, "no-color", false, "Disable colored console output")
	cmd.Flags().StringSliceVar(&rc.formats, "format", nil, "Output formats: console, csv, json, markdown, yaml, html")
	cmd.Flags().StringSliceVar(&rc.outputs, "output", nil, "Output paths matching --format by position (empty = stdout)")

	cmd.Flags().IntVar(&rc.workers, "workers", 0, "Concurrent diff retrievals (0 = config default)")
	cmd.Flags().StringVar(&rc.onError, "on-error", "", "Failed revision handling: abort, skip")
	cmd.Flags().DurationVar(&rc.sourceTimeout, "source-timeout", 0, "Per-call source timeout (0 = config default)")

	cmd.Flags().StringVar(&rc.cacheDir, "cache-dir", "", "Directory for the on-disk diff cache (empty = disabled)")

	cmd.Flags().StringVar(&rc.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&rc.logFormat, "log-format", "", "Log format: text, json")

	cmd.Flags().StringVar(&rc.otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC endpoint for traces and metrics")
	cmd.Flags().BoolVar(&rc.otlpInsecure, "otlp-insecure", false, "Disable TLS for the OTLP endpoint")
	cmd.Flags().StringVar(&rc.prometheusAddr, "prometheus-addr", "", "Serve Prometheus metrics on this address during the run")

	return cmd
}

func (rc *ReportCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := rc.loadConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.Source.Repository == "" {
		return config.ErrMissingRepository
	}

	if rc.from <= 0 || (rc.to <= 0 && cfg.Source.Type != "git") {
		return ErrRangeRequired
	}

	targets, err := rc.buildTargets(cfg)
	if err != nil {
		return err
	}

	providers, registry, err := rc.initTelemetry(cfg)
	if err != nil {
		return err
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("telemetry shutdown failed", "error", shutdownErr)
		}
	}()

	stopMetrics := rc.serveMetrics(cfg, registry, providers)
	defer stopMetrics()

	policy, err := pipeline.ParsePolicy(cfg.Pipeline.OnError)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		From: rc.from,
		To:   rc.to,
		Criteria: churn.Criteria{
			Author:           rc.author,
			IncludeExts:      rc.includeExts,
			ExcludeExts:      rc.excludeExts,
			ExcludeGlobs:     rc.excludeGlobs,
			IgnoreWhitespace: rc.ignoreWhitespace,
			IgnoreEOL:        rc.ignoreEOL,
		},
		Workers: cfg.Pipeline.Workers,
		Policy:  policy,
	}

	result, err := rc.exec(cmd.Context(), cfg, opts, providers)
	if err != nil {
		return err
	}

	sink := report.NewSink(targets, cmd.OutOrStdout(), providers.Logger)

	return sink.Write(result, report.Options{
		PerRevision: cfg.Output.PerRevision,
		NoColor:     cfg.Output.NoColor,
	})
}

// loadConfig loads the config file and layers changed flags over it.
func (rc *ReportCommand) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(rc.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	if flags.Changed("repo") {
		cfg.Source.Repository = rc.repo
	}

	if flags.Changed("vcs") {
		cfg.Source.Type = rc.vcsType
	}

	if flags.Changed("source-timeout") {
		cfg.Source.Timeout = rc.sourceTimeout
	}

	if flags.Changed("workers") {
		cfg.Pipeline.Workers = rc.workers
	}

	if flags.Changed("on-error") {
		cfg.Pipeline.OnError = rc.onError
	}

	if flags.Changed("cache-dir") {
		cfg.Cache.Enabled = rc.cacheDir != ""
		cfg.Cache.Directory = rc.cacheDir
	}

	if flags.Changed("format") {
		cfg.Output.Formats = rc.formats
	}

	if flags.Changed("per-revision") {
		cfg.Output.PerRevision = rc.perRevision
	}

	if flags.Changed("no-color") {
		cfg.Output.NoColor = rc.noColor
	}

	if flags.Changed("log-level") {
		cfg.Logging.Level = rc.logLevel
	}

	if flags.Changed("log-format") {
		cfg.Logging.Format = rc.logFormat
	}

	if flags.Changed("otlp-endpoint") {
		cfg.Telemetry.OTLPEndpoint = rc.otlpEndpoint
	}

	if flags.Changed("otlp-insecure") {
		cfg.Telemetry.OTLPInsecure = rc.otlpInsecure
	}

	if flags.Changed("prometheus-addr") {
		cfg.Telemetry.PrometheusAddr = rc.prometheusAddr
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return cfg, nil
}

// buildTargets pairs requested formats with output paths by position.
// Formats without a matching output path go to stdout.
func (rc *ReportCommand) buildTargets(cfg *config.Config) ([]report.Target, error) {
	if len(rc.outputs) > len(cfg.Output.Formats) {
		return nil, fmt.Errorf("%w: %d output paths for %d formats",
			churn.ErrValidation, len(rc.outputs), len(cfg.Output.Formats))
	}

	targets := make([]report.Target, 0, len(cfg.Output.Formats))

	for i, name := range cfg.Output.Formats {
		format, err := report.ParseFormat(name)
		if err != nil {
			return nil, err
		}

		target := report.Target{Format: format}
		if i < len(rc.outputs) {
			target.Path = rc.outputs[i]
		}

		targets = append(targets, target)
	}

	return targets, nil
}

func (rc *ReportCommand) initTelemetry(cfg *config.Config) (observability.Providers, *promclient.Registry, error) {
	var registry *promclient.Registry

	obsCfg := observability.Config{
		ServiceVersion: version.Version,
		Environment:    cfg.Telemetry.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
		LogLevel:       cfg.Logging.Level,
		LogFormat:      cfg.Logging.Format,
	}

	if cfg.Telemetry.PrometheusAddr != "" {
		registry = promclient.NewRegistry()
		obsCfg.PrometheusRegisterer = registry
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return observability.Providers{}, nil, fmt.Errorf("init telemetry: %w", err)
	}

	return providers, registry, nil
}

// serveMetrics exposes the Prometheus registry for the duration of the run
// when an address is configured. The returned stop function shuts the
// listener down.
func (rc *ReportCommand) serveMetrics(
	cfg *config.Config, registry *promclient.Registry, providers observability.Providers,
) func() {
	if registry == nil {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              cfg.Telemetry.PrometheusAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		serveErr := server.ListenAndServe()
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			providers.Logger.Warn("metrics listener failed", "error", serveErr)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
	}
}

// executeChurn builds the configured source and runs the pipeline.
func executeChurn(
	ctx context.Context,
	cfg *config.Config,
	opts pipeline.Options,
	providers observability.Providers,
) (churn.Result, error) {
	metrics, err := observability.NewPipelineMetrics(providers.Meter)
	if err != nil {
		return churn.Result{}, fmt.Errorf("init pipeline metrics: %w", err)
	}

	var (
		logs  vcs.LogSource
		diffs vcs.DiffSource
		done  func()
	)

	switch cfg.Source.Type {
	case "git":
		source, openErr := vcs.OpenGit(cfg.Source.Repository)
		if openErr != nil {
			return churn.Result{}, openErr
		}

		if opts.To <= 0 {
			opts.To = source.MaxRevision()
		}

		logs, diffs, done = source, source, source.Close
	default:
		source := vcs.NewSVN(cfg.Source.Repository, cfg.Source.Timeout)
		logs, diffs, done = source, source, func() {}
	}

	defer done()

	if cfg.Cache.Enabled && cfg.Cache.Directory != "" {
		cached, cacheErr := vcs.NewDiffCache(cfg.Cache.Directory, cfg.Source.Repository, diffs, providers.Logger)
		if cacheErr != nil {
			return churn.Result{}, cacheErr
		}

		diffs = cached
	}

	runner := pipeline.NewRunner(vcs.NewEnumerator(logs), diffs, providers.Logger, metrics)

	return runner.Run(ctx, opts)
}
