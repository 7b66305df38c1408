package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/docmill/docmill/internal/config"
	"github.com/docmill/docmill/internal/discover"
	"github.com/docmill/docmill/internal/enrich"
	"github.com/docmill/docmill/internal/flatten"
	"github.com/docmill/docmill/internal/layout"
	"github.com/docmill/docmill/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run [inputs...]",
	Short: "Process a batch of PDFs (directories or explicit files)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRun,
	// Exit codes: 0 all documents succeeded, 1 run could not start,
	// 2 at least one document failed.
	SilenceUsage: true,
}

var (
	flagConfig         string
	flagOutput         string
	flagRecursive      bool
	flagWorkers        int
	flagLang           string
	flagExtractor      string
	flagEnrichURL      string
	flagEnrichTimeout  time.Duration
	flagEnrichAttempts int
	flagNoEnrich       bool
	flagCaptionDist    float64
	flagLogLevel       string
)

func init() {
	f := runCmd.Flags()
	f.StringVar(&flagConfig, "config", "", "path to YAML config file")
	f.StringVarP(&flagOutput, "output", "o", "", "output root directory (required unless set via env/config)")
	f.BoolVarP(&flagRecursive, "recursive", "r", false, "recurse into subdirectories of directory inputs")
	f.IntVarP(&flagWorkers, "workers", "w", 0, "worker pool size")
	f.StringVar(&flagLang, "lang", "", "language hint forwarded to the layout engine")
	f.StringVar(&flagExtractor, "extractor", "", "layout engine binary")
	f.StringVar(&flagEnrichURL, "enrich-url", "", "bibliographic service base URL")
	f.DurationVar(&flagEnrichTimeout, "enrich-timeout", 0, "per-call enrichment timeout")
	f.IntVar(&flagEnrichAttempts, "enrich-attempts", 0, "max attempts per enrichment endpoint")
	f.BoolVar(&flagNoEnrich, "no-enrich", false, "skip enrichment entirely")
	f.Float64Var(&flagCaptionDist, "caption-proximity", 0, "caption association distance threshold")
	f.StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	if err := os.MkdirAll(cfg.OutputRoot, 0o755); err != nil {
		return fmt.Errorf("create output root: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	items, err := discover.Discover(args, discover.Options{Recursive: cfg.Recursive, Probe: cfg.ProbePDFs}, log)
	if err != nil {
		return err
	}

	worker := newWorker(cfg, log)
	orch := pipeline.New(worker, cfg.Workers, cfg.DocIDMetadataKey, log)

	summary := orch.Run(ctx, items)
	if err := summary.WriteReports(cfg.OutputRoot); err != nil {
		log.Warn("could not write run reports", "error", err)
	}
	for _, f := range summary.Failed {
		log.Error("document failed", "source", f.SourcePath, "stage", f.Stage, "message", f.Message)
	}

	if summary.AnyFailed() {
		os.Exit(2)
	}
	return nil
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Load()
	if flagConfig != "" {
		if err := cfg.ApplyFile(flagConfig); err != nil {
			return cfg, err
		}
	}

	f := cmd.Flags()
	if f.Changed("output") {
		cfg.OutputRoot = flagOutput
	}
	if f.Changed("recursive") {
		cfg.Recursive = flagRecursive
	}
	if f.Changed("workers") {
		cfg.Workers = flagWorkers
	}
	if f.Changed("lang") {
		cfg.Lang = flagLang
	}
	if f.Changed("extractor") {
		cfg.ExtractorBin = flagExtractor
	}
	if f.Changed("enrich-url") {
		cfg.EnrichURL = flagEnrichURL
	}
	if f.Changed("enrich-timeout") {
		cfg.EnrichTimeout = flagEnrichTimeout
	}
	if f.Changed("enrich-attempts") {
		cfg.EnrichAttempts = flagEnrichAttempts
	}
	if f.Changed("no-enrich") {
		cfg.EnrichDisabled = flagNoEnrich
	}
	if f.Changed("caption-proximity") {
		cfg.CaptionProximity = flagCaptionDist
	}
	if f.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	return cfg, nil
}

// newWorker assembles the per-document pipeline from configuration.
func newWorker(cfg config.Config, log *slog.Logger) *pipeline.Worker {
	w := &pipeline.Worker{
		Extractor:  &layout.CommandExtractor{Binary: cfg.ExtractorBin, Lang: cfg.Lang, Log: log},
		OutputRoot: cfg.OutputRoot,
		Flatten:    flatten.Options{CaptionProximity: cfg.CaptionProximity},
		Log:        log,
	}
	if !cfg.EnrichDisabled {
		w.Enricher = enrich.NewClient(cfg.EnrichURL, cfg.EnrichTimeout, cfg.EnrichAttempts, log)
	}
	return w
}
