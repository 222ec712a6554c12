package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"streamstats-go/internal/workers"
	"streamstats-go/pkg/config"
	"streamstats-go/pkg/report"
	"streamstats-go/pkg/series"
	"streamstats-go/pkg/stats"
	"streamstats-go/pkg/storage"
	"streamstats-go/pkg/utils"
)

// stdinInput names standard input on the command line
const stdinInput = "-"

// NewAnalyzeCommand creates the analyze command
func NewAnalyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [inputs...]",
		Short: "Compute streaming statistics for one or more series",
		Long: `Read each input series once and report its count, mean, population variance,
minimum, maximum and sample autocorrelation for lags 1..max-lag.

Inputs are paths relative to the configured bucket/directory, or "-" for
standard input. With no inputs, every object under the directory that matches
--extensions is analyzed. Each series gets its own accumulator.`,
		Example: `  # Single file, lags 1..3
  streamstats analyze --max-lag 3 latency.txt

  # Second column of a CSV from stdin, markdown report
  cat metrics.csv | streamstats analyze --column 2 --format markdown -

  # Every .csv object under s3://metrics/daily
  streamstats analyze --backend aws --bucket metrics --directory daily --extensions .csv`,
		RunE: runAnalyze,
	}

	addAnalyzeFlags(cmd)
	return cmd
}

func addAnalyzeFlags(cmd *cobra.Command) {
	// Accumulator
	cmd.Flags().Int("max-lag", config.DefaultMaxLag, "Largest autocorrelation lag to track (values below 1 become 1)")

	// Parsing
	cmd.Flags().Int("column", 0, "1-based column of delimited rows to read (0 reads every field)")
	cmd.Flags().Bool("skip-invalid", false, "Skip unparseable or non-finite values instead of failing the series")

	// Output
	cmd.Flags().String("format", config.DefaultFormat, "Report format (json, markdown)")
	cmd.Flags().StringP("output", "o", "", "Report output file (default: stdout)")

	// Processing
	cmd.Flags().Int("workers", config.DefaultWorkers, "Number of series analyzed concurrently")
	cmd.Flags().Duration("task-timeout", config.DefaultTaskTimeout, "Timeout for analyzing a single series (0 disables)")

	// Source
	cmd.Flags().String("backend", config.DefaultBackend, "Source backend (local, aws, http)")
	cmd.Flags().String("bucket", "", "Bucket name (aws), base directory (local) or base URL (http)")
	cmd.Flags().String("directory", "", "Directory within the bucket")
	cmd.Flags().String("aws-region", config.DefaultAWSRegion, "AWS region")
	cmd.Flags().String("aws-profile", "", "AWS shared config profile")
	cmd.Flags().String("aws-endpoint", "", "Custom S3-compatible endpoint")
	cmd.Flags().StringSlice("extensions", []string{}, "File extensions to include when listing (e.g. .csv,.txt)")
	cmd.Flags().Int("limit", 0, "Limit number of listed series (0 = no limit)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := LoggerFrom(ctx)

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	source, err := storage.NewSource(buildStorageConfig(cfg), logger)
	if err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}
	defer source.Close()

	logger.Info("Starting analysis",
		zap.Int("inputs", len(args)),
		zap.Int("max_lag", cfg.MaxLag),
		zap.String("backend", cfg.Backend))

	rep, err := executeAnalysis(ctx, cfg, source, args, cmd.InOrStdin(), logger)
	if err != nil {
		return err
	}

	if err := writeReport(rep, cfg, cmd.OutOrStdout()); err != nil {
		return err
	}

	if failed := rep.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d series failed", failed, len(rep.Series))
	}

	logger.Info("Analysis completed", zap.Int("series", len(rep.Series)))
	return nil
}

// buildStorageConfig maps the run configuration onto a source configuration
func buildStorageConfig(cfg *config.Config) *storage.StorageConfig {
	return &storage.StorageConfig{
		Backend:     storage.StorageBackend(cfg.Backend),
		Bucket:      cfg.Bucket,
		Directory:   cfg.Directory,
		AWSRegion:   cfg.AWSRegion,
		AWSProfile:  cfg.AWSProfile,
		AWSEndpoint: cfg.AWSEndpoint,
	}
}

// resolveInputs returns the explicit inputs, or lists the source when none
// were given.
func resolveInputs(ctx context.Context, cfg *config.Config, source storage.Source, inputs []string, logger *zap.Logger) ([]string, error) {
	if len(inputs) > 0 {
		stdinCount := 0
		for _, in := range inputs {
			if in == stdinInput {
				stdinCount++
			}
		}
		if stdinCount > 1 {
			return nil, fmt.Errorf("standard input can only be read once")
		}
		return inputs, nil
	}

	objects, err := source.ListObjects(ctx, storage.ListRequest{
		Bucket:     cfg.Bucket,
		Extensions: cfg.Extensions,
		Limit:      cfg.Limit,
	})
	if err != nil {
		return nil, utils.WrapError(err, "failed to list series")
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("no series found in %q", cfg.Bucket+"/"+cfg.Directory)
	}

	logger.Info("Discovered series", zap.Int("count", len(objects)))

	paths := make([]string, 0, len(objects))
	for _, obj := range objects {
		paths = append(paths, obj.Path)
	}
	return paths, nil
}

// executeAnalysis analyzes every input on a worker pool and gathers the
// per-series results into a report.
func executeAnalysis(ctx context.Context, cfg *config.Config, source storage.Source, inputs []string, stdin io.Reader, logger *zap.Logger) (*report.Report, error) {
	paths, err := resolveInputs(ctx, cfg, source, inputs, logger)
	if err != nil {
		return nil, err
	}

	pool := workers.NewWorkerPool(ctx, workers.WorkerPoolConfig{
		Workers:       cfg.Workers,
		QueueSize:     len(paths),
		WorkerTimeout: cfg.TaskTimeout,
	}, logger)
	if err := pool.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker pool: %w", err)
	}

	reader := series.NewReader(series.ReaderConfig{
		Column:      cfg.Column,
		SkipInvalid: cfg.SkipInvalid,
	}, logger)

	var (
		mu      sync.Mutex
		results = make(map[string]report.SeriesResult, len(paths))
		sealed  bool
	)
	outcomes := make(chan workers.TaskResult, len(paths))

	for _, path := range paths {
		path := path
		task := &workers.Task{
			ID:         path,
			ResultChan: outcomes,
			ProcessFunc: func(taskCtx context.Context) error {
				res, err := analyzeSeries(taskCtx, reader, source, path, stdin, cfg.MaxLag)
				if ctxErr := taskCtx.Err(); ctxErr != nil {
					// The pool has already counted this task as aborted
					return ctxErr
				}
				if err != nil {
					res.Error = err.Error()
				}
				mu.Lock()
				if !sealed {
					results[path] = res
				}
				mu.Unlock()
				return err
			},
		}
		if err := pool.SubmitTask(task); err != nil {
			pool.Shutdown()
			return nil, fmt.Errorf("failed to submit %s: %w", path, err)
		}
	}

	if err := pool.Shutdown(); err != nil {
		logger.Warn("Worker pool did not shut down cleanly", zap.Error(err))
	}

	poolStats := pool.Statistics()
	logger.Info("Series processed",
		zap.Int64("completed", poolStats.TasksCompleted),
		zap.Int64("failed", poolStats.TasksFailed))

	// Tasks abandoned on timeout or cancellation may still be running
	mu.Lock()
	sealed = true
	mu.Unlock()

	// The pool's verdict wins over a result stored by the task itself
	failures := make(map[string]error, len(paths))
drain:
	for {
		select {
		case outcome := <-outcomes:
			if !outcome.Success {
				failures[outcome.TaskID] = outcome.Error
			}
		default:
			break drain
		}
	}

	collected := make([]report.SeriesResult, 0, len(paths))
	for _, path := range paths {
		res, ok := results[path]
		if !ok {
			res = report.SeriesResult{Source: path}
			if path == stdinInput {
				res.Source = "stdin"
			}
		}
		if failure, failed := failures[path]; failed && res.Error == "" {
			res.Error = failure.Error()
		}
		if !ok && res.Error == "" {
			res.Error = "analysis aborted before completion"
		}
		collected = append(collected, res)
	}

	return report.New(cfg.MaxLag, collected), nil
}

// analyzeSeries streams one input through a fresh accumulator
func analyzeSeries(ctx context.Context, reader *series.Reader, source storage.Source, path string, stdin io.Reader, maxLag int) (report.SeriesResult, error) {
	start := time.Now()
	res := report.SeriesResult{Source: path}

	var rc io.ReadCloser
	if path == stdinInput {
		res.Source = "stdin"
		rc = io.NopCloser(stdin)
	} else {
		var err error
		rc, err = source.OpenObject(ctx, path)
		if err != nil {
			res.Duration = time.Since(start)
			return res, err
		}
	}
	defer rc.Close()

	s := stats.NewStreamingStats(maxLag)
	readResult, err := reader.ReadInto(ctx, rc, s)

	res.Summary = s.GetSummary()
	res.Lines = readResult.Lines
	res.Skipped = readResult.Skipped
	res.Duration = time.Since(start)

	if err != nil {
		return res, utils.WrapErrorf(err, "series %s", path)
	}
	if res.Summary.Count == 0 {
		return res, fmt.Errorf("series %s: no observations", path)
	}
	return res, nil
}

// writeReport renders the report to the configured output or to out
func writeReport(rep *report.Report, cfg *config.Config, out io.Writer) error {
	format := report.Format(cfg.Format)
	if cfg.Output == "" {
		return rep.Write(out, format)
	}
	if err := rep.WriteFile(cfg.Output, format); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Report written to %s\n", cfg.Output)
	return nil
}
