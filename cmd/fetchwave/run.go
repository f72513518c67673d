package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/fetchwave/fetchwave/pkg/engine"
	"github.com/fetchwave/fetchwave/pkg/export"
	"github.com/fetchwave/fetchwave/pkg/logging"
	"github.com/fetchwave/fetchwave/pkg/stats"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a request batch from a run file",
	Long: `Execute the batch described by a YAML run file.

The command registers every declared endpoint, fires the request batch,
follows handler-spawned requests until no generation spawns more, then
writes the export document and prints a statistics summary.

The batch stops early on SIGINT or SIGTERM; requests already admitted
run to completion.

Example:
  fetchwave run -f run.yaml
  fetchwave run -f run.yaml --log-level debug`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("file", "f", "", "path to the run file (required)")
	_ = runCmd.MarkFlagRequired("file")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	runCmd.Flags().Bool("pretty", false, "human-readable log output")
}

func runBatch(cmd *cobra.Command, args []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	pretty, _ := cmd.Flags().GetBool("pretty")
	logging.Setup(logging.Config{Level: logging.LogLevel(level), Pretty: pretty, Output: os.Stderr})
	logger := logging.NewLogger("cli")

	file, _ := cmd.Flags().GetString("file")
	rf, err := loadRunFile(file)
	if err != nil {
		return err
	}

	if rf.MetricsListen != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info().Str("addr", rf.MetricsListen).Msg("Metrics listener started")
			if err := http.ListenAndServe(rf.MetricsListen, mux); err != nil {
				logger.Error().Err(err).Msg("Metrics listener failed")
			}
		}()
	}

	var opts []engine.Option

	var recorder *export.Recorder
	if rf.ExportPath != "" {
		recorder = export.NewRecorder(export.Options{Path: rf.ExportPath})
		opts = append(opts, engine.WithHandler(recorder))
	}

	if rf.wantsProgress() {
		bar := progressbar.NewOptions(0,
			progressbar.OptionSetDescription("requests"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWriter(os.Stderr),
		)
		opts = append(opts, engine.WithProgress(func(done, total int) {
			bar.ChangeMax(total)
			_ = bar.Set(done)
		}))
	}

	client, err := engine.New(opts...)
	if err != nil {
		return fmt.Errorf("build client: %w", err)
	}
	defer client.Close()

	for _, spec := range rf.Endpoints {
		cfg, err := spec.endpoint()
		if err != nil {
			return err
		}
		if err := client.Register(spec.BaseURL, cfg); err != nil {
			return fmt.Errorf("register %s: %w", spec.BaseURL, err)
		}
	}

	methods, urls, payloads, settings := rf.batch()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := client.Run(ctx, methods, urls, payloads, settings); err != nil {
		return fmt.Errorf("run batch: %w", err)
	}

	if recorder != nil {
		if err := recorder.Flush(); err != nil {
			return fmt.Errorf("export results: %w", err)
		}
	}

	printStats(cmd, client.Stats())
	return nil
}

func printStats(cmd *cobra.Command, snap stats.Snapshot) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nRequests:   %d\n", snap.TotalRequests)
	fmt.Fprintf(out, "Successful: %d\n", snap.Successful)
	fmt.Fprintf(out, "Errors:     %d (%.1f%%)\n", snap.TotalErrors, snap.ErrorRate*100)
	fmt.Fprintf(out, "Deduped:    %d\n", snap.Deduped)
	fmt.Fprintf(out, "Elapsed:    %s\n", snap.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "Throughput: %.1f req/s\n", snap.Throughput)
}
