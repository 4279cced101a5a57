package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/docker/go-units"
	"github.com/ethpandaops/resultsaggregator/pkg/aggregator"
	"github.com/ethpandaops/resultsaggregator/pkg/fsutil"
	"github.com/ethpandaops/resultsaggregator/pkg/records"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const stdinInput = "-"

var (
	aggregateInputs     []string
	aggregateFormat     string
	aggregateSortBy     string
	aggregateStaleAfter time.Duration
	aggregateOutput     string
	aggregateOwner      string
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Aggregate job snapshots into a summary",
	Long: `Classify and aggregate one or more snapshots of collected CI job results.
Each snapshot is a JSON or YAML document with a "jobs" list. Use "-" to read
a snapshot from stdin. The aggregated results are written as a JSON array in
input order.`,
	RunE: runAggregate,
}

func init() {
	rootCmd.AddCommand(aggregateCmd)
	aggregateCmd.Flags().StringSliceVar(&aggregateInputs, "input", []string{stdinInput},
		`Snapshot files to aggregate ("-" for stdin, can be repeated)`)
	aggregateCmd.Flags().StringVar(&aggregateFormat, "format", "",
		"Snapshot format (json or yaml); inferred from the file extension when empty")
	aggregateCmd.Flags().StringVar(&aggregateSortBy, "sort-by", "",
		"Job sort key (overrides aggregation.sort_by)")
	aggregateCmd.Flags().DurationVar(&aggregateStaleAfter, "stale-after", 0,
		"Mark results older than this as out of date (overrides aggregation.stale_after)")
	aggregateCmd.Flags().StringVar(&aggregateOutput, "output", "",
		"Output file path (default: stdout)")
	aggregateCmd.Flags().StringVar(&aggregateOwner, "output-owner", "",
		"Owner of the output file as UID:GID")
}

// snapshotResult is the aggregation of a single input snapshot.
type snapshotResult struct {
	Input  string                 `json:"input"`
	Result *aggregator.Aggregated `json:"result"`
}

func runAggregate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := cfg.AggregatorOptions()

	if cmd.Flags().Changed("sort-by") {
		opts.SortBy = aggregator.ParseSortKey(aggregateSortBy)
	}

	if cmd.Flags().Changed("stale-after") {
		opts.StaleAfter = aggregateStaleAfter
	}

	var forced records.Format

	if aggregateFormat != "" {
		if forced, err = records.ParseFormat(aggregateFormat); err != nil {
			return err
		}
	}

	results, err := aggregateSnapshots(
		cmd.Context(), log, aggregateInputs, forced, opts, cmd.InOrStdin(),
	)
	if err != nil {
		return err
	}

	owner, err := fsutil.ParseOwner(aggregateOwner)
	if err != nil {
		return fmt.Errorf("parsing output owner: %w", err)
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}

	data = append(data, '\n')

	if aggregateOutput == "" {
		if _, err := cmd.OutOrStdout().Write(data); err != nil {
			return fmt.Errorf("writing results: %w", err)
		}

		return nil
	}

	if err := fsutil.WriteReport(aggregateOutput, data, 0o644, owner); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}

	log.WithField("path", aggregateOutput).Info("Results written")

	return nil
}

// aggregateSnapshots decodes and aggregates every input concurrently. An
// empty format infers it from each input's extension.
func aggregateSnapshots(
	ctx context.Context,
	log logrus.FieldLogger,
	inputs []string,
	format records.Format,
	opts aggregator.Options,
	stdin io.Reader,
) ([]snapshotResult, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("at least one --input is required")
	}

	stdinUses := 0
	for _, input := range inputs {
		if input == stdinInput {
			stdinUses++
		}
	}

	if stdinUses > 1 {
		return nil, fmt.Errorf("stdin can only be read once")
	}

	agg := aggregator.New(log)
	results := make([]snapshotResult, len(inputs))

	g, gCtx := errgroup.WithContext(ctx)

	for i, input := range inputs {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			jobs, err := readSnapshot(input, format, stdin)
			if err != nil {
				return fmt.Errorf("reading %s: %w", input, err)
			}

			result, err := agg.Aggregate(jobs, opts)
			if err != nil {
				return fmt.Errorf("aggregating %s: %w", input, err)
			}

			log.WithField("input", input).
				WithField("jobs", len(jobs)).
				WithField("groups", len(result.Groups)).
				WithField("success", result.SuccessJobs+result.FixedJobs).
				WithField("failed", result.FailedJobs+result.KeepFailJobs).
				WithField("total_duration", units.HumanDuration(result.TotalDuration)).
				Info("Snapshot aggregated")

			results[i] = snapshotResult{Input: input, Result: result}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func readSnapshot(input string, format records.Format, stdin io.Reader) ([]*aggregator.Job, error) {
	if format == "" {
		format = records.FormatFromPath(input)
	}

	if input == stdinInput {
		return records.Decode(stdin, format)
	}

	f, err := os.Open(input)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	return records.Decode(f, format)
}
