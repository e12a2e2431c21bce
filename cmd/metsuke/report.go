package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/harunnryd/metsuke/internal/apicall"
	"github.com/harunnryd/metsuke/internal/audit"
	"github.com/harunnryd/metsuke/internal/config"
	"github.com/harunnryd/metsuke/internal/export"
	"github.com/harunnryd/metsuke/internal/export/formatter"
)

var reportOutput string

var reportCmd = &cobra.Command{
	Use:   "report <journal.jsonl>",
	Short: "Audit an exported interaction journal",
	Long:  `Replays a JSONL interaction journal and runs the completeness audit over it.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := formatter.ParseOutputFormat(reportOutput)
		if err != nil {
			return err
		}

		records, err := export.ReadJournal(args[0])
		if err != nil {
			return fmt.Errorf("read journal: %w", err)
		}
		slog.Info("Journal loaded", "path", args[0], "records", len(records))

		gapThreshold, err := config.DurationOrDefault(cfg.Validator.GapThreshold, config.DefaultValidatorGapThreshold)
		if err != nil {
			return err
		}

		// Journals carry no call records, so the call side of the audit is an
		// empty tracker here.
		source := export.NewReplaySource(records)
		validator := audit.NewValidator(source, apicall.NewTracker(nil, apicall.TrackerOptions{}), nil, audit.Options{
			OrphanPenalty:  cfg.Validator.OrphanPenalty,
			ScoreThreshold: cfg.Validator.ScoreThreshold,
			GapThreshold:   gapThreshold,
			MaxGapFindings: cfg.Validator.MaxGapFindings,
		})

		report, err := validator.ValidateComprehensive()
		if err != nil {
			slog.Warn("Comprehensive validation failed, falling back to quick audit", "error", err)
			report = validator.Validate()
		}

		f, err := formatter.NewFormatterFactory().Create(format)
		if err != nil {
			return err
		}
		out, err := f.FormatReport(report)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), out)

		if report.IntegrityScore < cfg.Validator.ScoreThreshold {
			slog.Warn("Journal failed the integrity threshold",
				"score", report.IntegrityScore,
				"threshold", cfg.Validator.ScoreThreshold,
				"generated_at", report.GeneratedAt.Format(time.RFC3339),
			)
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "table", "output format (table, json, yaml)")
	rootCmd.AddCommand(reportCmd)
}
