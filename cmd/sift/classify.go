package main

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/calderhart/sift/internal/cli"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Categorize unclassified transactions",
		Long: `Categorize every stored transaction that has no classification yet.

High-confidence results are applied silently; mid-confidence results are
queued for review, and low-confidence transactions land in Uncategorized
with a high-priority question. Run 'sift review' afterwards to answer the
queue.`,
		RunE: runClassify,
	}

	cmd.Flags().String("from", "", "only classify transactions on or after this date (YYYY-MM-DD)")
	return cmd
}

func runClassify(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	var fromDate *time.Time
	if fromFlag, _ := cmd.Flags().GetString("from"); fromFlag != "" {
		parsed, err := parseDate(fromFlag)
		if err != nil {
			return err
		}
		fromDate = &parsed
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	eng, cleanup, err := buildEngine(store)
	if err != nil {
		return err
	}
	defer cleanup()

	var bar *progressbar.ProgressBar
	progress := func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("classifying"),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}
		_ = bar.Set(done)
	}

	stats, err := eng.ClassifyNew(ctx, fromDate, progress)
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf(
		"Classified %d transactions: %d auto-assigned, %d need review, %d uncategorized, %d skipped, %d failed",
		stats.Total, stats.AutoAssigned, stats.NeedsReview, stats.Uncategorized, stats.Skipped, stats.Failed)))

	if stats.NeedsReview+stats.Uncategorized > 0 {
		fmt.Println(cli.FormatInfo("Run 'sift review' to answer pending questions."))
	}
	return nil
}
