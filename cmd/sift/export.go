package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/calderhart/sift/internal/cli"
	"github.com/calderhart/sift/internal/export"
	"github.com/calderhart/sift/internal/service"
	"github.com/calderhart/sift/internal/tax"
	"github.com/calderhart/sift/internal/taxonomy"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export Schedule C tax reports",
	}
	cmd.AddCommand(exportCSVCmd())
	cmd.AddCommand(exportSheetsCmd())
	return cmd
}

// reportRange resolves the --year/--start/--end flags into a date range,
// defaulting to the previous calendar year.
func reportRange(cmd *cobra.Command) (time.Time, time.Time, error) {
	year, _ := cmd.Flags().GetInt("year")
	startFlag, _ := cmd.Flags().GetString("start")
	endFlag, _ := cmd.Flags().GetString("end")

	if startFlag != "" || endFlag != "" {
		if startFlag == "" || endFlag == "" {
			return time.Time{}, time.Time{}, fmt.Errorf("--start and --end must be used together")
		}
		start, err := parseDate(startFlag)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end, err := parseDate(endFlag)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return start, end, nil
	}

	if year == 0 {
		year = time.Now().Year() - 1
	}
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, 12, 31, 23, 59, 59, 0, time.UTC)
	return start, end, nil
}

func buildReport(cmd *cobra.Command) (*service.ScheduleCReport, func(), error) {
	ctx := cmd.Context()

	start, end, err := reportRange(cmd)
	if err != nil {
		return nil, nil, err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return nil, nil, err
	}

	mapper := tax.NewMapper(store, taxonomy.NewManager(store), viper.GetString("user.id"), nil)
	report, err := mapper.ScheduleC(ctx, start, end)
	if err != nil {
		closeStorage(store)
		return nil, nil, err
	}

	return report, func() { closeStorage(store) }, nil
}

func exportCSVCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Write the Schedule C report as CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, _ := cmd.Flags().GetString("out")

			report, cleanup, err := buildReport(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			w := os.Stdout
			if out != "" {
				f, err := os.Create(out) // #nosec G304
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				defer func() { _ = f.Close() }()
				w = f
			}

			if err := export.WriteCSV(w, report); err != nil {
				return err
			}

			if out != "" {
				fmt.Println(cli.FormatSuccess(fmt.Sprintf(
					"Wrote %d rows ($%.2f total) to %s", len(report.Rows), report.Total, out)))
			}
			return nil
		},
	}

	addRangeFlags(cmd)
	cmd.Flags().StringP("out", "o", "", "output file (default: stdout)")
	return cmd
}

func exportSheetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Write the Schedule C report to Google Sheets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			report, cleanup, err := buildReport(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			cfg := export.DefaultSheetsConfig()
			cfg.ClientID = viper.GetString("sheets.client_id")
			cfg.ClientSecret = viper.GetString("sheets.client_secret")
			cfg.RefreshToken = viper.GetString("sheets.refresh_token")
			cfg.ServiceAccountPath = viper.GetString("sheets.service_account_path")
			cfg.SpreadsheetID = viper.GetString("sheets.spreadsheet_id")
			if name := viper.GetString("sheets.spreadsheet_name"); name != "" {
				cfg.SpreadsheetName = name
			}

			writer, err := export.NewSheetsWriter(ctx, cfg, nil)
			if err != nil {
				return err
			}
			if err := writer.Write(ctx, report); err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf(
				"Exported %d rows ($%.2f total) to Google Sheets", len(report.Rows), report.Total)))
			return nil
		},
	}

	addRangeFlags(cmd)
	return cmd
}

func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("year", "y", 0, "tax year (default: last year)")
	cmd.Flags().String("start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "end date (YYYY-MM-DD)")
}
