package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/calderhart/sift/internal/cli"
	"github.com/calderhart/sift/internal/ingest"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import transactions from OFX files or Plaid",
	}
	cmd.AddCommand(importOFXCmd())
	cmd.AddCommand(importPlaidCmd())
	return cmd
}

func importOFXCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ofx <file>...",
		Short: "Import transactions from OFX/QFX statement files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			parser := ingest.NewOFXParser()
			importer := ingest.NewImporter(store, accountPurposes(), nil)

			total := 0
			for _, path := range args {
				f, err := os.Open(path) // #nosec G304
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", path, err)
				}

				txns, parseErr := parser.ParseFile(ctx, f)
				_ = f.Close()
				if parseErr != nil {
					return fmt.Errorf("failed to parse %s: %w", path, parseErr)
				}

				count, importErr := importer.Import(ctx, txns)
				if importErr != nil {
					return importErr
				}
				total += count
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Imported %d transactions from %d files", total, len(args))))
			return nil
		},
	}
}

func importPlaidCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plaid",
		Short: "Import transactions from the Plaid API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			startFlag, _ := cmd.Flags().GetString("start")
			endFlag, _ := cmd.Flags().GetString("end")

			endDate := time.Now()
			if endFlag != "" {
				parsed, err := parseDate(endFlag)
				if err != nil {
					return err
				}
				endDate = parsed
			}
			startDate := endDate.AddDate(0, -1, 0)
			if startFlag != "" {
				parsed, err := parseDate(startFlag)
				if err != nil {
					return err
				}
				startDate = parsed
			}

			client, err := ingest.NewPlaidClient(ingest.PlaidConfig{
				ClientID:    viper.GetString("plaid.client_id"),
				Secret:      viper.GetString("plaid.secret"),
				Environment: viper.GetString("plaid.environment"),
				AccessToken: viper.GetString("plaid.access_token"),
			})
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			txns, err := client.GetTransactions(ctx, startDate, endDate)
			if err != nil {
				return err
			}

			importer := ingest.NewImporter(store, accountPurposes(), nil)
			count, err := importer.Import(ctx, txns)
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Imported %d transactions from Plaid", count)))
			return nil
		},
	}

	cmd.Flags().String("start", "", "start date (YYYY-MM-DD, default: one month before end)")
	cmd.Flags().String("end", "", "end date (YYYY-MM-DD, default: today)")
	return cmd
}
