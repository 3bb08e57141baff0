package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calderhart/sift/internal/cli"
	"github.com/calderhart/sift/internal/subscription"
)

func subscriptionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscriptions",
		Short: "Detect and list recurring charges",
	}
	cmd.AddCommand(subscriptionsDetectCmd())
	cmd.AddCommand(subscriptionsListCmd())
	return cmd
}

func subscriptionsDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Recompute subscription records from transaction history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			detected, err := subscription.NewDetector(store, nil).DetectAll(ctx)
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Detected %d recurring merchants", detected)))
			return nil
		},
	}
}

func subscriptionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active subscription records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			records, err := store.GetActiveSubscriptionRecords(ctx)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println(cli.FormatInfo("No subscriptions detected. Run 'sift subscriptions detect' first."))
				return nil
			}

			fmt.Println(cli.FormatTitle(fmt.Sprintf("%d subscriptions", len(records))))
			for _, record := range records {
				line := fmt.Sprintf("%-30s %-10s $%.2f  last seen %s",
					record.Merchant, record.Frequency, record.MedianAmount,
					record.LastSeen.Format("2006-01-02"))
				switch {
				case record.LikelyStopped:
					line += "  " + cli.WarningStyle.Render("likely stopped")
				case record.Stable:
					line += "  " + cli.SuccessStyle.Render("stable")
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}
