package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/calderhart/sift/internal/cli"
	"github.com/calderhart/sift/internal/taxonomy"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Answer pending classification questions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			limit, _ := cmd.Flags().GetInt("limit")

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

			prompter := cli.NewPrompter(
				store,
				eng,
				taxonomy.NewManager(store),
				os.Stdin,
				os.Stdout,
				viper.GetString("user.id"),
			)

			_, err = prompter.Run(ctx, limit)
			return err
		},
	}

	cmd.Flags().IntP("limit", "n", 50, "maximum questions to review in this session")
	return cmd
}
