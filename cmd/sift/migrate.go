package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calderhart/sift/internal/cli"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and seed data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStorage(store)

			fmt.Println(cli.FormatSuccess("Database is up to date"))
			return nil
		},
	}
}
