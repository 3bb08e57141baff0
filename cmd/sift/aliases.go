package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/calderhart/sift/internal/cli"
	"github.com/calderhart/sift/internal/merchant"
	"github.com/calderhart/sift/internal/model"
)

func aliasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aliases",
		Short: "Manage merchant normalization rules",
	}
	cmd.AddCommand(aliasesListCmd())
	cmd.AddCommand(aliasesAddCmd())
	cmd.AddCommand(aliasesCandidatesCmd())
	return cmd
}

func aliasesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List merchant alias rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			aliases, err := store.GetAliases(ctx)
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatTitle(fmt.Sprintf("%d alias rules", len(aliases))))
			for _, alias := range aliases {
				kind := "="
				if alias.Kind == model.MatchPrefix {
					kind = "^"
				}
				fmt.Printf("%s %-40q → %s %s\n",
					kind, alias.Pattern, alias.Canonical,
					cli.SubtleStyle.Render("("+string(alias.Source)+")"))
			}
			return nil
		},
	}
}

func aliasesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <pattern> <canonical>",
		Short: "Add a merchant alias rule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			prefix, _ := cmd.Flags().GetBool("prefix")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			kind := model.MatchExact
			if prefix {
				kind = model.MatchPrefix
			}

			if err := merchant.NewService(store).Learn(ctx, args[0], args[1], kind); err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("%q now normalizes to %s", args[0], args[1])))
			return nil
		},
	}

	cmd.Flags().Bool("prefix", false, "match any description beginning with the pattern")
	return cmd
}

func aliasesCandidatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "Show frequent raw descriptions with no alias rule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			limit, _ := cmd.Flags().GetInt("limit")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			candidates, err := store.GetNormalizationCandidates(ctx, limit)
			if err != nil {
				return err
			}
			if len(candidates) == 0 {
				fmt.Println(cli.FormatInfo("No normalization candidates."))
				return nil
			}

			fmt.Println(cli.FormatTitle("Normalization candidates"))
			for raw, cleaned := range candidates {
				fmt.Printf("%-50q → %s\n", raw, cleaned)
			}
			fmt.Println(cli.FormatInfo("Add rules with 'sift aliases add <pattern> <canonical>'."))
			return nil
		},
	}

	cmd.Flags().IntP("limit", "n", 20, "maximum candidates to show")
	return cmd
}
