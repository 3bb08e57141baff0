package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/calderhart/sift/internal/cli"
	"github.com/calderhart/sift/internal/model"
	"github.com/calderhart/sift/internal/taxonomy"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage the category taxonomy",
	}
	cmd.AddCommand(categoriesListCmd())
	cmd.AddCommand(categoriesAddCmd())
	cmd.AddCommand(categoriesUpdateCmd())
	cmd.AddCommand(categoriesDeleteCmd())
	return cmd
}

func categoriesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List categories as a tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			snap, err := taxonomy.NewManager(store).Snapshot(ctx, viper.GetString("user.id"))
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatTitle("Categories"))
			for _, cat := range snap.All() {
				depth := len(snap.Breadcrumb(cat.Slug)) - 1
				indent := strings.Repeat("  ", depth)

				line := fmt.Sprintf("%s%s %s (%s)", indent, cat.Icon, cat.Name, cat.Slug)
				if cat.TaxScheduleLine != "" {
					line += cli.SubtleStyle.Render(fmt.Sprintf("  [line %s]", cat.TaxScheduleLine))
				}
				if !cat.IsSystem() {
					line += cli.InfoStyle.Render("  *custom")
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func categoriesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <slug>",
		Short: "Add a category to your taxonomy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			name, _ := cmd.Flags().GetString("name")
			parent, _ := cmd.Flags().GetString("parent")
			taxLine, _ := cmd.Flags().GetString("tax-line")
			deductible, _ := cmd.Flags().GetBool("deductible")
			keywords, _ := cmd.Flags().GetStringSlice("keywords")

			if name == "" {
				name = args[0]
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			category := &model.Category{
				Slug:                  args[0],
				Name:                  name,
				ParentSlug:            parent,
				TaxScheduleLine:       taxLine,
				IsTypicallyDeductible: deductible,
				Keywords:              keywords,
				UserID:                viper.GetString("user.id"),
			}

			created, err := taxonomy.NewManager(store).Create(ctx, category)
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created category %s", created.Slug)))
			return nil
		},
	}

	cmd.Flags().String("name", "", "display name (default: the slug)")
	cmd.Flags().String("parent", "", "parent category slug")
	cmd.Flags().String("tax-line", "", "Schedule C line item (e.g. 24b)")
	cmd.Flags().Bool("deductible", false, "typically deductible for business accounts")
	cmd.Flags().StringSlice("keywords", nil, "keywords for the deterministic classifier")
	return cmd
}

func categoriesUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <slug>",
		Short: "Update a category you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			userID := viper.GetString("user.id")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			existing, err := store.GetCategoryBySlug(ctx, userID, args[0])
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("name") {
				existing.Name, _ = cmd.Flags().GetString("name")
			}
			if cmd.Flags().Changed("parent") {
				existing.ParentSlug, _ = cmd.Flags().GetString("parent")
			}
			if cmd.Flags().Changed("tax-line") {
				existing.TaxScheduleLine, _ = cmd.Flags().GetString("tax-line")
			}
			if cmd.Flags().Changed("deductible") {
				existing.IsTypicallyDeductible, _ = cmd.Flags().GetBool("deductible")
			}
			if cmd.Flags().Changed("keywords") {
				existing.Keywords, _ = cmd.Flags().GetStringSlice("keywords")
			}

			if err := taxonomy.NewManager(store).Update(ctx, existing); err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Updated category %s", args[0])))
			return nil
		},
	}

	cmd.Flags().String("name", "", "display name")
	cmd.Flags().String("parent", "", "parent category slug (empty for top level)")
	cmd.Flags().String("tax-line", "", "Schedule C line item")
	cmd.Flags().Bool("deductible", false, "typically deductible for business accounts")
	cmd.Flags().StringSlice("keywords", nil, "keywords for the deterministic classifier")
	return cmd
}

func categoriesDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <slug>",
		Short: "Delete a category you own",
		Long: `Delete one of your categories. Its classified transactions are re-routed
to the category named by --reassign (default: uncategorized) and flagged
for review.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reassign, _ := cmd.Flags().GetString("reassign")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			if err := taxonomy.NewManager(store).Delete(ctx, viper.GetString("user.id"), args[0], reassign); err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deleted category %s", args[0])))
			return nil
		},
	}

	cmd.Flags().String("reassign", "", "category to receive re-routed transactions")
	return cmd
}
