package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xumezzan/marketplace-project/internal/app"
	"github.com/xumezzan/marketplace-project/internal/domain"
	"github.com/xumezzan/marketplace-project/internal/engine"
	"github.com/xumezzan/marketplace-project/internal/repo"
)

func specialistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "specialist",
		Aliases: []string{"spec"},
		Short:   "Manage and search specialist profiles",
	}
	cmd.AddCommand(specialistAddCmd())
	cmd.AddCommand(specialistListCmd())
	cmd.AddCommand(specialistShowCmd())
	cmd.AddCommand(portfolioCmd())
	return cmd
}

func specialistAddCmd() *cobra.Command {
	var opts engine.SpecialistOptions
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create or update a specialist profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = clientID()
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				s, err := a.Engine.UpsertSpecialist(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "profile id (update when set)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "full name")
	cmd.Flags().StringVar(&opts.Profession, "profession", "", "profession")
	cmd.Flags().StringVar(&opts.HourlyRate, "rate", "", "hourly rate, e.g. 1500")
	cmd.Flags().StringVar(&opts.About, "about", "", "profile description")
	cmd.Flags().StringVar(&opts.AvatarURL, "avatar", "", "avatar URL")
	cmd.Flags().StringSliceVar(&opts.Categories, "category", nil, "category (repeatable)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("profession")
	return cmd
}

func specialistListCmd() *cobra.Command {
	var f repo.SpecialistFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Search specialists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListSpecialists(ctx, f)
				if err != nil {
					return err
				}
				return printSpecialists(items)
			})
		},
	}
	cmd.Flags().StringVar(&f.Category, "category", "", "category filter")
	cmd.Flags().StringVarP(&f.Query, "query", "q", "", "match name or profession")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "maximum rows")
	return cmd
}

func specialistShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <specialist-id>",
		Short: "Show a profile with portfolio and reviews",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				s, err := a.Engine.GetSpecialist(ctx, args[0])
				if err != nil {
					return err
				}
				if isJSON() {
					return printJSON(s)
				}
				return printMarkdown(specialistMarkdown(s))
			})
		},
	}
}

func specialistMarkdown(s domain.Specialist) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", s.Name)
	fmt.Fprintf(&b, "**%s** · ★ %.1f (%d) · %s ₽/ч\n\n", s.Profession, s.Rating, s.ReviewsCount, s.HourlyRate)
	if s.About != "" {
		fmt.Fprintf(&b, "%s\n\n", s.About)
	}
	if len(s.Portfolio) > 0 {
		b.WriteString("## Портфолио\n\n")
		for _, p := range s.Portfolio {
			fmt.Fprintf(&b, "- **%s** %s\n", p.Title, p.Description)
		}
		b.WriteString("\n")
	}
	if len(s.Reviews) > 0 {
		b.WriteString("## Отзывы\n\n")
		for _, r := range s.Reviews {
			fmt.Fprintf(&b, "> %s\n>\n> %s, %s, %s\n\n", r.Text, strings.Repeat("★", r.Rating), r.Author, r.Date)
		}
	}
	return b.String()
}

func portfolioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Manage portfolio items",
	}
	var opts engine.PortfolioOptions
	add := &cobra.Command{
		Use:   "add <specialist-id>",
		Short: "Add a portfolio item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.SpecialistID = args[0]
			opts.ActorID = clientID()
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				item, err := a.Engine.AddPortfolioItem(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(item)
			})
		},
	}
	add.Flags().StringVar(&opts.Title, "title", "", "title")
	add.Flags().StringVar(&opts.Description, "description", "", "description")
	add.Flags().StringVar(&opts.ImageURL, "image", "", "image URL")
	_ = add.MarkFlagRequired("title")
	cmd.AddCommand(add)
	return cmd
}

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Submit and read reviews",
	}
	var opts engine.ReviewOptions
	add := &cobra.Command{
		Use:   "add <specialist-id>",
		Short: "Submit a review; it goes to the top of the list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.SpecialistID = args[0]
			opts.ActorID = clientID()
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				r, err := a.Engine.SubmitReview(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(r)
			})
		},
	}
	add.Flags().StringVar(&opts.Text, "text", "", "review text")
	add.Flags().IntVar(&opts.Rating, "rating", 0, "rating 1-5 (default from config)")
	add.Flags().StringVar(&opts.Author, "author", "", "displayed author name")
	cmd.AddCommand(add)

	var limit int
	list := &cobra.Command{
		Use:   "list <specialist-id>",
		Short: "List reviews, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListReviews(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return printReviews(items)
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	cmd.AddCommand(list)
	return cmd
}
