package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xumezzan/marketplace-project/internal/app"
	"github.com/xumezzan/marketplace-project/internal/domain"
	"github.com/xumezzan/marketplace-project/internal/drafting"
	"github.com/xumezzan/marketplace-project/internal/engine"
	"github.com/xumezzan/marketplace-project/internal/repo"
	"github.com/xumezzan/marketplace-project/internal/wizard"
)

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Draft, publish and browse tasks",
	}
	task.AddCommand(taskDraftCmd())
	task.AddCommand(taskDescribeCmd())
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskWizardCmd())
	return task
}

func taskDraftCmd() *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "draft <description...>",
		Short: "Draft a task from free text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			locale, err := drafting.ParseLocale(lang)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				draft, err := a.Engine.DraftTask(ctx, strings.Join(args, " "), locale, clientID())
				if err != nil {
					return err
				}
				return printJSONOrTable(draft)
			})
		},
	}
	cmd.Flags().StringVar(&lang, "language", "ru", "output language (ru, uz)")
	return cmd
}

func taskDescribeCmd() *cobra.Command {
	var title, category, lang string
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Generate a description for a title",
		RunE: func(cmd *cobra.Command, args []string) error {
			locale, err := drafting.ParseLocale(lang)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				text, err := a.Engine.DescribeTask(ctx, title, category, locale, clientID())
				if err != nil {
					return err
				}
				fmt.Println(text)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&category, "category", "", "task category")
	cmd.Flags().StringVar(&lang, "language", "ru", "output language (ru, uz)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	var budgetMin, budgetMax float64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("budget-min") {
				opts.BudgetMin = &budgetMin
			}
			if cmd.Flags().Changed("budget-max") {
				opts.BudgetMax = &budgetMax
			}
			opts.ClientID = clientID()
			if strings.TrimSpace(opts.Category) == "" {
				opts.Category = wizard.FallbackCategory
			}
			if strings.TrimSpace(opts.Location) == "" {
				opts.Location = wizard.FallbackLocation
			}
			if strings.TrimSpace(opts.Date) == "" {
				opts.Date = wizard.FallbackDate
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Engine.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category")
	cmd.Flags().Float64Var(&budgetMin, "budget-min", 0, "minimum budget")
	cmd.Flags().Float64Var(&budgetMax, "budget-max", 0, "maximum budget")
	cmd.Flags().StringVar(&opts.Location, "location", "", "location")
	cmd.Flags().StringVar(&opts.Date, "date", "", "when the work is needed")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilters
	var mine bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if mine {
				f.ClientID = clientID()
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListTasks(ctx, f)
				if err != nil {
					return err
				}
				return printTasks(items)
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter (open, in_progress, completed)")
	cmd.Flags().StringVar(&f.Category, "category", "", "category filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "maximum rows")
	cmd.Flags().BoolVar(&mine, "mine", false, "only tasks of --client-id")
	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Engine.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				if isJSON() {
					return printJSON(t)
				}
				return printMarkdown(taskMarkdown(t))
			})
		},
	}
}

func taskMarkdown(t domain.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", t.Title)
	fmt.Fprintf(&b, "**%s** · %s · `%s`\n\n", t.Category, budgetString(t.BudgetMin, t.BudgetMax), t.Status)
	if t.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", t.Description)
	}
	fmt.Fprintf(&b, "- Где: %s\n- Когда: %s\n- ID: `%s`\n", t.Location, t.Date, t.ID)
	return b.String()
}
