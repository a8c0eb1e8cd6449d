package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/xumezzan/marketplace-project/internal/app"
	"github.com/xumezzan/marketplace-project/internal/domain"
	"github.com/xumezzan/marketplace-project/internal/engine"
	"github.com/xumezzan/marketplace-project/internal/repo"
)

func dealCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deal",
		Short: "Safe deals: hire, confirm, dispute",
	}
	cmd.AddCommand(dealOpenCmd())
	cmd.AddCommand(dealHireCmd())
	cmd.AddCommand(dealActionCmd("confirm", "Confirm the work is done and release funds", func(ctx context.Context, e *engine.Engine, id string) (domain.Deal, error) {
		return e.ConfirmCompletion(ctx, id, clientID())
	}))
	cmd.AddCommand(dealDisputeCmd())
	cmd.AddCommand(dealDiscardCmd())
	cmd.AddCommand(dealActionCmd("show", "Show a deal", func(ctx context.Context, e *engine.Engine, id string) (domain.Deal, error) {
		return e.GetDeal(ctx, id)
	}))
	cmd.AddCommand(dealListCmd())
	return cmd
}

func dealOpenCmd() *cobra.Command {
	var opts engine.DealOpenOptions
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open a deal with a specialist (or return the active one)",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ClientID = clientID()
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				d, _, err := a.Engine.OpenDeal(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&opts.SpecialistID, "specialist", "", "specialist id")
	cmd.Flags().StringVar(&opts.TaskID, "task", "", "task id")
	cmd.Flags().StringVar(&opts.Amount, "amount", "", "amount to hold (default: hourly rate)")
	_ = cmd.MarkFlagRequired("specialist")
	return cmd
}

// dealHireCmd waits for the reservation by default: a pending deal left
// behind when the process exits is marked reservation_failed once its lease
// runs out.
func dealHireCmd() *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "hire <deal-id>",
		Short: "Hire the specialist and reserve funds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				d, err := a.Engine.Hire(ctx, args[0], clientID())
				if err != nil {
					return err
				}
				if wait > 0 {
					waitCtx, cancel := context.WithTimeout(ctx, wait)
					defer cancel()
					if err := a.Engine.WaitDeal(waitCtx, d.ID); err != nil {
						return err
					}
					if d, err = a.Engine.GetDeal(ctx, d.ID); err != nil {
						return err
					}
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", time.Minute, "how long to wait for the reservation (0 returns at once)")
	return cmd
}

func dealDisputeCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "dispute <deal-id>",
		Short: "Open a dispute on work in progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				d, err := a.Engine.DisputeDeal(ctx, args[0], clientID(), reason)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "dispute reason")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func dealDiscardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discard <deal-id>",
		Short: "Discard a deal before work starts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Engine.DiscardDeal(ctx, args[0], clientID())
			})
		},
	}
}

func dealActionCmd(use, short string, run func(context.Context, *engine.Engine, string) (domain.Deal, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <deal-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				d, err := run(ctx, a.Engine, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
}

func dealListCmd() *cobra.Command {
	var f repo.DealFilters
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deals of --client-id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all {
				f.ClientID = clientID()
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListDeals(ctx, f)
				if err != nil {
					return err
				}
				return printDeals(items)
			})
		},
	}
	cmd.Flags().StringVar(&f.SpecialistID, "specialist", "", "specialist filter")
	cmd.Flags().StringSliceVar(&f.Statuses, "status", nil, "status filter (repeatable)")
	cmd.Flags().BoolVar(&all, "all", false, "list every client's deals")
	return cmd
}
