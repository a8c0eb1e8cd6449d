package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/xumezzan/marketplace-project/internal/app"
	"github.com/xumezzan/marketplace-project/internal/engine"
	"github.com/xumezzan/marketplace-project/internal/repo"
)

func offerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offer",
		Short: "Specialist offers on tasks",
	}
	cmd.AddCommand(offerSubmitCmd())
	cmd.AddCommand(offerListCmd())
	cmd.AddCommand(offerAcceptCmd())
	cmd.AddCommand(offerRejectCmd())
	return cmd
}

func offerSubmitCmd() *cobra.Command {
	var opts engine.OfferOptions
	cmd := &cobra.Command{
		Use:   "submit <task-id>",
		Short: "Offer a price for a task as --client-id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.TaskID = args[0]
			opts.ActorID = clientID()
			if opts.SpecialistID == "" {
				opts.SpecialistID = opts.ActorID
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				o, err := a.Engine.SubmitOffer(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&opts.SpecialistID, "specialist", "", "specialist id (default: --client-id)")
	cmd.Flags().StringVar(&opts.Price, "price", "", "proposed price")
	cmd.Flags().StringVar(&opts.Message, "message", "", "message to the client")
	_ = cmd.MarkFlagRequired("price")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func offerListCmd() *cobra.Command {
	var f repo.OfferFilters
	cmd := &cobra.Command{
		Use:   "list <task-id>",
		Short: "List offers on a task, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.TaskID = args[0]
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Engine.ListOffers(ctx, f)
				if err != nil {
					return err
				}
				return printOffers(items)
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "pending, accepted or rejected")
	cmd.Flags().StringVar(&f.SpecialistID, "specialist", "", "specialist filter")
	return cmd
}

func offerAcceptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accept <offer-id>",
		Short: "Accept an offer and open its deal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				_, d, err := a.Engine.AcceptOffer(ctx, args[0], clientID())
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
}

func offerRejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <offer-id>",
		Short: "Reject an offer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				o, err := a.Engine.RejectOffer(ctx, args[0], clientID())
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
}
