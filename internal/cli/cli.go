package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/homefleet/shoplist/internal/app"
	"github.com/homefleet/shoplist/internal/entity"
	orderrepo "github.com/homefleet/shoplist/internal/repository/order"
	"github.com/homefleet/shoplist/internal/seeder"
	listsvc "github.com/homefleet/shoplist/internal/service/list"
)

// NewRootCommand builds the root shoplist CLI command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "shoplist",
		Short: "Family shopping list service",
	}

	root.AddCommand(newStartCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newOrdersCmd())
	root.AddCommand(newWorkerCmd())

	return root
}

// Execute runs the shoplist CLI.
func Execute() error {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Aliases: []string{"run"},
		Short:   "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			application := fx.New(app.Module)
			if err := application.Start(cmd.Context()); err != nil {
				return err
			}
			<-cmd.Context().Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return application.Stop(stopCtx)
		},
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Prepare an empty worksheet with header and sample orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			var seed *seeder.Seeder
			opts := fx.Options(app.Core, seeder.Module, fx.Populate(&seed))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := seed.Orders(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "seed data applied")
				return nil
			})
		},
	}
}

func newOrdersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect and edit the shopping list",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Print every active order",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc *listsvc.Service
			opts := fx.Options(app.Core, fx.Populate(&svc))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				orders, err := svc.ListActive(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tDATE\tPRODUCT\tAMOUNT")
				for _, order := range orders {
					amount := "-"
					if order.Amount != nil {
						amount = fmt.Sprint(*order.Amount)
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", order.ID, order.Date.Format(entity.DateLayout), order.Product, amount)
				}
				return w.Flush()
			})
		},
	}

	addCmd := &cobra.Command{
		Use:   "add [product]",
		Short: "Append an order without going through audio intake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, _ := cmd.Flags().GetInt64("amount")
			orderedBy, _ := cmd.Flags().GetString("by")

			draft := entity.OrderDraft{Product: args[0], OrderedBy: orderedBy}
			if amount > 0 {
				draft.Amount = &amount
			}

			var repo *orderrepo.Repository
			opts := fx.Options(app.Core, fx.Populate(&repo))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				order, err := repo.Append(ctx, draft)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "order %d appended\n", order.ID)
				return nil
			})
		},
	}
	addCmd.Flags().Int64("amount", 0, "Quantity for the order (omit for unspecified)")
	addCmd.Flags().String("by", "", "Who ordered it")

	cmd.AddCommand(listCmd, addCmd)
	return cmd
}

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage background workers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run worker engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			application := fx.New(app.Worker)
			if err := application.Start(cmd.Context()); err != nil {
				return err
			}
			<-cmd.Context().Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return application.Stop(stopCtx)
		},
	})
	return cmd
}

func runWithApp(ctx context.Context, opts fx.Option, fn func(context.Context) error) error {
	application := fx.New(opts, fx.NopLogger)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()
	return fn(ctx)
}
