package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/app"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/cache"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/config"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/logger"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/observability"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/queue"
	"github.com/EdmilsonFernandes/EdEspetoHub-sub001/internal/storefront"
)

// NewRootCommand builds the root espetohub CLI command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "espetohub",
		Short: "EspetoHub kitchen queue service",
	}

	root.AddCommand(newStartCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newQueueCmd())

	return root
}

// Execute runs the espetohub CLI.
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

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the production queue",
	}

	snapshot := &cobra.Command{
		Use:   "snapshot",
		Short: "Fetch the active queue once and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cfg      config.Config
				client   *storefront.Client
				ordering *queue.OrderingIndex
			)
			opts := fx.Options(
				config.Module,
				logger.Module,
				cache.Module,
				observability.Module,
				storefront.Module,
				queue.Module,
				fx.Populate(&cfg, &client, &ordering),
			)
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				store, _ := cmd.Flags().GetString("store")
				if store == "" {
					store = cfg.Storefront.Store
				}
				if store == "" {
					return fmt.Errorf("no store configured; use --store or STOREFRONT_STORE")
				}

				orders, err := client.ListOrders(ctx, store)
				if err != nil {
					return err
				}

				active := orders[:0]
				for _, order := range orders {
					if !order.Active() {
						continue
					}
					order.Items = ordering.Resolve(order.ID, order.Items)
					active = append(active, order)
				}

				encoded, err := json.MarshalIndent(active, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
				return nil
			})
		},
	}
	snapshot.Flags().String("store", "", "Store id or slug to inspect")

	cmd.AddCommand(snapshot)
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
