// Package main implements catalogctl, a command line client for the
// catalog service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpcImpl "github.com/abgdnv/catalog/internal/transport/grpc"
	clientgrpc "github.com/abgdnv/catalog/pkg/client/grpc"
	"github.com/abgdnv/catalog/pkg/config"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

const clientName = "catalogctl"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// options are shared by every subcommand.
type options struct {
	addr     string
	timeout  time.Duration
	retries  uint
	dialOpts []grpc.DialOption
}

func newRootCmd(dialOpts ...grpc.DialOption) *cobra.Command {
	opts := &options{dialOpts: dialOpts}
	root := &cobra.Command{
		Use:          clientName,
		Short:        "Query the catalog service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.addr, "addr", "localhost:50051", "catalog gRPC address")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "deadline of a single call")
	root.PersistentFlags().UintVar(&opts.retries, "retries", 3, "attempts on transient errors")

	root.AddCommand(newFacetsCmd(opts), newFilterCmd(opts), newReloadCmd(opts))
	return root
}

func newFacetsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "facets",
		Short: "Print the loaded catalog and its facet values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, closeFn, err := opts.connect()
			if err != nil {
				return err
			}
			defer closeFn()

			found, err := client.Facets(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get facets: %w", err)
			}
			return printJSON(cmd, found)
		},
	}
}

func newFilterCmd(opts *options) *cobra.Command {
	var req grpcImpl.FilterRequest
	var price int64
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Print the products matching the given filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("price") {
				req.Price = &price
			}
			client, closeFn, err := opts.connect()
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := client.Filter(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("failed to filter products: %w", err)
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().StringVar(&req.Search, "search", "", "case insensitive name substring")
	cmd.Flags().StringVar(&req.Category, "category", "", "category, empty or all for any")
	cmd.Flags().StringVar(&req.Company, "company", "", "company, empty or all for any")
	cmd.Flags().StringVar(&req.Color, "color", "", "color, empty or all for any")
	cmd.Flags().BoolVar(&req.Ship, "ship", false, "only products with free shipping")
	cmd.Flags().Int64Var(&price, "price", 0, "inclusive price limit in cents, defaults to the catalog max price")
	return cmd
}

func (o *options) connect() (*grpcImpl.Client, func(), error) {
	clientCfg := config.GrpcClientConfig{Addr: o.addr, Timeout: o.timeout}
	res := config.ResilienceConfig{
		Retry: config.RetryConfig{MaxAttempts: o.retries, InitialBackoff: 100 * time.Millisecond},
		CircuitBreaker: config.CircuitBreakerConfig{
			ConsecutiveFailures: 5,
			ErrorRatePercent:    60,
			OpenTimeout:         10 * time.Second,
		},
	}
	conn, err := clientgrpc.NewClientConn(clientName, clientCfg, res, o.dialOpts...)
	if err != nil {
		return nil, nil, err
	}
	return grpcImpl.NewClient(conn), func() { _ = conn.Close() }, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
