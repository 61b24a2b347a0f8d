package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"stream-escrow-go/internal/escrow"
	"stream-escrow-go/internal/models"

	"github.com/spf13/cobra"
)

// Backend opens what the commands operate on.
type Backend interface {
	Engine(ctx context.Context) (*escrow.Engine, error)
	IssueToken(principal string) (string, error)
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	As      string
	backend Backend
}

// context returns ctx carrying the --as principal, if one was given.
func (o *RootOptions) context(ctx context.Context) context.Context {
	if o.As == "" {
		return ctx
	}
	return models.WithCaller(ctx, o.As)
}

func (o *RootOptions) engine(cmd *cobra.Command) (context.Context, *escrow.Engine, error) {
	ctx := o.context(cmd.Context())
	engine, err := o.backend.Engine(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open escrow engine: %w", err)
	}
	return ctx, engine, nil
}

// NewRootCommand creates the escrow command line.
func NewRootCommand(backend Backend) *cobra.Command {
	opts := &RootOptions{backend: backend}

	cmd := &cobra.Command{
		Use:           "escrow",
		Short:         "Operate streams and subscriptions against the local escrow ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.As, "as", "", "principal to act as")

	cmd.AddCommand(newStreamCommand(opts))
	cmd.AddCommand(newSubscriptionCommand(opts))
	cmd.AddCommand(newFundCommand(opts))
	cmd.AddCommand(newBalanceCommand(opts))
	cmd.AddCommand(newTokenCommand(opts))

	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseId(raw string) (uint32, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint32(id), nil
}
