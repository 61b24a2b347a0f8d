package cli

import (
	"fmt"

	"stream-escrow-go/internal/amount"

	"github.com/spf13/cobra"
)

func newFundCommand(opts *RootOptions) *cobra.Command {
	var asset, externalTxId string

	cmd := &cobra.Command{
		Use:   "fund <account> <amount>",
		Short: "Credit an account from outside the ledger",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := amount.Parse(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount: %w", err)
			}
			ctx, engine, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			if err := engine.Fund(ctx, args[0], asset, value, externalTxId); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "funded %s with %s\n", args[0], value)
			return nil
		},
	}

	cmd.Flags().StringVar(&asset, "asset", "", "asset symbol (default asset when empty)")
	cmd.Flags().StringVar(&externalTxId, "external-tx-id", "", "idempotency key for the credit")
	return cmd
}

func newBalanceCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account>",
		Short: "Print every balance an account holds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, engine, err := opts.engine(cmd)
			if err != nil {
				return err
			}
			balances, err := engine.ListBalances(ctx, args[0])
			if err != nil {
				return err
			}
			for _, b := range balances {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", b.Asset, b.Balance)
			}
			return nil
		},
	}
}

func newTokenCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token <principal>",
		Short: "Issue an API bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := opts.backend.IssueToken(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}
