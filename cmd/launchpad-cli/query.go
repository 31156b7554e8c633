package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"launchpad/crypto"
	"launchpad/rpc"
	"launchpad/rpc/client"
)

type queryFunc func(ctx context.Context, c *client.Client, args []string) (interface{}, error)

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Read ledger state",
	}
	add := func(use, short string, nargs cobra.PositionalArgs, fn queryFunc) *cobra.Command {
		sub := &cobra.Command{
			Use:   use,
			Short: short,
			Args:  nargs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := openSession(cmd)
				if err != nil {
					return err
				}
				out, err := fn(cmd.Context(), s.client, args)
				if err != nil {
					return err
				}
				return s.print(out)
			},
		}
		cmd.AddCommand(sub)
		return sub
	}

	add("chain", "Chain id, height and state root", cobra.NoArgs, func(ctx context.Context, c *client.Client, _ []string) (interface{}, error) {
		return c.ChainInfo(ctx)
	})
	add("nonce <address>", "Next transaction nonce of an account", cobra.ExactArgs(1), func(ctx context.Context, c *client.Client, args []string) (interface{}, error) {
		addr, err := crypto.ParseAddress(args[0])
		if err != nil {
			return nil, err
		}
		return c.Nonce(ctx, addr)
	})
	add("balance <address> [asset]", "Token or payment-asset balance", cobra.RangeArgs(1, 2), func(ctx context.Context, c *client.Client, args []string) (interface{}, error) {
		addr, err := crypto.ParseAddress(args[0])
		if err != nil {
			return nil, err
		}
		asset := ""
		if len(args) > 1 {
			asset = args[1]
		}
		return c.Balance(ctx, addr, asset)
	})
	add("allowance <owner> <spender>", "Remaining allowance", cobra.ExactArgs(2), func(ctx context.Context, c *client.Client, args []string) (interface{}, error) {
		owner, err := crypto.ParseAddress(args[0])
		if err != nil {
			return nil, err
		}
		spender, err := crypto.ParseAddress(args[1])
		if err != nil {
			return nil, err
		}
		return c.Allowance(ctx, owner, spender)
	})
	add("token", "Token supply and flags", cobra.NoArgs, func(ctx context.Context, c *client.Client, _ []string) (interface{}, error) {
		return c.TokenInfo(ctx)
	})
	add("presale-stats", "Presale totals", cobra.NoArgs, func(ctx context.Context, c *client.Client, _ []string) (interface{}, error) {
		return c.PresaleStats(ctx)
	})
	add("phase [number]", "Presale phase (current when omitted)", cobra.MaximumNArgs(1), func(ctx context.Context, c *client.Client, args []string) (interface{}, error) {
		var number uint64
		if len(args) == 1 {
			n, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("phase must be a number: %w", err)
			}
			number = n
		}
		return c.PresalePhase(ctx, number)
	})
	add("purchase <address>", "Aggregated presale purchases of a buyer", cobra.ExactArgs(1), func(ctx context.Context, c *client.Client, args []string) (interface{}, error) {
		addr, err := crypto.ParseAddress(args[0])
		if err != nil {
			return nil, err
		}
		return c.PresalePurchase(ctx, addr)
	})
	add("listing-price", "Expected listing price band", cobra.NoArgs, func(ctx context.Context, c *client.Client, _ []string) (interface{}, error) {
		return c.ListingPrice(ctx)
	})
	add("vesting <address>", "Vesting position of a beneficiary", cobra.ExactArgs(1), func(ctx context.Context, c *client.Client, args []string) (interface{}, error) {
		addr, err := crypto.ParseAddress(args[0])
		if err != nil {
			return nil, err
		}
		return c.VestingRecord(ctx, addr)
	})
	add("vesting-status", "Vesting schedule summary", cobra.NoArgs, func(ctx context.Context, c *client.Client, _ []string) (interface{}, error) {
		return c.VestingStatus(ctx)
	})
	add("quote <asset>", "Last oracle price of an asset", cobra.ExactArgs(1), func(ctx context.Context, c *client.Client, args []string) (interface{}, error) {
		return c.OracleQuote(ctx, args[0])
	})
	add("operation <module> <id>", "Multisig operation record", cobra.ExactArgs(2), func(ctx context.Context, c *client.Client, args []string) (interface{}, error) {
		return c.MultisigOperation(ctx, args[0], common.HexToHash(args[1]))
	})
	add("multisig-nonce <module>", "Execution nonce of a module's multisig ledger", cobra.ExactArgs(1), func(ctx context.Context, c *client.Client, args []string) (interface{}, error) {
		return c.MultisigNonce(ctx, args[0])
	})
	add("roles <scope> <role>", "Members of a role", cobra.ExactArgs(2), func(ctx context.Context, c *client.Client, args []string) (interface{}, error) {
		return c.RoleMembers(ctx, args[0], args[1])
	})
	add("receipt <tx-hash>", "Recorded transaction receipt", cobra.ExactArgs(1), func(ctx context.Context, c *client.Client, args []string) (interface{}, error) {
		return c.Receipt(ctx, common.HexToHash(args[0]))
	})
	add("actions <admin|confirm>", "Actions routable through admin or confirm transactions", cobra.ExactArgs(1), func(ctx context.Context, c *client.Client, args []string) (interface{}, error) {
		return c.ModuleActions(ctx, args[0])
	})

	var events rpc.EventQuery
	eventsCmd := add("events", "Journaled events", cobra.NoArgs, func(ctx context.Context, c *client.Client, _ []string) (interface{}, error) {
		return c.Events(ctx, events)
	})
	eventsCmd.Flags().StringVar(&events.Type, "type", "", "Event type")
	eventsCmd.Flags().StringVar(&events.TxHash, "tx", "", "Transaction hash")
	eventsCmd.Flags().Uint64Var(&events.FromHeight, "from-height", 0, "Lowest height")
	eventsCmd.Flags().IntVar(&events.Limit, "limit", 100, "Maximum events returned")
	return cmd
}
