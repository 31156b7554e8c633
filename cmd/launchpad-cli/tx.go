package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"launchpad/core/types"
	"launchpad/crypto"
	"launchpad/native/presale"
)

type txOptions struct {
	Referrer  string
	MinTokens string
	Nonce     string
	Args      string
}

// txKind describes one transaction subcommand.
type txKind struct {
	use    string
	short  string
	txType types.TxType
	args   int
	build  func(sender common.Address, args []string, opts txOptions) (interface{}, error)
}

var txKinds = []txKind{
	{use: "transfer <to> <amount>", short: "Transfer tokens", txType: types.TxTypeTransfer, args: 2,
		build: func(_ common.Address, args []string, _ txOptions) (interface{}, error) {
			to, err := normaliseAddress(args[0])
			if err != nil {
				return nil, err
			}
			return types.TransferPayload{To: to, Amount: args[1]}, nil
		}},
	{use: "approve <spender> <amount>", short: "Set a spending allowance", txType: types.TxTypeApprove, args: 2,
		build: func(_ common.Address, args []string, _ txOptions) (interface{}, error) {
			spender, err := normaliseAddress(args[0])
			if err != nil {
				return nil, err
			}
			return types.ApprovePayload{Spender: spender, Amount: args[1]}, nil
		}},
	{use: "transfer-from <from> <to> <amount>", short: "Spend an allowance", txType: types.TxTypeTransferFrom, args: 3,
		build: func(_ common.Address, args []string, _ txOptions) (interface{}, error) {
			from, err := normaliseAddress(args[0])
			if err != nil {
				return nil, err
			}
			to, err := normaliseAddress(args[1])
			if err != nil {
				return nil, err
			}
			return types.TransferFromPayload{From: from, To: to, Amount: args[2]}, nil
		}},
	{use: "burn <amount>", short: "Burn own tokens", txType: types.TxTypeBurn, args: 1,
		build: func(_ common.Address, args []string, _ txOptions) (interface{}, error) {
			return types.BurnPayload{Amount: args[0]}, nil
		}},
	{use: "buy <asset> <amount>", short: "Buy presale tokens with ETH, BNB or USDT", txType: types.TxTypeBuy, args: 2,
		build: func(_ common.Address, args []string, opts txOptions) (interface{}, error) {
			payload := types.BuyPayload{
				Asset:             strings.ToUpper(args[0]),
				Amount:            args[1],
				MinTokensExpected: opts.MinTokens,
				Nonce:             opts.Nonce,
			}
			if opts.Referrer != "" {
				ref, err := normaliseAddress(opts.Referrer)
				if err != nil {
					return nil, err
				}
				payload.Referrer = ref
			}
			return payload, nil
		}},
	{use: "commit <amount> <nonce>", short: "Commit to a presale purchase ahead of buying", txType: types.TxTypeCommitPurchase, args: 2,
		build: func(sender common.Address, args []string, _ txOptions) (interface{}, error) {
			amount, err := parseInteger("amount", args[0])
			if err != nil {
				return nil, err
			}
			nonce, err := parseInteger("nonce", args[1])
			if err != nil {
				return nil, err
			}
			return types.CommitPurchasePayload{Commitment: presale.CommitmentHash(sender, amount, nonce).Hex()}, nil
		}},
	{use: "presale-claim", short: "Claim purchased presale tokens", txType: types.TxTypePresaleClaim},
	{use: "referral-claim", short: "Claim accrued referral rewards", txType: types.TxTypeReferralClaim},
	{use: "vesting-claim", short: "Claim vested tokens", txType: types.TxTypeVestingClaim},
	{use: "oracle-submit <asset> <price>", short: "Report a USD price (6 decimals)", txType: types.TxTypeOracleSubmit, args: 2,
		build: func(_ common.Address, args []string, _ txOptions) (interface{}, error) {
			return types.OracleSubmitPayload{Asset: strings.ToUpper(args[0]), Price: args[1]}, nil
		}},
	{use: "admin <module> <action>", short: "Run a role-gated administrative action", txType: types.TxTypeAdmin, args: 2,
		build: moduleCall},
	{use: "confirm <module> <action>", short: "Confirm a two-signature operation", txType: types.TxTypeConfirm, args: 2,
		build: moduleCall},
}

func moduleCall(_ common.Address, args []string, opts txOptions) (interface{}, error) {
	call := types.ModuleCallPayload{Module: args[0], Action: args[1]}
	if raw := strings.TrimSpace(opts.Args); raw != "" {
		if !json.Valid([]byte(raw)) {
			return nil, fmt.Errorf("--args must be valid JSON")
		}
		call.Args = json.RawMessage(raw)
	}
	return call, nil
}

func normaliseAddress(value string) (string, error) {
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return "", err
	}
	return addr.Hex(), nil
}

func parseInteger(field, value string) (*big.Int, error) {
	out, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok || out.Sign() < 0 {
		return nil, fmt.Errorf("%s must be a non-negative integer", field)
	}
	return out, nil
}

// buildTransaction assembles the unsigned envelope for kind.
func buildTransaction(kind txKind, sender common.Address, chainID, nonce uint64, args []string, opts txOptions) (*types.Transaction, error) {
	tx := &types.Transaction{ChainID: chainID, Type: kind.txType, Nonce: nonce}
	if kind.build == nil {
		return tx, nil
	}
	payload, err := kind.build(sender, args, opts)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	tx.Data = data
	return tx, nil
}

func newTxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Sign and submit a transaction",
	}
	for _, kind := range txKinds {
		cmd.AddCommand(newTxKindCmd(kind))
	}
	return cmd
}

func newTxKindCmd(kind txKind) *cobra.Command {
	var opts txOptions
	cmd := &cobra.Command{
		Use:   kind.use,
		Short: kind.short,
		Args:  cobra.ExactArgs(kind.args),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			key, err := s.loadKey()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			sender := key.PubKey().Address()
			info, err := s.client.ChainInfo(ctx)
			if err != nil {
				return err
			}
			nonce, err := s.client.Nonce(ctx, sender)
			if err != nil {
				return err
			}
			tx, err := buildTransaction(kind, sender, info.ChainID, nonce, args, opts)
			if err != nil {
				return err
			}
			if err := tx.Sign(key.PrivateKey); err != nil {
				return err
			}
			receipt, err := s.client.SendTransaction(ctx, tx)
			if err != nil {
				return err
			}
			if err := s.print(receipt); err != nil {
				return err
			}
			if !receipt.Success {
				return fmt.Errorf("transaction reverted: %s", receipt.Error)
			}
			return nil
		},
	}
	switch kind.txType {
	case types.TxTypeBuy:
		cmd.Flags().StringVar(&opts.Referrer, "referrer", "", "Referrer address")
		cmd.Flags().StringVar(&opts.MinTokens, "min-tokens", "", "Revert if fewer tokens would be received")
		cmd.Flags().StringVar(&opts.Nonce, "nonce", "", "Nonce of a prior purchase commitment")
	case types.TxTypeAdmin, types.TxTypeConfirm:
		cmd.Flags().StringVar(&opts.Args, "args", "", "JSON arguments of the action")
	}
	return cmd
}
