package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"launchpad/core/types"
	"launchpad/native/presale"
	"launchpad/native/token"
)

// ErrUnknownAction is returned when a module call names an action the
// transaction type does not route.
var ErrUnknownAction = errors.New("unknown module action")

type moduleAction func(sp *StateProcessor, caller common.Address, args json.RawMessage) error

// adminActions are role-gated and take effect immediately.
var adminActions = map[string]moduleAction{
	"token.setAutoBurn": func(sp *StateProcessor, caller common.Address, args json.RawMessage) error {
		var in toggleArgs
		if err := decodeArgs(args, &in); err != nil {
			return err
		}
		return sp.Token.SetAutoBurn(caller, in.Enabled)
	},
	"token.pause": func(sp *StateProcessor, caller common.Address, _ json.RawMessage) error {
		return sp.Token.Pause(caller)
	},
	"token.unpause": func(sp *StateProcessor, caller common.Address, _ json.RawMessage) error {
		return sp.Token.Unpause(caller)
	},
	"presale.setWhitelistEnabled": func(sp *StateProcessor, caller common.Address, args json.RawMessage) error {
		var in toggleArgs
		if err := decodeArgs(args, &in); err != nil {
			return err
		}
		return sp.Presale.SetWhitelistEnabled(caller, in.Enabled)
	},
	"presale.updateWhitelist": func(sp *StateProcessor, caller common.Address, args json.RawMessage) error {
		var in whitelistArgs
		if err := decodeArgs(args, &in); err != nil {
			return err
		}
		accounts := make([]common.Address, 0, len(in.Accounts))
		for i, raw := range in.Accounts {
			addr, err := parseAddress(fmt.Sprintf("accounts[%d]", i), raw)
			if err != nil {
				return err
			}
			accounts = append(accounts, addr)
		}
		return sp.Presale.UpdateWhitelist(caller, accounts, in.Allowed)
	},
}

// confirmActions are multisig operations; each transaction records one
// confirmation and the second one executes.
var confirmActions = map[string]moduleAction{
	"token.setAllocationWallets": func(sp *StateProcessor, caller common.Address, args json.RawMessage) error {
		var in walletArgs
		if err := decodeArgs(args, &in); err != nil {
			return err
		}
		var wallets [token.BucketCount]common.Address
		for i, name := range token.BucketNames() {
			raw, ok := in.Wallets[name]
			if !ok {
				return fmt.Errorf("wallets: missing bucket %q", name)
			}
			addr, err := parseAddress("wallets."+name, raw)
			if err != nil {
				return err
			}
			wallets[i] = addr
		}
		if len(in.Wallets) != token.BucketCount {
			return fmt.Errorf("wallets: expected %d buckets, got %d", token.BucketCount, len(in.Wallets))
		}
		_, err := sp.Token.SetAllocationWallets(caller, wallets)
		return err
	},
	"token.distributeAllocations": func(sp *StateProcessor, caller common.Address, _ json.RawMessage) error {
		_, err := sp.Token.DistributeAllocations(caller)
		return err
	},
	"token.emergencyWithdraw": func(sp *StateProcessor, caller common.Address, _ json.RawMessage) error {
		_, err := sp.Token.EmergencyWithdraw(caller)
		return err
	},

	"vesting.setupWhitepaperAllocations": func(sp *StateProcessor, caller common.Address, args json.RawMessage) error {
		var in beneficiaryArgs
		if err := decodeArgs(args, &in); err != nil {
			return err
		}
		founders, err := parseAddress("founders", in.Founders)
		if err != nil {
			return err
		}
		team, err := parseAddress("team", in.Team)
		if err != nil {
			return err
		}
		partnerships, err := parseAddress("partnerships", in.Partnerships)
		if err != nil {
			return err
		}
		_, err = sp.Vesting.SetupWhitepaperAllocations(caller, founders, team, partnerships)
		return err
	},
	"vesting.initializeVesting": func(sp *StateProcessor, caller common.Address, _ json.RawMessage) error {
		_, err := sp.Vesting.InitializeVesting(caller)
		return err
	},
	"vesting.emergencyPause": func(sp *StateProcessor, caller common.Address, _ json.RawMessage) error {
		_, err := sp.Vesting.EmergencyPause(caller)
		return err
	},
	"vesting.emergencyUnpause": func(sp *StateProcessor, caller common.Address, _ json.RawMessage) error {
		_, err := sp.Vesting.EmergencyUnpause(caller)
		return err
	},
	"vesting.emergencyWithdraw": func(sp *StateProcessor, caller common.Address, _ json.RawMessage) error {
		_, err := sp.Vesting.EmergencyWithdraw(caller)
		return err
	},

	"presale.updatePhase": func(sp *StateProcessor, caller common.Address, args json.RawMessage) error {
		var in phaseToggleArgs
		if err := decodeArgs(args, &in); err != nil {
			return err
		}
		_, err := sp.Presale.UpdatePhase(caller, in.Phase, in.Active)
		return err
	},
	"presale.configurePhase": func(sp *StateProcessor, caller common.Address, args json.RawMessage) error {
		var in phaseArgs
		if err := decodeArgs(args, &in); err != nil {
			return err
		}
		pc := presale.PhaseConfig{Number: in.Number, StartTime: in.StartTime, EndTime: in.EndTime}
		var err error
		if pc.PricePerToken, err = parseAmount("pricePerToken", in.PricePerToken); err != nil {
			return err
		}
		if pc.TokensAllocated, err = parseAmount("tokensAllocated", in.TokensAllocated); err != nil {
			return err
		}
		if pc.MinPurchase, err = parseAmount("minPurchase", in.MinPurchase); err != nil {
			return err
		}
		if pc.MaxPurchase, err = parseAmount("maxPurchase", in.MaxPurchase); err != nil {
			return err
		}
		_, err = sp.Presale.ConfigurePhase(caller, pc)
		return err
	},
	"presale.updatePrices": func(sp *StateProcessor, caller common.Address, args json.RawMessage) error {
		var in priceArgs
		if err := decodeArgs(args, &in); err != nil {
			return err
		}
		ethUSD, err := parseAmount("ethUsd", in.ETHUSD)
		if err != nil {
			return err
		}
		bnbUSD, err := parseAmount("bnbUsd", in.BNBUSD)
		if err != nil {
			return err
		}
		_, err = sp.Presale.UpdatePrices(caller, ethUSD, bnbUSD)
		return err
	},
	"presale.setClaimEnabled": func(sp *StateProcessor, caller common.Address, args json.RawMessage) error {
		var in toggleArgs
		if err := decodeArgs(args, &in); err != nil {
			return err
		}
		_, err := sp.Presale.SetClaimEnabled(caller, in.Enabled)
		return err
	},
	"presale.emergencyPause": func(sp *StateProcessor, caller common.Address, _ json.RawMessage) error {
		_, err := sp.Presale.EmergencyPause(caller)
		return err
	},
	"presale.emergencyUnpause": func(sp *StateProcessor, caller common.Address, _ json.RawMessage) error {
		_, err := sp.Presale.EmergencyUnpause(caller)
		return err
	},
	"presale.emergencyWithdraw": func(sp *StateProcessor, caller common.Address, args json.RawMessage) error {
		var in withdrawArgs
		if err := decodeArgs(args, &in); err != nil {
			return err
		}
		_, err := sp.Presale.EmergencyWithdraw(caller, in.Asset)
		return err
	},

	"access.grantRole": func(sp *StateProcessor, caller common.Address, args json.RawMessage) error {
		return changeRole(sp, caller, args, true)
	},
	"access.revokeRole": func(sp *StateProcessor, caller common.Address, args json.RawMessage) error {
		return changeRole(sp, caller, args, false)
	},
}

// ModuleActions lists the routable actions for the admin or confirm
// transaction type, sorted.
func ModuleActions(txType types.TxType) []string {
	var table map[string]moduleAction
	switch txType {
	case types.TxTypeAdmin:
		table = adminActions
	case types.TxTypeConfirm:
		table = confirmActions
	default:
		return nil
	}
	out := make([]string, 0, len(table))
	for name := range table {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (sp *StateProcessor) applyModuleCall(sender common.Address, tx *types.Transaction, table map[string]moduleAction) error {
	var payload types.ModuleCallPayload
	if err := decodePayload(tx, &payload); err != nil {
		return err
	}
	key := strings.TrimSpace(payload.Module) + "." + strings.TrimSpace(payload.Action)
	action, ok := table[key]
	if !ok {
		return fmt.Errorf("%w: %s %s", ErrUnknownAction, tx.Type, key)
	}
	return action(sp, sender, payload.Args)
}

func decodeArgs(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("args required")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode args: %w", err)
	}
	return nil
}

func changeRole(sp *StateProcessor, caller common.Address, args json.RawMessage, grant bool) error {
	var in roleArgs
	if err := decodeArgs(args, &in); err != nil {
		return err
	}
	account, err := parseAddress("account", in.Account)
	if err != nil {
		return err
	}
	if grant {
		_, err = sp.Access.GrantRole(caller, in.Scope, in.Role, account)
	} else {
		_, err = sp.Access.RevokeRole(caller, in.Scope, in.Role, account)
	}
	return err
}

type toggleArgs struct {
	Enabled bool `json:"enabled"`
}

type whitelistArgs struct {
	Accounts []string `json:"accounts"`
	Allowed  bool     `json:"allowed"`
}

type walletArgs struct {
	Wallets map[string]string `json:"wallets"`
}

type beneficiaryArgs struct {
	Founders     string `json:"founders"`
	Team         string `json:"team"`
	Partnerships string `json:"partnerships"`
}

type phaseToggleArgs struct {
	Phase  uint64 `json:"phase"`
	Active bool   `json:"active"`
}

type phaseArgs struct {
	Number          uint64 `json:"number"`
	PricePerToken   string `json:"pricePerToken"`
	TokensAllocated string `json:"tokensAllocated"`
	MinPurchase     string `json:"minPurchase"`
	MaxPurchase     string `json:"maxPurchase"`
	StartTime       uint64 `json:"startTime,omitempty"`
	EndTime         uint64 `json:"endTime,omitempty"`
}

type priceArgs struct {
	ETHUSD string `json:"ethUsd"`
	BNBUSD string `json:"bnbUsd"`
}

type withdrawArgs struct {
	Asset string `json:"asset"`
}

type roleArgs struct {
	Scope   string `json:"scope"`
	Role    string `json:"role"`
	Account string `json:"account"`
}
