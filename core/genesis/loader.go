// core/genesis/loader.go
package genesis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"launchpad/core/state"
	"launchpad/core/types"
	"launchpad/crypto"
	"launchpad/native/access"
	"launchpad/native/bank"
	"launchpad/native/presale"
	"launchpad/native/token"
	"launchpad/storage"
	"launchpad/storage/trie"
)

// BuildGenesisFromSpec writes the genesis state into db and returns the
// committed state root. Every step iterates in sorted order so the root is
// deterministic for a given spec.
func BuildGenesisFromSpec(spec *GenesisSpec, db storage.Database) (common.Hash, error) {
	if spec == nil {
		return common.Hash{}, fmt.Errorf("genesis spec must not be nil")
	}
	if db == nil {
		return common.Hash{}, fmt.Errorf("database must not be nil")
	}

	stateTrie, err := trie.NewTrie(db, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("init state trie: %w", err)
	}
	manager := state.NewManager(stateTrie)
	if err := manager.SetStateVersion(state.StateVersion); err != nil {
		return common.Hash{}, fmt.Errorf("state version: %w", err)
	}
	genesisTime := spec.GenesisTimestamp().Unix()
	clock := func() int64 { return genesisTime }

	// 1) Assets
	if err := manager.RegisterAsset(spec.Token.Symbol, spec.Token.Name, token.Decimals); err != nil {
		return common.Hash{}, fmt.Errorf("register token: %w", err)
	}
	for _, asset := range spec.Assets() {
		if err := manager.RegisterAsset(asset.Symbol, asset.Name, asset.Decimals); err != nil {
			return common.Hash{}, fmt.Errorf("register asset %q: %w", asset.Symbol, err)
		}
	}

	// 2) Roles (scope, role and members sorted)
	scopes := make([]string, 0, len(spec.Roles))
	for scope := range spec.Roles {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)
	for _, scope := range scopes {
		table := access.NewRoleTable(scope, manager)
		roles := make([]string, 0, len(spec.Roles[scope]))
		for role := range spec.Roles[scope] {
			roles = append(roles, role)
		}
		sort.Strings(roles)
		for _, role := range roles {
			members := append([]string(nil), spec.Roles[scope][role]...)
			sort.Strings(members)
			for _, member := range members {
				addr, err := crypto.ParseAddress(member)
				if err != nil {
					return common.Hash{}, fmt.Errorf("roles[%q][%q]: %w", scope, role, err)
				}
				if err := table.Grant(role, addr); err != nil {
					return common.Hash{}, fmt.Errorf("roles[%q][%q]: %w", scope, role, err)
				}
			}
		}
	}

	// 3) Token supply
	tokenRoles := access.NewRoleTable(types.ModuleToken, manager)
	tokenEngine := token.NewEngine(spec.Token.Symbol)
	tokenEngine.SetState(manager)
	tokenEngine.SetAuthorizer(tokenRoles)
	tokenEngine.SetNowFunc(clock)
	if err := tokenEngine.InitGenesis(); err != nil {
		return common.Hash{}, fmt.Errorf("mint supply: %w", err)
	}
	if spec.Token.AutoBurn {
		admins, err := tokenRoles.Members(access.RoleAdmin)
		if err != nil {
			return common.Hash{}, err
		}
		if err := tokenEngine.SetAutoBurn(admins[0], true); err != nil {
			return common.Hash{}, fmt.Errorf("auto burn: %w", err)
		}
	}

	// 4) Payment asset balances (addresses sorted; symbols sorted)
	accounts := make([]string, 0, len(spec.Alloc))
	for account := range spec.Alloc {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	for _, account := range accounts {
		addr, err := crypto.ParseAddress(account)
		if err != nil {
			return common.Hash{}, fmt.Errorf("alloc[%q]: %w", account, err)
		}
		symbols := make([]string, 0, len(spec.Alloc[account]))
		for symbol := range spec.Alloc[account] {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)
		for _, symbol := range symbols {
			amount, err := parseAmountString(spec.Alloc[account][symbol])
			if err != nil {
				return common.Hash{}, fmt.Errorf("alloc[%q][%q]: %w", account, symbol, err)
			}
			if amount.Sign() == 0 {
				continue
			}
			if err := bank.Credit(manager, strings.ToUpper(strings.TrimSpace(symbol)), addr, amount); err != nil {
				return common.Hash{}, fmt.Errorf("alloc[%q][%q]: %w", account, symbol, err)
			}
		}
	}

	// 5) Presale phases and fixed prices
	sale := presale.NewEngine()
	sale.SetState(manager)
	sale.SetNowFunc(clock)
	ethUSD, bnbUSD := spec.FallbackPrices()
	if err := sale.InitGenesis(spec.Phases(), ethUSD, bnbUSD); err != nil {
		return common.Hash{}, fmt.Errorf("presale: %w", err)
	}

	// 6) Commit
	root, err := stateTrie.Commit(0)
	if err != nil {
		return common.Hash{}, fmt.Errorf("commit state: %w", err)
	}
	return root, nil
}
