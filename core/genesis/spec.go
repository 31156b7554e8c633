// core/genesis/spec.go
package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"launchpad/core/types"
	"launchpad/crypto"
	"launchpad/native/access"
	"launchpad/native/multisig"
	"launchpad/native/presale"
)

type GenesisSpec struct {
	GenesisTime   string                         `json:"genesisTime"`
	ChainID       uint64                         `json:"chainId"`
	Token         TokenSpec                      `json:"token"`
	PaymentAssets []AssetSpec                    `json:"paymentAssets,omitempty"`
	Alloc         map[string]map[string]string   `json:"alloc,omitempty"` // addr -> asset -> amount
	Roles         map[string]map[string][]string `json:"roles"`           // scope -> role -> []addr
	Presale       PresaleSpec                    `json:"presale"`
	Oracle        OracleSpec                     `json:"oracle"`

	genesisTimestamp time.Time
	phases           []presale.Phase
	ethUSD           *big.Int
	bnbUSD           *big.Int
	priceMode        presale.PriceMode
}

type TokenSpec struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	AutoBurn bool   `json:"autoBurn,omitempty"`
}

type AssetSpec struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
}

// PresaleSpec carries the initial phases and fixed prices. USD values use 6
// decimals; token amounts are base units. An empty phase list installs the
// default five phases.
type PresaleSpec struct {
	Phases []PhaseSpec `json:"phases,omitempty"`
	ETHUSD string      `json:"ethUsd"`
	BNBUSD string      `json:"bnbUsd"`
}

type PhaseSpec struct {
	PricePerToken   string `json:"pricePerToken"`
	TokensAllocated string `json:"tokensAllocated"`
	MinPurchase     string `json:"minPurchase"`
	MaxPurchase     string `json:"maxPurchase"`
	StartTime       uint64 `json:"startTime,omitempty"`
	EndTime         uint64 `json:"endTime,omitempty"`
	Active          bool   `json:"active,omitempty"`
}

// OracleSpec configures the on-ledger price feed. When the feed is disabled
// the presale always converts at the fixed prices.
type OracleSpec struct {
	Enabled       bool   `json:"enabled"`
	MaxAgeSeconds uint64 `json:"maxAgeSeconds,omitempty"`
	FailureMode   string `json:"failureMode,omitempty"`
}

// DefaultPaymentAssets are registered when the spec lists none.
func DefaultPaymentAssets() []AssetSpec {
	return []AssetSpec{
		{Symbol: presale.AssetETH, Name: "Ether", Decimals: 18},
		{Symbol: presale.AssetBNB, Name: "BNB", Decimals: 18},
		{Symbol: presale.AssetUSDT, Name: "Tether USD", Decimals: 6},
	}
}

// adminScopes must each seat enough admins to reach the multisig threshold.
var adminScopes = []string{types.ModuleToken, types.ModuleVesting, types.ModulePresale, types.ModuleAccess}

func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseGenesisSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseGenesisSpec decodes and validates a JSON genesis document. Unknown
// fields are rejected.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

func (s *GenesisSpec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

// Phases returns the validated presale phases.
func (s *GenesisSpec) Phases() []presale.Phase {
	out := make([]presale.Phase, len(s.phases))
	copy(out, s.phases)
	return out
}

// FallbackPrices returns the fixed ETH and BNB prices.
func (s *GenesisSpec) FallbackPrices() (*big.Int, *big.Int) {
	return new(big.Int).Set(s.ethUSD), new(big.Int).Set(s.bnbUSD)
}

// PriceMode returns the configured oracle failure mode.
func (s *GenesisSpec) PriceMode() presale.PriceMode { return s.priceMode }

// OracleMaxAge returns the price staleness window; zero selects the feed
// default.
func (s *GenesisSpec) OracleMaxAge() time.Duration {
	return time.Duration(s.Oracle.MaxAgeSeconds) * time.Second
}

// Assets returns the payment assets to register, sorted by symbol.
func (s *GenesisSpec) Assets() []AssetSpec {
	assets := s.PaymentAssets
	if len(assets) == 0 {
		assets = DefaultPaymentAssets()
	}
	out := append([]AssetSpec(nil), assets...)
	sort.Slice(out, func(i, j int) bool {
		return strings.ToUpper(out[i].Symbol) < strings.ToUpper(out[j].Symbol)
	})
	return out
}

func (s *GenesisSpec) validate() error {
	parsedTime, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = parsedTime

	if s.ChainID == 0 {
		return fmt.Errorf("chainId must be provided")
	}

	// token
	tokenSymbol := strings.ToUpper(strings.TrimSpace(s.Token.Symbol))
	if tokenSymbol == "" {
		return fmt.Errorf("token: symbol must be provided")
	}
	if strings.TrimSpace(s.Token.Name) == "" {
		return fmt.Errorf("token: name must be provided")
	}

	// payment assets
	symbols := map[string]struct{}{tokenSymbol: {}}
	for i, asset := range s.Assets() {
		key := strings.ToUpper(strings.TrimSpace(asset.Symbol))
		switch key {
		case presale.AssetETH, presale.AssetBNB, presale.AssetUSDT:
		default:
			return fmt.Errorf("paymentAssets[%d]: unsupported asset %q", i, asset.Symbol)
		}
		if strings.TrimSpace(asset.Name) == "" {
			return fmt.Errorf("paymentAssets[%d]: name must be provided", i)
		}
		if _, exists := symbols[key]; exists {
			return fmt.Errorf("paymentAssets[%d]: duplicate symbol %q", i, asset.Symbol)
		}
		symbols[key] = struct{}{}
	}

	// alloc
	accounts := make([]string, 0, len(s.Alloc))
	for account := range s.Alloc {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	for _, account := range accounts {
		if _, err := crypto.ParseAddress(account); err != nil {
			return fmt.Errorf("alloc[%q]: %w", account, err)
		}
		for symbol, amount := range s.Alloc[account] {
			key := strings.ToUpper(strings.TrimSpace(symbol))
			if key == tokenSymbol {
				return fmt.Errorf("alloc[%q][%q]: token supply is minted by the token module", account, symbol)
			}
			if _, exists := symbols[key]; !exists {
				return fmt.Errorf("alloc[%q][%q]: undefined asset", account, symbol)
			}
			if _, err := parseAmountString(amount); err != nil {
				return fmt.Errorf("alloc[%q][%q]: %w", account, symbol, err)
			}
		}
	}

	// roles
	for scope, roles := range s.Roles {
		for role, members := range roles {
			if !access.KnownRole(role) {
				return fmt.Errorf("roles[%q][%q]: unknown role", scope, role)
			}
			seen := make(map[common.Address]struct{}, len(members))
			for i, member := range members {
				addr, err := crypto.ParseAddress(member)
				if err != nil {
					return fmt.Errorf("roles[%q][%q][%d]: %w", scope, role, i, err)
				}
				if _, dup := seen[addr]; dup {
					return fmt.Errorf("roles[%q][%q]: duplicate member %q", scope, role, member)
				}
				seen[addr] = struct{}{}
			}
		}
	}
	for _, scope := range adminScopes {
		if len(s.Roles[scope][access.RoleAdmin]) < multisig.RequiredConfirmations {
			return fmt.Errorf("roles[%q]: at least %d %s members required", scope, multisig.RequiredConfirmations, access.RoleAdmin)
		}
	}
	for scope := range s.Roles {
		if scope != types.ModuleOracle && !containsScope(scope) {
			return fmt.Errorf("roles[%q]: unknown scope", scope)
		}
	}

	// presale
	if s.ethUSD, err = parseAmountString(s.Presale.ETHUSD); err != nil {
		return fmt.Errorf("presale.ethUsd: %w", err)
	}
	if s.bnbUSD, err = parseAmountString(s.Presale.BNBUSD); err != nil {
		return fmt.Errorf("presale.bnbUsd: %w", err)
	}
	if s.phases, err = s.Presale.buildPhases(); err != nil {
		return fmt.Errorf("presale: %w", err)
	}
	if s.priceMode, err = presale.ParsePriceMode(s.Oracle.FailureMode); err != nil {
		return fmt.Errorf("oracle: %w", err)
	}
	return nil
}

func containsScope(scope string) bool {
	for _, candidate := range adminScopes {
		if candidate == scope {
			return true
		}
	}
	return false
}

func (p *PresaleSpec) buildPhases() ([]presale.Phase, error) {
	if len(p.Phases) == 0 {
		return presale.DefaultPhases(), nil
	}
	phases := make([]presale.Phase, 0, len(p.Phases))
	active := 0
	for i, ps := range p.Phases {
		phase := presale.Phase{
			Number:     uint64(i + 1),
			TokensSold: big.NewInt(0),
			StartTime:  ps.StartTime,
			EndTime:    ps.EndTime,
			IsActive:   ps.Active,
		}
		var err error
		if phase.PricePerToken, err = parseAmountString(ps.PricePerToken); err != nil {
			return nil, fmt.Errorf("phases[%d].pricePerToken: %w", i, err)
		}
		if phase.TokensAllocated, err = parseAmountString(ps.TokensAllocated); err != nil {
			return nil, fmt.Errorf("phases[%d].tokensAllocated: %w", i, err)
		}
		if phase.MinPurchase, err = parseAmountString(ps.MinPurchase); err != nil {
			return nil, fmt.Errorf("phases[%d].minPurchase: %w", i, err)
		}
		if phase.MaxPurchase, err = parseAmountString(ps.MaxPurchase); err != nil {
			return nil, fmt.Errorf("phases[%d].maxPurchase: %w", i, err)
		}
		if ps.Active {
			active++
		}
		phases = append(phases, phase)
	}
	if active > 1 {
		return nil, fmt.Errorf("at most one phase may start active")
	}
	return phases, nil
}

func parseAmountString(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount must be provided")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

func parseGenesisTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("genesisTime must be provided")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("invalid genesisTime %q", value)
}
