// Package client is a thin JSON-RPC client for the launchpad node.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"launchpad/core"
	"launchpad/core/types"
	"launchpad/native/presale"
	"launchpad/native/token"
	"launchpad/native/vesting"
	"launchpad/rpc"
)

// TokenSource returns the bearer token attached to lp_sendTransaction. A nil
// source sends no Authorization header.
type TokenSource func() (string, error)

// Options tunes a Client.
type Options struct {
	HTTPClient *http.Client
	Token      TokenSource
}

type Client struct {
	endpoint string
	http     *http.Client
	token    TokenSource
	nextID   atomic.Int64
}

// New returns a client posting to endpoint.
func New(endpoint string, opts Options) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("rpc client: endpoint must not be empty")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{endpoint: endpoint, http: httpClient, token: opts.Token}, nil
}

type request struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int64         `json:"id"`
}

type response struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpc.RPCError   `json:"error"`
}

// Call invokes method and decodes the result into out. Server-side failures
// are returned as *rpc.RPCError.
func (c *Client) Call(ctx context.Context, method string, out interface{}, params ...interface{}) error {
	return c.call(ctx, method, false, out, params...)
}

func (c *Client) call(ctx context.Context, method string, auth bool, out interface{}, params ...interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	payload, err := json.Marshal(request{JSONRPC: "2.0", Method: method, Params: params, ID: c.nextID.Add(1)})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if auth && c.token != nil {
		token, err := c.token()
		if err != nil {
			return fmt.Errorf("rpc token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var decoded response
	if err := json.Unmarshal(body, &decoded); err != nil {
		return fmt.Errorf("decode %s response (HTTP %d): %w", method, resp.StatusCode, err)
	}
	return decoded.into(method, out)
}

func (r *response) into(method string, out interface{}) error {
	if r.Error != nil {
		return r.Error
	}
	if out == nil || len(r.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// SendTransaction submits a signed transaction and returns its receipt.
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt := new(types.Receipt)
	if err := c.call(ctx, "lp_sendTransaction", true, receipt, tx); err != nil {
		return nil, err
	}
	return receipt, nil
}

func (c *Client) Nonce(ctx context.Context, addr common.Address) (uint64, error) {
	var nonce uint64
	err := c.Call(ctx, "lp_getNonce", &nonce, addr.Hex())
	return nonce, err
}

func (c *Client) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt := new(types.Receipt)
	if err := c.Call(ctx, "lp_getReceipt", receipt, hash.Hex()); err != nil {
		return nil, err
	}
	return receipt, nil
}

func (c *Client) Events(ctx context.Context, query rpc.EventQuery) ([]rpc.EventResult, error) {
	var out []rpc.EventResult
	err := c.Call(ctx, "lp_getEvents", &out, query)
	return out, err
}

func (c *Client) ChainInfo(ctx context.Context) (*rpc.ChainInfoResult, error) {
	out := new(rpc.ChainInfoResult)
	if err := c.Call(ctx, "lp_chainInfo", out); err != nil {
		return nil, err
	}
	return out, nil
}

// ModuleActions lists the actions routable through an admin or confirm
// transaction.
func (c *Client) ModuleActions(ctx context.Context, txType string) ([]string, error) {
	var out []string
	err := c.Call(ctx, "lp_moduleActions", &out, txType)
	return out, err
}

// Balance returns addr's balance of asset; an empty asset selects the sale
// token.
func (c *Client) Balance(ctx context.Context, addr common.Address, asset string) (*rpc.BalanceResult, error) {
	params := []interface{}{addr.Hex()}
	if asset != "" {
		params = append(params, asset)
	}
	out := new(rpc.BalanceResult)
	if err := c.Call(ctx, "token_balance", out, params...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	out := new(big.Int)
	if err := c.Call(ctx, "token_allowance", out, owner.Hex(), spender.Hex()); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) TokenInfo(ctx context.Context) (*token.Info, error) {
	out := new(token.Info)
	if err := c.Call(ctx, "token_info", out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PresaleStats(ctx context.Context) (*presale.Stats, error) {
	out := new(presale.Stats)
	if err := c.Call(ctx, "presale_stats", out); err != nil {
		return nil, err
	}
	return out, nil
}

// PresalePhase returns phase number; zero selects the current phase.
func (c *Client) PresalePhase(ctx context.Context, number uint64) (*core.PhaseView, error) {
	out := new(core.PhaseView)
	if err := c.Call(ctx, "presale_phase", out, number); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PresalePurchase(ctx context.Context, buyer common.Address) (*core.PurchaseView, error) {
	out := new(core.PurchaseView)
	if err := c.Call(ctx, "presale_purchase", out, buyer.Hex()); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListingPrice(ctx context.Context) (*rpc.ListingPriceResult, error) {
	out := new(rpc.ListingPriceResult)
	if err := c.Call(ctx, "presale_listingPrice", out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) VestingRecord(ctx context.Context, beneficiary common.Address) (*core.VestingView, error) {
	out := new(core.VestingView)
	if err := c.Call(ctx, "vesting_record", out, beneficiary.Hex()); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) VestingStatus(ctx context.Context) (*vesting.Status, error) {
	out := new(vesting.Status)
	if err := c.Call(ctx, "vesting_status", out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) OracleQuote(ctx context.Context, asset string) (*rpc.QuoteResult, error) {
	out := new(rpc.QuoteResult)
	if err := c.Call(ctx, "oracle_quote", out, asset); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MultisigOperation(ctx context.Context, module string, id common.Hash) (*rpc.OperationResult, error) {
	out := new(rpc.OperationResult)
	if err := c.Call(ctx, "multisig_operation", out, module, id.Hex()); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MultisigNonce(ctx context.Context, module string) (uint64, error) {
	var nonce uint64
	err := c.Call(ctx, "multisig_nonce", &nonce, module)
	return nonce, err
}

func (c *Client) RoleMembers(ctx context.Context, scope, role string) ([]string, error) {
	var out []string
	err := c.Call(ctx, "access_roleMembers", &out, scope, role)
	return out, err
}
