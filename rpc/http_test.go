package rpc

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"launchpad/core"
	"launchpad/core/events"
	"launchpad/core/genesis"
	lpstate "launchpad/core/state"
	"launchpad/core/types"
	"launchpad/crypto"
	"launchpad/native/access"
	"launchpad/native/multisig"
	"launchpad/storage"
	"launchpad/storage/journal"
	"launchpad/storage/trie"
)

const testChainID = 9001

type fixture struct {
	node    *core.Node
	journal *journal.Journal
	admin1  *crypto.PrivateKey
	admin2  *crypto.PrivateKey
	user    *crypto.PrivateKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{admin1: mustKey(t), admin2: mustKey(t), user: mustKey(t)}
	admins := map[string][]string{access.RoleAdmin: {
		f.admin1.PubKey().Address().Hex(),
		f.admin2.PubKey().Address().Hex(),
	}}
	raw, err := json.Marshal(map[string]interface{}{
		"genesisTime": "2025-01-01T00:00:00Z",
		"chainId":     testChainID,
		"token":       map[string]interface{}{"symbol": "LPT", "name": "Launchpad Token"},
		"roles": map[string]interface{}{
			types.ModuleToken:   admins,
			types.ModuleVesting: admins,
			types.ModulePresale: admins,
			types.ModuleAccess:  admins,
		},
		"presale": map[string]interface{}{"ethUsd": "3000000000", "bnbUsd": "600000000"},
		"oracle":  map[string]interface{}{"enabled": false},
	})
	if err != nil {
		t.Fatalf("marshal genesis: %v", err)
	}
	spec, err := genesis.ParseGenesisSpec(raw)
	if err != nil {
		t.Fatalf("parse genesis: %v", err)
	}
	dsn, err := journal.FileDSN(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("journal dsn: %v", err)
	}
	j, err := journal.Open(dsn)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	node, err := core.NewNode(storage.NewMemDB(), spec, core.NodeOptions{
		Journal: j,
		Clock:   func() time.Time { return time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	f.node = node
	f.journal = j
	return f
}

func mustKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func (f *fixture) server(t *testing.T, cfg ServerConfig) http.Handler {
	t.Helper()
	srv, err := NewServer(f.node, f.journal, cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv.Handler()
}

func signedApprove(t *testing.T, key *crypto.PrivateKey, nonce uint64, spender common.Address) *types.Transaction {
	t.Helper()
	data, err := json.Marshal(types.ApprovePayload{Spender: spender.Hex(), Amount: "1000"})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	tx := &types.Transaction{ChainID: testChainID, Type: types.TxTypeApprove, Nonce: nonce, Data: data}
	if err := tx.Sign(key.PrivateKey); err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tx
}

type rpcResult struct {
	Status int
	Header http.Header
	Result json.RawMessage
	Error  *RPCError
}

func call(t *testing.T, handler http.Handler, header http.Header, method string, params ...interface{}) rpcResult {
	t.Helper()
	rawParams := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		encoded, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("marshal param: %v", err)
		}
		rawParams = append(rawParams, encoded)
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: rawParams, ID: 1})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return post(t, handler, header, body)
}

func post(t *testing.T, handler http.Handler, header http.Header, body []byte) rpcResult {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.RemoteAddr = "192.0.2.10:4000"
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rpcResult{Status: rec.Code, Header: rec.Header(), Result: resp.Result, Error: resp.Error}
}

func TestSendTransactionRecordsReceipt(t *testing.T) {
	f := newFixture(t)
	handler := f.server(t, ServerConfig{})
	spender := f.admin1.PubKey().Address()

	tx := signedApprove(t, f.user, 0, spender)
	res := call(t, handler, nil, "lp_sendTransaction", tx)
	if res.Error != nil {
		t.Fatalf("send failed: %v", res.Error)
	}
	var receipt types.Receipt
	if err := json.Unmarshal(res.Result, &receipt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if !receipt.Success || receipt.Height != 1 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}

	res = call(t, handler, nil, "lp_getReceipt", receipt.TxHash.Hex())
	if res.Error != nil {
		t.Fatalf("get receipt: %v", res.Error)
	}
	var stored types.Receipt
	if err := json.Unmarshal(res.Result, &stored); err != nil {
		t.Fatalf("decode stored receipt: %v", err)
	}
	if stored.StateRoot != receipt.StateRoot || len(stored.Events) != len(receipt.Events) {
		t.Fatalf("stored receipt mismatch: %+v vs %+v", stored, receipt)
	}

	res = call(t, handler, nil, "lp_getNonce", crypto.FormatAddress(f.user.PubKey().Address()))
	if res.Error != nil || string(res.Result) != "1" {
		t.Fatalf("expected nonce 1, got %s (%v)", res.Result, res.Error)
	}

	res = call(t, handler, nil, "token_allowance", f.user.PubKey().Address().Hex(), spender.Hex())
	if res.Error != nil || string(res.Result) != "1000" {
		t.Fatalf("expected allowance 1000, got %s (%v)", res.Result, res.Error)
	}

	res = call(t, handler, nil, "lp_getEvents", EventQuery{Type: events.TypeTokenApproval})
	if res.Error != nil {
		t.Fatalf("get events: %v", res.Error)
	}
	var list []EventResult
	if err := json.Unmarshal(res.Result, &list); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(list) != 1 || list[0].TxHash != receipt.TxHash || list[0].Height != 1 {
		t.Fatalf("unexpected events: %+v", list)
	}
}

func TestSendTransactionRejectsStaleNonce(t *testing.T) {
	f := newFixture(t)
	handler := f.server(t, ServerConfig{})
	tx := signedApprove(t, f.user, 3, f.admin1.PubKey().Address())

	res := call(t, handler, nil, "lp_sendTransaction", tx)
	if res.Error == nil || res.Error.Code != codeInvalidParams || res.Status != http.StatusBadRequest {
		t.Fatalf("expected invalid params, got %d %+v", res.Status, res.Error)
	}
	if f.node.Height() != 0 {
		t.Fatalf("rejected transaction must not advance height")
	}
}

func TestGetReceiptNotFound(t *testing.T) {
	f := newFixture(t)
	handler := f.server(t, ServerConfig{})
	res := call(t, handler, nil, "lp_getReceipt", common.Hash{1}.Hex())
	if res.Status != http.StatusNotFound || res.Error == nil {
		t.Fatalf("expected not found, got %d %+v", res.Status, res.Error)
	}
	res = call(t, handler, nil, "lp_getReceipt", "0x1234")
	if res.Error == nil || res.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid hash error, got %+v", res.Error)
	}
}

func TestSendTransactionRateLimited(t *testing.T) {
	f := newFixture(t)
	handler := f.server(t, ServerConfig{RateLimitPerSec: 0.001, RateLimitBurst: 1})
	spender := f.admin1.PubKey().Address()

	if res := call(t, handler, nil, "lp_sendTransaction", signedApprove(t, f.user, 0, spender)); res.Error != nil {
		t.Fatalf("first send failed: %v", res.Error)
	}
	res := call(t, handler, nil, "lp_sendTransaction", signedApprove(t, f.user, 1, spender))
	if res.Status != http.StatusTooManyRequests || res.Error == nil || res.Error.Code != codeRateLimited {
		t.Fatalf("expected rate limit, got %d %+v", res.Status, res.Error)
	}
	// Reads are not throttled.
	if res := call(t, handler, nil, "token_info"); res.Error != nil {
		t.Fatalf("token_info throttled: %v", res.Error)
	}
}

func TestSendTransactionRequiresJWT(t *testing.T) {
	f := newFixture(t)
	cfg := ServerConfig{JWT: JWTConfig{Enable: true, Secret: "rpc-test-secret", Issuer: "launchpad-cli", Audience: "launchpad"}}
	handler := f.server(t, cfg)
	spender := f.admin1.PubKey().Address()

	res := call(t, handler, nil, "lp_sendTransaction", signedApprove(t, f.user, 0, spender))
	if res.Status != http.StatusUnauthorized || res.Error == nil || res.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized, got %d %+v", res.Status, res.Error)
	}

	wrong, err := IssueToken("other-secret", "launchpad-cli", "launchpad", time.Minute, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	header := http.Header{"Authorization": []string{"Bearer " + wrong}}
	if res := call(t, handler, header, "lp_sendTransaction", signedApprove(t, f.user, 0, spender)); res.Error == nil || res.Error.Code != codeUnauthorized {
		t.Fatalf("expected wrong secret to be rejected, got %+v", res.Error)
	}

	token, err := IssueToken("rpc-test-secret", "launchpad-cli", "launchpad", time.Minute, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	header = http.Header{"Authorization": []string{"Bearer " + token}}
	if res := call(t, handler, header, "lp_sendTransaction", signedApprove(t, f.user, 0, spender)); res.Error != nil {
		t.Fatalf("authorised send failed: %v", res.Error)
	}
	// Queries stay open.
	if res := call(t, handler, nil, "lp_chainInfo"); res.Error != nil {
		t.Fatalf("chain info: %v", res.Error)
	}
}

func TestNewServerRequiresJWTSecret(t *testing.T) {
	f := newFixture(t)
	if _, err := NewServer(f.node, nil, ServerConfig{JWT: JWTConfig{Enable: true}}); err == nil {
		t.Fatalf("expected missing secret error")
	}
	if _, err := NewServer(nil, nil, ServerConfig{}); err == nil {
		t.Fatalf("expected nil backend error")
	}
}

func TestMalformedRequests(t *testing.T) {
	f := newFixture(t)
	handler := f.server(t, ServerConfig{MaxBodyBytes: 256})

	res := post(t, handler, nil, []byte(`{"jsonrpc":`))
	if res.Error == nil || res.Error.Code != codeParseError {
		t.Fatalf("expected parse error, got %+v", res.Error)
	}
	res = post(t, handler, nil, []byte(`{"jsonrpc":"1.0","method":"token_info","id":1}`))
	if res.Error == nil || res.Error.Code != codeInvalidRequest {
		t.Fatalf("expected invalid request, got %+v", res.Error)
	}
	res = call(t, handler, nil, "eth_blockNumber")
	if res.Status != http.StatusNotFound || res.Error == nil || res.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method not found, got %d %+v", res.Status, res.Error)
	}
	large := []byte(`{"jsonrpc":"2.0","method":"token_info","id":1,"params":["` + strings.Repeat("x", 512) + `"]}`)
	res = post(t, handler, nil, large)
	if res.Status != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Status)
	}
}

func TestQueryMethods(t *testing.T) {
	f := newFixture(t)
	handler := f.server(t, ServerConfig{})
	user := crypto.FormatAddress(f.user.PubKey().Address())

	res := call(t, handler, nil, "token_info")
	if res.Error != nil || !strings.Contains(string(res.Result), `"symbol":"LPT"`) {
		t.Fatalf("token_info: %s %v", res.Result, res.Error)
	}

	res = call(t, handler, nil, "token_balance", user)
	var balance BalanceResult
	if res.Error != nil {
		t.Fatalf("token_balance: %v", res.Error)
	}
	if err := json.Unmarshal(res.Result, &balance); err != nil || balance.Asset != "LPT" || balance.Balance.Sign() != 0 {
		t.Fatalf("unexpected balance %+v (%v)", balance, err)
	}
	if res := call(t, handler, nil, "token_balance", user, "DOGE"); res.Error == nil {
		t.Fatalf("expected unknown asset error")
	}

	if res := call(t, handler, nil, "presale_stats"); res.Error != nil {
		t.Fatalf("presale_stats: %v", res.Error)
	}
	if res := call(t, handler, nil, "presale_phase", 1); res.Error != nil || !strings.Contains(string(res.Result), `"number":1`) {
		t.Fatalf("presale_phase: %s %v", res.Result, res.Error)
	}
	if res := call(t, handler, nil, "presale_phase", 42); res.Status != http.StatusNotFound {
		t.Fatalf("expected missing phase, got %d %+v", res.Status, res.Error)
	}
	if res := call(t, handler, nil, "presale_purchase", user); res.Error != nil {
		t.Fatalf("presale_purchase: %v", res.Error)
	}
	if res := call(t, handler, nil, "presale_listingPrice"); res.Error != nil {
		t.Fatalf("presale_listingPrice: %v", res.Error)
	}
	if res := call(t, handler, nil, "vesting_record", user); res.Status != http.StatusNotFound {
		t.Fatalf("expected no vesting allocation, got %d %+v", res.Status, res.Error)
	}
	if res := call(t, handler, nil, "vesting_status"); res.Error != nil {
		t.Fatalf("vesting_status: %v", res.Error)
	}
	if res := call(t, handler, nil, "oracle_quote", "ETH"); res.Status != http.StatusNotFound {
		t.Fatalf("expected no quote, got %d %+v", res.Status, res.Error)
	}

	res = call(t, handler, nil, "multisig_nonce", types.ModulePresale)
	if res.Error != nil || string(res.Result) != "0" {
		t.Fatalf("multisig_nonce: %s %v", res.Result, res.Error)
	}
	if res := call(t, handler, nil, "multisig_nonce", "ledger"); res.Error == nil || res.Error.Code != codeInvalidParams {
		t.Fatalf("expected unknown module error, got %+v", res.Error)
	}
	if res := call(t, handler, nil, "multisig_operation", types.ModuleToken, common.Hash{7}.Hex()); res.Status != http.StatusNotFound {
		t.Fatalf("expected missing operation, got %d", res.Status)
	}

	res = call(t, handler, nil, "access_roleMembers", types.ModuleToken, access.RoleAdmin)
	var members []string
	if res.Error != nil {
		t.Fatalf("access_roleMembers: %v", res.Error)
	}
	if err := json.Unmarshal(res.Result, &members); err != nil || len(members) != 2 {
		t.Fatalf("unexpected members %v (%v)", members, err)
	}

	res = call(t, handler, nil, "lp_moduleActions", "admin")
	if res.Error != nil || !strings.Contains(string(res.Result), "token.pause") {
		t.Fatalf("lp_moduleActions: %s %v", res.Result, res.Error)
	}
	if res := call(t, handler, nil, "lp_moduleActions", "buy"); res.Error == nil {
		t.Fatalf("expected buy to be rejected for module actions")
	}

	res = call(t, handler, nil, "lp_chainInfo")
	var info ChainInfoResult
	if err := json.Unmarshal(res.Result, &info); err != nil || info.ChainID != testChainID {
		t.Fatalf("unexpected chain info %+v (%v)", info, err)
	}
}

func TestMultisigOperationOverRPC(t *testing.T) {
	f := newFixture(t)
	handler := f.server(t, ServerConfig{})

	data, err := json.Marshal(types.ModuleCallPayload{
		Module: types.ModulePresale,
		Action: "setClaimEnabled",
		Args:   json.RawMessage(`{"enabled":true}`),
	})
	if err != nil {
		t.Fatalf("marshal call: %v", err)
	}
	tx := &types.Transaction{ChainID: testChainID, Type: types.TxTypeConfirm, Data: data}
	if err := tx.Sign(f.admin1.PrivateKey); err != nil {
		t.Fatalf("sign: %v", err)
	}
	res := call(t, handler, nil, "lp_sendTransaction", tx)
	if res.Error != nil {
		t.Fatalf("send confirm: %v", res.Error)
	}
	var receipt types.Receipt
	if err := json.Unmarshal(res.Result, &receipt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if len(receipt.Events) != 0 {
		t.Fatalf("first confirmation must not emit events: %+v", receipt.Events)
	}

	// Operation ids are deterministic, so the co-signer derives the id from
	// the same parameters.
	scratch, err := trie.NewTrie(storage.NewMemDB(), nil)
	if err != nil {
		t.Fatalf("scratch trie: %v", err)
	}
	ledger := multisig.NewLedger(types.ModulePresale)
	ledger.SetState(lpstate.NewManager(scratch))
	id, err := ledger.OperationID(multisig.Operation{
		Signature: "setClaimEnabled(bool)",
		Args:      &struct{ Enabled bool }{Enabled: true},
	})
	if err != nil {
		t.Fatalf("operation id: %v", err)
	}
	opID := id.Hex()

	res = call(t, handler, nil, "multisig_operation", types.ModulePresale, opID)
	if res.Error != nil {
		t.Fatalf("multisig_operation: %v", res.Error)
	}
	var op OperationResult
	if err := json.Unmarshal(res.Result, &op); err != nil {
		t.Fatalf("decode operation: %v", err)
	}
	if op.Executed || len(op.Confirmations) != 1 || op.Confirmations[0] != crypto.FormatAddress(f.admin1.PubKey().Address()) {
		t.Fatalf("unexpected operation: %+v", op)
	}
}

func TestHealthMetricsAndRequestID(t *testing.T) {
	f := newFixture(t)
	handler := f.server(t, ServerConfig{AllowedOrigins: []string{"https://app.example"}})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}

	call(t, handler, nil, "token_info")
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	body, _ := io.ReadAll(rec.Body)
	if rec.Code != http.StatusOK || !strings.Contains(string(body), "launchpad_rpc_requests_total") {
		t.Fatalf("metrics endpoint missing rpc counters: %d", rec.Code)
	}

	res := call(t, handler, http.Header{requestIDHeader: []string{"req-123"}, "Origin": []string{"https://app.example"}}, "token_info")
	if got := res.Header.Get(requestIDHeader); got != "req-123" {
		t.Fatalf("expected echoed request id, got %q", got)
	}
	if got := res.Header.Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("expected CORS header, got %q", got)
	}
}
