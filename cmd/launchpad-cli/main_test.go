package main

import (
	"bytes"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"launchpad/core/types"
	"launchpad/crypto"
	"launchpad/native/presale"
	"launchpad/rpc"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")

	profile, err := LoadProfile(path)
	require.NoError(t, err)
	require.Equal(t, defaultRPCURL, profile.RPCURL)
	require.Equal(t, filepath.Join(dir, "keystore.json"), profile.Keystore)
	require.Equal(t, defaultPassphraseEnv, profile.PassphraseEnv)

	require.NoError(t, os.WriteFile(path, []byte("rpcUrl: http://node:8545\njwtSecretEnv: LP_SECRET\n"), 0o600))
	profile, err = LoadProfile(path)
	require.NoError(t, err)
	require.Equal(t, "http://node:8545", profile.RPCURL)
	require.Equal(t, "LP_SECRET", profile.JWTSecretEnv)
	require.Equal(t, "launchpad-cli", profile.JWTIssuer, "unset keys keep defaults")

	require.NoError(t, os.WriteFile(path, []byte("rpcUrl: http://node:8545\nvalidatorKey: abc\n"), 0o600))
	_, err = LoadProfile(path)
	require.Error(t, err)

	require.NoError(t, SaveProfile(filepath.Join(dir, "nested", "p.yaml"), &Profile{RPCURL: "http://x"}))
	reloaded, err := LoadProfile(filepath.Join(dir, "nested", "p.yaml"))
	require.NoError(t, err)
	require.Equal(t, "http://x", reloaded.RPCURL)
}

func findKind(t *testing.T, txType types.TxType) txKind {
	t.Helper()
	for _, kind := range txKinds {
		if kind.txType == txType {
			return kind
		}
	}
	t.Fatalf("no tx kind for %s", txType)
	return txKind{}
}

func TestBuildTransactionPayloads(t *testing.T) {
	sender := common.HexToAddress("0x00000000000000000000000000000000000000b1")
	referrer := common.HexToAddress("0x00000000000000000000000000000000000000c2")

	tx, err := buildTransaction(findKind(t, types.TxTypeBuy), sender, 7, 2, []string{"eth", "1000"},
		txOptions{Referrer: crypto.FormatAddress(referrer), MinTokens: "5"})
	require.NoError(t, err)
	require.Equal(t, uint64(7), tx.ChainID)
	require.Equal(t, uint64(2), tx.Nonce)
	var buy types.BuyPayload
	require.NoError(t, json.Unmarshal(tx.Data, &buy))
	require.Equal(t, "ETH", buy.Asset)
	require.Equal(t, referrer.Hex(), buy.Referrer)
	require.Equal(t, "5", buy.MinTokensExpected)

	tx, err = buildTransaction(findKind(t, types.TxTypeCommitPurchase), sender, 7, 0, []string{"1000", "42"}, txOptions{})
	require.NoError(t, err)
	var commit types.CommitPurchasePayload
	require.NoError(t, json.Unmarshal(tx.Data, &commit))
	require.Equal(t, presale.CommitmentHash(sender, big.NewInt(1000), big.NewInt(42)).Hex(), commit.Commitment)

	tx, err = buildTransaction(findKind(t, types.TxTypeVestingClaim), sender, 7, 0, nil, txOptions{})
	require.NoError(t, err)
	require.Empty(t, tx.Data)

	_, err = buildTransaction(findKind(t, types.TxTypeConfirm), sender, 7, 0, []string{"presale", "setClaimEnabled"}, txOptions{Args: "{enabled"})
	require.Error(t, err)

	tx, err = buildTransaction(findKind(t, types.TxTypeConfirm), sender, 7, 0, []string{"presale", "setClaimEnabled"}, txOptions{Args: `{"enabled":true}`})
	require.NoError(t, err)
	var call types.ModuleCallPayload
	require.NoError(t, json.Unmarshal(tx.Data, &call))
	require.Equal(t, "setClaimEnabled", call.Action)
	require.JSONEq(t, `{"enabled":true}`, string(call.Args))

	_, err = buildTransaction(findKind(t, types.TxTypeTransfer), sender, 7, 0, []string{"not-an-address", "1"}, txOptions{})
	require.Error(t, err)
}

type stubNode struct {
	t        *testing.T
	chainID  uint64
	nonce    uint64
	sent     []*types.Transaction
	authSeen []string
}

func (s *stubNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpc.RPCRequest
	require.NoError(s.t, json.NewDecoder(r.Body).Decode(&req))
	var result interface{}
	switch req.Method {
	case "lp_chainInfo":
		result = rpc.ChainInfoResult{ChainID: s.chainID, Height: 10}
	case "lp_getNonce":
		result = s.nonce
	case "lp_sendTransaction":
		tx := new(types.Transaction)
		require.NoError(s.t, json.Unmarshal(req.Params[0], tx))
		s.sent = append(s.sent, tx)
		s.authSeen = append(s.authSeen, r.Header.Get("Authorization"))
		result = types.Receipt{Success: true, Height: 11, Events: []types.Event{}}
	default:
		_ = json.NewEncoder(w).Encode(rpc.RPCResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpc.RPCError{Code: -32601, Message: "unknown method"}})
		return
	}
	_ = json.NewEncoder(w).Encode(rpc.RPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
}

func TestQueryChainCommand(t *testing.T) {
	node := &stubNode{t: t, chainID: 77}
	srv := httptest.NewServer(node)
	defer srv.Close()

	out, err := runCLI(t, "--profile", filepath.Join(t.TempDir(), "profile.yaml"), "--rpc", srv.URL, "query", "chain")
	require.NoError(t, err)
	require.Contains(t, out, `"chainId": 77`)

	_, err = runCLI(t, "--profile", filepath.Join(t.TempDir(), "profile.yaml"), "--rpc", srv.URL, "query", "vesting-status")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown method")
}

func TestTxCommandSignsWithKeystore(t *testing.T) {
	dir := t.TempDir()
	keystorePath := filepath.Join(dir, "admin.json")
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	require.NoError(t, crypto.SaveToKeystore(keystorePath, key, "hunter2", crypto.LightScrypt))

	t.Setenv("LP_TEST_PASS", "hunter2")
	t.Setenv("LP_TEST_JWT", "cli-secret")
	profilePath := filepath.Join(dir, "profile.yaml")
	node := &stubNode{t: t, chainID: 77, nonce: 4}
	srv := httptest.NewServer(node)
	defer srv.Close()
	require.NoError(t, SaveProfile(profilePath, &Profile{
		RPCURL:        srv.URL,
		Keystore:      keystorePath,
		PassphraseEnv: "LP_TEST_PASS",
		JWTSecretEnv:  "LP_TEST_JWT",
		JWTIssuer:     "launchpad-cli",
	}))

	out, err := runCLI(t, "--profile", profilePath, "tx", "confirm", "presale", "setClaimEnabled", "--args", `{"enabled":true}`)
	require.NoError(t, err)
	require.Contains(t, out, `"success": true`)

	require.Len(t, node.sent, 1)
	tx := node.sent[0]
	require.Equal(t, uint64(77), tx.ChainID)
	require.Equal(t, uint64(4), tx.Nonce)
	require.Equal(t, types.TxTypeConfirm, tx.Type)
	from, err := tx.From()
	require.NoError(t, err)
	require.Equal(t, key.PubKey().Address(), from)
	require.True(t, strings.HasPrefix(node.authSeen[0], "Bearer "))

	out, err = runCLI(t, "--profile", profilePath, "address")
	require.NoError(t, err)
	require.Contains(t, out, crypto.FormatAddress(key.PubKey().Address()))
}

func TestKeygenRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(defaultPassphraseEnv, "correct horse")
	profilePath := filepath.Join(dir, "profile.yaml")

	out, err := runCLI(t, "--profile", profilePath, "keygen", "--light")
	require.NoError(t, err)
	require.Contains(t, out, crypto.AddressPrefix)
	_, err = os.Stat(profilePath)
	require.NoError(t, err, "keygen writes a fresh profile")

	_, err = runCLI(t, "--profile", profilePath, "keygen", "--light")
	require.Error(t, err)
	require.Contains(t, err.Error(), "--force")
}
