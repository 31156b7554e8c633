package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"launchpad/core/types"
	"launchpad/rpc"
)

type recordedCall struct {
	Method string
	Params []json.RawMessage
	Auth   string
}

func newStub(t *testing.T, reply func(method string) string) (*httptest.Server, *[]recordedCall) {
	t.Helper()
	calls := &[]recordedCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req rpc.RPCRequest
		require.NoError(t, json.Unmarshal(body, &req))
		require.Equal(t, "2.0", req.JSONRPC)
		*calls = append(*calls, recordedCall{Method: req.Method, Params: req.Params, Auth: r.Header.Get("Authorization")})
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, reply(req.Method))
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func TestCallDecodesResults(t *testing.T) {
	srv, calls := newStub(t, func(method string) string {
		switch method {
		case "lp_getNonce":
			return `{"jsonrpc":"2.0","id":1,"result":7}`
		case "token_info":
			return `{"jsonrpc":"2.0","id":1,"result":{"symbol":"LPT","decimals":18,"totalSupply":1000,"paused":true}}`
		case "presale_phase":
			return `{"jsonrpc":"2.0","id":1,"result":{"number":2,"pricePerToken":850000,"status":"active","remaining":5}}`
		}
		return `{"jsonrpc":"2.0","id":1,"result":null}`
	})
	c, err := New(srv.URL, Options{})
	require.NoError(t, err)
	ctx := context.Background()

	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	nonce, err := c.Nonce(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, uint64(7), nonce)

	info, err := c.TokenInfo(ctx)
	require.NoError(t, err)
	require.Equal(t, "LPT", info.Symbol)
	require.True(t, info.Paused)
	require.Equal(t, int64(1000), info.TotalSupply.Int64())

	phase, err := c.PresalePhase(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(2), phase.Number)
	require.Equal(t, int64(850000), phase.PricePerToken.Int64())

	require.Len(t, *calls, 3)
	require.Equal(t, `"`+addr.Hex()+`"`, string((*calls)[0].Params[0]))
	require.Empty(t, (*calls)[0].Auth)
}

func TestCallReturnsRPCError(t *testing.T) {
	srv, _ := newStub(t, func(string) string {
		return `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"receipt not found"}}`
	})
	c, err := New(srv.URL, Options{})
	require.NoError(t, err)

	_, err = c.Receipt(context.Background(), common.Hash{1})
	var rpcErr *rpc.RPCError
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, -32602, rpcErr.Code)
	require.Contains(t, err.Error(), "receipt not found")
}

func TestSendTransactionAttachesToken(t *testing.T) {
	srv, calls := newStub(t, func(string) string {
		return `{"jsonrpc":"2.0","id":1,"result":{"success":true,"height":3,"events":[]}}`
	})
	c, err := New(srv.URL, Options{Token: func() (string, error) { return "signed-token", nil }})
	require.NoError(t, err)
	ctx := context.Background()

	receipt, err := c.SendTransaction(ctx, &types.Transaction{ChainID: 1, Type: types.TxTypeVestingClaim})
	require.NoError(t, err)
	require.True(t, receipt.Success)
	require.Equal(t, uint64(3), receipt.Height)

	_, err = c.ChainInfo(ctx)
	require.NoError(t, err)

	require.Equal(t, "Bearer signed-token", (*calls)[0].Auth)
	require.Empty(t, (*calls)[1].Auth, "queries must not carry credentials")
}

func TestTokenSourceFailure(t *testing.T) {
	srv, calls := newStub(t, func(string) string { return `{"jsonrpc":"2.0","id":1,"result":{}}` })
	c, err := New(srv.URL, Options{Token: func() (string, error) { return "", errors.New("secret unset") }})
	require.NoError(t, err)

	_, err = c.SendTransaction(context.Background(), &types.Transaction{})
	require.ErrorContains(t, err, "secret unset")
	require.Empty(t, *calls)
}

func TestNewRejectsEmptyEndpoint(t *testing.T) {
	_, err := New("  ", Options{})
	require.Error(t, err)
}
