package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistributeBatch(t *testing.T) {
	var got rpcRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rpc", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"result": {"hash": "0xabc"}}`))
	}))
	defer srv.Close()

	c := NewRPCClient(srv.URL, time.Second, nil)
	hash, err := c.DistributeBatch(context.Background(),
		[]string{"0x1", "0x2"},
		[]decimal.Decimal{decimal.NewFromInt(150), decimal.NewFromInt(120)},
	)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", hash)

	assert.Equal(t, "2.0", got.JSONRPC)
	assert.Equal(t, "distributeTokensInBatch", got.Method)
	assert.NotEmpty(t, got.ID)
	params, ok := got.Params.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"0x1", "0x2"}, params["toBatch"])
	assert.Equal(t, []any{"150", "120"}, params["quantityBatch"])
}

func TestDistributeBatchRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"error": {"code": -32000, "message": "insufficient funds"}}`))
	}))
	defer srv.Close()

	c := NewRPCClient(srv.URL, time.Second, nil)
	_, err := c.DistributeBatch(context.Background(),
		[]string{"0x1"}, []decimal.Decimal{decimal.NewFromInt(10)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient funds")
}

func TestDistributeBatchLengthMismatch(t *testing.T) {
	c := NewRPCClient("http://unused", time.Second, nil)
	_, err := c.DistributeBatch(context.Background(), []string{"0x1"}, nil)
	require.Error(t, err)
}

func TestBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/balance/all/0xabc", r.URL.Path)
		w.Write([]byte(`{"tokens": "42.5", "ethers": "0.003"}`))
	}))
	defer srv.Close()

	c := NewRPCClient(srv.URL, time.Second, nil)
	tokens, native, err := c.Balance(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.True(t, tokens.Equal(decimal.RequireFromString("42.5")))
	assert.True(t, native.Equal(decimal.RequireFromString("0.003")))
}

func TestBalanceStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such address", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewRPCClient(srv.URL, time.Second, nil)
	_, _, err := c.Balance(context.Background(), "0xabc")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}
