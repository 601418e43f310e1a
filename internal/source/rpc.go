package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RPCClient talks to the tokenization service's JSON-RPC endpoint.
type RPCClient struct {
	endpoint string
	httpc    *http.Client
	logger   *zap.Logger
}

// NewRPCClient creates a JSON-RPC client for the tokenization service.
func NewRPCClient(endpoint string, timeout time.Duration, logger *zap.Logger) *RPCClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RPCClient{
		endpoint: endpoint,
		httpc:    &http.Client{Timeout: timeout},
		logger:   logger.Named("rpc"),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      string `json:"id"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// DistributeBatch sends one distributeTokensInBatch call for the given
// addresses and per-address amounts. It returns the transaction hash
// reported by the service.
func (c *RPCClient) DistributeBatch(ctx context.Context, addrs []string, amounts []decimal.Decimal) (string, error) {
	if len(addrs) != len(amounts) {
		return "", fmt.Errorf("address/amount length mismatch: %d != %d", len(addrs), len(amounts))
	}

	quantities := make([]string, len(amounts))
	for i, a := range amounts {
		quantities[i] = a.String()
	}

	result, err := c.call(ctx, "distributeTokensInBatch", map[string]any{
		"toBatch":       addrs,
		"quantityBatch": quantities,
	})
	if err != nil {
		return "", err
	}

	var payload struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return "", fmt.Errorf("decode distribute result: %w", err)
	}
	return payload.Hash, nil
}

// Balance returns the token and native balances for an address via the
// service's REST balance endpoint.
func (c *RPCClient) Balance(ctx context.Context, address string) (tokens, native decimal.Decimal, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/balance/all/"+address, nil)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("balance request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("read balance response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, decimal.Zero, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var payload struct {
		Tokens decimal.Decimal `json:"tokens"`
		Ethers decimal.Decimal `json:"ethers"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("decode balance response: %w", err)
	}
	return payload.Tokens, payload.Ethers, nil
}

func (c *RPCClient) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		ID:      uuid.NewString(),
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/rpc", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read rpc response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("decode rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("rpc %s failed: %d %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}
