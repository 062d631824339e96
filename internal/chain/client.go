// Package chain talks to the blockchain node that backs reward escrow.
//
// The node exposes a JSON-RPC 2.0 endpoint. Only the two calls the bot needs
// are implemented: balance lookup and signed transfer submission.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultRequestTimeout bounds a single RPC round trip.
const DefaultRequestTimeout = 30 * time.Second

// ErrTransferRejected indicates the node refused the submitted transfer.
var ErrTransferRejected = errors.New("chain: transfer rejected by node")

// Client exposes the chain operations the bot depends on.
type Client interface {
	// Balance returns the spendable balance of an address in whole coins.
	Balance(ctx context.Context, address string) (float64, error)
	// SubmitTransfer broadcasts a signed transfer and returns the
	// transaction ID once the node accepts it.
	SubmitTransfer(ctx context.Context, signedTx string) (string, error)
}

// Opts holds configuration options for the RPC client.
type Opts struct {
	Endpoint   string
	HTTPClient *http.Client
}

// Option defines a configuration option for the RPC client.
type Option func(*Opts)

// WithEndpoint sets the node's JSON-RPC URL.
func WithEndpoint(url string) Option {
	return func(o *Opts) { o.Endpoint = url }
}

// WithHTTPClient overrides the HTTP client used for RPC calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// RPCClient is a JSON-RPC 2.0 client for the chain node.
type RPCClient struct {
	endpoint string
	http     *http.Client
}

// NewRPCClient creates a chain client for the given node endpoint.
func NewRPCClient(opts ...Option) (*RPCClient, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("chain endpoint not set")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	return &RPCClient{endpoint: cfg.Endpoint, http: httpClient}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call performs one JSON-RPC round trip and unmarshals the result into out.
func (c *RPCClient) call(ctx context.Context, method string, params, out any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("failed to marshal RPC request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create RPC request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Error("RPCClient call failed", "method", method, "error", err)
		return fmt.Errorf("RPC call %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("RPC call %s returned status %d: %s", method, resp.StatusCode, payload)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("failed to decode RPC response for %s: %w", method, err)
	}
	if rpcResp.Error != nil {
		slog.Warn("RPCClient node error", "method", method, "code", rpcResp.Error.Code, "message", rpcResp.Error.Message)
		return fmt.Errorf("node error %d for %s: %s", rpcResp.Error.Code, method, rpcResp.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("failed to unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

func (c *RPCClient) Balance(ctx context.Context, address string) (float64, error) {
	var result struct {
		Balance float64 `json:"balance"`
	}
	if err := c.call(ctx, "get_balance", map[string]string{"address": address}, &result); err != nil {
		return 0, err
	}
	slog.Debug("RPCClient Balance fetched", "address", address, "balance", result.Balance)
	return result.Balance, nil
}

func (c *RPCClient) SubmitTransfer(ctx context.Context, signedTx string) (string, error) {
	var result struct {
		TxID     string `json:"tx_id"`
		Accepted bool   `json:"accepted"`
	}
	if err := c.call(ctx, "submit_transfer", map[string]string{"tx": signedTx}, &result); err != nil {
		return "", err
	}
	if !result.Accepted {
		return "", ErrTransferRejected
	}
	slog.Info("RPCClient transfer accepted", "tx_id", result.TxID)
	return result.TxID, nil
}
