package rpc

import (
	"context"
	"fmt"
)

// GetAccountInfo returns the account at address, or nil when the node reports
// no account there.
func (c *Client) GetAccountInfo(ctx context.Context, address string, commitment string) (*AccountInfo, error) {
	var resp struct {
		Result struct {
			Value *AccountInfo `json:"value"`
		} `json:"result"`
		Error *RPCError `json:"error"`
	}

	params := []any{
		address,
		map[string]any{
			"encoding":   "base64",
			"commitment": commitment,
		},
	}

	if err := c.Call(ctx, "getAccountInfo", params, &resp); err != nil {
		return nil, fmt.Errorf("getAccountInfo: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("getAccountInfo: %w", resp.Error)
	}
	return resp.Result.Value, nil
}

// GetTokenAccountBalance reads the raw balance of an SPL token account.
// A missing account surfaces as an *RPCError matched by IsAccountNotFound.
func (c *Client) GetTokenAccountBalance(ctx context.Context, address string, commitment string) (*TokenAmount, error) {
	var resp struct {
		Result struct {
			Value TokenAmount `json:"value"`
		} `json:"result"`
		Error *RPCError `json:"error"`
	}

	params := []any{
		address,
		map[string]any{"commitment": commitment},
	}

	if err := c.Call(ctx, "getTokenAccountBalance", params, &resp); err != nil {
		return nil, fmt.Errorf("getTokenAccountBalance: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("getTokenAccountBalance: %w", resp.Error)
	}
	return &resp.Result.Value, nil
}

// GetTokenSupply returns the mint supply, which carries the mint decimals.
func (c *Client) GetTokenSupply(ctx context.Context, mint string, commitment string) (*TokenAmount, error) {
	var resp struct {
		Result struct {
			Value TokenAmount `json:"value"`
		} `json:"result"`
		Error *RPCError `json:"error"`
	}

	params := []any{
		mint,
		map[string]any{"commitment": commitment},
	}

	if err := c.Call(ctx, "getTokenSupply", params, &resp); err != nil {
		return nil, fmt.Errorf("getTokenSupply: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("getTokenSupply: %w", resp.Error)
	}
	return &resp.Result.Value, nil
}

// GetLatestBlockhash fetches the most recent blockhash with commitment level
func (c *Client) GetLatestBlockhash(ctx context.Context, commitment string) (*Blockhash, error) {
	var resp struct {
		Result struct {
			Value Blockhash `json:"value"`
		} `json:"result"`
		Error *RPCError `json:"error"`
	}

	params := []any{
		map[string]any{"commitment": commitment},
	}

	if err := c.Call(ctx, "getLatestBlockhash", params, &resp); err != nil {
		return nil, fmt.Errorf("getLatestBlockhash: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("getLatestBlockhash: %w", resp.Error)
	}
	return &resp.Result.Value, nil
}

// SendTransaction submits a base64 encoded, signed transaction and returns
// its signature.
func (c *Client) SendTransaction(ctx context.Context, encodedTx string, opts SendOptions) (string, error) {
	cfg := map[string]any{
		"encoding":      "base64",
		"skipPreflight": opts.SkipPreflight,
	}
	if opts.PreflightCommitment != "" {
		cfg["preflightCommitment"] = opts.PreflightCommitment
	}
	if opts.MaxRetries != nil {
		cfg["maxRetries"] = *opts.MaxRetries
	}

	var resp struct {
		Result string    `json:"result"`
		Error  *RPCError `json:"error"`
	}

	if err := c.Call(ctx, "sendTransaction", []any{encodedTx, cfg}, &resp); err != nil {
		return "", fmt.Errorf("sendTransaction: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("sendTransaction: %w", resp.Error)
	}
	return resp.Result, nil
}

// GetSignatureStatuses returns one entry per signature; entries are nil for
// signatures the node has not seen.
func (c *Client) GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error) {
	var resp struct {
		Result struct {
			Value []*SignatureStatus `json:"value"`
		} `json:"result"`
		Error *RPCError `json:"error"`
	}

	params := []any{
		signatures,
		map[string]any{"searchTransactionHistory": true},
	}

	if err := c.Call(ctx, "getSignatureStatuses", params, &resp); err != nil {
		return nil, fmt.Errorf("getSignatureStatuses: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("getSignatureStatuses: %w", resp.Error)
	}
	return resp.Result.Value, nil
}
