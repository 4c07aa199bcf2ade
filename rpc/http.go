package rpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"cosmossdk.io/log"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/blockberries/tower-sdk/types"
)

const (
	// DefaultTimeout bounds each HTTP round trip.
	DefaultTimeout = 10 * time.Second

	maxResponseBytes = 1 << 20
)

// HTTPClient is a Dispatcher speaking JSON over HTTP to an application server.
//
// Nonces are tracked per account. The first send for an account seeds its
// counter from QueryState. Any failed send drops the counter so the next
// send re-reads it from the server. Sends are never retried.
type HTTPClient struct {
	endpoint string
	appID    string
	http     *http.Client
	signers  SignerResolver
	logger   log.Logger
	extra    map[types.Command]bool

	mu     sync.Mutex
	nonces map[types.AccountID]uint64
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(h *HTTPClient) { h.http = c }
}

// WithTimeout sets the per-request timeout of the default *http.Client.
func WithTimeout(d time.Duration) ClientOption {
	return func(h *HTTPClient) { h.http.Timeout = d }
}

// WithCommands lets the client send command codes beyond the built-in table,
// such as a server's distinct upgrade code.
func WithCommands(codes ...types.Command) ClientOption {
	return func(h *HTTPClient) {
		for _, c := range codes {
			h.extra[c] = true
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l log.Logger) ClientOption {
	return func(h *HTTPClient) { h.logger = l }
}

// NewHTTPClient creates a client for the server at endpoint. appID is bound
// into every signature.
func NewHTTPClient(endpoint, appID string, signers SignerResolver, opts ...ClientOption) (*HTTPClient, error) {
	if endpoint == "" {
		return nil, errors.New("endpoint cannot be empty")
	}
	if signers == nil {
		return nil, errors.New("signer resolver cannot be nil")
	}
	c := &HTTPClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		appID:    appID,
		http:     &http.Client{Timeout: DefaultTimeout},
		signers:  signers,
		logger:   log.NewNopLogger(),
		nonces:   make(map[types.AccountID]uint64),
		extra:    make(map[types.Command]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("module", "rpc", "endpoint", c.endpoint)
	return c, nil
}

// SendTransaction signs params with the account's signer at its next nonce
// and posts them to /send.
func (c *HTTPClient) SendTransaction(ctx context.Context, params []uint64, account types.AccountID) (*Receipt, error) {
	account = types.NormalizeAccount(string(account))
	nonce, err := c.reserveNonce(ctx, account)
	if err != nil {
		return nil, err
	}

	tx := types.NewTransaction(account, nonce, params)
	receipt, err := c.send(ctx, tx)
	if err != nil {
		c.dropNonce(account)
		c.logger.Error("send failed", "account", account, "nonce", nonce, "err", err)
		return nil, &SendError{Tx: tx, Err: err}
	}
	c.logger.Info("transaction accepted", "account", account, "nonce", nonce, "command", receipt.Command, "hash", receipt.Hash)
	return receipt, nil
}

func (c *HTTPClient) send(ctx context.Context, tx *types.Transaction) (*Receipt, error) {
	if cmd, _ := tx.Command(); c.extra[cmd] {
		if err := tx.ValidateShape(); err != nil {
			return nil, err
		}
	} else if err := tx.ValidateBasic(); err != nil {
		return nil, err
	}
	signer, err := c.signers.SignerFor(tx.Account)
	if err != nil {
		return nil, fmt.Errorf("resolve signer: %w", err)
	}
	signBytes, err := tx.SignBytes(c.appID)
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(signBytes)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}

	params := make([]types.StringUint64, len(tx.Params))
	for i, p := range tx.Params {
		params[i] = types.StringUint64(p)
	}
	req := SendRequest{
		AppID:     c.appID,
		Account:   tx.Account,
		Nonce:     types.StringUint64(tx.Nonce),
		Params:    params,
		Algorithm: signer.Algorithm().String(),
		PubKey:    signer.PublicKey().Bytes(),
		Hash:      hex.EncodeToString(tx.Hash()),
		Signature: sig,
	}

	var receipt Receipt
	if err := c.call(ctx, PathSend, req, sendSchema, &receipt); err != nil {
		return nil, err
	}
	if receipt.Hash != req.Hash {
		return nil, fmt.Errorf("%w: receipt hash %s does not match transaction %s", types.ErrTransport, receipt.Hash, req.Hash)
	}
	return &receipt, nil
}

// QueryState posts keys to /query.
func (c *HTTPClient) QueryState(ctx context.Context, keys []uint64, account types.AccountID) (*State, error) {
	req := QueryRequest{Account: types.NormalizeAccount(string(account)), Keys: make([]types.StringUint64, len(keys))}
	for i, k := range keys {
		req.Keys[i] = types.StringUint64(k)
	}
	var state State
	if err := c.call(ctx, PathQuery, req, querySchema, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// QueryConfig posts to /config.
func (c *HTTPClient) QueryConfig(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := c.call(ctx, PathConfig, struct{}{}, configSchema, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// call posts body to path and decodes a successful result into out.
func (c *HTTPClient) call(ctx context.Context, path string, body any, schema *jsonschema.Schema, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", types.ErrTransport, err)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: %s %s: %s", types.ErrTransport, path, resp.Status, bytes.TrimSpace(data))
	}

	env, err := decodeEnvelope(schema, data)
	if err != nil {
		return err
	}
	if !env.Success {
		if env.Code == CodeInvalidSignature {
			return fmt.Errorf("%w: %w: %s", types.ErrRejected, types.ErrInvalidSignature, env.Error)
		}
		return fmt.Errorf("%w: %s", types.ErrRejected, env.Error)
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("%w: decode result: %w", types.ErrTransport, err)
	}
	return nil
}

func (c *HTTPClient) reserveNonce(ctx context.Context, account types.AccountID) (uint64, error) {
	c.mu.Lock()
	if n, ok := c.nonces[account]; ok {
		c.nonces[account] = n + 1
		c.mu.Unlock()
		return n, nil
	}
	c.mu.Unlock()

	state, err := c.QueryState(ctx, []uint64{StateKeyNonce}, account)
	if err != nil {
		return 0, fmt.Errorf("seed nonce: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// another send may have seeded it meanwhile
	n, ok := c.nonces[account]
	if !ok {
		n = uint64(state.Nonce)
	}
	c.nonces[account] = n + 1
	return n, nil
}

func (c *HTTPClient) dropNonce(account types.AccountID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.nonces, account)
}

var _ Dispatcher = (*HTTPClient)(nil)
