package rpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"cosmossdk.io/log"

	"github.com/blockberries/tower-sdk/crypto"
	"github.com/blockberries/tower-sdk/types"
)

const maxRequestBytes = 64 << 10

// Handler serves a Backend over the JSON protocol HTTPClient speaks.
//
// Every /send is authenticated before it reaches the backend: the app id must
// match, the public key must be the one PubKeyResolver expects for the
// account, and the signature must verify over the transaction's sign bytes in
// low-S form. Nonce ordering is the backend's job.
type Handler struct {
	backend Backend
	appID   string
	pubKeys PubKeyResolver
	logger  log.Logger
	mux     *http.ServeMux
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithPubKeyResolver replaces DerivedPubKeys.
func WithPubKeyResolver(r PubKeyResolver) HandlerOption {
	return func(h *Handler) { h.pubKeys = r }
}

// WithHandlerLogger sets the handler logger.
func WithHandlerLogger(l log.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// NewHandler creates a handler for backend under appID.
func NewHandler(backend Backend, appID string, opts ...HandlerOption) *Handler {
	h := &Handler{
		backend: backend,
		appID:   appID,
		pubKeys: DerivedPubKeys,
		logger:  log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("module", "rpc-server")

	h.mux = http.NewServeMux()
	h.mux.HandleFunc("POST "+PathSend, h.handleSend)
	h.mux.HandleFunc("POST "+PathQuery, h.handleQuery)
	h.mux.HandleFunc("POST "+PathConfig, h.handleConfig)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if !h.decode(w, r, &req) {
		return
	}

	tx := req.Transaction()
	if err := h.authenticate(&req, tx); err != nil {
		h.logger.Info("send refused", "account", req.Account, "nonce", uint64(req.Nonce), "err", err)
		code := CodeInvalidRequest
		if errors.Is(err, types.ErrInvalidSignature) {
			code = CodeInvalidSignature
		}
		h.fail(w, http.StatusOK, code, err)
		return
	}

	receipt, err := h.backend.DeliverTx(r.Context(), tx)
	if err != nil {
		h.backendError(w, err)
		return
	}
	h.ok(w, receipt)
}

func (h *Handler) authenticate(req *SendRequest, tx *types.Transaction) error {
	if err := tx.ValidateShape(); err != nil {
		return err
	}
	if req.Hash != hex.EncodeToString(tx.Hash()) {
		return fmt.Errorf("%w: hash does not match transaction", types.ErrInvalidTransaction)
	}
	if req.AppID != h.appID {
		return fmt.Errorf("%w: signed for app %q, this is %q", types.ErrInvalidSignature, req.AppID, h.appID)
	}

	algo, err := crypto.ParseAlgorithm(req.Algorithm)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidSignature, err)
	}
	want, err := h.pubKeys(algo, tx.Account)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidSignature, err)
	}
	if !bytes.Equal(want, req.PubKey) {
		return fmt.Errorf("%w: public key is not registered for %s", types.ErrInvalidSignature, tx.Account)
	}

	signBytes, err := tx.SignBytes(h.appID)
	if err != nil {
		return err
	}
	if !crypto.VerifyStrict(algo, req.PubKey, signBytes, req.Signature) {
		return fmt.Errorf("%w: verification failed", types.ErrInvalidSignature)
	}
	return nil
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.Account.Validate(); err != nil {
		h.fail(w, http.StatusOK, CodeInvalidRequest, err)
		return
	}
	keys := make([]uint64, len(req.Keys))
	for i, k := range req.Keys {
		keys[i] = uint64(k)
	}

	state, err := h.backend.QueryState(r.Context(), keys, req.Account)
	if err != nil {
		h.backendError(w, err)
		return
	}
	h.ok(w, state)
}

func (h *Handler) handleConfig(w http.ResponseWriter, r *http.Request) {
	var req struct{}
	if !h.decode(w, r, &req) {
		return
	}
	cfg, err := h.backend.QueryConfig(r.Context())
	if err != nil {
		h.backendError(w, err)
		return
	}
	h.ok(w, cfg)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.fail(w, http.StatusBadRequest, CodeInvalidRequest, fmt.Errorf("decode request: %w", err))
		return false
	}
	return true
}

func (h *Handler) backendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrRejected):
		h.fail(w, http.StatusOK, CodeRejected, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.fail(w, http.StatusServiceUnavailable, CodeRejected, err)
	default:
		h.logger.Error("backend failure", "err", err)
		h.fail(w, http.StatusInternalServerError, CodeRejected, err)
	}
}

func (h *Handler) ok(w http.ResponseWriter, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		h.fail(w, http.StatusInternalServerError, CodeRejected, err)
		return
	}
	h.write(w, http.StatusOK, envelope{Success: true, Result: data})
}

func (h *Handler) fail(w http.ResponseWriter, status int, code string, err error) {
	h.write(w, status, envelope{Success: false, Code: code, Error: err.Error()})
}

func (h *Handler) write(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		h.logger.Error("write response", "err", err)
	}
}
