package rpc

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/blockberries/tower-sdk/types"
)

// HTTP paths served by Handler.
const (
	PathSend   = "/send"
	PathQuery  = "/query"
	PathConfig = "/config"
)

// Failure codes carried in a response envelope.
const (
	CodeRejected         = "rejected"
	CodeInvalidSignature = "invalid_signature"
	CodeInvalidRequest   = "invalid_request"
)

// SendRequest is the body of POST /send.
type SendRequest struct {
	AppID     string               `json:"app_id"`
	Account   types.AccountID      `json:"account"`
	Nonce     types.StringUint64   `json:"nonce"`
	Params    []types.StringUint64 `json:"params"`
	Algorithm string               `json:"algorithm"`
	PubKey    []byte               `json:"pub_key"`
	Hash      string               `json:"hash"`
	Signature []byte               `json:"signature"`
}

// Transaction returns the transaction the request carries.
func (r *SendRequest) Transaction() *types.Transaction {
	params := make([]uint64, len(r.Params))
	for i, p := range r.Params {
		params[i] = uint64(p)
	}
	return types.NewTransaction(r.Account, uint64(r.Nonce), params)
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Account types.AccountID      `json:"account"`
	Keys    []types.StringUint64 `json:"keys"`
}

// envelope wraps every response.
type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	sendSchema   = mustSchema("send.schema.json")
	querySchema  = mustSchema("query.schema.json")
	configSchema = mustSchema("config.schema.json")
)

const schemaBase = "https://tower-sdk.local/schemas/"

func mustSchema(name string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	for _, f := range []string{"common.schema.json", name} {
		data, err := schemaFS.ReadFile("schemas/" + f)
		if err != nil {
			panic(err)
		}
		if err := c.AddResource(schemaBase+f, bytes.NewReader(data)); err != nil {
			panic(fmt.Sprintf("schema %s: %v", f, err))
		}
	}
	return c.MustCompile(schemaBase + name)
}

// decodeEnvelope validates body against schema and splits it into the
// envelope. Validation failures are transport failures: the server spoke,
// but not this protocol.
func decodeEnvelope(schema *jsonschema.Schema, body []byte) (*envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %w", types.ErrTransport, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: response does not match schema: %w", types.ErrTransport, err)
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %w", types.ErrTransport, err)
	}
	return &env, nil
}
