package towertesting

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/tower-sdk/crypto"
	"github.com/blockberries/tower-sdk/game"
	"github.com/blockberries/tower-sdk/rpc"
	"github.com/blockberries/tower-sdk/types"
)

// AppID is the app id Server and its clients sign under.
const AppID = "tower-test"

// Server is a game.Engine served over httptest. It is closed when the test
// ends.
type Server struct {
	Engine *game.Engine
	HTTP   *httptest.Server
}

// NewServer starts an engine with opts behind an rpc.Handler.
func NewServer(t testing.TB, opts game.Options, handlerOpts ...rpc.HandlerOption) *Server {
	t.Helper()
	engine := game.NewEngine(opts)
	srv := httptest.NewServer(rpc.NewHandler(engine, AppID, handlerOpts...))
	t.Cleanup(srv.Close)
	return &Server{Engine: engine, HTTP: srv}
}

// URL returns the server's base URL.
func (s *Server) URL() string { return s.HTTP.URL }

// Client returns an HTTPClient signing with keys derived by algo.
func (s *Server) Client(t testing.TB, algo crypto.Algorithm, opts ...rpc.ClientOption) *rpc.HTTPClient {
	t.Helper()
	c, err := rpc.NewHTTPClient(s.HTTP.URL, AppID, rpc.DerivedSigners(algo), opts...)
	require.NoError(t, err)
	return c
}

// Params packs a command word followed by args.
func Params(cmd types.Command, objectIndex uint64, args ...uint64) []uint64 {
	return append([]uint64{types.MustCreateCommand(cmd, objectIndex)}, args...)
}
