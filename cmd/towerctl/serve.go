package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/blockberries/tower-sdk/game"
	"github.com/blockberries/tower-sdk/rpc"
	"github.com/blockberries/tower-sdk/types"
)

const shutdownTimeout = 5 * time.Second

// runServe serves an in-process engine until ctx is done. Signatures are
// checked against keys derived from account ids.
func runServe(ctx context.Context, e *env, args []string) error {
	fs, c := e.flags(e.name)
	listen := fs.String("listen", "", "listen address (overrides config)")
	if err := e.parse(fs, args); err != nil {
		return err
	}
	a, err := e.load(c)
	if err != nil {
		return err
	}
	defer a.Close()
	if *listen != "" {
		a.cfg.Listen = *listen
	}

	engine := game.NewEngine(game.Options{
		UpgradeCode: types.Command(a.cfg.UpgradeCode),
		Logger:      a.logger,
	})
	handler := rpc.NewHandler(engine, a.cfg.AppID, rpc.WithHandlerLogger(a.logger))

	ln, err := net.Listen("tcp", a.cfg.Listen)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	a.logger.Info("serving", "addr", ln.Addr().String(), "app_id", a.cfg.AppID)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	a.logger.Info("stopped")
	return nil
}
