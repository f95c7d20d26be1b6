package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"
)

// shutdownTimeout bounds graceful shutdown once the context is cancelled
const shutdownTimeout = 5 * time.Second

// serve binds srv.Addr, calls onListen with the bound port, and serves until
// ctx is cancelled. A cancelled context is a clean shutdown and returns nil.
func serve(ctx context.Context, name string, srv *http.Server, onListen func(port int)) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
	}
	if srv.TLSConfig != nil {
		ln = tls.NewListener(ln, srv.TLSConfig)
	}

	if onListen != nil {
		onListen(ln.Addr().(*net.TCPAddr).Port)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s stopped: %w", name, err)
	case <-ctx.Done():
	}

	log.Printf("[%s] Shutting down", name)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("failed to shut down %s: %w", name, err)
	}
	return nil
}
