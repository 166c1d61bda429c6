package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chartx/internal/shared"
	"golang.org/x/oauth2"
)

const (
	// DefaultCallbackTimeout bounds how long [AwaitCallback] waits for the browser redirect.
	DefaultCallbackTimeout = 2 * time.Minute
	shutdownTimeout        = 5 * time.Second
)

// CallbackOpts configures [AwaitCallback].
type CallbackOpts struct {
	Addr    string        // host:port to listen on, port 0 picks a free port
	Timeout time.Duration // defaults to [DefaultCallbackTimeout]
	Logger  *log.Logger

	// Ready is called once the listener is bound, with the address it is bound to.
	// Typically opens the authorization URL in a browser.
	Ready func(addr string)
}

// AwaitCallback serves handler on a temporary local server and blocks until the OAuth callback
// delivers a result, the timeout expires, or ctx is done. The server is always shut down before returning.
func AwaitCallback(ctx context.Context, handler *OAuthHandler, opts CallbackOpts) (*oauth2.Token, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultCallbackTimeout
	}

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", opts.Addr, err)
	}

	router := NewBasicRouter()
	router.Use(Recover(logger), Logging(logger))
	router.Handler(handler)

	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Debug("starting OAuth callback server", "addr", ln.Addr().String(), "routes", router.Patterns())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error shutting down server", "error", err)
		}
	}()

	if opts.Ready != nil {
		opts.Ready(ln.Addr().String())
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timer.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("no token received")
	}
	return result.Token, nil
}
