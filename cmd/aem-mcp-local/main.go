// Command aem-mcp-local runs the AEM MCP server on a workstation, either as
// an HTTP server that drives the same per-invocation adapter the function
// host uses, or over stdio for clients that spawn it as a subprocess.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ggoodman/aem-mcp-server-go/internal/app"
	"github.com/ggoodman/aem-mcp-server-go/internal/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/pflag"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("aem-mcp-local", pflag.ContinueOnError)
	addr := fs.String("addr", "127.0.0.1:8080", "listen address for HTTP mode")
	useStdio := fs.Bool("stdio", false, "serve newline-delimited JSON-RPC on stdin/stdout")
	debug := fs.Bool("debug", false, "debug logging and stack traces in error responses")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *debug {
		cfg.Debug = true
	}
	a, err := app.New(cfg, os.Stderr, version)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *useStdio {
		err := a.Stdio(os.Stdin, os.Stdout).Serve(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return serveHTTP(ctx, a, *addr)
}

func newRouter(a *app.App) http.Handler {
	adapter := a.Adapter()
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Handle("/", adapter)
	r.Handle("/mcp", adapter)
	return r
}

func serveHTTP(ctx context.Context, a *app.App, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	a.Log.InfoContext(ctx, "http.listen", slog.String("addr", addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.Log.Info("http.shutdown.ok")
	return nil
}
