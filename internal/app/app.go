// Package app wires configuration, the AEM toolkit and the transports into
// the objects the binaries run.
package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/ggoodman/aem-mcp-server-go/aemtools"
	"github.com/ggoodman/aem-mcp-server-go/internal/config"
	"github.com/ggoodman/aem-mcp-server-go/mcp"
	"github.com/ggoodman/aem-mcp-server-go/serverless"
	"github.com/ggoodman/aem-mcp-server-go/stdio"
	"github.com/ggoodman/aem-mcp-server-go/streaminghttp"
)

// App is a configured server.
type App struct {
	Config  config.Config
	Log     *slog.Logger
	Levels  *slog.LevelVar
	Toolkit *aemtools.Toolkit
	Info    mcp.ImplementationInfo
}

// New builds an App logging to logOut.
func New(cfg config.Config, logOut io.Writer, version string) (*App, error) {
	log, lv := cfg.Logger(logOut)
	tk, err := cfg.Toolkit(log, lv)
	if err != nil {
		return nil, err
	}
	return &App{
		Config:  cfg,
		Log:     log,
		Levels:  lv,
		Toolkit: tk,
		Info:    mcp.ImplementationInfo{Name: cfg.ServerName, Version: version},
	}, nil
}

// HandlerFactory builds a new server and HTTP transport per call.
func (a *App) HandlerFactory() serverless.HandlerFactory {
	return func(ctx context.Context) (http.Handler, error) {
		return streaminghttp.New(a.Toolkit.Server(a.Info), streaminghttp.WithLogger(a.Log))
	}
}

// Adapter returns the per-invocation protocol adapter.
func (a *App) Adapter(opts ...serverless.Option) *serverless.Adapter {
	base := []serverless.Option{
		serverless.WithLogger(a.Log),
		serverless.WithDebug(a.Config.Debug),
		serverless.WithInfo(serverless.Info{Name: a.Info.Name, Version: a.Info.Version}),
	}
	return serverless.NewAdapter(a.HandlerFactory(), append(base, opts...)...)
}

// Stdio returns a stdio transport over r and w.
func (a *App) Stdio(r io.Reader, w io.Writer) *stdio.Handler {
	return stdio.NewHandler(a.Toolkit.Server(a.Info), stdio.WithIO(r, w), stdio.WithLogger(a.Log))
}
