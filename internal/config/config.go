// Package config loads process configuration from the environment and turns
// it into the pieces the entry points wire together.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ggoodman/aem-mcp-server-go/aemtools"
	"github.com/ggoodman/aem-mcp-server-go/credentials"
	"github.com/ggoodman/aem-mcp-server-go/internal/logctx"
	"github.com/joeshaw/envdecode"
)

// Config is decoded from the process environment.
type Config struct {
	URL      string `env:"AEM_URL"`
	Token    string `env:"AEM_TOKEN"`
	Username string `env:"AEM_USERNAME"`
	Password string `env:"AEM_PASSWORD"`

	// Debug includes stack traces in internal error responses and lowers
	// the log level to debug.
	Debug bool `env:"AEM_MCP_DEBUG,default=false"`
	// PolicyFile is an optional YAML credential policy.
	PolicyFile string `env:"AEM_MCP_POLICY_FILE"`
	// PreferBasic overrides the policy's managed-cloud preference when set
	// to a boolean.
	PreferBasic string `env:"AEM_MCP_PREFER_BASIC_ON_CLOUD"`

	SettleDelay time.Duration `env:"AEM_MCP_SETTLE_DELAY,default=500ms"`
	Timeout     time.Duration `env:"AEM_MCP_TIMEOUT,default=30s"`
	LogLevel    string        `env:"LOG_LEVEL,default=info"`

	ServerName string `env:"AEM_MCP_SERVER_NAME,default=aem-mcp-server"`
}

// Load decodes Config from the environment. An environment with none of the
// variables set yields the defaults.
func Load() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return cfg, fmt.Errorf("decode environment: %w", err)
	}
	return cfg, nil
}

// Env is the credential snapshot.
func (c Config) Env() credentials.Env {
	return credentials.Env{URL: c.URL, Token: c.Token, Username: c.Username, Password: c.Password}
}

// Policy loads the credential policy file and applies env overrides.
func (c Config) Policy() (credentials.Policy, error) {
	p, err := credentials.LoadPolicy(c.PolicyFile)
	if err != nil {
		return p, err
	}
	if v := strings.TrimSpace(c.PreferBasic); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, fmt.Errorf("AEM_MCP_PREFER_BASIC_ON_CLOUD: %w", err)
		}
		p.PreferBasicOnManagedCloud = b
	}
	return p, nil
}

// Level is the starting log level. Debug wins over LOG_LEVEL.
func (c Config) Level() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Logger returns a JSON logger writing to w and the LevelVar controlling it.
func (c Config) Logger(w io.Writer) (*slog.Logger, *slog.LevelVar) {
	lv := new(slog.LevelVar)
	lv.Set(c.Level())
	return logctx.Wrap(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lv}))), lv
}

// Toolkit builds the AEM toolkit described by c.
func (c Config) Toolkit(log *slog.Logger, lv *slog.LevelVar) (*aemtools.Toolkit, error) {
	policy, err := c.Policy()
	if err != nil {
		return nil, err
	}
	return aemtools.New(c.Env(), policy,
		aemtools.WithLogger(log),
		aemtools.WithLevelVar(lv),
		aemtools.WithTimeout(c.Timeout),
		aemtools.WithSettleDelay(c.SettleDelay),
	), nil
}
