// Package cli implements the verbgate commands behind the cobra wiring in cmd/verbgate.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/verbgate"
	"github.com/aretw0/verbgate/internal/config"
	"github.com/aretw0/verbgate/internal/logging"
)

// Options are the persistent flags shared by every command.
type Options struct {
	ConfigPath string
	Debug      bool
	// JSONLogs switches the logger to JSON on stderr, for servers.
	JSONLogs bool
	// Quiet drops logs below debug for commands whose output is the point.
	Quiet bool
}

// NewLogger configures the application logger from the log section of the
// config; flags win over it. Logs go to stderr so stdout stays free for outcomes.
func NewLogger(opts Options, cfg config.LogConfig) *slog.Logger {
	level := logging.ParseLevel(cfg.Level)
	if opts.Debug {
		level = slog.LevelDebug
	} else if opts.Quiet {
		return logging.NewNop()
	}
	if opts.JSONLogs || cfg.Format == "json" {
		return logging.NewJSON(os.Stderr, level)
	}
	return logging.New(level)
}

// App is a wired gateway plus the configuration and logger it was built with.
type App struct {
	*verbgate.Gateway
	Config verbgate.Config
	Logger *slog.Logger
}

// Open loads the configuration and wires a gateway.
func Open(opts Options, extra ...verbgate.Option) (*App, error) {
	cfg, err := verbgate.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	logger := NewLogger(opts, cfg.Log)
	gw, err := verbgate.New(cfg, append([]verbgate.Option{verbgate.WithLogger(logger)}, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("error initializing verbgate: %w", err)
	}
	return &App{Gateway: gw, Config: cfg, Logger: logger}, nil
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}
