package common

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ducminhle1904/crypto-sl-optimizer/internal/logger"
	"github.com/ducminhle1904/crypto-sl-optimizer/internal/storage"
	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/config"
)

// Loader layers defaults, the config file, the env file and CLI flags.
// Validation is deferred until every layer is applied.
type Loader struct {
	manager *config.OptimizerConfigManager
}

// NewLoader creates a loader reading envFile before OPTIMIZER_* overrides
func NewLoader(envFile string) *Loader {
	m := config.NewOptimizerConfigManager(envFile).
		WithValidator(&config.OptimizerValidator{RequireInputs: false})
	return &Loader{manager: m}
}

// Load reads the config file and environment overrides without requiring
// input files, so flags can still supply them
func (l *Loader) Load(configFile string) (*config.OptimizerConfig, error) {
	return l.manager.LoadConfig(configFile)
}

// Validate checks the final configuration
func (l *Loader) Validate(cfg *config.OptimizerConfig, requireInputs bool) error {
	return l.manager.WithValidator(&config.OptimizerValidator{RequireInputs: requireInputs}).ValidateConfig(cfg)
}

// Save writes cfg as YAML or JSON
func (l *Loader) Save(cfg *config.OptimizerConfig, path string) error {
	return l.manager.SaveConfig(cfg, path)
}

// SetupLogging configures zerolog from the logging section. The returned
// closer flushes the session log file.
func SetupLogging(cfg *config.OptimizerConfig, name string) (func(), error) {
	rl, err := logger.Setup(logger.Options{
		Level:   cfg.Logging.Level,
		Dir:     cfg.Logging.Dir,
		Name:    name,
		Console: cfg.Logging.Console,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return func() {
		if err := rl.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
		}
	}, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// OpenStore opens the results database when cfg enables it, nil otherwise
func OpenStore(cfg *config.OptimizerConfig) (*storage.Store, error) {
	path := cfg.Output.DatabasePath
	if path == "" {
		if !cfg.HasFormat("db") {
			return nil, nil
		}
		path = config.DefaultDBFile
	}
	return storage.Open(storage.Config{Path: path, LogLevel: "error"})
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%.1fh", d.Hours())
	}
	return fmt.Sprintf("%.1fd", d.Hours()/24)
}
