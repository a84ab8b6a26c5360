// cmd/sensorbus/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tamzrod/sensorbus/internal/config"
	"github.com/tamzrod/sensorbus/internal/logging"
)

const serviceName = "sensorbus"

type globalFlags struct {
	logLevel  string
	logFormat string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "sensorbus",
		Short:         "RS-485 vibration sensor and pressure transducer engine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override logging level (debug|info|warn|error)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "override logging format (json|console)")

	root.AddCommand(
		newPortsCmd(g),
		newRunCmd(g),
		newReadCmd(g),
		newReconfigureCmd(g),
		newSpeedCmd(g),
		newAnalogCmd(g),
	)
	return root
}

// --------------------
// Load + validate config
// --------------------

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)
	return cfg, nil
}

func (g *globalFlags) logger(cfg *config.Config) (*zap.Logger, error) {
	level, format := g.logLevel, g.logFormat
	if cfg != nil {
		if level == "" {
			level = cfg.Sensorbus.Logging.Level
		}
		if format == "" {
			format = cfg.Sensorbus.Logging.Format
		}
	}
	return logging.New(level, format, serviceName)
}

// setup loads the config at path and builds its logger.
func (g *globalFlags) setup(path string) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	log, err := g.logger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
