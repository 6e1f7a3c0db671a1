package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/medrag/internal/config"
	logpkg "github.com/kailas-cloud/medrag/internal/logger"
	"github.com/kailas-cloud/medrag/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var env string

	cmd := &cobra.Command{
		Use:           "medrag",
		Short:         "Multi-tenant retrieval core for clinical question answering",
		Version:       version.String(),
		SilenceUsage:  true,
	}
	cmd.PersistentFlags().StringVarP(&env, "env", "e", config.GetEnv(),
		"Environment name, selects config/<env>.yaml")

	cmd.AddCommand(newServeCmd(&env))
	cmd.AddCommand(newMigrateCmd(&env))
	cmd.AddCommand(newAskCmd(&env))
	return cmd
}

// bootstrap loads the config for env and builds its logger.
func bootstrap(env string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}
