package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/fabtrack/internal/app"
	"github.com/JakeFAU/fabtrack/internal/config"
	"github.com/JakeFAU/fabtrack/internal/logging"
)

// ctxKeyType keys values stored in the command context.
type ctxKeyType string

const (
	configKey ctxKeyType = "config"
	loggerKey ctxKeyType = "logger"
)

// newApp is the application factory. Tests replace it to inject options.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.NewApp(ctx, cfg, logger)
}

// newRootCmd creates the root command. Config and the logger are loaded once
// in PersistentPreRunE and handed to subcommands through the context.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "fabtrack",
		Short: "Progress and weight tracking for steel construction projects.",
		Long: `fabtrack records work logged against project assemblies and reports
stage completion, manufacturing weight and worker time statistics over an
HTTP API. Reports can be exported as JSON to local disk or GCS.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(logger)

			ctx := context.WithValue(cmd.Context(), configKey, cfg)
			ctx = context.WithValue(ctx, loggerKey, logger)
			cmd.SetContext(ctx)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); FABTRACK_* env vars override it")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newReportCmd())
	return cmd
}

// withApp builds the App for one command run and always closes it, even
// when run fails.
func withApp(cmd *cobra.Command, run func(ctx context.Context, a *app.App, cfg config.Config) error) (err error) {
	ctx := cmd.Context()
	cfg, ok := ctx.Value(configKey).(config.Config)
	if !ok {
		return errors.New("configuration not loaded")
	}
	logger, ok := ctx.Value(loggerKey).(*zap.Logger)
	if !ok {
		logger = zap.NewNop()
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		err = errors.Join(err, a.Close(closeCtx))
	}()
	return run(ctx, a, cfg)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fabtrack: %v\n", err)
		os.Exit(1)
	}
}
