package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"payrolladmin/internal/app/server"
	"payrolladmin/internal/platform/config"
)

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:          "payrolladmin",
		Short:        "Multi-tenant payroll administration server",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cfgFile != "" {
				return os.Setenv("CONFIG_FILE", cfgFile)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (overrides CONFIG_FILE)")

	root.AddCommand(newServeCmd(), newMigrateCmd(), newGenerateCmd(), newClosePeriodCmd())
	return root
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	setupLogger(cfg)
	return cfg, nil
}

func setupLogger(cfg config.Config) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler).With("app", "payrolladmin"))
}

// withApp builds the application for one-shot commands.
func withApp(ctx context.Context, run func(context.Context, *server.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := server.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return run(ctx, app)
}
