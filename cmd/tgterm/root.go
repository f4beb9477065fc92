package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danhigham/tgterm/internal/accounts"
	"github.com/danhigham/tgterm/internal/app"
	"github.com/danhigham/tgterm/internal/config"
	"github.com/danhigham/tgterm/internal/telegram"
	"github.com/danhigham/tgterm/internal/ui"
)

type rootOptions struct {
	configPath string
	dataDir    string
	logLevel   string
}

func (o *rootOptions) configFile() string {
	if o.configPath != "" {
		return o.configPath
	}
	return filepath.Join(o.dataDir, "config.yaml")
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "tgterm",
		Short:        "Telegram in your terminal",
		Version:      version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd.Context(), opts)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default <data-dir>/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", config.Dir(), "directory for accounts, sessions and the log file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log_level from the config file")

	cmd.AddCommand(accountsCmd(opts))
	return cmd
}

func runInteractive(ctx context.Context, opts *rootOptions) error {
	cfgPath := opts.configFile()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		printConfigHelp(cfgPath)
		return err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	if err := os.MkdirAll(opts.dataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	logger, err := newLogger(filepath.Join(opts.dataDir, "tgterm.log"), cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := accounts.NewStore(config.AccountsDir(opts.dataDir), logger.Named("accounts"))
	if err != nil {
		return err
	}

	console := ui.NewConsole(os.Stdin, os.Stdout, logger.Named("console"))
	factory := func() telegram.Adapter {
		return telegram.NewGotdAdapter(cfg.Telegram.APIID, cfg.Telegram.APIHash, cfg.SendRate, logger.Named("telegram"))
	}

	logger.Info("starting", zap.String("version", version), zap.String("config", cfgPath))
	err = app.New(cfg, store, console, factory, version, logger).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// newLogger writes development formatted logs to path only; the terminal
// belongs to the session.
func newLogger(path, level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = lvl
	logCfg.OutputPaths = []string{path}
	logCfg.ErrorOutputPaths = []string{path}
	logger, err := logCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}

func printConfigHelp(cfgPath string) {
	fmt.Fprintf(os.Stderr, "\nCreate the config file with:\n")
	fmt.Fprintf(os.Stderr, "  mkdir -p %s\n", filepath.Dir(cfgPath))
	fmt.Fprintf(os.Stderr, "  cat > %s << 'EOF'\n", cfgPath)
	fmt.Fprintf(os.Stderr, "telegram:\n  api_id: YOUR_API_ID\n  api_hash: \"YOUR_API_HASH\"\nEOF\n")
	fmt.Fprintf(os.Stderr, "\nOr set TGTERM_API_ID and TGTERM_API_HASH.\n")
	fmt.Fprintf(os.Stderr, "Get API credentials from https://my.telegram.org\n\n")
}
