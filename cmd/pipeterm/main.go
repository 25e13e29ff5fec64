package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pipeterm/internal/conference"
	"pipeterm/internal/config"
	"pipeterm/internal/mailer"
	"pipeterm/internal/storage"
	"pipeterm/internal/ui"
)

var (
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:          "pipeterm",
	Short:        "Terminal CRM for contacts, leads and meetings",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	// The TUI owns stdout, so logs go to a file.
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	dbPath := cfg.Config.DBPath
	if dbPath == "" {
		dbPath = defaultDataFile("crm.db")
	}
	store, err := storage.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SeedTemplates(ctx); err != nil {
		return err
	}

	var conf conference.Client
	if cfg.Config.Conference.Endpoint != "" {
		conf = conference.NewHTTPClient(cfg.Config.Conference.Endpoint, cfg.Config.Conference.Timeout, log)
	}

	log.Info("starting",
		zap.String("db", dbPath),
		zap.String("role", string(cfg.UserRole())),
		zap.Bool("conferencing", conf != nil))

	return ui.NewProgram(ui.Deps{
		Store:      store,
		Conference: conf,
		OpenURL:    mailer.OpenSystem,
		Config:     cfg,
		Log:        log,
	}).Start()
}

func newLogger(cfg *config.Store) (*zap.Logger, error) {
	path := cfg.Config.LogPath
	if path == "" {
		path = defaultDataFile("pipeterm.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	zc := zap.NewProductionConfig()
	zc.OutputPaths = []string{path}
	zc.ErrorOutputPaths = []string{path}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if flagVerbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	log, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return log, nil
}

func defaultDataFile(name string) string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		base = "."
	}
	return filepath.Join(base, "pipeterm", name)
}
