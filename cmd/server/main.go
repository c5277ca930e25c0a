package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nickyhof/DuckServe"
	"github.com/nickyhof/DuckServe/bundle"
	"github.com/nickyhof/DuckServe/core"
	"github.com/nickyhof/DuckServe/db"
	"github.com/nickyhof/DuckServe/ps"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	serveConfig = &Config{}

	rootCmd = &cobra.Command{
		Use:           "duckserve",
		Short:         "DuckDB query server with result caching and bundles",
		Long:          `Serve DuckDB queries over WebSocket. Settings can be given as flags or as environment variables of the form DUCKSERVE_<flag> (e.g. DUCKSERVE_BUNDLE_DIR=/data/bundles).`,
		PreRunE:       processConfig,
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd = &cobra.Command{
		Use:     "serve",
		Short:   "Start the server (default)",
		PreRunE: processConfig,
		RunE:    run,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Show version and exit",
		Run: func(*cobra.Command, []string) {
			fmt.Printf("DuckServe v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("address", "0.0.0.0:3000", "Address to listen on")
	flags.String("database", "", "DuckDB database file (in-memory if empty)")
	flags.String("bundle-dir", ".mosaic/bundle", "Directory holding bundles")
	flags.Bool("bundle-history", false, "Commit every created bundle to a Git repository in the bundle directory")
	flags.Int("slow-query-ms", 5000, "Commands slower than this are logged as warnings")
	flags.Int("query-timeout", 0, "Per-command timeout in seconds (0 disables it)")
	flags.Int("send-buffer", 64, "Replies queued per connection before responses are dropped")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("s3-url", "", "Mirror bundles to s3://bucket/prefix")
	flags.String("s3-region", "", "S3 region")
	flags.String("s3-endpoint", "", "S3 endpoint for S3-compatible stores")
	flags.String("s3-access-key", "", "S3 access key id")
	flags.String("s3-secret-key", "", "S3 secret access key")

	rootCmd.AddCommand(serveCmd, versionCmd)
}

// initConfig reads .env files and environment variables.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("duckserve")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// processConfig binds the flags to viper and fills serveConfig.
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveConfig.Address = viper.GetString("address")
	serveConfig.Database = viper.GetString("database")
	serveConfig.BundleDir = viper.GetString("bundle-dir")
	serveConfig.BundleHistory = viper.GetBool("bundle-history")
	serveConfig.SlowQuery = time.Duration(viper.GetInt("slow-query-ms")) * time.Millisecond
	serveConfig.QueryTimeout = time.Duration(viper.GetInt("query-timeout")) * time.Second
	serveConfig.SendBuffer = viper.GetInt("send-buffer")
	serveConfig.LogLevel = viper.GetString("log-level")
	serveConfig.Remote = ps.RemoteConfig{
		URL:       viper.GetString("s3-url"),
		Region:    viper.GetString("s3-region"),
		Endpoint:  viper.GetString("s3-endpoint"),
		AccessKey: viper.GetString("s3-access-key"),
		SecretKey: viper.GetString("s3-secret-key"),
	}

	if serveConfig.BundleDir == "" {
		return fmt.Errorf("bundle-dir must not be empty")
	}
	if serveConfig.SendBuffer < 1 {
		return fmt.Errorf("send-buffer must be at least 1, got %d", serveConfig.SendBuffer)
	}
	if serveConfig.QueryTimeout < 0 {
		return fmt.Errorf("query-timeout must not be negative")
	}
	return nil
}

func run(*cobra.Command, []string) error {
	cfg := serveConfig

	logger, err := newLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}

	engine, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer engine.Close()
	logger.WithField("database", engine.Path()).Info("Opened database")

	instance := DuckServe.Open(engine)

	opts := bundle.Options{
		Identity: core.Identity{
			Name:  "DuckServe Server",
			Email: "server@duckserve.local",
		},
	}
	if cfg.BundleHistory {
		opts.History, err = ps.OpenHistory(cfg.BundleDir)
		if err != nil {
			return err
		}
		transactions, err := opts.History.Transactions()
		if err != nil {
			return err
		}
		log := logger.WithField("commits", len(transactions))
		if len(transactions) > 0 {
			log = log.WithField("latest", transactions[0].Message)
		}
		log.Info("Opened bundle history")
	}
	if cfg.Remote.Enabled() {
		opts.Remote, err = ps.NewRemote(context.Background(), cfg.Remote)
		if err != nil {
			return err
		}
	}
	bundler := bundle.New(instance, cfg.BundleDir, opts, logger)

	dispatcher := NewDispatcher(instance, bundler, DispatchOptions{
		SlowQuery: cfg.SlowQuery,
		Timeout:   cfg.QueryTimeout,
	}, logger)

	server := NewServer(dispatcher, cfg.SendBuffer, logger)
	if err := server.Start(cfg.Address); err != nil {
		return err
	}

	pterm.DefaultBox.
		WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprintf("DuckServe v%s", Version)).
		WithPadding(1).
		Println(fmt.Sprintf("Listening on ws://%s\nMetrics on http://%s/metrics", server.Addr(), server.Addr()))
	logger.Info(cfg.String())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if err := server.Stop(); err != nil {
		logger.WithError(err).Warn("Shutdown incomplete")
	}
	logger.Info("Server stopped")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
