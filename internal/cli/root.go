package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/swapquote/internal/control"
	"github.com/vietddude/swapquote/internal/core/config"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "swapquote",
	Short: "Swapquote on-chain quote service",
	Long:  `Swapquote prices Uniswap V3 style routes by simulating batched quoter calls against EVM nodes.`,
	Run:   runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP quote service",
	Run:   runServe,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd)
}

// loadConfig reads .env and the config file, then sets up logging.
func loadConfig() *config.AppConfig {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg.Logging)
	return cfg
}

func setupLogging(cfg config.LoggingConfig) {
	level := slog.LevelInfo
	switch {
	case isDebug || cfg.Level == "debug":
		level = slog.LevelDebug
	case cfg.Level == "warn":
		level = slog.LevelWarn
	case cfg.Level == "error":
		level = slog.LevelError
	}

	if cfg.Format == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return
	}
	stylelog.InitDefault(&tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := control.NewService(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize service", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start service", "error", err)
		os.Exit(1)
	}

	slog.Info("Service started", "config", cfgPath, "port", cfg.Server.Port, "chains", len(cfg.Chains))

	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
}
