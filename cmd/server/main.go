package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/mediagrab-go/api"
	"github.com/yourusername/mediagrab-go/api/handlers"
	"github.com/yourusername/mediagrab-go/internal/app"
	"github.com/yourusername/mediagrab-go/internal/domain"
	"github.com/yourusername/mediagrab-go/internal/infrastructure"
	"github.com/yourusername/mediagrab-go/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

var (
	configPath = flag.String("config", "", "Path to config.yaml (default: search ./configs, ~/.mediagrab, /etc/mediagrab)")
	daemon     = flag.Bool("daemon", false, "Detach and run in the background")
)

func main() {
	flag.Parse()

	if *daemon {
		startAsDaemon()
		return
	}

	if err := runServer(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// startAsDaemon re-executes the binary without -daemon, detached from the terminal
func startAsDaemon() {
	execPath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	var args []string
	if *configPath != "" {
		args = append(args, "-config", *configPath)
	}
	cmd := exec.Command(execPath, args...)
	cmd.Env = os.Environ()
	detach(cmd)

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start daemon: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Server started as daemon (PID: %d)\n", cmd.Process.Pid)
}

func runServer() error {
	config, err := app.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	logsDir := config.Download.LogsDir()
	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: logsDir,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize category logs: %w", err)
	}
	defer multiLog.Close()

	log.Info("Starting mediagrab server",
		zap.String("version", handlers.Version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.String("ytdlp", config.Provider.YTDLPBinary))

	var history domain.HistoryRepository
	if config.History.Enabled {
		repo, err := infrastructure.NewSQLiteHistoryRepository(config.History.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to initialize history: %w", err)
		}
		defer func() {
			if err := repo.Close(); err != nil {
				log.Warn("Failed to close history database", zap.Error(err))
			}
		}()
		history = repo
	}

	coordinator := buildCoordinator(config, history, multiLog, log)

	router := api.SetupRouter(api.RouterConfig{
		Coordinator: coordinator,
		History:     history,
		MultiLogger: multiLog,
		LogsDir:     logsDir,
		YTDLPBinary: config.Provider.YTDLPBinary,
		Logger:      log,
	})

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("Received shutdown signal")
	case err := <-serverErr:
		return fmt.Errorf("failed to start server: %w", err)
	}

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// downloads cannot be cancelled; give running ones the rest of the timeout
	finished := make(chan struct{})
	go func() {
		coordinator.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-shutdownCtx.Done():
		log.Warn("Exiting with downloads still running")
	}

	log.Info("Server exited")
	return nil
}

// buildCoordinator wires the engine adapters into a coordinator. history may be nil.
func buildCoordinator(config *domain.Config, history domain.HistoryRepository, multiLog *logger.MultiLogger, log *zap.Logger) *app.Coordinator {
	provider := infrastructure.NewYTDLPProvider(&config.Provider, config.Download.LogsDir(), log)

	return app.NewCoordinator(app.CoordinatorOptions{
		Provider:             provider,
		Updater:              provider,
		Orchestrator:         app.NewDownloadOrchestrator(provider, config.Download.DefaultTemplate, log),
		Thumbnails:           infrastructure.NewThumbnailCache(&config.Thumbnail, log),
		Settings:             infrastructure.NewJSONSettingsStore(config.Settings.Path, log),
		History:              history,
		Notifier:             infrastructure.NewNotificationService(&config.Notification, log),
		MultiLogger:          multiLog,
		SearchLimit:          config.Provider.SearchLimit,
		SupportedURLPatterns: config.Provider.SupportedURLPatterns,
		DefaultDir:           config.Download.DefaultDir,
		Logger:               log,
	})
}
