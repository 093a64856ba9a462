package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/officeflow/attendance/internal/config"
	"github.com/officeflow/attendance/internal/database"
	"github.com/officeflow/attendance/internal/database/postgres"
	"github.com/officeflow/attendance/internal/faceid"
	"github.com/officeflow/attendance/internal/logging"
	"github.com/officeflow/attendance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance API server",
	Long: `Start the OfficeFlow API server.
Runs pending database migrations, builds the in-memory candidate index
over enrolled face embeddings, and serves the verification endpoints.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (overrides HTTP_ADDR)")
	serveCmd.Flags().String("log-format", "console", "Log format: console or json")
	serveCmd.Flags().String("log-level", "info", "Log level: debug, info, warn, error")
	serveCmd.Flags().Bool("skip-index", false, "Skip building the candidate index on startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	logging.Configure(os.Stdout, mustGetString(cmd, "log-format"), mustGetString(cmd, "log-level"))
	logger := logging.Default()

	cfg := config.Load()
	if addr := mustGetString(cmd, "addr"); addr != "" {
		cfg.HTTP.Addr = addr
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	ctx := context.Background()
	if err := pool.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	directory := postgres.NewDirectoryRepository(pool)
	log := postgres.NewLogRepository(pool)
	extractor := faceid.NewClient(cfg.Embedding.URL, cfg.Embedding.Dim)

	var index *database.CandidateIndex
	if !mustGetBool(cmd, "skip-index") {
		index = database.NewCandidateIndex()
		population, err := directory.Population(ctx)
		if err != nil {
			return fmt.Errorf("loading population: %w", err)
		}
		n, err := index.Build(ctx, population)
		if err != nil {
			return fmt.Errorf("building candidate index: %w", err)
		}
		logger.Info("candidate index built", "identities", n)
	} else {
		logger.Info("candidate index disabled, resolution will scan the directory")
	}

	server := web.NewServer(cfg, web.Deps{
		Directory: directory,
		Log:       log,
		Extractor: extractor,
		Index:     index,
		DB:        pool,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error during shutdown", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
