package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ghosttrack/ghosttrack/internal/analytics"
	"github.com/ghosttrack/ghosttrack/internal/api"
	"github.com/ghosttrack/ghosttrack/internal/auth"
	"github.com/ghosttrack/ghosttrack/internal/classifier"
	"github.com/ghosttrack/ghosttrack/internal/config"
	"github.com/ghosttrack/ghosttrack/internal/database"
	"github.com/ghosttrack/ghosttrack/internal/enrichment"
	"github.com/ghosttrack/ghosttrack/internal/ingest"
	"github.com/ghosttrack/ghosttrack/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the GhostTrack server",
	Long:  `Starts the GhostTrack analytics server and begins accepting tracking data.`,
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := config.Load(configPath)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}

	log, err := logger.New(cfg.Environment)
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	// Initialize database
	db, err := database.New(cfg.DataDir+"/ghosttrack.db", cfg.StoreTimeout())
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Wire up services
	enricher := enrichment.New(cfg.GeoIPPath)
	defer enricher.Close()

	ingestSvc := ingest.New(db, classifier.NewKeyword(), enricher, log)
	analyticsSvc := analytics.New(db, cfg.DefaultSiteID, log)
	authSvc := auth.New(cfg.SecretKey)

	router := api.NewRouter(ingestSvc, analyticsSvc, authSvc, cfg, log)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down server")
		server.Close()
	}()

	log.Info("GhostTrack starting",
		zap.String("version", Version),
		zap.String("listen_addr", cfg.ListenAddr),
		zap.String("data_dir", cfg.DataDir),
		zap.String("default_site", cfg.DefaultSiteID))

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal("server error", zap.Error(err))
	}
}
