package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/lead-engine/internal/server"
)

var (
	servePort        int
	serveSkipMigrate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that streams pipeline runs and exposes the session and lead endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (defaults to PORT or 8080)")
	serveCmd.Flags().BoolVar(&serveSkipMigrate, "skip-migrate", false, "Do not apply the schema on startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadEnv()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if servePort != 0 {
		cfg.Port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	if !serveSkipMigrate {
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}

	publisher, err := buildPublisher(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = publisher.Close() }()

	pipe, err := buildPipeline(cfg, store, publisher, logger)
	if err != nil {
		return err
	}

	mailer, err := buildMailer(cfg)
	if err != nil {
		return err
	}
	if mailer == nil {
		logger.Warn("no mail provider configured; send requests will be rejected")
	}

	rewriter, closeRewriter, err := buildRewriter(context.WithoutCancel(ctx), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeRewriter() }()

	jwtService, err := buildJWT(cfg)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Port:              cfg.Port,
		MaxConcurrentRuns: cfg.MaxConcurrentRuns,
		MaxResults:        cfg.SearchMaxResults,
		CORSOrigins:       cfg.CORSOrigins,
		SenderEmail:       cfg.SenderEmail,
		SenderName:        cfg.SenderName,
		Store:             store,
		Pipeline:          pipe,
		Mailer:            mailer,
		Rewriter:          rewriter,
		Publisher:         publisher,
		JWT:               jwtService,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("lead engine ready",
		zap.Int("port", cfg.Port),
		zap.String("store", cfg.DatabaseDriver),
		zap.Bool("auth", jwtService != nil),
		zap.Bool("rewrite", rewriter != nil),
	)
	return srv.Start(ctx)
}
