package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/lead-engine/internal/config"
	"github.com/jonathan/lead-engine/internal/db"
	"github.com/jonathan/lead-engine/internal/drafting"
	"github.com/jonathan/lead-engine/internal/fetch"
	"github.com/jonathan/lead-engine/internal/llm"
	"github.com/jonathan/lead-engine/internal/notify"
	"github.com/jonathan/lead-engine/internal/observability"
	"github.com/jonathan/lead-engine/internal/pipeline"
	"github.com/jonathan/lead-engine/internal/provider"
	"github.com/jonathan/lead-engine/internal/provider/enrich"
	"github.com/jonathan/lead-engine/internal/provider/mail"
	"github.com/jonathan/lead-engine/internal/provider/search"
	"github.com/jonathan/lead-engine/internal/server"
)

// loadEnv loads the effective configuration and the logger built from it.
func loadEnv() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := observability.NewLogger(cfg.LogLevel, devLogs)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func openStore(ctx context.Context, cfg *config.Config) (db.Store, error) {
	store, err := db.Open(ctx, cfg.DatabaseDriver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.DatabaseDriver, err)
	}
	return store, nil
}

func providerOptions(cfg *config.Config) *fetch.Options {
	opts := fetch.DefaultOptions()
	opts.RequestsPerSecond = cfg.ProviderRPS
	return opts
}

func loadTemplates(cfg *config.Config) (*drafting.TemplateSet, error) {
	if cfg.TemplatesPath == "" {
		return drafting.DefaultTemplates()
	}
	return drafting.LoadTemplates(cfg.TemplatesPath)
}

// buildPipeline wires the search and enrichment adapters, the drafter and the store
// into a pipeline. Both provider keys are required.
func buildPipeline(cfg *config.Config, store db.Store, publisher notify.Publisher, logger *zap.Logger) (*pipeline.Pipeline, error) {
	searchClient, err := search.NewClient(search.Config{
		APIKey:  cfg.SearchAPIKey,
		BaseURL: cfg.SearchBaseURL,
		Options: providerOptions(cfg),
	})
	if err != nil {
		return nil, fmt.Errorf("SEARCH_API_KEY: %w", err)
	}

	enrichClient, err := enrich.NewClient(enrich.Config{
		APIKey:       cfg.EnrichAPIKey,
		BaseURL:      cfg.EnrichBaseURL,
		RevealEmails: cfg.EnrichRevealEmails,
		Options:      providerOptions(cfg),
		Logger:       logger.Named("enrich"),
	})
	if err != nil {
		return nil, fmt.Errorf("ENRICH_API_KEY: %w", err)
	}

	templates, err := loadTemplates(cfg)
	if err != nil {
		return nil, err
	}

	return &pipeline.Pipeline{
		Search:     searchClient,
		Enrich:     enrichClient,
		Contacts:   enrichClient,
		Drafter:    drafting.New(templates, cfg.SenderName),
		Store:      store,
		Publisher:  publisher,
		Logger:     logger.Named("pipeline"),
		MaxResults: cfg.SearchMaxResults,
	}, nil
}

// buildMailer returns the configured mail provider, or nil when sending is not set up.
func buildMailer(cfg *config.Config) (provider.Mailer, error) {
	switch cfg.MailProvider {
	case config.MailProviderSMTP:
		return mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
		})
	default:
		if cfg.MailAPIKey == "" {
			return nil, nil
		}
		return mail.NewAPISender(mail.APIConfig{
			APIKey:  cfg.MailAPIKey,
			BaseURL: cfg.MailBaseURL,
			Options: providerOptions(cfg),
		})
	}
}

func buildPublisher(cfg *config.Config) (notify.Publisher, error) {
	if cfg.AMQPURL == "" {
		return notify.Nop{}, nil
	}
	return notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
}

// buildRewriter returns the LLM draft rewriter and its cleanup, or nil when no key is set.
func buildRewriter(ctx context.Context, cfg *config.Config) (server.DraftRewriter, func() error, error) {
	if !cfg.LLMEnabled() {
		return nil, func() error { return nil }, nil
	}
	llmCfg := llm.DefaultConfig()
	if cfg.GeminiModel != "" {
		llmCfg = llmCfg.WithModel(llm.TierStandard, cfg.GeminiModel)
	}
	client, err := llm.NewGeminiClient(ctx, llmCfg, cfg.GeminiAPIKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return llm.NewRewriter(client), client.Close, nil
}

// buildJWT returns the token service, or nil when auth is disabled.
func buildJWT(cfg *config.Config) (*server.JWTService, error) {
	if !cfg.AuthEnabled() {
		return nil, nil
	}
	jwtCfg, err := cfg.JWT()
	if err != nil {
		return nil, err
	}
	return server.NewJWTService(jwtCfg), nil
}
