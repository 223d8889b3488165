package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/facewatch/internal/ai"
	"github.com/kozaktomas/facewatch/internal/alert"
	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/database/mariadb"
	"github.com/kozaktomas/facewatch/internal/database/postgres"
	"github.com/kozaktomas/facewatch/internal/faceembed"
	"github.com/kozaktomas/facewatch/internal/logger"
	"github.com/kozaktomas/facewatch/internal/storage"
	"github.com/kozaktomas/facewatch/internal/web/middleware"
	"github.com/sirupsen/logrus"
)

// app holds the resources shared by the commands that touch the database.
type app struct {
	cfg      *config.Config
	log      *logrus.Entry
	cases    database.CaseWriter
	images   storage.ImageStore
	sessions *postgres.SessionRepository // nil for MariaDB
	closers  []func() error
}

// loadConfig reads and validates configuration and builds the root logger.
func loadConfig() (*config.Config, *logrus.Entry, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return cfg, log, nil
}

// openApp connects the case store and the image store.
func openApp(ctx context.Context) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	a := &app{cfg: cfg, log: log}

	switch cfg.Database.Driver {
	case "mysql":
		pool, err := mariadb.NewPool(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MariaDB: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := pool.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to prepare MariaDB schema: %w", err)
		}
		a.cases = mariadb.NewCaseRepository(pool)
		log.Info("using MariaDB backend")
	default:
		pool, err := postgres.Initialize(ctx, &cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		a.cases = postgres.NewCaseRepository(pool)
		a.sessions = postgres.NewSessionRepository(pool)
		log.Info("using PostgreSQL backend")
	}

	images, err := storage.New(ctx, &cfg.Storage)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open image storage: %w", err)
	}
	a.images = images

	return a, nil
}

// sessionStore returns the persistent session store, or nil to fall back to
// in-memory sessions.
func (a *app) sessionStore() middleware.SessionStore {
	if a.sessions == nil {
		return nil
	}
	return a.sessions
}

// Close releases every opened resource.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("close failed")
		}
	}
}

// newExtractor builds the face embedding extractor for the configured profile.
func newExtractor(cfg *config.Config, log *logrus.Entry) *faceembed.Extractor {
	return faceembed.NewExtractor(
		faceembed.NewDeepFaceClient(cfg.Embedding.URL),
		cfg.Match.Profile,
		faceembed.Config{Timeout: cfg.Embedding.Timeout, MaxImageSize: cfg.Embedding.MaxImageSize},
		log,
	)
}

// registrationMode maps EMBEDDING_ALLOW_DEGRADED onto the extraction mode
// used for reference photos.
func registrationMode(cfg *config.Config) faceembed.Mode {
	if cfg.Embedding.AllowDegraded {
		return faceembed.AllowDegraded
	}
	return faceembed.Strict
}

// newChatProvider builds the officer assistant backend. It returns nil when
// chat is disabled or no key is configured.
func newChatProvider(ctx context.Context, cfg *config.ChatConfig) (ai.Provider, error) {
	switch cfg.ResolvedProvider() {
	case "openai":
		return ai.NewOpenAIProvider(ai.OpenAIConfig{
			Token:   cfg.OpenAIToken,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		}), nil
	case "gemini":
		p, err := ai.NewGeminiProvider(ctx, ai.GeminiConfig{APIKey: cfg.GeminiAPIKey, Model: cfg.GeminiModel})
		if err != nil {
			return nil, fmt.Errorf("creating Gemini provider: %w", err)
		}
		return p, nil
	default:
		return nil, nil
	}
}

// newTransport builds the alert transport chain. Without any configured
// channel alerts are only logged.
func newTransport(cfg *config.AlertConfig, log *logrus.Entry) (alert.Transport, error) {
	formatter := alert.Formatter{OfficerPhone: cfg.OfficerPhone}

	var transports []alert.Transport
	if cfg.TwilioAccountSID != "" {
		transports = append(transports, alert.NewTwilioTransport(alert.TwilioConfig{
			AccountSID:  cfg.TwilioAccountSID,
			AuthToken:   cfg.TwilioAuthToken,
			From:        cfg.TwilioFrom,
			BaseURL:     cfg.TwilioBaseURL,
			CountryCode: cfg.CountryCode,
			Timeout:     cfg.Timeout,
			Formatter:   formatter,
		}))
	}
	if len(cfg.ShoutrrrURLs) > 0 {
		t, err := alert.NewShoutrrrTransport(cfg.ShoutrrrURLs, cfg.Timeout, formatter)
		if err != nil {
			return nil, fmt.Errorf("failed to configure notification URLs: %w", err)
		}
		transports = append(transports, t)
	}

	switch len(transports) {
	case 0:
		log.Warn("no alert transport configured, alerts will only be logged")
		return alert.NopTransport{}, nil
	case 1:
		return transports[0], nil
	default:
		return alert.NewMultiTransport(transports...), nil
	}
}
