package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/facewatch/internal/ai"
	"github.com/kozaktomas/facewatch/internal/alert"
	"github.com/kozaktomas/facewatch/internal/database/postgres"
	"github.com/kozaktomas/facewatch/internal/facematch"
	"github.com/kozaktomas/facewatch/internal/metrics"
	"github.com/kozaktomas/facewatch/internal/service"
	"github.com/kozaktomas/facewatch/internal/web"
	"github.com/kozaktomas/facewatch/internal/worker"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Facewatch web server.
The server accepts missing-person reports, generates their face embeddings in
the background and serves the officer console that scans live camera frames.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Bool("secure-cookies", false, "Mark session cookies as HTTPS only")
	serveCmd.Flags().Duration("shutdown-timeout", 30*time.Second, "Grace period for in-flight work on shutdown")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

// cleanupSessions removes expired sessions every hour until ctx is done.
func cleanupSessions(ctx context.Context, repo *postgres.SessionRepository, log *logrus.Entry) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.DeleteExpired(ctx)
			if err != nil {
				log.WithError(err).Warn("failed to delete expired sessions")
				continue
			}
			if n > 0 {
				log.WithField("count", n).Info("expired sessions deleted")
			}
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, log := a.cfg, a.log

	if cfg.Web.OfficerPasswordHash == "" {
		log.Warn("OFFICER_PASSWORD_HASH is not set, officer login is disabled")
	}

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	transport, err := newTransport(&cfg.Alert, log)
	if err != nil {
		return err
	}
	dispatcher := alert.NewDispatcher(transport, cfg.Alert.Timeout, log, m)

	extractor := newExtractor(cfg, log)
	pool := worker.NewPool(worker.Config{
		Concurrency: cfg.Worker.Concurrency,
		QueueSize:   cfg.Worker.QueueSize,
		JobTimeout:  cfg.Embedding.Timeout,
		Mode:        registrationMode(cfg),
	}, a.cases, a.images, extractor, log, m)

	confirmer := facematch.NewConfirmer(cfg.Match.Profile.ConfirmCount, cfg.Match.AlertCooldown)

	scanner := service.NewScanner(service.ScannerDeps{
		Extractor:  extractor,
		Cases:      a.cases,
		Matcher:    facematch.NewMatcher(cfg.Match.Profile),
		Confirmer:  confirmer,
		Dispatcher: dispatcher,
		Log:        log,
		Metrics:    m,
	})
	caseService := service.NewCaseService(service.CaseServiceDeps{
		Cases:         a.cases,
		Images:        a.images,
		Jobs:          pool,
		Dispatcher:    dispatcher,
		Confirmer:     confirmer,
		MaxUploadSize: cfg.Storage.MaxUploadSize,
		Log:           log,
	})

	deps := web.Deps{
		Scanner:  scanner,
		Cases:    caseService,
		Reader:   a.cases,
		Images:   a.images,
		Sessions: a.sessionStore(),
		Metrics:  m,
		Log:      log,

		Reembedder: worker.NewReembedder(a.cases, a.images, extractor, registrationMode(cfg), log, m),
	}

	chatProvider, err := newChatProvider(ctx, &cfg.Chat)
	if err != nil {
		return err
	}
	if chatProvider != nil {
		deps.Assistant = ai.NewAssistant(chatProvider, a.cases, ai.AssistantConfig{
			MaxCases: cfg.Chat.MaxCases,
			Timeout:  cfg.Chat.Timeout,
		}, log)
	}

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, deps, port, host)
	server.SessionManager().SetSecureCookies(mustGetBool(cmd, "secure-cookies"))

	if a.sessions != nil {
		go cleanupSessions(ctx, a.sessions, log)
	}

	shutdownTimeout := mustGetDuration(cmd, "shutdown-timeout")
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("error during server shutdown")
		}
		if err := pool.Stop(shutdownCtx); err != nil {
			log.WithError(err).Warn("embedding jobs cancelled before completion")
		}
		if err := dispatcher.Wait(shutdownCtx); err != nil {
			log.WithError(err).Warn("pending alerts abandoned")
		}
		if chatProvider != nil {
			u := chatProvider.GetUsage()
			log.WithFields(logrus.Fields{
				"provider":      chatProvider.Name(),
				"requests":      u.Requests,
				"input_tokens":  u.InputTokens,
				"output_tokens": u.OutputTokens,
			}).Info("chat usage")
		}
		cancel()
	}()

	log.WithFields(logrus.Fields{
		"host":    host,
		"port":    port,
		"profile": cfg.Match.Profile.Signature(),
		"alerts":  cfg.Alert.Enabled(),
		"mode":    registrationMode(cfg).String(),
		"chat":    cfg.Chat.ResolvedProvider(),
	}).Info("starting Facewatch")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	// Start returns as soon as the listener closes. Wait for the workers and
	// pending alerts to drain.
	<-ctx.Done()
	return nil
}
