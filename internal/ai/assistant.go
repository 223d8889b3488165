package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kozaktomas/facewatch/internal/database"
	"github.com/kozaktomas/facewatch/internal/logger"
	"github.com/sirupsen/logrus"
)

const (
	// MaxMessageLength bounds one officer message, in characters.
	MaxMessageLength = 2000

	replyMaxTokens   = 400
	replyTemperature = 0.7
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = fmt.Errorf("message exceeds %d characters", MaxMessageLength)
)

// CaseLister is the read access the assistant needs.
type CaseLister interface {
	ListCases(ctx context.Context, opts database.ListOptions) ([]database.Case, error)
}

// AssistantConfig bounds one assistant reply.
type AssistantConfig struct {
	MaxCases int           // most recent cases put in context, 0 means all
	Timeout  time.Duration // 0 means none
}

// Assistant answers officer questions with the registered cases as context.
// Case records are read fresh for every message.
type Assistant struct {
	provider Provider
	cases    CaseLister
	cfg      AssistantConfig
	log      *logrus.Entry
}

func NewAssistant(provider Provider, cases CaseLister, cfg AssistantConfig, log *logrus.Entry) *Assistant {
	if log == nil {
		log = logger.Discard()
	}
	return &Assistant{
		provider: provider,
		cases:    cases,
		cfg:      cfg,
		log:      logger.Component(log, "assistant"),
	}
}

// Provider returns the backend name.
func (a *Assistant) Provider() string {
	return a.provider.Name()
}

// Reply answers a single message. A failure to read cases degrades the
// context instead of failing the request.
func (a *Assistant) Reply(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return "", ErrMessageTooLong
	}

	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	summary := casesUnavailableMsg
	cases, err := a.cases.ListCases(ctx, database.ListOptions{Limit: a.cfg.MaxCases})
	if err != nil {
		a.log.WithError(err).Warn("case summary unavailable for chat")
	} else {
		summary = buildCaseSummary(cases)
	}

	start := time.Now()
	reply, err := a.provider.Chat(ctx, ChatRequest{
		System:      buildSystemPrompt(summary),
		Message:     message,
		MaxTokens:   replyMaxTokens,
		Temperature: replyTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", a.provider.Name(), err)
	}

	a.log.WithFields(logrus.Fields{
		"provider": a.provider.Name(),
		"cases":    len(cases),
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("chat reply generated")
	return strings.TrimSpace(reply), nil
}
