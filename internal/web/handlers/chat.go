package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kozaktomas/facewatch/internal/ai"
	"github.com/kozaktomas/facewatch/internal/constants"
	"github.com/kozaktomas/facewatch/internal/logger"
	"github.com/kozaktomas/facewatch/internal/web/middleware"
	"github.com/sirupsen/logrus"
)

// Assistant answers officer chat messages
type Assistant interface {
	Reply(ctx context.Context, message string) (string, error)
	Provider() string
}

// ChatHandler serves the officer assistant
type ChatHandler struct {
	assistant Assistant
	log       *logrus.Entry
}

// NewChatHandler creates a chat handler. A nil assistant answers every
// request with 503.
func NewChatHandler(assistant Assistant, log *logrus.Entry) *ChatHandler {
	return &ChatHandler{assistant: assistant, log: log}
}

// ChatRequest is one officer message
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse carries the assistant reply
type ChatResponse struct {
	Reply    string `json:"reply"`
	Provider string `json:"provider"`
}

// Chat answers one message using the registered cases as context
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	if h.assistant == nil {
		respondError(w, http.StatusServiceUnavailable, constants.MessageChatUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxChatRequestSize)
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	reply, err := h.assistant.Reply(r.Context(), req.Message)
	switch {
	case errors.Is(err, ai.ErrEmptyMessage), errors.Is(err, ai.ErrMessageTooLong):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		logger.FromContext(r.Context(), h.log).WithError(err).WithField("officer", middleware.OfficerFromContext(r.Context())).Error("Chat reply failed")
		respondError(w, http.StatusBadGateway, constants.MessageChatFailed)
		return
	}

	respondJSON(w, http.StatusOK, ChatResponse{Reply: reply, Provider: h.assistant.Provider()})
}
