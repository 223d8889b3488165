package handlers

import (
	"net/http"

	"github.com/kozaktomas/facewatch/internal/config"
)

// ConfigHandler exposes the active match profile to the officer console
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Model          string   `json:"model"`
	Detectors      []string `json:"detectors"`
	Signature      string   `json:"signature"`
	Threshold      float64  `json:"threshold"`
	DisplayCutoff  float64  `json:"display_cutoff"`
	ConfirmCount   int      `json:"confirm_count"`
	AlertsEnabled  bool     `json:"alerts_enabled"`
	StorageBackend string   `json:"storage_backend"`
	ChatProvider   string   `json:"chat_provider"`
}

// Get returns the active configuration. Secrets are never included.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	p := h.config.Match.Profile
	respondJSON(w, http.StatusOK, ConfigResponse{
		Model:          p.Model,
		Detectors:      p.Detectors,
		Signature:      p.Signature(),
		Threshold:      p.Threshold,
		DisplayCutoff:  p.DisplayCutoff,
		ConfirmCount:   p.ConfirmCount,
		AlertsEnabled:  h.config.Alert.Enabled(),
		StorageBackend: h.config.Storage.Backend,
		ChatProvider:   h.config.Chat.ResolvedProvider(),
	})
}
