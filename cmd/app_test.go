package cmd

import (
	"testing"

	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/faceembed"
)

func TestRegistrationMode(t *testing.T) {
	tests := []struct {
		name          string
		allowDegraded bool
		want          faceembed.Mode
	}{
		{"degraded allowed", true, faceembed.AllowDegraded},
		{"strict", false, faceembed.Strict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Embedding.AllowDegraded = tt.allowDegraded
			if got := registrationMode(cfg); got != tt.want {
				t.Errorf("registrationMode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegistrationMode_FromEnv(t *testing.T) {
	t.Setenv("EMBEDDING_ALLOW_DEGRADED", "false")
	if got := registrationMode(config.Load()); got != faceembed.Strict {
		t.Errorf("registrationMode() = %v, want strict", got)
	}
}

func TestNewChatProvider_None(t *testing.T) {
	p, err := newChatProvider(t.Context(), &config.ChatConfig{})
	if err != nil || p != nil {
		t.Errorf("newChatProvider() = %v, %v; want nil, nil", p, err)
	}

	p, err = newChatProvider(t.Context(), &config.ChatConfig{OpenAIToken: "sk-test", OpenAIModel: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("newChatProvider() error = %v", err)
	}
	if p == nil || p.Name() != "gpt-4o-mini" {
		t.Errorf("expected OpenAI provider, got %v", p)
	}
}
