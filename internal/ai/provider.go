package ai

import (
	"context"
	"sync"
)

// Provider defines the interface for chat completion backends.
type Provider interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (string, error)

	// Usage tracking.
	GetUsage() Usage
	ResetUsage()
}

// ChatRequest is a single-turn exchange: system context plus one officer
// message.
type ChatRequest struct {
	System      string
	Message     string
	MaxTokens   int
	Temperature float64
}

// Usage tracks token usage and calculates cost.
type Usage struct {
	Requests     int
	InputTokens  int
	OutputTokens int
	TotalCost    float64 // in USD
}

// RequestPricing holds input/output prices per 1M tokens
type RequestPricing struct {
	Input  float64
	Output float64
}

// usageMeter is shared by the providers. Chat requests arrive from
// concurrent HTTP handlers.
type usageMeter struct {
	mu      sync.Mutex
	usage   Usage
	pricing RequestPricing
}

func (m *usageMeter) track(inputTokens, outputTokens int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage.Requests++
	m.usage.InputTokens += int(inputTokens)
	m.usage.OutputTokens += int(outputTokens)
	m.usage.TotalCost += float64(inputTokens) / 1_000_000 * m.pricing.Input
	m.usage.TotalCost += float64(outputTokens) / 1_000_000 * m.pricing.Output
}

func (m *usageMeter) GetUsage() Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}

func (m *usageMeter) ResetUsage() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = Usage{}
}
