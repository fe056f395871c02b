// Package llm sends single-turn, greedy completion requests to hosted or
// local chat models.
package llm

import (
	"context"
	"time"
)

// Provider is one model host (OpenAI, Anthropic, Ollama).
type Provider interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Name() string
	// Models lists the models the provider is known to serve, preferred first.
	Models() []string
}

// Gateway routes requests to providers with retry and fallback.
type Gateway interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Provider(name string) (Provider, error)
	ListModels() []ModelInfo
}

// Request is a system instruction plus one user prompt. Providers always
// decode greedily so the same request yields the same text.
type Request struct {
	Provider  string // empty selects the gateway default
	Model     string // empty selects the provider's preferred model
	System    string
	Prompt    string
	MaxTokens int
}

type Usage struct {
	Input  int `json:"input_tokens"`
	Output int `json:"output_tokens"`
}

func (u Usage) Total() int { return u.Input + u.Output }

type Response struct {
	Provider string        `json:"provider"`
	Model    string        `json:"model"`
	Text     string        `json:"text"`
	Usage    Usage         `json:"usage"`
	CostUSD  float64       `json:"cost_usd"`
	Latency  time.Duration `json:"latency"`
}

// ModelInfo describes an available model.
type ModelInfo struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func modelOrDefault(p Provider, model string) string {
	if model != "" {
		return model
	}
	if models := p.Models(); len(models) > 0 {
		return models[0]
	}
	return ""
}
