// Package llmloader serves translation pairs through a chat model reached
// via the llm gateway.
package llmloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/nikhilbhutani/linguakit/internal/llm"
	"github.com/nikhilbhutani/linguakit/internal/translate"
)

const maxInputTokens = 2048

var ErrIdentityPair = errors.New("source and target language are the same")

// Loader maps a ModelRef onto a gateway provider: the ref's organization is
// the provider name and its family is the model.
type Loader struct {
	gw llm.Gateway
}

func NewLoader(gw llm.Gateway) *Loader {
	return &Loader{gw: gw}
}

func (l *Loader) Name() string { return "llm" }

func (l *Loader) Load(_ context.Context, ref translate.ModelRef) (translate.Engine, error) {
	if ref.Pair.Identity() {
		return nil, fmt.Errorf("%w: %s", ErrIdentityPair, ref.Pair)
	}
	p, err := l.gw.Provider(ref.Organization)
	if err != nil {
		return nil, err
	}
	if models := p.Models(); len(models) > 0 && !slices.Contains(models, ref.Family) {
		slog.Warn("model not in provider catalogue", "provider", p.Name(), "model", ref.Family)
	}
	return &engine{
		gw:       l.gw,
		provider: ref.Organization,
		model:    ref.Family,
		system: fmt.Sprintf(
			"You translate text from %s to %s. Reply with the translation only, without quotes, notes or explanations.",
			ref.Pair.Source.Name(), ref.Pair.Target.Name(),
		),
	}, nil
}

type engine struct {
	gw       llm.Gateway
	provider string
	model    string
	system   string
}

func (e *engine) MaxInputTokens() int     { return maxInputTokens }
func (e *engine) ControlTokens() []string { return nil }
func (e *engine) Concurrent() bool        { return true }

func (e *engine) Generate(ctx context.Context, text string) (string, error) {
	out, _, err := e.GenerateAttributed(ctx, text)
	return out, err
}

// GenerateAttributed flags answers the gateway took from its fallback
// provider, which are not output of the model this engine was loaded for.
func (e *engine) GenerateAttributed(ctx context.Context, text string) (string, bool, error) {
	resp, err := e.gw.Complete(ctx, llm.Request{
		Provider:  e.provider,
		Model:     e.model,
		System:    e.system,
		Prompt:    text,
		MaxTokens: maxInputTokens,
	})
	if err != nil {
		return "", false, err
	}
	substitute := resp.Provider != e.provider
	slog.Debug("llm translation",
		"provider", resp.Provider,
		"model", resp.Model,
		"substitute", substitute,
		"tokens", resp.Usage.Total(),
		"cost_usd", resp.CostUSD,
		"latency_ms", resp.Latency.Milliseconds(),
	)
	return strings.TrimSpace(resp.Text), substitute, nil
}
