package translate

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ModelRef names the model a loader should produce for a pair.
type ModelRef struct {
	ID           string
	Organization string
	Family       string
	Pair         LanguagePair
}

// Naming derives model identifiers as <organization>/<family>-<source>-<target>.
type Naming struct {
	Organization string
	Family       string
}

func (n Naming) Ref(pair LanguagePair) ModelRef {
	return ModelRef{
		ID:           fmt.Sprintf("%s/%s-%s-%s", n.Organization, n.Family, pair.Source, pair.Target),
		Organization: n.Organization,
		Family:       n.Family,
		Pair:         pair,
	}
}

// Loader turns a ModelRef into a ready Engine. Implementations must return
// a nil Engine whenever they return an error.
type Loader interface {
	Load(ctx context.Context, ref ModelRef) (Engine, error)
	Name() string
}

// Engine is a loaded tokenizer/model pair.
type Engine interface {
	// Generate runs one deterministic generation pass and returns decoded text.
	Generate(ctx context.Context, text string) (string, error)
	// MaxInputTokens bounds the input length; 0 means no known bound.
	MaxInputTokens() int
	// ControlTokens lists model-internal tokens to strip from decoded output.
	ControlTokens() []string
}

// ConcurrentEngine is implemented by engines that accept parallel Generate calls.
type ConcurrentEngine interface {
	Concurrent() bool
}

// SubstitutingEngine is implemented by engines that may answer from a model
// other than the one they were loaded for. Substitute output is returned but
// never memoised under the handle's model ID.
type SubstitutingEngine interface {
	GenerateAttributed(ctx context.Context, text string) (out string, substitute bool, err error)
}

// Model is the opaque handle returned by Service.Resolve.
type Model struct {
	handle string
	ref    ModelRef
	engine Engine

	mu       sync.Mutex
	parallel bool
}

func newModel(ref ModelRef, engine Engine) *Model {
	m := &Model{
		handle: uuid.NewString(),
		ref:    ref,
		engine: engine,
	}
	if c, ok := engine.(ConcurrentEngine); ok {
		m.parallel = c.Concurrent()
	}
	return m
}

// ID returns the repository identifier, e.g. Helsinki-NLP/opus-mt-en-es.
func (m *Model) ID() string { return m.ref.ID }

func (m *Model) Pair() LanguagePair { return m.ref.Pair }

// Handle identifies this loaded instance in logs.
func (m *Model) Handle() string { return m.handle }

// generate reports whether the output came from the model m names.
func (m *Model) generate(ctx context.Context, text string) (string, bool, error) {
	if !m.parallel {
		m.mu.Lock()
		defer m.mu.Unlock()
	}
	if se, ok := m.engine.(SubstitutingEngine); ok {
		out, substitute, err := se.GenerateAttributed(ctx, text)
		return out, !substitute, err
	}
	out, err := m.engine.Generate(ctx, text)
	return out, true, err
}

var defaultControlTokens = []string{"<pad>", "</s>", "<s>", "<unk>"}

// StripControlTokens removes special tokens from decoded model output and
// collapses the whitespace they leave behind.
func StripControlTokens(s string, extra []string) string {
	for _, tok := range defaultControlTokens {
		s = strings.ReplaceAll(s, tok, " ")
	}
	for _, tok := range extra {
		if tok != "" {
			s = strings.ReplaceAll(s, tok, " ")
		}
	}
	return strings.Join(strings.Fields(s), " ")
}
