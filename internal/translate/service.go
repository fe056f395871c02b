package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/nikhilbhutani/linguakit/internal/cache"
	"github.com/nikhilbhutani/linguakit/pkg/tokenizer"
)

// ResultCache memoises finished translations. *cache.Cache satisfies it.
type ResultCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type Options struct {
	Naming Naming
	// CacheSize bounds the number of loaded models kept between requests.
	// Zero loads a fresh model on every Resolve.
	CacheSize int
	Results   ResultCache
	ResultTTL time.Duration
}

// Service resolves language pairs to models and runs translations.
// It is safe for concurrent use.
type Service struct {
	loader    Loader
	naming    Naming
	models    *lru.Cache[LanguagePair, *Model]
	loads     singleflight.Group
	results   ResultCache
	resultTTL time.Duration
}

func NewService(loader Loader, opts Options) (*Service, error) {
	if loader == nil {
		return nil, errors.New("translate: loader is required")
	}
	if opts.Naming.Organization == "" || opts.Naming.Family == "" {
		return nil, errors.New("translate: model naming requires organization and family")
	}

	s := &Service{
		loader:    loader,
		naming:    opts.Naming,
		results:   opts.Results,
		resultTTL: opts.ResultTTL,
	}
	if opts.CacheSize > 0 {
		models, err := lru.NewWithEvict[LanguagePair, *Model](opts.CacheSize, func(pair LanguagePair, m *Model) {
			slog.Debug("evicted translation model", "pair", pair.String(), "model", m.ID(), "handle", m.Handle())
		})
		if err != nil {
			return nil, fmt.Errorf("create model cache: %w", err)
		}
		s.models = models
	}
	return s, nil
}

// ModelID returns the identifier Resolve would load for pair.
func (s *Service) ModelID(pair LanguagePair) string {
	return s.naming.Ref(pair).ID
}

// Resolve returns a loaded model for pair. Every failure is a
// *ModelUnavailableError and no handle is returned with it.
func (s *Service) Resolve(ctx context.Context, pair LanguagePair) (*Model, error) {
	ref := s.naming.Ref(pair)
	if err := pair.Validate(); err != nil {
		return nil, &ModelUnavailableError{Pair: pair, ModelID: ref.ID, Err: err}
	}

	if s.models != nil {
		if m, ok := s.models.Get(pair); ok {
			return m, nil
		}
	}

	ch := s.loads.DoChan(pair.String(), func() (interface{}, error) {
		start := time.Now()
		engine, err := s.loader.Load(context.WithoutCancel(ctx), ref)
		if err != nil {
			return nil, err
		}
		m := newModel(ref, engine)
		if s.models != nil {
			s.models.Add(pair, m)
		}
		slog.Info("loaded translation model",
			"pair", pair.String(),
			"model", ref.ID,
			"loader", s.loader.Name(),
			"handle", m.Handle(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
		return m, nil
	})

	select {
	case <-ctx.Done():
		return nil, &ModelUnavailableError{Pair: pair, ModelID: ref.ID, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			var mu *ModelUnavailableError
			if errors.As(res.Err, &mu) {
				return nil, mu
			}
			return nil, &ModelUnavailableError{Pair: pair, ModelID: ref.ID, Err: res.Err}
		}
		return res.Val.(*Model), nil
	}
}

// Translate runs a single deterministic generation pass over text.
// Every failure is an *InferenceError.
func (s *Service) Translate(ctx context.Context, m *Model, text string) (string, error) {
	if m == nil {
		return "", &InferenceError{Err: errors.New("no model")}
	}
	if strings.TrimSpace(text) == "" {
		return "", &InferenceError{ModelID: m.ID(), Err: ErrEmptyInput}
	}
	if limit := m.engine.MaxInputTokens(); limit > 0 && !tokenizer.Fits(text, limit) {
		n := tokenizer.CountTokens(text)
		return "", &InferenceError{ModelID: m.ID(), Err: fmt.Errorf("%w: ~%d tokens, limit %d", ErrInputTooLong, n, limit)}
	}

	key := resultKey(m.ID(), text)
	if s.results != nil {
		var cached string
		err := s.results.Get(ctx, key, &cached)
		switch {
		case err == nil && cached != "":
			return cached, nil
		case err != nil && !errors.Is(err, cache.ErrMiss):
			slog.Warn("translation cache read failed", "model", m.ID(), "error", err)
		}
	}

	out, attributable, err := m.generate(ctx, text)
	if err != nil {
		return "", &InferenceError{ModelID: m.ID(), Err: err}
	}
	out = StripControlTokens(out, m.engine.ControlTokens())
	if out == "" {
		return "", &InferenceError{ModelID: m.ID(), Err: ErrEmptyOutput}
	}

	if !attributable {
		slog.Info("translation served by substitute model, not cached", "model", m.ID())
		return out, nil
	}
	if s.results != nil {
		if err := s.results.Set(ctx, key, out, s.resultTTL); err != nil {
			slog.Warn("translation cache write failed", "model", m.ID(), "error", err)
		}
	}
	return out, nil
}

// TranslatePair resolves pair and translates text in one call.
func (s *Service) TranslatePair(ctx context.Context, pair LanguagePair, text string) (string, *Model, error) {
	m, err := s.Resolve(ctx, pair)
	if err != nil {
		return "", nil, err
	}
	out, err := s.Translate(ctx, m, text)
	if err != nil {
		return "", m, err
	}
	return out, m, nil
}

// Loaded lists the pairs currently held in the model cache, oldest first.
func (s *Service) Loaded() []LanguagePair {
	if s.models == nil {
		return nil
	}
	return s.models.Keys()
}

func resultKey(modelID, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "translate:" + modelID + ":" + hex.EncodeToString(sum[:])
}
