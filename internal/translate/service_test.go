package translate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nikhilbhutani/linguakit/internal/cache"
)

type fakeEngine struct {
	prefix   string
	maxInput int
	err      error
	output   string
	inFlight atomic.Int32
	overlap  atomic.Bool
	calls    atomic.Int32
	delay    time.Duration
}

func (e *fakeEngine) Generate(ctx context.Context, text string) (string, error) {
	e.calls.Add(1)
	if e.inFlight.Add(1) > 1 {
		e.overlap.Store(true)
	}
	defer e.inFlight.Add(-1)
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	if e.err != nil {
		return "", e.err
	}
	if e.output != "" {
		return e.output, nil
	}
	return e.prefix + strings.ToUpper(text) + "</s>", nil
}

func (e *fakeEngine) MaxInputTokens() int     { return e.maxInput }
func (e *fakeEngine) ControlTokens() []string { return []string{"<extra_id>"} }

type fakeLoader struct {
	mu     sync.Mutex
	loads  map[string]int
	engine func(ref ModelRef) (Engine, error)
	delay  time.Duration
}

func (l *fakeLoader) Name() string { return "fake" }

func (l *fakeLoader) Load(ctx context.Context, ref ModelRef) (Engine, error) {
	l.mu.Lock()
	if l.loads == nil {
		l.loads = map[string]int{}
	}
	l.loads[ref.ID]++
	l.mu.Unlock()
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	if l.engine != nil {
		return l.engine(ref)
	}
	if ref.Pair.Identity() {
		return nil, errors.New("no such model")
	}
	return &fakeEngine{prefix: string(ref.Pair.Target) + ":"}, nil
}

func (l *fakeLoader) count(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads[id]
}

type memoryCache struct {
	mu   sync.Mutex
	data map[string]string
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return cache.ErrMiss
	}
	*(dest.(*string)) = v
	return nil
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string]string{}
	}
	c.data[key] = value.(string)
	return nil
}

var naming = Naming{Organization: "Helsinki-NLP", Family: "opus-mt"}

func newTestService(t *testing.T, loader Loader, size int) *Service {
	t.Helper()
	svc, err := NewService(loader, Options{Naming: naming, CacheSize: size})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func TestResolveAndTranslate(t *testing.T) {
	svc := newTestService(t, &fakeLoader{}, 4)
	ctx := context.Background()

	m, err := svc.Resolve(ctx, LanguagePair{Source: English, Target: Spanish})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if m.ID() != "Helsinki-NLP/opus-mt-en-es" {
		t.Errorf("ID() = %q", m.ID())
	}
	if m.Handle() == "" {
		t.Error("expected handle id")
	}

	out, err := svc.Translate(ctx, m, "Hello, how are you?")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if out != "es:HELLO, HOW ARE YOU?" {
		t.Errorf("Translate() = %q", out)
	}
}

func TestTranslateIsDeterministic(t *testing.T) {
	svc := newTestService(t, &fakeLoader{}, 4)
	ctx := context.Background()

	m, err := svc.Resolve(ctx, LanguagePair{Source: English, Target: French})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	first, err := svc.Translate(ctx, m, "good morning")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := svc.Translate(ctx, m, "good morning")
		if err != nil {
			t.Fatalf("Translate() error = %v", err)
		}
		if again != first {
			t.Fatalf("Translate() = %q, want %q", again, first)
		}
	}
}

func TestResolveUnsupportedPair(t *testing.T) {
	loader := &fakeLoader{}
	svc := newTestService(t, loader, 4)

	m, err := svc.Resolve(context.Background(), LanguagePair{Source: English, Target: "xx"})
	if m != nil {
		t.Fatal("expected no model")
	}
	if !errors.Is(err, ErrModelUnavailable) || !errors.Is(err, ErrUnsupportedLanguage) {
		t.Fatalf("Resolve() error = %v, want ModelUnavailable/UnsupportedLanguage", err)
	}
	var mu *ModelUnavailableError
	if !errors.As(err, &mu) || mu.Pair.Target != "xx" {
		t.Errorf("error does not carry the pair: %v", err)
	}
	if loader.count("Helsinki-NLP/opus-mt-en-xx") != 0 {
		t.Error("loader must not be called for unsupported codes")
	}
}

func TestResolveIdentityPairFails(t *testing.T) {
	svc := newTestService(t, &fakeLoader{}, 4)

	m, err := svc.Resolve(context.Background(), LanguagePair{Source: German, Target: German})
	if m != nil || !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("Resolve() = %v, %v; want ModelUnavailable", m, err)
	}
	if !strings.Contains(err.Error(), "de-de") {
		t.Errorf("error should name the pair: %v", err)
	}
}

func TestResolveCachesModels(t *testing.T) {
	loader := &fakeLoader{}
	svc := newTestService(t, loader, 1)
	ctx := context.Background()
	enES := LanguagePair{Source: English, Target: Spanish}
	enDE := LanguagePair{Source: English, Target: German}

	a, _ := svc.Resolve(ctx, enES)
	b, _ := svc.Resolve(ctx, enES)
	if a != b {
		t.Error("expected cached handle")
	}
	if n := loader.count("Helsinki-NLP/opus-mt-en-es"); n != 1 {
		t.Errorf("loads = %d, want 1", n)
	}

	svc.Resolve(ctx, enDE)
	if got := svc.Loaded(); len(got) != 1 || got[0] != enDE {
		t.Errorf("Loaded() = %v, want [en-de]", got)
	}
	svc.Resolve(ctx, enES)
	if n := loader.count("Helsinki-NLP/opus-mt-en-es"); n != 2 {
		t.Errorf("loads after eviction = %d, want 2", n)
	}
}

func TestResolveWithoutCacheLoadsEveryTime(t *testing.T) {
	loader := &fakeLoader{}
	svc := newTestService(t, loader, 0)
	pair := LanguagePair{Source: Italian, Target: English}

	for i := 0; i < 3; i++ {
		if _, err := svc.Resolve(context.Background(), pair); err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
	}
	if n := loader.count("Helsinki-NLP/opus-mt-it-en"); n != 3 {
		t.Errorf("loads = %d, want 3", n)
	}
	if svc.Loaded() != nil {
		t.Error("Loaded() should be nil without a cache")
	}
}

func TestResolveCoalescesConcurrentLoads(t *testing.T) {
	loader := &fakeLoader{delay: 50 * time.Millisecond}
	svc := newTestService(t, loader, 4)
	pair := LanguagePair{Source: French, Target: English}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Resolve(context.Background(), pair); err != nil {
				t.Errorf("Resolve() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if n := loader.count("Helsinki-NLP/opus-mt-fr-en"); n != 1 {
		t.Errorf("loads = %d, want 1", n)
	}
}

func TestResolveDoesNotCacheFailures(t *testing.T) {
	fail := true
	loader := &fakeLoader{engine: func(ref ModelRef) (Engine, error) {
		if fail {
			return nil, errors.New("network down")
		}
		return &fakeEngine{}, nil
	}}
	svc := newTestService(t, loader, 4)
	pair := LanguagePair{Source: English, Target: Italian}

	if _, err := svc.Resolve(context.Background(), pair); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("Resolve() error = %v", err)
	}
	fail = false
	if _, err := svc.Resolve(context.Background(), pair); err != nil {
		t.Fatalf("Resolve() after recovery error = %v", err)
	}
}

func TestResolveHonoursContext(t *testing.T) {
	loader := &fakeLoader{delay: 200 * time.Millisecond}
	svc := newTestService(t, loader, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := svc.Resolve(ctx, LanguagePair{Source: English, Target: Spanish})
	if !errors.Is(err, ErrModelUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Resolve() error = %v", err)
	}
}

func TestTranslateFailures(t *testing.T) {
	tests := []struct {
		name   string
		engine *fakeEngine
		text   string
		want   error
	}{
		{"blank input", &fakeEngine{}, "   ", ErrEmptyInput},
		{"too long", &fakeEngine{maxInput: 5}, strings.Repeat("word ", 20), ErrInputTooLong},
		{"only control tokens", &fakeEngine{output: "<pad></s>"}, "hi", ErrEmptyOutput},
		{"engine error", &fakeEngine{err: errors.New("out of memory")}, "hi", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := tt.engine
			svc := newTestService(t, &fakeLoader{engine: func(ModelRef) (Engine, error) { return engine, nil }}, 4)
			m, err := svc.Resolve(context.Background(), LanguagePair{Source: English, Target: Spanish})
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}

			out, err := svc.Translate(context.Background(), m, tt.text)
			if out != "" {
				t.Errorf("Translate() = %q, want empty on failure", out)
			}
			if !errors.Is(err, ErrInferenceFailure) {
				t.Fatalf("Translate() error = %v, want InferenceFailure", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Translate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTranslateSerialisesHandle(t *testing.T) {
	engine := &fakeEngine{delay: 20 * time.Millisecond}
	svc := newTestService(t, &fakeLoader{engine: func(ModelRef) (Engine, error) { return engine, nil }}, 4)
	m, err := svc.Resolve(context.Background(), LanguagePair{Source: English, Target: Spanish})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Translate(context.Background(), m, "hello")
		}()
	}
	wg.Wait()
	if engine.overlap.Load() {
		t.Error("concurrent Generate calls on one handle")
	}
}

func TestTranslateUsesResultCache(t *testing.T) {
	engine := &fakeEngine{}
	results := &memoryCache{}
	svc, err := NewService(&fakeLoader{engine: func(ModelRef) (Engine, error) { return engine, nil }}, Options{
		Naming:    naming,
		CacheSize: 4,
		Results:   results,
		ResultTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	out, m, err := svc.TranslatePair(context.Background(), LanguagePair{Source: English, Target: Spanish}, "hello")
	if err != nil {
		t.Fatalf("TranslatePair() error = %v", err)
	}
	again, err := svc.Translate(context.Background(), m, "hello")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if again != out {
		t.Errorf("cached = %q, want %q", again, out)
	}
	if n := engine.calls.Load(); n != 1 {
		t.Errorf("engine calls = %d, want 1", n)
	}
}

func TestNewServiceValidation(t *testing.T) {
	if _, err := NewService(nil, Options{Naming: naming}); err == nil {
		t.Error("expected error without loader")
	}
	if _, err := NewService(&fakeLoader{}, Options{}); err == nil {
		t.Error("expected error without naming")
	}
}

func TestStripControlTokens(t *testing.T) {
	tests := []struct {
		in    string
		extra []string
		want  string
	}{
		{"<pad> Hola mundo</s>", nil, "Hola mundo"},
		{"Bonjour <unk> monde", nil, "Bonjour monde"},
		{"Hallo<sep>Welt", []string{"<sep>"}, "Hallo Welt"},
		{"</s>", nil, ""},
	}
	for _, tt := range tests {
		if got := StripControlTokens(tt.in, tt.extra); got != tt.want {
			t.Errorf("StripControlTokens(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseLanguage(t *testing.T) {
	if code, err := ParseLanguage(" ES "); err != nil || code != Spanish {
		t.Errorf("ParseLanguage(ES) = %q, %v", code, err)
	}
	if _, err := ParseLanguage("xx"); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Errorf("ParseLanguage(xx) error = %v", err)
	}
	if got := len(Languages()); got != 5 {
		t.Errorf("Languages() has %d codes, want 5", got)
	}
	if English.Name() != "English" || LanguageCode("xx").Name() != "xx" {
		t.Error("unexpected language names")
	}
}
