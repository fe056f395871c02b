package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nikhilbhutani/linguakit/internal/config"
	"github.com/nikhilbhutani/linguakit/internal/speech/audio"
	"github.com/nikhilbhutani/linguakit/internal/speech/output"
	"github.com/nikhilbhutani/linguakit/internal/speech/stt"
	"github.com/nikhilbhutani/linguakit/internal/translate"
)

type stubTranslator struct{}

func (stubTranslator) TranslatePair(context.Context, translate.LanguagePair, string) (string, *translate.Model, error) {
	return "hola", nil, nil
}
func (stubTranslator) ModelID(p translate.LanguagePair) string { return "org/family-" + p.String() }
func (stubTranslator) Loaded() []translate.LanguagePair        { return nil }

type stubSpeech struct{}

func (stubSpeech) Speak(context.Context, string, string) (*output.Artifact, error) {
	return &output.Artifact{ContentType: "audio/wav", Version: "v"}, nil
}
func (stubSpeech) Recognize(context.Context, *audio.Buffer, string) (*stt.Transcript, error) {
	return &stt.Transcript{Text: "hi"}, nil
}
func (stubSpeech) Record(context.Context, string) (*stt.Transcript, error) {
	return &stt.Transcript{Text: "hi"}, nil
}
func (stubSpeech) MicrophoneEnabled() bool { return false }

func newTestServer(rateLimit int) http.Handler {
	cfg := &config.Config{
		Server: config.ServerConfig{RateLimit: rateLimit, Origins: []string{"*"}},
		STT:    config.STTConfig{Input: "upload", CaptureSeconds: 5, MaxUploadBytes: 1 << 20},
	}
	return NewRouter(cfg, Deps{
		Translator: stubTranslator{},
		Speech:     stubSpeech{},
		Output:     http.NotFoundHandler(),
		Formats:    audio.Formats{audio.WAV},
	}).Setup()
}

func TestRoutes(t *testing.T) {
	h := newTestServer(0)

	tests := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/readyz", "", http.StatusOK},
		{http.MethodGet, "/", "", http.StatusOK},
		{http.MethodGet, "/api/v1/languages", "", http.StatusOK},
		{http.MethodPost, "/api/v1/translate", `{"source":"en","target":"es","text":"hello"}`, http.StatusOK},
		{http.MethodPost, "/api/v1/speech/synthesize", `{"text":"hello"}`, http.StatusOK},
		{http.MethodGet, "/api/v1/speech/output", "", http.StatusNotFound},
		{http.MethodGet, "/api/v1/translate", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
		}
	}
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(2)

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/languages", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", last)
	}
}

func TestHealthNotRateLimited(t *testing.T) {
	h := newTestServer(1)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("healthz #%d = %d", i, rec.Code)
		}
	}
}
