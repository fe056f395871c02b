package stt

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/nikhilbhutani/linguakit/internal/speech/audio"
)

var (
	_ Provider = (*OpenAISTT)(nil)
	_ Provider = (*LocalSTT)(nil)
	_ Provider = (*GoogleSTT)(nil)
)

func wavClip() *audio.Buffer {
	return &audio.Buffer{Data: []byte("RIFF....WAVEfmt "), Filename: "clip.wav", Format: audio.WAV}
}

func TestFinish(t *testing.T) {
	tests := []struct {
		text    string
		want    string
		unintel bool
	}{
		{"  hello world ", "hello world", false},
		{"", "", true},
		{"   ", "", true},
		{"[BLANK_AUDIO]", "", true},
		{"(silence)", "", true},
		{"[music] and then words (maybe)", "[music] and then words (maybe)", false},
	}
	for _, tt := range tests {
		got, err := finish(tt.text, "en", 0)
		if tt.unintel {
			if !errors.Is(err, ErrUnintelligible) {
				t.Errorf("finish(%q) error = %v, want ErrUnintelligible", tt.text, err)
			}
			continue
		}
		if err != nil || got.Text != tt.want {
			t.Errorf("finish(%q) = %+v, %v", tt.text, got, err)
		}
	}
}

func TestLocalRecognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
			return
		}
		data, _ := io.ReadAll(f)
		if hdr.Filename != "clip.wav" || !strings.HasPrefix(string(data), "RIFF") {
			t.Errorf("unexpected upload %s", hdr.Filename)
		}
		if r.FormValue("language") != "es" || r.FormValue("temperature") != "0" {
			t.Errorf("form = %v", r.Form)
		}
		w.Write([]byte(`{"text":" hola mundo\n"}`))
	}))
	defer srv.Close()

	got, err := NewLocalSTT(LocalConfig{BaseURL: srv.URL + "/"}).Recognize(context.Background(), wavClip(), Options{Language: "es"})
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if got.Text != "hola mundo" || got.Language != "es" {
		t.Errorf("Recognize() = %+v", got)
	}
}

func TestLocalRecognizeOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		check   func(error) bool
		wantMsg string
	}{
		{"silence", http.StatusOK, `{"text":"[BLANK_AUDIO]"}`, func(err error) bool { return errors.Is(err, ErrUnintelligible) }, ""},
		{"server error", http.StatusInternalServerError, "model not loaded", isServiceError, "model not loaded"},
		{"bad json", http.StatusOK, "not json", isServiceError, "parse response"},
		{"engine error", http.StatusOK, `{"error":"failed to read WAV"}`, isServiceError, "failed to read WAV"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewLocalSTT(LocalConfig{BaseURL: srv.URL}).Recognize(context.Background(), wavClip(), Options{})
			if !tt.check(err) {
				t.Fatalf("Recognize() error = %v", err)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLocalRecognizeUnreachable(t *testing.T) {
	_, err := NewLocalSTT(LocalConfig{BaseURL: "http://127.0.0.1:1"}).Recognize(context.Background(), wavClip(), Options{})
	if !isServiceError(err) {
		t.Fatalf("Recognize() error = %v, want ServiceError", err)
	}
}

func TestRecognizeWithoutAudio(t *testing.T) {
	providers := []Provider{
		NewLocalSTT(LocalConfig{}),
		NewOpenAISTT(OpenAIConfig{APIKey: "test"}),
		NewGoogleSTT(GoogleConfig{}),
	}
	for _, p := range providers {
		if _, err := p.Recognize(context.Background(), &audio.Buffer{}, Options{}); !errors.Is(err, audio.ErrNoAudio) {
			t.Errorf("%s: error = %v, want ErrNoAudio", p.Name(), err)
		}
	}
}

func TestOpenAIRecognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if r.FormValue("model") != "whisper-1" || r.FormValue("response_format") != "verbose_json" {
			t.Errorf("form = %v", r.Form)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"task":"transcribe","language":"english","duration":1.5,"text":"Hello there."}`))
	}))
	defer srv.Close()

	p := NewOpenAISTT(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	got, err := p.Recognize(context.Background(), wavClip(), Options{})
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if got.Text != "Hello there." || got.Duration != 1.5 {
		t.Errorf("Recognize() = %+v", got)
	}
}

func TestOpenAIRecognizeServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	p := NewOpenAISTT(OpenAIConfig{APIKey: "bad", BaseURL: srv.URL + "/v1"})
	_, err := p.Recognize(context.Background(), wavClip(), Options{})
	if !isServiceError(err) || !strings.Contains(err.Error(), "Incorrect API key") {
		t.Fatalf("Recognize() error = %v", err)
	}
}

func TestGoogleEncoding(t *testing.T) {
	tests := []struct {
		format audio.Format
		want   speechpb.RecognitionConfig_AudioEncoding
		rate   int32
	}{
		{audio.WAV, speechpb.RecognitionConfig_LINEAR16, 0},
		{audio.FLAC, speechpb.RecognitionConfig_FLAC, 0},
		{audio.OGG, speechpb.RecognitionConfig_OGG_OPUS, 48000},
		{audio.WebM, speechpb.RecognitionConfig_WEBM_OPUS, 48000},
	}
	for _, tt := range tests {
		enc, err := encodingFor(tt.format)
		if err != nil || enc.encoding != tt.want || enc.sampleRate != tt.rate {
			t.Errorf("encodingFor(%s) = %+v, %v", tt.format, enc, err)
		}
	}
	for _, f := range []audio.Format{audio.MP3, audio.AAC, audio.M4A} {
		if _, err := encodingFor(f); !errors.Is(err, audio.ErrUnsupportedFormat) {
			t.Errorf("encodingFor(%s) error = %v", f, err)
		}
	}
}

func TestGoogleFormatsHaveEncodings(t *testing.T) {
	g := &GoogleSTT{}
	for _, f := range g.Formats() {
		if _, err := encodingFor(f); err != nil {
			t.Errorf("advertised format %s has no encoding: %v", f, err)
		}
	}
	if g.Formats().Contains(audio.MP3) || g.Formats().Contains(audio.AAC) {
		t.Errorf("Formats() = %v, want no mp3/aac", g.Formats())
	}
}

func TestLocalFormats(t *testing.T) {
	plain := NewLocalSTT(LocalConfig{})
	if got := plain.Formats(); len(got) != 1 || got[0] != audio.WAV {
		t.Errorf("Formats() without convert = %v, want [wav]", got)
	}
	conv := NewLocalSTT(LocalConfig{Convert: true})
	for _, f := range []audio.Format{audio.WAV, audio.WebM, audio.MP3, audio.OGG} {
		if !conv.Formats().Contains(f) {
			t.Errorf("Formats() with convert missing %s", f)
		}
	}
}

func TestLanguageTag(t *testing.T) {
	for in, want := range map[string]string{"": "en-US", "FR": "fr-FR", "it": "it-IT", "pt-BR": "pt-br"} {
		if got := languageTag(in); got != want {
			t.Errorf("languageTag(%q) = %q, want %q", in, got, want)
		}
	}
}

func isServiceError(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}
