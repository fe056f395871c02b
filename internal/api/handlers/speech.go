package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nikhilbhutani/linguakit/internal/speech"
	"github.com/nikhilbhutani/linguakit/internal/speech/audio"
	"github.com/nikhilbhutani/linguakit/internal/speech/output"
	"github.com/nikhilbhutani/linguakit/internal/speech/stt"
)

// SpeechService is the part of *speech.Service the handlers use.
type SpeechService interface {
	Speak(ctx context.Context, text, voice string) (*output.Artifact, error)
	Recognize(ctx context.Context, buf *audio.Buffer, language string) (*stt.Transcript, error)
	Record(ctx context.Context, language string) (*stt.Transcript, error)
	MicrophoneEnabled() bool
}

// UploadPolicy controls which uploads the recognize endpoints accept.
type UploadPolicy struct {
	Enabled  bool
	Formats  audio.Formats
	MaxBytes int64
}

const outputURL = "/api/v1/speech/output"

type SpeechHandler struct {
	speech SpeechService
	output http.Handler
	upload UploadPolicy
}

// NewSpeechHandler serves synthesized audio through out, normally the
// *output.FileSink the speech service writes to.
func NewSpeechHandler(svc SpeechService, out http.Handler, upload UploadPolicy) *SpeechHandler {
	return &SpeechHandler{speech: svc, output: out, upload: upload}
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

type synthesizeResponse struct {
	ContentType string `json:"content_type"`
	AudioURL    string `json:"audio_url"`
	Bytes       int    `json:"bytes"`
	Version     string `json:"version"`
}

func (h *SpeechHandler) Synthesize(w http.ResponseWriter, r *http.Request) {
	var req synthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body", "code": "bad_request"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeProblem(w, speakProblem(speech.ErrEmptyText))
		return
	}

	a, err := h.speech.Speak(r.Context(), req.Text, req.Voice)
	if err != nil {
		slog.Error("speech synthesis failed", "error", err)
		writeProblem(w, speakProblem(err))
		return
	}

	writeJSON(w, http.StatusOK, synthesizeResponse{
		ContentType: a.ContentType,
		AudioURL:    outputURL + "?v=" + a.Version,
		Bytes:       a.Size,
		Version:     a.Version,
	})
}

func (h *SpeechHandler) Output(w http.ResponseWriter, r *http.Request) {
	h.output.ServeHTTP(w, r)
}

func (h *SpeechHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	buf, err := h.upload.read(r)
	if err != nil {
		writeProblem(w, recognizeProblem(err))
		return
	}

	tr, err := h.speech.Recognize(r.Context(), buf, r.FormValue("language"))
	if err != nil {
		logRecognizeError(err)
		writeProblem(w, recognizeProblem(err))
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

func (h *SpeechHandler) Record(w http.ResponseWriter, r *http.Request) {
	tr, err := h.speech.Record(r.Context(), r.URL.Query().Get("language"))
	if err != nil {
		logRecognizeError(err)
		writeProblem(w, recognizeProblem(err))
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

// read takes the "audio" multipart field, enforcing the configured
// formats and size limit.
func (p UploadPolicy) read(r *http.Request) (*audio.Buffer, error) {
	if !p.Enabled {
		return nil, errUploadDisabled
	}
	if p.MaxBytes > 0 {
		// leave room for the other form fields and multipart framing
		r.Body = http.MaxBytesReader(nil, r.Body, p.MaxBytes+1<<20)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, audio.ErrTooLarge
		}
		return nil, audio.ErrNoAudio
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		return nil, audio.ErrNoAudio
	}
	defer file.Close()

	return audio.Read(file, header.Filename, header.Header.Get("Content-Type"), p.Formats, p.MaxBytes)
}

var errUploadDisabled = errors.New("audio upload is not enabled")

func logRecognizeError(err error) {
	var se *stt.ServiceError
	if errors.As(err, &se) {
		slog.Error("speech recognition failed", "engine", se.Engine, "error", se.Err)
	}
}
