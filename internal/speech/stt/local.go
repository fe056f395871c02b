package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/nikhilbhutani/linguakit/internal/speech/audio"
)

// LocalConfig holds configuration for the local whisper.cpp STT backend.
type LocalConfig struct {
	BaseURL string // default: "http://localhost:8178"
	// Convert is set when the server runs with --convert and decodes
	// compressed input through ffmpeg. Without it only WAV is understood.
	Convert bool
}

// LocalSTT talks to a whisper.cpp server.
// Start the server with: ./server -m models/ggml-base.bin --port 8178
type LocalSTT struct {
	baseURL    string
	convert    bool
	httpClient *http.Client
}

func NewLocalSTT(cfg LocalConfig) *LocalSTT {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:8178"
	}
	return &LocalSTT{
		baseURL: strings.TrimRight(baseURL, "/"),
		convert: cfg.Convert,
		httpClient: &http.Client{
			Timeout: 300 * time.Second,
		},
	}
}

func (l *LocalSTT) Name() string { return "local-whisper" }

func (l *LocalSTT) Formats() audio.Formats {
	if l.convert {
		return audio.Formats{audio.WAV, audio.MP3, audio.AAC, audio.OGG, audio.WebM, audio.FLAC, audio.M4A}
	}
	return audio.Formats{audio.WAV}
}

// Recognize uploads the clip to /inference as multipart form data.
func (l *LocalSTT) Recognize(ctx context.Context, buf *audio.Buffer, opts Options) (*Transcript, error) {
	if buf == nil || len(buf.Data) == 0 {
		return nil, audio.ErrNoAudio
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", buf.Filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err = fw.Write(buf.Data); err != nil {
		return nil, fmt.Errorf("copy audio data: %w", err)
	}

	_ = mw.WriteField("response_format", "json")
	_ = mw.WriteField("temperature", "0")
	if opts.Language != "" {
		_ = mw.WriteField("language", opts.Language)
	}
	if opts.Prompt != "" {
		_ = mw.WriteField("prompt", opts.Prompt)
	}

	if err = mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", l.baseURL+"/inference", &body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := l.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ServiceError{Engine: l.Name(), Err: fmt.Errorf("transcription request: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ServiceError{Engine: l.Name(), Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ServiceError{Engine: l.Name(), Err: fmt.Errorf("transcription failed (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))}
	}

	var apiResp struct {
		Text     string `json:"text"`
		Language string `json:"language"`
		Error    string `json:"error"`
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, &ServiceError{Engine: l.Name(), Err: fmt.Errorf("parse response: %w", err)}
	}
	if apiResp.Error != "" {
		return nil, &ServiceError{Engine: l.Name(), Err: fmt.Errorf("%s", apiResp.Error)}
	}

	lang := apiResp.Language
	if lang == "" {
		lang = opts.Language
	}
	return finish(apiResp.Text, lang, 0)
}
