package stt

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nikhilbhutani/linguakit/internal/speech/audio"
)

// OpenAIConfig holds configuration for the OpenAI Whisper backend.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // default: "https://api.openai.com/v1"
	Model   string // default: "whisper-1"
}

// OpenAISTT transcribes audio using OpenAI's Whisper API (or a compatible endpoint).
type OpenAISTT struct {
	client *openai.Client
	model  string
}

func NewOpenAISTT(cfg OpenAIConfig) *OpenAISTT {
	if cfg.Model == "" {
		cfg.Model = openai.Whisper1
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAISTT{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

func (o *OpenAISTT) Name() string { return "openai-whisper" }

// Formats follows the upload types the transcription endpoint documents.
func (o *OpenAISTT) Formats() audio.Formats {
	return audio.Formats{audio.WAV, audio.MP3, audio.OGG, audio.WebM, audio.FLAC, audio.M4A}
}

func (o *OpenAISTT) Recognize(ctx context.Context, buf *audio.Buffer, opts Options) (*Transcript, error) {
	if buf == nil || len(buf.Data) == 0 {
		return nil, audio.ErrNoAudio
	}

	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: buf.Filename,
		Reader:   buf.Reader(),
		Prompt:   opts.Prompt,
		Language: opts.Language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &ServiceError{Engine: o.Name(), Err: err}
	}

	return finish(resp.Text, resp.Language, resp.Duration)
}
