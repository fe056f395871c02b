package tts

import (
	"context"
	"errors"
)

var ErrEmptyAudio = errors.New("synthesizer produced no audio")

// SynthesisRequest holds the parameters for text-to-speech generation.
type SynthesisRequest struct {
	Input  string  `json:"input"`
	Voice  string  `json:"voice,omitempty"`
	Rate   int     `json:"rate,omitempty"`   // words per minute
	Volume float64 `json:"volume,omitempty"` // 0..1
}

// SynthesisResult holds the generated audio and its content type.
type SynthesisResult struct {
	Audio       []byte
	ContentType string // "audio/wav" (espeak, Piper) or "audio/mpeg" (OpenAI)
}

// Provider is the interface for text-to-speech backends.
type Provider interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error)
	Name() string
}
