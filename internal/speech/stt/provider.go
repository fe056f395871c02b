package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nikhilbhutani/linguakit/internal/speech/audio"
)

// ErrUnintelligible is returned when the engine ran but found no speech it
// could map to text. It is not an application failure.
var ErrUnintelligible = errors.New("speech could not be understood")

// ServiceError reports that the recognition backend itself failed.
type ServiceError struct {
	Engine string
	Err    error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s recognition error: %v", e.Engine, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Options tunes a single recognition call.
type Options struct {
	Language string `json:"language,omitempty"` // ISO 639-1, empty for auto-detect
	Prompt   string `json:"prompt,omitempty"`
}

// Transcript holds recognised speech.
type Transcript struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// Provider is the interface for speech-to-text backends. Implementations
// return ErrUnintelligible or a *ServiceError instead of empty transcripts.
type Provider interface {
	Recognize(ctx context.Context, buf *audio.Buffer, opts Options) (*Transcript, error)
	Name() string
	// Formats lists the containers the engine can decode.
	Formats() audio.Formats
}

// finish turns raw engine text into a transcript or ErrUnintelligible.
func finish(text, language string, duration float64) (*Transcript, error) {
	text = strings.TrimSpace(text)
	if text == "" || isNonSpeechMarker(text) {
		return nil, ErrUnintelligible
	}
	return &Transcript{Text: text, Language: language, Duration: duration}, nil
}

// whisper emits bracketed markers such as "[BLANK_AUDIO]" or "(silence)"
// for clips without speech.
func isNonSpeechMarker(text string) bool {
	if len(text) < 3 {
		return false
	}
	open, close := text[0], text[len(text)-1]
	if !((open == '[' && close == ']') || (open == '(' && close == ')')) {
		return false
	}
	return !strings.ContainsAny(text[1:len(text)-1], "[]()")
}
