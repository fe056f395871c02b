// Package speech wires the text-to-speech and speech-to-text engines to
// their inputs and outputs.
package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nikhilbhutani/linguakit/internal/speech/audio"
	"github.com/nikhilbhutani/linguakit/internal/speech/output"
	"github.com/nikhilbhutani/linguakit/internal/speech/stt"
	"github.com/nikhilbhutani/linguakit/internal/speech/tts"
)

var (
	ErrEmptyText          = errors.New("text is empty")
	ErrMicrophoneDisabled = errors.New("microphone input is not enabled")
)

// Defaults are applied to every synthesis request.
type Defaults struct {
	Voice  string
	Rate   int
	Volume float64
}

type Service struct {
	synth    tts.Provider
	sink     output.Sink
	recog    stt.Provider
	mic      audio.Source
	defaults Defaults
}

// NewService builds the speech service. mic may be nil when live capture
// is disabled.
func NewService(synth tts.Provider, sink output.Sink, recog stt.Provider, mic audio.Source, defaults Defaults) *Service {
	return &Service{
		synth:    synth,
		sink:     sink,
		recog:    recog,
		mic:      mic,
		defaults: defaults,
	}
}

// Speak synthesizes text and hands the audio to the configured sink.
func (s *Service) Speak(ctx context.Context, text, voice string) (*output.Artifact, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if voice == "" {
		voice = s.defaults.Voice
	}

	start := time.Now()
	res, err := s.synth.Synthesize(ctx, tts.SynthesisRequest{
		Input:  text,
		Voice:  voice,
		Rate:   s.defaults.Rate,
		Volume: s.defaults.Volume,
	})
	if err != nil {
		return nil, fmt.Errorf("%s synthesis: %w", s.synth.Name(), err)
	}

	a, err := s.sink.Deliver(ctx, res)
	if err != nil {
		return a, err
	}
	slog.Info("speech synthesized",
		"engine", s.synth.Name(),
		"chars", len(text),
		"bytes", a.Size,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return a, nil
}

// Recognize maps buf to text.
func (s *Service) Recognize(ctx context.Context, buf *audio.Buffer, language string) (*stt.Transcript, error) {
	if buf == nil || len(buf.Data) == 0 {
		return nil, audio.ErrNoAudio
	}

	if !s.recog.Formats().Contains(buf.Format) {
		return nil, fmt.Errorf("%w: %s cannot decode %s", audio.ErrUnsupportedFormat, s.recog.Name(), buf.Format)
	}

	start := time.Now()
	tr, err := s.recog.Recognize(ctx, buf, stt.Options{Language: language})
	if err != nil {
		if errors.Is(err, stt.ErrUnintelligible) {
			slog.Info("speech not understood", "engine", s.recog.Name(), "format", buf.Format)
		}
		return nil, err
	}
	slog.Info("speech recognized",
		"engine", s.recog.Name(),
		"format", buf.Format,
		"chars", len(tr.Text),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return tr, nil
}

// Record captures a clip from the microphone and recognizes it.
func (s *Service) Record(ctx context.Context, language string) (*stt.Transcript, error) {
	if s.mic == nil {
		return nil, ErrMicrophoneDisabled
	}
	buf, err := s.mic.Capture(ctx)
	if err != nil {
		if errors.Is(err, audio.ErrNoAudio) {
			return nil, err
		}
		return nil, &stt.ServiceError{Engine: "microphone", Err: err}
	}
	return s.Recognize(ctx, buf, language)
}

func (s *Service) MicrophoneEnabled() bool { return s.mic != nil }

func (s *Service) SynthesizerName() string { return s.synth.Name() }

func (s *Service) RecognizerName() string { return s.recog.Name() }

// UploadFormats narrows the configured upload formats to those recog can
// decode. Dropped formats are logged; an empty result is an error.
func UploadFormats(configured audio.Formats, recog stt.Provider) (audio.Formats, error) {
	kept, dropped := configured.Intersect(recog.Formats())
	if len(dropped) > 0 {
		slog.Warn("accepted formats not supported by recognizer",
			"engine", recog.Name(),
			"dropped", dropped.Label(),
			"kept", kept.Label(),
		)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: %s decodes none of %s (it takes %s)",
			audio.ErrUnsupportedFormat, recog.Name(), configured.Label(), recog.Formats().Label())
	}
	return kept, nil
}
