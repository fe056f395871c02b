package stt

import (
	"context"
	"fmt"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"

	"github.com/nikhilbhutani/linguakit/internal/speech/audio"
)

// GoogleConfig holds configuration for the Google Cloud Speech backend.
type GoogleConfig struct {
	CredentialsFile string // empty uses application default credentials
}

// GoogleSTT recognises short clips with the synchronous Recognize call.
type GoogleSTT struct {
	cfg GoogleConfig

	mu     sync.Mutex
	client *speech.Client
}

func NewGoogleSTT(cfg GoogleConfig) *GoogleSTT {
	return &GoogleSTT{cfg: cfg}
}

func (g *GoogleSTT) Name() string { return "google-speech" }

func (g *GoogleSTT) speechClient(ctx context.Context) (*speech.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}

	var opts []option.ClientOption
	if g.cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(g.cfg.CredentialsFile))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	g.client = client
	return client, nil
}

func (g *GoogleSTT) Recognize(ctx context.Context, buf *audio.Buffer, opts Options) (*Transcript, error) {
	if buf == nil || len(buf.Data) == 0 {
		return nil, audio.ErrNoAudio
	}

	enc, err := encodingFor(buf.Format)
	if err != nil {
		return nil, err
	}

	client, err := g.speechClient(ctx)
	if err != nil {
		return nil, &ServiceError{Engine: g.Name(), Err: err}
	}

	cfg := &speechpb.RecognitionConfig{
		Encoding:                   enc.encoding,
		SampleRateHertz:            enc.sampleRate,
		LanguageCode:               languageTag(opts.Language),
		EnableAutomaticPunctuation: true,
	}
	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: cfg,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: buf.Data},
		},
	})
	if err != nil {
		return nil, &ServiceError{Engine: g.Name(), Err: err}
	}

	var parts []string
	for _, result := range resp.GetResults() {
		if alts := result.GetAlternatives(); len(alts) > 0 {
			parts = append(parts, strings.TrimSpace(alts[0].GetTranscript()))
		}
	}

	var duration float64
	if billed := resp.GetTotalBilledTime(); billed != nil {
		duration = billed.AsDuration().Seconds()
	}
	return finish(strings.Join(parts, " "), cfg.LanguageCode, duration)
}

func (g *GoogleSTT) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		return nil
	}
	err := g.client.Close()
	g.client = nil
	return err
}

type googleEncoding struct {
	encoding   speechpb.RecognitionConfig_AudioEncoding
	sampleRate int32
}

// googleEncodings maps containers to the API enum. WAV and FLAC carry their
// sample rate in the header; Opus streams are recorded at 48 kHz by browsers.
var googleEncodings = map[audio.Format]googleEncoding{
	audio.WAV:  {speechpb.RecognitionConfig_LINEAR16, 0},
	audio.FLAC: {speechpb.RecognitionConfig_FLAC, 0},
	audio.OGG:  {speechpb.RecognitionConfig_OGG_OPUS, 48000},
	audio.WebM: {speechpb.RecognitionConfig_WEBM_OPUS, 48000},
}

func (g *GoogleSTT) Formats() audio.Formats {
	return audio.Formats{audio.WAV, audio.FLAC, audio.OGG, audio.WebM}
}

func encodingFor(f audio.Format) (googleEncoding, error) {
	enc, ok := googleEncodings[f]
	if !ok {
		return googleEncoding{}, fmt.Errorf("%w: google speech cannot decode %s", audio.ErrUnsupportedFormat, f)
	}
	return enc, nil
}

var languageTags = map[string]string{
	"en": "en-US",
	"es": "es-ES",
	"fr": "fr-FR",
	"de": "de-DE",
	"it": "it-IT",
}

func languageTag(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return "en-US"
	}
	if tag, ok := languageTags[code]; ok {
		return tag
	}
	return code
}
