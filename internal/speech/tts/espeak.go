package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// EspeakConfig holds configuration for the offline espeak-ng backend.
type EspeakConfig struct {
	BinPath string // default: "espeak-ng"
	Voice   string // default: "en"
}

// Espeak synthesizes speech with a local espeak-ng binary, writing WAV to stdout.
type Espeak struct {
	cfg EspeakConfig
}

func NewEspeak(cfg EspeakConfig) *Espeak {
	if cfg.BinPath == "" {
		cfg.BinPath = "espeak-ng"
	}
	if cfg.Voice == "" {
		cfg.Voice = "en"
	}
	return &Espeak{cfg: cfg}
}

func (e *Espeak) Name() string { return "espeak" }

func (e *Espeak) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	cmd := exec.CommandContext(ctx, e.cfg.BinPath, e.args(req)...)
	cmd.Stdin = strings.NewReader(req.Input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("espeak failed: %w (stderr: %s)", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, ErrEmptyAudio
	}

	return &SynthesisResult{
		Audio:       stdout.Bytes(),
		ContentType: "audio/wav",
	}, nil
}

// args maps rate in words per minute to -s and volume 0..1 to the
// amplitude scale -a, where 100 is espeak's default.
func (e *Espeak) args(req SynthesisRequest) []string {
	voice := req.Voice
	if voice == "" {
		voice = e.cfg.Voice
	}
	args := []string{"-v", voice, "--stdin", "--stdout"}
	if req.Rate > 0 {
		args = append(args, "-s", strconv.Itoa(req.Rate))
	}
	if req.Volume > 0 {
		args = append(args, "-a", strconv.Itoa(int(req.Volume*100+0.5)))
	}
	return args
}
