// Package audio holds recorded audio in transit between an input source and
// a speech-to-text engine.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"
)

var (
	ErrNoAudio           = errors.New("no audio provided")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrTooLarge          = errors.New("audio exceeds size limit")
)

// Buffer is audio owned for the duration of one recognition call.
type Buffer struct {
	Data     []byte
	Filename string
	Format   Format
}

func (b *Buffer) ContentType() string { return b.Format.ContentType() }

func (b *Buffer) Reader() io.Reader { return bytes.NewReader(b.Data) }

// Read loads an uploaded file into a Buffer. A zero maxBytes means no limit.
func Read(r io.Reader, filename, contentType string, formats Formats, maxBytes int64) (*Buffer, error) {
	if r == nil {
		return nil, ErrNoAudio
	}
	format, err := formats.Detect(filename, contentType)
	if err != nil {
		return nil, err
	}

	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNoAudio
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, maxBytes)
	}
	if filename == "" {
		filename = "upload" + format.Ext()
	}
	return &Buffer{Data: data, Filename: filename, Format: format}, nil
}

// Source produces audio on demand, e.g. from a microphone.
type Source interface {
	Capture(ctx context.Context) (*Buffer, error)
}

// MicrophoneConfig configures capture through an ALSA style recorder.
type MicrophoneConfig struct {
	Command    string        // default: "arecord"
	Duration   time.Duration // default: 5s
	SampleRate int           // default: 16000
}

// Microphone records a fixed-length mono WAV clip from the default input device.
type Microphone struct {
	cfg MicrophoneConfig
}

func NewMicrophone(cfg MicrophoneConfig) *Microphone {
	if cfg.Command == "" {
		cfg.Command = "arecord"
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 5 * time.Second
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	return &Microphone{cfg: cfg}
}

func (m *Microphone) Capture(ctx context.Context) (*Buffer, error) {
	seconds := int(m.cfg.Duration.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Duration+10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.cfg.Command,
		"-q",
		"-d", strconv.Itoa(seconds),
		"-f", "S16_LE",
		"-r", strconv.Itoa(m.cfg.SampleRate),
		"-c", "1",
		"-t", "wav",
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("capture with %s failed: %w (stderr: %s)", m.cfg.Command, err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, ErrNoAudio
	}
	return &Buffer{
		Data:     stdout.Bytes(),
		Filename: "recording.wav",
		Format:   WAV,
	}, nil
}
