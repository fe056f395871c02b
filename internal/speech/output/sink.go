// Package output delivers synthesized speech: a single transient audio file
// that is overwritten on every call, optionally played on a local device.
package output

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/linguakit/internal/speech/audio"
	"github.com/nikhilbhutani/linguakit/internal/speech/tts"
)

var ErrNoArtifact = errors.New("no speech has been synthesized yet")

// Artifact describes the current output file.
type Artifact struct {
	Path        string    `json:"-"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"bytes"`
	Version     string    `json:"version"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Sink receives synthesized audio.
type Sink interface {
	Deliver(ctx context.Context, res *tts.SynthesisResult) (*Artifact, error)
}

// FileSink keeps exactly one output file at basePath plus an extension
// derived from the content type.
type FileSink struct {
	basePath string

	mu      sync.RWMutex
	current *Artifact
}

func NewFileSink(basePath string) *FileSink {
	return &FileSink{basePath: basePath}
}

func (s *FileSink) Deliver(_ context.Context, res *tts.SynthesisResult) (*Artifact, error) {
	if res == nil || len(res.Audio) == 0 {
		return nil, tts.ErrEmptyAudio
	}

	path := s.basePath + extension(res.ContentType)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	// readers streaming the previous file keep their open inode
	tmp, err := writeTemp(filepath.Dir(path), res.Audio)
	if err != nil {
		return nil, fmt.Errorf("write speech output: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("replace speech output: %w", err)
	}
	if s.current != nil && s.current.Path != path {
		_ = os.Remove(s.current.Path)
	}

	s.current = &Artifact{
		Path:        path,
		ContentType: res.ContentType,
		Size:        len(res.Audio),
		Version:     uuid.NewString(),
		UpdatedAt:   time.Now().UTC(),
	}
	a := *s.current
	return &a, nil
}

// Current returns the latest artifact or ErrNoArtifact.
func (s *FileSink) Current() (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, ErrNoArtifact
	}
	a := *s.current
	return &a, nil
}

// ServeHTTP streams the current artifact, supporting range requests for
// embedded players.
func (s *FileSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a, f, err := s.open()
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("ETag", `"`+a.Version+`"`)
	http.ServeContent(w, r, filepath.Base(a.Path), a.UpdatedAt, f)
}

// open pins the current artifact and its file. The lock is not held while
// the caller streams, so slow clients never delay Deliver.
func (s *FileSink) open() (Artifact, *os.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return Artifact{}, nil, ErrNoArtifact
	}
	f, err := os.Open(s.current.Path)
	if err != nil {
		return Artifact{}, nil, errors.New("speech output unavailable")
	}
	return *s.current, f, nil
}

// Remove deletes the output file, used on shutdown.
func (s *FileSink) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	err := os.Remove(s.current.Path)
	s.current = nil
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func writeTemp(dir string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, ".speech-*")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func extension(contentType string) string {
	if f, ok := audio.FormatFromContentType(contentType); ok {
		return f.Ext()
	}
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

// DeviceSink writes the artifact through a FileSink and then plays it
// through a local player command such as aplay or ffplay.
type DeviceSink struct {
	*FileSink
	player string
	args   []string
}

func NewDeviceSink(files *FileSink, player string, args ...string) *DeviceSink {
	if player == "" {
		player = "aplay"
	}
	return &DeviceSink{FileSink: files, player: player, args: args}
}

// Deliver blocks until playback finishes.
func (d *DeviceSink) Deliver(ctx context.Context, res *tts.SynthesisResult) (*Artifact, error) {
	a, err := d.FileSink.Deliver(ctx, res)
	if err != nil {
		return nil, err
	}

	args := append(append([]string{}, d.args...), a.Path)
	out, err := exec.CommandContext(ctx, d.player, args...).CombinedOutput()
	if err != nil {
		return a, fmt.Errorf("playback with %s failed: %w (output: %s)", d.player, err, string(out))
	}
	return a, nil
}
