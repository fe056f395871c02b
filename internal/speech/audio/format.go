package audio

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// Format is a container/codec name as used in file extensions.
type Format string

const (
	WAV  Format = "wav"
	MP3  Format = "mp3"
	AAC  Format = "aac"
	OGG  Format = "ogg"
	WebM Format = "webm"
	FLAC Format = "flac"
	M4A  Format = "m4a"
)

var contentTypes = map[Format]string{
	WAV:  "audio/wav",
	MP3:  "audio/mpeg",
	AAC:  "audio/aac",
	OGG:  "audio/ogg",
	WebM: "audio/webm",
	FLAC: "audio/flac",
	M4A:  "audio/mp4",
}

var contentTypeAliases = map[string]Format{
	"audio/wav":      WAV,
	"audio/x-wav":    WAV,
	"audio/wave":     WAV,
	"audio/vnd.wave": WAV,
	"audio/mpeg":     MP3,
	"audio/mp3":      MP3,
	"audio/aac":      AAC,
	"audio/x-aac":    AAC,
	"audio/ogg":      OGG,
	"audio/opus":     OGG,
	"audio/webm":     WebM,
	"video/webm":     WebM,
	"audio/flac":     FLAC,
	"audio/x-flac":   FLAC,
	"audio/mp4":      M4A,
	"audio/x-m4a":    M4A,
}

func (f Format) ContentType() string {
	if ct, ok := contentTypes[f]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string { return "." + string(f) }

// FormatFromContentType maps a MIME type (parameters ignored) to a Format.
func FormatFromContentType(ct string) (Format, bool) {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(ct))
	}
	f, ok := contentTypeAliases[mediaType]
	return f, ok
}

// FormatFromFilename maps a file extension to a Format.
func FormatFromFilename(name string) (Format, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	f := Format(ext)
	_, ok := contentTypes[f]
	return f, ok
}

// Formats is the set of formats accepted for recognition. The UI label and
// the upload filter are both derived from it.
type Formats []Format

func ParseFormats(names []string) (Formats, error) {
	out := make(Formats, 0, len(names))
	for _, n := range names {
		f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(n), ".")))
		if _, ok := contentTypes[f]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, n)
		}
		out = append(out, f)
	}
	return out, nil
}

// Intersect splits fs into the formats other also lists and the rest,
// keeping the order of fs.
func (fs Formats) Intersect(other Formats) (kept, dropped Formats) {
	for _, f := range fs {
		if other.Contains(f) {
			kept = append(kept, f)
		} else {
			dropped = append(dropped, f)
		}
	}
	return kept, dropped
}

func (fs Formats) Contains(f Format) bool {
	for _, x := range fs {
		if x == f {
			return true
		}
	}
	return false
}

// Label renders the formats for humans, e.g. "WAV, MP3".
func (fs Formats) Label() string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = strings.ToUpper(string(f))
	}
	return strings.Join(parts, ", ")
}

// AcceptAttr renders the formats for an <input accept> attribute.
func (fs Formats) AcceptAttr() string {
	parts := make([]string, 0, len(fs)*2)
	for _, f := range fs {
		parts = append(parts, f.Ext(), f.ContentType())
	}
	return strings.Join(parts, ",")
}

// Detect picks the format from the filename first, then the content type.
// The result must be one of fs.
func (fs Formats) Detect(filename, contentType string) (Format, error) {
	f, ok := FormatFromFilename(filename)
	if !ok {
		f, ok = FormatFromContentType(contentType)
	}
	if !ok || !fs.Contains(f) {
		return "", fmt.Errorf("%w: %s (accepted: %s)", ErrUnsupportedFormat, describe(filename, contentType), fs.Label())
	}
	return f, nil
}

func describe(filename, contentType string) string {
	switch {
	case filename != "" && contentType != "":
		return fmt.Sprintf("%s (%s)", filename, contentType)
	case filename != "":
		return filename
	case contentType != "":
		return contentType
	}
	return "unknown input"
}
