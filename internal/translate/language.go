package translate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedLanguage is returned for codes outside the supported set.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// LanguageCode is a two-letter ISO 639-1 code.
type LanguageCode string

const (
	English LanguageCode = "en"
	Spanish LanguageCode = "es"
	French  LanguageCode = "fr"
	German  LanguageCode = "de"
	Italian LanguageCode = "it"
)

var supported = []LanguageCode{English, Spanish, French, German, Italian}

var languageNames = map[LanguageCode]string{
	English: "English",
	Spanish: "Spanish",
	French:  "French",
	German:  "German",
	Italian: "Italian",
}

// Languages returns the supported codes in display order.
func Languages() []LanguageCode {
	out := make([]LanguageCode, len(supported))
	copy(out, supported)
	return out
}

// ParseLanguage normalises s and checks it against the supported set.
func ParseLanguage(s string) (LanguageCode, error) {
	code := LanguageCode(strings.ToLower(strings.TrimSpace(s)))
	if !code.Supported() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, s)
	}
	return code, nil
}

func (c LanguageCode) Supported() bool {
	_, ok := languageNames[c]
	return ok
}

// Name returns the English display name, or the code itself when unknown.
func (c LanguageCode) Name() string {
	if n, ok := languageNames[c]; ok {
		return n
	}
	return string(c)
}

// LanguagePair selects one pretrained translation direction.
// Identity pairs are representable; whether they load depends on the loader.
type LanguagePair struct {
	Source LanguageCode `json:"source"`
	Target LanguageCode `json:"target"`
}

func (p LanguagePair) String() string {
	return string(p.Source) + "-" + string(p.Target)
}

func (p LanguagePair) Identity() bool {
	return p.Source == p.Target
}

// Validate checks both sides against the supported set.
func (p LanguagePair) Validate() error {
	if !p.Source.Supported() {
		return fmt.Errorf("%w: source %q", ErrUnsupportedLanguage, p.Source)
	}
	if !p.Target.Supported() {
		return fmt.Errorf("%w: target %q", ErrUnsupportedLanguage, p.Target)
	}
	return nil
}
