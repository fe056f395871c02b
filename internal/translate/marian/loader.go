// Package marian loads MarianMT translation models published on a Hugging
// Face compatible hub and runs them through an inference endpoint.
package marian

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nikhilbhutani/linguakit/internal/translate"
)

var (
	ErrModelNotFound = errors.New("model not found in repository")
	ErrIncompatible  = errors.New("incompatible model architecture")
	ErrCorruptCache  = errors.New("corrupt cached model metadata")
)

const defaultMaxPositions = 512

// Config holds the repository and inference endpoints.
type Config struct {
	HubURL       string // default: "https://huggingface.co"
	InferenceURL string // default: "https://api-inference.huggingface.co"
	Token        string
	CacheDir     string // empty disables the on-disk metadata cache
	HTTPClient   *http.Client
}

// Loader resolves model metadata from the local cache or the hub.
type Loader struct {
	cfg        Config
	httpClient *http.Client
}

func NewLoader(cfg Config) *Loader {
	if cfg.HubURL == "" {
		cfg.HubURL = "https://huggingface.co"
	}
	if cfg.InferenceURL == "" {
		cfg.InferenceURL = "https://api-inference.huggingface.co"
	}
	cfg.HubURL = strings.TrimRight(cfg.HubURL, "/")
	cfg.InferenceURL = strings.TrimRight(cfg.InferenceURL, "/")

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Loader{cfg: cfg, httpClient: client}
}

func (l *Loader) Name() string { return "marian" }

type modelConfig struct {
	ModelType             string `json:"model_type"`
	MaxPositionEmbeddings int    `json:"max_position_embeddings"`
	MaxLength             int    `json:"max_length"`
}

// Load fetches config.json and special_tokens_map.json for ref and returns
// an engine bound to the inference endpoint.
func (l *Loader) Load(ctx context.Context, ref translate.ModelRef) (translate.Engine, error) {
	if ref.Pair.Identity() {
		return nil, &translate.ModelUnavailableError{
			Pair:    ref.Pair,
			ModelID: ref.ID,
			Err:     fmt.Errorf("%w: %s does not translate a language into itself", ErrModelNotFound, ref.ID),
		}
	}

	raw, err := l.file(ctx, ref.ID, "config.json", true)
	if err != nil {
		return nil, err
	}
	var mc modelConfig
	if err := json.Unmarshal(raw, &mc); err != nil {
		l.evict(ref.ID, "config.json")
		return nil, fmt.Errorf("%w: config.json: %v", ErrCorruptCache, err)
	}
	if mc.ModelType != "marian" {
		return nil, fmt.Errorf("%w: %s has model_type %q", ErrIncompatible, ref.ID, mc.ModelType)
	}

	var special []string
	raw, err = l.file(ctx, ref.ID, "special_tokens_map.json", false)
	if err != nil {
		return nil, err
	}
	if raw != nil {
		special, err = parseSpecialTokens(raw)
		if err != nil {
			l.evict(ref.ID, "special_tokens_map.json")
			return nil, fmt.Errorf("%w: special_tokens_map.json: %v", ErrCorruptCache, err)
		}
	}

	maxPositions := mc.MaxPositionEmbeddings
	if maxPositions <= 0 {
		maxPositions = defaultMaxPositions
	}

	return &engine{
		id:           ref.ID,
		endpoint:     l.cfg.InferenceURL + "/models/" + ref.ID,
		token:        l.cfg.Token,
		maxPositions: maxPositions,
		maxLength:    mc.MaxLength,
		special:      special,
		httpClient:   l.httpClient,
	}, nil
}

// file returns a metadata file from the cache directory, fetching and
// caching it on first use. Optional files that the hub lacks yield nil.
func (l *Loader) file(ctx context.Context, id, name string, required bool) ([]byte, error) {
	path := l.cachePath(id, name)
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			return data, nil
		}
	}

	url := fmt.Sprintf("%s/%s/resolve/main/%s", l.cfg.HubURL, id, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if l.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+l.cfg.Token)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s/%s: %w", id, name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnauthorized:
		if !required {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, id)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("fetch %s/%s failed (status %d): %s", id, name, resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", id, name, err)
	}
	if path != "" {
		if err := writeAtomic(path, data); err != nil {
			return nil, fmt.Errorf("cache %s/%s: %w", id, name, err)
		}
	}
	return data, nil
}

func (l *Loader) cachePath(id, name string) string {
	if l.cfg.CacheDir == "" {
		return ""
	}
	return filepath.Join(l.cfg.CacheDir, strings.ReplaceAll(id, "/", "--"), name)
}

func (l *Loader) evict(id, name string) {
	if path := l.cachePath(id, name); path != "" {
		_ = os.Remove(path)
	}
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// parseSpecialTokens accepts both plain string values and AddedToken objects.
func parseSpecialTokens(raw []byte) ([]string, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}

	var tokens []string
	for _, v := range m {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			tokens = append(tokens, s)
			continue
		}
		var obj struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(v, &obj); err == nil && obj.Content != "" {
			tokens = append(tokens, obj.Content)
			continue
		}
		var list []string
		if err := json.Unmarshal(v, &list); err == nil {
			tokens = append(tokens, list...)
		}
	}
	return tokens, nil
}

type engine struct {
	id           string
	endpoint     string
	token        string
	maxPositions int
	maxLength    int
	special      []string
	httpClient   *http.Client
}

func (e *engine) MaxInputTokens() int { return e.maxPositions }

func (e *engine) ControlTokens() []string { return e.special }

type inferenceRequest struct {
	Inputs     string              `json:"inputs"`
	Parameters inferenceParameters `json:"parameters"`
	Options    inferenceOptions    `json:"options"`
}

type inferenceParameters struct {
	DoSample  bool `json:"do_sample"`
	MaxLength int  `json:"max_length,omitempty"`
}

type inferenceOptions struct {
	WaitForModel bool `json:"wait_for_model"`
	UseCache     bool `json:"use_cache"`
}

// Generate sends one greedy (non-sampling) generation request.
func (e *engine) Generate(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(inferenceRequest{
		Inputs:     text,
		Parameters: inferenceParameters{DoSample: false, MaxLength: e.maxLength},
		Options:    inferenceOptions{WaitForModel: true, UseCache: true},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("inference failed (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return decodeOutput(respBody)
}

func decodeOutput(body []byte) (string, error) {
	var outputs []struct {
		TranslationText string `json:"translation_text"`
		GeneratedText   string `json:"generated_text"`
	}
	if err := json.Unmarshal(body, &outputs); err != nil {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return "", fmt.Errorf("inference error: %s", apiErr.Error)
		}
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(outputs) == 0 {
		return "", errors.New("inference returned no outputs")
	}
	if outputs[0].TranslationText != "" {
		return outputs[0].TranslationText, nil
	}
	return outputs[0].GeneratedText, nil
}
