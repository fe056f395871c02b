package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Translate TranslateConfig
	LLM       LLMConfig
	STT       STTConfig
	TTS       TTSConfig
}

type ServerConfig struct {
	Host      string
	Port      int
	LogLevel  string
	RateLimit int // requests per minute per IP, 0 disables
	Origins   []string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type TranslateConfig struct {
	Backend      string // "marian" or "llm"
	Organization string // default: "Helsinki-NLP"
	Family       string // default: "opus-mt"
	HubURL       string // default: "https://huggingface.co"
	InferenceURL string // default: "https://api-inference.huggingface.co"
	HubToken     string
	CacheDir     string
	ModelCache   int // resolved handles kept in memory, 0 disables
	ResultTTL    time.Duration
}

type LLMConfig struct {
	OpenAIKey        string
	AnthropicKey     string
	OllamaURL        string
	DefaultProvider  string
	DefaultModel     string
	FallbackProvider string
	MaxRetries       int
}

type STTConfig struct {
	Backend        string // "openai", "local" or "google"
	Input          string // "upload", "microphone" or "both"
	OpenAIKey      string
	OpenAIBaseURL  string
	OpenAIModel    string
	LocalBaseURL   string // default: "http://localhost:8178"
	LocalConvert   bool   // whisper.cpp server started with --convert
	GoogleCredFile string
	AcceptedFormat []string
	CaptureSeconds int
	CaptureCommand string // default: "arecord"
	MaxUploadBytes int64
}

type TTSConfig struct {
	Backend       string // "espeak", "piper" or "openai"
	Output        string // "file" or "device"
	OutputPath    string
	PlaybackCmd   string  // default: "aplay"
	Rate          int     // words per minute for espeak
	Volume        float64 // 0..1
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
	OpenAIVoice   string
	EspeakBinPath string // default: "espeak-ng"
	EspeakVoice   string
	LocalBinPath  string // default: "piper"
	LocalModel    string // required when backend=piper
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	rateLimit, err := getEnvInt("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	modelCache, err := getEnvInt("TRANSLATE_MODEL_CACHE_SIZE", 4)
	if err != nil {
		return nil, fmt.Errorf("invalid TRANSLATE_MODEL_CACHE_SIZE: %w", err)
	}

	resultTTL, err := getEnvDuration("TRANSLATE_RESULT_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid TRANSLATE_RESULT_TTL: %w", err)
	}

	maxRetries, err := getEnvInt("LLM_MAX_RETRIES", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_RETRIES: %w", err)
	}

	captureSeconds, err := getEnvInt("STT_CAPTURE_SECONDS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid STT_CAPTURE_SECONDS: %w", err)
	}

	localConvert, err := getEnvBool("STT_LOCAL_CONVERT", false)
	if err != nil {
		return nil, fmt.Errorf("invalid STT_LOCAL_CONVERT: %w", err)
	}

	maxUpload, err := getEnvInt("STT_MAX_UPLOAD_MB", 25)
	if err != nil {
		return nil, fmt.Errorf("invalid STT_MAX_UPLOAD_MB: %w", err)
	}

	rate, err := getEnvInt("TTS_RATE", 150)
	if err != nil {
		return nil, fmt.Errorf("invalid TTS_RATE: %w", err)
	}

	volume, err := getEnvFloat("TTS_VOLUME", 0.9)
	if err != nil {
		return nil, fmt.Errorf("invalid TTS_VOLUME: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:      getEnv("SERVER_HOST", "0.0.0.0"),
			Port:      port,
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			RateLimit: rateLimit,
			Origins:   getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Translate: TranslateConfig{
			Backend:      getEnv("TRANSLATE_BACKEND", "marian"),
			Organization: getEnv("TRANSLATE_MODEL_ORG", "Helsinki-NLP"),
			Family:       getEnv("TRANSLATE_MODEL_FAMILY", "opus-mt"),
			HubURL:       getEnv("TRANSLATE_HUB_URL", "https://huggingface.co"),
			InferenceURL: getEnv("TRANSLATE_INFERENCE_URL", "https://api-inference.huggingface.co"),
			HubToken:     getEnv("HF_TOKEN", ""),
			CacheDir:     getEnv("TRANSLATE_CACHE_DIR", defaultCacheDir()),
			ModelCache:   modelCache,
			ResultTTL:    resultTTL,
		},
		LLM: LLMConfig{
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			OllamaURL:        getEnv("OLLAMA_URL", ""),
			DefaultProvider:  getEnv("LLM_DEFAULT_PROVIDER", "openai"),
			DefaultModel:     getEnv("LLM_DEFAULT_MODEL", "gpt-4o-mini"),
			FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", ""),
			MaxRetries:       maxRetries,
		},
		STT: STTConfig{
			Backend:        getEnv("STT_BACKEND", "local"),
			Input:          getEnv("STT_INPUT", "upload"),
			OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:  getEnv("STT_OPENAI_BASE_URL", ""),
			OpenAIModel:    getEnv("STT_OPENAI_MODEL", ""),
			LocalBaseURL:   getEnv("STT_LOCAL_BASE_URL", "http://localhost:8178"),
			LocalConvert:   localConvert,
			GoogleCredFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
			AcceptedFormat: getEnvList("STT_ACCEPTED_FORMATS", []string{"wav", "mp3", "aac", "ogg", "webm", "flac"}),
			CaptureSeconds: captureSeconds,
			CaptureCommand: getEnv("STT_CAPTURE_CMD", "arecord"),
			MaxUploadBytes: int64(maxUpload) << 20,
		},
		TTS: TTSConfig{
			Backend:       getEnv("TTS_BACKEND", "espeak"),
			Output:        getEnv("TTS_OUTPUT", "file"),
			OutputPath:    getEnv("TTS_OUTPUT_PATH", filepath.Join(os.TempDir(), "linguakit-speech")),
			PlaybackCmd:   getEnv("TTS_PLAYBACK_CMD", "aplay"),
			Rate:          rate,
			Volume:        volume,
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("TTS_OPENAI_BASE_URL", ""),
			OpenAIModel:   getEnv("TTS_OPENAI_MODEL", ""),
			OpenAIVoice:   getEnv("TTS_OPENAI_VOICE", "alloy"),
			EspeakBinPath: getEnv("TTS_ESPEAK_BIN", "espeak-ng"),
			EspeakVoice:   getEnv("TTS_ESPEAK_VOICE", "en"),
			LocalBinPath:  getEnv("TTS_LOCAL_PIPER_BIN", "piper"),
			LocalModel:    getEnv("TTS_LOCAL_PIPER_MODEL", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// MicrophoneEnabled reports whether the server-side capture path is on.
func (c *Config) MicrophoneEnabled() bool {
	return c.STT.Input == "microphone" || c.STT.Input == "both"
}

// UploadEnabled reports whether recognition accepts uploaded files.
func (c *Config) UploadEnabled() bool {
	return c.STT.Input == "upload" || c.STT.Input == "both"
}

func (c *Config) Validate() error {
	var problems []string

	switch c.Translate.Backend {
	case "marian":
		if c.Translate.Organization == "" || c.Translate.Family == "" {
			problems = append(problems, "TRANSLATE_MODEL_ORG and TRANSLATE_MODEL_FAMILY must be set")
		}
	case "llm":
		if c.LLM.OpenAIKey == "" && c.LLM.AnthropicKey == "" && c.LLM.OllamaURL == "" {
			problems = append(problems, "TRANSLATE_BACKEND=llm needs OPENAI_API_KEY, ANTHROPIC_API_KEY or OLLAMA_URL")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown TRANSLATE_BACKEND %q", c.Translate.Backend))
	}
	if c.Translate.ModelCache < 0 {
		problems = append(problems, "TRANSLATE_MODEL_CACHE_SIZE must not be negative")
	}

	switch c.STT.Backend {
	case "openai":
		if c.STT.OpenAIKey == "" {
			problems = append(problems, "STT_BACKEND=openai needs OPENAI_API_KEY")
		}
	case "local", "google":
	default:
		problems = append(problems, fmt.Sprintf("unknown STT_BACKEND %q", c.STT.Backend))
	}
	switch c.STT.Input {
	case "upload", "microphone", "both":
	default:
		problems = append(problems, fmt.Sprintf("unknown STT_INPUT %q", c.STT.Input))
	}
	if len(c.STT.AcceptedFormat) == 0 {
		problems = append(problems, "STT_ACCEPTED_FORMATS must list at least one format")
	}
	if c.STT.CaptureSeconds <= 0 {
		problems = append(problems, "STT_CAPTURE_SECONDS must be positive")
	}

	switch c.TTS.Backend {
	case "espeak":
	case "piper":
		if c.TTS.LocalModel == "" {
			problems = append(problems, "TTS_BACKEND=piper needs TTS_LOCAL_PIPER_MODEL")
		}
	case "openai":
		if c.TTS.OpenAIKey == "" {
			problems = append(problems, "TTS_BACKEND=openai needs OPENAI_API_KEY")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown TTS_BACKEND %q", c.TTS.Backend))
	}
	switch c.TTS.Output {
	case "file", "device":
	default:
		problems = append(problems, fmt.Sprintf("unknown TTS_OUTPUT %q", c.TTS.Output))
	}
	if c.TTS.Volume < 0 || c.TTS.Volume > 1 {
		problems = append(problems, "TTS_VOLUME must be between 0 and 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "linguakit", "models")
	}
	return filepath.Join(os.TempDir(), "linguakit", "models")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
