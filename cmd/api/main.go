package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/linguakit/internal/api"
	"github.com/nikhilbhutani/linguakit/internal/api/handlers"
	"github.com/nikhilbhutani/linguakit/internal/cache"
	"github.com/nikhilbhutani/linguakit/internal/config"
	"github.com/nikhilbhutani/linguakit/internal/llm"
	"github.com/nikhilbhutani/linguakit/internal/speech"
	"github.com/nikhilbhutani/linguakit/internal/speech/audio"
	"github.com/nikhilbhutani/linguakit/internal/speech/output"
	"github.com/nikhilbhutani/linguakit/internal/speech/stt"
	"github.com/nikhilbhutani/linguakit/internal/speech/tts"
	"github.com/nikhilbhutani/linguakit/internal/translate"
	"github.com/nikhilbhutani/linguakit/internal/translate/llmloader"
	"github.com/nikhilbhutani/linguakit/internal/translate/marian"
)

func main() {
	// .env is optional; the real environment wins
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	formats, err := audio.ParseFormats(cfg.STT.AcceptedFormat)
	if err != nil {
		slog.Error("invalid STT_ACCEPTED_FORMATS", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	checks := map[string]handlers.Pinger{}

	// Redis connection (optional)
	var results translate.ResultCache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		c := cache.NewCache(rdb, "linguakit:")
		if err := c.Ping(ctx); err != nil {
			slog.Warn("redis unavailable, running without translation cache", "error", err)
		} else {
			results = c
		}
		checks["redis"] = c
	}

	loader, naming, err := newLoader(cfg)
	if err != nil {
		slog.Error("failed to set up translation backend", "error", err)
		os.Exit(1)
	}
	translator, err := translate.NewService(loader, translate.Options{
		Naming:    naming,
		CacheSize: cfg.Translate.ModelCache,
		Results:   results,
		ResultTTL: cfg.Translate.ResultTTL,
	})
	if err != nil {
		slog.Error("failed to create translation service", "error", err)
		os.Exit(1)
	}

	synth, voice := newSynthesizer(cfg.TTS)
	recog := newRecognizer(cfg.STT)
	if closer, ok := recog.(interface{ Close() error }); ok {
		defer closer.Close()
	}
	if cfg.UploadEnabled() {
		formats, err = speech.UploadFormats(formats, recog)
		if err != nil {
			slog.Error("invalid STT_ACCEPTED_FORMATS for recognizer", "error", err)
			os.Exit(1)
		}
	}

	files := output.NewFileSink(cfg.TTS.OutputPath)
	defer files.Remove()
	var sink output.Sink = files
	if cfg.TTS.Output == "device" {
		sink = output.NewDeviceSink(files, cfg.TTS.PlaybackCmd)
	}

	var mic audio.Source
	if cfg.MicrophoneEnabled() {
		mic = audio.NewMicrophone(audio.MicrophoneConfig{
			Command:  cfg.STT.CaptureCommand,
			Duration: time.Duration(cfg.STT.CaptureSeconds) * time.Second,
		})
	}

	speechSvc := speech.NewService(synth, sink, recog, mic, speech.Defaults{
		Voice:  voice,
		Rate:   cfg.TTS.Rate,
		Volume: cfg.TTS.Volume,
	})

	slog.Info("services ready",
		"translate_backend", loader.Name(),
		"model_naming", naming.Organization+"/"+naming.Family,
		"tts", speechSvc.SynthesizerName(),
		"tts_output", cfg.TTS.Output,
		"stt", speechSvc.RecognizerName(),
		"stt_input", cfg.STT.Input,
		"accepted_formats", formats.Label(),
	)

	// Setup router
	router := api.NewRouter(cfg, api.Deps{
		Translator: translator,
		Speech:     speechSvc,
		Output:     files,
		Formats:    formats,
		Checks:     checks,
	})
	handler := router.Setup()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func newLoader(cfg *config.Config) (translate.Loader, translate.Naming, error) {
	switch cfg.Translate.Backend {
	case "marian":
		loader := marian.NewLoader(marian.Config{
			HubURL:       cfg.Translate.HubURL,
			InferenceURL: cfg.Translate.InferenceURL,
			Token:        cfg.Translate.HubToken,
			CacheDir:     cfg.Translate.CacheDir,
		})
		return loader, translate.Naming{
			Organization: cfg.Translate.Organization,
			Family:       cfg.Translate.Family,
		}, nil
	case "llm":
		gw := llm.NewGateway(cfg.LLM)
		slog.Info("llm gateway ready", "models", gw.ListModels())
		return llmloader.NewLoader(gw), translate.Naming{
			Organization: cfg.LLM.DefaultProvider,
			Family:       cfg.LLM.DefaultModel,
		}, nil
	}
	return nil, translate.Naming{}, fmt.Errorf("unknown translation backend %q", cfg.Translate.Backend)
}

// newSynthesizer returns the TTS provider and its default voice.
func newSynthesizer(cfg config.TTSConfig) (tts.Provider, string) {
	switch cfg.Backend {
	case "piper":
		return tts.NewPiper(tts.PiperConfig{BinPath: cfg.LocalBinPath, ModelPath: cfg.LocalModel}), ""
	case "openai":
		return tts.NewOpenAITTS(tts.OpenAIConfig{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Voice:   cfg.OpenAIVoice,
		}), cfg.OpenAIVoice
	default:
		return tts.NewEspeak(tts.EspeakConfig{BinPath: cfg.EspeakBinPath, Voice: cfg.EspeakVoice}), cfg.EspeakVoice
	}
}

func newRecognizer(cfg config.STTConfig) stt.Provider {
	switch cfg.Backend {
	case "openai":
		return stt.NewOpenAISTT(stt.OpenAIConfig{
			APIKey:  cfg.OpenAIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		})
	case "google":
		return stt.NewGoogleSTT(stt.GoogleConfig{CredentialsFile: cfg.GoogleCredFile})
	default:
		return stt.NewLocalSTT(stt.LocalConfig{BaseURL: cfg.LocalBaseURL, Convert: cfg.LocalConvert})
	}
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
