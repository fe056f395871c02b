package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/nikhilbhutani/linguakit/internal/speech"
	"github.com/nikhilbhutani/linguakit/internal/speech/audio"
	"github.com/nikhilbhutani/linguakit/internal/speech/stt"
	"github.com/nikhilbhutani/linguakit/internal/translate"
)

// problem is a service error rendered for users: an HTTP status, a stable
// code for API clients and a message shown in place of the result.
type problem struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
	// Warning marks input problems that the UI shows as warnings.
	Warning bool `json:"-"`
}

const (
	msgEmptyTranslate = "Please enter text to translate."
	msgEmptySpeak     = "Please enter text to speak."
)

func translateProblem(pair translate.LanguagePair, err error) problem {
	var mu *translate.ModelUnavailableError
	switch {
	case errors.As(err, &mu):
		if errors.Is(err, translate.ErrUnsupportedLanguage) {
			return problem{
				Status:  http.StatusBadRequest,
				Code:    "unsupported_language",
				Message: fmt.Sprintf("Translation from %q to %q is not supported.", mu.Pair.Source, mu.Pair.Target),
				Warning: true,
			}
		}
		return problem{
			Status:  http.StatusNotFound,
			Code:    "model_unavailable",
			Message: fmt.Sprintf("No translation model is available for %s to %s (%s).", mu.Pair.Source.Name(), mu.Pair.Target.Name(), mu.ModelID),
		}
	case errors.Is(err, translate.ErrEmptyInput):
		return problem{Status: http.StatusBadRequest, Code: "empty_text", Message: msgEmptyTranslate, Warning: true}
	case errors.Is(err, translate.ErrInputTooLong):
		return problem{Status: http.StatusRequestEntityTooLarge, Code: "text_too_long", Message: fmt.Sprintf("The text is too long for the %s model. Please shorten it.", pair)}
	case errors.Is(err, translate.ErrInferenceFailure):
		return problem{Status: http.StatusBadGateway, Code: "inference_failure", Message: fmt.Sprintf("Translation from %s to %s failed. Please try again.", pair.Source.Name(), pair.Target.Name())}
	}
	return problem{Status: http.StatusInternalServerError, Code: "internal", Message: fmt.Sprintf("Translation of %s failed.", pair)}
}

func speakProblem(err error) problem {
	if errors.Is(err, speech.ErrEmptyText) {
		return problem{Status: http.StatusBadRequest, Code: "empty_text", Message: msgEmptySpeak, Warning: true}
	}
	return problem{Status: http.StatusBadGateway, Code: "synthesis_failure", Message: "Speech synthesis failed: " + err.Error()}
}

func recognizeProblem(err error) problem {
	var se *stt.ServiceError
	switch {
	case errors.Is(err, audio.ErrNoAudio):
		return problem{Status: http.StatusBadRequest, Code: "no_audio", Message: "No audio provided. Please upload or record a clip.", Warning: true}
	case errors.Is(err, audio.ErrUnsupportedFormat):
		return problem{Status: http.StatusBadRequest, Code: "unsupported_format", Message: err.Error(), Warning: true}
	case errors.Is(err, audio.ErrTooLarge):
		return problem{Status: http.StatusRequestEntityTooLarge, Code: "audio_too_large", Message: "The audio file is too large.", Warning: true}
	case errors.Is(err, stt.ErrUnintelligible):
		return problem{Status: http.StatusUnprocessableEntity, Code: "unintelligible", Message: "The speech engine could not understand the audio."}
	case errors.Is(err, errUploadDisabled):
		return problem{Status: http.StatusServiceUnavailable, Code: "upload_disabled", Message: "Audio upload is not enabled on this server."}
	case errors.Is(err, speech.ErrMicrophoneDisabled):
		return problem{Status: http.StatusServiceUnavailable, Code: "microphone_disabled", Message: "Live recording is not enabled on this server."}
	case errors.As(err, &se):
		return problem{Status: http.StatusBadGateway, Code: "recognition_service_error", Message: "Speech recognition error: " + se.Err.Error()}
	}
	return problem{Status: http.StatusInternalServerError, Code: "internal", Message: "Speech recognition failed: " + err.Error()}
}

func writeProblem(w http.ResponseWriter, p problem) {
	writeJSON(w, p.Status, p)
}
