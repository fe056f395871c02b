package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nikhilbhutani/linguakit/internal/translate"
)

// Translator is the part of *translate.Service the handlers use.
type Translator interface {
	TranslatePair(ctx context.Context, pair translate.LanguagePair, text string) (string, *translate.Model, error)
	ModelID(pair translate.LanguagePair) string
	Loaded() []translate.LanguagePair
}

type TranslateHandler struct {
	translator Translator
}

func NewTranslateHandler(translator Translator) *TranslateHandler {
	return &TranslateHandler{translator: translator}
}

type translateRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Text   string `json:"text"`
}

type translateResponse struct {
	Source      translate.LanguageCode `json:"source"`
	Target      translate.LanguageCode `json:"target"`
	Model       string                 `json:"model"`
	Translation string                 `json:"translation"`
}

type languageInfo struct {
	Code translate.LanguageCode `json:"code"`
	Name string                 `json:"name"`
}

func (h *TranslateHandler) Languages(w http.ResponseWriter, r *http.Request) {
	langs := make([]languageInfo, 0, len(translate.Languages()))
	for _, c := range translate.Languages() {
		langs = append(langs, languageInfo{Code: c, Name: c.Name()})
	}

	loaded := []string{}
	for _, p := range h.translator.Loaded() {
		loaded = append(loaded, h.translator.ModelID(p))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"languages": langs, "loaded_models": loaded})
}

func (h *TranslateHandler) Translate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body", "code": "bad_request"})
		return
	}

	pair, p, ok := parsePair(req.Source, req.Target)
	if !ok {
		writeProblem(w, p)
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		writeProblem(w, translateProblem(pair, translate.ErrEmptyInput))
		return
	}

	out, _, err := h.translator.TranslatePair(r.Context(), pair, req.Text)
	if err != nil {
		writeProblem(w, translateProblem(pair, err))
		return
	}

	writeJSON(w, http.StatusOK, translateResponse{
		Source:      pair.Source,
		Target:      pair.Target,
		Model:       h.translator.ModelID(pair),
		Translation: out,
	})
}

func parsePair(source, target string) (translate.LanguagePair, problem, bool) {
	src, err := translate.ParseLanguage(source)
	if err != nil {
		return translate.LanguagePair{}, problem{Status: http.StatusBadRequest, Code: "unsupported_language", Message: err.Error(), Warning: true}, false
	}
	tgt, err := translate.ParseLanguage(target)
	if err != nil {
		return translate.LanguagePair{}, problem{Status: http.StatusBadRequest, Code: "unsupported_language", Message: err.Error(), Warning: true}, false
	}
	return translate.LanguagePair{Source: src, Target: tgt}, problem{}, true
}
