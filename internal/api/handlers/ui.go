package handlers

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nikhilbhutani/linguakit/internal/speech"
	"github.com/nikhilbhutani/linguakit/internal/speech/audio"
	"github.com/nikhilbhutani/linguakit/internal/translate"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// UIHandler renders the single-page form interface. Each panel posts on its
// own and only that panel's result is rendered on the returned page.
type UIHandler struct {
	translator     Translator
	speech         SpeechService
	upload         UploadPolicy
	captureSeconds int
}

func NewUIHandler(translator Translator, svc SpeechService, upload UploadPolicy, captureSeconds int) *UIHandler {
	return &UIHandler{translator: translator, speech: svc, upload: upload, captureSeconds: captureSeconds}
}

type panelResult struct {
	Result  string
	Warning string
	Error   string
}

type translatePanel struct {
	panelResult
	Source translate.LanguageCode
	Target translate.LanguageCode
	Text   string
	Model  string
}

type speakPanel struct {
	panelResult
	Text     string
	AudioURL string
	Type     string
}

type recognizePanel struct {
	panelResult
	Language string
}

type page struct {
	Languages      []languageInfo
	UploadEnabled  bool
	MicEnabled     bool
	FormatLabel    string
	Accept         string
	RecorderTypes  []string
	CaptureSeconds int

	Translate translatePanel
	Speak     speakPanel
	Recognize recognizePanel
}

func (h *UIHandler) newPage() *page {
	langs := make([]languageInfo, 0, len(translate.Languages()))
	for _, c := range translate.Languages() {
		langs = append(langs, languageInfo{Code: c, Name: c.Name()})
	}
	return &page{
		Languages:      langs,
		UploadEnabled:  h.upload.Enabled,
		MicEnabled:     h.speech.MicrophoneEnabled(),
		FormatLabel:    h.upload.Formats.Label(),
		Accept:         h.upload.Formats.AcceptAttr(),
		RecorderTypes:  recorderTypes(h.upload.Formats),
		CaptureSeconds: h.captureSeconds,
		Translate:      translatePanel{Source: translate.English, Target: translate.Spanish},
	}
}

// recorderTypes lists the accepted formats a browser MediaRecorder can
// produce, in preference order.
func recorderTypes(fs audio.Formats) []string {
	var out []string
	for _, f := range []audio.Format{audio.WebM, audio.OGG} {
		if fs.Contains(f) {
			out = append(out, f.ContentType())
		}
	}
	return out
}

func (h *UIHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.render(w, h.newPage())
}

func (h *UIHandler) Translate(w http.ResponseWriter, r *http.Request) {
	p := h.newPage()
	p.Translate.Text = r.FormValue("text")
	p.Translate.Source = translate.LanguageCode(r.FormValue("source"))
	p.Translate.Target = translate.LanguageCode(r.FormValue("target"))

	pair, prob, ok := parsePair(r.FormValue("source"), r.FormValue("target"))
	if !ok {
		p.Translate.set(prob)
		h.render(w, p)
		return
	}
	if strings.TrimSpace(p.Translate.Text) == "" {
		p.Translate.set(translateProblem(pair, translate.ErrEmptyInput))
		h.render(w, p)
		return
	}

	out, _, err := h.translator.TranslatePair(r.Context(), pair, p.Translate.Text)
	if err != nil {
		slog.Warn("translation failed", "pair", pair.String(), "error", err)
		p.Translate.set(translateProblem(pair, err))
		h.render(w, p)
		return
	}
	p.Translate.Result = out
	p.Translate.Model = h.translator.ModelID(pair)
	h.render(w, p)
}

func (h *UIHandler) Speak(w http.ResponseWriter, r *http.Request) {
	p := h.newPage()
	p.Speak.Text = r.FormValue("text")

	if strings.TrimSpace(p.Speak.Text) == "" {
		p.Speak.set(speakProblem(speech.ErrEmptyText))
		h.render(w, p)
		return
	}

	a, err := h.speech.Speak(r.Context(), p.Speak.Text, "")
	if err != nil {
		slog.Error("speech synthesis failed", "error", err)
		p.Speak.set(speakProblem(err))
		h.render(w, p)
		return
	}
	p.Speak.AudioURL = outputURL + "?v=" + a.Version
	p.Speak.Type = a.ContentType
	h.render(w, p)
}

func (h *UIHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	p := h.newPage()

	buf, err := h.upload.read(r)
	p.Recognize.Language = r.FormValue("language")
	if err != nil {
		p.Recognize.set(recognizeProblem(err))
		h.render(w, p)
		return
	}

	tr, err := h.speech.Recognize(r.Context(), buf, p.Recognize.Language)
	if err != nil {
		logRecognizeError(err)
		p.Recognize.set(recognizeProblem(err))
		h.render(w, p)
		return
	}
	p.Recognize.Result = tr.Text
	h.render(w, p)
}

func (h *UIHandler) Record(w http.ResponseWriter, r *http.Request) {
	p := h.newPage()
	p.Recognize.Language = r.FormValue("language")

	tr, err := h.speech.Record(r.Context(), p.Recognize.Language)
	if err != nil {
		logRecognizeError(err)
		p.Recognize.set(recognizeProblem(err))
		h.render(w, p)
		return
	}
	p.Recognize.Result = tr.Text
	h.render(w, p)
}

func (pr *panelResult) set(p problem) {
	if p.Warning {
		pr.Warning = p.Message
		return
	}
	pr.Error = p.Message
}

func (h *UIHandler) render(w http.ResponseWriter, p *page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, p); err != nil {
		slog.Error("render page", "error", err)
	}
}
