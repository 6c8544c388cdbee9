package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/contentlab/seo-assistant/internal/backend"
	"github.com/contentlab/seo-assistant/internal/chat"
	"github.com/contentlab/seo-assistant/internal/dashboard"
	"github.com/contentlab/seo-assistant/internal/models"
	"github.com/contentlab/seo-assistant/internal/scheduler"
	"github.com/contentlab/seo-assistant/internal/sessions"
	"github.com/contentlab/seo-assistant/internal/theme"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// StatusProvider reports backend server health
type StatusProvider interface {
	Status() []scheduler.ServerStatus
}

// ProgressReader exposes the simulated progress clock
type ProgressReader interface {
	Value() float64
	Running() bool
}

// Handler serves the assistant's state over HTTP
type Handler struct {
	Theme     *theme.Store
	Sessions  *sessions.Store
	Chat      *chat.Orchestrator
	Dashboard *dashboard.Service
	Servers   StatusProvider
	Progress  ProgressReader
}

// NewRouter registers every route on a gorilla/mux router
func NewRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/status", h.status).Methods("GET")

	router.HandleFunc("/theme", h.getTheme).Methods("GET")
	router.HandleFunc("/theme", h.setTheme).Methods("PUT")
	router.HandleFunc("/theme/toggle", h.toggleTheme).Methods("POST")

	router.HandleFunc("/sessions", h.listSessions).Methods("GET")
	router.HandleFunc("/sessions/current", h.currentSession).Methods("GET")
	router.HandleFunc("/sessions/{id}/load", h.loadSession).Methods("POST")
	router.HandleFunc("/sessions/{id}", h.deleteSession).Methods("DELETE")

	router.HandleFunc("/chat", h.submitChat).Methods("POST")
	router.HandleFunc("/chat", h.getChat).Methods("GET")
	router.HandleFunc("/chat/attachments/transcripts", h.stageTranscripts).Methods("POST")
	router.HandleFunc("/chat/attachments/files", h.stageFile).Methods("POST")
	router.HandleFunc("/chat/attachments/youtube", h.previewYouTube).Methods("POST")
	router.HandleFunc("/chat/attachments/youtube/confirm", h.confirmYouTube).Methods("POST")
	router.HandleFunc("/chat/attachments/{kind}/{id}", h.removeAttachment).Methods("DELETE")

	router.HandleFunc("/dashboard", h.getDashboard).Methods("GET")
	router.HandleFunc("/dashboard/keywords", h.addKeyword).Methods("POST")
	router.HandleFunc("/dashboard/keywords/move", h.moveKeyword).Methods("POST")
	router.HandleFunc("/dashboard/keywords/{id}", h.renameKeyword).Methods("PUT")
	router.HandleFunc("/dashboard/keywords/{id}", h.deleteKeyword).Methods("DELETE")
	router.HandleFunc("/dashboard/keywords/{id}/select", h.selectKeyword).Methods("POST")

	router.HandleFunc("/progress", h.getProgress).Methods("GET")
	router.HandleFunc("/metrics", h.getMetrics).Methods("GET")

	return router
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"servers": h.Servers.Status()})
}

type themeBody struct {
	Theme theme.Theme `json:"theme"`
}

func (h *Handler) getTheme(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, themeBody{Theme: h.Theme.Get()})
}

func (h *Handler) setTheme(w http.ResponseWriter, r *http.Request) {
	var body themeBody
	if !decode(w, r, &body) {
		return
	}
	if err := h.Theme.Set(body.Theme); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, themeBody{Theme: h.Theme.Get()})
}

func (h *Handler) toggleTheme(w http.ResponseWriter, r *http.Request) {
	t, err := h.Theme.Toggle()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, themeBody{Theme: t})
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions":  h.Sessions.All(),
		"currentId": h.Sessions.CurrentID(),
	})
}

func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.Sessions.Current()
	if !ok {
		writeError(w, sessions.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) loadSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := h.Sessions.Get(id); !ok {
		writeError(w, sessions.ErrNotFound)
		return
	}
	h.Sessions.LoadByID(id)

	session, _ := h.Sessions.Current()
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.DeleteByID(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type chatBody struct {
	Message string `json:"message"`
}

func (h *Handler) submitChat(w http.ResponseWriter, r *http.Request) {
	var body chatBody
	if !decode(w, r, &body) {
		return
	}

	result, err := h.Chat.Submit(r.Context(), body.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

func (h *Handler) getChat(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages":     h.Chat.Messages(),
		"state":        h.Chat.State(),
		"attachments":  h.Chat.Attachments(),
		"relatedPosts": h.Chat.RelatedPosts(),
	})
}

type transcriptsBody struct {
	IDs []models.ID `json:"ids"`
}

func (h *Handler) stageTranscripts(w http.ResponseWriter, r *http.Request) {
	var body transcriptsBody
	if !decode(w, r, &body) {
		return
	}
	staged, err := h.Chat.StageTranscripts(body.IDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transcripts": staged})
}

type fileBody struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (h *Handler) stageFile(w http.ResponseWriter, r *http.Request) {
	var body fileBody
	if !decode(w, r, &body) {
		return
	}
	f, err := h.Chat.StageFile(body.Name, body.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

type youtubeBody struct {
	URL string `json:"url"`
}

func (h *Handler) previewYouTube(w http.ResponseWriter, r *http.Request) {
	var body youtubeBody
	if !decode(w, r, &body) {
		return
	}
	preview, err := h.Chat.PreviewYouTube(body.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (h *Handler) confirmYouTube(w http.ResponseWriter, r *http.Request) {
	info, err := h.Chat.ConfirmYouTube()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": info.ID, "url": info.URL, "name": info.Name})
}

func (h *Handler) removeAttachment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.Chat.RemoveAttachment(chat.AttachmentKind(vars["kind"]), vars["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getDashboard(w http.ResponseWriter, r *http.Request) {
	view, err := h.Dashboard.View()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type keywordBody struct {
	Name string `json:"name"`
}

func (h *Handler) addKeyword(w http.ResponseWriter, r *http.Request) {
	var body keywordBody
	if !decode(w, r, &body) {
		return
	}
	kw, err := h.Dashboard.AddKeyword(body.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, kw)
}

func (h *Handler) renameKeyword(w http.ResponseWriter, r *http.Request) {
	var body keywordBody
	if !decode(w, r, &body) {
		return
	}
	kw, err := h.Dashboard.RenameKeyword(models.ID(mux.Vars(r)["id"]), body.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, kw)
}

func (h *Handler) deleteKeyword(w http.ResponseWriter, r *http.Request) {
	if err := h.Dashboard.DeleteKeyword(models.ID(mux.Vars(r)["id"])); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) selectKeyword(w http.ResponseWriter, r *http.Request) {
	kw, err := h.Dashboard.SelectKeyword(models.ID(mux.Vars(r)["id"]))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, kw)
}

type moveBody struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (h *Handler) moveKeyword(w http.ResponseWriter, r *http.Request) {
	var body moveBody
	if !decode(w, r, &body) {
		return
	}
	if err := h.Dashboard.MoveKeyword(body.From, body.To); err != nil {
		writeError(w, err)
		return
	}
	h.getDashboard(w, r)
}

func (h *Handler) getProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"value":   h.Progress.Value(),
		"running": h.Progress.Running(),
	})
}

func (h *Handler) getMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Chat.Metrics())
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	var gqlErr *backend.GraphQLError
	var transportErr *backend.TransportError
	switch {
	case errors.Is(err, chat.ErrEmptySubmission),
		errors.Is(err, chat.ErrEmptyURL),
		errors.Is(err, chat.ErrEmptyFileName),
		errors.Is(err, chat.ErrNoYouTubePreview),
		errors.Is(err, dashboard.ErrEmptyKeyword),
		errors.Is(err, dashboard.ErrInvalidPosition),
		errors.Is(err, theme.ErrInvalidTheme):
		return http.StatusBadRequest
	case errors.Is(err, sessions.ErrNotFound),
		errors.Is(err, dashboard.ErrKeywordNotFound),
		errors.Is(err, chat.ErrAttachmentNotFound),
		errors.Is(err, chat.ErrUnknownTranscript):
		return http.StatusNotFound
	case errors.Is(err, dashboard.ErrDuplicateKeyword):
		return http.StatusConflict
	case errors.As(err, &gqlErr), errors.As(err, &transportErr), errors.Is(err, backend.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
