package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"geojournal/config"
	"geojournal/core/audio"
	"geojournal/core/auth"
	"geojournal/core/coords"
	"geojournal/core/device"
	"geojournal/core/journal"
	"geojournal/core/timeline"
	"geojournal/logger"
	"geojournal/storage"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// ClipSource serves stored recordings back to the browser.
type ClipSource interface {
	Open(ctx context.Context, handle string) (io.ReadCloser, storage.ObjectInfo, error)
}

// Handler 处理所有 HTTP 与 WebSocket 请求
type Handler struct {
	cfg      *config.Config
	timeline *timeline.Timeline
	hub      *timeline.Hub
	store    audio.ClipStore
	clips    ClipSource
	issuer   *auth.Issuer
	upgrader websocket.Upgrader
}

// NewHandler 创建新的处理器. hub may be nil when live updates are not served.
func NewHandler(cfg *config.Config, tl *timeline.Timeline, hub *timeline.Hub, store audio.ClipStore, clips ClipSource) *Handler {
	return &Handler{
		cfg:      cfg,
		timeline: tl,
		hub:      hub,
		store:    store,
		clips:    clips,
		issuer:   auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Router registers every route on a gorilla/mux router.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	router.HandleFunc("/api/auth/login", h.LoginHandler).Methods(http.MethodPost)

	router.HandleFunc("/api/entries", h.AuthMiddleware(h.ListEntriesHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/entries/near", h.AuthMiddleware(h.NearEntriesHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/entries", h.AuthMiddleware(h.CreateEntryHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/entries", h.AuthMiddleware(h.ClearEntriesHandler)).Methods(http.MethodDelete)

	router.HandleFunc("/api/coordinates/parse", h.ParseCoordinatesHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/coordinates/format", h.FormatCoordinatesHandler).Methods(http.MethodGet)

	router.HandleFunc("/clips/{name}", h.AuthMiddleware(h.ClipHandler)).Methods(http.MethodGet, http.MethodHead)

	router.HandleFunc("/ws/timeline", h.AuthMiddleware(h.TimelineSocketHandler))
	router.HandleFunc("/ws/compose", h.AuthMiddleware(h.ComposeSocketHandler))

	router.HandleFunc("/", h.PageHandler).Methods(http.MethodGet)

	return router
}

// corsMiddleware 添加 CORS 头
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("encode response failed", logger.ErrorField(err))
	}
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, ErrorResponse{Success: false, Error: kind, Message: message})
}

// errorKind names an error for API clients.
func errorKind(err error) string {
	if k := coords.KindOf(err); k != 0 {
		return k.String()
	}
	switch {
	case errors.Is(err, journal.ErrEmptyText):
		return "empty_text"
	case errors.Is(err, journal.ErrAborted):
		return "aborted"
	case errors.Is(err, device.ErrAccess):
		return "device"
	case errors.Is(err, audio.ErrAlreadyRecording):
		return "already_recording"
	case errors.Is(err, auth.ErrInvalidToken):
		return "unauthorized"
	default:
		return "internal"
	}
}

// statusFor maps errors to HTTP status codes.
func statusFor(err error) int {
	switch errorKind(err) {
	case "invalid_input", "invalid_format", "invalid_range", "empty_text":
		return http.StatusBadRequest
	case "unauthorized":
		return http.StatusUnauthorized
	case "already_recording":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed", logger.ErrorField(err))
		message = "internal server error"
	}
	writeError(w, status, errorKind(err), message)
}
