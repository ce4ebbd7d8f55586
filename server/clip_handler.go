package server

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"

	"geojournal/core/audio"
	"geojournal/logger"
	"geojournal/storage"

	"github.com/gorilla/mux"
)

// ClipHandler streams a stored recording from the clip store.
func (h *Handler) ClipHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if name == "" || name != path.Base(name) {
		writeError(w, http.StatusNotFound, "not_found", "clip not found")
		return
	}
	handle := storage.ClipPrefix + name

	object, info, err := h.clips.Open(r.Context(), handle)
	if err != nil {
		if errors.Is(err, storage.ErrClipNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "clip not found")
			return
		}
		writeErr(w, err)
		return
	}
	defer object.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = audio.DefaultMIMEType
	}
	w.Header().Set("Content-Type", contentType)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	// clips are immutable once stored
	w.Header().Set("Cache-Control", "private, max-age=31536000, immutable")

	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, object); err != nil {
		logger.Warn("serving clip failed", logger.String("handle", handle), logger.ErrorField(err))
	}
}
