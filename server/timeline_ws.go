package server

import (
	"net/http"

	"geojournal/logger"
)

// TimelineSocketHandler streams timeline changes to one browser tab.
func (h *Handler) TimelineSocketHandler(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "live updates are not enabled")
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("timeline websocket upgrade failed", logger.ErrorField(err))
		return
	}

	logger.Debug("timeline subscriber connected", logger.String("remote", r.RemoteAddr))
	h.hub.Serve(ws)
}
