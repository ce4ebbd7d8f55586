package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"geojournal/core/coords"
	"geojournal/core/geo"
	"geojournal/model"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// CreateEntryRequest posts a text note with explicit coordinates. Coords is
// decoded loosely so that a non-string value is reported as invalid input.
type CreateEntryRequest struct {
	Text   string      `json:"text"`
	Coords interface{} `json:"coords"`
}

func toResponses(entries []*model.Entry) []model.EntryResponse {
	out := make([]model.EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ToResponse())
	}
	return out
}

// queryInt reads a bounded integer query parameter. Values above max are
// clamped when clamp is set and rejected otherwise.
func queryInt(r *http.Request, key string, def, min, max int, clamp bool) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min {
		return 0, false
	}
	if n > max {
		if !clamp {
			return 0, false
		}
		n = max
	}
	return n, true
}

// ListEntriesHandler returns the newest entries first.
func (h *Handler) ListEntriesHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", defaultListLimit, 1, maxListLimit, true)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
		return
	}

	entries, err := h.timeline.List(r.Context(), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"entries": toResponses(entries),
	})
}

// NearEntriesHandler returns the newest entries written within ?rings= H3
// cells of ?q=.
func (h *Handler) NearEntriesHandler(w http.ResponseWriter, r *http.Request) {
	c, err := coords.Parse(r.URL.Query().Get("q"))
	if err != nil {
		writeErr(w, err)
		return
	}
	rings, ok := queryInt(r, "rings", 1, 0, geo.MaxRings, false)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("rings must be between 0 and %d", geo.MaxRings))
		return
	}
	limit, ok := queryInt(r, "limit", defaultListLimit, 1, maxListLimit, true)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
		return
	}

	entries, err := h.timeline.Near(r.Context(), c, rings, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"entries": toResponses(entries),
	})
}

// CreateEntryHandler appends a text entry at the given coordinates.
func (h *Handler) CreateEntryHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	c, err := coords.ParseValue(req.Coords)
	if err != nil {
		writeErr(w, err)
		return
	}

	entry, err := h.timeline.AddText(r.Context(), req.Text, c)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"entry":   entry.ToResponse(),
	})
}

// ClearEntriesHandler removes every entry and clip.
func (h *Handler) ClearEntriesHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.timeline.Clear(r.Context()); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

