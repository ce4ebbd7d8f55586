package server

import (
	"net/http"
	"strconv"

	"geojournal/core/coords"
)

// CoordinatesResponse is returned by the parse endpoint.
type CoordinatesResponse struct {
	Success   bool    `json:"success"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Formatted string  `json:"formatted"`
}

// ParseCoordinatesHandler parses ?q= the way the manual entry form does.
func (h *Handler) ParseCoordinatesHandler(w http.ResponseWriter, r *http.Request) {
	c, err := coords.Parse(r.URL.Query().Get("q"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CoordinatesResponse{
		Success:   true,
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
		Formatted: coords.Format(c.Latitude, c.Longitude),
	})
}

// FormatCoordinatesHandler renders ?lat=&lon= for display.
func (h *Handler) FormatCoordinatesHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	lat, latErr := strconv.ParseFloat(query.Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(query.Get("lon"), 64)
	if latErr != nil || lonErr != nil {
		writeError(w, http.StatusBadRequest, coords.KindInvalidFormat.String(), "lat and lon must be numbers")
		return
	}

	c, err := coords.New(lat, lon)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"formatted": c.String(),
	})
}
