package server

import (
	"embed"
	"html/template"
	"net/http"

	"geojournal/core/timeline"
	"geojournal/logger"
)

//go:embed web/*.html
var webFS embed.FS

var pageTemplates = template.Must(template.ParseFS(webFS, "web/*.html"))

type pageData struct {
	Entries      []template.HTML
	ClipMIMEType string
}

// PageHandler renders the timeline with its compose controls, or the login
// form when the owner is not signed in.
func (h *Handler) PageHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if !h.authorized(r) {
		if err := pageTemplates.ExecuteTemplate(w, "login.html", nil); err != nil {
			logger.Error("render login page failed", logger.ErrorField(err))
		}
		return
	}

	entries, err := h.timeline.List(r.Context(), defaultListLimit)
	if err != nil {
		logger.Error("load timeline failed", logger.ErrorField(err))
		http.Error(w, "failed to load timeline", http.StatusInternalServerError)
		return
	}

	data := pageData{ClipMIMEType: h.cfg.ClipMIMEType}
	for _, e := range entries {
		html, err := timeline.RenderEntryHTML(e)
		if err != nil {
			logger.Warn("render entry failed", logger.String("id", e.ID), logger.ErrorField(err))
			continue
		}
		data.Entries = append(data.Entries, html)
	}

	if err := pageTemplates.ExecuteTemplate(w, "index.html", data); err != nil {
		logger.Error("render page failed", logger.ErrorField(err))
	}
}
