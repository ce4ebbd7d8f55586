package timeline

import (
	"bytes"
	"html/template"

	"geojournal/core/coords"
	"geojournal/model"
)

var entryTemplate = template.Must(template.New("entry").Parse(
	`<li class="entry entry-{{.Kind}}" data-id="{{.ID}}">` +
		`{{if .Audio}}<audio controls src="{{.AudioURL}}"></audio>` +
		`{{else}}<p class="entry-text">{{.Text}}</p>{{end}}` +
		`<span class="entry-location">{{.Location}}</span>` +
		`<time datetime="{{.Timestamp}}">{{.Display}}</time>` +
		`</li>`))

type entryView struct {
	ID        string
	Kind      model.EntryKind
	Audio     bool
	AudioURL  string
	Text      string
	Location  string
	Timestamp string
	Display   string
}

// RenderEntryHTML renders one timeline item. Text is HTML-escaped.
func RenderEntryHTML(entry *model.Entry) (template.HTML, error) {
	view := entryView{
		ID:        entry.ID,
		Kind:      entry.Kind,
		Audio:     entry.Kind == model.EntryKindAudio,
		AudioURL:  entry.AudioURL(),
		Location:  coords.Format(entry.Latitude, entry.Longitude),
		Timestamp: entry.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Display:   entry.CreatedAt.Local().Format("2006-01-02 15:04"),
	}
	if !view.Audio {
		view.Text = entry.Payload
	}

	var buf bytes.Buffer
	if err := entryTemplate.Execute(&buf, view); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
