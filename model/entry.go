package model

import (
	"time"

	"geojournal/core/coords"

	"github.com/google/uuid"
)

// EntryKind distinguishes text notes from voice clips.
type EntryKind string

const (
	EntryKindText  EntryKind = "text"
	EntryKindAudio EntryKind = "audio"
)

// Entry is one timeline item. Entries are never updated after creation.
type Entry struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"` // UUIDv7, sorts by creation
	Kind      EntryKind `json:"kind" gorm:"size:10;not null"`
	Payload   string    `json:"payload" gorm:"type:text;not null"` // text content or clip handle
	Latitude  float64   `json:"latitude" gorm:"not null"`
	Longitude float64   `json:"longitude" gorm:"not null"`
	Cell      int64     `json:"cell" gorm:"index"` // H3 cell of the geotag, 0 if unknown
	CreatedAt time.Time `json:"createdAt" gorm:"index;precision:6"`
}

// TableName 指定表名
func (Entry) TableName() string {
	return "entries"
}

// Coordinate returns the entry's geotag.
func (e *Entry) Coordinate() coords.Coordinate {
	return coords.Coordinate{Latitude: e.Latitude, Longitude: e.Longitude}
}

// NewEntry creates an entry stamped with createdAt. IDs are time-ordered so
// entries sharing a timestamp still list newest first.
func NewEntry(kind EntryKind, payload string, c coords.Coordinate, createdAt time.Time) *Entry {
	return &Entry{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Kind:      kind,
		Payload:   payload,
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
		CreatedAt: createdAt,
	}
}

// EntryResponse is the JSON shape served to clients.
type EntryResponse struct {
	ID        string    `json:"id"`
	Kind      EntryKind `json:"kind"`
	Text      string    `json:"text,omitempty"`
	AudioURL  string    `json:"audioUrl,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"createdAt"`
}

// ToResponse converts the entry for the API. Audio payloads become URLs
// served by the clip route.
func (e *Entry) ToResponse() EntryResponse {
	resp := EntryResponse{
		ID:        e.ID,
		Kind:      e.Kind,
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
		Location:  coords.Format(e.Latitude, e.Longitude),
		CreatedAt: e.CreatedAt,
	}
	switch e.Kind {
	case EntryKindAudio:
		resp.AudioURL = e.AudioURL()
	default:
		resp.Text = e.Payload
	}
	return resp
}

// AudioURL is the path under which the clip is served.
func (e *Entry) AudioURL() string {
	if e.Kind != EntryKindAudio {
		return ""
	}
	return "/" + e.Payload
}
