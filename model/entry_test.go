package model

import (
	"sort"
	"testing"
	"time"

	"geojournal/core/coords"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntryIDsFollowCreationOrder(t *testing.T) {
	at := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	c := coords.Coordinate{Latitude: 52.52, Longitude: 13.405}

	ids := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		e := NewEntry(EntryKindText, "same instant", c, at)
		id, err := uuid.Parse(e.ID)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), id.Version())
		ids = append(ids, e.ID)
	}

	assert.True(t, sort.StringsAreSorted(ids), "ids must sort in creation order")
	assert.Len(t, uniq(ids), len(ids))
}

func TestToResponse(t *testing.T) {
	c := coords.Coordinate{Latitude: 51.508512, Longitude: -0.125721}

	text := NewEntry(EntryKindText, "tea", c, time.Now())
	resp := text.ToResponse()
	assert.Equal(t, "tea", resp.Text)
	assert.Empty(t, resp.AudioURL)
	assert.Equal(t, "[51.50851, -0.12572]", resp.Location)

	clip := NewEntry(EntryKindAudio, "clips/a.webm", c, time.Now())
	resp = clip.ToResponse()
	assert.Empty(t, resp.Text)
	assert.Equal(t, "/clips/a.webm", resp.AudioURL)
}

func uniq(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
