package geo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"geojournal/core/coords"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLocatorWaitsForFreshFix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fix")
	require.NoError(t, os.WriteFile(path, []byte("1, 1\n"), 0644))

	l := NewFileLocator(path)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		c   coords.Coordinate
		err error
	}
	done := make(chan result, 1)
	go func() {
		c, err := l.Locate(ctx, DefaultQueryOptions())
		done <- result{c, err}
	}()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case r := <-done:
			require.NoError(t, r.err)
			assert.Equal(t, coords.Coordinate{Latitude: -34.90111, Longitude: -56.16453}, r.c)
			return
		case <-ticker.C:
			require.NoError(t, os.WriteFile(path, []byte("1, 1\n-34.90111, -56.16453\n"), 0644))
		case <-ctx.Done():
			t.Fatal("no fix observed")
		}
	}
}

func TestFileLocatorAcceptsRecentFixWithMaximumAge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fix")
	require.NoError(t, os.WriteFile(path, []byte("[10.5, −20.25]"), 0644))

	c, err := NewFileLocator(path).Locate(context.Background(), QueryOptions{MaximumAge: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, coords.Coordinate{Latitude: 10.5, Longitude: -20.25}, c)
}

func TestFileLocatorTimesOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fix")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := NewFileLocator(path).Locate(ctx, DefaultQueryOptions())
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestFileLocatorMissingDirectory(t *testing.T) {
	_, err := NewFileLocator("/nonexistent/geojournal/fix").Locate(context.Background(), DefaultQueryOptions())
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestTerminalPrompt(t *testing.T) {
	lines := make(chan string, 3)
	lines <- "51.5, -0.12"
	lines <- "   "
	var out strings.Builder
	p := NewTerminalPrompt(lines, &out)

	require.NoError(t, p.Open(context.Background()))

	sub, err := p.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Submission{Action: ActionConfirm, Text: "51.5, -0.12"}, sub)

	sub, err = p.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionCancel, sub.Action)

	close(lines)
	sub, err = p.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionCancel, sub.Action)

	require.NoError(t, p.Reject(context.Background(), coords.ErrInvalidFormat))
	assert.Contains(t, out.String(), "invalid coordinates: invalid format")
}
