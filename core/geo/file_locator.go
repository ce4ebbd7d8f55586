package geo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"geojournal/core/coords"
	"geojournal/logger"

	"github.com/fsnotify/fsnotify"
)

// FileLocator reads fixes that a GPS daemon writes to a file, one
// "lat, lon" line per fix. It is the device locator for headless hosts.
type FileLocator struct {
	path string
	now  func() time.Time
}

func NewFileLocator(path string) *FileLocator {
	return &FileLocator{path: path, now: time.Now}
}

// Locate returns the fix in the file. A file younger than opts.MaximumAge is
// read right away; otherwise Locate waits for the next write until ctx ends.
func (l *FileLocator) Locate(ctx context.Context, opts QueryOptions) (coords.Coordinate, error) {
	dir := filepath.Dir(l.path)
	if _, err := os.Stat(dir); err != nil {
		return coords.Coordinate{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return coords.Coordinate{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	defer watcher.Close()

	// Watch the directory: daemons usually replace the file with a rename.
	if err := watcher.Add(dir); err != nil {
		return coords.Coordinate{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	if opts.MaximumAge > 0 {
		if info, err := os.Stat(l.path); err == nil && l.now().Sub(info.ModTime()) <= opts.MaximumAge {
			if c, err := l.read(); err == nil {
				return c, nil
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return coords.Coordinate{}, ErrTimeout
		case event, ok := <-watcher.Events:
			if !ok {
				return coords.Coordinate{}, ErrPositionUnavailable
			}
			if filepath.Clean(event.Name) != filepath.Clean(l.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			c, err := l.read()
			if err != nil {
				// partial writes show up as parse errors; wait for the next event
				logger.Debug("ignoring unreadable fix", logger.String("path", l.path), logger.ErrorField(err))
				continue
			}
			return c, nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return coords.Coordinate{}, ErrPositionUnavailable
			}
			logger.Warn("fix file watcher error", logger.ErrorField(err))
		}
	}
}

func (l *FileLocator) read() (coords.Coordinate, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return coords.Coordinate{}, err
	}
	line := strings.TrimSpace(string(data))
	if i := strings.LastIndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[i+1:])
	}
	return coords.Parse(line)
}
