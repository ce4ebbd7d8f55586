package cmd

import (
	"bufio"
	"io"
	"os"

	"geojournal/core/geo"
)

// stdinLines feeds stdin line by line to whichever prompt is reading. The
// channel is closed at EOF.
func stdinLines() <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// newResolver asks the fix file first and falls back to typed coordinates.
// With manualOnly the fix file is never consulted.
func newResolver(lines <-chan string, out io.Writer, manualOnly bool) geo.Resolver {
	var locator geo.Locator
	if !manualOnly {
		locator = geo.NewFileLocator(cfg.GeoFixFile)
	}
	return geo.NewProvider(locator, geo.NewTerminalPrompt(lines, out),
		geo.WithQueryOptions(geo.QueryOptions{
			HighAccuracy: true,
			Timeout:      cfg.GeoTimeout,
			MaximumAge:   cfg.GeoMaximumAge,
		}))
}
