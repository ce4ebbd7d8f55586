// Package coords parses and formats latitude/longitude pairs typed by people.
//
// Accepted input looks like "51.50851, -0.12572", optionally wrapped in square
// brackets, with or without spaces, and with the typographic minus sign U+2212
// in place of the ASCII hyphen-minus. Full-width digits and punctuation, as
// typed with a CJK input method, are read as their ASCII forms.
package coords

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0

	// FractionDigits is the precision used by Format.
	FractionDigits = 5

	unicodeMinus = "\u2212"
)

// Coordinate is a validated latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// New validates lat and lon and returns the Coordinate.
func New(lat, lon float64) (Coordinate, error) {
	c := Coordinate{Latitude: lat, Longitude: lon}
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

// Validate checks latitude first, then longitude.
func (c Coordinate) Validate() error {
	input := Format(c.Latitude, c.Longitude)
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return newParseError(KindInvalidFormat, msgNotNumbers, input)
	}
	if c.Latitude < MinLatitude || c.Latitude > MaxLatitude {
		return newParseError(KindInvalidRange, msgLatitudeRange, input)
	}
	if c.Longitude < MinLongitude || c.Longitude > MaxLongitude {
		return newParseError(KindInvalidRange, msgLongitudeRange, input)
	}
	return nil
}

// String renders the coordinate with Format.
func (c Coordinate) String() string {
	return Format(c.Latitude, c.Longitude)
}

// Parse turns free text into a Coordinate.
func Parse(input string) (Coordinate, error) {
	if input == "" {
		return Coordinate{}, newParseError(KindInvalidInput, msgInvalidInput, input)
	}

	cleaned := strings.TrimSpace(width.Narrow.String(input))
	if strings.HasPrefix(cleaned, "[") && strings.HasSuffix(cleaned, "]") {
		cleaned = strings.TrimSpace(cleaned[1 : len(cleaned)-1])
	}
	cleaned = strings.ReplaceAll(cleaned, unicodeMinus, "-")

	parts := strings.Split(cleaned, ",")
	if len(parts) != 2 {
		return Coordinate{}, newParseError(KindInvalidFormat, msgTwoParts, input)
	}

	lat, ok := parseNumber(parts[0])
	if !ok {
		return Coordinate{}, newParseError(KindInvalidFormat, msgNotNumbers, input)
	}
	lon, ok := parseNumber(parts[1])
	if !ok {
		return Coordinate{}, newParseError(KindInvalidFormat, msgNotNumbers, input)
	}

	if lat < MinLatitude || lat > MaxLatitude {
		return Coordinate{}, newParseError(KindInvalidRange, msgLatitudeRange, input)
	}
	if lon < MinLongitude || lon > MaxLongitude {
		return Coordinate{}, newParseError(KindInvalidRange, msgLongitudeRange, input)
	}

	return Coordinate{Latitude: lat, Longitude: lon}, nil
}

// ParseValue accepts a decoded JSON value. Anything that is not a string,
// including nil, is an invalid input.
func ParseValue(v any) (Coordinate, error) {
	s, ok := v.(string)
	if !ok {
		return Coordinate{}, newParseError(KindInvalidInput, msgInvalidInput, fmt.Sprintf("%v", v))
	}
	return Parse(s)
}

// parseNumber reports false for tokens strconv rejects, for NaN and for Go
// literal forms outside plain decimal notation (hex floats, underscores).
// Values overflowing float64 come back as ±Inf and fail the range checks
// instead.
func parseNumber(token string) (float64, bool) {
	token = strings.TrimSpace(token)
	if strings.ContainsAny(token, "xX_") {
		return 0, false
	}
	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		var numErr *strconv.NumError
		if !errors.As(err, &numErr) || !errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, false
		}
	}
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Format renders "[lat, lon]" with exactly five fractional digits each.
//
// strconv rounds the exact binary value of each float to the nearest
// five-digit decimal. A decimal literal that looks like a tie (x.xxxxx5) is
// never an exact tie in binary, so it rounds toward whichever side its
// binary approximation falls on. Exact binary ties such as 0.015625 round
// half to even. Negative values keep their sign even when
// they round to zero ("-0.00000").
func Format(lat, lon float64) string {
	return "[" + formatDegrees(lat) + ", " + formatDegrees(lon) + "]"
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', FractionDigits, 64)
}

// Round5 rounds v the same way Format does.
func Round5(v float64) float64 {
	r, err := strconv.ParseFloat(formatDegrees(v), 64)
	if err != nil {
		return v
	}
	return r
}
