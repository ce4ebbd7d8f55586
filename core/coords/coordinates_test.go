package coords

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAcceptedForms(t *testing.T) {
	want := Coordinate{Latitude: 51.50851, Longitude: -0.12572}

	inputs := []string{
		"51.50851, -0.12572",
		"51.50851,-0.12572",
		"[51.50851, -0.12572]",
		"[51.50851,-0.12572]",
		"51.50851, −0.12572",
		"51.50851,−0.12572",
		"[51.50851, −0.12572]",
		"  51.50851  ,  −0.12572  ",
		"  [ 51.50851 , -0.12572 ]  ",
		"５１.５０８５１，－０.１２５７２",
		"［５１．５０８５１，　−０．１２５７２］",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			got, err := Parse(input)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		kind     Kind
		sentinel error
		message  string
	}{
		{"empty string", "", KindInvalidInput, ErrInvalidInput, "invalid input: expected string"},
		{"no comma", "51.50851 -0.12572", KindInvalidFormat, ErrInvalidFormat, "invalid format: expected two coordinates separated by comma"},
		{"too many parts", "51.50851, -0.12572, 123", KindInvalidFormat, ErrInvalidFormat, "invalid format: expected two coordinates separated by comma"},
		{"whitespace only", "   ", KindInvalidFormat, ErrInvalidFormat, "invalid format: expected two coordinates separated by comma"},
		{"non numeric", "abc, def", KindInvalidFormat, ErrInvalidFormat, "invalid format: coordinates must be numbers"},
		{"empty parts", ",", KindInvalidFormat, ErrInvalidFormat, "invalid format: coordinates must be numbers"},
		{"nan", "NaN, 0", KindInvalidFormat, ErrInvalidFormat, "invalid format: coordinates must be numbers"},
		{"hex float", "0x1p4, 0", KindInvalidFormat, ErrInvalidFormat, "invalid format: coordinates must be numbers"},
		{"upper hex float", "10, 0X1P2", KindInvalidFormat, ErrInvalidFormat, "invalid format: coordinates must be numbers"},
		{"digit separators", "5_1.5, 0", KindInvalidFormat, ErrInvalidFormat, "invalid format: coordinates must be numbers"},
		{"latitude above 90", "91.0, 0.0", KindInvalidRange, ErrInvalidRange, "invalid latitude: must be between -90 and 90"},
		{"latitude below -90", "-91.0, 0.0", KindInvalidRange, ErrInvalidRange, "invalid latitude: must be between -90 and 90"},
		{"longitude above 180", "0.0, 181.0", KindInvalidRange, ErrInvalidRange, "invalid longitude: must be between -180 and 180"},
		{"longitude below -180", "0.0, -181.0", KindInvalidRange, ErrInvalidRange, "invalid longitude: must be between -180 and 180"},
		{"latitude reported before longitude", "95, 200", KindInvalidRange, ErrInvalidRange, "invalid latitude: must be between -90 and 90"},
		{"overflow", "1e400, 0", KindInvalidRange, ErrInvalidRange, "invalid latitude: must be between -90 and 90"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.True(t, errors.Is(err, tt.sentinel), "expected %v, got %v", tt.sentinel, err)
			assert.EqualError(t, err, tt.message)
		})
	}
}

func TestParseBoundaries(t *testing.T) {
	for _, input := range []string{"90, 180", "-90, -180", "[0,0]", "-0, -0"} {
		_, err := Parse(input)
		assert.NoError(t, err, input)
	}
}

func TestParseValue(t *testing.T) {
	for _, v := range []any{nil, 51.5, true, map[string]any{"lat": 1.0}} {
		_, err := ParseValue(v)
		assert.ErrorIs(t, err, ErrInvalidInput, "%#v", v)
	}

	got, err := ParseValue("[51.50851, −0.12572]")
	require.NoError(t, err)
	assert.Equal(t, Coordinate{Latitude: 51.50851, Longitude: -0.12572}, got)
}

func TestFormat(t *testing.T) {
	tests := []struct {
		lat, lon float64
		want     string
	}{
		{51.508512345, -0.125721234, "[51.50851, -0.12572]"},
		{0, 0, "[0.00000, 0.00000]"},
		{90, -180, "[90.00000, -180.00000]"},
		{1.123456, 2.987654, "[1.12346, 2.98765]"},
		{-0.000001, 0.000001, "[-0.00000, 0.00000]"},
		// 0.015625 is an exact binary tie and rounds half to even
		{0.015625, -0.015625, "[0.01562, -0.01562]"},
		{0.046875, -0.046875, "[0.04688, -0.04688]"},
		// 1.000005 is stored slightly above the tie
		{1.000005, -1.000005, "[1.00001, -1.00001]"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(tt.lat, tt.lon))
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	values := [][2]float64{
		{51.508512345, -0.125721234},
		{-33.8688197, 151.2092955},
		{89.999999, 179.999999},
		{-89.999999, -179.999999},
		{90, 180},
		{-90, -180},
		{12.3456789, -98.7654321},
		{0.000004, -0.000004},
	}

	for _, v := range values {
		got, err := Parse(Format(v[0], v[1]))
		require.NoError(t, err, "%v", v)
		assert.Equal(t, Round5(v[0]), got.Latitude)
		assert.Equal(t, Round5(v[1]), got.Longitude)
	}
}

func TestCoordinateValidate(t *testing.T) {
	_, err := New(45, 90)
	require.NoError(t, err)

	_, err = New(100, 0)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = New(0, 200)
	assert.ErrorIs(t, err, ErrInvalidRange)

	assert.Equal(t, "[45.00000, 90.00000]", Coordinate{Latitude: 45, Longitude: 90}.String())
}
