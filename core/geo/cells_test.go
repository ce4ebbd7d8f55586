package geo

import (
	"testing"

	"geojournal/core/coords"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellOf(t *testing.T) {
	pier := coords.Coordinate{Latitude: 50.8225, Longitude: -0.1372}

	a, err := CellOf(pier)
	require.NoError(t, err)
	assert.NotZero(t, a)

	// a few metres away lands in the same hexagon
	b, err := CellOf(coords.Coordinate{Latitude: 50.82251, Longitude: -0.13721})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	tokyo, err := CellOf(coords.Coordinate{Latitude: 35.6762, Longitude: 139.6503})
	require.NoError(t, err)
	assert.NotEqual(t, a, tokyo)
}

func TestCellsNear(t *testing.T) {
	pier := coords.Coordinate{Latitude: 50.8225, Longitude: -0.1372}
	origin, err := CellOf(pier)
	require.NoError(t, err)

	only, err := CellsNear(pier, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{origin}, only)

	ring, err := CellsNear(pier, 1)
	require.NoError(t, err)
	assert.Len(t, ring, 7)
	assert.Contains(t, ring, origin)

	tokyo, err := CellOf(coords.Coordinate{Latitude: 35.6762, Longitude: 139.6503})
	require.NoError(t, err)
	assert.NotContains(t, ring, tokyo)

	_, err = CellsNear(pier, -1)
	assert.Error(t, err)
	_, err = CellsNear(pier, MaxRings+1)
	assert.Error(t, err)
}
