package geo

import (
	"fmt"

	"geojournal/core/coords"

	"github.com/uber/h3-go/v4"
)

// CellResolution is the H3 resolution entries are indexed at. Cells are
// hexagons of roughly 0.7 km², so one ring around a cell covers a walk of
// about a kilometre.
const CellResolution = 8

// MaxRings bounds nearby queries; a disk of k rings holds 3k(k+1)+1 cells.
const MaxRings = 10

// CellOf returns the H3 cell containing c.
func CellOf(c coords.Coordinate) (int64, error) {
	cell, err := h3.LatLngToCell(h3.NewLatLng(c.Latitude, c.Longitude), CellResolution)
	if err != nil {
		return 0, fmt.Errorf("error converting to h3 cell at res %d: %w", CellResolution, err)
	}
	return int64(cell), nil
}

// CellsNear returns the cell containing c and every cell within rings steps
// of it.
func CellsNear(c coords.Coordinate, rings int) ([]int64, error) {
	if rings < 0 || rings > MaxRings {
		return nil, fmt.Errorf("rings must be between 0 and %d", MaxRings)
	}

	origin, err := h3.LatLngToCell(h3.NewLatLng(c.Latitude, c.Longitude), CellResolution)
	if err != nil {
		return nil, fmt.Errorf("error converting to h3 cell at res %d: %w", CellResolution, err)
	}
	disk, err := h3.GridDisk(origin, rings)
	if err != nil {
		return nil, fmt.Errorf("grid disk of %d rings: %w", rings, err)
	}

	cells := make([]int64, 0, len(disk))
	for _, cell := range disk {
		if cell != 0 {
			cells = append(cells, int64(cell))
		}
	}
	return cells, nil
}
