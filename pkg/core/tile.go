// pkg/core/tile.go
package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidTileID is returned when a persisted tile id cannot be parsed.
var ErrInvalidTileID = errors.New("invalid tile id")

// TileID addresses a grid cell. Row 0 is the southern edge, Col 0 the western edge.
type TileID struct {
	Row int
	Col int
}

// String renders the id in its persisted form, "<row>_<col>".
func (id TileID) String() string {
	return strconv.Itoa(id.Row) + "_" + strconv.Itoa(id.Col)
}

// ParseTileID parses the "<row>_<col>" form produced by TileID.String.
func ParseTileID(s string) (TileID, error) {
	rowStr, colStr, ok := strings.Cut(s, "_")
	if !ok {
		return TileID{}, fmt.Errorf("%w: %q", ErrInvalidTileID, s)
	}
	row, err := strconv.Atoi(rowStr)
	if err != nil || row < 0 {
		return TileID{}, fmt.Errorf("%w: %q", ErrInvalidTileID, s)
	}
	col, err := strconv.Atoi(colStr)
	if err != nil || col < 0 {
		return TileID{}, fmt.Errorf("%w: %q", ErrInvalidTileID, s)
	}
	return TileID{Row: row, Col: col}, nil
}

// TileDefinition is an immutable grid cell. Bounds are planar metres from the region origin.
type TileDefinition struct {
	ID     TileID
	Bounds Rect
}

// TileState is the discovery progress of one tile.
type TileState struct {
	HitCount int  `json:"hitCount"`
	Unlocked bool `json:"unlocked"`
}
