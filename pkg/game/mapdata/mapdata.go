// Package mapdata models the map payload delivered by the game server.
// Field names follow the server's JSON keys.
package mapdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"worldview/pkg/engine/world"
)

var (
	ErrNoWidth   = errors.New("map width must be positive")
	ErrNoHeight  = errors.New("map height must be positive")
	ErrEmptyGrid = errors.New("map grid is empty")
	ErrBadKey    = errors.New("placement key is not \"[x,y]\"")
)

// Tile values used in the grid.
const (
	TileWalkable = 0
	TileObstacle = 1
)

// Placement is a statically placed NPC or object.
type Placement struct {
	Name   string `json:"nome"`
	Sprite string `json:"sprite,omitempty"`
}

// Map is the map payload as sent by the server.
type Map struct {
	Name            string               `json:"nome"`
	Width           int                  `json:"larghezza"`
	Height          int                  `json:"altezza"`
	Grid            [][]int              `json:"griglia"`
	BackgroundImage string               `json:"backgroundImage,omitempty"`
	NPCs            map[string]Placement `json:"npg,omitempty"`
	Objects         map[string]Placement `json:"oggetti,omitempty"`
}

// Placed is a placement with its coordinates decoded.
type Placed struct {
	X, Y int
	Placement
}

// Parse decodes a map payload.
func Parse(data []byte) (*Map, error) {
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode map: %w", err)
	}
	return &m, nil
}

// Validate returns an error for maps that cannot be rendered and a list of
// non-fatal warnings for maps that can be rendered best-effort.
func (m *Map) Validate() (warnings []string, err error) {
	if m == nil {
		return nil, ErrEmptyGrid
	}
	var errs []error
	if m.Width <= 0 {
		errs = append(errs, ErrNoWidth)
	}
	if m.Height <= 0 {
		errs = append(errs, ErrNoHeight)
	}
	if len(m.Grid) == 0 {
		errs = append(errs, ErrEmptyGrid)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if len(m.Grid) < m.Height {
		warnings = append(warnings, fmt.Sprintf("grid has %d rows, declared height is %d", len(m.Grid), m.Height))
	}
	for row, values := range m.Grid {
		if len(values) < m.Width {
			warnings = append(warnings, fmt.Sprintf("grid row %d has %d columns, declared width is %d", row, len(values), m.Width))
			break
		}
	}
	return warnings, nil
}

// WorldGrid converts the tile values into an engine grid. The map must be valid.
func (m *Map) WorldGrid() *world.Grid {
	return world.FromValues(m.Grid, m.Height, m.Width)
}

// NPCPlacements returns the decoded NPC placements ordered by row then column,
// plus the keys that could not be decoded.
func (m *Map) NPCPlacements() ([]Placed, []string) {
	return decodePlacements(m.NPCs)
}

// ObjectPlacements returns the decoded object placements ordered by row then
// column, plus the keys that could not be decoded.
func (m *Map) ObjectPlacements() ([]Placed, []string) {
	return decodePlacements(m.Objects)
}

func decodePlacements(in map[string]Placement) ([]Placed, []string) {
	var out []Placed
	var bad []string
	for key, p := range in {
		x, y, err := ParseKey(key)
		if err != nil {
			bad = append(bad, key)
			continue
		}
		out = append(out, Placed{X: x, Y: y, Placement: p})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	sort.Strings(bad)
	return out, bad
}

// ParseKey decodes a "[x,y]" placement key.
func ParseKey(key string) (x, y int, err error) {
	s := strings.TrimSpace(key)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadKey, key)
	}
	parts := strings.Split(s[1:len(s)-1], ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadKey, key)
	}
	if x, err = strconv.Atoi(strings.TrimSpace(parts[0])); err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadKey, key)
	}
	if y, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrBadKey, key)
	}
	return x, y, nil
}

// FormatKey encodes coordinates as a placement key.
func FormatKey(x, y int) string {
	return fmt.Sprintf("[%d,%d]", x, y)
}
