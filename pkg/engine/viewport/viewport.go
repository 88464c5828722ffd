// Package viewport provides tile/pixel conversion and view fitting math.
// Nothing in here touches a graphics backend.
package viewport

import "math"

// Default layout values used by surfaces when the caller does not override them.
const (
	DefaultTileSize = 64
	DefaultPadding  = 20
	DefaultWidth    = 800
	DefaultHeight   = 600

	// MinScale keeps a container smaller than its padding from producing a
	// zero or negative scale.
	MinScale = 0.05
)

// Size is a width/height pair in pixels.
type Size struct {
	W, H float64
}

// Empty reports whether either dimension is not positive.
func (s Size) Empty() bool {
	return s.W <= 0 || s.H <= 0
}

// Transform maps logical map pixels to physical canvas pixels.
type Transform struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

// Identity returns the transform that leaves coordinates unchanged.
func Identity() Transform {
	return Transform{Scale: 1}
}

// Valid reports whether the transform can be applied.
func (t Transform) Valid() bool {
	return t.Scale > 0 && !math.IsNaN(t.Scale) && !math.IsInf(t.Scale, 0) &&
		!math.IsNaN(t.OffsetX) && !math.IsNaN(t.OffsetY)
}

// Apply converts a logical map pixel position into canvas pixels.
func (t Transform) Apply(x, y float64) (float64, float64) {
	return x*t.Scale + t.OffsetX, y*t.Scale + t.OffsetY
}

// Invert converts canvas pixels back into logical map pixels.
func (t Transform) Invert(sx, sy float64) (float64, float64) {
	if t.Scale == 0 {
		return 0, 0
	}
	return (sx - t.OffsetX) / t.Scale, (sy - t.OffsetY) / t.Scale
}

// TileToPixel returns the top-left logical pixel of a tile.
func TileToPixel(tileX, tileY, tileSize int) (float64, float64) {
	return float64(tileX * tileSize), float64(tileY * tileSize)
}

// TileCenter returns the logical pixel at the centre of a tile.
func TileCenter(tileX, tileY, tileSize int) (float64, float64) {
	half := float64(tileSize) / 2
	return float64(tileX*tileSize) + half, float64(tileY*tileSize) + half
}

// PixelToTile returns the tile containing a logical pixel.
func PixelToTile(x, y float64, tileSize int) (int, int) {
	if tileSize <= 0 {
		return 0, 0
	}
	ts := float64(tileSize)
	return int(math.Floor(x / ts)), int(math.Floor(y / ts))
}

// MapSize returns the logical pixel size of a cols x rows map.
func MapSize(cols, rows, tileSize int) Size {
	return Size{W: float64(cols * tileSize), H: float64(rows * tileSize)}
}

// Fit computes the fit-with-padding transform: the map is scaled down (never up)
// to fit inside the screen minus padding on every side, then centred.
func Fit(mapSize, screen Size, padding float64) Transform {
	if mapSize.Empty() || screen.Empty() {
		return Identity()
	}

	scale := math.Min((screen.W-2*padding)/mapSize.W, (screen.H-2*padding)/mapSize.H)
	scale = math.Min(scale, 1.0)
	if scale < MinScale {
		scale = MinScale
	}

	return Transform{
		Scale:   scale,
		OffsetX: (screen.W - mapSize.W*scale) / 2,
		OffsetY: (screen.H - mapSize.H*scale) / 2,
	}
}

// CenterOn keeps the given scale and offsets the view so the centre of the
// tile lands on the screen centre.
func CenterOn(tileX, tileY, tileSize int, scale float64, screen Size) Transform {
	if scale <= 0 {
		scale = 1
	}
	cx, cy := TileCenter(tileX, tileY, tileSize)
	return Transform{
		Scale:   scale,
		OffsetX: screen.W/2 - cx*scale,
		OffsetY: screen.H/2 - cy*scale,
	}
}
