// Package texture resolves logical asset names to loaded textures.
//
// Lookups go through three tiers: the per-category cache of individually
// loaded textures, then a sprite-sheet atlas registered for the category,
// then a shared blank handle. ClearCache bumps a generation counter; anyone
// holding handles compares generations and re-resolves rather than keeping
// raw handles across a clear.
package texture

import (
	"errors"
	"image"
)

// Category partitions the cache.
type Category string

const (
	Tiles    Category = "tiles"
	Entities Category = "entities"
	Objects  Category = "objects"
	UI       Category = "ui"
)

// Categories returns every category in load order.
func Categories() []Category {
	return []Category{Tiles, Entities, Objects, UI}
}

var (
	// ErrNotFound is returned by fetchers when an asset does not exist.
	ErrNotFound = errors.New("texture not found")
	// ErrUnknownCategory is returned for categories without a manifest entry.
	ErrUnknownCategory = errors.New("unknown texture category")
	// ErrNothingLoaded is returned when every name of a category failed.
	ErrNothingLoaded = errors.New("no texture of the category could be loaded")
)

// Handle is a loaded, GPU-backed image.
type Handle interface {
	Size() (w, h int)
	Release()
}

// Slicer is implemented by handles that can hand out sub-regions, used for
// atlas pages.
type Slicer interface {
	Sub(r image.Rectangle) Handle
}

// Uploader turns a decoded image into a Handle on the graphics device.
type Uploader interface {
	Upload(img image.Image) (Handle, error)
}

type blankHandle struct{}

func (blankHandle) Size() (int, int) { return 1, 1 }
func (blankHandle) Release()         {}

// Blank is the shared placeholder handle. Releasing it is a no-op.
var Blank Handle = blankHandle{}

// IsBlank reports whether h is the shared placeholder (or nil).
func IsBlank(h Handle) bool {
	if h == nil {
		return true
	}
	_, ok := h.(blankHandle)
	return ok
}

// Manifest enumerates the logical names loaded for each category.
type Manifest map[Category][]string

// DefaultManifest is the fixed set of names the asset server provides.
func DefaultManifest() Manifest {
	return Manifest{
		Tiles: {
			"floor", "wall", "grass", "water", "sand", "stone", "background",
		},
		Entities: {
			"player", "player_default", "npc", "npc_default",
			"goblin", "guard", "merchant", "villager", "wolf",
		},
		Objects: {
			"item", "item_default", "object_default",
			"chest", "key", "potion", "sword", "door",
		},
		UI: {
			"cursor", "selection", "marker",
		},
	}
}
