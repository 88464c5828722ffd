// Package devtools provides developer tools for testing and debugging.
package devtools

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gookit/color"

	"worldview/pkg/engine/terminal"
	"worldview/pkg/engine/world"
	"worldview/pkg/game/scene"
	"worldview/pkg/game/texture"
)

const sceneDumpFilename = "scene.txt"

var (
	colorHeading = color.Style{color.FgMagenta, color.OpBold}
	colorKey     = color.Style{color.FgGray}
	colorPlayer  = color.Style{color.FgGreen, color.OpBold}
	colorNPC     = color.Style{color.FgBlue, color.OpBold}
	colorObject  = color.Style{color.FgRed}
	colorWall    = color.Style{color.FgGray, color.OpBold}
)

// cellSymbol returns the symbol for one tile of a surface: the entity on it
// if any, otherwise wall or floor.
func cellSymbol(cell *world.Cell, occupant *scene.Visual) rune {
	if occupant != nil {
		switch occupant.Kind {
		case scene.KindPlayer:
			return '@'
		case scene.KindNPC:
			return 'N'
		default:
			return 'o'
		}
	}
	if cell == nil || cell.Obstacle {
		return '#'
	}
	return '.'
}

// occupants indexes the visuals of a surface by tile. The player wins a
// shared tile, then the first key in sort order.
func occupants(s *scene.Surface) map[[2]int]*scene.Visual {
	out := make(map[[2]int]*scene.Visual)
	reg := s.Entities()
	for _, key := range reg.Keys() {
		v, _ := reg.Get(key)
		pos := [2]int{v.X, v.Y}
		if prev, ok := out[pos]; ok && prev.Kind == scene.KindPlayer {
			continue
		}
		if _, ok := out[pos]; ok && v.Kind != scene.KindPlayer {
			continue
		}
		out[pos] = v
	}
	return out
}

// writeSurfaceGrid writes the surface's map with entity overlay. paint
// colours a symbol; nil writes plain text.
func writeSurfaceGrid(w io.Writer, s *scene.Surface, paint func(rune) string) {
	m := s.Map()
	if m == nil {
		fmt.Fprintln(w, "  (no map)")
		return
	}
	grid := m.WorldGrid()
	occ := occupants(s)
	for row := 0; row < grid.Rows(); row++ {
		fmt.Fprint(w, "  ")
		for col := 0; col < grid.Cols(); col++ {
			sym := cellSymbol(grid.GetCell(row, col), occ[[2]int{col, row}])
			if paint != nil {
				fmt.Fprint(w, paint(sym))
			} else {
				fmt.Fprintf(w, "%c", sym)
			}
		}
		fmt.Fprintln(w)
	}
}

func paintSymbol(r rune) string {
	switch r {
	case '@':
		return colorPlayer.Sprint(string(r))
	case 'N':
		return colorNPC.Sprint(string(r))
	case 'o':
		return colorObject.Sprint(string(r))
	case '#':
		return colorWall.Sprint(string(r))
	default:
		return string(r)
	}
}

// writeDump writes the full state dump. heading and paint decorate the
// output; both may be nil.
func writeDump(w io.Writer, reg *scene.Registry, cache *texture.Cache, heading func(string) string, paint func(rune) string) {
	if heading == nil {
		heading = func(s string) string { return s }
	}
	kv := func(key string, value any) {
		fmt.Fprintf(w, "%s: %v\n", key, value)
	}

	fmt.Fprintln(w, heading("=== SCENE DUMP (surfaces, entities, textures) ==="))
	fmt.Fprintln(w)

	fmt.Fprintln(w, heading("--- Registry ---"))
	kv("surfaces", reg.Len())
	kv("pending_updates", reg.Pending(""))
	kv("device_lost", reg.Guard().Lost())
	kv("active_effects", reg.Guard().ActiveEffects())
	fmt.Fprintln(w)

	fmt.Fprintln(w, heading("--- Legend (cell symbols) ---"))
	fmt.Fprintln(w, ". = floor  # = obstacle  @ = player  N = npc  o = object")
	fmt.Fprintln(w)

	reg.Each(func(s *scene.Surface) {
		fmt.Fprintln(w, heading(fmt.Sprintf("--- Surface %q ---", s.ID())))
		cols, rows := s.MapSize()
		size := s.PhysicalSize()
		t := s.Transform()
		kv("state", s.State())
		kv("map", s.MapName())
		kv("map_tiles", fmt.Sprintf("%dx%d", cols, rows))
		kv("canvas", fmt.Sprintf("%.0fx%.0f", size.W, size.H))
		kv("transform", fmt.Sprintf("scale=%.3f offset=(%.1f, %.1f)", t.Scale, t.OffsetX, t.OffsetY))
		kv("focus", s.Focus())
		kv("device_lost", s.DeviceLost())
		fmt.Fprintln(w, "layers:")
		for _, l := range s.Layers() {
			fmt.Fprintf(w, "  %s nodes: %d\n", l.Name(), l.Root().Count()-1)
		}
		fmt.Fprintln(w, "map:")
		writeSurfaceGrid(w, s, paint)

		fmt.Fprintln(w, "entities:")
		reg := s.Entities()
		if reg.Len() == 0 {
			fmt.Fprintln(w, "  (none)")
		}
		for _, key := range reg.Keys() {
			v, _ := reg.Get(key)
			tex := v.Resolved
			if v.Placeholder() {
				tex = "placeholder"
			}
			fmt.Fprintf(w, "  key: %q kind: %s name: %q x: %d y: %d texture: %s effects: %d\n",
				key, v.Kind, v.Name, v.X, v.Y, tex, len(v.Sprite.Effects()))
		}
		fmt.Fprintln(w)
	})

	if cache != nil {
		fmt.Fprintln(w, heading("--- Textures ---"))
		kv("generation", cache.Generation())
		for _, cat := range texture.Categories() {
			names := cache.Names(cat)
			if len(names) == 0 {
				fmt.Fprintf(w, "%s: (none)\n", cat)
				continue
			}
			fmt.Fprintf(w, "%s: %s\n", cat, strings.Join(names, ", "))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, heading("=== END SCENE DUMP ==="))
}

// WriteSurface writes one surface's map with its entities on top. colour
// adds terminal colour codes.
func WriteSurface(w io.Writer, s *scene.Surface, colour bool) {
	if colour {
		writeSurfaceGrid(w, s, paintSymbol)
		return
	}
	writeSurfaceGrid(w, s, nil)
}

// WriteDump writes a plain text dump of every surface to w.
func WriteDump(w io.Writer, reg *scene.Registry, cache *texture.Cache) {
	writeDump(w, reg, cache, nil, nil)
}

// PrintDump writes a coloured dump to stdout, framed to the terminal width.
func PrintDump(reg *scene.Registry, cache *texture.Cache) {
	rule := strings.Repeat("─", terminal.Width())
	colorKey.Println(rule)
	writeDump(os.Stdout, reg, cache, func(s string) string { return colorHeading.Sprint(s) }, paintSymbol)
	colorKey.Println(rule)
}

// DumpToFile writes the plain text dump to scene.txt in dir and returns its
// absolute path.
func DumpToFile(dir string, reg *scene.Registry, cache *texture.Cache) (string, error) {
	absPath, err := filepath.Abs(filepath.Join(dir, sceneDumpFilename))
	if err != nil {
		return "", err
	}
	f, err := os.Create(absPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	WriteDump(f, reg, cache)
	if err := f.Sync(); err != nil {
		return absPath, err
	}
	return absPath, nil
}
