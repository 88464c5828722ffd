package devtools

import (
	"strings"

	"worldview/pkg/game/mapdata"
	"worldview/pkg/game/texture"
)

// DevMapName is the name of the developer testing map.
const DevMapName = "Dev Test Floor"

// ContainsSubstring checks if s contains substr (case-insensitive)
func ContainsSubstring(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// DevMap builds a hard-coded developer testing map for running without a
// server. The map is walled in and every entity and object texture name of
// the manifest is placed once, grouped in rows with a 2-cell margin. A
// second row of names nobody has a texture for exercises the fallback chain.
func DevMap(manifest texture.Manifest) *mapdata.Map {
	const margin = 2
	const step = margin + 1

	npcNames := placeable(manifest[texture.Entities], "player", "npc")
	objectNames := placeable(manifest[texture.Objects], "item", "object")
	unknown := []string{"dragon", "lantern"}

	widest := max(len(npcNames), len(objectNames), len(unknown), 4)
	cols := 2 + widest*step
	rows := 2 + 4*step

	m := &mapdata.Map{
		Name:    DevMapName,
		Width:   cols,
		Height:  rows,
		Grid:    make([][]int, rows),
		NPCs:    make(map[string]mapdata.Placement),
		Objects: make(map[string]mapdata.Placement),
	}

	// Walls round the edge
	for row := range m.Grid {
		m.Grid[row] = make([]int, cols)
		for col := range m.Grid[row] {
			if row == 0 || col == 0 || row == rows-1 || col == cols-1 {
				m.Grid[row][col] = mapdata.TileObstacle
			}
		}
	}

	currentRow := 2
	// Row 1: NPCs
	for i, name := range npcNames {
		m.NPCs[mapdata.FormatKey(2+i*step, currentRow)] = mapdata.Placement{Name: title(name), Sprite: name}
	}
	currentRow += step

	// Row 2: objects
	for i, name := range objectNames {
		m.Objects[mapdata.FormatKey(2+i*step, currentRow)] = mapdata.Placement{Name: title(name), Sprite: name}
	}
	currentRow += step

	// Row 3: one NPC and one object without a texture of their own
	m.NPCs[mapdata.FormatKey(2, currentRow)] = mapdata.Placement{Name: title(unknown[0])}
	m.Objects[mapdata.FormatKey(2+step, currentRow)] = mapdata.Placement{Name: title(unknown[1])}
	currentRow += step

	// Row 4: a short wall segment
	for col := 2; col < 2+3*step && col < cols-1; col++ {
		m.Grid[currentRow][col] = mapdata.TileObstacle
	}
	return m
}

// placeable drops the generic fallback names (they are not entities in their
// own right) from a manifest category.
func placeable(names []string, fallbackPrefixes ...string) []string {
	var out []string
	for _, name := range names {
		generic := false
		for _, p := range fallbackPrefixes {
			if name == p || strings.HasPrefix(name, p+"_") {
				generic = true
				break
			}
		}
		if !generic {
			out = append(out, name)
		}
	}
	return out
}

func title(name string) string {
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
