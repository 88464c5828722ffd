package devtools

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"worldview/pkg/game/scene"
)

// SaveScreenshotHTML saves the surface's map and entities as an HTML file in
// dir and returns its path.
func SaveScreenshotHTML(dir string, s *scene.Surface, now time.Time) (string, error) {
	if s == nil || s.Map() == nil {
		return "", fmt.Errorf("no map to capture")
	}
	filename := filepath.Join(dir, fmt.Sprintf("screenshot-%s-%s.html", s.ID(), now.Format("20060102-150405")))

	var b strings.Builder
	b.WriteString(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>worldview - Screenshot</title>
    <style>
        body {
            background-color: #1a1a2e;
            color: #eee;
            font-family: 'Courier New', monospace;
            padding: 20px;
        }
        .header {
            color: #bb86fc;
            font-size: 18px;
            margin-bottom: 10px;
        }
        .meta { color: #888; margin-bottom: 20px; }
        .map-container {
            background-color: #0f0f1a;
            padding: 20px;
            border-radius: 8px;
            display: inline-block;
            margin: 20px 0;
        }
        .map-row {
            white-space: pre;
            line-height: 1.2;
            font-size: 16px;
        }
        .player { color: #2ecc40; font-weight: bold; }
        .npc { color: #1e6fff; font-weight: bold; }
        .object { color: #e02525; }
        .wall { color: #666; }
        .floor { color: #444; }
        .entities { margin-top: 20px; color: #888; }
        .entity { margin: 3px 0; }
    </style>
</head>
<body>
`)

	cols, rows := s.MapSize()
	t := s.Transform()
	b.WriteString(fmt.Sprintf(`    <div class="header">%s</div>`+"\n", html.EscapeString(s.MapName())))
	b.WriteString(fmt.Sprintf(`    <div class="meta">surface %s, %dx%d tiles, scale %.3f</div>`+"\n",
		html.EscapeString(s.ID()), cols, rows, t.Scale))

	b.WriteString(`    <div class="map-container">` + "\n")
	grid := s.Map().WorldGrid()
	occ := occupants(s)
	for row := 0; row < grid.Rows(); row++ {
		b.WriteString(`        <div class="map-row">`)
		for col := 0; col < grid.Cols(); col++ {
			sym := cellSymbol(grid.GetCell(row, col), occ[[2]int{col, row}])
			b.WriteString(fmt.Sprintf(`<span class="%s">%c</span>`, symbolClass(sym), sym))
		}
		b.WriteString("</div>\n")
	}
	b.WriteString(`    </div>` + "\n")

	b.WriteString(`    <div class="entities">` + "\n")
	reg := s.Entities()
	for _, key := range reg.Keys() {
		v, _ := reg.Get(key)
		tex := v.Resolved
		if v.Placeholder() {
			tex = "placeholder"
		}
		b.WriteString(fmt.Sprintf(`        <div class="entity"><span class="%s">%s</span> at %d,%d (%s)</div>`+"\n",
			v.Kind, html.EscapeString(v.Name), v.X, v.Y, tex))
	}
	b.WriteString(`    </div>` + "\n")

	b.WriteString(`</body>
</html>
`)

	if err := os.WriteFile(filename, []byte(b.String()), 0o644); err != nil {
		return "", err
	}
	return filename, nil
}

func symbolClass(r rune) string {
	switch r {
	case '@':
		return "player"
	case 'N':
		return "npc"
	case 'o':
		return "object"
	case '#':
		return "wall"
	default:
		return "floor"
	}
}
