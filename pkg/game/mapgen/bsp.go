// Package mapgen generates maps for offline sessions.
package mapgen

import (
	"fmt"
	"math/rand"
	"slices"
	"strings"

	"worldview/pkg/game/mapdata"
	"worldview/pkg/game/texture"
)

// Sizing of the BSP partition.
const (
	minNodeSize = 8
	minRoomSize = 4
	roomPadding = 2
)

var roomNames = []string{
	"Great Hall", "Cellar", "Armory", "Library", "Kitchen",
	"Barracks", "Chapel", "Vault", "Crypt", "Storeroom",
	"Guardroom", "Well Room", "Forge", "Stables", "Gatehouse",
}

var roomAdjectives = []string{
	"Abandoned", "Damaged", "Dark", "Dusty", "Flooded", "Sealed",
}

// Point is a tile position.
type Point struct{ X, Y int }

// Room is a carved rectangle.
type Room struct {
	Name          string
	X, Y          int
	Width, Height int
}

// Center returns the middle tile of r.
func (r Room) Center() Point { return Point{r.X + r.Width/2, r.Y + r.Height/2} }

// Result is a generated map with the tile the player starts on.
type Result struct {
	Map   *mapdata.Map
	Start Point
	Exit  Point
	Rooms []Room
}

type node struct {
	x, y, width, height int
	left, right         *node
	room                *Room
}

// BSP splits the map area recursively, carves one room per leaf and joins
// sibling subtrees with L-shaped corridors, so every room is reachable.
type BSP struct {
	rng *rand.Rand
}

// NewBSP creates a generator. The same seed gives the same maps.
func NewBSP(seed int64) *BSP {
	return &BSP{rng: rand.New(rand.NewSource(seed))}
}

// Generate builds a map for level (1 and up; higher levels are larger).
// Entity and object names of manifest are placed in the rooms.
func (g *BSP) Generate(level int, manifest texture.Manifest) Result {
	level = max(level, 1)
	rows := min(14+level*4, 60)
	cols := min(26+level*6, 100)

	grid := make([][]int, rows)
	for r := range grid {
		grid[r] = make([]int, cols)
		for c := range grid[r] {
			grid[r][c] = mapdata.TileObstacle
		}
	}

	// One tile of wall round the edge.
	root := &node{x: 1, y: 1, width: cols - 2, height: rows - 2}
	g.split(root, max(minNodeSize-level/3, 6))
	g.createRooms(root)
	carveRooms(grid, root)
	g.connect(grid, root)

	rooms := collectRooms(root)
	start := rooms[g.rng.Intn(len(rooms))]
	res := Result{
		Map: &mapdata.Map{
			Name:    fmt.Sprintf("Deck %d", level),
			Width:   cols,
			Height:  rows,
			Grid:    grid,
			NPCs:    make(map[string]mapdata.Placement),
			Objects: make(map[string]mapdata.Placement),
		},
		Start: start.Center(),
	}
	for _, r := range rooms {
		res.Rooms = append(res.Rooms, *r)
	}
	res.Exit = furthest(grid, res.Start)
	res.Map.Objects[mapdata.FormatKey(res.Exit.X, res.Exit.Y)] = mapdata.Placement{Name: "Exit"}
	g.populate(res, manifest)
	return res
}

func (g *BSP) split(n *node, minSize int) {
	canH := n.height >= minSize*2
	canV := n.width >= minSize*2
	var horizontal bool
	switch {
	case !canH && !canV:
		return
	case n.width > n.height && canV:
		horizontal = false
	case n.height > n.width && canH:
		horizontal = true
	case canH && canV:
		horizontal = g.rng.Intn(2) == 0
	default:
		horizontal = canH
	}

	if horizontal {
		at := minSize + g.rng.Intn(n.height-minSize*2+1)
		n.left = &node{x: n.x, y: n.y, width: n.width, height: at}
		n.right = &node{x: n.x, y: n.y + at, width: n.width, height: n.height - at}
	} else {
		at := minSize + g.rng.Intn(n.width-minSize*2+1)
		n.left = &node{x: n.x, y: n.y, width: at, height: n.height}
		n.right = &node{x: n.x + at, y: n.y, width: n.width - at, height: n.height}
	}
	g.split(n.left, minSize)
	g.split(n.right, minSize)
}

func (g *BSP) createRooms(n *node) {
	if n.left != nil || n.right != nil {
		if n.left != nil {
			g.createRooms(n.left)
		}
		if n.right != nil {
			g.createRooms(n.right)
		}
		return
	}

	w := min(minRoomSize+g.rng.Intn(max(n.width-minRoomSize-roomPadding+1, 1)), n.width-roomPadding)
	h := min(minRoomSize+g.rng.Intn(max(n.height-minRoomSize-roomPadding+1, 1)), n.height-roomPadding)
	w, h = max(w, 1), max(h, 1)
	n.room = &Room{
		Name:   roomAdjectives[g.rng.Intn(len(roomAdjectives))] + " " + roomNames[g.rng.Intn(len(roomNames))],
		X:      n.x + g.rng.Intn(max(n.width-w, 1)),
		Y:      n.y + g.rng.Intn(max(n.height-h, 1)),
		Width:  w,
		Height: h,
	}
}

func carveRooms(grid [][]int, n *node) {
	if n.room != nil {
		for y := n.room.Y; y < n.room.Y+n.room.Height; y++ {
			for x := n.room.X; x < n.room.X+n.room.Width; x++ {
				grid[y][x] = mapdata.TileWalkable
			}
		}
	}
	if n.left != nil {
		carveRooms(grid, n.left)
	}
	if n.right != nil {
		carveRooms(grid, n.right)
	}
}

func (g *BSP) connect(grid [][]int, n *node) {
	if n.left == nil || n.right == nil {
		return
	}
	a, b := g.pickRoom(n.left), g.pickRoom(n.right)
	if a != nil && b != nil {
		ca, cb := a.Center(), b.Center()
		if g.rng.Intn(2) == 0 {
			carveRow(grid, ca.Y, ca.X, cb.X)
			carveCol(grid, cb.X, ca.Y, cb.Y)
		} else {
			carveCol(grid, ca.X, ca.Y, cb.Y)
			carveRow(grid, cb.Y, ca.X, cb.X)
		}
	}
	g.connect(grid, n.left)
	g.connect(grid, n.right)
}

func carveRow(grid [][]int, y, x0, x1 int) {
	for x := min(x0, x1); x <= max(x0, x1); x++ {
		grid[y][x] = mapdata.TileWalkable
	}
}

func carveCol(grid [][]int, x, y0, y1 int) {
	for y := min(y0, y1); y <= max(y0, y1); y++ {
		grid[y][x] = mapdata.TileWalkable
	}
}

// pickRoom returns a room from the subtree, picking a side at random.
func (g *BSP) pickRoom(n *node) *Room {
	if n.room != nil {
		return n.room
	}
	var l, r *Room
	if n.left != nil {
		l = g.pickRoom(n.left)
	}
	if n.right != nil {
		r = g.pickRoom(n.right)
	}
	if l != nil && r != nil {
		if g.rng.Intn(2) == 0 {
			return l
		}
		return r
	}
	if l != nil {
		return l
	}
	return r
}

func collectRooms(n *node) []*Room {
	var rooms []*Room
	if n.room != nil {
		rooms = append(rooms, n.room)
	}
	if n.left != nil {
		rooms = append(rooms, collectRooms(n.left)...)
	}
	if n.right != nil {
		rooms = append(rooms, collectRooms(n.right)...)
	}
	return rooms
}

// furthest returns the walkable tile with the longest path from start.
func furthest(grid [][]int, start Point) Point {
	dist := map[Point]int{start: 0}
	queue := []Point{start}
	best := start
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if dist[p] > dist[best] {
			best = p
		}
		for _, d := range [...]Point{{0, -1}, {1, 0}, {0, 1}, {-1, 0}} {
			n := Point{p.X + d.X, p.Y + d.Y}
			if n.Y < 0 || n.Y >= len(grid) || n.X < 0 || n.X >= len(grid[n.Y]) {
				continue
			}
			if _, seen := dist[n]; seen || grid[n.Y][n.X] != mapdata.TileWalkable {
				continue
			}
			dist[n] = dist[p] + 1
			queue = append(queue, n)
		}
	}
	return best
}

// populate puts one NPC and one object from the manifest in each room other
// than the start room, on free tiles.
func (g *BSP) populate(res Result, manifest texture.Manifest) {
	npcs := specific(manifest[texture.Entities], "player", "npc")
	objects := specific(manifest[texture.Objects], "item", "object")
	taken := map[Point]bool{res.Start: true, res.Exit: true}

	free := func(r Room) (Point, bool) {
		for range 8 {
			p := Point{r.X + g.rng.Intn(r.Width), r.Y + g.rng.Intn(r.Height)}
			if !taken[p] {
				taken[p] = true
				return p, true
			}
		}
		return Point{}, false
	}

	for _, r := range res.Rooms {
		if r.Center() == res.Start {
			continue
		}
		if len(npcs) > 0 {
			if p, ok := free(r); ok {
				name := npcs[g.rng.Intn(len(npcs))]
				res.Map.NPCs[mapdata.FormatKey(p.X, p.Y)] = mapdata.Placement{Name: r.Name + " " + name, Sprite: name}
			}
		}
		if len(objects) > 0 {
			if p, ok := free(r); ok {
				name := objects[g.rng.Intn(len(objects))]
				res.Map.Objects[mapdata.FormatKey(p.X, p.Y)] = mapdata.Placement{Name: name, Sprite: name}
			}
		}
	}
}

// specific drops the fallback names of a category and the player's own.
func specific(names []string, generic ...string) []string {
	var out []string
	for _, name := range names {
		if strings.HasSuffix(name, "_default") || slices.Contains(generic, name) {
			continue
		}
		out = append(out, name)
	}
	return out
}
