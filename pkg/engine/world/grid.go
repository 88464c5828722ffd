// Package world holds the walkability grid of a tile map.
package world

// Cell is one tile.
type Cell struct {
	Row, Col int
	Obstacle bool
}

// Grid is a rows x cols block of cells, addressed row first.
type Grid struct {
	cells      [][]Cell
	rows, cols int
}

// NewGrid creates a grid of walkable cells. Non-positive sizes give an
// empty grid.
func NewGrid(rows, cols int) *Grid {
	rows, cols = max(rows, 0), max(cols, 0)
	g := &Grid{rows: rows, cols: cols, cells: make([][]Cell, rows)}
	for row := range g.cells {
		g.cells[row] = make([]Cell, cols)
		for col := range g.cells[row] {
			g.cells[row][col] = Cell{Row: row, Col: col}
		}
	}
	return g
}

// FromValues builds a grid from row-major tile values where 1 marks an
// obstacle and anything else is walkable. Rows shorter than cols are padded
// with walkable cells; missing rows are walkable too.
func FromValues(values [][]int, rows, cols int) *Grid {
	g := NewGrid(rows, cols)
	for row := 0; row < g.rows && row < len(values); row++ {
		for col := 0; col < g.cols && col < len(values[row]); col++ {
			g.cells[row][col].Obstacle = values[row][col] == 1
		}
	}
	return g
}

func (g *Grid) Rows() int { return g.rows }
func (g *Grid) Cols() int { return g.cols }

// GetCell returns the cell at row, col, or nil outside the grid.
func (g *Grid) GetCell(row, col int) *Cell {
	if g == nil || row < 0 || row >= g.rows || col < 0 || col >= g.cols {
		return nil
	}
	return &g.cells[row][col]
}

// IsWalkable reports whether row, col is inside the grid and not an obstacle.
func (g *Grid) IsWalkable(row, col int) bool {
	c := g.GetCell(row, col)
	return c != nil && !c.Obstacle
}

// Step moves one tile from x, y in direction d. ok is false when the target
// is outside the grid or an obstacle.
func (g *Grid) Step(x, y int, d Direction) (nx, ny int, ok bool) {
	dx, dy := d.Delta()
	if dx == 0 && dy == 0 {
		return x, y, false
	}
	nx, ny = x+dx, y+dy
	if !g.IsWalkable(ny, nx) {
		return x, y, false
	}
	return nx, ny, true
}

// ForEachCell calls fn for every cell, row by row.
func (g *Grid) ForEachCell(fn func(row, col int, cell *Cell)) {
	for row := range g.cells {
		for col := range g.cells[row] {
			fn(row, col, &g.cells[row][col])
		}
	}
}

// ObstacleCount returns how many cells are obstacles.
func (g *Grid) ObstacleCount() int {
	n := 0
	g.ForEachCell(func(_, _ int, cell *Cell) {
		if cell.Obstacle {
			n++
		}
	})
	return n
}
