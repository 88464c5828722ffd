package world

// Direction is a cardinal step on the grid. The zero value is no direction.
type Direction int

const (
	None Direction = iota
	North
	East
	South
	West
)

// FromDelta returns the direction of a one-tile step, or None.
func FromDelta(dx, dy int) Direction {
	switch {
	case dx == 0 && dy == -1:
		return North
	case dx == 1 && dy == 0:
		return East
	case dx == 0 && dy == 1:
		return South
	case dx == -1 && dy == 0:
		return West
	}
	return None
}

// Name is the lowercase name used in move commands.
func (d Direction) Name() string {
	switch d {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	}
	return ""
}

// Delta returns the x and y offset of one step.
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case North:
		return 0, -1
	case East:
		return 1, 0
	case South:
		return 0, 1
	case West:
		return -1, 0
	}
	return 0, 0
}
