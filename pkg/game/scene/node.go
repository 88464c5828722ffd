package scene

import (
	"image/color"

	"worldview/pkg/game/texture"
)

// Shape is the primitive drawn for a node without a texture.
type Shape int

const (
	ShapeNone Shape = iota
	ShapeRect
	ShapeCircle
	// ShapeLine runs from (X, Y) to (X+W, Y+H).
	ShapeLine
)

// String returns the shape name.
func (s Shape) String() string {
	switch s {
	case ShapeRect:
		return "rect"
	case ShapeCircle:
		return "circle"
	case ShapeLine:
		return "line"
	default:
		return "none"
	}
}

// Node is one element of a layer's scene graph. Child positions are relative
// to their parent.
type Node struct {
	Name string
	X, Y float64
	W, H float64

	// Texture is drawn scaled to W x H. Nil or blank falls back to Shape.
	Texture texture.Handle
	Shape   Shape
	Color   color.RGBA
	Stroke  float64

	// Text is drawn at the node origin when set.
	Text      string
	TextColor color.RGBA

	Hidden bool

	// owned is released with the node; Texture handles from the cache are
	// shared and never released here.
	owned     texture.Handle
	effects   []Effect
	children  []*Node
	parent    *Node
	destroyed bool
}

// NewNode creates a named node.
func NewNode(name string) *Node {
	return &Node{Name: name}
}

// Own hands h to the node; it is released when the node is destroyed.
func (n *Node) Own(h texture.Handle) {
	n.owned = h
	n.Texture = h
}

// Add appends child to n, detaching it from any previous parent.
func (n *Node) Add(child *Node) {
	if child == nil || child == n {
		return
	}
	if child.parent != nil {
		child.parent.remove(child)
	}
	child.parent = n
	n.children = append(n.children, child)
}

func (n *Node) remove(child *Node) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return
		}
	}
}

// Children returns the child list. Callers must not modify it.
func (n *Node) Children() []*Node { return n.children }

// Parent returns the node n is attached to, or nil.
func (n *Node) Parent() *Node { return n.parent }

// Effects returns the attached effects.
func (n *Node) Effects() []Effect { return n.effects }

// Destroyed reports whether Destroy has run.
func (n *Node) Destroyed() bool { return n.destroyed }

// Walk visits n and its descendants depth-first, children before parents.
func (n *Node) Walk(fn func(*Node)) {
	for _, c := range n.children {
		c.Walk(fn)
	}
	fn(n)
}

// WalkTopDown visits n before its descendants, in draw order.
func (n *Node) WalkTopDown(fn func(node *Node, x, y float64)) {
	n.walkTopDown(0, 0, fn)
}

func (n *Node) walkTopDown(ox, oy float64, fn func(*Node, float64, float64)) {
	if n.Hidden {
		return
	}
	x, y := ox+n.X, oy+n.Y
	fn(n, x, y)
	for _, c := range n.children {
		c.walkTopDown(x, y, fn)
	}
}

// clearEffects releases and detaches n's own effects and returns how many
// were attached.
func (n *Node) clearEffects() int {
	count := len(n.effects)
	for _, e := range n.effects {
		e.Release()
	}
	n.effects = nil
	return count
}

// Destroy releases the subtree depth-first and detaches n from its parent.
// Calling it again is a no-op.
func (n *Node) Destroy() {
	if n.destroyed {
		return
	}
	for len(n.children) > 0 {
		n.children[len(n.children)-1].Destroy()
	}
	n.clearEffects()
	if n.owned != nil && !texture.IsBlank(n.owned) {
		n.owned.Release()
	}
	n.owned = nil
	n.Texture = nil
	n.destroyed = true
	if n.parent != nil {
		n.parent.remove(n)
	}
}

// Count returns the number of nodes in the subtree, n included.
func (n *Node) Count() int {
	total := 0
	n.Walk(func(*Node) { total++ })
	return total
}
