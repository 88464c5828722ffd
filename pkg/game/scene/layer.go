package scene

import "worldview/pkg/engine/viewport"

// Layer names in draw order.
const (
	LayerBackground = "background"
	LayerGrid       = "grid"
	LayerEntity     = "entity"
)

// Layer is an ordered sub-graph of a surface with its own view transform.
type Layer struct {
	name      string
	root      *Node
	transform viewport.Transform
}

func newLayer(name string) *Layer {
	return &Layer{
		name:      name,
		root:      NewNode(name),
		transform: viewport.Identity(),
	}
}

// Name returns the layer name.
func (l *Layer) Name() string { return l.name }

// Root returns the layer's root node.
func (l *Layer) Root() *Node { return l.root }

// Add attaches n to the layer root.
func (l *Layer) Add(n *Node) { l.root.Add(n) }

// Len returns the number of top-level nodes.
func (l *Layer) Len() int { return len(l.root.children) }

// Transform returns the layer's view transform.
func (l *Layer) Transform() viewport.Transform { return l.transform }

func (l *Layer) setTransform(t viewport.Transform) { l.transform = t }

// Clear destroys every node on the layer but keeps the layer itself.
func (l *Layer) Clear() {
	for len(l.root.children) > 0 {
		l.root.children[len(l.root.children)-1].Destroy()
	}
}

func (l *Layer) destroy() {
	l.root.Destroy()
}
