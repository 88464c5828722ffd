package ebiten

import (
	"context"
	"image"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sirupsen/logrus"

	"worldview/pkg/game/scene"
	"worldview/pkg/game/session"
	"worldview/pkg/game/texture"
)

// panel is a rectangle of the window a view is mounted into.
type panel struct {
	id     string
	rect   image.Rectangle
	canvas *canvas
}

// Size implements scene.Container.
func (p *panel) Size() (int, int) { return p.rect.Dx(), p.rect.Dy() }

// messageEntry is a notification shown in the messages pane.
type messageEntry struct {
	Text  string
	Kind  string
	Alpha float64
}

// keyRepeatInfo tracks one held key.
type keyRepeatInfo struct {
	pressedAt  time.Time
	lastRepeat time.Time
}

// loadResult is posted by the background texture loader.
type loadResult struct {
	loaded int
	err    error
}

// Options configures the host window.
type Options struct {
	Title    string
	Width    int
	Height   int
	TileSize int
	Padding  float64
	Minimap  bool
	// DumpDir receives scene dumps and screenshots.
	DumpDir string
	Logger  logrus.FieldLogger
}

// Host is the Ebiten game: it owns the window, mounts views into panels and
// drives the session and registry from Ebiten's update loop.
type Host struct {
	opts    Options
	log     logrus.FieldLogger
	now     func() time.Time
	backend *backend
	fonts   *fonts

	registry *scene.Registry
	router   *session.Router
	cache    *texture.Cache

	ctx     context.Context
	loads   chan loadResult
	loading bool

	panels      map[string]*panel
	outW, outH  int
	layoutDirty bool
	minimap     bool

	windowOpenedLogged bool
	keyStates          map[ebiten.Key]*keyRepeatInfo

	// restoreAt is set while a simulated device loss is pending.
	restoreAt     time.Time
	outlineFailed bool

	messages []messageEntry
}
