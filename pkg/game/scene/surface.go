package scene

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/sirupsen/logrus"

	"worldview/pkg/engine/viewport"
	"worldview/pkg/engine/world"
	"worldview/pkg/game/mapdata"
	"worldview/pkg/game/texture"
)

// State is a surface's lifecycle state.
type State int

const (
	StateInitializing State = iota
	StateReady
	StateDestroyed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrNotReady is returned by surface operations outside StateReady.
var ErrNotReady = errors.New("surface not ready")

// Default colours of the map visuals.
var (
	DefaultBackground = color.RGBA{R: 0x22, G: 0x26, B: 0x2e, A: 0xff}
	ObstacleColor     = color.RGBA{R: 0x0c, G: 0x0e, B: 0x12, A: 0xff}
	GridLineColor     = color.RGBA{R: 0x48, G: 0x50, B: 0x5c, A: 0xff}
)

// Config describes a surface to create.
type Config struct {
	ID         string
	Width      int
	Height     int
	Background color.RGBA
	// TileSize and Padding default to the viewport defaults when zero.
	TileSize int
	Padding  float64
}

func (c Config) withDefaults() Config {
	if c.TileSize <= 0 {
		c.TileSize = viewport.DefaultTileSize
	}
	if c.Padding <= 0 {
		c.Padding = viewport.DefaultPadding
	}
	if c.Background.A == 0 {
		c.Background = DefaultBackground
	}
	return c
}

// Surface is one rendering target: three aligned layers drawn into one
// canvas.
type Surface struct {
	cfg       Config
	container Container
	canvas    Canvas
	guard     *Guard
	cache     *texture.Cache
	log       logrus.FieldLogger

	background *Layer
	grid       *Layer
	entity     *Layer
	entities   *EntityRegistry

	lastMap    *mapdata.Map
	cols, rows int
	transform  viewport.Transform
	focus      string
	state      State
	deviceLost bool
}

func newSurface(cfg Config, container Container, guard *Guard, cache *texture.Cache, log logrus.FieldLogger) *Surface {
	cfg = cfg.withDefaults()
	s := &Surface{
		cfg:        cfg,
		container:  container,
		guard:      guard,
		cache:      cache,
		log:        log.WithField("surface", cfg.ID),
		background: newLayer(LayerBackground),
		grid:       newLayer(LayerGrid),
		entity:     newLayer(LayerEntity),
		transform:  viewport.Identity(),
		state:      StateInitializing,
	}
	s.entities = NewEntityRegistry(s.entity, cache, cfg.TileSize, s.log)
	return s
}

// attach binds the canvas and makes the surface ready.
func (s *Surface) attach(c Canvas) {
	s.canvas = c
	if s.guard != nil {
		s.guard.Register(s)
	}
	s.applyTransform(viewport.Identity())
	s.state = StateReady
}

// ID returns the surface id.
func (s *Surface) ID() string { return s.cfg.ID }

// Config returns the effective configuration.
func (s *Surface) Config() Config { return s.cfg }

// State returns the lifecycle state.
func (s *Surface) State() State { return s.state }

// Ready reports whether the surface accepts operations.
func (s *Surface) Ready() bool { return s.state == StateReady }

// Canvas returns the bound canvas, nil before attach and after destroy.
func (s *Surface) Canvas() Canvas { return s.canvas }

// Layers returns the layers in draw order.
func (s *Surface) Layers() []*Layer {
	return []*Layer{s.background, s.grid, s.entity}
}

// Layer returns a layer by name.
func (s *Surface) Layer(name string) *Layer {
	for _, l := range s.Layers() {
		if l.name == name {
			return l
		}
	}
	return nil
}

// Entities returns the entity registry.
func (s *Surface) Entities() *EntityRegistry { return s.entities }

// Transform returns the view transform shared by the layers.
func (s *Surface) Transform() viewport.Transform { return s.transform }

// MapSize returns the loaded map size in tiles.
func (s *Surface) MapSize() (cols, rows int) { return s.cols, s.rows }

// Map returns the loaded map, nil before the first LoadMap.
func (s *Surface) Map() *mapdata.Map { return s.lastMap }

// MapName returns the name of the loaded map.
func (s *Surface) MapName() string {
	if s.lastMap == nil {
		return ""
	}
	return s.lastMap.Name
}

// PhysicalSize returns the canvas size in pixels.
func (s *Surface) PhysicalSize() viewport.Size {
	if s.canvas == nil {
		return viewport.Size{}
	}
	w, h := s.canvas.Size()
	return viewport.Size{W: float64(w), H: float64(h)}
}

// Focus returns the entity key the view is centred on, if any.
func (s *Surface) Focus() string { return s.focus }

// DeviceLost reports whether the surface is waiting for a device restore.
func (s *Surface) DeviceLost() bool { return s.deviceLost }

// LoadMap validates m and rebuilds the surface from it. It reports false
// when the map is rejected or the surface is not ready.
func (s *Surface) LoadMap(m *mapdata.Map) bool {
	if !s.Ready() {
		s.log.WithField("state", s.state).Warn("Map load on a surface that is not ready")
		return false
	}
	warnings, err := m.Validate()
	if err != nil {
		s.log.WithError(err).Error("Rejected map data")
		return false
	}
	for _, w := range warnings {
		s.log.WithField("map", m.Name).Warn(w)
	}

	player, hadPlayer := s.entities.Player()
	var px, py int
	var pname string
	if hadPlayer {
		px, py, pname = player.X, player.Y, player.Name
	}
	s.entities.RemoveAll()
	s.entity.Clear()

	s.lastMap = m
	s.cols, s.rows = m.Width, m.Height
	s.buildStatic()

	seeded := s.seed(m)
	if hadPlayer {
		s.entities.AddPlayer(px, py, pname)
	}

	s.focus = ""
	s.fit()

	s.log.WithFields(logrus.Fields{
		"map":      m.Name,
		"cols":     s.cols,
		"rows":     s.rows,
		"entities": seeded,
		"scale":    s.transform.Scale,
	}).Info("Map loaded")
	return true
}

// buildStatic repopulates the background and grid layers from the last map.
func (s *Surface) buildStatic() {
	s.background.Clear()
	s.grid.Clear()
	if s.lastMap == nil {
		return
	}
	m := s.lastMap
	ts := float64(s.cfg.TileSize)
	mapW, mapH := float64(s.cols)*ts, float64(s.rows)*ts

	bg := NewNode("background")
	bg.W, bg.H = mapW, mapH
	if h, ok := s.lookupTexture(texture.Tiles, m.BackgroundImage); ok {
		bg.Texture = h
	} else {
		if m.BackgroundImage != "" {
			s.log.WithField("image", m.BackgroundImage).Debug("Background image not loaded, using flat colour")
		}
		bg.Shape, bg.Color = ShapeRect, s.cfg.Background
	}
	s.background.Add(bg)

	wall, hasWall := s.lookupTexture(texture.Tiles, "wall")
	m.WorldGrid().ForEachCell(func(row, col int, cell *world.Cell) {
		if !cell.Obstacle {
			return
		}
		n := NewNode(mapdata.FormatKey(col, row))
		n.X, n.Y = viewport.TileToPixel(col, row, s.cfg.TileSize)
		n.W, n.H = ts, ts
		if hasWall {
			n.Texture = wall
		} else {
			n.Shape, n.Color = ShapeRect, ObstacleColor
		}
		bg.Add(n)
	})

	for c := 0; c <= s.cols; c++ {
		line := NewNode(fmt.Sprintf("col%d", c))
		line.Shape, line.Color, line.Stroke = ShapeLine, GridLineColor, 1
		line.X, line.H = float64(c)*ts, mapH
		s.grid.Add(line)
	}
	for r := 0; r <= s.rows; r++ {
		line := NewNode(fmt.Sprintf("row%d", r))
		line.Shape, line.Color, line.Stroke = ShapeLine, GridLineColor, 1
		line.Y, line.W = float64(r)*ts, mapW
		s.grid.Add(line)
	}
}

func (s *Surface) lookupTexture(cat texture.Category, name string) (texture.Handle, bool) {
	if s.cache == nil || name == "" {
		return nil, false
	}
	h, ok := s.cache.Lookup(cat, name)
	if !ok || texture.IsBlank(h) {
		return nil, false
	}
	return h, true
}

// seed places the map's static NPCs and objects.
func (s *Surface) seed(m *mapdata.Map) int {
	npcs, badNPCs := m.NPCPlacements()
	objects, badObjects := m.ObjectPlacements()
	for _, key := range append(badNPCs, badObjects...) {
		s.log.WithField("key", key).Warn("Skipping placement with malformed key")
	}

	batch := make([]Entity, 0, len(npcs)+len(objects))
	for _, p := range npcs {
		batch = append(batch, Entity{ID: mapdata.FormatKey(p.X, p.Y), Type: string(KindNPC), Name: p.Name, Sprite: p.Sprite}.At(p.X, p.Y))
	}
	for _, p := range objects {
		batch = append(batch, Entity{ID: mapdata.FormatKey(p.X, p.Y), Type: string(KindObject), Name: p.Name, Sprite: p.Sprite}.At(p.X, p.Y))
	}
	return s.entities.DiffApply(batch)
}

// ApplyEntities diffs the batch into the entity layer.
func (s *Surface) ApplyEntities(entities []Entity) bool {
	if !s.Ready() {
		return false
	}
	s.entities.DiffApply(entities)
	s.refocus()
	return true
}

// Resize re-reads the container size, resizes the canvas and recomputes the
// view transform for all layers at once.
func (s *Surface) Resize() error {
	if !s.Ready() {
		return fmt.Errorf("%w: %s", ErrNotReady, s.state)
	}
	w, h := s.container.Size()
	if w <= 0 || h <= 0 {
		w, h = viewport.DefaultWidth, viewport.DefaultHeight
	}
	s.canvas.Resize(w, h)
	if s.focus != "" && s.refocus() {
		return nil
	}
	s.fit()
	return nil
}

// CenterOnEntity centres the view on the entity's tile, keeping the scale.
// The view keeps following the entity until FitToView or the next map load.
func (s *Surface) CenterOnEntity(key string) bool {
	if !s.Ready() {
		return false
	}
	v, ok := s.entities.Get(key)
	if !ok {
		return false
	}
	s.focus = key
	s.applyTransform(viewport.CenterOn(v.X, v.Y, s.cfg.TileSize, s.transform.Scale, s.PhysicalSize()))
	return true
}

// FitToView drops any entity focus and fits the whole map.
func (s *Surface) FitToView() {
	if !s.Ready() {
		return
	}
	s.focus = ""
	s.fit()
}

// refocus re-centres on the focused entity; false when there is none.
func (s *Surface) refocus() bool {
	if s.focus == "" {
		return false
	}
	if !s.CenterOnEntity(s.focus) {
		s.focus = ""
		return false
	}
	return true
}

func (s *Surface) fit() {
	if s.cols <= 0 || s.rows <= 0 {
		s.applyTransform(viewport.Identity())
		return
	}
	mapSize := viewport.MapSize(s.cols, s.rows, s.cfg.TileSize)
	s.applyTransform(viewport.Fit(mapSize, s.PhysicalSize(), s.cfg.Padding))
}

// applyTransform sets the same transform on every layer in one step.
func (s *Surface) applyTransform(t viewport.Transform) {
	if !t.Valid() {
		s.log.WithField("transform", t).Warn("Ignoring invalid view transform")
		return
	}
	s.transform = t
	for _, l := range s.Layers() {
		l.setTransform(t)
	}
}

// ApplyEffect attaches e to the entity's sprite through the guard.
func (s *Surface) ApplyEffect(key string, e Effect) bool {
	v, ok := s.entities.Get(key)
	if !ok || !s.Ready() || s.guard == nil {
		if e != nil {
			e.Release()
		}
		return false
	}
	return s.guard.ApplyEffect(v.Sprite, e, s)
}

// RefreshTextures re-resolves map and entity textures, for example after
// a category finished loading or the cache was cleared.
func (s *Surface) RefreshTextures() {
	if !s.Ready() {
		return
	}
	s.buildStatic()
	changed := s.entities.Refresh()
	s.log.WithField("changed", changed).Debug("Textures refreshed")
}

// HandleDeviceLost is called by the guard after effects were stripped.
func (s *Surface) HandleDeviceLost() {
	s.deviceLost = true
}

// HandleDeviceRestored rebuilds texture references against the new device.
func (s *Surface) HandleDeviceRestored() {
	if !s.deviceLost {
		return
	}
	s.deviceLost = false
	s.RefreshTextures()
}

// Destroy tears the surface down: guard teardown, layers, canvas. It is
// safe to call more than once.
func (s *Surface) Destroy() {
	if s.state == StateDestroyed {
		return
	}
	if s.guard != nil {
		if err := s.guard.PrepareTeardown(s); err != nil {
			s.log.WithError(err).Debug("Teardown on a lost device")
		}
		s.guard.Unregister(s)
	}
	s.entities.RemoveAll()
	s.entity.destroy()
	s.grid.destroy()
	s.background.destroy()
	if s.canvas != nil {
		s.canvas.Detach()
		s.canvas.Release()
		s.canvas = nil
	}
	s.lastMap = nil
	s.state = StateDestroyed
	s.log.Debug("Surface destroyed")
}
