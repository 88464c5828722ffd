package ebiten

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sirupsen/logrus"

	"worldview/pkg/game/renderer"
	"worldview/pkg/game/scene"
	"worldview/pkg/game/session"
	"worldview/pkg/game/texture"
)

// New creates a host. Bind must be called before Run.
func New(opts Options) (*Host, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("window size %dx%d: must be positive", opts.Width, opts.Height)
	}
	if opts.Title == "" {
		opts.Title = "worldview"
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	f, err := loadFonts()
	if err != nil {
		return nil, err
	}
	return &Host{
		opts:      opts,
		log:       opts.Logger,
		now:       time.Now,
		backend:   newBackend(),
		fonts:     f,
		loads:     make(chan loadResult, 1),
		panels:    make(map[string]*panel),
		outW:      opts.Width,
		outH:      opts.Height,
		minimap:   opts.Minimap,
		keyStates: make(map[ebiten.Key]*keyRepeatInfo),
	}, nil
}

// Backend returns the canvas factory to build the scene registry with.
func (h *Host) Backend() scene.Backend { return h.backend }

// Bind connects the host to the scene registry, the session router and the
// texture cache.
func (h *Host) Bind(reg *scene.Registry, router *session.Router, cache *texture.Cache) {
	h.registry = reg
	h.router = router
	h.cache = cache
}

// Run opens the window and blocks until it is closed or ctx is cancelled.
// The main view, and the minimap when enabled, are mounted first.
func (h *Host) Run(ctx context.Context) error {
	if h.registry == nil || h.router == nil {
		return errors.New("host is not bound")
	}
	h.ctx = ctx
	h.applyLayout()
	if err := h.Mount(renderer.ViewMain); err != nil {
		return err
	}
	if h.minimap {
		if err := h.Mount(renderer.ViewMinimap); err != nil {
			h.log.WithError(err).Warn("Minimap not mounted")
		}
	}
	h.Reload()

	ebiten.SetWindowSize(h.opts.Width, h.opts.Height)
	ebiten.SetWindowTitle(h.opts.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	err := ebiten.RunGame(h)
	h.registry.CleanupAll()
	h.backend.dev.ReleasePool()
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

// Mount creates the surface for view id in a panel of its own.
func (h *Host) Mount(id string) error {
	p, ok := h.panels[id]
	if !ok {
		p = &panel{id: id, rect: h.panelRect(id)}
		h.panels[id] = p
	}
	cfg := scene.Config{ID: id, TileSize: h.opts.TileSize, Padding: h.opts.Padding}
	if id == renderer.ViewMinimap {
		cfg.Background = colorMinimapBg
		cfg.Padding = minimapPadding
	}
	if _, err := h.registry.Create(p, cfg); err != nil {
		delete(h.panels, id)
		return fmt.Errorf("mount %s: %w", id, err)
	}
	h.log.WithField("view", id).Info("View mounted")
	h.router.Mounted(id)
	return nil
}

// Unmount destroys the surface of view id and drops its panel.
func (h *Host) Unmount(id string) bool {
	if _, ok := h.panels[id]; !ok {
		return false
	}
	h.registry.Destroy(id)
	delete(h.panels, id)
	h.log.WithField("view", id).Info("View unmounted")
	return true
}

// Mounted reports whether view id has a panel.
func (h *Host) Mounted(id string) bool {
	_, ok := h.panels[id]
	return ok
}

// Reload loads every texture category in the background. The result is
// picked up by Update, which refreshes the surfaces.
func (h *Host) Reload() {
	if h.loading || h.cache == nil {
		return
	}
	ctx := h.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	h.loading = true
	go func() {
		n, err := h.cache.LoadAll(ctx)
		h.loads <- loadResult{loaded: n, err: err}
	}()
}

// panelRect returns the window rectangle of view id for the current layout.
func (h *Host) panelRect(id string) image.Rectangle {
	main, mini := layoutPanels(h.outW, h.outH)
	if id == renderer.ViewMinimap {
		return mini
	}
	return main
}

// applyLayout moves every panel to the current layout.
func (h *Host) applyLayout() {
	for id, p := range h.panels {
		p.rect = h.panelRect(id)
	}
	h.layoutDirty = false
}

// layoutPanels splits a window of w x h into the main view above the status
// bar and a square minimap in the top-right corner of it.
func layoutPanels(w, h int) (main, minimap image.Rectangle) {
	w, h = max(w, 1), max(h, 1)
	mainH := max(h-statusBarHeight, 1)
	main = image.Rect(0, 0, w, mainH)

	size := max(min(w, mainH)/4, minimapMinSize)
	size = min(size, w-2*minimapMargin, mainH-2*minimapMargin)
	if size < minimapMinSize {
		return main, image.Rectangle{}
	}
	minimap = image.Rect(w-minimapMargin-size, minimapMargin, w-minimapMargin, minimapMargin+size)
	return main, minimap
}

// Layout implements ebiten.Game. The window is drawn 1:1.
func (h *Host) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth != h.outW || outsideHeight != h.outH {
		h.outW, h.outH = outsideWidth, outsideHeight
		h.layoutDirty = true
	}
	return outsideWidth, outsideHeight
}
