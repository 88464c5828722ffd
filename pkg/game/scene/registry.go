package scene

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/zyedidia/generic/mapset"

	"worldview/pkg/engine/retry"
	"worldview/pkg/game/mapdata"
	"worldview/pkg/game/texture"
)

var (
	ErrInvalidContainer  = errors.New("container is missing")
	ErrInvalidDimensions = errors.New("surface has no usable size")
	ErrMissingID         = errors.New("surface id is empty")
)

// ConfigurationError rejects a Create call. Nothing is registered.
type ConfigurationError struct {
	ID  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("surface %q: %v", e.ID, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Registry is the directory of live surfaces. One instance is created at
// startup and passed to whoever needs it.
type Registry struct {
	backend Backend
	guard   *Guard
	cache   *texture.Cache
	log     logrus.FieldLogger

	surfaces map[string]*Surface
	// ids destroyed on purpose; retries for them are dropped
	destroyed mapset.Set[string]

	dispatcher  *retry.Dispatcher
	policy      retry.Policy
	clock       retry.Clock
	tolerant    bool
	onAbandoned func(id string, err error)
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithTolerantLookup makes id-based operations use Resolve instead of the
// strict exact match.
func WithTolerantLookup() RegistryOption {
	return func(r *Registry) { r.tolerant = true }
}

// WithRegistryLogger sets the logger.
func WithRegistryLogger(l logrus.FieldLogger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithRetryPolicy overrides the policy for deferred entity updates.
func WithRetryPolicy(p retry.Policy) RegistryOption {
	return func(r *Registry) { r.policy = p }
}

// WithClock overrides the retry clock.
func WithClock(c retry.Clock) RegistryOption {
	return func(r *Registry) { r.clock = c }
}

// OnAbandoned registers a callback for deferred updates that ran out of
// attempts.
func OnAbandoned(fn func(id string, err error)) RegistryOption {
	return func(r *Registry) { r.onAbandoned = fn }
}

// NewRegistry creates an empty registry.
func NewRegistry(backend Backend, guard *Guard, cache *texture.Cache, opts ...RegistryOption) *Registry {
	r := &Registry{
		backend:   backend,
		guard:     guard,
		cache:     cache,
		log:       logrus.StandardLogger(),
		surfaces:  make(map[string]*Surface),
		destroyed: mapset.New[string](),
		policy:    retry.DefaultPolicy(),
		clock:     retry.SystemClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.guard == nil {
		r.guard = NewGuard(r.log)
	}
	r.dispatcher = retry.NewDispatcher(r.policy, retry.WithClock(r.clock))
	return r
}

// Guard returns the device guard shared by all surfaces.
func (r *Registry) Guard() *Guard { return r.guard }

// Len returns the number of live surfaces.
func (r *Registry) Len() int { return len(r.surfaces) }

// IDs returns the live surface ids, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.surfaces))
	for id := range r.surfaces {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Create builds a surface for container. A live surface with the same id is
// destroyed first.
func (r *Registry) Create(container Container, cfg Config) (*Surface, error) {
	entry := r.log.WithField("surface", cfg.ID)
	fail := func(err error) (*Surface, error) {
		cerr := &ConfigurationError{ID: cfg.ID, Err: err}
		entry.WithError(err).Error("Cannot create surface")
		return nil, cerr
	}

	if cfg.ID == "" {
		return fail(ErrMissingID)
	}
	if container == nil {
		return fail(ErrInvalidContainer)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		w, h := container.Size()
		if w <= 0 || h <= 0 {
			return fail(fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, cfg.Width, cfg.Height))
		}
		cfg.Width, cfg.Height = w, h
	}

	if _, exists := r.surfaces[cfg.ID]; exists {
		entry.Info("Replacing existing surface")
		r.Destroy(cfg.ID)
	}

	s := newSurface(cfg, container, r.guard, r.cache, r.log)
	canvas, err := r.backend.NewCanvas(container, cfg.Width, cfg.Height)
	if err != nil {
		entry.WithError(err).Error("Cannot create canvas")
		return nil, fmt.Errorf("surface %q: canvas: %w", cfg.ID, err)
	}
	s.attach(canvas)

	r.surfaces[cfg.ID] = s
	r.destroyed.Remove(cfg.ID)
	entry.WithFields(logrus.Fields{
		"width":  cfg.Width,
		"height": cfg.Height,
	}).Info("Surface created")
	return s, nil
}

// Surface returns the surface with exactly this id.
func (r *Registry) Surface(id string) (*Surface, bool) {
	s, ok := r.surfaces[id]
	return s, ok
}

// Resolve is the best-effort lookup: exact id, then the only id that
// contains or is contained in id, then the only surface if there is just one.
func (r *Registry) Resolve(id string) (*Surface, bool) {
	if s, ok := r.surfaces[id]; ok {
		return s, true
	}
	if id != "" {
		var match *Surface
		matches := 0
		for existing, s := range r.surfaces {
			if strings.Contains(existing, id) || strings.Contains(id, existing) {
				match = s
				matches++
			}
		}
		if matches == 1 {
			return match, true
		}
	}
	if len(r.surfaces) == 1 {
		for _, s := range r.surfaces {
			return s, true
		}
	}
	return nil, false
}

func (r *Registry) lookup(id string) (*Surface, bool) {
	if r.tolerant {
		return r.Resolve(id)
	}
	return r.Surface(id)
}

func (r *Registry) ready(id string) (*Surface, bool) {
	s, ok := r.lookup(id)
	if !ok || !s.Ready() {
		return nil, false
	}
	return s, true
}

// UpdateEntities applies an entity batch to a surface. If the surface does
// not exist yet the batch is retried from Tick. Batches for surfaces that
// were destroyed on purpose are dropped. Each batch is a full list, so a
// newer batch supersedes any deferred one for the same id. It reports
// whether the batch was applied right away.
func (r *Registry) UpdateEntities(id string, entities []Entity) bool {
	entry := r.log.WithField("surface", id)
	if s, ok := r.ready(id); ok {
		if n := r.dispatcher.CancelTarget(id); n > 0 {
			entry.WithField("superseded", n).Debug("Dropping deferred entity updates")
		}
		return s.ApplyEntities(entities)
	}
	if r.destroyed.Has(id) {
		entry.Debug("Dropping entity update for destroyed surface")
		return false
	}
	r.dispatcher.CancelTarget(id)

	batch := append([]Entity(nil), entities...)
	r.dispatcher.Schedule(id, func(attempt int) retry.Outcome {
		if r.destroyed.Has(id) {
			return retry.Cancel
		}
		s, ok := r.ready(id)
		if !ok {
			entry.WithField("attempt", attempt).Debug("Surface not ready for entity update")
			return retry.Again
		}
		s.ApplyEntities(batch)
		return retry.Done
	}, func(err error) {
		entry.WithError(err).WithField("entities", len(batch)).Warn("Entity update abandoned")
		if r.onAbandoned != nil {
			r.onAbandoned(id, err)
		}
	})
	entry.WithField("entities", len(batch)).Debug("Entity update deferred")
	return false
}

// Tick runs deferred updates that are due. The host calls it once per
// update cycle.
func (r *Registry) Tick() int {
	return r.dispatcher.Tick()
}

// Pending returns the number of deferred updates for id, or for all ids
// when id is empty.
func (r *Registry) Pending(id string) int {
	return r.dispatcher.Pending(id)
}

// Destroy tears down the surface with exactly this id and cancels its
// deferred updates. It is a no-op for ids with neither a surface nor
// deferred updates.
func (r *Registry) Destroy(id string) bool {
	cancelled := r.dispatcher.CancelTarget(id)
	s, ok := r.surfaces[id]
	if ok || cancelled > 0 {
		r.destroyed.Put(id)
	}
	if !ok {
		return false
	}
	s.Destroy()
	delete(r.surfaces, id)
	r.log.WithFields(logrus.Fields{
		"surface":   id,
		"cancelled": cancelled,
	}).Info("Surface destroyed")
	return true
}

// ResizeAll resizes every surface. A failing surface is logged and skipped.
func (r *Registry) ResizeAll() int {
	resized := 0
	for _, id := range r.IDs() {
		if err := safely(r.surfaces[id].Resize); err != nil {
			r.log.WithField("surface", id).WithError(err).Warn("Resize failed")
			continue
		}
		resized++
	}
	return resized
}

func safely(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn()
}

// CleanupAll destroys every surface and drops every deferred update.
func (r *Registry) CleanupAll() {
	ids := r.IDs()
	for _, id := range ids {
		r.Destroy(id)
	}
	dropped := r.dispatcher.CancelAll()
	r.log.WithFields(logrus.Fields{
		"surfaces": len(ids),
		"dropped":  dropped,
	}).Info("All surfaces cleaned up")
}

// RenderMap loads m into the surface.
func (r *Registry) RenderMap(id string, m *mapdata.Map) bool {
	s, ok := r.ready(id)
	if !ok {
		r.log.WithField("surface", id).Warn("Map for unknown surface")
		return false
	}
	return s.LoadMap(m)
}

// AddPlayer places the player visual, creating it if needed.
func (r *Registry) AddPlayer(id string, x, y int, name string) bool {
	s, ok := r.ready(id)
	if !ok {
		return false
	}
	s.entities.AddPlayer(x, y, name)
	s.refocus()
	return true
}

// UpdatePlayerPosition moves the existing player visual.
func (r *Registry) UpdatePlayerPosition(id string, x, y int) bool {
	s, ok := r.ready(id)
	if !ok {
		return false
	}
	if !s.entities.UpdatePlayerPosition(x, y) {
		return false
	}
	s.refocus()
	return true
}

// RemovePlayer removes the player visual. Bulk updates never do.
func (r *Registry) RemovePlayer(id string) bool {
	s, ok := r.ready(id)
	if !ok {
		return false
	}
	return s.entities.RemovePlayer()
}

// UpsertEntity creates or moves a single entity. Unlike UpdateEntities it
// removes nothing and is not retried.
func (r *Registry) UpsertEntity(id string, e Entity) bool {
	s, ok := r.ready(id)
	if !ok {
		return false
	}
	if !s.entities.Upsert(e) {
		return false
	}
	s.refocus()
	return true
}

// RemoveEntity removes one visual by key.
func (r *Registry) RemoveEntity(id, key string) bool {
	s, ok := r.ready(id)
	if !ok {
		return false
	}
	return s.entities.Remove(key)
}

// MoveEntity moves one visual by key.
func (r *Registry) MoveEntity(id, key string, x, y int) bool {
	s, ok := r.ready(id)
	if !ok {
		return false
	}
	if !s.entities.Move(key, x, y) {
		return false
	}
	s.refocus()
	return true
}

// CenterOn centres the surface on an entity.
func (r *Registry) CenterOn(id, key string) bool {
	s, ok := r.ready(id)
	if !ok {
		return false
	}
	return s.CenterOnEntity(key)
}

// FitToView fits the whole map into the surface again.
func (r *Registry) FitToView(id string) bool {
	s, ok := r.ready(id)
	if !ok {
		return false
	}
	s.FitToView()
	return true
}

// ApplyEffect attaches e to an entity of the surface.
func (r *Registry) ApplyEffect(id, key string, e Effect) bool {
	s, ok := r.ready(id)
	if !ok {
		if e != nil {
			e.Release()
		}
		return false
	}
	return s.ApplyEffect(key, e)
}

// RefreshTextures re-resolves textures on every ready surface.
func (r *Registry) RefreshTextures() {
	for _, id := range r.IDs() {
		r.surfaces[id].RefreshTextures()
	}
}

// Each calls fn for every surface in id order.
func (r *Registry) Each(fn func(*Surface)) {
	for _, id := range r.IDs() {
		fn(r.surfaces[id])
	}
}
