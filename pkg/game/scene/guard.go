package scene

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/zyedidia/generic/mapset"
)

// ErrDeviceUnusable is returned when an operation needs a working device.
var ErrDeviceUnusable = errors.New("graphics device unusable")

// Guard centralises device state checks for all surfaces.
type Guard struct {
	classes  mapset.Set[string]
	surfaces mapset.Set[*Surface]
	// nodes that currently carry at least one effect
	active mapset.Set[*Node]
	lost   bool
	log    logrus.FieldLogger
}

// NewGuard creates a guard accepting devices of the given classes. With no
// classes every device class is accepted.
func NewGuard(log logrus.FieldLogger, classes ...string) *Guard {
	if log == nil {
		log = logrus.StandardLogger()
	}
	g := &Guard{
		classes:  mapset.New[string](),
		surfaces: mapset.New[*Surface](),
		active:   mapset.New[*Node](),
		log:      log,
	}
	for _, c := range classes {
		g.classes.Put(c)
	}
	return g
}

// Register starts tracking s for device signals.
func (g *Guard) Register(s *Surface) {
	if s != nil {
		g.surfaces.Put(s)
	}
}

// Unregister stops tracking s.
func (g *Guard) Unregister(s *Surface) {
	g.surfaces.Remove(s)
}

// Surfaces returns how many surfaces are tracked.
func (g *Guard) Surfaces() int { return g.surfaces.Size() }

// Lost reports whether the last device signal was a loss.
func (g *Guard) Lost() bool { return g.lost }

// DeviceUsable reports whether s has a device of an accepted class that is
// not in an error state.
func (g *Guard) DeviceUsable(s *Surface) bool {
	return g.checkDevice(s) == nil
}

func (g *Guard) checkDevice(s *Surface) error {
	if s == nil || s.canvas == nil {
		return fmt.Errorf("%w: no canvas", ErrDeviceUnusable)
	}
	d := s.canvas.Device()
	if d == nil {
		return fmt.Errorf("%w: no device", ErrDeviceUnusable)
	}
	if g.classes.Size() > 0 && !g.classes.Has(d.Class()) {
		return fmt.Errorf("%w: unsupported device class %q", ErrDeviceUnusable, d.Class())
	}
	if err := d.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnusable, err)
	}
	return nil
}

// ApplyEffect attaches e to target when the surface's device is usable. If
// preparing the effect fails the target is left with no effects at all.
// The guard takes ownership of e either way.
func (g *Guard) ApplyEffect(target *Node, e Effect, s *Surface) bool {
	if target == nil || e == nil || target.destroyed {
		if e != nil {
			e.Release()
		}
		return false
	}
	entry := g.log.WithFields(logrus.Fields{"effect": e.Name(), "node": target.Name})
	if err := g.checkDevice(s); err != nil {
		entry.WithError(err).Debug("Effect skipped")
		e.Release()
		return false
	}
	if err := prepare(e, s.canvas.Device()); err != nil {
		entry.WithError(err).Warn("Effect failed, stripping node effects")
		e.Release()
		g.strip(target)
		return false
	}
	target.effects = append(target.effects, e)
	g.active.Put(target)
	return true
}

func prepare(e Effect, d Device) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("effect %s panicked: %v", e.Name(), r)
		}
	}()
	return e.Prepare(d)
}

func (g *Guard) strip(n *Node) int {
	removed := n.clearEffects()
	g.active.Remove(n)
	return removed
}

// StripEffects removes every effect under root, depth-first, and returns
// how many were removed.
func (g *Guard) StripEffects(root *Node) int {
	if root == nil {
		return 0
	}
	removed := 0
	root.Walk(func(n *Node) { removed += g.strip(n) })
	return removed
}

func (g *Guard) stripSurface(s *Surface) int {
	removed := 0
	for _, l := range s.Layers() {
		removed += g.StripEffects(l.root)
	}
	return removed
}

// ActiveEffects counts effects attached to live nodes.
func (g *Guard) ActiveEffects() int {
	total := 0
	var dead []*Node
	g.active.Each(func(n *Node) {
		if n.destroyed || len(n.effects) == 0 {
			dead = append(dead, n)
			return
		}
		total += len(n.effects)
	})
	for _, n := range dead {
		g.active.Remove(n)
	}
	return total
}

// DeviceLost strips all effects from every tracked surface before anything
// is drawn again, then tells each surface.
func (g *Guard) DeviceLost() int {
	g.lost = true
	removed := 0
	surfaces := g.snapshot()
	for _, s := range surfaces {
		removed += g.stripSurface(s)
	}
	for _, s := range surfaces {
		s.HandleDeviceLost()
	}
	g.log.WithFields(logrus.Fields{
		"surfaces": len(surfaces),
		"stripped": removed,
	}).Warn("Graphics device lost")
	return removed
}

// DeviceRestored tells every tracked surface the device is back.
func (g *Guard) DeviceRestored() {
	g.lost = false
	surfaces := g.snapshot()
	for _, s := range surfaces {
		s.HandleDeviceRestored()
	}
	g.log.WithField("surfaces", len(surfaces)).Info("Graphics device restored")
}

// PrepareTeardown strips effects, flushes the device and releases its
// deferred texture pool, in that order. It must complete before the
// surface's canvas is released. A lost device is not flushed; the returned
// error reports that case and is informational only.
func (g *Guard) PrepareTeardown(s *Surface) error {
	if s == nil {
		return nil
	}
	g.stripSurface(s)
	if s.canvas == nil {
		return nil
	}
	d := s.canvas.Device()
	if d == nil {
		return nil
	}
	devErr := d.Err()
	if devErr == nil {
		d.Flush()
	}
	d.ReleasePool()
	return devErr
}

func (g *Guard) snapshot() []*Surface {
	out := make([]*Surface, 0, g.surfaces.Size())
	g.surfaces.Each(func(s *Surface) { out = append(out, s) })
	return out
}
