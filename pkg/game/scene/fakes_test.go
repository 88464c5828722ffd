package scene

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"worldview/pkg/engine/retry"
	"worldview/pkg/game/mapdata"
	"worldview/pkg/game/texture"
)

type fakeContainer struct{ w, h int }

func (c *fakeContainer) Size() (int, int) { return c.w, c.h }

type fakeDevice struct {
	class    string
	err      error
	flushes  int
	pools    int
	sequence *[]string
}

func (d *fakeDevice) Class() string { return d.class }
func (d *fakeDevice) Err() error    { return d.err }
func (d *fakeDevice) Flush() {
	d.flushes++
	d.record("flush")
}
func (d *fakeDevice) ReleasePool() {
	d.pools++
	d.record("pool")
}

func (d *fakeDevice) record(step string) {
	if d.sequence != nil {
		*d.sequence = append(*d.sequence, step)
	}
}

type fakeCanvas struct {
	w, h      int
	device    *fakeDevice
	detached  int
	released  int
	resizeErr bool
}

func (c *fakeCanvas) Size() (int, int) { return c.w, c.h }
func (c *fakeCanvas) Resize(w, h int) {
	if c.resizeErr {
		panic("resize on a broken canvas")
	}
	c.w, c.h = w, h
}
func (c *fakeCanvas) Device() Device {
	if c.device == nil {
		return nil
	}
	return c.device
}
func (c *fakeCanvas) Detach() {
	c.detached++
	c.device.record("detach")
}
func (c *fakeCanvas) Release() {
	c.released++
	c.device.record("release")
}

type fakeBackend struct {
	canvases []*fakeCanvas
	class    string
	fail     error
}

func (b *fakeBackend) NewCanvas(_ Container, w, h int) (Canvas, error) {
	if b.fail != nil {
		return nil, b.fail
	}
	class := b.class
	if class == "" {
		class = "opengl"
	}
	c := &fakeCanvas{w: w, h: h, device: &fakeDevice{class: class}}
	b.canvases = append(b.canvases, c)
	return c, nil
}

type fakeEffect struct {
	name     string
	fail     bool
	prepared int
	released int
}

func (e *fakeEffect) Name() string { return e.name }
func (e *fakeEffect) Prepare(Device) error {
	e.prepared++
	if e.fail {
		return errors.New("shader compile failed")
	}
	return nil
}
func (e *fakeEffect) Release() { e.released++ }

type fakeHandle struct {
	name     string
	released int
}

func (h *fakeHandle) Size() (int, int) { return 64, 64 }
func (h *fakeHandle) Release()         { h.released++ }

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time          { return c.now }
func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	backend  *fakeBackend
	cache    *texture.Cache
	guard    *Guard
	registry *Registry
	clock    *manualClock
	hook     *test.Hook
	logger   *logrus.Logger
}

func newFixture(t *testing.T, opts ...RegistryOption) *fixture {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	f := &fixture{
		backend: &fakeBackend{},
		cache:   texture.NewCache(texture.WithLogger(logger)),
		clock:   &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		hook:    hook,
		logger:  logger,
	}
	f.guard = NewGuard(logger)
	base := []RegistryOption{WithRegistryLogger(logger), WithClock(f.clock), WithRetryPolicy(retry.DefaultPolicy())}
	f.registry = NewRegistry(f.backend, f.guard, f.cache, append(base, opts...)...)
	return f
}

func (f *fixture) create(t *testing.T, id string, w, h int) *Surface {
	t.Helper()
	s, err := f.registry.Create(&fakeContainer{w: w, h: h}, Config{ID: id, Width: w, Height: h})
	if err != nil {
		t.Fatalf("Create(%q) error = %v", id, err)
	}
	return s
}

// warnings returns the messages logged at warning level or above.
func (f *fixture) warnings() []string {
	var out []string
	for _, e := range f.hook.AllEntries() {
		if e.Level <= logrus.WarnLevel {
			out = append(out, e.Message)
		}
	}
	return out
}

func testMap(cols, rows int) *mapdata.Map {
	grid := make([][]int, rows)
	for y := range grid {
		grid[y] = make([]int, cols)
	}
	return &mapdata.Map{Name: "test", Width: cols, Height: rows, Grid: grid}
}

func ent(typ, id string, x, y int) Entity {
	return Entity{ID: id, Type: typ, Name: id}.At(x, y)
}
