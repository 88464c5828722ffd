package texture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"worldview/pkg/engine/retry"
)

type fakeHandle struct {
	name     string
	w, h     int
	released int
}

func (f *fakeHandle) Size() (int, int) { return f.w, f.h }
func (f *fakeHandle) Release()         { f.released++ }

type fakePage struct {
	fakeHandle
	subs []image.Rectangle
}

func (p *fakePage) Sub(r image.Rectangle) Handle {
	p.subs = append(p.subs, r)
	return &fakeHandle{name: fmt.Sprintf("sub%v", r), w: r.Dx(), h: r.Dy()}
}

type fakeUploader struct {
	mu      sync.Mutex
	handles []*fakeHandle
}

func (u *fakeUploader) Upload(img image.Image) (Handle, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	b := img.Bounds()
	h := &fakeHandle{w: b.Dx(), h: b.Dy()}
	u.handles = append(u.handles, h)
	return h, nil
}

// fakeFetcher serves names from have; flaky names fail a given number of
// times before succeeding.
type fakeFetcher struct {
	mu    sync.Mutex
	have  map[string]bool
	flaky map[string]int
	calls map[string]int
}

func (f *fakeFetcher) FetchTexture(_ context.Context, cat Category, name string) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
	if n := f.flaky[name]; n > 0 {
		f.flaky[name] = n - 1
		return nil, errors.New("connection reset")
	}
	if !f.have[name] {
		return nil, fmt.Errorf("%s/%s: %w", cat, name, ErrNotFound)
	}
	return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Cap: time.Millisecond, Factor: 1}
}

func TestResolve_FallsBackToBlank(t *testing.T) {
	c := NewCache()
	h := c.Resolve(Entities, "dragon")
	if !IsBlank(h) {
		t.Errorf("Resolve(entities, dragon) = %v, want Blank", h)
	}
	if _, ok := c.Lookup(Entities, "dragon"); ok {
		t.Error("Lookup found a name that was never stored")
	}
}

func TestResolve_CacheBeforeAtlas(t *testing.T) {
	c := NewCache()
	page := &fakePage{fakeHandle: fakeHandle{w: 64, h: 32}}
	c.RegisterAtlas(Entities, NewAtlas(page, map[string]image.Rectangle{
		"npc":    image.Rect(0, 0, 32, 32),
		"goblin": image.Rect(32, 0, 64, 32),
		"broken": image.Rect(60, 0, 100, 32),
	}))

	direct := &fakeHandle{name: "goblin"}
	c.Put(Entities, "goblin", direct)

	if got := c.Resolve(Entities, "goblin"); got != direct {
		t.Errorf("Resolve(goblin) = %v, want the cached handle", got)
	}
	npc := c.Resolve(Entities, "npc")
	if IsBlank(npc) {
		t.Fatal("Resolve(npc) = Blank, want atlas region")
	}
	if w, h := npc.Size(); w != 32 || h != 32 {
		t.Errorf("npc region size = %dx%d, want 32x32", w, h)
	}
	// Repeated lookups reuse the same region
	if again := c.Resolve(Entities, "npc"); again != npc {
		t.Error("atlas region was sliced twice")
	}
	if !IsBlank(c.Resolve(Entities, "broken")) {
		t.Error("frame outside the page resolved")
	}
}

func TestPut_ReleasesReplacedHandle(t *testing.T) {
	c := NewCache()
	first := &fakeHandle{}
	second := &fakeHandle{}
	c.Put(Tiles, "floor", first)
	c.Put(Tiles, "floor", second)
	if first.released != 1 {
		t.Errorf("replaced handle released %d times, want 1", first.released)
	}
	if c.Len(Tiles) != 1 {
		t.Errorf("Len(tiles) = %d, want 1", c.Len(Tiles))
	}
}

func TestClearCache(t *testing.T) {
	cases := []struct {
		force        bool
		wantReleased int
	}{
		{false, 0},
		{true, 1},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("force=%v", tc.force), func(t *testing.T) {
			c := NewCache()
			h := &fakeHandle{}
			c.Put(Objects, "chest", h)
			c.Put(Objects, "blank", Blank)
			gen := c.Generation()

			c.ClearCache(tc.force)

			if h.released != tc.wantReleased {
				t.Errorf("released = %d, want %d", h.released, tc.wantReleased)
			}
			if c.Generation() == gen {
				t.Error("generation did not change")
			}
			if !IsBlank(c.Resolve(Objects, "chest")) {
				t.Error("entry survived ClearCache")
			}
		})
	}
}

func TestLoadCategory_PartialSuccess(t *testing.T) {
	logger, hook := test.NewNullLogger()
	up := &fakeUploader{}
	f := &fakeFetcher{
		have:  map[string]bool{"floor": true, "wall": true},
		flaky: map[string]int{"wall": 2},
	}
	c := NewCache(
		WithFetcher(f),
		WithUploader(up),
		WithRetryPolicy(fastPolicy()),
		WithLogger(logger),
		WithManifest(Manifest{Tiles: {"floor", "wall", "lava"}}),
	)

	n, err := c.LoadCategory(context.Background(), Tiles)
	if err != nil {
		t.Fatalf("LoadCategory(tiles) error = %v", err)
	}
	if n != 2 {
		t.Errorf("LoadCategory(tiles) = %d, want 2", n)
	}
	if f.calls["wall"] != 3 {
		t.Errorf("wall fetched %d times, want 3 (two failures then success)", f.calls["wall"])
	}
	if f.calls["lava"] != 1 {
		t.Errorf("missing texture fetched %d times, want 1", f.calls["lava"])
	}
	if IsBlank(c.Resolve(Tiles, "wall")) {
		t.Error("wall did not resolve after load")
	}
	if last := hook.LastEntry(); last == nil || last.Message != "Texture category partially loaded" {
		t.Errorf("last log entry = %v, want partial load message", last)
	}
}

func TestLoadCategory_NothingLoaded(t *testing.T) {
	logger, _ := test.NewNullLogger()
	c := NewCache(
		WithFetcher(&fakeFetcher{}),
		WithUploader(&fakeUploader{}),
		WithRetryPolicy(fastPolicy()),
		WithLogger(logger),
		WithManifest(Manifest{UI: {"cursor"}}),
	)
	n, err := c.LoadCategory(context.Background(), UI)
	if n != 0 || !errors.Is(err, ErrNothingLoaded) || !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadCategory(ui) = %d, %v, want 0 and ErrNothingLoaded wrapping ErrNotFound", n, err)
	}
}

func TestLoadCategory_UnknownCategory(t *testing.T) {
	c := NewCache(WithManifest(Manifest{}))
	if _, err := c.LoadCategory(context.Background(), Category("sounds")); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("LoadCategory(sounds) error = %v, want ErrUnknownCategory", err)
	}
}

func TestDefaultManifest_HasFallbackNames(t *testing.T) {
	m := DefaultManifest()
	want := map[Category][]string{
		Entities: {"player", "npc", "npc_default"},
		Objects:  {"item", "item_default", "object_default"},
	}
	for cat, names := range want {
		have := map[string]bool{}
		for _, n := range m[cat] {
			have[n] = true
		}
		for _, n := range names {
			if !have[n] {
				t.Errorf("DefaultManifest()[%s] lacks %q", cat, n)
			}
		}
	}
}

// clearingFetcher clears the cache in the middle of every fetch.
type clearingFetcher struct {
	cache *Cache
}

func (f *clearingFetcher) FetchTexture(_ context.Context, _ Category, _ string) (image.Image, error) {
	f.cache.ClearCache(false)
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

func TestLoadCategory_ClearDuringFetchDropsResult(t *testing.T) {
	logger, _ := test.NewNullLogger()
	up := &fakeUploader{}
	f := &clearingFetcher{}
	c := NewCache(
		WithFetcher(f),
		WithUploader(up),
		WithRetryPolicy(fastPolicy()),
		WithLogger(logger),
		WithManifest(Manifest{Tiles: {"floor"}}),
	)
	f.cache = c

	n, err := c.LoadCategory(context.Background(), Tiles)
	if n != 0 || !errors.Is(err, ErrNothingLoaded) {
		t.Errorf("LoadCategory() = %d, %v, want 0, ErrNothingLoaded", n, err)
	}
	if c.Len(Tiles) != 0 {
		t.Errorf("Len(tiles) = %d, want 0", c.Len(Tiles))
	}
	if len(up.handles) != 1 || up.handles[0].released != 1 {
		t.Errorf("stale handle released %v, want once", up.handles)
	}
}

func TestPutAt_RejectsOldGeneration(t *testing.T) {
	c := NewCache()
	gen := c.Generation()
	c.ClearCache(false)

	h := &fakeHandle{}
	if c.putAt(Tiles, "floor", h, gen) {
		t.Error("putAt() with an old generation = true")
	}
	if h.released != 1 {
		t.Errorf("released = %d, want 1", h.released)
	}
	if !c.putAt(Tiles, "floor", h, c.Generation()) {
		t.Error("putAt() with the current generation = false")
	}
	if _, ok := c.Lookup(Tiles, "floor"); !ok {
		t.Error("Lookup() after putAt() = false")
	}
}
