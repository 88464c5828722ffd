package scene

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"worldview/pkg/game/texture"
)

func TestDeviceLost_StripsEveryEffect(t *testing.T) {
	f := newFixture(t)
	s := f.create(t, "main", 400, 300)
	s.LoadMap(testMap(6, 6))
	s.ApplyEntities([]Entity{ent("npc", "a", 0, 0), ent("npc", "b", 1, 1), ent("object", "c", 2, 2)})

	var effects []*fakeEffect
	for _, key := range []string{"npc:a", "npc:b", "object:c"} {
		e := &fakeEffect{name: "outline"}
		effects = append(effects, e)
		if !s.ApplyEffect(key, e) {
			t.Fatalf("ApplyEffect(%s) = false", key)
		}
	}
	if n := f.guard.ActiveEffects(); n != 3 {
		t.Fatalf("ActiveEffects() = %d, want 3", n)
	}

	f.backend.canvases[0].device.err = errors.New("context lost")
	if n := f.guard.DeviceLost(); n != 3 {
		t.Errorf("DeviceLost() stripped %d, want 3", n)
	}
	if n := f.guard.ActiveEffects(); n != 0 {
		t.Errorf("ActiveEffects() = %d after device loss, want 0", n)
	}
	for i, e := range effects {
		if e.released != 1 {
			t.Errorf("effect %d released %d times, want 1", i, e.released)
		}
	}
	if !s.DeviceLost() {
		t.Error("surface was not notified of the loss")
	}

	// Teardown on the lost device must not touch it
	f.registry.Destroy("main")
	dev := f.backend.canvases[0].device
	if dev.flushes != 0 {
		t.Errorf("lost device flushed %d times, want 0", dev.flushes)
	}
	if dev.pools != 1 {
		t.Errorf("ReleasePool called %d times, want 1", dev.pools)
	}
}

func TestApplyEffect_RefusedOnUnusableDevice(t *testing.T) {
	cases := []struct {
		name    string
		classes []string
		devErr  error
	}{
		{"device error", nil, errors.New("lost")},
		{"wrong class", []string{"metal", "directx"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logger, _ := test.NewNullLogger()
			backend := &fakeBackend{}
			guard := NewGuard(logger, tc.classes...)
			reg := NewRegistry(backend, guard, texture.NewCache(), WithRegistryLogger(logger))
			s, _ := reg.Create(&fakeContainer{w: 100, h: 100}, Config{ID: "v"})
			s.Entities().AddPlayer(0, 0, "hero")
			backend.canvases[0].device.err = tc.devErr

			if guard.DeviceUsable(s) {
				t.Error("DeviceUsable() = true, want false")
			}
			e := &fakeEffect{name: "tint"}
			if s.ApplyEffect(PlayerKey, e) {
				t.Error("ApplyEffect() = true, want false")
			}
			if e.prepared != 0 || e.released != 1 {
				t.Errorf("effect prepared %d released %d, want 0 and 1", e.prepared, e.released)
			}
		})
	}
}

func TestApplyEffect_FailureLeavesNoEffects(t *testing.T) {
	f := newFixture(t)
	s := f.create(t, "main", 400, 300)
	p := s.Entities().AddPlayer(0, 0, "hero")

	good := &fakeEffect{name: "tint"}
	if !s.ApplyEffect(PlayerKey, good) {
		t.Fatal("ApplyEffect(tint) = false")
	}
	bad := &fakeEffect{name: "outline", fail: true}
	if s.ApplyEffect(PlayerKey, bad) {
		t.Error("ApplyEffect(failing) = true")
	}
	if n := len(p.Sprite.Effects()); n != 0 {
		t.Errorf("node has %d effects after a failed apply, want 0", n)
	}
	if good.released != 1 || bad.released != 1 {
		t.Errorf("released good=%d bad=%d, want 1 each", good.released, bad.released)
	}
	if f.guard.ActiveEffects() != 0 {
		t.Errorf("ActiveEffects() = %d, want 0", f.guard.ActiveEffects())
	}
}

func TestPrepareTeardown_Order(t *testing.T) {
	f := newFixture(t)
	s := f.create(t, "main", 400, 300)
	var steps []string
	f.backend.canvases[0].device.sequence = &steps
	s.Entities().AddPlayer(0, 0, "hero")
	e := &fakeEffect{name: "tint"}
	s.ApplyEffect(PlayerKey, e)

	s.Destroy()

	if e.released != 1 {
		t.Errorf("effect released %d times, want 1", e.released)
	}
	want := []string{"flush", "pool", "detach", "release"}
	if len(steps) != len(want) {
		t.Fatalf("teardown steps = %v, want %v", steps, want)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Errorf("teardown steps = %v, want %v", steps, want)
			break
		}
	}
}

func TestDeviceRestored_RefreshesTextures(t *testing.T) {
	f := newFixture(t)
	s := f.create(t, "main", 400, 300)
	s.LoadMap(testMap(3, 3))
	s.ApplyEntities([]Entity{ent("npc", "wolf", 1, 1)})

	f.guard.DeviceLost()
	f.cache.Put(texture.Entities, "wolf", &fakeHandle{name: "wolf"})
	f.guard.DeviceRestored()

	if s.DeviceLost() {
		t.Error("surface still marked lost after restore")
	}
	v, _ := s.Entities().Get("npc:wolf")
	if v.Resolved != "wolf" {
		t.Errorf("Resolved = %q after restore, want wolf", v.Resolved)
	}
}

func TestNode_DestroyIsIdempotent(t *testing.T) {
	parent := NewNode("root")
	child := NewNode("child")
	owned := &fakeHandle{}
	child.Own(owned)
	parent.Add(child)

	parent.Destroy()
	parent.Destroy()

	if owned.released != 1 {
		t.Errorf("owned texture released %d times, want 1", owned.released)
	}
	if !child.Destroyed() || len(parent.Children()) != 0 {
		t.Error("child not destroyed with its parent")
	}
}
