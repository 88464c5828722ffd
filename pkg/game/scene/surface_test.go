package scene

import (
	"math"
	"testing"

	"worldview/pkg/game/mapdata"
	"worldview/pkg/game/texture"
)

func assertAligned(t *testing.T, s *Surface) {
	t.Helper()
	want := s.Transform()
	for _, l := range s.Layers() {
		if l.Transform() != want {
			t.Errorf("layer %s transform = %+v, want %+v", l.Name(), l.Transform(), want)
		}
	}
}

func TestLoadMap_FitsAndAlignsLayers(t *testing.T) {
	f := newFixture(t)
	s := f.create(t, "main", 400, 300)

	if !s.LoadMap(testMap(8, 6)) {
		t.Fatal("LoadMap() = false, want true")
	}
	tr := s.Transform()
	if math.Abs(tr.Scale-0.677) > 0.001 {
		t.Errorf("scale = %v, want ~0.677", tr.Scale)
	}
	assertAligned(t, s)

	if cols, rows := s.MapSize(); cols != 8 || rows != 6 {
		t.Errorf("MapSize() = %d, %d, want 8, 6", cols, rows)
	}
	// 9 vertical and 7 horizontal grid lines
	if n := s.Layer(LayerGrid).Len(); n != 16 {
		t.Errorf("grid lines = %d, want 16", n)
	}
	bg := s.Layer(LayerBackground).Root().Children()
	if len(bg) != 1 || bg[0].W != 512 || bg[0].H != 384 || bg[0].Shape != ShapeRect {
		t.Errorf("background = %+v, want one 512x384 flat rect", bg)
	}
}

func TestLoadMap_ThenResizeKeepsLayersAligned(t *testing.T) {
	f := newFixture(t)
	container := &fakeContainer{w: 400, h: 300}
	s, err := f.registry.Create(container, Config{ID: "main", Width: 400, Height: 300})
	if err != nil {
		t.Fatal(err)
	}
	s.LoadMap(testMap(12, 9))
	before := s.Transform()

	container.w, container.h = 1024, 768
	if err := s.Resize(); err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	if s.Transform() == before {
		t.Error("transform unchanged after resize")
	}
	if got := s.PhysicalSize(); got.W != 1024 || got.H != 768 {
		t.Errorf("PhysicalSize() = %+v, want 1024x768", got)
	}
	assertAligned(t, s)
}

func TestResize_ZeroContainerUsesDefaultSize(t *testing.T) {
	f := newFixture(t)
	container := &fakeContainer{w: 400, h: 300}
	s, _ := f.registry.Create(container, Config{ID: "main"})
	container.w, container.h = 0, 0
	if err := s.Resize(); err != nil {
		t.Fatal(err)
	}
	if got := s.PhysicalSize(); got.W != 800 || got.H != 600 {
		t.Errorf("PhysicalSize() = %+v, want 800x600", got)
	}
}

func TestLoadMap_Validation(t *testing.T) {
	cases := []struct {
		name     string
		m        *mapdata.Map
		ok       bool
		warnings int
	}{
		{"nil", nil, false, 0},
		{"no width", &mapdata.Map{Height: 2, Grid: [][]int{{0}}}, false, 0},
		{"no grid", &mapdata.Map{Width: 2, Height: 2}, false, 0},
		{"short grid", &mapdata.Map{Width: 2, Height: 3, Grid: [][]int{{0, 0}}}, true, 1},
		{"valid", testMap(3, 3), true, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			s := f.create(t, "main", 400, 300)
			f.hook.Reset()
			if got := s.LoadMap(tc.m); got != tc.ok {
				t.Errorf("LoadMap() = %v, want %v", got, tc.ok)
			}
			warned := 0
			for _, e := range f.hook.AllEntries() {
				if e.Level.String() == "warning" {
					warned++
				}
			}
			if warned != tc.warnings {
				t.Errorf("warnings = %d, want %d", warned, tc.warnings)
			}
		})
	}
}

func TestLoadMap_SeedsStaticEntitiesAndObstacles(t *testing.T) {
	f := newFixture(t)
	s := f.create(t, "main", 400, 300)
	m := testMap(4, 4)
	m.Grid[1][2] = mapdata.TileObstacle
	m.NPCs = map[string]mapdata.Placement{"[1,1]": {Name: "Guard"}, "bad": {Name: "x"}}
	m.Objects = map[string]mapdata.Placement{"[3,2]": {Name: "Chest", Sprite: "chest"}}

	if !s.LoadMap(m) {
		t.Fatal("LoadMap() = false")
	}
	keys := s.Entities().Keys()
	if len(keys) != 2 || keys[0] != "npc:[1,1]" || keys[1] != "object:[3,2]" {
		t.Errorf("seeded keys = %v", keys)
	}
	obstacles := s.Layer(LayerBackground).Root().Children()[0].Children()
	if len(obstacles) != 1 || obstacles[0].X != 128 || obstacles[0].Y != 64 {
		t.Errorf("obstacles = %+v, want one at (128, 64)", obstacles)
	}
}

func TestLoadMap_UsesBackgroundImageWhenCached(t *testing.T) {
	f := newFixture(t)
	bgTex := &fakeHandle{name: "meadow"}
	f.cache.Put(texture.Tiles, "meadow", bgTex)
	s := f.create(t, "main", 400, 300)
	m := testMap(2, 2)
	m.BackgroundImage = "meadow"
	s.LoadMap(m)

	bg := s.Layer(LayerBackground).Root().Children()[0]
	if bg.Texture != bgTex {
		t.Errorf("background texture = %v, want the cached image", bg.Texture)
	}
}

func TestLoadMap_KeepsPlayer(t *testing.T) {
	f := newFixture(t)
	s := f.create(t, "main", 400, 300)
	s.LoadMap(testMap(4, 4))
	s.Entities().AddPlayer(2, 2, "hero")
	s.ApplyEntities([]Entity{ent("npc", "old", 1, 1)})

	s.LoadMap(testMap(5, 5))

	if _, ok := s.Entities().Player(); !ok {
		t.Error("player lost on map reload")
	}
	if _, ok := s.Entities().Get("npc:old"); ok {
		t.Error("entity of the previous map survived the reload")
	}
}

func TestCenterOnEntity(t *testing.T) {
	f := newFixture(t)
	s := f.create(t, "main", 400, 300)
	s.LoadMap(testMap(20, 20))
	s.Entities().AddPlayer(10, 4, "hero")
	scale := s.Transform().Scale

	if !s.CenterOnEntity(PlayerKey) {
		t.Fatal("CenterOnEntity(player) = false")
	}
	tr := s.Transform()
	if tr.Scale != scale {
		t.Errorf("scale changed from %v to %v", scale, tr.Scale)
	}
	sx, sy := tr.Apply(10*64+32, 4*64+32)
	if math.Abs(sx-200) > 1e-6 || math.Abs(sy-150) > 1e-6 {
		t.Errorf("player centre drawn at (%v, %v), want (200, 150)", sx, sy)
	}
	assertAligned(t, s)

	if s.CenterOnEntity("npc:missing") {
		t.Error("CenterOnEntity(missing) = true")
	}
}

func TestSurface_DestroyIsIdempotentAndBlocksOperations(t *testing.T) {
	f := newFixture(t)
	s := f.create(t, "main", 400, 300)
	canvas := f.backend.canvases[0]

	s.Destroy()
	s.Destroy()

	if canvas.released != 1 || canvas.detached != 1 {
		t.Errorf("canvas released %d, detached %d times, want 1 each", canvas.released, canvas.detached)
	}
	if s.State() != StateDestroyed {
		t.Errorf("State() = %v, want destroyed", s.State())
	}
	if s.LoadMap(testMap(2, 2)) || s.ApplyEntities([]Entity{ent("npc", "a", 0, 0)}) {
		t.Error("operation succeeded on a destroyed surface")
	}
	if err := s.Resize(); err == nil {
		t.Error("Resize() on a destroyed surface returned nil")
	}
}
