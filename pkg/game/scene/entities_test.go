package scene

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"worldview/pkg/game/texture"
)

func newEntities(t *testing.T, cache *texture.Cache) (*EntityRegistry, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	if cache == nil {
		cache = texture.NewCache(texture.WithLogger(logger))
	}
	return NewEntityRegistry(newLayer(LayerEntity), cache, 64, logger), hook
}

func TestDiffApply_MovesKnownEntitiesInPlace(t *testing.T) {
	r, _ := newEntities(t, nil)
	r.DiffApply([]Entity{ent("npc", "guard", 1, 1)})
	v, _ := r.Get("npc:guard")
	sprite := v.Sprite

	r.DiffApply([]Entity{ent("npc", "guard", 4, 2)})

	v, ok := r.Get("npc:guard")
	if !ok {
		t.Fatal("guard disappeared after a move")
	}
	if v.Sprite != sprite {
		t.Error("sprite was recreated instead of moved")
	}
	if v.X != 4 || v.Y != 2 {
		t.Errorf("guard at (%d, %d), want (4, 2)", v.X, v.Y)
	}
	if v.Sprite.X != 256 || v.Sprite.Y != 128 {
		t.Errorf("sprite at (%v, %v), want (256, 128)", v.Sprite.X, v.Sprite.Y)
	}
}

func TestDiffApply_RemovesOmittedKeys(t *testing.T) {
	r, _ := newEntities(t, nil)
	r.DiffApply([]Entity{ent("npc", "a", 0, 0), ent("object", "b", 1, 0)})
	gone, _ := r.Get("object:b")

	r.DiffApply([]Entity{ent("npc", "a", 0, 1)})

	if _, ok := r.Get("object:b"); ok {
		t.Error("object:b survived a batch that omitted it")
	}
	if !gone.Sprite.Destroyed() {
		t.Error("removed visual's sprite was not destroyed")
	}
	if r.layer.Len() != 1 {
		t.Errorf("entity layer has %d nodes, want 1", r.layer.Len())
	}
}

func TestDiffApply_EmptyBatchRemovesNothing(t *testing.T) {
	r, _ := newEntities(t, nil)
	r.DiffApply([]Entity{ent("npc", "a", 0, 0), ent("npc", "b", 1, 1)})

	r.DiffApply(nil)
	r.DiffApply([]Entity{})

	if r.Len() != 2 {
		t.Errorf("Len() = %d after empty batches, want 2", r.Len())
	}
}

func TestDiffApply_PlayerSurvivesBulkDiffs(t *testing.T) {
	r, _ := newEntities(t, nil)
	r.AddPlayer(3, 3, "hero")

	batches := [][]Entity{
		{ent("npc", "a", 0, 0)},
		{ent("object", "chest", 2, 2)},
		{ent("npc", "b", 5, 5), ent("npc", "c", 6, 6)},
	}
	for i, b := range batches {
		r.DiffApply(b)
		if _, ok := r.Player(); !ok {
			t.Fatalf("player removed by batch %d", i)
		}
	}

	if !r.RemovePlayer() {
		t.Fatal("RemovePlayer() = false, want true")
	}
	if _, ok := r.Player(); ok {
		t.Error("player still present after RemovePlayer")
	}
}

func TestDiffApply_PlayerRecordUsesPlayerKey(t *testing.T) {
	r, _ := newEntities(t, nil)
	r.DiffApply([]Entity{Entity{Type: "player", Name: "Ada"}.At(2, 3)})
	v, ok := r.Player()
	if !ok {
		t.Fatal("player record did not create the player visual")
	}
	if v.Kind != KindPlayer {
		t.Errorf("player kind = %q, want %q", v.Kind, KindPlayer)
	}
	r.UpdatePlayerPosition(5, 5)
	if v.X != 5 || v.Y != 5 {
		t.Errorf("player at (%d, %d), want (5, 5)", v.X, v.Y)
	}
}

func TestDiffApply_OtherPlayersKeepTheirOwnKeys(t *testing.T) {
	r, _ := newEntities(t, nil)
	r.AddPlayer(1, 1, "Ada")
	r.DiffApply([]Entity{
		ent("player", "other-1", 6, 4),
		ent("player", "other-2", 7, 5),
		ent("npc", "g", 2, 2),
	})

	p, _ := r.Player()
	if p.X != 1 || p.Y != 1 {
		t.Errorf("local player at (%d, %d), want (1, 1)", p.X, p.Y)
	}
	if got, want := strings.Join(r.Keys(), " "), "npc:g player player:other-1 player:other-2"; got != want {
		t.Errorf("Keys() = %q, want %q", got, want)
	}
	if v, _ := r.Get("player:other-2"); v.Kind != KindPlayer {
		t.Errorf("other player kind = %q, want %q", v.Kind, KindPlayer)
	}

	r.DiffApply([]Entity{ent("npc", "g", 2, 2)})
	if _, ok := r.Get("player:other-1"); ok {
		t.Error("other player omitted from a batch was kept")
	}
	if _, ok := r.Player(); !ok {
		t.Error("local player removed by a bulk diff")
	}
}

func TestDiffApply_SkipsMalformedRecords(t *testing.T) {
	r, hook := newEntities(t, nil)
	x := 1
	batch := []Entity{
		{ID: "nox", Type: "npc"},
		{ID: "noy", Type: "npc", X: &x},
		ent("npc", "ok", 1, 1),
	}

	if n := r.DiffApply(batch); n != 1 {
		t.Errorf("DiffApply = %d, want 1", n)
	}
	warned := 0
	for _, e := range hook.AllEntries() {
		if e.Message == "Skipping malformed entity" {
			warned++
		}
	}
	if warned != 2 {
		t.Errorf("malformed warnings = %d, want 2", warned)
	}
}

func TestUpdatePlayerPosition_MovesOnlyThePlayer(t *testing.T) {
	r, _ := newEntities(t, nil)
	r.DiffApply([]Entity{ent("npc", "a", 1, 1)})
	if r.UpdatePlayerPosition(2, 2) {
		t.Error("UpdatePlayerPosition without a player = true, want false")
	}

	p := r.AddPlayer(0, 0, "hero")
	r.UpdatePlayerPosition(2, 3)

	if p.Sprite.X != 128 || p.Sprite.Y != 192 {
		t.Errorf("player sprite at (%v, %v), want (128, 192)", p.Sprite.X, p.Sprite.Y)
	}
	if p.Label == nil || p.Label.Parent() != p.Sprite {
		t.Error("player label does not follow the sprite")
	}
	if npc, _ := r.Get("npc:a"); npc.X != 1 || npc.Y != 1 {
		t.Errorf("npc moved to (%d, %d)", npc.X, npc.Y)
	}
}

func TestTextureFallback_NPC(t *testing.T) {
	cases := []struct {
		name   string
		loaded []string
		want   string
	}{
		{"exact name", []string{"goblin", "npc"}, "goblin"},
		{"type level", []string{"npc", "npc_default"}, "npc"},
		{"type default", []string{"npc_default"}, "npc_default"},
		{"item textures are not used for npcs", []string{"item", "object_default"}, ""},
		{"nothing loaded", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cache := texture.NewCache()
			for _, n := range tc.loaded {
				cache.Put(texture.Entities, n, &fakeHandle{name: n})
				cache.Put(texture.Objects, n, &fakeHandle{name: n})
			}
			r, _ := newEntities(t, cache)
			r.DiffApply([]Entity{ent("npc", "goblin", 0, 0)})

			v, _ := r.Get("npc:goblin")
			if v.Resolved != tc.want {
				t.Errorf("resolved = %q, want %q", v.Resolved, tc.want)
			}
			if tc.want == "" {
				if v.Sprite.Shape != ShapeCircle || v.Sprite.Color != NPCColor {
					t.Errorf("placeholder = %v %v, want blue circle", v.Sprite.Shape, v.Sprite.Color)
				}
				if v.Sprite.Texture != nil {
					t.Error("placeholder carries a texture")
				}
			}
		})
	}
}

func TestTextureFallback_PlaceholderShapes(t *testing.T) {
	r, _ := newEntities(t, nil)
	r.AddPlayer(0, 0, "hero")
	r.DiffApply([]Entity{ent("object", "barrel", 1, 0)})

	p, _ := r.Player()
	if p.Sprite.Shape != ShapeCircle || p.Sprite.Color != PlayerColor {
		t.Errorf("player placeholder = %v %v, want green circle", p.Sprite.Shape, p.Sprite.Color)
	}
	o, _ := r.Get("object:barrel")
	if o.Sprite.Shape != ShapeRect || o.Sprite.Color != OtherColor {
		t.Errorf("object placeholder = %v %v, want red square", o.Sprite.Shape, o.Sprite.Color)
	}
}

func TestTextureFallback_ObjectGenericChain(t *testing.T) {
	cache := texture.NewCache()
	cache.Put(texture.Objects, "object_default", &fakeHandle{})
	r, _ := newEntities(t, cache)
	r.DiffApply([]Entity{Entity{ID: "c1", Type: "chest", Name: "Old Chest", Sprite: "Chest"}.At(0, 0)})

	v, _ := r.Get("chest:c1")
	if v.TextureName != "chest" {
		t.Errorf("TextureName = %q, want chest", v.TextureName)
	}
	if v.Resolved != "object_default" {
		t.Errorf("Resolved = %q, want object_default", v.Resolved)
	}
}

func TestRefresh_AfterCacheClearAndLateLoad(t *testing.T) {
	cache := texture.NewCache()
	r, _ := newEntities(t, cache)
	r.DiffApply([]Entity{ent("npc", "wolf", 0, 0)})
	v, _ := r.Get("npc:wolf")
	if !v.Placeholder() {
		t.Fatal("wolf resolved before any texture was loaded")
	}

	cache.Put(texture.Entities, "wolf", &fakeHandle{name: "wolf"})
	if n := r.Refresh(); n != 1 {
		t.Errorf("Refresh() = %d, want 1", n)
	}
	if v.Resolved != "wolf" {
		t.Errorf("Resolved = %q after late load, want wolf", v.Resolved)
	}

	cache.ClearCache(false)
	r.Refresh()
	if !v.Placeholder() || v.Sprite.Texture != nil {
		t.Error("visual kept a texture handle across ClearCache")
	}
}

func TestRemoveAll(t *testing.T) {
	r, _ := newEntities(t, nil)
	r.AddPlayer(0, 0, "hero")
	r.DiffApply([]Entity{ent("npc", "a", 1, 1), ent("npc", "b", 2, 2)})
	r.RemoveAll()
	if r.Len() != 0 || r.layer.Len() != 0 {
		t.Errorf("after RemoveAll: Len() = %d, layer nodes = %d", r.Len(), r.layer.Len())
	}
}

func TestUpsert_LeavesOtherVisualsAlone(t *testing.T) {
	r, hook := newEntities(t, nil)
	r.DiffApply([]Entity{ent("npc", "a", 0, 0), ent("object", "b", 1, 0)})

	if !r.Upsert(ent("npc", "c", 2, 2)) {
		t.Fatal("Upsert(npc:c) = false, want true")
	}
	if !r.Upsert(ent("npc", "a", 5, 5)) {
		t.Fatal("Upsert(npc:a) = false, want true")
	}
	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}
	if v, _ := r.Get("npc:a"); v.X != 5 || v.Y != 5 {
		t.Errorf("npc:a at (%d, %d), want (5, 5)", v.X, v.Y)
	}
	if r.Upsert(Entity{ID: "d", Type: "npc"}) {
		t.Error("Upsert accepted a record without coordinates")
	}
	if len(hook.AllEntries()) != 1 {
		t.Errorf("logged %d entries, want 1 warning", len(hook.AllEntries()))
	}
}
