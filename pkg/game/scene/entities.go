package scene

import (
	"image/color"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/zyedidia/generic/mapset"

	"worldview/pkg/engine/viewport"
	"worldview/pkg/game/texture"
)

// PlayerKey is the entity key of the local player.
const PlayerKey = "player"

// Kind classifies entities for texture fallback and placeholder shapes.
type Kind string

const (
	KindPlayer Kind = "player"
	KindNPC    Kind = "npc"
	KindObject Kind = "object"
)

// Placeholder colours used when no texture resolves.
var (
	PlayerColor = color.RGBA{R: 0x2e, G: 0xcc, B: 0x40, A: 0xff}
	NPCColor    = color.RGBA{R: 0x1e, G: 0x6f, B: 0xff, A: 0xff}
	OtherColor  = color.RGBA{R: 0xe0, G: 0x25, B: 0x25, A: 0xff}
	LabelColor  = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// Entity is one record of an entity batch as received from the server.
// X and Y are pointers so missing coordinates can be told apart from zero.
type Entity struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Name   string `json:"name,omitempty"`
	Sprite string `json:"sprite,omitempty"`
	X      *int   `json:"x"`
	Y      *int   `json:"y"`
}

// At returns a copy of e placed at (x, y).
func (e Entity) At(x, y int) Entity {
	e.X, e.Y = &x, &y
	return e
}

// Key identifies the entity within a surface. A player record without an
// id is the local player and maps to PlayerKey, so the player stream and
// the entity stream agree on it. Other players key as player:<id>.
func (e Entity) Key() string {
	if e.Local() {
		return PlayerKey
	}
	id := e.ID
	if id == "" {
		id = e.Name
	}
	return strings.ToLower(e.Type) + ":" + id
}

// Local reports whether e is the local player's record.
func (e Entity) Local() bool {
	return e.Kind() == KindPlayer && (e.ID == "" || e.ID == PlayerKey)
}

// Kind maps the entity type onto a Kind.
func (e Entity) Kind() Kind {
	switch strings.ToLower(e.Type) {
	case "player":
		return KindPlayer
	case "npc", "npg", "monster", "enemy", "creature":
		return KindNPC
	default:
		return KindObject
	}
}

// Valid reports whether the record can be placed.
func (e Entity) Valid() bool {
	return e.X != nil && e.Y != nil && (e.ID != "" || e.Name != "" || e.Kind() == KindPlayer)
}

// Visual is the on-screen representation of one entity.
type Visual struct {
	Key  string
	Kind Kind
	Name string
	X, Y int

	Sprite *Node
	Label  *Node

	// TextureName is the logical name requested; Resolved is the name the
	// chain settled on, empty for a placeholder.
	TextureName string
	Resolved    string
	generation  uint64
}

// Placeholder reports whether the visual is drawn as a plain shape.
func (v *Visual) Placeholder() bool { return v.Resolved == "" }

// EntityRegistry owns the visuals on a surface's entity layer.
type EntityRegistry struct {
	layer    *Layer
	cache    *texture.Cache
	tileSize int
	visuals  map[string]*Visual
	log      logrus.FieldLogger
}

// NewEntityRegistry creates a registry drawing into layer.
func NewEntityRegistry(layer *Layer, cache *texture.Cache, tileSize int, log logrus.FieldLogger) *EntityRegistry {
	if tileSize <= 0 {
		tileSize = viewport.DefaultTileSize
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &EntityRegistry{
		layer:    layer,
		cache:    cache,
		tileSize: tileSize,
		visuals:  make(map[string]*Visual),
		log:      log,
	}
}

// Len returns the number of visuals.
func (r *EntityRegistry) Len() int { return len(r.visuals) }

// Get returns the visual for key.
func (r *EntityRegistry) Get(key string) (*Visual, bool) {
	v, ok := r.visuals[key]
	return v, ok
}

// Keys returns all keys, sorted.
func (r *EntityRegistry) Keys() []string {
	keys := make([]string, 0, len(r.visuals))
	for k := range r.visuals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Player returns the player visual if present.
func (r *EntityRegistry) Player() (*Visual, bool) {
	return r.Get(PlayerKey)
}

// DiffApply reconciles the visuals with incoming. Known keys move in place,
// new keys get a visual, and keys missing from a non-empty batch are removed
// except the player. Records without coordinates are skipped.
func (r *EntityRegistry) DiffApply(incoming []Entity) int {
	incomingKeys := mapset.New[string]()
	applied := 0

	for _, e := range incoming {
		if !e.Valid() {
			r.log.WithFields(logrus.Fields{
				"id":   e.ID,
				"type": e.Type,
			}).Warn("Skipping malformed entity")
			continue
		}
		key := e.Key()
		incomingKeys.Put(key)
		if v, ok := r.visuals[key]; ok {
			r.place(v, *e.X, *e.Y)
		} else {
			r.create(e)
		}
		applied++
	}

	// An empty batch carries no information about what left
	if incomingKeys.Size() == 0 {
		return applied
	}
	for _, key := range r.Keys() {
		if key == PlayerKey || incomingKeys.Has(key) {
			continue
		}
		r.Remove(key)
	}
	return applied
}

// Upsert creates or moves the visual for a single entity without touching
// any other visual.
func (r *EntityRegistry) Upsert(e Entity) bool {
	if !e.Valid() {
		r.log.WithFields(logrus.Fields{
			"id":   e.ID,
			"type": e.Type,
		}).Warn("Skipping malformed entity")
		return false
	}
	if v, ok := r.visuals[e.Key()]; ok {
		r.place(v, *e.X, *e.Y)
		return true
	}
	r.create(e)
	return true
}

// AddPlayer creates the player visual, or moves it if it already exists.
func (r *EntityRegistry) AddPlayer(x, y int, name string) *Visual {
	if v, ok := r.visuals[PlayerKey]; ok {
		r.place(v, x, y)
		return v
	}
	return r.create(Entity{ID: PlayerKey, Type: "player", Name: name}.At(x, y))
}

// UpdatePlayerPosition moves the player visual and its label. It reports
// false when there is no player.
func (r *EntityRegistry) UpdatePlayerPosition(x, y int) bool {
	return r.Move(PlayerKey, x, y)
}

// RemovePlayer removes the player visual.
func (r *EntityRegistry) RemovePlayer() bool {
	return r.Remove(PlayerKey)
}

// Move places the visual for key at (x, y).
func (r *EntityRegistry) Move(key string, x, y int) bool {
	v, ok := r.visuals[key]
	if !ok {
		return false
	}
	r.place(v, x, y)
	return true
}

// Remove destroys the visual for key.
func (r *EntityRegistry) Remove(key string) bool {
	v, ok := r.visuals[key]
	if !ok {
		return false
	}
	v.Sprite.Destroy()
	delete(r.visuals, key)
	return true
}

// RemoveAll destroys every visual, the player included.
func (r *EntityRegistry) RemoveAll() {
	for key, v := range r.visuals {
		v.Sprite.Destroy()
		delete(r.visuals, key)
	}
}

// Refresh re-resolves visuals resolved before the last cache clear and
// placeholders whose texture may have arrived since. It returns how many
// visuals changed appearance.
func (r *EntityRegistry) Refresh() int {
	if r.cache == nil {
		return 0
	}
	gen := r.cache.Generation()
	changed := 0
	for _, v := range r.visuals {
		if v.generation == gen && !v.Placeholder() {
			continue
		}
		before := v.Resolved
		r.dress(v)
		if v.Resolved != before || before != "" {
			changed++
		}
	}
	return changed
}

func (r *EntityRegistry) create(e Entity) *Visual {
	name := e.Name
	if name == "" {
		name = e.ID
	}
	v := &Visual{
		Key:         e.Key(),
		Kind:        e.Kind(),
		Name:        name,
		TextureName: textureName(e),
		Sprite:      NewNode(e.Key()),
	}
	ts := float64(r.tileSize)
	v.Sprite.W, v.Sprite.H = ts, ts

	if name != "" {
		v.Label = NewNode(e.Key() + "/label")
		v.Label.Text = name
		v.Label.TextColor = LabelColor
		v.Label.Y = -ts / 4
		v.Sprite.Add(v.Label)
	}

	r.dress(v)
	r.place(v, *e.X, *e.Y)
	r.layer.Add(v.Sprite)
	r.visuals[v.Key] = v
	return v
}

func (r *EntityRegistry) place(v *Visual, x, y int) {
	v.X, v.Y = x, y
	v.Sprite.X, v.Sprite.Y = viewport.TileToPixel(x, y, r.tileSize)
}

// dress resolves the visual's texture through the fallback chain, or turns
// it into a placeholder shape.
func (r *EntityRegistry) dress(v *Visual) {
	if r.cache != nil {
		v.generation = r.cache.Generation()
	}
	h, resolved := r.resolve(v.Kind, v.TextureName)
	v.Resolved = resolved
	if h != nil {
		v.Sprite.Texture = h
		v.Sprite.Shape = ShapeNone
		return
	}

	v.Sprite.Texture = nil
	switch v.Kind {
	case KindPlayer:
		v.Sprite.Shape, v.Sprite.Color = ShapeCircle, PlayerColor
	case KindNPC:
		v.Sprite.Shape, v.Sprite.Color = ShapeCircle, NPCColor
	default:
		v.Sprite.Shape, v.Sprite.Color = ShapeRect, OtherColor
	}
}

// FallbackChain lists the logical names tried for an entity, in order.
func FallbackChain(kind Kind, name string) []string {
	var chain []string
	if name != "" {
		chain = append(chain, name)
	}
	switch kind {
	case KindPlayer:
		chain = append(chain, "player", "player_default")
	case KindNPC:
		chain = append(chain, "npc", "npc_default")
	default:
		chain = append(chain, "item", "item_default", "object_default")
	}
	return chain
}

func (r *EntityRegistry) resolve(kind Kind, name string) (texture.Handle, string) {
	if r.cache == nil {
		return nil, ""
	}
	cat := texture.Objects
	if kind == KindPlayer || kind == KindNPC {
		cat = texture.Entities
	}
	for _, candidate := range FallbackChain(kind, name) {
		if h, ok := r.cache.Lookup(cat, candidate); ok && !texture.IsBlank(h) {
			return h, candidate
		}
	}
	return nil, ""
}

func textureName(e Entity) string {
	if e.Sprite != "" {
		return strings.ToLower(e.Sprite)
	}
	if e.Kind() == KindPlayer {
		return ""
	}
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(e.Name), " ", "_"))
}
