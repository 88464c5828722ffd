// Package session connects the server link to the scene registry. Server
// events are queued by the transport and drained here on the update
// goroutine, so scene state is only ever touched from one goroutine.
package session

import (
	"encoding/json"
	"errors"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"worldview/pkg/engine/input"
	"worldview/pkg/engine/world"
	"worldview/pkg/game/mapdata"
	"worldview/pkg/game/scene"
	"worldview/pkg/game/transport"
)

// Inbound event types.
const (
	EventMapData         = "map_data"
	EventMapChange       = "map_change"
	EventEntityMoved     = "entity_moved"
	EventEntitySpawned   = "entity_spawned"
	EventEntityDespawned = "entity_despawned"
	EventEntities        = "entities"
	EventPlayerPosition  = "player_position"
	EventCombat          = "combat"
	EventDialog          = "dialog"
	EventTrigger         = "trigger"
)

// Outbound command types.
const (
	CommandMove     = "player_move"
	CommandAttack   = "player_attack"
	CommandUseItem  = "use_item"
	CommandInteract = "interact"
)

// KindSystem marks notifications produced by the client itself. Their text
// is a message id for the locale files.
const KindSystem = "system"

// MaxNotifications bounds the notification log.
const MaxNotifications = 50

// Scenes is the part of the scene registry the router drives.
type Scenes interface {
	IDs() []string
	RenderMap(id string, m *mapdata.Map) bool
	UpdateEntities(id string, entities []scene.Entity) bool
	UpsertEntity(id string, e scene.Entity) bool
	AddPlayer(id string, x, y int, name string) bool
	UpdatePlayerPosition(id string, x, y int) bool
	MoveEntity(id, key string, x, y int) bool
	RemoveEntity(id, key string) bool
	CenterOn(id, key string) bool
	FitToView(id string) bool
}

// Link is the server connection.
type Link interface {
	Events() <-chan transport.Envelope
	Status() <-chan transport.Status
	Send(typ string, data any) error
}

// Notification is a line for the message panel.
type Notification struct {
	Kind string
	Text string
	At   time.Time
}

type position struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

func (p *position) ok() bool { return p != nil && p.X != nil && p.Y != nil }

type movedPayload struct {
	EntityID string    `json:"entity_id"`
	Position *position `json:"position"`
	From     *position `json:"from_position,omitempty"`
	To       *position `json:"to_position,omitempty"`
}

type despawnedPayload struct {
	EntityID string `json:"entity_id"`
}

type playerPayload struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	X    *int   `json:"x"`
	Y    *int   `json:"y"`
}

type player struct {
	id, name string
	x, y     int
	known    bool
}

// Router applies server events to every mounted view and turns player
// intents into server commands.
type Router struct {
	scenes Scenes
	link   Link
	log    logrus.FieldLogger
	now    func() time.Time

	mainView string
	views    []string
	follow   bool
	local    bool

	lastMap  *mapdata.Map
	grid     *world.Grid
	player   player
	entities map[string]scene.Entity // by server id

	connected     bool
	notifications []Notification
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

// WithMainView names the view the camera follow applies to.
func WithMainView(id string) Option {
	return func(r *Router) { r.mainView = id }
}

// WithViews names views that receive entity batches before they are
// mounted. The registry holds those batches until the view exists.
func WithViews(ids ...string) Option {
	return func(r *Router) { r.views = append(r.views, ids...) }
}

// WithFollow starts with camera follow on.
func WithFollow(on bool) Option {
	return func(r *Router) { r.follow = on }
}

// WithLocalMovement lets an offline router move the player itself.
func WithLocalMovement() Option {
	return func(r *Router) { r.local = true }
}

// WithClock overrides the notification timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// NewRouter creates a router. link may be nil for an offline session.
func NewRouter(scenes Scenes, link Link, opts ...Option) *Router {
	r := &Router{
		scenes:   scenes,
		link:     link,
		log:      logrus.StandardLogger(),
		now:      time.Now,
		mainView: "main",
		entities: make(map[string]scene.Entity),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connected reports the last known link state.
func (r *Router) Connected() bool { return r.connected }

// Follow reports whether the camera follows the player.
func (r *Router) Follow() bool { return r.follow }

// LastMap returns the most recent map, if any.
func (r *Router) LastMap() *mapdata.Map { return r.lastMap }

// Notifications returns the notification log, oldest first.
func (r *Router) Notifications() []Notification {
	return append([]Notification(nil), r.notifications...)
}

// Update drains up to limit pending events and status changes from the
// link without blocking. It returns the number of events handled.
func (r *Router) Update(limit int) int {
	if r.link == nil {
		return 0
	}
	for {
		select {
		case s := <-r.link.Status():
			r.HandleStatus(s)
			continue
		default:
		}
		break
	}

	handled := 0
	for limit <= 0 || handled < limit {
		select {
		case env := <-r.link.Events():
			r.Handle(env)
			handled++
		default:
			return handled
		}
	}
	return handled
}

// HandleStatus records a connection state change.
func (r *Router) HandleStatus(s transport.Status) {
	if s.Connected == r.connected {
		return
	}
	r.connected = s.Connected
	if s.Connected {
		r.notify(KindSystem, "CONNECTED")
	} else {
		r.notify(KindSystem, "CONNECTION_LOST")
	}
}

// Handle applies one server event.
func (r *Router) Handle(env transport.Envelope) {
	entry := r.log.WithField("event", env.Type)
	var err error
	switch env.Type {
	case EventMapData, EventMapChange:
		err = r.handleMap(env)
	case EventEntities:
		err = r.handleEntities(env)
	case EventEntitySpawned:
		err = r.handleSpawned(env)
	case EventEntityMoved:
		err = r.handleMoved(env)
	case EventEntityDespawned:
		err = r.handleDespawned(env)
	case EventPlayerPosition:
		err = r.handlePlayer(env)
	case EventCombat, EventDialog, EventTrigger:
		r.notify(env.Type, messageText(env.Data))
	default:
		entry.Debug("Ignoring unknown event")
	}
	if err != nil {
		entry.WithError(err).Warn("Dropping malformed event")
	}
}

func (r *Router) handleMap(env transport.Envelope) error {
	if len(env.Data) == 0 {
		return errors.New("empty map payload")
	}
	m, err := mapdata.Parse(env.Data)
	if err != nil {
		return err
	}
	return r.LoadMap(m)
}

// LoadMap validates m and renders it into every view, as if the server had
// sent it. Offline sessions use it to show a local map.
func (r *Router) LoadMap(m *mapdata.Map) error {
	if m == nil {
		return errors.New("nil map")
	}
	if _, err := m.Validate(); err != nil {
		return err
	}
	r.lastMap = m
	r.grid = m.WorldGrid()
	// Live entities belong to the previous map
	r.entities = make(map[string]scene.Entity)
	for _, id := range r.scenes.IDs() {
		r.scenes.RenderMap(id, m)
	}
	r.applyFollow()
	return nil
}

func decodeEntities(data json.RawMessage) ([]scene.Entity, error) {
	var list []scene.Entity
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Entities []scene.Entity `json:"entities"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Entities, nil
}

func (r *Router) handleEntities(env transport.Envelope) error {
	list, err := decodeEntities(env.Data)
	if err != nil {
		return err
	}
	for i := range list {
		list[i] = r.localize(list[i])
	}
	if len(list) > 0 {
		r.entities = make(map[string]scene.Entity, len(list))
		for _, e := range list {
			r.remember(e)
		}
	}
	for _, id := range r.targets() {
		r.scenes.UpdateEntities(id, list)
	}
	return nil
}

// targets returns the existing views followed by configured views that do
// not exist yet.
func (r *Router) targets() []string {
	ids := r.scenes.IDs()
	out := append([]string(nil), ids...)
	for _, v := range r.views {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func (r *Router) handleSpawned(env transport.Envelope) error {
	var e scene.Entity
	if err := env.Decode(&e); err != nil {
		return err
	}
	if !e.Valid() {
		return errors.New("spawned entity has no position")
	}
	e = r.localize(e)
	r.remember(e)
	for _, id := range r.scenes.IDs() {
		r.scenes.UpsertEntity(id, e)
	}
	return nil
}

func (r *Router) handleMoved(env transport.Envelope) error {
	var p movedPayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	pos := p.Position
	if !pos.ok() {
		pos = p.To
	}
	if !pos.ok() {
		return errors.New("moved entity has no position")
	}
	x, y := *pos.X, *pos.Y

	if r.player.known && p.EntityID == r.player.id {
		r.movePlayer(x, y, r.player.name)
		return nil
	}
	e, ok := r.entities[p.EntityID]
	if !ok {
		r.log.WithField("entity", p.EntityID).Debug("Move for unknown entity")
		return nil
	}
	e = e.At(x, y)
	r.entities[p.EntityID] = e
	for _, id := range r.scenes.IDs() {
		if !r.scenes.MoveEntity(id, e.Key(), x, y) {
			r.scenes.UpsertEntity(id, e)
		}
	}
	return nil
}

func (r *Router) handleDespawned(env transport.Envelope) error {
	var p despawnedPayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	e, ok := r.entities[p.EntityID]
	if !ok {
		return nil
	}
	delete(r.entities, p.EntityID)
	for _, id := range r.scenes.IDs() {
		r.scenes.RemoveEntity(id, e.Key())
	}
	return nil
}

func (r *Router) handlePlayer(env transport.Envelope) error {
	var p playerPayload
	if err := env.Decode(&p); err != nil {
		return err
	}
	if p.X == nil || p.Y == nil {
		return errors.New("player position without coordinates")
	}
	if p.ID != "" && p.ID != r.player.id {
		r.player.id = p.ID
		// Known until now as another player
		if e, ok := r.entities[p.ID]; ok {
			delete(r.entities, p.ID)
			for _, id := range r.scenes.IDs() {
				r.scenes.RemoveEntity(id, e.Key())
			}
		}
	}
	name := p.Name
	if name == "" {
		name = r.player.name
	}
	r.movePlayer(*p.X, *p.Y, name)
	return nil
}

// PlacePlayer puts the player at x,y in every view.
func (r *Router) PlacePlayer(x, y int, name string) {
	r.movePlayer(x, y, name)
}

func (r *Router) movePlayer(x, y int, name string) {
	r.player.x, r.player.y, r.player.name, r.player.known = x, y, name, true
	for _, id := range r.scenes.IDs() {
		if !r.scenes.UpdatePlayerPosition(id, x, y) {
			r.scenes.AddPlayer(id, x, y, name)
		}
	}
	r.applyFollow()
}

// localize marks the record of the local player, learned from
// player_position, so it maps onto the player visual.
func (r *Router) localize(e scene.Entity) scene.Entity {
	if e.Kind() == scene.KindPlayer && r.player.id != "" && e.ID == r.player.id {
		e.ID = ""
	}
	return e
}

func (r *Router) remember(e scene.Entity) {
	if e.Local() {
		return
	}
	id := e.ID
	if id == "" {
		id = e.Name
	}
	if id != "" {
		r.entities[id] = e
	}
}

// Mounted replays the known world into a view that was just created. Maps
// are not retried by the registry, so this is how a late view catches up.
// The entities go in as one full batch, which supersedes batches the
// registry still holds for the view.
func (r *Router) Mounted(id string) {
	if r.lastMap != nil {
		r.scenes.RenderMap(id, r.lastMap)
	}
	if r.player.known {
		r.scenes.AddPlayer(id, r.player.x, r.player.y, r.player.name)
	}
	ids := make([]string, 0, len(r.entities))
	for eid := range r.entities {
		ids = append(ids, eid)
	}
	sort.Strings(ids)
	batch := make([]scene.Entity, 0, len(ids))
	for _, eid := range ids {
		batch = append(batch, r.entities[eid])
	}
	r.scenes.UpdateEntities(id, batch)
	if id == r.mainView {
		r.applyFollow()
	}
}

// HandleIntent turns a player intent into a server command, or handles it
// locally. It reports false for intents the router does not own.
func (r *Router) HandleIntent(intent input.Intent) bool {
	if dx, dy, ok := intent.Movement(); ok {
		if r.link == nil && r.local {
			r.stepLocal(dx, dy)
			return true
		}
		r.send(CommandMove, map[string]string{"direction": world.FromDelta(dx, dy).Name()})
		return true
	}
	switch intent.Action {
	case input.ActionAttack:
		r.send(CommandAttack, nil)
	case input.ActionUseItem:
		r.send(CommandUseItem, nil)
	case input.ActionInteract:
		r.send(CommandInteract, nil)
	case input.ActionToggleFollow:
		r.follow = !r.follow
		if !r.follow {
			r.scenes.FitToView(r.mainView)
		}
		r.applyFollow()
	default:
		return false
	}
	return true
}

// stepLocal moves the player one tile on the current map when the target
// is walkable. Only offline sessions move the player themselves.
func (r *Router) stepLocal(dx, dy int) {
	if !r.player.known || r.grid == nil {
		return
	}
	if x, y, ok := r.grid.Step(r.player.x, r.player.y, world.FromDelta(dx, dy)); ok {
		r.movePlayer(x, y, r.player.name)
	}
}

func (r *Router) send(typ string, data any) {
	if r.link == nil {
		r.notify(KindSystem, "NOT_CONNECTED")
		return
	}
	if err := r.link.Send(typ, data); err != nil {
		r.log.WithError(err).WithField("command", typ).Debug("Command not sent")
		if errors.Is(err, transport.ErrNotConnected) {
			r.notify(KindSystem, "NOT_CONNECTED")
		}
	}
}

func (r *Router) applyFollow() {
	if r.follow && r.player.known {
		r.scenes.CenterOn(r.mainView, scene.PlayerKey)
	}
}

// Notify adds a local notification, for example about the graphics device.
func (r *Router) Notify(kind, text string) { r.notify(kind, text) }

func (r *Router) notify(kind, text string) {
	if text == "" {
		return
	}
	r.notifications = append(r.notifications, Notification{Kind: kind, Text: text, At: r.now()})
	if over := len(r.notifications) - MaxNotifications; over > 0 {
		r.notifications = append([]Notification(nil), r.notifications[over:]...)
	}
}

// messageText picks a readable line out of an opaque notification payload.
func messageText(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err == nil {
		for _, key := range []string{"message", "text", "messaggio"} {
			if s, ok := fields[key].(string); ok && s != "" {
				return s
			}
		}
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(data))
}
