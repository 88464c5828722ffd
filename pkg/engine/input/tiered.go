package input

import (
	"sort"
	"strings"
	"time"
)

// Device represents a physical input source.
type Device int

const (
	DeviceUnknown Device = iota
	DeviceKeyboard
	DeviceGamepad
)

// Action represents a high‑level intent of the player.
type Action int

const (
	ActionNone Action = iota

	// Movement
	ActionMoveNorth
	ActionMoveSouth
	ActionMoveWest
	ActionMoveEast

	// World interaction, sent to the server
	ActionAttack
	ActionUseItem
	ActionInteract

	// View / client side
	ActionToggleFollow  // Camera follows the player (F)
	ActionToggleMinimap // Mount/unmount the minimap view (M)
	ActionReloadTextures
	ActionSimulateDeviceLoss // F8, developer aid
	ActionDump               // F9, dump scene state to stdout
	ActionQuit
)

// Intent is the 4th‑layer, high‑level description of what the player wants to do.
type Intent struct {
	Action Action
}

// Movement reports whether the intent moves the player, and the tile delta.
func (i Intent) Movement() (dx, dy int, ok bool) {
	switch i.Action {
	case ActionMoveNorth:
		return 0, -1, true
	case ActionMoveSouth:
		return 0, 1, true
	case ActionMoveWest:
		return -1, 0, true
	case ActionMoveEast:
		return 1, 0, true
	default:
		return 0, 0, false
	}
}

// RawInput is the 1st‑layer event emitted directly from an input device.
// Code is a device‑specific identifier (e.g. "w", "arrow_up", "gamepad_dpad_up").
type RawInput struct {
	Device    Device
	Code      string
	Timestamp time.Time
}

// DebouncedInput is the 2nd‑layer representation after debouncing/deduplication.
// Ebiten's just-pressed helpers already debounce, so this is a thin wrapper.
type DebouncedInput struct {
	Device Device
	Code   string
}

// NewDebouncedInput converts a raw event to a debounced event.
func NewDebouncedInput(raw RawInput) DebouncedInput {
	return DebouncedInput{
		Device: raw.Device,
		Code:   raw.Code,
	}
}

// reserved codes cannot be rebound
var reserved = map[string]bool{
	"arrow_up": true, "arrow_down": true, "arrow_left": true, "arrow_right": true,
	"escape": true, "f8": true, "f9": true,
}

func defaultBindings() map[string]Action {
	return map[string]Action{
		// Movement (arrows, WASD, Vim)
		"arrow_up":    ActionMoveNorth,
		"w":           ActionMoveNorth,
		"k":           ActionMoveNorth,
		"arrow_down":  ActionMoveSouth,
		"s":           ActionMoveSouth,
		"j":           ActionMoveSouth,
		"arrow_left":  ActionMoveWest,
		"a":           ActionMoveWest,
		"h":           ActionMoveWest,
		"arrow_right": ActionMoveEast,
		"d":           ActionMoveEast,
		"l":           ActionMoveEast,

		"space": ActionAttack,
		"u":     ActionUseItem,
		"e":     ActionInteract,
		"enter": ActionInteract,

		"f":  ActionToggleFollow,
		"m":  ActionToggleMinimap,
		"f5": ActionReloadTextures,
		"f8": ActionSimulateDeviceLoss,
		"f9": ActionDump,

		"escape": ActionQuit,

		// Controller/gamepad specific bindings
		"gamepad_dpad_up":    ActionMoveNorth,
		"gamepad_dpad_down":  ActionMoveSouth,
		"gamepad_dpad_left":  ActionMoveWest,
		"gamepad_dpad_right": ActionMoveEast,
		"gamepad_a":          ActionInteract,
		"gamepad_x":          ActionAttack,
		"gamepad_y":          ActionUseItem,
		"gamepad_start":      ActionToggleMinimap,
	}
}

// bindings maps raw codes to actions (3rd-layer bindings).
// Multiple codes may point to the same Action.
var bindings = defaultBindings()

// MapToIntent is the 3rd+4th layer: it applies the current bindings to a
// debounced input and returns a high‑level Intent.
func MapToIntent(ev DebouncedInput) Intent {
	if act, ok := bindings[ev.Code]; ok {
		return Intent{Action: act}
	}
	return Intent{Action: ActionNone}
}

// ActionName returns a human-friendly name for an action.
func ActionName(a Action) string {
	switch a {
	case ActionMoveNorth:
		return "Move North"
	case ActionMoveSouth:
		return "Move South"
	case ActionMoveWest:
		return "Move West"
	case ActionMoveEast:
		return "Move East"
	case ActionAttack:
		return "Attack"
	case ActionUseItem:
		return "Use Item"
	case ActionInteract:
		return "Interact"
	case ActionToggleFollow:
		return "Follow Player"
	case ActionToggleMinimap:
		return "Toggle Minimap"
	case ActionReloadTextures:
		return "Reload Textures"
	case ActionSimulateDeviceLoss:
		return "Simulate Device Loss"
	case ActionDump:
		return "Dump Scenes"
	case ActionQuit:
		return "Quit"
	default:
		return "None"
	}
}

// ActionByName finds an action by its ActionName, ignoring case, spaces and
// underscores ("use_item", "Use Item" and "useitem" all match).
func ActionByName(name string) (Action, bool) {
	norm := func(s string) string {
		return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(s))
	}
	want := norm(name)
	for a := ActionMoveNorth; a <= ActionQuit; a++ {
		if norm(ActionName(a)) == want {
			return a, true
		}
	}
	return ActionNone, false
}

// GetBindingsByAction returns the current bindings grouped by action.
func GetBindingsByAction() map[Action][]string {
	result := make(map[Action][]string)
	for code, act := range bindings {
		result[act] = append(result[act], code)
	}
	// Stable ordering so help text doesn't flicker
	for act, codes := range result {
		sort.Strings(codes)
		result[act] = codes
	}
	return result
}

// SetSingleBinding replaces all rebindable codes of action with code.
func SetSingleBinding(action Action, code string) {
	for c, a := range bindings {
		if reserved[c] {
			continue
		}
		if a == action {
			delete(bindings, c)
		}
	}
	if code != "" && !reserved[code] {
		bindings[code] = action
	}
}

// ResetBindings restores the default bindings.
func ResetBindings() {
	bindings = defaultBindings()
}
