package ebiten

import (
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/sirupsen/logrus"

	engineinput "worldview/pkg/engine/input"
	"worldview/pkg/game/devtools"
	"worldview/pkg/game/renderer"
	"worldview/pkg/game/scene"
	"worldview/pkg/game/session"
)

// keyCodes maps Ebiten keys to the raw codes of the input bindings.
var keyCodes = map[ebiten.Key]string{
	ebiten.KeyArrowUp:    "arrow_up",
	ebiten.KeyArrowDown:  "arrow_down",
	ebiten.KeyArrowLeft:  "arrow_left",
	ebiten.KeyArrowRight: "arrow_right",
	ebiten.KeyW:          "w",
	ebiten.KeyA:          "a",
	ebiten.KeyS:          "s",
	ebiten.KeyD:          "d",
	ebiten.KeyH:          "h",
	ebiten.KeyJ:          "j",
	ebiten.KeyK:          "k",
	ebiten.KeyL:          "l",
	ebiten.KeySpace:      "space",
	ebiten.KeyU:          "u",
	ebiten.KeyE:          "e",
	ebiten.KeyEnter:      "enter",
	ebiten.KeyF:          "f",
	ebiten.KeyM:          "m",
	ebiten.KeyF5:         "f5",
	ebiten.KeyF8:         "f8",
	ebiten.KeyF9:         "f9",
	ebiten.KeyEscape:     "escape",
}

// gamepadCodes maps standard gamepad buttons to raw codes.
var gamepadCodes = map[ebiten.StandardGamepadButton]string{
	ebiten.StandardGamepadButtonLeftTop:     "gamepad_dpad_up",
	ebiten.StandardGamepadButtonLeftBottom:  "gamepad_dpad_down",
	ebiten.StandardGamepadButtonLeftLeft:    "gamepad_dpad_left",
	ebiten.StandardGamepadButtonLeftRight:   "gamepad_dpad_right",
	ebiten.StandardGamepadButtonRightBottom: "gamepad_a",
	ebiten.StandardGamepadButtonRightLeft:   "gamepad_x",
	ebiten.StandardGamepadButtonRightTop:    "gamepad_y",
	ebiten.StandardGamepadButtonCenterRight: "gamepad_start",
}

// Update implements ebiten.Game. It runs on the one goroutine that touches
// scene state: link events, retries, input and device signals are all
// handled here.
func (h *Host) Update() error {
	// Log window opening on first update (confirms window is actually running)
	if !h.windowOpenedLogged {
		h.windowOpenedLogged = true
		w, ht := ebiten.WindowSize()
		h.log.WithFields(logrus.Fields{
			"width":  w,
			"height": ht,
			"device": h.backend.dev.Class(),
		}).Info("Main window opened successfully")
	}
	if h.ctx != nil && h.ctx.Err() != nil {
		return ebiten.Termination
	}

	if h.layoutDirty {
		h.applyLayout()
		if failed := h.registry.ResizeAll(); failed > 0 {
			h.log.WithField("failed", failed).Warn("Some views did not resize")
		}
	}

	h.pollLoads()
	h.pollDevice()

	h.router.Update(eventsPerFrame)
	h.registry.Tick()
	h.decoratePlayer()

	for _, intent := range h.checkInput() {
		if err := h.handleIntent(intent); err != nil {
			return err
		}
	}

	h.messages = visibleMessages(h.router.Notifications(), h.now())
	return nil
}

// checkInput returns the intents of this frame: keys just pressed, held
// movement keys past their repeat delay, and gamepad buttons.
func (h *Host) checkInput() []engineinput.Intent {
	now := h.now()
	var intents []engineinput.Intent
	emit := func(dev engineinput.Device, code string) {
		intent := engineinput.MapToIntent(engineinput.NewDebouncedInput(engineinput.RawInput{
			Device:    dev,
			Code:      code,
			Timestamp: now,
		}))
		if intent.Action != engineinput.ActionNone {
			intents = append(intents, intent)
		}
	}

	for key, code := range keyCodes {
		if h.shouldRepeatKey(key, ebiten.IsKeyPressed(key), code, now) {
			emit(engineinput.DeviceKeyboard, code)
		}
	}

	for _, id := range ebiten.AppendGamepadIDs(nil) {
		if !ebiten.IsStandardGamepadLayoutAvailable(id) {
			continue
		}
		for button, code := range gamepadCodes {
			if inpututil.IsStandardGamepadButtonJustPressed(id, button) {
				emit(engineinput.DeviceGamepad, code)
			}
		}
	}
	return intents
}

// shouldRepeatKey reports whether a key triggers this frame: on the initial
// press, and for movement keys again after the repeat delay.
func (h *Host) shouldRepeatKey(key ebiten.Key, pressed bool, code string, now time.Time) bool {
	state, exists := h.keyStates[key]
	if !pressed {
		if exists {
			delete(h.keyStates, key)
		}
		return false
	}
	if !exists {
		h.keyStates[key] = &keyRepeatInfo{pressedAt: now, lastRepeat: now}
		return true
	}
	intent := engineinput.MapToIntent(engineinput.DebouncedInput{Device: engineinput.DeviceKeyboard, Code: code})
	if _, _, movement := intent.Movement(); !movement {
		return false
	}
	return repeatDue(state, now)
}

// repeatDue advances state and reports whether a held key repeats now.
func repeatDue(state *keyRepeatInfo, now time.Time) bool {
	if now.Sub(state.pressedAt) < keyRepeatInitialDelay*time.Millisecond {
		return false
	}
	if now.Sub(state.lastRepeat) < keyRepeatInterval*time.Millisecond {
		return false
	}
	state.lastRepeat = now
	return true
}

// handleIntent runs the host-side actions and hands the rest to the router.
func (h *Host) handleIntent(intent engineinput.Intent) error {
	entry := h.log.WithField("action", engineinput.ActionName(intent.Action))
	switch intent.Action {
	case engineinput.ActionQuit:
		entry.Info("Quit requested")
		return ebiten.Termination
	case engineinput.ActionToggleMinimap:
		h.toggleMinimap()
	case engineinput.ActionReloadTextures:
		entry.Info("Reloading textures")
		h.cache.ClearCache(false)
		h.registry.RefreshTextures()
		h.Reload()
	case engineinput.ActionSimulateDeviceLoss:
		h.loseDevice()
	case engineinput.ActionDump:
		h.dump()
	default:
		if !h.router.HandleIntent(intent) {
			entry.Debug("Intent ignored")
		}
	}
	return nil
}

func (h *Host) toggleMinimap() {
	if h.Mounted(renderer.ViewMinimap) {
		h.Unmount(renderer.ViewMinimap)
		h.minimap = false
		return
	}
	if err := h.Mount(renderer.ViewMinimap); err != nil {
		h.log.WithError(err).Warn("Minimap not mounted")
		return
	}
	h.minimap = true
}

// dump prints the scene state and writes it, with an HTML screenshot of the
// main view, to the dump directory.
func (h *Host) dump() {
	devtools.PrintDump(h.registry, h.cache)
	if h.opts.DumpDir == "" {
		return
	}
	if path, err := devtools.DumpToFile(h.opts.DumpDir, h.registry, h.cache); err != nil {
		h.log.WithError(err).Warn("Scene dump not written")
	} else {
		h.log.WithField("path", path).Info("Scene dump written")
	}
	if s, ok := h.registry.Surface(renderer.ViewMain); ok {
		if path, err := devtools.SaveScreenshotHTML(h.opts.DumpDir, s, h.now()); err != nil {
			h.log.WithError(err).Debug("Screenshot not written")
		} else {
			h.log.WithField("path", path).Info("Screenshot written")
		}
	}
}

// pollLoads picks up a finished background texture load.
func (h *Host) pollLoads() {
	select {
	case res := <-h.loads:
		h.loading = false
		entry := h.log.WithField("loaded", res.loaded)
		if res.err != nil {
			entry.WithError(res.err).Warn("Texture load incomplete")
		} else {
			entry.Info("Textures loaded")
		}
		h.registry.RefreshTextures()
	default:
	}
}

// loseDevice simulates a lost graphics context. It is restored after
// deviceRestoreDelay.
func (h *Host) loseDevice() {
	if h.backend.dev.Err() != nil {
		return
	}
	h.backend.dev.lose()
	h.registry.Guard().DeviceLost()
	h.router.Notify(session.KindSystem, "DEVICE_LOST")
	h.restoreAt = h.now().Add(deviceRestoreDelay)
}

// pollDevice restores a simulated loss once it is due. Textures of the old
// context are dropped and loaded again.
func (h *Host) pollDevice() {
	if h.restoreAt.IsZero() || h.now().Before(h.restoreAt) {
		return
	}
	h.restoreAt = time.Time{}
	h.backend.dev.restore()
	h.cache.ClearCache(true)
	h.registry.Guard().DeviceRestored()
	h.outlineFailed = false
	h.router.Notify(session.KindSystem, "DEVICE_RESTORED")
	h.Reload()
}

// decoratePlayer outlines the player on the main view. Effects are stripped
// on device loss, so this puts the outline back once the device is usable.
func (h *Host) decoratePlayer() {
	s, ok := h.registry.Surface(renderer.ViewMain)
	if !ok || !s.Ready() || s.DeviceLost() {
		return
	}
	v, ok := s.Entities().Player()
	if !ok || len(v.Sprite.Effects()) > 0 || h.outlineFailed {
		return
	}
	if !h.registry.Guard().DeviceUsable(s) {
		return
	}
	if !h.registry.ApplyEffect(renderer.ViewMain, scene.PlayerKey, NewOutline(colorPlayerOutline)) {
		h.outlineFailed = true
	}
}
