// Package tui hosts the main view in a terminal. Surfaces draw into memory
// canvases and each frame is printed as a character map.
package tui

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/leonelquinteros/gotext"
	"github.com/sirupsen/logrus"
	"github.com/zyedidia/generic/mapset"

	"worldview/pkg/engine/input"
	"worldview/pkg/engine/terminal"
	"worldview/pkg/game/devtools"
	"worldview/pkg/game/renderer"
	"worldview/pkg/game/scene"
	"worldview/pkg/game/session"
	"worldview/pkg/game/texture"
)

// Canvas size of the terminal views. Only the transform depends on it.
const (
	CanvasWidth  = 640
	CanvasHeight = 480
)

// DefaultInterval is the frame interval.
const DefaultInterval = 100 * time.Millisecond

// commands maps typed words to input codes, on top of the single-key codes
// of the bindings.
var commands = map[string]string{
	"north":  "w",
	"south":  "s",
	"west":   "a",
	"east":   "d",
	"attack": "space",
	"use":    "u",
	"dump":   "f9",
	"reload": "f5",
	"q":      "escape",
	"quit":   "escape",
}

// dynamicGet is used for runtime translation key lookups.
var dynamicGet = gotext.Get

var (
	colorTitle  = color.Style{color.FgMagenta, color.OpBold}
	colorSubtle = color.Style{color.FgGray, color.OpBold}
)

type memDevice struct{}

func (memDevice) Class() string { return "terminal" }
func (memDevice) Err() error    { return nil }
func (memDevice) Flush()        {}
func (memDevice) ReleasePool()  {}

// memCanvas has a size and nothing else; the frame is built from the
// surface state, not from pixels.
type memCanvas struct{ w, h int }

func (c *memCanvas) Size() (int, int)     { return c.w, c.h }
func (c *memCanvas) Resize(w, h int)      { c.w, c.h = w, h }
func (c *memCanvas) Device() scene.Device { return memDevice{} }
func (c *memCanvas) Detach()              {}
func (c *memCanvas) Release()             {}

type backend struct{}

func (backend) NewCanvas(_ scene.Container, w, h int) (scene.Canvas, error) {
	return &memCanvas{w: w, h: h}, nil
}

type container struct{ w, h int }

func (c container) Size() (int, int) { return c.w, c.h }

// Options configures the terminal host.
type Options struct {
	Out io.Writer
	// In is read line by line for commands. Nil disables input.
	In       io.Reader
	Logger   logrus.FieldLogger
	Interval time.Duration
	TileSize int
	Padding  float64
	// Once prints a full scene dump as soon as a map is shown, then returns.
	Once bool
	// Colour adds terminal colour codes; ClearScreen redraws in place.
	Colour      bool
	ClearScreen bool
}

// TUIHost is the terminal implementation of renderer.Host.
type TUIHost struct {
	opts Options
	log  logrus.FieldLogger

	registry *scene.Registry
	router   *session.Router
	cache    *texture.Cache

	mounted   mapset.Set[string]
	lines     chan string
	lastFrame string
}

// New creates a terminal host writing to opts.Out (stdout by default).
func New(opts Options) *TUIHost {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &TUIHost{
		opts:    opts,
		log:     opts.Logger,
		mounted: mapset.New[string](),
	}
}

// Backend returns the canvas factory to build the scene registry with.
func (t *TUIHost) Backend() scene.Backend { return backend{} }

// Bind connects the host to the scene registry, the session router and the
// texture cache.
func (t *TUIHost) Bind(reg *scene.Registry, router *session.Router, cache *texture.Cache) {
	t.registry = reg
	t.router = router
	t.cache = cache
}

// Mount creates the surface of view id.
func (t *TUIHost) Mount(id string) error {
	cfg := scene.Config{ID: id, TileSize: t.opts.TileSize, Padding: t.opts.Padding}
	if _, err := t.registry.Create(container{CanvasWidth, CanvasHeight}, cfg); err != nil {
		return fmt.Errorf("mount %s: %w", id, err)
	}
	t.mounted.Put(id)
	t.router.Mounted(id)
	return nil
}

// Unmount destroys the surface of view id.
func (t *TUIHost) Unmount(id string) bool {
	if !t.mounted.Has(id) {
		return false
	}
	t.mounted.Remove(id)
	return t.registry.Destroy(id)
}

// Mounted reports whether view id is mounted.
func (t *TUIHost) Mounted(id string) bool { return t.mounted.Has(id) }

// Run mounts the main view and prints frames until ctx is cancelled, the
// input ends or the user quits.
func (t *TUIHost) Run(ctx context.Context) error {
	if t.registry == nil || t.router == nil {
		return errors.New("host is not bound")
	}
	defer t.registry.CleanupAll()
	if err := t.Mount(renderer.ViewMain); err != nil {
		return err
	}
	if t.opts.In != nil {
		t.lines = make(chan string)
		go t.readLines(ctx, t.opts.In)
	}

	ticker := time.NewTicker(t.opts.Interval)
	defer ticker.Stop()
	for {
		if t.Step() {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-t.lines:
			if !ok {
				return nil
			}
			if t.HandleLine(line) {
				return nil
			}
		case <-ticker.C:
		}
	}
}

func (t *TUIHost) readLines(ctx context.Context, in io.Reader) {
	defer close(t.lines)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case t.lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}

// Step runs one update and prints the frame if it changed. In Once mode it
// prints the dump and reports true as soon as a map is shown.
func (t *TUIHost) Step() bool {
	t.router.Update(0)
	t.registry.Tick()

	if t.opts.Once {
		s, ok := t.registry.Surface(renderer.ViewMain)
		if !ok || s.Map() == nil {
			return false
		}
		devtools.WriteDump(t.opts.Out, t.registry, t.cache)
		return true
	}

	frame := t.Frame()
	if frame == t.lastFrame {
		return false
	}
	t.lastFrame = frame
	if t.opts.ClearScreen {
		fmt.Fprint(t.opts.Out, "\x1b[H\x1b[2J")
	}
	fmt.Fprint(t.opts.Out, frame)
	return false
}

// HandleLine maps one typed line to an intent. It reports true on quit.
func (t *TUIHost) HandleLine(line string) bool {
	code := strings.ToLower(strings.TrimSpace(line))
	if c, ok := commands[code]; ok {
		code = c
	}
	switch code {
	case "":
		return false
	case "help", "?":
		t.writeHelp(t.opts.Out)
		return false
	}
	intent := input.MapToIntent(input.NewDebouncedInput(input.RawInput{
		Device:    input.DeviceKeyboard,
		Code:      code,
		Timestamp: time.Now(),
	}))
	switch intent.Action {
	case input.ActionNone:
		t.router.Notify(session.KindSystem, "UNKNOWN_COMMAND")
	case input.ActionQuit:
		return true
	case input.ActionDump:
		devtools.WriteDump(t.opts.Out, t.registry, t.cache)
	case input.ActionReloadTextures:
		if t.cache != nil {
			t.cache.ClearCache(false)
			t.registry.RefreshTextures()
		}
	case input.ActionToggleMinimap, input.ActionSimulateDeviceLoss:
		t.log.WithField("action", input.ActionName(intent.Action)).Debug("Not available in the terminal")
	default:
		t.router.HandleIntent(intent)
	}
	return false
}

// writeHelp lists the typed commands and the key of every bound action.
func (t *TUIHost) writeHelp(w io.Writer) {
	words := make([]string, 0, len(commands))
	for word := range commands {
		words = append(words, word)
	}
	sort.Strings(words)
	fmt.Fprintf(w, "%s: %s\n", dynamicGet("COMMANDS"), strings.Join(words, ", "))

	byAction := input.GetBindingsByAction()
	actions := make([]input.Action, 0, len(byAction))
	for a := range byAction {
		actions = append(actions, a)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	for _, a := range actions {
		fmt.Fprintf(w, "  %-22s %s\n", input.ActionName(a), strings.Join(byAction[a], " "))
	}
}

// Frame renders the header, the main view, the status line and the
// messages pane.
func (t *TUIHost) Frame() string {
	var b bytes.Buffer
	style := func(s color.Style, text string) string {
		if t.opts.Colour {
			return s.Sprint(text)
		}
		return text
	}
	format := func(markup string) string {
		if t.opts.Colour {
			return renderer.FormatMarkup(markup)
		}
		return renderer.StripMarkup(markup)
	}

	s, ok := t.registry.Surface(renderer.ViewMain)
	switch {
	case !ok:
		fmt.Fprintln(&b, style(colorSubtle, dynamicGet("STATUS_NO_MAP")))
	case s.Map() == nil:
		fmt.Fprintln(&b, style(colorSubtle, dynamicGet("STATUS_NO_MAP")))
	default:
		fmt.Fprintln(&b, style(colorTitle, s.MapName()))
		fmt.Fprintln(&b)
		devtools.WriteSurface(&b, s, t.opts.Colour)
	}
	fmt.Fprintln(&b)

	status := dynamicGet("STATUS_OFFLINE")
	if t.router.Connected() {
		status = dynamicGet("STATUS_ONLINE")
	}
	if ok {
		status += fmt.Sprintf("  %s %d", dynamicGet("STATUS_ENTITIES"), s.Entities().Len())
	}
	fmt.Fprintln(&b, style(colorSubtle, status))

	width := min(terminal.Width(), 100)
	label := " " + dynamicGet("MESSAGES") + " "
	side := max((width-len(label))/2, 1)
	fmt.Fprintln(&b, style(colorSubtle, strings.Repeat("─", side)+label+strings.Repeat("─", max(width-side-len(label), 1))))
	notes := t.router.Notifications()
	if len(notes) == 0 {
		fmt.Fprintln(&b, style(colorSubtle, "  "+dynamicGet("NO_MESSAGES")))
	}
	if len(notes) > 5 {
		notes = notes[len(notes)-5:]
	}
	for _, n := range notes {
		fmt.Fprintf(&b, "  %s\n", format(renderer.NotificationMarkup(n.Kind, n.Text)))
	}
	fmt.Fprint(&b, "\n> ")
	return b.String()
}
