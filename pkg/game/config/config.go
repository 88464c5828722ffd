// Package config reads the client configuration from flags and the
// environment.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"worldview/pkg/engine/input"
	"worldview/pkg/engine/viewport"
)

// Environment variables consulted when the matching flag is not given.
const (
	EnvServer = "WORLDVIEW_SERVER"
	EnvAssets = "WORLDVIEW_ASSETS"
)

var (
	ErrBadWindow   = errors.New("window size must be positive")
	ErrBadTileSize = errors.New("tile size must be between 8 and 256")
	ErrBadPadding  = errors.New("padding must not be negative")
	ErrBadMap      = errors.New("offline map must be \"dev\" or \"bsp\"")
	ErrBadBinding  = errors.New("key binding must be action=key")
)

// Offline maps.
const (
	MapDev = "dev"
	MapBSP = "bsp"
)

// Config is the resolved client configuration.
type Config struct {
	// Server is the websocket URL of the game server. Empty runs offline.
	Server string
	// Assets is an http(s) base URL or a local directory. Empty disables
	// texture loading and everything is drawn as placeholders.
	Assets string

	Width, Height int
	TileSize      int
	Padding       int

	Tolerant bool
	Minimap  bool
	Follow   bool
	Language string

	LogLevel  string
	LogFormat string

	// Dump prints the scene state after the first map and exits.
	Dump bool
	// Terminal runs in the terminal instead of opening a window.
	Terminal bool

	// Map picks the offline map; Level and Seed feed the generator.
	Map   string
	Level int
	Seed  int64

	// Bind rebinds keys, as comma separated action=key pairs.
	Bind string
}

// Binding assigns one input code to an action.
type Binding struct {
	Action input.Action
	Code   string
}

// Bindings parses Bind.
func (c Config) Bindings() ([]Binding, error) {
	var out []Binding
	for _, pair := range strings.Split(c.Bind, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, code, ok := strings.Cut(pair, "=")
		code = strings.ToLower(strings.TrimSpace(code))
		if !ok || code == "" {
			return nil, fmt.Errorf("%w: %q", ErrBadBinding, pair)
		}
		action, ok := input.ActionByName(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("%w: unknown action %q", ErrBadBinding, name)
		}
		out = append(out, Binding{Action: action, Code: code})
	}
	return out, nil
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Width:    1280,
		Height:   800,
		TileSize: viewport.DefaultTileSize,
		Padding:  viewport.DefaultPadding,
		Minimap:  true,
		Language: "en_GB",
		Map:      MapDev,
		Level:    1,
	}
}

// AssetsAreRemote reports whether Assets is a URL rather than a directory.
func (c Config) AssetsAreRemote() bool {
	return strings.HasPrefix(c.Assets, "http://") || strings.HasPrefix(c.Assets, "https://")
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("%w: %dx%d", ErrBadWindow, c.Width, c.Height))
	}
	if c.TileSize < 8 || c.TileSize > 256 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrBadTileSize, c.TileSize))
	}
	if c.Padding < 0 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrBadPadding, c.Padding))
	}
	if c.Map != MapDev && c.Map != MapBSP {
		errs = append(errs, fmt.Errorf("%w: %q", ErrBadMap, c.Map))
	}
	if _, err := c.Bindings(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Load parses args (without the program name). Flags win over the
// environment, which wins over the defaults.
func Load(args []string) (Config, error) {
	return load(args, os.Getenv, os.Stderr)
}

func load(args []string, getenv func(string) string, usage io.Writer) (Config, error) {
	cfg := Default()
	cfg.Server = getenv(EnvServer)
	cfg.Assets = getenv(EnvAssets)

	fs := flag.NewFlagSet("worldview", flag.ContinueOnError)
	fs.SetOutput(usage)
	fs.StringVar(&cfg.Server, "server", cfg.Server, "game server websocket URL (env "+EnvServer+")")
	fs.StringVar(&cfg.Assets, "assets", cfg.Assets, "asset base URL or directory (env "+EnvAssets+")")
	fs.IntVar(&cfg.Width, "width", cfg.Width, "window width")
	fs.IntVar(&cfg.Height, "height", cfg.Height, "window height")
	fs.IntVar(&cfg.TileSize, "tile", cfg.TileSize, "tile size in pixels")
	fs.IntVar(&cfg.Padding, "padding", cfg.Padding, "padding around the fitted map")
	fs.BoolVar(&cfg.Tolerant, "tolerant", cfg.Tolerant, "resolve view ids by substring when there is no exact match")
	fs.BoolVar(&cfg.Minimap, "minimap", cfg.Minimap, "show the minimap view")
	fs.BoolVar(&cfg.Follow, "follow", cfg.Follow, "centre the main view on the player")
	fs.StringVar(&cfg.Language, "lang", cfg.Language, "language of on-screen text")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (default from LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text or json (default from LOG_FORMAT)")
	fs.BoolVar(&cfg.Dump, "dump", cfg.Dump, "print the scene state after the first map and exit")
	fs.BoolVar(&cfg.Terminal, "tui", cfg.Terminal, "play in the terminal instead of a window")
	fs.StringVar(&cfg.Map, "map", cfg.Map, "offline map: dev or bsp")
	fs.IntVar(&cfg.Level, "level", cfg.Level, "size of the generated offline map")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "seed of the generated offline map (0 picks one)")
	fs.StringVar(&cfg.Bind, "bind", cfg.Bind, "rebind keys, e.g. attack=x,use_item=r")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
