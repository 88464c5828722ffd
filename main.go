package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leonelquinteros/gotext"
	"github.com/sirupsen/logrus"

	"worldview/pkg/engine/input"
	"worldview/pkg/engine/terminal"
	"worldview/pkg/game/assets"
	"worldview/pkg/game/config"
	"worldview/pkg/game/devtools"
	"worldview/pkg/game/mapgen"
	"worldview/pkg/game/renderer"
	"worldview/pkg/game/renderer/ebiten"
	"worldview/pkg/game/renderer/tui"
	"worldview/pkg/game/scene"
	"worldview/pkg/game/session"
	"worldview/pkg/game/texture"
	"worldview/pkg/game/transport"
	"worldview/pkg/logger"
)

// host is what main needs from a renderer beyond renderer.Host.
type host interface {
	renderer.Host
	Backend() scene.Backend
	Bind(reg *scene.Registry, router *session.Router, cache *texture.Cache)
}

func initGettext(lang string) {
	gotext.Configure("locales", lang, "default")
}

// newFetcher picks the asset source. Nil means no textures at all.
func newFetcher(cfg config.Config, log logrus.FieldLogger) (texture.Fetcher, error) {
	switch {
	case cfg.Assets == "":
		return nil, nil
	case cfg.AssetsAreRemote():
		f, err := assets.NewHTTPFetcher(cfg.Assets, &http.Client{Timeout: 10 * time.Second}, log)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if !f.CheckAvailability(ctx) {
			log.WithField("assets", cfg.Assets).Warn("Asset server not reachable, textures will be retried")
		}
		return f, nil
	default:
		if _, err := os.Stat(cfg.Assets); err != nil {
			return nil, fmt.Errorf("assets directory: %w", err)
		}
		return assets.NewFSFetcher(os.DirFS(cfg.Assets)), nil
	}
}

func newHost(cfg config.Config, log *logrus.Logger) (host, error) {
	if cfg.Dump || cfg.Terminal {
		return tui.New(tui.Options{
			Out:         os.Stdout,
			In:          inputFor(cfg),
			Logger:      log,
			TileSize:    cfg.TileSize,
			Padding:     float64(cfg.Padding),
			Once:        cfg.Dump,
			Colour:      terminal.IsTerminal(os.Stdout),
			ClearScreen: !cfg.Dump && terminal.IsTerminal(os.Stdout),
		}), nil
	}
	return ebiten.New(ebiten.Options{
		Title:    "Worldview",
		Width:    cfg.Width,
		Height:   cfg.Height,
		TileSize: cfg.TileSize,
		Padding:  float64(cfg.Padding),
		Minimap:  cfg.Minimap,
		DumpDir:  ".",
		Logger:   log,
	})
}

func inputFor(cfg config.Config) io.Reader {
	if cfg.Dump {
		return nil
	}
	return os.Stdin
}

// loadOffline shows a local map when there is no server to send one.
func loadOffline(cfg config.Config, router *session.Router, log logrus.FieldLogger) error {
	if cfg.Map == config.MapBSP {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		res := mapgen.NewBSP(seed).Generate(cfg.Level, texture.DefaultManifest())
		log.WithFields(logrus.Fields{"seed": seed, "rooms": len(res.Rooms)}).Info("No server configured, generated a map")
		if err := router.LoadMap(res.Map); err != nil {
			return err
		}
		router.PlacePlayer(res.Start.X, res.Start.Y, "Player")
		return nil
	}
	log.Info("No server configured, showing the development map")
	if err := router.LoadMap(devtools.DevMap(texture.DefaultManifest())); err != nil {
		return err
	}
	router.PlacePlayer(1, 1, "Player")
	return nil
}

func run(cfg config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher, err := newFetcher(cfg, log)
	if err != nil {
		return err
	}

	h, err := newHost(cfg, log)
	if err != nil {
		return err
	}
	renderer.SetHost(h)

	cacheOpts := []texture.Option{
		texture.WithLogger(log),
		texture.WithManifest(texture.DefaultManifest()),
	}
	if fetcher != nil {
		cacheOpts = append(cacheOpts, texture.WithFetcher(fetcher))
	}
	var classes []string
	views := []string{renderer.ViewMain}
	if _, gui := h.(*ebiten.Host); gui {
		cacheOpts = append(cacheOpts, texture.WithUploader(ebiten.NewUploader()))
		classes = ebiten.SupportedClasses
		if cfg.Minimap {
			views = append(views, renderer.ViewMinimap)
		}
	}
	cache := texture.NewCache(cacheOpts...)

	regOpts := []scene.RegistryOption{scene.WithRegistryLogger(log)}
	if cfg.Tolerant {
		regOpts = append(regOpts, scene.WithTolerantLookup())
	}
	reg := scene.NewRegistry(h.Backend(), scene.NewGuard(log, classes...), cache, regOpts...)

	routerOpts := []session.Option{
		session.WithLogger(log),
		session.WithFollow(cfg.Follow),
		session.WithViews(views...),
	}
	var link session.Link
	if cfg.Server != "" {
		client, err := transport.New(cfg.Server, transport.WithLogger(log))
		if err != nil {
			return err
		}
		link = client
		go func() {
			if err := client.Run(ctx); err != nil {
				log.WithError(err).Debug("Connection closed")
			}
		}()
	} else {
		routerOpts = append(routerOpts, session.WithLocalMovement())
	}
	router := session.NewRouter(reg, link, routerOpts...)

	if link == nil {
		if err := loadOffline(cfg, router, log); err != nil {
			return err
		}
	}

	h.Bind(reg, router, cache)
	return h.Run(ctx)
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})
	initGettext(cfg.Language)

	// Validate already parsed these
	bindings, _ := cfg.Bindings()
	for _, b := range bindings {
		input.SetSingleBinding(b.Action, b.Code)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("Exiting")
		os.Exit(1)
	}
	if !cfg.Dump {
		fmt.Println(gotext.Get("GOODBYE"))
	}
}
