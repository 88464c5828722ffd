package config

import (
	"errors"
	"io"
	"testing"

	"worldview/pkg/engine/input"
)

func env(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(nil, env(nil), io.Discard)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg != Default() {
		t.Errorf("load() = %+v, want %+v", cfg, Default())
	}
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	e := env(map[string]string{
		EnvServer: "ws://env:1/ws",
		EnvAssets: "/srv/assets",
	})

	cfg, err := load([]string{"-server", "ws://flag:2/ws", "-tile", "32", "-tolerant", "-minimap=false"}, e, io.Discard)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.Server != "ws://flag:2/ws" {
		t.Errorf("Server = %q, want the flag value", cfg.Server)
	}
	if cfg.Assets != "/srv/assets" {
		t.Errorf("Assets = %q, want the environment value", cfg.Assets)
	}
	if cfg.TileSize != 32 || !cfg.Tolerant || cfg.Minimap {
		t.Errorf("load() = %+v, want tile 32, tolerant, no minimap", cfg)
	}
	if cfg.AssetsAreRemote() {
		t.Error("AssetsAreRemote() = true for a directory")
	}
}

func TestLoad_TerminalModes(t *testing.T) {
	cfg, err := load([]string{"-tui", "-dump", "-map", "bsp", "-seed", "9"}, env(nil), io.Discard)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if !cfg.Terminal || !cfg.Dump {
		t.Errorf("load(-tui -dump) = %+v, want both set", cfg)
	}
	if cfg.Map != MapBSP || cfg.Seed != 9 || cfg.Level != 1 {
		t.Errorf("load() map = %q seed %d level %d, want bsp 9 1", cfg.Map, cfg.Seed, cfg.Level)
	}
}

func TestLoad_Rejects(t *testing.T) {
	cases := []struct {
		args []string
		want error
	}{
		{[]string{"-width", "0"}, ErrBadWindow},
		{[]string{"-tile", "4"}, ErrBadTileSize},
		{[]string{"-padding", "-1"}, ErrBadPadding},
		{[]string{"-map", "cave"}, ErrBadMap},
		{[]string{"-bind", "fly=x"}, ErrBadBinding},
		{[]string{"-bind", "attack"}, ErrBadBinding},
	}
	for _, tc := range cases {
		if _, err := load(tc.args, env(nil), io.Discard); !errors.Is(err, tc.want) {
			t.Errorf("load(%v) error = %v, want %v", tc.args, err, tc.want)
		}
	}
	if _, err := load([]string{"-nope"}, env(nil), io.Discard); err == nil {
		t.Error("load(-nope) succeeded")
	}
	if _, err := load([]string{"extra"}, env(nil), io.Discard); err == nil {
		t.Error("load(extra) succeeded")
	}
}

func TestBindings(t *testing.T) {
	cfg := Config{Bind: " attack=X , use_item=r,"}
	got, err := cfg.Bindings()
	if err != nil {
		t.Fatalf("Bindings() error = %v", err)
	}
	want := []Binding{{input.ActionAttack, "x"}, {input.ActionUseItem, "r"}}
	if len(got) != len(want) {
		t.Fatalf("Bindings() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Bindings()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAssetsAreRemote(t *testing.T) {
	cfg := Config{Assets: "https://cdn.example.org/textures"}
	if !cfg.AssetsAreRemote() {
		t.Error("AssetsAreRemote() = false for an https URL")
	}
}
