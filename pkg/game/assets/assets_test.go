package assets

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/sirupsen/logrus/hooks/test"

	"worldview/pkg/game/texture"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	goblin := pngBytes(t, 16, 8)
	mux := http.NewServeMux()
	mux.HandleFunc("/assets/entities/goblin.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(goblin)
	})
	mux.HandleFunc("/assets/tiles/broken.png", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/assets/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPFetcher(t *testing.T) {
	srv := newServer(t)
	logger, _ := test.NewNullLogger()
	f, err := NewHTTPFetcher(srv.URL+"/assets/", srv.Client(), logger)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	img, err := f.FetchTexture(ctx, texture.Entities, "goblin")
	if err != nil {
		t.Fatalf("FetchTexture(goblin) error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
		t.Errorf("goblin bounds = %v, want 16x8", b)
	}

	if _, err := f.FetchTexture(ctx, texture.Entities, "dragon"); !errors.Is(err, texture.ErrNotFound) {
		t.Errorf("FetchTexture(dragon) error = %v, want ErrNotFound", err)
	}
	if _, err := f.FetchTexture(ctx, texture.Tiles, "broken"); err == nil || errors.Is(err, texture.ErrNotFound) {
		t.Errorf("FetchTexture(broken) error = %v, want a server error", err)
	}
	if !f.CheckAvailability(ctx) {
		t.Error("CheckAvailability() = false against a healthy server")
	}
}

func TestHTTPFetcher_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	f, err := NewHTTPFetcher(srv.URL, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if f.CheckAvailability(context.Background()) {
		t.Error("CheckAvailability() = true for a closed server")
	}
}

func TestNewHTTPFetcher_RejectsBadScheme(t *testing.T) {
	if _, err := NewHTTPFetcher("ftp://example.com", nil, nil); err == nil {
		t.Error("NewHTTPFetcher(ftp://...) error = nil")
	}
}

func TestFSFetcher(t *testing.T) {
	fsys := fstest.MapFS{
		"objects/chest.png": {Data: pngBytes(t, 4, 4)},
		"objects/bad.png":   {Data: []byte("not an image")},
	}
	f := NewFSFetcher(fsys)
	ctx := context.Background()

	if _, err := f.FetchTexture(ctx, texture.Objects, "chest"); err != nil {
		t.Errorf("FetchTexture(chest) error = %v", err)
	}
	if _, err := f.FetchTexture(ctx, texture.Objects, "key"); !errors.Is(err, texture.ErrNotFound) {
		t.Errorf("FetchTexture(key) error = %v, want ErrNotFound", err)
	}
	if _, err := f.FetchTexture(ctx, texture.Objects, "bad"); err == nil || errors.Is(err, texture.ErrNotFound) {
		t.Errorf("FetchTexture(bad) error = %v, want a decode error", err)
	}
	if !f.CheckAvailability(ctx) {
		t.Error("CheckAvailability() = false for a readable filesystem")
	}
}
