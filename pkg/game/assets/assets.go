// Package assets fetches texture images from the asset server or a local
// directory.
package assets

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png" // register decoders
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"worldview/pkg/game/texture"
)

// AvailabilityTimeout bounds CheckAvailability.
const AvailabilityTimeout = 2 * time.Second

// Extensions are tried in order when looking up a logical name.
var Extensions = []string{".png", ".webp", ".bmp"}

// Source is a texture fetcher that can report whether it is reachable.
type Source interface {
	texture.Fetcher
	CheckAvailability(ctx context.Context) bool
}

// HTTPFetcher loads images from {BaseURL}/{category}/{name}{ext}.
type HTTPFetcher struct {
	base   *url.URL
	client *http.Client
	log    logrus.FieldLogger
}

// NewHTTPFetcher creates a fetcher for the asset server at baseURL.
func NewHTTPFetcher(baseURL string, client *http.Client, log logrus.FieldLogger) (*HTTPFetcher, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("asset base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("asset base url %q: scheme must be http or https", baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &HTTPFetcher{base: u, client: client, log: log}, nil
}

func (f *HTTPFetcher) url(elem ...string) string {
	u := *f.base
	u.Path = path.Join(append([]string{u.Path}, elem...)...)
	return u.String()
}

// FetchTexture downloads and decodes one image. The first extension the
// server has wins.
func (f *HTTPFetcher) FetchTexture(ctx context.Context, cat texture.Category, name string) (image.Image, error) {
	for _, ext := range Extensions {
		img, err := f.get(ctx, f.url(string(cat), name+ext))
		if errors.Is(err, texture.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return img, nil
	}
	return nil, fmt.Errorf("%s/%s: %w", cat, name, texture.ErrNotFound)
}

func (f *HTTPFetcher) get(ctx context.Context, target string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, texture.ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("fetch %s: %s", target, resp.Status)
	}

	img, format, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", target, err)
	}
	f.log.WithFields(logrus.Fields{"url": target, "format": format}).Debug("Texture fetched")
	return img, nil
}

// CheckAvailability probes {BaseURL}/health.
func (f *HTTPFetcher) CheckAvailability(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, AvailabilityTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url("health"), nil)
	if err != nil {
		return false
	}
	resp, err := f.client.Do(req)
	if err != nil {
		f.log.WithError(err).Debug("Asset server unreachable")
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

// FSFetcher loads images from {category}/{name}{ext} inside a filesystem.
type FSFetcher struct {
	fsys fs.FS
}

// NewFSFetcher creates a fetcher over fsys, typically os.DirFS(dir).
func NewFSFetcher(fsys fs.FS) *FSFetcher {
	return &FSFetcher{fsys: fsys}
}

// FetchTexture opens and decodes one image.
func (f *FSFetcher) FetchTexture(ctx context.Context, cat texture.Category, name string) (image.Image, error) {
	for _, ext := range Extensions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := path.Join(string(cat), name+ext)
		file, err := f.fsys.Open(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", p, err)
		}
		img, _, err := image.Decode(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", p, err)
		}
		return img, nil
	}
	return nil, fmt.Errorf("%s/%s: %w", cat, name, texture.ErrNotFound)
}

// CheckAvailability reports whether the root of the filesystem is readable.
func (f *FSFetcher) CheckAvailability(ctx context.Context) bool {
	_, err := fs.Stat(f.fsys, ".")
	return err == nil && ctx.Err() == nil
}
