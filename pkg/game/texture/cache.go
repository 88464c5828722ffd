package texture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"worldview/pkg/engine/retry"
)

// Fetcher retrieves the source image of a logical name. Implementations
// return an error wrapping ErrNotFound for names the source does not have.
type Fetcher interface {
	FetchTexture(ctx context.Context, cat Category, name string) (image.Image, error)
}

// Cache is the process-wide texture store. It is safe for concurrent use:
// category loads complete on worker goroutines while surfaces resolve on the
// update goroutine.
type Cache struct {
	mu         sync.RWMutex
	entries    map[Category]map[string]Handle
	atlases    map[Category]*Atlas
	generation uint64

	fetcher     Fetcher
	uploader    Uploader
	manifest    Manifest
	policy      retry.Policy
	parallelism int
	log         logrus.FieldLogger
}

// Option configures a Cache.
type Option func(*Cache)

// WithFetcher sets the asset source used by LoadCategory.
func WithFetcher(f Fetcher) Option { return func(c *Cache) { c.fetcher = f } }

// WithUploader sets how fetched images become handles.
func WithUploader(u Uploader) Option { return func(c *Cache) { c.uploader = u } }

// WithManifest replaces the enumerated names per category.
func WithManifest(m Manifest) Option { return func(c *Cache) { c.manifest = m } }

// WithRetryPolicy sets the per-name fetch retry policy.
func WithRetryPolicy(p retry.Policy) Option { return func(c *Cache) { c.policy = p } }

// WithParallelism bounds concurrent fetches within one category.
func WithParallelism(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// NewCache creates an empty cache.
func NewCache(opts ...Option) *Cache {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = 3

	c := &Cache{
		entries:     make(map[Category]map[string]Handle),
		atlases:     make(map[Category]*Atlas),
		manifest:    DefaultManifest(),
		policy:      policy,
		parallelism: 4,
		log:         logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generation changes every time the cache is cleared.
func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Put stores h under (cat, name). A handle previously stored under the same
// key is released.
func (c *Cache) Put(cat Category, name string, h Handle) {
	if h == nil {
		return
	}
	c.mu.Lock()
	old := c.swapLocked(cat, name, h)
	c.mu.Unlock()
	release(old, h)
}

// putAt stores h only if the cache is still at generation gen. Otherwise h
// is stale and released.
func (c *Cache) putAt(cat Category, name string, h Handle, gen uint64) bool {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		h.Release()
		return false
	}
	old := c.swapLocked(cat, name, h)
	c.mu.Unlock()
	release(old, h)
	return true
}

func (c *Cache) swapLocked(cat Category, name string, h Handle) Handle {
	bucket, ok := c.entries[cat]
	if !ok {
		bucket = make(map[string]Handle)
		c.entries[cat] = bucket
	}
	old := bucket[name]
	bucket[name] = h
	return old
}

func release(old, replacement Handle) {
	if old != nil && old != replacement && !IsBlank(old) {
		old.Release()
	}
}

// RegisterAtlas attaches a sprite sheet to a category, replacing (and
// releasing) any previous one.
func (c *Cache) RegisterAtlas(cat Category, a *Atlas) {
	c.mu.Lock()
	old := c.atlases[cat]
	c.atlases[cat] = a
	c.mu.Unlock()

	if old != nil && old != a {
		old.Release()
	}
}

// Lookup resolves through the cache and atlas tiers only.
func (c *Cache) Lookup(cat Category, name string) (Handle, bool) {
	if name == "" {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.entries[cat][name]; ok {
		return h, true
	}
	// Atlas regions are created lazily, hence the write lock
	if a := c.atlases[cat]; a != nil {
		if h, ok := a.Region(name); ok {
			return h, true
		}
	}
	return nil, false
}

// Resolve returns the texture for name, falling back to Blank.
func (c *Cache) Resolve(cat Category, name string) Handle {
	if h, ok := c.Lookup(cat, name); ok {
		return h
	}
	return Blank
}

// Len returns the number of individually cached textures in cat.
func (c *Cache) Len(cat Category) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries[cat])
}

// Names returns the cached names of cat, sorted.
func (c *Cache) Names(cat Category) []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.entries[cat]))
	for name := range c.entries[cat] {
		names = append(names, name)
	}
	c.mu.RUnlock()
	sort.Strings(names)
	return names
}

// ClearCache drops every entry and atlas and bumps the generation. With
// forceReleaseGPU the underlying handles are released too; otherwise they
// are left to their owners.
func (c *Cache) ClearCache(forceReleaseGPU bool) {
	c.mu.Lock()
	entries, atlases := c.entries, c.atlases
	c.entries = make(map[Category]map[string]Handle)
	c.atlases = make(map[Category]*Atlas)
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	released := 0
	if forceReleaseGPU {
		for _, bucket := range entries {
			for _, h := range bucket {
				if !IsBlank(h) {
					h.Release()
					released++
				}
			}
		}
		for _, a := range atlases {
			a.Release()
		}
	}
	c.log.WithFields(logrus.Fields{
		"generation": gen,
		"released":   released,
	}).Debug("Texture cache cleared")
}

// LoadCategory fetches every manifest name of cat. Each name is fetched and
// retried independently; the call succeeds when at least one name loaded.
func (c *Cache) LoadCategory(ctx context.Context, cat Category) (int, error) {
	names, ok := c.manifest[cat]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, cat)
	}
	if c.fetcher == nil || c.uploader == nil {
		return 0, errors.New("texture cache has no fetcher or uploader")
	}

	start := time.Now()
	gen := c.Generation()

	var (
		mu     sync.Mutex
		loaded int
		failed []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for _, name := range names {
		g.Go(func() error {
			h, err := c.fetchOne(gctx, cat, name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, err)
				return nil
			}
			// A clear while we were fetching makes this result stale
			if c.putAt(cat, name, h, gen) {
				loaded++
			}
			return nil
		})
	}
	g.Wait()

	entry := c.log.WithFields(logrus.Fields{
		"category": cat,
		"loaded":   loaded,
		"failed":   len(failed),
		"took":     time.Since(start).Round(time.Millisecond),
	})
	if loaded == 0 {
		err := errors.Join(failed...)
		if ctx.Err() != nil {
			err = errors.Join(ctx.Err(), err)
		}
		entry.WithError(err).Warn("Texture category unavailable")
		return 0, fmt.Errorf("%w: %s: %w", ErrNothingLoaded, cat, err)
	}
	if len(failed) > 0 {
		entry.Info("Texture category partially loaded")
	} else {
		entry.Info("Texture category loaded")
	}
	return loaded, nil
}

// LoadAll loads every manifest category and returns the number of textures
// loaded. Categories that fail entirely are reported but do not stop the rest.
func (c *Cache) LoadAll(ctx context.Context) (int, error) {
	total := 0
	var errs []error
	for _, cat := range Categories() {
		if _, ok := c.manifest[cat]; !ok {
			continue
		}
		n, err := c.LoadCategory(ctx, cat)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

func (c *Cache) fetchOne(ctx context.Context, cat Category, name string) (Handle, error) {
	var img image.Image
	err := retry.Do(ctx, c.policy, func(attempt int) error {
		var err error
		img, err = c.fetcher.FetchTexture(ctx, cat, name)
		if errors.Is(err, ErrNotFound) {
			return retry.Stop(err)
		}
		if err != nil {
			c.log.WithFields(logrus.Fields{
				"category": cat,
				"name":     name,
				"attempt":  attempt,
			}).WithError(err).Debug("Texture fetch failed")
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", cat, name, err)
	}
	h, err := c.uploader.Upload(img)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: upload: %w", cat, name, err)
	}
	return h, nil
}
