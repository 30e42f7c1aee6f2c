package prompt

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/patrickmn/go-cache"
)

// Cache caches parsed override templates to avoid repeated file reads
type Cache struct {
	store  *cache.Cache
	logger *slog.Logger
}

// NewCache creates a template cache. A ttl of zero never expires entries.
func NewCache(ttl time.Duration) *Cache {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = 2 * ttl
	}
	return &Cache{
		store:  cache.New(expiration, cleanup),
		logger: slog.Default().With("component", "prompt_cache"),
	}
}

// Load reads and parses the template at path, or returns the cached copy.
func (c *Cache) Load(kind Kind, path string) (*Template, error) {
	key := kind.String() + ":" + path
	if v, ok := c.store.Get(key); ok {
		return v.(*Template), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompt file: %w", err)
	}

	tmpl, err := Parse(kind, filepath.Base(path), string(content))
	if err != nil {
		return nil, err
	}

	c.store.Set(key, tmpl, cache.DefaultExpiration)
	c.logger.Debug("prompt template loaded",
		"kind", kind.String(),
		"path", path,
		"size", len(content))

	return tmpl, nil
}

// Len returns the number of cached templates
func (c *Cache) Len() int {
	return c.store.ItemCount()
}

// Overrides names template files replacing the defaults. Empty paths keep
// the built-in template.
type Overrides struct {
	Field   string
	Chapter string
	Image   string
}

// LoadSet returns the default set with any overrides applied.
func (c *Cache) LoadSet(o Overrides) (Set, error) {
	set := DefaultSet()

	for _, override := range []struct {
		kind Kind
		path string
		dst  **Template
	}{
		{KindField, o.Field, &set.Field},
		{KindChapter, o.Chapter, &set.Chapter},
		{KindImage, o.Image, &set.Image},
	} {
		if override.path == "" {
			continue
		}
		tmpl, err := c.Load(override.kind, override.path)
		if err != nil {
			return Set{}, fmt.Errorf("loading %s prompt: %w", override.kind, err)
		}
		*override.dst = tmpl
	}

	return set, nil
}
