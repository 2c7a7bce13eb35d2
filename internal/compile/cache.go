package compile

import (
	"log/slog"
	"os"

	"github.com/Starlink/ORAC-DR-sub007/internal/expand"
	"github.com/Starlink/ORAC-DR-sub007/internal/logging"
	"github.com/Starlink/ORAC-DR-sub007/internal/metrics"
	"github.com/Starlink/ORAC-DR-sub007/pkg/domain"
)

// Cache stores compiled units keyed by resolved source path. It is the
// single record of which primitives this process has seen: a lookup of an
// unchanged file never re-parses or recompiles. The cache belongs to the
// executing goroutine; recipe execution is single-threaded.
type Cache struct {
	log   *slog.Logger
	met   *metrics.Set
	units map[string]*Unit
}

// NewCache builds an empty cache.
func NewCache(log *slog.Logger, met *metrics.Set) *Cache {
	if log == nil {
		log = logging.NewNop()
	}
	return &Cache{log: log, met: met, units: make(map[string]*Unit)}
}

// Load returns the compiled unit for the source at path, compiling on first
// sight or when the file's modification time no longer matches the cached
// one. Hits return the identical unit value.
func (c *Cache) Load(name, path string, mode expand.Mode) (*Unit, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, domain.Fatalf(name, path, 0, "cannot stat source: %v", err)
	}
	if u, ok := c.units[path]; ok && u.Mtime.Equal(fi.ModTime()) {
		c.met.CacheHit()
		return u, nil
	}
	c.met.CacheMiss()

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.Fatalf(name, path, 0, "cannot read source: %v", err)
	}
	p, err := expand.Parse(name, path, src, mode)
	if err != nil {
		return nil, err
	}
	u, err := Compile(p, fi.ModTime())
	if err != nil {
		return nil, err
	}
	c.units[path] = u
	c.log.Debug("compiled", "name", name, "path", path, "children", len(p.Children))
	return u, nil
}

// Len reports how many units are cached.
func (c *Cache) Len() int { return len(c.units) }
