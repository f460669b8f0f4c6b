// Package karts loads the set of karts a lobby accepts.
package karts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Catalog is an ordered set of kart names. A nil *Catalog contains every
// kart.
type Catalog struct {
	names []string
	index map[string]struct{}
}

func NewCatalog(names ...string) *Catalog {
	c := &Catalog{index: make(map[string]struct{}, len(names))}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := c.index[name]; dup {
			continue
		}
		c.index[name] = struct{}{}
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)
	return c
}

// LoadCatalog builds a catalog from dir. Each subdirectory is a kart, as
// is each regular file, named without its extension.
func LoadCatalog(dir string, logger zerolog.Logger) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read karts directory %q: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if !e.IsDir() {
			name = strings.TrimSuffix(name, filepath.Ext(name))
		}
		names = append(names, name)
		logger.Debug().Str("kart", name).Msg("loaded kart")
	}

	c := NewCatalog(names...)
	if c.Len() == 0 {
		return nil, fmt.Errorf("no karts in %q", dir)
	}
	logger.Info().Int("count", c.Len()).Str("dir", dir).Msg("kart catalog loaded")
	return c, nil
}

func (c *Catalog) Contains(kart string) bool {
	if c == nil {
		return true
	}
	_, ok := c.index[kart]
	return ok
}

// Names returns the karts in sorted order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.names...)
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.names)
}

// After returns the kart following kart in sorted order, wrapping around.
// It is how a rejected client picks its next candidate.
func (c *Catalog) After(kart string) (string, bool) {
	if c.Len() == 0 {
		return "", false
	}
	i := sort.SearchStrings(c.names, kart)
	if i < len(c.names) && c.names[i] == kart {
		i++
	}
	return c.names[i%len(c.names)], true
}
