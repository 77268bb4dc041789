package scan

import (
	"encoding/binary"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/xxh3"

	"retrospec/internal/project"
)

// DefaultCacheSize is used when NewCache is given a non-positive size.
const DefaultCacheSize = 4096

// Cache remembers extraction results by file content so repeated scans
// (watch mode) only parse files that changed. It is safe for concurrent use.
type Cache struct {
	modules *lru.Cache[uint64, []project.Module]
	suites  *lru.Cache[uint64, []project.TestSuite]
}

// NewCache creates a cache holding up to size entries per record kind.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	modules, err := lru.New[uint64, []project.Module](size)
	if err != nil {
		return nil, err
	}
	suites, err := lru.New[uint64, []project.TestSuite](size)
	if err != nil {
		return nil, err
	}
	return &Cache{modules: modules, suites: suites}, nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.modules.Len() + c.suites.Len()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	if c == nil {
		return
	}
	c.modules.Purge()
	c.suites.Purge()
}

// cacheKey identifies one extraction: the same bytes at the same path run
// through the same extractor and digest always produce the same records.
func cacheKey(path, extractorID, hashAlg string, content []byte) uint64 {
	h := xxh3.New()
	var n [8]byte
	for _, s := range []string{path, extractorID, hashAlg} {
		binary.LittleEndian.PutUint64(n[:], uint64(len(s)))
		_, _ = h.Write(n[:])
		_, _ = h.WriteString(s)
	}
	_, _ = h.Write(content)
	return h.Sum64()
}
