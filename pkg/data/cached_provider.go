package data

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ducminhle1904/crypto-sl-optimizer/pkg/types"
)

// MemoryCache implements DataCache using in-memory storage
type MemoryCache struct {
	cache map[string][]types.OHLCV
	mutex sync.RWMutex
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		cache: make(map[string][]types.OHLCV),
	}
}

// Get retrieves a copy of the cached series
func (c *MemoryCache) Get(key string) ([]types.OHLCV, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	data, exists := c.cache[key]
	if !exists {
		return nil, false
	}
	result := make([]types.OHLCV, len(data))
	copy(result, data)
	return result, true
}

// Set stores a copy of the series
func (c *MemoryCache) Set(key string, data []types.OHLCV) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	cached := make([]types.OHLCV, len(data))
	copy(cached, data)
	c.cache[key] = cached
}

// Clear removes all cached data
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cache = make(map[string][]types.OHLCV)
}

// Size returns the number of cached entries
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.cache)
}

// CachedProvider wraps a CandleProvider so repeated runs over the same
// candle file parse it once
type CachedProvider struct {
	provider CandleProvider
	cache    DataCache
}

// NewCachedProvider creates a new cached candle provider
func NewCachedProvider(provider CandleProvider) *CachedProvider {
	return &CachedProvider{
		provider: provider,
		cache:    NewMemoryCache(),
	}
}

// NewCachedProviderWithCache creates a cached provider with a custom cache
func NewCachedProviderWithCache(provider CandleProvider, cache DataCache) *CachedProvider {
	return &CachedProvider{
		provider: provider,
		cache:    cache,
	}
}

// GetName returns the name of the underlying provider with cache indication
func (p *CachedProvider) GetName() string {
	return "Cached " + p.provider.GetName()
}

// LoadCandles loads candles through the cache. Entries are keyed by the
// file's path and modification time, so an edited file is parsed again.
func (p *CachedProvider) LoadCandles(source string) ([]types.OHLCV, error) {
	key := cacheKey(source)
	if cached, exists := p.cache.Get(key); exists {
		log.Debug().Str("file", filepath.Base(source)).Int("records", len(cached)).Msg("candles served from cache")
		return cached, nil
	}

	log.Info().Str("file", filepath.Base(source)).Msg("🔄 loading candles")
	data, err := p.provider.LoadCandles(source)
	if err != nil {
		log.Error().Err(err).Str("file", filepath.Base(source)).Msg("❌ failed to load candles")
		return nil, err
	}

	p.cache.Set(key, data)
	log.Info().Str("file", filepath.Base(source)).Int("records", len(data)).Msg("✅ candles loaded and cached")
	return data, nil
}

func cacheKey(source string) string {
	path := source
	if abs, err := filepath.Abs(source); err == nil {
		path = abs
	}
	info, err := os.Stat(path)
	if err != nil {
		return path
	}
	return fmt.Sprintf("%s@%d", path, info.ModTime().UnixNano())
}

// ClearCache clears all cached data
func (p *CachedProvider) ClearCache() {
	p.cache.Clear()
}

// GetCacheSize returns the number of cached entries
func (p *CachedProvider) GetCacheSize() int {
	return p.cache.Size()
}
