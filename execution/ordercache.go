package execution

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

const (
	cacheCapacity    = 512
	maxCacheFileSize = 1 << 20 // 1 MiB
	maxCacheEntryLen = 128
)

type cacheEntry struct {
	OrderID string `json:"order_id"`
	Symbol  string `json:"symbol"` // venue-native instrument id
}

// OrderCache is a bounded orderID -> external-symbol association persisted to
// disk. It is a convenience lookup, not ledger state: persistence is async
// and best-effort, a failed write is logged and ignored.
type OrderCache struct {
	mu      sync.Mutex
	path    string
	entries []cacheEntry // insertion order, oldest first
	index   map[string]string
	wg      sync.WaitGroup
	logger  *zap.Logger
}

// NewOrderCache loads the cache file when present. A corrupt or oversized
// file is discarded and the cache starts empty.
func NewOrderCache(path string, logger *zap.Logger) *OrderCache {
	c := &OrderCache{
		path:   path,
		index:  map[string]string{},
		logger: logger,
	}
	if err := c.load(); err != nil {
		logger.Warn("order cache unreadable, starting empty",
			zap.String("path", path), zap.Error(err))
		c.entries = nil
		c.index = map[string]string{}
	}
	return c
}

func (c *OrderCache) load() error {
	info, err := os.Stat(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() > maxCacheFileSize {
		return fmt.Errorf("cache file is %d bytes, refusing to load over %d", info.Size(), maxCacheFileSize)
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return err
	}
	var entries []cacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	for _, e := range entries {
		if !validEntry(e) {
			return fmt.Errorf("cache entry with invalid shape: %+v", e)
		}
		c.entries = append(c.entries, e)
		c.index[e.OrderID] = e.Symbol
	}
	return nil
}

func validEntry(e cacheEntry) bool {
	return e.OrderID != "" && e.Symbol != "" &&
		len(e.OrderID) <= maxCacheEntryLen && len(e.Symbol) <= maxCacheEntryLen
}

// Put records an association and schedules a best-effort persist.
func (c *OrderCache) Put(orderID, symbol string) {
	c.mu.Lock()
	if _, exists := c.index[orderID]; exists {
		// Re-mapping an id rewrites its entry so the persisted file agrees.
		for i := range c.entries {
			if c.entries[i].OrderID == orderID {
				c.entries[i].Symbol = symbol
				break
			}
		}
	} else {
		c.entries = append(c.entries, cacheEntry{OrderID: orderID, Symbol: symbol})
		// Prune oldest once over capacity.
		if over := len(c.entries) - cacheCapacity; over > 0 {
			for _, old := range c.entries[:over] {
				delete(c.index, old.OrderID)
			}
			c.entries = append([]cacheEntry(nil), c.entries[over:]...)
		}
	}
	c.index[orderID] = symbol
	snapshot := append([]cacheEntry(nil), c.entries...)
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := persistEntries(c.path, snapshot); err != nil {
			c.logger.Warn("order cache persist failed", zap.Error(err))
		}
	}()
}

// Get resolves an orderID to its external symbol.
func (c *OrderCache) Get(orderID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	symbol, ok := c.index[orderID]
	return symbol, ok
}

// Len reports the number of cached associations.
func (c *OrderCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Flush waits for in-flight persists, then writes synchronously. Used on
// shutdown and by tests.
func (c *OrderCache) Flush() error {
	c.wg.Wait()
	c.mu.Lock()
	snapshot := append([]cacheEntry(nil), c.entries...)
	c.mu.Unlock()
	return persistEntries(c.path, snapshot)
}

// persistEntries writes atomically: tmp file, fsync, rename.
func persistEntries(path string, entries []cacheEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".ordercache-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
