package tokenizer

import (
	"context"
	"sync"
)

// Cache memoizes unit encodings of a Model. Encoding single strings
// through an external process is expensive, so callers that query many
// strings (evaluation) warm the cache with one batch first.
//
// It is safe for concurrent use.
type Cache struct {
	Model

	mu    sync.RWMutex
	units map[string][]string
}

// NewCache wraps m.
func NewCache(m Model) *Cache {
	return &Cache{Model: m, units: make(map[string][]string)}
}

// Warm encodes every text not yet cached in a single batch.
func (c *Cache) Warm(ctx context.Context, texts []string) error {
	c.mu.RLock()
	seen := make(map[string]bool, len(texts))
	var missing []string
	for _, t := range texts {
		if _, ok := c.units[t]; ok || seen[t] {
			continue
		}
		seen[t] = true
		missing = append(missing, t)
	}
	c.mu.RUnlock()

	if len(missing) == 0 {
		return nil
	}
	encoded, err := UnitsBatch(ctx, c.Model, missing)
	if err != nil {
		return err
	}

	c.mu.Lock()
	for i, t := range missing {
		c.units[t] = encoded[i]
	}
	c.mu.Unlock()
	return nil
}

// Units returns the units of text, encoding it on a miss.
func (c *Cache) Units(ctx context.Context, text string) ([]string, error) {
	c.mu.RLock()
	u, ok := c.units[text]
	c.mu.RUnlock()
	if ok {
		return u, nil
	}
	if err := c.Warm(ctx, []string{text}); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.units[text], nil
}

// Len returns the number of cached encodings.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.units)
}
