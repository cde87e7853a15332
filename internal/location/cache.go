package location

import (
	"sync"

	"FallWatch.iot/internal/models"

	"go.uber.org/zap"
)

// Store persists the last location for cold-start recovery.
type Store interface {
	Load() (*models.Location, error)
	Save(loc models.Location) error
}

// Cache holds the last known location. The in-memory value is authoritative;
// the store is written through on a best-effort basis.
type Cache struct {
	mu      sync.RWMutex
	current *models.Location
	store   Store
	logger  *zap.Logger
}

func NewCache(store Store, logger *zap.Logger) *Cache {
	return &Cache{store: store, logger: logger}
}

// Load restores the persisted location, if any. Failures leave the cache empty.
func (c *Cache) Load() {
	loc, err := c.store.Load()
	if err != nil {
		c.logger.Warn("Failed to load stored location", zap.Error(err))
		return
	}
	if loc == nil {
		return
	}

	c.mu.Lock()
	c.current = loc
	c.mu.Unlock()
	c.logger.Info("Loaded stored location",
		zap.Float64("latitude", loc.Latitude),
		zap.Float64("longitude", loc.Longitude),
	)
}

// Update overwrites the cached location and persists it. A persistence
// failure is logged and does not roll back the in-memory value.
func (c *Cache) Update(loc models.Location) {
	c.mu.Lock()
	c.current = &loc
	// Saving under the lock keeps the file in the same order as memory.
	err := c.store.Save(loc)
	c.mu.Unlock()

	c.logger.Info("Location captured",
		zap.Float64("latitude", loc.Latitude),
		zap.Float64("longitude", loc.Longitude),
		zap.Float64("accuracy", loc.Accuracy),
		zap.Int64("timestamp", loc.Timestamp),
	)
	if err != nil {
		c.logger.Error("Failed to save location data", zap.Error(err))
	}
}

// Read returns the last known location.
func (c *Cache) Read() (models.Location, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return models.Location{}, false
	}
	return *c.current, true
}
