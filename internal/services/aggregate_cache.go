package services

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"vitalstream/internal/models"
)

// AggregateCache keeps the most recently persisted window per patient so
// sample-tick fanout does not have to hit the aggregate store on every
// ingestion. Entries expire if no cycle refreshes them.
type AggregateCache struct {
	cache *gocache.Cache
}

// NewAggregateCache creates a cache whose entries outlive two aggregation
// cycles before expiring.
func NewAggregateCache(aggregationInterval time.Duration) *AggregateCache {
	ttl := 2 * aggregationInterval
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &AggregateCache{
		cache: gocache.New(ttl, ttl),
	}
}

// Get returns the cached latest aggregate for a patient, or nil.
func (c *AggregateCache) Get(patientID string) *models.AggregateWindow {
	if v, ok := c.cache.Get(patientID); ok {
		if agg, ok := v.(*models.AggregateWindow); ok {
			return agg
		}
	}
	return nil
}

// Set stores the latest aggregate for a patient.
func (c *AggregateCache) Set(patientID string, agg *models.AggregateWindow) {
	c.cache.SetDefault(patientID, agg)
}
