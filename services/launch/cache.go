package launch

import (
	"time"

	"coursebridge/metrics"
	"coursebridge/models/learning"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// PackageCache keeps recently launched packages in memory with a TTL.
type PackageCache struct {
	lru *expirable.LRU[uint, learning.ContentPackage]
}

func NewPackageCache(size int, ttl time.Duration) *PackageCache {
	if size < 1 {
		size = 1
	}
	return &PackageCache{lru: expirable.NewLRU[uint, learning.ContentPackage](size, nil, ttl)}
}

// Get returns a copy of the cached package.
func (c *PackageCache) Get(id uint) (learning.ContentPackage, bool) {
	pkg, ok := c.lru.Get(id)
	if ok {
		metrics.PackageCacheHits.Inc()
		return pkg, true
	}
	metrics.PackageCacheMisses.Inc()
	return learning.ContentPackage{}, false
}

func (c *PackageCache) Set(pkg learning.ContentPackage) {
	c.lru.Add(pkg.ID, pkg)
}

// Invalidate drops the package after an edit, publish or delete.
func (c *PackageCache) Invalidate(id uint) {
	c.lru.Remove(id)
}
