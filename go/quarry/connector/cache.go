/*
Copyright 2024 The Quarry Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package connector

import (
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// FileHandle is a cached open file descriptor for one table data file.
type FileHandle struct {
	Path   string
	Size   int64
	Opened time.Time
}

// FileHandleCacheStats is a point-in-time snapshot of cache activity.
type FileHandleCacheStats struct {
	Hits    int64
	Misses  int64
	Entries int64
}

// FileHandleCache caches open file handles across scans of the same files.
// Entries expire after the configured TTL; expiry keeps descriptors from
// pinning deleted files.
type FileHandleCache struct {
	cache  *gocache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// NewFileHandleCache returns a cache whose entries expire ttlSeconds after
// last write.
func NewFileHandleCache(ttlSeconds int) *FileHandleCache {
	ttl := time.Duration(ttlSeconds) * time.Second
	return &FileHandleCache{
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Get returns the cached handle for path.
func (c *FileHandleCache) Get(path string) (*FileHandle, bool) {
	v, ok := c.cache.Get(path)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return v.(*FileHandle), true
}

// Put caches a handle under its path.
func (c *FileHandleCache) Put(h *FileHandle) {
	c.cache.SetDefault(h.Path, h)
}

// Stats returns a snapshot of cache activity.
func (c *FileHandleCache) Stats() FileHandleCacheStats {
	return FileHandleCacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: int64(c.cache.ItemCount()),
	}
}
