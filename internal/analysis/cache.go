package analysis

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// CacheKey identifies one timeline computation.
type CacheKey uint64

// TimelineKey hashes the filter together with the resolved period bounds.
// Order of the selected sentiments is significant since it fixes the
// series order.
func TimelineKey(f Filter, from, to time.Time) CacheKey {
	d := xxhash.New()
	writeString(d, f.TopicID)
	writeStrings(d, f.Sentiments)
	writeStrings(d, f.Entities)
	writeTime(d, f.DateFrom)
	writeTime(d, f.DateTo)
	writeTime(d, from)
	writeTime(d, to)
	writeString(d, f.Search)
	return CacheKey(d.Sum64())
}

func writeString(d *xxhash.Digest, s string) {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(s)))
	d.Write(n[:])
	d.WriteString(s)
}

func writeStrings(d *xxhash.Digest, ss []string) {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(ss)))
	d.Write(n[:])
	for _, s := range ss {
		writeString(d, s)
	}
}

func writeTime(d *xxhash.Digest, t time.Time) {
	var b [9]byte
	if !t.IsZero() {
		b[0] = 1
		binary.LittleEndian.PutUint64(b[1:], uint64(t.UnixNano()))
	}
	d.Write(b[:])
}

// TimelineCache remembers the most recent timeline only. A lookup under a
// different key misses; Invalidate drops the entry after the card set has
// been reloaded. Safe for concurrent use.
type TimelineCache struct {
	mu     sync.Mutex
	key    CacheKey
	value  Timeline
	filled bool

	hits, misses uint64
}

// NewTimelineCache returns an empty cache.
func NewTimelineCache() *TimelineCache {
	return &TimelineCache{}
}

// Get returns a copy of the cached timeline if key matches the entry.
func (c *TimelineCache) Get(key CacheKey) (Timeline, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.filled || c.key != key {
		c.misses++
		return Timeline{}, false
	}
	c.hits++
	return c.value.Clone(), true
}

// Put replaces the entry.
func (c *TimelineCache) Put(key CacheKey, tl Timeline) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = key
	c.value = tl.Clone()
	c.filled = true
}

// GetOrBuild returns the cached timeline for key, building and storing it on
// a miss.
func (c *TimelineCache) GetOrBuild(key CacheKey, build func() Timeline) Timeline {
	if tl, ok := c.Get(key); ok {
		return tl
	}
	tl := build()
	c.Put(key, tl)
	return tl
}

// Invalidate empties the cache.
func (c *TimelineCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filled = false
	c.value = Timeline{}
}

// Stats reports lookups served from and missed by the cache.
func (c *TimelineCache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
