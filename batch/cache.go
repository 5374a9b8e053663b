package batch

import (
	"container/list"
	"encoding/binary"
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// cacheKey identifies a cached transform by its shape so two inputs of
// different size or real/complex kind never collide regardless of hash.
type cacheKey struct {
	size   int
	isReal bool
}

type cacheEntry struct {
	key      cacheKey
	hash     uint64
	samples  []complex128 // copy of the exact input, for full verification on hash hits
	spectrum []complex128 // copy of the cached result
}

// Cache is an LRU cache of forward-transform results keyed by a 64-bit
// hash of the input samples. A hash match is verified against the full
// stored input before being trusted, so a hash collision can only cost a
// cache miss, never a wrong answer. It is safe for concurrent use; all
// access is serialized by a single mutex, separate from the job queue's
// mutex, so cache contention never blocks job dispatch.
type Cache struct {
	mu         sync.Mutex
	maxTotal   int
	maxPerSize int
	order      *list.List // most-recently-used at the front
	buckets    map[uint64][]*list.Element
	perSize    map[cacheKey]int
	hits       uint64
	misses     uint64
}

// NewCache builds a cache holding at most maxTotal entries overall, with
// at most maxPerSize entries for any single (transform size, isReal)
// shape so one hot size cannot starve the others. A zero or negative
// maxTotal disables caching: every lookup misses and nothing is stored.
func NewCache(maxTotal, maxPerSize int) *Cache {
	return &Cache{
		maxTotal:   maxTotal,
		maxPerSize: maxPerSize,
		order:      list.New(),
		buckets:    make(map[uint64][]*list.Element),
		perSize:    make(map[cacheKey]int),
	}
}

// CacheStats reports cumulative cache hit/miss counters.
type CacheStats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// HitRate returns Hits / (Hits + Misses), or 0 if the cache has never
// been queried.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Entries: c.order.Len()}
}

// hashSamples combines a shape discriminator with the raw bit patterns of
// every sample so two inputs that differ only in length or real/complex
// kind never hash identically by accident of their shared prefix.
func hashSamples(key cacheKey, samples []complex128) uint64 {
	h := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(key.size))
	h.Write(buf[:])
	if key.isReal {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	for _, v := range samples {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(real(v)))
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(imag(v)))
		h.Write(buf[:])
	}
	return h.Sum64()
}

func sameSamples(a, b []complex128) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Lookup returns a copy of the cached spectrum for samples under the
// given shape, or (nil, false) on a miss. A hash match whose stored
// samples don't compare equal is treated as a miss rather than a hit.
func (c *Cache) Lookup(size int, isReal bool, samples []complex128) ([]complex128, bool) {
	if c.maxTotal <= 0 {
		return nil, false
	}
	key := cacheKey{size: size, isReal: isReal}
	h := hashSamples(key, samples)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, el := range c.buckets[h] {
		e := el.Value.(*cacheEntry)
		if e.key == key && sameSamples(e.samples, samples) {
			c.order.MoveToFront(el)
			c.hits++
			out := make([]complex128, len(e.spectrum))
			copy(out, e.spectrum)
			return out, true
		}
	}
	c.misses++
	return nil, false
}

// Insert records spectrum as the result for samples under the given
// shape, evicting the least-recently-used entry of that shape (and then,
// if still over budget, the least-recently-used entry overall) as needed.
func (c *Cache) Insert(size int, isReal bool, samples, spectrum []complex128) {
	if c.maxTotal <= 0 {
		return
	}
	key := cacheKey{size: size, isReal: isReal}
	h := hashSamples(key, samples)

	c.mu.Lock()
	defer c.mu.Unlock()

	samplesCopy := make([]complex128, len(samples))
	copy(samplesCopy, samples)
	spectrumCopy := make([]complex128, len(spectrum))
	copy(spectrumCopy, spectrum)

	entry := &cacheEntry{key: key, hash: h, samples: samplesCopy, spectrum: spectrumCopy}
	el := c.order.PushFront(entry)
	c.buckets[h] = append(c.buckets[h], el)
	c.perSize[key]++

	for c.maxPerSize > 0 && c.perSize[key] > c.maxPerSize {
		c.evictOldestOfShape(key)
	}
	for c.order.Len() > c.maxTotal {
		c.evictBack()
	}
}

func (c *Cache) evictOldestOfShape(key cacheKey) {
	for el := c.order.Back(); el != nil; el = el.Prev() {
		if el.Value.(*cacheEntry).key == key {
			c.remove(el)
			return
		}
	}
}

func (c *Cache) evictBack() {
	if el := c.order.Back(); el != nil {
		c.remove(el)
	}
}

func (c *Cache) remove(el *list.Element) {
	e := el.Value.(*cacheEntry)
	c.order.Remove(el)
	c.perSize[e.key]--
	bucket := c.buckets[e.hash]
	for i, candidate := range bucket {
		if candidate == el {
			c.buckets[e.hash] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(c.buckets[e.hash]) == 0 {
		delete(c.buckets, e.hash)
	}
}
