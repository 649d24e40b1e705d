// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

// Package icache provides the identity cache mapping catalog addresses to
// their representative objects.
//
// The cache guarantees identity: for any address, at most one constructed
// representative is ever visible at a time, so reference equality is
// address equality. Values are held weakly; an object no one else
// references is collectible, and its cache entry is swept by a GC cleanup.
// A later lookup of the same address simply constructs a fresh
// representative.
//
// Construction is at-most-once per key: concurrent FindOrCreate() calls
// for one address elect a single constructor and everyone else waits for
// its result. The per-entry mutex is only there to initialize the object;
// the hit path and FindExisting() never take it.
package icache

import (
	"runtime"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/tada/catcache/cerror"
	"github.com/tada/catcache/objaddr"
)

// Anchor is the weakly-referenced hook the cache holds for each object.
// Embed one (by value) in the representative struct; the cache reaches the
// full object through it, and the object and its anchor become unreachable
// together.
type Anchor struct {
	self Object
}

// Object is what the cache stores. CacheAnchor() must return a pointer to
// an Anchor embedded by value in the representative itself.
type Object interface {
	Addr() (addr objaddr.Address)
	CacheAnchor() (anchor *Anchor)
}

// Constructor builds the representative for an address. It runs holding
// that address's entry; it may call FindExisting() freely and
// FindOrCreate() for OTHER addresses, but a same-address FindOrCreate()
// from inside the constructor deadlocks. It must not publish the
// half-built object anywhere.
type Constructor func(addr objaddr.Address) (obj Object, err error)

// weakRef wraps one weak reference so entry.live can be swapped
// atomically and compared by pointer in the sweep.
type weakRef struct {
	wp weak.Pointer[Anchor]
}

// entry is one address's slot in the map. live is read lock-free; mu
// serializes construction and the eviction sweep. Once evicted is set the
// entry is dead forever and a fresh one replaces it in the map.
type entry struct {
	mu      sync.Mutex
	live    atomic.Pointer[weakRef]
	evicted bool
}

// liveObject resurrects the object through the weak reference, if it is
// still reachable.
func (e *entry) liveObject() (obj Object, ok bool) {
	var (
		anchor *Anchor
		wr     *weakRef
	)

	wr = e.live.Load()
	if nil == wr {
		ok = false
		return
	}

	anchor = wr.wp.Value()
	if nil == anchor {
		ok = false
		return
	}

	obj = anchor.self
	ok = true
	return
}

// Stats is a point-in-time counter snapshot.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Cache is the identity cache.
type Cache struct {
	entries   *xsync.MapOf[objaddr.Address, *entry]
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// NewCache creates an empty identity cache.
func NewCache() (cache *Cache) {
	cache = &Cache{
		entries: xsync.NewMapOf[objaddr.Address, *entry](),
	}
	return
}

// FindOrCreate returns the representative for addr, constructing it with
// ctor if no live one exists. Concurrent callers for the same address get
// the same instance; ctor runs at most once per instance. A ctor failure
// leaves no trace in the cache and is returned to every waiter that
// elected this construction.
func (cache *Cache) FindOrCreate(addr objaddr.Address, ctor Constructor) (obj Object, err error) {
	var (
		e  *entry
		ok bool
	)

	// Lock-free hit path.
	e, ok = cache.entries.Load(addr)
	if ok {
		obj, ok = e.liveObject()
		if ok {
			cache.hits.Add(1)
			err = nil
			return
		}
	}

	for {
		e, _ = cache.entries.LoadOrCompute(addr, func() (newEntry *entry) {
			newEntry = &entry{}
			return
		})

		e.mu.Lock()

		if e.evicted {
			// The sweep won the race and unlinked this entry; a fresh one
			// is (or will be) in the map.
			e.mu.Unlock()
			continue
		}

		obj, ok = e.liveObject()
		if ok {
			e.mu.Unlock()
			cache.hits.Add(1)
			err = nil
			return
		}

		// The ctor's error (its condition code included) passes through to
		// every caller that elected this construction.
		obj, err = ctor(addr)
		if nil != err {
			cache.discardEmptyEntryLocked(addr, e)
			e.mu.Unlock()
			obj = nil
			return
		}
		if (nil == obj) || (addr != obj.Addr()) {
			cache.discardEmptyEntryLocked(addr, e)
			e.mu.Unlock()
			obj = nil
			err = cerror.NewError(cerror.ConstructionError, "constructor for %s returned a mismatched object", addr.String())
			return
		}

		cache.bindLocked(addr, e, obj)
		e.mu.Unlock()

		cache.misses.Add(1)
		err = nil
		return
	}
}

// FindExisting returns the live representative for addr if one exists. It
// never constructs, never blocks on a constructor, and takes no locks, so
// constructors and the invalidation dispatcher may call it freely.
func (cache *Cache) FindExisting(addr objaddr.Address) (obj Object, found bool) {
	var (
		e  *entry
		ok bool
	)

	e, ok = cache.entries.Load(addr)
	if !ok {
		found = false
		return
	}

	obj, found = e.liveObject()
	return
}

// ForEachLive visits every currently-live representative. The iteration is
// weakly consistent: objects created or evicted during the walk may or may
// not be seen, and no lock is held across visitor calls. The visitor
// returns false to stop early.
func (cache *Cache) ForEachLive(visitor func(obj Object) (keepGoing bool)) {
	cache.entries.Range(func(addr objaddr.Address, e *entry) (keepGoing bool) {
		var (
			obj Object
			ok  bool
		)

		obj, ok = e.liveObject()
		if !ok {
			keepGoing = true
			return
		}

		keepGoing = visitor(obj)
		return
	})
}

// Len returns the number of currently-live representatives (weakly
// consistent, like ForEachLive).
func (cache *Cache) Len() (liveCount int) {
	cache.ForEachLive(func(obj Object) (keepGoing bool) {
		liveCount++
		keepGoing = true
		return
	})
	return
}

// StatsSnapshot returns the running hit/miss/eviction counters.
func (cache *Cache) StatsSnapshot() (stats Stats) {
	stats = Stats{
		Hits:      cache.hits.Load(),
		Misses:    cache.misses.Load(),
		Evictions: cache.evictions.Load(),
	}
	return
}

// bindLocked publishes obj as the entry's live object and arms the GC
// cleanup that will sweep the entry once obj becomes unreachable. Caller
// holds e.mu.
func (cache *Cache) bindLocked(addr objaddr.Address, e *entry, obj Object) {
	var (
		anchor *Anchor
		wr     *weakRef
	)

	anchor = obj.CacheAnchor()
	anchor.self = obj

	wr = &weakRef{wp: weak.Make(anchor)}
	e.live.Store(wr)

	runtime.AddCleanup(anchor, func(deadWR *weakRef) {
		cache.sweep(addr, e, deadWR)
	}, wr)
}

// discardEmptyEntryLocked unlinks an entry that never got (or no longer
// has) a live object, so a failed construction leaves nothing behind.
// Caller holds e.mu.
func (cache *Cache) discardEmptyEntryLocked(addr objaddr.Address, e *entry) {
	e.evicted = true
	e.live.Store(nil)

	cache.entries.Compute(addr, func(oldEntry *entry, loaded bool) (newEntry *entry, delete bool) {
		if loaded && (oldEntry == e) {
			delete = true
		} else {
			newEntry = oldEntry
			delete = false
		}
		return
	})
}

// sweep runs as the GC cleanup for one collected object. If the entry
// still holds the dead weak reference (a new representative may already
// have replaced it), unlink the entry.
func (cache *Cache) sweep(addr objaddr.Address, e *entry, wr *weakRef) {
	e.mu.Lock()

	if e.live.Load() != wr {
		e.mu.Unlock()
		return
	}

	cache.discardEmptyEntryLocked(addr, e)
	e.mu.Unlock()

	cache.evictions.Add(1)
}
