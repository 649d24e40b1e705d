// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

package icache

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tada/catcache/cerror"
	"github.com/tada/catcache/objaddr"
)

type fakeObject struct {
	anchor Anchor
	addr   objaddr.Address
	serial uint64
}

func (fake *fakeObject) Addr() (addr objaddr.Address) {
	addr = fake.addr
	return
}

func (fake *fakeObject) CacheAnchor() (anchor *Anchor) {
	anchor = &fake.anchor
	return
}

var fakeSerial atomic.Uint64

func fakeCtor(addr objaddr.Address) (obj Object, err error) {
	obj = &fakeObject{addr: addr, serial: fakeSerial.Add(1)}
	err = nil
	return
}

func TestFindOrCreateReturnsOneIdentity(t *testing.T) {
	var (
		addr  objaddr.Address
		cache *Cache
		err   error
		obj1  Object
		obj2  Object
		stats Stats
	)

	assert := assert.New(t)

	cache = NewCache()
	addr = objaddr.New(objaddr.RelationClassOid, 16384, 0)

	obj1, err = cache.FindOrCreate(addr, fakeCtor)
	assert.Nil(err)
	assert.Equal(addr, obj1.Addr())

	obj2, err = cache.FindOrCreate(addr, fakeCtor)
	assert.Nil(err)
	assert.Same(obj1, obj2)

	stats = cache.StatsSnapshot()
	assert.Equal(uint64(1), stats.Misses)
	assert.Equal(uint64(1), stats.Hits)
}

func TestConcurrentFindOrCreateConstructsOnce(t *testing.T) {
	var (
		addr      objaddr.Address
		cache     *Cache
		ctorCalls atomic.Uint64
		firstObj  atomic.Pointer[fakeObject]
		workerWG  sync.WaitGroup
	)

	assert := assert.New(t)

	cache = NewCache()
	addr = objaddr.New(objaddr.TypeClassOid, 25, 0)

	for i := 0; i < 100; i++ {
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()

			obj, err := cache.FindOrCreate(addr, func(ctorAddr objaddr.Address) (Object, error) {
				ctorCalls.Add(1)
				time.Sleep(time.Millisecond)
				return &fakeObject{addr: ctorAddr}, nil
			})
			assert.Nil(err)

			fake := obj.(*fakeObject)
			if !firstObj.CompareAndSwap(nil, fake) {
				assert.Same(firstObj.Load(), fake)
			}
		}()
	}

	workerWG.Wait()

	assert.Equal(uint64(1), ctorCalls.Load())
	assert.Equal(1, cache.Len())
}

func TestCtorFailureLeavesNoEntry(t *testing.T) {
	var (
		addr  objaddr.Address
		cache *Cache
		err   error
		found bool
		obj   Object
	)

	assert := assert.New(t)

	cache = NewCache()
	addr = objaddr.New(objaddr.ProcedureClassOid, 870, 0)

	_, err = cache.FindOrCreate(addr, func(ctorAddr objaddr.Address) (Object, error) {
		return nil, cerror.NewError(cerror.RetryLookupError, "prerequisite row not cached yet")
	})
	assert.NotNil(err)
	assert.True(cerror.IsRetryLookup(err))

	_, found = cache.FindExisting(addr)
	assert.False(found)
	assert.Equal(0, cache.Len())

	// The failed attempt must not poison later constructions.
	obj, err = cache.FindOrCreate(addr, fakeCtor)
	assert.Nil(err)
	assert.Equal(addr, obj.Addr())
}

func TestCtorAddressMismatchIsRejected(t *testing.T) {
	var (
		addr  objaddr.Address
		cache *Cache
		err   error
		found bool
	)

	assert := assert.New(t)

	cache = NewCache()
	addr = objaddr.New(objaddr.RoleClassOid, 10, 0)

	_, err = cache.FindOrCreate(addr, func(ctorAddr objaddr.Address) (Object, error) {
		return &fakeObject{addr: objaddr.New(objaddr.RoleClassOid, 11, 0)}, nil
	})
	assert.NotNil(err)
	assert.True(cerror.Is(err, cerror.ConstructionError))

	_, found = cache.FindExisting(addr)
	assert.False(found)
}

func TestFindExistingNeverConstructs(t *testing.T) {
	var (
		addr  objaddr.Address
		cache *Cache
		err   error
		found bool
		obj1  Object
		obj2  Object
	)

	assert := assert.New(t)

	cache = NewCache()
	addr = objaddr.New(objaddr.NamespaceClassOid, 11, 0)

	_, found = cache.FindExisting(addr)
	assert.False(found)

	obj1, err = cache.FindOrCreate(addr, fakeCtor)
	assert.Nil(err)

	obj2, found = cache.FindExisting(addr)
	assert.True(found)
	assert.Same(obj1, obj2)
}

func TestForEachLiveVisitsEveryObject(t *testing.T) {
	var (
		cache   *Cache
		err     error
		keep    []Object
		visited map[objaddr.Address]struct{}
	)

	assert := assert.New(t)

	cache = NewCache()

	for objectOid := objaddr.Oid(16384); objectOid < 16389; objectOid++ {
		obj, ctorErr := cache.FindOrCreate(objaddr.New(objaddr.RelationClassOid, objectOid, 0), fakeCtor)
		err = ctorErr
		assert.Nil(err)
		keep = append(keep, obj)
	}

	visited = make(map[objaddr.Address]struct{})
	cache.ForEachLive(func(obj Object) (keepGoing bool) {
		visited[obj.Addr()] = struct{}{}
		keepGoing = true
		return
	})

	assert.Equal(5, len(visited))
	assert.Equal(5, cache.Len())

	// Early stop.
	visitCount := 0
	cache.ForEachLive(func(obj Object) (keepGoing bool) {
		visitCount++
		keepGoing = false
		return
	})
	assert.Equal(1, visitCount)

	runtime.KeepAlive(keep)
}

func TestUnreferencedObjectIsCollectible(t *testing.T) {
	var (
		addr  objaddr.Address
		cache *Cache
		found bool
		obj   Object
		err   error
	)

	assert := assert.New(t)

	cache = NewCache()
	addr = objaddr.New(objaddr.DatabaseClassOid, 1, 0)

	func() {
		created, ctorErr := cache.FindOrCreate(addr, fakeCtor)
		assert.Nil(ctorErr)
		assert.NotNil(created)
	}()

	found = true
	for attempt := 0; (attempt < 100) && found; attempt++ {
		runtime.GC()
		time.Sleep(time.Millisecond)
		_, found = cache.FindExisting(addr)
	}

	assert.False(found)

	// A later lookup simply constructs a fresh representative.
	obj, err = cache.FindOrCreate(addr, fakeCtor)
	assert.Nil(err)
	assert.Equal(addr, obj.Addr())

	runtime.KeepAlive(obj)
}

func TestStrongReferenceBlocksEviction(t *testing.T) {
	var (
		addr  objaddr.Address
		cache *Cache
		err   error
		found bool
		obj   Object
	)

	assert := assert.New(t)

	cache = NewCache()
	addr = objaddr.New(objaddr.RelationClassOid, 1259, 0)

	obj, err = cache.FindOrCreate(addr, fakeCtor)
	assert.Nil(err)

	for attempt := 0; attempt < 5; attempt++ {
		runtime.GC()
		time.Sleep(time.Millisecond)
	}

	_, found = cache.FindExisting(addr)
	assert.True(found)

	runtime.KeepAlive(obj)
}
