// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

package inval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tada/catcache/engine"
	"github.com/tada/catcache/icache"
	"github.com/tada/catcache/objaddr"
	"github.com/tada/catcache/switchpoint"
)

// fakeTarget is a minimal invalidation target: an address, a lookup id,
// and optionally its own epoch with a teardown counter.
type fakeTarget struct {
	anchor    icache.Anchor
	addr      objaddr.Address
	lookupID  int
	epoch     *switchpoint.Guarded // nil: rides the global epoch
	teardowns int
}

func (target *fakeTarget) Addr() (addr objaddr.Address) {
	addr = target.addr
	return
}

func (target *fakeTarget) CacheAnchor() (anchor *icache.Anchor) {
	anchor = &target.anchor
	return
}

func (target *fakeTarget) LookupID() (lookupID int) {
	lookupID = target.lookupID
	return
}

func (target *fakeTarget) LookupHash() (hash uint64) {
	hash = target.addr.ObjectOid.Hash()
	return
}

func (target *fakeTarget) HasOwnEpoch() (hasOwnEpoch bool) {
	hasOwnEpoch = (nil != target.epoch)
	return
}

func (target *fakeTarget) ContributeInvalidations(batch *switchpoint.Batch) {
	target.epoch.ReplaceAndCollect(batch,
		func() {
			target.teardowns++
		},
		nil)
}

type dispatchFixture struct {
	cache       *icache.Cache
	thread      *engine.Thread
	globalEpoch *switchpoint.Shared
	dispatcher  *Dispatcher
	pinned      []*fakeTarget
}

func newDispatchFixture(t *testing.T) (fixture *dispatchFixture) {
	fixture = &dispatchFixture{
		cache:       icache.NewCache(),
		thread:      engine.StartThread(16),
		globalEpoch: switchpoint.NewShared(),
	}
	fixture.dispatcher = NewDispatcher(fixture.cache, fixture.thread, fixture.globalEpoch)
	return
}

func (fixture *dispatchFixture) addTarget(t *testing.T, addr objaddr.Address, lookupID int, ownEpoch bool) (target *fakeTarget) {
	var (
		err error
		obj icache.Object
	)

	obj, err = fixture.cache.FindOrCreate(addr, func(ctorAddr objaddr.Address) (icache.Object, error) {
		fake := &fakeTarget{addr: ctorAddr, lookupID: lookupID}
		if ownEpoch {
			fake.epoch = switchpoint.NewGuarded()
		}
		return fake, nil
	})
	if nil != err {
		t.Fatalf("FindOrCreate(%s) failed: %v", addr.String(), err)
	}

	target = obj.(*fakeTarget)
	fixture.pinned = append(fixture.pinned, target)
	return
}

func (fixture *dispatchFixture) onEngine(t *testing.T, fn func()) {
	var (
		err error
	)

	err = fixture.thread.Run(func() error {
		fn()
		return nil
	})
	if nil != err {
		t.Fatalf("engine run failed: %v", err)
	}
}

func TestInvalidateCatalogSpecificObject(t *testing.T) {
	var (
		bystander      *fakeTarget
		bystanderToken *switchpoint.SwitchPoint
		victim         *fakeTarget
		victimToken    *switchpoint.SwitchPoint
	)

	assert := assert.New(t)

	fixture := newDispatchFixture(t)
	defer fixture.thread.Stop()

	victim = fixture.addTarget(t, objaddr.New(objaddr.RelationClassOid, 16384, 0), 1, true)
	bystander = fixture.addTarget(t, objaddr.New(objaddr.RelationClassOid, 16385, 0), 1, true)

	victimToken = victim.epoch.Current()
	victimToken.MarkUsed()
	bystanderToken = bystander.epoch.Current()
	bystanderToken.MarkUsed()

	fixture.onEngine(t, func() {
		fixture.dispatcher.InvalidateCatalog(objaddr.RelationClassOid, 16384)
	})

	assert.False(victimToken.IsValid())
	assert.Equal(1, victim.teardowns)
	assert.NotSame(victimToken, victim.epoch.Current())

	assert.True(bystanderToken.IsValid())
	assert.Equal(0, bystander.teardowns)
}

func TestInvalidateCatalogSkipsUntouchedEpochs(t *testing.T) {
	var (
		target *fakeTarget
		token  *switchpoint.SwitchPoint
	)

	assert := assert.New(t)

	fixture := newDispatchFixture(t)
	defer fixture.thread.Stop()

	target = fixture.addTarget(t, objaddr.New(objaddr.RelationClassOid, 16384, 0), 1, true)
	token = target.epoch.Current()

	fixture.onEngine(t, func() {
		fixture.dispatcher.InvalidateCatalog(objaddr.RelationClassOid, 16384)
	})

	// Nothing was ever read through the epoch: no replacement, no teardown.
	assert.Same(token, target.epoch.Current())
	assert.True(token.IsValid())
	assert.Equal(0, target.teardowns)
}

func TestInvalidateCatalogWildcard(t *testing.T) {
	var (
		other      *fakeTarget
		otherToken *switchpoint.SwitchPoint
		target1    *fakeTarget
		target2    *fakeTarget
		token1     *switchpoint.SwitchPoint
		token2     *switchpoint.SwitchPoint
	)

	assert := assert.New(t)

	fixture := newDispatchFixture(t)
	defer fixture.thread.Stop()

	target1 = fixture.addTarget(t, objaddr.New(objaddr.RelationClassOid, 16384, 0), 1, true)
	target2 = fixture.addTarget(t, objaddr.New(objaddr.RelationClassOid, 16385, 0), 1, true)
	other = fixture.addTarget(t, objaddr.New(objaddr.ProcedureClassOid, 870, 0), 3, true)

	token1 = target1.epoch.Current()
	token1.MarkUsed()
	token2 = target2.epoch.Current()
	token2.MarkUsed()
	otherToken = other.epoch.Current()
	otherToken.MarkUsed()

	fixture.onEngine(t, func() {
		fixture.dispatcher.InvalidateCatalog(objaddr.RelationClassOid, objaddr.InvalidOid)
	})

	assert.False(token1.IsValid())
	assert.False(token2.IsValid())
	assert.True(otherToken.IsValid())
	assert.Equal(1, target1.teardowns)
	assert.Equal(1, target2.teardowns)
	assert.Equal(0, other.teardowns)
}

func TestInvalidateCatalogFallsBackToGlobalEpoch(t *testing.T) {
	var (
		globalToken *switchpoint.SwitchPoint
	)

	assert := assert.New(t)

	fixture := newDispatchFixture(t)
	defer fixture.thread.Stop()

	fixture.addTarget(t, objaddr.New(objaddr.RoleClassOid, 10, 0), 4, false)

	globalToken = fixture.globalEpoch.Current()
	globalToken.MarkUsed()

	fixture.onEngine(t, func() {
		fixture.dispatcher.InvalidateCatalog(objaddr.RoleClassOid, 10)
	})

	assert.False(globalToken.IsValid())
	assert.True(fixture.globalEpoch.Current().IsValid())
	assert.NotSame(globalToken, fixture.globalEpoch.Current())
}

func TestInvalidateLookupHashFilter(t *testing.T) {
	var (
		target1 *fakeTarget
		target2 *fakeTarget
		token1  *switchpoint.SwitchPoint
		token2  *switchpoint.SwitchPoint
	)

	assert := assert.New(t)

	fixture := newDispatchFixture(t)
	defer fixture.thread.Stop()

	target1 = fixture.addTarget(t, objaddr.New(objaddr.TypeClassOid, 23, 0), 2, true)
	target2 = fixture.addTarget(t, objaddr.New(objaddr.TypeClassOid, 25, 0), 2, true)

	token1 = target1.epoch.Current()
	token1.MarkUsed()
	token2 = target2.epoch.Current()
	token2.MarkUsed()

	fixture.onEngine(t, func() {
		fixture.dispatcher.InvalidateLookup(2, objaddr.Oid(23).Hash())
	})

	assert.False(token1.IsValid())
	assert.True(token2.IsValid())

	// Hash zero is the wildcard for the whole lookup structure.
	fixture.onEngine(t, func() {
		fixture.dispatcher.InvalidateLookup(2, 0)
	})

	assert.False(token2.IsValid())
}

func TestInvalidateLookupIgnoresOtherLookups(t *testing.T) {
	var (
		target *fakeTarget
		token  *switchpoint.SwitchPoint
	)

	assert := assert.New(t)

	fixture := newDispatchFixture(t)
	defer fixture.thread.Stop()

	target = fixture.addTarget(t, objaddr.New(objaddr.TypeClassOid, 23, 0), 2, true)
	token = target.epoch.Current()
	token.MarkUsed()

	fixture.onEngine(t, func() {
		fixture.dispatcher.InvalidateLookup(1, 0)
	})

	assert.True(token.IsValid())
}

func TestCoarseBoundariesAdvanceGlobalEpoch(t *testing.T) {
	var (
		token *switchpoint.SwitchPoint
	)

	assert := assert.New(t)

	fixture := newDispatchFixture(t)
	defer fixture.thread.Stop()

	for _, boundary := range []func(){
		fixture.dispatcher.AtTransactionEnd,
		fixture.dispatcher.AtSubtransactionEnd,
		fixture.dispatcher.AtCommandCounterAdvance,
	} {
		token = fixture.globalEpoch.Current()
		token.MarkUsed()

		fixture.onEngine(t, boundary)

		assert.False(token.IsValid())
		assert.True(fixture.globalEpoch.Current().IsValid())
	}
}
