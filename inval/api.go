// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

// Package inval provides the invalidation dispatcher: the single sink for
// the backing store's change signals and for the coarse transaction-
// boundary events.
//
// Every entry point runs on the database-engine thread only, so dispatches
// never overlap. One dispatch collects the affected epochs into a batch,
// fires them at a single atomic publication point, and then runs the
// deferred teardown actions the visited objects contributed. Objects whose
// epoch nothing ever read through contribute no work at all.
package inval

import (
	"github.com/tada/catcache/engine"
	"github.com/tada/catcache/icache"
	"github.com/tada/catcache/logger"
	"github.com/tada/catcache/objaddr"
	"github.com/tada/catcache/switchpoint"
)

// Target is what the dispatcher asks of a cached object. The catalog
// package's representatives satisfy it.
type Target interface {
	icache.Object

	// LookupID names the backing-store lookup structure the object's rows
	// come from; LookupHash is the hash the store names this object by in
	// lookup-granular signals.
	LookupID() (lookupID int)
	LookupHash() (hash uint64)

	// HasOwnEpoch reports whether the object is invalidated individually.
	// Objects without their own epoch ride the globally-shared one.
	HasOwnEpoch() (hasOwnEpoch bool)

	// ContributeInvalidations schedules the object's epoch (and any
	// epoch-scoped teardown) with the batch.
	ContributeInvalidations(batch *switchpoint.Batch)
}

// Dispatcher is the session's invalidation sink. It satisfies
// engine.Invalidator.
type Dispatcher struct {
	cache       *icache.Cache
	thread      *engine.Thread
	globalEpoch *switchpoint.Shared
}

// NewDispatcher wires a dispatcher over the session's identity cache,
// engine thread, and globally-shared epoch.
func NewDispatcher(cache *icache.Cache, thread *engine.Thread, globalEpoch *switchpoint.Shared) (dispatcher *Dispatcher) {
	dispatcher = &Dispatcher{
		cache:       cache,
		thread:      thread,
		globalEpoch: globalEpoch,
	}
	return
}

// InvalidateCatalog handles "this object in this catalog table changed";
// an objectOid of the invalid sentinel is the wildcard for the whole
// table. Objects not currently cached need no work: a future
// representative starts empty anyway.
func (dispatcher *Dispatcher) InvalidateCatalog(classOid objaddr.Oid, objectOid objaddr.Oid) {
	var (
		advancedGlobal bool
		batch          switchpoint.Batch
		obj            icache.Object
		found          bool
	)

	dispatcher.thread.Assert("catalog invalidation dispatch")

	if objaddr.InvalidOid != objectOid {
		obj, found = dispatcher.cache.FindExisting(objaddr.New(classOid, objectOid, 0))
		if found {
			dispatcher.contribute(obj, &batch, &advancedGlobal)
		}
	} else {
		dispatcher.cache.ForEachLive(func(liveObj icache.Object) (keepGoing bool) {
			if classOid == liveObj.Addr().ClassOid {
				dispatcher.contribute(liveObj, &batch, &advancedGlobal)
			}
			keepGoing = true
			return
		})
	}

	batch.Invalidate()

	logger.Tracef("catalog invalidation class %d object %d retired %d epoch(s)", uint32(classOid), uint32(objectOid), batch.TokenCount())
}

// InvalidateLookup handles "cached entries of this lookup structure
// matching this hash changed"; a hash of zero is the wildcard for
// everything cached from that lookup structure.
func (dispatcher *Dispatcher) InvalidateLookup(lookupID int, hash uint64) {
	var (
		advancedGlobal bool
		batch          switchpoint.Batch
	)

	dispatcher.thread.Assert("lookup invalidation dispatch")

	dispatcher.cache.ForEachLive(func(liveObj icache.Object) (keepGoing bool) {
		var (
			target Target
			ok     bool
		)

		keepGoing = true

		target, ok = liveObj.(Target)
		if !ok {
			return
		}

		if lookupID != target.LookupID() {
			return
		}
		if (0 != hash) && (hash != target.LookupHash()) {
			return
		}

		dispatcher.contribute(liveObj, &batch, &advancedGlobal)
		return
	})

	batch.Invalidate()

	logger.Tracef("lookup invalidation id %d hash %d retired %d epoch(s)", lookupID, hash, batch.TokenCount())
}

// AtTransactionEnd advances the globally-shared epoch at a transaction
// boundary.
func (dispatcher *Dispatcher) AtTransactionEnd() {
	dispatcher.advanceGlobal("transaction end")
}

// AtSubtransactionEnd advances the globally-shared epoch at a
// subtransaction boundary.
func (dispatcher *Dispatcher) AtSubtransactionEnd() {
	dispatcher.advanceGlobal("subtransaction end")
}

// AtCommandCounterAdvance advances the globally-shared epoch when the
// command counter moves.
//
// These coarse boundaries are a conservative approximation of "the
// backing rows may have changed". They do not cover every moment the
// store could change a row (certain lock acquisitions among them); that
// gap is an accepted property of the scheme, not something dispatched
// around here.
func (dispatcher *Dispatcher) AtCommandCounterAdvance() {
	dispatcher.advanceGlobal("command counter advance")
}

func (dispatcher *Dispatcher) advanceGlobal(boundary string) {
	var (
		batch switchpoint.Batch
	)

	dispatcher.thread.Assert("epoch advance at " + boundary)

	dispatcher.globalEpoch.Advance(&batch)
	batch.Invalidate()

	logger.Tracef("advanced global epoch at %s (retired %d epoch(s))", boundary, batch.TokenCount())
}

// contribute folds one cached object into the batch. Objects invalidated
// individually contribute their own epoch; the rest are covered by
// advancing the globally-shared epoch, at most once per dispatch.
func (dispatcher *Dispatcher) contribute(obj icache.Object, batch *switchpoint.Batch, advancedGlobal *bool) {
	var (
		target Target
		ok     bool
	)

	target, ok = obj.(Target)
	if !ok {
		logger.Warnf("cached object %s is not an invalidation target; skipping", obj.Addr().String())
		return
	}

	if target.HasOwnEpoch() {
		target.ContributeInvalidations(batch)
		return
	}

	if !*advancedGlobal {
		dispatcher.globalEpoch.Advance(batch)
		*advancedGlobal = true
	}
}
