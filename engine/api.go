// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

// Package engine provides the database-engine thread and the contracts the
// catalog cache consumes from the backing store.
//
// The host process is fundamentally single-threaded with respect to the
// backing store: exactly one goroutine, pinned to its OS thread, may read
// backing-store memory or invoke backing-store operations at any moment.
// All slot computation functions and all invalidation dispatch run only on
// that goroutine. Other goroutines marshal work onto it with Run(), a
// synchronous call with no cancellation; marshaled work is CPU-bound
// metadata decoding, not I/O, and is expected to run near-instantly.
//
// Merely obtaining a representative object for an address never requires
// engine-thread marshaling; only computing an actual field value does.
package engine

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/tada/catcache/cerror"
	"github.com/tada/catcache/objaddr"
)

// RowFetcher is the backing store's generic row-fetch contract: given a
// lookup-structure id and one or two oid keys, return either "no such row"
// or one catalog row. The returned row is a copy, durable past the current
// call; the cache memoizes it without further copying.
type RowFetcher interface {
	FetchRow(lookupID int, key1 objaddr.Oid, key2 objaddr.Oid) (row []byte, found bool, err error)
}

// StructuralFetcher is the backing store's lower-level "describe this
// table's row shape" contract, needed to break the bootstrap circularity
// for the relation that describes all relations: its shape cannot be
// obtained through the generic row lookup it itself defines.
type StructuralFetcher interface {
	FetchShape(tableOid objaddr.Oid) (shape *TupleShape, err error)
}

// Invalidator is the inbound invalidation-signal surface. The backing
// store delivers either "this exact object in this catalog table changed
// (or wildcard for the whole table)" or "this lookup structure's cached
// entries matching this hash changed (or zero for all)". The invalidation
// dispatcher is the sole implementor.
type Invalidator interface {
	InvalidateCatalog(classOid objaddr.Oid, objectOid objaddr.Oid)
	InvalidateLookup(lookupID int, hash uint64)
}

// Column describes one attribute of a relation's row shape.
type Column struct {
	Name    string
	TypeOid objaddr.Oid
	Num     uint16 // 1-based attribute number
	NotNull bool
}

// TupleShape is the decoded row-shape descriptor of one relation: the
// derived artifact some objects cache outside their slot array, in
// lockstep with their per-object epoch.
type TupleShape struct {
	RelationOid objaddr.Oid
	Columns     []Column
}

// ColumnByNum returns the column with the given 1-based attribute number.
func (shape *TupleShape) ColumnByNum(num uint16) (column *Column, found bool) {
	var (
		index int
	)

	for index = range shape.Columns {
		if num == shape.Columns[index].Num {
			column = &shape.Columns[index]
			found = true
			return
		}
	}

	found = false
	return
}

// marshaledRequest carries one closure onto the engine thread.
type marshaledRequest struct {
	fn   func() error
	done chan error
}

// Thread is the database-engine thread.
type Thread struct {
	requestChan chan *marshaledRequest
	stopChan    chan struct{}
	stopWG      sync.WaitGroup
	gid         atomic.Uint64
}

// StartThread launches the engine thread with the supplied marshaling
// queue depth and returns once the thread is accepting work.
func StartThread(queueDepth int) (thread *Thread) {
	var (
		startedWG sync.WaitGroup
	)

	thread = &Thread{
		requestChan: make(chan *marshaledRequest, queueDepth),
		stopChan:    make(chan struct{}),
	}

	startedWG.Add(1)
	thread.stopWG.Add(1)

	go func() {
		var (
			request *marshaledRequest
		)

		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer thread.stopWG.Done()

		thread.gid.Store(currentGID())
		startedWG.Done()

		for {
			select {
			case request = <-thread.requestChan:
				request.done <- request.fn()
			case <-thread.stopChan:
				// Serve whatever was already queued, then quit.
				for {
					select {
					case request = <-thread.requestChan:
						request.done <- request.fn()
					default:
						return
					}
				}
			}
		}
	}()

	startedWG.Wait()

	return
}

// Run executes fn on the engine thread and waits for it, returning fn's
// error. Calls already running on the engine thread invoke fn directly, so
// computation functions may marshal nested work without deadlocking.
func (thread *Thread) Run(fn func() error) (err error) {
	var (
		request *marshaledRequest
	)

	if thread.OnThread() {
		err = fn()
		return
	}

	request = &marshaledRequest{fn: fn, done: make(chan error, 1)}

	select {
	case thread.requestChan <- request:
		err = <-request.done
	case <-thread.stopChan:
		err = cerror.NewError(cerror.ConsistencyError, "engine thread is down; cannot marshal work onto it")
	}

	return
}

// OnThread reports whether the caller is running on the engine thread.
func (thread *Thread) OnThread() (onThread bool) {
	onThread = currentGID() == thread.gid.Load()
	return
}

// Assert panics if the caller is not on the engine thread. Computation
// functions and invalidation dispatch assert this at entry.
func (thread *Thread) Assert(what string) {
	if !thread.OnThread() {
		panic(cerror.NewError(cerror.ConsistencyError, "%s must run on the database-engine thread (goroutine %d, engine %d)",
			what, currentGID(), thread.gid.Load()))
	}
}

// Stop shuts the engine thread down after draining already-queued work.
func (thread *Thread) Stop() {
	close(thread.stopChan)
	thread.stopWG.Wait()
}

// currentGID returns the running goroutine's id by parsing the leading
// "goroutine N " of a stack dump. Logging-and-assertion use only.
func currentGID() (gid uint64) {
	var (
		buf []byte
	)

	buf = make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	buf = buf[:bytes.IndexByte(buf, ' ')]

	gid, _ = strconv.ParseUint(string(buf), 10, 64)

	return
}
