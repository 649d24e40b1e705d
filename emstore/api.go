// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

// Package emstore provides an in-memory emulation of the backing store's
// catalog surfaces: the generic single-key row lookups, the two-key
// attribute lookup, the structural bootstrap fetch, and the outbound
// invalidation signals fired when seeded rows are mutated.
//
// The production backing store lives on the far side of the engine
// thread; this emulation exists so the cache core, the representative
// objects, and the invalidation dispatcher can be exercised end to end in
// tests and in the workout binary.
package emstore

import (
	"sync"
	"sync/atomic"

	"github.com/NVIDIA/sortedmap"
	"github.com/google/btree"

	"github.com/tada/catcache/cerror"
	"github.com/tada/catcache/engine"
	"github.com/tada/catcache/objaddr"
	"github.com/tada/catcache/rowlayout"
)

const attributeIndexDegree = 8

// attributeItem is one pg_attribute row in the two-key index, ordered by
// (relation oid, attribute number).
type attributeItem struct {
	relationOid uint32
	num         uint16
	row         []byte
}

func (item *attributeItem) Less(than btree.Item) (less bool) {
	var (
		other *attributeItem
	)

	other = than.(*attributeItem)

	if item.relationOid != other.relationOid {
		less = item.relationOid < other.relationOid
	} else {
		less = item.num < other.num
	}

	return
}

// Store is the emulated backing store. It satisfies engine.RowFetcher and
// engine.StructuralFetcher.
type Store struct {
	sync.Mutex

	singleKeyLookups map[int]sortedmap.LLRBTree // lookupID -> (uint32 oid -> []byte row)
	attributeIndex   *btree.BTree

	invalidator engine.Invalidator

	rowFetches   atomic.Uint64
	shapeFetches atomic.Uint64
}

// NewStore creates an empty emulated store.
func NewStore() (store *Store) {
	var (
		lookupID int
	)

	store = &Store{
		singleKeyLookups: make(map[int]sortedmap.LLRBTree),
		attributeIndex:   btree.New(attributeIndexDegree),
	}

	for _, lookupID = range []int{
		rowlayout.RelationLookup,
		rowlayout.TypeLookup,
		rowlayout.ProcedureLookup,
		rowlayout.RoleLookup,
		rowlayout.NamespaceLookup,
		rowlayout.DatabaseLookup,
	} {
		store.singleKeyLookups[lookupID] = sortedmap.NewLLRBTree(sortedmap.CompareUint32, nil)
	}

	return
}

// SetInvalidator wires the invalidation dispatcher the store signals when
// seeded rows are mutated.
func (store *Store) SetInvalidator(invalidator engine.Invalidator) {
	store.Lock()
	store.invalidator = invalidator
	store.Unlock()
}

// FetchRow looks one row up. The returned slice is the caller's to keep.
func (store *Store) FetchRow(lookupID int, key1 objaddr.Oid, key2 objaddr.Oid) (row []byte, found bool, err error) {
	var (
		item   btree.Item
		stored []byte
		tree   sortedmap.LLRBTree
		ok     bool
		value  sortedmap.Value
	)

	store.rowFetches.Add(1)

	store.Lock()
	defer store.Unlock()

	if rowlayout.AttributeLookup == lookupID {
		item = store.attributeIndex.Get(&attributeItem{relationOid: uint32(key1), num: uint16(key2)})
		if nil == item {
			found = false
			err = nil
			return
		}
		stored = item.(*attributeItem).row
	} else {
		tree, ok = store.singleKeyLookups[lookupID]
		if !ok {
			err = cerror.NewError(cerror.NotFoundError, "no lookup structure with id %d", lookupID)
			return
		}

		value, ok, err = tree.GetByKey(uint32(key1))
		if nil != err {
			err = cerror.AddCode(err, cerror.ConsistencyError)
			return
		}
		if !ok {
			found = false
			err = nil
			return
		}
		stored = value.([]byte)
	}

	row = make([]byte, len(stored))
	copy(row, stored)

	found = true
	err = nil
	return
}

// FetchShape serves the structural bootstrap fetch: the relation that
// describes all relations cannot be described through the generic row
// lookup it itself defines, so its shape comes straight from here.
func (store *Store) FetchShape(tableOid objaddr.Oid) (shape *engine.TupleShape, err error) {
	store.shapeFetches.Add(1)

	if objaddr.RelationClassOid != tableOid {
		err = cerror.NewError(cerror.NotFoundError, "structural fetch supports only the bootstrap relation, not oid %d", uint32(tableOid))
		return
	}

	shape = &engine.TupleShape{
		RelationOid: objaddr.RelationClassOid,
		Columns: []engine.Column{
			{Name: "oid", TypeOid: 26, Num: 1, NotNull: true},
			{Name: "relname", TypeOid: 19, Num: 2, NotNull: true},
			{Name: "relnamespace", TypeOid: 26, Num: 3, NotNull: true},
			{Name: "relowner", TypeOid: 26, Num: 4, NotNull: true},
			{Name: "reltype", TypeOid: 26, Num: 5, NotNull: true},
			{Name: "relkind", TypeOid: 18, Num: 6, NotNull: true},
			{Name: "relnatts", TypeOid: 21, Num: 7, NotNull: true},
			{Name: "relacl", TypeOid: 1034, Num: 8},
		},
	}

	err = nil
	return
}

// RowFetchCount returns how many FetchRow calls the store has served.
func (store *Store) RowFetchCount() (count uint64) {
	count = store.rowFetches.Load()
	return
}

// ShapeFetchCount returns how many FetchShape calls the store has served.
func (store *Store) ShapeFetchCount() (count uint64) {
	count = store.shapeFetches.Load()
	return
}

// putSingleKey stores one marshaled row.
func (store *Store) putSingleKey(lookupID int, objectOid uint32, row []byte) (err error) {
	var (
		ok   bool
		tree sortedmap.LLRBTree
	)

	store.Lock()
	defer store.Unlock()

	tree, ok = store.singleKeyLookups[lookupID]
	if !ok {
		err = cerror.NewError(cerror.NotFoundError, "no lookup structure with id %d", lookupID)
		return
	}

	ok, err = tree.Put(objectOid, row)
	if nil != err {
		err = cerror.AddCode(err, cerror.ConsistencyError)
		return
	}
	if !ok {
		_, err = tree.PatchByKey(objectOid, row)
		if nil != err {
			err = cerror.AddCode(err, cerror.ConsistencyError)
			return
		}
	}

	err = nil
	return
}

// deleteSingleKey removes one row; removing an absent row is a no-op.
func (store *Store) deleteSingleKey(lookupID int, objectOid uint32) (err error) {
	var (
		ok   bool
		tree sortedmap.LLRBTree
	)

	store.Lock()
	defer store.Unlock()

	tree, ok = store.singleKeyLookups[lookupID]
	if !ok {
		err = cerror.NewError(cerror.NotFoundError, "no lookup structure with id %d", lookupID)
		return
	}

	_, err = tree.DeleteByKey(objectOid)
	if nil != err {
		err = cerror.AddCode(err, cerror.ConsistencyError)
		return
	}

	err = nil
	return
}

// signalCatalog delivers a catalog-granular invalidation if a dispatcher
// is wired. Mutators call it AFTER the store reflects the change, so a
// recomputation triggered by the signal sees the new row.
func (store *Store) signalCatalog(classOid objaddr.Oid, objectOid objaddr.Oid) {
	var (
		invalidator engine.Invalidator
	)

	store.Lock()
	invalidator = store.invalidator
	store.Unlock()

	if nil != invalidator {
		invalidator.InvalidateCatalog(classOid, objectOid)
	}
}
