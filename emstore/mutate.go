// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

package emstore

import (
	"github.com/tada/catcache/objaddr"
	"github.com/tada/catcache/rowlayout"
)

// Seed* mutators load fixture rows without firing invalidation signals;
// they stand in for the state the store had before the session began.
//
// Update* and Delete* mutators change rows a session may already have
// cached, so they signal the wired invalidation dispatcher after the
// change lands. Like all invalidation delivery they must be called on the
// database-engine thread.

// SeedRelation stores a pg_class row.
func (store *Store) SeedRelation(row *rowlayout.RelationRowV1Struct) (err error) {
	var (
		rowBuf []byte
	)

	rowBuf, err = row.MarshalRelationRowV1()
	if nil != err {
		return
	}

	err = store.putSingleKey(rowlayout.RelationLookup, row.ObjectOid, rowBuf)
	return
}

// SeedType stores a pg_type row.
func (store *Store) SeedType(row *rowlayout.TypeRowV1Struct) (err error) {
	var (
		rowBuf []byte
	)

	rowBuf, err = row.MarshalTypeRowV1()
	if nil != err {
		return
	}

	err = store.putSingleKey(rowlayout.TypeLookup, row.ObjectOid, rowBuf)
	return
}

// SeedProcedure stores a pg_proc row.
func (store *Store) SeedProcedure(row *rowlayout.ProcedureRowV1Struct) (err error) {
	var (
		rowBuf []byte
	)

	rowBuf, err = row.MarshalProcedureRowV1()
	if nil != err {
		return
	}

	err = store.putSingleKey(rowlayout.ProcedureLookup, row.ObjectOid, rowBuf)
	return
}

// SeedRole stores a pg_authid row.
func (store *Store) SeedRole(row *rowlayout.RoleRowV1Struct) (err error) {
	var (
		rowBuf []byte
	)

	rowBuf, err = row.MarshalRoleRowV1()
	if nil != err {
		return
	}

	err = store.putSingleKey(rowlayout.RoleLookup, row.ObjectOid, rowBuf)
	return
}

// SeedNamespace stores a pg_namespace row.
func (store *Store) SeedNamespace(row *rowlayout.NamespaceRowV1Struct) (err error) {
	var (
		rowBuf []byte
	)

	rowBuf, err = row.MarshalNamespaceRowV1()
	if nil != err {
		return
	}

	err = store.putSingleKey(rowlayout.NamespaceLookup, row.ObjectOid, rowBuf)
	return
}

// SeedDatabase stores a pg_database row.
func (store *Store) SeedDatabase(row *rowlayout.DatabaseRowV1Struct) (err error) {
	var (
		rowBuf []byte
	)

	rowBuf, err = row.MarshalDatabaseRowV1()
	if nil != err {
		return
	}

	err = store.putSingleKey(rowlayout.DatabaseLookup, row.ObjectOid, rowBuf)
	return
}

// SeedAttribute stores a pg_attribute row in the two-key index.
func (store *Store) SeedAttribute(row *rowlayout.AttributeRowV1Struct) (err error) {
	var (
		rowBuf []byte
	)

	rowBuf, err = row.MarshalAttributeRowV1()
	if nil != err {
		return
	}

	store.Lock()
	store.attributeIndex.ReplaceOrInsert(&attributeItem{
		relationOid: row.RelationOid,
		num:         row.Num,
		row:         rowBuf,
	})
	store.Unlock()

	err = nil
	return
}

// UpdateRelation replaces a pg_class row and signals the change.
func (store *Store) UpdateRelation(row *rowlayout.RelationRowV1Struct) (err error) {
	err = store.SeedRelation(row)
	if nil != err {
		return
	}

	store.signalCatalog(objaddr.RelationClassOid, objaddr.Oid(row.ObjectOid))
	return
}

// DeleteRelation removes a pg_class row and signals the change.
func (store *Store) DeleteRelation(objectOid objaddr.Oid) (err error) {
	err = store.deleteSingleKey(rowlayout.RelationLookup, uint32(objectOid))
	if nil != err {
		return
	}

	store.signalCatalog(objaddr.RelationClassOid, objectOid)
	return
}

// UpdateType replaces a pg_type row and signals the change.
func (store *Store) UpdateType(row *rowlayout.TypeRowV1Struct) (err error) {
	err = store.SeedType(row)
	if nil != err {
		return
	}

	store.signalCatalog(objaddr.TypeClassOid, objaddr.Oid(row.ObjectOid))
	return
}

// UpdateProcedure replaces a pg_proc row and signals the change.
func (store *Store) UpdateProcedure(row *rowlayout.ProcedureRowV1Struct) (err error) {
	err = store.SeedProcedure(row)
	if nil != err {
		return
	}

	store.signalCatalog(objaddr.ProcedureClassOid, objaddr.Oid(row.ObjectOid))
	return
}

// DeleteProcedure removes a pg_proc row and signals the change.
func (store *Store) DeleteProcedure(objectOid objaddr.Oid) (err error) {
	err = store.deleteSingleKey(rowlayout.ProcedureLookup, uint32(objectOid))
	if nil != err {
		return
	}

	store.signalCatalog(objaddr.ProcedureClassOid, objectOid)
	return
}

// UpdateRole replaces a pg_authid row and signals the change.
func (store *Store) UpdateRole(row *rowlayout.RoleRowV1Struct) (err error) {
	err = store.SeedRole(row)
	if nil != err {
		return
	}

	store.signalCatalog(objaddr.RoleClassOid, objaddr.Oid(row.ObjectOid))
	return
}

// UpdateNamespace replaces a pg_namespace row and signals the change.
func (store *Store) UpdateNamespace(row *rowlayout.NamespaceRowV1Struct) (err error) {
	err = store.SeedNamespace(row)
	if nil != err {
		return
	}

	store.signalCatalog(objaddr.NamespaceClassOid, objaddr.Oid(row.ObjectOid))
	return
}

// UpdateDatabase replaces a pg_database row and signals the change.
func (store *Store) UpdateDatabase(row *rowlayout.DatabaseRowV1Struct) (err error) {
	err = store.SeedDatabase(row)
	if nil != err {
		return
	}

	store.signalCatalog(objaddr.DatabaseClassOid, objaddr.Oid(row.ObjectOid))
	return
}

// InvalidateWholeClass signals the wildcard "every row of this catalog
// class may have changed".
func (store *Store) InvalidateWholeClass(classOid objaddr.Oid) {
	store.signalCatalog(classOid, objaddr.InvalidOid)
}
