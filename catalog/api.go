// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

// Package catalog provides the representative objects modeling rows of the
// system catalogs: Relation, Type, Procedure, Role, Namespace, and
// Database.
//
// A representative is obtained only through FromAddress() (or the typed
// convenience wrappers), which funnels construction through the identity
// cache: one live representative per address, reference equality being
// address equality. Construction is cheap and fetches nothing; every field
// is a lazily-computed slot that is populated on first read, on the
// database-engine thread, and memoized bound to an invalidation epoch.
//
// Capabilities (name, namespace, owner, ACL) are per-kind opt-ins. Reading
// a capability a kind does not declare fails with a NotSupportedError
// naming the slot; it never panics.
package catalog

import (
	"fmt"

	"github.com/tada/catcache/cerror"
	"github.com/tada/catcache/engine"
	"github.com/tada/catcache/icache"
	"github.com/tada/catcache/objaddr"
	"github.com/tada/catcache/switchpoint"
)

// Common slot indices shared by every kind. Kind-specific slots are
// appended above CommonSlotCount.
const (
	SlotRawRow = iota // the decoded backing row, or nil for "no such row"
	SlotName
	SlotNamespace
	SlotOwner
	SlotACL
	CommonSlotCount
)

// Context carries the per-session collaborators every representative
// needs: the identity cache it lives in, the engine thread its slot
// computations marshal onto, the backing store's fetch surfaces, and the
// globally-shared invalidation epoch.
type Context struct {
	Cache       *icache.Cache
	Engine      *engine.Thread
	Rows        engine.RowFetcher
	Shapes      engine.StructuralFetcher
	GlobalEpoch *switchpoint.Shared
}

// Object is the surface common to every representative.
type Object interface {
	icache.Object
	fmt.Stringer

	// Exists reports whether a backing row is present. A representative of
	// an address with no row (including the permanently-invalid zero-oid
	// addresses) reports false; fetch failures degrade to false.
	Exists() (exists bool)

	// Name returns the object's catalog name. Every registered kind is
	// Named.
	Name() (name string, err error)

	// ClassOid returns the catalog class the representative belongs to.
	ClassOid() (classOid objaddr.Oid)

	// LookupID, LookupHash, HasOwnEpoch, and ContributeInvalidations are
	// the invalidation-dispatch surface (the inval package consumes them).
	LookupID() (lookupID int)
	LookupHash() (hash uint64)
	HasOwnEpoch() (hasOwnEpoch bool)
	ContributeInvalidations(batch *switchpoint.Batch)
}

// Named is satisfied by every kind.
type Named interface {
	Name() (name string, err error)
}

// Namespaced is the capability of living in a namespace. Kinds without it
// report NotSupportedError from these methods.
type Namespaced interface {
	NamespaceOid() (namespaceOid objaddr.Oid, err error)
	Namespace() (namespace *Namespace, err error)
}

// Owned is the capability of having an owning role.
type Owned interface {
	OwnerOid() (ownerOid objaddr.Oid, err error)
	Owner() (owner *Role, err error)
}

// AccessControlled is the capability of carrying an access-control list.
type AccessControlled interface {
	ACL() (entries []string, err error)
}

// SharedObject marks kinds whose rows live in the shared, database-
// independent catalogs.
type SharedObject interface {
	IsShared() (isShared bool)
}

// FromAddress returns the representative for addr, constructing (but not
// populating) it if no live one exists. Unregistered catalog classes fail
// with NotFoundError. Registered kinds have no sub-object representatives,
// so a nonzero SubId fails with ConsistencyError. An address whose
// ObjectOid is the invalid sentinel still gets a representative; it just
// permanently reports Exists() == false.
func FromAddress(ctx *Context, addr objaddr.Address) (obj Object, err error) {
	var (
		cached icache.Object
		kind   *kindInfo
		ok     bool
	)

	kind, ok = kindRegistry[addr.ClassOid]
	if !ok {
		err = cerror.NewError(cerror.NotFoundError, "catalog class %d has no registered representative kind", uint32(addr.ClassOid))
		return
	}

	if 0 != addr.SubId {
		err = cerror.NewError(cerror.ConsistencyError, "%s kind has no sub-object representatives (address %s)", kind.typeName, addr.String())
		return
	}

	cached, err = ctx.Cache.FindOrCreate(addr, func(ctorAddr objaddr.Address) (ctorObj icache.Object, ctorErr error) {
		var (
			co catalogObject
		)

		co = kind.factory(ctx, ctorAddr)

		if !ctorAddr.IsValid() {
			// Pinned to "no row", insensitive to invalidation forever.
			co.base().array.SetConstant(SlotRawRow, nil)
		}

		ctorObj = co
		ctorErr = nil
		return
	})
	if nil != err {
		return
	}

	obj = cached.(Object)
	err = nil
	return
}

// RelationFromOid returns the Relation representative for objectOid.
func RelationFromOid(ctx *Context, objectOid objaddr.Oid) (relation *Relation, err error) {
	var (
		obj Object
	)

	obj, err = FromAddress(ctx, objaddr.New(objaddr.RelationClassOid, objectOid, 0))
	if nil != err {
		return
	}

	relation = obj.(*Relation)
	return
}

// TypeFromOid returns the Type representative for objectOid.
func TypeFromOid(ctx *Context, objectOid objaddr.Oid) (typeObj *Type, err error) {
	var (
		obj Object
	)

	obj, err = FromAddress(ctx, objaddr.New(objaddr.TypeClassOid, objectOid, 0))
	if nil != err {
		return
	}

	typeObj = obj.(*Type)
	return
}

// ProcedureFromOid returns the Procedure representative for objectOid.
func ProcedureFromOid(ctx *Context, objectOid objaddr.Oid) (procedure *Procedure, err error) {
	var (
		obj Object
	)

	obj, err = FromAddress(ctx, objaddr.New(objaddr.ProcedureClassOid, objectOid, 0))
	if nil != err {
		return
	}

	procedure = obj.(*Procedure)
	return
}

// RoleFromOid returns the Role representative for objectOid.
func RoleFromOid(ctx *Context, objectOid objaddr.Oid) (role *Role, err error) {
	var (
		obj Object
	)

	obj, err = FromAddress(ctx, objaddr.New(objaddr.RoleClassOid, objectOid, 0))
	if nil != err {
		return
	}

	role = obj.(*Role)
	return
}

// NamespaceFromOid returns the Namespace representative for objectOid.
func NamespaceFromOid(ctx *Context, objectOid objaddr.Oid) (namespace *Namespace, err error) {
	var (
		obj Object
	)

	obj, err = FromAddress(ctx, objaddr.New(objaddr.NamespaceClassOid, objectOid, 0))
	if nil != err {
		return
	}

	namespace = obj.(*Namespace)
	return
}

// DatabaseFromOid returns the Database representative for objectOid.
func DatabaseFromOid(ctx *Context, objectOid objaddr.Oid) (database *Database, err error) {
	var (
		obj Object
	)

	obj, err = FromAddress(ctx, objaddr.New(objaddr.DatabaseClassOid, objectOid, 0))
	if nil != err {
		return
	}

	database = obj.(*Database)
	return
}

// AsRelation reinterprets obj as a Relation. A representative of any other
// class fails with ConsistencyError rather than a failed type assertion.
func AsRelation(obj Object) (relation *Relation, err error) {
	var (
		ok bool
	)

	relation, ok = obj.(*Relation)
	if !ok {
		err = cerror.NewError(cerror.ConsistencyError, "cannot reinterpret %s as a Relation", obj.String())
		return
	}

	err = nil
	return
}

// AsType reinterprets obj as a Type (see AsRelation).
func AsType(obj Object) (typeObj *Type, err error) {
	var (
		ok bool
	)

	typeObj, ok = obj.(*Type)
	if !ok {
		err = cerror.NewError(cerror.ConsistencyError, "cannot reinterpret %s as a Type", obj.String())
		return
	}

	err = nil
	return
}

// AsProcedure reinterprets obj as a Procedure (see AsRelation).
func AsProcedure(obj Object) (procedure *Procedure, err error) {
	var (
		ok bool
	)

	procedure, ok = obj.(*Procedure)
	if !ok {
		err = cerror.NewError(cerror.ConsistencyError, "cannot reinterpret %s as a Procedure", obj.String())
		return
	}

	err = nil
	return
}
