// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"fmt"

	"github.com/tada/catcache/cerror"
	"github.com/tada/catcache/icache"
	"github.com/tada/catcache/logger"
	"github.com/tada/catcache/objaddr"
	"github.com/tada/catcache/slots"
	"github.com/tada/catcache/switchpoint"
)

// catalogObject is the package-internal surface every concrete kind
// provides by embedding ObjectBase.
type catalogObject interface {
	Object
	base() (objectBase *ObjectBase)
}

// ObjectBase carries the state common to every representative: the
// identity-cache anchor, the address, the per-session context, the slot
// array, and (for kinds invalidated individually) the per-object epoch.
//
// Representatives are only built by the kind factories behind
// FromAddress(); nothing else may assemble an ObjectBase.
type ObjectBase struct {
	anchor icache.Anchor
	addr   objaddr.Address
	ctx    *Context
	kind   *kindInfo
	epoch  *switchpoint.Guarded // nil for kinds riding the global epoch
	array  *slots.Array
}

// initBase wires a freshly allocated concrete kind. owner must be the
// concrete object embedding this base, so slot computations receive it.
func (objectBase *ObjectBase) initBase(owner catalogObject, ctx *Context, addr objaddr.Address, kind *kindInfo) {
	objectBase.addr = addr
	objectBase.ctx = ctx
	objectBase.kind = kind

	if kind.perObject {
		objectBase.epoch = switchpoint.NewGuarded()
	}

	objectBase.array = kind.layout.NewArray(owner, ctx.Engine)
}

func (objectBase *ObjectBase) base() (base *ObjectBase) {
	base = objectBase
	return
}

// Addr returns the representative's catalog address.
func (objectBase *ObjectBase) Addr() (addr objaddr.Address) {
	addr = objectBase.addr
	return
}

// CacheAnchor exposes the identity-cache anchor.
func (objectBase *ObjectBase) CacheAnchor() (anchor *icache.Anchor) {
	anchor = &objectBase.anchor
	return
}

// ClassOid returns the catalog class the representative belongs to.
func (objectBase *ObjectBase) ClassOid() (classOid objaddr.Oid) {
	classOid = objectBase.addr.ClassOid
	return
}

// Exists reports whether a backing row is present. Fetch failures degrade
// to false; callers needing the failure itself read a field instead.
func (objectBase *ObjectBase) Exists() (exists bool) {
	var (
		err error
		row interface{}
	)

	row, err = objectBase.array.Read(SlotRawRow)
	if nil != err {
		logger.Debugf("Exists() degraded to false for %s: %s", objectBase.addr.String(), cerror.ErrorString(err))
		exists = false
		return
	}

	exists = (nil != row)
	return
}

// Name returns the object's catalog name.
func (objectBase *ObjectBase) Name() (name string, err error) {
	var (
		value interface{}
	)

	value, err = objectBase.array.Read(SlotName)
	if nil != err {
		return
	}

	name = value.(string)
	return
}

// NamespaceOid returns the oid of the containing namespace.
func (objectBase *ObjectBase) NamespaceOid() (namespaceOid objaddr.Oid, err error) {
	var (
		row interface{}
	)

	if nil == objectBase.kind.namespaceOidOf {
		err = cerror.NewError(cerror.NotSupportedError, "%s objects are not namespaced", objectBase.kind.typeName)
		return
	}

	row, err = objectBase.mustRow()
	if nil != err {
		return
	}

	namespaceOid = objectBase.kind.namespaceOidOf(row)
	return
}

// Namespace returns the representative of the containing namespace.
func (objectBase *ObjectBase) Namespace() (namespace *Namespace, err error) {
	var (
		value interface{}
	)

	if nil == objectBase.kind.namespaceOidOf {
		err = cerror.NewError(cerror.NotSupportedError, "%s objects are not namespaced", objectBase.kind.typeName)
		return
	}

	value, err = objectBase.array.Read(SlotNamespace)
	if nil != err {
		return
	}

	namespace = value.(*Namespace)
	return
}

// OwnerOid returns the oid of the owning role.
func (objectBase *ObjectBase) OwnerOid() (ownerOid objaddr.Oid, err error) {
	var (
		row interface{}
	)

	if nil == objectBase.kind.ownerOidOf {
		err = cerror.NewError(cerror.NotSupportedError, "%s objects have no owner", objectBase.kind.typeName)
		return
	}

	row, err = objectBase.mustRow()
	if nil != err {
		return
	}

	ownerOid = objectBase.kind.ownerOidOf(row)
	return
}

// Owner returns the representative of the owning role.
func (objectBase *ObjectBase) Owner() (owner *Role, err error) {
	var (
		value interface{}
	)

	if nil == objectBase.kind.ownerOidOf {
		err = cerror.NewError(cerror.NotSupportedError, "%s objects have no owner", objectBase.kind.typeName)
		return
	}

	value, err = objectBase.array.Read(SlotOwner)
	if nil != err {
		return
	}

	owner = value.(*Role)
	return
}

// ACL returns the object's access-control entries (nil when the row holds
// the default, empty list).
func (objectBase *ObjectBase) ACL() (entries []string, err error) {
	var (
		value interface{}
	)

	if nil == objectBase.kind.aclOf {
		err = cerror.NewError(cerror.NotSupportedError, "%s objects carry no access-control list", objectBase.kind.typeName)
		return
	}

	value, err = objectBase.array.Read(SlotACL)
	if nil != err {
		return
	}

	entries, _ = value.([]string)
	err = nil
	return
}

// IsShared reports whether the kind lives in the shared, database-
// independent catalogs.
func (objectBase *ObjectBase) IsShared() (isShared bool) {
	isShared = objectBase.kind.shared
	return
}

// LookupID returns the backing-store lookup structure serving this kind.
func (objectBase *ObjectBase) LookupID() (lookupID int) {
	lookupID = objectBase.kind.lookupID
	return
}

// LookupHash returns the hash the backing store names this object by in
// lookup-granular invalidation signals.
func (objectBase *ObjectBase) LookupHash() (hash uint64) {
	hash = objectBase.addr.ObjectOid.Hash()
	return
}

// HasOwnEpoch reports whether the kind is invalidated individually.
func (objectBase *ObjectBase) HasOwnEpoch() (hasOwnEpoch bool) {
	hasOwnEpoch = (nil != objectBase.epoch)
	return
}

// ContributeInvalidations schedules this object's epoch with the batch.
// Kinds with epoch-scoped derived caches (Relation, Procedure) shadow this
// with their own teardown.
func (objectBase *ObjectBase) ContributeInvalidations(batch *switchpoint.Batch) {
	if nil != objectBase.epoch {
		objectBase.epoch.ReplaceAndCollect(batch, nil, nil)
	}
}

// String renders "Kind[class,object,sub]", suffixed with the resolved name
// when one is already memoized. It never computes, blocks, or fails, so
// log sites may call it freely.
func (objectBase *ObjectBase) String() (s string) {
	var (
		bound bool
		value interface{}
	)

	s = objectBase.kind.typeName + objectBase.addr.String()

	value, bound = objectBase.array.Peek(SlotName)
	if bound {
		s = fmt.Sprintf("%s \"%s\"", s, value.(string))
	}

	return
}

// mustRow returns the decoded backing row, failing with NotFoundError when
// there is none.
func (objectBase *ObjectBase) mustRow() (row interface{}, err error) {
	row, err = objectBase.array.Read(SlotRawRow)
	if nil != err {
		return
	}

	if nil == row {
		err = cerror.NewError(cerror.NotFoundError, "%s does not exist", objectBase.String())
		row = nil
		return
	}

	err = nil
	return
}

// objectEpoch is the EpochFunc every slot uses: the owner's per-object
// token when the kind has one, the session's global token otherwise.
func objectEpoch(obj interface{}) (switchPoint *switchpoint.SwitchPoint) {
	var (
		base *ObjectBase
	)

	base = obj.(catalogObject).base()

	if nil != base.epoch {
		switchPoint = base.epoch.Current()
	} else {
		switchPoint = base.ctx.GlobalEpoch.Current()
	}

	return
}

// rawRowCompute fetches and decodes the backing row. "No such row"
// memoizes a nil value (not an error): nonexistence is a cacheable fact.
func rawRowCompute(obj interface{}) (value interface{}, err error) {
	var (
		base  *ObjectBase
		found bool
		row   []byte
	)

	base = obj.(catalogObject).base()

	row, found, err = base.ctx.Rows.FetchRow(base.kind.lookupID, base.addr.ObjectOid, 0)
	if nil != err {
		return
	}
	if !found {
		logger.Tracef("no %s row for %s", base.kind.typeName, base.addr.String())
		value = nil
		err = nil
		return
	}

	value, err = base.kind.decodeRow(row)
	return
}

// nameCompute extracts the name from the backing row.
func nameCompute(obj interface{}) (value interface{}, err error) {
	var (
		base *ObjectBase
		row  interface{}
	)

	base = obj.(catalogObject).base()

	row, err = base.mustRow()
	if nil != err {
		return
	}

	value = base.kind.nameOf(row)
	err = nil
	return
}

// namespaceCompute resolves the containing namespace's representative. The
// resolution itself fetches nothing; the returned representative populates
// lazily like any other.
func namespaceCompute(obj interface{}) (value interface{}, err error) {
	var (
		base         *ObjectBase
		namespace    *Namespace
		namespaceOid objaddr.Oid
		row          interface{}
	)

	base = obj.(catalogObject).base()

	row, err = base.mustRow()
	if nil != err {
		return
	}

	namespaceOid = base.kind.namespaceOidOf(row)

	namespace, err = NamespaceFromOid(base.ctx, namespaceOid)
	if nil != err {
		return
	}

	value = namespace
	err = nil
	return
}

// ownerCompute resolves the owning role's representative.
func ownerCompute(obj interface{}) (value interface{}, err error) {
	var (
		base     *ObjectBase
		owner    *Role
		ownerOid objaddr.Oid
		row      interface{}
	)

	base = obj.(catalogObject).base()

	row, err = base.mustRow()
	if nil != err {
		return
	}

	ownerOid = base.kind.ownerOidOf(row)

	owner, err = RoleFromOid(base.ctx, ownerOid)
	if nil != err {
		return
	}

	value = owner
	err = nil
	return
}

// aclCompute extracts the access-control entries from the backing row.
func aclCompute(obj interface{}) (value interface{}, err error) {
	var (
		base *ObjectBase
		row  interface{}
	)

	base = obj.(catalogObject).base()

	row, err = base.mustRow()
	if nil != err {
		return
	}

	value = base.kind.aclOf(row)
	err = nil
	return
}
