// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"sync/atomic"

	"github.com/tada/catcache/cerror"
	"github.com/tada/catcache/engine"
	"github.com/tada/catcache/logger"
	"github.com/tada/catcache/objaddr"
	"github.com/tada/catcache/rowlayout"
	"github.com/tada/catcache/slots"
	"github.com/tada/catcache/switchpoint"
)

// relationSlotRowType holds the Type representative describing this
// relation's rows (the handshake partner).
const relationSlotRowType = CommonSlotCount + iota

// Relation represents one pg_class row. It is one of the two kinds
// invalidated individually: its slots bind to its own epoch, and its
// decoded TupleShape rides outside the slot array, cleared in lockstep
// with the epoch.
type Relation struct {
	ObjectBase

	// pendingRowType is the handshake stash: while this relation's row-type
	// slot is being computed, the partner Type finds this relation here
	// instead of fetching the linkage a second time. Only the engine thread
	// touches it.
	pendingRowType *Type

	shape atomic.Pointer[engine.TupleShape]
}

var relationKind = &kindInfo{
	classOid:  objaddr.RelationClassOid,
	typeName:  "Relation",
	lookupID:  rowlayout.RelationLookup,
	perObject: true,

	decodeRow: func(row []byte) (decoded interface{}, err error) {
		decoded, err = rowlayout.UnmarshalRelationRowV1(row)
		return
	},

	nameOf: func(decoded interface{}) (name string) {
		name = rowlayout.NameToString(decoded.(*rowlayout.RelationRowV1Struct).Name)
		return
	},
	namespaceOidOf: func(decoded interface{}) (namespaceOid objaddr.Oid) {
		namespaceOid = objaddr.Oid(decoded.(*rowlayout.RelationRowV1Struct).NamespaceOid)
		return
	},
	ownerOidOf: func(decoded interface{}) (ownerOid objaddr.Oid) {
		ownerOid = objaddr.Oid(decoded.(*rowlayout.RelationRowV1Struct).OwnerOid)
		return
	},
	aclOf: func(decoded interface{}) (entries []string) {
		entries = rowlayout.DecodeACL(decoded.(*rowlayout.RelationRowV1Struct).ACL)
		return
	},

	extraSlots: func(builder *slots.Builder) {
		builder.Define(relationSlotRowType, "row_type", relationRowTypeCompute, objectEpoch)
	},
}

// The factory references relationKind, so it is installed here to avoid a
// package-level initialization cycle.
func init() {
	relationKind.factory = func(ctx *Context, addr objaddr.Address) (co catalogObject) {
		var (
			relation *Relation
		)

		relation = &Relation{}
		relation.initBase(relation, ctx, addr, relationKind)

		co = relation
		return
	}
}

// row returns the decoded backing row, or NotFoundError.
func (relation *Relation) row() (relationRow *rowlayout.RelationRowV1Struct, err error) {
	var (
		decoded interface{}
	)

	decoded, err = relation.mustRow()
	if nil != err {
		return
	}

	relationRow = decoded.(*rowlayout.RelationRowV1Struct)
	return
}

// Kind returns the relation kind code (table, index, view, ...).
func (relation *Relation) Kind() (kind rowlayout.RelationKind, err error) {
	var (
		relationRow *rowlayout.RelationRowV1Struct
	)

	relationRow, err = relation.row()
	if nil != err {
		return
	}

	kind, err = rowlayout.DecodeRelationKind(relationRow.Kind)
	return
}

// AttrCount returns the number of user attributes.
func (relation *Relation) AttrCount() (attrCount uint16, err error) {
	var (
		relationRow *rowlayout.RelationRowV1Struct
	)

	relationRow, err = relation.row()
	if nil != err {
		return
	}

	attrCount = relationRow.AttrCount
	return
}

// RowTypeOid returns the oid of the composite type describing this
// relation's rows (InvalidOid when the relation has none).
func (relation *Relation) RowTypeOid() (rowTypeOid objaddr.Oid, err error) {
	var (
		relationRow *rowlayout.RelationRowV1Struct
	)

	relationRow, err = relation.row()
	if nil != err {
		return
	}

	rowTypeOid = objaddr.Oid(relationRow.RowTypeOid)
	return
}

// RowType returns the Type representative describing this relation's rows,
// or nil when the relation has none. The linkage is established with a
// single fetch and cached on both partners (Type.Relation() on the
// returned Type answers without touching the store again).
func (relation *Relation) RowType() (typeObj *Type, err error) {
	var (
		value interface{}
	)

	value, err = relation.array.Read(relationSlotRowType)
	if nil != err {
		return
	}

	typeObj, _ = value.(*Type)
	err = nil
	return
}

// relationRowTypeCompute is the Relation side of the bidirectional
// handshake. Runs on the engine thread.
func relationRowTypeCompute(obj interface{}) (value interface{}, err error) {
	var (
		relation    *Relation
		relationRow *rowlayout.RelationRowV1Struct
		typeObj     *Type
	)

	relation = obj.(*Relation)

	// The partner Type may be mid-compute of its own relation slot, having
	// stashed itself here; answer from the stash without a fetch.
	if nil != relation.pendingRowType {
		value = relation.pendingRowType
		err = nil
		return
	}

	relationRow, err = relation.row()
	if nil != err {
		return
	}

	if objaddr.InvalidOid == objaddr.Oid(relationRow.RowTypeOid) {
		value = (*Type)(nil)
		err = nil
		return
	}

	typeObj, err = TypeFromOid(relation.ctx, objaddr.Oid(relationRow.RowTypeOid))
	if nil != err {
		return
	}

	// Seed the partner's back link, then make it bind its own slot while
	// the stash is visible. One fetch covers both directions.
	if nil == typeObj.pendingRelation {
		typeObj.pendingRelation = relation
		_, err = typeObj.array.Read(typeSlotRelation)
		typeObj.pendingRelation = nil
		if nil != err {
			return
		}
	}

	value = typeObj
	err = nil
	return
}

// TupleShape returns the relation's decoded row-shape descriptor. The
// shape is the epoch-scoped derived artifact cached outside the slot
// array; invalidating the relation clears it in the same batch that
// retires the epoch.
//
// The relation that describes all relations cannot obtain its shape
// through the generic row lookup it itself defines, so it alone goes
// through the store's structural fetch.
func (relation *Relation) TupleShape() (shape *engine.TupleShape, err error) {
	shape = relation.shape.Load()
	if nil != shape {
		err = nil
		return
	}

	err = relation.ctx.Engine.Run(func() (buildErr error) {
		shape, buildErr = relation.buildShape()
		return
	})
	if nil != err {
		shape = nil
	}

	return
}

// buildShape runs on the engine thread.
func (relation *Relation) buildShape() (shape *engine.TupleShape, err error) {
	var (
		attrNum      uint16
		attributeRow *rowlayout.AttributeRowV1Struct
		found        bool
		relationRow  *rowlayout.RelationRowV1Struct
		row          []byte
		token        *switchpoint.SwitchPoint
	)

	relation.ctx.Engine.Assert("tuple shape construction")

	// A racing reader may have built it while this one was marshaling.
	shape = relation.shape.Load()
	if nil != shape {
		err = nil
		return
	}

	// The shape must be dropped when this relation is invalidated, so its
	// epoch has to know it was read through.
	token = relation.epoch.Current()
	token.MarkUsed()

	if objaddr.RelationClassOid == relation.addr.ObjectOid {
		shape, err = relation.ctx.Shapes.FetchShape(relation.addr.ObjectOid)
		if nil != err {
			shape = nil
			return
		}
	} else {
		relationRow, err = relation.row()
		if nil != err {
			return
		}

		shape = &engine.TupleShape{
			RelationOid: relation.addr.ObjectOid,
			Columns:     make([]engine.Column, 0, relationRow.AttrCount),
		}

		for attrNum = 1; attrNum <= relationRow.AttrCount; attrNum++ {
			row, found, err = relation.ctx.Rows.FetchRow(rowlayout.AttributeLookup, relation.addr.ObjectOid, objaddr.Oid(attrNum))
			if nil != err {
				shape = nil
				return
			}
			if !found {
				err = cerror.NewError(cerror.ConsistencyError, "%s claims %d attributes but attribute %d has no row", relation.String(), relationRow.AttrCount, attrNum)
				shape = nil
				return
			}

			attributeRow, err = rowlayout.UnmarshalAttributeRowV1(row)
			if nil != err {
				shape = nil
				return
			}

			shape.Columns = append(shape.Columns, engine.Column{
				Name:    rowlayout.NameToString(attributeRow.Name),
				TypeOid: objaddr.Oid(attributeRow.TypeOid),
				Num:     attributeRow.Num,
				NotNull: attributeRow.NotNull,
			})
		}
	}

	relation.shape.Store(shape)

	err = nil
	return
}

// ContributeInvalidations retires the relation's epoch and tears down the
// epoch-scoped shape: the cached pointer is cleared before the old epoch
// fires, and the retirement is logged after it has.
func (relation *Relation) ContributeInvalidations(batch *switchpoint.Batch) {
	relation.epoch.ReplaceAndCollect(
		batch,
		func() {
			relation.shape.Store(nil)
		},
		func() {
			logger.Tracef("invalidated %s", relation.String())
		})
}
