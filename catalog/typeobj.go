// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"github.com/tada/catcache/objaddr"
	"github.com/tada/catcache/rowlayout"
	"github.com/tada/catcache/slots"
)

// typeSlotRelation holds the Relation this composite type describes (the
// handshake partner), or nil for non-composite types.
const typeSlotRelation = CommonSlotCount + iota

// Type represents one pg_type row.
type Type struct {
	ObjectBase

	// pendingRelation is the handshake stash; see Relation.pendingRowType.
	// Only the engine thread touches it.
	pendingRelation *Relation
}

var typeKind = &kindInfo{
	classOid: objaddr.TypeClassOid,
	typeName: "Type",
	lookupID: rowlayout.TypeLookup,

	decodeRow: func(row []byte) (decoded interface{}, err error) {
		decoded, err = rowlayout.UnmarshalTypeRowV1(row)
		return
	},

	nameOf: func(decoded interface{}) (name string) {
		name = rowlayout.NameToString(decoded.(*rowlayout.TypeRowV1Struct).Name)
		return
	},
	namespaceOidOf: func(decoded interface{}) (namespaceOid objaddr.Oid) {
		namespaceOid = objaddr.Oid(decoded.(*rowlayout.TypeRowV1Struct).NamespaceOid)
		return
	},
	ownerOidOf: func(decoded interface{}) (ownerOid objaddr.Oid) {
		ownerOid = objaddr.Oid(decoded.(*rowlayout.TypeRowV1Struct).OwnerOid)
		return
	},

	extraSlots: func(builder *slots.Builder) {
		builder.Define(typeSlotRelation, "relation", typeRelationCompute, objectEpoch)
	},
}

// The factory references typeKind, so it is installed here to avoid a
// package-level initialization cycle.
func init() {
	typeKind.factory = func(ctx *Context, addr objaddr.Address) (co catalogObject) {
		var (
			typeObj *Type
		)

		typeObj = &Type{}
		typeObj.initBase(typeObj, ctx, addr, typeKind)

		co = typeObj
		return
	}
}

func (typeObj *Type) row() (typeRow *rowlayout.TypeRowV1Struct, err error) {
	var (
		decoded interface{}
	)

	decoded, err = typeObj.mustRow()
	if nil != err {
		return
	}

	typeRow = decoded.(*rowlayout.TypeRowV1Struct)
	return
}

// Length returns the type's storage length (-1 for variable-length).
func (typeObj *Type) Length() (length int16, err error) {
	var (
		typeRow *rowlayout.TypeRowV1Struct
	)

	typeRow, err = typeObj.row()
	if nil != err {
		return
	}

	length = typeRow.Length
	return
}

// ByValue reports whether values of the type are passed by value.
func (typeObj *Type) ByValue() (byValue bool, err error) {
	var (
		typeRow *rowlayout.TypeRowV1Struct
	)

	typeRow, err = typeObj.row()
	if nil != err {
		return
	}

	byValue = typeRow.ByValue
	return
}

// Category returns the type's category code.
func (typeObj *Type) Category() (category uint8, err error) {
	var (
		typeRow *rowlayout.TypeRowV1Struct
	)

	typeRow, err = typeObj.row()
	if nil != err {
		return
	}

	category = typeRow.Category
	return
}

// RelationOid returns the oid of the relation this composite type
// describes (InvalidOid for non-composite types).
func (typeObj *Type) RelationOid() (relationOid objaddr.Oid, err error) {
	var (
		typeRow *rowlayout.TypeRowV1Struct
	)

	typeRow, err = typeObj.row()
	if nil != err {
		return
	}

	relationOid = objaddr.Oid(typeRow.RelationOid)
	return
}

// Relation returns the Relation this composite type describes, or nil for
// non-composite types. See Relation.RowType() for the handshake.
func (typeObj *Type) Relation() (relation *Relation, err error) {
	var (
		value interface{}
	)

	value, err = typeObj.array.Read(typeSlotRelation)
	if nil != err {
		return
	}

	relation, _ = value.(*Relation)
	err = nil
	return
}

// typeRelationCompute is the Type side of the bidirectional handshake.
// Runs on the engine thread.
func typeRelationCompute(obj interface{}) (value interface{}, err error) {
	var (
		relation *Relation
		typeObj  *Type
		typeRow  *rowlayout.TypeRowV1Struct
	)

	typeObj = obj.(*Type)

	if nil != typeObj.pendingRelation {
		value = typeObj.pendingRelation
		err = nil
		return
	}

	typeRow, err = typeObj.row()
	if nil != err {
		return
	}

	if objaddr.InvalidOid == objaddr.Oid(typeRow.RelationOid) {
		value = (*Relation)(nil)
		err = nil
		return
	}

	relation, err = RelationFromOid(typeObj.ctx, objaddr.Oid(typeRow.RelationOid))
	if nil != err {
		return
	}

	if nil == relation.pendingRowType {
		relation.pendingRowType = typeObj
		_, err = relation.array.Read(relationSlotRowType)
		relation.pendingRowType = nil
		if nil != err {
			return
		}
	}

	value = relation
	err = nil
	return
}
