// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

// Package rowlayout specifies the serialized layout of the catalog rows
// the cache fetches from the backing store.
//
// Each row kind is a versioned struct serialized as a sequence of
// LittleEndian formatted fields (via cstruct), preceded by its Version
// field. Fixed-width name fields hold NameDataLen bytes, NUL-padded. A
// trailing []byte, where present, holds the access-control list encoded
// by EncodeACL().
package rowlayout

import (
	"github.com/tada/catcache/objaddr"
)

// Lookup-structure ids offered by the backing store. All are single-key
// (the object oid) except AttributeLookup, which is keyed by
// (relation oid, attribute number).
const (
	RelationLookup = iota + 1
	TypeLookup
	ProcedureLookup
	RoleLookup
	NamespaceLookup
	DatabaseLookup
	AttributeLookup
)

// NameDataLen is the fixed width of a catalog name field, including the
// NUL padding.
const NameDataLen = 64

// RelationKind is the single-character relation kind code.
type RelationKind uint8

const (
	RelationKindTable        RelationKind = 'r'
	RelationKindIndex        RelationKind = 'i'
	RelationKindSequence     RelationKind = 'S'
	RelationKindToast        RelationKind = 't'
	RelationKindView         RelationKind = 'v'
	RelationKindMatView      RelationKind = 'm'
	RelationKindComposite    RelationKind = 'c'
	RelationKindForeign      RelationKind = 'f'
	RelationKindPartitioned  RelationKind = 'p'
)

// DecodeRelationKind validates a raw kind byte. An unrecognized byte is a
// data-corruption-class failure, never retried.
func DecodeRelationKind(code uint8) (kind RelationKind, err error) {
	kind, err = decodeRelationKind(code)
	return
}

// ProcedureKind is the single-character routine kind code.
type ProcedureKind uint8

const (
	ProcedureKindFunction  ProcedureKind = 'f'
	ProcedureKindProcedure ProcedureKind = 'p'
	ProcedureKindAggregate ProcedureKind = 'a'
	ProcedureKindWindow    ProcedureKind = 'w'
)

// DecodeProcedureKind validates a raw routine kind byte.
func DecodeProcedureKind(code uint8) (kind ProcedureKind, err error) {
	kind, err = decodeProcedureKind(code)
	return
}

// RelationRowVersionV1 specifies the layout of a RelationRowV1Struct.
const RelationRowVersionV1 uint32 = 1

// RelationRowV1Struct is one pg_class row (the column subset this
// subsystem models).
type RelationRowV1Struct struct {
	Version      uint32 // == RelationRowVersionV1
	ObjectOid    uint32
	Name         [NameDataLen]byte
	NamespaceOid uint32
	OwnerOid     uint32
	RowTypeOid   uint32 // the composite type describing this relation's rows
	Kind         uint8  // a RelationKind code
	AttrCount    uint16 // number of user attributes
	ACL          []byte // trailing; see EncodeACL
}

func (relationRowV1 *RelationRowV1Struct) MarshalRelationRowV1() (relationRowV1Buf []byte, err error) {
	relationRowV1Buf, err = relationRowV1.marshalRelationRowV1()
	return
}

func UnmarshalRelationRowV1(relationRowV1Buf []byte) (relationRowV1 *RelationRowV1Struct, err error) {
	relationRowV1, err = unmarshalRelationRowV1(relationRowV1Buf)
	return
}

// TypeRowVersionV1 specifies the layout of a TypeRowV1Struct.
const TypeRowVersionV1 uint32 = 1

// TypeRowV1Struct is one pg_type row.
type TypeRowV1Struct struct {
	Version      uint32 // == TypeRowVersionV1
	ObjectOid    uint32
	Name         [NameDataLen]byte
	NamespaceOid uint32
	OwnerOid     uint32
	RelationOid  uint32 // the relation this composite type describes; 0 if none
	Length       int16  // -1 for varlena
	ByValue      bool
	Category     uint8
}

func (typeRowV1 *TypeRowV1Struct) MarshalTypeRowV1() (typeRowV1Buf []byte, err error) {
	typeRowV1Buf, err = typeRowV1.marshalTypeRowV1()
	return
}

func UnmarshalTypeRowV1(typeRowV1Buf []byte) (typeRowV1 *TypeRowV1Struct, err error) {
	typeRowV1, err = unmarshalTypeRowV1(typeRowV1Buf)
	return
}

// ProcedureRowVersionV1 specifies the layout of a ProcedureRowV1Struct.
const ProcedureRowVersionV1 uint32 = 1

// ProcedureRowV1Struct is one pg_proc row.
type ProcedureRowV1Struct struct {
	Version       uint32 // == ProcedureRowVersionV1
	ObjectOid     uint32
	Name          [NameDataLen]byte
	NamespaceOid  uint32
	OwnerOid      uint32
	LanguageOid   uint32
	ReturnTypeOid uint32
	ArgCount      uint16
	Kind          uint8 // a ProcedureKind code
	ACL           []byte
}

func (procedureRowV1 *ProcedureRowV1Struct) MarshalProcedureRowV1() (procedureRowV1Buf []byte, err error) {
	procedureRowV1Buf, err = procedureRowV1.marshalProcedureRowV1()
	return
}

func UnmarshalProcedureRowV1(procedureRowV1Buf []byte) (procedureRowV1 *ProcedureRowV1Struct, err error) {
	procedureRowV1, err = unmarshalProcedureRowV1(procedureRowV1Buf)
	return
}

// RoleRowVersionV1 specifies the layout of a RoleRowV1Struct.
const RoleRowVersionV1 uint32 = 1

// RoleRowV1Struct is one pg_authid row. Roles live in the shared catalog:
// no namespace, no ACL.
type RoleRowV1Struct struct {
	Version   uint32 // == RoleRowVersionV1
	ObjectOid uint32
	Name      [NameDataLen]byte
	Superuser bool
	CanLogin  bool
}

func (roleRowV1 *RoleRowV1Struct) MarshalRoleRowV1() (roleRowV1Buf []byte, err error) {
	roleRowV1Buf, err = roleRowV1.marshalRoleRowV1()
	return
}

func UnmarshalRoleRowV1(roleRowV1Buf []byte) (roleRowV1 *RoleRowV1Struct, err error) {
	roleRowV1, err = unmarshalRoleRowV1(roleRowV1Buf)
	return
}

// NamespaceRowVersionV1 specifies the layout of a NamespaceRowV1Struct.
const NamespaceRowVersionV1 uint32 = 1

// NamespaceRowV1Struct is one pg_namespace row.
type NamespaceRowV1Struct struct {
	Version   uint32 // == NamespaceRowVersionV1
	ObjectOid uint32
	Name      [NameDataLen]byte
	OwnerOid  uint32
	ACL       []byte
}

func (namespaceRowV1 *NamespaceRowV1Struct) MarshalNamespaceRowV1() (namespaceRowV1Buf []byte, err error) {
	namespaceRowV1Buf, err = namespaceRowV1.marshalNamespaceRowV1()
	return
}

func UnmarshalNamespaceRowV1(namespaceRowV1Buf []byte) (namespaceRowV1 *NamespaceRowV1Struct, err error) {
	namespaceRowV1, err = unmarshalNamespaceRowV1(namespaceRowV1Buf)
	return
}

// DatabaseRowVersionV1 specifies the layout of a DatabaseRowV1Struct.
const DatabaseRowVersionV1 uint32 = 1

// DatabaseRowV1Struct is one pg_database row.
type DatabaseRowV1Struct struct {
	Version          uint32 // == DatabaseRowVersionV1
	ObjectOid        uint32
	Name             [NameDataLen]byte
	OwnerOid         uint32
	Encoding         int32
	IsTemplate       bool
	AllowConnections bool
	ACL              []byte
}

func (databaseRowV1 *DatabaseRowV1Struct) MarshalDatabaseRowV1() (databaseRowV1Buf []byte, err error) {
	databaseRowV1Buf, err = databaseRowV1.marshalDatabaseRowV1()
	return
}

func UnmarshalDatabaseRowV1(databaseRowV1Buf []byte) (databaseRowV1 *DatabaseRowV1Struct, err error) {
	databaseRowV1, err = unmarshalDatabaseRowV1(databaseRowV1Buf)
	return
}

// AttributeRowVersionV1 specifies the layout of an AttributeRowV1Struct.
const AttributeRowVersionV1 uint32 = 1

// AttributeRowV1Struct is one pg_attribute row, keyed by
// (RelationOid, Num) in the backing store's two-key lookup structure.
type AttributeRowV1Struct struct {
	Version     uint32 // == AttributeRowVersionV1
	RelationOid uint32
	Num         uint16 // 1-based attribute number
	Name        [NameDataLen]byte
	TypeOid     uint32
	NotNull     bool
}

func (attributeRowV1 *AttributeRowV1Struct) MarshalAttributeRowV1() (attributeRowV1Buf []byte, err error) {
	attributeRowV1Buf, err = attributeRowV1.marshalAttributeRowV1()
	return
}

func UnmarshalAttributeRowV1(attributeRowV1Buf []byte) (attributeRowV1 *AttributeRowV1Struct, err error) {
	attributeRowV1, err = unmarshalAttributeRowV1(attributeRowV1Buf)
	return
}

// NameToString trims the NUL padding off a fixed-width name field.
func NameToString(name [NameDataLen]byte) (s string) {
	s = nameToString(name)
	return
}

// StringToName NUL-pads s into a fixed-width name field; s must be
// shorter than NameDataLen.
func StringToName(s string) (name [NameDataLen]byte, err error) {
	name, err = stringToName(s)
	return
}

// EncodeACL serializes access-control entries ("grantee=privileges/grantor"
// strings) into the trailing ACL bytes of a row.
func EncodeACL(entries []string) (aclBuf []byte) {
	aclBuf = encodeACL(entries)
	return
}

// DecodeACL deserializes the trailing ACL bytes of a row. A nil or empty
// buffer decodes to no entries.
func DecodeACL(aclBuf []byte) (entries []string) {
	entries = decodeACL(aclBuf)
	return
}

// LookupKeyCount returns how many keys the given lookup structure is
// searched by.
func LookupKeyCount(lookupID int) (keyCount int) {
	if AttributeLookup == lookupID {
		keyCount = 2
	} else {
		keyCount = 1
	}
	return
}

// ClassOidForLookup maps a single-key lookup structure to the catalog
// class whose rows it serves.
func ClassOidForLookup(lookupID int) (classOid objaddr.Oid) {
	switch lookupID {
	case RelationLookup:
		classOid = objaddr.RelationClassOid
	case TypeLookup:
		classOid = objaddr.TypeClassOid
	case ProcedureLookup:
		classOid = objaddr.ProcedureClassOid
	case RoleLookup:
		classOid = objaddr.RoleClassOid
	case NamespaceLookup:
		classOid = objaddr.NamespaceClassOid
	case DatabaseLookup:
		classOid = objaddr.DatabaseClassOid
	case AttributeLookup:
		classOid = objaddr.AttributeClassOid
	default:
		classOid = objaddr.InvalidOid
	}
	return
}
