// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

package rowlayout

import (
	"bytes"

	"github.com/NVIDIA/cstruct"

	"github.com/tada/catcache/cerror"
)

// aclEntrySeparator joins access-control entries in a row's trailing ACL
// bytes. '\n' cannot occur inside an entry.
const aclEntrySeparator = byte('\n')

func decodeRelationKind(code uint8) (kind RelationKind, err error) {
	switch RelationKind(code) {
	case RelationKindTable,
		RelationKindIndex,
		RelationKindSequence,
		RelationKindToast,
		RelationKindView,
		RelationKindMatView,
		RelationKindComposite,
		RelationKindForeign,
		RelationKindPartitioned:
		kind = RelationKind(code)
		err = nil
	default:
		err = cerror.NewError(cerror.DecodeError, "unrecognized relation kind code 0x%02X", code)
	}

	return
}

func decodeProcedureKind(code uint8) (kind ProcedureKind, err error) {
	switch ProcedureKind(code) {
	case ProcedureKindFunction,
		ProcedureKindProcedure,
		ProcedureKindAggregate,
		ProcedureKindWindow:
		kind = ProcedureKind(code)
		err = nil
	default:
		err = cerror.NewError(cerror.DecodeError, "unrecognized routine kind code 0x%02X", code)
	}

	return
}

func (relationRowV1 *RelationRowV1Struct) marshalRelationRowV1() (relationRowV1Buf []byte, err error) {
	relationRowV1.Version = RelationRowVersionV1

	relationRowV1Buf, err = cstruct.Pack(relationRowV1, cstruct.LittleEndian)
	if nil != err {
		err = cerror.AddCode(err, cerror.DecodeError)
		return
	}

	err = nil
	return
}

func unmarshalRelationRowV1(relationRowV1Buf []byte) (relationRowV1 *RelationRowV1Struct, err error) {
	relationRowV1 = &RelationRowV1Struct{}

	_, err = cstruct.Unpack(relationRowV1Buf, relationRowV1, cstruct.LittleEndian)
	if nil != err {
		relationRowV1 = nil
		err = cerror.AddCode(err, cerror.DecodeError)
		return
	}

	if RelationRowVersionV1 != relationRowV1.Version {
		err = cerror.NewError(cerror.DecodeError, "relation row version %d not supported (expected %d)", relationRowV1.Version, RelationRowVersionV1)
		relationRowV1 = nil
		return
	}

	_, err = decodeRelationKind(relationRowV1.Kind)
	if nil != err {
		relationRowV1 = nil
		return
	}

	err = nil
	return
}

func (typeRowV1 *TypeRowV1Struct) marshalTypeRowV1() (typeRowV1Buf []byte, err error) {
	typeRowV1.Version = TypeRowVersionV1

	typeRowV1Buf, err = cstruct.Pack(typeRowV1, cstruct.LittleEndian)
	if nil != err {
		err = cerror.AddCode(err, cerror.DecodeError)
		return
	}

	err = nil
	return
}

func unmarshalTypeRowV1(typeRowV1Buf []byte) (typeRowV1 *TypeRowV1Struct, err error) {
	var (
		bytesConsumed uint64
	)

	typeRowV1 = &TypeRowV1Struct{}

	bytesConsumed, err = cstruct.Unpack(typeRowV1Buf, typeRowV1, cstruct.LittleEndian)
	if nil != err {
		typeRowV1 = nil
		err = cerror.AddCode(err, cerror.DecodeError)
		return
	}
	if uint64(len(typeRowV1Buf)) != bytesConsumed {
		err = cerror.NewError(cerror.DecodeError, "type row has %d trailing bytes", uint64(len(typeRowV1Buf))-bytesConsumed)
		typeRowV1 = nil
		return
	}

	if TypeRowVersionV1 != typeRowV1.Version {
		err = cerror.NewError(cerror.DecodeError, "type row version %d not supported (expected %d)", typeRowV1.Version, TypeRowVersionV1)
		typeRowV1 = nil
		return
	}

	err = nil
	return
}

func (procedureRowV1 *ProcedureRowV1Struct) marshalProcedureRowV1() (procedureRowV1Buf []byte, err error) {
	procedureRowV1.Version = ProcedureRowVersionV1

	procedureRowV1Buf, err = cstruct.Pack(procedureRowV1, cstruct.LittleEndian)
	if nil != err {
		err = cerror.AddCode(err, cerror.DecodeError)
		return
	}

	err = nil
	return
}

func unmarshalProcedureRowV1(procedureRowV1Buf []byte) (procedureRowV1 *ProcedureRowV1Struct, err error) {
	procedureRowV1 = &ProcedureRowV1Struct{}

	_, err = cstruct.Unpack(procedureRowV1Buf, procedureRowV1, cstruct.LittleEndian)
	if nil != err {
		procedureRowV1 = nil
		err = cerror.AddCode(err, cerror.DecodeError)
		return
	}

	if ProcedureRowVersionV1 != procedureRowV1.Version {
		err = cerror.NewError(cerror.DecodeError, "routine row version %d not supported (expected %d)", procedureRowV1.Version, ProcedureRowVersionV1)
		procedureRowV1 = nil
		return
	}

	_, err = decodeProcedureKind(procedureRowV1.Kind)
	if nil != err {
		procedureRowV1 = nil
		return
	}

	err = nil
	return
}

func (roleRowV1 *RoleRowV1Struct) marshalRoleRowV1() (roleRowV1Buf []byte, err error) {
	roleRowV1.Version = RoleRowVersionV1

	roleRowV1Buf, err = cstruct.Pack(roleRowV1, cstruct.LittleEndian)
	if nil != err {
		err = cerror.AddCode(err, cerror.DecodeError)
		return
	}

	err = nil
	return
}

func unmarshalRoleRowV1(roleRowV1Buf []byte) (roleRowV1 *RoleRowV1Struct, err error) {
	var (
		bytesConsumed uint64
	)

	roleRowV1 = &RoleRowV1Struct{}

	bytesConsumed, err = cstruct.Unpack(roleRowV1Buf, roleRowV1, cstruct.LittleEndian)
	if nil != err {
		roleRowV1 = nil
		err = cerror.AddCode(err, cerror.DecodeError)
		return
	}
	if uint64(len(roleRowV1Buf)) != bytesConsumed {
		err = cerror.NewError(cerror.DecodeError, "role row has %d trailing bytes", uint64(len(roleRowV1Buf))-bytesConsumed)
		roleRowV1 = nil
		return
	}

	if RoleRowVersionV1 != roleRowV1.Version {
		err = cerror.NewError(cerror.DecodeError, "role row version %d not supported (expected %d)", roleRowV1.Version, RoleRowVersionV1)
		roleRowV1 = nil
		return
	}

	err = nil
	return
}

func (namespaceRowV1 *NamespaceRowV1Struct) marshalNamespaceRowV1() (namespaceRowV1Buf []byte, err error) {
	namespaceRowV1.Version = NamespaceRowVersionV1

	namespaceRowV1Buf, err = cstruct.Pack(namespaceRowV1, cstruct.LittleEndian)
	if nil != err {
		err = cerror.AddCode(err, cerror.DecodeError)
		return
	}

	err = nil
	return
}

func unmarshalNamespaceRowV1(namespaceRowV1Buf []byte) (namespaceRowV1 *NamespaceRowV1Struct, err error) {
	namespaceRowV1 = &NamespaceRowV1Struct{}

	_, err = cstruct.Unpack(namespaceRowV1Buf, namespaceRowV1, cstruct.LittleEndian)
	if nil != err {
		namespaceRowV1 = nil
		err = cerror.AddCode(err, cerror.DecodeError)
		return
	}

	if NamespaceRowVersionV1 != namespaceRowV1.Version {
		err = cerror.NewError(cerror.DecodeError, "namespace row version %d not supported (expected %d)", namespaceRowV1.Version, NamespaceRowVersionV1)
		namespaceRowV1 = nil
		return
	}

	err = nil
	return
}

func (databaseRowV1 *DatabaseRowV1Struct) marshalDatabaseRowV1() (databaseRowV1Buf []byte, err error) {
	databaseRowV1.Version = DatabaseRowVersionV1

	databaseRowV1Buf, err = cstruct.Pack(databaseRowV1, cstruct.LittleEndian)
	if nil != err {
		err = cerror.AddCode(err, cerror.DecodeError)
		return
	}

	err = nil
	return
}

func unmarshalDatabaseRowV1(databaseRowV1Buf []byte) (databaseRowV1 *DatabaseRowV1Struct, err error) {
	databaseRowV1 = &DatabaseRowV1Struct{}

	_, err = cstruct.Unpack(databaseRowV1Buf, databaseRowV1, cstruct.LittleEndian)
	if nil != err {
		databaseRowV1 = nil
		err = cerror.AddCode(err, cerror.DecodeError)
		return
	}

	if DatabaseRowVersionV1 != databaseRowV1.Version {
		err = cerror.NewError(cerror.DecodeError, "database row version %d not supported (expected %d)", databaseRowV1.Version, DatabaseRowVersionV1)
		databaseRowV1 = nil
		return
	}

	err = nil
	return
}

func (attributeRowV1 *AttributeRowV1Struct) marshalAttributeRowV1() (attributeRowV1Buf []byte, err error) {
	attributeRowV1.Version = AttributeRowVersionV1

	attributeRowV1Buf, err = cstruct.Pack(attributeRowV1, cstruct.LittleEndian)
	if nil != err {
		err = cerror.AddCode(err, cerror.DecodeError)
		return
	}

	err = nil
	return
}

func unmarshalAttributeRowV1(attributeRowV1Buf []byte) (attributeRowV1 *AttributeRowV1Struct, err error) {
	var (
		bytesConsumed uint64
	)

	attributeRowV1 = &AttributeRowV1Struct{}

	bytesConsumed, err = cstruct.Unpack(attributeRowV1Buf, attributeRowV1, cstruct.LittleEndian)
	if nil != err {
		attributeRowV1 = nil
		err = cerror.AddCode(err, cerror.DecodeError)
		return
	}
	if uint64(len(attributeRowV1Buf)) != bytesConsumed {
		err = cerror.NewError(cerror.DecodeError, "attribute row has %d trailing bytes", uint64(len(attributeRowV1Buf))-bytesConsumed)
		attributeRowV1 = nil
		return
	}

	if AttributeRowVersionV1 != attributeRowV1.Version {
		err = cerror.NewError(cerror.DecodeError, "attribute row version %d not supported (expected %d)", attributeRowV1.Version, AttributeRowVersionV1)
		attributeRowV1 = nil
		return
	}

	err = nil
	return
}

func nameToString(name [NameDataLen]byte) (s string) {
	var (
		nulIndex int
	)

	nulIndex = bytes.IndexByte(name[:], 0)
	if -1 == nulIndex {
		nulIndex = NameDataLen
	}

	s = string(name[:nulIndex])
	return
}

func stringToName(s string) (name [NameDataLen]byte, err error) {
	if NameDataLen <= len(s) {
		err = cerror.NewError(cerror.DecodeError, "name \"%s\" is %d bytes; the limit is %d", s, len(s), NameDataLen-1)
		return
	}

	copy(name[:], s)

	err = nil
	return
}

func encodeACL(entries []string) (aclBuf []byte) {
	var (
		entry      string
		entryIndex int
	)

	if 0 == len(entries) {
		aclBuf = nil
		return
	}

	for entryIndex, entry = range entries {
		if 0 != entryIndex {
			aclBuf = append(aclBuf, aclEntrySeparator)
		}
		aclBuf = append(aclBuf, entry...)
	}

	return
}

func decodeACL(aclBuf []byte) (entries []string) {
	var (
		entryBuf []byte
	)

	if 0 == len(aclBuf) {
		entries = nil
		return
	}

	for _, entryBuf = range bytes.Split(aclBuf, []byte{aclEntrySeparator}) {
		entries = append(entries, string(entryBuf))
	}

	return
}
