// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

// Package objaddr provides the (class, object, sub) address triple that
// identifies a PostgreSQL system-catalog object.
//
// An Address is the key of the identity cache (package icache) as well as
// each catalog object's own self-description, so its canonical packed form
// is fixed system-wide: three 4-byte fields in LittleEndian order
// (ClassOid, ObjectOid, SubId). That exact layout is depended upon by the
// cache key representation and must not change without a full cache-format
// migration.
//
// An Address is conceptually immutable from the moment it is first used as
// a cache key, even though Go does not enforce that immutability at the
// type level.
package objaddr

import (
	"fmt"

	"github.com/NVIDIA/cstruct"
	"github.com/creachadair/cityhash"
)

// Oid is a PostgreSQL object identifier.
type Oid uint32

// InvalidOid is the Oid sentinel denoting "no such object". An Address
// whose ObjectOid is InvalidOid is still cacheable and representable; it
// denotes a deliberately-invalid catalog object.
const InvalidOid Oid = 0

// Relation oids of the system-catalog tables whose rows this subsystem
// models. The values are the well-known pg_catalog relation oids.
const (
	AttributeClassOid Oid = 1249
	TypeClassOid      Oid = 1247
	ProcedureClassOid Oid = 1255
	RelationClassOid  Oid = 1259
	RoleClassOid      Oid = 1260
	DatabaseClassOid  Oid = 1262
	NamespaceClassOid Oid = 2615
)

// PackedAddressSize is the length of the canonical packed form of an
// Address: three 4-byte fields.
const PackedAddressSize = 12

// Address is the (class, object, sub) triple identifying one catalog
// object. ClassOid names the catalog table the object belongs to (or
// InvalidOid for "no class"), ObjectOid is the row identifier within that
// table (or InvalidOid), and SubId distinguishes sub-row entities such as
// a column within a table row (zero when not applicable).
//
// Equality and hashing are purely structural over the three fields.
type Address struct {
	ClassOid  Oid
	ObjectOid Oid
	SubId     uint32
}

// addressV1Struct is the canonical wire layout of an Address, serialized
// by cstruct in LittleEndian byte order.
type addressV1Struct struct {
	ClassOid  uint32
	ObjectOid uint32
	SubId     uint32
}

// New returns the Address for the supplied triple.
func New(classOid Oid, objectOid Oid, subId uint32) (addr Address) {
	addr = Address{ClassOid: classOid, ObjectOid: objectOid, SubId: subId}
	return
}

// IsValid returns true unless ObjectOid holds the InvalidOid sentinel.
func (addr Address) IsValid() (isValid bool) {
	isValid = InvalidOid != addr.ObjectOid
	return
}

// ClassIsValid returns true unless ClassOid holds the InvalidOid sentinel.
func (addr Address) ClassIsValid() (classIsValid bool) {
	classIsValid = InvalidOid != addr.ClassOid
	return
}

// Pack serializes addr into its canonical PackedAddressSize-byte form.
func (addr Address) Pack() (buf []byte, err error) {
	var (
		onWire addressV1Struct
	)

	onWire.ClassOid = uint32(addr.ClassOid)
	onWire.ObjectOid = uint32(addr.ObjectOid)
	onWire.SubId = addr.SubId

	buf, err = cstruct.Pack(onWire, cstruct.LittleEndian)

	return
}

// Unpack deserializes an Address from its canonical packed form.
func Unpack(buf []byte) (addr Address, err error) {
	var (
		bytesConsumed uint64
		onWire        addressV1Struct
	)

	if PackedAddressSize != len(buf) {
		err = fmt.Errorf("objaddr.Unpack() called with buf of %v bytes (expected %v)", len(buf), PackedAddressSize)
		return
	}

	bytesConsumed, err = cstruct.Unpack(buf, &onWire, cstruct.LittleEndian)
	if nil != err {
		return
	}
	if PackedAddressSize != bytesConsumed {
		err = fmt.Errorf("objaddr.Unpack() consumed %v bytes (expected %v)", bytesConsumed, PackedAddressSize)
		return
	}

	addr = Address{ClassOid: Oid(onWire.ClassOid), ObjectOid: Oid(onWire.ObjectOid), SubId: onWire.SubId}
	err = nil

	return
}

// Hash returns the backing store's hash of an Oid: cityhash.Hash64 over
// the oid's 4-byte LittleEndian form. Selective invalidation signals carry
// this value, so wildcard invalidation matches live objects by it rather
// than by any in-memory hash.
func (oid Oid) Hash() (hash uint64) {
	var (
		buf [4]byte
	)

	buf[0] = byte(oid)
	buf[1] = byte(oid >> 8)
	buf[2] = byte(oid >> 16)
	buf[3] = byte(oid >> 24)

	hash = cityhash.Hash64(buf[:])

	return
}

// Hash returns cityhash.Hash64 over the canonical packed form of addr.
func (addr Address) Hash() (hash uint64) {
	var (
		buf [PackedAddressSize]byte
	)

	// Inline LittleEndian packing; Pack() cannot fail for a fixed-width
	// struct and the identity-cache hot path should not allocate.
	buf[0] = byte(addr.ClassOid)
	buf[1] = byte(addr.ClassOid >> 8)
	buf[2] = byte(addr.ClassOid >> 16)
	buf[3] = byte(addr.ClassOid >> 24)
	buf[4] = byte(addr.ObjectOid)
	buf[5] = byte(addr.ObjectOid >> 8)
	buf[6] = byte(addr.ObjectOid >> 16)
	buf[7] = byte(addr.ObjectOid >> 24)
	buf[8] = byte(addr.SubId)
	buf[9] = byte(addr.SubId >> 8)
	buf[10] = byte(addr.SubId >> 16)
	buf[11] = byte(addr.SubId >> 24)

	hash = cityhash.Hash64(buf[:])

	return
}

// String renders addr in the diagnostic form "[class,object,sub]" using
// unsigned decimal. Representative objects prefix this with their short
// type name.
func (addr Address) String() (s string) {
	s = fmt.Sprintf("[%d,%d,%d]", uint32(addr.ClassOid), uint32(addr.ObjectOid), addr.SubId)
	return
}
