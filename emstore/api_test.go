// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

package emstore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tada/catcache/cerror"
	"github.com/tada/catcache/objaddr"
	"github.com/tada/catcache/rowlayout"
)

type recordingInvalidator struct {
	catalogSignals []objaddr.Address
	lookupSignals  []int
}

func (rec *recordingInvalidator) InvalidateCatalog(classOid objaddr.Oid, objectOid objaddr.Oid) {
	rec.catalogSignals = append(rec.catalogSignals, objaddr.New(classOid, objectOid, 0))
}

func (rec *recordingInvalidator) InvalidateLookup(lookupID int, hash uint64) {
	rec.lookupSignals = append(rec.lookupSignals, lookupID)
}

func mustName(t *testing.T, s string) (name [rowlayout.NameDataLen]byte) {
	var (
		err error
	)

	name, err = rowlayout.StringToName(s)
	if nil != err {
		t.Fatalf("StringToName(\"%s\") failed: %v", s, err)
	}
	return
}

func TestSeedAndFetchRelation(t *testing.T) {
	var (
		decoded *rowlayout.RelationRowV1Struct
		err     error
		found   bool
		row     []byte
		store   *Store
	)

	assert := assert.New(t)

	store = NewStore()

	err = store.SeedRelation(&rowlayout.RelationRowV1Struct{
		ObjectOid:    16384,
		Name:         mustName(t, "accounts"),
		NamespaceOid: 2200,
		OwnerOid:     10,
		RowTypeOid:   16385,
		Kind:         uint8(rowlayout.RelationKindTable),
		AttrCount:    2,
	})
	assert.Nil(err)

	row, found, err = store.FetchRow(rowlayout.RelationLookup, 16384, 0)
	assert.Nil(err)
	assert.True(found)

	decoded, err = rowlayout.UnmarshalRelationRowV1(row)
	assert.Nil(err)
	assert.Equal("accounts", rowlayout.NameToString(decoded.Name))

	// The returned slice is the caller's; scribbling on it must not reach
	// the store.
	row[4] = 0xFF
	row, found, err = store.FetchRow(rowlayout.RelationLookup, 16384, 0)
	assert.Nil(err)
	assert.True(found)
	decoded, err = rowlayout.UnmarshalRelationRowV1(row)
	assert.Nil(err)
	assert.Equal(uint32(16384), decoded.ObjectOid)

	_, found, err = store.FetchRow(rowlayout.RelationLookup, 99999, 0)
	assert.Nil(err)
	assert.False(found)

	assert.Equal(uint64(3), store.RowFetchCount())
}

func TestAttributeTwoKeyIndex(t *testing.T) {
	var (
		decoded *rowlayout.AttributeRowV1Struct
		err     error
		found   bool
		num     uint16
		row     []byte
		store   *Store
	)

	assert := assert.New(t)

	store = NewStore()

	for num = 1; num <= 3; num++ {
		err = store.SeedAttribute(&rowlayout.AttributeRowV1Struct{
			RelationOid: 16384,
			Num:         num,
			Name:        mustName(t, "col"),
			TypeOid:     23,
		})
		assert.Nil(err)
	}
	// A neighboring relation's attributes must not shadow them.
	err = store.SeedAttribute(&rowlayout.AttributeRowV1Struct{
		RelationOid: 16385,
		Num:         2,
		Name:        mustName(t, "other"),
		TypeOid:     25,
	})
	assert.Nil(err)

	row, found, err = store.FetchRow(rowlayout.AttributeLookup, 16384, 2)
	assert.Nil(err)
	assert.True(found)

	decoded, err = rowlayout.UnmarshalAttributeRowV1(row)
	assert.Nil(err)
	assert.Equal(uint32(16384), decoded.RelationOid)
	assert.Equal(uint16(2), decoded.Num)
	assert.Equal("col", rowlayout.NameToString(decoded.Name))

	_, found, err = store.FetchRow(rowlayout.AttributeLookup, 16384, 9)
	assert.Nil(err)
	assert.False(found)
}

func TestUnknownLookupFails(t *testing.T) {
	var (
		err   error
		store *Store
	)

	assert := assert.New(t)

	store = NewStore()

	_, _, err = store.FetchRow(42, 1, 0)
	assert.NotNil(err)
	assert.True(cerror.Is(err, cerror.NotFoundError))
}

func TestFetchShapeServesBootstrapOnly(t *testing.T) {
	var (
		err   error
		store *Store
	)

	assert := assert.New(t)

	store = NewStore()

	bootstrapShape, err := store.FetchShape(objaddr.RelationClassOid)
	assert.Nil(err)
	assert.Equal(objaddr.RelationClassOid, bootstrapShape.RelationOid)
	assert.Equal(8, len(bootstrapShape.Columns))

	_, err = store.FetchShape(16384)
	assert.NotNil(err)
	assert.True(cerror.Is(err, cerror.NotFoundError))

	assert.Equal(uint64(2), store.ShapeFetchCount())
}

func TestMutatorsSignalInvalidation(t *testing.T) {
	var (
		err   error
		rec   *recordingInvalidator
		row   *rowlayout.RelationRowV1Struct
		store *Store
	)

	assert := assert.New(t)

	store = NewStore()
	rec = &recordingInvalidator{}

	row = &rowlayout.RelationRowV1Struct{
		ObjectOid: 16384,
		Name:      mustName(t, "accounts"),
		Kind:      uint8(rowlayout.RelationKindTable),
	}

	// No dispatcher wired yet: seeding and updating are both silent.
	err = store.SeedRelation(row)
	assert.Nil(err)
	err = store.UpdateRelation(row)
	assert.Nil(err)

	store.SetInvalidator(rec)

	row.Name = mustName(t, "accounts_renamed")
	err = store.UpdateRelation(row)
	assert.Nil(err)

	err = store.DeleteRelation(16384)
	assert.Nil(err)

	store.InvalidateWholeClass(objaddr.ProcedureClassOid)

	assert.Equal([]objaddr.Address{
		objaddr.New(objaddr.RelationClassOid, 16384, 0),
		objaddr.New(objaddr.RelationClassOid, 16384, 0),
		objaddr.New(objaddr.ProcedureClassOid, objaddr.InvalidOid, 0),
	}, rec.catalogSignals)

	// Deletion really removed the row.
	_, found, fetchErr := store.FetchRow(rowlayout.RelationLookup, 16384, 0)
	assert.Nil(fetchErr)
	assert.False(found)
}
