// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"github.com/tada/catcache/objaddr"
	"github.com/tada/catcache/rowlayout"
)

// Database represents one pg_database row: a shared-catalog object, owned
// and access-controlled but not namespaced.
type Database struct {
	ObjectBase
}

var databaseKind = &kindInfo{
	classOid: objaddr.DatabaseClassOid,
	typeName: "Database",
	lookupID: rowlayout.DatabaseLookup,
	shared:   true,

	decodeRow: func(row []byte) (decoded interface{}, err error) {
		decoded, err = rowlayout.UnmarshalDatabaseRowV1(row)
		return
	},

	nameOf: func(decoded interface{}) (name string) {
		name = rowlayout.NameToString(decoded.(*rowlayout.DatabaseRowV1Struct).Name)
		return
	},
	ownerOidOf: func(decoded interface{}) (ownerOid objaddr.Oid) {
		ownerOid = objaddr.Oid(decoded.(*rowlayout.DatabaseRowV1Struct).OwnerOid)
		return
	},
	aclOf: func(decoded interface{}) (entries []string) {
		entries = rowlayout.DecodeACL(decoded.(*rowlayout.DatabaseRowV1Struct).ACL)
		return
	},
}

// The factory references databaseKind, so it is installed here to avoid a
// package-level initialization cycle.
func init() {
	databaseKind.factory = func(ctx *Context, addr objaddr.Address) (co catalogObject) {
		var (
			database *Database
		)

		database = &Database{}
		database.initBase(database, ctx, addr, databaseKind)

		co = database
		return
	}
}

func (database *Database) row() (databaseRow *rowlayout.DatabaseRowV1Struct, err error) {
	var (
		decoded interface{}
	)

	decoded, err = database.mustRow()
	if nil != err {
		return
	}

	databaseRow = decoded.(*rowlayout.DatabaseRowV1Struct)
	return
}

// Encoding returns the database's character-set encoding id.
func (database *Database) Encoding() (encoding int32, err error) {
	var (
		databaseRow *rowlayout.DatabaseRowV1Struct
	)

	databaseRow, err = database.row()
	if nil != err {
		return
	}

	encoding = databaseRow.Encoding
	return
}

// IsTemplate reports whether new databases may be cloned from this one.
func (database *Database) IsTemplate() (isTemplate bool, err error) {
	var (
		databaseRow *rowlayout.DatabaseRowV1Struct
	)

	databaseRow, err = database.row()
	if nil != err {
		return
	}

	isTemplate = databaseRow.IsTemplate
	return
}

// AllowConnections reports whether sessions may connect to the database.
func (database *Database) AllowConnections() (allowConnections bool, err error) {
	var (
		databaseRow *rowlayout.DatabaseRowV1Struct
	)

	databaseRow, err = database.row()
	if nil != err {
		return
	}

	allowConnections = databaseRow.AllowConnections
	return
}
