// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"github.com/tada/catcache/objaddr"
	"github.com/tada/catcache/rowlayout"
)

// Role represents one pg_authid row: a shared-catalog object, not
// namespaced, with no owner and no ACL of its own.
type Role struct {
	ObjectBase
}

var roleKind = &kindInfo{
	classOid: objaddr.RoleClassOid,
	typeName: "Role",
	lookupID: rowlayout.RoleLookup,
	shared:   true,

	decodeRow: func(row []byte) (decoded interface{}, err error) {
		decoded, err = rowlayout.UnmarshalRoleRowV1(row)
		return
	},

	nameOf: func(decoded interface{}) (name string) {
		name = rowlayout.NameToString(decoded.(*rowlayout.RoleRowV1Struct).Name)
		return
	},
}

// The factory references roleKind, so it is installed here to avoid a
// package-level initialization cycle.
func init() {
	roleKind.factory = func(ctx *Context, addr objaddr.Address) (co catalogObject) {
		var (
			role *Role
		)

		role = &Role{}
		role.initBase(role, ctx, addr, roleKind)

		co = role
		return
	}
}

func (role *Role) row() (roleRow *rowlayout.RoleRowV1Struct, err error) {
	var (
		decoded interface{}
	)

	decoded, err = role.mustRow()
	if nil != err {
		return
	}

	roleRow = decoded.(*rowlayout.RoleRowV1Struct)
	return
}

// IsSuperuser reports whether the role bypasses permission checks.
func (role *Role) IsSuperuser() (isSuperuser bool, err error) {
	var (
		roleRow *rowlayout.RoleRowV1Struct
	)

	roleRow, err = role.row()
	if nil != err {
		return
	}

	isSuperuser = roleRow.Superuser
	return
}

// CanLogin reports whether the role may establish sessions.
func (role *Role) CanLogin() (canLogin bool, err error) {
	var (
		roleRow *rowlayout.RoleRowV1Struct
	)

	roleRow, err = role.row()
	if nil != err {
		return
	}

	canLogin = roleRow.CanLogin
	return
}
