// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"github.com/tada/catcache/objaddr"
	"github.com/tada/catcache/rowlayout"
)

// Namespace represents one pg_namespace row. Namespaces are themselves
// not namespaced.
type Namespace struct {
	ObjectBase
}

var namespaceKind = &kindInfo{
	classOid: objaddr.NamespaceClassOid,
	typeName: "Namespace",
	lookupID: rowlayout.NamespaceLookup,

	decodeRow: func(row []byte) (decoded interface{}, err error) {
		decoded, err = rowlayout.UnmarshalNamespaceRowV1(row)
		return
	},

	nameOf: func(decoded interface{}) (name string) {
		name = rowlayout.NameToString(decoded.(*rowlayout.NamespaceRowV1Struct).Name)
		return
	},
	ownerOidOf: func(decoded interface{}) (ownerOid objaddr.Oid) {
		ownerOid = objaddr.Oid(decoded.(*rowlayout.NamespaceRowV1Struct).OwnerOid)
		return
	},
	aclOf: func(decoded interface{}) (entries []string) {
		entries = rowlayout.DecodeACL(decoded.(*rowlayout.NamespaceRowV1Struct).ACL)
		return
	},
}

// The factory references namespaceKind, so it is installed here to avoid a
// package-level initialization cycle.
func init() {
	namespaceKind.factory = func(ctx *Context, addr objaddr.Address) (co catalogObject) {
		var (
			namespace *Namespace
		)

		namespace = &Namespace{}
		namespace.initBase(namespace, ctx, addr, namespaceKind)

		co = namespace
		return
	}
}
