// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"github.com/tada/catcache/objaddr"
	"github.com/tada/catcache/slots"
)

// kindInfo is one registered kind: the catalog class it represents, how
// its rows are fetched and decoded, which capabilities its rows carry, and
// the frozen slot layout its instances share.
type kindInfo struct {
	classOid  objaddr.Oid
	typeName  string
	lookupID  int
	perObject bool // invalidated individually (own Guarded epoch)
	shared    bool // lives in the shared, database-independent catalogs

	factory   func(ctx *Context, addr objaddr.Address) (co catalogObject)
	decodeRow func(row []byte) (decoded interface{}, err error)

	// Capability extractors over the decoded row; a nil extractor means the
	// kind does not carry that capability.
	nameOf         func(decoded interface{}) (name string)
	namespaceOidOf func(decoded interface{}) (namespaceOid objaddr.Oid)
	ownerOidOf     func(decoded interface{}) (ownerOid objaddr.Oid)
	aclOf          func(decoded interface{}) (entries []string)

	// extraSlots appends kind-specific slots above CommonSlotCount.
	extraSlots func(builder *slots.Builder)

	layout *slots.Layout
}

// kindRegistry maps a catalog class oid to its kind. Frozen at package
// init; read-only afterwards.
var kindRegistry map[objaddr.Oid]*kindInfo

func init() {
	var (
		kind *kindInfo
	)

	kindRegistry = make(map[objaddr.Oid]*kindInfo)

	for _, kind = range []*kindInfo{
		relationKind,
		typeKind,
		procedureKind,
		roleKind,
		namespaceKind,
		databaseKind,
	} {
		kind.layout = buildKindLayout(kind)
		kindRegistry[kind.classOid] = kind
	}
}

// buildKindLayout assembles a kind's slot layout: the common slots its
// extractors support plus whatever the kind appends.
func buildKindLayout(kind *kindInfo) (layout *slots.Layout) {
	var (
		builder *slots.Builder
	)

	builder = slots.NewBuilder().
		Define(SlotRawRow, "raw_row", rawRowCompute, objectEpoch).
		Define(SlotName, "name", nameCompute, objectEpoch)

	if nil != kind.namespaceOidOf {
		builder.Define(SlotNamespace, "namespace", namespaceCompute, objectEpoch)
	}
	if nil != kind.ownerOidOf {
		builder.Define(SlotOwner, "owner", ownerCompute, objectEpoch)
	}
	if nil != kind.aclOf {
		builder.Define(SlotACL, "acl", aclCompute, objectEpoch)
	}

	if nil != kind.extraSlots {
		kind.extraSlots(builder)
	}

	layout = builder.Build()
	return
}
