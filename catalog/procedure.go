// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"sync/atomic"

	"github.com/tada/catcache/logger"
	"github.com/tada/catcache/objaddr"
	"github.com/tada/catcache/rowlayout"
	"github.com/tada/catcache/switchpoint"
)

// memoBox wraps the dispatch memo so it can be swapped atomically whatever
// its concrete type.
type memoBox struct {
	value interface{}
}

// Procedure represents one pg_proc row. Like Relation it is invalidated
// individually; the routine-dispatch memo callers hang on it is cleared
// whenever the backing row is.
type Procedure struct {
	ObjectBase

	memo atomic.Pointer[memoBox]
}

var procedureKind = &kindInfo{
	classOid:  objaddr.ProcedureClassOid,
	typeName:  "Procedure",
	lookupID:  rowlayout.ProcedureLookup,
	perObject: true,

	decodeRow: func(row []byte) (decoded interface{}, err error) {
		decoded, err = rowlayout.UnmarshalProcedureRowV1(row)
		return
	},

	nameOf: func(decoded interface{}) (name string) {
		name = rowlayout.NameToString(decoded.(*rowlayout.ProcedureRowV1Struct).Name)
		return
	},
	namespaceOidOf: func(decoded interface{}) (namespaceOid objaddr.Oid) {
		namespaceOid = objaddr.Oid(decoded.(*rowlayout.ProcedureRowV1Struct).NamespaceOid)
		return
	},
	ownerOidOf: func(decoded interface{}) (ownerOid objaddr.Oid) {
		ownerOid = objaddr.Oid(decoded.(*rowlayout.ProcedureRowV1Struct).OwnerOid)
		return
	},
	aclOf: func(decoded interface{}) (entries []string) {
		entries = rowlayout.DecodeACL(decoded.(*rowlayout.ProcedureRowV1Struct).ACL)
		return
	},
}

// The factory references procedureKind, so it is installed here to avoid a
// package-level initialization cycle.
func init() {
	procedureKind.factory = func(ctx *Context, addr objaddr.Address) (co catalogObject) {
		var (
			procedure *Procedure
		)

		procedure = &Procedure{}
		procedure.initBase(procedure, ctx, addr, procedureKind)

		co = procedure
		return
	}
}

func (procedure *Procedure) row() (procedureRow *rowlayout.ProcedureRowV1Struct, err error) {
	var (
		decoded interface{}
	)

	decoded, err = procedure.mustRow()
	if nil != err {
		return
	}

	procedureRow = decoded.(*rowlayout.ProcedureRowV1Struct)
	return
}

// Kind returns the routine kind code (function, procedure, aggregate,
// window).
func (procedure *Procedure) Kind() (kind rowlayout.ProcedureKind, err error) {
	var (
		procedureRow *rowlayout.ProcedureRowV1Struct
	)

	procedureRow, err = procedure.row()
	if nil != err {
		return
	}

	kind, err = rowlayout.DecodeProcedureKind(procedureRow.Kind)
	return
}

// ArgCount returns the number of declared arguments.
func (procedure *Procedure) ArgCount() (argCount uint16, err error) {
	var (
		procedureRow *rowlayout.ProcedureRowV1Struct
	)

	procedureRow, err = procedure.row()
	if nil != err {
		return
	}

	argCount = procedureRow.ArgCount
	return
}

// ReturnTypeOid returns the oid of the declared return type.
func (procedure *Procedure) ReturnTypeOid() (returnTypeOid objaddr.Oid, err error) {
	var (
		procedureRow *rowlayout.ProcedureRowV1Struct
	)

	procedureRow, err = procedure.row()
	if nil != err {
		return
	}

	returnTypeOid = objaddr.Oid(procedureRow.ReturnTypeOid)
	return
}

// LanguageOid returns the oid of the routine's implementation language.
func (procedure *Procedure) LanguageOid() (languageOid objaddr.Oid, err error) {
	var (
		procedureRow *rowlayout.ProcedureRowV1Struct
	)

	procedureRow, err = procedure.row()
	if nil != err {
		return
	}

	languageOid = objaddr.Oid(procedureRow.LanguageOid)
	return
}

// Memo returns the dispatch memo, if one is currently set.
func (procedure *Procedure) Memo() (memo interface{}, ok bool) {
	var (
		box *memoBox
	)

	box = procedure.memo.Load()
	if nil == box {
		ok = false
		return
	}

	memo = box.value
	ok = true
	return
}

// SetMemo hangs an opaque dispatch memo on the procedure. The memo lives
// exactly as long as the backing row's current epoch: invalidating the
// procedure clears it in the same batch.
func (procedure *Procedure) SetMemo(memo interface{}) {
	procedure.epoch.Current().MarkUsed()
	procedure.memo.Store(&memoBox{value: memo})
}

// ContributeInvalidations retires the procedure's epoch and drops the
// dispatch memo alongside the row.
func (procedure *Procedure) ContributeInvalidations(batch *switchpoint.Batch) {
	procedure.epoch.ReplaceAndCollect(
		batch,
		func() {
			procedure.memo.Store(nil)
		},
		func() {
			logger.Tracef("invalidated %s", procedure.String())
		})
}
