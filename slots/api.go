// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

// Package slots provides the lazily-computed, invalidation-aware field
// arrays backing every representative catalog object.
//
// Each object kind declares its slot layout once, at package init, with a
// Builder; every instance of that kind then carries a fixed-length Array.
// A slot is empty until first read; the first read computes the value on
// the database-engine thread and memoizes it bound to the invalidation
// epoch captured at computation time. Later reads return the memoized
// value lock-free for as long as that epoch remains valid (the
// guarded-constant fast path); once the epoch is invalidated the next
// read recomputes and rebinds.
//
// Nothing is recomputed eagerly at invalidation time, no matter how many
// slots an invalidation covers.
package slots

import (
	"sync/atomic"

	"github.com/tada/catcache/cerror"
	"github.com/tada/catcache/switchpoint"
)

// ComputeFunc produces a slot's value from its owning object. It only ever
// runs on the database-engine thread. A returned error is not memoized; the
// next read retries. A nil value with a nil error is a legitimate memoized
// value (e.g. "no backing row").
type ComputeFunc func(obj interface{}) (value interface{}, err error)

// EpochFunc selects the invalidation epoch a freshly computed value binds
// to: the globally-shared token for most slots, the owner's per-object
// token for kinds that track invalidation individually. Called on the
// database-engine thread immediately before the compute it guards.
type EpochFunc func(obj interface{}) (switchPoint *switchpoint.SwitchPoint)

// Runner marshals slot computation onto the database-engine thread.
// engine.Thread satisfies it.
type Runner interface {
	Run(fn func() error) (err error)
	Assert(what string)
}

// slotDef is one declared slot of a layout.
type slotDef struct {
	name    string
	compute ComputeFunc
	epoch   EpochFunc
}

// Layout is an immutable slot layout shared by every instance of one
// object kind. Build one per kind at package init.
type Layout struct {
	defs []slotDef
}

// SlotCount returns the number of slot indices the layout spans,
// undefined gaps included.
func (layout *Layout) SlotCount() (count int) {
	count = len(layout.defs)
	return
}

// SlotName returns the declared name of a slot ("" if undefined).
func (layout *Layout) SlotName(index int) (name string) {
	if (0 <= index) && (index < len(layout.defs)) {
		name = layout.defs[index].name
	}
	return
}

// Builder declaratively assembles a Layout. Subtype layouts Extend() their
// parent's: inherited slots keep their indices, a Define() at an inherited
// index overrides just that slot, and new slots append above the parent's.
type Builder struct {
	defs []slotDef
}

// NewBuilder starts an empty layout.
func NewBuilder() (builder *Builder) {
	builder = &Builder{}
	return
}

// Extend starts a layout inheriting every slot of parent.
func Extend(parent *Layout) (builder *Builder) {
	builder = &Builder{
		defs: make([]slotDef, len(parent.defs)),
	}
	copy(builder.defs, parent.defs)
	return
}

// Define declares (or overrides) the slot at index. Indices between the
// current span and index are left undefined; reading one fails with
// NotSupportedError. Panics on a malformed declaration, which is a
// package-init-time programming error, not a runtime condition.
func (builder *Builder) Define(index int, name string, compute ComputeFunc, epoch EpochFunc) (sameBuilder *Builder) {
	if (0 > index) || ("" == name) || (nil == compute) || (nil == epoch) {
		panic(cerror.NewError(cerror.ConsistencyError, "malformed slot declaration at index %d (\"%s\")", index, name))
	}

	for len(builder.defs) <= index {
		builder.defs = append(builder.defs, slotDef{})
	}

	builder.defs[index] = slotDef{name: name, compute: compute, epoch: epoch}

	sameBuilder = builder
	return
}

// Build freezes the layout.
func (builder *Builder) Build() (layout *Layout) {
	layout = &Layout{
		defs: make([]slotDef, len(builder.defs)),
	}
	copy(layout.defs, builder.defs)
	return
}

// binding is one memoized slot value. A nil token means the value is
// permanently constant, insensitive to invalidation forever.
type binding struct {
	token *switchpoint.SwitchPoint
	value interface{}
}

// Array is one object's slot storage.
type Array struct {
	layout   *Layout
	owner    interface{}
	runner   Runner
	bindings []atomic.Pointer[binding]
}

// NewArray creates the (entirely empty) slot storage for one object.
// Constructing an Array computes nothing and requires no engine-thread
// marshaling.
func (layout *Layout) NewArray(owner interface{}, runner Runner) (array *Array) {
	array = &Array{
		layout:   layout,
		owner:    owner,
		runner:   runner,
		bindings: make([]atomic.Pointer[binding], len(layout.defs)),
	}
	return
}

// Read returns the slot's value, computing and memoizing it on first use
// or after invalidation. Safe from any goroutine; only a miss marshals
// onto the engine thread.
func (array *Array) Read(index int) (value interface{}, err error) {
	var (
		bound *binding
	)

	if (0 > index) || (index >= len(array.bindings)) || (nil == array.layout.defs[index].compute) {
		err = cerror.NewError(cerror.NotSupportedError, "slot %d (\"%s\") is not defined for this object kind", index, array.layout.SlotName(index))
		return
	}

	bound = array.bindings[index].Load()
	if (nil != bound) && ((nil == bound.token) || bound.token.IsValid()) {
		value = bound.value
		err = nil
		return
	}

	err = array.runner.Run(func() (computeErr error) {
		value, computeErr = array.computeAndBind(index)
		return
	})

	return
}

// Peek returns the slot's memoized value if one is currently bound and
// valid. It never computes and never marshals; diagnostic paths use it so
// they cannot fail or block.
func (array *Array) Peek(index int) (value interface{}, bound bool) {
	var (
		b *binding
	)

	if (0 > index) || (index >= len(array.bindings)) {
		bound = false
		return
	}

	b = array.bindings[index].Load()
	if (nil != b) && ((nil == b.token) || b.token.IsValid()) {
		value = b.value
		bound = true
	} else {
		bound = false
	}

	return
}

// SetConstant binds the slot to a permanently-constant value that no
// invalidation will ever unbind. Used for the nil backing row of an
// intentionally-invalid object.
func (array *Array) SetConstant(index int, value interface{}) {
	if (0 > index) || (index >= len(array.bindings)) {
		panic(cerror.NewError(cerror.ConsistencyError, "slot %d out of range for a %d-slot layout", index, len(array.bindings)))
	}

	array.bindings[index].Store(&binding{token: nil, value: value})
}

// computeAndBind runs on the engine thread. Computation and invalidation
// are serialized there, so the epoch captured before the compute is the
// epoch the value is consistent with.
func (array *Array) computeAndBind(index int) (value interface{}, err error) {
	var (
		bound *binding
		def   *slotDef
		token *switchpoint.SwitchPoint
	)

	array.runner.Assert("slot computation")

	// A concurrent reader may have bound the slot while this one was
	// waiting to be marshaled.
	bound = array.bindings[index].Load()
	if (nil != bound) && ((nil == bound.token) || bound.token.IsValid()) {
		value = bound.value
		err = nil
		return
	}

	def = &array.layout.defs[index]

	token = def.epoch(array.owner)
	token.MarkUsed()

	value, err = def.compute(array.owner)
	if nil != err {
		value = nil
		return
	}

	array.bindings[index].Store(&binding{token: token, value: value})

	err = nil
	return
}
