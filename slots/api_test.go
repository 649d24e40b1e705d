// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

package slots

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tada/catcache/cerror"
	"github.com/tada/catcache/switchpoint"
)

// directRunner stands in for the engine thread in tests that only need
// compute semantics, not marshaling.
type directRunner struct{}

func (directRunner) Run(fn func() error) (err error) {
	err = fn()
	return
}

func (directRunner) Assert(what string) {}

func constantEpoch(token *switchpoint.SwitchPoint) (epoch EpochFunc) {
	epoch = func(obj interface{}) (switchPoint *switchpoint.SwitchPoint) {
		switchPoint = token
		return
	}
	return
}

func TestBuilderExtendAndOverride(t *testing.T) {
	var (
		child  *Layout
		parent *Layout
	)

	assert := assert.New(t)

	noopCompute := func(obj interface{}) (value interface{}, err error) { return }
	epoch := constantEpoch(switchpoint.New())

	parent = NewBuilder().
		Define(0, "raw_row", noopCompute, epoch).
		Define(1, "name", noopCompute, epoch).
		Build()

	child = Extend(parent).
		Define(1, "qualified_name", noopCompute, epoch).
		Define(3, "tuple_shape", noopCompute, epoch).
		Build()

	assert.Equal(2, parent.SlotCount())
	assert.Equal(4, child.SlotCount())
	assert.Equal("raw_row", child.SlotName(0))
	assert.Equal("qualified_name", child.SlotName(1))
	assert.Equal("", child.SlotName(2))
	assert.Equal("tuple_shape", child.SlotName(3))

	// The parent layout must not see the child's overrides.
	assert.Equal("name", parent.SlotName(1))
}

func TestReadMemoizesUntilInvalidated(t *testing.T) {
	var (
		array    *Array
		computed int
		err      error
		layout   *Layout
		shared   *switchpoint.Shared
		value    interface{}
	)

	assert := assert.New(t)

	shared = switchpoint.NewShared()

	layout = NewBuilder().
		Define(0, "counter", func(obj interface{}) (value interface{}, err error) {
			computed++
			value = computed
			return
		}, func(obj interface{}) (switchPoint *switchpoint.SwitchPoint) {
			switchPoint = shared.Current()
			return
		}).
		Build()

	array = layout.NewArray(nil, directRunner{})

	value, err = array.Read(0)
	assert.Nil(err)
	assert.Equal(1, value)

	value, err = array.Read(0)
	assert.Nil(err)
	assert.Equal(1, value)
	assert.Equal(1, computed)

	// Advancing the epoch the value is bound to forces a recompute on the
	// next read, and only then.
	var batch switchpoint.Batch
	shared.Advance(&batch)
	batch.Invalidate()

	assert.Equal(1, computed)

	value, err = array.Read(0)
	assert.Nil(err)
	assert.Equal(2, value)
	assert.Equal(2, computed)
}

func TestUndefinedSlotIsNotSupported(t *testing.T) {
	var (
		array  *Array
		err    error
		layout *Layout
	)

	assert := assert.New(t)

	layout = NewBuilder().
		Define(2, "lonely", func(obj interface{}) (value interface{}, err error) { return }, constantEpoch(switchpoint.New())).
		Build()

	array = layout.NewArray(nil, directRunner{})

	_, err = array.Read(0)
	assert.NotNil(err)
	assert.True(cerror.IsNotSupported(err))

	_, err = array.Read(7)
	assert.NotNil(err)
	assert.True(cerror.IsNotSupported(err))

	_, err = array.Read(2)
	assert.Nil(err)
}

func TestSetConstantSurvivesInvalidation(t *testing.T) {
	var (
		array    *Array
		computed int
		err      error
		layout   *Layout
		token    *switchpoint.SwitchPoint
		value    interface{}
	)

	assert := assert.New(t)

	token = switchpoint.New()

	layout = NewBuilder().
		Define(0, "raw_row", func(obj interface{}) (value interface{}, err error) {
			computed++
			return
		}, constantEpoch(token)).
		Build()

	array = layout.NewArray(nil, directRunner{})
	array.SetConstant(0, nil)

	switchpoint.InvalidateAll([]*switchpoint.SwitchPoint{token})

	value, err = array.Read(0)
	assert.Nil(err)
	assert.Nil(value)
	assert.Equal(0, computed)

	value, bound := array.Peek(0)
	assert.True(bound)
	assert.Nil(value)
}

func TestPeekNeverComputes(t *testing.T) {
	var (
		array    *Array
		bound    bool
		computed int
		err      error
		layout   *Layout
		token    *switchpoint.SwitchPoint
		value    interface{}
	)

	assert := assert.New(t)

	token = switchpoint.New()

	layout = NewBuilder().
		Define(0, "name", func(obj interface{}) (value interface{}, err error) {
			computed++
			value = "pg_class"
			return
		}, constantEpoch(token)).
		Build()

	array = layout.NewArray(nil, directRunner{})

	_, bound = array.Peek(0)
	assert.False(bound)
	assert.Equal(0, computed)

	_, err = array.Read(0)
	assert.Nil(err)

	value, bound = array.Peek(0)
	assert.True(bound)
	assert.Equal("pg_class", value)

	switchpoint.InvalidateAll([]*switchpoint.SwitchPoint{token})

	_, bound = array.Peek(0)
	assert.False(bound)
}

func TestComputeErrorIsNotMemoized(t *testing.T) {
	var (
		array    *Array
		attempts int
		err      error
		layout   *Layout
		value    interface{}
	)

	assert := assert.New(t)

	layout = NewBuilder().
		Define(0, "flaky", func(obj interface{}) (value interface{}, err error) {
			attempts++
			if 1 == attempts {
				err = cerror.NewError(cerror.RetryLookupError, "prerequisite not cached yet")
				return
			}
			value = "resolved"
			return
		}, constantEpoch(switchpoint.New())).
		Build()

	array = layout.NewArray(nil, directRunner{})

	_, err = array.Read(0)
	assert.NotNil(err)
	assert.True(cerror.IsRetryLookup(err))

	value, err = array.Read(0)
	assert.Nil(err)
	assert.Equal("resolved", value)
	assert.Equal(2, attempts)
}

func TestOwnerIsHandedToComputeAndEpoch(t *testing.T) {
	var (
		array  *Array
		err    error
		layout *Layout
		owner  *struct{ oid uint32 }
		value  interface{}
	)

	assert := assert.New(t)

	owner = &struct{ oid uint32 }{oid: 1259}

	layout = NewBuilder().
		Define(0, "oid_echo", func(obj interface{}) (value interface{}, err error) {
			value = obj.(*struct{ oid uint32 }).oid
			return
		}, func(obj interface{}) (switchPoint *switchpoint.SwitchPoint) {
			assert.Same(owner, obj)
			switchPoint = switchpoint.New()
			return
		}).
		Build()

	array = layout.NewArray(owner, directRunner{})

	value, err = array.Read(0)
	assert.Nil(err)
	assert.Equal(uint32(1259), value)
}
