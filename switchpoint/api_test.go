// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

package switchpoint

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSwitchPointLifecycle(t *testing.T) {
	var (
		switchPoint *SwitchPoint
	)

	assert := assert.New(t)

	switchPoint = New()
	assert.True(switchPoint.IsValid())
	assert.True(switchPoint.IsUnused())

	switchPoint.MarkUsed()
	assert.False(switchPoint.IsUnused())
	assert.True(switchPoint.IsValid())

	InvalidateAll([]*SwitchPoint{switchPoint})
	assert.False(switchPoint.IsValid())

	// Invalidation is terminal; a second batch must not resurrect it.
	InvalidateAll([]*SwitchPoint{switchPoint})
	assert.False(switchPoint.IsValid())
}

func TestInvalidateAllIsIndependent(t *testing.T) {
	var (
		survivor *SwitchPoint
		victim   *SwitchPoint
	)

	assert := assert.New(t)

	victim = New()
	survivor = New()

	InvalidateAll([]*SwitchPoint{victim})

	assert.False(victim.IsValid())
	assert.True(survivor.IsValid())
}

// Poll two tokens invalidated in the same batch from another goroutine and
// verify no observation ever shows one invalidated while the other is
// still current.
func TestBatchAtomicity(t *testing.T) {
	var (
		done        atomic.Bool
		pollerWG    sync.WaitGroup
		tornReads   atomic.Uint64
		switchPoint1 *SwitchPoint
		switchPoint2 *SwitchPoint
	)

	assert := assert.New(t)

	switchPoint1 = New()
	switchPoint2 = New()

	pollerWG.Add(1)
	go func() {
		defer pollerWG.Done()
		for !done.Load() {
			// Load order chosen so a non-atomic batch would be caught:
			// if 1 is already stale, 2 (same batch) must be stale too.
			if !switchPoint1.IsValid() && switchPoint2.IsValid() {
				tornReads.Add(1)
			}
		}
	}()

	InvalidateAll([]*SwitchPoint{switchPoint2, switchPoint1})

	done.Store(true)
	pollerWG.Wait()

	assert.Equal(uint64(0), tornReads.Load())
	assert.False(switchPoint1.IsValid())
	assert.False(switchPoint2.IsValid())
}

func TestBatchRunsPostOpsAfterInvalidation(t *testing.T) {
	var (
		batch       Batch
		order       []string
		switchPoint *SwitchPoint
	)

	assert := assert.New(t)

	switchPoint = New()
	switchPoint.MarkUsed()

	batch.AddToken(switchPoint)
	batch.AddPostOp(func() {
		assert.False(switchPoint.IsValid())
		order = append(order, "first")
	})
	batch.AddPostOp(func() {
		order = append(order, "second")
	})

	assert.Equal(1, batch.TokenCount())

	batch.Invalidate()

	assert.Equal([]string{"first", "second"}, order)
}

func TestSharedAdvance(t *testing.T) {
	var (
		batch   Batch
		retired *SwitchPoint
		shared  *Shared
	)

	assert := assert.New(t)

	shared = NewShared()
	retired = shared.Current()
	assert.True(retired.IsValid())

	// An unused epoch is dropped without joining the batch.
	shared.Advance(&batch)
	assert.Equal(0, batch.TokenCount())
	assert.NotSame(retired, shared.Current())

	retired = shared.Current()
	retired.MarkUsed()

	shared.Advance(&batch)
	assert.Equal(1, batch.TokenCount())
	assert.True(retired.IsValid()) // not yet fired

	batch.Invalidate()
	assert.False(retired.IsValid())
	assert.True(shared.Current().IsValid())
}

func TestGuardedReplaceAndCollect(t *testing.T) {
	var (
		batch        Batch
		cleared      bool
		postOpRan    bool
		guarded      *Guarded
		retired      *SwitchPoint
	)

	assert := assert.New(t)

	guarded = NewGuarded()
	retired = guarded.Current()

	// Untouched epoch: no replacement, no work.
	assert.False(guarded.ReplaceAndCollect(&batch, nil, nil))
	assert.Same(retired, guarded.Current())
	assert.Equal(0, batch.TokenCount())

	retired.MarkUsed()

	assert.True(guarded.ReplaceAndCollect(
		&batch,
		func() {
			// Derived cache must be cleared before the old token fires.
			assert.True(retired.IsValid())
			cleared = true
		},
		func() {
			assert.False(retired.IsValid())
			postOpRan = true
		}))

	assert.True(cleared)
	assert.False(postOpRan)
	assert.NotSame(retired, guarded.Current())
	assert.True(guarded.Current().IsValid())

	batch.Invalidate()

	assert.True(postOpRan)
	assert.False(retired.IsValid())
}
