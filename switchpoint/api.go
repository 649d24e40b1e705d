// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

// Package switchpoint provides the invalidation-epoch tokens guarding
// memoized catalog state.
//
// A SwitchPoint is Valid when created and transitions exactly once to
// Invalidated; it never returns to Valid. A memoized value bound to a token
// is usable exactly while that token is Valid; once the token is
// invalidated every dependent value becomes stale at once, without anyone
// visiting the values individually.
//
// Tokens are invalidated in batches. All tokens passed to one
// InvalidateAll() call become stale at a single atomic publication point:
// no reader can observe one token of the batch invalidated while another
// is still current. This bounds the number of expensive global
// synchronization operations to one per invalidation dispatch no matter
// how many objects are affected.
//
// Writers (InvalidateAll, Shared.Advance, Guarded.ReplaceAndCollect) must
// run on the database-engine thread; IsValid() and Current() may be called
// from any goroutine.
package switchpoint

import (
	"sync/atomic"
)

// batchFlag is shared by every token invalidated in one batch. Firing the
// flag is the single store that invalidates the whole batch.
type batchFlag struct {
	fired atomic.Bool
}

// SwitchPoint is one invalidation-epoch token.
type SwitchPoint struct {
	doom atomic.Pointer[batchFlag] // nil until the token joins a batch
	used atomic.Bool               // set once something memoizes under this token
}

// New creates a Valid token.
func New() (switchPoint *SwitchPoint) {
	switchPoint = &SwitchPoint{}
	return
}

// IsValid reports whether the token is still current. The atomic load
// provides the publication barrier pairing with InvalidateAll().
func (switchPoint *SwitchPoint) IsValid() (isValid bool) {
	var (
		flag *batchFlag
	)

	flag = switchPoint.doom.Load()
	isValid = (nil == flag) || !flag.fired.Load()

	return
}

// MarkUsed records that a value has been memoized under this token.
func (switchPoint *SwitchPoint) MarkUsed() {
	switchPoint.used.Store(true)
}

// IsUnused reports that nothing has ever been memoized under this token,
// so invalidating its owner requires no work at all.
func (switchPoint *SwitchPoint) IsUnused() (isUnused bool) {
	isUnused = !switchPoint.used.Load()
	return
}

// InvalidateAll marks every supplied token Invalidated as one atomic batch.
// A token already invalidated by an earlier batch is left alone.
//
// Must only be called on the database-engine thread; batches therefore
// never overlap, so a token pending in the current batch cannot also be
// pending in another.
func InvalidateAll(switchPoints []*SwitchPoint) {
	var (
		flag        *batchFlag
		switchPoint *SwitchPoint
	)

	if 0 == len(switchPoints) {
		return
	}

	flag = &batchFlag{}

	for _, switchPoint = range switchPoints {
		switchPoint.doom.CompareAndSwap(nil, flag)
	}

	// The entire batch becomes stale here.
	flag.fired.Store(true)
}

// Batch accumulates the tokens to invalidate and the deferred post-
// invalidation actions contributed by the objects visited during one
// invalidation dispatch. Tokens are invalidated in one InvalidateAll()
// call; post-ops then run strictly afterwards, in collection order, so
// nothing observes a half-torn-down derived value during the invalidation
// itself.
type Batch struct {
	switchPoints []*SwitchPoint
	postOps      []func()
}

// AddToken schedules a token for invalidation with this batch.
func (batch *Batch) AddToken(switchPoint *SwitchPoint) {
	batch.switchPoints = append(batch.switchPoints, switchPoint)
}

// AddPostOp defers a cleanup action until after the batch invalidation
// completes. Post-ops must not fail; they run inside an invalidation
// callback with no sensible caller to report to.
func (batch *Batch) AddPostOp(postOp func()) {
	batch.postOps = append(batch.postOps, postOp)
}

// TokenCount returns the number of tokens collected so far.
func (batch *Batch) TokenCount() (count int) {
	count = len(batch.switchPoints)
	return
}

// Invalidate fires the batch: one InvalidateAll() over every collected
// token, then the deferred post-ops in collection order.
func (batch *Batch) Invalidate() {
	var (
		postOp func()
	)

	InvalidateAll(batch.switchPoints)

	for _, postOp = range batch.postOps {
		postOp()
	}
}

// Shared is a globally-shared epoch holder: one current token covering
// every memoized value without fine-grained tracking. Advancing it at
// transaction, sub-transaction, and command-counter boundaries is a
// deliberately conservative approximation of "the backing rows may have
// changed"; it does not catch every backing-store moment when a row could
// change (certain lock-acquisition points among them), which is an
// accepted limitation rather than a bug to fix here.
type Shared struct {
	current atomic.Pointer[SwitchPoint]
}

// NewShared creates a Shared holder with a fresh Valid token installed.
func NewShared() (shared *Shared) {
	shared = &Shared{}
	shared.current.Store(New())
	return
}

// Current returns the holder's current token.
func (shared *Shared) Current() (switchPoint *SwitchPoint) {
	switchPoint = shared.current.Load()
	return
}

// Advance installs a fresh Valid token and schedules the old one with the
// supplied batch. The replacement is installed before the old token is
// invalidated, so reads racing the advance land on a consistent current
// epoch. An old token nothing ever read through is dropped without
// joining the batch.
func (shared *Shared) Advance(batch *Batch) {
	var (
		retired *SwitchPoint
	)

	retired = shared.current.Swap(New())

	if !retired.IsUnused() {
		batch.AddToken(retired)
	}
}

// Guarded is a per-object epoch holder, advanced only when that specific
// object's backing row changes.
type Guarded struct {
	current atomic.Pointer[SwitchPoint]
}

// NewGuarded creates a Guarded holder with a fresh Valid token installed.
func NewGuarded() (guarded *Guarded) {
	guarded = &Guarded{}
	guarded.current.Store(New())
	return
}

// Current returns the holder's current token.
func (guarded *Guarded) Current() (switchPoint *SwitchPoint) {
	switchPoint = guarded.current.Load()
	return
}

// ReplaceAndCollect implements the replace-then-invalidate protocol for a
// per-object epoch: install a new Valid token, clear any epoch-scoped
// derived cache via clearDerived, and only then hand the old token to the
// batch, deferring side-effectful teardown of the old derived value into
// the batch's post-op queue. Reads racing the invalidation thus always
// land on a consistent current token.
//
// Returns false (doing nothing) when the old token was never read
// through: invalidating an object nobody has touched does no work.
func (guarded *Guarded) ReplaceAndCollect(batch *Batch, clearDerived func(), postOp func()) (replaced bool) {
	var (
		retired *SwitchPoint
	)

	retired = guarded.current.Load()
	if retired.IsUnused() {
		replaced = false
		return
	}

	guarded.current.Store(New())

	if nil != clearDerived {
		clearDerived()
	}

	batch.AddToken(retired)
	if nil != postOp {
		batch.AddPostOp(postOp)
	}

	replaced = true
	return
}
