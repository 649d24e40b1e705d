// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

// Package session assembles one catalog-cache instance: the engine thread,
// the identity cache, the globally-shared invalidation epoch, the
// invalidation dispatcher, and the catalog context the representatives
// hang off. A host embedding the cache creates one Session per database
// connection lifetime.
package session

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/tada/catcache/catalog"
	"github.com/tada/catcache/cerror"
	"github.com/tada/catcache/engine"
	"github.com/tada/catcache/icache"
	"github.com/tada/catcache/inval"
	"github.com/tada/catcache/logger"
	"github.com/tada/catcache/objaddr"
	"github.com/tada/catcache/switchpoint"
)

// Config selects the session's tunables.
type Config struct {
	// LogLevel is one of "error", "warn", "info", or "debug".
	LogLevel string

	// EnableTrace additionally emits the cache's trace-level events.
	EnableTrace bool

	// EngineQueueDepth bounds how many marshaled closures may wait for the
	// engine thread at once.
	EngineQueueDepth int
}

// DefaultConfig returns the tunables a host that doesn't care should use.
func DefaultConfig() (config Config) {
	config = Config{
		LogLevel:         "info",
		EnableTrace:      false,
		EngineQueueDepth: 64,
	}
	return
}

// Validate checks the tunables; New() refuses a Config that fails it.
func (config Config) Validate() (err error) {
	err = validation.ValidateStruct(&config,
		validation.Field(&config.LogLevel,
			validation.Required,
			validation.In("error", "warn", "info", "debug")),
		validation.Field(&config.EngineQueueDepth,
			validation.Required,
			validation.Min(1),
			validation.Max(65536)),
	)
	if nil != err {
		err = cerror.AddCode(err, cerror.ConsistencyError)
	}

	return
}

// Session is one assembled catalog-cache instance.
type Session struct {
	id          uuid.UUID
	config      Config
	thread      *engine.Thread
	cache       *icache.Cache
	globalEpoch *switchpoint.Shared
	dispatcher  *inval.Dispatcher
	ctx         *catalog.Context
}

// New assembles a session over the supplied backing-store surfaces and
// starts its engine thread. The returned dispatcher endpoint (see
// Dispatcher()) is what the store's invalidation delivery should be wired
// to.
func New(config Config, rows engine.RowFetcher, shapes engine.StructuralFetcher) (session *Session, err error) {
	var (
		thread *engine.Thread
	)

	err = config.Validate()
	if nil != err {
		return
	}

	err = logger.Up(config.LogLevel, config.EnableTrace)
	if nil != err {
		return
	}

	thread = engine.StartThread(config.EngineQueueDepth)

	session = &Session{
		id:          uuid.New(),
		config:      config,
		thread:      thread,
		cache:       icache.NewCache(),
		globalEpoch: switchpoint.NewShared(),
	}

	session.dispatcher = inval.NewDispatcher(session.cache, thread, session.globalEpoch)

	session.ctx = &catalog.Context{
		Cache:       session.cache,
		Engine:      thread,
		Rows:        rows,
		Shapes:      shapes,
		GlobalEpoch: session.globalEpoch,
	}

	logger.Infof("session %s up (log level %s, queue depth %d)", session.id.String(), config.LogLevel, config.EngineQueueDepth)

	err = nil
	return
}

// Close stops the engine thread after draining already-marshaled work.
func (session *Session) Close() {
	session.thread.Stop()
	logger.Infof("session %s down", session.id.String())
}

// ID returns the session's unique id.
func (session *Session) ID() (id uuid.UUID) {
	id = session.id
	return
}

// Context returns the catalog context representatives are resolved
// against.
func (session *Session) Context() (ctx *catalog.Context) {
	ctx = session.ctx
	return
}

// Dispatcher returns the invalidation endpoint (an engine.Invalidator) to
// wire the backing store's change delivery to.
func (session *Session) Dispatcher() (dispatcher *inval.Dispatcher) {
	dispatcher = session.dispatcher
	return
}

// Cache returns the session's identity cache.
func (session *Session) Cache() (cache *icache.Cache) {
	cache = session.cache
	return
}

// Engine returns the session's engine thread.
func (session *Session) Engine() (thread *engine.Thread) {
	thread = session.thread
	return
}

// FromAddress resolves addr to its representative.
func (session *Session) FromAddress(addr objaddr.Address) (obj catalog.Object, err error) {
	obj, err = catalog.FromAddress(session.ctx, addr)
	return
}
