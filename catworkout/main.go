// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

// catworkout measures catalog-cache throughput: the lock-free hit path,
// the construct-and-populate miss path, and the hit path under a
// continuous invalidation churn.
package main

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/tada/catcache/catalog"
	"github.com/tada/catcache/emstore"
	"github.com/tada/catcache/objaddr"
	"github.com/tada/catcache/rowlayout"
	"github.com/tada/catcache/session"
)

const (
	firstRelationOid  = uint32(16384)
	relationPoolSize  = uint32(1024)
	workoutNamePrefix = "__catworkout_rel_"
)

var (
	measureChurn bool
	measureHits  bool
	measureMiss  bool
	opsPerThread uint64
	threads      uint64
)

func usage(file *os.File) {
	fmt.Fprintf(file, "Usage:\n")
	fmt.Fprintf(file, "    %v [hmi] threads ops-per-thread\n", os.Args[0])
	fmt.Fprintf(file, "  where:\n")
	fmt.Fprintf(file, "    h               measure hit-path reads of already-populated fields\n")
	fmt.Fprintf(file, "    m               measure miss-path representative construction\n")
	fmt.Fprintf(file, "    i               measure hit-path reads under invalidation churn\n")
	fmt.Fprintf(file, "    threads         number of reader goroutines\n")
	fmt.Fprintf(file, "    ops-per-thread  number of reads each goroutine performs\n")
	fmt.Fprintf(file, "\n")
	fmt.Fprintf(file, "Note: Precisely one test selector must be specified\n")
}

func main() {
	var (
		durationOfMeasuredOperations time.Duration
		err                          error
		latencyPerOpInMicroSeconds   float64
		opsPerSecond                 float64
		readerWG                     sync.WaitGroup
		relationOid                  uint32
		sess                         *session.Session
		stats                        string
		stopChurnChan                chan struct{}
		store                        *emstore.Store
		threadIndex                  uint64
		timeAfterMeasuredOperations  time.Time
		timeBeforeMeasuredOperations time.Time
	)

	// Parse arguments

	if 4 != len(os.Args) {
		usage(os.Stderr)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "h":
		measureHits = true
	case "m":
		measureMiss = true
	case "i":
		measureChurn = true
	default:
		usage(os.Stderr)
		os.Exit(1)
	}

	threads, err = strconv.ParseUint(os.Args[2], 10, 64)
	if (nil != err) || (0 == threads) {
		usage(os.Stderr)
		os.Exit(1)
	}

	opsPerThread, err = strconv.ParseUint(os.Args[3], 10, 64)
	if (nil != err) || (0 == opsPerThread) {
		usage(os.Stderr)
		os.Exit(1)
	}

	// Seed the emulated store and assemble a session over it

	store = emstore.NewStore()

	err = seedStore(store)
	if nil != err {
		fmt.Fprintf(os.Stderr, "seeding emulated store failed: %v\n", err)
		os.Exit(1)
	}

	sess, err = session.New(session.DefaultConfig(), store, store)
	if nil != err {
		fmt.Fprintf(os.Stderr, "session assembly failed: %v\n", err)
		os.Exit(1)
	}
	defer sess.Close()

	store.SetInvalidator(sess.Dispatcher())

	if measureHits || measureChurn {
		// Populate every relation's name once so readers measure the
		// guarded-constant fast path, not first-read construction.
		for relationOid = firstRelationOid; relationOid < firstRelationOid+relationPoolSize; relationOid++ {
			err = readRelationName(sess, relationOid)
			if nil != err {
				fmt.Fprintf(os.Stderr, "prepopulating relation %d failed: %v\n", relationOid, err)
				os.Exit(1)
			}
		}
	}

	stopChurnChan = make(chan struct{})
	if measureChurn {
		go churn(sess, stopChurnChan)
	}

	// Measure

	timeBeforeMeasuredOperations = time.Now()

	for threadIndex = 0; threadIndex < threads; threadIndex++ {
		readerWG.Add(1)
		go func(seed uint64) {
			defer readerWG.Done()

			var (
				op        uint64
				oid       uint32
				threadErr error
			)

			for op = 0; op < opsPerThread; op++ {
				oid = firstRelationOid + uint32((seed+op)%uint64(relationPoolSize))
				threadErr = readRelationName(sess, oid)
				if nil != threadErr {
					fmt.Fprintf(os.Stderr, "read of relation %d failed: %v\n", oid, threadErr)
					os.Exit(1)
				}
			}
		}(threadIndex * 7919)
	}

	readerWG.Wait()

	timeAfterMeasuredOperations = time.Now()

	close(stopChurnChan)

	durationOfMeasuredOperations = timeAfterMeasuredOperations.Sub(timeBeforeMeasuredOperations)

	opsPerSecond = float64(threads*opsPerThread*1000) / float64(durationOfMeasuredOperations.Milliseconds()+1)
	latencyPerOpInMicroSeconds = float64(durationOfMeasuredOperations.Microseconds()) / float64(threads*opsPerThread)

	cacheStats := sess.Cache().StatsSnapshot()
	stats = fmt.Sprintf("hits %d misses %d evictions %d rowFetches %d", cacheStats.Hits, cacheStats.Misses, cacheStats.Evictions, store.RowFetchCount())

	fmt.Printf("opsPerSecond = %10.2f\n", opsPerSecond)
	fmt.Printf("latencyPerOp = %10.2f us\n", latencyPerOpInMicroSeconds)
	fmt.Printf("cache        = %s\n", stats)
}

// seedStore loads the relation pool (and the rows they point at).
func seedStore(store *emstore.Store) (err error) {
	var (
		name        [rowlayout.NameDataLen]byte
		relationOid uint32
	)

	err = store.SeedRole(&rowlayout.RoleRowV1Struct{ObjectOid: 10, Superuser: true, CanLogin: true})
	if nil != err {
		return
	}
	err = store.SeedNamespace(&rowlayout.NamespaceRowV1Struct{ObjectOid: 2200, OwnerOid: 10})
	if nil != err {
		return
	}

	for relationOid = firstRelationOid; relationOid < firstRelationOid+relationPoolSize; relationOid++ {
		name, err = rowlayout.StringToName(workoutNamePrefix + strconv.FormatUint(uint64(relationOid), 10))
		if nil != err {
			return
		}

		err = store.SeedRelation(&rowlayout.RelationRowV1Struct{
			ObjectOid:    relationOid,
			Name:         name,
			NamespaceOid: 2200,
			OwnerOid:     10,
			Kind:         uint8(rowlayout.RelationKindTable),
		})
		if nil != err {
			return
		}
	}

	err = nil
	return
}

// readRelationName performs one measured operation: resolve the
// representative (hit or miss) and read its name.
func readRelationName(sess *session.Session, relationOid uint32) (err error) {
	var (
		relation *catalog.Relation
	)

	relation, err = catalog.RelationFromOid(sess.Context(), objaddr.Oid(relationOid))
	if nil != err {
		return
	}

	if measureMiss {
		// Miss-path runs only need the representative itself.
		err = nil
		return
	}

	_, err = relation.Name()
	return
}

// churn retires one relation epoch after another until told to stop.
func churn(sess *session.Session, stopChurnChan chan struct{}) {
	var (
		err         error
		relationOid = firstRelationOid
	)

	for {
		select {
		case <-stopChurnChan:
			return
		default:
			err = sess.Engine().Run(func() error {
				sess.Dispatcher().InvalidateCatalog(objaddr.RelationClassOid, objaddr.Oid(relationOid))
				return nil
			})
			if nil != err {
				return
			}

			relationOid++
			if relationOid >= firstRelationOid+relationPoolSize {
				relationOid = firstRelationOid
			}

			time.Sleep(100 * time.Microsecond)
		}
	}
}
