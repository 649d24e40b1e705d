// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

// Package cerror provides error-handling wrappers for the catalog cache.
//
// These wrappers allow callers to attach an SQLSTATE-style condition code to
// regular Go errors while still conforming to the Go error interface.
//
// This package is currently implemented on top of the ansel1/merry package:
//   https://github.com/ansel1/merry
//
//   merry comes with built-in support for adding information to errors:
//    - stacktraces
//    - overriding the error message
//    - your own additional information
//
// A condition code is attached with WithValue under the "sqlstate" key and
// retrieved with Code(). Each code in the taxonomy below identifies one of
// the failure classes the cache core can raise; callers dispatch on the
// code, never on the message text.
package cerror

import (
	"fmt"

	"github.com/ansel1/merry"
)

// CatError is an SQLSTATE-style five-character condition code.
//
// There are two groups of constants:
//  - conditions that correspond to standard PostgreSQL SQLSTATE codes
//  - cache-internal conditions carried on codes from the implementation-
//    defined space
type CatError string

const (
	// NotSupportedError reports that a slot's computation function is not
	// implemented for the concrete catalog kind it was read on. In a
	// complete system it means "this catalog kind does not support this
	// field/capability at all" and is permanent, not transient.
	NotSupportedError CatError = "0A000" // feature_not_supported

	// NotFoundError reports a lookup of a catalog object or class that is
	// not defined.
	NotFoundError CatError = "42704" // undefined_object

	// DecodeError reports a raw catalog field holding a byte value outside
	// its expected enumeration. Treated as data corruption, never retried.
	DecodeError CatError = "XX001" // data_corrupted

	// ConsistencyError reports a programming-contract violation, such as
	// reinterpreting a known-valid object as a different catalog class than
	// its backing row's.
	ConsistencyError CatError = "XX000" // internal_error

	// ConstructionError reports a representative object built without its
	// required address context, i.e. the registry choke point was bypassed.
	// Fatal; indicates an internal bug.
	ConstructionError CatError = "XX000" // internal_error

	// RetryLookupError is the internal signal that a dependent lookup
	// needed to populate a slot is not yet present in the identity cache.
	// Never user-visible: the caller caches the prerequisite and redoes
	// the two-step lookup.
	RetryLookupError CatError = "55000" // object_not_in_prerequisite_state
)

// The merry value key under which the condition code is stored.
const sqlstateKey = "sqlstate"

// successCode is returned by Code() for a nil error.
const successCode CatError = "00000"

// Value returns the five-character code for the CatError constant.
func (catError CatError) Value() (code string) {
	code = string(catError)
	return
}

// NewError creates a new merry error annotated with the given condition
// code, using the supplied format string and arguments.
func NewError(catError CatError, format string, a ...interface{}) (err error) {
	err = merry.WrapSkipping(fmt.Errorf(format, a...), 1).WithValue(sqlstateKey, string(catError))
	return
}

// AddCode attaches a condition code to an existing Go error, making it
// "merry" (adding a stack trace) in the process. Passing a nil error
// allocates a fresh one, so callers that forget to provide context still
// get a usable error.
func AddCode(e error, catError CatError) (err error) {
	if nil == e {
		err = merry.New("catalog error").WithValue(sqlstateKey, string(catError))
		return
	}

	err = merry.WrapSkipping(e, 1).WithValue(sqlstateKey, string(catError))

	return
}

// Code extracts the condition code from the error, if one was previously
// attached. A nil error reports successCode; an unannotated error reports
// ConsistencyError (it escaped from a layer that should have annotated it).
func Code(e error) (catError CatError) {
	var (
		value interface{}
	)

	if nil == e {
		catError = successCode
		return
	}

	value = merry.Value(e, sqlstateKey)
	if nil == value {
		catError = ConsistencyError
		return
	}

	catError = CatError(value.(string))

	return
}

// Is reports whether the error carries the given condition code.
//
// NOTE: Because the five-character code is used to do this check, one
//       cannot use this API to distinguish between CatErrors that share a
//       code (ConsistencyError and ConstructionError both map to XX000).
func Is(e error, catError CatError) (is bool) {
	is = (nil != e) && (Code(e) == catError)
	return
}

// IsNotSupported reports whether the error is a NotSupportedError.
func IsNotSupported(e error) (is bool) {
	is = Is(e, NotSupportedError)
	return
}

// IsRetryLookup reports whether the error is the internal two-phase
// lookup retry signal.
func IsRetryLookup(e error) (is bool) {
	is = Is(e, RetryLookupError)
	return
}

// ErrorString returns the error message with the condition code appended,
// suitable for logs.
func ErrorString(e error) (s string) {
	if nil == e {
		s = ""
		return
	}

	s = fmt.Sprintf("%s (SQLSTATE %s)", e.Error(), Code(e).Value())

	return
}

// Location returns the file and line number of the code that generated the
// error. Returns zero values if e has no stacktrace.
func Location(e error) (file string, line int) {
	file, line = merry.Location(e)
	return
}

// Details wraps merry.Details, which returns all error details including
// stacktrace in a string.
func Details(e error) (details string) {
	details = merry.Details(e)
	return
}
