// Copyright (c) 2026, Tada AB.
// SPDX-License-Identifier: Apache-2.0

package cerror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewErrorCarriesCode(t *testing.T) {
	var (
		err error
	)

	assert := assert.New(t)

	err = NewError(NotSupportedError, "kind %q does not implement %s()", "Role", "Namespace")

	assert.NotNil(err)
	assert.Equal(NotSupportedError, Code(err))
	assert.True(Is(err, NotSupportedError))
	assert.True(IsNotSupported(err))
	assert.False(IsRetryLookup(err))
	assert.Contains(err.Error(), "Role")
}

func TestAddCode(t *testing.T) {
	var (
		err  error
		base error
	)

	assert := assert.New(t)

	base = errors.New("attribute row for (16384,3) vanished")
	err = AddCode(base, DecodeError)

	assert.Equal(DecodeError, Code(err))
	assert.Contains(err.Error(), "vanished")

	// A nil error still yields a usable annotated error.
	err = AddCode(nil, RetryLookupError)
	assert.NotNil(err)
	assert.True(IsRetryLookup(err))
}

func TestCodeDefaults(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(successCode, Code(nil))

	// An error that escaped without annotation is an internal error.
	assert.Equal(ConsistencyError, Code(errors.New("unannotated")))
}

func TestErrorStringAndLocation(t *testing.T) {
	var (
		err  error
		file string
		line int
	)

	assert := assert.New(t)

	err = NewError(ConsistencyError, "object %s reinterpreted as class %d", "[1259,16384,0]", 1247)

	assert.Equal(fmt.Sprintf("%s (SQLSTATE XX000)", err.Error()), ErrorString(err))
	assert.Equal("", ErrorString(nil))

	file, line = Location(err)
	assert.Contains(file, "api_test.go")
	assert.NotEqual(0, line)

	assert.Contains(Details(err), "api_test.go")
}
