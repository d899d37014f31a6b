/*
 * Copyright (c) 2013 BiasedBit
 * Use of this source code is governed by an Apache 2.0 license that can be found in the LICENSE file.
 */

package bbhttp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesOnCodeOnly(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewError(CodeTransport, "dial failed", cause)

	assert.True(t, errors.Is(err, ErrCancelled) == false)
	assert.True(t, errors.Is(err, &Error{Code: CodeTransport}))
	assert.ErrorIs(t, err, cause)
}

func TestErrorUnwrapReturnsCause(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(CodeSinkError, "sink failed", cause)

	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestSentinelErrorsCarryDistinctCodes(t *testing.T) {
	assert.False(t, errors.Is(ErrCancelled, ErrUploadFileStreamError))
	assert.True(t, errors.Is(ErrCancelled, ErrCancelled))
}
