/*
 * Copyright (c) 2013 BiasedBit
 * Use of this source code is governed by an Apache 2.0 license that can be found in the LICENSE file.
 */

package bbhttp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseIsInterim(t *testing.T) {
	interim := NewResponseFrom(HTTP11, 100, "Continue", NewHeader())
	final := NewResponseFrom(HTTP11, 200, "OK", NewHeader())

	assert.True(t, interim.IsInterim())
	assert.False(t, final.IsInterim())
}

func TestResponseFinishContentSetsFields(t *testing.T) {
	r := NewResponseFrom(HTTP11, 200, "OK", NewHeader())
	r.FinishContent("hello", 5, true)

	assert.Equal(t, "hello", r.Content)
	assert.Equal(t, int64(5), r.ContentSize)
	assert.True(t, r.Successful)
}

func TestNewResponseFromNilHeaderDefaultsToEmpty(t *testing.T) {
	r := NewResponseFrom(HTTP10, 404, "Not Found", nil)
	assert.NotNil(t, r.Header)
	assert.Equal(t, "", r.Header.Get("X-Anything"))
}
