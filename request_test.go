/*
 * Copyright (c) 2013 BiasedBit
 * Use of this source code is governed by an Apache 2.0 license that can be found in the LICENSE file.
 */

package bbhttp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewRequestDefaults(t *testing.T) {
	r := NewRequest(GET, "http://example.test/")

	assert.Equal(t, GET, r.Verb())
	assert.Equal(t, HTTP11, r.Version())
	assert.Equal(t, 30*time.Second, r.ConnectTimeout())
	assert.True(t, r.DiscardBodyOnNon2xx())
	assert.False(t, r.IsUpload())
	assert.False(t, r.Cancelled())
}

func TestHeadersFrozenAfterStart(t *testing.T) {
	r := NewRequest(POST, "http://example.test/")
	assert.True(t, r.SetHeader("X-Test", "1"))

	r.MarkStarted()

	assert.False(t, r.SetHeader("X-Test", "2"))
	assert.Equal(t, "1", r.Header("X-Test"))
	assert.False(t, r.SetConnectTimeout(time.Second))
}

func TestCancelIsMonotonic(t *testing.T) {
	r := NewRequest(GET, "http://example.test/")

	assert.True(t, r.Cancel())
	assert.True(t, r.Cancelled())
	assert.False(t, r.Cancel(), "second Cancel must report false")

	select {
	case <-r.CancelChan():
	default:
		t.Fatal("CancelChan must be closed after Cancel")
	}
}

func TestBodySourceReplacesOnSubsequentSet(t *testing.T) {
	r := NewRequest(POST, "http://example.test/")
	r.SetBytesBody([]byte("first"), "text/plain")
	r.SetBytesBody([]byte("second"), "text/plain")

	assert.True(t, r.IsUpload())
	assert.Equal(t, int64(len("second")), r.Body().Size)
}

func TestFinishInvokesFinishCallbackOnce(t *testing.T) {
	r := NewRequest(GET, "http://example.test/")
	calls := 0
	r.OnFinish(func(req *Request) { calls++ })

	resp := NewResponseFrom(HTTP11, 200, "OK", NewHeader())
	r.Finish(resp, nil)

	assert.Equal(t, 1, calls)
	assert.True(t, r.Finished())
	assert.Same(t, resp, r.Response())
	assert.NoError(t, r.Err())
}

func TestUploadProgressReporting(t *testing.T) {
	r := NewRequest(POST, "http://example.test/")
	r.SetBytesBody(make([]byte, 100), "application/octet-stream")

	var sent, total int64
	r.OnUploadProgress(func(s, tot int64) { sent, total = s, tot })

	r.AddSentBytes(40)
	r.ReportUploadProgress(r.SentBytes(), r.UploadSize())

	assert.Equal(t, int64(40), sent)
	assert.Equal(t, int64(100), total)
	assert.InDelta(t, 0.4, r.UploadProgress(), 0.0001)
}
