/*
 * Copyright (c) 2013 BiasedBit
 * Use of this source code is governed by an Apache 2.0 license that can be found in the LICENSE file.
 */

package reqctx

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadReaderWithholdsUntilRelease(t *testing.T) {
	var seen int
	r := newUploadReader(bytes.NewBufferString("hello"), false, func(n int) { seen += n })

	done := make(chan struct{})
	var buf [16]byte
	var n int
	var err error
	go func() {
		n, err = r.Read(buf[:])
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Read returned before release")
	case <-time.After(20 * time.Millisecond):
	}

	r.release()
	<-done

	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
	assert.Equal(t, n, seen)
}

func TestUploadReaderGateOpenIsPassthrough(t *testing.T) {
	r := newUploadReader(bytes.NewBufferString("world"), true, nil)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "world", string(got))
}

func TestUploadReaderAbortEndsWithEOF(t *testing.T) {
	r := newUploadReader(bytes.NewBufferString("never sent"), false, nil)
	r.abort()

	var buf [8]byte
	n, err := r.Read(buf[:])
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)
}

func TestUploadReaderAbortIsIdempotent(t *testing.T) {
	r := newUploadReader(bytes.NewBufferString("x"), true, nil)
	r.abort()
	assert.NotPanics(t, func() { r.abort() })
}
