/*
 * Copyright (c) 2013 BiasedBit
 * Use of this source code is governed by an Apache 2.0 license that can be found in the LICENSE file.
 */

package reqctx

import (
	"io"
	"sync"
)

// uploadReader wraps a Request's body source and withholds the first byte
// until the Context decides the upload may proceed (spec.md §4.2
// "100-Continue coordination"). It is grounded on
// badu-http/src/http/expect_continue_reader.go and
// badu-http/transfer_body_reader.go, adapted from the server side (which
// writes "100 Continue" before releasing the handler's read loop) to the
// client side (which withholds its own upload until the server's "100
// Continue" is observed via httptrace).
//
// Once released, every Read is also visible to onChunk, which the Context
// uses to update Request.sentBytes and fire the upload progress callback.
type uploadReader struct {
	src     io.Reader
	onChunk func(n int)

	gateOnce sync.Once
	gate     chan struct{} // closed when sending may proceed
	abortCh  chan struct{} // closed when the upload must stop without sending more

	mu      sync.Mutex
	aborted bool
}

// newUploadReader returns a reader that will not yield any bytes until
// release() or abort() is called. If gateOpen is true, it behaves like a
// plain passthrough (no pausing at all) — used when Expect: 100-Continue is
// suppressed.
func newUploadReader(src io.Reader, gateOpen bool, onChunk func(n int)) *uploadReader {
	r := &uploadReader{
		src:     src,
		onChunk: onChunk,
		gate:    make(chan struct{}),
		abortCh: make(chan struct{}),
	}
	if gateOpen {
		close(r.gate)
	}
	return r
}

// release opens the gate, allowing Read calls to reach src. Safe to call
// more than once or concurrently with Read.
func (r *uploadReader) release() {
	r.gateOnce.Do(func() { close(r.gate) })
}

// abort prevents any further bytes from being sent. If the gate was never
// released, pending/future Read calls return io.EOF immediately.
func (r *uploadReader) abort() {
	r.mu.Lock()
	r.aborted = true
	r.mu.Unlock()
	select {
	case <-r.abortCh:
	default:
		close(r.abortCh)
	}
}

func (r *uploadReader) Read(p []byte) (int, error) {
	select {
	case <-r.gate:
	case <-r.abortCh:
		return 0, io.EOF
	}
	r.mu.Lock()
	aborted := r.aborted
	r.mu.Unlock()
	if aborted {
		return 0, io.EOF
	}
	n, err := r.src.Read(p)
	if n > 0 && r.onChunk != nil {
		r.onChunk(n)
	}
	return n, err
}

func (r *uploadReader) Close() error {
	if rc, ok := r.src.(io.ReadCloser); ok {
		return rc.Close()
	}
	return nil
}
