/*
 * Copyright (c) 2013 BiasedBit
 * Use of this source code is governed by an Apache 2.0 license that can be found in the LICENSE file.
 */

package bbhttp

// ContentHandler is the content-sink protocol (spec.md §4.3, component C1).
// A response body is streamed through exactly one ContentHandler. Prepare
// is called at most once, before any Append; after zero or more Append
// calls the transfer ends with ParseContent on success, or with Cleanup on
// abnormal termination. A ParseContent failure is followed by Cleanup, and
// a transport error before the response arrives calls Cleanup without
// Prepare.
//
// Concrete sinks (byte accumulators, UTF-8 strings, JSON trees, image
// decoders, file writers, stream pipes) are external collaborators per
// spec.md §1; this package defines only the contract and the one reference
// implementation the spec calls for (package sink, type Discarder).
type ContentHandler interface {
	// Prepare is called once the status line and all response headers have
	// been parsed, before the first body byte arrives. Returning a non-nil
	// error rejects the response: the context aborts the transfer and
	// surfaces the error (typically wrapping CodeUnacceptableContentType)
	// without delivering any body byte to this handler.
	Prepare(status int, reason string, headers Header) error

	// Append consumes a chunk of body bytes and returns how many of them it
	// actually consumed. Returning fewer than len(p) aborts the transfer
	// with CodeDownloadCannotWriteToHandler.
	Append(p []byte) (consumed int, err error)

	// ParseContent is called exactly once, after the last Append, to
	// produce the final decoded artifact. Not called if Prepare rejected
	// the response or the transfer was aborted before completion.
	ParseContent() (content interface{}, err error)

	// Cleanup is invoked on abnormal termination (sink rejection, transport
	// error, cancellation, or ParseContent failure) so partially written state — an open file, a
	// partially filled buffer — can be released. Implementations for which
	// this is a no-op may embed NopCleanup.
	Cleanup()
}

// NopCleanup provides a no-op Cleanup, for ContentHandler implementations
// with no state to release.
type NopCleanup struct{}

// Cleanup does nothing.
func (NopCleanup) Cleanup() {}
