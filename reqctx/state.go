/*
 * Copyright (c) 2013 BiasedBit
 * Use of this source code is governed by an Apache 2.0 license that can be found in the LICENSE file.
 */

// Package reqctx implements the per-request state machine (spec.md §4.2,
// component C4): it owns the transfer's current and past Responses,
// coordinates the Expect: 100-Continue handshake, streams the response body
// through a content handler, and finalizes the owning Request. It is driven
// by package executor, which passes in the http.RoundTripper of a package
// transport Handle.
package reqctx

// State is one of the six phases a Context moves through while executing
// its Request (spec.md §4.2 "States").
type State int

const (
	Ready State = iota
	SendingData
	ReadingStatusLine
	ReadingHeaders
	ReadingData
	Finished
)

func (s State) String() string {
	switch s {
	case Ready:
		return "Ready"
	case SendingData:
		return "SendingData"
	case ReadingStatusLine:
		return "ReadingStatusLine"
	case ReadingHeaders:
		return "ReadingHeaders"
	case ReadingData:
		return "ReadingData"
	case Finished:
		return "Finished"
	default:
		return "Unknown"
	}
}
