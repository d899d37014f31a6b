/*
 * Copyright (c) 2013 BiasedBit
 * Use of this source code is governed by an Apache 2.0 license that can be found in the LICENSE file.
 */

package bbhttp

// Response is an accumulating value built by the request context as a
// status line, header block, and body stream through (spec.md §3,
// component C2). 1xx interim responses and the final response are both
// represented by this type (spec.md §9 "Interim responses (1xx)").
type Response struct {
	Version ProtocolVersion
	Code    int
	Message string
	Header  Header

	// Content is the artifact produced by the sink's ParseContent, nil for
	// interim responses, discarded responses, and failed transfers.
	Content interface{}
	// ContentSize is the number of body bytes read for this response; it is
	// 0 for interim responses, for responses whose body was discarded under
	// the discard-on-non-2xx option, and for failed transfers.
	ContentSize int64
	// Successful mirrors spec.md §6: "sink accepted and transfer completed
	// without error".
	Successful bool
}

// NewResponseFrom constructs a Response from a parsed status line and its
// header block. Content/ContentSize/Successful are populated exactly once,
// on finalize.
func NewResponseFrom(version ProtocolVersion, code int, message string, header Header) *Response {
	if header == nil {
		header = NewHeader()
	}
	return &Response{Version: version, Code: code, Message: message, Header: header}
}

// IsInterim reports whether this is a 1xx response (spec.md glossary
// "Interim response. Any response with status < 200; does not terminate the
// exchange.").
func (r *Response) IsInterim() bool { return r.Code >= 100 && r.Code < 200 }

// FinishContent records the sink's output, size and success flag. The
// request context calls it once per final response, on finalize; the method
// itself does not guard against later calls.
func (r *Response) FinishContent(content interface{}, size int64, successful bool) {
	r.Content = content
	r.ContentSize = size
	r.Successful = successful
}
