/*
 * Copyright (c) 2013 BiasedBit
 * Use of this source code is governed by an Apache 2.0 license that can be found in the LICENSE file.
 */

package bbhttp

import "fmt"

// Code identifies the kind of failure that terminated a Request. Codes are
// part of the external contract (spec.md §6 "Error taxonomy") — callers may
// switch on them, so values are never renumbered, only added to.
type Code int

const (
	// CodeTransport covers connect/read/TLS/protocol failures reported by
	// the underlying transport engine. Err wraps the transport's own error.
	CodeTransport Code = iota
	// CodeCancelled marks a request whose cancel flag was observed before
	// or during execution. Per spec.md §7 this is not an "error" in the
	// callback sense — it is surfaced via the cancelled callback — but it
	// still carries a Code so Error can represent it uniformly internally.
	CodeCancelled
	// CodeUploadFileStreamError is returned when reading the upload file
	// source fails mid-transfer.
	CodeUploadFileStreamError
	// CodeUploadDataStreamError is returned when reading a caller-supplied
	// upload stream fails mid-transfer.
	CodeUploadDataStreamError
	// CodeDownloadCannotWriteToHandler is returned when a sink's Append
	// consumes fewer bytes than it was given.
	CodeDownloadCannotWriteToHandler
	// CodeUnacceptableContentType is returned when a sink's Prepare rejects
	// the response.
	CodeUnacceptableContentType
	// CodeImageDecodingFailed is reserved for image-decoding sinks; the core
	// never produces it itself (image decoding is an external collaborator,
	// spec.md §1) but it is part of the shared taxonomy so such sinks can
	// surface failures through the same Error type.
	CodeImageDecodingFailed
	// CodeSinkError covers a ContentHandler.ParseContent failure that isn't
	// one of the specific codes above — spec.md §7 describes these as
	// "sink-specific" without naming one; the core tags them with this code
	// while preserving the sink's own error as Cause.
	CodeSinkError
)

func (c Code) String() string {
	switch c {
	case CodeTransport:
		return "Transport"
	case CodeCancelled:
		return "Cancelled"
	case CodeUploadFileStreamError:
		return "UploadFileStreamError"
	case CodeUploadDataStreamError:
		return "UploadDataStreamError"
	case CodeDownloadCannotWriteToHandler:
		return "DownloadCannotWriteToHandler"
	case CodeUnacceptableContentType:
		return "UnacceptableContentType"
	case CodeImageDecodingFailed:
		return "ImageDecodingFailed"
	case CodeSinkError:
		return "SinkError"
	default:
		return "Unknown"
	}
}

// Error is the error type surfaced through Request.Err() once the finish
// callback fires. It wraps an optional underlying cause so
// callers can use errors.Is/errors.As against both the Code and the cause.
type Error struct {
	Code Code
	// TransportCode holds a numeric code from the transport engine. No code
	// in this module sets it: errors built by NewError, CodeTransport ones
	// included, leave it 0, and a 417 reply to Expect: 100-Continue is
	// delivered as the final Response rather than as an Error.
	TransportCode int
	Message       string
	Cause         error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("bbhttp: %s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("bbhttp: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, bbhttp.ErrCancelled) style sentinel checks against
// the Code alone, ignoring Cause and Message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// NewError builds an Error with the given Code, message and wrapped cause.
// Exported for package reqctx, which classifies transport/sink failures
// into this taxonomy as they occur.
func NewError(code Code, message string, cause error) *Error {
	return newError(code, message, cause)
}

// Sentinel errors for errors.Is comparisons; only the Code is significant.
var (
	ErrCancelled                   = &Error{Code: CodeCancelled}
	ErrUploadFileStreamError       = &Error{Code: CodeUploadFileStreamError}
	ErrUploadDataStreamError       = &Error{Code: CodeUploadDataStreamError}
	ErrDownloadCannotWriteToHandler = &Error{Code: CodeDownloadCannotWriteToHandler}
	ErrUnacceptableContentType     = &Error{Code: CodeUnacceptableContentType}
)
