/*
 * Copyright (c) 2013 BiasedBit
 * Use of this source code is governed by an Apache 2.0 license that can be found in the LICENSE file.
 */

package bbhttp

import (
	"sync"
	"sync/atomic"
	"time"
)

// Verb is an HTTP request method, restricted to spec.md §6's recognized set.
type Verb string

const (
	GET     Verb = "GET"
	HEAD    Verb = "HEAD"
	POST    Verb = "POST"
	PUT     Verb = "PUT"
	DELETE  Verb = "DELETE"
	PATCH   Verb = "PATCH"
	OPTIONS Verb = "OPTIONS"
)

// ProtocolVersion is the HTTP/1.x wire version a Request is executed under
// (spec.md §3 "protocol version ∈ {1.0, 1.1}").
type ProtocolVersion int

const (
	HTTP10 ProtocolVersion = iota
	HTTP11
)

func (v ProtocolVersion) String() string {
	if v == HTTP10 {
		return "HTTP/1.0"
	}
	return "HTTP/1.1"
}

// StartFunc, FinishFunc and ProgressFunc are the request lifecycle callback
// blocks (spec.md §3 "lifecycle callbacks (start, finish, upload progress,
// download progress)"). The start and finish callbacks are invoked at most
// once each: their slot is cleared before the call. The progress callbacks
// are invoked once per chunk sent or received. FinishFunc is shared by the finish/error/cancelled outcomes;
// callers distinguish them by inspecting Request.Err()/Request.Cancelled().
type (
	StartFunc    func(req *Request)
	FinishFunc   func(req *Request)
	ProgressFunc func(sent, total int64)
)

// Request describes one outbound HTTP/1.x call (spec.md §3, component C3).
// It is immutable with respect to URL and Verb after construction, and
// entirely immutable (including headers) once Started() becomes true
// (spec.md §3 "headers may not be mutated after started becomes true").
type Request struct {
	mu sync.Mutex

	url     string
	verb    Verb
	version ProtocolVersion
	header  Header
	body    *BodySource
	sink    ContentHandler

	connectTimeout       time.Duration
	readTimeout          time.Duration
	maxRedirects         int
	suppressExpect100    bool
	discardOnNon2xx      bool
	forceChunked         bool
	allowInvalidTLS      bool

	onStart    StartFunc
	onFinish   FinishFunc
	onUpload   ProgressFunc
	onDownload ProgressFunc

	started  atomic.Bool
	finished atomic.Bool
	cancel   atomic.Bool
	cancelCh chan struct{}

	startedAtMillis atomic.Int64
	endedAtMillis   atomic.Int64
	sentBytes       atomic.Int64
	receivedBytes   atomic.Int64

	err      error
	response *Response
}

// NewRequest builds a Request targeting url with the given verb, defaulting
// to HTTP/1.1 and the shared Discarder sink (spec.md §3 "response sink...
// defaults to the shared discarder").
func NewRequest(verb Verb, url string) *Request {
	return NewRequestVersion(verb, url, HTTP11)
}

// NewRequestVersion is NewRequest with an explicit protocol version.
func NewRequestVersion(verb Verb, url string, version ProtocolVersion) *Request {
	return &Request{
		url:             url,
		verb:            verb,
		version:         version,
		header:          NewHeader(),
		connectTimeout:  30 * time.Second,
		readTimeout:     0,
		maxRedirects:    0,
		discardOnNon2xx: true,
		cancelCh:        make(chan struct{}),
	}
}

func (r *Request) URL() string             { return r.url }
func (r *Request) Verb() Verb              { return r.verb }
func (r *Request) Version() ProtocolVersion { return r.version }

// Header returns the value of a single header, or "" if unset.
func (r *Request) Header(name string) string { return r.header.Get(name) }

// SetHeader sets or replaces a header. Returns false if the request has
// already started (spec.md §3 "headers may not be mutated after started
// becomes true"), in which case the header map is left unchanged.
func (r *Request) SetHeader(name, value string) bool {
	if r.started.Load() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.header.Set(name, value)
	return true
}

// Headers returns a defensive copy of the full header map.
func (r *Request) Headers() Header {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.header.Clone()
}

// SetBytesBody sets an in-memory upload body, replacing any previous body
// source (spec.md §3 "subsequent sets replace").
func (r *Request) SetBytesBody(data []byte, contentType string) bool {
	if r.started.Load() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.body = NewBytesBody(data, contentType)
	return true
}

// SetFileBody sets the upload body to stream from a local file.
func (r *Request) SetFileBody(path, contentType string) error {
	if r.started.Load() {
		return newError(CodeUploadFileStreamError, "request already started", nil)
	}
	b, err := NewFileBody(path, contentType)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.body = b
	return nil
}

// SetStreamBody sets the upload body to the given source, typically one
// built with NewStreamBody (which takes UnknownSize when the length is not
// known ahead of time).
func (r *Request) SetStreamBody(body *BodySource) bool {
	if r.started.Load() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.body = body
	return true
}

// Body returns the configured upload body source, or nil.
func (r *Request) Body() *BodySource { return r.body }

// IsUpload reports whether this request carries a body to send.
func (r *Request) IsUpload() bool { return r.body != nil && r.body.Kind != BodyNone }

// IsUploadSizeKnown reports whether the upload's total size is known ahead
// of time (spec.md's original BBHTTPRequest.h "isUploadSizeKnown").
func (r *Request) IsUploadSizeKnown() bool { return r.body.KnownSize() }

// SetSink sets the content handler that will consume the response body.
func (r *Request) SetSink(h ContentHandler) bool {
	if r.started.Load() {
		return false
	}
	r.sink = h
	return true
}

// Sink returns the configured content handler, or nil if none was set (the
// caller — reqctx.Context — substitutes the shared Discarder in that case).
func (r *Request) Sink() ContentHandler { return r.sink }

// Configuration option setters. All return false once the request has
// started, mirroring SetHeader's guard.

func (r *Request) SetConnectTimeout(d time.Duration) bool { return r.setIfNotStarted(func() { r.connectTimeout = d }) }
func (r *Request) SetReadTimeout(d time.Duration) bool    { return r.setIfNotStarted(func() { r.readTimeout = d }) }
func (r *Request) SetMaxRedirects(n int) bool             { return r.setIfNotStarted(func() { r.maxRedirects = n }) }
func (r *Request) SetSuppressExpect100(v bool) bool       { return r.setIfNotStarted(func() { r.suppressExpect100 = v }) }
func (r *Request) SetDiscardBodyOnNon2xx(v bool) bool     { return r.setIfNotStarted(func() { r.discardOnNon2xx = v }) }
func (r *Request) SetChunkedTransfer(v bool) bool         { return r.setIfNotStarted(func() { r.forceChunked = v }) }
func (r *Request) SetAllowInvalidTLS(v bool) bool         { return r.setIfNotStarted(func() { r.allowInvalidTLS = v }) }

func (r *Request) setIfNotStarted(f func()) bool {
	if r.started.Load() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	f()
	return true
}

func (r *Request) ConnectTimeout() time.Duration    { return r.connectTimeout }
func (r *Request) ReadTimeout() time.Duration       { return r.readTimeout }
func (r *Request) MaxRedirects() int                { return r.maxRedirects }
func (r *Request) SuppressExpect100() bool          { return r.suppressExpect100 }
func (r *Request) DiscardBodyOnNon2xx() bool        { return r.discardOnNon2xx }
func (r *Request) ChunkedTransfer() bool            { return r.forceChunked }
func (r *Request) AllowInvalidTLS() bool            { return r.allowInvalidTLS }

// Lifecycle callback setters.
func (r *Request) OnStart(f StartFunc) bool       { return r.setIfNotStarted(func() { r.onStart = f }) }
func (r *Request) OnFinish(f FinishFunc) bool      { return r.setIfNotStarted(func() { r.onFinish = f }) }
func (r *Request) OnUploadProgress(f ProgressFunc) bool {
	return r.setIfNotStarted(func() { r.onUpload = f })
}
func (r *Request) OnDownloadProgress(f ProgressFunc) bool {
	return r.setIfNotStarted(func() { r.onDownload = f })
}

// Cancel atomically flips the cancel flag. Monotonic: false -> true, never
// back (spec.md §3 "cancel is monotonic"). Returns false if already
// cancelled.
func (r *Request) Cancel() bool {
	if r.cancel.CompareAndSwap(false, true) {
		close(r.cancelCh)
		return true
	}
	return false
}

// Cancelled reports whether Cancel has been called.
func (r *Request) Cancelled() bool { return r.cancel.Load() }

// CancelChan is closed exactly once, when Cancel is first called. A context
// (reqctx.Context) observes this to abort an active transfer promptly
// (spec.md §5 "Cancellation... the supervisor signals the transport to
// abort the transfer on its next callback").
func (r *Request) CancelChan() <-chan struct{} { return r.cancelCh }

// Started reports whether the executor has bound this request to a handle
// and begun the transfer.
func (r *Request) Started() bool { return r.started.Load() }

// Finished reports whether the request has reached a terminal outcome.
func (r *Request) Finished() bool { return r.finished.Load() }

// SentBytes / ReceivedBytes are running totals updated as the transfer
// progresses.
func (r *Request) SentBytes() int64     { return r.sentBytes.Load() }
func (r *Request) ReceivedBytes() int64 { return r.receivedBytes.Load() }

// UploadSize returns the declared upload size, or 0 if none/unknown.
func (r *Request) UploadSize() int64 {
	if r.body == nil || !r.body.KnownSize() {
		return 0
	}
	return r.body.Size
}

// UploadProgress returns sent/total in [0,1], or 0 if total is unknown.
func (r *Request) UploadProgress() float64 {
	total := r.UploadSize()
	if total == 0 {
		return 0
	}
	return float64(r.SentBytes()) / float64(total)
}

// DownloadSize returns the final response's content size, 0 until finished.
func (r *Request) DownloadSize() int64 {
	if r.response == nil {
		return 0
	}
	return r.response.ContentSize
}

// DownloadProgress returns received/total in [0,1], or 0 if total unknown.
func (r *Request) DownloadProgress() float64 {
	total := r.DownloadSize()
	if total == 0 {
		return 0
	}
	return float64(r.ReceivedBytes()) / float64(total)
}

// elapsed returns the wall time spent so far, used to compute transfer
// rates (original BBHTTPRequest.h uploadTransferRate/downloadTransferRate).
func (r *Request) elapsed() time.Duration {
	start := r.startedAtMillis.Load()
	if start == 0 {
		return 0
	}
	end := r.endedAtMillis.Load()
	if end == 0 {
		end = time.Now().UnixMilli()
	}
	return time.Duration(end-start) * time.Millisecond
}

// UploadTransferRate returns bytes/second sent so far.
func (r *Request) UploadTransferRate() float64 { return rate(r.SentBytes(), r.elapsed()) }

// DownloadTransferRate returns bytes/second received so far.
func (r *Request) DownloadTransferRate() float64 { return rate(r.ReceivedBytes(), r.elapsed()) }

func rate(n int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}

// StartTimestamp / EndTimestamp are Unix millis, 0 before they occur.
func (r *Request) StartTimestamp() int64 { return r.startedAtMillis.Load() }
func (r *Request) EndTimestamp() int64   { return r.endedAtMillis.Load() }

// Err returns the terminal error, if the request failed.
func (r *Request) Err() error { return r.err }

// Response returns the final response, nil until the request finishes
// successfully or with a sink/transport error that still produced a
// response (spec.md §3 "final response").
func (r *Request) Response() *Response { return r.response }

// Successful reports whether the request completed with a successful
// response (spec.md §6 "Successful iff sink accepted and transfer completed
// without error").
func (r *Request) Successful() bool { return r.response != nil && r.response.Successful }

// --- The following setters are used exclusively by package reqctx to drive
// Request state as the transfer progresses; they are not part of the
// caller-facing configuration surface above this line. ---

// MarkStarted flips the started flag and fires the start callback; called
// by package reqctx exactly once, when the executor begins the transfer.
func (r *Request) MarkStarted() {
	r.started.Store(true)
	r.startedAtMillis.Store(time.Now().UnixMilli())
	if r.onStart != nil {
		f := r.onStart
		r.onStart = nil
		f(r)
	}
}

// AddSentBytes / AddReceivedBytes accumulate running byte totals; called by
// package reqctx as chunks are sent/received.
func (r *Request) AddSentBytes(n int64) { r.sentBytes.Add(n) }
func (r *Request) AddReceivedBytes(n int64) { r.receivedBytes.Add(n) }

// ReportUploadProgress / ReportDownloadProgress invoke the configured
// progress callbacks, if any; called by package reqctx.
func (r *Request) ReportUploadProgress(sent, total int64) {
	if r.onUpload != nil {
		r.onUpload(sent, total)
	}
}

func (r *Request) ReportDownloadProgress(received, total int64) {
	if r.onDownload != nil {
		r.onDownload(received, total)
	}
}

// Finish writes the terminal outcome and fires the finish callback exactly
// once; called by package reqctx when the state machine reaches Finished.
func (r *Request) Finish(resp *Response, err error) {
	r.mu.Lock()
	r.response = resp
	r.err = err
	r.mu.Unlock()
	r.endedAtMillis.Store(time.Now().UnixMilli())
	r.finished.Store(true)
	if r.onFinish != nil {
		f := r.onFinish
		r.onFinish = nil
		f(r)
	}
}

// EffectiveSink returns the configured sink, or fallback if none was set —
// exported for package reqctx. This package cannot name sink.Shared itself
// (package sink imports this one), so the executor passes sink.Shared as
// fallback when it builds the reqctx.Context.
func (r *Request) EffectiveSink(fallback ContentHandler) ContentHandler {
	if r.sink != nil {
		return r.sink
	}
	return fallback
}
