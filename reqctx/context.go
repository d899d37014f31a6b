/*
 * Copyright (c) 2013 BiasedBit
 * Use of this source code is governed by an Apache 2.0 license that can be found in the LICENSE file.
 */

package reqctx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/textproto"
	"net/url"
	"sync"
	"time"

	"github.com/biasedbit/bbhttp"
	"github.com/biasedbit/bbhttp/transport"
)

const readChunkSize = 32 * 1024

// Context is the per-request state machine (spec.md §4.2, component C4). It
// owns exactly one transport handle's transfer for the lifetime of its
// Request, routes data from the transport into Request/Response/sink, and
// coordinates the Expect: 100-Continue handshake described in spec.md §4.2.
type Context struct {
	req  *bbhttp.Request
	sink bbhttp.ContentHandler

	mu        sync.Mutex
	state     State
	responses []*bbhttp.Response

	wantExpect100 bool
	expect100Sent bool

	uploadAccepted bool
	uploadAborted  bool
	uploadPaused   bool

	idleReset    func()
	connectTimer *time.Timer
	idleTimer    *time.Timer
}

// New builds a Context for req. fallbackSink is used when req has no sink
// configured (spec.md §3 "response sink... defaults to the shared
// discarder"); the executor supplies sink.Shared, so this package does not
// import package sink.
func New(req *bbhttp.Request, fallbackSink bbhttp.ContentHandler) *Context {
	return &Context{
		req:   req,
		sink:  req.EffectiveSink(fallbackSink),
		state: Ready,
	}
}

func (c *Context) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// State returns the context's current phase.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Responses returns every Response observed so far, finalized interims
// followed by the current one (spec.md §3 "Request Context").
func (c *Context) Responses() []*bbhttp.Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*bbhttp.Response, len(c.responses))
	copy(out, c.responses)
	return out
}

func (c *Context) addResponse(r *bbhttp.Response) {
	c.mu.Lock()
	c.responses = append(c.responses, r)
	c.mu.Unlock()
}

// UploadAccepted reports whether the server sent "100 Continue" for an
// Expect-gated upload.
func (c *Context) UploadAccepted() bool { c.mu.Lock(); defer c.mu.Unlock(); return c.uploadAccepted }

// UploadAborted reports whether the upload was withheld because the server
// responded before (or instead of) sending "100 Continue".
func (c *Context) UploadAborted() bool { c.mu.Lock(); defer c.mu.Unlock(); return c.uploadAborted }

// Execute drives req's transfer to completion using rt as the underlying
// transport engine (conceptually a libcurl easy handle — see SPEC_FULL.md
// §1). It always finalizes req (calling its FinishFunc) before returning,
// matching spec.md §8's "exactly one of {finish, error, cancelled}
// callbacks fires, followed by exactly one finally" — the "finally" step
// (handle release back to the pool) is the executor's responsibility, run
// after Execute returns.
func (c *Context) Execute(parentCtx context.Context, rt http.RoundTripper) {
	c.req.MarkStarted()

	if c.req.Cancelled() {
		c.setState(Finished)
		c.req.Finish(nil, bbhttp.ErrCancelled)
		return
	}

	execCtx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	cancelled := make(chan struct{})
	go func() {
		select {
		case <-c.req.CancelChan():
			close(cancelled)
			cancel()
		case <-execCtx.Done():
		}
	}()

	targetURL := c.req.URL()
	verb := c.req.Verb()
	includeBody := true
	redirectsLeft := c.req.MaxRedirects()

	for {
		c.stopTimers()

		httpReq, uploadR, err := c.buildRequest(execCtx, targetURL, verb, includeBody)
		if err != nil {
			c.finishWithError(nil, err)
			return
		}

		httpReq = httpReq.WithContext(c.attachTrace(execCtx, uploadR, cancel))

		if includeBody && c.req.IsUpload() {
			c.setState(SendingData)
		}

		resp, err := rt.RoundTrip(httpReq)
		if err != nil {
			if uploadR != nil {
				uploadR.abort()
			}
			c.sink.Cleanup()
			select {
			case <-cancelled:
				c.setState(Finished)
				c.req.Finish(nil, bbhttp.ErrCancelled)
			default:
				c.finishWithError(nil, bbhttp.NewError(bbhttp.CodeTransport, "transport round trip failed", err))
			}
			return
		}

		if c.wantExpect100 && !c.uploadAccepted {
			c.mu.Lock()
			c.uploadAborted = true
			c.mu.Unlock()
			if uploadR != nil {
				uploadR.abort()
			}
		}

		// spec.md §6 "max_redirects — redirect budget; 0 disables": follow
		// 3xx responses carrying a Location header, up to the configured
		// budget, mirroring net/http.Client's default redirect semantics
		// (301/302 downgrade POST to GET and drop the body, 303 always
		// downgrades to GET, 307/308 preserve method and body).
		if redirectsLeft > 0 && isRedirectStatus(resp.StatusCode) {
			if location := resp.Header.Get("Location"); location != "" {
				next, rerr := resolveRedirect(targetURL, location)
				if rerr == nil {
					nextVerb, nextIncludeBody, resendable := redirectMethodAndBody(verb, resp.StatusCode, c.req.IsUpload(), c.req.Body())
					if resendable {
						resp.Body.Close()
						redirectsLeft--
						targetURL, verb, includeBody = next, nextVerb, nextIncludeBody
						c.mu.Lock()
						c.wantExpect100, c.expect100Sent, c.uploadAccepted, c.uploadAborted = false, false, false, false
						c.mu.Unlock()
						continue
					}
				}
			}
		}

		c.ingestFinal(execCtx, resp, cancelled)
		resp.Body.Close()
		return
	}
}

// isRedirectStatus reports whether code is a 3xx this context knows how to
// follow under spec.md §6's max_redirects budget.
func isRedirectStatus(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

// resolveRedirect resolves a Location header value against the URL it was
// received in response to, per RFC 7231 §7.1.2 (Location may be relative).
func resolveRedirect(base, location string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	loc, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(loc).String(), nil
}

// redirectMethodAndBody computes the verb and body-inclusion policy for the
// next hop of a redirect follow. resendable is false when the body cannot
// be safely resent (a stream source already drained once), in which case
// the caller must stop following and finalize on the redirect response
// itself rather than risk sending a truncated or empty body.
func redirectMethodAndBody(verb bbhttp.Verb, status int, isUpload bool, body *bbhttp.BodySource) (bbhttp.Verb, bool, bool) {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound:
		if verb == bbhttp.POST {
			return bbhttp.GET, false, true
		}
		return verb, false, true
	case http.StatusSeeOther:
		if verb == bbhttp.HEAD {
			return bbhttp.HEAD, false, true
		}
		return bbhttp.GET, false, true
	case http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		if isUpload && body != nil && body.Kind == bbhttp.BodyStream {
			return verb, isUpload, false
		}
		return verb, isUpload, true
	default:
		return verb, isUpload, false
	}
}

// buildRequest translates the Request into an outgoing *http.Request bound
// for targetURL with the given verb, installing a gated upload reader when
// an Expect: 100-Continue handshake is in play (spec.md §4.2). includeBody
// is false when a redirect follow has downgraded the call to a bodyless
// GET/HEAD (spec.md §6 max_redirects).
func (c *Context) buildRequest(ctx context.Context, targetURL string, verb bbhttp.Verb, includeBody bool) (*http.Request, *uploadReader, error) {
	var body io.Reader
	var uploadR *uploadReader

	sendBody := includeBody && c.req.IsUpload()
	if sendBody {
		src, err := c.req.Body().OpenForTransfer()
		if err != nil {
			return nil, nil, err
		}

		c.wantExpect100 = !c.req.SuppressExpect100()
		gateOpen := !c.wantExpect100
		uploadR = newUploadReader(src, gateOpen, func(n int) {
			total := c.req.UploadSize()
			sent := c.req.SentBytes() + int64(n)
			c.req.AddSentBytes(int64(n))
			c.req.ReportUploadProgress(sent, total)
		})
		body = uploadR
	}

	resolvedURL, err := transport.ResolveHost(targetURL)
	if err != nil {
		return nil, nil, bbhttp.NewError(bbhttp.CodeTransport, "resolve host", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, string(verb), resolvedURL, body)
	if err != nil {
		return nil, nil, bbhttp.NewError(bbhttp.CodeTransport, "invalid request", err)
	}

	httpReq.Header = c.req.Headers().ToNetHeader()
	if c.req.Version() == bbhttp.HTTP10 {
		httpReq.Proto = "HTTP/1.0"
		httpReq.ProtoMajor, httpReq.ProtoMinor = 1, 0
	}

	if sendBody {
		src := c.req.Body()
		switch {
		case c.req.ChunkedTransfer():
			httpReq.ContentLength = -1
		case src.KnownSize():
			httpReq.ContentLength = src.Size
		default:
			httpReq.ContentLength = -1 // unknown size forces chunked transfer (spec.md §3)
		}
		if c.wantExpect100 {
			httpReq.Header.Set("Expect", "100-Continue")
			c.expect100Sent = true
		}
	} else {
		httpReq.Header.Del("Content-Type")
		httpReq.Header.Del("Expect")
	}

	return httpReq, uploadR, nil
}

// attachTrace wires httptrace hooks into execCtx so the transport engine's
// 1xx interim responses, connect completion, and request-write completion
// drive this context's state machine without us re-implementing socket
// framing (spec.md §1, §4.4).
func (c *Context) attachTrace(ctx context.Context, uploadR *uploadReader, cancel context.CancelFunc) context.Context {
	connectTimeout := c.req.ConnectTimeout()
	if connectTimeout > 0 {
		c.connectTimer = time.AfterFunc(connectTimeout, cancel)
	}

	readTimeout := c.req.ReadTimeout()
	resetIdle := func() {
		if readTimeout <= 0 {
			return
		}
		if c.idleTimer == nil {
			c.idleTimer = time.AfterFunc(readTimeout, cancel)
			return
		}
		c.idleTimer.Reset(readTimeout)
	}

	trace := &httptrace.ClientTrace{
		ConnectDone: func(network, addr string, err error) {
			if c.connectTimer != nil {
				c.connectTimer.Stop()
			}
		},
		Got1xxResponse: func(code int, header textproto.MIMEHeader) error {
			c.recordInterim(code, header)
			if code == http.StatusContinue {
				c.mu.Lock()
				c.uploadAccepted = true
				c.mu.Unlock()
				if uploadR != nil {
					uploadR.release()
				}
			}
			return nil
		},
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			resetIdle()
		},
		GotFirstResponseByte: func() {
			c.setState(ReadingStatusLine)
			resetIdle()
		},
	}
	c.idleReset = resetIdle
	return httptrace.WithClientTrace(ctx, trace)
}

// idleReset is set by attachTrace and invoked on every body chunk read, so
// the inter-byte read-idle timeout (spec.md §9 Open Question) is honored —
// unlike the original's commented-out, non-functional responseReadTimeout.
func (c *Context) resetIdleTimer() {
	if c.idleReset != nil {
		c.idleReset()
	}
}

// stopTimers halts any connect/idle timers left running from a previous
// redirect hop so a late fire cannot cancel the next hop's transfer (each
// call to attachTrace installs fresh timers for the hop it is guarding).
func (c *Context) stopTimers() {
	if c.connectTimer != nil {
		c.connectTimer.Stop()
		c.connectTimer = nil
	}
	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}
	c.idleReset = nil
}

func (c *Context) recordInterim(code int, header textproto.MIMEHeader) {
	resp := bbhttp.NewResponseFrom(c.req.Version(), code, http.StatusText(code), bbhttp.HeaderFromTextproto(header))
	c.addResponse(resp)
	c.setState(ReadingHeaders)
}

// ingestFinal streams the final response's body through the sink (or the
// no-op discard path) and finalizes the Request.
func (c *Context) ingestFinal(ctx context.Context, resp *http.Response, cancelled <-chan struct{}) {
	c.setState(ReadingHeaders)
	final := bbhttp.NewResponseFrom(c.req.Version(), resp.StatusCode, resp.Status, bbhttp.HeaderFromNet(resp.Header))
	c.addResponse(final)

	discard := c.req.DiscardBodyOnNon2xx() && (resp.StatusCode < 200 || resp.StatusCode >= 300)

	if !discard {
		if err := c.sink.Prepare(resp.StatusCode, resp.Status, bbhttp.HeaderFromNet(resp.Header)); err != nil {
			c.sink.Cleanup()
			c.finishWithError(final, bbhttp.NewError(bbhttp.CodeUnacceptableContentType, "sink rejected response", err))
			return
		}
	}

	c.setState(ReadingData)
	declaredTotal := resp.ContentLength
	if declaredTotal < 0 {
		declaredTotal = 0
	}

	buf := make([]byte, readChunkSize)
	var total int64
	for {
		select {
		case <-cancelled:
			c.sink.Cleanup()
			c.setState(Finished)
			c.req.Finish(nil, bbhttp.ErrCancelled)
			return
		case <-ctx.Done():
			c.sink.Cleanup()
			c.setState(Finished)
			c.req.Finish(nil, bbhttp.NewError(bbhttp.CodeTransport, "context done while reading body", ctx.Err()))
			return
		default:
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			c.resetIdleTimer()
			total += int64(n)
			c.req.AddReceivedBytes(int64(n))
			c.req.ReportDownloadProgress(total, declaredTotal)

			if !discard {
				consumed, appendErr := c.sink.Append(buf[:n])
				if appendErr != nil || consumed < n {
					c.sink.Cleanup()
					c.finishWithError(final, bbhttp.NewError(bbhttp.CodeDownloadCannotWriteToHandler, "sink did not consume all bytes", appendErr))
					return
				}
			}
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			c.sink.Cleanup()
			c.finishWithError(final, bbhttp.NewError(bbhttp.CodeTransport, "error reading response body", readErr))
			return
		}
	}

	if discard {
		final.FinishContent(nil, 0, false)
		c.setState(Finished)
		c.req.Finish(final, nil)
		return
	}

	content, err := c.sink.ParseContent()
	if err != nil {
		c.sink.Cleanup()
		c.finishWithError(final, bbhttp.NewError(bbhttp.CodeSinkError, "sink failed to parse content", err))
		return
	}

	final.FinishContent(content, total, true)
	c.setState(Finished)
	c.req.Finish(final, nil)
}

func (c *Context) finishWithError(final *bbhttp.Response, err error) {
	c.setState(Finished)
	c.req.Finish(final, err)
}
