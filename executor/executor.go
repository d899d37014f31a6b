/*
 * Copyright (c) 2013 BiasedBit
 * Use of this source code is governed by an Apache 2.0 license that can be found in the LICENSE file.
 */

// Package executor implements the Executor (spec.md §4.1, component C6):
// the handle pool, the FIFO admission queue, and the dispatcher that binds
// queued requests to free handles. It is the only package that constructs
// package reqctx Contexts against package transport Handles — callers only
// ever see Submit/CancelAll/Shutdown/Configure.
package executor

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/biasedbit/bbhttp"
	"github.com/biasedbit/bbhttp/reqctx"
	"github.com/biasedbit/bbhttp/sink"
	"github.com/biasedbit/bbhttp/transport"
)

// Executor owns the pool, the queue, and the active set (spec.md §3
// "Executor"). The zero value is not usable; build one with New.
type Executor struct {
	id string

	mu      sync.Mutex
	closed  bool
	idle    []*transport.Handle
	nextID  int
	queue   []*bbhttp.Request
	active  map[*bbhttp.Request]*reqctx.Context

	maxParallel          int
	maxQueue             int
	verbose              bool
	dontReuseConnections bool
	proxyURL             *url.URL
	tracing              bool

	logger logrus.FieldLogger
	tracer trace.Tracer
}

// New builds a named Executor (spec.md §4.1 "Additional named executors are
// allowed; they do not share pools"), applying opts over the spec's
// defaults (max_parallel=3, max_queue=1024).
func New(id string, opts ...Option) *Executor {
	e := &Executor{
		id:          id,
		active:      make(map[*bbhttp.Request]*reqctx.Context),
		maxParallel: 3,
		maxQueue:    1024,
		logger:      logrus.StandardLogger(),
		tracer:      otel.Tracer("bbhttp"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Configure applies opts to a running Executor (spec.md §4.1 "safe to
// change at runtime").
func (e *Executor) Configure(opts ...Option) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, opt := range opts {
		opt(e)
	}
}

// Submit admits req (spec.md §4.1 "submit(request) → bool"). It rejects
// (false, no callback fires) a nil request, an already-cancelled request,
// a shut-down executor, or a full queue; otherwise it starts the transfer
// immediately if a handle is free and under max_parallel, else enqueues it
// FIFO.
func (e *Executor) Submit(req *bbhttp.Request) bool {
	if req == nil || req.Cancelled() {
		return false
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	if len(e.active)+len(e.queue) >= e.maxParallel+e.maxQueue {
		e.mu.Unlock()
		return false
	}

	if handle, ok := e.checkoutIdleLocked(); ok {
		e.mu.Unlock()
		e.start(req, handle)
		return true
	}

	e.queue = append(e.queue, req)
	e.logDispatchLocked("enqueued", req)
	e.mu.Unlock()
	return true
}

// checkoutIdleLocked returns a ready-to-use handle if one is idle and the
// executor is under max_parallel, building a fresh one if the pool has not
// yet reached max_parallel handles. Must be called with e.mu held.
func (e *Executor) checkoutIdleLocked() (*transport.Handle, bool) {
	if len(e.active) >= e.maxParallel {
		return nil, false
	}
	var h *transport.Handle
	if n := len(e.idle); n > 0 {
		h = e.idle[n-1]
		e.idle = e.idle[:n-1]
	} else {
		e.nextID++
		h = transport.NewHandle(e.nextID)
	}
	if err := h.Configure(e.handleConfigLocked()); err != nil {
		e.logger.WithError(err).Error("bbhttp: configure handle failed")
	}
	return h, true
}

func (e *Executor) handleConfigLocked() transport.Config {
	return transport.Config{
		DontReuseConnections: e.dontReuseConnections,
		Verbose:              e.verbose,
		ProxyURL:             e.proxyURL,
		Tracing:              e.tracing,
	}
}

// start binds req to handle and runs its transfer on its own goroutine
// (spec.md §5 "Submission from any thread is safe"; the dispatcher itself
// only ever touches the mutex-guarded pool/queue/active state, matching
// spec.md §5's "held only for O(1) operations").
func (e *Executor) start(req *bbhttp.Request, handle *transport.Handle) {
	handle.ConfigureTLS(req.AllowInvalidTLS())

	ctx := reqctx.New(req, sink.Shared)

	e.mu.Lock()
	e.active[req] = ctx
	e.logDispatchLocked("start", req)
	e.mu.Unlock()

	go func() {
		execCtx := context.Background()
		var span trace.Span
		if e.tracing {
			execCtx, span = e.tracer.Start(execCtx, "bbhttp.request",
				trace.WithAttributes(
					attribute.String("http.method", string(req.Verb())),
					attribute.String("http.url", req.URL()),
				))
		}

		ctx.Execute(execCtx, handle.RoundTripper())

		if span != nil {
			if resp := req.Response(); resp != nil {
				span.SetAttributes(attribute.Int("http.status_code", resp.Code))
			}
			if err := req.Err(); err != nil {
				span.RecordError(err)
			}
			span.End()
		}

		e.logDispatch("finish", req)
		e.checkin(req, handle)
	}()
}

// logDispatch acquires the lock to snapshot pool depth before logging.
func (e *Executor) logDispatch(event string, req *bbhttp.Request) {
	if !e.verbose {
		return
	}
	e.mu.Lock()
	e.logDispatchLocked(event, req)
	e.mu.Unlock()
}

// checkin releases handle back to the pool and dispatches the next queued
// request, if any (spec.md §4.1 "Dispatch" steps 1–4).
func (e *Executor) checkin(req *bbhttp.Request, handle *transport.Handle) {
	e.mu.Lock()
	delete(e.active, req)

	handle.Reset()
	if e.dontReuseConnections || req.Err() != nil {
		handle.Close()
	}

	for len(e.queue) > 0 {
		next := e.queue[0]
		e.queue = e.queue[1:]

		if next.Cancelled() {
			e.mu.Unlock()
			next.Finish(nil, bbhttp.ErrCancelled)
			e.logDispatch("cancelled-from-queue", next)
			e.mu.Lock()
			continue
		}

		if len(e.active) >= e.maxParallel {
			// max_parallel was shrunk since admission; put it back and wait
			// for another checkin.
			e.queue = append([]*bbhttp.Request{next}, e.queue...)
			break
		}

		if err := handle.Configure(e.handleConfigLocked()); err != nil {
			e.logger.WithError(err).Error("bbhttp: configure handle failed")
		}
		e.mu.Unlock()
		e.start(next, handle)
		return
	}

	e.idle = append(e.idle, handle)
	e.mu.Unlock()
}

// CancelAll drains the queue (firing cancelled+finally for each queued
// request) and signals every active context to abort at its next
// transport yield (spec.md §4.1 "cancel_all()"). Every active request
// whose Cancel reports it was already cancelled contributes one error; these
// are combined with hashicorp/go-multierror so a caller sees all of them,
// not just the first.
func (e *Executor) CancelAll() error {
	e.mu.Lock()
	queued := e.queue
	e.queue = nil
	actives := make([]*bbhttp.Request, 0, len(e.active))
	for req := range e.active {
		actives = append(actives, req)
	}
	e.mu.Unlock()

	var result *multierror.Error
	for _, req := range queued {
		req.Finish(nil, bbhttp.ErrCancelled)
	}
	for _, req := range actives {
		if !req.Cancel() {
			result = multierror.Append(result, fmt.Errorf("bbhttp: request to %s already cancelled", req.URL()))
		}
	}
	return result.ErrorOrNil()
}

// Shutdown is CancelAll plus refusing any further Submit calls (spec.md
// §4.1 "shutdown()").
func (e *Executor) Shutdown() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return e.CancelAll()
}

// ActiveCount and QueuedCount expose the pool/queue depth for tests and
// diagnostics (spec.md §8 "active_contexts ≤ max_parallel and
// queued ≤ max_queue").
func (e *Executor) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

func (e *Executor) QueuedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// logDispatchLocked logs a dispatch event; callers must already hold e.mu.
func (e *Executor) logDispatchLocked(event string, req *bbhttp.Request) {
	if !e.verbose {
		return
	}
	e.logger.WithFields(logrus.Fields{
		"request_id": fmt.Sprintf("%p", req),
		"executor":   e.id,
		"state":      event,
		"active":     len(e.active),
		"queued":     len(e.queue),
	}).Debug("bbhttp: dispatch")
}
