/*
 * Copyright (c) 2013 BiasedBit
 * Use of this source code is governed by an Apache 2.0 license that can be found in the LICENSE file.
 */

package executor

import (
	"net/url"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// Option configures an Executor at construction or via Configure (spec.md
// §4.1 "configure(max_parallel, max_queue, verbose, dont_reuse_connections)
// ... safe to change at runtime"). Grounded on the functional-options
// pattern used throughout durable-streams/packages/client-go (ClientOption).
type Option func(*Executor)

// WithMaxParallel sets the maximum number of concurrent transfers (spec.md
// §3 "max_parallel ≥ 1, default 3"). Shrinking it at runtime does not abort
// active transfers — it only prevents new ones from starting until active
// count falls below the new limit.
func WithMaxParallel(n int) Option {
	return func(e *Executor) {
		if n < 1 {
			n = 1
		}
		e.maxParallel = n
	}
}

// WithMaxQueue sets the bounded admission queue size (spec.md §3
// "max_queue default 1024").
func WithMaxQueue(n int) Option {
	return func(e *Executor) {
		if n < 0 {
			n = 0
		}
		e.maxQueue = n
	}
}

// WithVerbose toggles structured dispatch logging.
func WithVerbose(v bool) Option {
	return func(e *Executor) { e.verbose = v }
}

// WithDontReuseConnections forces every handle to close its underlying
// connection before returning to the pool (spec.md §9).
func WithDontReuseConnections(v bool) Option {
	return func(e *Executor) { e.dontReuseConnections = v }
}

// WithLogger overrides the executor's structured logger, defaulting to
// logrus.StandardLogger().
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithProxyURL routes every handle's dials through the given SOCKS5 proxy
// (SPEC_FULL.md §4.4).
func WithProxyURL(u *url.URL) Option {
	return func(e *Executor) { e.proxyURL = u }
}

// WithTracing enables per-transfer OpenTelemetry spans and otelhttp
// instrumentation of the underlying transport (SPEC_FULL.md §4.1/§4.4).
func WithTracing(v bool) Option {
	return func(e *Executor) { e.tracing = v }
}

// WithTracer overrides the tracer used for per-transfer spans, defaulting
// to otel.Tracer("bbhttp").
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) {
		if t != nil {
			e.tracer = t
		}
	}
}
