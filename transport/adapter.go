/*
 * Copyright (c) 2013 BiasedBit
 * Use of this source code is governed by an Apache 2.0 license that can be found in the LICENSE file.
 */

// Package transport implements the Transport Adapter (spec.md §4.4,
// component C5): it wraps exactly one reusable transport handle and is the
// only package in this module that names the transport library. Everything
// above it (package reqctx, package executor) sees only an
// http.RoundTripper.
//
// The handle itself is a *http.Transport — the idiomatic Go analogue of a
// libcurl easy handle (see SPEC_FULL.md §1): it owns its own connection
// pool, performs TLS, and knows how to frame HTTP/1.x requests. A Handle
// configures one such Transport per the Executor's settings and optionally
// wraps it with otelhttp instrumentation.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/idna"
	"golang.org/x/net/proxy"
)

// Config carries the handle-scoped settings the Executor derives from its
// own configuration (spec.md §4.1 "configure(max_parallel, max_queue,
// verbose, dont_reuse_connections)") plus the proxy/tracing additions
// described in SPEC_FULL.md §4.4. Per-request settings are applied
// elsewhere: timeouts by package reqctx via httptrace and context
// cancellation, TLS verification by the executor through ConfigureTLS, and
// IDN conversion by ResolveHost — Config governs only what is fixed for the
// handle's whole lifetime in the pool.
type Config struct {
	// DontReuseConnections forces the underlying connection closed after
	// every transfer (spec.md §9 "dont_reuse_connections").
	DontReuseConnections bool
	// Verbose mirrors the executor's verbose setting. Configure does not
	// read it; the handle does no logging of its own.
	Verbose bool
	// ProxyURL, when non-nil, routes every dial through a SOCKS5 proxy
	// (grounded on badu-http/src/http/transport.go's Proxy field).
	ProxyURL *url.URL
	// Tracing enables otelhttp instrumentation of the handle's RoundTrip.
	Tracing bool
}

// Handle is one pooled, reusable transport session (spec.md glossary
// "Transport handle"). The Executor builds Handles on demand, up to
// max_parallel of them; each transfer uses exactly one Handle from checkout
// to checkin.
type Handle struct {
	id        int
	transport *http.Transport
	rt        http.RoundTripper
}

// NewHandle builds an idle Handle with Go's http.Transport defaults;
// Configure must be called before first use.
func NewHandle(id int) *Handle {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     false, // spec.md §1 Non-goals: HTTP/2 is out of scope
		MaxIdleConnsPerHost:   1,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 0, // the 100-Continue handshake is driven by package reqctx, not net/http
	}
	return &Handle{id: id, transport: t, rt: t}
}

// ID identifies the handle for logging (spec.md §4.1 dispatch logging).
func (h *Handle) ID() int { return h.id }

// Configure applies cfg to the handle, setting its keep-alive behavior, its
// proxy dialer and its optional tracing wrapper (spec.md §4.4
// "configure(request, version, flags)", generalized here to the
// handle-scoped subset; the request-scoped subset — allow_invalid_tls — is
// applied per-transfer in ConfigureTLS below since
// spec.md §6 treats it as a Request option, not an Executor one).
func (h *Handle) Configure(cfg Config) error {
	h.transport.DisableKeepAlives = cfg.DontReuseConnections

	if cfg.ProxyURL != nil {
		dialer, err := proxy.FromURL(cfg.ProxyURL, proxy.Direct)
		if err != nil {
			return fmt.Errorf("transport: configure proxy: %w", err)
		}
		ctxDialer, ok := dialer.(proxy.ContextDialer)
		if ok {
			h.transport.DialContext = ctxDialer.DialContext
		} else {
			h.transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	}

	var rt http.RoundTripper = h.transport
	if cfg.Tracing {
		rt = otelhttp.NewTransport(h.transport)
	}
	h.rt = rt
	return nil
}

// ConfigureTLS applies per-request TLS verification (spec.md §6
// "allow_invalid_tls"). Since the handle is reused across requests with
// potentially different settings, this rebuilds the handle's TLSClientConfig
// immediately before a transfer that asks for it; it is the executor's job
// to serialize this against concurrent use of the same handle (a handle is
// never shared between two in-flight contexts, spec.md §5 "Handles are
// owned exclusively by one Context between checkout and checkin").
func (h *Handle) ConfigureTLS(allowInvalid bool) {
	h.transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: allowInvalid}
}

// RoundTripper returns the http.RoundTripper package reqctx drives the
// transfer through.
func (h *Handle) RoundTripper() http.RoundTripper { return h.rt }

// Reset clears per-transfer handle state for reuse (spec.md §4.4
// "reset() — clears all options for handle reuse"). The underlying
// connection pool is untouched unless CloseIdleConnections is requested
// separately by the executor when dont_reuse_connections is set.
func (h *Handle) Reset() {
	h.transport.TLSClientConfig = nil
}

// Close tears down any idle connections the handle is holding, used when
// dont_reuse_connections forces a clean connection per request (spec.md §9).
func (h *Handle) Close() { h.transport.CloseIdleConnections() }

// ResolveHost converts an internationalized hostname in rawURL to its ASCII
// (Punycode) form, returning rawURL unchanged if it has no host or is
// already ASCII (grounded on badu-http's golang.org/x/net/idna usage).
func ResolveHost(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, err
	}
	if u.Host == "" {
		return rawURL, nil
	}
	ascii, err := idna.Lookup.ToASCII(u.Hostname())
	if err != nil {
		return rawURL, fmt.Errorf("transport: resolve host %q: %w", u.Hostname(), err)
	}
	if ascii == u.Hostname() {
		return rawURL, nil
	}
	if p := u.Port(); p != "" {
		u.Host = net.JoinHostPort(ascii, p)
	} else {
		u.Host = ascii
	}
	return u.String(), nil
}
