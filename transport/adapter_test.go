/*
 * Copyright (c) 2013 BiasedBit
 * Use of this source code is governed by an Apache 2.0 license that can be found in the LICENSE file.
 */

package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleConfigureAndRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	h := NewHandle(1)
	require.NoError(t, h.Configure(Config{}))

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := h.RoundTripper().RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestHandleResetClearsTLSConfig(t *testing.T) {
	h := NewHandle(1)
	h.ConfigureTLS(true)
	require.NotNil(t, h.transport.TLSClientConfig)

	h.Reset()
	assert.Nil(t, h.transport.TLSClientConfig)
}

func TestResolveHostPassesThroughASCII(t *testing.T) {
	out, err := ResolveHost("http://example.com/path")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/path", out)
}

func TestResolveHostConvertsIDN(t *testing.T) {
	out, err := ResolveHost("http://münchen.example/path")
	require.NoError(t, err)
	assert.Contains(t, out, "xn--")
}

func TestConfigureWithTracingWrapsTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	h := NewHandle(2)
	require.NoError(t, h.Configure(Config{Tracing: true}))

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	resp, err := h.RoundTripper().RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
