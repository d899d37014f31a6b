/*
 * Copyright (c) 2013 BiasedBit
 * Use of this source code is governed by an Apache 2.0 license that can be found in the LICENSE file.
 */

package bbhttp

import (
	"net/http"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaderSetReplacesAndAddAppends(t *testing.T) {
	h := NewHeader()
	h.Set("content-type", "text/plain")
	h.Add("X-Trace", "a")
	h.Add("x-trace", "b")

	assert.Equal(t, "text/plain", h.Get("Content-Type"))
	assert.Equal(t, []string{"a", "b"}, h["X-Trace"])

	h.Set("X-Trace", "c")
	assert.Equal(t, []string{"c"}, h["X-Trace"])
}

func TestHeaderCaseInsensitiveLookup(t *testing.T) {
	h := NewHeader()
	h.Set("Content-Length", "5")

	assert.True(t, h.Has("content-length"))
	assert.True(t, h.HasValue("CONTENT-LENGTH", "5"))
	assert.False(t, h.HasValue("content-length", "6"))
}

func TestHeaderDelAndClone(t *testing.T) {
	h := NewHeader()
	h.Set("A", "1")
	h.Set("B", "2")

	clone := h.Clone()
	h.Del("A")

	assert.False(t, h.Has("A"))
	assert.True(t, clone.Has("A"), "clone must not observe later mutations")
}

func TestHeaderToNetHeaderRoundTrip(t *testing.T) {
	h := NewHeader()
	h.Add("Accept", "text/plain")
	h.Add("Accept", "application/json")

	net := h.ToNetHeader()
	assert.Equal(t, []string{"text/plain", "application/json"}, net["Accept"])

	back := HeaderFromNet(http.Header(net))
	assert.Equal(t, "text/plain", back.Get("Accept"), "Get returns only the first value")
	assert.ElementsMatch(t, []string{"text/plain", "application/json"}, back["Accept"])
}

func TestHeaderFromTextproto(t *testing.T) {
	mh := textproto.MIMEHeader{}
	mh.Add("X-Interim", "1")

	h := HeaderFromTextproto(mh)
	assert.Equal(t, "1", h.Get("X-Interim"))
}
