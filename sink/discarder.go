/*
 * Copyright (c) 2013 BiasedBit
 * Use of this source code is governed by an Apache 2.0 license that can be found in the LICENSE file.
 */

// Package sink holds the one reference ContentHandler implementation this
// library ships: Discarder, a stateless selective acceptance filter that
// produces no content (spec.md §4.3, grounded on
// original_source/BBHTTP/Handlers/BBHTTPSelectiveDiscarder.h). Every other
// concrete sink — byte accumulator, UTF-8 string, JSON, image decoder, file
// writer, stream writer — is an external collaborator per spec.md §1 and
// does not belong in this package.
package sink

import (
	"strings"

	"github.com/biasedbit/bbhttp"
)

// Discarder accepts responses whose status code and Content-Type satisfy
// its allow-lists, reads and discards the body, and always produces nil
// content. It has no say over the Response's ContentSize, which the request
// context sets to the number of body bytes read. A Discarder with both allow-lists empty accepts
// everything — this is the library's default sink.
//
// Discarder is safe for concurrent use: it carries no per-request state,
// only the two allow-lists, which are fixed at construction (the original's
// "completely stateless implementation" — BBHTTPSelectiveDiscarder.h).
type Discarder struct {
	// AcceptableResponses is the set of acceptable status codes; empty
	// means all codes are accepted.
	AcceptableResponses map[int]bool
	// AcceptableContentTypes is an ordered list of case-insensitive
	// substrings matched against Content-Type; empty means all types are
	// accepted. Matching is deliberately a "dumb substring" search
	// (spec.md §4.3): callers compose "application/json", "text/", "json"
	// as they need.
	AcceptableContentTypes []string
}

// Shared is the process-wide singleton discarder used as the default sink
// when a Request has none configured (spec.md §4.3 "default sink is a
// singleton 'selective discarder' that accepts everything").
var Shared = &Discarder{}

// NewDiscarder builds a Discarder with the given allow-lists. Pass nil/empty
// slices or maps to accept everything along that axis.
func NewDiscarder(acceptableResponses []int, acceptableContentTypes []string) *Discarder {
	d := &Discarder{AcceptableContentTypes: acceptableContentTypes}
	if len(acceptableResponses) > 0 {
		d.AcceptableResponses = make(map[int]bool, len(acceptableResponses))
		for _, c := range acceptableResponses {
			d.AcceptableResponses[c] = true
		}
	}
	return d
}

// IsAcceptableResponseCode implements the status-code half of the
// acceptance policy, exposed for subclassing sinks per the original's
// "Determining eligibility for content parsing (for subclasses)".
func (d *Discarder) IsAcceptableResponseCode(status int) bool {
	if len(d.AcceptableResponses) == 0 {
		return true
	}
	return d.AcceptableResponses[status]
}

// IsAcceptableContentType implements the content-type half.
func (d *Discarder) IsAcceptableContentType(contentType string) bool {
	if len(d.AcceptableContentTypes) == 0 {
		return true
	}
	lc := strings.ToLower(contentType)
	for _, want := range d.AcceptableContentTypes {
		if strings.Contains(lc, strings.ToLower(want)) {
			return true
		}
	}
	return false
}

// Prepare implements bbhttp.ContentHandler.
func (d *Discarder) Prepare(status int, _ string, headers bbhttp.Header) error {
	if !d.IsAcceptableResponseCode(status) {
		return bbhttp.ErrUnacceptableContentType
	}
	if !d.IsAcceptableContentType(headers.Get("Content-Type")) {
		return bbhttp.ErrUnacceptableContentType
	}
	return nil
}

// Append implements bbhttp.ContentHandler by discarding every byte it is
// handed while still reporting them all as consumed.
func (d *Discarder) Append(p []byte) (int, error) { return len(p), nil }

// ParseContent implements bbhttp.ContentHandler; a Discarder never produces
// content.
func (d *Discarder) ParseContent() (interface{}, error) { return nil, nil }

// Cleanup implements bbhttp.ContentHandler; there is nothing to release.
func (d *Discarder) Cleanup() {}
