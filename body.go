/*
 * Copyright (c) 2013 BiasedBit
 * Use of this source code is governed by an Apache 2.0 license that can be found in the LICENSE file.
 */

package bbhttp

import (
	"io"
	"os"
)

// BodyKind identifies which of the three upload body source variants
// (spec.md §3 "body source variant ∈ { none, in-memory bytes+content-type,
// file path, stream+content-type+(size | unknown) }") a Request carries.
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyBytes
	BodyFile
	BodyStream
)

// UnknownSize marks a stream body whose length is not known ahead of time;
// per spec.md §3 this forces chunked transfer on HTTP/1.1.
const UnknownSize int64 = -1

// BodySource describes the upload body of a Request. It is set at most
// once; Request.SetBody* methods replace any previous source, matching
// spec.md §3's "body-source is set at most once (subsequent sets replace)".
type BodySource struct {
	Kind        BodyKind
	ContentType string
	Size        int64 // UnknownSize if not known in advance

	bytes  []byte
	path   string
	stream io.Reader
}

// NewBytesBody returns an in-memory body source; size is always known.
func NewBytesBody(data []byte, contentType string) *BodySource {
	return &BodySource{Kind: BodyBytes, ContentType: contentType, Size: int64(len(data)), bytes: data}
}

// NewFileBody returns a body source that streams the named file's contents.
// The file is opened lazily, by OpenForTransfer, not here, matching the teacher's
// upload-source semantics (badu-http/transfer_body_reader.go).
func NewFileBody(path string, contentType string) (*BodySource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, newError(CodeUploadFileStreamError, "cannot stat upload file", err)
	}
	if info.Size() == 0 {
		return nil, newError(CodeUploadFileStreamError, "upload file is empty", nil)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &BodySource{Kind: BodyFile, ContentType: contentType, Size: info.Size(), path: path}, nil
}

// NewStreamBody returns a body source backed by an arbitrary io.Reader. Pass
// UnknownSize when the length cannot be determined ahead of time; doing so
// forces chunked transfer encoding on HTTP/1.1 (spec.md §3).
func NewStreamBody(stream io.Reader, contentType string, size int64) *BodySource {
	if size <= 0 {
		size = UnknownSize
	}
	return &BodySource{Kind: BodyStream, ContentType: contentType, Size: size, stream: stream}
}

// OpenForTransfer returns a fresh ReadCloser for the source. Called exactly
// once per transfer attempt by the request context when it begins the
// upload phase.
func (b *BodySource) OpenForTransfer() (io.ReadCloser, error) {
	switch b.Kind {
	case BodyNone:
		return nil, nil
	case BodyBytes:
		return io.NopCloser(newByteSliceReader(b.bytes)), nil
	case BodyFile:
		f, err := os.Open(b.path)
		if err != nil {
			return nil, newError(CodeUploadFileStreamError, "cannot open upload file", err)
		}
		return f, nil
	case BodyStream:
		if rc, ok := b.stream.(io.ReadCloser); ok {
			return rc, nil
		}
		return io.NopCloser(b.stream), nil
	default:
		return nil, nil
	}
}

// KnownSize reports whether Size is a real byte count, as opposed to
// UnknownSize (stream with no declared length).
func (b *BodySource) KnownSize() bool { return b != nil && b.Size != UnknownSize && b.Size > 0 }

// byteSliceReader is a minimal io.Reader over a byte slice; using our own
// type (rather than bytes.Reader) keeps this package from depending on the
// semantics of Seek, which upload sources never need.
type byteSliceReader struct {
	data []byte
	pos  int
}

func newByteSliceReader(data []byte) *byteSliceReader { return &byteSliceReader{data: data} }

func (r *byteSliceReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
