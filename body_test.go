/*
 * Copyright (c) 2013 BiasedBit
 * Use of this source code is governed by an Apache 2.0 license that can be found in the LICENSE file.
 */

package bbhttp

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesBodyOpenForTransfer(t *testing.T) {
	src := NewBytesBody([]byte("hello"), "text/plain")
	assert.True(t, src.KnownSize())
	assert.Equal(t, int64(5), src.Size)

	rc, err := src.OpenForTransfer()
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestFileBodyRejectsMissingAndEmpty(t *testing.T) {
	dir := t.TempDir()

	_, err := NewFileBody(filepath.Join(dir, "missing"), "")
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = NewFileBody(empty, "")
	assert.Error(t, err)
}

func TestFileBodyDefaultsContentType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("xyz"), 0o644))

	src, err := NewFileBody(path, "")
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", src.ContentType)
	assert.True(t, src.KnownSize())

	rc, err := src.OpenForTransfer()
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "xyz", string(got))
}

func TestStreamBodyUnknownSize(t *testing.T) {
	src := NewStreamBody(bytes.NewBufferString("stream"), "application/octet-stream", 0)
	assert.False(t, src.KnownSize())
	assert.Equal(t, UnknownSize, src.Size)
}

func TestStreamBodyKnownSize(t *testing.T) {
	src := NewStreamBody(bytes.NewBufferString("abcd"), "application/octet-stream", 4)
	assert.True(t, src.KnownSize())
	assert.Equal(t, int64(4), src.Size)
}
