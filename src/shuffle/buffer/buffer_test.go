// Copyright (c) 2021 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package buffer

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/m3db/shuffle/src/x/checked"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFinalizer struct {
	called int
}

func (f *countingFinalizer) FinalizeBytes(checked.Bytes) {
	f.called++
}

func TestBytesBufferLifecycle(t *testing.T) {
	finalizer := &countingFinalizer{}
	data := checked.NewBytes([]byte("shuffled"),
		checked.NewBytesOptions().SetFinalizer(finalizer))

	buf := NewBytesBuffer(data)
	assert.Equal(t, 1, buf.NumRef())
	assert.Equal(t, int64(8), buf.Size())
	assert.False(t, buf.IsFileBacked())

	r, err := buf.NewReader()
	require.NoError(t, err)
	read, err := ioutil.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, []byte("shuffled"), read)
	require.NoError(t, r.Close())

	buf.DecRef()
	assert.Equal(t, 0, buf.NumRef())
	assert.Equal(t, 1, finalizer.called)
}

func TestBytesBufferDoesNotFinalizeSharedBytes(t *testing.T) {
	finalizer := &countingFinalizer{}
	data := checked.NewBytes([]byte("shared"),
		checked.NewBytesOptions().SetFinalizer(finalizer))

	// Another owner keeps a reference across the buffer's lifetime.
	data.IncRef()

	buf := NewBytesBuffer(data)
	buf.DecRef()
	assert.Equal(t, 0, finalizer.called)
	assert.Equal(t, 1, data.NumRef())

	data.DecRef()
	data.Finalize()
	assert.Equal(t, 1, finalizer.called)
}

func TestBytesBufferReaderAfterFree(t *testing.T) {
	buf := NewBytesBuffer(checked.NewBytes([]byte("gone"), nil))
	buf.DecRef()

	_, err := buf.NewReader()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after free")
}

func TestDoubleFreePanics(t *testing.T) {
	defer checked.ResetPanicFn()

	var err error
	checked.SetPanicFn(func(e error) {
		err = e
	})

	buf := NewBytesBuffer(checked.NewBytes([]byte("once"), nil))
	buf.DecRef()
	require.NoError(t, err)

	buf.DecRef()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative ref count")
}

func TestIncRefAfterFreePanics(t *testing.T) {
	defer checked.ResetPanicFn()

	var err error
	checked.SetPanicFn(func(e error) {
		err = e
	})

	buf := NewBytesBuffer(checked.NewBytes([]byte("done"), nil))
	buf.DecRef()
	require.NoError(t, err)

	buf.IncRef()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after free")
}

func TestFreeRunsExactlyOnce(t *testing.T) {
	freed := 0
	buf := &fileSegmentBuffer{path: "unused", offset: 0, length: 4}
	buf.freeFn = func() {
		freed++
	}
	buf.incRef()

	buf.IncRef()
	buf.DecRef()
	assert.Equal(t, 0, freed)

	buf.DecRef()
	assert.Equal(t, 1, freed)
}

func TestFileSegmentBuffer(t *testing.T) {
	dir, err := ioutil.TempDir("", "buffer-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "blocks.data")
	require.NoError(t, ioutil.WriteFile(path, []byte("aaaabbbbcccc"), 0644))

	buf := NewFileSegmentBuffer(path, 4, 4)
	assert.Equal(t, int64(4), buf.Size())
	assert.True(t, buf.IsFileBacked())

	for i := 0; i < 2; i++ {
		r, err := buf.NewReader()
		require.NoError(t, err)
		read, err := ioutil.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, []byte("bbbb"), read)
		require.NoError(t, r.Close())
	}

	buf.DecRef()
}

func TestFileBuffer(t *testing.T) {
	dir, err := ioutil.TempDir("", "buffer-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "spill.data")
	require.NoError(t, ioutil.WriteFile(path, []byte("spilled block"), 0644))

	buf, err := NewFileBuffer(path)
	require.NoError(t, err)
	assert.Equal(t, int64(13), buf.Size())
	assert.True(t, buf.IsFileBacked())

	r, err := buf.NewReader()
	require.NoError(t, err)
	read, err := ioutil.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, []byte("spilled block"), read)
	require.NoError(t, r.Close())

	// Freeing the buffer leaves the file in place for its registry.
	buf.DecRef()
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestFileBufferMissingFile(t *testing.T) {
	_, err := NewFileBuffer(filepath.Join(os.TempDir(), "does-not-exist-shuffle"))
	require.Error(t, err)
}
