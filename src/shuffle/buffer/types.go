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

// Package buffer provides reference counted handles to block data.
//
// A buffer is created holding a single reference owned by the caller of
// the constructor. Passing a buffer across an ownership boundary moves
// that reference with it, a receiver that wants to hold the data past a
// callback must take its own reference first. The reference that takes
// the count to zero frees the underlying resource, once.
package buffer

import "io"

// Buffer is a reference counted handle to the bytes of one block.
type Buffer interface {
	// IncRef increments the reference count to the buffer.
	IncRef()

	// DecRef decrements the reference count to the buffer, freeing the
	// underlying resource exactly once when the count reaches zero.
	DecRef()

	// NumRef returns the current reference count.
	NumRef() int

	// Size returns the length of the block data in bytes.
	Size() int64

	// NewReader returns a fresh reader over the whole of the block data.
	// The buffer must stay referenced while the reader is in use.
	NewReader() (io.ReadCloser, error)

	// IsFileBacked returns whether reads are served from local disk.
	IsFileBacked() bool
}
