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

package fetcher

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/m3db/shuffle/src/shuffle/block"
	"github.com/m3db/shuffle/src/shuffle/buffer"
	"github.com/m3db/shuffle/src/shuffle/topology"

	"github.com/golang/snappy"
)

var errStreamClosed = errors.New("read on closed block stream")

// SnappyStreamWrapper decompresses framed snappy streams. Blocks stored
// snappy compressed pass through it before consumers read them.
func SnappyStreamWrapper(_ block.ID, r io.Reader) (io.Reader, error) {
	return snappy.NewReader(r), nil
}

// copyReaderUpTo eagerly reads up to limit bytes from a stream so
// corruption in that prefix surfaces before the consumer starts. The
// remainder of the stream stays lazy.
func copyReaderUpTo(r io.Reader, limit int64) (io.Reader, error) {
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r, limit+1); err != nil {
		if err != io.EOF {
			return nil, err
		}
		// The whole stream fit within the limit.
		return bytes.NewReader(buf.Bytes()), nil
	}
	return io.MultiReader(bytes.NewReader(buf.Bytes()), r), nil
}

// bufferReleasingReader is the stream handed to the consumer for one
// block. Closing it releases the block's buffer exactly once whether
// the consumer closes it or the iterator's cleanup does.
type bufferReleasingReader struct {
	mu       sync.Mutex
	reader   io.Reader
	raw      io.Closer
	buf      buffer.Buffer
	iter     *blockIterator
	id       block.ID
	mapIndex int32
	host     topology.Host

	// checked converts read errors into terminal fetch failures, set
	// when corruption detection wrapped the stream.
	checked bool
	closed  bool
}

func newBufferReleasingReader(
	iter *blockIterator,
	reader io.Reader,
	raw io.Closer,
	buf buffer.Buffer,
	id block.ID,
	mapIndex int32,
	host topology.Host,
	checked bool,
) *bufferReleasingReader {
	return &bufferReleasingReader{
		iter:     iter,
		reader:   reader,
		raw:      raw,
		buf:      buf,
		id:       id,
		mapIndex: mapIndex,
		host:     host,
		checked:  checked,
	}
}

func (r *bufferReleasingReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, errStreamClosed
	}
	n, err := r.reader.Read(p)
	if err != nil && err != io.EOF && r.checked {
		return n, &FetchFailedError{
			Block:    r.id,
			MapIndex: r.mapIndex,
			Host:     r.host,
			Err:      err,
		}
	}
	return n, err
}

func (r *bufferReleasingReader) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	var err error
	if r.raw != nil {
		err = r.raw.Close()
	}
	r.buf.DecRef()
	if r.iter != nil {
		r.iter.streamClosed(r)
	}
	return err
}
