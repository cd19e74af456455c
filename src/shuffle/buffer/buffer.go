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
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/m3db/shuffle/src/x/checked"

	"go.uber.org/atomic"
)

type refCounter struct {
	refs   atomic.Int32
	freed  atomic.Bool
	freeFn func()
}

func (c *refCounter) incRef() {
	if c.freed.Load() {
		checked.Panic(fmt.Errorf("ref increment after free, ref=%d", c.refs.Load()))
		return
	}
	if n := c.refs.Inc(); n <= 0 {
		checked.Panic(fmt.Errorf("negative ref count, ref=%d", n))
	}
}

func (c *refCounter) decRef() {
	n := c.refs.Dec()
	switch {
	case n == 0:
		if c.freed.CAS(false, true) && c.freeFn != nil {
			c.freeFn()
		}
	case n < 0:
		checked.Panic(fmt.Errorf("negative ref count, ref=%d", n))
	}
}

func (c *refCounter) numRef() int {
	return int(c.refs.Load())
}

type bytesBuffer struct {
	refCounter
	data checked.Bytes
	size int64
}

// NewBytesBuffer returns a buffer over checked bytes, taking a reference
// to them for the lifetime of the buffer. Freeing the buffer releases
// that reference and finalizes the bytes if it was the last one.
func NewBytesBuffer(data checked.Bytes) Buffer {
	data.IncRef()
	b := &bytesBuffer{data: data, size: int64(data.Len())}
	b.freeFn = b.free
	b.incRef()
	return b
}

func (b *bytesBuffer) free() {
	b.data.DecRef()
	if b.data.NumRef() == 0 {
		b.data.Finalize()
	}
}

func (b *bytesBuffer) IncRef() {
	b.incRef()
}

func (b *bytesBuffer) DecRef() {
	b.decRef()
}

func (b *bytesBuffer) NumRef() int {
	return b.numRef()
}

func (b *bytesBuffer) Size() int64 {
	return b.size
}

func (b *bytesBuffer) IsFileBacked() bool {
	return false
}

func (b *bytesBuffer) NewReader() (io.ReadCloser, error) {
	if b.freed.Load() {
		return nil, fmt.Errorf("read after free, ref=%d", b.numRef())
	}
	return ioutil.NopCloser(bytes.NewReader(b.data.Bytes())), nil
}

type fileSegmentBuffer struct {
	refCounter
	path   string
	offset int64
	length int64
}

// NewFileSegmentBuffer returns a buffer over a byte range of a file on
// local disk. The file is opened per reader, not held open by the buffer.
func NewFileSegmentBuffer(path string, offset, length int64) Buffer {
	b := &fileSegmentBuffer{path: path, offset: offset, length: length}
	b.incRef()
	return b
}

func (b *fileSegmentBuffer) IncRef() {
	b.incRef()
}

func (b *fileSegmentBuffer) DecRef() {
	b.decRef()
}

func (b *fileSegmentBuffer) NumRef() int {
	return b.numRef()
}

func (b *fileSegmentBuffer) Size() int64 {
	return b.length
}

func (b *fileSegmentBuffer) IsFileBacked() bool {
	return true
}

func (b *fileSegmentBuffer) NewReader() (io.ReadCloser, error) {
	f, err := os.Open(b.path)
	if err != nil {
		return nil, err
	}
	return &fileSegmentReader{
		SectionReader: io.NewSectionReader(f, b.offset, b.length),
		file:          f,
	}, nil
}

type fileSegmentReader struct {
	*io.SectionReader
	file *os.File
}

func (r *fileSegmentReader) Close() error {
	return r.file.Close()
}

type fileBuffer struct {
	refCounter
	path string
	size int64
}

// NewFileBuffer returns a buffer over the whole of a file on local disk,
// normally one a fetch spilled a large block into. Freeing the buffer
// does not remove the file, the registry that created it owns deletion.
func NewFileBuffer(path string) (Buffer, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	b := &fileBuffer{path: path, size: stat.Size()}
	b.incRef()
	return b, nil
}

func (b *fileBuffer) IncRef() {
	b.incRef()
}

func (b *fileBuffer) DecRef() {
	b.decRef()
}

func (b *fileBuffer) NumRef() int {
	return b.numRef()
}

func (b *fileBuffer) Size() int64 {
	return b.size
}

func (b *fileBuffer) IsFileBacked() bool {
	return true
}

func (b *fileBuffer) NewReader() (io.ReadCloser, error) {
	return os.Open(b.path)
}
