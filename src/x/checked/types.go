// Copyright (c) 2020 Uber Technologies, Inc.
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

// Package checked implements reference counted resources.
package checked

import (
	xresource "github.com/m3db/shuffle/src/x/resource"
)

// Ref is an entity that checks ref counts.
type Ref interface {
	// IncRef increments the reference count.
	IncRef()

	// DecRef decrements the reference count.
	DecRef()

	// NumRef returns the reference count.
	NumRef() int

	// Finalize will call the finalizer if any, ref count must be zero.
	Finalize()

	// DelayFinalizer will delay calling the finalizer on this entity
	// until the closer returned by the method is called at least once.
	DelayFinalizer() xresource.SimpleCloser

	// SetOnFinalize sets the finalize callback.
	SetOnFinalize(f OnFinalize)

	// TrackObject sets up the initial internal state of the Ref for
	// leak detection.
	TrackObject(v interface{})
}

// OnFinalize is a finalize callback.
type OnFinalize interface {
	OnFinalize()
}

// OnFinalizeFn is a function literal that is a finalize callback.
type OnFinalizeFn func()

// OnFinalize will call the function literal as a finalize callback.
func (fn OnFinalizeFn) OnFinalize() {
	fn()
}

// ReadWriteRef is an entity that checks reads, writes and ref counts.
type ReadWriteRef interface {
	Ref

	// IncReads increments the reads count.
	IncReads()

	// DecReads decrements the reads count.
	DecReads()

	// NumReaders returns the active reads count.
	NumReaders() int

	// IncWrites increments the writes count.
	IncWrites()

	// DecWrites decrements the writes count.
	DecWrites()

	// NumWriters returns the active writes count.
	NumWriters() int
}

// BytesFinalizer finalizes a checked byte slice.
type BytesFinalizer interface {
	FinalizeBytes(b Bytes)
}

// BytesFinalizerFn is a function literal that is a bytes finalizer.
type BytesFinalizerFn func(b Bytes)

// FinalizeBytes will call the function literal as a bytes finalizer.
func (fn BytesFinalizerFn) FinalizeBytes(b Bytes) {
	fn(b)
}

// Bytes is a checked byte slice.
type Bytes interface {
	ReadWriteRef

	// Bytes returns the current checked byte slice.
	Bytes() []byte

	// Cap returns the capacity of the checked byte slice.
	Cap() int

	// Len returns the length of the checked byte slice.
	Len() int

	// Resize will resize the backing slice, this allows dependent libraries
	// to control the lifecycle of the backing slice.
	Resize(size int)

	// Append will append a single byte to the backing slice.
	Append(value byte)

	// AppendAll will append bytes to the backing slice.
	AppendAll(values []byte)

	// Reset will reset the reference of the backing slice.
	Reset(v []byte)
}

// BytesOptions is a bytes option.
type BytesOptions interface {
	// SetFinalizer sets the finalizer.
	SetFinalizer(value BytesFinalizer) BytesOptions

	// Finalizer returns the finalizer.
	Finalizer() BytesFinalizer
}
