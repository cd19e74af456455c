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

package checked

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	xresource "github.com/m3db/shuffle/src/x/resource"
)

// RefCount is an embeddable struct that implements a ref counting type.
type RefCount struct {
	ref           int32
	reads         int32
	writes        int32
	onFinalize    unsafe.Pointer
	finalizeState refCountFinalizeState
}

type refCountFinalizeState struct {
	sync.Mutex
	delayRef     int32
	delayPending bool
}

// IncRef increments the reference count to this entity.
func (c *RefCount) IncRef() {
	n := atomic.AddInt32(&c.ref, 1)
	if n > 0 {
		return
	}

	err := fmt.Errorf("negative ref count, ref=%d", n)
	panicRef(c, err)
}

// DecRef decrements the reference count to this entity.
func (c *RefCount) DecRef() {
	n := atomic.AddInt32(&c.ref, -1)
	if n >= 0 {
		return
	}

	err := fmt.Errorf("negative ref count, ref=%d", n)
	panicRef(c, err)
}

// NumRef returns the reference count to this entity.
func (c *RefCount) NumRef() int {
	return int(atomic.LoadInt32(&c.ref))
}

// Finalize will call the finalizer if any, ref count must be zero.
func (c *RefCount) Finalize() {
	n := c.NumRef()
	if n != 0 {
		err := fmt.Errorf("finalize before zero ref count, ref=%d", n)
		panicRef(c, err)
	}

	c.finalizeState.Lock()
	if c.finalizeState.delayRef > 0 {
		c.finalizeState.delayPending = true
		c.finalizeState.Unlock()
		return
	}
	c.finalizeState.Unlock()

	c.finalizeWithoutLock()
}

// DelayFinalizer will delay calling the finalizer on this entity
// until the closer returned by the method is called at least once.
// This is useful for dependent resources requiring the lifetime of this
// entity to be extended.
func (c *RefCount) DelayFinalizer() xresource.SimpleCloser {
	c.finalizeState.Lock()
	c.finalizeState.delayRef++
	c.finalizeState.Unlock()
	return c
}

// Close implements xresource.SimpleCloser for the purpose of use with
// DelayFinalizer.
func (c *RefCount) Close() {
	c.finalizeState.Lock()
	c.finalizeState.delayRef--
	finalize := c.finalizeState.delayPending && c.finalizeState.delayRef == 0
	if finalize {
		c.finalizeState.delayPending = false
	}
	c.finalizeState.Unlock()

	if finalize {
		c.finalizeWithoutLock()
	}
}

func (c *RefCount) finalizeWithoutLock() {
	if f := c.OnFinalize(); f != nil {
		f.OnFinalize()
	}
}

// OnFinalize returns the finalize callback if any or nil otherwise.
func (c *RefCount) OnFinalize() OnFinalize {
	ptr := atomic.LoadPointer(&c.onFinalize)
	if ptr == nil {
		return nil
	}
	return *((*OnFinalize)(ptr))
}

// SetOnFinalize sets the finalize callback.
func (c *RefCount) SetOnFinalize(f OnFinalize) {
	atomic.StorePointer(&c.onFinalize, unsafe.Pointer(&f))
}

// IncReads increments the reads count to this entity.
func (c *RefCount) IncReads() {
	n := atomic.AddInt32(&c.reads, 1)
	if ref := c.NumRef(); n > 0 && ref > 0 {
		return
	} else if n > 0 {
		err := fmt.Errorf("read after free: reads=%d, ref=%d", n, ref)
		panicRef(c, err)
	} else {
		err := fmt.Errorf("invalid reads count: reads=%d, ref=%d", n, ref)
		panicRef(c, err)
	}
}

// DecReads decrements the reads count to this entity.
func (c *RefCount) DecReads() {
	n := atomic.AddInt32(&c.reads, -1)
	if ref := c.NumRef(); ref > 0 {
		return
	} else if n >= 0 {
		err := fmt.Errorf("read finish after free: reads=%d, ref=%d", n, ref)
		panicRef(c, err)
	} else {
		err := fmt.Errorf("invalid reads count: reads=%d, ref=%d", n, ref)
		panicRef(c, err)
	}
}

// NumReaders returns the active reads count to this entity.
func (c *RefCount) NumReaders() int {
	return int(atomic.LoadInt32(&c.reads))
}

// IncWrites increments the writes count to this entity.
func (c *RefCount) IncWrites() {
	n := atomic.AddInt32(&c.writes, 1)
	ref := c.NumRef()
	if n > 1 {
		err := fmt.Errorf("double write: writes=%d, ref=%d", n, ref)
		panicRef(c, err)
		return
	}

	if n > 0 && ref > 0 {
		return
	} else if n > 0 {
		err := fmt.Errorf("write after free: writes=%d, ref=%d", n, ref)
		panicRef(c, err)
	} else {
		err := fmt.Errorf("invalid writes count: writes=%d, ref=%d", n, ref)
		panicRef(c, err)
	}
}

// DecWrites decrements the writes count to this entity.
func (c *RefCount) DecWrites() {
	n := atomic.AddInt32(&c.writes, -1)
	if ref := c.NumRef(); ref > 0 {
		return
	} else if n >= 0 {
		err := fmt.Errorf("write finish after free: writes=%d, ref=%d", n, ref)
		panicRef(c, err)
	} else {
		err := fmt.Errorf("invalid writes count: writes=%d, ref=%d", n, ref)
		panicRef(c, err)
	}
}

// NumWriters returns the active writes count to this entity.
func (c *RefCount) NumWriters() int {
	return int(atomic.LoadInt32(&c.writes))
}
