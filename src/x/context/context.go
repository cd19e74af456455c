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

package context

import (
	"sync"

	xresource "github.com/m3db/shuffle/src/x/resource"
)

const (
	defaultFinalizeablesCapacity = 4
)

type finalizeable struct {
	finalizer xresource.Finalizer
	closer    xresource.SimpleCloser
}

type dependency struct {
	dependencies sync.WaitGroup
}

type ctx struct {
	sync.RWMutex
	closed        bool
	finalizeables []finalizeable
	dep           *dependency
}

// NewContext creates a new context.
func NewContext() Context {
	return &ctx{}
}

func (c *ctx) IsClosed() bool {
	c.RLock()
	closed := c.closed
	c.RUnlock()
	return closed
}

func (c *ctx) RegisterFinalizer(f xresource.Finalizer) {
	c.registerFinalizeable(finalizeable{finalizer: f})
}

func (c *ctx) RegisterCloser(closer xresource.SimpleCloser) {
	c.registerFinalizeable(finalizeable{closer: closer})
}

func (c *ctx) registerFinalizeable(f finalizeable) {
	c.Lock()
	if c.closed {
		c.Unlock()
		return
	}
	if c.finalizeables == nil {
		c.finalizeables = make([]finalizeable, 0, defaultFinalizeablesCapacity)
	}
	c.finalizeables = append(c.finalizeables, f)
	c.Unlock()
}

func (c *ctx) ensureDependencies() {
	if c.dep != nil {
		return
	}
	c.dep = &dependency{}
}

func (c *ctx) DependsOn(blocker Context) {
	c.Lock()
	closed := c.closed
	if !closed {
		c.ensureDependencies()
		c.dep.dependencies.Add(1)
	}
	c.Unlock()

	if !closed {
		blocker.RegisterCloser(xresource.SimpleCloserFn(func() {
			c.dep.dependencies.Done()
		}))
	}
}

func (c *ctx) Close() {
	c.close(false)
}

func (c *ctx) BlockingClose() {
	c.close(true)
}

func (c *ctx) close(blocking bool) {
	c.Lock()
	if c.closed {
		c.Unlock()
		return
	}
	c.closed = true
	// The context drops its own reference to registered resources here,
	// transferring ownership to the finalize call.
	finalizeables := c.finalizeables
	c.finalizeables = nil
	dep := c.dep
	c.Unlock()

	if len(finalizeables) == 0 {
		if dep != nil && blocking {
			dep.dependencies.Wait()
		}
		return
	}

	if blocking || dep == nil {
		c.finalize(finalizeables, dep)
		return
	}

	// Wait for dependencies to close out of band.
	go c.finalize(finalizeables, dep)
}

func (c *ctx) finalize(finalizeables []finalizeable, dep *dependency) {
	if dep != nil {
		dep.dependencies.Wait()
	}
	for _, f := range finalizeables {
		if f.finalizer != nil {
			f.finalizer.Finalize()
			continue
		}
		if f.closer != nil {
			f.closer.Close()
		}
	}
}

func (c *ctx) Reset() {
	c.Lock()
	c.closed = false
	c.finalizeables = nil
	c.dep = nil
	c.Unlock()
}
