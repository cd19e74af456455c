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

// Package context provides a task-scoped context that resources can be
// registered against for cleanup once the task finishes.
package context

import (
	xresource "github.com/m3db/shuffle/src/x/resource"
)

// Context provides context to a unit of work and takes ownership of
// registered resources, finalizing them when the work completes.
type Context interface {
	// IsClosed returns whether the context is closed.
	IsClosed() bool

	// RegisterFinalizer will register a resource finalizer. Finalizers run
	// exactly once when the context closes, in registration order, and the
	// context drops its reference to them after they fire.
	RegisterFinalizer(f xresource.Finalizer)

	// RegisterCloser will register a resource closer.
	RegisterCloser(closer xresource.SimpleCloser)

	// DependsOn will register a blocking context that must complete first
	// before finalizers can be called.
	DependsOn(blocker Context)

	// Close will close the context, calling registered finalizers
	// asynchronously if any dependent contexts are still pending.
	Close()

	// BlockingClose will close the context and call the registered
	// finalizers in a blocking manner after waiting for any dependent
	// contexts. After calling the context becomes safe to reset and reuse.
	BlockingClose()

	// Reset will reset the context for reuse.
	Reset()
}
