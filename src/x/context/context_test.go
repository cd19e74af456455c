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
	"sync/atomic"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xresource "github.com/m3db/shuffle/src/x/resource"
)

func TestRegisterFinalizerRunsOnClose(t *testing.T) {
	ctx := NewContext()
	assert.False(t, ctx.IsClosed())

	var finalized int32
	ctx.RegisterFinalizer(xresource.FinalizerFn(func() {
		atomic.AddInt32(&finalized, 1)
	}))

	ctx.Close()
	assert.True(t, ctx.IsClosed())
	assert.Equal(t, int32(1), atomic.LoadInt32(&finalized))
}

func TestCloseIsIdempotent(t *testing.T) {
	ctx := NewContext()

	var finalized int32
	ctx.RegisterFinalizer(xresource.FinalizerFn(func() {
		atomic.AddInt32(&finalized, 1)
	}))

	ctx.Close()
	ctx.Close()
	ctx.BlockingClose()

	assert.Equal(t, int32(1), atomic.LoadInt32(&finalized))
}

func TestRegisterAfterCloseDoesNotFinalize(t *testing.T) {
	ctx := NewContext()
	ctx.Close()

	var finalized int32
	ctx.RegisterFinalizer(xresource.FinalizerFn(func() {
		atomic.AddInt32(&finalized, 1)
	}))

	ctx.BlockingClose()
	assert.Equal(t, int32(0), atomic.LoadInt32(&finalized))
}

func TestRegisterCloserRunsOnClose(t *testing.T) {
	ctx := NewContext()

	var closed int32
	ctx.RegisterCloser(xresource.SimpleCloserFn(func() {
		atomic.AddInt32(&closed, 1)
	}))

	ctx.Close()
	assert.Equal(t, int32(1), atomic.LoadInt32(&closed))
}

func TestFinalizersRunInRegistrationOrder(t *testing.T) {
	ctx := NewContext()

	var order []int
	for i := 0; i < 4; i++ {
		i := i
		ctx.RegisterFinalizer(xresource.FinalizerFn(func() {
			order = append(order, i)
		}))
	}

	ctx.BlockingClose()
	assert.Equal(t, []int{0, 1, 2, 3}, order)
}

func TestDependsOnBlocksFinalizers(t *testing.T) {
	defer leaktest.CheckTimeout(t, time.Minute)()

	ctx := NewContext()
	blocker := NewContext()
	ctx.DependsOn(blocker)

	var finalized int32
	ctx.RegisterFinalizer(xresource.FinalizerFn(func() {
		atomic.AddInt32(&finalized, 1)
	}))

	ctx.Close()
	assert.Equal(t, int32(0), atomic.LoadInt32(&finalized))

	blocker.Close()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&finalized) == 1
	}, time.Minute, time.Millisecond)
}

func TestResetAllowsReuse(t *testing.T) {
	ctx := NewContext()

	var finalized int32
	ctx.RegisterFinalizer(xresource.FinalizerFn(func() {
		atomic.AddInt32(&finalized, 1)
	}))
	ctx.BlockingClose()
	require.Equal(t, int32(1), atomic.LoadInt32(&finalized))

	ctx.Reset()
	require.False(t, ctx.IsClosed())

	ctx.RegisterFinalizer(xresource.FinalizerFn(func() {
		atomic.AddInt32(&finalized, 1)
	}))
	ctx.BlockingClose()
	require.Equal(t, int32(2), atomic.LoadInt32(&finalized))
}
