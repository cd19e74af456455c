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

package sync

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const testWorkerPoolSize = 5

func TestGo(t *testing.T) {
	defer goleak.VerifyNone(t)

	var count uint32

	p := NewWorkerPool(testWorkerPoolSize)
	p.Init()

	var wg sync.WaitGroup
	for i := 0; i < testWorkerPoolSize*2; i++ {
		wg.Add(1)
		p.Go(func() {
			atomic.AddUint32(&count, 1)
			wg.Done()
		})
	}
	wg.Wait()

	require.Equal(t, uint32(testWorkerPoolSize*2), count)
}

func TestGoIfAvailable(t *testing.T) {
	var count uint32

	p := NewWorkerPool(testWorkerPoolSize)
	p.Init()

	var (
		wg      sync.WaitGroup
		gate    sync.WaitGroup
		started sync.WaitGroup
	)

	// Consume all the workers.
	gate.Add(1)
	for i := 0; i < testWorkerPoolSize; i++ {
		wg.Add(1)
		started.Add(1)
		require.True(t, p.GoIfAvailable(func() {
			started.Done()
			gate.Wait()
			atomic.AddUint32(&count, 1)
			wg.Done()
		}))
	}
	started.Wait()

	// No workers available.
	require.False(t, p.GoIfAvailable(func() {}))

	gate.Done()
	wg.Wait()
	require.Equal(t, uint32(testWorkerPoolSize), count)
}

func TestGoWithTimeout(t *testing.T) {
	p := NewWorkerPool(1)
	p.Init()

	var (
		gate    sync.WaitGroup
		started sync.WaitGroup
	)
	gate.Add(1)
	started.Add(1)
	p.Go(func() {
		started.Done()
		gate.Wait()
	})
	started.Wait()

	// Held worker means the timeout should fire.
	require.False(t, p.GoWithTimeout(func() {}, 10*time.Millisecond))

	gate.Done()

	// Worker free again, should succeed well within the timeout.
	var wg sync.WaitGroup
	wg.Add(1)
	require.True(t, p.GoWithTimeout(func() {
		wg.Done()
	}, time.Minute))
	wg.Wait()
}
