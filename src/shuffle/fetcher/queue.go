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
	"sync"

	"github.com/m3db/shuffle/src/shuffle/block"
	"github.com/m3db/shuffle/src/shuffle/buffer"
	"github.com/m3db/shuffle/src/shuffle/topology"
)

type outcomeType int

const (
	successOutcome outcomeType = iota
	failureOutcome
	fallbackOutcome
	remoteMetaOutcome
	remoteMetaFailedOutcome
	localMetaOutcome
	localMetaFailedOutcome
)

// fetchOutcome is one completion event handed to the consumer, the
// outcome type selects which fields are meaningful.
type fetchOutcome struct {
	outcomeType outcomeType
	id          block.ID
	mapIndex    int32
	host        topology.Host
	size        int64
	buf         buffer.Buffer
	meta        MergedMeta
	err         error

	// reqDone marks the final outcome of a network request, processing
	// it releases the request's in flight slot.
	reqDone bool
}

// outcomeQueue hands completion events from the fetch paths to the
// single consumer. Marking the queue zombie refuses further puts so
// late producers keep ownership of buffers and release them themselves.
type outcomeQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	items    []fetchOutcome
	zombie   bool
}

func newOutcomeQueue() *outcomeQueue {
	q := &outcomeQueue{}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// put appends an outcome and wakes the consumer. It returns false when
// the queue is zombie, the caller then releases whatever the outcome
// holds.
func (q *outcomeQueue) put(outcome fetchOutcome) bool {
	q.mu.Lock()
	if q.zombie {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, outcome)
	q.mu.Unlock()
	q.notEmpty.Signal()
	return true
}

// take blocks until an outcome is available. It returns false once the
// queue is zombie, anything still queued then belongs to drain.
func (q *outcomeQueue) take() (fetchOutcome, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.zombie {
		q.notEmpty.Wait()
	}
	if q.zombie {
		return fetchOutcome{}, false
	}
	outcome := q.items[0]
	q.items[0] = fetchOutcome{}
	q.items = q.items[1:]
	return outcome, true
}

// markZombie refuses further puts and wakes a blocked take.
func (q *outcomeQueue) markZombie() {
	q.mu.Lock()
	q.zombie = true
	q.mu.Unlock()
	q.notEmpty.Broadcast()
}

// drain removes and returns everything queued.
func (q *outcomeQueue) drain() []fetchOutcome {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return items
}
