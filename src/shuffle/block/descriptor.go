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

package block

import (
	"fmt"

	xerrors "github.com/m3db/shuffle/src/x/errors"
)

// MapIndexUnknown is the map index recorded for blocks whose data merges
// multiple map outputs and therefore has no single producing map task.
const MapIndexUnknown int32 = -1

// Descriptor describes a fetchable block: its identity, its approximate
// size and the ordinal of the map task that produced it. Sizes are used
// for flow control only and carry no exactness guarantee.
type Descriptor struct {
	ID       ID
	Size     int64
	MapIndex int32
}

// Validate returns an error if the descriptor cannot be fetched.
func (d Descriptor) Validate() error {
	if d.Size <= 0 {
		return xerrors.NewInvalidParamsError(
			fmt.Errorf("block %s has invalid size %d", d.ID, d.Size))
	}
	return nil
}

// CoalesceBatches merges runs of descriptors that refer to contiguous
// partitions of the same map output into single batch descriptors. Runs
// never span map tasks and only single-partition blocks participate,
// everything else passes through unchanged. When disabled the input is
// returned as is.
func CoalesceBatches(descs []Descriptor, enabled bool) []Descriptor {
	if !enabled {
		return descs
	}

	var (
		result = make([]Descriptor, 0, len(descs))
		run    []Descriptor
	)
	flush := func() {
		if len(run) == 0 {
			return
		}
		var (
			first = run[0]
			last  = run[len(run)-1]
			size  int64
		)
		for _, d := range run {
			size += d.Size
		}
		result = append(result, Descriptor{
			ID: NewBatchID(first.ID.Shuffle, first.ID.Map,
				first.ID.Reduce, last.ID.Reduce+1),
			Size:     size,
			MapIndex: first.MapIndex,
		})
		run = run[:0]
	}

	for _, d := range descs {
		if d.ID.Kind != KindData {
			flush()
			result = append(result, d)
			continue
		}
		if len(run) > 0 {
			prev := run[len(run)-1]
			continues := prev.ID.Shuffle == d.ID.Shuffle &&
				prev.ID.Map == d.ID.Map &&
				prev.ID.Reduce+1 == d.ID.Reduce
			if !continues {
				flush()
			}
		}
		run = append(run, d)
	}
	flush()

	return result
}

// BatchCount returns how many single partition blocks an ID covers,
// the width of the reduce range for a batch and one for anything else.
func BatchCount(id ID) int {
	if id.Kind != KindBatch {
		return 1
	}
	return int(id.ReduceEnd - id.Reduce)
}
