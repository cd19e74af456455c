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
	"errors"
	"fmt"

	"github.com/m3db/shuffle/src/shuffle/block"
	"github.com/m3db/shuffle/src/shuffle/topology"
	xerrors "github.com/m3db/shuffle/src/x/errors"
)

var (
	// ErrNoBlocksLeft is returned by Next once every admitted block has
	// been consumed.
	ErrNoBlocksLeft = errors.New("no blocks left to fetch")

	// errIteratorClosed is returned by Next when the iterator was
	// closed while the consumer was waiting.
	errIteratorClosed = errors.New("block iterator closed")
)

// FetchFailedError is the terminal failure for one block. The scheduler
// uses the shuffle, map and reduce coordinates it carries to regenerate
// the lost map output.
type FetchFailedError struct {
	// Block is the block whose fetch failed.
	Block block.ID

	// MapIndex is the map partition index of the block, or
	// block.MapIndexUnknown for merged blocks and chunks.
	MapIndex int32

	// Host is the host the fetch targeted, nil when unknown.
	Host topology.Host

	// Err is the underlying cause, possibly nil.
	Err error
}

func (e *FetchFailedError) Error() string {
	host := "unknown host"
	if e.Host != nil {
		host = e.Host.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("failed to fetch block %s from %s: %v", e.Block, host, e.Err)
	}
	return fmt.Sprintf("failed to fetch block %s from %s", e.Block, host)
}

// InnerError returns the underlying cause of the fetch failure.
func (e *FetchFailedError) InnerError() error {
	return e.Err
}

// IsFetchFailedError returns whether an error or any error it wraps is
// a terminal fetch failure.
func IsFetchFailedError(err error) bool {
	_, ok := GetFetchFailedError(err)
	return ok
}

// GetFetchFailedError returns the first terminal fetch failure in an
// error's chain of wrapped errors if any.
func GetFetchFailedError(err error) (*FetchFailedError, bool) {
	for err != nil {
		if fetchErr, ok := err.(*FetchFailedError); ok {
			return fetchErr, true
		}
		err = xerrors.InnerError(err)
	}
	return nil, false
}
