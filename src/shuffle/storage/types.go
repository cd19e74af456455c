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

// Package storage provides the local block stores executors write
// shuffle output into and serve fetches from: single map output
// partitions, batches of contiguous partitions, and merged blocks with
// their chunk metadata.
package storage

import (
	"github.com/m3db/shuffle/src/shuffle/block"
	"github.com/m3db/shuffle/src/shuffle/buffer"
	"github.com/m3db/shuffle/src/shuffle/fetcher"
	"github.com/m3db/shuffle/src/x/instrument"

	"github.com/pkg/errors"
	"github.com/uber-go/tally"
)

var (
	// ErrBlockNotFound is returned when a read references a block the
	// store does not hold. Wrapped errors carry the block, use
	// errors.Cause to test for it.
	ErrBlockNotFound = errors.New("block not found")

	errStoreClosed = errors.New("block store closed")
)

// Store is a local block store. It serves the read capabilities the
// fetch engine consumes plus the write and serving side an executor
// needs.
type Store interface {
	fetcher.BlockStore

	// AddBlock stores the payload of a single map output partition.
	AddBlock(id block.ID, payload []byte) error

	// AddMergedBlock stores a merged block's chunk payloads along with
	// its chunk metadata. The number of chunks must match the metadata.
	AddMergedBlock(id block.ID, meta fetcher.MergedMeta, chunks [][]byte) error

	// LocalMergedChunk returns the single chunk a chunk ID references,
	// used when serving a remote chunk fetch.
	LocalMergedChunk(id block.ID) (buffer.Buffer, error)

	// LocalDirs returns the directories host local reads of this
	// store's blocks resolve through. Empty for a memory store.
	LocalDirs() []string

	// Close releases everything the store holds. Reads and writes
	// after Close fail.
	Close() error
}

// Options configures a block store.
type Options interface {
	// SetInstrumentOptions sets the instrument options.
	SetInstrumentOptions(value instrument.Options) Options

	// InstrumentOptions returns the instrument options.
	InstrumentOptions() instrument.Options

	// SetCompressPayloads sets whether payloads are snappy framed at
	// rest. Payloads are served as written, readers decode them
	// through fetcher.SnappyStreamWrapper.
	SetCompressPayloads(value bool) Options

	// CompressPayloads returns whether payloads are snappy framed at
	// rest.
	CompressPayloads() bool

	// SetLocalDirs sets the directories a file store places block
	// files into.
	SetLocalDirs(value []string) Options

	// LocalDirs returns the directories a file store places block
	// files into.
	LocalDirs() []string
}

type storeMetrics struct {
	blocksWritten       tally.Counter
	bytesWritten        tally.Counter
	mergedBlocksWritten tally.Counter
	blocksRead          tally.Counter
	bytesRead           tally.Counter
}

func newStoreMetrics(scope tally.Scope) storeMetrics {
	return storeMetrics{
		blocksWritten:       scope.Counter("blocks-written"),
		bytesWritten:        scope.Counter("bytes-written"),
		mergedBlocksWritten: scope.Counter("merged-blocks-written"),
		blocksRead:          scope.Counter("blocks-read"),
		bytesRead:           scope.Counter("bytes-read"),
	}
}
