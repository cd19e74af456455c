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

// Package fetcher implements the reduce side of a shuffle, fetching
// blocks of map output from local storage and remote hosts and handing
// them to a single consumer as a stream of completed blocks.
package fetcher

import (
	"io"
	"os"

	"github.com/m3db/shuffle/src/shuffle/block"
	"github.com/m3db/shuffle/src/shuffle/buffer"
	"github.com/m3db/shuffle/src/shuffle/topology"
	"github.com/m3db/shuffle/src/x/clock"
	xcontext "github.com/m3db/shuffle/src/x/context"
	"github.com/m3db/shuffle/src/x/instrument"

	"github.com/RoaringBitmap/roaring"
)

// BlockIterator iterates the blocks of one fetch in completion order.
// It is not safe for concurrent use, a single consumer drives it.
type BlockIterator interface {
	// HasNext returns whether another block remains to be consumed.
	HasNext() bool

	// Next blocks until the next fetched block completes and returns
	// it. The returned stream must be closed by the caller, closing it
	// releases the block's buffer. Calling Next past exhaustion returns
	// ErrNoBlocksLeft.
	Next() (FetchedBlock, error)

	// Close releases every buffer the iterator still holds, removes any
	// temp files it created and stops deliveries from in flight
	// requests. It is safe to call more than once and safe to call
	// concurrently with a consumer blocked in Next.
	Close() error
}

// FetchedBlock is one completed block handed to the consumer.
type FetchedBlock struct {
	// ID is the block the stream carries.
	ID block.ID

	// Stream reads the block data, decompressed when a stream wrapper
	// is configured. Closing the stream releases the block's buffer.
	Stream io.ReadCloser
}

// HostBlocks groups the blocks to fetch from a single host.
type HostBlocks struct {
	// Host serves the blocks. A merged pseudo host carries an empty
	// executor ID.
	Host topology.Host

	// Blocks lists the blocks with their sizes and map indexes.
	Blocks []block.Descriptor
}

// MergedMeta describes the chunks of a merged block.
type MergedMeta struct {
	// NumChunks is the number of chunks the merged block splits into.
	NumChunks int

	// ChunkMaps holds, per chunk, the set of map partition indexes
	// merged into that chunk.
	ChunkMaps []*roaring.Bitmap
}

// BlockStore reads blocks available without going over the network.
type BlockStore interface {
	// LocalBlock returns the data for a block this executor wrote.
	LocalBlock(id block.ID) (buffer.Buffer, error)

	// HostLocalBlock returns the data for a block another executor on
	// the same host wrote, read directly from that executor's local
	// directories.
	HostLocalBlock(id block.ID, dirs []string) (buffer.Buffer, error)

	// LocalMergedMeta returns the chunk metadata for a merged block
	// pushed to this host.
	LocalMergedMeta(id block.ID) (MergedMeta, error)

	// LocalMergedChunks returns one buffer per chunk of a merged block
	// pushed to this host, in chunk order.
	LocalMergedChunks(id block.ID) ([]buffer.Buffer, error)
}

// HostLocalDirsResolver resolves the local directories of other
// executors running on this host so their blocks can be read from disk
// without a network round trip.
type HostLocalDirsResolver interface {
	// LocalDirs returns directories keyed by executor ID. A missing
	// entry fails only the blocks of that executor.
	LocalDirs(executorIDs []string) (map[string][]string, error)
}

// BlockFetchListener receives the results of an asynchronous remote
// fetch, invoked from the transport's goroutines.
type BlockFetchListener interface {
	// OnBlockFetchSuccess delivers one block's data. The listener must
	// take its own reference to retain the buffer past the call.
	OnBlockFetchSuccess(id block.ID, data buffer.Buffer)

	// OnBlockFetchFailure reports a terminal failure fetching a block.
	OnBlockFetchFailure(id block.ID, err error)
}

// MergedMetaListener receives the result of an asynchronous merged
// block metadata probe.
type MergedMetaListener interface {
	// OnMetaSuccess delivers the chunk metadata for a merged block.
	OnMetaSuccess(id block.ID, meta MergedMeta)

	// OnMetaFailure reports a failure resolving metadata, the caller
	// falls back to the original blocks.
	OnMetaFailure(id block.ID, err error)
}

// RemoteBlockClient fetches blocks and merged block metadata from
// remote hosts.
type RemoteBlockClient interface {
	// FetchBlocks starts an asynchronous fetch of blocks from a host,
	// delivering each block's result to the listener as it completes.
	// When spill is non nil block data is streamed to temp files
	// created through it instead of held in memory.
	FetchBlocks(
		host topology.Host,
		ids []block.ID,
		listener BlockFetchListener,
		spill TempFileRegistry,
	)

	// FetchMergedMeta starts an asynchronous probe for the chunk
	// metadata of a merged block on a host.
	FetchMergedMeta(host topology.Host, id block.ID, listener MergedMetaListener)
}

// LocationResolver maps merged blocks back to the original blocks they
// were merged from when a merged fetch fails.
type LocationResolver interface {
	// OriginalBlocksForMerged returns the locations of the original
	// blocks for a merged shuffle partition, restricted to the map
	// partition indexes in tracked when tracked is non nil.
	OriginalBlocksForMerged(
		shuffleID uint32,
		reduce uint32,
		tracked *roaring.Bitmap,
	) ([]HostBlocks, error)
}

// TempFileRegistry creates and cleans up the temp files large fetches
// stream into.
type TempFileRegistry interface {
	// CreateTempFile creates a fresh file for a streamed download.
	CreateTempFile() (*os.File, error)

	// RegisterTempFileToClean hands the registry ownership of deleting
	// a file. It returns false when the registry has already been
	// closed, the caller then deletes the file itself.
	RegisterTempFileToClean(path string) bool

	// Close removes every registered file.
	Close() error
}

// StreamWrapperFn wraps a raw block stream, typically with a
// decompressing reader, before it is checked and handed to the
// consumer. A nil wrapper leaves streams untouched.
type StreamWrapperFn func(id block.ID, r io.Reader) (io.Reader, error)

// Options configures a block iterator.
type Options interface {
	// Validate returns an error when the options cannot produce a
	// usable iterator.
	Validate() error

	// SetInstrumentOptions sets the instrumentation options.
	SetInstrumentOptions(value instrument.Options) Options

	// InstrumentOptions returns the instrumentation options.
	InstrumentOptions() instrument.Options

	// SetClockOptions sets the clock options.
	SetClockOptions(value clock.Options) Options

	// ClockOptions returns the clock options.
	ClockOptions() clock.Options

	// SetBlockStore sets the local block store.
	SetBlockStore(value BlockStore) Options

	// BlockStore returns the local block store.
	BlockStore() BlockStore

	// SetHostLocalDirsResolver sets the resolver for other executors'
	// local directories.
	SetHostLocalDirsResolver(value HostLocalDirsResolver) Options

	// HostLocalDirsResolver returns the resolver for other executors'
	// local directories.
	HostLocalDirsResolver() HostLocalDirsResolver

	// SetRemoteBlockClient sets the remote fetch client.
	SetRemoteBlockClient(value RemoteBlockClient) Options

	// RemoteBlockClient returns the remote fetch client.
	RemoteBlockClient() RemoteBlockClient

	// SetLocationResolver sets the resolver used to fall back from
	// merged blocks to their original blocks.
	SetLocationResolver(value LocationResolver) Options

	// LocationResolver returns the resolver used to fall back from
	// merged blocks to their original blocks.
	LocationResolver() LocationResolver

	// SetTempFileRegistry sets the temp file registry for spilled
	// fetches. When none is set the iterator creates one in the
	// default temp dir and closes it when the iterator is closed.
	SetTempFileRegistry(value TempFileRegistry) Options

	// TempFileRegistry returns the temp file registry for spilled
	// fetches.
	TempFileRegistry() TempFileRegistry

	// SetStreamWrapperFn sets the stream wrapper applied to fetched
	// blocks.
	SetStreamWrapperFn(value StreamWrapperFn) Options

	// StreamWrapperFn returns the stream wrapper applied to fetched
	// blocks.
	StreamWrapperFn() StreamWrapperFn

	// SetMaxBytesInFlight sets the target ceiling on the bytes of
	// remote block data requested and not yet consumed.
	SetMaxBytesInFlight(value int64) Options

	// MaxBytesInFlight returns the target ceiling on the bytes of
	// remote block data requested and not yet consumed.
	MaxBytesInFlight() int64

	// SetMaxRequestsInFlight sets the ceiling on concurrently
	// outstanding remote requests.
	SetMaxRequestsInFlight(value int64) Options

	// MaxRequestsInFlight returns the ceiling on concurrently
	// outstanding remote requests.
	MaxRequestsInFlight() int64

	// SetMaxBlocksInFlightPerHost sets the ceiling on blocks and
	// metadata probes outstanding to any one host.
	SetMaxBlocksInFlightPerHost(value int64) Options

	// MaxBlocksInFlightPerHost returns the ceiling on blocks and
	// metadata probes outstanding to any one host.
	MaxBlocksInFlightPerHost() int64

	// SetMaxRequestSizeToMemory sets the request size above which block
	// data is streamed to temp files rather than held in memory.
	SetMaxRequestSizeToMemory(value int64) Options

	// MaxRequestSizeToMemory returns the request size above which block
	// data is streamed to temp files rather than held in memory.
	MaxRequestSizeToMemory() int64

	// SetDetectCorruption sets whether fetched blocks are checked for
	// corruption.
	SetDetectCorruption(value bool) Options

	// DetectCorruption returns whether fetched blocks are checked for
	// corruption.
	DetectCorruption() bool

	// SetDetectCorruptionUseExtraMemory sets whether corruption checks
	// eagerly decompress small blocks into memory instead of checking
	// lazily while the consumer reads.
	SetDetectCorruptionUseExtraMemory(value bool) Options

	// DetectCorruptionUseExtraMemory returns whether corruption checks
	// eagerly decompress small blocks into memory.
	DetectCorruptionUseExtraMemory() bool

	// SetBatchFetchEnabled sets whether contiguous blocks of one map
	// partition are coalesced into batch blocks.
	SetBatchFetchEnabled(value bool) Options

	// BatchFetchEnabled returns whether contiguous blocks of one map
	// partition are coalesced into batch blocks.
	BatchFetchEnabled() bool

	// SetHostLocalFetchEnabled sets whether blocks of other executors
	// on this host are read from disk instead of fetched remotely.
	SetHostLocalFetchEnabled(value bool) Options

	// HostLocalFetchEnabled returns whether blocks of other executors
	// on this host are read from disk instead of fetched remotely.
	HostLocalFetchEnabled() bool
}

// NewBlockIteratorFn creates a block iterator, the signature exists so
// callers can inject alternate constructors in tests.
type NewBlockIteratorFn func(
	ctx xcontext.Context,
	localHost topology.Host,
	blocksByHost []HostBlocks,
	opts Options,
) (BlockIterator, error)
