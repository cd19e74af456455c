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
	"io"
	"math/rand"
	"sync"

	"github.com/m3db/shuffle/src/shuffle/block"
	"github.com/m3db/shuffle/src/shuffle/topology"
	"github.com/m3db/shuffle/src/x/clock"
	xcontext "github.com/m3db/shuffle/src/x/context"
	xresource "github.com/m3db/shuffle/src/x/resource"

	"github.com/RoaringBitmap/roaring"
	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

var (
	errNoContext   = errors.New("no context set")
	errNoLocalHost = errors.New("no local host set")
)

type iteratorMetrics struct {
	localBlocksFetched    tally.Counter
	remoteBlocksFetched   tally.Counter
	localBytesRead        tally.Counter
	remoteBytesRead       tally.Counter
	remoteBytesReadToDisk tally.Counter
	corruptedBlocks       tally.Counter
	retriedBlocks         tally.Counter
	fallbacks             tally.Counter
	fetchFailures         tally.Counter
	fetchWait             tally.Timer
}

func newIteratorMetrics(scope tally.Scope) iteratorMetrics {
	return iteratorMetrics{
		localBlocksFetched:    scope.Counter("local-blocks-fetched"),
		remoteBlocksFetched:   scope.Counter("remote-blocks-fetched"),
		localBytesRead:        scope.Counter("local-bytes-read"),
		remoteBytesRead:       scope.Counter("remote-bytes-read"),
		remoteBytesReadToDisk: scope.Counter("remote-bytes-read-to-disk"),
		corruptedBlocks:       scope.Counter("corrupted-blocks"),
		retriedBlocks:         scope.Counter("retried-blocks"),
		fallbacks:             scope.Counter("merged-fallbacks"),
		fetchFailures:         scope.Counter("fetch-failures"),
		fetchWait:             scope.Timer("fetch-wait"),
	}
}

// blockIterator fetches a set of shuffle blocks and iterates over them
// in completion order. All bookkeeping fields below queue are owned by
// the consumer goroutine, producers only ever touch the outcome queue.
type blockIterator struct {
	opts              Options
	localHost         topology.Host
	mergedLocalHost   topology.Host
	store             BlockStore
	dirsResolver      HostLocalDirsResolver
	client            RemoteBlockClient
	locations         LocationResolver
	tempFiles         TempFileRegistry
	streamWrapper     StreamWrapperFn
	log               *zap.Logger
	metrics           iteratorMetrics
	nowFn             clock.NowFn
	targetRequestSize int64

	queue *outcomeQueue

	// randFn shuffles the remote request order so a wave of reducers
	// does not hit hosts in lockstep, replaced in tests.
	randFn func(n int, swap func(i, j int))

	admitted         int64
	processed        int64
	bytesInFlight    int64
	reqsInFlight     int64
	blocksPerHost    map[string]int64
	pendingRequests  []fetchRequest
	deferredRequests map[string][]fetchRequest
	hostLocalBlocks  map[block.ID]struct{}
	corrupted        map[block.ID]struct{}
	chunksMeta       map[block.ID]*roaring.Bitmap

	// mu guards closed and the most recently returned stream against a
	// concurrent Close.
	mu      sync.Mutex
	closed  bool
	current *bufferReleasingReader
}

// NewBlockIterator starts fetching the given blocks and returns an
// iterator over them in completion order. Cleanup runs as a finalizer
// on the context so an abandoned iterator still releases its buffers,
// callers that stop consuming early should close it themselves.
func NewBlockIterator(
	ctx xcontext.Context,
	localHost topology.Host,
	blocksByHost []HostBlocks,
	opts Options,
) (BlockIterator, error) {
	if ctx == nil {
		return nil, errNoContext
	}
	if localHost == nil {
		return nil, errNoLocalHost
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	// Keep requests to roughly a fifth of the in flight budget so
	// several hosts are being read from at any one time.
	targetRequestSize := opts.MaxBytesInFlight() / 5
	if targetRequestSize < 1 {
		targetRequestSize = 1
	}

	parts, err := partitionBlocks(blocksByHost, partitionOptions{
		localHost:         localHost,
		hostLocalEnabled:  opts.HostLocalFetchEnabled(),
		batchEnabled:      opts.BatchFetchEnabled(),
		targetRequestSize: targetRequestSize,
		maxBlocksPerHost:  opts.MaxBlocksInFlightPerHost(),
	})
	if err != nil {
		return nil, err
	}

	tempFiles := opts.TempFileRegistry()
	if tempFiles == nil {
		tempFiles = NewTempFileRegistry("")
	}

	instrumentOpts := opts.InstrumentOptions()
	iter := &blockIterator{
		opts:              opts,
		localHost:         localHost,
		mergedLocalHost:   topology.NewMergedHost(localHost.Address()),
		store:             opts.BlockStore(),
		dirsResolver:      opts.HostLocalDirsResolver(),
		client:            opts.RemoteBlockClient(),
		locations:         opts.LocationResolver(),
		tempFiles:         tempFiles,
		streamWrapper:     opts.StreamWrapperFn(),
		log:               instrumentOpts.Logger(),
		metrics:           newIteratorMetrics(instrumentOpts.MetricsScope().SubScope("fetch")),
		nowFn:             opts.ClockOptions().NowFn(),
		targetRequestSize: targetRequestSize,
		queue:             newOutcomeQueue(),
		randFn:            rand.Shuffle,
		admitted:          parts.admitted,
		blocksPerHost:     make(map[string]int64),
		deferredRequests:  make(map[string][]fetchRequest),
		hostLocalBlocks:   make(map[block.ID]struct{}),
		corrupted:         make(map[block.ID]struct{}),
		chunksMeta:        make(map[block.ID]*roaring.Bitmap),
	}
	iter.registerHostLocalBlocks(parts.hostLocal)

	ctx.RegisterFinalizer(xresource.FinalizerFn(func() {
		if err := iter.Close(); err != nil {
			iter.log.Warn("error cleaning up block iterator", zap.Error(err))
		}
	}))

	iter.randFn(len(parts.remote), func(a, b int) {
		parts.remote[a], parts.remote[b] = parts.remote[b], parts.remote[a]
	})
	iter.pendingRequests = parts.remote

	iter.log.Debug("starting block fetch",
		zap.Int64("admitted", parts.admitted),
		zap.Int("localBlocks", len(parts.local)),
		zap.Int("hostLocalExecutors", len(parts.hostLocal)),
		zap.Int("mergedLocalBlocks", len(parts.mergedLocal)),
		zap.Int("remoteRequests", len(parts.remote)))

	iter.fetchUpToMaxBytes()
	iter.fetchLocalBlocks(parts.local)
	iter.fetchHostLocalBlocks(parts.hostLocal)
	iter.fetchMergedLocalBlocks(parts.mergedLocal)

	return iter, nil
}

func (i *blockIterator) registerHostLocalBlocks(execs []executorBlocks) {
	for _, exec := range execs {
		for _, desc := range exec.blocks {
			i.hostLocalBlocks[desc.ID] = struct{}{}
		}
	}
}

func (i *blockIterator) HasNext() bool {
	return i.processed < i.admitted
}

func (i *blockIterator) Next() (FetchedBlock, error) {
	i.mu.Lock()
	closed := i.closed
	i.mu.Unlock()
	if closed {
		return FetchedBlock{}, errIteratorClosed
	}
	if !i.HasNext() {
		return FetchedBlock{}, ErrNoBlocksLeft
	}

	i.processed++
	for {
		start := i.nowFn()
		outcome, ok := i.queue.take()
		i.metrics.fetchWait.Record(i.nowFn().Sub(start))
		if !ok {
			return FetchedBlock{}, errIteratorClosed
		}

		fetched, delivered, err := i.processOutcome(outcome)
		if err != nil {
			i.metrics.fetchFailures.Inc(1)
			return FetchedBlock{}, err
		}
		i.fetchUpToMaxBytes()
		if delivered {
			return fetched, nil
		}
	}
}

// processOutcome consumes one completion from the queue. It either
// hands a block stream back for delivery, fails the fetch, or adjusts
// the bookkeeping and reports nothing delivered so Next keeps waiting.
func (i *blockIterator) processOutcome(outcome fetchOutcome) (FetchedBlock, bool, error) {
	switch outcome.outcomeType {
	case successOutcome:
		return i.processSuccess(outcome)

	case failureOutcome:
		i.log.Error("block fetch failed",
			zap.Stringer("block", outcome.id),
			zap.Stringer("host", outcome.host),
			zap.Error(outcome.err))
		return FetchedBlock{}, false, &FetchFailedError{
			Block:    outcome.id,
			MapIndex: outcome.mapIndex,
			Host:     outcome.host,
			Err:      outcome.err,
		}

	case fallbackOutcome:
		// Only fetches from a remote merged pseudo host moved bytes
		// over the network and held a slot against the host.
		if topology.IsMergedPseudoHost(outcome.host) &&
			!topology.SameHostname(outcome.host, i.localHost) {
			i.blocksPerHost[outcome.host.String()]--
			i.bytesInFlight -= outcome.size
		}
		if outcome.reqDone {
			i.reqsInFlight--
		}
		return FetchedBlock{}, false, i.initiateFallback(outcome.id, outcome.host)

	case remoteMetaOutcome:
		i.blocksPerHost[outcome.host.String()]--
		return FetchedBlock{}, false, i.admitRemoteChunks(outcome)

	case remoteMetaFailedOutcome:
		i.blocksPerHost[outcome.host.String()]--
		i.log.Warn("merged metadata probe failed, falling back",
			zap.Stringer("block", outcome.id),
			zap.Stringer("host", outcome.host),
			zap.Error(outcome.err))
		return FetchedBlock{}, false, i.initiateFallback(outcome.id, outcome.host)

	case localMetaOutcome:
		return FetchedBlock{}, false, i.materializeMergedLocalChunks(outcome)

	case localMetaFailedOutcome:
		return FetchedBlock{}, false, i.initiateFallback(outcome.id, i.mergedLocalHost)

	default:
		return FetchedBlock{}, false, fmt.Errorf("unknown fetch outcome type: %v", outcome.outcomeType)
	}
}

// admitRemoteChunks swaps a merged block's single admitted slot for one
// per chunk of its metadata and queues requests for the chunks.
func (i *blockIterator) admitRemoteChunks(outcome fetchOutcome) error {
	meta := outcome.meta
	if meta.NumChunks <= 0 || len(meta.ChunkMaps) != meta.NumChunks {
		i.log.Warn("merged metadata unusable, falling back",
			zap.Stringer("block", outcome.id),
			zap.Int("numChunks", meta.NumChunks),
			zap.Int("chunkMaps", len(meta.ChunkMaps)))
		return i.initiateFallback(outcome.id, outcome.host)
	}

	i.admitted--
	descs := chunkDescriptors(outcome.id, outcome.size, meta)
	for idx, desc := range descs {
		i.addChunk(desc.ID, meta.ChunkMaps[idx])
	}

	var chunkParts partitionedBlocks
	collectRequests(&chunkParts, outcome.host, descs, collectOptions{
		targetRequestSize: i.targetRequestSize,
		maxBlocksPerHost:  i.opts.MaxBlocksInFlightPerHost(),
	})
	i.admitted += chunkParts.admitted
	i.pendingRequests = append(i.pendingRequests, chunkParts.remote...)
	return nil
}

func (i *blockIterator) processSuccess(outcome fetchOutcome) (FetchedBlock, bool, error) {
	var (
		id   = outcome.id
		host = outcome.host
		buf  = outcome.buf
	)
	if !topology.Equal(host, i.localHost) {
		_, hostLocal := i.hostLocalBlocks[id]
		mergedLocal := topology.IsMergedPseudoHost(host) &&
			topology.SameHostname(host, i.localHost)
		if hostLocal || mergedLocal {
			i.metrics.localBlocksFetched.Inc(1)
			i.metrics.localBytesRead.Inc(buf.Size())
		} else {
			i.blocksPerHost[host.String()]--
			i.bytesInFlight -= outcome.size
			i.metrics.remoteBlocksFetched.Inc(1)
			i.metrics.remoteBytesRead.Inc(buf.Size())
			if buf.IsFileBacked() {
				i.metrics.remoteBytesReadToDisk.Inc(buf.Size())
			}
		}
	}
	if outcome.reqDone {
		i.reqsInFlight--
	}

	if buf.Size() == 0 {
		buf.DecRef()
		err := fmt.Errorf("received a zero-size buffer for block %s from %s (expected %d bytes)",
			id, host, outcome.size)
		i.log.Error("zero-size block delivered", zap.Stringer("block", id), zap.Error(err))
		return FetchedBlock{}, false, &FetchFailedError{
			Block:    id,
			MapIndex: outcome.mapIndex,
			Host:     host,
			Err:      err,
		}
	}

	raw, err := buf.NewReader()
	if err != nil {
		buf.DecRef()
		i.log.Error("error opening block stream",
			zap.Stringer("block", id), zap.Error(err))
		return FetchedBlock{}, false, &FetchFailedError{
			Block:    id,
			MapIndex: outcome.mapIndex,
			Host:     host,
			Err:      err,
		}
	}

	var (
		stream  io.Reader = raw
		wrapped bool
	)
	if i.streamWrapper != nil {
		wrappedStream, wrapErr := i.streamWrapper(id, raw)
		if wrapErr != nil {
			return i.handleCorruptBlock(outcome, raw, wrapErr)
		}
		wrapped = wrappedStream != io.Reader(raw)
		stream = wrappedStream
	}
	if wrapped && i.opts.DetectCorruption() && i.opts.DetectCorruptionUseExtraMemory() {
		// Decode up to a third of the in flight budget eagerly so most
		// corruption surfaces here, where the block can still be
		// retried, instead of during the consumer's reads.
		eager, copyErr := copyReaderUpTo(stream, i.opts.MaxBytesInFlight()/3)
		if copyErr != nil {
			return i.handleCorruptBlock(outcome, raw, copyErr)
		}
		stream = eager
	}

	if id.IsChunk() {
		// The chunk is being delivered, it can no longer fall back so
		// its tracked map index bitmap is dropped.
		i.removeChunk(id)
	}

	reader := newBufferReleasingReader(i, stream, raw, buf, id, outcome.mapIndex, host,
		i.opts.DetectCorruption() && wrapped)

	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		reader.Close()
		return FetchedBlock{}, false, errIteratorClosed
	}
	i.current = reader
	i.mu.Unlock()

	return FetchedBlock{ID: id, Stream: reader}, true, nil
}

// handleCorruptBlock releases a corrupt block's buffer and decides
// between retrying the block once, falling back for chunks and failing
// the fetch.
func (i *blockIterator) handleCorruptBlock(
	outcome fetchOutcome,
	raw io.Closer,
	cause error,
) (FetchedBlock, bool, error) {
	var (
		id   = outcome.id
		host = outcome.host
		buf  = outcome.buf
	)
	i.metrics.corruptedBlocks.Inc(1)
	if raw != nil {
		raw.Close()
	}
	fileBacked := buf.IsFileBacked()
	buf.DecRef()

	if id.IsChunk() {
		// Retrying a corrupt chunk would likely yield the same bytes,
		// fall back to the original blocks instead.
		i.log.Warn("corrupt chunk, falling back to original blocks",
			zap.Stringer("block", id),
			zap.Stringer("host", host),
			zap.Error(cause))
		return FetchedBlock{}, false, i.initiateFallback(id, host)
	}

	_, retried := i.corrupted[id]
	if fileBacked || retried {
		i.log.Error("corrupt block is not retryable",
			zap.Stringer("block", id),
			zap.Stringer("host", host),
			zap.Bool("fileBacked", fileBacked),
			zap.Bool("retried", retried),
			zap.Error(cause))
		return FetchedBlock{}, false, &FetchFailedError{
			Block:    id,
			MapIndex: outcome.mapIndex,
			Host:     host,
			Err:      cause,
		}
	}

	i.log.Warn("got corrupt block, fetching it again",
		zap.Stringer("block", id),
		zap.Stringer("host", host),
		zap.Error(cause))
	i.corrupted[id] = struct{}{}
	i.metrics.retriedBlocks.Inc(1)
	retry := block.Descriptor{ID: id, Size: outcome.size, MapIndex: outcome.mapIndex}
	i.pendingRequests = append(i.pendingRequests,
		newFetchRequest(host, []block.Descriptor{retry}, false))
	return FetchedBlock{}, false, nil
}

// streamClosed is called by a delivered stream closing itself so Close
// does not release the same stream again.
func (i *blockIterator) streamClosed(r *bufferReleasingReader) {
	i.mu.Lock()
	if i.current == r {
		i.current = nil
	}
	i.mu.Unlock()
}

func (i *blockIterator) Close() error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil
	}
	i.closed = true
	current := i.current
	i.current = nil
	i.mu.Unlock()

	i.queue.markZombie()

	if current != nil {
		current.Close()
	}

	for _, outcome := range i.queue.drain() {
		if outcome.outcomeType != successOutcome || outcome.buf == nil {
			continue
		}
		// The bytes were transferred even though nothing will read
		// them, account for them before releasing.
		if !topology.Equal(outcome.host, i.localHost) {
			i.metrics.remoteBlocksFetched.Inc(1)
			i.metrics.remoteBytesRead.Inc(outcome.buf.Size())
			if outcome.buf.IsFileBacked() {
				i.metrics.remoteBytesReadToDisk.Inc(outcome.buf.Size())
			}
		}
		outcome.buf.DecRef()
	}

	err := i.tempFiles.Close()
	i.log.Debug("block iterator closed",
		zap.Int64("processed", i.processed),
		zap.Int64("admitted", i.admitted))
	return err
}
