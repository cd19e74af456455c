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

	"go.uber.org/zap"
)

// blockFetchListener receives the results of one fetch request from the
// transport's goroutines and forwards them to the consumer's queue.
type blockFetchListener struct {
	mu         sync.Mutex
	queue      *outcomeQueue
	host       topology.Host
	remaining  map[block.ID]struct{}
	sizes      map[block.ID]int64
	mapIndexes map[block.ID]int32
}

func newBlockFetchListener(
	queue *outcomeQueue,
	host topology.Host,
	blocks []block.Descriptor,
) *blockFetchListener {
	l := &blockFetchListener{
		queue:      queue,
		host:       host,
		remaining:  make(map[block.ID]struct{}, len(blocks)),
		sizes:      make(map[block.ID]int64, len(blocks)),
		mapIndexes: make(map[block.ID]int32, len(blocks)),
	}
	for _, b := range blocks {
		l.remaining[b.ID] = struct{}{}
		l.sizes[b.ID] = b.Size
		l.mapIndexes[b.ID] = b.MapIndex
	}
	return l
}

// OnBlockFetchSuccess hands a fetched block to the consumer, taking a
// reference for the queue's ownership. If the queue refuses the block
// the iterator was closed and the reference is given straight back.
// Deliveries for unknown or already completed blocks are ignored.
func (l *blockFetchListener) OnBlockFetchSuccess(id block.ID, data buffer.Buffer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.remaining[id]; !ok {
		return
	}
	delete(l.remaining, id)

	data.IncRef()
	ok := l.queue.put(fetchOutcome{
		outcomeType: successOutcome,
		id:          id,
		mapIndex:    l.mapIndexes[id],
		host:        l.host,
		size:        l.sizes[id],
		buf:         data,
		reqDone:     len(l.remaining) == 0,
	})
	if !ok {
		data.DecRef()
	}
}

// OnBlockFetchFailure reports a failed block. A failed chunk falls back
// to its original blocks rather than failing the fetch.
func (l *blockFetchListener) OnBlockFetchFailure(id block.ID, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.remaining[id]; !ok {
		return
	}
	if id.IsChunk() {
		delete(l.remaining, id)
		l.queue.put(fetchOutcome{
			outcomeType: fallbackOutcome,
			id:          id,
			host:        l.host,
			size:        l.sizes[id],
			err:         err,
			reqDone:     len(l.remaining) == 0,
		})
		return
	}
	l.queue.put(fetchOutcome{
		outcomeType: failureOutcome,
		id:          id,
		mapIndex:    l.mapIndexes[id],
		host:        l.host,
		err:         err,
	})
}

// mergedMetaListener forwards merged metadata probe results to the
// consumer's queue. The sizes map is written before the probes go out
// and read only afterwards.
type mergedMetaListener struct {
	queue *outcomeQueue
	host  topology.Host
	sizes map[block.ID]int64
}

func (l *mergedMetaListener) OnMetaSuccess(id block.ID, meta MergedMeta) {
	l.queue.put(fetchOutcome{
		outcomeType: remoteMetaOutcome,
		id:          id,
		host:        l.host,
		size:        l.sizes[id],
		meta:        meta,
	})
}

func (l *mergedMetaListener) OnMetaFailure(id block.ID, err error) {
	l.queue.put(fetchOutcome{
		outcomeType: remoteMetaFailedOutcome,
		id:          id,
		host:        l.host,
		err:         err,
	})
}

// fetchUpToMaxBytes issues queued requests while the in flight byte and
// request limits allow. Requests deferred by per host limits go first,
// they have waited longest.
func (i *blockIterator) fetchUpToMaxBytes() {
	for hostKey, deferred := range i.deferredRequests {
		for len(deferred) > 0 && i.fetchable(deferred[0]) && !i.hostMaxedOut(deferred[0]) {
			req := deferred[0]
			deferred[0] = fetchRequest{}
			deferred = deferred[1:]
			i.log.Debug("sending deferred fetch request",
				zap.Int("blocks", len(req.blocks)), zap.Stringer("host", req.host))
			i.send(req)
		}
		if len(deferred) == 0 {
			delete(i.deferredRequests, hostKey)
		} else {
			i.deferredRequests[hostKey] = deferred
		}
	}

	for len(i.pendingRequests) > 0 && i.fetchable(i.pendingRequests[0]) {
		req := i.pendingRequests[0]
		i.pendingRequests[0] = fetchRequest{}
		i.pendingRequests = i.pendingRequests[1:]
		if i.hostMaxedOut(req) {
			i.log.Debug("deferring fetch request",
				zap.Int("blocks", len(req.blocks)), zap.Stringer("host", req.host))
			hostKey := req.host.String()
			i.deferredRequests[hostKey] = append(i.deferredRequests[hostKey], req)
			continue
		}
		i.send(req)
	}
}

// fetchable returns whether the limits admit sending a request now. A
// request always goes out when nothing is in flight so progress never
// stalls behind a single oversized request.
func (i *blockIterator) fetchable(req fetchRequest) bool {
	return i.bytesInFlight == 0 ||
		(i.reqsInFlight+1 <= i.opts.MaxRequestsInFlight() &&
			i.bytesInFlight+req.size <= i.opts.MaxBytesInFlight())
}

// hostMaxedOut returns whether sending the request would exceed the per
// host budget of blocks in flight.
func (i *blockIterator) hostMaxedOut(req fetchRequest) bool {
	return i.blocksPerHost[req.host.String()]+req.numBlocks() > i.opts.MaxBlocksInFlightPerHost()
}

func (i *blockIterator) send(req fetchRequest) {
	if req.forMergedMetas {
		i.sendMergedMetaRequest(req)
	} else {
		i.sendRequest(req)
	}
	i.blocksPerHost[req.host.String()] += req.numBlocks()
}

func (i *blockIterator) sendRequest(req fetchRequest) {
	i.log.Debug("sending fetch request",
		zap.Int("blocks", len(req.blocks)),
		zap.Int64("bytes", req.size),
		zap.Stringer("host", req.host))
	i.bytesInFlight += req.size
	i.reqsInFlight++

	listener := newBlockFetchListener(i.queue, req.host, req.blocks)
	var spill TempFileRegistry
	if req.size > i.opts.MaxRequestSizeToMemory() {
		spill = i.tempFiles
	}
	ids := make([]block.ID, 0, len(req.blocks))
	for _, b := range req.blocks {
		ids = append(ids, b.ID)
	}
	i.client.FetchBlocks(req.host, ids, listener, spill)
}

// sendMergedMetaRequest probes chunk metadata for each merged block of
// the request. Probes move no block data so they do not count against
// the in flight byte or request limits.
func (i *blockIterator) sendMergedMetaRequest(req fetchRequest) {
	i.log.Debug("sending merged metadata request",
		zap.Int("blocks", len(req.blocks)), zap.Stringer("host", req.host))
	listener := &mergedMetaListener{
		queue: i.queue,
		host:  req.host,
		sizes: make(map[block.ID]int64, len(req.blocks)),
	}
	for _, b := range req.blocks {
		listener.sizes[b.ID] = b.Size
	}
	for _, b := range req.blocks {
		i.client.FetchMergedMeta(req.host, b.ID, listener)
	}
}
