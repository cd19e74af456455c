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
	"fmt"

	"github.com/m3db/shuffle/src/shuffle/block"
	"github.com/m3db/shuffle/src/shuffle/topology"
	"github.com/m3db/shuffle/src/x/instrument"

	"github.com/RoaringBitmap/roaring"
	"go.uber.org/zap"
)

// addChunk tracks the map bitmap of a chunk so a later failure can fall
// back to exactly the original blocks the chunk covers.
func (i *blockIterator) addChunk(id block.ID, tracked *roaring.Bitmap) {
	i.chunksMeta[id] = tracked
}

// removeChunk drops the bitmap of a chunk once the chunk is past the
// point of falling back.
func (i *blockIterator) removeChunk(id block.ID) {
	delete(i.chunksMeta, id)
}

func (i *blockIterator) popChunk(id block.ID) (*roaring.Bitmap, error) {
	tracked, ok := i.chunksMeta[id]
	if !ok {
		return nil, fmt.Errorf("no chunk metadata tracked for block %s", id)
	}
	delete(i.chunksMeta, id)
	return tracked, nil
}

// chunkDescriptors splits a merged block into one descriptor per chunk,
// approximating each chunk's size as an equal share of the whole.
func chunkDescriptors(id block.ID, size int64, meta MergedMeta) []block.Descriptor {
	approxChunkSize := size / int64(meta.NumChunks)
	if approxChunkSize <= 0 {
		approxChunkSize = 1
	}
	descs := make([]block.Descriptor, 0, meta.NumChunks)
	for chunk := 0; chunk < meta.NumChunks; chunk++ {
		descs = append(descs, block.Descriptor{
			ID:       block.NewChunkID(id.Shuffle, id.Merge, id.Reduce, uint32(chunk)),
			Size:     approxChunkSize,
			MapIndex: block.MapIndexUnknown,
		})
	}
	return descs
}

// initiateFallback switches a failed merged block, or chunk of one,
// back to fetching the original blocks it was merged from. A chunk
// failure against a remote host also gives up on that host's pending
// chunks of the same partition since they are likely to fail the same
// way.
func (i *blockIterator) initiateFallback(id block.ID, host topology.Host) error {
	if i.locations == nil {
		return fmt.Errorf("cannot fall back for block %s: no location resolver", id)
	}

	var (
		original []HostBlocks
		err      error
	)
	switch {
	case id.IsChunk():
		tracked, popErr := i.popChunk(id)
		if popErr != nil {
			return popErr
		}
		abandoned := int64(1)
		if topology.IsMergedPseudoHost(host) && !topology.SameHostname(host, i.localHost) {
			// Chunks of the same partition still queued against this
			// host are likely to fail the same way, give up on them in
			// the same fallback rather than waiting for each to fail.
			removed := i.removePendingChunks(id, host)
			for _, pendingID := range removed {
				pendingTracked, popErr := i.popChunk(pendingID)
				if popErr != nil {
					return popErr
				}
				tracked.Or(pendingTracked)
			}
			abandoned += int64(len(removed))
		}
		i.admitted -= abandoned
		i.log.Warn("falling back to original blocks for chunk",
			zap.Stringer("block", id), zap.Stringer("host", host))
		original, err = i.locations.OriginalBlocksForMerged(id.Shuffle, id.Reduce, tracked)
	default:
		i.admitted--
		i.log.Warn("falling back to original blocks for merged block",
			zap.Stringer("block", id), zap.Stringer("host", host))
		original, err = i.locations.OriginalBlocksForMerged(id.Shuffle, id.Reduce, nil)
	}
	if err != nil {
		return err
	}

	i.metrics.fallbacks.Inc(1)
	return i.fallbackFetch(original)
}

// fallbackFetch admits the original blocks of a failed merged fetch,
// fetching the local ones immediately and queueing the remote ones in
// random order. Original blocks are never merged so a fallback can
// never yield merged local blocks.
func (i *blockIterator) fallbackFetch(original []HostBlocks) error {
	parts, err := partitionBlocks(original, partitionOptions{
		localHost:         i.localHost,
		hostLocalEnabled:  i.opts.HostLocalFetchEnabled(),
		batchEnabled:      false,
		targetRequestSize: i.targetRequestSize,
		maxBlocksPerHost:  i.opts.MaxBlocksInFlightPerHost(),
	})
	if err != nil {
		return err
	}
	if len(parts.mergedLocal) != 0 {
		instrument.EmitAndLogInvariantViolation(i.opts.InstrumentOptions(), func(l *zap.Logger) {
			l.Error("fallback for merged block produced merged local blocks",
				zap.Int("blocks", len(parts.mergedLocal)))
		})
	}

	i.admitted += parts.admitted
	i.registerHostLocalBlocks(parts.hostLocal)

	i.randFn(len(parts.remote), func(a, b int) {
		parts.remote[a], parts.remote[b] = parts.remote[b], parts.remote[a]
	})
	i.pendingRequests = append(i.pendingRequests, parts.remote...)

	i.fetchLocalBlocks(parts.local)
	i.fetchHostLocalBlocks(parts.hostLocal)
	return nil
}

// removePendingChunks pulls every still queued chunk request for the
// same shuffle partition against the failed host out of the pending and
// deferred queues, returning the chunks they carried.
func (i *blockIterator) removePendingChunks(failed block.ID, host topology.Host) []block.ID {
	var removed []block.ID

	matches := func(req fetchRequest) bool {
		if len(req.blocks) == 0 {
			return false
		}
		first := req.blocks[0].ID
		return first.IsChunk() && topology.Equal(req.host, host) &&
			first.Shuffle == failed.Shuffle && first.Reduce == failed.Reduce
	}
	filter := func(reqs []fetchRequest) []fetchRequest {
		kept := reqs[:0]
		for _, req := range reqs {
			if matches(req) {
				for _, b := range req.blocks {
					removed = append(removed, b.ID)
				}
				continue
			}
			kept = append(kept, req)
		}
		return kept
	}

	i.pendingRequests = filter(i.pendingRequests)
	hostKey := host.String()
	if deferred, ok := i.deferredRequests[hostKey]; ok {
		deferred = filter(deferred)
		if len(deferred) == 0 {
			delete(i.deferredRequests, hostKey)
		} else {
			i.deferredRequests[hostKey] = deferred
		}
	}
	return removed
}
