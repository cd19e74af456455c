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

	"go.uber.org/zap"
)

// fetchLocalBlocks reads blocks this executor wrote. It stops at the
// first failure, every later read would hit the same store.
func (i *blockIterator) fetchLocalBlocks(blocks []block.Descriptor) {
	for _, desc := range blocks {
		buf, err := i.store.LocalBlock(desc.ID)
		if err != nil {
			i.log.Error("error fetching local block",
				zap.Stringer("block", desc.ID), zap.Error(err))
			i.queue.put(fetchOutcome{
				outcomeType: failureOutcome,
				id:          desc.ID,
				mapIndex:    desc.MapIndex,
				host:        i.localHost,
				err:         err,
			})
			return
		}
		i.metrics.localBlocksFetched.Inc(1)
		i.metrics.localBytesRead.Inc(buf.Size())
		ok := i.queue.put(fetchOutcome{
			outcomeType: successOutcome,
			id:          desc.ID,
			mapIndex:    desc.MapIndex,
			host:        i.localHost,
			size:        buf.Size(),
			buf:         buf,
		})
		if !ok {
			buf.DecRef()
		}
	}
}

// fetchHostLocalBlocks reads blocks other executors on this host wrote
// from their local directories. Failures are per block, a block of one
// executor failing does not give up on the blocks of another.
func (i *blockIterator) fetchHostLocalBlocks(execs []executorBlocks) {
	if len(execs) == 0 {
		return
	}

	executorIDs := make([]string, 0, len(execs))
	for _, exec := range execs {
		executorIDs = append(executorIDs, exec.host.ID())
	}

	var dirsByExecutor map[string][]string
	if i.dirsResolver == nil {
		i.log.Error("host local fetch enabled without a local dirs resolver")
	} else {
		var err error
		dirsByExecutor, err = i.dirsResolver.LocalDirs(executorIDs)
		if err != nil {
			i.log.Error("error resolving executor local dirs", zap.Error(err))
			dirsByExecutor = nil
		}
	}

	for _, exec := range execs {
		dirs, resolved := dirsByExecutor[exec.host.ID()]
		for _, desc := range exec.blocks {
			if !resolved {
				i.queue.put(fetchOutcome{
					outcomeType: failureOutcome,
					id:          desc.ID,
					mapIndex:    desc.MapIndex,
					host:        exec.host,
					err:         fmt.Errorf("no local dirs resolved for executor %s", exec.host.ID()),
				})
				continue
			}
			buf, err := i.store.HostLocalBlock(desc.ID, dirs)
			if err != nil {
				i.log.Error("error fetching host local block",
					zap.Stringer("block", desc.ID),
					zap.String("executor", exec.host.ID()),
					zap.Error(err))
				i.queue.put(fetchOutcome{
					outcomeType: failureOutcome,
					id:          desc.ID,
					mapIndex:    desc.MapIndex,
					host:        exec.host,
					err:         err,
				})
				continue
			}
			ok := i.queue.put(fetchOutcome{
				outcomeType: successOutcome,
				id:          desc.ID,
				mapIndex:    desc.MapIndex,
				host:        exec.host,
				size:        buf.Size(),
				buf:         buf,
			})
			if !ok {
				buf.DecRef()
			}
		}
	}
}

// fetchMergedLocalBlocks resolves chunk metadata for merged blocks
// pushed to this host. The chunk data is read when the metadata outcome
// is processed so chunk buffers are not held before the consumer needs
// them.
func (i *blockIterator) fetchMergedLocalBlocks(blocks []block.Descriptor) {
	for _, desc := range blocks {
		meta, err := i.store.LocalMergedMeta(desc.ID)
		if err != nil {
			i.log.Warn("error reading merged local metadata, will fall back",
				zap.Stringer("block", desc.ID), zap.Error(err))
			i.queue.put(fetchOutcome{outcomeType: localMetaFailedOutcome, id: desc.ID, err: err})
			continue
		}
		i.queue.put(fetchOutcome{outcomeType: localMetaOutcome, id: desc.ID, meta: meta})
	}
}

// materializeMergedLocalChunks turns a merged local block whose
// metadata resolved into one success outcome per chunk, falling back to
// the original blocks when the chunk data cannot be read.
func (i *blockIterator) materializeMergedLocalChunks(outcome fetchOutcome) error {
	var (
		id   = outcome.id
		meta = outcome.meta
	)
	chunks, err := i.store.LocalMergedChunks(id)
	if err == nil && (meta.NumChunks != len(chunks) || len(meta.ChunkMaps) != len(chunks)) {
		err = fmt.Errorf("merged block %s has %d chunks, metadata lists %d chunks and %d chunk maps",
			id, len(chunks), meta.NumChunks, len(meta.ChunkMaps))
		for _, chunk := range chunks {
			chunk.DecRef()
		}
	}
	if err != nil {
		i.log.Warn("error reading merged local chunks, falling back",
			zap.Stringer("block", id), zap.Error(err))
		return i.initiateFallback(id, i.mergedLocalHost)
	}

	// The merged block's single admitted slot becomes one per chunk.
	i.admitted += int64(len(chunks) - 1)
	for idx, chunk := range chunks {
		chunkID := block.NewChunkID(id.Shuffle, id.Merge, id.Reduce, uint32(idx))
		i.addChunk(chunkID, meta.ChunkMaps[idx])
		ok := i.queue.put(fetchOutcome{
			outcomeType: successOutcome,
			id:          chunkID,
			mapIndex:    block.MapIndexUnknown,
			host:        i.mergedLocalHost,
			size:        chunk.Size(),
			buf:         chunk,
		})
		if !ok {
			chunk.DecRef()
		}
	}
	return nil
}
