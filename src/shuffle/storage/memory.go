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

package storage

import (
	"sync"

	"github.com/m3db/shuffle/src/shuffle/block"
	"github.com/m3db/shuffle/src/shuffle/buffer"
	"github.com/m3db/shuffle/src/shuffle/fetcher"
	"github.com/m3db/shuffle/src/x/checked"

	"github.com/RoaringBitmap/roaring"
	"github.com/pkg/errors"
)

var errNoHostLocalReads = errors.New("memory store does not serve host local reads")

type mergedEntry struct {
	meta   fetcher.MergedMeta
	chunks []checked.Bytes
}

// memoryStore keeps payloads as checked bytes. The store holds one
// reference per payload, every read wraps the shared bytes in a fresh
// buffer with its own reference.
type memoryStore struct {
	opts    Options
	metrics storeMetrics

	mu     sync.RWMutex
	closed bool
	blocks map[block.ID]checked.Bytes
	merged map[block.ID]mergedEntry
}

// NewMemoryStore returns a store holding payloads in memory.
func NewMemoryStore(opts Options) Store {
	scope := opts.InstrumentOptions().MetricsScope().SubScope("block-store")
	return &memoryStore{
		opts:    opts,
		metrics: newStoreMetrics(scope),
		blocks:  make(map[block.ID]checked.Bytes),
		merged:  make(map[block.ID]mergedEntry),
	}
}

func (s *memoryStore) AddBlock(id block.ID, payload []byte) error {
	stored, err := encodePayload(payload, s.opts.CompressPayloads())
	if err != nil {
		return err
	}
	data := checked.NewBytes(stored, nil)
	data.IncRef()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		data.DecRef()
		return errStoreClosed
	}
	if prev, ok := s.blocks[id]; ok {
		prev.DecRef()
	}
	s.blocks[id] = data
	s.metrics.blocksWritten.Inc(1)
	s.metrics.bytesWritten.Inc(int64(len(stored)))
	return nil
}

func (s *memoryStore) AddMergedBlock(id block.ID, meta fetcher.MergedMeta, chunks [][]byte) error {
	if err := validateMergedBlock(id, meta, len(chunks)); err != nil {
		return err
	}

	entry := mergedEntry{meta: cloneMergedMeta(meta)}
	for _, chunk := range chunks {
		stored, err := encodePayload(chunk, s.opts.CompressPayloads())
		if err != nil {
			releaseChunks(entry.chunks)
			return err
		}
		data := checked.NewBytes(stored, nil)
		data.IncRef()
		entry.chunks = append(entry.chunks, data)
		s.metrics.bytesWritten.Inc(int64(len(stored)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		releaseChunks(entry.chunks)
		return errStoreClosed
	}
	if prev, ok := s.merged[id]; ok {
		releaseChunks(prev.chunks)
	}
	s.merged[id] = entry
	s.metrics.mergedBlocksWritten.Inc(1)
	return nil
}

func (s *memoryStore) LocalBlock(id block.ID) (buffer.Buffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errStoreClosed
	}

	if id.Kind == block.KindBatch {
		return s.batchWithRLock(id)
	}
	data, ok := s.blocks[id]
	if !ok {
		return nil, errors.Wrapf(ErrBlockNotFound, "no data for block %s", id)
	}
	buf := buffer.NewBytesBuffer(data)
	s.metrics.blocksRead.Inc(1)
	s.metrics.bytesRead.Inc(buf.Size())
	return buf, nil
}

// batchWithRLock concatenates the covered partitions. Snappy framed
// payloads stay valid under concatenation so the result decodes to the
// concatenated partition payloads.
func (s *memoryStore) batchWithRLock(id block.ID) (buffer.Buffer, error) {
	var combined []byte
	for reduce := id.Reduce; reduce < id.ReduceEnd; reduce++ {
		part := block.NewDataID(id.Shuffle, id.Map, reduce)
		data, ok := s.blocks[part]
		if !ok {
			return nil, errors.Wrapf(ErrBlockNotFound, "no data for partition %s of batch %s", part, id)
		}
		combined = append(combined, data.Bytes()...)
	}
	buf := buffer.NewBytesBuffer(checked.NewBytes(combined, nil))
	s.metrics.blocksRead.Inc(1)
	s.metrics.bytesRead.Inc(buf.Size())
	return buf, nil
}

func (s *memoryStore) HostLocalBlock(id block.ID, dirs []string) (buffer.Buffer, error) {
	return nil, errNoHostLocalReads
}

func (s *memoryStore) LocalMergedMeta(id block.ID) (fetcher.MergedMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fetcher.MergedMeta{}, errStoreClosed
	}
	entry, ok := s.merged[id]
	if !ok {
		return fetcher.MergedMeta{}, errors.Wrapf(ErrBlockNotFound, "no metadata for merged block %s", id)
	}
	// Readers fold chunk maps into fallback tracking, hand out clones.
	return cloneMergedMeta(entry.meta), nil
}

func (s *memoryStore) LocalMergedChunks(id block.ID) ([]buffer.Buffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errStoreClosed
	}
	entry, ok := s.merged[id]
	if !ok {
		return nil, errors.Wrapf(ErrBlockNotFound, "no chunks for merged block %s", id)
	}
	bufs := make([]buffer.Buffer, 0, len(entry.chunks))
	for _, chunk := range entry.chunks {
		buf := buffer.NewBytesBuffer(chunk)
		s.metrics.blocksRead.Inc(1)
		s.metrics.bytesRead.Inc(buf.Size())
		bufs = append(bufs, buf)
	}
	return bufs, nil
}

func (s *memoryStore) LocalMergedChunk(id block.ID) (buffer.Buffer, error) {
	mergedID, chunk, err := mergedIDForChunk(id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errStoreClosed
	}
	entry, ok := s.merged[mergedID]
	if !ok {
		return nil, errors.Wrapf(ErrBlockNotFound, "no chunks for merged block %s", mergedID)
	}
	if chunk >= len(entry.chunks) {
		return nil, errors.Errorf("merged block %s has %d chunks, chunk %d requested",
			mergedID, len(entry.chunks), chunk)
	}
	buf := buffer.NewBytesBuffer(entry.chunks[chunk])
	s.metrics.blocksRead.Inc(1)
	s.metrics.bytesRead.Inc(buf.Size())
	return buf, nil
}

func (s *memoryStore) LocalDirs() []string {
	return nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, data := range s.blocks {
		data.DecRef()
	}
	for _, entry := range s.merged {
		releaseChunks(entry.chunks)
	}
	s.blocks = nil
	s.merged = nil
	return nil
}

func releaseChunks(chunks []checked.Bytes) {
	for _, chunk := range chunks {
		chunk.DecRef()
	}
}

func cloneMergedMeta(meta fetcher.MergedMeta) fetcher.MergedMeta {
	cloned := fetcher.MergedMeta{
		NumChunks: meta.NumChunks,
		ChunkMaps: make([]*roaring.Bitmap, 0, len(meta.ChunkMaps)),
	}
	for _, chunkMap := range meta.ChunkMaps {
		cloned.ChunkMaps = append(cloned.ChunkMaps, chunkMap.Clone())
	}
	return cloned
}

func validateMergedBlock(id block.ID, meta fetcher.MergedMeta, numChunks int) error {
	if id.Kind != block.KindMerged {
		return errors.Errorf("block %s is not a merged block", id)
	}
	if meta.NumChunks != numChunks || len(meta.ChunkMaps) != numChunks {
		return errors.Errorf(
			"merged block %s has %d chunks, metadata lists %d chunks and %d chunk maps",
			id, numChunks, meta.NumChunks, len(meta.ChunkMaps))
	}
	return nil
}

func mergedIDForChunk(id block.ID) (block.ID, int, error) {
	if !id.IsChunk() {
		return block.ID{}, 0, errors.Errorf("block %s is not a chunk", id)
	}
	return block.NewMergedID(id.Shuffle, id.Merge, id.Reduce), int(id.Chunk), nil
}
