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
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/m3db/shuffle/src/shuffle/block"
	"github.com/m3db/shuffle/src/shuffle/buffer"
	"github.com/m3db/shuffle/src/shuffle/fetcher"
	"github.com/m3db/shuffle/src/x/checked"

	murmur3 "github.com/m3db/stackmurmur3/v2"
	"github.com/pborman/uuid"
	"github.com/pkg/errors"
)

const (
	dataFileSuffix  = ".data"
	indexFileSuffix = ".index"
	metaFileSuffix  = ".meta"

	storeFileMode = os.FileMode(0644)
	storeDirMode  = os.FileMode(0755)
)

var (
	errNoLocalDirs     = errors.New("file store requires at least one local dir")
	errNoHostLocalDirs = errors.New("no host local dirs provided")
)

// fileStore places block files into its local dirs. Writers and readers
// agree on a block's directory by hashing its name, so another store on
// the same host can read these files given only the dir list.
type fileStore struct {
	opts    Options
	dirs    []string
	metrics storeMetrics

	mu     sync.RWMutex
	closed bool
}

// NewFileStore returns a store keeping payloads in per block files
// under the configured local dirs, creating the dirs if needed.
func NewFileStore(opts Options) (Store, error) {
	dirs := opts.LocalDirs()
	if len(dirs) == 0 {
		return nil, errNoLocalDirs
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, storeDirMode); err != nil {
			return nil, errors.Wrapf(err, "failed to create local dir %s", dir)
		}
	}
	scope := opts.InstrumentOptions().MetricsScope().SubScope("block-store")
	return &fileStore{
		opts:    opts,
		dirs:    append([]string(nil), dirs...),
		metrics: newStoreMetrics(scope),
	}, nil
}

// placementDir picks a block's directory by hashing its name, the same
// on the write and read side without any shared state.
func placementDir(dirs []string, id block.ID) string {
	return dirs[murmur3.Sum32([]byte(id.String()))%uint32(len(dirs))]
}

func blockFilePath(dirs []string, id block.ID) string {
	return filepath.Join(placementDir(dirs, id), id.String()+dataFileSuffix)
}

func mergedFilePath(dirs []string, id block.ID, suffix string) string {
	return filepath.Join(placementDir(dirs, id), id.String()+suffix)
}

// writeFileAtomic writes through a uniquely named temp file and renames
// it into place so readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp := fmt.Sprintf("%s.tmp-%s", path, uuid.New())
	if err := ioutil.WriteFile(tmp, data, storeFileMode); err != nil {
		return errors.Wrapf(err, "failed to write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "failed to rename %s into place", tmp)
	}
	return nil
}

func (s *fileStore) AddBlock(id block.ID, payload []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errStoreClosed
	}

	stored, err := encodePayload(payload, s.opts.CompressPayloads())
	if err != nil {
		return err
	}
	if err := writeFileAtomic(blockFilePath(s.dirs, id), stored); err != nil {
		return err
	}
	s.metrics.blocksWritten.Inc(1)
	s.metrics.bytesWritten.Inc(int64(len(stored)))
	return nil
}

func (s *fileStore) AddMergedBlock(id block.ID, meta fetcher.MergedMeta, chunks [][]byte) error {
	if err := validateMergedBlock(id, meta, len(chunks)); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errStoreClosed
	}

	var (
		data    []byte
		offsets = make([]int64, 0, len(chunks)+1)
	)
	for _, chunk := range chunks {
		stored, err := encodePayload(chunk, s.opts.CompressPayloads())
		if err != nil {
			return err
		}
		offsets = append(offsets, int64(len(data)))
		data = append(data, stored...)
	}
	offsets = append(offsets, int64(len(data)))

	index, err := encodeChunkIndex(offsets)
	if err != nil {
		return err
	}
	encodedMeta, err := encodeMergedMeta(meta)
	if err != nil {
		return err
	}

	// The data and index files land before the meta file, readers
	// treat the meta file as the marker that the block is complete.
	if err := writeFileAtomic(mergedFilePath(s.dirs, id, dataFileSuffix), data); err != nil {
		return err
	}
	if err := writeFileAtomic(mergedFilePath(s.dirs, id, indexFileSuffix), index); err != nil {
		return err
	}
	if err := writeFileAtomic(mergedFilePath(s.dirs, id, metaFileSuffix), encodedMeta); err != nil {
		return err
	}
	s.metrics.mergedBlocksWritten.Inc(1)
	s.metrics.bytesWritten.Inc(int64(len(data)))
	return nil
}

func (s *fileStore) LocalBlock(id block.ID) (buffer.Buffer, error) {
	return s.readBlock(s.dirs, id)
}

func (s *fileStore) HostLocalBlock(id block.ID, dirs []string) (buffer.Buffer, error) {
	if len(dirs) == 0 {
		return nil, errNoHostLocalDirs
	}
	return s.readBlock(dirs, id)
}

func (s *fileStore) readBlock(dirs []string, id block.ID) (buffer.Buffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errStoreClosed
	}

	if id.Kind == block.KindBatch {
		return s.readBatch(dirs, id)
	}
	buf, err := buffer.NewFileBuffer(blockFilePath(dirs, id))
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrapf(ErrBlockNotFound, "no data file for block %s", id)
		}
		return nil, errors.Wrapf(err, "failed to open block %s", id)
	}
	s.metrics.blocksRead.Inc(1)
	s.metrics.bytesRead.Inc(buf.Size())
	return buf, nil
}

// readBatch concatenates the covered partition files into memory.
// Snappy framed payloads stay valid under concatenation.
func (s *fileStore) readBatch(dirs []string, id block.ID) (buffer.Buffer, error) {
	var combined []byte
	for reduce := id.Reduce; reduce < id.ReduceEnd; reduce++ {
		part := block.NewDataID(id.Shuffle, id.Map, reduce)
		data, err := ioutil.ReadFile(blockFilePath(dirs, part))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.Wrapf(ErrBlockNotFound,
					"no data file for partition %s of batch %s", part, id)
			}
			return nil, errors.Wrapf(err, "failed to read partition %s of batch %s", part, id)
		}
		combined = append(combined, data...)
	}
	buf := buffer.NewBytesBuffer(checked.NewBytes(combined, nil))
	s.metrics.blocksRead.Inc(1)
	s.metrics.bytesRead.Inc(buf.Size())
	return buf, nil
}

func (s *fileStore) LocalMergedMeta(id block.ID) (fetcher.MergedMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fetcher.MergedMeta{}, errStoreClosed
	}

	data, err := ioutil.ReadFile(mergedFilePath(s.dirs, id, metaFileSuffix))
	if err != nil {
		if os.IsNotExist(err) {
			return fetcher.MergedMeta{}, errors.Wrapf(ErrBlockNotFound,
				"no meta file for merged block %s", id)
		}
		return fetcher.MergedMeta{}, errors.Wrapf(err, "failed to read meta of merged block %s", id)
	}
	return decodeMergedMeta(data)
}

func (s *fileStore) LocalMergedChunks(id block.ID) ([]buffer.Buffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errStoreClosed
	}

	offsets, err := s.readChunkIndex(id)
	if err != nil {
		return nil, err
	}
	dataPath := mergedFilePath(s.dirs, id, dataFileSuffix)
	bufs := make([]buffer.Buffer, 0, len(offsets)-1)
	for chunk := 0; chunk+1 < len(offsets); chunk++ {
		buf := buffer.NewFileSegmentBuffer(dataPath, offsets[chunk], offsets[chunk+1]-offsets[chunk])
		s.metrics.blocksRead.Inc(1)
		s.metrics.bytesRead.Inc(buf.Size())
		bufs = append(bufs, buf)
	}
	return bufs, nil
}

func (s *fileStore) LocalMergedChunk(id block.ID) (buffer.Buffer, error) {
	mergedID, chunk, err := mergedIDForChunk(id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errStoreClosed
	}

	offsets, err := s.readChunkIndex(mergedID)
	if err != nil {
		return nil, err
	}
	if chunk+1 >= len(offsets) {
		return nil, errors.Errorf("merged block %s has %d chunks, chunk %d requested",
			mergedID, len(offsets)-1, chunk)
	}
	dataPath := mergedFilePath(s.dirs, mergedID, dataFileSuffix)
	buf := buffer.NewFileSegmentBuffer(dataPath, offsets[chunk], offsets[chunk+1]-offsets[chunk])
	s.metrics.blocksRead.Inc(1)
	s.metrics.bytesRead.Inc(buf.Size())
	return buf, nil
}

func (s *fileStore) readChunkIndex(id block.ID) ([]int64, error) {
	data, err := ioutil.ReadFile(mergedFilePath(s.dirs, id, indexFileSuffix))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrBlockNotFound, "no index file for merged block %s", id)
		}
		return nil, errors.Wrapf(err, "failed to read index of merged block %s", id)
	}
	offsets, err := decodeChunkIndex(data)
	if err != nil {
		return nil, err
	}
	if len(offsets) < 2 {
		return nil, errors.Errorf("merged block %s index lists no chunks", id)
	}
	return offsets, nil
}

func (s *fileStore) LocalDirs() []string {
	return append([]string(nil), s.dirs...)
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
