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

// Package block describes the identifiers of shuffle blocks exchanged
// between map and reduce tasks.
package block

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind indicates the flavor of block an ID refers to.
type Kind uint8

const (
	// KindData is a single map output partition.
	KindData Kind = iota
	// KindBatch is a contiguous range of partitions from one map output.
	KindBatch
	// KindMerged is a block aggregated from many map outputs for one
	// reduce partition.
	KindMerged
	// KindChunk is one fetchable chunk of a merged block.
	KindChunk
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindBatch:
		return "batch"
	case KindMerged:
		return "merged"
	case KindChunk:
		return "chunk"
	}
	return "unknown"
}

const (
	dataIDPrefix   = "shuffle"
	mergedIDPrefix = "shuffleMerged"
	chunkIDPrefix  = "shuffleChunk"
)

// ID identifies a shuffle block. IDs are comparable and usable as map keys.
type ID struct {
	// Kind tags which of the remaining fields are meaningful.
	Kind Kind
	// Shuffle is the shuffle round the block belongs to.
	Shuffle uint32
	// Map is the map task identifier, unset for merged provenance.
	Map int64
	// Reduce is the reduce partition, or the first partition of a batch.
	Reduce uint32
	// ReduceEnd is the exclusive upper partition bound of a batch.
	ReduceEnd uint32
	// Merge is the merge generation of merged and chunk blocks.
	Merge uint32
	// Chunk is the chunk ordinal within a merged block.
	Chunk uint32
}

// NewDataID returns the ID of a single map output partition.
func NewDataID(shuffle uint32, mapID int64, reduce uint32) ID {
	return ID{Kind: KindData, Shuffle: shuffle, Map: mapID, Reduce: reduce}
}

// NewBatchID returns the ID of a contiguous range of partitions
// [startReduce, endReduce) from one map output.
func NewBatchID(shuffle uint32, mapID int64, startReduce, endReduce uint32) ID {
	return ID{
		Kind:      KindBatch,
		Shuffle:   shuffle,
		Map:       mapID,
		Reduce:    startReduce,
		ReduceEnd: endReduce,
	}
}

// NewMergedID returns the ID of a merged block for a reduce partition.
func NewMergedID(shuffle, merge, reduce uint32) ID {
	return ID{Kind: KindMerged, Shuffle: shuffle, Merge: merge, Reduce: reduce}
}

// NewChunkID returns the ID of a single chunk of a merged block.
func NewChunkID(shuffle, merge, reduce, chunk uint32) ID {
	return ID{Kind: KindChunk, Shuffle: shuffle, Merge: merge, Reduce: reduce, Chunk: chunk}
}

// IsMergedOrChunk returns whether the block carries merged provenance.
func (id ID) IsMergedOrChunk() bool {
	return id.Kind == KindMerged || id.Kind == KindChunk
}

// IsChunk returns whether the block is a chunk of a merged block.
func (id ID) IsChunk() bool {
	return id.Kind == KindChunk
}

// String returns the canonical wire name of the block.
func (id ID) String() string {
	switch id.Kind {
	case KindData:
		return fmt.Sprintf("%s_%d_%d_%d", dataIDPrefix, id.Shuffle, id.Map, id.Reduce)
	case KindBatch:
		return fmt.Sprintf("%s_%d_%d_%d_%d", dataIDPrefix, id.Shuffle, id.Map,
			id.Reduce, id.ReduceEnd)
	case KindMerged:
		return fmt.Sprintf("%s_%d_%d_%d", mergedIDPrefix, id.Shuffle, id.Merge, id.Reduce)
	case KindChunk:
		return fmt.Sprintf("%s_%d_%d_%d_%d", chunkIDPrefix, id.Shuffle, id.Merge,
			id.Reduce, id.Chunk)
	}
	return "unknown"
}

// ParseID parses the canonical wire name of a block.
func ParseID(name string) (ID, error) {
	fields := strings.Split(name, "_")
	parse32 := func(s string) (uint32, error) {
		v, err := strconv.ParseUint(s, 10, 32)
		return uint32(v), err
	}
	switch {
	case fields[0] == dataIDPrefix && len(fields) == 4:
		shuffle, err := parse32(fields[1])
		if err != nil {
			return ID{}, err
		}
		mapID, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return ID{}, err
		}
		reduce, err := parse32(fields[3])
		if err != nil {
			return ID{}, err
		}
		return NewDataID(shuffle, mapID, reduce), nil
	case fields[0] == dataIDPrefix && len(fields) == 5:
		shuffle, err := parse32(fields[1])
		if err != nil {
			return ID{}, err
		}
		mapID, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return ID{}, err
		}
		start, err := parse32(fields[3])
		if err != nil {
			return ID{}, err
		}
		end, err := parse32(fields[4])
		if err != nil {
			return ID{}, err
		}
		return NewBatchID(shuffle, mapID, start, end), nil
	case fields[0] == mergedIDPrefix && len(fields) == 4:
		shuffle, err := parse32(fields[1])
		if err != nil {
			return ID{}, err
		}
		merge, err := parse32(fields[2])
		if err != nil {
			return ID{}, err
		}
		reduce, err := parse32(fields[3])
		if err != nil {
			return ID{}, err
		}
		return NewMergedID(shuffle, merge, reduce), nil
	case fields[0] == chunkIDPrefix && len(fields) == 5:
		shuffle, err := parse32(fields[1])
		if err != nil {
			return ID{}, err
		}
		merge, err := parse32(fields[2])
		if err != nil {
			return ID{}, err
		}
		reduce, err := parse32(fields[3])
		if err != nil {
			return ID{}, err
		}
		chunk, err := parse32(fields[4])
		if err != nil {
			return ID{}, err
		}
		return NewChunkID(shuffle, merge, reduce, chunk), nil
	}
	return ID{}, fmt.Errorf("unrecognized block name: %s", name)
}
