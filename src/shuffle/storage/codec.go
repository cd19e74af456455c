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
	"bytes"
	"encoding/binary"

	"github.com/m3db/shuffle/src/shuffle/fetcher"

	"github.com/RoaringBitmap/roaring"
	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// encodePayload returns the bytes stored at rest for a payload, snappy
// framed when compression is on.
func encodePayload(payload []byte, compress bool) ([]byte, error) {
	if !compress {
		return payload, nil
	}
	var buf bytes.Buffer
	w := snappy.NewBufferedWriter(&buf)
	if _, err := w.Write(payload); err != nil {
		return nil, errors.Wrap(err, "failed to compress payload")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to compress payload")
	}
	return buf.Bytes(), nil
}

// Merged metadata at rest is the chunk count followed by the chunk map
// bitmaps back to back. Roaring's serialization is self delimiting so
// no per bitmap length is needed.
func encodeMergedMeta(meta fetcher.MergedMeta) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(meta.NumChunks)); err != nil {
		return nil, errors.Wrap(err, "failed to encode chunk count")
	}
	for idx, chunkMap := range meta.ChunkMaps {
		if _, err := chunkMap.WriteTo(&buf); err != nil {
			return nil, errors.Wrapf(err, "failed to encode chunk map %d", idx)
		}
	}
	return buf.Bytes(), nil
}

func decodeMergedMeta(data []byte) (fetcher.MergedMeta, error) {
	r := bytes.NewReader(data)
	var numChunks uint32
	if err := binary.Read(r, binary.BigEndian, &numChunks); err != nil {
		return fetcher.MergedMeta{}, errors.Wrap(err, "failed to decode chunk count")
	}
	meta := fetcher.MergedMeta{
		NumChunks: int(numChunks),
		ChunkMaps: make([]*roaring.Bitmap, 0, numChunks),
	}
	for idx := 0; idx < int(numChunks); idx++ {
		chunkMap := roaring.New()
		if _, err := chunkMap.ReadFrom(r); err != nil {
			return fetcher.MergedMeta{}, errors.Wrapf(err, "failed to decode chunk map %d", idx)
		}
		meta.ChunkMaps = append(meta.ChunkMaps, chunkMap)
	}
	return meta, nil
}

// A chunk index is the byte offset of every chunk in the merged data
// file plus the end offset, so chunk i spans [index[i], index[i+1]).
func encodeChunkIndex(offsets []int64) ([]byte, error) {
	var buf bytes.Buffer
	for _, offset := range offsets {
		if err := binary.Write(&buf, binary.BigEndian, offset); err != nil {
			return nil, errors.Wrap(err, "failed to encode chunk offset")
		}
	}
	return buf.Bytes(), nil
}

func decodeChunkIndex(data []byte) ([]int64, error) {
	if len(data)%8 != 0 {
		return nil, errors.Errorf("chunk index has %d trailing bytes", len(data)%8)
	}
	r := bytes.NewReader(data)
	offsets := make([]int64, 0, len(data)/8)
	for r.Len() > 0 {
		var offset int64
		if err := binary.Read(r, binary.BigEndian, &offset); err != nil {
			return nil, errors.Wrap(err, "failed to decode chunk offset")
		}
		offsets = append(offsets, offset)
	}
	return offsets, nil
}
