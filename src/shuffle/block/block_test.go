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

package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDString(t *testing.T) {
	assert.Equal(t, "shuffle_3_17_5", NewDataID(3, 17, 5).String())
	assert.Equal(t, "shuffle_3_17_5_9", NewBatchID(3, 17, 5, 9).String())
	assert.Equal(t, "shuffleMerged_3_0_5", NewMergedID(3, 0, 5).String())
	assert.Equal(t, "shuffleChunk_3_0_5_2", NewChunkID(3, 0, 5, 2).String())
}

func TestParseIDRoundTrip(t *testing.T) {
	for _, id := range []ID{
		NewDataID(1, 42, 7),
		NewBatchID(1, 42, 7, 11),
		NewMergedID(2, 1, 3),
		NewChunkID(2, 1, 3, 0),
	} {
		parsed, err := ParseID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	}
}

func TestParseIDInvalid(t *testing.T) {
	for _, name := range []string{
		"",
		"foo",
		"shuffle_1_2",
		"shuffle_a_b_c",
		"shuffleChunk_1_2_3",
		"rdd_1_2",
	} {
		_, err := ParseID(name)
		assert.Error(t, err, "name=%s", name)
	}
}

func TestDescriptorValidate(t *testing.T) {
	valid := Descriptor{ID: NewDataID(1, 2, 3), Size: 10, MapIndex: 0}
	require.NoError(t, valid.Validate())

	for _, size := range []int64{0, -1} {
		d := Descriptor{ID: NewDataID(1, 2, 3), Size: size}
		err := d.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "shuffle_1_2_3")
	}
}

func TestCoalesceBatchesDisabled(t *testing.T) {
	descs := []Descriptor{
		{ID: NewDataID(1, 2, 0), Size: 10},
		{ID: NewDataID(1, 2, 1), Size: 20},
	}
	assert.Equal(t, descs, CoalesceBatches(descs, false))
}

func TestCoalesceBatchesContiguousRun(t *testing.T) {
	descs := []Descriptor{
		{ID: NewDataID(1, 2, 0), Size: 10, MapIndex: 4},
		{ID: NewDataID(1, 2, 1), Size: 20, MapIndex: 4},
		{ID: NewDataID(1, 2, 2), Size: 30, MapIndex: 4},
	}
	merged := CoalesceBatches(descs, true)
	require.Len(t, merged, 1)
	assert.Equal(t, Descriptor{
		ID:       NewBatchID(1, 2, 0, 3),
		Size:     60,
		MapIndex: 4,
	}, merged[0])
}

func TestCoalesceBatchesDoesNotSpanMaps(t *testing.T) {
	descs := []Descriptor{
		{ID: NewDataID(1, 2, 0), Size: 10},
		{ID: NewDataID(1, 2, 1), Size: 20},
		{ID: NewDataID(1, 3, 2), Size: 30},
	}
	merged := CoalesceBatches(descs, true)
	require.Len(t, merged, 2)
	assert.Equal(t, NewBatchID(1, 2, 0, 2), merged[0].ID)
	assert.Equal(t, int64(30), merged[0].Size)
	assert.Equal(t, NewBatchID(1, 3, 2, 3), merged[1].ID)
	assert.Equal(t, int64(30), merged[1].Size)
}

func TestCoalesceBatchesBreaksOnGap(t *testing.T) {
	descs := []Descriptor{
		{ID: NewDataID(1, 2, 0), Size: 10},
		{ID: NewDataID(1, 2, 2), Size: 20},
	}
	merged := CoalesceBatches(descs, true)
	require.Len(t, merged, 2)
	assert.Equal(t, NewBatchID(1, 2, 0, 1), merged[0].ID)
	assert.Equal(t, NewBatchID(1, 2, 2, 3), merged[1].ID)
}

func TestCoalesceBatchesPassesThroughMerged(t *testing.T) {
	descs := []Descriptor{
		{ID: NewDataID(1, 2, 0), Size: 10},
		{ID: NewMergedID(1, 0, 3), Size: 100, MapIndex: MapIndexUnknown},
		{ID: NewDataID(1, 2, 1), Size: 20},
	}
	merged := CoalesceBatches(descs, true)
	require.Len(t, merged, 3)
	assert.Equal(t, NewBatchID(1, 2, 0, 1), merged[0].ID)
	assert.Equal(t, NewMergedID(1, 0, 3), merged[1].ID)
	assert.Equal(t, NewBatchID(1, 2, 1, 2), merged[2].ID)
}

func TestBatchCount(t *testing.T) {
	assert.Equal(t, 1, BatchCount(NewDataID(1, 2, 3)))
	assert.Equal(t, 3, BatchCount(NewBatchID(1, 2, 0, 3)))
	assert.Equal(t, 1, BatchCount(NewBatchID(1, 2, 5, 6)))
	assert.Equal(t, 1, BatchCount(NewMergedID(1, 0, 3)))
	assert.Equal(t, 1, BatchCount(NewChunkID(1, 0, 3, 2)))
}
