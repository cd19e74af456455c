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

package fetchertest

import (
	"io/ioutil"
	"testing"

	"github.com/m3db/shuffle/src/shuffle/block"
	"github.com/m3db/shuffle/src/shuffle/fetcher"
	xcontext "github.com/m3db/shuffle/src/x/context"
	"github.com/m3db/shuffle/src/x/instrument"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"
	"go.uber.org/atomic"
)

func newClusterIterator(
	t *testing.T,
	cluster *Cluster,
	opts fetcher.Options,
) fetcher.BlockIterator {
	ctx := xcontext.NewContext()
	iter, err := fetcher.NewBlockIterator(ctx, cluster.LocalHost(), cluster.Assignments(), opts)
	require.NoError(t, err)
	return iter
}

func consumeAll(t *testing.T, iter fetcher.BlockIterator) map[block.ID]string {
	out := make(map[block.ID]string)
	for iter.HasNext() {
		fetched, err := iter.Next()
		require.NoError(t, err)
		data, err := ioutil.ReadAll(fetched.Stream)
		require.NoError(t, err)
		require.NoError(t, fetched.Stream.Close())
		out[fetched.ID] = string(data)
	}
	return out
}

func counterValue(scope tally.TestScope, name string) int64 {
	counters := scope.Snapshot().Counters()
	counter, ok := counters["fetch."+name+"+"]
	if !ok {
		return 0
	}
	return counter.Value()
}

func TestClusterEndToEndMemory(t *testing.T) {
	cluster := NewCluster(t, ClusterOptions{NumHosts: 3})
	defer cluster.Close()

	local, hostTwo, hostThree := cluster.LocalHost(), cluster.Host(1), cluster.Host(2)
	cluster.AddBlock(local, block.NewDataID(1, 1, 0), "local map one")
	cluster.AddBlock(local, block.NewDataID(1, 2, 0), "local map two")
	cluster.AddBlock(hostTwo, block.NewDataID(1, 3, 0), "remote map three")
	cluster.AddBlock(hostTwo, block.NewDataID(1, 4, 0), "remote map four")
	cluster.AddBlock(hostThree, block.NewDataID(1, 5, 0), "remote map five")
	cluster.AddMergedBlock(local, block.NewMergedID(1, 0, 7),
		[]string{"merged chunk zero", "merged chunk one"},
		[][]uint32{{1, 2}, {3}}, nil)

	scope := tally.NewTestScope("", nil)
	iter := newClusterIterator(t, cluster, cluster.IteratorOptions().
		SetInstrumentOptions(instrument.NewOptions().SetMetricsScope(scope)))
	defer iter.Close()

	fetched := consumeAll(t, iter)
	assert.Equal(t, cluster.ExpectedPayloads(), fetched)

	// Local blocks and locally merged chunks never touch the transport.
	assert.Equal(t, int64(4), counterValue(scope, "local-blocks-fetched"))
	assert.Equal(t, int64(3), counterValue(scope, "remote-blocks-fetched"))
	require.NoError(t, iter.Close())
}

func TestClusterFileBackedHostLocalFetch(t *testing.T) {
	cluster := NewCluster(t, ClusterOptions{NumHosts: 2, FileBacked: true, Compress: true})
	defer cluster.Close()

	sibling := cluster.AddSiblingExecutor(0)
	local, remote := cluster.LocalHost(), cluster.Host(1)
	cluster.AddBlock(local, block.NewDataID(1, 1, 0), "written by this executor")
	cluster.AddBlock(sibling, block.NewDataID(1, 2, 0), "written by a sibling executor")
	cluster.AddBlock(remote, block.NewDataID(1, 3, 0), "fetched over the transport")

	scope := tally.NewTestScope("", nil)
	iter := newClusterIterator(t, cluster, cluster.IteratorOptions().
		SetInstrumentOptions(instrument.NewOptions().SetMetricsScope(scope)))
	defer iter.Close()

	fetched := consumeAll(t, iter)
	assert.Equal(t, cluster.ExpectedPayloads(), fetched)

	// The sibling's block is read from its directories, not fetched.
	assert.Equal(t, int64(2), counterValue(scope, "local-blocks-fetched"))
	assert.Equal(t, int64(1), counterValue(scope, "remote-blocks-fetched"))
}

func TestClusterRemoteMergedChunks(t *testing.T) {
	cluster := NewCluster(t, ClusterOptions{NumHosts: 2})
	defer cluster.Close()

	cluster.AddMergedBlock(cluster.Host(1), block.NewMergedID(1, 0, 5),
		[]string{"chunk zero", "chunk one"},
		[][]uint32{{1}, {2, 3}}, nil)

	scope := tally.NewTestScope("", nil)
	iter := newClusterIterator(t, cluster, cluster.IteratorOptions().
		SetInstrumentOptions(instrument.NewOptions().SetMetricsScope(scope)))
	defer iter.Close()

	fetched := consumeAll(t, iter)
	assert.Equal(t, cluster.ExpectedPayloads(), fetched)
	assert.Equal(t, int64(2), counterValue(scope, "remote-blocks-fetched"))
	assert.Equal(t, int64(0), counterValue(scope, "merged-fallbacks"))
}

func TestClusterMergedMetaFailureFallsBack(t *testing.T) {
	cluster := NewCluster(t, ClusterOptions{NumHosts: 3})
	defer cluster.Close()

	var (
		remote      = cluster.Host(1)
		third       = cluster.Host(2)
		originalOne = block.NewDataID(1, 11, 5)
		originalTwo = block.NewDataID(1, 12, 5)
		payloadOne  = "original block from map eleven"
		payloadTwo  = "original block from map twelve"
	)
	cluster.SeedBlock(remote, originalOne, payloadOne)
	cluster.SeedBlock(third, originalTwo, payloadTwo)
	cluster.AddMergedBlock(remote, block.NewMergedID(1, 0, 5),
		[]string{"never delivered"}, [][]uint32{{11, 12}},
		[]fetcher.HostBlocks{
			{Host: remote, Blocks: []block.Descriptor{
				{ID: originalOne, Size: int64(len(payloadOne)), MapIndex: 11},
			}},
			{Host: third, Blocks: []block.Descriptor{
				{ID: originalTwo, Size: int64(len(payloadTwo)), MapIndex: 12},
			}},
		})

	cluster.Transport().SetHooks(Hooks{
		FailMeta: func(id block.ID) error {
			return errors.New("meta probe refused")
		},
	})

	scope := tally.NewTestScope("", nil)
	iter := newClusterIterator(t, cluster, cluster.IteratorOptions().
		SetInstrumentOptions(instrument.NewOptions().SetMetricsScope(scope)))
	defer iter.Close()

	fetched := consumeAll(t, iter)
	assert.Equal(t, map[block.ID]string{
		originalOne: payloadOne,
		originalTwo: payloadTwo,
	}, fetched)
	assert.Equal(t, int64(1), counterValue(scope, "merged-fallbacks"))
	assert.Equal(t, int64(0), counterValue(scope, "fetch-failures"))
}

func TestClusterCorruptRemoteBlockRetried(t *testing.T) {
	cluster := NewCluster(t, ClusterOptions{NumHosts: 2, Compress: true})
	defer cluster.Close()

	target := block.NewDataID(1, 3, 0)
	cluster.AddBlock(cluster.Host(1), target, "delivered intact on the retry")

	remaining := atomic.NewInt32(1)
	cluster.Transport().SetHooks(Hooks{
		CorruptBlock: func(id block.ID) bool {
			return id == target && remaining.Dec() >= 0
		},
	})

	scope := tally.NewTestScope("", nil)
	iter := newClusterIterator(t, cluster, cluster.IteratorOptions().
		SetInstrumentOptions(instrument.NewOptions().SetMetricsScope(scope)).
		SetDetectCorruptionUseExtraMemory(true))
	defer iter.Close()

	fetched := consumeAll(t, iter)
	assert.Equal(t, cluster.ExpectedPayloads(), fetched)
	assert.Equal(t, int64(1), counterValue(scope, "corrupted-blocks"))
	assert.Equal(t, int64(1), counterValue(scope, "retried-blocks"))
	assert.Equal(t, int64(0), counterValue(scope, "fetch-failures"))
}

func TestClusterRemoteFetchFailureSurfaces(t *testing.T) {
	cluster := NewCluster(t, ClusterOptions{NumHosts: 2})
	defer cluster.Close()

	target := block.NewDataID(1, 3, 0)
	cluster.AddBlock(cluster.Host(1), target, "never handed out")

	cluster.Transport().SetHooks(Hooks{
		FailBlock: func(id block.ID) error {
			return errors.New("connection reset")
		},
	})

	scope := tally.NewTestScope("", nil)
	iter := newClusterIterator(t, cluster, cluster.IteratorOptions().
		SetInstrumentOptions(instrument.NewOptions().SetMetricsScope(scope)))
	defer iter.Close()

	require.True(t, iter.HasNext())
	_, err := iter.Next()
	require.Error(t, err)
	fetchErr, ok := fetcher.GetFetchFailedError(err)
	require.True(t, ok)
	assert.Equal(t, target, fetchErr.Block)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, int64(1), counterValue(scope, "fetch-failures"))
}

func TestClusterBatchFetch(t *testing.T) {
	cluster := NewCluster(t, ClusterOptions{NumHosts: 2})
	defer cluster.Close()

	remote := cluster.Host(1)
	cluster.AddBlock(remote, block.NewDataID(1, 7, 0), "zero|")
	cluster.AddBlock(remote, block.NewDataID(1, 7, 1), "one|")
	cluster.AddBlock(remote, block.NewDataID(1, 7, 2), "two")

	scope := tally.NewTestScope("", nil)
	iter := newClusterIterator(t, cluster, cluster.IteratorOptions().
		SetInstrumentOptions(instrument.NewOptions().SetMetricsScope(scope)).
		SetBatchFetchEnabled(true))
	defer iter.Close()

	// Contiguous partitions of one map output arrive as a single batch
	// block.
	fetched := consumeAll(t, iter)
	assert.Equal(t, map[block.ID]string{
		block.NewBatchID(1, 7, 0, 3): "zero|one|two",
	}, fetched)
	assert.Equal(t, int64(1), counterValue(scope, "remote-blocks-fetched"))
}
