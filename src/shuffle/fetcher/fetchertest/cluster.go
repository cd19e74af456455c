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
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/m3db/shuffle/src/shuffle/block"
	"github.com/m3db/shuffle/src/shuffle/fetcher"
	"github.com/m3db/shuffle/src/shuffle/storage"
	"github.com/m3db/shuffle/src/shuffle/topology"

	"github.com/RoaringBitmap/roaring"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// ClusterOptions configures a test cluster.
type ClusterOptions struct {
	// NumHosts is the number of machines, each running one executor.
	// The first executor is the fetching side's local host.
	NumHosts int

	// FileBacked stores blocks in per executor directories instead of
	// memory, enabling host local reads.
	FileBacked bool

	// Compress snappy frames payloads at rest. Readers then configure
	// the snappy stream wrapper, which the cluster's iterator options
	// do.
	Compress bool
}

type hostAssignment struct {
	host   topology.Host
	blocks []block.Descriptor
}

// Cluster assembles executors with real stores behind an in-process
// transport, tracks which blocks a fetch covers and resolves merged
// blocks back to their originals. It implements the host local dirs
// and location resolver interfaces the iterator consumes.
type Cluster struct {
	t          *testing.T
	transport  *Transport
	fileBacked bool
	compress   bool
	tempRoot   string

	hosts    []topology.Host
	stores   map[string]storage.Store
	execDirs map[string][]string

	assignOrder []string
	assignments map[string]*hostAssignment
	expected    map[block.ID]string
	merged      map[block.ID][]fetcher.HostBlocks
}

// NewCluster creates the configured executors with empty stores. The
// caller seeds blocks and builds an iterator over Assignments.
func NewCluster(t *testing.T, opts ClusterOptions) *Cluster {
	numHosts := opts.NumHosts
	if numHosts <= 0 {
		numHosts = 1
	}
	c := &Cluster{
		t:           t,
		transport:   NewTransport(),
		fileBacked:  opts.FileBacked,
		compress:    opts.Compress,
		stores:      make(map[string]storage.Store),
		execDirs:    make(map[string][]string),
		assignments: make(map[string]*hostAssignment),
		expected:    make(map[block.ID]string),
		merged:      make(map[block.ID][]fetcher.HostBlocks),
	}
	if opts.FileBacked {
		root, err := ioutil.TempDir("", "shuffle-cluster")
		require.NoError(t, err)
		c.tempRoot = root
	}
	for i := 1; i <= numHosts; i++ {
		c.addExecutor(fmt.Sprintf("exec-%d", i), fmt.Sprintf("host-%d:7337", i))
	}
	return c
}

func (c *Cluster) addExecutor(id, address string) topology.Host {
	host := topology.NewHost(id, address)
	var (
		store storage.Store
		err   error
	)
	if c.fileBacked {
		dirs := []string{
			filepath.Join(c.tempRoot, id, "d0"),
			filepath.Join(c.tempRoot, id, "d1"),
		}
		store, err = storage.NewFileStore(storage.NewOptions().
			SetLocalDirs(dirs).
			SetCompressPayloads(c.compress))
	} else {
		store = storage.NewMemoryStore(storage.NewOptions().
			SetCompressPayloads(c.compress))
	}
	require.NoError(c.t, err)

	c.stores[host.String()] = store
	if dirs := store.LocalDirs(); len(dirs) > 0 {
		c.execDirs[id] = dirs
	}
	c.transport.RegisterStore(address, store)
	c.hosts = append(c.hosts, host)
	return host
}

// AddSiblingExecutor starts another executor on an existing machine.
// With file backed stores its blocks are reachable through host local
// reads.
func (c *Cluster) AddSiblingExecutor(hostIndex int) topology.Host {
	base := c.hosts[hostIndex]
	id := fmt.Sprintf("%s-sibling", base.ID())
	return c.addExecutor(id, fmt.Sprintf("%s:7338", base.Hostname()))
}

// Transport returns the in-process transport serving remote fetches.
func (c *Cluster) Transport() *Transport {
	return c.transport
}

// LocalHost returns the executor driving the fetch.
func (c *Cluster) LocalHost() topology.Host {
	return c.hosts[0]
}

// Host returns the i-th executor created, in creation order.
func (c *Cluster) Host(i int) topology.Host {
	return c.hosts[i]
}

// Store returns an executor's store.
func (c *Cluster) Store(host topology.Host) storage.Store {
	store, ok := c.stores[host.String()]
	require.True(c.t, ok, "no store for host %s", host)
	return store
}

// SeedBlock writes a block to an executor's store without assigning it
// to the fetch. Fallback originals are seeded this way.
func (c *Cluster) SeedBlock(host topology.Host, id block.ID, payload string) {
	require.NotEmpty(c.t, payload)
	require.NoError(c.t, c.Store(host).AddBlock(id, []byte(payload)))
	c.expected[id] = payload
}

// AddBlock writes a block to an executor's store and assigns it to the
// fetch with the payload length as its declared size.
func (c *Cluster) AddBlock(host topology.Host, id block.ID, payload string) {
	c.SeedBlock(host, id, payload)
	c.assign(host, block.Descriptor{
		ID:       id,
		Size:     int64(len(payload)),
		MapIndex: int32(id.Map),
	})
}

// AddMergedBlock writes a merged block to an executor's store and
// assigns it to the fetch through that machine's merged pseudo-host.
// chunkMaps lists, per chunk, the map partition indexes merged into
// it. originals resolve the merged block when its fetch falls back,
// their blocks must be seeded separately.
func (c *Cluster) AddMergedBlock(
	host topology.Host,
	id block.ID,
	chunks []string,
	chunkMaps [][]uint32,
	originals []fetcher.HostBlocks,
) {
	require.Equal(c.t, len(chunks), len(chunkMaps))

	var (
		meta = fetcher.MergedMeta{
			NumChunks: len(chunks),
			ChunkMaps: make([]*roaring.Bitmap, 0, len(chunks)),
		}
		payloads = make([][]byte, 0, len(chunks))
		size     int64
	)
	for i, chunk := range chunks {
		require.NotEmpty(c.t, chunk)
		bitmap := roaring.New()
		for _, mapIndex := range chunkMaps[i] {
			bitmap.Add(mapIndex)
		}
		meta.ChunkMaps = append(meta.ChunkMaps, bitmap)
		payloads = append(payloads, []byte(chunk))
		size += int64(len(chunk))
		c.expected[block.NewChunkID(id.Shuffle, id.Merge, id.Reduce, uint32(i))] = chunk
	}
	require.NoError(c.t, c.Store(host).AddMergedBlock(id, meta, payloads))

	c.merged[id] = originals
	c.assign(topology.NewMergedHost(host.Address()), block.Descriptor{
		ID:       id,
		Size:     size,
		MapIndex: block.MapIndexUnknown,
	})
}

func (c *Cluster) assign(host topology.Host, desc block.Descriptor) {
	key := host.String()
	entry, ok := c.assignments[key]
	if !ok {
		entry = &hostAssignment{host: host}
		c.assignments[key] = entry
		c.assignOrder = append(c.assignOrder, key)
	}
	entry.blocks = append(entry.blocks, desc)
}

// Assignments returns the fetch's blocks grouped by host, in the order
// hosts first received a block.
func (c *Cluster) Assignments() []fetcher.HostBlocks {
	out := make([]fetcher.HostBlocks, 0, len(c.assignOrder))
	for _, key := range c.assignOrder {
		entry := c.assignments[key]
		out = append(out, fetcher.HostBlocks{
			Host:   entry.host,
			Blocks: append([]block.Descriptor(nil), entry.blocks...),
		})
	}
	return out
}

// ExpectedPayloads returns every seeded payload keyed by the block ID a
// consumer observes, chunk IDs for merged blocks.
func (c *Cluster) ExpectedPayloads() map[block.ID]string {
	out := make(map[block.ID]string, len(c.expected))
	for id, payload := range c.expected {
		out[id] = payload
	}
	return out
}

// IteratorOptions returns options wired to the cluster's local store,
// transport and resolvers. Tests adjust limits and instrumentation on
// the returned options.
func (c *Cluster) IteratorOptions() fetcher.Options {
	opts := fetcher.NewOptions().
		SetBlockStore(c.Store(c.LocalHost())).
		SetRemoteBlockClient(c.transport).
		SetLocationResolver(c)
	if c.fileBacked {
		opts = opts.SetHostLocalDirsResolver(c)
	}
	if c.compress {
		opts = opts.SetStreamWrapperFn(fetcher.SnappyStreamWrapper)
	}
	return opts
}

// LocalDirs resolves the local directories of this cluster's executors
// by ID, omitting executors without file backed stores.
func (c *Cluster) LocalDirs(executorIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(executorIDs))
	for _, id := range executorIDs {
		if dirs, ok := c.execDirs[id]; ok {
			out[id] = dirs
		}
	}
	return out, nil
}

// OriginalBlocksForMerged resolves a merged partition back to the
// original blocks registered for it, restricted to the map partition
// indexes in tracked when tracked is non nil.
func (c *Cluster) OriginalBlocksForMerged(
	shuffleID uint32,
	reduce uint32,
	tracked *roaring.Bitmap,
) ([]fetcher.HostBlocks, error) {
	for id, originals := range c.merged {
		if id.Shuffle != shuffleID || id.Reduce != reduce {
			continue
		}
		out := make([]fetcher.HostBlocks, 0, len(originals))
		for _, hb := range originals {
			kept := make([]block.Descriptor, 0, len(hb.Blocks))
			for _, desc := range hb.Blocks {
				if tracked != nil &&
					(desc.MapIndex < 0 || !tracked.Contains(uint32(desc.MapIndex))) {
					continue
				}
				kept = append(kept, desc)
			}
			if len(kept) > 0 {
				out = append(out, fetcher.HostBlocks{Host: hb.Host, Blocks: kept})
			}
		}
		return out, nil
	}
	return nil, errors.Errorf("no merged block registered for shuffle %d reduce %d",
		shuffleID, reduce)
}

// Close closes every store and removes the cluster's directories.
func (c *Cluster) Close() {
	for _, store := range c.stores {
		store.Close()
	}
	if c.tempRoot != "" {
		require.NoError(c.t, os.RemoveAll(c.tempRoot))
	}
}
