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
	"github.com/m3db/shuffle/src/shuffle/block"
	"github.com/m3db/shuffle/src/shuffle/topology"
)

// executorBlocks groups the blocks to read from one executor's local
// directories.
type executorBlocks struct {
	host   topology.Host
	blocks []block.Descriptor
}

// partitionedBlocks classifies the blocks of a fetch by the cheapest
// way to read them.
type partitionedBlocks struct {
	// local blocks were written by this executor.
	local []block.Descriptor

	// hostLocal blocks were written by other executors on this host,
	// grouped per executor.
	hostLocal []executorBlocks

	// mergedLocal blocks are merged blocks pushed to this host.
	mergedLocal []block.Descriptor

	// remote holds the fetch requests for everything else.
	remote []fetchRequest

	// admitted counts the blocks the iterator owes its consumer,
	// remote blocks count after batch coalescing.
	admitted int64
}

type partitionOptions struct {
	localHost         topology.Host
	hostLocalEnabled  bool
	batchEnabled      bool
	targetRequestSize int64
	maxBlocksPerHost  int64
}

// partitionBlocks splits the blocks of a fetch into local, host local,
// merged local and remote groups and packs the remote groups into
// size bounded requests. Invalid descriptors abort the whole fetch.
func partitionBlocks(
	blocksByHost []HostBlocks,
	opts partitionOptions,
) (partitionedBlocks, error) {
	var (
		out          partitionedBlocks
		hostLocalIdx = make(map[string]int)
	)
	for _, hb := range blocksByHost {
		for _, desc := range hb.Blocks {
			if err := desc.Validate(); err != nil {
				return partitionedBlocks{}, err
			}
		}

		host := hb.Host
		switch {
		case topology.IsMergedPseudoHost(host):
			if topology.SameHostname(host, opts.localHost) {
				out.mergedLocal = append(out.mergedLocal, hb.Blocks...)
				out.admitted += int64(len(hb.Blocks))
				continue
			}
			// Merged blocks on another host resolve to chunks through
			// metadata probes before any data moves.
			collectRequests(&out, host, hb.Blocks, collectOptions{
				targetRequestSize: opts.targetRequestSize,
				maxBlocksPerHost:  opts.maxBlocksPerHost,
				forMergedMetas:    true,
			})
		case topology.Equal(host, opts.localHost):
			out.local = append(out.local, hb.Blocks...)
			out.admitted += int64(len(hb.Blocks))
		case opts.hostLocalEnabled && topology.SameHostname(host, opts.localHost):
			idx, ok := hostLocalIdx[host.ID()]
			if !ok {
				idx = len(out.hostLocal)
				hostLocalIdx[host.ID()] = idx
				out.hostLocal = append(out.hostLocal, executorBlocks{host: host})
			}
			out.hostLocal[idx].blocks = append(out.hostLocal[idx].blocks, hb.Blocks...)
			out.admitted += int64(len(hb.Blocks))
		default:
			collectRequests(&out, host, hb.Blocks, collectOptions{
				targetRequestSize: opts.targetRequestSize,
				maxBlocksPerHost:  opts.maxBlocksPerHost,
				batchEnabled:      opts.batchEnabled,
			})
		}
	}
	return out, nil
}

type collectOptions struct {
	targetRequestSize int64
	maxBlocksPerHost  int64
	batchEnabled      bool
	forMergedMetas    bool
}

// collectRequests packs one host's blocks into requests of roughly the
// target size, flushing early when a group reaches the per host block
// budget.
func collectRequests(
	out *partitionedBlocks,
	host topology.Host,
	blocks []block.Descriptor,
	opts collectOptions,
) {
	var (
		curBlocks []block.Descriptor
		curSize   int64
	)
	for _, desc := range blocks {
		curBlocks = append(curBlocks, desc)
		curSize += desc.Size
		if curSize >= opts.targetRequestSize ||
			int64(len(curBlocks)) >= opts.maxBlocksPerHost {
			curBlocks = createRequests(out, host, curBlocks, false, opts)
			curSize = 0
			for _, b := range curBlocks {
				curSize += b.Size
			}
		}
	}
	if len(curBlocks) > 0 {
		createRequests(out, host, curBlocks, true, opts)
	}
}

// createRequests coalesces a candidate group, splits it by the per host
// block budget and appends the full groups as requests. A short tail
// group is handed back to keep filling unless this is the last flush.
func createRequests(
	out *partitionedBlocks,
	host topology.Host,
	blocks []block.Descriptor,
	isLast bool,
	opts collectOptions,
) []block.Descriptor {
	merged := blocks
	if !opts.forMergedMetas {
		merged = block.CoalesceBatches(blocks, opts.batchEnabled)
	}
	out.admitted += int64(len(merged))

	if int64(len(merged)) <= opts.maxBlocksPerHost {
		out.remote = append(out.remote, newFetchRequest(host, merged, opts.forMergedMetas))
		return nil
	}

	var leftover []block.Descriptor
	for start := 0; start < len(merged); start += int(opts.maxBlocksPerHost) {
		end := start + int(opts.maxBlocksPerHost)
		if end > len(merged) {
			end = len(merged)
		}
		group := merged[start:end]
		if int64(len(group)) == opts.maxBlocksPerHost || isLast {
			out.remote = append(out.remote, newFetchRequest(host, group, opts.forMergedMetas))
		} else {
			leftover = append(leftover, group...)
			out.admitted -= int64(len(group))
		}
	}
	return leftover
}
