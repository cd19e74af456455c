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

// fetchRequest asks one host for a group of blocks. Requests are the
// unit the in flight byte and request limits throttle.
type fetchRequest struct {
	host   topology.Host
	blocks []block.Descriptor
	size   int64

	// forMergedMetas marks a request that probes chunk metadata of
	// merged blocks instead of fetching data, such a request counts
	// against the per host block budget only.
	forMergedMetas bool
}

func newFetchRequest(
	host topology.Host,
	blocks []block.Descriptor,
	forMergedMetas bool,
) fetchRequest {
	var size int64
	for _, b := range blocks {
		size += b.Size
	}
	return fetchRequest{
		host:           host,
		blocks:         blocks,
		size:           size,
		forMergedMetas: forMergedMetas,
	}
}

func (r fetchRequest) numBlocks() int64 {
	return int64(len(r.blocks))
}
