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
	"github.com/m3db/shuffle/src/x/instrument"
)

// Configuration configures a block iterator, unset fields keep their
// defaults.
type Configuration struct {
	// MaxBytesInFlight caps the bytes of remote block data requested
	// and not yet consumed.
	MaxBytesInFlight *int64 `yaml:"maxBytesInFlight"`

	// MaxRequestsInFlight caps concurrently outstanding remote
	// requests.
	MaxRequestsInFlight *int64 `yaml:"maxRequestsInFlight"`

	// MaxBlocksInFlightPerHost caps blocks and metadata probes
	// outstanding to any one host.
	MaxBlocksInFlightPerHost *int64 `yaml:"maxBlocksInFlightPerHost"`

	// MaxRequestSizeToMemory is the request size above which block data
	// streams to temp files rather than memory.
	MaxRequestSizeToMemory *int64 `yaml:"maxRequestSizeToMemory"`

	// DetectCorruption checks fetched blocks for corruption.
	DetectCorruption *bool `yaml:"detectCorruption"`

	// DetectCorruptionUseExtraMemory eagerly decompresses small blocks
	// into memory to surface corruption before the consumer reads.
	DetectCorruptionUseExtraMemory *bool `yaml:"detectCorruptionUseExtraMemory"`

	// BatchFetchEnabled coalesces contiguous blocks of one map
	// partition into batch blocks.
	BatchFetchEnabled *bool `yaml:"batchFetchEnabled"`

	// HostLocalFetchEnabled reads blocks of other executors on this
	// host from disk instead of fetching them remotely.
	HostLocalFetchEnabled *bool `yaml:"hostLocalFetchEnabled"`
}

// NewOptions returns new options from the configuration.
func (c Configuration) NewOptions(instrumentOpts instrument.Options) Options {
	opts := NewOptions().SetInstrumentOptions(instrumentOpts)
	if v := c.MaxBytesInFlight; v != nil {
		opts = opts.SetMaxBytesInFlight(*v)
	}
	if v := c.MaxRequestsInFlight; v != nil {
		opts = opts.SetMaxRequestsInFlight(*v)
	}
	if v := c.MaxBlocksInFlightPerHost; v != nil {
		opts = opts.SetMaxBlocksInFlightPerHost(*v)
	}
	if v := c.MaxRequestSizeToMemory; v != nil {
		opts = opts.SetMaxRequestSizeToMemory(*v)
	}
	if v := c.DetectCorruption; v != nil {
		opts = opts.SetDetectCorruption(*v)
	}
	if v := c.DetectCorruptionUseExtraMemory; v != nil {
		opts = opts.SetDetectCorruptionUseExtraMemory(*v)
	}
	if v := c.BatchFetchEnabled; v != nil {
		opts = opts.SetBatchFetchEnabled(*v)
	}
	if v := c.HostLocalFetchEnabled; v != nil {
		opts = opts.SetHostLocalFetchEnabled(*v)
	}
	return opts
}
