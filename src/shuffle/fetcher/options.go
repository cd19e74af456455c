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
	"errors"
	"math"

	"github.com/m3db/shuffle/src/x/clock"
	"github.com/m3db/shuffle/src/x/instrument"
)

const (
	// defaultMaxBytesInFlight keeps roughly five requests of a fifth
	// each outstanding to spread fetches over hosts.
	defaultMaxBytesInFlight = 48 * 1024 * 1024

	defaultMaxRequestsInFlight      = int64(math.MaxInt64)
	defaultMaxBlocksInFlightPerHost = int64(math.MaxInt64)

	// defaultMaxRequestSizeToMemory streams requests over 200MiB to
	// disk rather than buffering them in memory.
	defaultMaxRequestSizeToMemory = 200 * 1024 * 1024

	defaultDetectCorruption               = true
	defaultDetectCorruptionUseExtraMemory = false
	defaultBatchFetchEnabled              = false
	defaultHostLocalFetchEnabled          = true
)

var (
	errNoBlockStore        = errors.New("no block store set")
	errNoRemoteBlockClient = errors.New("no remote block client set")

	errMaxBytesInFlightNotPositive    = errors.New("max bytes in flight must be positive")
	errMaxRequestsInFlightNotPositive = errors.New("max requests in flight must be positive")
	errMaxBlocksPerHostNotPositive    = errors.New("max blocks in flight per host must be positive")
	errMaxRequestSizeToMemoryNegative = errors.New("max request size to memory cannot be negative")
)

type options struct {
	instrumentOpts                 instrument.Options
	clockOpts                      clock.Options
	blockStore                     BlockStore
	hostLocalDirsResolver          HostLocalDirsResolver
	remoteBlockClient              RemoteBlockClient
	locationResolver               LocationResolver
	tempFileRegistry               TempFileRegistry
	streamWrapperFn                StreamWrapperFn
	maxBytesInFlight               int64
	maxRequestsInFlight            int64
	maxBlocksInFlightPerHost       int64
	maxRequestSizeToMemory         int64
	detectCorruption               bool
	detectCorruptionUseExtraMemory bool
	batchFetchEnabled              bool
	hostLocalFetchEnabled          bool
}

// NewOptions returns new options with defaults set.
func NewOptions() Options {
	return &options{
		instrumentOpts:                 instrument.NewOptions(),
		clockOpts:                      clock.NewOptions(),
		maxBytesInFlight:               defaultMaxBytesInFlight,
		maxRequestsInFlight:            defaultMaxRequestsInFlight,
		maxBlocksInFlightPerHost:       defaultMaxBlocksInFlightPerHost,
		maxRequestSizeToMemory:         defaultMaxRequestSizeToMemory,
		detectCorruption:               defaultDetectCorruption,
		detectCorruptionUseExtraMemory: defaultDetectCorruptionUseExtraMemory,
		batchFetchEnabled:              defaultBatchFetchEnabled,
		hostLocalFetchEnabled:          defaultHostLocalFetchEnabled,
	}
}

func (o *options) Validate() error {
	if o.blockStore == nil {
		return errNoBlockStore
	}
	if o.remoteBlockClient == nil {
		return errNoRemoteBlockClient
	}
	if o.maxBytesInFlight <= 0 {
		return errMaxBytesInFlightNotPositive
	}
	if o.maxRequestsInFlight <= 0 {
		return errMaxRequestsInFlightNotPositive
	}
	if o.maxBlocksInFlightPerHost <= 0 {
		return errMaxBlocksPerHostNotPositive
	}
	if o.maxRequestSizeToMemory < 0 {
		return errMaxRequestSizeToMemoryNegative
	}
	return nil
}

func (o *options) SetInstrumentOptions(value instrument.Options) Options {
	opts := *o
	opts.instrumentOpts = value
	return &opts
}

func (o *options) InstrumentOptions() instrument.Options {
	return o.instrumentOpts
}

func (o *options) SetClockOptions(value clock.Options) Options {
	opts := *o
	opts.clockOpts = value
	return &opts
}

func (o *options) ClockOptions() clock.Options {
	return o.clockOpts
}

func (o *options) SetBlockStore(value BlockStore) Options {
	opts := *o
	opts.blockStore = value
	return &opts
}

func (o *options) BlockStore() BlockStore {
	return o.blockStore
}

func (o *options) SetHostLocalDirsResolver(value HostLocalDirsResolver) Options {
	opts := *o
	opts.hostLocalDirsResolver = value
	return &opts
}

func (o *options) HostLocalDirsResolver() HostLocalDirsResolver {
	return o.hostLocalDirsResolver
}

func (o *options) SetRemoteBlockClient(value RemoteBlockClient) Options {
	opts := *o
	opts.remoteBlockClient = value
	return &opts
}

func (o *options) RemoteBlockClient() RemoteBlockClient {
	return o.remoteBlockClient
}

func (o *options) SetLocationResolver(value LocationResolver) Options {
	opts := *o
	opts.locationResolver = value
	return &opts
}

func (o *options) LocationResolver() LocationResolver {
	return o.locationResolver
}

func (o *options) SetTempFileRegistry(value TempFileRegistry) Options {
	opts := *o
	opts.tempFileRegistry = value
	return &opts
}

func (o *options) TempFileRegistry() TempFileRegistry {
	return o.tempFileRegistry
}

func (o *options) SetStreamWrapperFn(value StreamWrapperFn) Options {
	opts := *o
	opts.streamWrapperFn = value
	return &opts
}

func (o *options) StreamWrapperFn() StreamWrapperFn {
	return o.streamWrapperFn
}

func (o *options) SetMaxBytesInFlight(value int64) Options {
	opts := *o
	opts.maxBytesInFlight = value
	return &opts
}

func (o *options) MaxBytesInFlight() int64 {
	return o.maxBytesInFlight
}

func (o *options) SetMaxRequestsInFlight(value int64) Options {
	opts := *o
	opts.maxRequestsInFlight = value
	return &opts
}

func (o *options) MaxRequestsInFlight() int64 {
	return o.maxRequestsInFlight
}

func (o *options) SetMaxBlocksInFlightPerHost(value int64) Options {
	opts := *o
	opts.maxBlocksInFlightPerHost = value
	return &opts
}

func (o *options) MaxBlocksInFlightPerHost() int64 {
	return o.maxBlocksInFlightPerHost
}

func (o *options) SetMaxRequestSizeToMemory(value int64) Options {
	opts := *o
	opts.maxRequestSizeToMemory = value
	return &opts
}

func (o *options) MaxRequestSizeToMemory() int64 {
	return o.maxRequestSizeToMemory
}

func (o *options) SetDetectCorruption(value bool) Options {
	opts := *o
	opts.detectCorruption = value
	return &opts
}

func (o *options) DetectCorruption() bool {
	return o.detectCorruption
}

func (o *options) SetDetectCorruptionUseExtraMemory(value bool) Options {
	opts := *o
	opts.detectCorruptionUseExtraMemory = value
	return &opts
}

func (o *options) DetectCorruptionUseExtraMemory() bool {
	return o.detectCorruptionUseExtraMemory
}

func (o *options) SetBatchFetchEnabled(value bool) Options {
	opts := *o
	opts.batchFetchEnabled = value
	return &opts
}

func (o *options) BatchFetchEnabled() bool {
	return o.batchFetchEnabled
}

func (o *options) SetHostLocalFetchEnabled(value bool) Options {
	opts := *o
	opts.hostLocalFetchEnabled = value
	return &opts
}

func (o *options) HostLocalFetchEnabled() bool {
	return o.hostLocalFetchEnabled
}
