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

// Package fetchertest provides an in-process transport and cluster
// harness for exercising block iterators against real stores without
// a network.
package fetchertest

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/m3db/shuffle/src/shuffle/block"
	"github.com/m3db/shuffle/src/shuffle/buffer"
	"github.com/m3db/shuffle/src/shuffle/fetcher"
	"github.com/m3db/shuffle/src/shuffle/storage"
	"github.com/m3db/shuffle/src/shuffle/topology"
	"github.com/m3db/shuffle/src/x/checked"
	xsync "github.com/m3db/shuffle/src/x/sync"

	"github.com/pkg/errors"
)

const (
	defaultTransportWorkers = 16

	// corruptPayload is not valid snappy framing, its first byte falls
	// in the reserved unskippable chunk range.
	corruptPayload = "transport corrupted this block"
)

// Hooks intercept transport deliveries to inject faults. A nil hook is
// a no-op, hooks returning zero values leave the delivery untouched.
type Hooks struct {
	// Latency delays serving a block or metadata probe.
	Latency func(id block.ID) time.Duration

	// FailBlock fails a block fetch with the returned error.
	FailBlock func(id block.ID) error

	// DropBlock swallows a block fetch, the listener never hears about
	// it.
	DropBlock func(id block.ID) bool

	// CorruptBlock replaces a block's payload with garbage that fails
	// stream wrapping.
	CorruptBlock func(id block.ID) bool

	// FailMeta fails a merged metadata probe with the returned error.
	FailMeta func(id block.ID) error
}

// Transport serves remote block fetches from registered stores on a
// worker pool, following the real transport's buffer contract: the
// listener takes its own reference, the transport releases its own
// after the callback returns.
type Transport struct {
	workers xsync.WorkerPool

	mu     sync.RWMutex
	stores map[string]storage.Store
	hooks  Hooks
}

// NewTransport creates a transport with no stores registered.
func NewTransport() *Transport {
	workers := xsync.NewWorkerPool(defaultTransportWorkers)
	workers.Init()
	return &Transport{
		workers: workers,
		stores:  make(map[string]storage.Store),
	}
}

// RegisterStore makes a store serve the fetches addressed to a host.
// Stores are keyed by address so merged pseudo-hosts resolve to the
// same store as the executors on that machine.
func (t *Transport) RegisterStore(address string, store storage.Store) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stores[address] = store
}

// SetHooks replaces the fault injection hooks for later deliveries.
func (t *Transport) SetHooks(hooks Hooks) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = hooks
}

func (t *Transport) snapshot(host topology.Host) (storage.Store, Hooks, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	store, ok := t.stores[host.Address()]
	return store, t.hooks, ok
}

// FetchBlocks serves each requested block from the host's registered
// store on a pooled goroutine.
func (t *Transport) FetchBlocks(
	host topology.Host,
	ids []block.ID,
	listener fetcher.BlockFetchListener,
	spill fetcher.TempFileRegistry,
) {
	t.workers.Go(func() {
		for _, id := range ids {
			t.serveBlock(host, id, listener, spill)
		}
	})
}

// FetchMergedMeta serves a metadata probe from the host's registered
// store on a pooled goroutine.
func (t *Transport) FetchMergedMeta(
	host topology.Host,
	id block.ID,
	listener fetcher.MergedMetaListener,
) {
	t.workers.Go(func() {
		store, hooks, ok := t.snapshot(host)
		if hooks.Latency != nil {
			time.Sleep(hooks.Latency(id))
		}
		if hooks.FailMeta != nil {
			if err := hooks.FailMeta(id); err != nil {
				listener.OnMetaFailure(id, err)
				return
			}
		}
		if !ok {
			listener.OnMetaFailure(id, errors.Errorf("no store registered for host %s", host))
			return
		}
		meta, err := store.LocalMergedMeta(id)
		if err != nil {
			listener.OnMetaFailure(id, err)
			return
		}
		listener.OnMetaSuccess(id, meta)
	})
}

func (t *Transport) serveBlock(
	host topology.Host,
	id block.ID,
	listener fetcher.BlockFetchListener,
	spill fetcher.TempFileRegistry,
) {
	store, hooks, ok := t.snapshot(host)
	if hooks.Latency != nil {
		time.Sleep(hooks.Latency(id))
	}
	if hooks.DropBlock != nil && hooks.DropBlock(id) {
		return
	}
	if hooks.FailBlock != nil {
		if err := hooks.FailBlock(id); err != nil {
			listener.OnBlockFetchFailure(id, err)
			return
		}
	}
	if !ok {
		listener.OnBlockFetchFailure(id, errors.Errorf("no store registered for host %s", host))
		return
	}

	buf, err := readServedBlock(store, id)
	if err != nil {
		listener.OnBlockFetchFailure(id, err)
		return
	}
	if hooks.CorruptBlock != nil && hooks.CorruptBlock(id) {
		buf.DecRef()
		buf = buffer.NewBytesBuffer(checked.NewBytes([]byte(corruptPayload), nil))
	}
	if spill != nil {
		spilled, err := spillToTempFile(spill, buf)
		buf.DecRef()
		if err != nil {
			listener.OnBlockFetchFailure(id, err)
			return
		}
		buf = spilled
	}
	listener.OnBlockFetchSuccess(id, buf)
	buf.DecRef()
}

func readServedBlock(store storage.Store, id block.ID) (buffer.Buffer, error) {
	if id.IsChunk() {
		return store.LocalMergedChunk(id)
	}
	return store.LocalBlock(id)
}

// spillToTempFile copies a buffer into a registry owned temp file and
// returns a file backed buffer over it.
func spillToTempFile(registry fetcher.TempFileRegistry, buf buffer.Buffer) (buffer.Buffer, error) {
	f, err := registry.CreateTempFile()
	if err != nil {
		return nil, err
	}
	path := f.Name()

	r, err := buf.NewReader()
	if err == nil {
		_, err = io.Copy(f, r)
		if cerr := r.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, errors.Wrapf(err, "failed to spill block to %s", path)
	}
	if !registry.RegisterTempFileToClean(path) {
		os.Remove(path)
		return nil, errors.Errorf("temp file registry closed, removed %s", path)
	}
	return buffer.NewFileBuffer(path)
}
