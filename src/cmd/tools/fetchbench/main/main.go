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

// fetchbench drives a block iterator against in-process hosts and
// reports fetch throughput. All blocks are served from memory or local
// temp directories, so the numbers isolate the fetch engine from any
// real network.
package main

import (
	"fmt"
	"io"
	"io/ioutil"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/m3db/shuffle/src/shuffle/block"
	"github.com/m3db/shuffle/src/shuffle/fetcher"
	"github.com/m3db/shuffle/src/shuffle/fetcher/fetchertest"
	"github.com/m3db/shuffle/src/shuffle/storage"
	"github.com/m3db/shuffle/src/shuffle/topology"
	xconfig "github.com/m3db/shuffle/src/x/config"
	xcontext "github.com/m3db/shuffle/src/x/context"
	"github.com/m3db/shuffle/src/x/instrument"

	"github.com/RoaringBitmap/roaring"
	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"
	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

const benchSeed = 42

type benchConfig struct {
	// NumHosts is the number of remote hosts serving blocks.
	NumHosts int `yaml:"numHosts" validate:"min=1"`

	// BlocksPerHost is the number of blocks fetched from each host.
	BlocksPerHost int `yaml:"blocksPerHost" validate:"min=1"`

	// BlockSize is the payload size of every block.
	BlockSize int64 `yaml:"blockSize" validate:"min=1"`

	// LocalBlocks is the number of blocks read from the local store.
	LocalBlocks int `yaml:"localBlocks" validate:"min=0"`

	// LatencyMs delays every served block, imitating a network.
	LatencyMs int `yaml:"latencyMs" validate:"min=0"`

	// Compress snappy frames payloads at rest and decompresses them on
	// the consumer side.
	Compress bool `yaml:"compress"`

	// FileBacked serves blocks from files instead of memory.
	FileBacked bool `yaml:"fileBacked"`

	// MergedRatio is the fraction of each remote host's blocks served
	// as chunked merged blocks instead of single map outputs.
	MergedRatio float64 `yaml:"mergedRatio" validate:"min=0,max=1"`

	// CorruptProbability corrupts served block payloads with this
	// probability, exercising the detect-and-retry path. Detection
	// needs Compress so reads go through the snappy wrapper.
	CorruptProbability float64 `yaml:"corruptProbability" validate:"min=0,max=1"`

	// Batch coalesces contiguous partitions of the same map output
	// into batched fetches.
	Batch bool `yaml:"batch"`

	// Fetcher tunes the iterator's in flight limits.
	Fetcher fetcher.Configuration `yaml:"fetcher"`
}

func defaultConfig() benchConfig {
	return benchConfig{
		NumHosts:      4,
		BlocksPerHost: 250,
		BlockSize:     256 * 1024,
		LocalBlocks:   100,
		LatencyMs:     1,
	}
}

var (
	flagConfigFile    string
	flagNumHosts      int
	flagBlocksPerHost int
	flagBlockSize     string
	flagLocalBlocks   int
	flagLatencyMs     int
	flagCompress      bool
	flagFileBacked    bool
	flagMergedRatio   float64
	flagCorrupt       float64
	flagBatch         bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "fetchbench",
		Short:        "benchmark shuffle block fetching against in-process hosts",
		RunE:         run,
		SilenceUsage: true,
	}
	flags := cmd.Flags()
	flags.StringVarP(&flagConfigFile, "config", "f", "", "optional YAML config file")
	flags.IntVar(&flagNumHosts, "hosts", 0, "number of remote hosts")
	flags.IntVar(&flagBlocksPerHost, "blocks-per-host", 0, "blocks fetched from each host")
	flags.StringVar(&flagBlockSize, "block-size", "", "payload size of every block, e.g. 256KB")
	flags.IntVar(&flagLocalBlocks, "local-blocks", 0, "blocks read from the local store")
	flags.IntVar(&flagLatencyMs, "latency", 0, "per block delivery delay in milliseconds")
	flags.BoolVar(&flagCompress, "compress", false, "snappy frame payloads at rest")
	flags.BoolVar(&flagFileBacked, "file-backed", false, "serve blocks from files instead of memory")
	flags.Float64Var(&flagMergedRatio, "merged-ratio", 0, "fraction of each remote host's blocks served as merged blocks")
	flags.Float64Var(&flagCorrupt, "corrupt", 0, "probability a served block payload is corrupted, needs --compress")
	flags.BoolVar(&flagBatch, "batch", false, "coalesce contiguous partitions into batched fetches")
	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	cfg := defaultConfig()
	if flagConfigFile != "" {
		if err := xconfig.LoadFile(&cfg, flagConfigFile); err != nil {
			return fmt.Errorf("failed to load config file: %v", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("hosts") {
		cfg.NumHosts = flagNumHosts
	}
	if flags.Changed("blocks-per-host") {
		cfg.BlocksPerHost = flagBlocksPerHost
	}
	if flags.Changed("block-size") {
		var size datasize.ByteSize
		if err := size.UnmarshalText([]byte(flagBlockSize)); err != nil {
			return fmt.Errorf("invalid block size %q: %v", flagBlockSize, err)
		}
		cfg.BlockSize = int64(size.Bytes())
	}
	if flags.Changed("local-blocks") {
		cfg.LocalBlocks = flagLocalBlocks
	}
	if flags.Changed("latency") {
		cfg.LatencyMs = flagLatencyMs
	}
	if flags.Changed("compress") {
		cfg.Compress = flagCompress
	}
	if flags.Changed("file-backed") {
		cfg.FileBacked = flagFileBacked
	}
	if flags.Changed("merged-ratio") {
		cfg.MergedRatio = flagMergedRatio
	}
	if flags.Changed("corrupt") {
		cfg.CorruptProbability = flagCorrupt
	}
	if flags.Changed("batch") {
		cfg.Batch = flagBatch
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer logger.Sync()

	return runBench(cfg, logger)
}

func runBench(cfg benchConfig, logger *zap.Logger) error {
	if cfg.CorruptProbability > 0 && !cfg.Compress {
		return fmt.Errorf("corruption injection needs --compress so reads detect it")
	}

	var tempRoot string
	if cfg.FileBacked {
		root, err := ioutil.TempDir("", "fetchbench")
		if err != nil {
			return err
		}
		tempRoot = root
		defer os.RemoveAll(tempRoot)
	}

	newStore := func(name string) (storage.Store, error) {
		storeOpts := storage.NewOptions().SetCompressPayloads(cfg.Compress)
		if !cfg.FileBacked {
			return storage.NewMemoryStore(storeOpts), nil
		}
		return storage.NewFileStore(storeOpts.
			SetLocalDirs([]string{filepath.Join(tempRoot, name)}))
	}

	var (
		rng       = rand.New(rand.NewSource(benchSeed))
		payload   = make([]byte, cfg.BlockSize)
		transport = fetchertest.NewTransport()
		localHost = topology.NewHost("exec-0", "local:7337")
	)
	rng.Read(payload)

	var hooks fetchertest.Hooks
	if cfg.LatencyMs > 0 {
		latency := time.Duration(cfg.LatencyMs) * time.Millisecond
		hooks.Latency = func(block.ID) time.Duration { return latency }
	}
	if cfg.CorruptProbability > 0 {
		p := cfg.CorruptProbability
		// Corrupt chunks would fall back through a location resolver
		// the bench does not provide, only corrupt plain blocks.
		hooks.CorruptBlock = func(id block.ID) bool {
			return !id.IsMergedOrChunk() && rand.Float64() < p
		}
	}
	if hooks.Latency != nil || hooks.CorruptBlock != nil {
		transport.SetHooks(hooks)
	}

	localStore, err := newStore("exec-0")
	if err != nil {
		return err
	}
	defer localStore.Close()

	var assignments []fetcher.HostBlocks
	seedHost := func(host topology.Host, store storage.Store, mapID int64, numBlocks int) error {
		blocks := make([]block.Descriptor, 0, numBlocks)
		for i := 0; i < numBlocks; i++ {
			id := block.NewDataID(1, mapID, uint32(i))
			if err := store.AddBlock(id, payload); err != nil {
				return err
			}
			blocks = append(blocks, block.Descriptor{
				ID:       id,
				Size:     cfg.BlockSize,
				MapIndex: int32(mapID),
			})
		}
		assignments = append(assignments, fetcher.HostBlocks{Host: host, Blocks: blocks})
		return nil
	}

	// Merged blocks hold the same payload split into chunks, so a host
	// serves the same bytes whatever the merged ratio.
	seedMerged := func(host topology.Host, store storage.Store, firstReduce uint32, numMerged int) error {
		merged := make([]block.Descriptor, 0, numMerged)
		for j := 0; j < numMerged; j++ {
			id := block.NewMergedID(1, 0, firstReduce+uint32(j))
			chunks := [][]byte{payload}
			if half := len(payload) / 2; half > 0 {
				chunks = [][]byte{payload[:half], payload[half:]}
			}
			maps := make([]*roaring.Bitmap, 0, len(chunks))
			for k := range chunks {
				chunkMap := roaring.New()
				chunkMap.Add(uint32(k))
				maps = append(maps, chunkMap)
			}
			meta := fetcher.MergedMeta{NumChunks: len(chunks), ChunkMaps: maps}
			if err := store.AddMergedBlock(id, meta, chunks); err != nil {
				return err
			}
			merged = append(merged, block.Descriptor{
				ID:       id,
				Size:     cfg.BlockSize,
				MapIndex: block.MapIndexUnknown,
			})
		}
		assignments = append(assignments, fetcher.HostBlocks{
			Host:   topology.NewMergedHost(host.Address()),
			Blocks: merged,
		})
		return nil
	}

	mergedPerHost := int(cfg.MergedRatio * float64(cfg.BlocksPerHost))
	dataPerHost := cfg.BlocksPerHost - mergedPerHost

	if cfg.LocalBlocks > 0 {
		if err := seedHost(localHost, localStore, 0, cfg.LocalBlocks); err != nil {
			return err
		}
	}
	for i := 1; i <= cfg.NumHosts; i++ {
		host := topology.NewHost(fmt.Sprintf("exec-%d", i), fmt.Sprintf("host-%d:7337", i))
		store, err := newStore(host.ID())
		if err != nil {
			return err
		}
		defer store.Close()
		transport.RegisterStore(host.Address(), store)
		if dataPerHost > 0 {
			if err := seedHost(host, store, int64(i), dataPerHost); err != nil {
				return err
			}
		}
		if mergedPerHost > 0 {
			if err := seedMerged(host, store, uint32((i-1)*mergedPerHost), mergedPerHost); err != nil {
				return err
			}
		}
	}

	scope := tally.NewTestScope("", nil)
	opts := cfg.Fetcher.NewOptions(instrument.NewOptions().
		SetMetricsScope(scope).
		SetLogger(logger)).
		SetBlockStore(localStore).
		SetRemoteBlockClient(transport)
	if cfg.Compress {
		opts = opts.SetStreamWrapperFn(fetcher.SnappyStreamWrapper)
	}
	if cfg.CorruptProbability > 0 {
		// Eager detection catches bad payloads at delivery time so the
		// iterator retries them instead of surfacing a read error.
		opts = opts.SetDetectCorruptionUseExtraMemory(true)
	}
	if cfg.Batch {
		opts = opts.SetBatchFetchEnabled(true)
	}

	ctx := xcontext.NewContext()
	iter, err := fetcher.NewBlockIterator(ctx, localHost, assignments, opts)
	if err != nil {
		return err
	}

	logger.Info("starting fetch",
		zap.Int("hosts", cfg.NumHosts),
		zap.Int("blocksPerHost", cfg.BlocksPerHost),
		zap.Int("localBlocks", cfg.LocalBlocks),
		zap.String("blockSize", datasize.ByteSize(cfg.BlockSize).HumanReadable()),
		zap.Bool("compress", cfg.Compress),
		zap.Bool("fileBacked", cfg.FileBacked),
		zap.Bool("batch", cfg.Batch),
		zap.Float64("mergedRatio", cfg.MergedRatio),
		zap.Float64("corrupt", cfg.CorruptProbability))

	var (
		start          = time.Now()
		blocksRead     int64
		partitionsRead int64
		bytesRead      int64
	)
	for iter.HasNext() {
		fetched, err := iter.Next()
		if err != nil {
			iter.Close()
			return fmt.Errorf("fetch failed after %d blocks: %v", blocksRead, err)
		}
		n, err := io.Copy(ioutil.Discard, fetched.Stream)
		if cerr := fetched.Stream.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			iter.Close()
			return fmt.Errorf("failed reading block %s: %v", fetched.ID, err)
		}
		blocksRead++
		partitionsRead += int64(block.BatchCount(fetched.ID))
		bytesRead += n
	}
	elapsed := time.Since(start)
	if err := iter.Close(); err != nil {
		return err
	}
	ctx.BlockingClose()

	throughput := "n/a"
	if elapsed > 0 {
		perSec := float64(bytesRead) / elapsed.Seconds()
		throughput = datasize.ByteSize(perSec).HumanReadable() + "/s"
	}
	logger.Info("fetch complete",
		zap.Int64("blocks", blocksRead),
		zap.Int64("partitions", partitionsRead),
		zap.String("bytes", datasize.ByteSize(bytesRead).HumanReadable()),
		zap.Duration("elapsed", elapsed),
		zap.String("throughput", throughput))

	reportMetrics(scope, logger)
	return nil
}

// reportMetrics logs the iterator's counters and its cumulative fetch
// wait, the time the consumer spent blocked on deliveries.
func reportMetrics(scope tally.TestScope, logger *zap.Logger) {
	snapshot := scope.Snapshot()

	names := make([]string, 0, len(snapshot.Counters()))
	for name := range snapshot.Counters() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		counter := snapshot.Counters()[name]
		if counter.Value() == 0 {
			continue
		}
		logger.Info("counter",
			zap.String("name", counter.Name()),
			zap.Int64("value", counter.Value()))
	}

	for _, timer := range snapshot.Timers() {
		var total time.Duration
		for _, v := range timer.Values() {
			total += v
		}
		logger.Info("timer",
			zap.String("name", timer.Name()),
			zap.Int("samples", len(timer.Values())),
			zap.Duration("total", total))
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
