// Copyright 2026 The sieve Authors
// This file is part of the sieve library.
//
// The sieve library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The sieve library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the sieve library. If not, see <http://www.gnu.org/licenses/>.

// Package ingest normalizes raw chain payloads into the types.Item schema,
// deduplicates them, synthesizes reorg markers, and hands them to the
// dispatcher over a bounded, backpressured channel.
package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/sieve-xyz/sieve/chain"
	"github.com/sieve-xyz/sieve/types"
)

// LagRecorder is the metrics hook the pipeline calls while a producing
// fetcher is blocked on a full outbound channel. Implemented by package
// metrics; left nil in tests.
type LagRecorder interface {
	SetIngestLag(c chain.Tag, depth int)
}

// Config configures one chain's Pipeline: the ChainConfig fields that
// govern ingestion.
type Config struct {
	DedupWindow int // default 8192
	BufferSize  int // default 4096, outbound channel capacity
}

func (cfg Config) withDefaults() Config {
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = 8192
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 4096
	}
	return cfg
}

// Pipeline is the per-chain normalization/dedup/reorg/backpressure stage
// sitting between the fetchers and the subscription dispatcher.
type Pipeline struct {
	chain chain.Tag
	out   chan *types.Item
	lag   LagRecorder

	dedupHeader      *ring
	dedupConfirmedTx *ring
	dedupPendingTx   *ring
	dedupLog         *ring

	mu         sync.Mutex
	haveHead   bool
	headNumber uint64
	headHash   common.Hash
}

// NewPipeline builds a Pipeline for chain c. lag may be nil.
func NewPipeline(c chain.Tag, cfg Config, lag LagRecorder) *Pipeline {
	cfg = cfg.withDefaults()
	return &Pipeline{
		chain:            c,
		out:              make(chan *types.Item, cfg.BufferSize),
		lag:              lag,
		dedupHeader:      newRing(cfg.DedupWindow),
		dedupConfirmedTx: newRing(cfg.DedupWindow),
		dedupPendingTx:   newRing(cfg.DedupWindow),
		dedupLog:         newRing(cfg.DedupWindow),
	}
}

// Out is the pipeline's outbound item stream, consumed by the subscription
// dispatcher. Closing is the producer's responsibility (Close).
func (p *Pipeline) Out() <-chan *types.Item { return p.out }

// Close releases the outbound channel. Callers must stop all fetchers
// feeding this pipeline before calling Close.
func (p *Pipeline) Close() { close(p.out) }

// HeadProgress reports the highest header number seen so far, for the
// connection orchestrator's stall detection.
func (p *Pipeline) HeadProgress() (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.headNumber, p.haveHead
}

// Emit dedups and (for headers) reorg-checks an already normalized item before
// delivering it downstream. A duplicate is silently dropped (not an error);
// everything else is delivered, blocking the caller under backpressure
// rather than dropped.
func (p *Pipeline) Emit(ctx context.Context, item *types.Item) error {
	if p.duplicate(item) {
		return nil
	}
	if item.Kind == types.KindHeader {
		if marker := p.reorgCheck(item.Header); marker != nil {
			if err := p.send(ctx, marker); err != nil {
				return err
			}
		}
		p.advanceHead(item.Header)
	}
	return p.send(ctx, item)
}

func (p *Pipeline) send(ctx context.Context, item *types.Item) error {
	select {
	case p.out <- item:
		return nil
	default:
	}
	if p.lag != nil {
		p.lag.SetIngestLag(p.chain, len(p.out))
	}
	select {
	case p.out <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// duplicate reports whether item has already been seen, per its kind's
// dedup ring. A pending tx later arriving as confirmed uses a distinct ring
// and is therefore never suppressed by the pending dedup ring.
func (p *Pipeline) duplicate(item *types.Item) bool {
	switch item.Kind {
	case types.KindHeader:
		return p.dedupHeader.seenOrAdd(item.Header.Hash.Hex())
	case types.KindConfirmedTx:
		id := fmt.Sprintf("%s:%d", item.ConfirmedTx.BlockHash.Hex(), item.ConfirmedTx.Index)
		return p.dedupConfirmedTx.seenOrAdd(id)
	case types.KindPendingTx:
		return p.dedupPendingTx.seenOrAdd(item.PendingTx.Fields.Hash.Hex())
	case types.KindLog:
		id := fmt.Sprintf("%s:%d", item.Log.TxHash.Hex(), item.Log.LogIndex)
		return p.dedupLog.seenOrAdd(id)
	default:
		return false
	}
}

// reorgCheck synthesizes a ReorgMarker when h supersedes an already-emitted
// header at or below its own height with a different hash.
func (p *Pipeline) reorgCheck(h *types.Header) *types.Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.haveHead || h.Number > p.headNumber || h.Hash == p.headHash {
		return nil
	}
	marker := types.NewItem(p.chain, types.KindReorgMarker)
	marker.Reorg = &types.ReorgMarker{Chain: p.chain, FromNumber: h.Number, ToNumber: p.headNumber}
	return marker
}

func (p *Pipeline) advanceHead(h *types.Header) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.haveHead = true
	p.headNumber = h.Number
	p.headHash = h.Hash
}
