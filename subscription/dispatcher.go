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

package subscription

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/sieve-xyz/sieve/chain"
	"github.com/sieve-xyz/sieve/ingest"
	"github.com/sieve-xyz/sieve/schema"
	"github.com/sieve-xyz/sieve/types"
)

// DispatchRecorder is the metrics hook the dispatcher calls after matching
// one item against a shard's candidates, implemented by package metrics.
type DispatchRecorder interface {
	ObserveDispatchLatency(c chain.Tag, kind types.Kind, d time.Duration)
}

// scopeForKind maps an item kind back to the schema.Scope its legal fields
// are registered under, the inverse of schema.Scope.ItemKind.
func scopeForKind(k types.Kind) (schema.Scope, bool) {
	switch k {
	case types.KindConfirmedTx:
		return schema.ScopeTransaction, true
	case types.KindPendingTx:
		return schema.ScopePool, true
	case types.KindLog:
		return schema.ScopeEvent, true
	case types.KindHeader, types.KindReorgMarker:
		return schema.ScopeBlock, true
	default:
		return 0, false
	}
}

// Dispatch consumes pipeline's item stream and routes each item to every
// Subscription whose filter matches, across both the item's exact scope and
// ScopeChainSpecific (which legally applies to any kind). It blocks until
// pipeline's channel closes or ctx is cancelled.
func (r *Registry) Dispatch(ctx context.Context, pipeline *ingest.Pipeline) error {
	logger := log.New("component", "dispatcher")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item, ok := <-pipeline.Out():
			if !ok {
				return nil
			}
			r.dispatchOne(item, logger)
		}
	}
}

func (r *Registry) dispatchOne(item *types.Item, logger log.Logger) {
	if _, ok := scopeForKind(item.Kind); !ok {
		return
	}
	r.dispatchShard(item, shardKey{chain: item.Chain, kind: item.Kind}, logger)
}

func (r *Registry) dispatchShard(item *types.Item, key shardKey, logger log.Logger) {
	r.mu.RLock()
	fi, ok := r.shards[key]
	r.mu.RUnlock()
	if !ok {
		return
	}
	if r.metrics != nil {
		start := time.Now()
		defer func() { r.metrics.ObserveDispatchLatency(key.chain, key.kind, time.Since(start)) }()
	}

	resolve := func(path string) (schema.Value, bool) {
		scope, ok := scopeForKind(key.kind)
		if !ok {
			return schema.Value{}, false
		}
		desc, ok := r.schemaReg.Resolve(scope, path)
		if !ok {
			return schema.Value{}, false
		}
		v, err := desc.Fn(item, nil)
		if err != nil {
			return schema.Value{}, false
		}
		return v, true
	}

	for _, e := range fi.gather(resolve) {
		if e.sub.isTombstoned() {
			continue
		}
		matched, err := r.evaluator.Eval(e.f, item)
		if err != nil {
			logger.Warn("filter eval failed", "err", err)
			continue
		}
		if !matched {
			continue
		}
		r.deliver(e, item)
	}
}

func (r *Registry) deliver(e *entry, item *types.Item) {
	switch e.sub.mode {
	case modeSingle, modeAll:
		e.sub.send(Event{Kind: EventItem, Item: item})
	case modeWatch:
		e.sub.recordMatch(e.filterIdx, item)
	}
}
