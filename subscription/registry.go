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
	"sync"
	"sync/atomic"
	"time"

	"github.com/sieve-xyz/sieve/chain"
	"github.com/sieve-xyz/sieve/decode"
	"github.com/sieve-xyz/sieve/errs"
	"github.com/sieve-xyz/sieve/filter"
	"github.com/sieve-xyz/sieve/schema"
	"github.com/sieve-xyz/sieve/types"
)

// shardKey identifies one (chain, item kind) shard, matching go-ethereum's
// eth/filters.EventSystem separation of log/header/pending-tx subscriber
// lists, generalized to Sieve's multi-chain, multi-kind item model.
type shardKey struct {
	chain chain.Tag
	kind  types.Kind
}

// Registry is the sharded predicate index and subscription table. It is
// safe for concurrent use.
type Registry struct {
	schemaReg *schema.Registry
	evaluator *filter.Evaluator
	metrics   DispatchRecorder

	mu     sync.RWMutex
	shards map[shardKey]*fieldIndex
	live   map[uint64]*Subscription
	nextID atomic.Uint64

	sweepMu   sync.Mutex
	pending   []*Subscription // tombstoned, awaiting sweep
	sweepStop chan struct{}
	sweepDone chan struct{}
}

// NewRegistry builds a Registry. decoder may be nil if no registered filter
// ever references a Decoded field; decodeCacheCapacity defaults to 10_000.
func NewRegistry(decoder decode.Decoder, decodeCacheCapacity int) *Registry {
	if decodeCacheCapacity <= 0 {
		decodeCacheCapacity = 10_000
	}
	r := &Registry{
		schemaReg: schema.NewRegistry(decoder),
		evaluator: filter.NewEvaluator(decoder, decodeCacheCapacity),
		shards:    make(map[shardKey]*fieldIndex),
		live:      make(map[uint64]*Subscription),
		sweepStop: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}
	go r.sweep(5 * time.Second)
	return r
}

// SetMetrics wires a DispatchRecorder into the dispatcher; nil (the
// default) disables dispatch-latency observation entirely.
func (r *Registry) SetMetrics(m DispatchRecorder) { r.metrics = m }

// SetReceiptFetcher wires f as chain c's on-demand receipt source into both
// the authoritative evaluator and the index's schema registry, so
// receipt.* predicates resolve instead of always returning absent.
func (r *Registry) SetReceiptFetcher(c chain.Tag, f schema.ReceiptFetcher) {
	r.evaluator.SetReceiptFetcher(c, f)
	r.schemaReg.SetReceiptFetcher(c, f)
}

// Len reports the number of live (non-tombstoned) subscriptions, used for
// the subscription_count metric.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.live)
}

func (r *Registry) shardFor(c chain.Tag, k types.Kind) *fieldIndex {
	key := shardKey{chain: c, kind: k}

	r.mu.RLock()
	fi, ok := r.shards[key]
	r.mu.RUnlock()
	if ok {
		return fi
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if fi, ok := r.shards[key]; ok {
		return fi
	}
	fi = newFieldIndex()
	r.shards[key] = fi
	return fi
}

func (r *Registry) register(sub *Subscription) {
	for i, f := range sub.filters {
		fi := r.shardFor(f.Chain, f.ItemKind())
		fi.add(&entry{sub: sub, filterIdx: i, f: f})
	}
}

// Subscribe registers a single filter. Each matching item is delivered as
// EventItem.
func (r *Registry) Subscribe(f *filter.Filter) (*Subscription, error) {
	return r.newSubscription([]*filter.Filter{f}, modeSingle, 0, WatchOption{})
}

// SubscribeAll registers several filters on one subscription; any item
// matching any one of them is delivered as EventItem.
func (r *Registry) SubscribeAll(fs ...*filter.Filter) (*Subscription, error) {
	if len(fs) == 0 {
		return nil, &errs.FilterBuildError{Msg: "SubscribeAll requires at least one filter"}
	}
	return r.newSubscription(fs, modeAll, 0, WatchOption{})
}

// WatchWithin registers several filters for correlated delivery: an
// EventMatch fires once every filter has produced at least one match
// within a trailing window of length window; otherwise, once window elapses
// (counted from registration or from the last EventMatch) without a full
// match, a single EventTimeout fires and the subscription is unsubscribed.
func (r *Registry) WatchWithin(window time.Duration, fs []*filter.Filter, opt WatchOption) (*Subscription, error) {
	if len(fs) == 0 {
		return nil, &errs.FilterBuildError{Msg: "WatchWithin requires at least one filter"}
	}
	if window <= 0 {
		return nil, &errs.FilterBuildError{Msg: "WatchWithin window must be positive"}
	}
	return r.newSubscription(fs, modeWatch, window, opt.withDefaults())
}

func (r *Registry) newSubscription(fs []*filter.Filter, m mode, window time.Duration, opt WatchOption) (*Subscription, error) {
	sub := &Subscription{
		id:       r.nextID.Add(1),
		registry: r,
		filters:  fs,
		mode:     m,
		window:   window,
		opt:      opt,
		events:   make(chan Event, 64),
		doneCh:   make(chan struct{}),
	}
	if m == modeWatch {
		sub.slots = make([][]watchSlot, len(fs))
		sub.timer = time.AfterFunc(window, func() { r.fireTimeout(sub) })
	}
	r.register(sub)

	r.mu.Lock()
	r.live[sub.id] = sub
	r.mu.Unlock()

	return sub, nil
}

func (r *Registry) fireTimeout(sub *Subscription) {
	if sub.isTombstoned() {
		return
	}
	sub.timeoutOnce.Do(func() {
		select {
		case sub.events <- Event{Kind: EventTimeout}:
		default:
		}
		sub.Unsubscribe()
	})
}

func (r *Registry) markTombstoned(sub *Subscription) {
	r.mu.Lock()
	delete(r.live, sub.id)
	r.mu.Unlock()

	r.sweepMu.Lock()
	r.pending = append(r.pending, sub)
	r.sweepMu.Unlock()
}

// sweep periodically unlinks tombstoned subscriptions from every shard
// they were registered in.
func (r *Registry) sweep(interval time.Duration) {
	defer close(r.sweepDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.sweepStop:
			return
		case <-ticker.C:
			r.sweepOnce()
		}
	}
}

func (r *Registry) sweepOnce() {
	r.sweepMu.Lock()
	batch := r.pending
	r.pending = nil
	r.sweepMu.Unlock()

	if len(batch) == 0 {
		return
	}
	r.mu.RLock()
	shards := make([]*fieldIndex, 0, len(r.shards))
	for _, fi := range r.shards {
		shards = append(shards, fi)
	}
	r.mu.RUnlock()

	r.mu.Lock()
	for _, sub := range batch {
		delete(r.live, sub.id)
	}
	r.mu.Unlock()

	for _, sub := range batch {
		for _, fi := range shards {
			fi.remove(sub)
		}
	}
}

// CloseAll tombstones every live subscription, first offering each one
// final Event{Kind: EventErr} (dropped if that subscription's buffer is
// full). Tombstoning closes the subscription's Done channel; its Events
// channel is never closed. This is the fatal shutdown path: supervisor
// exhaustion ends the engine and every subscription this way.
func (r *Registry) CloseAll(chainName string, cause error) {
	r.mu.RLock()
	subs := make([]*Subscription, 0, len(r.live))
	for _, sub := range r.live {
		subs = append(subs, sub)
	}
	r.mu.RUnlock()

	for _, sub := range subs {
		sub.deliverErr(chainName, cause)
	}
}

// Close stops the sweeper goroutine. Called once, by the engine shutting
// down (not by individual Unsubscribe calls).
func (r *Registry) Close() {
	close(r.sweepStop)
	<-r.sweepDone
}
