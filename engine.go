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

// Package sieve is the public entry point: Connect a set of chains, build
// Filters with a fluent scoped Builder, and hand out
// Subscribe/SubscribeAll/WatchWithin subscription handles. Everything
// underneath (filter, schema, ingest, conn, subscription) is reusable on
// its own; this package only wires those pieces together the way a caller
// is expected to.
package sieve

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/sieve-xyz/sieve/chain"
	"github.com/sieve-xyz/sieve/conn"
	"github.com/sieve-xyz/sieve/decode"
	"github.com/sieve-xyz/sieve/errs"
	"github.com/sieve-xyz/sieve/filter"
	"github.com/sieve-xyz/sieve/metrics"
	"github.com/sieve-xyz/sieve/schema"
	"github.com/sieve-xyz/sieve/subscription"
	"github.com/sieve-xyz/sieve/types"
)

// Re-exported names so a caller only ever imports the root package for the
// common path; the subpackages remain usable directly for anything the
// façade doesn't cover (e.g. package schema's Describe introspection).
type (
	Chain         = chain.Tag
	ChainConfig   = conn.ChainConfig
	Option        = conn.Option
	Filter        = filter.Filter
	FilterBuilder = filter.Builder
	Scope         = filter.Scope
	Event         = subscription.Event
	EventKind     = subscription.EventKind
	Subscription  = subscription.Subscription
	WatchOption   = subscription.WatchOption
)

// Chain tags.
const (
	Ethereum = chain.Ethereum
	Optimism = chain.Optimism
	Base     = chain.Base
)

// Event kinds.
const (
	EventItem    = subscription.EventItem
	EventMatch   = subscription.EventMatch
	EventTimeout = subscription.EventTimeout
	EventErr     = subscription.EventErr
)

// Per-chain timing/resource-cap options, re-exported from package conn.
var (
	WithHeadPollInterval    = conn.WithHeadPollInterval
	WithPendingPollInterval = conn.WithPendingPollInterval
	WithStallTimeout        = conn.WithStallTimeout
	WithQuiescenceTimeout   = conn.WithQuiescenceTimeout
	WithDedupWindow         = conn.WithDedupWindow
	WithDecodeCacheCapacity = conn.WithDecodeCacheCapacity
	WithGossipsub           = conn.WithGossipsub
)

// NewChainConfig builds a ChainConfig for chain c against rpcURL, applying
// opts (the timing/cap overrides and WithGossipsub). There is no Option for
// the WS endpoint; set the returned ChainConfig's WS field directly.
func NewChainConfig(c Chain, rpcURL string, opts ...Option) ChainConfig {
	cfg := ChainConfig{Chain: c, RPC: rpcURL}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewFilterBuilder starts a filter for the given chain.
func NewFilterBuilder(c Chain) *FilterBuilder { return filter.NewBuilder(c) }

// EngineOption configures Connect beyond the per-chain ChainConfig slice.
type EngineOption func(*engineOptions)

type engineOptions struct {
	decoder             decode.Decoder
	decodeCacheCapacity int
	registerer          prometheus.Registerer
}

// WithDecoder supplies the ABI decoding function Decoded field accessors
// invoke. ABI decoding is treated as an external pure function; Sieve
// never bundles one. Omitting this option leaves every Decoded field
// ("input.method", "event.*") permanently absent.
func WithDecoder(d decode.Decoder) EngineOption {
	return func(o *engineOptions) { o.decoder = d }
}

// WithEngineDecodeCacheCapacity sets the capacity of the decode cache the
// subscription registry's evaluator memoizes ABI decodings in (default
// 10_000). ChainConfig.DecodeCacheCapacity (WithDecodeCacheCapacity) is
// defaulted by the orchestrator but read by neither the orchestrator nor the
// evaluator, so this option is the only one that sizes the decode cache.
func WithEngineDecodeCacheCapacity(n int) EngineOption {
	return func(o *engineOptions) { o.decodeCacheCapacity = n }
}

// WithMetricsRegisterer registers Sieve's Prometheus collectors with reg
// instead of the default global registerer — useful for tests and for
// processes embedding more than one Engine.
func WithMetricsRegisterer(reg prometheus.Registerer) EngineOption {
	return func(o *engineOptions) { o.registerer = reg }
}

// Engine is the connected, running façade: one subscription Registry
// shared across every configured chain's ingestion pipeline.
type Engine struct {
	orchestrator *conn.Orchestrator
	registry     *subscription.Registry
	metrics      *metrics.Recorder

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	runErr error
}

// Connect validates every ChainConfig, builds a Supervisor per chain, and
// starts each Supervisor's Run loop (which dials the chain's RPC, and WS if
// configured, right away; fetchers start only as subscriptions create
// demand) and the dispatcher reading each chain's pipeline. It returns once
// every Supervisor has been constructed; it does not wait for a
// successful dial.
func Connect(ctx context.Context, configs []ChainConfig, opts ...EngineOption) (*Engine, error) {
	o := &engineOptions{}
	for _, opt := range opts {
		opt(o)
	}

	rec := metrics.NewRecorder(o.registerer)

	orchestrator, err := conn.Connect(configs, nil, rec)
	if err != nil {
		return nil, err
	}

	registry := subscription.NewRegistry(o.decoder, o.decodeCacheCapacity)
	registry.SetMetrics(rec)

	runCtx, cancel := context.WithCancel(ctx)
	e := &Engine{
		orchestrator: orchestrator,
		registry:     registry,
		metrics:      rec,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	g, gctx := errgroup.WithContext(runCtx)
	for _, c := range orchestrator.Chains() {
		sup := orchestrator.Supervisor(c)
		registry.SetReceiptFetcher(c, supervisorReceiptFetcher{chain: c, sup: sup})
		g.Go(func() error { return sup.Run(gctx) })
		g.Go(func() error { return registry.Dispatch(gctx, sup.Pipeline()) })
	}

	go func() {
		runErr := g.Wait()
		e.mu.Lock()
		e.runErr = runErr
		e.mu.Unlock()
		if runErr != nil && ctx.Err() == nil {
			registry.CloseAll("engine", runErr)
		}
		close(e.done)
	}()

	go e.reportSubscriptionCount(runCtx)

	return e, nil
}

// errReceiptFetcherNotConnected is returned by supervisorReceiptFetcher
// while the owning Supervisor has not yet dialed; the evaluator treats any
// error from a field accessor as a local, recoverable "absent".
var errReceiptFetcherNotConnected = errors.New("receipt fetcher not yet connected")

// supervisorReceiptFetcher adapts a conn.Supervisor's lazily-dialed
// ingest.ReceiptFetcher to schema.ReceiptFetcher: the concrete fetcher
// does not exist until the supervisor's first successful dial, so this
// looks it up fresh on every call rather than being bound once at Connect
// time.
type supervisorReceiptFetcher struct {
	chain chain.Tag
	sup   *conn.Supervisor
}

func (s supervisorReceiptFetcher) Fetch(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	rf := s.sup.Receipts()
	if rf == nil {
		return nil, &errs.TransportError{Chain: s.chain.String(), Err: errReceiptFetcherNotConnected}
	}
	return rf.Fetch(ctx, hash)
}

func (e *Engine) reportSubscriptionCount(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.metrics.SetSubscriptionCount(e.registry.Len())
		}
	}
}

// Chains lists the chains this engine was connected with.
func (e *Engine) Chains() []Chain { return e.orchestrator.Chains() }

// ConnectionState reports c's connection lifecycle state, or false if c
// was not part of the configs passed to Connect.
func (e *Engine) ConnectionState(c Chain) (conn.State, bool) {
	sup := e.orchestrator.Supervisor(c)
	if sup == nil {
		return 0, false
	}
	return sup.State(), true
}

// Err returns the error that terminated the engine's run loop, or nil
// while it is still running.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runErr
}

// demandKinds reports which item kinds f's matches require fetchers for.
// A ChainSpecific-scoped filter legally matches any item kind (it bypasses
// the scope check in filter.Evaluator.Eval), so it demands every kind;
// every other scope demands exactly the one kind its root Group targets.
func demandKinds(f *Filter) []types.Kind {
	if f.Root.Scope == schema.ScopeChainSpecific {
		return []types.Kind{types.KindHeader, types.KindConfirmedTx, types.KindPendingTx, types.KindLog}
	}
	return []types.Kind{f.ItemKind()}
}

// incDemand registers fs' chains/kinds against the demand table and
// returns a function that releases every increment it made. If any
// filter names a chain this Engine wasn't connected with, it rolls back
// whatever it already incremented and returns a ConfigError.
func (e *Engine) incDemand(fs []*Filter) (release func(), err error) {
	type held struct {
		sup  *conn.Supervisor
		kind types.Kind
	}
	var incremented []held
	rollback := func() {
		for _, h := range incremented {
			h.sup.Demand().Dec(h.kind)
		}
	}

	for _, f := range fs {
		sup := e.orchestrator.Supervisor(f.Chain)
		if sup == nil {
			rollback()
			return nil, &errs.ConfigError{Msg: "subscribe: chain " + f.Chain.String() + " is not configured on this engine"}
		}
		for _, k := range demandKinds(f) {
			sup.Demand().Inc(k)
			incremented = append(incremented, held{sup, k})
		}
	}
	return func() {
		for _, h := range incremented {
			h.sup.Demand().Dec(h.kind)
		}
	}, nil
}

// Subscribe registers a single filter; every matching item is delivered as
// EventItem until the returned Subscription is unsubscribed.
func (e *Engine) Subscribe(f *Filter) (*Subscription, error) {
	release, err := e.incDemand([]*Filter{f})
	if err != nil {
		return nil, err
	}
	sub, err := e.registry.Subscribe(f)
	if err != nil {
		release()
		return nil, err
	}
	go func() { <-sub.Done(); release() }()
	return sub, nil
}

// SubscribeAll registers several independent filters on one subscription;
// a match on any of them is delivered as EventItem, tagged with the
// originating filter's index.
func (e *Engine) SubscribeAll(fs ...*Filter) (*Subscription, error) {
	release, err := e.incDemand(fs)
	if err != nil {
		return nil, err
	}
	sub, err := e.registry.SubscribeAll(fs...)
	if err != nil {
		release()
		return nil, err
	}
	go func() { <-sub.Done(); release() }()
	return sub, nil
}

// WatchWithin registers a cross-filter correlation window: an EventMatch
// fires once every filter has matched within a trailing window of the
// given duration; otherwise EventTimeout fires once.
func (e *Engine) WatchWithin(window time.Duration, fs []*Filter, opt WatchOption) (*Subscription, error) {
	release, err := e.incDemand(fs)
	if err != nil {
		return nil, err
	}
	sub, err := e.registry.WatchWithin(window, fs, opt)
	if err != nil {
		release()
		return nil, err
	}
	go func() { <-sub.Done(); release() }()
	return sub, nil
}

// Close stops every chain supervisor, tombstones every live subscription,
// and waits for the run loop to exit. Close is idempotent.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.cancel()
		<-e.done
		e.registry.Close()
	})
}
