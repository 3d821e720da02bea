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

package conn

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sieve-xyz/sieve/chain"
	"github.com/sieve-xyz/sieve/errs"
	"github.com/sieve-xyz/sieve/ingest"
)

// ChainConfig names the recognized per-chain options: rpc, ws, gossipsub,
// chain, and the poll/stall/request timing knobs, expressed as exported
// struct fields in go-ethereum's eth.Config convention, with
// functional-option overrides layered on top (see WithX below).
type ChainConfig struct {
	Chain chain.Tag
	RPC   string // required: HTTP(S) JSON-RPC endpoint
	WS    string // optional: WS endpoint; enables SubscriptionWS + live log delivery

	// Gossipsub is the optional pluggable p2p ingress; nil means no gossip
	// ingress.
	Gossipsub ingest.GossipSource

	HeadPollInterval    time.Duration // default 2s
	PendingPollInterval time.Duration // default 500ms
	StallTimeout        time.Duration // default 30s
	QuiescenceTimeout   time.Duration // default 30s

	DedupWindow         int // default 8192
	BufferSize          int // default 4096
	DecodeCacheCapacity int // default 10_000
	ReceiptQueueSize    int // default 256

	MaxRestarts      int           // default 8
	MaxRestartWindow time.Duration // default 5m
}

// Option mutates a ChainConfig, matching go-ethereum's field-struct-plus-
// override pattern.
type Option func(*ChainConfig)

func WithHeadPollInterval(d time.Duration) Option    { return func(c *ChainConfig) { c.HeadPollInterval = d } }
func WithPendingPollInterval(d time.Duration) Option { return func(c *ChainConfig) { c.PendingPollInterval = d } }
func WithStallTimeout(d time.Duration) Option        { return func(c *ChainConfig) { c.StallTimeout = d } }
func WithQuiescenceTimeout(d time.Duration) Option   { return func(c *ChainConfig) { c.QuiescenceTimeout = d } }
func WithDedupWindow(n int) Option                   { return func(c *ChainConfig) { c.DedupWindow = n } }
func WithDecodeCacheCapacity(n int) Option           { return func(c *ChainConfig) { c.DecodeCacheCapacity = n } }
func WithGossipsub(s ingest.GossipSource) Option      { return func(c *ChainConfig) { c.Gossipsub = s } }

func (c ChainConfig) withDefaults() ChainConfig {
	if c.HeadPollInterval <= 0 {
		c.HeadPollInterval = 2 * time.Second
	}
	if c.PendingPollInterval <= 0 {
		c.PendingPollInterval = 500 * time.Millisecond
	}
	if c.StallTimeout <= 0 {
		c.StallTimeout = 30 * time.Second
	}
	if c.QuiescenceTimeout <= 0 {
		c.QuiescenceTimeout = 30 * time.Second
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = 8192
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 4096
	}
	if c.DecodeCacheCapacity <= 0 {
		c.DecodeCacheCapacity = 10_000
	}
	if c.ReceiptQueueSize <= 0 {
		c.ReceiptQueueSize = 256
	}
	if c.MaxRestarts <= 0 {
		c.MaxRestarts = 8
	}
	if c.MaxRestartWindow <= 0 {
		c.MaxRestartWindow = 5 * time.Minute
	}
	return c
}

func (c ChainConfig) validate() error {
	if !c.Chain.Valid() {
		return &errs.ConfigError{Msg: "unrecognized chain tag"}
	}
	if c.RPC == "" {
		return &errs.ConfigError{Msg: "rpc endpoint is required"}
	}
	return nil
}

// Orchestrator owns one Supervisor per configured chain and runs them
// concurrently until the caller's context is cancelled or a supervisor
// exhausts its restart budget.
type Orchestrator struct {
	supervisors map[chain.Tag]*Supervisor
}

// Connect validates every ChainConfig, builds a Supervisor per chain, and
// returns an Orchestrator ready to Run. Connections themselves are opened
// lazily inside Run.
func Connect(chains []ChainConfig, opts map[chain.Tag][]Option, lag ingest.LagRecorder) (*Orchestrator, error) {
	supervisors := make(map[chain.Tag]*Supervisor, len(chains))
	for _, cfg := range chains {
		cfg = cfg.withDefaults()
		for _, opt := range opts[cfg.Chain] {
			opt(&cfg)
		}
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		sup, err := NewSupervisor(cfg, lag)
		if err != nil {
			return nil, err
		}
		supervisors[cfg.Chain] = sup
	}
	return &Orchestrator{supervisors: supervisors}, nil
}

// Supervisor returns the supervisor for c, or nil if c was not configured.
func (o *Orchestrator) Supervisor(c chain.Tag) *Supervisor { return o.supervisors[c] }

// Chains lists the configured chain tags.
func (o *Orchestrator) Chains() []chain.Tag {
	out := make([]chain.Tag, 0, len(o.supervisors))
	for c := range o.supervisors {
		out = append(out, c)
	}
	return out
}

// Run starts every supervisor and blocks until ctx is cancelled or any one
// supervisor returns with its restart budget exhausted; the caller (the
// root façade) is responsible for closing subscriptions in that case.
func (o *Orchestrator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, sup := range o.supervisors {
		sup := sup
		g.Go(func() error { return sup.Run(ctx) })
	}
	return g.Wait()
}
