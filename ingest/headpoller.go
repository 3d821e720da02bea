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

package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/goware/breaker"

	"github.com/sieve-xyz/sieve/chain"
)

// defaultBreakerBase, defaultBreakerFactor and defaultBreakerMaxRetries size
// every fetcher's per-call retry, grounded in 0xsequence/ethkit's
// ethreceipts.go ("breaker.New(log, 1*time.Second, 2, 4)").
const (
	defaultBreakerBase       = 500 * time.Millisecond
	defaultBreakerFactor     = 2
	defaultBreakerMaxRetries = 5
)

func newFetcherBreaker() *breaker.Breaker {
	return breaker.New(slog.Default(), defaultBreakerBase, defaultBreakerFactor, defaultBreakerMaxRetries)
}

// HeadPoller polls eth_getBlockByNumber("latest") on a fixed interval,
// normalizing each response into a Header item.
type HeadPoller struct {
	chain    chain.Tag
	client   *rpc.Client
	pipeline *Pipeline
	interval time.Duration
	br       *breaker.Breaker
	log      log.Logger
}

// NewHeadPoller builds a HeadPoller. interval defaults to 2s when <= 0.
func NewHeadPoller(c chain.Tag, client *rpc.Client, pipeline *Pipeline, interval time.Duration) *HeadPoller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &HeadPoller{
		chain:    c,
		client:   client,
		pipeline: pipeline,
		interval: interval,
		br:       newFetcherBreaker(),
		log:      log.New("component", "headpoller", "chain", c.String()),
	}
}

// Run blocks until ctx is cancelled, polling at p.interval.
func (p *HeadPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.poll(ctx); err != nil {
				p.log.Warn("head poll failed", "err", err)
			}
		}
	}
}

func (p *HeadPoller) poll(ctx context.Context) error {
	var raw json.RawMessage
	err := p.br.Do(ctx, func() error {
		return p.client.CallContext(ctx, &raw, "eth_getBlockByNumber", "latest", false)
	})
	if err != nil {
		return fmt.Errorf("ingest: eth_getBlockByNumber: %w", err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	item, err := normalizeHeader(p.chain, raw)
	if err != nil {
		return err
	}
	return p.pipeline.Emit(ctx, item)
}
