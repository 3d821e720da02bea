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
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/goware/breaker"

	"github.com/sieve-xyz/sieve/chain"
)

// PendingFilter polls the mempool via eth_newPendingTransactionFilter /
// eth_getFilterChanges, fetching each newly observed hash's full
// transaction and emitting a PendingTx item. Per the Open Question
// decision recorded in DESIGN.md, it never replays on restart: each
// (re)start installs a fresh RPC filter, which reports only hashes seen
// after it was installed. The pipeline's pending dedup ring is not reset.
type PendingFilter struct {
	chain    chain.Tag
	client   *rpc.Client
	pipeline *Pipeline
	interval time.Duration
	br       *breaker.Breaker
	log      log.Logger
}

// NewPendingFilter builds a PendingFilter. interval defaults to 500ms when <= 0.
func NewPendingFilter(c chain.Tag, client *rpc.Client, pipeline *Pipeline, interval time.Duration) *PendingFilter {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &PendingFilter{
		chain:    c,
		client:   client,
		pipeline: pipeline,
		interval: interval,
		br:       newFetcherBreaker(),
		log:      log.New("component", "pendingfilter", "chain", c.String()),
	}
}

// Run installs the RPC filter and blocks polling it until ctx is cancelled.
func (f *PendingFilter) Run(ctx context.Context) error {
	var filterID string
	err := f.br.Do(ctx, func() error {
		return f.client.CallContext(ctx, &filterID, "eth_newPendingTransactionFilter")
	})
	if err != nil {
		return fmt.Errorf("ingest: eth_newPendingTransactionFilter: %w", err)
	}

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := f.poll(ctx, filterID); err != nil {
				f.log.Warn("pending filter poll failed", "err", err)
			}
		}
	}
}

func (f *PendingFilter) poll(ctx context.Context, filterID string) error {
	var hashes []common.Hash
	err := f.br.Do(ctx, func() error {
		return f.client.CallContext(ctx, &hashes, "eth_getFilterChanges", filterID)
	})
	if err != nil {
		return fmt.Errorf("ingest: eth_getFilterChanges: %w", err)
	}

	now := time.Now()
	for _, h := range hashes {
		var raw json.RawMessage
		if err := f.client.CallContext(ctx, &raw, "eth_getTransactionByHash", h); err != nil {
			f.log.Warn("fetch pending tx failed", "hash", h, "err", err)
			continue
		}
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		item, err := normalizePendingTx(f.chain, raw, now)
		if err != nil {
			f.log.Warn("normalize pending tx failed", "hash", h, "err", err)
			continue
		}
		if err := f.pipeline.Emit(ctx, item); err != nil {
			return err
		}
	}
	return nil
}
