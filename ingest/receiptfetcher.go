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

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/goware/breaker"

	"github.com/sieve-xyz/sieve/chain"
	"github.com/sieve-xyz/sieve/types"
)

// receiptRequest is one on-demand eth_getTransactionReceipt ask, carried on
// ReceiptFetcher's own channel so it never queues behind the bulk
// head/pending flow.
type receiptRequest struct {
	hash  common.Hash
	reply chan receiptResult
}

type receiptResult struct {
	receipt *types.Receipt
	err     error
}

// ReceiptFetcher serves on-demand receipt fetches for filters that
// reference a receipt.* field on a ConfirmedTx whose Receipt is still nil.
// It is the dispatcher's (package subscription) demand path back into
// ingestion, kept on a separate bounded, priority channel precisely so a
// receipt miss during evaluation can never deadlock behind ordinary
// ingestion traffic.
type ReceiptFetcher struct {
	chain    chain.Tag
	client   *rpc.Client
	br       *breaker.Breaker
	log      log.Logger
	requests chan receiptRequest
}

// NewReceiptFetcher builds a ReceiptFetcher. queueSize defaults to 256.
func NewReceiptFetcher(c chain.Tag, client *rpc.Client, queueSize int) *ReceiptFetcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &ReceiptFetcher{
		chain:    c,
		client:   client,
		br:       newFetcherBreaker(),
		log:      log.New("component", "receiptfetcher", "chain", c.String()),
		requests: make(chan receiptRequest, queueSize),
	}
}

// Fetch blocks until the receipt for hash is fetched or ctx is done. Safe
// for concurrent use by many dispatcher goroutines.
func (f *ReceiptFetcher) Fetch(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	reply := make(chan receiptResult, 1)
	select {
	case f.requests <- receiptRequest{hash: hash, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-reply:
		return res.receipt, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run drains the request queue until ctx is cancelled.
func (f *ReceiptFetcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-f.requests:
			receipt, err := f.fetch(ctx, req.hash)
			req.reply <- receiptResult{receipt: receipt, err: err}
		}
	}
}

func (f *ReceiptFetcher) fetch(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var raw json.RawMessage
	err := f.br.Do(ctx, func() error {
		return f.client.CallContext(ctx, &raw, "eth_getTransactionReceipt", hash)
	})
	if err != nil {
		return nil, fmt.Errorf("ingest: eth_getTransactionReceipt: %w", err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return normalizeReceipt(f.chain, raw)
}
