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
	"golang.org/x/sync/errgroup"

	"github.com/sieve-xyz/sieve/chain"
	"github.com/sieve-xyz/sieve/types"
)

// DefaultWSSubscriptions are the eth_subscribe channels SubscriptionWS opens
// when a ChainConfig carries a ws(url).
var DefaultWSSubscriptions = []string{"newHeads", "logs", "newPendingTransactions"}

// SubscriptionWS pushes normalized items from a live WS connection, one
// goroutine per eth_subscribe channel, using the bounded fan-out pattern
// of errgroup.WithContext.
type SubscriptionWS struct {
	chain    chain.Tag
	client   *rpc.Client
	pipeline *Pipeline
	kinds    []string
	log      log.Logger
}

// NewSubscriptionWS builds a SubscriptionWS. kinds defaults to
// DefaultWSSubscriptions when empty.
func NewSubscriptionWS(c chain.Tag, client *rpc.Client, pipeline *Pipeline, kinds ...string) *SubscriptionWS {
	if len(kinds) == 0 {
		kinds = DefaultWSSubscriptions
	}
	return &SubscriptionWS{
		chain:    c,
		client:   client,
		pipeline: pipeline,
		kinds:    kinds,
		log:      log.New("component", "subscriptionws", "chain", c.String()),
	}
}

// Run opens every configured subscription concurrently and returns once any
// one of them fails or ctx is cancelled.
func (s *SubscriptionWS) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, kind := range s.kinds {
		kind := kind
		g.Go(func() error { return s.subscribe(ctx, kind) })
	}
	return g.Wait()
}

func (s *SubscriptionWS) subscribe(ctx context.Context, kind string) error {
	ch := make(chan json.RawMessage, 256)
	sub, err := s.client.EthSubscribe(ctx, ch, kind)
	if err != nil {
		return fmt.Errorf("ingest: eth_subscribe(%s): %w", kind, err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			if err != nil {
				return fmt.Errorf("ingest: subscription(%s): %w", kind, err)
			}
			return nil
		case raw := <-ch:
			item, err := s.normalize(ctx, kind, raw)
			if err != nil {
				s.log.Warn("normalize subscription payload failed", "kind", kind, "err", err)
				continue
			}
			if item == nil {
				continue
			}
			if err := s.pipeline.Emit(ctx, item); err != nil {
				return err
			}
		}
	}
}

// normalize decodes one push payload. newPendingTransactions delivers a
// bare hash, requiring a follow-up RPC call for the full transaction; the
// other two channels deliver the payload directly.
func (s *SubscriptionWS) normalize(ctx context.Context, kind string, raw json.RawMessage) (*types.Item, error) {
	switch kind {
	case "newHeads":
		return normalizeHeader(s.chain, raw)
	case "logs":
		return normalizeLog(s.chain, raw)
	case "newPendingTransactions":
		var hash common.Hash
		if err := json.Unmarshal(raw, &hash); err != nil {
			return nil, fmt.Errorf("decode pending tx hash: %w", err)
		}
		var txRaw json.RawMessage
		if err := s.client.CallContext(ctx, &txRaw, "eth_getTransactionByHash", hash); err != nil {
			return nil, fmt.Errorf("fetch pending tx %s: %w", hash, err)
		}
		if len(txRaw) == 0 || string(txRaw) == "null" {
			return nil, nil
		}
		return normalizePendingTx(s.chain, txRaw, time.Now())
	default:
		return nil, fmt.Errorf("unsupported subscription kind %q", kind)
	}
}
