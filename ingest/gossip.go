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

	"github.com/ethereum/go-ethereum/log"

	"github.com/sieve-xyz/sieve/chain"
	"github.com/sieve-xyz/sieve/types"
)

// GossipMessage is one payload surfaced by a GossipSource, tagged with the
// item kind it represents so GossipIngress can pick the right normalizer.
type GossipMessage struct {
	Kind types.Kind
	Raw  json.RawMessage
}

// GossipSource is a pluggable ingress for items observed via p2p gossip
// instead of RPC. Sieve does not ship a concrete libp2p/gossipsub client:
// GossipIngress only runs when a caller supplies a concrete GossipSource
// via ChainConfig.Gossipsub. Gossip is consumed opportunistically when
// available; it is never required or produced internally.
type GossipSource interface {
	Subscribe(ctx context.Context) (<-chan GossipMessage, error)
}

// GossipIngress adapts a GossipSource into the pipeline the same way
// SubscriptionWS adapts a WS connection.
type GossipIngress struct {
	chain    chain.Tag
	source   GossipSource
	pipeline *Pipeline
	log      log.Logger
}

// NewGossipIngress builds a GossipIngress over source.
func NewGossipIngress(c chain.Tag, source GossipSource, pipeline *Pipeline) *GossipIngress {
	return &GossipIngress{
		chain:    c,
		source:   source,
		pipeline: pipeline,
		log:      log.New("component", "gossipingress", "chain", c.String()),
	}
}

// Run subscribes to source and forwards normalized items until the
// subscription channel closes or ctx is cancelled.
func (g *GossipIngress) Run(ctx context.Context) error {
	ch, err := g.source.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("ingest: gossip subscribe: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			item, err := g.normalize(msg)
			if err != nil {
				g.log.Warn("normalize gossip payload failed", "kind", msg.Kind, "err", err)
				continue
			}
			if item == nil {
				continue
			}
			if err := g.pipeline.Emit(ctx, item); err != nil {
				return err
			}
		}
	}
}

func (g *GossipIngress) normalize(msg GossipMessage) (*types.Item, error) {
	switch msg.Kind {
	case types.KindHeader:
		return normalizeHeader(g.chain, msg.Raw)
	case types.KindLog:
		return normalizeLog(g.chain, msg.Raw)
	case types.KindPendingTx:
		return normalizePendingTx(g.chain, msg.Raw, time.Now())
	case types.KindConfirmedTx:
		return normalizeConfirmedTx(g.chain, msg.Raw)
	default:
		return nil, fmt.Errorf("unsupported gossip kind %v", msg.Kind)
	}
}
