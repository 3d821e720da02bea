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
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/goware/breaker"

	"github.com/sieve-xyz/sieve/errs"
	"github.com/sieve-xyz/sieve/ingest"
	"github.com/sieve-xyz/sieve/types"
)

// fetcherMode records which concrete source a Supervisor chose to satisfy
// demand for a given item kind, so stopFetcher always tears down whatever
// startFetcher actually started even if cfg/Degraded flip in between.
type fetcherMode int

const (
	modeNone fetcherMode = iota
	modeWS
	modeRPC
)

const (
	dialBreakerBase   = 500 * time.Millisecond
	dialBreakerFactor = 2
	// dialBreakerMaxRetries is set high rather than relying on any
	// unbounded-retry sentinel: the supervisor's own restart budget
	// (ChainConfig.MaxRestarts/MaxRestartWindow) is what actually governs
	// giving up on a chain.
	dialBreakerMaxRetries = 100
)

// Supervisor owns one chain's RPC/WS connections, its ingestion pipeline,
// and its demand-driven fetcher lifecycle. Header and pending-tx demand
// prefer the shared WS subscription when available
// and fall back to polling; log demand has no RPC fallback, matching
// Ethereum JSON-RPC's lack of a polling equivalent for eth_subscribe(logs).
type Supervisor struct {
	cfg      ChainConfig
	pipeline *ingest.Pipeline
	receipts *ingest.ReceiptFetcher
	demand   *Demand
	log      log.Logger
	dialBr   *breaker.Breaker

	mu    sync.Mutex
	state State

	client   *rpc.Client
	wsClient *rpc.Client

	fetchMu    sync.Mutex
	activeMode map[types.Kind]fetcherMode
	rpcCancel  map[types.Kind]context.CancelFunc
	wsCancel   context.CancelFunc
	wsRefs     int

	restartMu sync.Mutex
	restarts  []time.Time
}

// NewSupervisor builds a Supervisor for cfg. No network connection is
// opened until Run is called.
func NewSupervisor(cfg ChainConfig, lag ingest.LagRecorder) (*Supervisor, error) {
	pipeline := ingest.NewPipeline(cfg.Chain, ingest.Config{
		DedupWindow: cfg.DedupWindow,
		BufferSize:  cfg.BufferSize,
	}, lag)

	s := &Supervisor{
		cfg:        cfg,
		pipeline:   pipeline,
		log:        log.New("component", "supervisor", "chain", cfg.Chain.String()),
		dialBr:     breaker.New(slog.Default(), dialBreakerBase, dialBreakerFactor, dialBreakerMaxRetries),
		activeMode: make(map[types.Kind]fetcherMode),
		rpcCancel:  make(map[types.Kind]context.CancelFunc),
	}
	s.demand = NewDemand(cfg.QuiescenceTimeout, s.startFetcher, s.stopFetcher)
	return s, nil
}

// Pipeline returns the outbound item stream for this chain.
func (s *Supervisor) Pipeline() *ingest.Pipeline { return s.pipeline }

// Demand returns the demand tracker the dispatcher increments/decrements
// as subscriptions come and go.
func (s *Supervisor) Demand() *Demand { return s.demand }

// Receipts returns the on-demand receipt fetcher for this chain, nil until
// Run has dialed successfully.
func (s *Supervisor) Receipts() *ingest.ReceiptFetcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receipts
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State reports the supervisor's current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run dials the chain's RPC (and WS, if configured), starts the stall
// watchdog, and blocks until ctx is cancelled, the restart budget is
// exhausted, or a dial fails after the dial breaker's retries. It does not
// itself start any fetcher; fetchers are started
// lazily by Demand.Inc as subscriptions register interest.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.pipeline.Close()

	for {
		if err := s.dial(ctx); err != nil {
			return err
		}
		s.setState(Live)

		runCtx, cancel := context.WithCancel(ctx)
		stallCh := make(chan struct{}, 1)
		go s.watchStall(runCtx, stallCh)

		select {
		case <-ctx.Done():
			cancel()
			s.setState(Closed)
			return ctx.Err()
		case <-stallCh:
			cancel()
			if !s.recordRestart() {
				s.setState(Closed)
				return &errs.TransportError{Chain: s.cfg.Chain.String(), Err: context.DeadlineExceeded}
			}
			s.setState(Reconnecting)
			continue
		}
	}
}

// dial opens the HTTP RPC client (and WS client, if configured) under the
// dial breaker, then constructs the receipt fetcher bound to the fresh
// client.
func (s *Supervisor) dial(ctx context.Context) error {
	s.setState(Connecting)
	var client, wsClient *rpc.Client
	err := s.dialBr.Do(ctx, func() error {
		c, err := rpc.DialContext(ctx, s.cfg.RPC)
		if err != nil {
			return err
		}
		client = c
		if s.cfg.WS != "" {
			wc, err := rpc.DialContext(ctx, s.cfg.WS)
			if err != nil {
				client.Close()
				return err
			}
			wsClient = wc
		}
		return nil
	})
	if err != nil {
		return &errs.TransportError{Chain: s.cfg.Chain.String(), Err: err}
	}

	s.mu.Lock()
	if s.client != nil {
		s.client.Close()
	}
	if s.wsClient != nil {
		s.wsClient.Close()
	}
	s.client = client
	s.wsClient = wsClient
	s.receipts = ingest.NewReceiptFetcher(s.cfg.Chain, client, s.cfg.ReceiptQueueSize)
	s.mu.Unlock()

	go s.receipts.Run(ctx)

	if s.cfg.Gossipsub != nil {
		gossip := ingest.NewGossipIngress(s.cfg.Chain, s.cfg.Gossipsub, s.pipeline)
		go func() {
			if err := gossip.Run(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn("gossip ingress exited", "err", err)
			}
		}()
	}
	return nil
}

// watchStall polls pipeline head progress; if no new head has arrived
// within cfg.StallTimeout of the last progress (or of Live beginning), it
// flags Degraded, and once 3*cfg.StallTimeout has passed without progress it
// signals stallCh so Run can reconnect.
func (s *Supervisor) watchStall(ctx context.Context, stallCh chan<- struct{}) {
	ticker := time.NewTicker(s.cfg.StallTimeout / 3)
	defer ticker.Stop()

	var lastNumber uint64
	lastProgress := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			number, have := s.pipeline.HeadProgress()
			if have && number != lastNumber {
				lastNumber = number
				lastProgress = time.Now()
				if s.State() == Degraded {
					s.setState(Live)
				}
				continue
			}
			if time.Since(lastProgress) > s.cfg.StallTimeout {
				if s.State() != Degraded {
					s.setState(Degraded)
					s.log.Warn("head progress stalled, marking degraded", "timeout", s.cfg.StallTimeout)
				}
				if time.Since(lastProgress) > 3*s.cfg.StallTimeout {
					select {
					case stallCh <- struct{}{}:
					default:
					}
					return
				}
			}
		}
	}
}

func (s *Supervisor) recordRestart() bool {
	s.restartMu.Lock()
	defer s.restartMu.Unlock()

	now := time.Now()
	cutoff := now.Add(-s.cfg.MaxRestartWindow)
	kept := s.restarts[:0]
	for _, t := range s.restarts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	s.restarts = kept
	return len(s.restarts) <= s.cfg.MaxRestarts
}

// chooseMode picks the fetcher source for kind given the current state.
// Logs have no RPC fallback: when WS is unavailable or degraded, log
// demand simply goes unserved (a documented limitation).
func (s *Supervisor) chooseMode(kind types.Kind) fetcherMode {
	degraded := s.State() == Degraded
	hasWS := s.cfg.WS != "" && s.wsClientReady()

	switch kind {
	case types.KindLog:
		if hasWS {
			return modeWS
		}
		return modeNone
	case types.KindHeader, types.KindPendingTx:
		if hasWS && !degraded {
			return modeWS
		}
		return modeRPC
	default:
		return modeNone
	}
}

func (s *Supervisor) wsClientReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wsClient != nil
}

// startFetcher is called by Demand on a 0→1 transition for kind.
func (s *Supervisor) startFetcher(kind types.Kind) {
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	mode := s.chooseMode(kind)
	s.activeMode[kind] = mode

	switch mode {
	case modeWS:
		s.acquireWSLocked()
	case modeRPC:
		ctx, cancel := context.WithCancel(context.Background())
		s.rpcCancel[kind] = cancel
		switch kind {
		case types.KindHeader:
			poller := ingest.NewHeadPoller(s.cfg.Chain, s.rpcClient(), s.pipeline, s.cfg.HeadPollInterval)
			go s.runFetcher(ctx, "head poller", poller.Run)
		case types.KindPendingTx:
			filter := ingest.NewPendingFilter(s.cfg.Chain, s.rpcClient(), s.pipeline, s.cfg.PendingPollInterval)
			go s.runFetcher(ctx, "pending filter", filter.Run)
		}
	case modeNone:
		s.log.Warn("no fetcher available for kind, demand unserved", "kind", kind)
	}
}

// stopFetcher is called by Demand after quiescence elapses with kind's
// count still at zero. It tears down whatever mode startFetcher actually
// chose, never re-deriving mode from current (possibly changed) state.
func (s *Supervisor) stopFetcher(kind types.Kind) {
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	mode := s.activeMode[kind]
	delete(s.activeMode, kind)

	switch mode {
	case modeWS:
		s.releaseWSLocked()
	case modeRPC:
		if cancel, ok := s.rpcCancel[kind]; ok {
			cancel()
			delete(s.rpcCancel, kind)
		}
	}
}

func (s *Supervisor) rpcClient() *rpc.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// acquireWSLocked increments the shared WS subscription's refcount,
// starting it on 0→1. Must be called with fetchMu held.
func (s *Supervisor) acquireWSLocked() {
	s.wsRefs++
	if s.wsRefs != 1 {
		return
	}
	s.mu.Lock()
	wsClient := s.wsClient
	s.mu.Unlock()
	if wsClient == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.wsCancel = cancel
	sub := ingest.NewSubscriptionWS(s.cfg.Chain, wsClient, s.pipeline, ingest.DefaultWSSubscriptions...)
	go s.runFetcher(ctx, "ws subscription", sub.Run)
}

// releaseWSLocked decrements the shared WS subscription's refcount,
// stopping it on 1→0. Must be called with fetchMu held.
func (s *Supervisor) releaseWSLocked() {
	if s.wsRefs == 0 {
		return
	}
	s.wsRefs--
	if s.wsRefs != 0 {
		return
	}
	if s.wsCancel != nil {
		s.wsCancel()
		s.wsCancel = nil
	}
}

func (s *Supervisor) runFetcher(ctx context.Context, name string, run func(context.Context) error) {
	if err := run(ctx); err != nil && ctx.Err() == nil {
		s.log.Warn("fetcher exited", "fetcher", name, "err", err)
	}
}
