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
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/sieve-xyz/sieve/chain"
	"github.com/sieve-xyz/sieve/filter"
	"github.com/sieve-xyz/sieve/ingest"
	"github.com/sieve-xyz/sieve/types"
)

func logItem(addr string) *types.Item {
	it := types.NewItem(chain.Ethereum, types.KindLog)
	it.Log = &types.Log{Address: common.HexToAddress(addr), TxHash: common.HexToHash(addr)}
	return it
}

func TestWatchWithinFiresMatchWhenAllFiltersHitInWindow(t *testing.T) {
	r := NewRegistry(nil, 0)
	defer r.Close()

	f1, err := filter.NewBuilder(chain.Ethereum).Event(func(s *filter.Scope) {
		s.Eq("address", addrVal("0x01"))
	}).Build()
	require.NoError(t, err)
	f2, err := filter.NewBuilder(chain.Ethereum).Event(func(s *filter.Scope) {
		s.Eq("address", addrVal("0x02"))
	}).Build()
	require.NoError(t, err)

	sub, err := r.WatchWithin(2*time.Second, []*filter.Filter{f1, f2}, WatchOption{})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	p := ingest.NewPipeline(chain.Ethereum, ingest.Config{BufferSize: 4}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Dispatch(ctx, p)

	require.NoError(t, p.Emit(ctx, logItem("0x01")))
	require.NoError(t, p.Emit(ctx, logItem("0x02")))

	select {
	case ev := <-sub.Events():
		require.Equal(t, EventMatch, ev.Kind)
		require.Len(t, ev.Matched, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a correlated match")
	}
}

func TestWatchWithinFiresTimeoutWhenOnlySomeFiltersHit(t *testing.T) {
	r := NewRegistry(nil, 0)
	defer r.Close()

	f1, err := filter.NewBuilder(chain.Ethereum).Event(func(s *filter.Scope) {
		s.Eq("address", addrVal("0x01"))
	}).Build()
	require.NoError(t, err)
	f2, err := filter.NewBuilder(chain.Ethereum).Event(func(s *filter.Scope) {
		s.Eq("address", addrVal("0x02"))
	}).Build()
	require.NoError(t, err)

	sub, err := r.WatchWithin(50*time.Millisecond, []*filter.Filter{f1, f2}, WatchOption{})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	p := ingest.NewPipeline(chain.Ethereum, ingest.Config{BufferSize: 4}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Dispatch(ctx, p)

	require.NoError(t, p.Emit(ctx, logItem("0x01")))

	select {
	case ev := <-sub.Events():
		require.Equal(t, EventTimeout, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected a timeout event")
	}
}

func TestWatchWithinRequiresPositiveWindow(t *testing.T) {
	r := NewRegistry(nil, 0)
	defer r.Close()

	f, err := filter.NewBuilder(chain.Ethereum).Event(func(s *filter.Scope) {
		s.Eq("address", addrVal("0x01"))
	}).Build()
	require.NoError(t, err)

	_, err = r.WatchWithin(0, []*filter.Filter{f}, WatchOption{})
	require.Error(t, err)
}

func TestWatchWithinAnyPermutationMatchesOutOfOrderSlots(t *testing.T) {
	r := NewRegistry(nil, 0)
	defer r.Close()

	f1, err := filter.NewBuilder(chain.Ethereum).Event(func(s *filter.Scope) {
		s.Eq("address", addrVal("0x01"))
	}).Build()
	require.NoError(t, err)
	f2, err := filter.NewBuilder(chain.Ethereum).Event(func(s *filter.Scope) {
		s.Eq("address", addrVal("0x01")) // both filters match the same address
	}).Build()
	require.NoError(t, err)

	sub, err := r.WatchWithin(2*time.Second, []*filter.Filter{f1, f2}, WatchOption{AnyPermutation: true})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	p := ingest.NewPipeline(chain.Ethereum, ingest.Config{BufferSize: 4}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Dispatch(ctx, p)

	// Both filters match on every log with this address; two deliveries
	// (one per filter index shard entry) are enough to satisfy correlation.
	require.NoError(t, p.Emit(ctx, logItem("0x01")))

	select {
	case ev := <-sub.Events():
		require.Equal(t, EventMatch, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a correlated match")
	}
}
