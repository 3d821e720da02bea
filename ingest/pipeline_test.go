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
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/sieve-xyz/sieve/chain"
	"github.com/sieve-xyz/sieve/types"
)

func headerAt(c chain.Tag, number uint64, hash, parent string) *types.Item {
	it := types.NewItem(c, types.KindHeader)
	it.Header = &types.Header{
		Chain:      c,
		Number:     number,
		Hash:       common.HexToHash(hash),
		ParentHash: common.HexToHash(parent),
	}
	return it
}

func TestPipelineEmitsInOrder(t *testing.T) {
	p := NewPipeline(chain.Ethereum, Config{}, nil)
	ctx := context.Background()

	h1 := headerAt(chain.Ethereum, 1, "0x01", "0x00")
	require.NoError(t, p.Emit(ctx, h1))

	got := <-p.Out()
	require.Equal(t, types.KindHeader, got.Kind)
	require.Equal(t, uint64(1), got.Header.Number)
}

func TestPipelineDropsDuplicateHeaderSilently(t *testing.T) {
	p := NewPipeline(chain.Ethereum, Config{BufferSize: 4}, nil)
	ctx := context.Background()

	h1 := headerAt(chain.Ethereum, 1, "0x01", "0x00")
	require.NoError(t, p.Emit(ctx, h1))
	<-p.Out()

	dup := headerAt(chain.Ethereum, 1, "0x01", "0x00")
	require.NoError(t, p.Emit(ctx, dup))

	select {
	case <-p.Out():
		t.Fatal("duplicate header should not have been emitted")
	default:
	}
}

func TestPipelineConfirmedTxDedupIsDistinctFromPendingTx(t *testing.T) {
	p := NewPipeline(chain.Ethereum, Config{BufferSize: 8}, nil)
	ctx := context.Background()

	pending := types.NewItem(chain.Ethereum, types.KindPendingTx)
	pending.PendingTx = &types.PendingTx{Fields: types.TxFields{Hash: common.HexToHash("0xaa")}}
	require.NoError(t, p.Emit(ctx, pending))
	<-p.Out()

	confirmed := types.NewItem(chain.Ethereum, types.KindConfirmedTx)
	confirmed.ConfirmedTx = &types.ConfirmedTx{
		BlockHash: common.HexToHash("0xbb"),
		Index:     0,
		Fields:    types.TxFields{Hash: common.HexToHash("0xaa")},
	}
	// Same tx hash, but a different kind's dedup ring: must still be emitted.
	require.NoError(t, p.Emit(ctx, confirmed))
	got := <-p.Out()
	require.Equal(t, types.KindConfirmedTx, got.Kind)
}

func TestPipelineSynthesizesReorgMarkerOnSupersedingHeader(t *testing.T) {
	p := NewPipeline(chain.Ethereum, Config{BufferSize: 8}, nil)
	ctx := context.Background()

	require.NoError(t, p.Emit(ctx, headerAt(chain.Ethereum, 10, "0xaaaa", "0x0000")))
	<-p.Out() // the original header

	// A different hash at the same height is a reorg: a marker should
	// precede the new header on the outbound stream.
	require.NoError(t, p.Emit(ctx, headerAt(chain.Ethereum, 10, "0xbbbb", "0x0000")))

	marker := <-p.Out()
	require.Equal(t, types.KindReorgMarker, marker.Kind)
	require.Equal(t, uint64(10), marker.Reorg.FromNumber)
	require.Equal(t, uint64(10), marker.Reorg.ToNumber)

	replacement := <-p.Out()
	require.Equal(t, types.KindHeader, replacement.Kind)
	require.Equal(t, common.HexToHash("0xbbbb"), replacement.Header.Hash)
}

func TestPipelineNoReorgOnMonotonicAdvance(t *testing.T) {
	p := NewPipeline(chain.Ethereum, Config{BufferSize: 8}, nil)
	ctx := context.Background()

	require.NoError(t, p.Emit(ctx, headerAt(chain.Ethereum, 10, "0xaaaa", "0x0000")))
	<-p.Out()

	require.NoError(t, p.Emit(ctx, headerAt(chain.Ethereum, 11, "0xcccc", "0xaaaa")))
	got := <-p.Out()
	require.Equal(t, types.KindHeader, got.Kind)
	require.Equal(t, uint64(11), got.Header.Number)
}

func TestPipelineHeadProgress(t *testing.T) {
	p := NewPipeline(chain.Ethereum, Config{BufferSize: 8}, nil)
	ctx := context.Background()

	_, ok := p.HeadProgress()
	require.False(t, ok)

	require.NoError(t, p.Emit(ctx, headerAt(chain.Ethereum, 5, "0x05", "0x04")))
	<-p.Out()

	n, ok := p.HeadProgress()
	require.True(t, ok)
	require.Equal(t, uint64(5), n)
}
