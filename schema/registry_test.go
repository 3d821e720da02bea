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

package schema

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/sieve-xyz/sieve/chain"
	"github.com/sieve-xyz/sieve/types"
)

func TestResolveKnownTransactionField(t *testing.T) {
	r := NewRegistry(nil)
	desc, ok := r.Resolve(ScopeTransaction, "value")
	require.True(t, ok)
	require.Equal(t, KindU256, desc.Kind)
	require.Equal(t, Raw, desc.Class)
}

func TestResolveUnknownFieldInKnownScope(t *testing.T) {
	r := NewRegistry(nil)
	_, ok := r.Resolve(ScopeTransaction, "does_not_exist")
	require.False(t, ok)
}

func TestResolveFieldIllegalInOtherScope(t *testing.T) {
	r := NewRegistry(nil)
	// "address" only exists in the event scope.
	_, ok := r.Resolve(ScopeTransaction, "address")
	require.False(t, ok)
}

func TestResolveGasPriceIsDerivedCheap(t *testing.T) {
	r := NewRegistry(nil)
	desc, ok := r.Resolve(ScopeTransaction, "gas_price")
	require.True(t, ok)
	require.Equal(t, DerivedCheap, desc.Class)
}

func TestResolveGasPriceFallsBackToMaxFeeForEIP1559(t *testing.T) {
	r := NewRegistry(nil)
	desc, ok := r.Resolve(ScopeTransaction, "gas_price")
	require.True(t, ok)

	it := types.NewItem(chain.Ethereum, types.KindConfirmedTx)
	it.ConfirmedTx = &types.ConfirmedTx{
		Fields: types.TxFields{
			GasPrice: nil,
			MaxFee:   uint256.NewInt(42),
		},
	}
	v, err := desc.Fn(it, nil)
	require.NoError(t, err)
	require.Equal(t, KindU256, v.Kind)
	require.Equal(t, uint64(42), v.U256.Uint64())
}

func TestResolvePendingOnlyFieldAbsentOnConfirmed(t *testing.T) {
	r := NewRegistry(nil)
	desc, ok := r.Resolve(ScopePool, "first_seen_ts")
	require.True(t, ok)

	it := types.NewItem(chain.Ethereum, types.KindConfirmedTx)
	v, err := desc.Fn(it, nil)
	require.NoError(t, err)
	require.True(t, v.IsAbsent())
}

func TestResolveTopicsIndexed(t *testing.T) {
	r := NewRegistry(nil)
	desc, ok := r.Resolve(ScopeEvent, "topics[1]")
	require.True(t, ok)
	require.Equal(t, KindBytes, desc.Kind)

	it := types.NewItem(chain.Ethereum, types.KindLog)
	it.Log = &types.Log{
		Topics: []common.Hash{common.HexToHash("0xaa"), common.HexToHash("0xbb")},
	}
	v, err := desc.Fn(it, nil)
	require.NoError(t, err)
	require.False(t, v.IsAbsent())

	_, okOut := r.Resolve(ScopeEvent, "topics[9]")
	require.True(t, okOut) // legal path; resolves absent at eval time for out-of-range
	descOut, _ := r.Resolve(ScopeEvent, "topics[9]")
	vOut, err := descOut.Fn(it, nil)
	require.NoError(t, err)
	require.True(t, vOut.IsAbsent())
}

func TestResolveReceiptSubfield(t *testing.T) {
	r := NewRegistry(nil)
	desc, ok := r.Resolve(ScopeTransaction, "receipt.status")
	require.True(t, ok)
	require.Equal(t, KindU64, desc.Kind)

	it := types.NewItem(chain.Ethereum, types.KindConfirmedTx)
	it.ConfirmedTx = &types.ConfirmedTx{Receipt: &types.Receipt{Status: 1}}
	v, err := desc.Fn(it, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1), v.U64)
}

func TestResolveDecodedFieldAbsentWithoutDecoder(t *testing.T) {
	r := NewRegistry(nil)
	desc, ok := r.Resolve(ScopeTransaction, "input.method")
	require.True(t, ok)
	require.Equal(t, Decoded, desc.Class)

	it := types.NewItem(chain.Ethereum, types.KindConfirmedTx)
	it.ConfirmedTx = &types.ConfirmedTx{Fields: types.TxFields{Input: []byte{0x01, 0x02, 0x03, 0x04}}}
	v, err := desc.Fn(it, nil)
	require.NoError(t, err)
	require.True(t, v.IsAbsent())
}

func TestResolveDecodedMethodUsesDecoder(t *testing.T) {
	dec := decoderFunc(func(sig string, data []byte) (map[string]any, error) {
		return map[string]any{"method": "transfer"}, nil
	})
	r := NewRegistry(dec)
	desc, ok := r.Resolve(ScopeTransaction, "input.method")
	require.True(t, ok)

	it := types.NewItem(chain.Ethereum, types.KindConfirmedTx)
	it.ConfirmedTx = &types.ConfirmedTx{Fields: types.TxFields{Input: []byte{0xa9, 0x05, 0x9c, 0xbb, 0x00}}}
	v, err := desc.Fn(it, nil)
	require.NoError(t, err)
	require.Equal(t, KindString, v.Kind)
	require.Equal(t, "transfer", v.Str)
}

func TestResolveChainSpecificAlwaysLegal(t *testing.T) {
	r := NewRegistry(nil)
	_, ok := r.Resolve(ScopeChainSpecific, "anythingGoesHere")
	require.True(t, ok)
}

func TestDescribeEnumeratesScope(t *testing.T) {
	r := NewRegistry(nil)
	fields := r.Describe(ScopeBlock)
	require.NotEmpty(t, fields)
	names := map[string]bool{}
	for _, f := range fields {
		names[f.Path] = true
	}
	require.True(t, names["number"])
	require.True(t, names["timestamp"])
}

type decoderFunc func(signature string, data []byte) (map[string]any, error)

func (f decoderFunc) Decode(signature string, data []byte) (map[string]any, error) {
	return f(signature, data)
}
