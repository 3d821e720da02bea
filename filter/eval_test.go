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

package filter

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/sieve-xyz/sieve/chain"
	"github.com/sieve-xyz/sieve/schema"
	"github.com/sieve-xyz/sieve/types"
)

func u64(v uint64) schema.Value { return schema.Value{Kind: schema.KindU64, U64: v} }

func confirmedTxItem(value uint64, nonce uint64) *types.Item {
	it := types.NewItem(chain.Ethereum, types.KindConfirmedTx)
	it.ConfirmedTx = &types.ConfirmedTx{
		Chain:       chain.Ethereum,
		BlockNumber: 100,
		Fields: types.TxFields{
			Hash:  common.HexToHash("0x01"),
			From:  common.HexToAddress("0xaaaa"),
			Value: uint256.NewInt(value),
			Nonce: nonce,
		},
	}
	return it
}

func headerItem(number uint64) *types.Item {
	it := types.NewItem(chain.Ethereum, types.KindHeader)
	it.Header = &types.Header{Chain: chain.Ethereum, Number: number}
	return it
}

func TestEvalSimpleGt(t *testing.T) {
	f, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		s.Gt("value", u256(1000))
	}).Build()
	require.NoError(t, err)

	ev := NewEvaluator(nil, 16)
	ok, err := ev.Eval(f, confirmedTxItem(2000, 0))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ev.Eval(f, confirmedTxItem(500, 0))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEvalChainMismatchNeverMatches(t *testing.T) {
	f, err := NewBuilder(chain.Optimism).Transaction(func(s *Scope) {
		s.Gt("value", u256(0))
	}).Build()
	require.NoError(t, err)

	ev := NewEvaluator(nil, 16)
	ok, err := ev.Eval(f, confirmedTxItem(1, 0))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEvalScopeMismatchNeverMatches(t *testing.T) {
	f, err := NewBuilder(chain.Ethereum).Block(func(s *Scope) {
		s.Gt("number", u64(1))
	}).Build()
	require.NoError(t, err)

	ev := NewEvaluator(nil, 16)
	ok, err := ev.Eval(f, confirmedTxItem(1, 0))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEvalAndCommutativity(t *testing.T) {
	f1, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		s.Gt("value", u256(100))
		s.Lt("nonce", u64(10))
	}).Build()
	require.NoError(t, err)

	f2, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		s.Lt("nonce", u64(10))
		s.Gt("value", u256(100))
	}).Build()
	require.NoError(t, err)

	ev := NewEvaluator(nil, 16)
	item := confirmedTxItem(500, 5)
	ok1, err := ev.Eval(f1, item)
	require.NoError(t, err)
	ok2, err := ev.Eval(f2, item)
	require.NoError(t, err)
	require.Equal(t, ok1, ok2)
	require.True(t, ok1)
}

func TestEvalOrCommutativity(t *testing.T) {
	f1, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		s.Or(func(s *Scope) {
			s.Gt("value", u256(100000))
			s.Lt("nonce", u64(1))
		})
	}).Build()
	require.NoError(t, err)

	f2, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		s.Or(func(s *Scope) {
			s.Lt("nonce", u64(1))
			s.Gt("value", u256(100000))
		})
	}).Build()
	require.NoError(t, err)

	ev := NewEvaluator(nil, 16)
	item := confirmedTxItem(500, 5)
	ok1, err := ev.Eval(f1, item)
	require.NoError(t, err)
	ok2, err := ev.Eval(f2, item)
	require.NoError(t, err)
	require.Equal(t, ok1, ok2)
	require.False(t, ok1)
}

func TestEvalDeMorganAndVsNotOrNot(t *testing.T) {
	// Not(A AND B) == Or(Not(A), Not(B))
	notAnd, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		s.Not(func(s *Scope) {
			s.Gt("value", u256(100))
			s.Lt("nonce", u64(10))
		})
	}).Build()
	require.NoError(t, err)

	orNots, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		s.Or(func(s *Scope) {
			s.Not(func(s *Scope) { s.Gt("value", u256(100)) })
			s.Not(func(s *Scope) { s.Lt("nonce", u64(10)) })
		})
	}).Build()
	require.NoError(t, err)

	ev := NewEvaluator(nil, 16)
	for _, item := range []*types.Item{confirmedTxItem(500, 5), confirmedTxItem(1, 20), confirmedTxItem(1, 1)} {
		a, err := ev.Eval(notAnd, item)
		require.NoError(t, err)
		b, err := ev.Eval(orNots, item)
		require.NoError(t, err)
		require.Equal(t, a, b)
	}
}

func TestEvalXorExactlyOne(t *testing.T) {
	f, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		s.Xor(func(s *Scope) {
			s.Gt("value", u256(100))
			s.Lt("nonce", u64(10))
		})
	}).Build()
	require.NoError(t, err)

	ev := NewEvaluator(nil, 16)

	// value>100 true, nonce<10 true -> both true -> xor false
	ok, err := ev.Eval(f, confirmedTxItem(500, 5))
	require.NoError(t, err)
	require.False(t, ok)

	// value>100 true, nonce<10 false -> exactly one -> xor true
	ok, err = ev.Eval(f, confirmedTxItem(500, 50))
	require.NoError(t, err)
	require.True(t, ok)

	// value>100 false, nonce<10 false -> neither -> xor false
	ok, err = ev.Eval(f, confirmedTxItem(1, 50))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEvalAbsentFieldNeOnlyMatches(t *testing.T) {
	// "to" is absent for a contract-creation tx (To == nil).
	f, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		s.Ne("to", schema.Value{Kind: schema.KindAddress})
	}).Build()
	require.NoError(t, err)

	ev := NewEvaluator(nil, 16)
	item := confirmedTxItem(1, 0)
	item.ConfirmedTx.Fields.To = nil
	ok, err := ev.Eval(f, item)
	require.NoError(t, err)
	require.True(t, ok)

	fEq, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		s.Eq("to", schema.Value{Kind: schema.KindAddress})
	}).Build()
	require.NoError(t, err)
	ok, err = ev.Eval(fEq, item)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEvalBetweenInclusive(t *testing.T) {
	f, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		s.Between("value", u256(100), u256(200))
	}).Build()
	require.NoError(t, err)

	ev := NewEvaluator(nil, 16)
	for _, tc := range []struct {
		value uint64
		want  bool
	}{
		{99, false}, {100, true}, {150, true}, {200, true}, {201, false},
	} {
		ok, err := ev.Eval(f, confirmedTxItem(tc.value, 0))
		require.NoError(t, err)
		require.Equal(t, tc.want, ok, "value=%d", tc.value)
	}
}

func TestEvalChainSpecificAppliesToAnyItemKind(t *testing.T) {
	f, err := NewBuilder(chain.Ethereum).ChainSpecific(func(s *Scope) {
		s.Eq("l1BlockNumber", schema.Value{Kind: schema.KindString, Str: "0x1"})
	}).Build()
	require.NoError(t, err)

	ev := NewEvaluator(nil, 16)
	// A chain-specific filter must be evaluable against any kind without the
	// scope short-circuit rejecting it outright (the dynamic accessor itself
	// may still resolve absent against raw JSON it doesn't recognize).
	_, err = ev.Eval(f, headerItem(1))
	require.NoError(t, err)
	_, err = ev.Eval(f, confirmedTxItem(1, 0))
	require.NoError(t, err)
}
