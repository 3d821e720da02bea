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

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/sieve-xyz/sieve/chain"
	"github.com/sieve-xyz/sieve/errs"
	"github.com/sieve-xyz/sieve/schema"
)

func u256(n uint64) schema.Value {
	return schema.Value{Kind: schema.KindU256, U256: uint256.NewInt(n)}
}

func TestBuilderSimpleAnd(t *testing.T) {
	f, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		s.Gt("value", u256(1000))
		s.Lt("gas_price", u256(50000))
	}).Build()
	require.NoError(t, err)
	require.NotNil(t, f)
	require.Equal(t, chain.Ethereum, f.Chain)
	and, ok := f.Root.Children[0].(*And)
	require.False(t, ok)
	_ = and
	require.Len(t, f.Root.Children, 2)
}

func TestBuilderEmptyScopeIsBuildError(t *testing.T) {
	_, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {}).Build()
	require.Error(t, err)
	var fbe *errs.FilterBuildError
	require.ErrorAs(t, err, &fbe)
}

func TestBuilderEmptyOrIsBuildError(t *testing.T) {
	_, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		s.Or(func(*Scope) {})
	}).Build()
	require.Error(t, err)
}

func TestBuilderBetweenLoGreaterThanHiIsBuildError(t *testing.T) {
	_, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		s.Between("value", u256(100), u256(10))
	}).Build()
	require.Error(t, err)
}

func TestBuilderBetweenInclusiveOK(t *testing.T) {
	_, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		s.Between("value", u256(10), u256(10))
	}).Build()
	require.NoError(t, err)
}

func TestBuilderFieldScopeMismatchIsBuildError(t *testing.T) {
	// "address" is an event-scope field, not legal in a transaction scope.
	_, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		s.Eq("address", u256(1))
	}).Build()
	require.Error(t, err)
}

func TestBuilderOperandTypeMismatchIsBuildError(t *testing.T) {
	// "gt" only makes sense against a numeric field; "from" is an address.
	_, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		s.Gt("from", u256(1))
	}).Build()
	require.Error(t, err)
}

func TestBuilderOrInsideAndFormsSingleChild(t *testing.T) {
	f, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		s.Eq("nonce", schema.Value{Kind: schema.KindU64, U64: 5})
		s.Or(func(s *Scope) {
			s.Gt("value", u256(1000))
			s.Lt("gas_price", u256(50000))
		})
	}).Build()
	require.NoError(t, err)
	require.Len(t, f.Root.Children, 2)
	_, ok := f.Root.Children[1].(*Or)
	require.True(t, ok)
}

func TestBuilderNotWithMultipleChildrenImplicitlyAnds(t *testing.T) {
	f, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		s.Not(func(s *Scope) {
			s.Gt("value", u256(1))
			s.Lt("value", u256(100))
		})
	}).Build()
	require.NoError(t, err)
	not, ok := f.Root.Children[0].(*Not)
	require.True(t, ok)
	_, ok = not.Child.(*And)
	require.True(t, ok)
}

func TestBuilderXor(t *testing.T) {
	f, err := NewBuilder(chain.Ethereum).Block(func(s *Scope) {
		s.Xor(func(s *Scope) {
			s.Gt("number", schema.Value{Kind: schema.KindU64, U64: 1_000_000})
			s.Lt("gas_used", schema.Value{Kind: schema.KindU64, U64: 100_000})
		})
	}).Build()
	require.NoError(t, err)
	_, ok := f.Root.Children[0].(*Xor)
	require.True(t, ok)
}

func TestBuilderNoRootScopeIsBuildError(t *testing.T) {
	_, err := NewBuilder(chain.Ethereum).Build()
	require.Error(t, err)
}

func TestBuilderSecondRootScopeIsBuildError(t *testing.T) {
	b := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) { s.Eq("nonce", schema.Value{Kind: schema.KindU64, U64: 1}) })
	b = b.Block(func(s *Scope) { s.Gt("number", schema.Value{Kind: schema.KindU64, U64: 1}) })
	_, err := b.Build()
	require.Error(t, err)
}

func TestFilterJSONRoundTrip(t *testing.T) {
	f, err := NewBuilder(chain.Optimism).Event(func(s *Scope) {
		s.Eq("address", schema.Value{Kind: schema.KindAddress})
		s.Or(func(s *Scope) {
			s.StartsWith("data", schema.Value{Kind: schema.KindBytes, Bytes: []byte{0xab}})
		})
	}).Build()
	require.NoError(t, err)

	data, err := f.MarshalJSON()
	require.NoError(t, err)

	var roundTripped Filter
	require.NoError(t, roundTripped.UnmarshalJSON(data))
	require.Equal(t, f.Chain, roundTripped.Chain)

	data2, err := roundTripped.MarshalJSON()
	require.NoError(t, err)
	require.JSONEq(t, string(data), string(data2))
}
