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

	"github.com/stretchr/testify/require"

	"github.com/sieve-xyz/sieve/chain"
)

func TestToDNFSimpleAnd(t *testing.T) {
	f, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		s.Gt("value", u256(1))
		s.Lt("nonce", u64(10))
	}).Build()
	require.NoError(t, err)

	conjs, ok := ToDNF(f.Root, 64)
	require.True(t, ok)
	require.Len(t, conjs, 1)
	require.Len(t, conjs[0], 2)
}

func TestToDNFOrProducesMultipleConjuncts(t *testing.T) {
	f, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		s.Or(func(s *Scope) {
			s.Gt("value", u256(1))
			s.Lt("nonce", u64(10))
		})
	}).Build()
	require.NoError(t, err)

	conjs, ok := ToDNF(f.Root, 64)
	require.True(t, ok)
	require.Len(t, conjs, 2)
}

func TestToDNFAndOfOrsCrossProduct(t *testing.T) {
	f, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		s.Or(func(s *Scope) {
			s.Gt("value", u256(1))
			s.Lt("value", u256(2))
		})
		s.Or(func(s *Scope) {
			s.Gt("nonce", u64(1))
			s.Lt("nonce", u64(2))
		})
	}).Build()
	require.NoError(t, err)

	conjs, ok := ToDNF(f.Root, 64)
	require.True(t, ok)
	require.Len(t, conjs, 4) // 2 x 2 cross product
}

func TestToDNFNotPushesDeMorganThroughAnd(t *testing.T) {
	f, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		s.Not(func(s *Scope) {
			s.Gt("value", u256(1))
			s.Lt("nonce", u64(10))
		})
	}).Build()
	require.NoError(t, err)

	// Not(A AND B) -> Or(Not(A), Not(B)): two single-literal conjuncts.
	conjs, ok := ToDNF(f.Root, 64)
	require.True(t, ok)
	require.Len(t, conjs, 2)
	for _, c := range conjs {
		require.Len(t, c, 1)
		require.True(t, c[0].Negated)
	}
}

func TestToDNFDoubleNegationCancels(t *testing.T) {
	f, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		s.Not(func(s *Scope) {
			s.Not(func(s *Scope) {
				s.Gt("value", u256(1))
			})
		})
	}).Build()
	require.NoError(t, err)

	conjs, ok := ToDNF(f.Root, 64)
	require.True(t, ok)
	require.Len(t, conjs, 1)
	require.False(t, conjs[0][0].Negated)
}

func TestToDNFNotXorFallsBackToLinearScan(t *testing.T) {
	f, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		s.Not(func(s *Scope) {
			s.Xor(func(s *Scope) {
				s.Gt("value", u256(1))
				s.Lt("nonce", u64(10))
			})
		})
	}).Build()
	require.NoError(t, err)

	_, ok := ToDNF(f.Root, 64)
	require.False(t, ok)
}

func TestToDNFWideXorExceedsExpansionLimit(t *testing.T) {
	f, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		s.Xor(func(s *Scope) {
			for i := 0; i < xorExpansionLimit+1; i++ {
				s.Gt("value", u256(uint64(i)))
			}
		})
	}).Build()
	require.NoError(t, err)

	_, ok := ToDNF(f.Root, 1024)
	require.False(t, ok)
}

func TestToDNFBlowupBeyondLimitFallsBack(t *testing.T) {
	f, err := NewBuilder(chain.Ethereum).Transaction(func(s *Scope) {
		for i := 0; i < 5; i++ {
			s.Or(func(s *Scope) {
				s.Gt("value", u256(uint64(i)))
				s.Lt("value", u256(uint64(i+100)))
			})
		}
	}).Build()
	require.NoError(t, err)

	// 5 ANDed OR-pairs cross-multiply to 2^5 = 32 conjuncts, over a limit of 4.
	_, ok := ToDNF(f.Root, 4)
	require.False(t, ok)
}
