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

package chain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTagStringKnown(t *testing.T) {
	require.Equal(t, "ethereum", Ethereum.String())
	require.Equal(t, "optimism", Optimism.String())
	require.Equal(t, "base", Base.String())
}

func TestTagStringUnknownFallsBackToNumeric(t *testing.T) {
	var unknown Tag = 200
	require.Equal(t, "chain(200)", unknown.String())
}

func TestTagValid(t *testing.T) {
	require.True(t, Ethereum.Valid())
	require.True(t, Optimism.Valid())
	require.True(t, Base.Valid())

	var unknown Tag = 200
	require.False(t, unknown.Valid())
}

func TestParseRoundTripsWithString(t *testing.T) {
	for _, tag := range []Tag{Ethereum, Optimism, Base} {
		got, ok := Parse(tag.String())
		require.True(t, ok)
		require.Equal(t, tag, got)
	}
}

func TestParseUnknownNameFails(t *testing.T) {
	_, ok := Parse("polygon")
	require.False(t, ok)
}

func TestIsOptimismStack(t *testing.T) {
	require.True(t, IsOptimismStack(Optimism))
	require.True(t, IsOptimismStack(Base))
	require.False(t, IsOptimismStack(Ethereum))
}
