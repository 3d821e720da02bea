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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingDetectsDuplicate(t *testing.T) {
	r := newRing(4)
	require.False(t, r.seenOrAdd("a"))
	require.True(t, r.seenOrAdd("a"))
}

func TestRingEvictsOldestOnceFull(t *testing.T) {
	r := newRing(2)
	require.False(t, r.seenOrAdd("a"))
	require.False(t, r.seenOrAdd("b"))
	// ring is now full; adding "c" evicts "a".
	require.False(t, r.seenOrAdd("c"))
	require.False(t, r.seenOrAdd("a")) // "a" was evicted, no longer seen
	require.True(t, r.seenOrAdd("c"))  // "c" still within the window
}

func TestRingDefaultsCapacity(t *testing.T) {
	r := newRing(0)
	require.Equal(t, 8192, r.capacity)
}
