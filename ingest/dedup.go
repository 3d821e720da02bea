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

import "sync"

// ring is a fixed-size recently-seen-identifier window (default capacity
// 8192): a per-kind ring of identifiers, oldest evicted first. It is not
// an LRU: insertion order, not access order, decides eviction.
type ring struct {
	mu       sync.Mutex
	capacity int
	slots    []string
	pos      int
	full     bool
	set      map[string]struct{}
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = 8192
	}
	return &ring{
		capacity: capacity,
		slots:    make([]string, capacity),
		set:      make(map[string]struct{}, capacity),
	}
}

// seenOrAdd reports whether id was already present, inserting it otherwise.
func (r *ring) seenOrAdd(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.set[id]; ok {
		return true
	}

	if r.full {
		evict := r.slots[r.pos]
		delete(r.set, evict)
	}
	r.slots[r.pos] = id
	r.set[id] = struct{}{}
	r.pos++
	if r.pos == r.capacity {
		r.pos = 0
		r.full = true
	}
	return false
}
