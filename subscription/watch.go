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
	"time"

	"github.com/sieve-xyz/sieve/types"
)

// recordMatch appends item to filterIdx's FIFO slot (dropping the oldest
// once at capacity) and checks whether every filter index now has at least
// one slot within the window. On a full correlation it fires EventMatch and
// clears every slot so the next window starts fresh; otherwise it leaves
// the slots intact. If the window timer fires before a full correlation,
// EventTimeout is sent without consulting the slots.
func (s *Subscription) recordMatch(filterIdx int, item *types.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tombstoned {
		return
	}

	slot := watchSlot{item: item, ts: item.IngestedAt()}
	slotCap := s.opt.SlotCapacity
	slots := append(s.slots[filterIdx], slot)
	if len(slots) > slotCap {
		slots = slots[len(slots)-slotCap:]
	}
	s.slots[filterIdx] = slots

	matched, ok := s.tryCorrelateLocked()
	if !ok {
		return
	}
	for i := range s.slots {
		s.slots[i] = nil
	}
	if s.timer != nil {
		s.timer.Reset(s.window)
	}
	go s.send(Event{Kind: EventMatch, Matched: matched})
}

// tryCorrelateLocked looks for a combination of one slot per filter index
// whose timestamps all fall within s.window of each other. By default
// (AnyPermutation false) only the latest slot per index is tried: one
// match per filter index. With AnyPermutation set, every buffered
// combination is searched, bounded by the product of per-index slot
// counts (at most SlotCapacity^len(filters)); this is small in practice
// since SlotCapacity defaults to 8 and correlation subscriptions rarely
// exceed a handful of filters. Caller holds s.mu.
func (s *Subscription) tryCorrelateLocked() (map[int]*types.Item, bool) {
	for _, slots := range s.slots {
		if len(slots) == 0 {
			return nil, false
		}
	}
	if !s.opt.AnyPermutation {
		matched := make(map[int]*types.Item, len(s.slots))
		var minTS, maxTS time.Time
		for i, slots := range s.slots {
			latest := slots[len(slots)-1]
			matched[i] = latest.item
			if minTS.IsZero() || latest.ts.Before(minTS) {
				minTS = latest.ts
			}
			if latest.ts.After(maxTS) {
				maxTS = latest.ts
			}
		}
		if maxTS.Sub(minTS) > s.window {
			return nil, false
		}
		return matched, true
	}

	choice := make([]int, len(s.slots))
	matched := make(map[int]*types.Item, len(s.slots))
	if s.searchCombination(0, choice, matched) {
		return matched, true
	}
	return nil, false
}

// searchCombination backtracks over one slot choice per filter index,
// accepting the first combination whose timestamp spread is within window.
func (s *Subscription) searchCombination(idx int, choice []int, matched map[int]*types.Item) bool {
	if idx == len(s.slots) {
		var minTS, maxTS time.Time
		for i, c := range choice {
			ts := s.slots[i][c].ts
			if minTS.IsZero() || ts.Before(minTS) {
				minTS = ts
			}
			if ts.After(maxTS) {
				maxTS = ts
			}
		}
		if maxTS.Sub(minTS) > s.window {
			return false
		}
		for i, c := range choice {
			matched[i] = s.slots[i][c].item
		}
		return true
	}
	for c := range s.slots[idx] {
		choice[idx] = c
		if s.searchCombination(idx+1, choice, matched) {
			return true
		}
	}
	return false
}
