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
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/sieve-xyz/sieve/filter"
	"github.com/sieve-xyz/sieve/schema"
)

// entry is one (subscription, filter-within-subscription) pair indexed in a
// shard. filterIdx selects which of sub.filters produced this entry, so
// SubscribeAll's per-filter Matched map and WatchWithin's per-filter slots
// route to the right index even though several filters share one
// Subscription.
type entry struct {
	sub       *Subscription
	filterIdx int
	f         *filter.Filter
}

// equalityPaths names the field paths indexed for equality lookup:
// from==, to==, contract== (the event scope's "address" field), and
// exact-hash.
var equalityPaths = map[string]bool{
	"from":    true,
	"to":      true,
	"address": true,
	"hash":    true,
	"tx_hash": true,
}

// rangePaths names the fields indexed for numeric range predicates.
var rangePaths = map[string]bool{
	"value":     true,
	"gas_price": true,
}

// fieldIndex is one shard's predicate index, mined from each registered
// filter's DNF. It is a pure accelerant: candidates() may over-approximate
// (return entries whose filter does not actually match), never
// under-approximate, so filter.Eval remains authoritative.
type fieldIndex struct {
	mu sync.RWMutex

	// eq[path][hexValue] -> entries whose DNF has a conjunct requiring
	// path == hexValue (among possibly other, unindexed, conditions).
	eq map[string]map[string][]*entry

	// ranges[path] -> entries with a numeric range condition on path;
	// checked by comparing the item's resolved value against each
	// recorded [lo,hi] bound.
	ranges map[string][]rangeEntry

	// always holds entries whose DNF could not be pruned at all (ToDNF
	// failed, or no conjunct offered an indexable literal): always
	// candidates, evaluated by filter.Eval on every item in this shard.
	always []*entry
}

type rangeEntry struct {
	e      *entry
	lo, hi schema.Value
	hasLo  bool
	hasHi  bool
}

func newFieldIndex() *fieldIndex {
	return &fieldIndex{
		eq:     make(map[string]map[string][]*entry),
		ranges: make(map[string][]rangeEntry),
	}
}

const dnfBlowupLimit = 256

// add mines e.f's DNF and inserts e.f under every indexable literal found;
// a conjunct with no indexable literal makes the whole entry "always".
func (fi *fieldIndex) add(e *entry) {
	fi.mu.Lock()
	defer fi.mu.Unlock()

	conjuncts, ok := filter.ToDNF(e.f.Root, dnfBlowupLimit)
	if !ok {
		fi.always = append(fi.always, e)
		return
	}
	for _, c := range conjuncts {
		if !fi.indexConjunct(c, e) {
			fi.always = append(fi.always, e)
		}
	}
}

// indexConjunct picks one indexable literal from c (preferring equality
// over range) and records e under it. Returns false if none found.
func (fi *fieldIndex) indexConjunct(c filter.Conjunct, e *entry) bool {
	for _, lit := range c {
		if lit.Negated || lit.Pred.Op != filter.OpEq {
			continue
		}
		if !equalityPaths[lit.Pred.Path] {
			continue
		}
		hex, ok := lit.Pred.Operand.HexString()
		if !ok {
			continue
		}
		byVal, ok := fi.eq[lit.Pred.Path]
		if !ok {
			byVal = make(map[string][]*entry)
			fi.eq[lit.Pred.Path] = byVal
		}
		byVal[hex] = append(byVal[hex], e)
		return true
	}
	for _, lit := range c {
		if lit.Negated || !rangePaths[lit.Pred.Path] {
			continue
		}
		lo, hi, ok := rangeBounds(lit.Pred)
		if !ok {
			continue
		}
		fi.ranges[lit.Pred.Path] = append(fi.ranges[lit.Pred.Path], rangeEntry{
			e: e, lo: lo, hasLo: !lo.IsAbsent(), hi: hi, hasHi: !hi.IsAbsent(),
		})
		return true
	}
	return false
}

// remove drops every entry belonging to sub from the index. Called by the
// sweeper once a subscription is tombstoned.
func (fi *fieldIndex) remove(sub *Subscription) {
	fi.mu.Lock()
	defer fi.mu.Unlock()

	filterEntries := func(entries []*entry) []*entry {
		out := entries[:0]
		for _, e := range entries {
			if e.sub != sub {
				out = append(out, e)
			}
		}
		return out
	}
	for path, byVal := range fi.eq {
		for v, entries := range byVal {
			byVal[v] = filterEntries(entries)
			if len(byVal[v]) == 0 {
				delete(byVal, v)
			}
		}
		if len(byVal) == 0 {
			delete(fi.eq, path)
		}
	}
	for path, entries := range fi.ranges {
		kept := entries[:0]
		for _, re := range entries {
			if re.e.sub != sub {
				kept = append(kept, re)
			}
		}
		if len(kept) == 0 {
			delete(fi.ranges, path)
		} else {
			fi.ranges[path] = kept
		}
	}
	fi.always = filterEntries(fi.always)
}

// gather unions the always list with every equality/range entry whose
// condition is satisfied by resolve, the dispatcher's per-item field
// resolver. The result may contain false positives (always, by
// construction); filter.Eval is the authoritative check applied afterward.
func (fi *fieldIndex) gather(resolve func(path string) (schema.Value, bool)) []*entry {
	fi.mu.RLock()
	defer fi.mu.RUnlock()

	seen := mapset.NewThreadUnsafeSet[*entry]()
	out := make([]*entry, 0, len(fi.always))
	add := func(e *entry) {
		if seen.Add(e) {
			out = append(out, e)
		}
	}
	for _, e := range fi.always {
		add(e)
	}
	for path, byVal := range fi.eq {
		v, ok := resolve(path)
		if !ok || v.IsAbsent() {
			continue
		}
		hex, ok := v.HexString()
		if !ok {
			continue
		}
		for _, e := range byVal[hex] {
			add(e)
		}
	}
	for path, entries := range fi.ranges {
		v, ok := resolve(path)
		if !ok || v.IsAbsent() {
			continue
		}
		for _, re := range entries {
			if re.hasLo && numericLess(v, re.lo) {
				continue
			}
			if re.hasHi && numericLess(re.hi, v) {
				continue
			}
			add(re.e)
		}
	}
	return out
}

// numericLess reports a < b for the two numeric Value kinds the index
// supports (u64, u256); mismatched kinds are treated as incomparable (false).
func numericLess(a, b schema.Value) bool {
	switch a.Kind {
	case schema.KindU256:
		if b.Kind != schema.KindU256 {
			return false
		}
		return a.U256.Cmp(b.U256) < 0
	case schema.KindU64:
		if b.Kind != schema.KindU64 {
			return false
		}
		return a.U64 < b.U64
	default:
		return false
	}
}

// rangeBounds extracts [lo, hi] from a numeric predicate, treating Gt/Ge as
// a lower-bound-only and Lt/Le as an upper-bound-only range; Between sets
// both. Exactness (strict vs inclusive) is not modeled in the index —
// filter.Eval re-checks the exact operator, so a slightly wider index range
// only risks a spurious candidate, never a missed one.
func rangeBounds(p *filter.Predicate) (lo, hi schema.Value, ok bool) {
	switch p.Op {
	case filter.OpGt, filter.OpGe:
		return p.Operand, schema.Absent, true
	case filter.OpLt, filter.OpLe:
		return schema.Absent, p.Operand, true
	case filter.OpBetween:
		return p.Operand, p.OperandHi, true
	default:
		return schema.Absent, schema.Absent, false
	}
}
