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
	"regexp"
	"strings"
	"sync"

	"github.com/sieve-xyz/sieve/chain"
	"github.com/sieve-xyz/sieve/decode"
	"github.com/sieve-xyz/sieve/schema"
	"github.com/sieve-xyz/sieve/types"
)

// Evaluator evaluates built Filters against Items with short-circuit
// semantics, lazy field resolution, and decode memoization. An Evaluator
// is safe for concurrent use by many dispatcher goroutines.
type Evaluator struct {
	registry *schema.Registry
	capacity int

	mu     sync.Mutex
	caches map[chain.Tag]*decode.Cache
}

// NewEvaluator builds an evaluator. decoder may be nil if no filter ever
// references a Decoded field. capacity is the per-chain decode cache size
// (default 10_000).
func NewEvaluator(decoder decode.Decoder, capacity int) *Evaluator {
	return &Evaluator{
		registry: schema.NewRegistry(decoder),
		capacity: capacity,
		caches:   make(map[chain.Tag]*decode.Cache),
	}
}

// SetReceiptFetcher wires f as chain c's on-demand receipt source,
// forwarded to the evaluator's internal schema registry so receipt.*
// predicates resolve instead of always returning absent.
func (e *Evaluator) SetReceiptFetcher(c chain.Tag, f schema.ReceiptFetcher) {
	e.registry.SetReceiptFetcher(c, f)
}

func (e *Evaluator) cacheFor(c chain.Tag) *decode.Cache {
	e.mu.Lock()
	defer e.mu.Unlock()
	if dc, ok := e.caches[c]; ok {
		return dc
	}
	dc := decode.NewCache(e.capacity)
	e.caches[c] = dc
	return dc
}

// scratch memoizes path -> value within a single Eval call: a small
// per-item scratchpad of path -> value-or-absent.
type scratch struct {
	values map[string]schema.Value
}

func (sc *scratch) resolve(e *Evaluator, item *types.Item, p *Predicate) (schema.Value, error) {
	if v, ok := sc.values[p.Path]; ok {
		return v, nil
	}
	desc, ok := e.registry.Resolve(p.Scope, p.Path)
	if !ok {
		sc.values[p.Path] = schema.Absent
		return schema.Absent, nil
	}
	v, err := desc.Fn(item, e.cacheFor(item.Chain))
	if err != nil {
		// Decode errors are recovered locally: the field
		// resolves absent, the item is still delivered.
		sc.values[p.Path] = schema.Absent
		return schema.Absent, nil
	}
	sc.values[p.Path] = v
	return v, nil
}

// Eval evaluates root against item. A filter whose chain tag does not match
// the item's chain never matches: cross-chain comparison is only
// expressible via WatchWithin. A ChainSpecific root scope applies to any
// item kind; every other scope requires item.Kind == scope.ItemKind().
func (e *Evaluator) Eval(f *Filter, item *types.Item) (bool, error) {
	if f.Chain != item.Chain {
		return false, nil
	}
	if f.Root.Scope != schema.ScopeChainSpecific && item.Kind != f.Root.Scope.ItemKind() {
		return false, nil
	}
	sc := &scratch{values: make(map[string]schema.Value)}
	return e.evalNode(f.Root, item, sc)
}

func (e *Evaluator) evalNode(n Node, item *types.Item, sc *scratch) (bool, error) {
	switch t := n.(type) {
	case *Group:
		return e.evalChildrenAnd(t.Children, item, sc)
	case *And:
		return e.evalChildrenAnd(t.Children, item, sc)
	case *Or:
		for _, c := range t.Children {
			ok, err := e.evalNode(c, item, sc)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case *Xor:
		truths := 0
		for _, c := range t.Children {
			ok, err := e.evalNode(c, item, sc)
			if err != nil {
				return false, err
			}
			if ok {
				truths++
				if truths == 2 {
					return false, nil
				}
			}
		}
		return truths == 1, nil
	case *Not:
		ok, err := e.evalNode(t.Child, item, sc)
		if err != nil {
			return false, err
		}
		return !ok, nil
	case *Predicate:
		return e.evalPredicate(t, item, sc)
	default:
		return false, nil
	}
}

func (e *Evaluator) evalChildrenAnd(children []Node, item *types.Item, sc *scratch) (bool, error) {
	for _, c := range children {
		ok, err := e.evalNode(c, item, sc)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (e *Evaluator) evalPredicate(p *Predicate, item *types.Item, sc *scratch) (bool, error) {
	v, err := sc.resolve(e, item, p)
	if err != nil {
		return false, err
	}
	if v.IsAbsent() {
		return p.Op == OpNe, nil
	}
	return compare(p.Op, v, p.Operand, p.OperandHi), nil
}

// compare applies op to a resolved field value against the predicate's
// operand(s). v is never absent here (callers handle that case).
func compare(op Op, v, operand, operandHi schema.Value) bool {
	switch op {
	case OpEq:
		return equal(v, operand)
	case OpNe:
		return !equal(v, operand)
	case OpGt:
		return numericCmp(v, operand) > 0
	case OpGe:
		return numericCmp(v, operand) >= 0
	case OpLt:
		return numericCmp(v, operand) < 0
	case OpLe:
		return numericCmp(v, operand) <= 0
	case OpBetween:
		return numericCmp(v, operand) >= 0 && numericCmp(v, operandHi) <= 0
	case OpStartsWith:
		a, _ := v.HexString()
		b, _ := operand.HexString()
		return strings.HasPrefix(a, b)
	case OpEndsWith:
		a, _ := v.HexString()
		b, _ := operand.HexString()
		return strings.HasSuffix(a, b)
	case OpContains:
		a, _ := v.HexString()
		b, _ := operand.HexString()
		return strings.Contains(a, b)
	case OpExact:
		a, _ := v.HexString()
		b, _ := operand.HexString()
		return a == b
	case OpRegex:
		a, _ := v.HexString()
		b, _ := operand.HexString()
		re, err := regexp.Compile(b)
		if err != nil {
			return false
		}
		return re.MatchString(a)
	default:
		return false
	}
}

func numericCmp(a, b schema.Value) int {
	switch a.Kind {
	case schema.KindU256:
		return a.U256.Cmp(b.U256)
	case schema.KindU64:
		switch {
		case a.U64 < b.U64:
			return -1
		case a.U64 > b.U64:
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

func equal(a, b schema.Value) bool {
	if a.Kind != b.Kind {
		// Allow comparing a byte-like value against any other
		// byte-like representation via hex string equality.
		ah, aok := a.HexString()
		bh, bok := b.HexString()
		if aok && bok {
			return ah == bh
		}
		return false
	}
	switch a.Kind {
	case schema.KindU256:
		return a.U256.Cmp(b.U256) == 0
	case schema.KindU64:
		return a.U64 == b.U64
	case schema.KindAddress:
		return a.Address == b.Address
	case schema.KindString:
		return a.Str == b.Str
	case schema.KindBytes:
		return string(a.Bytes) == string(b.Bytes)
	default:
		return false
	}
}
