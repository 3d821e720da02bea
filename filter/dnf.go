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

// Literal is one (possibly negated) predicate in a DNF conjunct.
type Literal struct {
	Pred    *Predicate
	Negated bool
}

// Conjunct is one AND-term of a filter's disjunctive normal form.
type Conjunct []Literal

// xorExpansionLimit bounds the number of Xor children this package will
// expand into a DNF term; beyond it ToDNF bails out rather than produce a
// combinatorial blowup on its own.
const xorExpansionLimit = 6

// ToDNF rewrites root into disjunctive normal form for the subscription
// registry's predicate indices. It returns ok=false if the expansion
// would exceed limit conjuncts (or root isn't representable, e.g. an Xor
// wider than xorExpansionLimit): the caller then falls back to a linear
// scan over the original tree.
func ToDNF(root Node, limit int) (conjuncts []Conjunct, ok bool) {
	return dnf(root, limit)
}

func dnf(n Node, limit int) ([]Conjunct, bool) {
	switch t := n.(type) {
	case *Predicate:
		return []Conjunct{{{Pred: t}}}, true
	case *Group:
		return dnfAnd(t.Children, limit)
	case *And:
		return dnfAnd(t.Children, limit)
	case *Or:
		return dnfOr(t.Children, limit)
	case *Not:
		return dnfNot(t.Child, limit)
	case *Xor:
		return dnfXor(t.Children, limit)
	default:
		return nil, false
	}
}

func dnfOr(children []Node, limit int) ([]Conjunct, bool) {
	var all []Conjunct
	for _, c := range children {
		sub, ok := dnf(c, limit)
		if !ok {
			return nil, false
		}
		all = append(all, sub...)
		if len(all) > limit {
			return nil, false
		}
	}
	return all, true
}

func dnfAnd(children []Node, limit int) ([]Conjunct, bool) {
	result := []Conjunct{{}}
	for _, c := range children {
		sub, ok := dnf(c, limit)
		if !ok {
			return nil, false
		}
		result, ok = cross(result, sub, limit)
		if !ok {
			return nil, false
		}
	}
	return result, true
}

// cross computes the cross-product conjunction of two DNFs, capped at limit.
func cross(a, b []Conjunct, limit int) ([]Conjunct, bool) {
	out := make([]Conjunct, 0, len(a)*len(b))
	for _, ca := range a {
		for _, cb := range b {
			merged := make(Conjunct, 0, len(ca)+len(cb))
			merged = append(merged, ca...)
			merged = append(merged, cb...)
			out = append(out, merged)
			if len(out) > limit {
				return nil, false
			}
		}
	}
	return out, true
}

// dnfNot pushes negation down via De Morgan's laws until it reaches leaves.
func dnfNot(n Node, limit int) ([]Conjunct, bool) {
	switch t := n.(type) {
	case *Predicate:
		return []Conjunct{{{Pred: t, Negated: true}}}, true
	case *Not:
		return dnf(t.Child, limit) // double negation cancels
	case *And:
		return dnfNotAll(t.Children, limit, true) // Not(And) = Or(Not..)
	case *Group:
		return dnfNotAll(t.Children, limit, true)
	case *Or:
		return dnfNotAll(t.Children, limit, false) // Not(Or) = And(Not..)
	case *Xor:
		// Not(Xor) ("an even number of truths") isn't worth indexing;
		// callers fall back to the authoritative linear-scan evaluator.
		return nil, false
	default:
		return nil, false
	}
}

// dnfNotAll negates each child and either ORs (asOr=true, De Morgan on And)
// or ANDs (asOr=false, De Morgan on Or) the results together.
func dnfNotAll(children []Node, limit int, asOr bool) ([]Conjunct, bool) {
	if asOr {
		var all []Conjunct
		for _, c := range children {
			sub, ok := dnfNot(c, limit)
			if !ok {
				return nil, false
			}
			all = append(all, sub...)
			if len(all) > limit {
				return nil, false
			}
		}
		return all, true
	}
	result := []Conjunct{{}}
	for _, c := range children {
		sub, ok := dnfNot(c, limit)
		if !ok {
			return nil, false
		}
		var okCross bool
		result, okCross = cross(result, sub, limit)
		if !okCross {
			return nil, false
		}
	}
	return result, true
}

// dnfXor expands "exactly one of children is true" as an OR, over each
// child i, of (children[i] AND NOT children[j] for all j != i).
func dnfXor(children []Node, limit int) ([]Conjunct, bool) {
	if len(children) > xorExpansionLimit {
		return nil, false
	}
	var all []Conjunct
	for i := range children {
		conjs, ok := dnf(children[i], limit)
		if !ok {
			return nil, false
		}
		for j := range children {
			if j == i {
				continue
			}
			negs, ok := dnfNot(children[j], limit)
			if !ok {
				return nil, false
			}
			conjs, ok = cross(conjs, negs, limit)
			if !ok {
				return nil, false
			}
		}
		all = append(all, conjs...)
		if len(all) > limit {
			return nil, false
		}
	}
	return all, true
}
