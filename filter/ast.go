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

// Package filter is the logical expression tree over typed, chain-aware
// fields, its fluent scoped builder, and its short-circuit evaluator.
package filter

import (
	"github.com/sieve-xyz/sieve/chain"
	"github.com/sieve-xyz/sieve/schema"
	"github.com/sieve-xyz/sieve/types"
)

// Node is one node of a filter's immutable AST.
type Node interface {
	node()
}

// Predicate is a leaf: a typed comparison against one field.
type Predicate struct {
	Path      string
	Scope     schema.Scope
	Op        Op
	Operand   schema.Value
	OperandHi schema.Value // second bound, used only by OpBetween
}

func (*Predicate) node() {}

// And is true iff every child is true; empty And is a build-time error.
type And struct{ Children []Node }

func (*And) node() {}

// Or is true iff any child is true; empty Or is a build-time error.
type Or struct{ Children []Node }

func (*Or) node() {}

// Not inverts its single child.
type Not struct{ Child Node }

func (*Not) node() {}

// Xor is true iff exactly one child is true.
type Xor struct{ Children []Node }

func (*Xor) node() {}

// Group scopes its children to one item kind.
// The outermost node of every Filter is always a Group.
type Group struct {
	Scope    schema.Scope
	Children []Node
}

func (*Group) node() {}

// Filter is an immutable, built filter: one chain tag and one root Group.
type Filter struct {
	Chain chain.Tag
	Root  *Group
}

// ItemKind reports the item kind this filter's root scope targets.
func (f *Filter) ItemKind() types.Kind {
	return f.Root.Scope.ItemKind()
}
