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
	"github.com/sieve-xyz/sieve/chain"
	"github.com/sieve-xyz/sieve/errs"
	"github.com/sieve-xyz/sieve/schema"
)

// staticRegistry is used only for build-time path/type/scope validation; it
// carries no Decoder since Build never evaluates an accessor, only resolves
// its declared Kind and legality.
var staticRegistry = schema.NewRegistry(nil)

// Builder is Sieve's fluent, scoped filter constructor. Exactly one of
// Transaction/Pool/Event/Block/ChainSpecific may be called on a Builder;
// it supplies the root Group's scope.
type Builder struct {
	chain chain.Tag
	root  *Group
	err   error
}

// NewBuilder starts a filter for the given chain (default chain.Ethereum if
// the zero value is intentionally passed).
func NewBuilder(c chain.Tag) *Builder {
	return &Builder{chain: c}
}

func (b *Builder) openRoot(scope schema.Scope, fn func(s *Scope)) *Builder {
	if b.err != nil {
		return b
	}
	if b.root != nil {
		b.err = &errs.FilterBuildError{Msg: "builder already has a root scope"}
		return b
	}
	s := newScope(b, scope)
	fn(s)
	if b.err != nil {
		return b
	}
	if len(s.children) == 0 {
		b.err = &errs.FilterBuildError{Msg: "empty root scope"}
		return b
	}
	b.root = &Group{Scope: scope, Children: s.children}
	return b
}

// Transaction opens a confirmed-transaction-scoped root.
func (b *Builder) Transaction(fn func(s *Scope)) *Builder {
	return b.openRoot(schema.ScopeTransaction, fn)
}

// Pool opens a pending-transaction-scoped root.
func (b *Builder) Pool(fn func(s *Scope)) *Builder {
	return b.openRoot(schema.ScopePool, fn)
}

// Event opens a log-scoped root.
func (b *Builder) Event(fn func(s *Scope)) *Builder {
	return b.openRoot(schema.ScopeEvent, fn)
}

// Block opens a header-scoped root.
func (b *Builder) Block(fn func(s *Scope)) *Builder {
	return b.openRoot(schema.ScopeBlock, fn)
}

// ChainSpecific opens a root scoped to dynamically-resolved fields, legal
// against any item kind.
func (b *Builder) ChainSpecific(fn func(s *Scope)) *Builder {
	return b.openRoot(schema.ScopeChainSpecific, fn)
}

// Build freezes the constructed AST into an immutable Filter, or returns
// the first build-time error encountered.
func (b *Builder) Build() (*Filter, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.root == nil {
		return nil, &errs.FilterBuildError{Msg: "no root scope; call Transaction/Pool/Event/Block/ChainSpecific"}
	}
	return &Filter{Chain: b.chain, Root: b.root}, nil
}

// Scope accumulates the (implicitly AND-combined) children of one scope or
// combinator block, pushed via the fluent methods below.
type Scope struct {
	b        *Builder
	scope    schema.Scope
	children []Node
}

func newScope(b *Builder, scope schema.Scope) *Scope {
	return &Scope{b: b, scope: scope}
}

func (s *Scope) fail(msg string) {
	if s.b.err == nil {
		s.b.err = &errs.FilterBuildError{Msg: msg}
	}
}

func (s *Scope) push(n Node) { s.children = append(s.children, n) }

// predicate resolves path against the scope's field table, type-checks
// operand, and pushes the leaf on success.
func (s *Scope) predicate(path string, op Op, operand, operandHi schema.Value) *Scope {
	desc, ok := staticRegistry.Resolve(s.scope, path)
	if !ok {
		s.fail("field " + path + " is not legal in scope " + s.scope.String())
		return s
	}
	if op.numeric() && desc.Kind != schema.KindU256 && desc.Kind != schema.KindU64 {
		s.fail("operator " + op.String() + " requires a numeric field, got " + path)
		return s
	}
	if op.stringlike() && desc.Kind != schema.KindBytes && desc.Kind != schema.KindAddress && desc.Kind != schema.KindString {
		s.fail("operator " + op.String() + " requires a byte-string-like field, got " + path)
		return s
	}
	// Numeric comparisons dereference the operand's U256/U64 arm directly
	// (see numericCmp), so the operand's kind must match the field's kind
	// exactly; a mismatch here would otherwise panic at eval time instead
	// of failing at build time.
	if op.numeric() {
		if operand.Kind != desc.Kind {
			s.fail("operand for " + path + " must be " + desc.Kind.String() + ", got " + operand.Kind.String())
			return s
		}
		if op == OpBetween && operandHi.Kind != desc.Kind {
			s.fail("operand for " + path + " must be " + desc.Kind.String() + ", got " + operandHi.Kind.String())
			return s
		}
	}
	if op == OpBetween {
		if !lessOrEqual(operand, operandHi) {
			s.fail("between(lo, hi) requires lo <= hi for field " + path)
			return s
		}
	}
	s.push(&Predicate{Path: path, Scope: s.scope, Op: op, Operand: operand, OperandHi: operandHi})
	return s
}

func (s *Scope) Eq(path string, v schema.Value) *Scope      { return s.predicate(path, OpEq, v, schema.Absent) }
func (s *Scope) Ne(path string, v schema.Value) *Scope      { return s.predicate(path, OpNe, v, schema.Absent) }
func (s *Scope) Gt(path string, v schema.Value) *Scope      { return s.predicate(path, OpGt, v, schema.Absent) }
func (s *Scope) Ge(path string, v schema.Value) *Scope      { return s.predicate(path, OpGe, v, schema.Absent) }
func (s *Scope) Lt(path string, v schema.Value) *Scope      { return s.predicate(path, OpLt, v, schema.Absent) }
func (s *Scope) Le(path string, v schema.Value) *Scope      { return s.predicate(path, OpLe, v, schema.Absent) }
func (s *Scope) StartsWith(path string, v schema.Value) *Scope { return s.predicate(path, OpStartsWith, v, schema.Absent) }
func (s *Scope) EndsWith(path string, v schema.Value) *Scope   { return s.predicate(path, OpEndsWith, v, schema.Absent) }
func (s *Scope) Contains(path string, v schema.Value) *Scope   { return s.predicate(path, OpContains, v, schema.Absent) }
func (s *Scope) Exact(path string, v schema.Value) *Scope      { return s.predicate(path, OpExact, v, schema.Absent) }
func (s *Scope) Regex(path string, v schema.Value) *Scope      { return s.predicate(path, OpRegex, v, schema.Absent) }

// Between is inclusive on both ends; lo > hi is a build-time error.
func (s *Scope) Between(path string, lo, hi schema.Value) *Scope {
	return s.predicate(path, OpBetween, lo, hi)
}

func (s *Scope) nested(fn func(s *Scope)) []Node {
	child := newScope(s.b, s.scope)
	fn(child)
	return child.children
}

// And explicitly groups children under AND (useful to nest inside an Or).
func (s *Scope) And(fn func(s *Scope)) *Scope {
	children := s.nested(fn)
	if len(children) == 0 {
		s.fail("empty and() group")
		return s
	}
	s.push(&And{Children: children})
	return s
}

// AllOf is an alias for And.
func (s *Scope) AllOf(fn func(s *Scope)) *Scope { return s.And(fn) }

// Or groups children under OR; an explicit or/any_of block inside an AND
// scope forms a single OR child of that AND.
func (s *Scope) Or(fn func(s *Scope)) *Scope {
	children := s.nested(fn)
	if len(children) == 0 {
		s.fail("empty or() group")
		return s
	}
	s.push(&Or{Children: children})
	return s
}

// AnyOf is an alias for Or.
func (s *Scope) AnyOf(fn func(s *Scope)) *Scope { return s.Or(fn) }

// Not negates its child tree; multiple children are implicitly AND-combined
// first, then negated.
func (s *Scope) Not(fn func(s *Scope)) *Scope {
	children := s.nested(fn)
	if len(children) == 0 {
		s.fail("empty not() group")
		return s
	}
	var child Node
	if len(children) == 1 {
		child = children[0]
	} else {
		child = &And{Children: children}
	}
	s.push(&Not{Child: child})
	return s
}

// Unless is an alias for Not.
func (s *Scope) Unless(fn func(s *Scope)) *Scope { return s.Not(fn) }

// Xor is true iff exactly one child is true.
func (s *Scope) Xor(fn func(s *Scope)) *Scope {
	children := s.nested(fn)
	if len(children) == 0 {
		s.fail("empty xor() group")
		return s
	}
	s.push(&Xor{Children: children})
	return s
}

// lessOrEqual compares two operands of compatible numeric kind for the
// between() build-time lo<=hi check.
func lessOrEqual(lo, hi schema.Value) bool {
	switch lo.Kind {
	case schema.KindU256:
		return lo.U256.Cmp(hi.U256) <= 0
	case schema.KindU64:
		return lo.U64 <= hi.U64
	default:
		return true
	}
}
