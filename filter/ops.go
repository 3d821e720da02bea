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

// Op is a leaf predicate operator.
type Op uint8

const (
	OpEq Op = iota
	OpNe
	OpGt
	OpGe
	OpLt
	OpLe
	OpBetween
	OpStartsWith
	OpEndsWith
	OpContains
	OpExact
	OpRegex
)

var opNames = [...]string{
	OpEq: "eq", OpNe: "ne", OpGt: "gt", OpGe: "ge", OpLt: "lt", OpLe: "le",
	OpBetween: "between", OpStartsWith: "starts_with", OpEndsWith: "ends_with",
	OpContains: "contains", OpExact: "exact", OpRegex: "regex",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "unknown_op"
}

// numeric reports whether op only makes sense against an ordered numeric
// type (u64/u256).
func (o Op) numeric() bool {
	switch o {
	case OpGt, OpGe, OpLt, OpLe, OpBetween:
		return true
	default:
		return false
	}
}

// stringlike reports whether op only applies to the lower-cased,
// 0x-stripped hex representation of a byte-like value.
func (o Op) stringlike() bool {
	switch o {
	case OpStartsWith, OpEndsWith, OpContains, OpRegex:
		return true
	default:
		return false
	}
}
