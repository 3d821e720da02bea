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

// Package schema is Sieve's typed, chain-aware field model: it resolves
// dotted field paths against an Item to a typed Value, classifying each
// accessor as Raw, DerivedCheap or Decoded so the evaluator (package
// filter) can apply lazy decoding and memoization.
package schema

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Kind is the semantic type a field path resolves to.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindU256
	KindU64
	KindBytes
	KindAddress
	KindString
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindU256:
		return "u256"
	case KindU64:
		return "u64"
	case KindBytes:
		return "bytes"
	case KindAddress:
		return "address"
	case KindString:
		return "string"
	case KindList:
		return "list"
	default:
		return "absent"
	}
}

// Value is the typed result of resolving a field path against an item.
// Exactly one payload field is meaningful, selected by Kind; Kind ==
// KindAbsent means the field does not apply to this item.
type Value struct {
	Kind    Kind
	U256    *uint256.Int
	U64     uint64
	Bytes   []byte
	Address common.Address
	Str     string
	List    []Value
}

// Absent is the zero Value: KindAbsent.
var Absent = Value{Kind: KindAbsent}

// IsAbsent reports whether v carries no field value.
func (v Value) IsAbsent() bool { return v.Kind == KindAbsent }

// HexString renders a byte-like value (Bytes or Address) as the lower-cased,
// 0x-stripped hex string that the string operators compare against; a
// String value is returned lower-cased as it is.
func (v Value) HexString() (string, bool) {
	switch v.Kind {
	case KindBytes:
		return strings.ToLower(common.Bytes2Hex(v.Bytes)), true
	case KindAddress:
		return strings.ToLower(strings.TrimPrefix(v.Address.Hex(), "0x")), true
	case KindString:
		return strings.ToLower(v.Str), true
	default:
		return "", false
	}
}
