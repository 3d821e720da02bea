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

package schema

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/sieve-xyz/sieve/decode"
	"github.com/sieve-xyz/sieve/types"
)

// Class classifies how expensive an accessor is to evaluate.
type Class uint8

const (
	// Raw is a direct read from the parsed RPC payload.
	Raw Class = iota
	// DerivedCheap is arithmetic over Raw fields (e.g. effective gas price).
	DerivedCheap
	// Decoded requires ABI decoding of input or log data.
	Decoded
)

// AccessorFunc resolves a field path against an item. dc may be nil; a
// Decoded accessor invoked with a nil dc decodes without memoizing.
type AccessorFunc func(item *types.Item, dc *decode.Cache) (Value, error)

// FieldDescriptor is one entry of the hardcoded field registry: a path,
// the scope(s) it is legal within, its semantic Kind, and its Class.
type FieldDescriptor struct {
	Path  string
	Scope Scope
	Kind  Kind
	Class Class
	Fn    AccessorFunc
}

// splitPath splits a dotted/bracketed field path into its leading segment
// and the remainder, e.g. "topics[0]" -> ("topics", "[0]"),
// "input.method" -> ("input", "method").
func splitPath(path string) (head, rest string) {
	if i := strings.IndexAny(path, ".["); i >= 0 {
		return path[:i], path[i:]
	}
	return path, ""
}

// listIndex parses a "[N]" suffix, returning N and whether it parsed.
func listIndex(rest string) (int, bool) {
	if !strings.HasPrefix(rest, "[") {
		return 0, false
	}
	end := strings.Index(rest, "]")
	if end < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(rest[1:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

func u64Value(v uint64) Value    { return Value{Kind: KindU64, U64: v} }
func u256Value(v *uint256.Int) Value {
	if v == nil {
		return Absent
	}
	return Value{Kind: KindU256, U256: v}
}
func bytesValue(b []byte) Value { return Value{Kind: KindBytes, Bytes: b} }
func addrValue(a common.Address) Value { return Value{Kind: KindAddress, Address: a} }
func strValue(s string) Value    { return Value{Kind: KindString, Str: s} }
