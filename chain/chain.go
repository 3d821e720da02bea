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

// Package chain defines the closed tag set of blockchains Sieve ingests
// from, and a small per-chain alias table used by the dynamic field
// fallback in package schema.
package chain

import "fmt"

// Tag identifies a chain whose items can be ingested and filtered.
type Tag uint8

const (
	// Ethereum is the default chain tag when a ChainConfig or Filter omits one.
	Ethereum Tag = iota
	Optimism
	Base

	numBuiltin
)

var names = [...]string{
	Ethereum: "ethereum",
	Optimism: "optimism",
	Base:     "base",
}

func (t Tag) String() string {
	if int(t) < len(names) && names[t] != "" {
		return names[t]
	}
	return fmt.Sprintf("chain(%d)", uint8(t))
}

// Valid reports whether t is a recognized, registered chain tag.
func (t Tag) Valid() bool {
	return int(t) < len(names) && names[t] != ""
}

// Parse resolves a chain name (case-sensitive, as produced by String) to its Tag.
func Parse(name string) (Tag, bool) {
	for i, n := range names {
		if n == name {
			return Tag(i), true
		}
	}
	return 0, false
}

// IsOptimismStack reports whether t belongs to the OP Stack family, which
// shares a set of L1-attribute field aliases (see schema.AliasTable).
func IsOptimismStack(t Tag) bool {
	return t == Optimism || t == Base
}
