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

import "github.com/sieve-xyz/sieve/chain"

// AliasTable maps a chain-specific field name to the raw-JSON keys it might
// appear under, tried in order. Seeded with the OP Stack L1-attribute
// aliases surfaced on pre-Bedrock L1-attribute transactions.
var AliasTable = map[chain.Tag]map[string][]string{
	chain.Optimism: {
		"l1BlockNumber": {"l1BlockNumber", "l1_block_number", "l1BlockNum"},
		"l1Timestamp":   {"l1Timestamp", "l1_timestamp"},
		"l1TxOrigin":    {"l1TxOrigin", "l1_tx_origin"},
		"queueIndex":    {"queueIndex", "queue_index"},
	},
	chain.Base: {
		"l1BlockNumber": {"l1BlockNumber", "l1_block_number", "l1BlockNum"},
		"l1Timestamp":   {"l1Timestamp", "l1_timestamp"},
	},
}

// aliasesFor returns the candidate raw-JSON keys for a chain-specific field
// name, falling back to the name itself (and its snake_case form) when no
// per-chain alias is registered.
func aliasesFor(c chain.Tag, name string) []string {
	if table, ok := AliasTable[c]; ok {
		if candidates, ok := table[name]; ok {
			return candidates
		}
	}
	return []string{name, toSnakeCase(name)}
}

// toSnakeCase converts camelCase to snake_case, used as a fallback raw-JSON
// key when a chain-specific field name has no registered alias.
func toSnakeCase(s string) string {
	out := make([]byte, 0, len(s)+4)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			if i > 0 {
				out = append(out, '_')
			}
			out = append(out, c-'A'+'a')
		} else {
			out = append(out, c)
		}
	}
	return string(out)
}
