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
	"github.com/sieve-xyz/sieve/types"
)

// Scope is the item-kind scope a Group node in the filter AST is tagged
// with.
type Scope uint8

const (
	ScopeTransaction Scope = iota
	ScopePool
	ScopeEvent
	ScopeBlock
	ScopeChainSpecific
)

func (s Scope) String() string {
	switch s {
	case ScopeTransaction:
		return "transaction"
	case ScopePool:
		return "pool"
	case ScopeEvent:
		return "event"
	case ScopeBlock:
		return "block"
	case ScopeChainSpecific:
		return "chain-specific"
	default:
		return "unknown"
	}
}

// ItemKind reports which types.Kind a scope's fields apply to, used both to
// enforce the "Group(scope=X) only contains fields legal for item kind X"
// build-time invariant and to validate incoming items against a scope.
func (s Scope) ItemKind() types.Kind {
	switch s {
	case ScopeTransaction:
		return types.KindConfirmedTx
	case ScopePool:
		return types.KindPendingTx
	case ScopeEvent:
		return types.KindLog
	case ScopeBlock:
		return types.KindHeader
	default:
		// ScopeChainSpecific legally applies to any kind; callers must not
		// rely on this return value for that scope.
		return types.KindHeader
	}
}
