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

// Package subscription is Sieve's dispatch runtime: a sharded registry of
// live filters, DNF-mined predicate indices that accelerate (but never
// replace) filter.Eval, and the Subscribe/SubscribeAll/WatchWithin
// delivery modes.
package subscription

import "github.com/sieve-xyz/sieve/types"

// EventKind tags the three shapes an Event can take.
type EventKind uint8

const (
	// EventItem carries one matched item from Subscribe/SubscribeAll.
	EventItem EventKind = iota
	// EventMatch carries a WatchWithin correlation: one item per filter index.
	EventMatch
	// EventTimeout signals a WatchWithin window closed without a full match.
	EventTimeout
	// EventErr signals the engine ended this subscription (its Done channel
	// is closed) after a fatal supervisor failure.
	EventErr
)

func (k EventKind) String() string {
	switch k {
	case EventItem:
		return "item"
	case EventMatch:
		return "match"
	case EventTimeout:
		return "timeout"
	case EventErr:
		return "error"
	default:
		return "unknown"
	}
}

// Event is the unit of delivery over a Subscription's channel.
type Event struct {
	Kind    EventKind
	Item    *types.Item
	Matched map[int]*types.Item
	Err     error
}
