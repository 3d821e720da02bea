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

package subscription

import (
	"sync"
	"time"

	"github.com/sieve-xyz/sieve/errs"
	"github.com/sieve-xyz/sieve/filter"
	"github.com/sieve-xyz/sieve/types"
)

// mode selects a Subscription's delivery semantics.
type mode uint8

const (
	modeSingle mode = iota // Subscribe: one filter, EventItem per match
	modeAll                // SubscribeAll: N filters, EventItem per match on any
	modeWatch              // WatchWithin: N filters, EventMatch/EventTimeout correlation
)

// WatchOption configures WatchWithin beyond its required window argument.
type WatchOption struct {
	// AnyPermutation relaxes "one match per filter index" to "at least one
	// match per filter, any ordering/pairing" (off by default per the
	// recorded Open Question decision).
	AnyPermutation bool

	// SlotCapacity bounds the FIFO per-filter match buffer (default 8).
	SlotCapacity int
}

func (o WatchOption) withDefaults() WatchOption {
	if o.SlotCapacity <= 0 {
		o.SlotCapacity = 8
	}
	return o
}

// Subscription is a live handle returned by Subscribe/SubscribeAll/
// WatchWithin. Events() yields matches until Unsubscribe is called or the
// engine closes it after a fatal transport failure.
type Subscription struct {
	id       uint64
	registry *Registry
	filters  []*filter.Filter
	mode     mode
	window   time.Duration
	opt      WatchOption
	events   chan Event

	doneCh    chan struct{}
	closeOnce sync.Once

	mu          sync.Mutex
	tombstoned  bool
	slots       [][]watchSlot // per filter index, only used in modeWatch
	timer       *time.Timer
	timeoutOnce sync.Once
}

// watchSlot is one buffered match awaiting correlation in modeWatch.
type watchSlot struct {
	item *types.Item
	ts   time.Time
}

// ID returns the subscription's monotonically increasing identifier.
func (s *Subscription) ID() uint64 { return s.id }

// Done returns a channel closed the moment Unsubscribe runs, letting a
// caller (the root façade, tearing down per-chain demand counts) react to
// cancellation without polling isTombstoned.
func (s *Subscription) Done() <-chan struct{} { return s.doneCh }

// Filters exposes the subscription's registered filters, read-only, so the
// façade can derive which (chain, item kind) demand counts to release.
func (s *Subscription) Filters() []*filter.Filter { return s.filters }

// Events returns the channel Events are delivered on. It is never closed,
// including after Unsubscribe: a dispatcher goroutine racing Unsubscribe
// can be mid-send when the subscription tombstones, and a closed channel
// cannot be sent on without panicking. Select on Done() alongside Events()
// to detect end-of-stream instead of ranging over the channel.
func (s *Subscription) Events() <-chan Event { return s.events }

// Unsubscribe tombstones the subscription. A background sweeper unlinks it
// from the shard indices; in-flight dispatch goroutines that already hold a
// reference simply find tombstoned() true and skip delivery.
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()
	if s.tombstoned {
		s.mu.Unlock()
		return
	}
	s.tombstoned = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.doneCh) })
	s.registry.markTombstoned(s)
}

func (s *Subscription) isTombstoned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tombstoned
}

// send delivers ev, preferring a blocking send (deliver, never drop
// silently) but abandoning it once the subscription is tombstoned so
// Unsubscribe never deadlocks a dispatcher goroutine.
func (s *Subscription) send(ev Event) {
	select {
	case s.events <- ev:
	case <-s.doneCh:
	}
}

// deliverErr closes out the subscription with a terminal error event, used
// when the connection orchestrator exhausts its restart budget.
func (s *Subscription) deliverErr(chainName string, err error) {
	select {
	case s.events <- Event{Kind: EventErr, Err: &errs.TransportError{Chain: chainName, Err: err}}:
	default:
	}
	s.Unsubscribe()
}
