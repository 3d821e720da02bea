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

package conn

import (
	"sync"
	"time"

	"github.com/sieve-xyz/sieve/types"
)

// Demand is one chain's subscribe/unsubscribe reference count per item
// kind, driving fetcher start/stop: 0→1 starts immediately, 1→0 stops only
// after a quiescence period with no intervening re-subscribe, so a
// WatchWithin re-issuing filters across a window doesn't thrash a fetcher
// on and off.
type Demand struct {
	mu         sync.Mutex
	counts     map[types.Kind]int
	timers     map[types.Kind]*time.Timer
	quiescence time.Duration
	start      func(types.Kind)
	stop       func(types.Kind)
}

// NewDemand builds a Demand tracker. quiescence defaults to 30s when <= 0.
func NewDemand(quiescence time.Duration, start, stop func(types.Kind)) *Demand {
	if quiescence <= 0 {
		quiescence = 30 * time.Second
	}
	return &Demand{
		counts:     make(map[types.Kind]int),
		timers:     make(map[types.Kind]*time.Timer),
		quiescence: quiescence,
		start:      start,
		stop:       stop,
	}
}

// Inc registers one more subscriber interested in kind.
func (d *Demand) Inc(kind types.Kind) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, pending := d.timers[kind]
	if pending {
		t.Stop()
		delete(d.timers, kind)
	}
	d.counts[kind]++
	if d.counts[kind] == 1 && !pending {
		d.start(kind)
	}
}

// Dec releases one subscriber's interest in kind. The fetcher is only
// actually stopped after quiescence elapses with the count still at zero.
func (d *Demand) Dec(kind types.Kind) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.counts[kind] == 0 {
		return
	}
	d.counts[kind]--
	if d.counts[kind] != 0 {
		return
	}
	d.timers[kind] = time.AfterFunc(d.quiescence, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.counts[kind] == 0 {
			d.stop(kind)
		}
		delete(d.timers, kind)
	})
}

// Count reports the current subscriber count for kind, for tests and
// metrics.
func (d *Demand) Count(kind types.Kind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[kind]
}
