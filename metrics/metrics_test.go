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

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/sieve-xyz/sieve/chain"
	"github.com/sieve-xyz/sieve/types"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m io_prometheus_client.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestNewRecorderRegistersAgainstIsolatedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)
	require.NotNil(t, r)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestSetIngestLagRecordsPerChain(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())
	r.SetIngestLag(chain.Ethereum, 42)

	g := r.ingestLag.WithLabelValues(chain.Ethereum.String())
	require.Equal(t, float64(42), gaugeValue(t, g))
}

func TestObserveDispatchLatencyDoesNotPanic(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())
	require.NotPanics(t, func() {
		r.ObserveDispatchLatency(chain.Ethereum, types.KindLog, 5*time.Millisecond)
	})
}

func TestDecodeCacheHitAndMissCounters(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())
	r.DecodeCacheHit(chain.Ethereum)
	r.DecodeCacheHit(chain.Ethereum)
	r.DecodeCacheMiss(chain.Ethereum)

	var hit, miss io_prometheus_client.Metric
	require.NoError(t, r.decodeHits.WithLabelValues(chain.Ethereum.String()).Write(&hit))
	require.NoError(t, r.decodeMisses.WithLabelValues(chain.Ethereum.String()).Write(&miss))
	require.Equal(t, float64(2), hit.GetCounter().GetValue())
	require.Equal(t, float64(1), miss.GetCounter().GetValue())
}

func TestSetSubscriptionCount(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())
	r.SetSubscriptionCount(7)
	require.Equal(t, float64(7), gaugeValue(t, r.subscriptions))
}
