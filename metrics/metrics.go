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

// Package metrics exposes Sieve's Prometheus gauges/counters: ingest_lag,
// dispatch_latency_seconds, decode_cache_hits_total/decode_cache_misses_total
// and subscription_count, in the
// style of coreth's and 0xsequence/ethkit's use of
// github.com/prometheus/client_golang for node-adjacent services.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sieve-xyz/sieve/chain"
	"github.com/sieve-xyz/sieve/types"
)

// Recorder bundles every metric Sieve's ingestion and dispatch paths feed.
// It implements ingest.LagRecorder directly so a *Recorder can be passed
// wherever that interface is expected.
type Recorder struct {
	ingestLag     *prometheus.GaugeVec
	dispatchLat   *prometheus.HistogramVec
	decodeHits    *prometheus.CounterVec
	decodeMisses  *prometheus.CounterVec
	subscriptions prometheus.Gauge
}

// NewRecorder builds a Recorder and registers its collectors with reg. Pass
// prometheus.NewRegistry() for an isolated registry (tests) or nil to use
// the global default registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		ingestLag: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sieve",
			Name:      "ingest_lag",
			Help:      "Depth of the per-chain ingestion pipeline's outbound channel when a producer last blocked on it.",
		}, []string{"chain"}),
		dispatchLat: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sieve",
			Name:      "dispatch_latency_seconds",
			Help:      "Time spent matching one ingested item against a shard's candidate subscriptions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"chain", "kind"}),
		decodeHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sieve",
			Name:      "decode_cache_hits_total",
			Help:      "Decode cache lookups satisfied without invoking the ABI decoder.",
		}, []string{"chain"}),
		decodeMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sieve",
			Name:      "decode_cache_misses_total",
			Help:      "Decode cache lookups that invoked the ABI decoder.",
		}, []string{"chain"}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sieve",
			Name:      "subscription_count",
			Help:      "Number of live subscriptions across subscribe/subscribe_all/watch_within.",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(r.ingestLag, r.dispatchLat, r.decodeHits, r.decodeMisses, r.subscriptions)
	return r
}

// SetIngestLag implements ingest.LagRecorder.
func (r *Recorder) SetIngestLag(c chain.Tag, depth int) {
	r.ingestLag.WithLabelValues(c.String()).Set(float64(depth))
}

// ObserveDispatchLatency implements subscription.DispatchRecorder.
func (r *Recorder) ObserveDispatchLatency(c chain.Tag, kind types.Kind, d time.Duration) {
	r.dispatchLat.WithLabelValues(c.String(), kind.String()).Observe(d.Seconds())
}

// DecodeCacheHit records one decode-cache hit for c.
func (r *Recorder) DecodeCacheHit(c chain.Tag) { r.decodeHits.WithLabelValues(c.String()).Inc() }

// DecodeCacheMiss records one decode-cache miss for c.
func (r *Recorder) DecodeCacheMiss(c chain.Tag) { r.decodeMisses.WithLabelValues(c.String()).Inc() }

// SetSubscriptionCount sets the live-subscription gauge.
func (r *Recorder) SetSubscriptionCount(n int) { r.subscriptions.Set(float64(n)) }
