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

// Package errs holds Sieve's small, stable set of error kinds, kept in
// their own leaf package so every other package (filter, ingest, conn,
// subscription, and the root façade) can return them without import
// cycles.
package errs

import "fmt"

// ConfigError signals invalid chain configuration or conflicting options.
type ConfigError struct{ Msg string }

func (e *ConfigError) Error() string { return "config: " + e.Msg }

// FilterBuildError signals a type mismatch, scope mismatch, empty
// combinator group, or invalid range detected at Filter build time.
type FilterBuildError struct{ Msg string }

func (e *FilterBuildError) Error() string { return "filter build: " + e.Msg }

// TransportError wraps an RPC/WS failure. Transport errors are retried
// internally; they only surface to a caller after the supervisor gives up.
type TransportError struct {
	Chain string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport(%s): %v", e.Chain, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError signals a malformed payload or ABI decode failure. It is
// logged and recovered locally: the affected field resolves absent rather
// than aborting delivery of the item.
type DecodeError struct {
	Signature string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode(%s): %v", e.Signature, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// BackpressureError is observability-only: it indicates a subscription's
// Block-policy outbound queue is full and the producer has stalled.
type BackpressureError struct{ SubID uint64 }

func (e *BackpressureError) Error() string {
	return fmt.Sprintf("backpressure: subscription %d queue full", e.SubID)
}

// CancelledError signals an operation aborted by the caller or by shutdown.
// It is never surfaced as a stream error; streams close cleanly instead.
type CancelledError struct{ Reason string }

func (e *CancelledError) Error() string { return "cancelled: " + e.Reason }
