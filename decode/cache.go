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

// Package decode provides bounded, single-writer-per-key memoization of
// ABI decode results. The ABI decoding itself is treated as an opaque pure
// function, supplied by the caller.
package decode

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"

	"github.com/ethereum/go-ethereum/common"
)

// Decoder turns a method/event signature and raw bytes into decoded named
// fields. It is the one pure-function boundary to the ABI library: given
// (signature, bytes) it returns decoded fields, with no other side effects.
type Decoder interface {
	Decode(signature string, data []byte) (map[string]any, error)
}

// DecoderFunc adapts a plain function to Decoder.
type DecoderFunc func(signature string, data []byte) (map[string]any, error)

func (f DecoderFunc) Decode(signature string, data []byte) (map[string]any, error) {
	return f(signature, data)
}

// key identifies one memoized decode: a payload identity (tx hash) and the
// signature used to decode it.
type key struct {
	hash common.Hash
	sig  string
}

// Cache is a bounded LRU memoization of decode results, with concurrent
// duplicate decodes for the same key collapsed into one in-flight call via
// singleflight. Cache holds no Decoder itself: the caller supplies the
// compute function on each call, so one Cache can memoize decodes driven
// by any Decoder.
type Cache struct {
	lru   *lru.Cache
	group singleflight.Group
}

// NewCache builds a decode cache of the given capacity (default 10_000).
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 10_000
	}
	c, err := lru.New(capacity)
	if err != nil {
		// lru.New only errors on capacity <= 0, excluded above.
		panic(fmt.Sprintf("decode: lru.New: %v", err))
	}
	return &Cache{lru: c}
}

// GetOrCompute returns the memoized decode for (hash, signature), invoking
// compute and storing its result on first request. Concurrent callers for
// the same key share one in-flight compute call.
func (c *Cache) GetOrCompute(hash common.Hash, signature string, compute func() (map[string]any, error)) (map[string]any, error) {
	k := key{hash, signature}
	if v, ok := c.lru.Get(k); ok {
		return v.(map[string]any), nil
	}
	v, err, _ := c.group.Do(fmt.Sprintf("%s:%s", hash, signature), func() (any, error) {
		decoded, err := compute()
		if err != nil {
			return nil, err
		}
		c.lru.Add(k, decoded)
		return decoded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

// Len reports the number of memoized entries, exposed for the
// decode_cache_capacity resource-cap tests and for metrics.
func (c *Cache) Len() int { return c.lru.Len() }
