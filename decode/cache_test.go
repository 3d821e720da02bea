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

package decode

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestCacheMemoizesAcrossCalls(t *testing.T) {
	c := NewCache(16)
	var calls atomic.Int32
	compute := func() (map[string]any, error) {
		calls.Add(1)
		return map[string]any{"method": "transfer"}, nil
	}

	hash := common.HexToHash("0x01")
	v1, err := c.GetOrCompute(hash, "sig", compute)
	require.NoError(t, err)
	v2, err := c.GetOrCompute(hash, "sig", compute)
	require.NoError(t, err)

	require.Equal(t, v1, v2)
	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, 1, c.Len())
}

func TestCacheDistinctSignaturesAreDistinctEntries(t *testing.T) {
	c := NewCache(16)
	hash := common.HexToHash("0x01")
	_, err := c.GetOrCompute(hash, "sigA", func() (map[string]any, error) {
		return map[string]any{"a": 1}, nil
	})
	require.NoError(t, err)
	_, err = c.GetOrCompute(hash, "sigB", func() (map[string]any, error) {
		return map[string]any{"b": 2}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())
}

func TestCacheConcurrentCallsCoalesce(t *testing.T) {
	c := NewCache(16)
	var calls atomic.Int32
	hash := common.HexToHash("0x02")

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := c.GetOrCompute(hash, "sig", func() (map[string]any, error) {
				calls.Add(1)
				time.Sleep(10 * time.Millisecond)
				return map[string]any{"x": 1}, nil
			})
			require.NoError(t, err)
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
}

func TestCachePropagatesComputeError(t *testing.T) {
	c := NewCache(16)
	hash := common.HexToHash("0x03")
	_, err := c.GetOrCompute(hash, "sig", func() (map[string]any, error) {
		return nil, assertErr
	})
	require.ErrorIs(t, err, assertErr)
	require.Equal(t, 0, c.Len())
}

var assertErr = &decodeTestError{"boom"}

type decodeTestError struct{ msg string }

func (e *decodeTestError) Error() string { return e.msg }

func TestNewCacheDefaultsCapacity(t *testing.T) {
	c := NewCache(0)
	require.NotNil(t, c)
}
