package compute

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallelFor_CoversRange(t *testing.T) {
	backends := []Backend{NewCPUBackend(4), NewSerialBackend(), NewCPUBackend(1)}
	for _, b := range backends {
		t.Run(b.Name(), func(t *testing.T) {
			for _, grain := range []int{0, 1, 7, 64, 1000} {
				n := 517
				hits := make([]int32, n)
				b.ParallelFor(n, grain, func(start, end int) {
					for i := start; i < end; i++ {
						atomic.AddInt32(&hits[i], 1)
					}
				})
				for i, h := range hits {
					require.Equalf(t, int32(1), h, "index %d visited %d times (grain %d)", i, h, grain)
				}
			}
		})
	}
}

func TestParallelFor_Empty(t *testing.T) {
	called := false
	NewCPUBackend(4).ParallelFor(0, 8, func(int, int) { called = true })
	assert.False(t, called)
}

func TestSlots_Overflow(t *testing.T) {
	s := NewSlots(2, 3)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Claim(0)
		}()
	}
	wg.Wait()
	s.Claim(1)

	assert.Equal(t, 3, s.Count(0))
	assert.Equal(t, 1, s.Count(1))
	assert.Equal(t, 5, s.Overflowed())

	s.Reset(2, 8)
	assert.Equal(t, 0, s.Count(0))
	assert.Equal(t, 0, s.Overflowed())
	assert.Equal(t, 8, s.Capacity())
}

func TestOverflow_Max(t *testing.T) {
	var o Overflow
	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			o.Observe(v)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 100, o.Max())
}

func TestByName(t *testing.T) {
	b, ok := ByName("serial", 0)
	require.True(t, ok)
	assert.Equal(t, "serial", b.Name())

	_, ok = ByName("cuda", 0)
	assert.False(t, ok)
}
