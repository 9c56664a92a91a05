package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStepClock_Advances(t *testing.T) {
	clock := NewStepClock(time.Millisecond)

	first := clock.Now()
	second := clock.Now()
	assert.Equal(t, time.Millisecond, second.Sub(first))
	assert.Equal(t, int64(2), clock.Ticks())
}

func TestStepClock_Reset(t *testing.T) {
	clock := NewStepClock(time.Second)
	clock.Now()
	clock.Now()
	clock.Reset()
	assert.Equal(t, int64(0), clock.Ticks())
	assert.Equal(t, time.Unix(1, 0).UTC(), clock.Now())
}

func TestStepClock_Concurrent(t *testing.T) {
	clock := NewStepClock(time.Microsecond)
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clock.Now()
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), clock.Ticks())
}

func TestSequentialRunIDs(t *testing.T) {
	g := NewSequentialRunIDs("")
	assert.Equal(t, "run-1", g.Generate())
	assert.Equal(t, "run-2", g.Generate())

	h := NewSequentialRunIDs("scenario")
	assert.Equal(t, "scenario-1", h.Generate())
}
