package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSchedule_RunsPeriodically(t *testing.T) {
	s := New(100 * time.Millisecond)
	s.Start()
	defer s.Stop()

	var runs int32
	err := s.Schedule("surface-1", func() { atomic.AddInt32(&runs, 1) })
	assert.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 2 }, 3*time.Second, 20*time.Millisecond)
}

func TestSchedule_ReplacesExistingJob(t *testing.T) {
	s := New(time.Hour)
	s.Start()
	defer s.Stop()

	assert.NoError(t, s.Schedule("surface-1", func() {}))
	assert.NoError(t, s.Schedule("surface-1", func() {}))
	assert.NoError(t, s.Schedule("surface-2", func() {}))
	assert.Equal(t, 2, s.Len())
}

func TestCancel_StopsFurtherRuns(t *testing.T) {
	s := New(100 * time.Millisecond)
	s.Start()
	defer s.Stop()

	var runs int32
	assert.NoError(t, s.Schedule("surface-1", func() { atomic.AddInt32(&runs, 1) }))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 1 }, 3*time.Second, 20*time.Millisecond)

	s.Cancel("surface-1")
	assert.Equal(t, 0, s.Len())
	after := atomic.LoadInt32(&runs)
	time.Sleep(300 * time.Millisecond)
	assert.LessOrEqual(t, atomic.LoadInt32(&runs), after+1)

	// Unknown tags are ignored.
	s.Cancel("never-armed")
}

func TestNew_DefaultInterval(t *testing.T) {
	s := New(0)
	assert.Equal(t, 5*time.Minute, s.interval)
}
