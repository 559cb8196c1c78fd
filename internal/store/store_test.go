package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStamperTruncatesToMicroseconds(t *testing.T) {
	clock := time.Date(2024, 5, 1, 10, 0, 0, 123456789, time.FixedZone("CEST", 2*60*60))
	s := newStamper(func() time.Time { return clock })

	ts := s.next("A")

	assert.Equal(t, time.UTC, ts.Location())
	assert.Equal(t, 123456000, ts.Nanosecond())
	assert.True(t, ts.Equal(ts.Truncate(time.Microsecond)))
}

func TestStamperWallClockStampsMatchStorageResolution(t *testing.T) {
	s := newStamper(nil)
	for i := 0; i < 100; i++ {
		ts := s.next("A")
		assert.Zero(t, ts.Nanosecond()%int(time.Microsecond), "stamp %s", ts)
	}
}
