package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequestDeduplicator(t *testing.T) {
	d := NewRequestDeduplicator(time.Second)
	base := time.Unix(1000, 0)
	now := base
	d.now = func() time.Time { return now }
	d.lastCleanup = base

	assert.False(t, d.IsDuplicate("req-1"))
	assert.True(t, d.IsDuplicate("req-1"))
	assert.False(t, d.IsDuplicate(""))
	assert.False(t, d.IsDuplicate(""))

	now = base.Add(1500 * time.Millisecond)
	assert.False(t, d.IsDuplicate("req-1"), "window elapsed")

	d.Forget("req-1")
	assert.False(t, d.IsDuplicate("req-1"))
}

func TestRequestDeduplicatorCleanup(t *testing.T) {
	d := NewRequestDeduplicator(time.Second)
	base := time.Unix(1000, 0)
	now := base
	d.now = func() time.Time { return now }
	d.lastCleanup = base

	d.IsDuplicate("a")
	d.IsDuplicate("b")

	now = base.Add(time.Minute)
	d.IsDuplicate("c")

	assert.Len(t, d.seen, 1)
	assert.Contains(t, d.seen, "c")
}
