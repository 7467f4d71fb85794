package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFake_AdvanceFiresWaiters(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f := NewFake(start)

	early := f.After(time.Minute)
	late := f.After(time.Hour)
	assert.Equal(t, 2, f.Pending())

	f.Advance(2 * time.Minute)

	select {
	case got := <-early:
		assert.Equal(t, start.Add(2*time.Minute), got)
	default:
		t.Fatal("expected early waiter to fire")
	}

	select {
	case <-late:
		t.Fatal("late waiter fired too soon")
	default:
	}
	assert.Equal(t, 1, f.Pending())
}

func TestFake_AfterNonPositiveFiresImmediately(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	select {
	case <-f.After(0):
	default:
		t.Fatal("expected immediate fire")
	}
}
