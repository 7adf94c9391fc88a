package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvocationQueueFIFO(t *testing.T) {
	q := newInvocationQueue()

	for _, target := range []string{"a", "b", "c"} {
		require.True(t, q.push(&Invocation{Target: target}))
	}

	for _, want := range []string{"a", "b", "c"} {
		inv, ok := q.pop()
		require.True(t, ok)
		assert.Equal(t, want, inv.Target)
	}
}

func TestInvocationQueuePopBlocksUntilPush(t *testing.T) {
	q := newInvocationQueue()

	got := make(chan string, 1)
	go func() {
		inv, ok := q.pop()
		if ok {
			got <- inv.Target
		}
	}()

	select {
	case <-got:
		t.Fatal("pop returned before push")
	case <-time.After(50 * time.Millisecond):
	}

	q.push(&Invocation{Target: "late"})

	select {
	case target := <-got:
		assert.Equal(t, "late", target)
	case <-time.After(time.Second):
		t.Fatal("pop did not return")
	}
}

func TestInvocationQueueClose(t *testing.T) {
	q := newInvocationQueue()
	q.push(&Invocation{Target: "dropped"})

	done := make(chan bool, 1)
	q.close(true)
	go func() {
		_, ok := q.pop()
		done <- ok
	}()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("pop did not return after close")
	}

	assert.False(t, q.push(&Invocation{Target: "late"}))
}

func TestInvocationQueueDrainsAfterClose(t *testing.T) {
	q := newInvocationQueue()
	q.push(&Invocation{Target: "a"})
	q.push(&Invocation{Target: "b"})
	q.close(false)

	assert.False(t, q.push(&Invocation{Target: "late"}))

	inv, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, "a", inv.Target)

	inv, ok = q.pop()
	require.True(t, ok)
	assert.Equal(t, "b", inv.Target)

	_, ok = q.pop()
	assert.False(t, ok)
}
