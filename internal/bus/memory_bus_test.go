// SPDX-License-Identifier: MIT

package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryBusDeliversInOrder(t *testing.T) {
	b := NewMemoryBus()
	sub, err := b.Subscribe(context.Background(), "job-1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Publish(context.Background(), "job-1", Event{
			JobID: "job-1", Kind: KindProgress, Progress: i * 10,
		}))
	}

	for i := 0; i < 3; i++ {
		select {
		case ev := <-sub.C():
			require.Equal(t, i*10, ev.Progress)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestMemoryBusTopicsAreIsolated(t *testing.T) {
	b := NewMemoryBus()
	subA, err := b.Subscribe(context.Background(), "job-a")
	require.NoError(t, err)
	t.Cleanup(func() { _ = subA.Close() })

	require.NoError(t, b.Publish(context.Background(), "job-b", Event{JobID: "job-b", Kind: KindComplete}))

	select {
	case ev := <-subA.C():
		t.Fatalf("unexpected event on other topic: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBusPublishContextTimeout(t *testing.T) {
	b := NewMemoryBus()
	sub, err := b.Subscribe(context.Background(), "job-1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	// Fill the subscriber channel so the next publish blocks.
	for i := 0; i < cap(sub.C()); i++ {
		require.NoError(t, b.Publish(context.Background(), "job-1", Event{Kind: KindProgress}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = b.Publish(ctx, "job-1", Event{Kind: KindProgress})
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryBusPublishRejectsNilContext(t *testing.T) {
	b := NewMemoryBus()
	err := b.Publish(nil, "job-1", Event{}) //nolint:staticcheck
	require.Error(t, err)
	require.Contains(t, err.Error(), "context is nil")
}

func TestMemoryBusCloseStopsDelivery(t *testing.T) {
	b := NewMemoryBus()
	sub, err := b.Subscribe(context.Background(), "job-1")
	require.NoError(t, err)
	require.NoError(t, sub.Close())

	// Channel is closed after Close.
	_, open := <-sub.C()
	require.False(t, open)

	// Publishing to a topic with no subscribers is a no-op.
	require.NoError(t, b.Publish(context.Background(), "job-1", Event{Kind: KindProgress}))
}
