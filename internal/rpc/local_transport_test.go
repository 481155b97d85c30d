package rpc

import (
	"context"
	"testing"
	"time"

	"github.com/swarmguard/bcdsolver/internal/block"
)

func TestLocalTransportPushThenAwaitPushes(t *testing.T) {
	lt := NewLocalTransport()
	ctx := context.Background()

	msg1 := PushMsg{WorkerID: "w0", BlockID: 1, KeyRange: block.KeyRange{Start: 0, End: 2}, G: []float64{1, 2}, U: []float64{3, 4}}
	msg2 := PushMsg{WorkerID: "w1", BlockID: 1, KeyRange: block.KeyRange{Start: 0, End: 2}, G: []float64{5, 6}, U: []float64{7, 8}}

	if err := lt.Push(ctx, "server-0", msg1, 3); err != nil {
		t.Fatalf("Push msg1: %v", err)
	}
	if err := lt.Push(ctx, "server-0", msg2, 3); err != nil {
		t.Fatalf("Push msg2: %v", err)
	}

	got, err := lt.AwaitPushes(ctx, "server-0", 1, 3, 2)
	if err != nil {
		t.Fatalf("AwaitPushes: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("AwaitPushes returned %d messages, want 2", len(got))
	}
}

func TestLocalTransportAwaitPushesBlocksUntilExpectedCount(t *testing.T) {
	lt := NewLocalTransport()
	ctx := context.Background()

	done := make(chan []PushMsg, 1)
	go func() {
		got, err := lt.AwaitPushes(ctx, "server-0", 1, 5, 2)
		if err != nil {
			t.Errorf("AwaitPushes: %v", err)
		}
		done <- got
	}()

	select {
	case <-done:
		t.Fatalf("AwaitPushes returned before both pushes arrived")
	case <-time.After(50 * time.Millisecond):
	}

	if err := lt.Push(ctx, "server-0", PushMsg{WorkerID: "w0"}, 5); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := lt.Push(ctx, "server-0", PushMsg{WorkerID: "w1"}, 5); err != nil {
		t.Fatalf("Push: %v", err)
	}

	select {
	case got := <-done:
		if len(got) != 2 {
			t.Fatalf("got %d pushes, want 2", len(got))
		}
	case <-time.After(time.Second):
		t.Fatalf("AwaitPushes did not unblock after both pushes arrived")
	}
}

func TestLocalTransportFinishThenPull(t *testing.T) {
	lt := NewLocalTransport()
	ctx := context.Background()
	seg := WeightSegment{KeyRange: block.KeyRange{Start: 0, End: 2}, Values: []float64{1.5, 2.5}}

	done := make(chan WeightSegment, 1)
	go func() {
		got, err := lt.Pull(ctx, "server-0", 1, 7)
		if err != nil {
			t.Errorf("Pull: %v", err)
		}
		done <- got
	}()

	select {
	case <-done:
		t.Fatalf("Pull returned before Finish was called")
	case <-time.After(50 * time.Millisecond):
	}

	if err := lt.Finish(ctx, "server-0", 1, 7, seg); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	select {
	case got := <-done:
		if got.KeyRange != seg.KeyRange || len(got.Values) != 2 {
			t.Fatalf("Pull returned %+v, want %+v", got, seg)
		}
	case <-time.After(time.Second):
		t.Fatalf("Pull did not unblock after Finish")
	}
}

func TestLocalTransportAwaitPushesReturnsOnCancel(t *testing.T) {
	lt := NewLocalTransport()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := lt.AwaitPushes(ctx, "server-0", 1, 9, 10)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("AwaitPushes returned nil error after context cancellation")
		}
	case <-time.After(time.Second):
		t.Fatalf("AwaitPushes did not return after context cancellation")
	}
}
