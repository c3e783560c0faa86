package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTrailingEdge(t *testing.T) {
	d := New(30 * time.Millisecond)
	var calls atomic.Int32
	var last atomic.Int32
	done := make(chan struct{}, 1)

	for i := 1; i <= 5; i++ {
		v := int32(i)
		d.Call(func() {
			calls.Add(1)
			last.Store(v)
			done <- struct{}{}
		})
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("debounced call never ran")
	}
	time.Sleep(60 * time.Millisecond)

	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
	if last.Load() != 5 {
		t.Errorf("expected the latest call to win, got %d", last.Load())
	}
	if d.Pending() {
		t.Error("nothing should be pending after the call ran")
	}
}

func TestCancel(t *testing.T) {
	d := New(20 * time.Millisecond)
	var calls atomic.Int32

	d.Call(func() { calls.Add(1) })
	if !d.Pending() {
		t.Fatal("expected a pending call")
	}
	if !d.Cancel() {
		t.Error("Cancel should report the pending call")
	}
	if d.Cancel() {
		t.Error("second Cancel should find nothing pending")
	}

	time.Sleep(60 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("cancelled call ran %d times", calls.Load())
	}
}

func TestCallAfterCancel(t *testing.T) {
	d := New(10 * time.Millisecond)
	done := make(chan struct{})

	d.Call(func() { t.Error("cancelled call ran") })
	d.Cancel()
	d.Call(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("call scheduled after Cancel never ran")
	}
}
