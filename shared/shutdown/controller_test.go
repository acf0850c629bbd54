package shutdown

import (
	"testing"
	"time"
)

func TestShutdownWaitsForWaiters(t *testing.T) {
	c := NewController(false)
	w := c.NewWaiter("test waiter")

	done := make(chan struct{})
	go func() {
		c.Shutdown()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Shutdown returned before the waiter released")
	case <-time.After(50 * time.Millisecond):
	}

	w.Release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Shutdown did not return after waiter release")
	}
}

func TestWaiterDoneFiresOnTrigger(t *testing.T) {
	c := NewController(false)
	w := c.NewWaiter("test waiter")
	c.TriggerShutdown()

	select {
	case <-w.Done:
	case <-time.After(time.Second):
		t.Fatal("waiter Done channel did not fire")
	}
	w.Release()
}
