package safego

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestGo_RunsFunction(t *testing.T) {
	done := make(chan struct{})
	Go(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("function was not executed")
	}
}

func TestGo_RecoversPanic(t *testing.T) {
	var after atomic.Bool
	done := make(chan struct{})
	Go(func() {
		defer close(done)
		panic("boom")
	})
	<-done
	// If the panic escaped the launcher the test binary would have crashed;
	// reaching this point is the assertion.
	after.Store(true)
	if !after.Load() {
		t.Fatal("unreachable")
	}
}
