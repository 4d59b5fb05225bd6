package nativeload

import (
	"sync"
	"testing"
)

func TestFlagStateLockReentrant(t *testing.T) {
	s := NewFlagState(initial)
	s.Lock()
	s.Lock()
	s.Unlock()
	var w sync.WaitGroup
	got := make(chan struct{})
	w.Add(1)
	go func() {
		defer w.Done()
		s.Lock()
		close(got)
		s.Unlock()
	}()
	select {
	case <-got:
		t.Fatal("lock released while still held once")
	default:
	}
	s.Unlock()
	w.Wait()
	s.Lock()
	s.Unlock()
}

func TestGoid(t *testing.T) {
	id := goid()
	if id <= 0 || goid() != id {
		t.Fatalf("goid %d", id)
	}
	other := make(chan int64)
	go func() { other <- goid() }()
	if <-other == id {
		t.Error("goroutines share an id")
	}
}
