package ksync

import (
	"sync"
	"testing"
	"time"

	"defs"
)

func TestSpinMutexExclusion(t *testing.T) {
	m := NewSpinMutex()
	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock()
			counter++
			m.Unlock()
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("counter = %d want 50", counter)
	}
}

func TestBlockingMutexIsLocking(t *testing.T) {
	m := NewBlockingMutex()
	if m.IsLocking() {
		t.Fatal("fresh mutex should be unlocked")
	}
	m.Lock()
	if !m.IsLocking() {
		t.Fatal("should report locked")
	}
	m.Unlock()
	if m.IsLocking() {
		t.Fatal("should report unlocked after Unlock")
	}
}

func TestSemaphoreUpDown(t *testing.T) {
	d := NewDomain()
	s := d.NewSemaphore(1)
	if err := s.Down(1); err != 0 {
		t.Fatalf("down on available resource failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.Down(2) // should block until task 1 ups
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second down should have blocked")
	case <-time.After(20 * time.Millisecond):
	}

	s.Up(1)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("down never woke after up")
	}
}

func TestDeadlockDetectRejectsUnsafeRequest(t *testing.T) {
	d := NewDomain()
	d.EnableDeadlockDetect()
	a := d.NewSemaphore(1)
	b := d.NewSemaphore(1)

	if err := a.Down(1); err != 0 {
		t.Fatalf("task1 down a: %v", err)
	}
	if err := b.Down(2); err != 0 {
		t.Fatalf("task2 down b: %v", err)
	}

	// task1 now wants b (held by task2); safe so far since nobody else
	// wants anything yet -- work covers task2 finishing and releasing b.
	// Simulate the classic deadlock: task2 also wants a.
	go func() { a.Down(2) }()
	time.Sleep(10 * time.Millisecond)

	if err := b.Down(1); err != defs.EDEADLK {
		t.Fatalf("expected EDEADLK, got %v", err)
	}
}

func TestCondvarSignalWakesWaiter(t *testing.T) {
	m := NewBlockingMutex()
	cv := NewCondvar()
	ready := make(chan struct{})
	woke := make(chan struct{})

	m.Lock()
	go func() {
		m.Lock()
		close(ready)
		cv.Wait(m)
		close(woke)
		m.Unlock()
	}()
	m.Unlock()

	<-ready
	time.Sleep(10 * time.Millisecond)
	cv.Signal()

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("waiter never woke")
	}
}
