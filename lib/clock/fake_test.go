// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAfterFuncFiresOnlyAtDeadline(t *testing.T) {
	fake := Fake(epoch)
	fired := 0
	fake.AfterFunc(5*time.Second, func() { fired++ })

	fake.Advance(4 * time.Second)
	if fired != 0 {
		t.Fatalf("callback fired %d times before deadline", fired)
	}
	fake.Advance(time.Second)
	if fired != 1 {
		t.Fatalf("callback fired %d times at deadline, want 1", fired)
	}
	fake.Advance(time.Minute)
	if fired != 1 {
		t.Fatalf("one-shot callback fired %d times, want 1", fired)
	}
}

func TestFakeAfterFuncStop(t *testing.T) {
	fake := Fake(epoch)
	fired := false
	timer := fake.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Fatal("Stop on armed timer returned false")
	}
	if timer.Stop() {
		t.Fatal("second Stop returned true")
	}
	fake.Advance(time.Hour)
	if fired {
		t.Fatal("stopped timer fired")
	}
	if fake.PendingCount() != 0 {
		t.Fatalf("PendingCount = %d, want 0", fake.PendingCount())
	}
}

func TestFakeAfterChannel(t *testing.T) {
	fake := Fake(epoch)
	channel := fake.After(30 * time.Second)

	select {
	case <-channel:
		t.Fatal("After fired before Advance")
	default:
	}

	fake.Advance(30 * time.Second)
	select {
	case got := <-channel:
		if want := epoch.Add(30 * time.Second); !got.Equal(want) {
			t.Fatalf("After delivered %v, want %v", got, want)
		}
	default:
		t.Fatal("After did not fire")
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	fake := Fake(epoch)
	done := make(chan struct{})
	go func() {
		<-fake.After(time.Second)
		close(done)
	}()

	fake.WaitForTimers(1)
	fake.Advance(time.Second)
	<-done
}

func TestFakeFiresInDeadlineOrder(t *testing.T) {
	fake := Fake(epoch)
	var order []int
	fake.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	fake.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	fake.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	fake.Advance(10 * time.Second)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("fire order = %v, want [1 2 3]", order)
	}
}
