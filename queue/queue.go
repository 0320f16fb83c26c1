// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"fmt"
	"sync"

	"github.com/bureau-foundation/inspect/event"
)

// DefaultCapacity is the capacity used by the session controller for
// both of its queues.
const DefaultCapacity = 200

// EventQueue is a count-bounded FIFO of events with drop-oldest
// overflow. Safe for concurrent use.
type EventQueue struct {
	mutex    sync.Mutex
	entries  []event.Event
	capacity int
	dropped  uint64
	notify   chan struct{}
}

// New creates an EventQueue holding at most capacity events. The
// capacity must be positive.
func New(capacity int) *EventQueue {
	if capacity <= 0 {
		panic(fmt.Sprintf("queue: capacity must be positive, got %d", capacity))
	}
	return &EventQueue{
		entries:  make([]event.Event, 0, capacity),
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

// Enqueue appends e, first discarding the oldest event if the queue
// is full, and signals Notify.
func (q *EventQueue) Enqueue(e event.Event) {
	q.mutex.Lock()
	if len(q.entries) == q.capacity {
		q.entries[0] = event.Event{}
		q.entries = q.entries[1:]
		q.dropped++
	}
	q.entries = append(q.entries, e)
	q.mutex.Unlock()

	q.Signal()
}

// Dequeue removes and returns the oldest event. ok is false if the
// queue is empty.
func (q *EventQueue) Dequeue() (e event.Event, ok bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if len(q.entries) == 0 {
		return event.Event{}, false
	}
	e = q.entries[0]
	q.entries[0] = event.Event{}
	q.entries = q.entries[1:]
	return e, true
}

// Peek returns the oldest event without removing it.
func (q *EventQueue) Peek() (event.Event, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if len(q.entries) == 0 {
		return event.Event{}, false
	}
	return q.entries[0], true
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.entries)
}

// Capacity returns the maximum number of queued events.
func (q *EventQueue) Capacity() int { return q.capacity }

// Clear discards every queued event. Discarded events are not counted
// as dropped.
func (q *EventQueue) Clear() {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	clear(q.entries)
	q.entries = q.entries[:0]
}

// Dropped returns how many events overflow has discarded since
// creation.
func (q *EventQueue) Dropped() uint64 {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.dropped
}

// Notify returns the channel that receives a signal after Enqueue or
// Signal. Signals coalesce: several Enqueues before the consumer runs
// yield one wakeup.
func (q *EventQueue) Notify() <-chan struct{} {
	return q.notify
}

// Signal wakes the consumer without enqueuing, for example after
// draining has been re-enabled.
func (q *EventQueue) Signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
