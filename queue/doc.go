// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package queue provides the bounded event queue that sits between
// producers and the single drain goroutine on each side of a session.
//
// An [EventQueue] holds at most its capacity of events in strict
// insertion order. When full, Enqueue discards the oldest event to
// make room and counts the loss in [EventQueue.Dropped]; producers
// never block and never see an error. Memory use is therefore bounded
// regardless of how long the console is absent.
//
// Every Enqueue posts a non-blocking signal on the capacity-1
// [EventQueue.Notify] channel. A drain goroutine selects on it
// alongside its context, then empties the queue:
//
//	for {
//		select {
//		case <-ctx.Done():
//			return
//		case <-q.Notify():
//		}
//		for {
//			e, ok := q.Peek()
//			if !ok || send(e) != nil {
//				break
//			}
//			q.Dequeue()
//		}
//	}
//
// Any number of goroutines may call Enqueue concurrently.
package queue
