// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the time source for every timer in the inspection
// session subsystem.
//
// Only two waits in the subsystem are time-bounded: the boot timeout
// that discards early events when no console arrives, and the blob
// upload timeout. Both are one-shot. Components that arm them hold a
// [Clock] rather than calling the time package, so tests can drive
// them with [Fake]:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	controller := session.New(session.Config{Clock: fake, ...})
//	controller.Start(ctx)
//	fake.WaitForTimers(1)         // boot timer armed
//	fake.Advance(5 * time.Second) // boot timer fires synchronously
//
// [Real] wraps the standard library for production.
package clock
