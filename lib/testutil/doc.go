// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for inspect packages.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so tests that wait on delegate callbacks or drain goroutines
// fail with a message instead of hanging. They are the only place in
// the test suite where real wall-clock timeouts are used; everything
// else runs on lib/clock's fake.
//
// [UniqueID] produces distinguishable identifiers for events and
// sessions without consulting the wall clock.
//
// [WriteFile] writes a fixture into a per-test temporary directory.
//
// All helpers call t.Fatalf on failure.
package testutil
