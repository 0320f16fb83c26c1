// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds binary entrypoint helpers: reporting the error
// returned by run() and exiting with the right status, before or after
// any structured logger exists.
package process
