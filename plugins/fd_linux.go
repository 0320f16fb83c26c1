// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package plugins

import "golang.org/x/sys/unix"

func duplicateFD(fd int) (int, error) { return unix.Dup(fd) }

// redirectFD makes to refer to the same open file as from. Linux on
// arm64 has no dup2, so dup3 is used everywhere.
func redirectFD(from, to int) error { return unix.Dup3(from, to, 0) }

func closeFD(fd int) { unix.Close(fd) }
