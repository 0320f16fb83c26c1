// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || freebsd || netbsd || openbsd

package plugins

import "golang.org/x/sys/unix"

func duplicateFD(fd int) (int, error) { return unix.Dup(fd) }

func redirectFD(from, to int) error { return unix.Dup2(from, to) }

func closeFD(fd int) { unix.Close(fd) }
