// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd

package plugins

import "errors"

var errUnsupported = errors.New("descriptor redirection is not supported on this platform")

func duplicateFD(int) (int, error) { return -1, errUnsupported }

func redirectFD(int, int) error { return errUnsupported }

func closeFD(int) {}
