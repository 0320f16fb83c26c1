// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	savedVersion, savedCommit, savedTime := Version, GitCommit, BuildTime
	t.Cleanup(func() { Version, GitCommit, BuildTime = savedVersion, savedCommit, savedTime })

	Version, GitCommit, BuildTime = "1.2.3", "abc1234", "2026-10-01T00:00:00Z"
	if got, want := Info(), "1.2.3 (abc1234, 2026-10-01T00:00:00Z)"; got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}
	if got := Short(); got != "1.2.3" {
		t.Errorf("Short() = %q, want 1.2.3", got)
	}
	full := Full()
	if !strings.HasPrefix(full, Info()) || !strings.Contains(full, runtime.Version()) {
		t.Errorf("Full() = %q", full)
	}
	if got := Platform(); got != runtime.GOOS+"/"+runtime.GOARCH {
		t.Errorf("Platform() = %q", got)
	}
}
