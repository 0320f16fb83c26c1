// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hostconfig

import (
	"testing"

	"github.com/bureau-foundation/inspect/lib/testutil"
)

const sampleConfig = `{
	// Analytics settings for the storefront.
	"analytics.server": "metrics.example.com",
	"analytics.batchLimit": 5,
	/* disabled until the next release */
	"feature.darkMode": false,
}`

func TestLoadJSONC(t *testing.T) {
	path := testutil.WriteFile(t, "host.jsonc", sampleConfig)

	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	value, ok := store.Get("analytics.server")
	if !ok || value != "metrics.example.com" {
		t.Fatalf("analytics.server = %v (present=%v)", value, ok)
	}
	// JSON numbers decode as float64.
	if value, _ := store.Get("analytics.batchLimit"); value != float64(5) {
		t.Fatalf("analytics.batchLimit = %v (%T)", value, value)
	}
	if value, _ := store.Get("feature.darkMode"); value != false {
		t.Fatalf("feature.darkMode = %v", value)
	}
}

func TestParseRejectsNonObject(t *testing.T) {
	if _, err := Parse([]byte(`[1, 2, 3]`)); err == nil {
		t.Fatal("expected error for top-level array")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/host.jsonc"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSetDeleteNotify(t *testing.T) {
	store := New(map[string]any{"a": 1})

	var changes []Change
	store.OnChange(func(change Change) { changes = append(changes, change) })

	store.Set("b", "two")
	store.Delete("a")
	store.Delete("missing")

	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d: %+v", len(changes), changes)
	}
	if changes[0].Key != "b" || changes[0].Value != "two" || changes[0].Deleted {
		t.Errorf("first change = %+v", changes[0])
	}
	if changes[1].Key != "a" || !changes[1].Deleted {
		t.Errorf("second change = %+v", changes[1])
	}
	if _, ok := store.Get("a"); ok {
		t.Error("deleted key still present")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	store := New(map[string]any{"key": "original"})
	snapshot := store.Snapshot()
	snapshot["key"] = "mutated"

	if value, _ := store.Get("key"); value != "original" {
		t.Fatalf("snapshot mutation leaked into store: %v", value)
	}
}
