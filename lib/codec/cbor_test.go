// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

type testFrame struct {
	Kind     uint8  `cbor:"1,keyasint"`
	Sequence uint64 `cbor:"2,keyasint"`
	Body     []byte `cbor:"3,keyasint,omitempty"`
}

func TestMarshalIsDeterministic(t *testing.T) {
	value := map[string]any{"zeta": 1, "alpha": 2, "mid": []any{"a", "b"}}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding not deterministic: %x vs %x", first, again)
		}
	}
}

func TestUntypedMapsDecodeWithStringKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"outer": map[string]any{"inner": "value"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	outer, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded type = %T, want map[string]any", decoded)
	}
	inner, ok := outer["outer"].(map[string]any)
	if !ok {
		t.Fatalf("nested type = %T, want map[string]any", outer["outer"])
	}
	if inner["inner"] != "value" {
		t.Fatalf("inner = %v, want value", inner["inner"])
	}
}

func TestStreamFrames(t *testing.T) {
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for sequence := uint64(1); sequence <= 3; sequence++ {
		if err := encoder.Encode(testFrame{Kind: 1, Sequence: sequence, Body: []byte("x")}); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for want := uint64(1); want <= 3; want++ {
		var frame testFrame
		if err := decoder.Decode(&frame); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if frame.Sequence != want {
			t.Fatalf("Sequence = %d, want %d", frame.Sequence, want)
		}
	}
}
