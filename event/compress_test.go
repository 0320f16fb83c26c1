// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"
)

func TestCompressRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte(`{"vendor":"com.example","type":"track"}`), 500)
	for _, algorithm := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(string(algorithm), func(t *testing.T) {
			compressed, err := Compress(data, algorithm)
			if err != nil {
				t.Fatalf("Compress: %v", err)
			}
			if algorithm != CompressionNone && len(compressed) >= len(data) {
				t.Fatalf("compressed %d bytes to %d", len(data), len(compressed))
			}
			restored, err := Decompress(compressed, algorithm, len(data))
			if err != nil {
				t.Fatalf("Decompress: %v", err)
			}
			if !bytes.Equal(restored, data) {
				t.Fatal("round trip mismatch")
			}
		})
	}
}

func TestCompressIncompressible(t *testing.T) {
	data := make([]byte, 4096)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("rand: %v", err)
	}
	for _, algorithm := range []Compression{CompressionLZ4, CompressionZstd} {
		if _, err := Compress(data, algorithm); !errors.Is(err, errIncompressible) {
			t.Errorf("%s: error = %v, want errIncompressible", algorithm, err)
		}
	}
}

func TestDecompressSizeMismatch(t *testing.T) {
	if _, err := Decompress([]byte("abc"), CompressionNone, 4); err == nil {
		t.Fatal("expected size mismatch error")
	}
}

func TestDecompressRejectsSizeOutOfRange(t *testing.T) {
	for _, algorithm := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		for _, size := range []int{-1, MaxEventSize + 1} {
			if _, err := Decompress([]byte("abc"), algorithm, size); err == nil {
				t.Errorf("Decompress(%s, size %d) succeeded, want error", algorithm, size)
			}
		}
	}
}

func TestParseCompression(t *testing.T) {
	for _, name := range []string{"", "none", "lz4", "zstd"} {
		if _, err := ParseCompression(name); err != nil {
			t.Errorf("ParseCompression(%q): %v", name, err)
		}
	}
	if _, err := ParseCompression("brotli"); err == nil {
		t.Error("expected error for unknown compression")
	}
}
