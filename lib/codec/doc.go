// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration for binary framing.
//
// Events are JSON on every wire the console understands. The
// data-channel transport strategy wraps each JSON message in a small
// CBOR frame so that frame kind and sequence travel as typed fields
// instead of string prefixes. Both ends of that channel encode with
// this package so that the same logical frame always produces the
// same bytes:
//
//	data, err := codec.Marshal(frame)
//	err = codec.Unmarshal(data, &frame)
//
// Frame structs use `cbor` tags with integer keys (keyasint) to keep
// per-frame overhead small under the SCTP message size limit.
package codec
