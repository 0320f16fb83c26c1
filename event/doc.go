// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package event defines the unit of exchange between a host
// application and a remote inspection console, and its wire encoding.
//
// An [Event] is an immutable record: a unique ID, a vendor namespace,
// a type within that namespace, a creation timestamp, and an opaque
// JSON payload. The reserved payload key "type" carries the command
// type that plugins match on (see [Event.CommandType]).
//
// On the wire an event is a JSON object:
//
//	{"id":"…","vendor":"com.adobe.griffon.mobile","type":"control",
//	 "timestamp":1767225600000,"payload":{"type":"startForwarding"}}
//
// Timestamps are Unix milliseconds.
//
// # Chunking
//
// Events whose serialized form exceeds a threshold are split by a
// [Chunker] into ordered chunk events. Every chunk carries the
// original event's ID, vendor and type, a "chunk" object with the
// index, the total count, the original size, the compression applied
// and a BLAKE3 digest of the original bytes, and a payload of the
// form {"chunkData":"<base64>"}. A [Reassembler] on the receiving side
// collects chunks in any arrival order and yields the original event
// once every index is present and the digest verifies.
//
// Chunk data may be compressed with LZ4 or zstd before splitting.
// Compression is skipped for a given event when it does not shrink the
// data, and the chunk header records what was actually applied.
package event
