// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/zeebo/blake3"
)

const (
	// DefaultChunkThreshold is the serialized size above which an
	// event is split.
	DefaultChunkThreshold = 32 << 10

	// DefaultFragmentSize is the raw data carried by one chunk. After
	// base64 and the envelope a fragment stays well under the 64 KiB
	// SCTP message limit of a WebRTC data channel.
	DefaultFragmentSize = 24 << 10

	// DefaultMaxPending bounds the number of partially received
	// events a Reassembler holds.
	DefaultMaxPending = 16

	// MaxEventSize bounds the serialized size of a chunked event. It
	// matches the largest message the websocket transport reads.
	MaxEventSize = 32 << 20

	// MaxChunks bounds the fragment count of one event.
	MaxChunks = 1 << 16

	// chunkDataKey is the payload key carrying a fragment's data.
	chunkDataKey = "chunkData"
)

// Chunker serializes events and splits oversized ones.
type Chunker struct {
	threshold    int
	fragmentSize int
	compression  Compression
}

// NewChunker returns a Chunker that splits events whose serialized
// form exceeds threshold bytes, compressing chunk data with
// compression. A non-positive threshold selects
// DefaultChunkThreshold.
func NewChunker(threshold int, compression Compression) *Chunker {
	if threshold <= 0 {
		threshold = DefaultChunkThreshold
	}
	fragmentSize := DefaultFragmentSize
	if fragmentSize > threshold {
		fragmentSize = threshold
	}
	return &Chunker{
		threshold:    threshold,
		fragmentSize: fragmentSize,
		compression:  compression,
	}
}

// Split serializes e and returns the wire messages to send, in order.
// Events at or under the threshold yield exactly one message.
func (c *Chunker) Split(e Event) ([][]byte, error) {
	serialized, err := Marshal(e)
	if err != nil {
		return nil, err
	}
	if len(serialized) <= c.threshold {
		return [][]byte{serialized}, nil
	}
	if len(serialized) > MaxEventSize {
		return nil, fmt.Errorf("event %s is %d bytes, over the %d byte limit", e.ID, len(serialized), MaxEventSize)
	}

	digest := blake3.Sum256(serialized)
	compression := c.compression
	data, err := Compress(serialized, compression)
	if errors.Is(err, errIncompressible) {
		compression, data = CompressionNone, serialized
	} else if err != nil {
		return nil, fmt.Errorf("compressing event %s: %w", e.ID, err)
	}
	if compression == "" {
		compression = CompressionNone
	}

	total := (len(data) + c.fragmentSize - 1) / c.fragmentSize
	if total > MaxChunks {
		return nil, fmt.Errorf("event %s needs %d chunks, over the limit of %d", e.ID, total, MaxChunks)
	}
	messages := make([][]byte, 0, total)
	for index := range total {
		start := index * c.fragmentSize
		end := min(start+c.fragmentSize, len(data))
		fragment := Event{
			ID:        e.ID,
			Vendor:    e.Vendor,
			Type:      e.Type,
			Timestamp: e.Timestamp,
			Payload: map[string]any{
				chunkDataKey: base64.StdEncoding.EncodeToString(data[start:end]),
			},
			Chunk: &ChunkInfo{
				Index:       index,
				Total:       total,
				Size:        len(serialized),
				Compression: compression,
				Digest:      hex.EncodeToString(digest[:]),
			},
		}
		message, err := Marshal(fragment)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

// ErrChunk is wrapped by every error a Reassembler returns for a
// malformed or inconsistent chunk.
var ErrChunk = errors.New("invalid chunk")

// Reassembler rebuilds chunked events. It is safe for concurrent use.
type Reassembler struct {
	mutex      sync.Mutex
	maxPending int
	pending    map[string]*partialEvent
	// arrival lists pending IDs oldest first, for eviction.
	arrival []string
	evicted uint64
}

type partialEvent struct {
	info      ChunkInfo
	fragments [][]byte
	received  int
}

// NewReassembler returns a Reassembler holding at most maxPending
// incomplete events. When a chunk for a new event arrives at the
// limit, the oldest incomplete event is discarded. A non-positive
// maxPending selects DefaultMaxPending.
func NewReassembler(maxPending int) *Reassembler {
	if maxPending <= 0 {
		maxPending = DefaultMaxPending
	}
	return &Reassembler{
		maxPending: maxPending,
		pending:    make(map[string]*partialEvent),
	}
}

// Add accepts one received event. A non-chunk event is returned as
// complete immediately. A chunk returns complete=false until the last
// missing fragment arrives, at which point the original event is
// returned. A chunk that fails validation discards the whole partial
// event and returns an error wrapping ErrChunk. Headers announcing
// more than MaxChunks fragments or a size outside [0, MaxEventSize]
// are rejected before anything is allocated.
func (r *Reassembler) Add(e Event) (Event, bool, error) {
	if e.Chunk == nil {
		return e, true, nil
	}
	info := *e.Chunk
	index := info.Index
	// Every fragment of one event shares the header except Index.
	info.Index = 0
	if info.Total <= 0 || index < 0 || index >= info.Total {
		return Event{}, false, fmt.Errorf("%w: event %s index %d of %d", ErrChunk, e.ID, index, info.Total)
	}
	if info.Total > MaxChunks {
		return Event{}, false, fmt.Errorf("%w: event %s announces %d chunks, limit %d", ErrChunk, e.ID, info.Total, MaxChunks)
	}
	if info.Size < 0 || info.Size > MaxEventSize {
		return Event{}, false, fmt.Errorf("%w: event %s announces size %d, limit %d", ErrChunk, e.ID, info.Size, MaxEventSize)
	}
	encoded, _ := e.Payload[chunkDataKey].(string)
	fragment, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		r.discard(e.ID)
		return Event{}, false, fmt.Errorf("%w: event %s chunk %d data: %v", ErrChunk, e.ID, index, err)
	}

	r.mutex.Lock()
	partial, ok := r.pending[e.ID]
	if !ok {
		if len(r.pending) >= r.maxPending {
			r.evictOldestLocked()
		}
		partial = &partialEvent{info: info, fragments: make([][]byte, info.Total)}
		r.pending[e.ID] = partial
		r.arrival = append(r.arrival, e.ID)
	}
	if partial.info != info {
		r.removeLocked(e.ID)
		r.mutex.Unlock()
		return Event{}, false, fmt.Errorf("%w: event %s chunk %d header disagrees with earlier chunks", ErrChunk, e.ID, index)
	}
	if partial.fragments[index] == nil {
		partial.fragments[index] = fragment
		partial.received++
	}
	if partial.received < info.Total {
		r.mutex.Unlock()
		return Event{}, false, nil
	}
	r.removeLocked(e.ID)
	r.mutex.Unlock()

	complete, err := assemble(e.ID, partial)
	if err != nil {
		return Event{}, false, err
	}
	return complete, true, nil
}

// Pending returns the number of incomplete events held.
func (r *Reassembler) Pending() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.pending)
}

// Evicted returns how many incomplete events were discarded to make
// room for newer ones.
func (r *Reassembler) Evicted() uint64 {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.evicted
}

// Reset discards every incomplete event.
func (r *Reassembler) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	clear(r.pending)
	r.arrival = r.arrival[:0]
}

func (r *Reassembler) discard(id string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.removeLocked(id)
}

func (r *Reassembler) evictOldestLocked() {
	if len(r.arrival) == 0 {
		return
	}
	oldest := r.arrival[0]
	r.arrival = r.arrival[1:]
	delete(r.pending, oldest)
	r.evicted++
}

func (r *Reassembler) removeLocked(id string) {
	if _, ok := r.pending[id]; !ok {
		return
	}
	delete(r.pending, id)
	for i, pendingID := range r.arrival {
		if pendingID == id {
			r.arrival = append(r.arrival[:i], r.arrival[i+1:]...)
			break
		}
	}
}

func assemble(id string, partial *partialEvent) (Event, error) {
	var joined []byte
	for _, fragment := range partial.fragments {
		joined = append(joined, fragment...)
	}

	serialized, err := Decompress(joined, partial.info.Compression, partial.info.Size)
	if err != nil {
		return Event{}, fmt.Errorf("%w: event %s: %v", ErrChunk, id, err)
	}
	digest := blake3.Sum256(serialized)
	if hex.EncodeToString(digest[:]) != partial.info.Digest {
		return Event{}, fmt.Errorf("%w: event %s digest mismatch", ErrChunk, id)
	}

	complete, err := Unmarshal(serialized)
	if err != nil {
		return Event{}, fmt.Errorf("%w: event %s: %v", ErrChunk, id, err)
	}
	return complete, nil
}
