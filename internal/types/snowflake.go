/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package types provides the core identifier and permission primitives used
// across charted: snowflake IDs, validated names, and bitfield authorities.
package types

import (
	"errors"
	"sync"
	"time"
)

// Snowflake layout: 41 bits of milliseconds since Epoch, 10 bits of node ID,
// 12 bits of per-millisecond sequence.
const (
	nodeBits     = 10
	sequenceBits = 12

	maxNodeID   = (1 << nodeBits) - 1
	maxSequence = (1 << sequenceBits) - 1

	timestampShift = nodeBits + sequenceBits
	nodeShift      = sequenceBits
)

// Epoch is the fixed start instant for snowflake timestamps
// (2023-03-01T00:00:00Z), expressed in Unix milliseconds.
const Epoch int64 = 1677628800000

// ErrMonotonicOverflow is returned when more than 4096 IDs are requested
// within the same millisecond on one node.
var ErrMonotonicOverflow = errors.New("snowflake: sequence overflow within millisecond")

// ErrInvalidNodeID is returned when a node ID does not fit in 10 bits.
var ErrInvalidNodeID = errors.New("snowflake: node ID out of range")

// Snowflake is a 64-bit time-sortable identifier.
type Snowflake struct {
	mu       sync.Mutex
	nodeID   int64
	lastMs   int64
	sequence int64
	now      func() time.Time
}

// NewSnowflake creates a generator for the given node ID.
func NewSnowflake(nodeID int64) (*Snowflake, error) {
	if nodeID < 0 || nodeID > maxNodeID {
		return nil, ErrInvalidNodeID
	}
	return &Snowflake{nodeID: nodeID, now: time.Now}, nil
}

// Generate returns the next identifier. IDs are strictly increasing within a
// node. Returns ErrMonotonicOverflow when the 12-bit sequence is exhausted
// for the current millisecond; callers must surface that failure rather than
// retry silently.
func (s *Snowflake) Generate() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := s.now().UnixMilli() - Epoch
	if ms < s.lastMs {
		// Clock went backwards; keep issuing against the last observed
		// millisecond so ordering holds.
		ms = s.lastMs
	}

	if ms == s.lastMs {
		s.sequence++
		if s.sequence > maxSequence {
			s.sequence = maxSequence
			return 0, ErrMonotonicOverflow
		}
	} else {
		s.lastMs = ms
		s.sequence = 0
	}

	id := uint64(ms)<<timestampShift | uint64(s.nodeID)<<nodeShift | uint64(s.sequence)
	return id, nil
}

// Timestamp extracts the creation instant encoded in id.
func Timestamp(id uint64) time.Time {
	ms := int64(id>>timestampShift) + Epoch
	return time.UnixMilli(ms).UTC()
}
