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

package types

import (
	"errors"
	"testing"
	"time"
)

func TestSnowflake_Monotonic(t *testing.T) {
	gen, err := NewSnowflake(1)
	if err != nil {
		t.Fatalf("NewSnowflake failed: %v", err)
	}

	var last uint64
	for i := 0; i < 1000; i++ {
		id, err := gen.Generate()
		if err != nil {
			t.Fatalf("Generate failed at iteration %d: %v", i, err)
		}
		if id <= last {
			t.Fatalf("id %d is not strictly greater than previous %d", id, last)
		}
		last = id
	}
}

func TestSnowflake_SequenceOverflow(t *testing.T) {
	gen, err := NewSnowflake(0)
	if err != nil {
		t.Fatalf("NewSnowflake failed: %v", err)
	}

	// Freeze the clock so every ID lands in the same millisecond.
	frozen := time.Now()
	gen.now = func() time.Time { return frozen }

	for i := 0; i <= maxSequence; i++ {
		if _, err := gen.Generate(); err != nil {
			t.Fatalf("Generate failed at iteration %d: %v", i, err)
		}
	}

	_, err = gen.Generate()
	if !errors.Is(err, ErrMonotonicOverflow) {
		t.Fatalf("expected ErrMonotonicOverflow, got %v", err)
	}
}

func TestSnowflake_ClockBackwards(t *testing.T) {
	gen, err := NewSnowflake(0)
	if err != nil {
		t.Fatalf("NewSnowflake failed: %v", err)
	}

	base := time.Now()
	gen.now = func() time.Time { return base }
	first, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	// Simulate a clock going back one second.
	gen.now = func() time.Time { return base.Add(-time.Second) }
	second, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate failed after clock regression: %v", err)
	}
	if second <= first {
		t.Fatalf("id %d after clock regression is not greater than %d", second, first)
	}
}

func TestSnowflake_InvalidNode(t *testing.T) {
	if _, err := NewSnowflake(maxNodeID + 1); !errors.Is(err, ErrInvalidNodeID) {
		t.Fatalf("expected ErrInvalidNodeID, got %v", err)
	}
	if _, err := NewSnowflake(-1); !errors.Is(err, ErrInvalidNodeID) {
		t.Fatalf("expected ErrInvalidNodeID, got %v", err)
	}
}

func TestTimestamp_RoundTrip(t *testing.T) {
	gen, err := NewSnowflake(3)
	if err != nil {
		t.Fatalf("NewSnowflake failed: %v", err)
	}

	before := time.Now().Truncate(time.Millisecond)
	id, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	after := time.Now()

	ts := Timestamp(id)
	if ts.Before(before.Add(-time.Millisecond)) || ts.After(after.Add(time.Millisecond)) {
		t.Errorf("Timestamp %v outside expected window [%v, %v]", ts, before, after)
	}
}
