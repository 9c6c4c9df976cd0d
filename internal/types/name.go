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
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// namePattern is the validation regex for human-readable entity names.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// ErrInvalidName is returned when a string does not satisfy the name rules.
var ErrInvalidName = errors.New("invalid name")

// ReservedIDMax is the highest reserved numeric identifier. IDs below 15 are
// reserved for internal use and never refer to user-created entities.
const ReservedIDMax uint64 = 15

// Name is a validated, case-sensitive entity name. The zero value is not a
// valid Name; construct one with NewName.
type Name string

// NewName validates s and returns it as a Name.
func NewName(s string) (Name, error) {
	if !namePattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, s)
	}
	return Name(s), nil
}

// String returns the raw name.
func (n Name) String() string { return string(n) }

// MarshalJSON serializes the name as its raw string.
func (n Name) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(n))
}

// UnmarshalJSON validates the decoded string before accepting it.
func (n *Name) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	name, err := NewName(s)
	if err != nil {
		return err
	}
	*n = name
	return nil
}

// NameOrID is the union type accepted by all path parameters that identify
// an entity: either a validated Name or a numeric snowflake ID.
type NameOrID struct {
	name Name
	id   uint64
	isID bool
}

// NameOrIDFromName wraps an already-validated Name.
func NameOrIDFromName(n Name) NameOrID {
	return NameOrID{name: n}
}

// NameOrIDFromID wraps a numeric identifier.
func NameOrIDFromID(id uint64) NameOrID {
	return NameOrID{id: id, isID: true}
}

// ParseNameOrID interprets s as a numeric ID when it consists solely of
// digits, otherwise as a Name. Numeric values below ReservedIDMax are
// rejected because that range is reserved.
func ParseNameOrID(s string) (NameOrID, error) {
	if id, err := strconv.ParseUint(s, 10, 64); err == nil {
		if id < ReservedIDMax {
			return NameOrID{}, fmt.Errorf("%w: id %d is reserved", ErrInvalidName, id)
		}
		return NameOrIDFromID(id), nil
	}
	name, err := NewName(s)
	if err != nil {
		return NameOrID{}, err
	}
	return NameOrIDFromName(name), nil
}

// IsID reports whether the union holds a numeric identifier.
func (v NameOrID) IsID() bool { return v.isID }

// ID returns the numeric identifier; valid only when IsID is true.
func (v NameOrID) ID() uint64 { return v.id }

// Name returns the name; valid only when IsID is false.
func (v NameOrID) Name() Name { return v.name }

// String returns the raw path-parameter representation.
func (v NameOrID) String() string {
	if v.isID {
		return strconv.FormatUint(v.id, 10)
	}
	return string(v.name)
}
