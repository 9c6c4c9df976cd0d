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
	"fmt"
	"sort"
)

// ErrUnknownFlag is returned when a flag name is not present in a bitfield's
// flag table.
var ErrUnknownFlag = errors.New("unknown flag")

// Bitfield is a 64-bit flag set backed by a static {name -> bit} table.
// The zero value has no flags and an empty table; construct with NewBitfield.
type Bitfield struct {
	bits  uint64
	flags map[string]uint64
}

// NewBitfield creates a bitfield over the given flag table with an initial
// value. Bits outside the table are preserved as-is; the table only governs
// name resolution.
func NewBitfield(flags map[string]uint64, init uint64) Bitfield {
	return Bitfield{bits: init, flags: flags}
}

// Bits returns the raw 64-bit value.
func (b Bitfield) Bits() uint64 { return b.bits }

// Add sets every bit in mask.
func (b *Bitfield) Add(mask uint64) { b.bits |= mask }

// Remove clears every bit in mask.
func (b *Bitfield) Remove(mask uint64) { b.bits &^= mask }

// Toggle flips every bit in mask.
func (b *Bitfield) Toggle(mask uint64) { b.bits ^= mask }

// Has reports whether any bit in mask is set.
func (b Bitfield) Has(mask uint64) bool { return b.bits&mask != 0 }

// HasAll reports whether every bit in mask is set.
func (b Bitfield) HasAll(mask uint64) bool { return b.bits&mask == mask }

// Mask resolves a flag name to its bit value.
func (b Bitfield) Mask(name string) (uint64, error) {
	mask, ok := b.flags[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownFlag, name)
	}
	return mask, nil
}

// AddName sets the bit for the named flag.
func (b *Bitfield) AddName(name string) error {
	mask, err := b.Mask(name)
	if err != nil {
		return err
	}
	b.Add(mask)
	return nil
}

// RemoveName clears the bit for the named flag.
func (b *Bitfield) RemoveName(name string) error {
	mask, err := b.Mask(name)
	if err != nil {
		return err
	}
	b.Remove(mask)
	return nil
}

// HasName reports whether the named flag is set.
func (b Bitfield) HasName(name string) (bool, error) {
	mask, err := b.Mask(name)
	if err != nil {
		return false, err
	}
	return b.Has(mask), nil
}

// Names returns the names of all set flags in lexicographic order.
func (b Bitfield) Names() []string {
	var names []string
	for name, mask := range b.flags {
		if b.Has(mask) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// apiKeyScopes is the stable {name -> bit} table for API key scopes. Bit
// positions are part of the persisted format and must never change.
var apiKeyScopes = map[string]uint64{
	"user:read":      1 << 0,
	"user:update":    1 << 1,
	"user:delete":    1 << 2,
	"repo:read":      1 << 3,
	"repo:create":    1 << 4,
	"repo:update":    1 << 5,
	"repo:delete":    1 << 6,
	"repo:write":     1 << 7,
	"release:upload": 1 << 8,
	"release:update": 1 << 9,
	"release:delete": 1 << 10,
	"apikey:view":    1 << 11,
	"apikey:create":  1 << 12,
	"apikey:update":  1 << 13,
	"apikey:delete":  1 << 14,
	"org:read":       1 << 15,
	"org:create":     1 << 16,
	"org:update":     1 << 17,
	"org:delete":     1 << 18,
	"index:read":     1 << 19,
}

// Named API key scope masks.
const (
	ScopeUserRead      uint64 = 1 << 0
	ScopeUserUpdate    uint64 = 1 << 1
	ScopeUserDelete    uint64 = 1 << 2
	ScopeRepoRead      uint64 = 1 << 3
	ScopeRepoCreate    uint64 = 1 << 4
	ScopeRepoUpdate    uint64 = 1 << 5
	ScopeRepoDelete    uint64 = 1 << 6
	ScopeRepoWrite     uint64 = 1 << 7
	ScopeReleaseUpload uint64 = 1 << 8
	ScopeReleaseUpdate uint64 = 1 << 9
	ScopeReleaseDelete uint64 = 1 << 10
	ScopeApiKeyView    uint64 = 1 << 11
	ScopeApiKeyCreate  uint64 = 1 << 12
	ScopeApiKeyUpdate  uint64 = 1 << 13
	ScopeApiKeyDelete  uint64 = 1 << 14
	ScopeOrgRead       uint64 = 1 << 15
	ScopeOrgCreate     uint64 = 1 << 16
	ScopeOrgUpdate     uint64 = 1 << 17
	ScopeOrgDelete     uint64 = 1 << 18
	ScopeIndexRead     uint64 = 1 << 19
)

// NewApiKeyScopes creates a bitfield over the API key scope table.
func NewApiKeyScopes(init uint64) Bitfield {
	return NewBitfield(apiKeyScopes, init)
}

// memberPermissions governs what a member may do inside a repository or
// organization.
var memberPermissions = map[string]uint64{
	"member:invite":   1 << 0,
	"member:update":   1 << 1,
	"member:kick":     1 << 2,
	"metadata:update": 1 << 3,
	"repo:create":     1 << 4,
	"repo:delete":     1 << 5,
	"webhooks:create": 1 << 6,
	"webhooks:update": 1 << 7,
	"webhooks:delete": 1 << 8,
	"metadata:delete": 1 << 9,
}

// NewMemberPermissions creates a bitfield over the member permission table.
func NewMemberPermissions(init uint64) Bitfield {
	return NewBitfield(memberPermissions, init)
}
