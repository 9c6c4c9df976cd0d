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
	"reflect"
	"testing"
)

func TestBitfield_RoundTrip(t *testing.T) {
	const bits = ScopeUserRead | ScopeRepoWrite | ScopeReleaseUpload

	b := NewApiKeyScopes(bits)
	if b.Bits() != bits {
		t.Fatalf("Bits = %d, want %d", b.Bits(), bits)
	}

	b.Add(ScopeOrgRead)
	b.Remove(ScopeOrgRead)
	if b.Bits() != bits {
		t.Fatalf("add+remove changed bits: %d, want %d", b.Bits(), bits)
	}

	for mask := uint64(1); mask != 0; mask <<= 1 {
		if b.Has(mask) != (bits&mask != 0) {
			t.Fatalf("Has(%d) = %v, want %v", mask, b.Has(mask), bits&mask != 0)
		}
	}
}

func TestBitfield_Toggle(t *testing.T) {
	b := NewApiKeyScopes(0)
	b.Toggle(ScopeRepoWrite)
	if !b.Has(ScopeRepoWrite) {
		t.Error("toggle did not set repo:write")
	}
	b.Toggle(ScopeRepoWrite)
	if b.Has(ScopeRepoWrite) {
		t.Error("second toggle did not clear repo:write")
	}
}

func TestBitfield_Names(t *testing.T) {
	b := NewApiKeyScopes(0)
	if err := b.AddName("repo:write"); err != nil {
		t.Fatalf("AddName failed: %v", err)
	}
	if err := b.AddName("user:read"); err != nil {
		t.Fatalf("AddName failed: %v", err)
	}

	if got, want := b.Names(), []string{"repo:write", "user:read"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names = %v, want %v", got, want)
	}

	ok, err := b.HasName("repo:write")
	if err != nil || !ok {
		t.Errorf("HasName(repo:write) = %v, %v; want true, nil", ok, err)
	}

	if err := b.AddName("no:such:scope"); !errors.Is(err, ErrUnknownFlag) {
		t.Errorf("AddName(unknown) = %v, want ErrUnknownFlag", err)
	}
}

func TestBitfield_HasAll(t *testing.T) {
	b := NewApiKeyScopes(ScopeUserRead | ScopeRepoRead)
	if !b.HasAll(ScopeUserRead | ScopeRepoRead) {
		t.Error("HasAll of owned scopes = false, want true")
	}
	if b.HasAll(ScopeUserRead | ScopeRepoWrite) {
		t.Error("HasAll including missing scope = true, want false")
	}
}

func TestMemberPermissions_Table(t *testing.T) {
	// The documented bit positions are part of the persisted format.
	want := map[string]uint64{
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

	b := NewMemberPermissions(0)
	for name, mask := range want {
		got, err := b.Mask(name)
		if err != nil {
			t.Errorf("Mask(%q) failed: %v", name, err)
			continue
		}
		if got != mask {
			t.Errorf("Mask(%q) = %d, want %d", name, got, mask)
		}
	}
}
