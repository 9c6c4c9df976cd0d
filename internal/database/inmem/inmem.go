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

// Package inmem implements the store contracts on process-local maps. It
// backs handler tests and the single-user development mode where running
// PostgreSQL would be overkill.
package inmem

import (
	"sort"
	"sync"

	"github.com/charted-dev/charted/internal/database"
)

// paginate applies the shared cursor-probe algorithm to a pre-sorted
// ascending slice.
func paginate[E any](items []E, req database.PaginationRequest, id func(*E) uint64) *database.Pagination[E] {
	req = req.Normalize()

	sort.Slice(items, func(i, j int) bool { return id(&items[i]) < id(&items[j]) })
	if req.Order == database.OrderDescending {
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	}

	if req.Cursor != 0 {
		kept := items[:0]
		for _, item := range items {
			itemID := id(&item)
			if req.Order == database.OrderDescending {
				if itemID <= req.Cursor {
					kept = append(kept, item)
				}
			} else if itemID >= req.Cursor {
				kept = append(kept, item)
			}
		}
		items = kept
	}

	page := &database.Pagination[E]{Data: items}
	if len(items) == 0 {
		page.Data = nil
		return page
	}
	if len(items) > req.PerPage {
		next := id(&items[req.PerPage])
		page.Data = items[:req.PerPage]
		page.PageInfo.Cursor = &next
	}
	return page
}

// applyNullable implements the empty-string-means-NULL patch convention.
func applyNullable(dst **string, src *string) {
	if src == nil {
		return
	}
	if *src == "" {
		*dst = nil
		return
	}
	value := *src
	*dst = &value
}

// table is the shared map+lock every store builds on.
type table[E any] struct {
	mu    sync.RWMutex
	items map[uint64]E
}

func newTable[E any]() table[E] {
	return table[E]{items: map[uint64]E{}}
}

func (t *table[E]) snapshot() []E {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]E, 0, len(t.items))
	for _, item := range t.items {
		out = append(out, item)
	}
	return out
}
