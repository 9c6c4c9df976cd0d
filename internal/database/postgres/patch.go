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

package postgres

import "fmt"

// patchBuilder accumulates SET clauses for a partial UPDATE. Patch
// payloads are records of optional fields; absent fields leave their
// column untouched.
type patchBuilder struct {
	sets []string
	args []any
}

// setNullableString handles the empty-string-means-NULL convention used by
// nullable text columns.
func (b *patchBuilder) setNullableString(column string, value *string) {
	if value == nil {
		return
	}
	if *value == "" {
		b.sets = append(b.sets, column+" = NULL")
		return
	}
	b.set(column, *value)
}

// setString overwrites a non-nullable text column when present.
func (b *patchBuilder) setString(column string, value *string) {
	if value == nil {
		return
	}
	b.set(column, *value)
}

// setBool overwrites a flag column when present.
func (b *patchBuilder) setBool(column string, value *bool) {
	if value == nil {
		return
	}
	b.set(column, *value)
}

// set appends an unconditional assignment.
func (b *patchBuilder) set(column string, value any) {
	b.args = append(b.args, value)
	b.sets = append(b.sets, fmt.Sprintf("%s = $%d", column, len(b.args)))
}

// empty reports whether no field was present in the payload.
func (b *patchBuilder) empty() bool { return len(b.sets) == 0 }

// build renders the UPDATE statement, bumping updated_at and binding the
// row id as the final argument.
func (b *patchBuilder) build(table string, id uint64) (string, []any) {
	sets := append(b.sets, "updated_at = NOW()")
	args := append(b.args, int64(id))

	query := fmt.Sprintf("UPDATE %s SET ", table)
	for i, set := range sets {
		if i > 0 {
			query += ", "
		}
		query += set
	}
	query += fmt.Sprintf(" WHERE id = $%d", len(args))
	return query, args
}
