/*
Copyright 2024 The Quarry Authors.

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

// Package wire models the coordinator-produced logical plan fragment as it
// arrives on the wire: a tagged tree of plan nodes with string-typed
// columns, per-column value domains, connector handles and a partitioning
// scheme. The tree is immutable once decoded; the lowering layer only
// reads it.
//
// Polymorphic families (plan nodes, row expressions, value sets, handles)
// are closed tagged unions: every variant implements an unexported marker
// method so a type switch over the family is exhaustive at compile time.
package wire

import (
	"encoding/json"
	"fmt"
)

// unmarshalEnum decodes a JSON string into an enum using a name table.
func unmarshalEnum[T ~int](data []byte, names map[string]T, what string) (T, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var zero T
		return zero, err
	}
	v, ok := names[s]
	if !ok {
		var zero T
		return zero, fmt.Errorf("unknown %s: %q", what, s)
	}
	return v, nil
}

func enumString[T ~int](v T, names map[string]T) string {
	for s, n := range names {
		if n == v {
			return s
		}
	}
	return fmt.Sprintf("%d", int(v))
}

// SortOrder is the per-key ordering of a sort, merge or top-n node.
type SortOrder int

const (
	AscNullsFirst SortOrder = iota
	AscNullsLast
	DescNullsFirst
	DescNullsLast
)

var sortOrderNames = map[string]SortOrder{
	"ASC_NULLS_FIRST":  AscNullsFirst,
	"ASC_NULLS_LAST":   AscNullsLast,
	"DESC_NULLS_FIRST": DescNullsFirst,
	"DESC_NULLS_LAST":  DescNullsLast,
}

func (o *SortOrder) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, sortOrderNames, "sort order")
	*o = v
	return err
}

func (o SortOrder) String() string { return enumString(o, sortOrderNames) }

// Ascending reports whether the order is ascending.
func (o SortOrder) Ascending() bool {
	return o == AscNullsFirst || o == AscNullsLast
}

// NullsFirst reports whether nulls sort before values.
func (o SortOrder) NullsFirst() bool {
	return o == AscNullsFirst || o == DescNullsFirst
}

// Ordering pairs a column with its sort order.
type Ordering struct {
	Variable  VariableReference `json:"variable"`
	SortOrder SortOrder         `json:"sortOrder"`
}

// OrderingScheme is the ordered key list of a sort-producing node.
type OrderingScheme struct {
	OrderBy []Ordering `json:"orderBy"`
}
