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

package wire

// BoundKind qualifies a range marker: EXACTLY is inclusive, ABOVE and
// BELOW are the exclusive markers of low and high bounds respectively.
type BoundKind int

const (
	BoundExactly BoundKind = iota
	BoundAbove
	BoundBelow
)

var boundKindNames = map[string]BoundKind{
	"EXACTLY": BoundExactly,
	"ABOVE":   BoundAbove,
	"BELOW":   BoundBelow,
}

func (b *BoundKind) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, boundKindNames, "bound kind")
	*b = v
	return err
}

func (b BoundKind) String() string { return enumString(b, boundKindNames) }

// Marker is one end of a range: a literal value block (nil when
// unbounded) plus the inclusive/exclusive marker.
type Marker struct {
	ValueBlock *Block    `json:"valueBlock"`
	Bound      BoundKind `json:"bound"`
}

// Unbounded reports whether the marker carries no value.
func (m Marker) Unbounded() bool {
	return m.ValueBlock == nil
}

// Range is a low/high pair of markers. The producer guarantees low <= high.
type Range struct {
	Low  Marker `json:"low"`
	High Marker `json:"high"`
}

// ValueSet describes the admissible values of one column. Variants:
// *SortedRangeSet, *EquatableValueSet, *AllOrNoneValueSet.
type ValueSet interface {
	isValueSet()
}

// SortedRangeSet is a list of non-overlapping ranges in ascending order.
// The lowering layer may assume the ordering but tolerates violations by
// falling back to a generic multi-range filter.
type SortedRangeSet struct {
	Type   string  `json:"type"`
	Ranges []Range `json:"ranges"`
}

func (*SortedRangeSet) isValueSet() {}

// ValueEntry is one enumerated value of an equatable set.
type ValueEntry struct {
	Type  string `json:"type"`
	Block Block  `json:"block"`
}

// EquatableValueSet enumerates values of types that support only
// equality. Non-empty sets are not lowerable on this worker.
type EquatableValueSet struct {
	Type      string       `json:"type"`
	Inclusive bool         `json:"whiteList"`
	Entries   []ValueEntry `json:"entries"`
}

func (*EquatableValueSet) isValueSet() {}

// AllOrNoneValueSet admits either every value or none; it carries no
// lowerable structure.
type AllOrNoneValueSet struct {
	Type string `json:"type"`
	All  bool   `json:"all"`
}

func (*AllOrNoneValueSet) isValueSet() {}

// Domain is the per-column value constraint: a value set plus whether
// NULL is admissible.
type Domain struct {
	Values      ValueSet `json:"-"`
	NullAllowed bool     `json:"nullAllowed"`
}

// ColumnDomain names the column a domain constrains.
type ColumnDomain struct {
	Column string `json:"column"`
	Domain Domain `json:"domain"`
}
