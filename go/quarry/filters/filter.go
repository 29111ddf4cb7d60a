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

// Package filters holds compiled column predicates. A Filter is built once
// per column when a table scan is lowered and is immutable afterwards; the
// scan evaluates it against every candidate value.
package filters

import (
	"math"

	"github.com/quarrydb/quarry/go/sqltypes"
)

// Kind discriminates the concrete filter type.
type Kind int

const (
	KindAlwaysFalse Kind = iota
	KindIsNull
	KindIsNotNull
	KindBoolValue
	KindBigintRange
	KindBigintValues
	KindNegatedBigintRange
	KindNegatedBigintValues
	KindBigintMultiRange
	KindDoubleRange
	KindFloatRange
	KindBytesRange
	KindBytesValues
	KindNegatedBytesRange
	KindNegatedBytesValues
	KindMultiRange
)

// Filter is a compiled single-column predicate. Test reports whether a
// value passes; a null value passes iff NullAllowed.
type Filter interface {
	Kind() Kind
	NullAllowed() bool
	Test(v sqltypes.Value) bool
}

// nullAllowed carries the shared null flag.
type nullAllowed bool

func (n nullAllowed) NullAllowed() bool { return bool(n) }

// AlwaysFalse rejects every value including null.
type AlwaysFalse struct{}

func (AlwaysFalse) Kind() Kind { return KindAlwaysFalse }
func (AlwaysFalse) NullAllowed() bool { return false }
func (AlwaysFalse) Test(sqltypes.Value) bool { return false }

// IsNull accepts only null.
type IsNull struct{}

func (IsNull) Kind() Kind { return KindIsNull }
func (IsNull) NullAllowed() bool { return true }
func (IsNull) Test(v sqltypes.Value) bool { return v.IsNull() }

// IsNotNull accepts every non-null value.
type IsNotNull struct{}

func (IsNotNull) Kind() Kind { return KindIsNotNull }
func (IsNotNull) NullAllowed() bool { return false }
func (IsNotNull) Test(v sqltypes.Value) bool { return !v.IsNull() }

// BoolValue accepts one boolean value.
type BoolValue struct {
	Value bool
	nullAllowed
}

// NewBoolValue returns a filter accepting exactly value.
func NewBoolValue(value, allowNull bool) *BoolValue {
	return &BoolValue{Value: value, nullAllowed: nullAllowed(allowNull)}
}

func (*BoolValue) Kind() Kind { return KindBoolValue }

func (f *BoolValue) Test(v sqltypes.Value) bool {
	if v.IsNull() {
		return f.NullAllowed()
	}
	return v.Bool() == f.Value
}

// BigintRange accepts integers in the inclusive interval [Lower, Upper].
// Unbounded ends are represented by the int64 extremes.
type BigintRange struct {
	Lower int64
	Upper int64
	nullAllowed
}

// NewBigintRange returns a filter accepting [lower, upper].
func NewBigintRange(lower, upper int64, allowNull bool) *BigintRange {
	return &BigintRange{Lower: lower, Upper: upper, nullAllowed: nullAllowed(allowNull)}
}

func (*BigintRange) Kind() Kind { return KindBigintRange }

// IsSingleValue reports whether the range admits exactly one integer.
func (f *BigintRange) IsSingleValue() bool { return f.Lower == f.Upper }

func (f *BigintRange) Test(v sqltypes.Value) bool {
	if v.IsNull() {
		return f.NullAllowed()
	}
	i := v.Int64()
	return i >= f.Lower && i <= f.Upper
}

// BigintValues accepts an enumerated set of integers.
type BigintValues struct {
	values map[int64]struct{}
	nullAllowed
}

// NewBigintValues returns a filter accepting exactly the given values.
func NewBigintValues(values []int64, allowNull bool) *BigintValues {
	set := make(map[int64]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return &BigintValues{values: set, nullAllowed: nullAllowed(allowNull)}
}

func (*BigintValues) Kind() Kind { return KindBigintValues }

func (f *BigintValues) Test(v sqltypes.Value) bool {
	if v.IsNull() {
		return f.NullAllowed()
	}
	_, ok := f.values[v.Int64()]
	return ok
}

// NegatedBigintRange accepts integers outside the inclusive interval
// [Lower, Upper].
type NegatedBigintRange struct {
	inner *BigintRange
}

// NewNegatedBigintRange returns a filter rejecting [lower, upper].
func NewNegatedBigintRange(lower, upper int64, allowNull bool) *NegatedBigintRange {
	return &NegatedBigintRange{inner: NewBigintRange(lower, upper, allowNull)}
}

func (*NegatedBigintRange) Kind() Kind { return KindNegatedBigintRange }
func (f *NegatedBigintRange) NullAllowed() bool { return f.inner.NullAllowed() }

// Lower returns the low end of the rejected interval.
func (f *NegatedBigintRange) Lower() int64 { return f.inner.Lower }

// Upper returns the high end of the rejected interval.
func (f *NegatedBigintRange) Upper() int64 { return f.inner.Upper }

func (f *NegatedBigintRange) Test(v sqltypes.Value) bool {
	if v.IsNull() {
		return f.NullAllowed()
	}
	return !f.inner.Test(v)
}

// NegatedBigintValues accepts every integer except an enumerated set.
type NegatedBigintValues struct {
	rejected map[int64]struct{}
	nullAllowed
}

// NewNegatedBigintValues returns a filter rejecting exactly the given
// values.
func NewNegatedBigintValues(rejected []int64, allowNull bool) *NegatedBigintValues {
	set := make(map[int64]struct{}, len(rejected))
	for _, v := range rejected {
		set[v] = struct{}{}
	}
	return &NegatedBigintValues{rejected: set, nullAllowed: nullAllowed(allowNull)}
}

func (*NegatedBigintValues) Kind() Kind { return KindNegatedBigintValues }

func (f *NegatedBigintValues) Test(v sqltypes.Value) bool {
	if v.IsNull() {
		return f.NullAllowed()
	}
	_, ok := f.rejected[v.Int64()]
	return !ok
}

// BigintMultiRange accepts integers matching any of an ascending list of
// disjoint ranges. Evaluation is first-match over the ordered list.
type BigintMultiRange struct {
	Ranges []*BigintRange
	nullAllowed
}

// NewBigintMultiRange returns a disjunction over the given ranges.
func NewBigintMultiRange(ranges []*BigintRange, allowNull bool) *BigintMultiRange {
	return &BigintMultiRange{Ranges: ranges, nullAllowed: nullAllowed(allowNull)}
}

func (*BigintMultiRange) Kind() Kind { return KindBigintMultiRange }

func (f *BigintMultiRange) Test(v sqltypes.Value) bool {
	if v.IsNull() {
		return f.NullAllowed()
	}
	i := v.Int64()
	for _, r := range f.Ranges {
		if i < r.Lower {
			return false
		}
		if i <= r.Upper {
			return true
		}
	}
	return false
}

// DoubleRange accepts doubles in an interval with per-side unbounded and
// exclusive flags. NaN never passes.
type DoubleRange struct {
	Lower          float64
	LowerUnbounded bool
	LowerExclusive bool
	Upper          float64
	UpperUnbounded bool
	UpperExclusive bool
	nullAllowed
}

// NewDoubleRange returns a double interval filter.
func NewDoubleRange(lower float64, lowerUnbounded, lowerExclusive bool,
	upper float64, upperUnbounded, upperExclusive, allowNull bool) *DoubleRange {
	return &DoubleRange{
		Lower: lower, LowerUnbounded: lowerUnbounded, LowerExclusive: lowerExclusive,
		Upper: upper, UpperUnbounded: upperUnbounded, UpperExclusive: upperExclusive,
		nullAllowed: nullAllowed(allowNull),
	}
}

func (*DoubleRange) Kind() Kind { return KindDoubleRange }

func (f *DoubleRange) Test(v sqltypes.Value) bool {
	if v.IsNull() {
		return f.NullAllowed()
	}
	return testFloatRange(v.Float64(), f.Lower, f.LowerUnbounded, f.LowerExclusive,
		f.Upper, f.UpperUnbounded, f.UpperExclusive)
}

// FloatRange is the single-precision counterpart of DoubleRange.
type FloatRange struct {
	Lower          float32
	LowerUnbounded bool
	LowerExclusive bool
	Upper          float32
	UpperUnbounded bool
	UpperExclusive bool
	nullAllowed
}

// NewFloatRange returns a real interval filter.
func NewFloatRange(lower float32, lowerUnbounded, lowerExclusive bool,
	upper float32, upperUnbounded, upperExclusive, allowNull bool) *FloatRange {
	return &FloatRange{
		Lower: lower, LowerUnbounded: lowerUnbounded, LowerExclusive: lowerExclusive,
		Upper: upper, UpperUnbounded: upperUnbounded, UpperExclusive: upperExclusive,
		nullAllowed: nullAllowed(allowNull),
	}
}

func (*FloatRange) Kind() Kind { return KindFloatRange }

func (f *FloatRange) Test(v sqltypes.Value) bool {
	if v.IsNull() {
		return f.NullAllowed()
	}
	return testFloatRange(float64(float32(v.Float64())), float64(f.Lower), f.LowerUnbounded, f.LowerExclusive,
		float64(f.Upper), f.UpperUnbounded, f.UpperExclusive)
}

func testFloatRange(v, lower float64, lowerUnbounded, lowerExclusive bool,
	upper float64, upperUnbounded, upperExclusive bool) bool {
	if math.IsNaN(v) {
		return false
	}
	if !lowerUnbounded {
		if v < lower || (lowerExclusive && v == lower) {
			return false
		}
	}
	if !upperUnbounded {
		if v > upper || (upperExclusive && v == upper) {
			return false
		}
	}
	return true
}

// BytesRange accepts byte strings in a lexicographic interval with
// per-side unbounded and exclusive flags.
type BytesRange struct {
	Lower          string
	LowerUnbounded bool
	LowerExclusive bool
	Upper          string
	UpperUnbounded bool
	UpperExclusive bool
	nullAllowed
}

// NewBytesRange returns a lexicographic interval filter.
func NewBytesRange(lower string, lowerUnbounded, lowerExclusive bool,
	upper string, upperUnbounded, upperExclusive, allowNull bool) *BytesRange {
	return &BytesRange{
		Lower: lower, LowerUnbounded: lowerUnbounded, LowerExclusive: lowerExclusive,
		Upper: upper, UpperUnbounded: upperUnbounded, UpperExclusive: upperExclusive,
		nullAllowed: nullAllowed(allowNull),
	}
}

func (*BytesRange) Kind() Kind { return KindBytesRange }

// IsSingleValue reports whether the range admits exactly one string.
func (f *BytesRange) IsSingleValue() bool {
	return !f.LowerUnbounded && !f.UpperUnbounded &&
		!f.LowerExclusive && !f.UpperExclusive && f.Lower == f.Upper
}

func (f *BytesRange) Test(v sqltypes.Value) bool {
	if v.IsNull() {
		return f.NullAllowed()
	}
	s := v.Text()
	if !f.LowerUnbounded {
		if s < f.Lower || (f.LowerExclusive && s == f.Lower) {
			return false
		}
	}
	if !f.UpperUnbounded {
		if s > f.Upper || (f.UpperExclusive && s == f.Upper) {
			return false
		}
	}
	return true
}

// BytesValues accepts an enumerated set of byte strings.
type BytesValues struct {
	values map[string]struct{}
	nullAllowed
}

// NewBytesValues returns a filter accepting exactly the given strings.
func NewBytesValues(values []string, allowNull bool) *BytesValues {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return &BytesValues{values: set, nullAllowed: nullAllowed(allowNull)}
}

func (*BytesValues) Kind() Kind { return KindBytesValues }

func (f *BytesValues) Test(v sqltypes.Value) bool {
	if v.IsNull() {
		return f.NullAllowed()
	}
	_, ok := f.values[v.Text()]
	return ok
}

// NegatedBytesRange accepts byte strings outside a lexicographic interval.
type NegatedBytesRange struct {
	inner *BytesRange
}

// NewNegatedBytesRange returns a filter rejecting the given interval.
func NewNegatedBytesRange(inner *BytesRange) *NegatedBytesRange {
	return &NegatedBytesRange{inner: inner}
}

func (*NegatedBytesRange) Kind() Kind { return KindNegatedBytesRange }
func (f *NegatedBytesRange) NullAllowed() bool { return f.inner.NullAllowed() }

// Inner returns the rejected interval.
func (f *NegatedBytesRange) Inner() *BytesRange { return f.inner }

func (f *NegatedBytesRange) Test(v sqltypes.Value) bool {
	if v.IsNull() {
		return f.NullAllowed()
	}
	return !f.inner.Test(v)
}

// NegatedBytesValues accepts every byte string except an enumerated set.
type NegatedBytesValues struct {
	rejected map[string]struct{}
	nullAllowed
}

// NewNegatedBytesValues returns a filter rejecting exactly the given
// strings.
func NewNegatedBytesValues(rejected []string, allowNull bool) *NegatedBytesValues {
	set := make(map[string]struct{}, len(rejected))
	for _, v := range rejected {
		set[v] = struct{}{}
	}
	return &NegatedBytesValues{rejected: set, nullAllowed: nullAllowed(allowNull)}
}

func (*NegatedBytesValues) Kind() Kind { return KindNegatedBytesValues }

func (f *NegatedBytesValues) Test(v sqltypes.Value) bool {
	if v.IsNull() {
		return f.NullAllowed()
	}
	_, ok := f.rejected[v.Text()]
	return !ok
}

// MultiRange is a disjunction of per-range filters of one type, used when
// no compact encoding applies.
type MultiRange struct {
	Filters []Filter
	nullAllowed
}

// NewMultiRange returns a disjunction over the given filters.
func NewMultiRange(subFilters []Filter, allowNull bool) *MultiRange {
	return &MultiRange{Filters: subFilters, nullAllowed: nullAllowed(allowNull)}
}

func (*MultiRange) Kind() Kind { return KindMultiRange }

func (f *MultiRange) Test(v sqltypes.Value) bool {
	if v.IsNull() {
		return f.NullAllowed()
	}
	for _, sub := range f.Filters {
		if sub.Test(v) {
			return true
		}
	}
	return false
}
