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

package lowering

import (
	"math"

	"github.com/quarrydb/quarry/go/quarry/exprconv"
	"github.com/quarrydb/quarry/go/quarry/filters"
	"github.com/quarrydb/quarry/go/quarry/qerrors"
	"github.com/quarrydb/quarry/go/quarry/wire"
	"github.com/quarrydb/quarry/go/sqltypes"
)

// CompileDomain compiles one column's value domain into a runtime filter.
func CompileDomain(conv exprconv.Converter, domain wire.Domain) (filters.Filter, error) {
	nullAllowed := domain.NullAllowed
	switch set := domain.Values.(type) {
	case *wire.SortedRangeSet:
		typ, err := sqltypes.ParseType(set.Type)
		if err != nil {
			return nil, qerrors.Unsupportedf("range set type %q: %v", set.Type, err)
		}
		return compileRangeSet(conv, typ, set.Ranges, nullAllowed)

	case *wire.EquatableValueSet:
		if len(set.Entries) == 0 {
			if nullAllowed {
				return filters.IsNull{}, nil
			}
			return filters.IsNotNull{}, nil
		}
		return nil, qerrors.Unsupportedf("equatable value set with %d entries", len(set.Entries))

	case *wire.AllOrNoneValueSet:
		return nil, qerrors.Unsupportedf("all-or-none value set")
	}
	return nil, qerrors.Unsupportedf("unknown value set variant %T", domain.Values)
}

func compileRangeSet(conv exprconv.Converter, typ sqltypes.Type, ranges []wire.Range, nullAllowed bool) (filters.Filter, error) {
	if len(ranges) == 0 {
		if !nullAllowed {
			return nil, qerrors.Invariantf("empty domain with nulls disallowed on type %v", typ)
		}
		return filters.IsNull{}, nil
	}

	if len(ranges) == 1 {
		// 'column is not null' arrives as a fully unbounded range with nulls
		// disallowed.
		r := ranges[0]
		low := lowBound(r)
		high := highBound(r)
		if low.unbounded && high.unbounded && !nullAllowed {
			return filters.IsNotNull{}, nil
		}
		return rangeToFilter(conv, typ, r, nullAllowed)
	}

	switch {
	case typ.IsIntegerFamily():
		bigintFilters := make([]*filters.BigintRange, 0, len(ranges))
		for _, r := range ranges {
			f, err := bigintRangeToFilter(conv, typ, r, nullAllowed)
			if err != nil {
				return nil, err
			}
			bigintFilters = append(bigintFilters, f)
		}
		return combineIntegerRanges(bigintFilters, nullAllowed), nil

	case typ.Kind == sqltypes.Varchar:
		bytesFilters := make([]*filters.BytesRange, 0, len(ranges))
		for _, r := range ranges {
			f, err := bytesRangeToFilter(conv, typ, r, nullAllowed)
			if err != nil {
				return nil, err
			}
			bytesFilters = append(bytesFilters, f)
		}
		return combineBytesRanges(bytesFilters, nullAllowed), nil

	case typ.Kind == sqltypes.Boolean:
		if len(ranges) != 2 {
			return nil, qerrors.Invariantf("boolean domain has %d ranges, want 2", len(ranges))
		}
		// The coordinator optimizes boolean domains down to at most one
		// surviving value filter; the other range collapses to always-false
		// or is-null.
		var boolFilter filters.Filter
		for _, r := range ranges {
			f, err := boolRangeToFilter(conv, typ, r, nullAllowed)
			if err != nil {
				return nil, err
			}
			if f.Kind() == filters.KindAlwaysFalse || f.Kind() == filters.KindIsNull {
				continue
			}
			if boolFilter != nil {
				return nil, qerrors.Invariantf("contradictory boolean domain")
			}
			boolFilter = f
		}
		if boolFilter == nil {
			return nil, qerrors.Invariantf("boolean domain with no surviving value filter")
		}
		return boolFilter, nil
	}

	subFilters := make([]filters.Filter, 0, len(ranges))
	for _, r := range ranges {
		f, err := rangeToFilter(conv, typ, r, nullAllowed)
		if err != nil {
			return nil, err
		}
		subFilters = append(subFilters, f)
	}
	return filters.NewMultiRange(subFilters, nullAllowed), nil
}

// bound is the normalized state of one range marker.
type bound struct {
	unbounded bool
	exclusive bool
}

// lowBound normalizes a range's low marker for continuous and byte-string
// domains, where only an exclusive missing value means unbounded.
func lowBound(r wire.Range) bound {
	exclusive := r.Low.Bound == wire.BoundAbove
	return bound{unbounded: r.Low.Unbounded() && exclusive, exclusive: exclusive}
}

// highBound is the high-marker counterpart of lowBound.
func highBound(r wire.Range) bound {
	exclusive := r.High.Bound == wire.BoundBelow
	return bound{unbounded: r.High.Unbounded() && exclusive, exclusive: exclusive}
}

func rangeToFilter(conv exprconv.Converter, typ sqltypes.Type, r wire.Range, nullAllowed bool) (filters.Filter, error) {
	switch typ.Kind {
	case sqltypes.Tinyint, sqltypes.Smallint, sqltypes.Integer, sqltypes.Bigint:
		return bigintRangeToFilter(conv, typ, r, nullAllowed)
	case sqltypes.Double:
		return doubleRangeToFilter(conv, typ, r, nullAllowed)
	case sqltypes.Varchar:
		return bytesRangeToFilter(conv, typ, r, nullAllowed)
	case sqltypes.Boolean:
		return boolRangeToFilter(conv, typ, r, nullAllowed)
	case sqltypes.Real:
		return floatRangeToFilter(conv, typ, r, nullAllowed)
	case sqltypes.Date:
		return dateRangeToFilter(conv, typ, r, nullAllowed)
	}
	return nil, qerrors.Unsupportedf("range filter on type %v", typ)
}

func markerInt64(conv exprconv.Converter, typ sqltypes.Type, m wire.Marker) (int64, error) {
	v, err := conv.ConstantValue(typ, *m.ValueBlock)
	if err != nil {
		return 0, err
	}
	return v.Int64(), nil
}

// bigintRangeToFilter converts an integer range to an inclusive bigint
// interval: exclusive bounds shift by one, missing bounds become the int64
// extremes.
func bigintRangeToFilter(conv exprconv.Converter, typ sqltypes.Type, r wire.Range, nullAllowed bool) (*filters.BigintRange, error) {
	low := int64(math.MinInt64)
	if !r.Low.Unbounded() {
		v, err := markerInt64(conv, typ, r.Low)
		if err != nil {
			return nil, err
		}
		low = v
		if r.Low.Bound == wire.BoundAbove {
			low++
		}
	}

	high := int64(math.MaxInt64)
	if !r.High.Unbounded() {
		v, err := markerInt64(conv, typ, r.High)
		if err != nil {
			return nil, err
		}
		high = v
		if r.High.Bound == wire.BoundBelow {
			high--
		}
	}
	return filters.NewBigintRange(low, high, nullAllowed), nil
}

// dateRangeToFilter is bigintRangeToFilter over day counts, bounded by the
// int32 extremes dates are stored in.
func dateRangeToFilter(conv exprconv.Converter, typ sqltypes.Type, r wire.Range, nullAllowed bool) (*filters.BigintRange, error) {
	low := int64(math.MinInt32)
	if !r.Low.Unbounded() {
		v, err := markerInt64(conv, typ, r.Low)
		if err != nil {
			return nil, err
		}
		low = v
		if r.Low.Bound == wire.BoundAbove {
			low++
		}
	}

	high := int64(math.MaxInt32)
	if !r.High.Unbounded() {
		v, err := markerInt64(conv, typ, r.High)
		if err != nil {
			return nil, err
		}
		high = v
		if r.High.Bound == wire.BoundBelow {
			high--
		}
	}
	return filters.NewBigintRange(low, high, nullAllowed), nil
}

func doubleRangeToFilter(conv exprconv.Converter, typ sqltypes.Type, r wire.Range, nullAllowed bool) (*filters.DoubleRange, error) {
	lowB := lowBound(r)
	low := -math.MaxFloat64
	if !lowB.unbounded {
		v, err := conv.ConstantValue(typ, *r.Low.ValueBlock)
		if err != nil {
			return nil, err
		}
		low = v.Float64()
	}

	highB := highBound(r)
	high := math.MaxFloat64
	if !highB.unbounded {
		v, err := conv.ConstantValue(typ, *r.High.ValueBlock)
		if err != nil {
			return nil, err
		}
		high = v.Float64()
	}
	return filters.NewDoubleRange(low, lowB.unbounded, lowB.exclusive,
		high, highB.unbounded, highB.exclusive, nullAllowed), nil
}

func floatRangeToFilter(conv exprconv.Converter, typ sqltypes.Type, r wire.Range, nullAllowed bool) (*filters.FloatRange, error) {
	lowB := lowBound(r)
	low := float32(-math.MaxFloat32)
	if !lowB.unbounded {
		v, err := conv.ConstantValue(typ, *r.Low.ValueBlock)
		if err != nil {
			return nil, err
		}
		low = float32(v.Float64())
	}

	highB := highBound(r)
	high := float32(math.MaxFloat32)
	if !highB.unbounded {
		v, err := conv.ConstantValue(typ, *r.High.ValueBlock)
		if err != nil {
			return nil, err
		}
		high = float32(v.Float64())
	}
	return filters.NewFloatRange(low, lowB.unbounded, lowB.exclusive,
		high, highB.unbounded, highB.exclusive, nullAllowed), nil
}

func bytesRangeToFilter(conv exprconv.Converter, typ sqltypes.Type, r wire.Range, nullAllowed bool) (*filters.BytesRange, error) {
	lowB := lowBound(r)
	low := ""
	if !lowB.unbounded {
		v, err := conv.ConstantValue(typ, *r.Low.ValueBlock)
		if err != nil {
			return nil, err
		}
		low = v.Text()
	}

	highB := highBound(r)
	high := ""
	if !highB.unbounded {
		v, err := conv.ConstantValue(typ, *r.High.ValueBlock)
		if err != nil {
			return nil, err
		}
		high = v.Text()
	}
	return filters.NewBytesRange(low, lowB.unbounded, lowB.exclusive,
		high, highB.unbounded, highB.exclusive, nullAllowed), nil
}

// boolRangeToFilter compiles a boolean range. The coordinator optimizes
// boolean ranges to one-sided form before shipping ([FALSE, TRUE) arrives
// as (-infinity, TRUE)), so a range bounded on both sides, or on neither,
// indicates a planner bug.
func boolRangeToFilter(conv exprconv.Converter, typ sqltypes.Type, r wire.Range, nullAllowed bool) (filters.Filter, error) {
	lowB := lowBound(r)
	highB := highBound(r)

	markerBool := func(m wire.Marker) (bool, error) {
		v, err := conv.ConstantValue(typ, *m.ValueBlock)
		if err != nil {
			return false, err
		}
		return v.Bool(), nil
	}

	if !lowB.unbounded && !highB.unbounded {
		return nil, qerrors.Invariantf("double-bounded boolean range")
	}
	if lowB.unbounded && highB.unbounded {
		return nil, qerrors.Invariantf("boolean range unbounded on both sides")
	}

	if !lowB.unbounded {
		lowValue, err := markerBool(r.Low)
		if err != nil {
			return nil, err
		}
		// (TRUE, +inf) admits nothing.
		if lowB.exclusive && lowValue {
			if nullAllowed {
				return filters.IsNull{}, nil
			}
			return filters.AlwaysFalse{}, nil
		}
		if !lowB.exclusive && !lowValue {
			return nil, qerrors.Invariantf("boolean range [FALSE, +inf)")
		}
		return filters.NewBoolValue(true, nullAllowed), nil
	}

	highValue, err := markerBool(r.High)
	if err != nil {
		return nil, err
	}
	// (-inf, FALSE) admits nothing.
	if highB.exclusive && !highValue {
		if nullAllowed {
			return filters.IsNull{}, nil
		}
		return filters.AlwaysFalse{}, nil
	}
	if !highB.exclusive && highValue {
		return nil, qerrors.Invariantf("boolean range (-inf, TRUE]")
	}
	return filters.NewBoolValue(false, nullAllowed), nil
}

// combineIntegerRanges compacts a multi-range integer domain. In order of
// preference: a value set when every range is a point; a negated range when
// two ranges span both extremes; a negated value set when the ranges tile
// the int64 space around isolated rejected points up to the maximum;
// otherwise the generic ordered multi-range.
func combineIntegerRanges(bigintFilters []*filters.BigintRange, nullAllowed bool) filters.Filter {
	allSingleValue := true
	for _, f := range bigintFilters {
		if !f.IsSingleValue() {
			allSingleValue = false
			break
		}
	}
	if allSingleValue {
		values := make([]int64, 0, len(bigintFilters))
		for _, f := range bigintFilters {
			values = append(values, f.Lower)
		}
		return filters.NewBigintValues(values, nullAllowed)
	}

	if len(bigintFilters) == 2 &&
		bigintFilters[0].Lower == math.MinInt64 &&
		bigintFilters[1].Upper == math.MaxInt64 {
		return filters.NewNegatedBigintRange(
			bigintFilters[0].Upper+1, bigintFilters[1].Lower-1, nullAllowed)
	}

	allNegatedValues := true
	foundMaximum := false
	rejectedValues := make([]int64, 0, len(bigintFilters))

	// int64 min itself may be a rejected value.
	if bigintFilters[0].Lower == math.MinInt64+1 {
		rejectedValues = append(rejectedValues, math.MinInt64)
	}
	if bigintFilters[0].Lower > math.MinInt64+1 {
		// Too many values below the first range.
		return filters.NewBigintMultiRange(bigintFilters, nullAllowed)
	}
	rejectedValues = append(rejectedValues, bigintFilters[0].Upper+1)
	for i := 1; i < len(bigintFilters); i++ {
		if bigintFilters[i].Lower != bigintFilters[i-1].Upper+2 {
			allNegatedValues = false
			break
		}
		if bigintFilters[i].Upper == math.MaxInt64 {
			foundMaximum = true
			break
		}
		rejectedValues = append(rejectedValues, bigintFilters[i].Upper+1)
		// No further range fits above this one.
		if bigintFilters[i].Upper == math.MaxInt64-1 {
			foundMaximum = true
			break
		}
	}

	if allNegatedValues && foundMaximum {
		return filters.NewNegatedBigintValues(rejectedValues, nullAllowed)
	}
	return filters.NewBigintMultiRange(bigintFilters, nullAllowed)
}

// combineBytesRanges compacts a multi-range byte-string domain: a value
// set when every range is a point; a negated value set when all bounds are
// exclusive and pair up fully except one unmatched low and one unmatched
// high; a negated range for two ranges spanning both extremes; otherwise
// the generic multi-range.
func combineBytesRanges(bytesFilters []*filters.BytesRange, nullAllowed bool) filters.Filter {
	allSingleValue := true
	for _, f := range bytesFilters {
		if !f.IsSingleValue() {
			allSingleValue = false
			break
		}
	}
	if allSingleValue {
		values := make([]string, 0, len(bytesFilters))
		for _, f := range bytesFilters {
			values = append(values, f.Lower)
		}
		return filters.NewBytesValues(values, nullAllowed)
	}

	allExclusive := true
	for _, f := range bytesFilters {
		if !f.LowerExclusive || !f.UpperExclusive {
			allExclusive = false
			break
		}
	}
	if allExclusive {
		lowerUnbounded, upperUnbounded := 0, 0
		unmatched := make(map[string]struct{})
		rejectedValues := make([]string, 0, len(bytesFilters))
		for _, f := range bytesFilters {
			if f.LowerUnbounded {
				lowerUnbounded++
			} else if _, ok := unmatched[f.Lower]; ok {
				delete(unmatched, f.Lower)
				rejectedValues = append(rejectedValues, f.Lower)
			} else {
				unmatched[f.Lower] = struct{}{}
			}
			if f.UpperUnbounded {
				upperUnbounded++
			} else if _, ok := unmatched[f.Upper]; ok {
				delete(unmatched, f.Upper)
				rejectedValues = append(rejectedValues, f.Upper)
			} else {
				unmatched[f.Upper] = struct{}{}
			}
		}
		if lowerUnbounded == 1 && upperUnbounded == 1 && len(unmatched) == 0 {
			return filters.NewNegatedBytesValues(rejectedValues, nullAllowed)
		}
	}

	if len(bytesFilters) == 2 && bytesFilters[0].LowerUnbounded && bytesFilters[1].UpperUnbounded {
		// The gap between the two outward-unbounded ranges is the rejected
		// interval.
		return filters.NewNegatedBytesRange(filters.NewBytesRange(
			bytesFilters[0].Upper, false, !bytesFilters[0].UpperExclusive,
			bytesFilters[1].Lower, false, !bytesFilters[1].LowerExclusive,
			nullAllowed))
	}

	generic := make([]filters.Filter, 0, len(bytesFilters))
	for _, f := range bytesFilters {
		generic = append(generic, f)
	}
	return filters.NewMultiRange(generic, nullAllowed)
}
