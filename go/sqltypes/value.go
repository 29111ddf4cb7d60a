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

package sqltypes

import (
	"fmt"
	"math"
	"strconv"
)

// Value is a typed scalar constant. The zero Value is a typed NULL of
// unknown type. Values are immutable once constructed.
type Value struct {
	typ  Type
	null bool

	i int64
	f float64
	b bool
	s string
}

// NULL returns a null value of the given type.
func NULL(typ Type) Value {
	return Value{typ: typ, null: true}
}

// NewInt64 returns an integer-family value.
func NewInt64(typ Type, v int64) Value {
	return Value{typ: typ, i: v}
}

// NewBigint returns a bigint value.
func NewBigint(v int64) Value {
	return NewInt64(Type{Kind: Bigint}, v)
}

// NewFloat64 returns a double or real value.
func NewFloat64(typ Type, v float64) Value {
	return Value{typ: typ, f: v}
}

// NewBool returns a boolean value.
func NewBool(v bool) Value {
	return Value{typ: Type{Kind: Boolean}, b: v}
}

// NewVarchar returns a varchar value.
func NewVarchar(v string) Value {
	return Value{typ: Type{Kind: Varchar}, s: v}
}

// NewText returns a string-typed value of the given type (varchar or
// varbinary).
func NewText(typ Type, v string) Value {
	return Value{typ: typ, s: v}
}

// NewDate returns a date value represented as days since the epoch.
func NewDate(days int64) Value {
	return NewInt64(Type{Kind: Date}, days)
}

// Type returns the value's type.
func (v Value) Type() Type {
	return v.typ
}

// IsNull reports whether the value is NULL.
func (v Value) IsNull() bool {
	return v.null
}

// Int64 returns the integer payload. Only meaningful for integer-family,
// date and timestamp values.
func (v Value) Int64() int64 {
	return v.i
}

// Float64 returns the floating-point payload.
func (v Value) Float64() float64 {
	return v.f
}

// Bool returns the boolean payload.
func (v Value) Bool() bool {
	return v.b
}

// Text returns the string payload.
func (v Value) Text() string {
	return v.s
}

// String implements fmt.Stringer for diagnostics.
func (v Value) String() string {
	if v.null {
		return fmt.Sprintf("null:%v", v.typ)
	}
	switch v.typ.Kind {
	case Boolean:
		return strconv.FormatBool(v.b)
	case Tinyint, Smallint, Integer, Bigint, Date, Timestamp:
		return strconv.FormatInt(v.i, 10)
	case Real, Double:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case Varchar, Varbinary:
		return strconv.Quote(v.s)
	}
	return fmt.Sprintf("value:%v", v.typ)
}

// Equal reports deep equality of type, nullness and payload. NaN compares
// equal to NaN so constant vectors round-trip.
func (v Value) Equal(other Value) bool {
	if v.typ.Kind != other.typ.Kind || v.null != other.null {
		return false
	}
	if v.null {
		return true
	}
	switch v.typ.Kind {
	case Boolean:
		return v.b == other.b
	case Tinyint, Smallint, Integer, Bigint, Date, Timestamp:
		return v.i == other.i
	case Real, Double:
		if math.IsNaN(v.f) && math.IsNaN(other.f) {
			return true
		}
		return v.f == other.f
	case Varchar, Varbinary:
		return v.s == other.s
	}
	return false
}
