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

// Package sqltypes implements the type system shared by the wire protocol
// and the internal plan: string type signatures parsed into structured
// types, and typed scalar values.
package sqltypes

import (
	"fmt"
	"strings"
)

// Kind identifies a type family.
type Kind int

const (
	Unknown Kind = iota
	Boolean
	Tinyint
	Smallint
	Integer
	Bigint
	Real
	Double
	Varchar
	Varbinary
	Date
	Timestamp
	Array
	Map
	Row
)

var kindNames = map[Kind]string{
	Unknown:   "unknown",
	Boolean:   "boolean",
	Tinyint:   "tinyint",
	Smallint:  "smallint",
	Integer:   "integer",
	Bigint:    "bigint",
	Real:      "real",
	Double:    "double",
	Varchar:   "varchar",
	Varbinary: "varbinary",
	Date:      "date",
	Timestamp: "timestamp",
	Array:     "array",
	Map:       "map",
	Row:       "row",
}

var scalarKinds = map[string]Kind{
	"boolean":   Boolean,
	"tinyint":   Tinyint,
	"smallint":  Smallint,
	"integer":   Integer,
	"bigint":    Bigint,
	"real":      Real,
	"double":    Double,
	"varchar":   Varchar,
	"varbinary": Varbinary,
	"date":      Date,
	"timestamp": Timestamp,
}

// Type is a resolved column type. Parameterized types (array, map, row)
// carry their element types in Children.
type Type struct {
	Kind     Kind
	Children []Type
}

func (t Type) String() string {
	name := kindNames[t.Kind]
	if len(t.Children) == 0 {
		return name
	}
	parts := make([]string, 0, len(t.Children))
	for _, c := range t.Children {
		parts = append(parts, c.String())
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ","))
}

// IsIntegerFamily reports whether the type is one of the fixed-width
// integer types that share bigint range-filter semantics.
func (t Type) IsIntegerFamily() bool {
	switch t.Kind {
	case Tinyint, Smallint, Integer, Bigint:
		return true
	}
	return false
}

// ParseType parses a string type signature, e.g. "bigint",
// "varchar(32)", "array(bigint)" or "map(varchar,bigint)". Length
// parameters on character types are accepted and discarded.
func ParseType(signature string) (Type, error) {
	s := strings.TrimSpace(strings.ToLower(signature))
	if s == "" {
		return Type{}, fmt.Errorf("empty type signature")
	}

	base := s
	var params string
	if i := strings.IndexByte(s, '('); i >= 0 {
		if !strings.HasSuffix(s, ")") {
			return Type{}, fmt.Errorf("malformed type signature: %q", signature)
		}
		base = strings.TrimSpace(s[:i])
		params = s[i+1 : len(s)-1]
	}

	if kind, ok := scalarKinds[base]; ok {
		// varchar(n) and friends: the length parameter does not change
		// filter or plan semantics.
		return Type{Kind: kind}, nil
	}

	switch base {
	case "array":
		elem, err := ParseType(params)
		if err != nil {
			return Type{}, err
		}
		return Type{Kind: Array, Children: []Type{elem}}, nil
	case "map":
		parts, err := splitTopLevel(params)
		if err != nil || len(parts) != 2 {
			return Type{}, fmt.Errorf("malformed map signature: %q", signature)
		}
		key, err := ParseType(parts[0])
		if err != nil {
			return Type{}, err
		}
		val, err := ParseType(parts[1])
		if err != nil {
			return Type{}, err
		}
		return Type{Kind: Map, Children: []Type{key, val}}, nil
	case "row":
		parts, err := splitTopLevel(params)
		if err != nil {
			return Type{}, err
		}
		children := make([]Type, 0, len(parts))
		for _, p := range parts {
			// Row fields may be named: "row(a bigint, b varchar)".
			if j := strings.LastIndexByte(p, ' '); j >= 0 && !strings.ContainsAny(p[j:], "()") {
				p = p[j+1:]
			}
			c, err := ParseType(p)
			if err != nil {
				return Type{}, err
			}
			children = append(children, c)
		}
		return Type{Kind: Row, Children: children}, nil
	}
	return Type{}, fmt.Errorf("unknown type signature: %q", signature)
}

// MustParseType is a test helper that panics on malformed signatures.
func MustParseType(signature string) Type {
	t, err := ParseType(signature)
	if err != nil {
		panic(err)
	}
	return t
}

// splitTopLevel splits a comma-separated parameter list without breaking
// nested parentheses.
func splitTopLevel(s string) ([]string, error) {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced parentheses in %q", s)
			}
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced parentheses in %q", s)
	}
	parts = append(parts, strings.TrimSpace(s[start:]))
	return parts, nil
}

// RowType describes the output layout of a plan node: parallel lists of
// column names and types.
type RowType struct {
	Names []string
	Types []Type
}

// Size returns the number of columns.
func (r RowType) Size() int {
	return len(r.Names)
}

// IndexOf returns the channel of the named column.
func (r RowType) IndexOf(name string) (int, bool) {
	for i, n := range r.Names {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

// Append returns a copy of the row type with one more column.
func (r RowType) Append(name string, typ Type) RowType {
	names := make([]string, 0, len(r.Names)+1)
	types := make([]Type, 0, len(r.Types)+1)
	names = append(append(names, r.Names...), name)
	types = append(append(types, r.Types...), typ)
	return RowType{Names: names, Types: types}
}
