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

package exec

import (
	"fmt"
	"strings"

	"github.com/quarrydb/quarry/go/sqltypes"
)

// TypedExpr is a resolved scalar expression. Variants: *FieldAccessExpr,
// *CallExpr, *ConstantExpr.
type TypedExpr interface {
	Type() sqltypes.Type
	String() string
}

// FieldAccessExpr reads one input column by name.
type FieldAccessExpr struct {
	Name string
	Typ  sqltypes.Type
}

// NewFieldAccess returns a column reference expression.
func NewFieldAccess(name string, typ sqltypes.Type) *FieldAccessExpr {
	return &FieldAccessExpr{Name: name, Typ: typ}
}

func (e *FieldAccessExpr) Type() sqltypes.Type { return e.Typ }

func (e *FieldAccessExpr) String() string { return e.Name }

// CallExpr invokes a resolved function.
type CallExpr struct {
	Name string
	Typ  sqltypes.Type
	Args []TypedExpr
}

func (e *CallExpr) Type() sqltypes.Type { return e.Typ }

func (e *CallExpr) String() string {
	args := make([]string, 0, len(e.Args))
	for _, a := range e.Args {
		args = append(args, a.String())
	}
	return fmt.Sprintf("%s(%s)", e.Name, strings.Join(args, ", "))
}

// ConstantExpr is a resolved literal.
type ConstantExpr struct {
	Value sqltypes.Value
}

// NewConstant returns a literal expression.
func NewConstant(v sqltypes.Value) *ConstantExpr {
	return &ConstantExpr{Value: v}
}

func (e *ConstantExpr) Type() sqltypes.Type { return e.Value.Type() }

func (e *ConstantExpr) String() string { return e.Value.String() }
