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

// Package exprconv converts wire-format scalar expressions into resolved
// typed expressions, and decodes literal value blocks into typed values.
// The lowering layer consumes it as an opaque service.
package exprconv

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/quarrydb/quarry/go/quarry/exec"
	"github.com/quarrydb/quarry/go/quarry/qerrors"
	"github.com/quarrydb/quarry/go/quarry/wire"
	"github.com/quarrydb/quarry/go/sqltypes"
)

// Converter resolves wire expressions and literal blocks.
type Converter interface {
	// ToTypedExpr converts one wire expression tree.
	ToTypedExpr(expr wire.RowExpression) (exec.TypedExpr, error)
	// ConstantValue decodes a literal block into a value of the given type.
	ConstantValue(typ sqltypes.Type, block wire.Block) (sqltypes.Value, error)
}

// New returns the standard converter. Literal blocks carry their payload
// as a single JSON scalar.
func New() Converter {
	return converter{}
}

type converter struct{}

func (c converter) ToTypedExpr(expr wire.RowExpression) (exec.TypedExpr, error) {
	switch e := expr.(type) {
	case *wire.VariableReference:
		typ, err := sqltypes.ParseType(e.Type)
		if err != nil {
			return nil, qerrors.Unsupportedf("variable %q: %v", e.Name, err)
		}
		return exec.NewFieldAccess(e.Name, typ), nil

	case *wire.CallExpression:
		typ, err := sqltypes.ParseType(e.ReturnType)
		if err != nil {
			return nil, qerrors.Unsupportedf("call %q: %v", e.DisplayName, err)
		}
		args, err := c.toTypedExprs(e.Arguments)
		if err != nil {
			return nil, err
		}
		name := e.DisplayName
		if builtin, ok := e.FunctionHandle.(*wire.BuiltinFunctionHandle); ok {
			name = builtin.Signature.Name
		}
		return &exec.CallExpr{Name: name, Typ: typ, Args: args}, nil

	case *wire.ConstantExpression:
		typ, err := sqltypes.ParseType(e.Type)
		if err != nil {
			return nil, qerrors.Unsupportedf("constant of type %q: %v", e.Type, err)
		}
		v, err := c.ConstantValue(typ, e.ValueBlock)
		if err != nil {
			return nil, err
		}
		return exec.NewConstant(v), nil

	case *wire.SpecialFormExpression:
		typ, err := sqltypes.ParseType(e.ReturnType)
		if err != nil {
			return nil, qerrors.Unsupportedf("special form %q: %v", e.Form, err)
		}
		args, err := c.toTypedExprs(e.Arguments)
		if err != nil {
			return nil, err
		}
		return &exec.CallExpr{Name: strings.ToLower(e.Form), Typ: typ, Args: args}, nil
	}
	return nil, qerrors.Unsupportedf("unknown expression variant %T", expr)
}

func (c converter) toTypedExprs(exprs []wire.RowExpression) ([]exec.TypedExpr, error) {
	out := make([]exec.TypedExpr, 0, len(exprs))
	for _, e := range exprs {
		t, err := c.ToTypedExpr(e)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (converter) ConstantValue(typ sqltypes.Type, block wire.Block) (sqltypes.Value, error) {
	r := gjson.ParseBytes(block.Data)
	if r.Type == gjson.Null {
		return sqltypes.NULL(typ), nil
	}
	switch typ.Kind {
	case sqltypes.Boolean:
		return sqltypes.NewBool(r.Bool()), nil
	case sqltypes.Tinyint, sqltypes.Smallint, sqltypes.Integer, sqltypes.Bigint,
		sqltypes.Date, sqltypes.Timestamp:
		return sqltypes.NewInt64(typ, r.Int()), nil
	case sqltypes.Real, sqltypes.Double:
		return sqltypes.NewFloat64(typ, r.Float()), nil
	case sqltypes.Varchar, sqltypes.Varbinary:
		return sqltypes.NewText(typ, r.String()), nil
	}
	return sqltypes.Value{}, qerrors.Unsupportedf("literal block of type %v", typ)
}

// ConstantOf resolves expr to a literal value when it is a constant
// expression. The second return is false when expr is not a constant.
func ConstantOf(conv Converter, expr wire.RowExpression) (sqltypes.Value, bool, error) {
	c, ok := expr.(*wire.ConstantExpression)
	if !ok {
		return sqltypes.Value{}, false, nil
	}
	typ, err := sqltypes.ParseType(c.Type)
	if err != nil {
		return sqltypes.Value{}, false, qerrors.Unsupportedf("constant of type %q: %v", c.Type, err)
	}
	v, err := conv.ConstantValue(typ, c.ValueBlock)
	if err != nil {
		return sqltypes.Value{}, false, err
	}
	return v, true, nil
}
