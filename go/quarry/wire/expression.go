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

import "encoding/json"

// Names of built-in scalar functions the lowering layer pattern-matches
// on. The coordinator qualifies built-ins with the "core." namespace.
const (
	BuiltinNot         = "core.not"
	BuiltinGreaterThan = "core.$operator$greater_than"
)

// FunctionKindScalar is the function kind of plain scalar built-ins.
const FunctionKindScalar = "SCALAR"

// RowExpression is a wire-format scalar expression. Variants:
// *VariableReference, *CallExpression, *ConstantExpression,
// *SpecialFormExpression.
type RowExpression interface {
	isRowExpression()
}

// VariableReference names an input column together with its string type
// signature. It doubles as the column descriptor in output layouts.
type VariableReference struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (*VariableReference) isRowExpression() {}

// Matches reports whether expr is a reference to the same variable.
func (v VariableReference) Matches(expr RowExpression) bool {
	ref, ok := expr.(*VariableReference)
	return ok && ref.Name == v.Name && ref.Type == v.Type
}

// FunctionHandle identifies the implementation of a call expression.
// Variants: *BuiltinFunctionHandle.
type FunctionHandle interface {
	isFunctionHandle()
}

// FunctionSignature is the resolved name and kind of a built-in.
type FunctionSignature struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// BuiltinFunctionHandle is the handle of coordinator built-ins.
type BuiltinFunctionHandle struct {
	Signature FunctionSignature `json:"signature"`
}

func (*BuiltinFunctionHandle) isFunctionHandle() {}

// CallExpression is a function invocation.
type CallExpression struct {
	DisplayName    string          `json:"displayName"`
	FunctionHandle FunctionHandle  `json:"-"`
	ReturnType     string          `json:"returnType"`
	Arguments      []RowExpression `json:"-"`
}

func (*CallExpression) isRowExpression() {}

// SpecialFormExpression covers non-function scalar forms (AND, OR, IF,
// COALESCE, ...) that have no function handle.
type SpecialFormExpression struct {
	Form       string          `json:"form"`
	ReturnType string          `json:"returnType"`
	Arguments  []RowExpression `json:"-"`
}

func (*SpecialFormExpression) isRowExpression() {}

// Block is an opaque serialized literal: a single value (or one-column
// vector) encoded by the coordinator. Only the expression converter
// interprets its payload.
type Block struct {
	Data json.RawMessage `json:"data"`
}

// ConstantExpression is a literal constant carried as a typed block.
type ConstantExpression struct {
	Type       string `json:"type"`
	ValueBlock Block  `json:"valueBlock"`
}

func (*ConstantExpression) isRowExpression() {}

// Assignment binds an output variable to the expression producing it.
type Assignment struct {
	Variable   VariableReference
	Expression RowExpression
}

// IsFunctionCall returns expr as a call expression if it invokes the named
// scalar built-in, and nil otherwise.
func IsFunctionCall(expr RowExpression, name string) *CallExpression {
	call, ok := expr.(*CallExpression)
	if !ok {
		return nil
	}
	builtin, ok := call.FunctionHandle.(*BuiltinFunctionHandle)
	if !ok {
		return nil
	}
	if builtin.Signature.Kind != FunctionKindScalar || builtin.Signature.Name != name {
		return nil
	}
	return call
}
