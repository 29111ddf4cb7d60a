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

// Package qerrors provides coded errors for the plan lowering layer.
//
// Two codes abort a translation:
//
//   - CodeUnsupportedConstruct: the coordinator shipped a wire-level shape
//     this worker does not implement (unknown node variant, unsupported
//     value-set kind, unsupported partitioning function, unsupported
//     execution strategy). The message always names the offending
//     construct.
//
//   - CodeInvariantViolation: the coordinator produced a plan that breaks
//     a contract the lowering relies on (always-false remaining predicate,
//     contradictory boolean range, empty domain with nulls disallowed).
//     This indicates a planner bug upstream, not a missing worker feature.
//
// Neither is retried or recovered locally; both propagate to the caller.
package qerrors

import (
	"errors"
	"fmt"
)

// Code classifies a lowering failure.
type Code int

const (
	// CodeUnknown is the code of errors not created by this package.
	CodeUnknown Code = iota
	// CodeUnsupportedConstruct marks wire shapes the worker does not
	// implement.
	CodeUnsupportedConstruct
	// CodeInvariantViolation marks coordinator-produced plans that break
	// translator contracts.
	CodeInvariantViolation
)

func (c Code) String() string {
	switch c {
	case CodeUnsupportedConstruct:
		return "UNSUPPORTED_CONSTRUCT"
	case CodeInvariantViolation:
		return "INVARIANT_VIOLATION"
	}
	return "UNKNOWN"
}

type codedError struct {
	code Code
	msg  string
	err  error
}

func (e *codedError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *codedError) Unwrap() error {
	return e.err
}

// New returns an error with the given code and message.
func New(code Code, msg string) error {
	return &codedError{code: code, msg: msg}
}

// Errorf returns a formatted error with the given code.
func Errorf(code Code, format string, args ...any) error {
	return &codedError{code: code, msg: fmt.Sprintf(format, args...)}
}

// Unsupportedf returns a CodeUnsupportedConstruct error. The message must
// name the offending construct.
func Unsupportedf(format string, args ...any) error {
	return Errorf(CodeUnsupportedConstruct, format, args...)
}

// Invariantf returns a CodeInvariantViolation error.
func Invariantf(format string, args ...any) error {
	return Errorf(CodeInvariantViolation, format, args...)
}

// Wrap annotates err with a message, preserving its code.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &codedError{code: CodeOf(err), msg: msg, err: err}
}

// Wrapf annotates err with a formatted message, preserving its code.
func Wrapf(err error, format string, args ...any) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// CodeOf extracts the code from an error chain. Errors not created by
// this package report CodeUnknown.
func CodeOf(err error) Code {
	var coded *codedError
	if errors.As(err, &coded) {
		return coded.code
	}
	return CodeUnknown
}
