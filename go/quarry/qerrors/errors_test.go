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

package qerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	err := Unsupportedf("unknown plan node type %q", "mystery")
	assert.Equal(t, CodeUnsupportedConstruct, CodeOf(err))
	assert.Contains(t, err.Error(), "mystery")

	err = Invariantf("unexpected always-false remaining predicate")
	assert.Equal(t, CodeInvariantViolation, CodeOf(err))

	assert.Equal(t, CodeUnknown, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeUnknown, CodeOf(nil))
}

func TestWrapPreservesCode(t *testing.T) {
	inner := Invariantf("empty range list with nulls disallowed")
	wrapped := Wrapf(inner, "column %q", "l_orderkey")
	require.Error(t, wrapped)
	assert.Equal(t, CodeInvariantViolation, CodeOf(wrapped))
	assert.Contains(t, wrapped.Error(), `column "l_orderkey"`)
	assert.Contains(t, wrapped.Error(), "nulls disallowed")

	// Codes survive fmt wrapping too.
	refmt := fmt.Errorf("translating fragment: %w", wrapped)
	assert.Equal(t, CodeInvariantViolation, CodeOf(refmt))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "ignored"))
}
