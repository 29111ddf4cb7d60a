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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydb/quarry/go/quarry/exec"
	"github.com/quarrydb/quarry/go/quarry/exprconv"
	"github.com/quarrydb/quarry/go/quarry/qerrors"
	"github.com/quarrydb/quarry/go/quarry/wire"
	"github.com/quarrydb/quarry/go/sqltypes"
)

func valuesSource() exec.PlanNode {
	return &exec.ValuesNode{
		NodeID: "values",
		Output: sqltypes.RowType{
			Names: []string{"a", "b"},
			Types: []sqltypes.Type{{Kind: sqltypes.Bigint}, {Kind: sqltypes.Varchar}},
		},
	}
}

func systemScheme(partitioning wire.SystemPartitioning, fn wire.SystemPartitionFunction, bucketToPartition []int32, args ...wire.RowExpression) wire.PartitioningScheme {
	return wire.PartitioningScheme{
		Partitioning: wire.Partitioning{
			Handle:    &wire.SystemPartitioningHandle{Partitioning: partitioning, Function: fn},
			Arguments: args,
		},
		OutputLayout: []wire.VariableReference{
			{Name: "a", Type: "bigint"},
			{Name: "b", Type: "varchar"},
		},
		BucketToPartition: bucketToPartition,
	}
}

func TestCompileSingleOutput(t *testing.T) {
	conv := exprconv.New()

	output, err := CompilePartitionedOutput(conv,
		systemScheme(wire.PartitioningSingle, wire.PartitionFnSingle, nil), valuesSource())
	require.NoError(t, err)
	assert.True(t, output.IsSingle())
	assert.Equal(t, []string{"a", "b"}, output.OutputType().Names)

	// SINGLE distribution only pairs with the SINGLE function.
	_, err = CompilePartitionedOutput(conv,
		systemScheme(wire.PartitioningSingle, wire.PartitionFnHash, nil), valuesSource())
	require.Error(t, err)
	assert.Equal(t, qerrors.CodeUnsupportedConstruct, qerrors.CodeOf(err))
}

func TestCompileSinglePartitionCollapse(t *testing.T) {
	conv := exprconv.New()
	onePartition := []int32{0}
	key := &wire.VariableReference{Name: "a", Type: "bigint"}

	// Every function kind collapses to a single output when only one
	// partition exists.
	hash, err := CompilePartitionedOutput(conv,
		systemScheme(wire.PartitioningFixed, wire.PartitionFnHash, onePartition, key), valuesSource())
	require.NoError(t, err)
	assert.True(t, hash.IsSingle())

	roundRobin, err := CompilePartitionedOutput(conv,
		systemScheme(wire.PartitioningFixed, wire.PartitionFnRoundRobin, onePartition), valuesSource())
	require.NoError(t, err)
	assert.True(t, roundRobin.IsSingle())

	bucketScheme := systemScheme(wire.PartitioningFixed, wire.PartitionFnHash, onePartition, key)
	bucketScheme.Partitioning.Handle = &wire.BucketPartitioningHandle{
		BucketCount:  8,
		FunctionKind: wire.BucketCompatible,
	}
	bucketed, err := CompilePartitionedOutput(conv, bucketScheme, valuesSource())
	require.NoError(t, err)
	assert.True(t, bucketed.IsSingle())
}

func TestCompileHashOutput(t *testing.T) {
	conv := exprconv.New()

	output, err := CompilePartitionedOutput(conv,
		systemScheme(wire.PartitioningFixed, wire.PartitionFnHash, []int32{0, 1, 2, 3},
			&wire.VariableReference{Name: "a", Type: "bigint"}), valuesSource())
	require.NoError(t, err)
	assert.False(t, output.IsSingle())
	assert.Equal(t, 4, output.NumPartitions)

	spec := output.Spec.(*exec.HashSpec)
	assert.Equal(t, []int{0}, spec.Channels)
	assert.Empty(t, spec.Constants)
}

func TestCompileHashOutputConstantKey(t *testing.T) {
	conv := exprconv.New()

	output, err := CompilePartitionedOutput(conv,
		systemScheme(wire.PartitioningFixed, wire.PartitionFnHash, []int32{0, 1},
			&wire.VariableReference{Name: "b", Type: "varchar"},
			&wire.ConstantExpression{Type: "bigint", ValueBlock: *block("42")}),
		valuesSource())
	require.NoError(t, err)

	spec := output.Spec.(*exec.HashSpec)
	assert.Equal(t, []int{1, exec.ConstantChannel}, spec.Channels)
	require.Len(t, spec.Constants, 1)
	assert.Equal(t, int64(42), spec.Constants[0].Int64())
}

func TestCompileBroadcastOutput(t *testing.T) {
	conv := exprconv.New()

	output, err := CompilePartitionedOutput(conv,
		systemScheme(wire.PartitioningFixed, wire.PartitionFnBroadcast, []int32{0, 1}), valuesSource())
	require.NoError(t, err)
	assert.Equal(t, exec.OutputBroadcast, output.Kind)
	assert.False(t, output.IsSingle())
}

func TestCompileBucketedOutput(t *testing.T) {
	conv := exprconv.New()

	scheme := systemScheme(wire.PartitioningFixed, wire.PartitionFnHash, []int32{0, 1, 0, 1},
		&wire.VariableReference{Name: "a", Type: "bigint"})
	scheme.Partitioning.Handle = &wire.BucketPartitioningHandle{
		BucketCount:  4,
		FunctionKind: wire.BucketCompatible,
	}

	output, err := CompilePartitionedOutput(conv, scheme, valuesSource())
	require.NoError(t, err)
	assert.Equal(t, 2, output.NumPartitions)

	spec := output.Spec.(*exec.BucketSpec)
	assert.Equal(t, int32(4), spec.BucketCount)
	assert.Equal(t, []int32{0, 1, 0, 1}, spec.BucketToPartition)
	assert.Equal(t, []int{0}, spec.Channels)

	// Only storage-compatible bucket functions are executable here.
	scheme.Partitioning.Handle = &wire.BucketPartitioningHandle{
		BucketCount:  4,
		FunctionKind: wire.BucketNative,
	}
	_, err = CompilePartitionedOutput(conv, scheme, valuesSource())
	require.Error(t, err)
	assert.Equal(t, qerrors.CodeUnsupportedConstruct, qerrors.CodeOf(err))
}

func TestCompileUnknownPartitioning(t *testing.T) {
	conv := exprconv.New()

	_, err := CompilePartitionedOutput(conv,
		systemScheme(wire.PartitioningScaled, wire.PartitionFnUnknown, nil), valuesSource())
	require.Error(t, err)
	assert.Equal(t, qerrors.CodeUnsupportedConstruct, qerrors.CodeOf(err))

	// A key naming a column the source does not produce is a planner bug.
	_, err = CompilePartitionedOutput(conv,
		systemScheme(wire.PartitioningFixed, wire.PartitionFnHash, []int32{0, 1},
			&wire.VariableReference{Name: "missing", Type: "bigint"}), valuesSource())
	require.Error(t, err)
	assert.Equal(t, qerrors.CodeInvariantViolation, qerrors.CodeOf(err))
}
