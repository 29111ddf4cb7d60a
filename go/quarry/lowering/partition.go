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
	"github.com/quarrydb/quarry/go/quarry/exec"
	"github.com/quarrydb/quarry/go/quarry/exprconv"
	"github.com/quarrydb/quarry/go/quarry/qerrors"
	"github.com/quarrydb/quarry/go/quarry/wire"
	"github.com/quarrydb/quarry/go/sqltypes"
)

// toRowType resolves a wire output layout into a typed row.
func toRowType(layout []wire.VariableReference) (sqltypes.RowType, error) {
	names := make([]string, 0, len(layout))
	types := make([]sqltypes.Type, 0, len(layout))
	for _, v := range layout {
		typ, err := sqltypes.ParseType(v.Type)
		if err != nil {
			return sqltypes.RowType{}, qerrors.Unsupportedf("column %q type %q: %v", v.Name, v.Type, err)
		}
		names = append(names, v.Name)
		types = append(types, typ)
	}
	return sqltypes.RowType{Names: names, Types: types}, nil
}

// toChannels resolves partition key expressions against the input layout.
// Field accesses become input channels; literals become constant channels
// carrying the literal so all producers bucket them identically.
func toChannels(input sqltypes.RowType, keys []exec.TypedExpr) ([]int, []sqltypes.Value, error) {
	channels := make([]int, 0, len(keys))
	var constants []sqltypes.Value
	for _, key := range keys {
		switch e := key.(type) {
		case *exec.FieldAccessExpr:
			idx, ok := input.IndexOf(e.Name)
			if !ok {
				return nil, nil, qerrors.Invariantf("partition key %q not in input layout", e.Name)
			}
			channels = append(channels, idx)
		case *exec.ConstantExpr:
			channels = append(channels, exec.ConstantChannel)
			constants = append(constants, e.Value)
		default:
			return nil, nil, qerrors.Invariantf("partition key must be a column or literal, got %T", key)
		}
	}
	return channels, constants, nil
}

// CompilePartitionedOutput derives the fragment's output tail from its
// partitioning scheme. Whenever the resolved consumer count is 1 the tail
// collapses to a single-partition output regardless of function kind.
func CompilePartitionedOutput(conv exprconv.Converter, scheme wire.PartitioningScheme, source exec.PlanNode) (*exec.PartitionedOutputNode, error) {
	outputType, err := toRowType(scheme.OutputLayout)
	if err != nil {
		return nil, err
	}

	keys := make([]exec.TypedExpr, 0, len(scheme.Partitioning.Arguments))
	for _, arg := range scheme.Partitioning.Arguments {
		key, err := conv.ToTypedExpr(arg)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	channels, constants, err := toChannels(source.OutputType(), keys)
	if err != nil {
		return nil, err
	}

	switch handle := scheme.Partitioning.Handle.(type) {
	case *wire.SystemPartitioningHandle:
		switch handle.Partitioning {
		case wire.PartitioningSingle:
			if handle.Function != wire.PartitionFnSingle {
				return nil, qerrors.Unsupportedf("partitioning function %v with SINGLE distribution", handle.Function)
			}
			return exec.NewSingleOutput("root", source, outputType), nil

		case wire.PartitioningFixed:
			switch handle.Function {
			case wire.PartitionFnRoundRobin:
				numPartitions := len(scheme.BucketToPartition)
				if numPartitions == 1 {
					return exec.NewSingleOutput("root", source, outputType), nil
				}
				return &exec.PartitionedOutputNode{
					NodeID:               "root",
					Kind:                 exec.OutputPartitioned,
					Source:               source,
					NumPartitions:        numPartitions,
					Keys:                 keys,
					Spec:                 exec.RoundRobinSpec{},
					ReplicateNullsAndAny: scheme.ReplicateNullsAndAny,
					Output:               outputType,
				}, nil

			case wire.PartitionFnHash:
				numPartitions := len(scheme.BucketToPartition)
				if numPartitions == 1 {
					return exec.NewSingleOutput("root", source, outputType), nil
				}
				return &exec.PartitionedOutputNode{
					NodeID:               "root",
					Kind:                 exec.OutputPartitioned,
					Source:               source,
					NumPartitions:        numPartitions,
					Keys:                 keys,
					Spec:                 &exec.HashSpec{Channels: channels, Constants: constants},
					ReplicateNullsAndAny: scheme.ReplicateNullsAndAny,
					Output:               outputType,
				}, nil

			case wire.PartitionFnBroadcast:
				return exec.NewBroadcastOutput("root", source, outputType), nil
			}
			return nil, qerrors.Unsupportedf("partitioning function %v with FIXED distribution", handle.Function)
		}
		return nil, qerrors.Unsupportedf("system partitioning %v", handle.Partitioning)

	case *wire.BucketPartitioningHandle:
		numPartitions := int32(0)
		for _, p := range scheme.BucketToPartition {
			if p+1 > numPartitions {
				numPartitions = p + 1
			}
		}
		if numPartitions == 1 {
			return exec.NewSingleOutput("root", source, outputType), nil
		}
		if handle.FunctionKind != wire.BucketCompatible {
			return nil, qerrors.Unsupportedf("bucket function kind %v", handle.FunctionKind)
		}
		return &exec.PartitionedOutputNode{
			NodeID:        "root",
			Kind:          exec.OutputPartitioned,
			Source:        source,
			NumPartitions: int(numPartitions),
			Keys:          keys,
			Spec: &exec.BucketSpec{
				BucketCount:       handle.BucketCount,
				BucketToPartition: scheme.BucketToPartition,
				Channels:          channels,
				Constants:         constants,
			},
			ReplicateNullsAndAny: scheme.ReplicateNullsAndAny,
			Output:               outputType,
		}, nil
	}
	return nil, qerrors.Unsupportedf("unknown partitioning handle variant %T", scheme.Partitioning.Handle)
}
