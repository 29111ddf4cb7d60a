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

// Package lowering translates coordinator-produced wire plan fragments
// into executable internal fragments: compiling pushed-down value domains
// into column filters, resolving connector handles, deriving partition
// function specs and lowering every plan node variant. A translation is a
// pure synchronous call; it either returns a complete fragment or fails.
package lowering

import (
	"strconv"
	"strings"

	"github.com/quarrydb/quarry/go/quarry/exec"
	"github.com/quarrydb/quarry/go/quarry/qerrors"
	"github.com/quarrydb/quarry/go/quarry/wire"
)

// TaskID identifies one task execution within a distributed query.
type TaskID struct {
	QueryID          string
	StageID          int32
	StageExecutionID int32
	ID               int32
}

// ParseTaskID parses the dotted task id the coordinator assigns:
// queryId.stageId.stageExecutionId.taskId with an optional attempt suffix.
func ParseTaskID(s string) (TaskID, error) {
	parts := strings.Split(s, ".")
	if len(parts) < 4 {
		return TaskID{}, qerrors.Invariantf("malformed task id %q", s)
	}
	ids := make([]int32, 3)
	for i, part := range parts[1:4] {
		v, err := strconv.ParseInt(part, 10, 32)
		if err != nil {
			return TaskID{}, qerrors.Invariantf("malformed task id %q: %v", s, err)
		}
		ids[i] = int32(v)
	}
	return TaskID{
		QueryID:          parts[0],
		StageID:          ids[0],
		StageExecutionID: ids[1],
		ID:               ids[2],
	}, nil
}

// resolveStrategy maps the wire execution strategy, checking the grouped
// strategies carry a non-empty leaf scan set.
func resolveStrategy(desc wire.StageExecutionDescriptor) (exec.ExecutionStrategy, error) {
	switch desc.Strategy {
	case wire.UngroupedExecution:
		return exec.StrategyUngrouped, nil
	case wire.FixedLifespanGroupedExecution, wire.DynamicLifespanGroupedExecution:
		if len(desc.GroupedExecutionScanNodes) == 0 {
			return 0, qerrors.Invariantf("grouped execution strategy with no grouped scan nodes")
		}
		return exec.StrategyGrouped, nil
	case wire.RecoverableGroupedExecution:
		return 0, qerrors.Unsupportedf("recoverable grouped execution")
	}
	return 0, qerrors.Unsupportedf("execution strategy %v", desc.Strategy)
}

// TranslateFragment lowers one wire fragment into an executable fragment.
// When the fragment root is an output node the node itself defines the
// single-consumer tail; otherwise the fragment's partitioning scheme is
// compiled into a partitioned-output tail. In batch mode that tail is
// further rewritten to write through the external shuffle.
func (t *Translator) TranslateFragment(fragment wire.PlanFragment) (*exec.PlanFragment, error) {
	strategy, err := resolveStrategy(fragment.ExecutionDescriptor)
	if err != nil {
		return nil, err
	}

	root, err := t.translateNode(fragment.Root)
	if err != nil {
		return nil, err
	}
	if _, isOutput := fragment.Root.(*wire.OutputNode); !isOutput {
		root, err = CompilePartitionedOutput(t.conv, fragment.PartitioningScheme, root)
		if err != nil {
			return nil, err
		}
	}

	if t.batch {
		root, err = t.toShuffleWrite(root.(*exec.PartitionedOutputNode))
		if err != nil {
			return nil, err
		}
	}

	return &exec.PlanFragment{
		Root:               root,
		Strategy:           strategy,
		NumSplitGroups:     fragment.ExecutionDescriptor.TotalLifespans,
		GroupedScanNodeIDs: fragment.ExecutionDescriptor.GroupedExecutionScanNodes,
	}, nil
}

// toShuffleWrite rewrites the fragment's output tail for batch execution:
// instead of shipping rows to consumers directly, each row is assigned its
// destination partition, serialized, gathered onto one driver and handed
// to the external shuffle service.
func (t *Translator) toShuffleWrite(output *exec.PartitionedOutputNode) (exec.PlanNode, error) {
	if output.Kind == exec.OutputBroadcast {
		return nil, qerrors.Unsupportedf("broadcast output in batch execution")
	}
	if output.ReplicateNullsAndAny {
		return nil, qerrors.Unsupportedf("replicate-nulls-and-any output in batch execution")
	}
	if t.shuffleInfo == "" {
		// Fragments the coordinator consumes directly carry no shuffle
		// descriptor. They must already be single-consumer.
		if output.NumPartitions != 1 {
			return nil, qerrors.Invariantf("%d-partition output without shuffle info", output.NumPartitions)
		}
		return output, nil
	}

	partitionAndSerialize := &exec.PartitionAndSerializeNode{
		NodeID:               "shuffle-partition-serialize",
		Source:               output.Source,
		Keys:                 output.Keys,
		NumPartitions:        output.NumPartitions,
		Spec:                 output.Spec,
		ReplicateNullsAndAny: output.ReplicateNullsAndAny,
	}
	gather := &exec.LocalPartitionNode{
		NodeID: "shuffle-gather",
		Kind:   exec.LocalGather,
		Spec:   exec.SinglePartitionSpec{},
		Inputs: []exec.PlanNode{partitionAndSerialize},
		Output: partitionAndSerialize.OutputType(),
	}
	return &exec.ShuffleWriteNode{
		NodeID:        output.NodeID,
		Source:        gather,
		NumPartitions: output.NumPartitions,
		ShuffleName:   t.shuffleName,
		ShuffleInfo:   t.shuffleInfo,
	}, nil
}
