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

// ExecutionStrategyKind is the coordinator-selected stage execution
// strategy.
type ExecutionStrategyKind int

const (
	UngroupedExecution ExecutionStrategyKind = iota
	FixedLifespanGroupedExecution
	DynamicLifespanGroupedExecution
	RecoverableGroupedExecution
)

var executionStrategyNames = map[string]ExecutionStrategyKind{
	"UNGROUPED_EXECUTION":                         UngroupedExecution,
	"FIXED_LIFESPAN_SCHEDULE_GROUPED_EXECUTION":   FixedLifespanGroupedExecution,
	"DYNAMIC_LIFESPAN_SCHEDULE_GROUPED_EXECUTION": DynamicLifespanGroupedExecution,
	"RECOVERABLE_GROUPED_EXECUTION":               RecoverableGroupedExecution,
}

func (k *ExecutionStrategyKind) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, executionStrategyNames, "execution strategy")
	*k = v
	return err
}

func (k ExecutionStrategyKind) String() string { return enumString(k, executionStrategyNames) }

// StageExecutionDescriptor carries the execution strategy and the leaf
// scan nodes eligible for grouped (lifespan) execution.
type StageExecutionDescriptor struct {
	Strategy                  ExecutionStrategyKind `json:"stageExecutionStrategy"`
	TotalLifespans            int32                 `json:"totalLifespans"`
	GroupedExecutionScanNodes []string              `json:"groupedExecutionScanNodes"`
}

// PlanFragment is one shippable unit of a distributed plan: a root node
// tree plus the scheme partitioning its output across consumers.
type PlanFragment struct {
	Root                PlanNode
	PartitioningScheme  PartitioningScheme
	ExecutionDescriptor StageExecutionDescriptor
}

// TableKind distinguishes writes that create a table from writes into an
// existing one.
type TableKind int

const (
	TableNew TableKind = iota
	TableExisting
)

var tableKindNames = map[string]TableKind{
	"NEW":      TableNew,
	"EXISTING": TableExisting,
}

func (k *TableKind) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, tableKindNames, "table kind")
	*k = v
	return err
}

func (k TableKind) String() string { return enumString(k, tableKindNames) }

// LocationHandle is the physical write location of a table write.
type LocationHandle struct {
	TargetPath string    `json:"targetPath"`
	WritePath  string    `json:"writePath"`
	TableKind  TableKind `json:"tableKind"`
}

// WriterConnectorHandle is the connector-specific write descriptor.
// Variants: *StorageOutputTableHandle, *StorageInsertTableHandle.
type WriterConnectorHandle interface {
	isWriterConnectorHandle()
}

// StorageOutputTableHandle describes a create-table write target.
type StorageOutputTableHandle struct {
	InputColumns []StorageColumnHandle `json:"inputColumns"`
	Location     LocationHandle        `json:"locationHandle"`
}

func (*StorageOutputTableHandle) isWriterConnectorHandle() {}

// StorageInsertTableHandle describes an insert write target.
type StorageInsertTableHandle struct {
	InputColumns []StorageColumnHandle `json:"inputColumns"`
	Location     LocationHandle        `json:"locationHandle"`
}

func (*StorageInsertTableHandle) isWriterConnectorHandle() {}

// OutputTableHandle qualifies a writer handle with its connector.
type OutputTableHandle struct {
	ConnectorID     string                `json:"connectorId"`
	ConnectorHandle WriterConnectorHandle `json:"-"`
}

// WriterTarget is the destination of a table write. Variants:
// *CreateTarget, *InsertTarget.
type WriterTarget interface {
	isWriterTarget()
}

// CreateTarget writes into a table being created by this query.
type CreateTarget struct {
	Handle OutputTableHandle
}

func (*CreateTarget) isWriterTarget() {}

// InsertTarget writes into an existing table.
type InsertTarget struct {
	Handle OutputTableHandle
}

func (*InsertTarget) isWriterTarget() {}

// TableWriteInfo is the external write context of a fragment; read once
// per TableWriter node translation, never mutated.
type TableWriteInfo struct {
	WriterTarget WriterTarget
}
