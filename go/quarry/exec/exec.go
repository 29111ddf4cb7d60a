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

// Package exec defines the executable plan: the lowered counterpart of the
// wire plan, with resolved column types, typed expressions and compiled
// partition function specs. Nodes are built once by the lowering layer and
// never mutated; the execution engine consumes them read-only.
package exec

import (
	"github.com/quarrydb/quarry/go/sqltypes"
)

// PlanNode is an executable plan tree node.
type PlanNode interface {
	ID() string
	OutputType() sqltypes.RowType
	Sources() []PlanNode
}

// TableHandle is a connector-resolved table reference, carrying whatever
// pushed-down state the connector's scan needs (compiled column filters,
// residual predicate). Implemented by connector packages.
type TableHandle interface {
	ConnectorID() string
	TableName() string
}

// ColumnHandle is a connector-resolved column reference. Implemented by
// connector packages.
type ColumnHandle interface {
	ColumnName() string
}

// ConnectorWriteHandle is a connector-resolved write destination.
// Implemented by connector packages.
type ConnectorWriteHandle interface {
	ConnectorID() string
	TargetPath() string
}

// WriteKind distinguishes create-table writes from inserts.
type WriteKind int

const (
	WriteCreate WriteKind = iota
	WriteInsert
)

// WriteTarget pairs a write handle with the kind of write.
type WriteTarget struct {
	Kind   WriteKind
	Handle ConnectorWriteHandle
}

// ExecutionStrategy selects how a fragment's splits are scheduled.
type ExecutionStrategy int

const (
	// StrategyUngrouped runs all splits in one lifespan.
	StrategyUngrouped ExecutionStrategy = iota
	// StrategyGrouped runs each split group as an independent lifespan.
	StrategyGrouped
)

// PlanFragment is an executable fragment: a plan tree plus the scheduling
// metadata the task needs to run it.
type PlanFragment struct {
	Root               PlanNode
	Strategy           ExecutionStrategy
	NumSplitGroups     int32
	GroupedScanNodeIDs []string
}
