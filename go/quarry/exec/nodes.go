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
	"github.com/quarrydb/quarry/go/sqltypes"
)

// ValuesNode produces literal rows.
type ValuesNode struct {
	NodeID string
	Output sqltypes.RowType
	Rows   [][]sqltypes.Value
}

func (n *ValuesNode) ID() string                   { return n.NodeID }
func (n *ValuesNode) OutputType() sqltypes.RowType { return n.Output }
func (n *ValuesNode) Sources() []PlanNode          { return nil }

// TableScanNode reads a connector table through a resolved handle. Columns
// is parallel to the output layout.
type TableScanNode struct {
	NodeID  string
	Output  sqltypes.RowType
	Table   TableHandle
	Columns []ColumnHandle
}

func (n *TableScanNode) ID() string                   { return n.NodeID }
func (n *TableScanNode) OutputType() sqltypes.RowType { return n.Output }
func (n *TableScanNode) Sources() []PlanNode          { return nil }

// FilterNode keeps rows satisfying the predicate.
type FilterNode struct {
	NodeID    string
	Source    PlanNode
	Predicate TypedExpr
}

func (n *FilterNode) ID() string                   { return n.NodeID }
func (n *FilterNode) OutputType() sqltypes.RowType { return n.Source.OutputType() }
func (n *FilterNode) Sources() []PlanNode          { return []PlanNode{n.Source} }

// ProjectNode computes output columns from expressions over the source.
// Names and Exprs are parallel.
type ProjectNode struct {
	NodeID string
	Source PlanNode
	Names  []string
	Exprs  []TypedExpr
}

func (n *ProjectNode) ID() string { return n.NodeID }

func (n *ProjectNode) OutputType() sqltypes.RowType {
	types := make([]sqltypes.Type, 0, len(n.Exprs))
	for _, e := range n.Exprs {
		types = append(types, e.Type())
	}
	return sqltypes.RowType{Names: n.Names, Types: types}
}

func (n *ProjectNode) Sources() []PlanNode { return []PlanNode{n.Source} }

// AggregationStep is the phase of a multi-stage aggregation.
type AggregationStep int

const (
	AggPartial AggregationStep = iota
	AggFinal
	AggIntermediate
	AggSingle
)

// Aggregate is one aggregate function application.
type Aggregate struct {
	Call *CallExpr
	Mask *FieldAccessExpr
}

// AggregationNode groups and aggregates rows. Non-empty PreGroupedKeys
// selects streaming aggregation: the engine may emit a group as soon as its
// pre-grouped prefix changes.
type AggregationNode struct {
	NodeID             string
	Source             PlanNode
	Step               AggregationStep
	GroupingKeys       []*FieldAccessExpr
	PreGroupedKeys     []*FieldAccessExpr
	AggregateNames     []string
	Aggregates         []Aggregate
	GlobalGroupingSets []int
	GroupIDKey         *FieldAccessExpr
}

func (n *AggregationNode) ID() string { return n.NodeID }

func (n *AggregationNode) OutputType() sqltypes.RowType {
	var out sqltypes.RowType
	for _, k := range n.GroupingKeys {
		out = out.Append(k.Name, k.Typ)
	}
	for i, a := range n.Aggregates {
		out = out.Append(n.AggregateNames[i], a.Call.Typ)
	}
	return out
}

func (n *AggregationNode) Sources() []PlanNode { return []PlanNode{n.Source} }

// GroupingKeyInfo maps a grouping key's output name to its input column.
type GroupingKeyInfo struct {
	Output string
	Input  *FieldAccessExpr
}

// GroupIDNode expands rows once per grouping set, tagging each copy with
// its set's ordinal in a bigint group-id column.
type GroupIDNode struct {
	NodeID            string
	Source            PlanNode
	GroupingSets      [][]string
	GroupingKeys      []GroupingKeyInfo
	AggregationInputs []*FieldAccessExpr
	GroupIDName       string
}

func (n *GroupIDNode) ID() string { return n.NodeID }

func (n *GroupIDNode) OutputType() sqltypes.RowType {
	var out sqltypes.RowType
	for _, k := range n.GroupingKeys {
		out = out.Append(k.Output, k.Input.Typ)
	}
	for _, in := range n.AggregationInputs {
		out = out.Append(in.Name, in.Typ)
	}
	return out.Append(n.GroupIDName, sqltypes.Type{Kind: sqltypes.Bigint})
}

func (n *GroupIDNode) Sources() []PlanNode { return []PlanNode{n.Source} }

// JoinKind is the executable join flavor. The semi variants come from the
// Filter-over-SemiJoin simplification: LeftSemiFilter drops non-matching
// probe rows, LeftSemiProject materializes the match flag as a column and
// Anti keeps only non-matching probe rows.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinLeftSemiFilter
	JoinLeftSemiProject
	JoinAnti
)

// HashJoinNode joins on equi-key hash lookup with an optional residual
// filter. NullAware only applies to Anti joins.
type HashJoinNode struct {
	NodeID    string
	Kind      JoinKind
	NullAware bool
	Left      PlanNode
	Right     PlanNode
	LeftKeys  []*FieldAccessExpr
	RightKeys []*FieldAccessExpr
	Filter    TypedExpr
	Output    sqltypes.RowType
}

func (n *HashJoinNode) ID() string                   { return n.NodeID }
func (n *HashJoinNode) OutputType() sqltypes.RowType { return n.Output }
func (n *HashJoinNode) Sources() []PlanNode          { return []PlanNode{n.Left, n.Right} }

// NestedLoopJoinNode is the cross-product join used for criteria-less
// inner joins.
type NestedLoopJoinNode struct {
	NodeID string
	Left   PlanNode
	Right  PlanNode
	Output sqltypes.RowType
}

func (n *NestedLoopJoinNode) ID() string                   { return n.NodeID }
func (n *NestedLoopJoinNode) OutputType() sqltypes.RowType { return n.Output }
func (n *NestedLoopJoinNode) Sources() []PlanNode          { return []PlanNode{n.Left, n.Right} }

// MergeJoinNode joins two sources pre-sorted on the join keys.
type MergeJoinNode struct {
	NodeID    string
	Kind      JoinKind
	Left      PlanNode
	Right     PlanNode
	LeftKeys  []*FieldAccessExpr
	RightKeys []*FieldAccessExpr
	Filter    TypedExpr
	Output    sqltypes.RowType
}

func (n *MergeJoinNode) ID() string                   { return n.NodeID }
func (n *MergeJoinNode) OutputType() sqltypes.RowType { return n.Output }
func (n *MergeJoinNode) Sources() []PlanNode          { return []PlanNode{n.Left, n.Right} }

// OrderingField is one sort key.
type OrderingField struct {
	Column     *FieldAccessExpr
	Ascending  bool
	NullsFirst bool
}

// OrderByNode sorts rows.
type OrderByNode struct {
	NodeID   string
	Source   PlanNode
	Ordering []OrderingField
	Partial  bool
}

func (n *OrderByNode) ID() string                   { return n.NodeID }
func (n *OrderByNode) OutputType() sqltypes.RowType { return n.Source.OutputType() }
func (n *OrderByNode) Sources() []PlanNode          { return []PlanNode{n.Source} }

// TopNNode keeps the first Count rows in sort order.
type TopNNode struct {
	NodeID   string
	Source   PlanNode
	Count    int64
	Ordering []OrderingField
	Partial  bool
}

func (n *TopNNode) ID() string                   { return n.NodeID }
func (n *TopNNode) OutputType() sqltypes.RowType { return n.Source.OutputType() }
func (n *TopNNode) Sources() []PlanNode          { return []PlanNode{n.Source} }

// LimitNode skips Offset rows, then keeps the next Count.
type LimitNode struct {
	NodeID  string
	Source  PlanNode
	Offset  int64
	Count   int64
	Partial bool
}

func (n *LimitNode) ID() string                   { return n.NodeID }
func (n *LimitNode) OutputType() sqltypes.RowType { return n.Source.OutputType() }
func (n *LimitNode) Sources() []PlanNode          { return []PlanNode{n.Source} }

// LocalPartitionKind is the in-process exchange flavor.
type LocalPartitionKind int

const (
	LocalGather LocalPartitionKind = iota
	LocalRepartition
)

// LocalPartitionNode redistributes rows across the task's drivers.
type LocalPartitionNode struct {
	NodeID string
	Kind   LocalPartitionKind
	Spec   PartitionFunctionSpec
	Inputs []PlanNode
	Output sqltypes.RowType
}

func (n *LocalPartitionNode) ID() string                   { return n.NodeID }
func (n *LocalPartitionNode) OutputType() sqltypes.RowType { return n.Output }
func (n *LocalPartitionNode) Sources() []PlanNode          { return n.Inputs }

// LocalMergeNode merges pre-sorted in-process streams.
type LocalMergeNode struct {
	NodeID   string
	Ordering []OrderingField
	Inputs   []PlanNode
}

func (n *LocalMergeNode) ID() string                   { return n.NodeID }
func (n *LocalMergeNode) OutputType() sqltypes.RowType { return n.Inputs[0].OutputType() }
func (n *LocalMergeNode) Sources() []PlanNode          { return n.Inputs }

// ExchangeNode reads the output of upstream fragments over the network.
type ExchangeNode struct {
	NodeID string
	Output sqltypes.RowType
}

func (n *ExchangeNode) ID() string                   { return n.NodeID }
func (n *ExchangeNode) OutputType() sqltypes.RowType { return n.Output }
func (n *ExchangeNode) Sources() []PlanNode          { return nil }

// MergeExchangeNode reads pre-sorted upstream fragments and merges them.
type MergeExchangeNode struct {
	NodeID   string
	Ordering []OrderingField
	Output   sqltypes.RowType
}

func (n *MergeExchangeNode) ID() string                   { return n.NodeID }
func (n *MergeExchangeNode) OutputType() sqltypes.RowType { return n.Output }
func (n *MergeExchangeNode) Sources() []PlanNode          { return nil }

// ShuffleReadNode reads upstream fragment output from external shuffle
// storage in batch execution.
type ShuffleReadNode struct {
	NodeID string
	Output sqltypes.RowType
}

func (n *ShuffleReadNode) ID() string                   { return n.NodeID }
func (n *ShuffleReadNode) OutputType() sqltypes.RowType { return n.Output }
func (n *ShuffleReadNode) Sources() []PlanNode          { return nil }

// UnnestNode expands collection columns into rows. UnnestedNames holds the
// flattened output column names of all unnested columns in order; an empty
// OrdinalityName means no ordinality column.
type UnnestNode struct {
	NodeID           string
	Source           PlanNode
	ReplicateColumns []*FieldAccessExpr
	UnnestColumns    []*FieldAccessExpr
	UnnestedNames    []string
	OrdinalityName   string
	Output           sqltypes.RowType
}

func (n *UnnestNode) ID() string                   { return n.NodeID }
func (n *UnnestNode) OutputType() sqltypes.RowType { return n.Output }
func (n *UnnestNode) Sources() []PlanNode          { return []PlanNode{n.Source} }

// EnforceSingleRowNode asserts its source produces exactly one row.
type EnforceSingleRowNode struct {
	NodeID string
	Source PlanNode
}

func (n *EnforceSingleRowNode) ID() string                   { return n.NodeID }
func (n *EnforceSingleRowNode) OutputType() sqltypes.RowType { return n.Source.OutputType() }
func (n *EnforceSingleRowNode) Sources() []PlanNode          { return []PlanNode{n.Source} }

// TableWriteNode writes its input to a connector target and emits the
// write result columns (row count, fragments, commit context).
type TableWriteNode struct {
	NodeID      string
	Source      PlanNode
	Columns     []*FieldAccessExpr
	ColumnNames []string
	Target      *WriteTarget
	Output      sqltypes.RowType
}

func (n *TableWriteNode) ID() string                   { return n.NodeID }
func (n *TableWriteNode) OutputType() sqltypes.RowType { return n.Output }
func (n *TableWriteNode) Sources() []PlanNode          { return []PlanNode{n.Source} }

// AssignUniqueIDNode appends a bigint column of per-row unique ids. The
// task-unique prefix disambiguates rows produced by different tasks of the
// same stage.
type AssignUniqueIDNode struct {
	NodeID       string
	Source       PlanNode
	IDName       string
	TaskUniqueID int32
}

func (n *AssignUniqueIDNode) ID() string { return n.NodeID }

func (n *AssignUniqueIDNode) OutputType() sqltypes.RowType {
	return n.Source.OutputType().Append(n.IDName, sqltypes.Type{Kind: sqltypes.Bigint})
}

func (n *AssignUniqueIDNode) Sources() []PlanNode { return []PlanNode{n.Source} }

// WindowType is the frame mode of a window function.
type WindowType int

const (
	WindowRange WindowType = iota
	WindowRows
)

// BoundType is one end of a window frame.
type BoundType int

const (
	BoundCurrentRow BoundType = iota
	BoundPreceding
	BoundFollowing
	BoundUnboundedPreceding
	BoundUnboundedFollowing
)

// WindowFrame is a resolved window frame. Start/EndValue are nil for
// unbounded and current-row bounds.
type WindowFrame struct {
	Type       WindowType
	StartType  BoundType
	StartValue TypedExpr
	EndType    BoundType
	EndValue   TypedExpr
}

// WindowFunctionDef is one resolved window function.
type WindowFunctionDef struct {
	Call        *CallExpr
	Frame       WindowFrame
	IgnoreNulls bool
}

// WindowNode evaluates window functions over sorted partitions. Names is
// parallel to Functions.
type WindowNode struct {
	NodeID        string
	Source        PlanNode
	PartitionKeys []*FieldAccessExpr
	SortingKeys   []OrderingField
	Names         []string
	Functions     []WindowFunctionDef
}

func (n *WindowNode) ID() string { return n.NodeID }

func (n *WindowNode) OutputType() sqltypes.RowType {
	out := n.Source.OutputType()
	for i, f := range n.Functions {
		out = out.Append(n.Names[i], f.Call.Typ)
	}
	return out
}

func (n *WindowNode) Sources() []PlanNode { return []PlanNode{n.Source} }

// RowNumberNode numbers rows per partition. A nil Limit keeps all rows.
type RowNumberNode struct {
	NodeID        string
	Source        PlanNode
	PartitionKeys []*FieldAccessExpr
	RowNumberName string
	Limit         *int64
}

func (n *RowNumberNode) ID() string { return n.NodeID }

func (n *RowNumberNode) OutputType() sqltypes.RowType {
	return n.Source.OutputType().Append(n.RowNumberName, sqltypes.Type{Kind: sqltypes.Bigint})
}

func (n *RowNumberNode) Sources() []PlanNode { return []PlanNode{n.Source} }

// OutputKind is the distribution mode of a PartitionedOutputNode.
type OutputKind int

const (
	OutputPartitioned OutputKind = iota
	OutputBroadcast
)

// PartitionedOutputNode is the fragment tail shipping rows to consumer
// tasks over the network.
type PartitionedOutputNode struct {
	NodeID               string
	Kind                 OutputKind
	Source               PlanNode
	NumPartitions        int
	Keys                 []TypedExpr
	Spec                 PartitionFunctionSpec
	ReplicateNullsAndAny bool
	Output               sqltypes.RowType
}

// NewSingleOutput returns a gathering output tail: one consumer, no
// partition evaluation.
func NewSingleOutput(id string, source PlanNode, output sqltypes.RowType) *PartitionedOutputNode {
	return &PartitionedOutputNode{
		NodeID:        id,
		Kind:          OutputPartitioned,
		Source:        source,
		NumPartitions: 1,
		Spec:          SinglePartitionSpec{},
		Output:        output,
	}
}

// NewBroadcastOutput returns an output tail replicating every row to all
// consumers.
func NewBroadcastOutput(id string, source PlanNode, output sqltypes.RowType) *PartitionedOutputNode {
	return &PartitionedOutputNode{
		NodeID:        id,
		Kind:          OutputBroadcast,
		Source:        source,
		NumPartitions: 1,
		Spec:          SinglePartitionSpec{},
		Output:        output,
	}
}

func (n *PartitionedOutputNode) ID() string                   { return n.NodeID }
func (n *PartitionedOutputNode) OutputType() sqltypes.RowType { return n.Output }
func (n *PartitionedOutputNode) Sources() []PlanNode          { return []PlanNode{n.Source} }

// IsSingle reports whether the tail has exactly one consumer and no
// broadcast semantics.
func (n *PartitionedOutputNode) IsSingle() bool {
	return n.Kind == OutputPartitioned && n.NumPartitions == 1
}

// PartitionAndSerializeNode computes each row's destination partition and
// serializes the row, producing (partition, data) pairs for shuffle
// writing in batch execution.
type PartitionAndSerializeNode struct {
	NodeID               string
	Source               PlanNode
	Keys                 []TypedExpr
	NumPartitions        int
	Spec                 PartitionFunctionSpec
	ReplicateNullsAndAny bool
}

func (n *PartitionAndSerializeNode) ID() string { return n.NodeID }

func (n *PartitionAndSerializeNode) OutputType() sqltypes.RowType {
	return sqltypes.RowType{
		Names: []string{"partition", "data"},
		Types: []sqltypes.Type{{Kind: sqltypes.Integer}, {Kind: sqltypes.Varbinary}},
	}
}

func (n *PartitionAndSerializeNode) Sources() []PlanNode { return []PlanNode{n.Source} }

// ShuffleWriteNode hands serialized partitioned rows to an external
// shuffle service.
type ShuffleWriteNode struct {
	NodeID        string
	Source        PlanNode
	NumPartitions int
	ShuffleName   string
	ShuffleInfo   string
}

func (n *ShuffleWriteNode) ID() string                   { return n.NodeID }
func (n *ShuffleWriteNode) OutputType() sqltypes.RowType { return n.Source.OutputType() }
func (n *ShuffleWriteNode) Sources() []PlanNode          { return []PlanNode{n.Source} }
