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

// PlanNode is a wire plan tree node. Every node carries a stable string
// id, zero or more sources and a list of output columns. Variants are the
// structs below; a type switch over PlanNode is exhaustive.
type PlanNode interface {
	ID() string
	isPlanNode()
}

// Partitioning pairs a partitioning handle with its key expressions.
type Partitioning struct {
	Handle    PartitioningHandle `json:"-"`
	Arguments []RowExpression    `json:"-"`
}

// PartitioningScheme describes how a node's output is laid out and
// distributed.
type PartitioningScheme struct {
	Partitioning         Partitioning        `json:"-"`
	OutputLayout         []VariableReference `json:"outputLayout"`
	BucketToPartition    []int32             `json:"bucketToPartition"`
	ReplicateNullsAndAny bool                `json:"replicateNullsAndAny"`
}

// ExchangeScope distinguishes in-process exchanges from network ones.
type ExchangeScope int

const (
	ScopeLocal ExchangeScope = iota
	ScopeRemoteStreaming
)

var exchangeScopeNames = map[string]ExchangeScope{
	"LOCAL":            ScopeLocal,
	"REMOTE_STREAMING": ScopeRemoteStreaming,
}

func (s *ExchangeScope) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, exchangeScopeNames, "exchange scope")
	*s = v
	return err
}

func (s ExchangeScope) String() string { return enumString(s, exchangeScopeNames) }

// ExchangeKind is the exchange flavor.
type ExchangeKind int

const (
	ExchangeGather ExchangeKind = iota
	ExchangeRepartition
	ExchangeReplicate
)

var exchangeKindNames = map[string]ExchangeKind{
	"GATHER":      ExchangeGather,
	"REPARTITION": ExchangeRepartition,
	"REPLICATE":   ExchangeReplicate,
}

func (k *ExchangeKind) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, exchangeKindNames, "exchange kind")
	*k = v
	return err
}

func (k ExchangeKind) String() string { return enumString(k, exchangeKindNames) }

// ExchangeNode redistributes rows between parallel producers and
// consumers. Inputs holds, per source, the source columns feeding each
// output layout position.
type ExchangeNode struct {
	NodeID             string
	Scope              ExchangeScope
	Kind               ExchangeKind
	Sources            []PlanNode
	Inputs             [][]VariableReference
	PartitioningScheme PartitioningScheme
	OrderingScheme     *OrderingScheme
}

func (n *ExchangeNode) ID() string { return n.NodeID }
func (*ExchangeNode) isPlanNode() {}

// FilterNode keeps rows satisfying the predicate.
type FilterNode struct {
	NodeID    string
	Source    PlanNode
	Predicate RowExpression
}

func (n *FilterNode) ID() string { return n.NodeID }
func (*FilterNode) isPlanNode() {}

// ProjectNode computes output columns from expressions over the source.
type ProjectNode struct {
	NodeID      string
	Source      PlanNode
	Assignments []Assignment
}

func (n *ProjectNode) ID() string { return n.NodeID }
func (*ProjectNode) isPlanNode() {}

// ValuesNode produces literal rows.
type ValuesNode struct {
	NodeID          string
	OutputVariables []VariableReference
	Rows            [][]RowExpression
}

func (n *ValuesNode) ID() string { return n.NodeID }
func (*ValuesNode) isPlanNode() {}

// ColumnAssignment binds an output variable to its connector column.
type ColumnAssignment struct {
	Variable VariableReference
	Column   ColumnHandle
}

// TableScanNode reads a connector table.
type TableScanNode struct {
	NodeID          string
	Table           TableHandle
	OutputVariables []VariableReference
	Assignments     []ColumnAssignment
}

func (n *TableScanNode) ID() string { return n.NodeID }
func (*TableScanNode) isPlanNode() {}

// AggregationStep is the phase of a multi-stage aggregation.
type AggregationStep int

const (
	AggregationPartial AggregationStep = iota
	AggregationFinal
	AggregationIntermediate
	AggregationSingle
)

var aggregationStepNames = map[string]AggregationStep{
	"PARTIAL":      AggregationPartial,
	"FINAL":        AggregationFinal,
	"INTERMEDIATE": AggregationIntermediate,
	"SINGLE":       AggregationSingle,
}

func (s *AggregationStep) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, aggregationStepNames, "aggregation step")
	*s = v
	return err
}

func (s AggregationStep) String() string { return enumString(s, aggregationStepNames) }

// Aggregation is one aggregate function application, with an optional
// boolean mask column.
type Aggregation struct {
	Call *CallExpression
	Mask *VariableReference
}

// AggregationAssignment binds an output variable to its aggregate.
type AggregationAssignment struct {
	Variable    VariableReference
	Aggregation Aggregation
}

// GroupingSetDescriptor lists grouping keys and the grouping-set shape.
type GroupingSetDescriptor struct {
	GroupingKeys       []VariableReference `json:"groupingKeys"`
	GroupingSetCount   int                 `json:"groupingSetCount"`
	GlobalGroupingSets []int               `json:"globalGroupingSets"`
}

// AggregationNode groups and aggregates rows.
type AggregationNode struct {
	NodeID              string
	Source              PlanNode
	Aggregations        []AggregationAssignment
	GroupingSets        GroupingSetDescriptor
	PreGroupedVariables []VariableReference
	Step                AggregationStep
}

func (n *AggregationNode) ID() string { return n.NodeID }
func (*AggregationNode) isPlanNode() {}

// GroupingColumn maps a grouping key's output name to its input column.
type GroupingColumn struct {
	Output VariableReference
	Input  VariableReference
}

// GroupIdNode expands rows for grouping-set aggregation, tagging each
// copy with a group id. GroupingSets is keyed by output names;
// GroupingColumns maps them back to input columns.
type GroupIdNode struct {
	NodeID               string
	Source               PlanNode
	GroupingSets         [][]VariableReference
	GroupingColumns      []GroupingColumn
	AggregationArguments []VariableReference
	GroupIdVariable      VariableReference
}

func (n *GroupIdNode) ID() string { return n.NodeID }
func (*GroupIdNode) isPlanNode() {}

// DistinctLimitNode returns up to Limit distinct rows.
type DistinctLimitNode struct {
	NodeID            string
	Source            PlanNode
	Limit             int64
	Partial           bool
	DistinctVariables []VariableReference
}

func (n *DistinctLimitNode) ID() string { return n.NodeID }
func (*DistinctLimitNode) isPlanNode() {}

// JoinKind is the join flavor of Join and MergeJoin nodes.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinFull
)

var joinKindNames = map[string]JoinKind{
	"INNER": JoinInner,
	"LEFT":  JoinLeft,
	"RIGHT": JoinRight,
	"FULL":  JoinFull,
}

func (k *JoinKind) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, joinKindNames, "join kind")
	*k = v
	return err
}

func (k JoinKind) String() string { return enumString(k, joinKindNames) }

// EquiClause is one equi-join conjunct.
type EquiClause struct {
	Left  VariableReference `json:"left"`
	Right VariableReference `json:"right"`
}

// JoinNode is a generic (hash) join.
type JoinNode struct {
	NodeID          string
	Kind            JoinKind
	Left            PlanNode
	Right           PlanNode
	Criteria        []EquiClause
	OutputVariables []VariableReference
	Filter          RowExpression
}

func (n *JoinNode) ID() string { return n.NodeID }
func (*JoinNode) isPlanNode() {}

// MergeJoinNode joins two sources pre-sorted on the join keys.
type MergeJoinNode struct {
	NodeID          string
	Kind            JoinKind
	Left            PlanNode
	Right           PlanNode
	Criteria        []EquiClause
	OutputVariables []VariableReference
	Filter          RowExpression
}

func (n *MergeJoinNode) ID() string { return n.NodeID }
func (*MergeJoinNode) isPlanNode() {}

// SemiJoinNode emits every probe row plus a boolean column flagging
// whether the row has a build-side match. It is only lowered through the
// Filter-over-SemiJoin simplification.
type SemiJoinNode struct {
	NodeID                      string
	Source                      PlanNode
	FilteringSource             PlanNode
	SourceJoinVariable          VariableReference
	FilteringSourceJoinVariable VariableReference
	SemiJoinOutput              VariableReference
}

func (n *SemiJoinNode) ID() string { return n.NodeID }
func (*SemiJoinNode) isPlanNode() {}

// RemoteSourceNode reads the output of other fragments.
type RemoteSourceNode struct {
	NodeID            string
	SourceFragmentIDs []string
	OutputVariables   []VariableReference
	OrderingScheme    *OrderingScheme
}

func (n *RemoteSourceNode) ID() string { return n.NodeID }
func (*RemoteSourceNode) isPlanNode() {}

// StepKind is the phase of a two-phase sort-limit operator.
type StepKind int

const (
	StepPartial StepKind = iota
	StepFinal
)

var stepKindNames = map[string]StepKind{
	"PARTIAL": StepPartial,
	"FINAL":   StepFinal,
}

func (s *StepKind) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, stepKindNames, "step")
	*s = v
	return err
}

func (s StepKind) String() string { return enumString(s, stepKindNames) }

// TopNNode keeps the first Count rows in sort order.
type TopNNode struct {
	NodeID         string
	Source         PlanNode
	Count          int64
	OrderingScheme OrderingScheme
	Step           StepKind
}

func (n *TopNNode) ID() string { return n.NodeID }
func (*TopNNode) isPlanNode() {}

// LimitNode keeps the first Count rows.
type LimitNode struct {
	NodeID string
	Source PlanNode
	Count  int64
	Step   StepKind
}

func (n *LimitNode) ID() string { return n.NodeID }
func (*LimitNode) isPlanNode() {}

// SortNode orders rows.
type SortNode struct {
	NodeID         string
	Source         PlanNode
	OrderingScheme OrderingScheme
	IsPartial      bool
}

func (n *SortNode) ID() string { return n.NodeID }
func (*SortNode) isPlanNode() {}

// UnnestAssignment expands one collection-typed input column into output
// columns.
type UnnestAssignment struct {
	Input   VariableReference
	Outputs []VariableReference
}

// UnnestNode expands collection columns into rows, replicating the
// remaining columns.
type UnnestNode struct {
	NodeID             string
	Source             PlanNode
	ReplicateVariables []VariableReference
	UnnestVariables    []UnnestAssignment
	OrdinalityVariable *VariableReference
}

func (n *UnnestNode) ID() string { return n.NodeID }
func (*UnnestNode) isPlanNode() {}

// EnforceSingleRowNode asserts its source produces exactly one row.
type EnforceSingleRowNode struct {
	NodeID string
	Source PlanNode
}

func (n *EnforceSingleRowNode) ID() string { return n.NodeID }
func (*EnforceSingleRowNode) isPlanNode() {}

// TableWriterNode writes rows to a connector target described by the
// fragment's table write info.
type TableWriterNode struct {
	NodeID                     string
	Source                     PlanNode
	Columns                    []VariableReference
	ColumnNames                []string
	RowCountVariable           VariableReference
	FragmentVariable           VariableReference
	TableCommitContextVariable VariableReference
}

func (n *TableWriterNode) ID() string { return n.NodeID }
func (*TableWriterNode) isPlanNode() {}

// AssignUniqueIdNode appends a per-row unique id column.
type AssignUniqueIdNode struct {
	NodeID     string
	Source     PlanNode
	IDVariable VariableReference
}

func (n *AssignUniqueIdNode) ID() string { return n.NodeID }
func (*AssignUniqueIdNode) isPlanNode() {}

// WindowFrameKind is the frame mode of a window function.
type WindowFrameKind int

const (
	FrameRange WindowFrameKind = iota
	FrameRows
)

var windowFrameKindNames = map[string]WindowFrameKind{
	"RANGE": FrameRange,
	"ROWS":  FrameRows,
}

func (k *WindowFrameKind) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, windowFrameKindNames, "window frame kind")
	*k = v
	return err
}

func (k WindowFrameKind) String() string { return enumString(k, windowFrameKindNames) }

// FrameBoundKind is one end of a window frame.
type FrameBoundKind int

const (
	BoundCurrentRow FrameBoundKind = iota
	BoundPreceding
	BoundFollowing
	BoundUnboundedPreceding
	BoundUnboundedFollowing
)

var frameBoundKindNames = map[string]FrameBoundKind{
	"CURRENT_ROW":         BoundCurrentRow,
	"PRECEDING":           BoundPreceding,
	"FOLLOWING":           BoundFollowing,
	"UNBOUNDED_PRECEDING": BoundUnboundedPreceding,
	"UNBOUNDED_FOLLOWING": BoundUnboundedFollowing,
}

func (k *FrameBoundKind) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, frameBoundKindNames, "frame bound kind")
	*k = v
	return err
}

func (k FrameBoundKind) String() string { return enumString(k, frameBoundKindNames) }

// WindowFrame is a window function's frame specification.
type WindowFrame struct {
	Kind       WindowFrameKind
	StartKind  FrameBoundKind
	StartValue RowExpression
	EndKind    FrameBoundKind
	EndValue   RowExpression
}

// WindowFunction is one windowed function application.
type WindowFunction struct {
	FunctionCall *CallExpression
	Frame        WindowFrame
	IgnoreNulls  bool
}

// WindowAssignment binds an output variable to its window function.
type WindowAssignment struct {
	Variable VariableReference
	Function WindowFunction
}

// WindowSpecification is the shared partition/order clause of a window.
type WindowSpecification struct {
	PartitionBy    []VariableReference
	OrderingScheme *OrderingScheme
}

// WindowNode evaluates window functions.
type WindowNode struct {
	NodeID          string
	Source          PlanNode
	Specification   WindowSpecification
	WindowFunctions []WindowAssignment
}

func (n *WindowNode) ID() string { return n.NodeID }
func (*WindowNode) isPlanNode() {}

// RowNumberNode numbers rows, optionally per partition. It appears on
// the wire only inside the offset/limit pattern.
type RowNumberNode struct {
	NodeID                  string
	Source                  PlanNode
	PartitionBy             []VariableReference
	RowNumberVariable       VariableReference
	MaxRowCountPerPartition *int64
}

func (n *RowNumberNode) ID() string { return n.NodeID }
func (*RowNumberNode) isPlanNode() {}

// OutputNode is the root of a coordinator-consumed fragment.
type OutputNode struct {
	NodeID          string
	Source          PlanNode
	ColumnNames     []string
	OutputVariables []VariableReference
}

func (n *OutputNode) ID() string { return n.NodeID }
func (*OutputNode) isPlanNode() {}
