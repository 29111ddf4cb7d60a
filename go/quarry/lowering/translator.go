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
	"fmt"

	"github.com/quarrydb/quarry/go/quarry/exec"
	"github.com/quarrydb/quarry/go/quarry/exprconv"
	"github.com/quarrydb/quarry/go/quarry/qerrors"
	"github.com/quarrydb/quarry/go/quarry/wire"
	"github.com/quarrydb/quarry/go/sqltypes"
)

// Translator lowers one wire plan fragment into an executable fragment.
// A Translator is single-use and single-threaded: construct one per
// translation call. It carries no mutable state across calls, so distinct
// translations may run concurrently.
type Translator struct {
	conv      exprconv.Converter
	writeInfo *wire.TableWriteInfo
	taskID    TaskID

	// Batch mode replaces network exchanges with external shuffle reads
	// and writes.
	batch       bool
	shuffleName string
	shuffleInfo string
}

// NewTranslator returns a translator for interactive execution: remote
// sources become streaming exchanges and the fragment tail ships rows
// directly to consumer tasks.
func NewTranslator(conv exprconv.Converter, writeInfo *wire.TableWriteInfo, taskID TaskID) *Translator {
	return &Translator{conv: conv, writeInfo: writeInfo, taskID: taskID}
}

// NewBatchTranslator returns a translator for batch execution: remote
// sources read from the named external shuffle and the fragment tail is
// rewritten into a shuffle write.
func NewBatchTranslator(conv exprconv.Converter, writeInfo *wire.TableWriteInfo, taskID TaskID, shuffleName, shuffleInfo string) *Translator {
	return &Translator{
		conv:        conv,
		writeInfo:   writeInfo,
		taskID:      taskID,
		batch:       true,
		shuffleName: shuffleName,
		shuffleInfo: shuffleInfo,
	}
}

func (t *Translator) toField(v wire.VariableReference) (*exec.FieldAccessExpr, error) {
	typ, err := sqltypes.ParseType(v.Type)
	if err != nil {
		return nil, qerrors.Unsupportedf("variable %q: %v", v.Name, err)
	}
	return exec.NewFieldAccess(v.Name, typ), nil
}

func (t *Translator) toFields(vars []wire.VariableReference) ([]*exec.FieldAccessExpr, error) {
	fields := make([]*exec.FieldAccessExpr, 0, len(vars))
	for _, v := range vars {
		f, err := t.toField(v)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func (t *Translator) toCall(call *wire.CallExpression) (*exec.CallExpr, error) {
	expr, err := t.conv.ToTypedExpr(call)
	if err != nil {
		return nil, err
	}
	c, ok := expr.(*exec.CallExpr)
	if !ok {
		return nil, qerrors.Invariantf("call %q resolved to %T", call.DisplayName, expr)
	}
	return c, nil
}

func (t *Translator) toProjections(assignments []wire.Assignment) ([]string, []exec.TypedExpr, error) {
	names := make([]string, 0, len(assignments))
	exprs := make([]exec.TypedExpr, 0, len(assignments))
	for _, a := range assignments {
		expr, err := t.conv.ToTypedExpr(a.Expression)
		if err != nil {
			return nil, nil, err
		}
		names = append(names, a.Variable.Name)
		exprs = append(exprs, expr)
	}
	return names, exprs, nil
}

func (t *Translator) toOrdering(scheme wire.OrderingScheme) ([]exec.OrderingField, error) {
	ordering := make([]exec.OrderingField, 0, len(scheme.OrderBy))
	for _, o := range scheme.OrderBy {
		f, err := t.toField(o.Variable)
		if err != nil {
			return nil, err
		}
		ordering = append(ordering, exec.OrderingField{
			Column:     f,
			Ascending:  o.SortOrder.Ascending(),
			NullsFirst: o.SortOrder.NullsFirst(),
		})
	}
	return ordering, nil
}

func (t *Translator) translateSources(sources []wire.PlanNode) ([]exec.PlanNode, error) {
	out := make([]exec.PlanNode, 0, len(sources))
	for _, s := range sources {
		n, err := t.translateNode(s)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// translateNode dispatches over every wire node variant. The switch is
// exhaustive; a variant this executor cannot run fails rather than being
// silently skipped.
func (t *Translator) translateNode(node wire.PlanNode) (exec.PlanNode, error) {
	switch n := node.(type) {
	case *wire.ExchangeNode:
		return t.translateExchange(n)
	case *wire.RemoteSourceNode:
		return t.translateRemoteSource(n)
	case *wire.FilterNode:
		return t.translateFilter(n)
	case *wire.ProjectNode:
		return t.translateProject(n)
	case *wire.ValuesNode:
		return t.translateValues(n)
	case *wire.TableScanNode:
		return t.translateTableScan(n)
	case *wire.AggregationNode:
		return t.translateAggregation(n)
	case *wire.GroupIdNode:
		return t.translateGroupID(n)
	case *wire.DistinctLimitNode:
		return t.translateDistinctLimit(n)
	case *wire.JoinNode:
		return t.translateJoin(n)
	case *wire.MergeJoinNode:
		return t.translateMergeJoin(n)
	case *wire.SemiJoinNode:
		return t.translateSemiJoin(n)
	case *wire.TopNNode:
		return t.translateTopN(n)
	case *wire.LimitNode:
		return t.translateLimit(n)
	case *wire.SortNode:
		return t.translateSort(n)
	case *wire.UnnestNode:
		return t.translateUnnest(n)
	case *wire.EnforceSingleRowNode:
		return t.translateEnforceSingleRow(n)
	case *wire.TableWriterNode:
		return t.translateTableWriter(n)
	case *wire.AssignUniqueIdNode:
		return t.translateAssignUniqueID(n)
	case *wire.WindowNode:
		return t.translateWindow(n)
	case *wire.RowNumberNode:
		return t.translateRowNumber(n)
	case *wire.OutputNode:
		return t.translateOutput(n)
	}
	return nil, qerrors.Unsupportedf("unknown plan node variant %T", node)
}

// translateExchange lowers a local exchange. Remote exchanges never appear
// inside a fragment body; the coordinator replaces them with remote source
// nodes before shipping.
func (t *Translator) translateExchange(node *wire.ExchangeNode) (exec.PlanNode, error) {
	if node.Scope != wire.ScopeLocal {
		return nil, qerrors.Unsupportedf("exchange scope %v inside a fragment", node.Scope)
	}

	sources, err := t.translateSources(node.Sources)
	if err != nil {
		return nil, err
	}

	if node.OrderingScheme != nil {
		ordering, err := t.toOrdering(*node.OrderingScheme)
		if err != nil {
			return nil, err
		}
		return &exec.LocalMergeNode{NodeID: node.NodeID, Ordering: ordering, Inputs: sources}, nil
	}

	var kind exec.LocalPartitionKind
	switch node.Kind {
	case wire.ExchangeGather:
		kind = exec.LocalGather
	case wire.ExchangeRepartition:
		kind = exec.LocalRepartition
	default:
		return nil, qerrors.Unsupportedf("local exchange kind %v", node.Kind)
	}

	outputType, err := toRowType(node.PartitioningScheme.OutputLayout)
	if err != nil {
		return nil, err
	}

	// Sources may produce the exchange's columns in different orders. Wrap
	// each one in a projection renaming its columns positionally into the
	// exchange's declared layout.
	for i := range sources {
		if len(node.Inputs[i]) != outputType.Size() {
			return nil, qerrors.Invariantf("exchange %s source %d maps %d columns into a %d column layout",
				node.NodeID, i, len(node.Inputs[i]), outputType.Size())
		}
		exprs := make([]exec.TypedExpr, 0, outputType.Size())
		for j := 0; j < outputType.Size(); j++ {
			exprs = append(exprs, exec.NewFieldAccess(node.Inputs[i][j].Name, outputType.Types[j]))
		}
		sources[i] = &exec.ProjectNode{
			NodeID: fmt.Sprintf("%s.%d", node.NodeID, i),
			Source: sources[i],
			Names:  outputType.Names,
			Exprs:  exprs,
		}
	}

	switch {
	case isHashPartition(node):
		keys := make([]exec.TypedExpr, 0, len(node.PartitioningScheme.Partitioning.Arguments))
		for _, arg := range node.PartitioningScheme.Partitioning.Arguments {
			key, err := t.conv.ToTypedExpr(arg)
			if err != nil {
				return nil, err
			}
			keys = append(keys, key)
		}
		channels, constants, err := toChannels(outputType, keys)
		if err != nil {
			return nil, err
		}
		return &exec.LocalPartitionNode{
			NodeID: node.NodeID,
			Kind:   kind,
			Spec:   &exec.HashSpec{Channels: channels, Constants: constants},
			Inputs: sources,
			Output: outputType,
		}, nil

	case isRoundRobinPartition(node):
		return &exec.LocalPartitionNode{
			NodeID: node.NodeID,
			Kind:   kind,
			Spec:   exec.RoundRobinSpec{},
			Inputs: sources,
			Output: outputType,
		}, nil

	case kind == exec.LocalGather:
		return &exec.LocalPartitionNode{
			NodeID: node.NodeID,
			Kind:   exec.LocalGather,
			Spec:   exec.SinglePartitionSpec{},
			Inputs: sources,
			Output: outputType,
		}, nil
	}
	return nil, qerrors.Unsupportedf("local exchange flavor of node %s", node.NodeID)
}

func (t *Translator) translateRemoteSource(node *wire.RemoteSourceNode) (exec.PlanNode, error) {
	outputType, err := toRowType(node.OutputVariables)
	if err != nil {
		return nil, err
	}
	if t.batch {
		return &exec.ShuffleReadNode{NodeID: node.NodeID, Output: outputType}, nil
	}
	if node.OrderingScheme != nil {
		ordering, err := t.toOrdering(*node.OrderingScheme)
		if err != nil {
			return nil, err
		}
		return &exec.MergeExchangeNode{NodeID: node.NodeID, Ordering: ordering, Output: outputType}, nil
	}
	return &exec.ExchangeNode{NodeID: node.NodeID, Output: outputType}, nil
}

func (t *Translator) translateFilter(node *wire.FilterNode) (exec.PlanNode, error) {
	if semiJoin, ok := node.Source.(*wire.SemiJoinNode); ok {
		return t.simplifySemiJoin(node, semiJoin)
	}
	source, err := t.translateNode(node.Source)
	if err != nil {
		return nil, err
	}
	predicate, err := t.conv.ToTypedExpr(node.Predicate)
	if err != nil {
		return nil, err
	}
	return &exec.FilterNode{NodeID: node.NodeID, Source: source, Predicate: predicate}, nil
}

func (t *Translator) translateProject(node *wire.ProjectNode) (exec.PlanNode, error) {
	if collapsed, ok, err := t.tryOffsetLimit(node); err != nil {
		return nil, err
	} else if ok {
		return collapsed, nil
	}
	source, err := t.translateNode(node.Source)
	if err != nil {
		return nil, err
	}
	names, exprs, err := t.toProjections(node.Assignments)
	if err != nil {
		return nil, err
	}
	return &exec.ProjectNode{NodeID: node.NodeID, Source: source, Names: names, Exprs: exprs}, nil
}

func (t *Translator) translateValues(node *wire.ValuesNode) (exec.PlanNode, error) {
	outputType, err := toRowType(node.OutputVariables)
	if err != nil {
		return nil, err
	}
	rows := make([][]sqltypes.Value, 0, len(node.Rows))
	for _, wireRow := range node.Rows {
		row := make([]sqltypes.Value, 0, len(wireRow))
		for _, cell := range wireRow {
			v, isConstant, err := exprconv.ConstantOf(t.conv, cell)
			if err != nil {
				return nil, err
			}
			if !isConstant {
				return nil, qerrors.Invariantf("values node %s cell is not a literal", node.NodeID)
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	return &exec.ValuesNode{NodeID: node.NodeID, Output: outputType, Rows: rows}, nil
}

func (t *Translator) translateTableScan(node *wire.TableScanNode) (exec.PlanNode, error) {
	table, partitionColumns, err := TranslateTableHandle(t.conv, node.Table)
	if err != nil {
		return nil, err
	}
	outputType, err := toRowType(node.OutputVariables)
	if err != nil {
		return nil, err
	}

	byVariable := make(map[string]wire.ColumnHandle, len(node.Assignments))
	for _, a := range node.Assignments {
		byVariable[a.Variable.Name] = a.Column
	}
	columns := make([]exec.ColumnHandle, 0, len(node.OutputVariables))
	for _, v := range node.OutputVariables {
		wireColumn, ok := byVariable[v.Name]
		if !ok {
			return nil, qerrors.Invariantf("table scan %s output %q has no column assignment", node.NodeID, v.Name)
		}
		column, err := TranslateColumnHandle(wireColumn)
		if err != nil {
			return nil, err
		}
		// Partition columns carry the layout's handle, which knows the
		// column is materialized from partition metadata rather than data
		// files.
		if pc, ok := partitionColumns[column.ColumnName()]; ok {
			column = pc
		}
		columns = append(columns, column)
	}
	return &exec.TableScanNode{NodeID: node.NodeID, Output: outputType, Table: table, Columns: columns}, nil
}

func (t *Translator) translateAggregation(node *wire.AggregationNode) (exec.PlanNode, error) {
	source, err := t.translateNode(node.Source)
	if err != nil {
		return nil, err
	}

	var step exec.AggregationStep
	switch node.Step {
	case wire.AggregationPartial:
		step = exec.AggPartial
	case wire.AggregationFinal:
		step = exec.AggFinal
	case wire.AggregationIntermediate:
		step = exec.AggIntermediate
	case wire.AggregationSingle:
		step = exec.AggSingle
	default:
		return nil, qerrors.Unsupportedf("aggregation step %v", node.Step)
	}

	groupingKeys, err := t.toFields(node.GroupingSets.GroupingKeys)
	if err != nil {
		return nil, err
	}

	// Streaming aggregation applies only to a plain single grouping set
	// whose input arrives clustered on a key prefix.
	var preGrouped []*exec.FieldAccessExpr
	if len(node.PreGroupedVariables) > 0 &&
		node.GroupingSets.GroupingSetCount == 1 &&
		len(node.GroupingSets.GlobalGroupingSets) == 0 {
		preGrouped, err = t.toFields(node.PreGroupedVariables)
		if err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(node.Aggregations))
	aggregates := make([]exec.Aggregate, 0, len(node.Aggregations))
	for _, a := range node.Aggregations {
		call, err := t.toCall(a.Aggregation.Call)
		if err != nil {
			return nil, err
		}
		var mask *exec.FieldAccessExpr
		if a.Aggregation.Mask != nil {
			mask, err = t.toField(*a.Aggregation.Mask)
			if err != nil {
				return nil, err
			}
		}
		names = append(names, a.Variable.Name)
		aggregates = append(aggregates, exec.Aggregate{Call: call, Mask: mask})
	}

	var groupIDKey *exec.FieldAccessExpr
	if len(node.GroupingSets.GlobalGroupingSets) > 0 {
		groupID, ok := node.Source.(*wire.GroupIdNode)
		if !ok {
			return nil, qerrors.Invariantf("aggregation %s has global grouping sets but no group-id source", node.NodeID)
		}
		groupIDKey, err = t.toField(groupID.GroupIdVariable)
		if err != nil {
			return nil, err
		}
	}

	return &exec.AggregationNode{
		NodeID:             node.NodeID,
		Source:             source,
		Step:               step,
		GroupingKeys:       groupingKeys,
		PreGroupedKeys:     preGrouped,
		AggregateNames:     names,
		Aggregates:         aggregates,
		GlobalGroupingSets: node.GroupingSets.GlobalGroupingSets,
		GroupIDKey:         groupIDKey,
	}, nil
}

// translateGroupID re-expresses the grouping sets, which the wire node keys
// by output column names, in terms of the source's input columns.
func (t *Translator) translateGroupID(node *wire.GroupIdNode) (exec.PlanNode, error) {
	source, err := t.translateNode(node.Source)
	if err != nil {
		return nil, err
	}

	keys := make([]exec.GroupingKeyInfo, 0, len(node.GroupingColumns))
	for _, gc := range node.GroupingColumns {
		input, err := t.toField(gc.Input)
		if err != nil {
			return nil, err
		}
		keys = append(keys, exec.GroupingKeyInfo{Output: gc.Output.Name, Input: input})
	}

	sets := make([][]string, 0, len(node.GroupingSets))
	for _, set := range node.GroupingSets {
		outputs := make([]string, 0, len(set))
		for _, v := range set {
			outputs = append(outputs, v.Name)
		}
		sets = append(sets, outputs)
	}

	inputs, err := t.toFields(node.AggregationArguments)
	if err != nil {
		return nil, err
	}

	return &exec.GroupIDNode{
		NodeID:            node.NodeID,
		Source:            source,
		GroupingSets:      sets,
		GroupingKeys:      keys,
		AggregationInputs: inputs,
		GroupIDName:       node.GroupIdVariable.Name,
	}, nil
}

// translateDistinctLimit lowers DistinctLimit to a limit over a distinct
// aggregation, which is how the engine executes it.
func (t *Translator) translateDistinctLimit(node *wire.DistinctLimitNode) (exec.PlanNode, error) {
	source, err := t.translateNode(node.Source)
	if err != nil {
		return nil, err
	}
	groupingKeys, err := t.toFields(node.DistinctVariables)
	if err != nil {
		return nil, err
	}
	return &exec.LimitNode{
		NodeID: fmt.Sprintf("%s.limit", node.NodeID),
		Source: &exec.AggregationNode{
			NodeID:       node.NodeID,
			Source:       source,
			Step:         exec.AggSingle,
			GroupingKeys: groupingKeys,
		},
		Count:   node.Limit,
		Partial: node.Partial,
	}, nil
}

func toJoinKind(kind wire.JoinKind) (exec.JoinKind, error) {
	switch kind {
	case wire.JoinInner:
		return exec.JoinInner, nil
	case wire.JoinLeft:
		return exec.JoinLeft, nil
	case wire.JoinRight:
		return exec.JoinRight, nil
	case wire.JoinFull:
		return exec.JoinFull, nil
	}
	return 0, qerrors.Unsupportedf("join kind %v", kind)
}

func (t *Translator) toJoinKeys(criteria []wire.EquiClause) (left, right []*exec.FieldAccessExpr, err error) {
	left = make([]*exec.FieldAccessExpr, 0, len(criteria))
	right = make([]*exec.FieldAccessExpr, 0, len(criteria))
	for _, c := range criteria {
		l, err := t.toField(c.Left)
		if err != nil {
			return nil, nil, err
		}
		r, err := t.toField(c.Right)
		if err != nil {
			return nil, nil, err
		}
		left = append(left, l)
		right = append(right, r)
	}
	return left, right, nil
}

func (t *Translator) translateJoin(node *wire.JoinNode) (exec.PlanNode, error) {
	left, err := t.translateNode(node.Left)
	if err != nil {
		return nil, err
	}
	right, err := t.translateNode(node.Right)
	if err != nil {
		return nil, err
	}
	outputType, err := toRowType(node.OutputVariables)
	if err != nil {
		return nil, err
	}

	if len(node.Criteria) == 0 {
		if node.Kind != wire.JoinInner || node.Filter != nil {
			return nil, qerrors.Unsupportedf("%v join without criteria", node.Kind)
		}
		return &exec.NestedLoopJoinNode{
			NodeID: node.NodeID,
			Left:   left,
			Right:  right,
			Output: outputType,
		}, nil
	}

	kind, err := toJoinKind(node.Kind)
	if err != nil {
		return nil, err
	}
	leftKeys, rightKeys, err := t.toJoinKeys(node.Criteria)
	if err != nil {
		return nil, err
	}
	var filter exec.TypedExpr
	if node.Filter != nil {
		filter, err = t.conv.ToTypedExpr(node.Filter)
		if err != nil {
			return nil, err
		}
	}
	return &exec.HashJoinNode{
		NodeID:    node.NodeID,
		Kind:      kind,
		Left:      left,
		Right:     right,
		LeftKeys:  leftKeys,
		RightKeys: rightKeys,
		Filter:    filter,
		Output:    outputType,
	}, nil
}

func (t *Translator) translateMergeJoin(node *wire.MergeJoinNode) (exec.PlanNode, error) {
	left, err := t.translateNode(node.Left)
	if err != nil {
		return nil, err
	}
	right, err := t.translateNode(node.Right)
	if err != nil {
		return nil, err
	}
	outputType, err := toRowType(node.OutputVariables)
	if err != nil {
		return nil, err
	}
	kind, err := toJoinKind(node.Kind)
	if err != nil {
		return nil, err
	}
	leftKeys, rightKeys, err := t.toJoinKeys(node.Criteria)
	if err != nil {
		return nil, err
	}
	var filter exec.TypedExpr
	if node.Filter != nil {
		filter, err = t.conv.ToTypedExpr(node.Filter)
		if err != nil {
			return nil, err
		}
	}
	return &exec.MergeJoinNode{
		NodeID:    node.NodeID,
		Kind:      kind,
		Left:      left,
		Right:     right,
		LeftKeys:  leftKeys,
		RightKeys: rightKeys,
		Filter:    filter,
		Output:    outputType,
	}, nil
}

// translateSemiJoin handles a semi join whose match flag is consumed by
// something other than an immediate filter: the flag becomes an ordinary
// output column.
func (t *Translator) translateSemiJoin(node *wire.SemiJoinNode) (exec.PlanNode, error) {
	left, err := t.translateNode(node.Source)
	if err != nil {
		return nil, err
	}
	right, err := t.translateNode(node.FilteringSource)
	if err != nil {
		return nil, err
	}
	leftKey, err := t.toField(node.SourceJoinVariable)
	if err != nil {
		return nil, err
	}
	rightKey, err := t.toField(node.FilteringSourceJoinVariable)
	if err != nil {
		return nil, err
	}
	return &exec.HashJoinNode{
		NodeID:    node.NodeID,
		Kind:      exec.JoinLeftSemiProject,
		Left:      left,
		Right:     right,
		LeftKeys:  []*exec.FieldAccessExpr{leftKey},
		RightKeys: []*exec.FieldAccessExpr{rightKey},
		Output:    left.OutputType().Append(node.SemiJoinOutput.Name, sqltypes.Type{Kind: sqltypes.Boolean}),
	}, nil
}

func (t *Translator) translateTopN(node *wire.TopNNode) (exec.PlanNode, error) {
	source, err := t.translateNode(node.Source)
	if err != nil {
		return nil, err
	}
	ordering, err := t.toOrdering(node.OrderingScheme)
	if err != nil {
		return nil, err
	}
	return &exec.TopNNode{
		NodeID:   node.NodeID,
		Source:   source,
		Count:    node.Count,
		Ordering: ordering,
		Partial:  node.Step == wire.StepPartial,
	}, nil
}

func (t *Translator) translateLimit(node *wire.LimitNode) (exec.PlanNode, error) {
	source, err := t.translateNode(node.Source)
	if err != nil {
		return nil, err
	}
	return &exec.LimitNode{
		NodeID:  node.NodeID,
		Source:  source,
		Count:   node.Count,
		Partial: node.Step == wire.StepPartial,
	}, nil
}

func (t *Translator) translateSort(node *wire.SortNode) (exec.PlanNode, error) {
	source, err := t.translateNode(node.Source)
	if err != nil {
		return nil, err
	}
	ordering, err := t.toOrdering(node.OrderingScheme)
	if err != nil {
		return nil, err
	}
	return &exec.OrderByNode{
		NodeID:   node.NodeID,
		Source:   source,
		Ordering: ordering,
		Partial:  node.IsPartial,
	}, nil
}

func (t *Translator) translateUnnest(node *wire.UnnestNode) (exec.PlanNode, error) {
	source, err := t.translateNode(node.Source)
	if err != nil {
		return nil, err
	}
	replicate, err := t.toFields(node.ReplicateVariables)
	if err != nil {
		return nil, err
	}

	outputType := sqltypes.RowType{}
	for _, f := range replicate {
		outputType = outputType.Append(f.Name, f.Typ)
	}

	unnestColumns := make([]*exec.FieldAccessExpr, 0, len(node.UnnestVariables))
	var unnestedNames []string
	for _, a := range node.UnnestVariables {
		input, err := t.toField(a.Input)
		if err != nil {
			return nil, err
		}
		unnestColumns = append(unnestColumns, input)
		for _, out := range a.Outputs {
			typ, err := sqltypes.ParseType(out.Type)
			if err != nil {
				return nil, qerrors.Unsupportedf("unnested column %q: %v", out.Name, err)
			}
			unnestedNames = append(unnestedNames, out.Name)
			outputType = outputType.Append(out.Name, typ)
		}
	}

	ordinalityName := ""
	if node.OrdinalityVariable != nil {
		ordinalityName = node.OrdinalityVariable.Name
		outputType = outputType.Append(ordinalityName, sqltypes.Type{Kind: sqltypes.Bigint})
	}

	return &exec.UnnestNode{
		NodeID:           node.NodeID,
		Source:           source,
		ReplicateColumns: replicate,
		UnnestColumns:    unnestColumns,
		UnnestedNames:    unnestedNames,
		OrdinalityName:   ordinalityName,
		Output:           outputType,
	}, nil
}

func (t *Translator) translateEnforceSingleRow(node *wire.EnforceSingleRowNode) (exec.PlanNode, error) {
	source, err := t.translateNode(node.Source)
	if err != nil {
		return nil, err
	}
	return &exec.EnforceSingleRowNode{NodeID: node.NodeID, Source: source}, nil
}

func (t *Translator) translateTableWriter(node *wire.TableWriterNode) (exec.PlanNode, error) {
	if t.writeInfo == nil || t.writeInfo.WriterTarget == nil {
		return nil, qerrors.Invariantf("table writer %s without table write info", node.NodeID)
	}
	source, err := t.translateNode(node.Source)
	if err != nil {
		return nil, err
	}
	target, err := TranslateWriterTarget(t.writeInfo.WriterTarget)
	if err != nil {
		return nil, err
	}
	columns, err := t.toFields(node.Columns)
	if err != nil {
		return nil, err
	}
	outputType, err := toRowType([]wire.VariableReference{
		node.RowCountVariable,
		node.FragmentVariable,
		node.TableCommitContextVariable,
	})
	if err != nil {
		return nil, err
	}
	return &exec.TableWriteNode{
		NodeID:      node.NodeID,
		Source:      source,
		Columns:     columns,
		ColumnNames: node.ColumnNames,
		Target:      target,
		Output:      outputType,
	}, nil
}

func (t *Translator) translateAssignUniqueID(node *wire.AssignUniqueIdNode) (exec.PlanNode, error) {
	source, err := t.translateNode(node.Source)
	if err != nil {
		return nil, err
	}
	// The generated ids embed a task-unique prefix so rows produced by
	// different tasks of the same stage never collide: the low 10 bits of
	// the stage id followed by the low 14 bits of the task id.
	taskUniqueID := (t.taskID.StageID&(1<<10-1))<<14 | (t.taskID.ID & (1<<14 - 1))
	return &exec.AssignUniqueIDNode{
		NodeID:       node.NodeID,
		Source:       source,
		IDName:       node.IDVariable.Name,
		TaskUniqueID: taskUniqueID,
	}, nil
}

func toWindowType(kind wire.WindowFrameKind) (exec.WindowType, error) {
	switch kind {
	case wire.FrameRange:
		return exec.WindowRange, nil
	case wire.FrameRows:
		return exec.WindowRows, nil
	}
	return 0, qerrors.Unsupportedf("window frame kind %v", kind)
}

func toBoundType(kind wire.FrameBoundKind) (exec.BoundType, error) {
	switch kind {
	case wire.BoundCurrentRow:
		return exec.BoundCurrentRow, nil
	case wire.BoundPreceding:
		return exec.BoundPreceding, nil
	case wire.BoundFollowing:
		return exec.BoundFollowing, nil
	case wire.BoundUnboundedPreceding:
		return exec.BoundUnboundedPreceding, nil
	case wire.BoundUnboundedFollowing:
		return exec.BoundUnboundedFollowing, nil
	}
	return 0, qerrors.Unsupportedf("window frame bound %v", kind)
}

func (t *Translator) toWindowFrame(frame wire.WindowFrame) (exec.WindowFrame, error) {
	windowType, err := toWindowType(frame.Kind)
	if err != nil {
		return exec.WindowFrame{}, err
	}
	startType, err := toBoundType(frame.StartKind)
	if err != nil {
		return exec.WindowFrame{}, err
	}
	endType, err := toBoundType(frame.EndKind)
	if err != nil {
		return exec.WindowFrame{}, err
	}
	var startValue, endValue exec.TypedExpr
	if frame.StartValue != nil {
		startValue, err = t.conv.ToTypedExpr(frame.StartValue)
		if err != nil {
			return exec.WindowFrame{}, err
		}
	}
	if frame.EndValue != nil {
		endValue, err = t.conv.ToTypedExpr(frame.EndValue)
		if err != nil {
			return exec.WindowFrame{}, err
		}
	}
	return exec.WindowFrame{
		Type:       windowType,
		StartType:  startType,
		StartValue: startValue,
		EndType:    endType,
		EndValue:   endValue,
	}, nil
}

func (t *Translator) translateWindow(node *wire.WindowNode) (exec.PlanNode, error) {
	source, err := t.translateNode(node.Source)
	if err != nil {
		return nil, err
	}
	partitionKeys, err := t.toFields(node.Specification.PartitionBy)
	if err != nil {
		return nil, err
	}
	var sortingKeys []exec.OrderingField
	if node.Specification.OrderingScheme != nil {
		sortingKeys, err = t.toOrdering(*node.Specification.OrderingScheme)
		if err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(node.WindowFunctions))
	functions := make([]exec.WindowFunctionDef, 0, len(node.WindowFunctions))
	for _, wf := range node.WindowFunctions {
		call, err := t.toCall(wf.Function.FunctionCall)
		if err != nil {
			return nil, err
		}
		frame, err := t.toWindowFrame(wf.Function.Frame)
		if err != nil {
			return nil, err
		}
		names = append(names, wf.Variable.Name)
		functions = append(functions, exec.WindowFunctionDef{
			Call:        call,
			Frame:       frame,
			IgnoreNulls: wf.Function.IgnoreNulls,
		})
	}

	return &exec.WindowNode{
		NodeID:        node.NodeID,
		Source:        source,
		PartitionKeys: partitionKeys,
		SortingKeys:   sortingKeys,
		Names:         names,
		Functions:     functions,
	}, nil
}

func (t *Translator) translateRowNumber(node *wire.RowNumberNode) (exec.PlanNode, error) {
	source, err := t.translateNode(node.Source)
	if err != nil {
		return nil, err
	}
	partitionKeys, err := t.toFields(node.PartitionBy)
	if err != nil {
		return nil, err
	}
	return &exec.RowNumberNode{
		NodeID:        node.NodeID,
		Source:        source,
		PartitionKeys: partitionKeys,
		RowNumberName: node.RowNumberVariable.Name,
		Limit:         node.MaxRowCountPerPartition,
	}, nil
}

// translateOutput lowers the coordinator-consumed root: a gathering output
// tail with exactly one consumer.
func (t *Translator) translateOutput(node *wire.OutputNode) (exec.PlanNode, error) {
	source, err := t.translateNode(node.Source)
	if err != nil {
		return nil, err
	}
	outputType, err := toRowType(node.OutputVariables)
	if err != nil {
		return nil, err
	}
	return exec.NewSingleOutput(node.NodeID, source, outputType), nil
}
