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
	"github.com/quarrydb/quarry/go/quarry/wire"
	"github.com/quarrydb/quarry/go/sqltypes"
)

// localSingleSourceExchange returns node as an exchange if it is a local
// exchange with exactly one source, and nil otherwise.
func localSingleSourceExchange(node wire.PlanNode) *wire.ExchangeNode {
	exchange, ok := node.(*wire.ExchangeNode)
	if !ok || exchange.Scope != wire.ScopeLocal || len(exchange.Sources) != 1 {
		return nil
	}
	return exchange
}

// isFixedPartition reports whether the exchange is a repartition using
// FIXED system partitioning with the given function. Gather and replicate
// exchanges never count, whatever handle they carry.
func isFixedPartition(exchange *wire.ExchangeNode, fn wire.SystemPartitionFunction) bool {
	if exchange.Kind != wire.ExchangeRepartition {
		return false
	}
	handle, ok := exchange.PartitioningScheme.Partitioning.Handle.(*wire.SystemPartitioningHandle)
	return ok && handle.Partitioning == wire.PartitioningFixed && handle.Function == fn
}

func isRoundRobinPartition(exchange *wire.ExchangeNode) bool {
	return isFixedPartition(exchange, wire.PartitionFnRoundRobin)
}

func isHashPartition(exchange *wire.ExchangeNode) bool {
	return isFixedPartition(exchange, wire.PartitionFnHash)
}

// isIdentityProjection reports whether every assignment re-emits its own
// variable unchanged.
func isIdentityProjection(node *wire.ProjectNode) bool {
	for _, a := range node.Assignments {
		if !a.Variable.Matches(a.Expression) {
			return false
		}
	}
	return true
}

// tryOffsetLimit detects the plan shape the coordinator produces for
// OFFSET n LIMIT m queries:
//
//	Project(drop row_number column)
//	 -> LocalExchange(1-to-N)
//	   -> Limit(m)
//	     -> LocalExchange(N-to-1)
//	       -> Filter(rowNumber > n)
//	         -> LocalExchange(1-to-N)
//	           -> RowNumberNode
//
// and collapses it to Project -> Limit(offset=n, count=m), which the engine
// executes natively. Returns ok=false when any node deviates from the
// shape, in which case generic lowering proceeds.
//
// The row-number check only inspects direct assignments; an expression that
// references the row-number column indirectly is not detected and blocks
// nothing. Such a projection is not an identity projection, so the first
// check rejects it anyway.
func (t *Translator) tryOffsetLimit(node *wire.ProjectNode) (exec.PlanNode, bool, error) {
	if !isIdentityProjection(node) {
		return nil, false, nil
	}

	exchangeBeforeProject := localSingleSourceExchange(node.Source)
	if exchangeBeforeProject == nil || !isRoundRobinPartition(exchangeBeforeProject) {
		return nil, false, nil
	}

	limit, ok := exchangeBeforeProject.Sources[0].(*wire.LimitNode)
	if !ok {
		return nil, false, nil
	}

	exchangeBeforeLimit := localSingleSourceExchange(limit.Source)
	if exchangeBeforeLimit == nil {
		return nil, false, nil
	}

	filter, ok := exchangeBeforeLimit.Sources[0].(*wire.FilterNode)
	if !ok {
		return nil, false, nil
	}

	exchangeBeforeFilter := localSingleSourceExchange(filter.Source)
	if exchangeBeforeFilter == nil {
		return nil, false, nil
	}

	rowNumber, ok := exchangeBeforeFilter.Sources[0].(*wire.RowNumberNode)
	if !ok {
		return nil, false, nil
	}

	gt := wire.IsFunctionCall(filter.Predicate, wire.BuiltinGreaterThan)
	if gt == nil || len(gt.Arguments) != 2 || !rowNumber.RowNumberVariable.Matches(gt.Arguments[0]) {
		return nil, false, nil
	}
	offset, isConstant, err := exprconv.ConstantOf(t.conv, gt.Arguments[1])
	if err != nil {
		return nil, false, err
	}
	if !isConstant || offset.IsNull() || offset.Type().Kind != sqltypes.Bigint {
		return nil, false, nil
	}

	// The projection must drop the row-number column.
	for _, a := range node.Assignments {
		if rowNumber.RowNumberVariable.Matches(a.Expression) {
			return nil, false, nil
		}
	}

	source, err := t.translateNode(rowNumber.Source)
	if err != nil {
		return nil, false, err
	}
	names, exprs, err := t.toProjections(node.Assignments)
	if err != nil {
		return nil, false, err
	}
	return &exec.ProjectNode{
		NodeID: node.NodeID,
		Source: &exec.LimitNode{
			NodeID:  limit.NodeID,
			Source:  source,
			Offset:  offset.Int64(),
			Count:   limit.Count,
			Partial: limit.Step == wire.StepPartial,
		},
		Names: names,
		Exprs: exprs,
	}, true, nil
}

// simplifySemiJoin lowers a Filter directly over a SemiJoin. The wire plan
// implements semi and anti joins as a SemiJoin producing a boolean match
// flag followed by a Filter on that flag. The engine implements them as a
// single hash join that includes or excludes probe rows directly, so:
//
//   - predicate == flag          -> left semi (filter) join
//   - predicate == NOT(flag)     -> null-aware anti join
//   - anything else              -> left semi (project) join materializing
//     the flag, with the original filter re-applied on top
//
// The first two cases replace the dropped flag column with a constant
// projection so the output layout is preserved.
func (t *Translator) simplifySemiJoin(node *wire.FilterNode, semiJoin *wire.SemiJoinNode) (exec.PlanNode, error) {
	var kind exec.JoinKind
	matched := false
	if semiJoin.SemiJoinOutput.Matches(node.Predicate) {
		kind, matched = exec.JoinLeftSemiFilter, true
	} else if notCall := wire.IsFunctionCall(node.Predicate, wire.BuiltinNot); notCall != nil {
		if len(notCall.Arguments) == 1 && semiJoin.SemiJoinOutput.Matches(notCall.Arguments[0]) {
			kind, matched = exec.JoinAnti, true
		}
	}

	leftKey, err := t.toField(semiJoin.SourceJoinVariable)
	if err != nil {
		return nil, err
	}
	rightKey, err := t.toField(semiJoin.FilteringSourceJoinVariable)
	if err != nil {
		return nil, err
	}
	left, err := t.translateNode(semiJoin.Source)
	if err != nil {
		return nil, err
	}
	right, err := t.translateNode(semiJoin.FilteringSource)
	if err != nil {
		return nil, err
	}

	leftType := left.OutputType()
	boolType := sqltypes.Type{Kind: sqltypes.Boolean}

	if !matched {
		predicate, err := t.conv.ToTypedExpr(node.Predicate)
		if err != nil {
			return nil, err
		}
		return &exec.FilterNode{
			NodeID:    node.NodeID,
			Predicate: predicate,
			Source: &exec.HashJoinNode{
				NodeID:    semiJoin.NodeID,
				Kind:      exec.JoinLeftSemiProject,
				Left:      left,
				Right:     right,
				LeftKeys:  []*exec.FieldAccessExpr{leftKey},
				RightKeys: []*exec.FieldAccessExpr{rightKey},
				Output:    leftType.Append(semiJoin.SemiJoinOutput.Name, boolType),
			},
		}, nil
	}

	names := make([]string, 0, leftType.Size()+1)
	exprs := make([]exec.TypedExpr, 0, leftType.Size()+1)
	for i := 0; i < leftType.Size(); i++ {
		names = append(names, leftType.Names[i])
		exprs = append(exprs, exec.NewFieldAccess(leftType.Names[i], leftType.Types[i]))
	}
	names = append(names, semiJoin.SemiJoinOutput.Name)
	exprs = append(exprs, exec.NewConstant(sqltypes.NewBool(kind == exec.JoinLeftSemiFilter)))

	return &exec.ProjectNode{
		NodeID: node.NodeID,
		Source: &exec.HashJoinNode{
			NodeID:    semiJoin.NodeID,
			Kind:      kind,
			NullAware: kind == exec.JoinAnti,
			Left:      left,
			Right:     right,
			LeftKeys:  []*exec.FieldAccessExpr{leftKey},
			RightKeys: []*exec.FieldAccessExpr{rightKey},
			Output:    leftType,
		},
		Names: names,
		Exprs: exprs,
	}, nil
}
