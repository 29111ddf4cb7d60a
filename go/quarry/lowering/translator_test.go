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

	"github.com/quarrydb/quarry/go/quarry/connector"
	"github.com/quarrydb/quarry/go/quarry/exec"
	"github.com/quarrydb/quarry/go/quarry/exprconv"
	"github.com/quarrydb/quarry/go/quarry/qerrors"
	"github.com/quarrydb/quarry/go/quarry/wire"
)

func interactive() *Translator {
	return NewTranslator(exprconv.New(), nil, TaskID{})
}

func wireValues(id string, vars ...wire.VariableReference) *wire.ValuesNode {
	return &wire.ValuesNode{NodeID: id, OutputVariables: vars}
}

func TestTranslateValues(t *testing.T) {
	tr := interactive()

	node, err := tr.translateNode(&wire.ValuesNode{
		NodeID: "values",
		OutputVariables: []wire.VariableReference{
			{Name: "id", Type: "bigint"},
			{Name: "name", Type: "varchar"},
		},
		Rows: [][]wire.RowExpression{
			{bigintConstant("1"), &wire.ConstantExpression{Type: "varchar", ValueBlock: *block(`"one"`)}},
			{bigintConstant("2"), &wire.ConstantExpression{Type: "varchar", ValueBlock: *block("null")}},
		},
	})
	require.NoError(t, err)

	values := node.(*exec.ValuesNode)
	assert.Equal(t, []string{"id", "name"}, values.Output.Names)
	require.Len(t, values.Rows, 2)
	assert.Equal(t, int64(1), values.Rows[0][0].Int64())
	assert.Equal(t, "one", values.Rows[0][1].Text())
	assert.True(t, values.Rows[1][1].IsNull())

	// Non-literal cells never appear in a coordinator-produced plan.
	_, err = tr.translateNode(&wire.ValuesNode{
		NodeID:          "values",
		OutputVariables: []wire.VariableReference{{Name: "id", Type: "bigint"}},
		Rows:            [][]wire.RowExpression{{&xVar}},
	})
	require.Error(t, err)
	assert.Equal(t, qerrors.CodeInvariantViolation, qerrors.CodeOf(err))
}

func TestTranslateTableScan(t *testing.T) {
	tr := interactive()

	node, err := tr.translateNode(&wire.TableScanNode{
		NodeID: "scan",
		Table: storageHandle(&wire.StorageLayoutHandle{
			PushdownFilterEnabled: true,
			PartitionColumns: []wire.StorageColumnHandle{{
				Name:          "region",
				ColumnKind:    wire.ColumnPartitionKey,
				TypeSignature: "varchar",
			}},
		}),
		OutputVariables: []wire.VariableReference{
			{Name: "qty", Type: "bigint"},
			{Name: "region", Type: "varchar"},
		},
		Assignments: []wire.ColumnAssignment{
			{
				Variable: wire.VariableReference{Name: "qty", Type: "bigint"},
				Column:   &wire.StorageColumnHandle{Name: "qty", TypeSignature: "bigint"},
			},
			{
				Variable: wire.VariableReference{Name: "region", Type: "varchar"},
				Column:   &wire.StorageColumnHandle{Name: "region", TypeSignature: "varchar"},
			},
		},
	})
	require.NoError(t, err)

	scan := node.(*exec.TableScanNode)
	assert.Equal(t, "orders", scan.Table.TableName())
	require.Len(t, scan.Columns, 2)
	assert.Equal(t, "qty", scan.Columns[0].ColumnName())
	// The partition column picks up the layout's handle.
	region := scan.Columns[1].(*connector.StorageColumnHandle)
	assert.Equal(t, "region", region.Name)
	assert.Equal(t, connector.ColumnPartitionKey, region.Kind)
}

func TestTranslateAggregationStreamable(t *testing.T) {
	tr := interactive()
	kVar := wire.VariableReference{Name: "k", Type: "bigint"}

	agg := &wire.AggregationNode{
		NodeID: "agg",
		Source: wireValues("values", kVar, xVar),
		Aggregations: []wire.AggregationAssignment{{
			Variable: wire.VariableReference{Name: "total", Type: "bigint"},
			Aggregation: wire.Aggregation{
				Call: builtinCall("sum", "bigint", &xVar),
			},
		}},
		GroupingSets: wire.GroupingSetDescriptor{
			GroupingKeys:     []wire.VariableReference{kVar},
			GroupingSetCount: 1,
		},
		PreGroupedVariables: []wire.VariableReference{kVar},
		Step:                wire.AggregationFinal,
	}
	node, err := tr.translateNode(agg)
	require.NoError(t, err)

	lowered := node.(*exec.AggregationNode)
	assert.Equal(t, exec.AggFinal, lowered.Step)
	assert.NotEmpty(t, lowered.PreGroupedKeys, "clustered input enables streaming aggregation")
	assert.Equal(t, []string{"total"}, lowered.AggregateNames)
	assert.Equal(t, []string{"k", "total"}, lowered.OutputType().Names)

	// Multiple grouping sets disable streaming.
	agg.GroupingSets.GroupingSetCount = 2
	node, err = tr.translateNode(agg)
	require.NoError(t, err)
	assert.Empty(t, node.(*exec.AggregationNode).PreGroupedKeys)
}

func TestTranslateGroupID(t *testing.T) {
	tr := interactive()
	kVar := wire.VariableReference{Name: "k", Type: "bigint"}
	kOutVar := wire.VariableReference{Name: "k$gid", Type: "bigint"}
	gidVar := wire.VariableReference{Name: "groupid", Type: "bigint"}

	node, err := tr.translateNode(&wire.GroupIdNode{
		NodeID:               "groupid",
		Source:               wireValues("values", kVar, xVar),
		GroupingSets:         [][]wire.VariableReference{{kOutVar}, {}},
		GroupingColumns:      []wire.GroupingColumn{{Output: kOutVar, Input: kVar}},
		AggregationArguments: []wire.VariableReference{xVar},
		GroupIdVariable:      gidVar,
	})
	require.NoError(t, err)

	groupID := node.(*exec.GroupIDNode)
	assert.Equal(t, [][]string{{"k$gid"}, {}}, groupID.GroupingSets)
	require.Len(t, groupID.GroupingKeys, 1)
	assert.Equal(t, "k$gid", groupID.GroupingKeys[0].Output)
	assert.Equal(t, "k", groupID.GroupingKeys[0].Input.Name)
	assert.Equal(t, []string{"k$gid", "x", "groupid"}, groupID.OutputType().Names)
}

func TestTranslateDistinctLimit(t *testing.T) {
	tr := interactive()
	kVar := wire.VariableReference{Name: "k", Type: "bigint"}

	node, err := tr.translateNode(&wire.DistinctLimitNode{
		NodeID:            "distinct",
		Source:            wireValues("values", kVar),
		Limit:             7,
		DistinctVariables: []wire.VariableReference{kVar},
	})
	require.NoError(t, err)

	limit := node.(*exec.LimitNode)
	assert.Equal(t, "distinct.limit", limit.NodeID)
	assert.Equal(t, int64(7), limit.Count)

	agg := limit.Source.(*exec.AggregationNode)
	assert.Equal(t, "distinct", agg.NodeID)
	assert.Equal(t, exec.AggSingle, agg.Step)
	assert.Empty(t, agg.Aggregates)
	require.Len(t, agg.GroupingKeys, 1)
	assert.Equal(t, "k", agg.GroupingKeys[0].Name)
}

func TestTranslateJoinSelection(t *testing.T) {
	tr := interactive()
	kVar := wire.VariableReference{Name: "k", Type: "bigint"}
	fkVar := wire.VariableReference{Name: "fk", Type: "bigint"}

	// Criteria-less inner join without a filter is a nested-loop join.
	join := &wire.JoinNode{
		NodeID:          "join",
		Kind:            wire.JoinInner,
		Left:            wireValues("left", kVar),
		Right:           wireValues("right", fkVar),
		OutputVariables: []wire.VariableReference{kVar, fkVar},
	}
	node, err := tr.translateNode(join)
	require.NoError(t, err)
	_, ok := node.(*exec.NestedLoopJoinNode)
	assert.True(t, ok)

	// With criteria it becomes a hash join.
	join.Criteria = []wire.EquiClause{{Left: kVar, Right: fkVar}}
	join.Kind = wire.JoinLeft
	node, err = tr.translateNode(join)
	require.NoError(t, err)
	hash := node.(*exec.HashJoinNode)
	assert.Equal(t, exec.JoinLeft, hash.Kind)
	require.Len(t, hash.LeftKeys, 1)
	assert.Equal(t, "k", hash.LeftKeys[0].Name)
	assert.Equal(t, "fk", hash.RightKeys[0].Name)

	// A criteria-less outer join has no executable form.
	outer := &wire.JoinNode{
		NodeID: "outer",
		Kind:   wire.JoinLeft,
		Left:   wireValues("left", kVar),
		Right:  wireValues("right", fkVar),
	}
	_, err = tr.translateNode(outer)
	require.Error(t, err)
	assert.Equal(t, qerrors.CodeUnsupportedConstruct, qerrors.CodeOf(err))
}

func TestTranslateSortLimitTopN(t *testing.T) {
	tr := interactive()
	ordering := wire.OrderingScheme{OrderBy: []wire.Ordering{
		{Variable: xVar, SortOrder: wire.DescNullsLast},
	}}

	node, err := tr.translateNode(&wire.SortNode{
		NodeID:         "sort",
		Source:         wireValues("values", xVar),
		OrderingScheme: ordering,
		IsPartial:      true,
	})
	require.NoError(t, err)
	orderBy := node.(*exec.OrderByNode)
	assert.True(t, orderBy.Partial)
	require.Len(t, orderBy.Ordering, 1)
	assert.False(t, orderBy.Ordering[0].Ascending)
	assert.False(t, orderBy.Ordering[0].NullsFirst)

	node, err = tr.translateNode(&wire.TopNNode{
		NodeID:         "topn",
		Source:         wireValues("values", xVar),
		Count:          10,
		OrderingScheme: ordering,
		Step:           wire.StepPartial,
	})
	require.NoError(t, err)
	topN := node.(*exec.TopNNode)
	assert.Equal(t, int64(10), topN.Count)
	assert.True(t, topN.Partial)

	node, err = tr.translateNode(&wire.LimitNode{
		NodeID: "limit",
		Source: wireValues("values", xVar),
		Count:  10,
		Step:   wire.StepFinal,
	})
	require.NoError(t, err)
	limit := node.(*exec.LimitNode)
	assert.Equal(t, int64(0), limit.Offset)
	assert.False(t, limit.Partial)
}

func TestTranslateRemoteSource(t *testing.T) {
	remote := &wire.RemoteSourceNode{
		NodeID:            "remote",
		SourceFragmentIDs: []string{"1"},
		OutputVariables:   []wire.VariableReference{xVar},
	}

	node, err := interactive().translateNode(remote)
	require.NoError(t, err)
	_, ok := node.(*exec.ExchangeNode)
	assert.True(t, ok)

	sorted := *remote
	sorted.OrderingScheme = &wire.OrderingScheme{OrderBy: []wire.Ordering{
		{Variable: xVar, SortOrder: wire.AscNullsFirst},
	}}
	node, err = interactive().translateNode(&sorted)
	require.NoError(t, err)
	_, ok = node.(*exec.MergeExchangeNode)
	assert.True(t, ok)

	batch := NewBatchTranslator(exprconv.New(), nil, TaskID{}, "shuffle-svc", `{"root":"/shuffle"}`)
	node, err = batch.translateNode(remote)
	require.NoError(t, err)
	_, ok = node.(*exec.ShuffleReadNode)
	assert.True(t, ok)
}

func TestTranslateLocalMergeExchange(t *testing.T) {
	tr := interactive()

	exchange := localExchange("merge", wire.PartitionFnSingle, wire.ExchangeGather,
		wireValues("values", xVar), []wire.VariableReference{xVar})
	exchange.OrderingScheme = &wire.OrderingScheme{OrderBy: []wire.Ordering{
		{Variable: xVar, SortOrder: wire.AscNullsLast},
	}}

	node, err := tr.translateNode(exchange)
	require.NoError(t, err)
	merge := node.(*exec.LocalMergeNode)
	require.Len(t, merge.Ordering, 1)
	assert.Equal(t, "x", merge.Ordering[0].Column.Name)
}

func TestTranslateLocalExchangeReordersSources(t *testing.T) {
	tr := interactive()
	yVar := wire.VariableReference{Name: "y", Type: "varchar"}

	// The source produces (y, x) but the exchange's layout is (x, y):
	// a per-source projection reorders positionally.
	exchange := &wire.ExchangeNode{
		NodeID:  "exchange",
		Scope:   wire.ScopeLocal,
		Kind:    wire.ExchangeRepartition,
		Sources: []wire.PlanNode{wireValues("values", yVar, xVar)},
		Inputs:  [][]wire.VariableReference{{xVar, yVar}},
		PartitioningScheme: wire.PartitioningScheme{
			Partitioning: wire.Partitioning{
				Handle: &wire.SystemPartitioningHandle{
					Partitioning: wire.PartitioningFixed,
					Function:     wire.PartitionFnRoundRobin,
				},
			},
			OutputLayout: []wire.VariableReference{xVar, yVar},
		},
	}
	node, err := tr.translateNode(exchange)
	require.NoError(t, err)

	partition := node.(*exec.LocalPartitionNode)
	assert.Equal(t, exec.LocalRepartition, partition.Kind)
	require.Len(t, partition.Inputs, 1)
	project := partition.Inputs[0].(*exec.ProjectNode)
	assert.Equal(t, "exchange.0", project.NodeID)
	assert.Equal(t, []string{"x", "y"}, project.Names)
}

func TestTranslateAssignUniqueID(t *testing.T) {
	taskID, err := ParseTaskID("20260823_101112_00001_abcde.3.0.5")
	require.NoError(t, err)
	tr := NewTranslator(exprconv.New(), nil, taskID)

	node, err := tr.translateNode(&wire.AssignUniqueIdNode{
		NodeID:     "unique",
		Source:     wireValues("values", xVar),
		IDVariable: wire.VariableReference{Name: "row_id", Type: "bigint"},
	})
	require.NoError(t, err)

	unique := node.(*exec.AssignUniqueIDNode)
	assert.Equal(t, "row_id", unique.IDName)
	assert.Equal(t, int32(3<<14|5), unique.TaskUniqueID)
}

func TestTranslateWindow(t *testing.T) {
	tr := interactive()
	kVar := wire.VariableReference{Name: "k", Type: "bigint"}

	node, err := tr.translateNode(&wire.WindowNode{
		NodeID: "window",
		Source: wireValues("values", kVar, xVar),
		Specification: wire.WindowSpecification{
			PartitionBy: []wire.VariableReference{kVar},
			OrderingScheme: &wire.OrderingScheme{OrderBy: []wire.Ordering{
				{Variable: xVar, SortOrder: wire.AscNullsLast},
			}},
		},
		WindowFunctions: []wire.WindowAssignment{{
			Variable: wire.VariableReference{Name: "rank", Type: "bigint"},
			Function: wire.WindowFunction{
				FunctionCall: builtinCall("rank", "bigint"),
				Frame: wire.WindowFrame{
					Kind:      wire.FrameRange,
					StartKind: wire.BoundUnboundedPreceding,
					EndKind:   wire.BoundCurrentRow,
				},
			},
		}},
	})
	require.NoError(t, err)

	window := node.(*exec.WindowNode)
	assert.Equal(t, []string{"rank"}, window.Names)
	require.Len(t, window.Functions, 1)
	frame := window.Functions[0].Frame
	assert.Equal(t, exec.WindowRange, frame.Type)
	assert.Equal(t, exec.BoundUnboundedPreceding, frame.StartType)
	assert.Equal(t, exec.BoundCurrentRow, frame.EndType)
	assert.Equal(t, []string{"k", "x", "rank"}, window.OutputType().Names)
}

func TestTranslateTableWriterRequiresWriteInfo(t *testing.T) {
	tr := interactive()

	_, err := tr.translateNode(&wire.TableWriterNode{
		NodeID: "writer",
		Source: wireValues("values", xVar),
	})
	require.Error(t, err)
	assert.Equal(t, qerrors.CodeInvariantViolation, qerrors.CodeOf(err))
}

func TestTranslateTableWriter(t *testing.T) {
	writeInfo := &wire.TableWriteInfo{
		WriterTarget: &wire.CreateTarget{Handle: wire.OutputTableHandle{
			ConnectorID: "warehouse",
			ConnectorHandle: &wire.StorageOutputTableHandle{
				Location: wire.LocationHandle{TargetPath: "/warehouse/t", WritePath: "/staging/t"},
			},
		}},
	}
	tr := NewTranslator(exprconv.New(), writeInfo, TaskID{})

	node, err := tr.translateNode(&wire.TableWriterNode{
		NodeID:                     "writer",
		Source:                     wireValues("values", xVar),
		Columns:                    []wire.VariableReference{xVar},
		ColumnNames:                []string{"x"},
		RowCountVariable:           wire.VariableReference{Name: "rows", Type: "bigint"},
		FragmentVariable:           wire.VariableReference{Name: "fragments", Type: "varbinary"},
		TableCommitContextVariable: wire.VariableReference{Name: "commitcontext", Type: "varbinary"},
	})
	require.NoError(t, err)

	writer := node.(*exec.TableWriteNode)
	assert.Equal(t, exec.WriteCreate, writer.Target.Kind)
	assert.Equal(t, []string{"rows", "fragments", "commitcontext"}, writer.Output.Names)
}

func TestTranslateOutputNode(t *testing.T) {
	tr := interactive()

	node, err := tr.translateNode(&wire.OutputNode{
		NodeID:          "output",
		Source:          wireValues("values", xVar),
		ColumnNames:     []string{"x"},
		OutputVariables: []wire.VariableReference{xVar},
	})
	require.NoError(t, err)

	output := node.(*exec.PartitionedOutputNode)
	assert.Equal(t, "output", output.NodeID)
	assert.True(t, output.IsSingle())
}

func TestParseTaskID(t *testing.T) {
	id, err := ParseTaskID("q1.2.0.7")
	require.NoError(t, err)
	assert.Equal(t, TaskID{QueryID: "q1", StageID: 2, StageExecutionID: 0, ID: 7}, id)

	id, err = ParseTaskID("q1.2.0.7.1")
	require.NoError(t, err)
	assert.Equal(t, int32(7), id.ID)

	_, err = ParseTaskID("q1.2")
	require.Error(t, err)
	assert.Equal(t, qerrors.CodeInvariantViolation, qerrors.CodeOf(err))

	_, err = ParseTaskID("q1.a.b.c")
	require.Error(t, err)
}
