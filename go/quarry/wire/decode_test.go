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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFragment(t *testing.T) {
	data := []byte(`{
		"root": {
			"@type": "output",
			"id": "3",
			"source": {
				"@type": "filter",
				"id": "2",
				"source": {
					"@type": "tablescan",
					"id": "1",
					"table": {
						"connectorId": "storage",
						"connectorHandle": {
							"@type": "storage-table",
							"schemaName": "sales",
							"tableName": "orders"
						},
						"connectorTableLayout": {
							"@type": "storage-layout",
							"pushdownFilterEnabled": true,
							"domainPredicate": [
								{
									"column": "region_id",
									"domain": {
										"values": {
											"@type": "sorted-range-set",
											"type": "bigint",
											"ranges": [
												{
													"low": {"valueBlock": {"data": "CgAAAExPTkcx"}, "bound": "EXACTLY"},
													"high": {"valueBlock": {"data": "CgAAAExPTkcx"}, "bound": "EXACTLY"}
												}
											]
										},
										"nullAllowed": false
									}
								}
							],
							"remainingPredicate": {
								"@type": "constant",
								"type": "boolean",
								"valueBlock": {"data": "Qk9PTDE="}
							},
							"partitionColumns": []
						}
					},
					"outputVariables": [{"name": "region_id", "type": "bigint"}],
					"assignments": [
						{
							"variable": {"name": "region_id", "type": "bigint"},
							"column": {
								"@type": "storage-column",
								"name": "region_id",
								"columnType": "REGULAR",
								"typeSignature": "bigint",
								"requiredSubfields": []
							}
						}
					]
				},
				"predicate": {
					"@type": "call",
					"displayName": "GREATER_THAN",
					"functionHandle": {
						"@type": "builtin",
						"signature": {"name": "core.$operator$greater_than", "kind": "SCALAR"}
					},
					"returnType": "boolean",
					"arguments": [
						{"@type": "variable", "name": "region_id", "type": "bigint"},
						{"@type": "constant", "type": "bigint", "valueBlock": {"data": "CgAAAExPTkcw"}}
					]
				}
			},
			"columnNames": ["region_id"],
			"outputVariables": [{"name": "region_id", "type": "bigint"}]
		},
		"partitioningScheme": {
			"partitioning": {
				"handle": {
					"connectorHandle": {
						"@type": "system-partitioning",
						"partitioning": "SINGLE",
						"function": "SINGLE"
					}
				},
				"arguments": []
			},
			"outputLayout": [{"name": "region_id", "type": "bigint"}],
			"replicateNullsAndAny": false
		},
		"stageExecutionDescriptor": {
			"stageExecutionStrategy": "UNGROUPED_EXECUTION",
			"totalLifespans": 1,
			"groupedExecutionScanNodes": []
		}
	}`)

	fragment, err := DecodeFragment(data)
	require.NoError(t, err)

	output, ok := fragment.Root.(*OutputNode)
	require.True(t, ok)
	assert.Equal(t, "3", output.ID())
	assert.Equal(t, []string{"region_id"}, output.ColumnNames)

	filter, ok := output.Source.(*FilterNode)
	require.True(t, ok)
	call := IsFunctionCall(filter.Predicate, BuiltinGreaterThan)
	require.NotNil(t, call)
	require.Len(t, call.Arguments, 2)
	assert.True(t, VariableReference{Name: "region_id", Type: "bigint"}.Matches(call.Arguments[0]))

	scan, ok := filter.Source.(*TableScanNode)
	require.True(t, ok)
	assert.Equal(t, "storage", scan.Table.ConnectorID)
	table, ok := scan.Table.ConnectorHandle.(*StorageTableHandle)
	require.True(t, ok)
	assert.Equal(t, "orders", table.TableName)

	layout, ok := scan.Table.Layout.(*StorageLayoutHandle)
	require.True(t, ok)
	assert.True(t, layout.PushdownFilterEnabled)
	require.Len(t, layout.DomainPredicate, 1)
	assert.Equal(t, "region_id", layout.DomainPredicate[0].Column)
	rangeSet, ok := layout.DomainPredicate[0].Domain.Values.(*SortedRangeSet)
	require.True(t, ok)
	require.Len(t, rangeSet.Ranges, 1)
	assert.False(t, rangeSet.Ranges[0].Low.Unbounded())
	assert.Equal(t, BoundExactly, rangeSet.Ranges[0].Low.Bound)
	_, ok = layout.RemainingPredicate.(*ConstantExpression)
	assert.True(t, ok)

	require.Len(t, scan.Assignments, 1)
	column, ok := scan.Assignments[0].Column.(*StorageColumnHandle)
	require.True(t, ok)
	assert.Equal(t, ColumnRegular, column.ColumnKind)

	handle, ok := fragment.PartitioningScheme.Partitioning.Handle.(*SystemPartitioningHandle)
	require.True(t, ok)
	assert.Equal(t, PartitioningSingle, handle.Partitioning)
	assert.Equal(t, PartitionFnSingle, handle.Function)
	assert.Equal(t, UngroupedExecution, fragment.ExecutionDescriptor.Strategy)
}

func TestDecodeExchange(t *testing.T) {
	data := []byte(`{
		"@type": "exchange",
		"id": "9",
		"scope": "LOCAL",
		"type": "REPARTITION",
		"sources": [
			{
				"@type": "values",
				"id": "8",
				"outputVariables": [{"name": "a", "type": "bigint"}],
				"rows": [[{"@type": "constant", "type": "bigint", "valueBlock": {"data": "CgAAAExPTkc="}}]]
			}
		],
		"inputs": [[{"name": "a", "type": "bigint"}]],
		"partitioningScheme": {
			"partitioning": {
				"handle": {
					"connectorHandle": {
						"@type": "bucket-partitioning",
						"bucketCount": 8,
						"bucketFunctionKind": "COMPATIBLE"
					}
				},
				"arguments": [{"@type": "variable", "name": "a", "type": "bigint"}]
			},
			"outputLayout": [{"name": "a", "type": "bigint"}],
			"bucketToPartition": [0, 1, 0, 1, 0, 1, 0, 1],
			"replicateNullsAndAny": false
		},
		"orderingScheme": {
			"orderBy": [{"variable": {"name": "a", "type": "bigint"}, "sortOrder": "ASC_NULLS_LAST"}]
		}
	}`)

	node, err := DecodePlanNode(data)
	require.NoError(t, err)
	exchange, ok := node.(*ExchangeNode)
	require.True(t, ok)
	assert.Equal(t, ScopeLocal, exchange.Scope)
	assert.Equal(t, ExchangeRepartition, exchange.Kind)
	require.Len(t, exchange.Sources, 1)
	values, ok := exchange.Sources[0].(*ValuesNode)
	require.True(t, ok)
	require.Len(t, values.Rows, 1)
	require.Len(t, values.Rows[0], 1)

	bucket, ok := exchange.PartitioningScheme.Partitioning.Handle.(*BucketPartitioningHandle)
	require.True(t, ok)
	assert.Equal(t, int32(8), bucket.BucketCount)
	assert.Equal(t, []int32{0, 1, 0, 1, 0, 1, 0, 1}, exchange.PartitioningScheme.BucketToPartition)
	require.Len(t, exchange.PartitioningScheme.Partitioning.Arguments, 1)

	require.NotNil(t, exchange.OrderingScheme)
	require.Len(t, exchange.OrderingScheme.OrderBy, 1)
	assert.Equal(t, AscNullsLast, exchange.OrderingScheme.OrderBy[0].SortOrder)
}

func TestDecodeAggregation(t *testing.T) {
	data := []byte(`{
		"@type": "aggregation",
		"id": "5",
		"source": {
			"@type": "remotesource",
			"id": "4",
			"sourceFragmentIds": ["1"],
			"outputVariables": [{"name": "k", "type": "bigint"}, {"name": "v", "type": "double"}]
		},
		"aggregations": [
			{
				"variable": {"name": "sum", "type": "double"},
				"call": {
					"@type": "call",
					"displayName": "sum",
					"functionHandle": {"@type": "builtin", "signature": {"name": "core.sum", "kind": "AGGREGATE"}},
					"returnType": "double",
					"arguments": [{"@type": "variable", "name": "v", "type": "double"}]
				},
				"mask": {"name": "m", "type": "boolean"}
			}
		],
		"groupingSets": {
			"groupingKeys": [{"name": "k", "type": "bigint"}],
			"groupingSetCount": 1,
			"globalGroupingSets": []
		},
		"preGroupedVariables": [],
		"step": "FINAL"
	}`)

	node, err := DecodePlanNode(data)
	require.NoError(t, err)
	agg, ok := node.(*AggregationNode)
	require.True(t, ok)
	assert.Equal(t, AggregationFinal, agg.Step)
	require.Len(t, agg.Aggregations, 1)
	assert.Equal(t, "sum", agg.Aggregations[0].Variable.Name)
	assert.Equal(t, "sum", agg.Aggregations[0].Aggregation.Call.DisplayName)
	require.NotNil(t, agg.Aggregations[0].Aggregation.Mask)
	assert.Equal(t, "m", agg.Aggregations[0].Aggregation.Mask.Name)
	require.Len(t, agg.GroupingSets.GroupingKeys, 1)

	remote, ok := agg.Source.(*RemoteSourceNode)
	require.True(t, ok)
	assert.Equal(t, []string{"1"}, remote.SourceFragmentIDs)
}

func TestDecodeSemiJoinAndSpecialForm(t *testing.T) {
	data := []byte(`{
		"@type": "filter",
		"id": "3",
		"source": {
			"@type": "semijoin",
			"id": "2",
			"source": {"@type": "values", "id": "0", "outputVariables": [{"name": "x", "type": "bigint"}], "rows": []},
			"filteringSource": {"@type": "values", "id": "1", "outputVariables": [{"name": "y", "type": "bigint"}], "rows": []},
			"sourceJoinVariable": {"name": "x", "type": "bigint"},
			"filteringSourceJoinVariable": {"name": "y", "type": "bigint"},
			"semiJoinOutput": {"name": "match", "type": "boolean"}
		},
		"predicate": {
			"@type": "special",
			"form": "AND",
			"returnType": "boolean",
			"arguments": [
				{"@type": "variable", "name": "match", "type": "boolean"},
				{"@type": "variable", "name": "other", "type": "boolean"}
			]
		}
	}`)

	node, err := DecodePlanNode(data)
	require.NoError(t, err)
	filter, ok := node.(*FilterNode)
	require.True(t, ok)

	semi, ok := filter.Source.(*SemiJoinNode)
	require.True(t, ok)
	assert.Equal(t, "match", semi.SemiJoinOutput.Name)

	special, ok := filter.Predicate.(*SpecialFormExpression)
	require.True(t, ok)
	assert.Equal(t, "AND", special.Form)
	require.Len(t, special.Arguments, 2)
}

func TestDecodeTableWriteInfo(t *testing.T) {
	data := []byte(`{
		"writerTarget": {
			"@type": "create-target",
			"handle": {
				"connectorId": "storage",
				"connectorHandle": {
					"@type": "storage-output",
					"inputColumns": [
						{"name": "c", "columnType": "REGULAR", "typeSignature": "bigint", "requiredSubfields": []}
					],
					"locationHandle": {
						"targetPath": "/warehouse/t",
						"writePath": "/staging/t",
						"tableKind": "NEW"
					}
				}
			}
		}
	}`)

	info, err := DecodeTableWriteInfo(data)
	require.NoError(t, err)
	create, ok := info.WriterTarget.(*CreateTarget)
	require.True(t, ok)
	assert.Equal(t, "storage", create.Handle.ConnectorID)
	output, ok := create.Handle.ConnectorHandle.(*StorageOutputTableHandle)
	require.True(t, ok)
	assert.Equal(t, TableNew, output.Location.TableKind)
	assert.Equal(t, "/staging/t", output.Location.WritePath)
}

func TestDecodeUnknownTags(t *testing.T) {
	_, err := DecodePlanNode([]byte(`{"@type": "indexjoin", "id": "1"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "indexjoin")

	_, err = DecodeRowExpression([]byte(`{"@type": "lambda"}`))
	require.Error(t, err)

	_, err = DecodeValueSet([]byte(`{"@type": "mystery"}`))
	require.Error(t, err)
}
