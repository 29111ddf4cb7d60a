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
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Polymorphic values carry their variant in the "@type" field. Decoding
// peeks at the tag, then unmarshals the full object into the concrete
// struct.
const typeTag = "@type"

func tagOf(data []byte) string {
	return gjson.GetBytes(data, typeTag).String()
}

// DecodeFragment decodes a serialized plan fragment.
func DecodeFragment(data []byte) (*PlanFragment, error) {
	var raw struct {
		Root                json.RawMessage          `json:"root"`
		PartitioningScheme  json.RawMessage          `json:"partitioningScheme"`
		ExecutionDescriptor StageExecutionDescriptor `json:"stageExecutionDescriptor"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	root, err := DecodePlanNode(raw.Root)
	if err != nil {
		return nil, err
	}
	scheme, err := decodePartitioningScheme(raw.PartitioningScheme)
	if err != nil {
		return nil, err
	}
	return &PlanFragment{
		Root:                root,
		PartitioningScheme:  scheme,
		ExecutionDescriptor: raw.ExecutionDescriptor,
	}, nil
}

// DecodeTableWriteInfo decodes the optional write context of a fragment.
func DecodeTableWriteInfo(data []byte) (*TableWriteInfo, error) {
	var raw struct {
		WriterTarget json.RawMessage `json:"writerTarget"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if len(raw.WriterTarget) == 0 {
		return &TableWriteInfo{}, nil
	}
	target, err := decodeWriterTarget(raw.WriterTarget)
	if err != nil {
		return nil, err
	}
	return &TableWriteInfo{WriterTarget: target}, nil
}

// DecodePlanNode decodes one plan node and, recursively, its sources.
func DecodePlanNode(data []byte) (PlanNode, error) {
	tag := tagOf(data)
	switch tag {
	case "exchange":
		return decodeExchange(data)
	case "filter":
		return decodeFilter(data)
	case "project":
		return decodeProject(data)
	case "values":
		return decodeValues(data)
	case "tablescan":
		return decodeTableScan(data)
	case "aggregation":
		return decodeAggregation(data)
	case "groupid":
		return decodeGroupId(data)
	case "distinctlimit":
		return decodeDistinctLimit(data)
	case "join":
		return decodeJoin(data)
	case "mergejoin":
		return decodeMergeJoin(data)
	case "semijoin":
		return decodeSemiJoin(data)
	case "remotesource":
		return decodeRemoteSource(data)
	case "topn":
		return decodeTopN(data)
	case "limit":
		return decodeLimit(data)
	case "sort":
		return decodeSort(data)
	case "unnest":
		return decodeUnnest(data)
	case "enforcesinglerow":
		return decodeEnforceSingleRow(data)
	case "tablewriter":
		return decodeTableWriter(data)
	case "assignuniqueid":
		return decodeAssignUniqueId(data)
	case "window":
		return decodeWindow(data)
	case "rownumber":
		return decodeRowNumber(data)
	case "output":
		return decodeOutput(data)
	}
	return nil, fmt.Errorf("unknown plan node tag: %q", tag)
}

func decodeNodes(raws []json.RawMessage) ([]PlanNode, error) {
	nodes := make([]PlanNode, 0, len(raws))
	for _, raw := range raws {
		n, err := DecodePlanNode(raw)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// DecodeRowExpression decodes one scalar expression tree.
func DecodeRowExpression(data []byte) (RowExpression, error) {
	tag := tagOf(data)
	switch tag {
	case "variable":
		var v VariableReference
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return &v, nil
	case "call":
		var raw struct {
			DisplayName    string            `json:"displayName"`
			FunctionHandle json.RawMessage   `json:"functionHandle"`
			ReturnType     string            `json:"returnType"`
			Arguments      []json.RawMessage `json:"arguments"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		handle, err := decodeFunctionHandle(raw.FunctionHandle)
		if err != nil {
			return nil, err
		}
		args, err := decodeRowExpressions(raw.Arguments)
		if err != nil {
			return nil, err
		}
		return &CallExpression{
			DisplayName:    raw.DisplayName,
			FunctionHandle: handle,
			ReturnType:     raw.ReturnType,
			Arguments:      args,
		}, nil
	case "constant":
		var c ConstantExpression
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return &c, nil
	case "special":
		var raw struct {
			Form       string            `json:"form"`
			ReturnType string            `json:"returnType"`
			Arguments  []json.RawMessage `json:"arguments"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		args, err := decodeRowExpressions(raw.Arguments)
		if err != nil {
			return nil, err
		}
		return &SpecialFormExpression{Form: raw.Form, ReturnType: raw.ReturnType, Arguments: args}, nil
	}
	return nil, fmt.Errorf("unknown row expression tag: %q", tag)
}

func decodeRowExpressions(raws []json.RawMessage) ([]RowExpression, error) {
	exprs := make([]RowExpression, 0, len(raws))
	for _, raw := range raws {
		e, err := DecodeRowExpression(raw)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

func decodeOptionalExpression(raw json.RawMessage) (RowExpression, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return DecodeRowExpression(raw)
}

func decodeFunctionHandle(data []byte) (FunctionHandle, error) {
	tag := tagOf(data)
	switch tag {
	case "builtin":
		var h BuiltinFunctionHandle
		if err := json.Unmarshal(data, &h); err != nil {
			return nil, err
		}
		return &h, nil
	}
	return nil, fmt.Errorf("unknown function handle tag: %q", tag)
}

// DecodeValueSet decodes a domain's value set.
func DecodeValueSet(data []byte) (ValueSet, error) {
	tag := tagOf(data)
	switch tag {
	case "sorted-range-set":
		var s SortedRangeSet
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return &s, nil
	case "equatable-value-set":
		var s EquatableValueSet
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return &s, nil
	case "all-or-none":
		var s AllOrNoneValueSet
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return &s, nil
	}
	return nil, fmt.Errorf("unknown value set tag: %q", tag)
}

func decodeDomain(data []byte) (Domain, error) {
	var raw struct {
		Values      json.RawMessage `json:"values"`
		NullAllowed bool            `json:"nullAllowed"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Domain{}, err
	}
	values, err := DecodeValueSet(raw.Values)
	if err != nil {
		return Domain{}, err
	}
	return Domain{Values: values, NullAllowed: raw.NullAllowed}, nil
}

func decodeColumnHandle(data []byte) (ColumnHandle, error) {
	tag := tagOf(data)
	switch tag {
	case "storage-column":
		var h StorageColumnHandle
		if err := json.Unmarshal(data, &h); err != nil {
			return nil, err
		}
		return &h, nil
	case "synth-column":
		var h SynthColumnHandle
		if err := json.Unmarshal(data, &h); err != nil {
			return nil, err
		}
		return &h, nil
	}
	return nil, fmt.Errorf("unknown column handle tag: %q", tag)
}

func decodeTableHandle(data []byte) (TableHandle, error) {
	var raw struct {
		ConnectorID     string          `json:"connectorId"`
		ConnectorHandle json.RawMessage `json:"connectorHandle"`
		Layout          json.RawMessage `json:"connectorTableLayout"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return TableHandle{}, err
	}
	handle := TableHandle{ConnectorID: raw.ConnectorID}

	switch tag := tagOf(raw.ConnectorHandle); tag {
	case "storage-table":
		var h StorageTableHandle
		if err := json.Unmarshal(raw.ConnectorHandle, &h); err != nil {
			return TableHandle{}, err
		}
		handle.ConnectorHandle = &h
	case "synth-table":
		var h SynthTableHandle
		if err := json.Unmarshal(raw.ConnectorHandle, &h); err != nil {
			return TableHandle{}, err
		}
		handle.ConnectorHandle = &h
	default:
		return TableHandle{}, fmt.Errorf("unknown connector table handle tag: %q", tag)
	}

	switch tag := tagOf(raw.Layout); tag {
	case "storage-layout":
		layout, err := decodeStorageLayout(raw.Layout)
		if err != nil {
			return TableHandle{}, err
		}
		handle.Layout = layout
	case "synth-layout":
		var l SynthLayoutHandle
		if err := json.Unmarshal(raw.Layout, &l); err != nil {
			return TableHandle{}, err
		}
		handle.Layout = &l
	default:
		return TableHandle{}, fmt.Errorf("unknown layout handle tag: %q", tag)
	}
	return handle, nil
}

func decodeStorageLayout(data []byte) (*StorageLayoutHandle, error) {
	var raw struct {
		PushdownFilterEnabled bool                  `json:"pushdownFilterEnabled"`
		PartitionColumns      []StorageColumnHandle `json:"partitionColumns"`
		DomainPredicate       []struct {
			Column string          `json:"column"`
			Domain json.RawMessage `json:"domain"`
		} `json:"domainPredicate"`
		RemainingPredicate json.RawMessage `json:"remainingPredicate"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	layout := &StorageLayoutHandle{
		PushdownFilterEnabled: raw.PushdownFilterEnabled,
		PartitionColumns:      raw.PartitionColumns,
	}
	for _, cd := range raw.DomainPredicate {
		domain, err := decodeDomain(cd.Domain)
		if err != nil {
			return nil, err
		}
		layout.DomainPredicate = append(layout.DomainPredicate, ColumnDomain{Column: cd.Column, Domain: domain})
	}
	remaining, err := decodeOptionalExpression(raw.RemainingPredicate)
	if err != nil {
		return nil, err
	}
	layout.RemainingPredicate = remaining
	return layout, nil
}

func decodePartitioningScheme(data []byte) (PartitioningScheme, error) {
	var raw struct {
		Partitioning struct {
			Handle struct {
				ConnectorHandle json.RawMessage `json:"connectorHandle"`
			} `json:"handle"`
			Arguments []json.RawMessage `json:"arguments"`
		} `json:"partitioning"`
		OutputLayout         []VariableReference `json:"outputLayout"`
		BucketToPartition    []int32             `json:"bucketToPartition"`
		ReplicateNullsAndAny bool                `json:"replicateNullsAndAny"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return PartitioningScheme{}, err
	}
	handle, err := decodePartitioningHandle(raw.Partitioning.Handle.ConnectorHandle)
	if err != nil {
		return PartitioningScheme{}, err
	}
	args, err := decodeRowExpressions(raw.Partitioning.Arguments)
	if err != nil {
		return PartitioningScheme{}, err
	}
	return PartitioningScheme{
		Partitioning:         Partitioning{Handle: handle, Arguments: args},
		OutputLayout:         raw.OutputLayout,
		BucketToPartition:    raw.BucketToPartition,
		ReplicateNullsAndAny: raw.ReplicateNullsAndAny,
	}, nil
}

func decodePartitioningHandle(data []byte) (PartitioningHandle, error) {
	tag := tagOf(data)
	switch tag {
	case "system-partitioning":
		var h SystemPartitioningHandle
		if err := json.Unmarshal(data, &h); err != nil {
			return nil, err
		}
		return &h, nil
	case "bucket-partitioning":
		var h BucketPartitioningHandle
		if err := json.Unmarshal(data, &h); err != nil {
			return nil, err
		}
		return &h, nil
	}
	return nil, fmt.Errorf("unknown partitioning handle tag: %q", tag)
}

func decodeWriterTarget(data []byte) (WriterTarget, error) {
	var raw struct {
		Handle struct {
			ConnectorID     string          `json:"connectorId"`
			ConnectorHandle json.RawMessage `json:"connectorHandle"`
		} `json:"handle"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	handle := OutputTableHandle{ConnectorID: raw.Handle.ConnectorID}
	switch tag := tagOf(raw.Handle.ConnectorHandle); tag {
	case "storage-output":
		var h StorageOutputTableHandle
		if err := json.Unmarshal(raw.Handle.ConnectorHandle, &h); err != nil {
			return nil, err
		}
		handle.ConnectorHandle = &h
	case "storage-insert":
		var h StorageInsertTableHandle
		if err := json.Unmarshal(raw.Handle.ConnectorHandle, &h); err != nil {
			return nil, err
		}
		handle.ConnectorHandle = &h
	default:
		return nil, fmt.Errorf("unknown writer connector handle tag: %q", tag)
	}

	switch tag := tagOf(data); tag {
	case "create-target":
		return &CreateTarget{Handle: handle}, nil
	case "insert-target":
		return &InsertTarget{Handle: handle}, nil
	default:
		return nil, fmt.Errorf("unknown writer target tag: %q", tag)
	}
}

func decodeExchange(data []byte) (*ExchangeNode, error) {
	var raw struct {
		ID                 string                `json:"id"`
		Scope              ExchangeScope         `json:"scope"`
		Kind               ExchangeKind          `json:"type"`
		Sources            []json.RawMessage     `json:"sources"`
		Inputs             [][]VariableReference `json:"inputs"`
		PartitioningScheme json.RawMessage       `json:"partitioningScheme"`
		OrderingScheme     *OrderingScheme       `json:"orderingScheme"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	sources, err := decodeNodes(raw.Sources)
	if err != nil {
		return nil, err
	}
	scheme, err := decodePartitioningScheme(raw.PartitioningScheme)
	if err != nil {
		return nil, err
	}
	return &ExchangeNode{
		NodeID:             raw.ID,
		Scope:              raw.Scope,
		Kind:               raw.Kind,
		Sources:            sources,
		Inputs:             raw.Inputs,
		PartitioningScheme: scheme,
		OrderingScheme:     raw.OrderingScheme,
	}, nil
}

func decodeFilter(data []byte) (*FilterNode, error) {
	var raw struct {
		ID        string          `json:"id"`
		Source    json.RawMessage `json:"source"`
		Predicate json.RawMessage `json:"predicate"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	source, err := DecodePlanNode(raw.Source)
	if err != nil {
		return nil, err
	}
	predicate, err := DecodeRowExpression(raw.Predicate)
	if err != nil {
		return nil, err
	}
	return &FilterNode{NodeID: raw.ID, Source: source, Predicate: predicate}, nil
}

func decodeAssignments(raws []struct {
	Variable   VariableReference `json:"variable"`
	Expression json.RawMessage   `json:"expression"`
}) ([]Assignment, error) {
	assignments := make([]Assignment, 0, len(raws))
	for _, raw := range raws {
		expr, err := DecodeRowExpression(raw.Expression)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, Assignment{Variable: raw.Variable, Expression: expr})
	}
	return assignments, nil
}

func decodeProject(data []byte) (*ProjectNode, error) {
	var raw struct {
		ID          string          `json:"id"`
		Source      json.RawMessage `json:"source"`
		Assignments []struct {
			Variable   VariableReference `json:"variable"`
			Expression json.RawMessage   `json:"expression"`
		} `json:"assignments"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	source, err := DecodePlanNode(raw.Source)
	if err != nil {
		return nil, err
	}
	assignments, err := decodeAssignments(raw.Assignments)
	if err != nil {
		return nil, err
	}
	return &ProjectNode{NodeID: raw.ID, Source: source, Assignments: assignments}, nil
}

func decodeValues(data []byte) (*ValuesNode, error) {
	var raw struct {
		ID              string              `json:"id"`
		OutputVariables []VariableReference `json:"outputVariables"`
		Rows            [][]json.RawMessage `json:"rows"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	rows := make([][]RowExpression, 0, len(raw.Rows))
	for _, rawRow := range raw.Rows {
		row, err := decodeRowExpressions(rawRow)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return &ValuesNode{NodeID: raw.ID, OutputVariables: raw.OutputVariables, Rows: rows}, nil
}

func decodeTableScan(data []byte) (*TableScanNode, error) {
	var raw struct {
		ID              string              `json:"id"`
		Table           json.RawMessage     `json:"table"`
		OutputVariables []VariableReference `json:"outputVariables"`
		Assignments     []struct {
			Variable VariableReference `json:"variable"`
			Column   json.RawMessage   `json:"column"`
		} `json:"assignments"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	table, err := decodeTableHandle(raw.Table)
	if err != nil {
		return nil, err
	}
	assignments := make([]ColumnAssignment, 0, len(raw.Assignments))
	for _, a := range raw.Assignments {
		column, err := decodeColumnHandle(a.Column)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, ColumnAssignment{Variable: a.Variable, Column: column})
	}
	return &TableScanNode{
		NodeID:          raw.ID,
		Table:           table,
		OutputVariables: raw.OutputVariables,
		Assignments:     assignments,
	}, nil
}

func decodeAggregation(data []byte) (*AggregationNode, error) {
	var raw struct {
		ID           string          `json:"id"`
		Source       json.RawMessage `json:"source"`
		Aggregations []struct {
			Variable VariableReference  `json:"variable"`
			Call     json.RawMessage    `json:"call"`
			Mask     *VariableReference `json:"mask"`
		} `json:"aggregations"`
		GroupingSets        GroupingSetDescriptor `json:"groupingSets"`
		PreGroupedVariables []VariableReference   `json:"preGroupedVariables"`
		Step                AggregationStep       `json:"step"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	source, err := DecodePlanNode(raw.Source)
	if err != nil {
		return nil, err
	}
	aggregations := make([]AggregationAssignment, 0, len(raw.Aggregations))
	for _, a := range raw.Aggregations {
		expr, err := DecodeRowExpression(a.Call)
		if err != nil {
			return nil, err
		}
		call, ok := expr.(*CallExpression)
		if !ok {
			return nil, fmt.Errorf("aggregation %q is not a call expression", a.Variable.Name)
		}
		aggregations = append(aggregations, AggregationAssignment{
			Variable:    a.Variable,
			Aggregation: Aggregation{Call: call, Mask: a.Mask},
		})
	}
	return &AggregationNode{
		NodeID:              raw.ID,
		Source:              source,
		Aggregations:        aggregations,
		GroupingSets:        raw.GroupingSets,
		PreGroupedVariables: raw.PreGroupedVariables,
		Step:                raw.Step,
	}, nil
}

func decodeGroupId(data []byte) (*GroupIdNode, error) {
	var raw struct {
		ID              string                `json:"id"`
		Source          json.RawMessage       `json:"source"`
		GroupingSets    [][]VariableReference `json:"groupingSets"`
		GroupingColumns []struct {
			Output VariableReference `json:"output"`
			Input  VariableReference `json:"input"`
		} `json:"groupingColumns"`
		AggregationArguments []VariableReference `json:"aggregationArguments"`
		GroupIdVariable      VariableReference   `json:"groupIdVariable"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	source, err := DecodePlanNode(raw.Source)
	if err != nil {
		return nil, err
	}
	columns := make([]GroupingColumn, 0, len(raw.GroupingColumns))
	for _, c := range raw.GroupingColumns {
		columns = append(columns, GroupingColumn{Output: c.Output, Input: c.Input})
	}
	return &GroupIdNode{
		NodeID:               raw.ID,
		Source:               source,
		GroupingSets:         raw.GroupingSets,
		GroupingColumns:      columns,
		AggregationArguments: raw.AggregationArguments,
		GroupIdVariable:      raw.GroupIdVariable,
	}, nil
}

func decodeDistinctLimit(data []byte) (*DistinctLimitNode, error) {
	var raw struct {
		ID                string              `json:"id"`
		Source            json.RawMessage     `json:"source"`
		Limit             int64               `json:"limit"`
		Partial           bool                `json:"partial"`
		DistinctVariables []VariableReference `json:"distinctVariables"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	source, err := DecodePlanNode(raw.Source)
	if err != nil {
		return nil, err
	}
	return &DistinctLimitNode{
		NodeID:            raw.ID,
		Source:            source,
		Limit:             raw.Limit,
		Partial:           raw.Partial,
		DistinctVariables: raw.DistinctVariables,
	}, nil
}

func decodeJoin(data []byte) (*JoinNode, error) {
	kind, left, right, criteria, output, filter, id, err := decodeJoinCommon(data)
	if err != nil {
		return nil, err
	}
	return &JoinNode{
		NodeID: id, Kind: kind, Left: left, Right: right,
		Criteria: criteria, OutputVariables: output, Filter: filter,
	}, nil
}

func decodeMergeJoin(data []byte) (*MergeJoinNode, error) {
	kind, left, right, criteria, output, filter, id, err := decodeJoinCommon(data)
	if err != nil {
		return nil, err
	}
	return &MergeJoinNode{
		NodeID: id, Kind: kind, Left: left, Right: right,
		Criteria: criteria, OutputVariables: output, Filter: filter,
	}, nil
}

func decodeJoinCommon(data []byte) (JoinKind, PlanNode, PlanNode, []EquiClause, []VariableReference, RowExpression, string, error) {
	var raw struct {
		ID              string              `json:"id"`
		Kind            JoinKind            `json:"type"`
		Left            json.RawMessage     `json:"left"`
		Right           json.RawMessage     `json:"right"`
		Criteria        []EquiClause        `json:"criteria"`
		OutputVariables []VariableReference `json:"outputVariables"`
		Filter          json.RawMessage     `json:"filter"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, nil, nil, nil, nil, nil, "", err
	}
	left, err := DecodePlanNode(raw.Left)
	if err != nil {
		return 0, nil, nil, nil, nil, nil, "", err
	}
	right, err := DecodePlanNode(raw.Right)
	if err != nil {
		return 0, nil, nil, nil, nil, nil, "", err
	}
	filter, err := decodeOptionalExpression(raw.Filter)
	if err != nil {
		return 0, nil, nil, nil, nil, nil, "", err
	}
	return raw.Kind, left, right, raw.Criteria, raw.OutputVariables, filter, raw.ID, nil
}

func decodeSemiJoin(data []byte) (*SemiJoinNode, error) {
	var raw struct {
		ID                          string            `json:"id"`
		Source                      json.RawMessage   `json:"source"`
		FilteringSource             json.RawMessage   `json:"filteringSource"`
		SourceJoinVariable          VariableReference `json:"sourceJoinVariable"`
		FilteringSourceJoinVariable VariableReference `json:"filteringSourceJoinVariable"`
		SemiJoinOutput              VariableReference `json:"semiJoinOutput"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	source, err := DecodePlanNode(raw.Source)
	if err != nil {
		return nil, err
	}
	filtering, err := DecodePlanNode(raw.FilteringSource)
	if err != nil {
		return nil, err
	}
	return &SemiJoinNode{
		NodeID:                      raw.ID,
		Source:                      source,
		FilteringSource:             filtering,
		SourceJoinVariable:          raw.SourceJoinVariable,
		FilteringSourceJoinVariable: raw.FilteringSourceJoinVariable,
		SemiJoinOutput:              raw.SemiJoinOutput,
	}, nil
}

func decodeRemoteSource(data []byte) (*RemoteSourceNode, error) {
	var raw struct {
		ID                string              `json:"id"`
		SourceFragmentIDs []string            `json:"sourceFragmentIds"`
		OutputVariables   []VariableReference `json:"outputVariables"`
		OrderingScheme    *OrderingScheme     `json:"orderingScheme"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return &RemoteSourceNode{
		NodeID:            raw.ID,
		SourceFragmentIDs: raw.SourceFragmentIDs,
		OutputVariables:   raw.OutputVariables,
		OrderingScheme:    raw.OrderingScheme,
	}, nil
}

func decodeTopN(data []byte) (*TopNNode, error) {
	var raw struct {
		ID             string          `json:"id"`
		Source         json.RawMessage `json:"source"`
		Count          int64           `json:"count"`
		OrderingScheme OrderingScheme  `json:"orderingScheme"`
		Step           StepKind        `json:"step"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	source, err := DecodePlanNode(raw.Source)
	if err != nil {
		return nil, err
	}
	return &TopNNode{NodeID: raw.ID, Source: source, Count: raw.Count, OrderingScheme: raw.OrderingScheme, Step: raw.Step}, nil
}

func decodeLimit(data []byte) (*LimitNode, error) {
	var raw struct {
		ID     string          `json:"id"`
		Source json.RawMessage `json:"source"`
		Count  int64           `json:"count"`
		Step   StepKind        `json:"step"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	source, err := DecodePlanNode(raw.Source)
	if err != nil {
		return nil, err
	}
	return &LimitNode{NodeID: raw.ID, Source: source, Count: raw.Count, Step: raw.Step}, nil
}

func decodeSort(data []byte) (*SortNode, error) {
	var raw struct {
		ID             string          `json:"id"`
		Source         json.RawMessage `json:"source"`
		OrderingScheme OrderingScheme  `json:"orderingScheme"`
		IsPartial      bool            `json:"isPartial"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	source, err := DecodePlanNode(raw.Source)
	if err != nil {
		return nil, err
	}
	return &SortNode{NodeID: raw.ID, Source: source, OrderingScheme: raw.OrderingScheme, IsPartial: raw.IsPartial}, nil
}

func decodeUnnest(data []byte) (*UnnestNode, error) {
	var raw struct {
		ID                 string              `json:"id"`
		Source             json.RawMessage     `json:"source"`
		ReplicateVariables []VariableReference `json:"replicateVariables"`
		UnnestVariables    []struct {
			Input   VariableReference   `json:"input"`
			Outputs []VariableReference `json:"outputs"`
		} `json:"unnestVariables"`
		OrdinalityVariable *VariableReference `json:"ordinalityVariable"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	source, err := DecodePlanNode(raw.Source)
	if err != nil {
		return nil, err
	}
	unnests := make([]UnnestAssignment, 0, len(raw.UnnestVariables))
	for _, u := range raw.UnnestVariables {
		unnests = append(unnests, UnnestAssignment{Input: u.Input, Outputs: u.Outputs})
	}
	return &UnnestNode{
		NodeID:             raw.ID,
		Source:             source,
		ReplicateVariables: raw.ReplicateVariables,
		UnnestVariables:    unnests,
		OrdinalityVariable: raw.OrdinalityVariable,
	}, nil
}

func decodeEnforceSingleRow(data []byte) (*EnforceSingleRowNode, error) {
	var raw struct {
		ID     string          `json:"id"`
		Source json.RawMessage `json:"source"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	source, err := DecodePlanNode(raw.Source)
	if err != nil {
		return nil, err
	}
	return &EnforceSingleRowNode{NodeID: raw.ID, Source: source}, nil
}

func decodeTableWriter(data []byte) (*TableWriterNode, error) {
	var raw struct {
		ID                         string              `json:"id"`
		Source                     json.RawMessage     `json:"source"`
		Columns                    []VariableReference `json:"columns"`
		ColumnNames                []string            `json:"columnNames"`
		RowCountVariable           VariableReference   `json:"rowCountVariable"`
		FragmentVariable           VariableReference   `json:"fragmentVariable"`
		TableCommitContextVariable VariableReference   `json:"tableCommitContextVariable"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	source, err := DecodePlanNode(raw.Source)
	if err != nil {
		return nil, err
	}
	return &TableWriterNode{
		NodeID:                     raw.ID,
		Source:                     source,
		Columns:                    raw.Columns,
		ColumnNames:                raw.ColumnNames,
		RowCountVariable:           raw.RowCountVariable,
		FragmentVariable:           raw.FragmentVariable,
		TableCommitContextVariable: raw.TableCommitContextVariable,
	}, nil
}

func decodeAssignUniqueId(data []byte) (*AssignUniqueIdNode, error) {
	var raw struct {
		ID         string            `json:"id"`
		Source     json.RawMessage   `json:"source"`
		IDVariable VariableReference `json:"idVariable"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	source, err := DecodePlanNode(raw.Source)
	if err != nil {
		return nil, err
	}
	return &AssignUniqueIdNode{NodeID: raw.ID, Source: source, IDVariable: raw.IDVariable}, nil
}

func decodeWindow(data []byte) (*WindowNode, error) {
	var raw struct {
		ID            string          `json:"id"`
		Source        json.RawMessage `json:"source"`
		Specification struct {
			PartitionBy    []VariableReference `json:"partitionBy"`
			OrderingScheme *OrderingScheme     `json:"orderingScheme"`
		} `json:"specification"`
		WindowFunctions []struct {
			Variable VariableReference `json:"variable"`
			Function struct {
				FunctionCall json.RawMessage `json:"functionCall"`
				Frame        struct {
					Kind       WindowFrameKind `json:"type"`
					StartKind  FrameBoundKind  `json:"startType"`
					StartValue json.RawMessage `json:"startValue"`
					EndKind    FrameBoundKind  `json:"endType"`
					EndValue   json.RawMessage `json:"endValue"`
				} `json:"frame"`
				IgnoreNulls bool `json:"ignoreNulls"`
			} `json:"function"`
		} `json:"windowFunctions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	source, err := DecodePlanNode(raw.Source)
	if err != nil {
		return nil, err
	}
	functions := make([]WindowAssignment, 0, len(raw.WindowFunctions))
	for _, wf := range raw.WindowFunctions {
		expr, err := DecodeRowExpression(wf.Function.FunctionCall)
		if err != nil {
			return nil, err
		}
		call, ok := expr.(*CallExpression)
		if !ok {
			return nil, fmt.Errorf("window function %q is not a call expression", wf.Variable.Name)
		}
		start, err := decodeOptionalExpression(wf.Function.Frame.StartValue)
		if err != nil {
			return nil, err
		}
		end, err := decodeOptionalExpression(wf.Function.Frame.EndValue)
		if err != nil {
			return nil, err
		}
		functions = append(functions, WindowAssignment{
			Variable: wf.Variable,
			Function: WindowFunction{
				FunctionCall: call,
				Frame: WindowFrame{
					Kind:       wf.Function.Frame.Kind,
					StartKind:  wf.Function.Frame.StartKind,
					StartValue: start,
					EndKind:    wf.Function.Frame.EndKind,
					EndValue:   end,
				},
				IgnoreNulls: wf.Function.IgnoreNulls,
			},
		})
	}
	return &WindowNode{
		NodeID: raw.ID,
		Source: source,
		Specification: WindowSpecification{
			PartitionBy:    raw.Specification.PartitionBy,
			OrderingScheme: raw.Specification.OrderingScheme,
		},
		WindowFunctions: functions,
	}, nil
}

func decodeRowNumber(data []byte) (*RowNumberNode, error) {
	var raw struct {
		ID                      string              `json:"id"`
		Source                  json.RawMessage     `json:"source"`
		PartitionBy             []VariableReference `json:"partitionBy"`
		RowNumberVariable       VariableReference   `json:"rowNumberVariable"`
		MaxRowCountPerPartition *int64              `json:"maxRowCountPerPartition"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	source, err := DecodePlanNode(raw.Source)
	if err != nil {
		return nil, err
	}
	return &RowNumberNode{
		NodeID:                  raw.ID,
		Source:                  source,
		PartitionBy:             raw.PartitionBy,
		RowNumberVariable:       raw.RowNumberVariable,
		MaxRowCountPerPartition: raw.MaxRowCountPerPartition,
	}, nil
}

func decodeOutput(data []byte) (*OutputNode, error) {
	var raw struct {
		ID              string              `json:"id"`
		Source          json.RawMessage     `json:"source"`
		ColumnNames     []string            `json:"columnNames"`
		OutputVariables []VariableReference `json:"outputVariables"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	source, err := DecodePlanNode(raw.Source)
	if err != nil {
		return nil, err
	}
	return &OutputNode{NodeID: raw.ID, Source: source, ColumnNames: raw.ColumnNames, OutputVariables: raw.OutputVariables}, nil
}
