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
	"github.com/quarrydb/quarry/go/quarry/connector"
	"github.com/quarrydb/quarry/go/quarry/exec"
	"github.com/quarrydb/quarry/go/quarry/exprconv"
	"github.com/quarrydb/quarry/go/quarry/filters"
	"github.com/quarrydb/quarry/go/quarry/qerrors"
	"github.com/quarrydb/quarry/go/quarry/wire"
	"github.com/quarrydb/quarry/go/sqltypes"
)

// TranslateColumnHandle resolves one wire column handle.
func TranslateColumnHandle(h wire.ColumnHandle) (exec.ColumnHandle, error) {
	switch c := h.(type) {
	case *wire.StorageColumnHandle:
		return translateStorageColumn(c)
	case *wire.SynthColumnHandle:
		return &connector.SynthColumnHandle{Name: c.ColumnName}, nil
	}
	return nil, qerrors.Unsupportedf("unknown column handle variant %T", h)
}

func translateStorageColumn(c *wire.StorageColumnHandle) (*connector.StorageColumnHandle, error) {
	typ, err := sqltypes.ParseType(c.TypeSignature)
	if err != nil {
		return nil, qerrors.Unsupportedf("column %q type %q: %v", c.Name, c.TypeSignature, err)
	}
	var kind connector.ColumnKind
	switch c.ColumnKind {
	case wire.ColumnRegular:
		kind = connector.ColumnRegular
	case wire.ColumnPartitionKey:
		kind = connector.ColumnPartitionKey
	case wire.ColumnSynthesized:
		kind = connector.ColumnSynthesized
	default:
		return nil, qerrors.Unsupportedf("column %q kind %v", c.Name, c.ColumnKind)
	}
	return &connector.StorageColumnHandle{
		Name:              c.Name,
		Kind:              kind,
		Type:              typ,
		RequiredSubfields: c.RequiredSubfields,
	}, nil
}

// TranslateTableHandle resolves a wire table handle into its connector's
// internal handle, compiling the layout's pushed-down predicates. The
// second return maps partition column names to their handles.
func TranslateTableHandle(conv exprconv.Converter, handle wire.TableHandle) (exec.TableHandle, map[string]exec.ColumnHandle, error) {
	switch layout := handle.Layout.(type) {
	case *wire.StorageLayoutHandle:
		table, ok := handle.ConnectorHandle.(*wire.StorageTableHandle)
		if !ok {
			return nil, nil, qerrors.Unsupportedf("storage layout with table handle %T", handle.ConnectorHandle)
		}
		return translateStorageTable(conv, handle.ConnectorID, table, layout)

	case *wire.SynthLayoutHandle:
		return &connector.SynthTableHandle{
			Connector:   handle.ConnectorID,
			Table:       layout.TableName,
			ScaleFactor: layout.ScaleFactor,
		}, nil, nil
	}
	return nil, nil, qerrors.Unsupportedf("unknown layout handle variant %T", handle.Layout)
}

func translateStorageTable(conv exprconv.Converter, connectorID string, table *wire.StorageTableHandle, layout *wire.StorageLayoutHandle) (exec.TableHandle, map[string]exec.ColumnHandle, error) {
	// A worker only ever sees the predicates the coordinator pushed into
	// the layout; without pushdown there is nothing safe to scan with.
	if !layout.PushdownFilterEnabled {
		return nil, nil, qerrors.Unsupportedf("table scan with filter pushdown disabled")
	}

	partitionColumns := make(map[string]exec.ColumnHandle, len(layout.PartitionColumns))
	for i := range layout.PartitionColumns {
		col, err := translateStorageColumn(&layout.PartitionColumns[i])
		if err != nil {
			return nil, nil, err
		}
		partitionColumns[col.Name] = col
	}

	columnFilters := make(map[string]filters.Filter, len(layout.DomainPredicate))
	for _, cd := range layout.DomainPredicate {
		f, err := CompileDomain(conv, cd.Domain)
		if err != nil {
			return nil, nil, qerrors.Wrapf(err, "column %q", cd.Column)
		}
		columnFilters[cd.Column] = f
	}

	var remaining exec.TypedExpr
	if layout.RemainingPredicate != nil {
		expr, err := conv.ToTypedExpr(layout.RemainingPredicate)
		if err != nil {
			return nil, nil, err
		}
		if c, ok := expr.(*exec.ConstantExpr); ok && c.Value.Type().Kind == sqltypes.Boolean && !c.Value.IsNull() {
			if !c.Value.Bool() {
				return nil, nil, qerrors.Invariantf("always-false remaining predicate")
			}
			// A literal-true residual means no remaining filter.
		} else {
			remaining = expr
		}
	}

	return &connector.StorageTableHandle{
		Connector:       connectorID,
		Schema:          table.SchemaName,
		Table:           table.TableName,
		ColumnFilters:   columnFilters,
		RemainingFilter: remaining,
	}, partitionColumns, nil
}

// TranslateWriterTarget resolves the fragment's write target.
func TranslateWriterTarget(target wire.WriterTarget) (*exec.WriteTarget, error) {
	switch t := target.(type) {
	case *wire.CreateTarget:
		handle, err := translateWriteHandle(t.Handle, false)
		if err != nil {
			return nil, err
		}
		return &exec.WriteTarget{Kind: exec.WriteCreate, Handle: handle}, nil
	case *wire.InsertTarget:
		handle, err := translateWriteHandle(t.Handle, true)
		if err != nil {
			return nil, err
		}
		return &exec.WriteTarget{Kind: exec.WriteInsert, Handle: handle}, nil
	}
	return nil, qerrors.Unsupportedf("unknown writer target variant %T", target)
}

func translateWriteHandle(handle wire.OutputTableHandle, existing bool) (exec.ConnectorWriteHandle, error) {
	var columns []wire.StorageColumnHandle
	var location wire.LocationHandle
	switch h := handle.ConnectorHandle.(type) {
	case *wire.StorageOutputTableHandle:
		columns, location = h.InputColumns, h.Location
	case *wire.StorageInsertTableHandle:
		columns, location = h.InputColumns, h.Location
	default:
		return nil, qerrors.Unsupportedf("unknown writer handle variant %T", handle.ConnectorHandle)
	}

	inputColumns := make([]connector.StorageColumnHandle, 0, len(columns))
	for i := range columns {
		col, err := translateStorageColumn(&columns[i])
		if err != nil {
			return nil, err
		}
		inputColumns = append(inputColumns, *col)
	}
	return &connector.StorageWriteHandle{
		Connector:     handle.ConnectorID,
		Target:        location.TargetPath,
		StagingPath:   location.WritePath,
		ExistingTable: existing || location.TableKind == wire.TableExisting,
		InputColumns:  inputColumns,
	}, nil
}
