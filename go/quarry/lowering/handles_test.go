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
	"github.com/quarrydb/quarry/go/sqltypes"
)

func storageHandle(layout *wire.StorageLayoutHandle) wire.TableHandle {
	return wire.TableHandle{
		ConnectorID:     "warehouse",
		ConnectorHandle: &wire.StorageTableHandle{SchemaName: "sales", TableName: "orders"},
		Layout:          layout,
	}
}

func boolConstant(v string) *wire.ConstantExpression {
	return &wire.ConstantExpression{Type: "boolean", ValueBlock: *block(v)}
}

func TestTranslateTableHandlePushdownDisabled(t *testing.T) {
	conv := exprconv.New()

	_, _, err := TranslateTableHandle(conv, storageHandle(&wire.StorageLayoutHandle{}))
	require.Error(t, err)
	assert.Equal(t, qerrors.CodeUnsupportedConstruct, qerrors.CodeOf(err))
}

func TestTranslateTableHandleCompilesFilters(t *testing.T) {
	conv := exprconv.New()

	handle, partitionColumns, err := TranslateTableHandle(conv, storageHandle(&wire.StorageLayoutHandle{
		PushdownFilterEnabled: true,
		DomainPredicate: []wire.ColumnDomain{{
			Column: "qty",
			Domain: rangeDomain("bigint", false, bigintBetween(1, 100)),
		}},
		PartitionColumns: []wire.StorageColumnHandle{{
			Name:          "region",
			ColumnKind:    wire.ColumnPartitionKey,
			TypeSignature: "varchar",
		}},
	}))
	require.NoError(t, err)

	storage := handle.(*connector.StorageTableHandle)
	assert.Equal(t, "warehouse", storage.Connector)
	assert.Equal(t, "sales", storage.Schema)
	assert.Equal(t, "orders", storage.Table)
	assert.Nil(t, storage.RemainingFilter)

	f, ok := storage.ColumnFilters["qty"]
	require.True(t, ok)
	assert.True(t, f.Test(sqltypes.NewBigint(50)))
	assert.False(t, f.Test(sqltypes.NewBigint(101)))

	region, ok := partitionColumns["region"]
	require.True(t, ok)
	assert.Equal(t, connector.ColumnPartitionKey, region.(*connector.StorageColumnHandle).Kind)
}

func TestTranslateTableHandleRemainingPredicate(t *testing.T) {
	conv := exprconv.New()

	// A literal-true residual is dropped.
	handle, _, err := TranslateTableHandle(conv, storageHandle(&wire.StorageLayoutHandle{
		PushdownFilterEnabled: true,
		RemainingPredicate:    boolConstant("true"),
	}))
	require.NoError(t, err)
	assert.Nil(t, handle.(*connector.StorageTableHandle).RemainingFilter)

	// A literal-false residual means the coordinator failed to prune the
	// scan.
	_, _, err = TranslateTableHandle(conv, storageHandle(&wire.StorageLayoutHandle{
		PushdownFilterEnabled: true,
		RemainingPredicate:    boolConstant("false"),
	}))
	require.Error(t, err)
	assert.Equal(t, qerrors.CodeInvariantViolation, qerrors.CodeOf(err))

	// Anything else is kept.
	handle, _, err = TranslateTableHandle(conv, storageHandle(&wire.StorageLayoutHandle{
		PushdownFilterEnabled: true,
		RemainingPredicate:    &wire.VariableReference{Name: "flag", Type: "boolean"},
	}))
	require.NoError(t, err)
	assert.NotNil(t, handle.(*connector.StorageTableHandle).RemainingFilter)
}

func TestTranslateSynthTableHandle(t *testing.T) {
	conv := exprconv.New()

	handle, partitionColumns, err := TranslateTableHandle(conv, wire.TableHandle{
		ConnectorID:     "synth",
		ConnectorHandle: &wire.SynthTableHandle{TableName: "lineitem", ScaleFactor: 10},
		Layout:          &wire.SynthLayoutHandle{TableName: "lineitem", ScaleFactor: 10},
	})
	require.NoError(t, err)
	assert.Nil(t, partitionColumns)

	synth := handle.(*connector.SynthTableHandle)
	assert.Equal(t, "lineitem", synth.Table)
	assert.Equal(t, 10.0, synth.ScaleFactor)
}

func TestTranslateColumnHandle(t *testing.T) {
	column, err := TranslateColumnHandle(&wire.StorageColumnHandle{
		Name:          "price",
		ColumnKind:    wire.ColumnRegular,
		TypeSignature: "double",
	})
	require.NoError(t, err)

	storage := column.(*connector.StorageColumnHandle)
	assert.Equal(t, "price", storage.Name)
	assert.Equal(t, sqltypes.Double, storage.Type.Kind)

	column, err = TranslateColumnHandle(&wire.SynthColumnHandle{ColumnName: "l_orderkey"})
	require.NoError(t, err)
	assert.Equal(t, "l_orderkey", column.ColumnName())
}

func TestTranslateWriterTarget(t *testing.T) {
	handle := wire.OutputTableHandle{
		ConnectorID: "warehouse",
		ConnectorHandle: &wire.StorageOutputTableHandle{
			InputColumns: []wire.StorageColumnHandle{{
				Name:          "id",
				TypeSignature: "bigint",
			}},
			Location: wire.LocationHandle{
				TargetPath: "/warehouse/sales/orders",
				WritePath:  "/staging/q1",
				TableKind:  wire.TableNew,
			},
		},
	}

	target, err := TranslateWriterTarget(&wire.CreateTarget{Handle: handle})
	require.NoError(t, err)
	assert.Equal(t, exec.WriteCreate, target.Kind)

	write := target.Handle.(*connector.StorageWriteHandle)
	assert.Equal(t, "/warehouse/sales/orders", write.Target)
	assert.Equal(t, "/staging/q1", write.StagingPath)
	assert.False(t, write.ExistingTable)
	require.Len(t, write.InputColumns, 1)
	assert.Equal(t, "id", write.InputColumns[0].Name)

	insertHandle := wire.OutputTableHandle{
		ConnectorID: "warehouse",
		ConnectorHandle: &wire.StorageInsertTableHandle{
			Location: wire.LocationHandle{TableKind: wire.TableExisting},
		},
	}
	target, err = TranslateWriterTarget(&wire.InsertTarget{Handle: insertHandle})
	require.NoError(t, err)
	assert.Equal(t, exec.WriteInsert, target.Kind)
	assert.True(t, target.Handle.(*connector.StorageWriteHandle).ExistingTable)
}
