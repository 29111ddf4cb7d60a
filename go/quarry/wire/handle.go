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

// Two connectors ship handles to this worker: the storage connector
// (file-based warehouse tables) and the synth connector (generated
// benchmark tables).

// ConnectorTableHandle identifies a table inside its connector.
// Variants: *StorageTableHandle, *SynthTableHandle.
type ConnectorTableHandle interface {
	isConnectorTableHandle()
}

// StorageTableHandle names a warehouse table.
type StorageTableHandle struct {
	SchemaName string `json:"schemaName"`
	TableName  string `json:"tableName"`
}

func (*StorageTableHandle) isConnectorTableHandle() {}

// SynthTableHandle names a generated benchmark table at a scale factor.
type SynthTableHandle struct {
	TableName   string  `json:"tableName"`
	ScaleFactor float64 `json:"scaleFactor"`
}

func (*SynthTableHandle) isConnectorTableHandle() {}

// ConnectorLayoutHandle is the connector-resolved physical layout of a
// scan, carrying pushed-down predicates. Variants: *StorageLayoutHandle,
// *SynthLayoutHandle.
type ConnectorLayoutHandle interface {
	isConnectorLayoutHandle()
}

// StorageLayoutHandle is the storage connector's layout: per-column
// domains, a residual predicate and the table's partition columns.
type StorageLayoutHandle struct {
	PushdownFilterEnabled bool                  `json:"pushdownFilterEnabled"`
	DomainPredicate       []ColumnDomain        `json:"-"`
	RemainingPredicate    RowExpression         `json:"-"`
	PartitionColumns      []StorageColumnHandle `json:"partitionColumns"`
}

func (*StorageLayoutHandle) isConnectorLayoutHandle() {}

// SynthLayoutHandle is the synth connector's layout.
type SynthLayoutHandle struct {
	TableName   string  `json:"tableName"`
	ScaleFactor float64 `json:"scaleFactor"`
}

func (*SynthLayoutHandle) isConnectorLayoutHandle() {}

// TableHandle is the connector-qualified table reference of a scan.
type TableHandle struct {
	ConnectorID     string                `json:"connectorId"`
	ConnectorHandle ConnectorTableHandle  `json:"-"`
	Layout          ConnectorLayoutHandle `json:"-"`
}

// ColumnKind distinguishes regular data columns from partition keys and
// synthesized columns in the storage connector.
type ColumnKind int

const (
	ColumnRegular ColumnKind = iota
	ColumnPartitionKey
	ColumnSynthesized
)

var columnKindNames = map[string]ColumnKind{
	"REGULAR":       ColumnRegular,
	"PARTITION_KEY": ColumnPartitionKey,
	"SYNTHESIZED":   ColumnSynthesized,
}

func (k *ColumnKind) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, columnKindNames, "column kind")
	*k = v
	return err
}

func (k ColumnKind) String() string { return enumString(k, columnKindNames) }

// ColumnHandle identifies a column inside its connector. Variants:
// *StorageColumnHandle, *SynthColumnHandle.
type ColumnHandle interface {
	isColumnHandle()
}

// StorageColumnHandle is a storage connector column.
type StorageColumnHandle struct {
	Name              string     `json:"name"`
	ColumnKind        ColumnKind `json:"columnType"`
	TypeSignature     string     `json:"typeSignature"`
	RequiredSubfields []string   `json:"requiredSubfields"`
}

func (*StorageColumnHandle) isColumnHandle() {}

// SynthColumnHandle is a synth connector column.
type SynthColumnHandle struct {
	ColumnName string `json:"columnName"`
}

func (*SynthColumnHandle) isColumnHandle() {}

// SystemPartitioning is the distribution class of a system partitioning
// handle.
type SystemPartitioning int

const (
	PartitioningSingle SystemPartitioning = iota
	PartitioningFixed
	PartitioningSource
	PartitioningScaled
	PartitioningCoordinatorOnly
	PartitioningArbitrary
)

var systemPartitioningNames = map[string]SystemPartitioning{
	"SINGLE":           PartitioningSingle,
	"FIXED":            PartitioningFixed,
	"SOURCE":           PartitioningSource,
	"SCALED":           PartitioningScaled,
	"COORDINATOR_ONLY": PartitioningCoordinatorOnly,
	"ARBITRARY":        PartitioningArbitrary,
}

func (p *SystemPartitioning) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, systemPartitioningNames, "system partitioning")
	*p = v
	return err
}

func (p SystemPartitioning) String() string { return enumString(p, systemPartitioningNames) }

// SystemPartitionFunction is the row-to-partition function of a system
// partitioning handle.
type SystemPartitionFunction int

const (
	PartitionFnSingle SystemPartitionFunction = iota
	PartitionFnHash
	PartitionFnRoundRobin
	PartitionFnBroadcast
	PartitionFnUnknown
)

var systemPartitionFunctionNames = map[string]SystemPartitionFunction{
	"SINGLE":      PartitionFnSingle,
	"HASH":        PartitionFnHash,
	"ROUND_ROBIN": PartitionFnRoundRobin,
	"BROADCAST":   PartitionFnBroadcast,
	"UNKNOWN":     PartitionFnUnknown,
}

func (f *SystemPartitionFunction) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, systemPartitionFunctionNames, "system partition function")
	*f = v
	return err
}

func (f SystemPartitionFunction) String() string {
	return enumString(f, systemPartitionFunctionNames)
}

// PartitioningHandle describes how output rows are bucketed. Variants:
// *SystemPartitioningHandle, *BucketPartitioningHandle.
type PartitioningHandle interface {
	isPartitioningHandle()
}

// SystemPartitioningHandle is the engine-native partitioning family.
type SystemPartitioningHandle struct {
	Partitioning SystemPartitioning      `json:"partitioning"`
	Function     SystemPartitionFunction `json:"function"`
}

func (*SystemPartitioningHandle) isPartitioningHandle() {}

// BucketFunctionKind selects the bucketing algorithm of a bucketed
// partitioning handle.
type BucketFunctionKind int

const (
	// BucketCompatible is the storage-compatible bucket hash; the only
	// kind this worker implements.
	BucketCompatible BucketFunctionKind = iota
	// BucketNative is the engine-native bucket hash.
	BucketNative
)

var bucketFunctionKindNames = map[string]BucketFunctionKind{
	"COMPATIBLE": BucketCompatible,
	"NATIVE":     BucketNative,
}

func (k *BucketFunctionKind) UnmarshalJSON(data []byte) error {
	v, err := unmarshalEnum(data, bucketFunctionKindNames, "bucket function kind")
	*k = v
	return err
}

func (k BucketFunctionKind) String() string { return enumString(k, bucketFunctionKindNames) }

// BucketPartitioningHandle is the storage connector's bucketed
// partitioning: rows hash into bucketCount buckets, which map onto
// partitions via the scheme's bucket-to-partition array.
type BucketPartitioningHandle struct {
	BucketCount  int32              `json:"bucketCount"`
	FunctionKind BucketFunctionKind `json:"bucketFunctionKind"`
}

func (*BucketPartitioningHandle) isPartitioningHandle() {}
