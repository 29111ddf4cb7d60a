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
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/quarrydb/quarry/go/sqltypes"
)

// ConstantChannel marks a partition key that is a literal rather than an
// input column. The key's value comes from the spec's Constants list,
// consumed left to right.
const ConstantChannel = -1

// PartitionFunction maps one input row to a destination partition index.
type PartitionFunction interface {
	Partition(row []sqltypes.Value) (int, error)
}

// PartitionFunctionSpec is the serializable description of a partition
// function; Create instantiates it for a consumer count.
type PartitionFunctionSpec interface {
	Create(numPartitions int) (PartitionFunction, error)
	String() string
}

// SinglePartitionSpec routes every row to partition 0. It is emitted
// whenever the resolved consumer count is 1, letting the engine skip
// partition evaluation entirely.
type SinglePartitionSpec struct{}

func (SinglePartitionSpec) Create(numPartitions int) (PartitionFunction, error) {
	if numPartitions != 1 {
		return nil, fmt.Errorf("single partition function requires 1 partition, got %d", numPartitions)
	}
	return singleFunction{}, nil
}

func (SinglePartitionSpec) String() string { return "SINGLE" }

type singleFunction struct{}

func (singleFunction) Partition([]sqltypes.Value) (int, error) { return 0, nil }

// RoundRobinSpec cycles rows across partitions.
type RoundRobinSpec struct{}

func (RoundRobinSpec) Create(numPartitions int) (PartitionFunction, error) {
	if numPartitions < 1 {
		return nil, fmt.Errorf("round robin requires at least 1 partition, got %d", numPartitions)
	}
	return &roundRobinFunction{numPartitions: numPartitions}, nil
}

func (RoundRobinSpec) String() string { return "ROUND_ROBIN" }

type roundRobinFunction struct {
	numPartitions int
	next          int
}

func (f *roundRobinFunction) Partition([]sqltypes.Value) (int, error) {
	p := f.next
	f.next = (f.next + 1) % f.numPartitions
	return p, nil
}

// HashSpec partitions by a hash of the key channels. Channels may contain
// ConstantChannel entries whose values come from Constants, so literal
// partition keys hash identically across all producers.
type HashSpec struct {
	Channels  []int
	Constants []sqltypes.Value
}

func (s *HashSpec) Create(numPartitions int) (PartitionFunction, error) {
	if numPartitions < 1 {
		return nil, fmt.Errorf("hash partitioning requires at least 1 partition, got %d", numPartitions)
	}
	return &hashFunction{spec: s, numPartitions: uint64(numPartitions)}, nil
}

func (s *HashSpec) String() string {
	return fmt.Sprintf("HASH(%v)", s.Channels)
}

type hashFunction struct {
	spec          *HashSpec
	numPartitions uint64
}

func (f *hashFunction) Partition(row []sqltypes.Value) (int, error) {
	h, err := hashKeys(f.spec.Channels, f.spec.Constants, row)
	if err != nil {
		return 0, err
	}
	return int(h % f.numPartitions), nil
}

// BucketSpec partitions by a connector-compatible bucket function: rows
// hash into BucketCount buckets, then BucketToPartition maps each bucket to
// its consumer. A nil mapping is the identity.
type BucketSpec struct {
	BucketCount       int32
	BucketToPartition []int32
	Channels          []int
	Constants         []sqltypes.Value
}

func (s *BucketSpec) Create(numPartitions int) (PartitionFunction, error) {
	if s.BucketCount < 1 {
		return nil, fmt.Errorf("bucketed partitioning requires at least 1 bucket, got %d", s.BucketCount)
	}
	if s.BucketToPartition != nil && int32(len(s.BucketToPartition)) != s.BucketCount {
		return nil, fmt.Errorf("bucket mapping has %d entries for %d buckets", len(s.BucketToPartition), s.BucketCount)
	}
	return &bucketFunction{spec: s}, nil
}

func (s *BucketSpec) String() string {
	return fmt.Sprintf("BUCKET(%d)", s.BucketCount)
}

type bucketFunction struct {
	spec *BucketSpec
}

func (f *bucketFunction) Partition(row []sqltypes.Value) (int, error) {
	h, err := hashKeys(f.spec.Channels, f.spec.Constants, row)
	if err != nil {
		return 0, err
	}
	bucket := int32(h % uint64(f.spec.BucketCount))
	if f.spec.BucketToPartition == nil {
		return int(bucket), nil
	}
	return int(f.spec.BucketToPartition[bucket]), nil
}

func hashKeys(channels []int, constants []sqltypes.Value, row []sqltypes.Value) (uint64, error) {
	d := xxhash.New()
	nextConstant := 0
	for _, ch := range channels {
		var v sqltypes.Value
		if ch == ConstantChannel {
			if nextConstant >= len(constants) {
				return 0, fmt.Errorf("partition spec has %d constants, needs more", len(constants))
			}
			v = constants[nextConstant]
			nextConstant++
		} else {
			if ch < 0 || ch >= len(row) {
				return 0, fmt.Errorf("partition key channel %d out of range for %d columns", ch, len(row))
			}
			v = row[ch]
		}
		if err := hashValue(d, v); err != nil {
			return 0, err
		}
	}
	return d.Sum64(), nil
}

func hashValue(d *xxhash.Digest, v sqltypes.Value) error {
	var buf [9]byte
	if v.IsNull() {
		buf[0] = 0
		_, err := d.Write(buf[:1])
		return err
	}
	switch v.Type().Kind {
	case sqltypes.Boolean:
		buf[0] = 1
		if v.Bool() {
			buf[1] = 1
		}
		_, err := d.Write(buf[:2])
		return err
	case sqltypes.Tinyint, sqltypes.Smallint, sqltypes.Integer, sqltypes.Bigint,
		sqltypes.Date, sqltypes.Timestamp:
		buf[0] = 2
		binary.LittleEndian.PutUint64(buf[1:], uint64(v.Int64()))
		_, err := d.Write(buf[:9])
		return err
	case sqltypes.Real, sqltypes.Double:
		buf[0] = 3
		binary.LittleEndian.PutUint64(buf[1:], math.Float64bits(v.Float64()))
		_, err := d.Write(buf[:9])
		return err
	case sqltypes.Varchar, sqltypes.Varbinary:
		buf[0] = 4
		if _, err := d.Write(buf[:1]); err != nil {
			return err
		}
		_, err := d.WriteString(v.Text())
		return err
	}
	return fmt.Errorf("unhashable partition key type %v", v.Type())
}
