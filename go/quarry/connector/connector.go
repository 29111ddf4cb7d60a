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

// Package connector implements the worker-side connector handles: resolved
// table, column and write-target descriptors produced by plan lowering and
// consumed by scans and writers. Two connectors exist: storage (file-based
// warehouse tables) and synth (generated benchmark tables).
package connector

import (
	"fmt"
	"sync"

	"github.com/quarrydb/quarry/go/quarry/exec"
	"github.com/quarrydb/quarry/go/quarry/filters"
	"github.com/quarrydb/quarry/go/sqltypes"
)

// Connector is a registered data source.
type Connector interface {
	ID() string
}

var (
	mu         sync.RWMutex
	connectors = make(map[string]Connector)
)

// Register adds a connector under its ID.
func Register(c Connector) error {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := connectors[c.ID()]; ok {
		return fmt.Errorf("connector %q already registered", c.ID())
	}
	connectors[c.ID()] = c
	return nil
}

// Get returns the connector registered under id.
func Get(id string) (Connector, bool) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := connectors[id]
	return c, ok
}

// ColumnKind distinguishes storage column roles.
type ColumnKind int

const (
	ColumnRegular ColumnKind = iota
	ColumnPartitionKey
	ColumnSynthesized
)

// StorageColumnHandle is a resolved storage column.
type StorageColumnHandle struct {
	Name              string
	Kind              ColumnKind
	Type              sqltypes.Type
	RequiredSubfields []string
}

func (h *StorageColumnHandle) ColumnName() string { return h.Name }

// StorageTableHandle is a resolved storage scan: the table plus the
// pushed-down per-column filters and residual predicate.
type StorageTableHandle struct {
	Connector       string
	Schema          string
	Table           string
	ColumnFilters   map[string]filters.Filter
	RemainingFilter exec.TypedExpr
}

func (h *StorageTableHandle) ConnectorID() string { return h.Connector }
func (h *StorageTableHandle) TableName() string   { return h.Table }

// SynthColumnHandle is a resolved synth column.
type SynthColumnHandle struct {
	Name string
}

func (h *SynthColumnHandle) ColumnName() string { return h.Name }

// SynthTableHandle is a resolved synth scan.
type SynthTableHandle struct {
	Connector   string
	Table       string
	ScaleFactor float64
}

func (h *SynthTableHandle) ConnectorID() string { return h.Connector }
func (h *SynthTableHandle) TableName() string   { return h.Table }

// StorageWriteHandle is a resolved storage write target.
type StorageWriteHandle struct {
	Connector     string
	Target        string
	StagingPath   string
	ExistingTable bool
	InputColumns  []StorageColumnHandle
}

func (h *StorageWriteHandle) ConnectorID() string { return h.Connector }
func (h *StorageWriteHandle) TargetPath() string  { return h.Target }

// StorageConnector serves warehouse tables from files, caching open file
// handles across scans.
type StorageConnector struct {
	id          string
	fileHandles *FileHandleCache
}

// NewStorageConnector returns a storage connector with a file-handle cache
// of the given capacity hint.
func NewStorageConnector(id string, cacheTTLSeconds int) *StorageConnector {
	return &StorageConnector{id: id, fileHandles: NewFileHandleCache(cacheTTLSeconds)}
}

func (c *StorageConnector) ID() string { return c.id }

// FileHandleCache returns the connector's handle cache.
func (c *StorageConnector) FileHandleCache() *FileHandleCache { return c.fileHandles }

// SynthConnector generates benchmark tables.
type SynthConnector struct {
	id string
}

// NewSynthConnector returns a synth connector.
func NewSynthConnector(id string) *SynthConnector {
	return &SynthConnector{id: id}
}

func (c *SynthConnector) ID() string { return c.id }
