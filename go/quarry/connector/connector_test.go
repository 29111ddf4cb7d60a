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

package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	storage := NewStorageConnector("storage-test", 60)
	require.NoError(t, Register(storage))
	require.Error(t, Register(NewStorageConnector("storage-test", 60)))

	got, ok := Get("storage-test")
	require.True(t, ok)
	assert.Equal(t, "storage-test", got.ID())

	_, ok = Get("nope")
	assert.False(t, ok)
}

func TestFileHandleCache(t *testing.T) {
	c := NewFileHandleCache(60)

	_, ok := c.Get("/data/a")
	assert.False(t, ok)

	c.Put(&FileHandle{Path: "/data/a", Size: 128})
	h, ok := c.Get("/data/a")
	require.True(t, ok)
	assert.Equal(t, int64(128), h.Size)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Entries)
}
