// Copyright 2023 ColStore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillDefaults(t *testing.T) {
	props := (&Properties{}).FillDefaults()
	assert.Equal(t, DefaultMaxQueryExecutionTime, props.MaxQueryExecutionTime)
	assert.Equal(t, DefaultTrashRetention, props.TrashRetention.Duration)
	assert.Equal(t, DefaultTrashExpiration, props.TrashExpiration.Duration)
	assert.Equal(t, DefaultLockRetryCount, props.LockRetryCount)
	assert.Equal(t, DefaultLockRetryInterval, props.LockRetryInterval.Duration)
	assert.Equal(t, DefaultGCWorkers, props.GCWorkers)
	assert.False(t, props.CompressDeltaPayload)

	// explicit values survive
	props = (&Properties{MaxQueryExecutionTime: 5}).FillDefaults()
	assert.Equal(t, 5, props.MaxQueryExecutionTime)
	assert.Equal(t, 5*time.Minute, props.MaxQueryTimeout())
}

func TestFillDefaultsNilReceiver(t *testing.T) {
	var props *Properties
	filled := props.FillDefaults()
	require.NotNil(t, filled)
	assert.Equal(t, DefaultGCWorkers, filled.GCWorkers)
}

func TestMaxQueryTimeout(t *testing.T) {
	props := (&Properties{MaxQueryExecutionTime: 90}).FillDefaults()
	assert.Equal(t, 90*time.Minute, props.MaxQueryTimeout())
}

func TestLoadProperties(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deltastore.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
max-query-execution-time = 30
trash-retention = "48h"
gc-workers = 2
compress-delta-payload = true
`), 0644))

	props, err := LoadProperties(path)
	require.NoError(t, err)
	assert.Equal(t, 30, props.MaxQueryExecutionTime)
	assert.Equal(t, 48*time.Hour, props.TrashRetention.Duration)
	assert.Equal(t, 2, props.GCWorkers)
	assert.True(t, props.CompressDeltaPayload)
	// unset knobs still get defaults
	assert.Equal(t, DefaultTrashExpiration, props.TrashExpiration.Duration)
	assert.Equal(t, DefaultLockRetryCount, props.LockRetryCount)
}

func TestLoadPropertiesBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deltastore.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid"), 0644))
	_, err := LoadProperties(path)
	require.Error(t, err)

	_, err = LoadProperties(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
