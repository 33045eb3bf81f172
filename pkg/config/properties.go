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
	"time"

	"github.com/BurntSushi/toml"

	"github.com/colstore/deltastore/pkg/common/moerr"
)

const (
	// DefaultMaxQueryExecutionTime bounds, in minutes, how long a query
	// may keep reading a superseded file. Retention decisions wait at
	// least this long before destroying anything.
	DefaultMaxQueryExecutionTime = 60

	DefaultTrashRetention    = 7 * 24 * time.Hour
	DefaultTrashExpiration   = 21 * 24 * time.Hour
	DefaultLockRetryCount    = 3
	DefaultLockRetryInterval = 5 * time.Second
	DefaultGCWorkers         = 4
)

// Duration wraps time.Duration for TOML decoding.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Properties carries the externally supplied knobs of the mutation and
// retention layer. Zero values are filled by FillDefaults.
type Properties struct {
	// MaxQueryExecutionTime is in minutes.
	MaxQueryExecutionTime int `toml:"max-query-execution-time"`

	// TrashRetention gates the trash expiry sweep.
	TrashRetention Duration `toml:"trash-retention"`

	// TrashExpiration is a separate window used for in-progress segment
	// checks. It is intentionally not unified with
	// MaxQueryExecutionTime.
	TrashExpiration Duration `toml:"trash-expiration"`

	LockRetryCount    int      `toml:"lock-retry-count"`
	LockRetryInterval Duration `toml:"lock-retry-interval"`

	// GCWorkers is the size of the per-table cleanup worker pool.
	GCWorkers int `toml:"gc-workers"`

	// CompressDeltaPayload toggles lz4 on delete-delta payloads.
	CompressDeltaPayload bool `toml:"compress-delta-payload"`
}

func (p *Properties) FillDefaults() *Properties {
	if p == nil {
		p = &Properties{}
	}
	if p.MaxQueryExecutionTime <= 0 {
		p.MaxQueryExecutionTime = DefaultMaxQueryExecutionTime
	}
	if p.TrashRetention.Duration <= 0 {
		p.TrashRetention.Duration = DefaultTrashRetention
	}
	if p.TrashExpiration.Duration <= 0 {
		p.TrashExpiration.Duration = DefaultTrashExpiration
	}
	if p.LockRetryCount <= 0 {
		p.LockRetryCount = DefaultLockRetryCount
	}
	if p.LockRetryInterval.Duration <= 0 {
		p.LockRetryInterval.Duration = DefaultLockRetryInterval
	}
	if p.GCWorkers <= 0 {
		p.GCWorkers = DefaultGCWorkers
	}
	return p
}

// MaxQueryTimeout returns the query execution bound as a duration.
func (p *Properties) MaxQueryTimeout() time.Duration {
	return time.Duration(p.MaxQueryExecutionTime) * time.Minute
}

// LoadProperties decodes a TOML properties file and fills defaults.
func LoadProperties(path string) (*Properties, error) {
	p := &Properties{}
	if _, err := toml.DecodeFile(path, p); err != nil {
		return nil, moerr.NewInvalidInput("cannot parse properties file %s: %v", path, err)
	}
	return p.FillDefaults(), nil
}
