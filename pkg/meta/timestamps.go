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

package meta

import (
	"time"

	"github.com/fagongzi/util/format"

	"github.com/colstore/deltastore/pkg/common/moerr"
	"github.com/colstore/deltastore/pkg/logutil"
)

// TimestampAsInt64 parses a millisecond timestamp string. A parse
// failure is never fatal: it logs and reports ok=false so callers
// exclude the value from eligibility computations.
func TimestampAsInt64(ts string) (int64, bool) {
	if ts == "" {
		return 0, false
	}
	value, err := format.ParseStringInt64(ts)
	if err != nil {
		logutil.Errorf("%v", moerr.NewInvalidTimestamp(ts))
		return 0, false
	}
	return value, true
}

// IntegerValue parses a row-count string. Unlike timestamps, a
// malformed value raises a typed failure carrying the offending value;
// callers must not swallow it as zero.
func IntegerValue(value string) (int64, error) {
	parsed, err := format.ParseStringInt64(value)
	if err != nil {
		logutil.Errorf("invalid row value: %s", value)
		return 0, moerr.NewMalformedValue(value)
	}
	return parsed, nil
}

// ReadCurrentTime returns the current time in milliseconds, the unit
// of every embedded file timestamp.
func ReadCurrentTime() int64 {
	return time.Now().UnixMilli()
}
