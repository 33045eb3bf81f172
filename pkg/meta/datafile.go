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
	"strings"
)

// Data-file naming grammar. A data file looks like
// part-0-3_batchno0-0-0-1597409791503.carbondata: the task id follows
// the second hyphen and the timestamp is the last hyphen field.

// TimestampFromFileName extracts the embedded timestamp substring from
// a data, index or merge-index file name. Empty when the name carries
// none.
func TimestampFromFileName(fileName string) string {
	idx := strings.LastIndex(fileName, HyphenChar)
	if idx < 0 || idx == len(fileName)-1 {
		return ""
	}
	ts := fileName[idx+1:]
	if dot := strings.Index(ts, "."); dot >= 0 {
		ts = ts[:dot]
	}
	return ts
}

// TimestampFromDeleteDeltaFile extracts the timestamp from
// <blockName>-<ts>.deletedelta.
func TimestampFromDeleteDeltaFile(fileName string) string {
	name := strings.TrimSuffix(fileName, DeleteDeltaExt)
	idx := strings.LastIndex(name, HyphenChar)
	if idx < 0 {
		return ""
	}
	return name[idx+1:]
}

// BlockNameFromDeleteDeltaFile recovers the block name from
// <blockName>-<ts>.deletedelta.
func BlockNameFromDeleteDeltaFile(fileName string) string {
	name := strings.TrimSuffix(fileName, DeleteDeltaExt)
	idx := strings.LastIndex(name, HyphenChar)
	if idx < 0 {
		return name
	}
	return name[:idx]
}

// TaskNoFromFileName extracts the task-id field of a data file name.
func TaskNoFromFileName(fileName string) string {
	fields := strings.Split(fileName, HyphenChar)
	if len(fields) < 3 {
		return ""
	}
	return fields[2]
}

// MaxTaskID scans data file names and returns the highest task id.
// Unparseable names are skipped.
func MaxTaskID(dataFileNames []string) int64 {
	var max int64
	for _, name := range dataFileNames {
		taskNo := TaskNoFromFileName(name)
		if taskNo == "" {
			continue
		}
		if us := strings.Index(taskNo, "_"); us >= 0 {
			taskNo = taskNo[:us]
		}
		task, ok := TimestampAsInt64(taskNo)
		if !ok {
			continue
		}
		if task > max {
			max = task
		}
	}
	return max
}

// LatestDeleteDeltaTimestamp returns the newest timestamp embedded in
// the given delete-delta file names, 0 when none parses.
func LatestDeleteDeltaTimestamp(deleteDeltaFiles []string) int64 {
	var latest int64
	for _, name := range deleteDeltaFiles {
		ts, ok := TimestampAsInt64(TimestampFromDeleteDeltaFile(name))
		if !ok {
			continue
		}
		if ts > latest {
			latest = ts
		}
	}
	return latest
}
