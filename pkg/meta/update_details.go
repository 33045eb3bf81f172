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

// SegmentUpdateDetails aggregates the delete-delta history of one
// block. Keyed by (SegmentID, BlockName); the key is unique within an
// update-status file.
type SegmentUpdateDetails struct {
	SegmentID string `json:"segmentId"`
	BlockName string `json:"blockName"`

	// DeleteDeltaStartTimestamp <= DeleteDeltaEndTimestamp always.
	DeleteDeltaStartTimestamp string `json:"deleteDeltaStartTimestamp"`
	DeleteDeltaEndTimestamp   string `json:"deleteDeltaEndTimestamp"`

	// DeltaFileStamps lists every delta file timestamp of the block.
	// Populated only when start and end differ, so discovery needs no
	// directory listing in the multi-file case.
	DeltaFileStamps []string `json:"deltaFileStamps,omitempty"`

	// DeletedRowsInBlock is the authoritative cumulative count, kept as
	// the decimal string written to the status file.
	DeletedRowsInBlock string `json:"deletedRowsInBlock"`

	// Status is the owning segment's status as of the last touch.
	Status SegmentStatus `json:"segmentStatus"`
}

// Key identifies the block within the update-status file.
func (d *SegmentUpdateDetails) Key() string {
	return d.SegmentID + SeparatorChar + d.BlockName
}

// AddDeltaFileStamp appends ts keeping DeltaFileStamps an ordered set.
func (d *SegmentUpdateDetails) AddDeltaFileStamp(ts string) {
	for _, existing := range d.DeltaFileStamps {
		if existing == ts {
			return
		}
	}
	d.DeltaFileStamps = append(d.DeltaFileStamps, ts)
}

// DeltaStartAsInt64 parses the start timestamp; ok is false when the
// field is empty or unparseable.
func (d *SegmentUpdateDetails) DeltaStartAsInt64() (int64, bool) {
	return TimestampAsInt64(d.DeleteDeltaStartTimestamp)
}

func (d *SegmentUpdateDetails) DeltaEndAsInt64() (int64, bool) {
	return TimestampAsInt64(d.DeleteDeltaEndTimestamp)
}

// DeletedRowCount parses the cumulative deleted row count. A malformed
// value is a typed failure, never silently zero.
func (d *SegmentUpdateDetails) DeletedRowCount() (int64, error) {
	return IntegerValue(d.DeletedRowsInBlock)
}
