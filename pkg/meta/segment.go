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

// SegmentStatus is the lifecycle state of a loaded segment. Transitions
// are monotonic toward a terminal state; MarkedForDelete and Compacted
// are terminal for delta-retention purposes.
type SegmentStatus string

const (
	StatusSuccess            SegmentStatus = "Success"
	StatusLoadPartialSuccess SegmentStatus = "Partial Success"
	StatusMarkedForDelete    SegmentStatus = "Marked for Delete"
	StatusCompacted          SegmentStatus = "Compacted"
	StatusInProgress         SegmentStatus = "In Progress"
)

// IsBlockInvalid reports whether delta files recorded under this
// status belong to a block that queries no longer consider valid.
func IsBlockInvalid(status SegmentStatus) bool {
	return status == StatusCompacted || status == StatusMarkedForDelete
}

// AnchorSegmentID names the segment carrying the anchor pointer: the
// link between the table-status file and the valid update-status
// epoch lives on this segment only.
const AnchorSegmentID = "0"

// Segment is one entry of the table-status file. Mutated only under
// the table-status lock.
type Segment struct {
	ID     string        `json:"id"`
	Status SegmentStatus `json:"status"`

	SegmentFile string `json:"segmentFile,omitempty"`

	LoadStartTime int64 `json:"loadStartTime,omitempty"`
	LoadEndTime   int64 `json:"loadEndTime,omitempty"`

	// UpdateDeltaStartTimestamp is set on the first update touching the
	// segment and never moved afterwards; the end refreshes every time.
	UpdateDeltaStartTimestamp string `json:"updateDeltaStartTimestamp,omitempty"`
	UpdateDeltaEndTimestamp   string `json:"updateDeltaEndTimestamp,omitempty"`

	ModificationOrDeletionTime int64 `json:"modificationOrDeletionTimestamp,omitempty"`

	// UpdateStatusFileName is the anchor pointer. Populated on the
	// anchor segment only.
	UpdateStatusFileName string `json:"updateStatusFileName,omitempty"`
}

// Table identifies one columnar table and the layout knobs that drive
// tuple-address interpretation.
type Table struct {
	Database string
	Name     string
	Path     string

	// IsStandard selects the segment-prefixed block path layout.
	IsStandard    bool
	IsPartitioned bool

	// IsIndexTable marks a secondary-index table, which gets the extra
	// stale-file cleanup after small-file merges.
	IsIndexTable bool
}

func (t *Table) FullName() string {
	return t.Database + "." + t.Name
}
