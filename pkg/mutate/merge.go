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

package mutate

import (
	"github.com/colstore/deltastore/pkg/meta"
)

// MergeSegmentUpdate folds one incoming block delta record into the
// existing list and returns the list. This is the only place delta
// history is consolidated, and it is idempotent on repeated
// application of the same incoming record.
//
// The lookup is a linear scan on key equality: keys are unique by
// invariant, so the first match is authoritative. Outside compaction
// the earliest start timestamp wins; end, status and row count always
// take the incoming values.
func MergeSegmentUpdate(
	isCompaction bool,
	existing []*meta.SegmentUpdateDetails,
	incoming *meta.SegmentUpdateDetails,
) []*meta.SegmentUpdateDetails {
	for _, detail := range existing {
		if detail.Key() != incoming.Key() {
			continue
		}
		if detail.DeleteDeltaStartTimestamp == "" || isCompaction {
			detail.DeleteDeltaStartTimestamp = incoming.DeleteDeltaStartTimestamp
		}
		detail.DeleteDeltaEndTimestamp = incoming.DeleteDeltaEndTimestamp
		detail.Status = incoming.Status
		detail.DeletedRowsInBlock = incoming.DeletedRowsInBlock
		// differing start and end means the delta sits in multiple
		// files; record both stamps so discovery needs no listing
		if detail.DeleteDeltaStartTimestamp != detail.DeleteDeltaEndTimestamp {
			detail.AddDeltaFileStamp(detail.DeleteDeltaStartTimestamp)
			detail.AddDeltaFileStamp(detail.DeleteDeltaEndTimestamp)
		} else {
			detail.DeltaFileStamps = nil
		}
		return existing
	}
	return append(existing, incoming)
}
