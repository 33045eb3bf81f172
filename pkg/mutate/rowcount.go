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
	"context"

	"github.com/colstore/deltastore/pkg/meta"
)

// RowCountKey marks a BlockMapping holding a single pre-aggregated
// total instead of per-block counts.
const RowCountKey = "rowCount"

// RowCountDetails pairs a block's raw stored count with its recorded
// deletions, for consumers computing visible counts without re-reading
// delta files.
type RowCountDetails struct {
	TotalRows   int64
	DeletedRows int64
}

// BlockMapping carries block key to raw stored row count, plus the
// materialized per-block detail map once built.
type BlockMapping struct {
	BlockRowCount map[string]int64
	BlockDetails  map[string]RowCountDetails
}

// RowCount computes the live row count of a table: raw counts net of
// recorded deletions. A mapping holding only the pre-aggregated total
// returns it directly.
func (m *Manager) RowCount(ctx context.Context, mapping *BlockMapping, table *meta.Table) (int64, error) {
	if len(mapping.BlockRowCount) == 1 {
		if total, ok := mapping.BlockRowCount[RowCountKey]; ok {
			return total, nil
		}
	}
	updateStatusMgr := meta.NewUpdateStatusManager(m.fs, table)
	var rowCount int64
	for key, rawCount := range mapping.BlockRowCount {
		deleted, err := deletedCountForBlock(ctx, updateStatusMgr, key)
		if err != nil {
			return 0, err
		}
		rowCount += rawCount - deleted
	}
	return rowCount, nil
}

// CreateBlockDetailsMap materializes the (raw, deleted) pair per block
// into mapping.BlockDetails.
func CreateBlockDetailsMap(ctx context.Context, mapping *BlockMapping, updateStatusMgr *meta.UpdateStatusManager) error {
	details := make(map[string]RowCountDetails, len(mapping.BlockRowCount))
	for key, rawCount := range mapping.BlockRowCount {
		deleted, err := deletedCountForBlock(ctx, updateStatusMgr, key)
		if err != nil {
			return err
		}
		details[key] = RowCountDetails{
			TotalRows:   rawCount,
			DeletedRows: deleted,
		}
	}
	mapping.BlockDetails = details
	return nil
}

func deletedCountForBlock(ctx context.Context, updateStatusMgr *meta.UpdateStatusManager, key string) (int64, error) {
	detail, err := updateStatusMgr.DetailsForBlock(ctx, key)
	if err != nil {
		return 0, err
	}
	if detail == nil {
		return 0, nil
	}
	return detail.DeletedRowCount()
}

// DecrementDeletedBlockCount records that one more block of the
// segment became fully deleted.
func DecrementDeletedBlockCount(details *meta.SegmentUpdateDetails, segmentBlockCount map[string]int64) {
	segmentBlockCount[details.SegmentID]--
}

// SegmentsToMarkDeleted returns the segments whose live block count
// dropped to zero, candidates for MARKED_FOR_DELETE.
func SegmentsToMarkDeleted(segmentBlockCount map[string]int64) []string {
	var segments []string
	for segmentID, count := range segmentBlockCount {
		if count == 0 {
			segments = append(segments, segmentID)
		}
	}
	return segments
}
