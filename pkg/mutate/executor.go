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
	"math"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/colstore/deltastore/pkg/common/moerr"
	"github.com/colstore/deltastore/pkg/deltafile"
	"github.com/colstore/deltastore/pkg/fileservice"
	"github.com/colstore/deltastore/pkg/logutil"
	"github.com/colstore/deltastore/pkg/meta"
)

// DeleteExecutor turns a batch of row addresses into delete-delta
// files plus the two status-file commits. One executor per delete
// operation.
type DeleteExecutor struct {
	mgr   *Manager
	table *meta.Table
}

func NewDeleteExecutor(mgr *Manager, table *meta.Table) *DeleteExecutor {
	return &DeleteExecutor{mgr: mgr, table: table}
}

type blockDeletes struct {
	segmentID string
	blockName string
	blockPath string
	rows      *roaring.Bitmap
}

// ApplyDeletes writes one delta file per touched block at the given
// timestamp, then commits the update-status and table-status files.
// On any commit failure the freshly written delta files are cleaned
// up and false is returned.
func (e *DeleteExecutor) ApplyDeletes(ctx context.Context, tupleIDs []string, timestamp string) (bool, error) {
	if len(tupleIDs) == 0 {
		return true, nil
	}
	blocks := make(map[string]*blockDeletes)
	var order []string
	for _, tid := range tupleIDs {
		key, err := SegmentWithBlockKey(tid, e.table.IsPartitioned)
		if err != nil {
			return false, err
		}
		group, ok := blocks[key]
		if !ok {
			blockPath, err := TableBlockPath(tid, e.table.Path, e.table.IsStandard, e.table.IsPartitioned)
			if err != nil {
				return false, err
			}
			blockField, err := RequiredFieldFromTID(tid, FieldBlockID)
			if err != nil {
				return false, err
			}
			segmentID := key
			if idx := strings.Index(key, meta.SeparatorChar); idx >= 0 {
				segmentID = key[:idx]
			}
			group = &blockDeletes{
				segmentID: segmentID,
				blockName: strings.TrimSuffix(blockField, meta.DataFileExt),
				blockPath: blockPath,
				rows:      roaring.New(),
			}
			blocks[key] = group
			order = append(order, key)
		}
		offsetField, err := RequiredFieldFromTID(tid, FieldOffset)
		if err != nil {
			return false, err
		}
		offset, err := meta.IntegerValue(offsetField)
		if err != nil {
			return false, err
		}
		// the delete bitmap holds 32-bit row offsets; anything outside
		// that range would silently alias another row
		if offset < 0 || offset > math.MaxUint32 {
			return false, moerr.NewMalformedValue(offsetField)
		}
		group.rows.Add(uint32(offset))
	}

	segmentStatus := make(map[string]meta.SegmentStatus)
	segments, err := meta.NewStatusManager(e.mgr.fs, e.table).ReadTableStatus(ctx)
	if err != nil {
		return false, err
	}
	for _, segment := range segments {
		segmentStatus[segment.ID] = segment.Status
	}
	updateStatusMgr := meta.NewUpdateStatusManager(e.mgr.fs, e.table)

	details := make([]*meta.SegmentUpdateDetails, 0, len(order))
	updatedSegments := make(map[string]struct{})
	for _, key := range order {
		group := blocks[key]
		if _, err = deltafile.Write(
			ctx, e.mgr.fs, group.blockPath, group.blockName, timestamp,
			group.rows, e.mgr.props.CompressDeltaPayload,
		); err != nil {
			e.cleanStaleDeltaFiles(ctx, timestamp)
			return false, err
		}
		// the recorded count is cumulative, not the increment
		var prior int64
		detailKey := group.segmentID + meta.SeparatorChar + group.blockName
		if existing, derr := updateStatusMgr.DetailsForBlock(ctx, detailKey); derr == nil && existing != nil {
			if count, cerr := existing.DeletedRowCount(); cerr == nil {
				prior = count
			}
		}
		details = append(details, &meta.SegmentUpdateDetails{
			SegmentID:                 group.segmentID,
			BlockName:                 group.blockName,
			DeleteDeltaStartTimestamp: timestamp,
			DeleteDeltaEndTimestamp:   timestamp,
			DeletedRowsInBlock:        strconv.FormatInt(prior+int64(group.rows.GetCardinality()), 10),
			Status:                    segmentStatus[group.segmentID],
		})
		updatedSegments[group.segmentID] = struct{}{}
	}

	if !e.mgr.UpdateSegmentStatus(ctx, e.table, details, timestamp, false) {
		e.cleanStaleDeltaFiles(ctx, timestamp)
		return false, nil
	}
	if !e.mgr.UpdateTableStatus(ctx, e.table, updatedSegments, timestamp, true, true, nil, nil, "") {
		e.cleanStaleDeltaFiles(ctx, timestamp)
		return false, nil
	}
	return true, nil
}

// cleanStaleDeltaFiles removes the delta files of a failed operation,
// found by their timestamp suffix. Failures here are logged and
// swallowed: the retention manager catches leftovers later.
func (e *DeleteExecutor) cleanStaleDeltaFiles(ctx context.Context, timestamp string) {
	suffix := meta.HyphenChar + timestamp + meta.DeleteDeltaExt
	var roots []string
	if e.table.IsStandard {
		roots = append(roots, meta.FactDir(e.table.Path)+meta.SeparatorChar+meta.AddPartPrefix("0"))
	} else {
		roots = append(roots, e.table.Path)
	}
	for _, root := range roots {
		dirs, err := e.mgr.fs.List(ctx, root)
		if err != nil {
			logutil.Errorf("exception in deleting the delta files under %s: %v", root, err)
			continue
		}
		for _, dir := range dirs {
			if !dir.IsDir {
				continue
			}
			dirPath := root + meta.SeparatorChar + dir.Name
			names, err := e.mgr.fs.ListFiles(ctx, dirPath, func(name string) bool {
				return strings.HasSuffix(name, suffix)
			})
			if err != nil {
				logutil.Errorf("exception in deleting the delta files under %s: %v", dirPath, err)
				continue
			}
			for _, name := range names {
				fileservice.DeleteSilent(ctx, e.mgr.fs, dirPath+meta.SeparatorChar+name)
			}
		}
	}
}
