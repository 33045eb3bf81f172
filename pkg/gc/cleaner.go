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

// Package gc implements the retention manager: timestamp-gated
// deletion of superseded delete-delta files, stale update-status
// epochs and stale secondary-index files. It takes no lock; safety is
// purely elapsed-time windows, on the assumption that no query keeps
// reading a file once the max query execution timeout has passed.
package gc

import (
	"context"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/colstore/deltastore/pkg/common/moerr"
	"github.com/colstore/deltastore/pkg/config"
	"github.com/colstore/deltastore/pkg/fileservice"
	"github.com/colstore/deltastore/pkg/logutil"
	"github.com/colstore/deltastore/pkg/meta"
	"github.com/colstore/deltastore/pkg/metrics"
)

// Cleaner sweeps one table at a time. Sweeps across segments of a
// table run concurrently on a bounded pool.
type Cleaner struct {
	fs    fileservice.FileService
	props *config.Properties

	// nowFn returns the current time in milliseconds; replaceable in
	// tests to pin the eligibility windows.
	nowFn func() int64
}

func NewCleaner(fs fileservice.FileService, props *config.Properties) *Cleaner {
	return &Cleaner{
		fs:    fs,
		props: props.FillDefaults(),
		nowFn: meta.ReadCurrentTime,
	}
}

// IsMaxQueryTimeoutExceeded reports whether a file stamped at
// fileTimestamp is past the query execution window. The boundary is
// exclusive: a file aged exactly the timeout is kept.
func (c *Cleaner) IsMaxQueryTimeoutExceeded(fileTimestamp int64) bool {
	minutesElapsed := (c.nowFn() - fileTimestamp) / (1000 * 60)
	return minutesElapsed > int64(c.props.MaxQueryExecutionTime)
}

// IsMaxQueryTimeoutExceededForInProgressSegments is the variant used
// for in-progress segment handling. It deliberately runs on the trash
// expiration window, a separately configured knob.
func (c *Cleaner) IsMaxQueryTimeoutExceededForInProgressSegments(fileTimestamp int64) bool {
	return c.nowFn()-fileTimestamp > c.props.TrashExpiration.Milliseconds()
}

// CleanUpDeltaFiles removes the delete-delta files, update-status
// epochs and (for index tables) stale data files that no in-flight
// query can still need. forceDelete bypasses the timeout for
// superseded and invalid-block files only; it is meant for explicit
// administrative cleanup, never routine maintenance.
func (c *Cleaner) CleanUpDeltaFiles(ctx context.Context, table *meta.Table, forceDelete bool) error {
	statusMgr := meta.NewStatusManager(c.fs, table)
	segments, err := statusMgr.ReadTableStatus(ctx)
	if err != nil {
		return err
	}
	updateStatusMgr := meta.NewUpdateStatusManager(c.fs, table)
	updateDetails, err := updateStatusMgr.ReadUpdateDetails(ctx)
	if err != nil {
		return err
	}
	updatedSegments := make(map[string]struct{}, len(updateDetails))
	for _, detail := range updateDetails {
		updatedSegments[detail.SegmentID] = struct{}{}
	}
	validUpdateStatusFile := statusMgr.UpdateStatusFileName(segments)

	pool, err := ants.NewPool(c.props.GCWorkers)
	if err != nil {
		return moerr.NewInternalError("cannot start gc worker pool: %v", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, segment := range segments {
		// only valid segments are scanned here; marked-for-delete and
		// compacted segments go away wholesale elsewhere
		if segment.Status != meta.StatusSuccess && segment.Status != meta.StatusLoadPartialSuccess {
			continue
		}
		segment := segment
		_, updated := updatedSegments[segment.ID]
		wg.Add(1)
		if perr := pool.Submit(func() {
			defer wg.Done()
			c.cleanSegment(ctx, table, segment, updated, updateStatusMgr, updateDetails, forceDelete)
		}); perr != nil {
			wg.Done()
			logutil.Errorf("cannot schedule gc of segment %s: %v", segment.ID, perr)
		}
	}
	wg.Wait()

	c.reconcileEpochFiles(ctx, table, validUpdateStatusFile, forceDelete)
	return nil
}

func (c *Cleaner) cleanSegment(
	ctx context.Context,
	table *meta.Table,
	segment *meta.Segment,
	hasUpdates bool,
	updateStatusMgr *meta.UpdateStatusManager,
	updateDetails []*meta.SegmentUpdateDetails,
	forceDelete bool,
) {
	// no update ever touched this segment: nothing to classify
	if segment.UpdateDeltaStartTimestamp != "" || hasUpdates {
		segmentPath := meta.SegmentPath(table.Path, segment.ID)
		allSegmentFiles, err := c.fs.ListFiles(ctx, segmentPath, nil)
		if err != nil {
			logutil.Errorf("cannot list segment %s of table %s: %v", segment.ID, table.FullName(), err)
			return
		}
		for _, block := range updateDetails {
			if block.SegmentID != segment.ID {
				continue
			}
			// aborted writes: never finalized by a commit, removed once
			// the query window has passed, force or not
			aborted := updateStatusMgr.DeleteDeltaInvalidFiles(block, false, allSegmentFiles, true)
			for _, name := range aborted {
				c.compareTimestampsAndDelete(ctx, segmentPath+meta.SeparatorChar+name, false, false)
			}

			if meta.IsBlockInvalid(block.Status) {
				// the block is compacted or marked for delete: its whole
				// delta history is removable
				complete := updateStatusMgr.DeleteDeltaInvalidFiles(block, true, allSegmentFiles, false)
				for _, name := range complete {
					c.compareTimestampsAndDelete(ctx, segmentPath+meta.SeparatorChar+name, forceDelete, false)
				}
			} else {
				// block still valid: only files superseded by a delta
				// compaction are removable
				invalid := updateStatusMgr.DeleteDeltaInvalidFiles(block, false, allSegmentFiles, false)
				for _, name := range invalid {
					c.compareTimestampsAndDelete(ctx, segmentPath+meta.SeparatorChar+name, forceDelete, false)
				}
			}
		}
	}
	c.cleanUpDataFilesAfterSmallFilesMergeForSI(ctx, table, segment)
}

// cleanUpDataFilesAfterSmallFilesMergeForSI removes, on secondary
// index tables, the data and index files left stale by an out-of-band
// small-file merge: anything stamped outside the segment's load
// window, and merged index files older than the load start.
func (c *Cleaner) cleanUpDataFilesAfterSmallFilesMergeForSI(ctx context.Context, table *meta.Table, segment *meta.Segment) {
	if !table.IsIndexTable {
		return
	}
	segmentPath := meta.SegmentPath(table.Path, segment.ID)
	files, err := c.fs.ListFiles(ctx, segmentPath, nil)
	if err != nil {
		logutil.Errorf("cannot list segment %s of table %s: %v", segment.ID, table.FullName(), err)
		return
	}
	for _, name := range files {
		ts, ok := meta.TimestampAsInt64(meta.TimestampFromFileName(name))
		if !ok {
			continue
		}
		deleteFile := false
		if strings.HasSuffix(name, meta.DataFileExt) || strings.HasSuffix(name, meta.IndexFileExt) {
			deleteFile = ts < segment.LoadStartTime || ts > segment.LoadEndTime
		} else if strings.HasSuffix(name, meta.MergeIndexExt) {
			deleteFile = ts < segment.LoadStartTime
		}
		if deleteFile {
			logutil.Infof("deleting the invalid file: %s", name)
			c.deleteInvalidFile(ctx, segmentPath+meta.SeparatorChar+name)
		}
	}
}

// reconcileEpochFiles deletes every update-status epoch other than the
// one the anchor names, once past the query window. When the anchor is
// unknown the valid epoch cannot be told apart and the sweep is
// skipped.
func (c *Cleaner) reconcileEpochFiles(ctx context.Context, table *meta.Table, validUpdateStatusFile string, forceDelete bool) {
	if validUpdateStatusFile == "" {
		logutil.Warnf("table %s has no known valid update-status epoch; skipping epoch cleanup", table.FullName())
		return
	}
	idx := strings.LastIndex(validUpdateStatusFile, meta.HyphenChar)
	if idx < 0 {
		logutil.Warnf("table %s has malformed update-status anchor %q; skipping epoch cleanup",
			table.FullName(), validUpdateStatusFile)
		return
	}
	validTimestamp := validUpdateStatusFile[idx+1:]

	metadataPath := meta.MetadataPath(table.Path)
	invalid, err := c.fs.ListFiles(ctx, metadataPath, func(name string) bool {
		// only invalid epochs are sent to deletion
		return strings.HasPrefix(name, meta.UpdateStatusPrefix) &&
			!strings.HasSuffix(name, validTimestamp)
	})
	if err != nil {
		logutil.Errorf("cannot list metadata of table %s: %v", table.FullName(), err)
		return
	}
	for _, name := range invalid {
		c.compareTimestampsAndDelete(ctx, metadataPath+meta.SeparatorChar+name, forceDelete, true)
	}
}

// compareTimestampsAndDelete applies the one decision rule of the
// retention manager to a candidate file: parse the embedded timestamp
// (epoch files carry it after the last hyphen, everything else per the
// data-file grammar) and delete once the query window has elapsed, or
// immediately under forceDelete. An unparseable timestamp falls back
// to the data-file grammar before anything is destroyed; files whose
// age cannot be established are kept.
func (c *Cleaner) compareTimestampsAndDelete(ctx context.Context, filePath string, forceDelete bool, isUpdateStatusFile bool) bool {
	name := filePath
	if idx := strings.LastIndex(filePath, meta.SeparatorChar); idx >= 0 {
		name = filePath[idx+1:]
	}

	var fileTimestamp int64
	var ok bool
	if isUpdateStatusFile {
		if idx := strings.LastIndex(name, meta.HyphenChar); idx >= 0 {
			fileTimestamp, ok = meta.TimestampAsInt64(name[idx+1:])
		}
	} else {
		fileTimestamp, ok = meta.TimestampAsInt64(meta.TimestampFromFileName(name))
	}

	if !ok {
		// a .write marker left by a failed status write carries its
		// timestamp in the data-file position instead
		if strings.HasSuffix(name, meta.WriteMarkerExt) {
			fallback, fbOK := meta.TimestampAsInt64(meta.TimestampFromFileName(name))
			if fbOK && c.IsMaxQueryTimeoutExceeded(fallback) {
				return c.deleteInvalidFile(ctx, filePath)
			}
		}
		return false
	}

	if c.IsMaxQueryTimeoutExceeded(fileTimestamp) || forceDelete {
		return c.deleteInvalidFile(ctx, filePath)
	}
	return false
}

func (c *Cleaner) deleteInvalidFile(ctx context.Context, filePath string) bool {
	logutil.Infof("deleting the invalid file: %s", filePath)
	if fileservice.DeleteSilent(ctx, c.fs, filePath) {
		metrics.GCDeletedFiles.Inc()
		return true
	}
	metrics.GCFailedDeletes.Inc()
	return false
}
