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

	"github.com/colstore/deltastore/pkg/common/moerr"
	"github.com/colstore/deltastore/pkg/config"
	"github.com/colstore/deltastore/pkg/fileservice"
	"github.com/colstore/deltastore/pkg/lockservice"
	"github.com/colstore/deltastore/pkg/logutil"
	"github.com/colstore/deltastore/pkg/meta"
)

// Manager runs the two status-file commit protocols of a table. The
// two protocols take distinct locks guarding disjoint files, with no
// ordering between them: the files may be observed mutually
// inconsistent, bridged only by the anchor pointer.
type Manager struct {
	fs    fileservice.FileService
	locks lockservice.LockService
	props *config.Properties
}

func NewManager(fs fileservice.FileService, locks lockservice.LockService, props *config.Properties) *Manager {
	return &Manager{
		fs:    fs,
		locks: locks,
		props: props.FillDefaults(),
	}
}

func (m *Manager) FileService() fileservice.FileService {
	return m.fs
}

func (m *Manager) Properties() *config.Properties {
	return m.props
}

// UpdateSegmentStatus commits new block delta records into the
// update-status file: lock, read snapshot, merge, prune records of
// segments no longer in the table, write the epoch file atomically,
// unlock. Returns true only when every step succeeded; on a lock
// failure nothing is written.
func (m *Manager) UpdateSegmentStatus(
	ctx context.Context,
	table *meta.Table,
	newDetails []*meta.SegmentUpdateDetails,
	epochID string,
	isCompaction bool,
) bool {
	resource := lockservice.Resource(table.Path, lockservice.UpdateStatusLock)
	locker := m.locks.GetLocker(resource)
	if !locker.TryLockWithRetries() {
		logutil.Errorf("table %s: %v", table.FullName(), moerr.NewLockFailed(resource))
		return false
	}
	defer func() {
		if locker.Unlock() {
			logutil.Infof("unlock the segment update lock successful for table %s", table.FullName())
		} else {
			logutil.Errorf("table %s: %v", table.FullName(), moerr.NewUnlockFailed(resource))
		}
	}()

	updateStatusMgr := meta.NewUpdateStatusManager(m.fs, table)
	oldList, err := updateStatusMgr.ReadUpdateDetails(ctx)
	if err != nil {
		logutil.Errorf("cannot read update status of table %s: %v", table.FullName(), err)
		return false
	}
	merged := make([]*meta.SegmentUpdateDetails, len(oldList))
	copy(merged, oldList)
	for _, newBlockEntry := range newDetails {
		merged = MergeSegmentUpdate(isCompaction, merged, newBlockEntry)
	}

	segments, err := meta.NewStatusManager(m.fs, table).ReadTableStatus(ctx)
	if err != nil {
		logutil.Errorf("cannot read table status of table %s: %v", table.FullName(), err)
		return false
	}
	validSegments := make(map[string]struct{}, len(segments))
	for _, segment := range segments {
		validSegments[segment.ID] = struct{}{}
	}
	// keep only segments present in the table status; compaction and
	// clean-files remove segments and their records must not pile up
	validDetails := make([]*meta.SegmentUpdateDetails, 0, len(merged))
	for _, detail := range merged {
		if _, ok := validSegments[detail.SegmentID]; ok {
			validDetails = append(validDetails, detail)
		}
	}

	if err = updateStatusMgr.WriteUpdateDetails(ctx, validDetails, epochID); err != nil {
		logutil.Errorf("cannot write update status of table %s: %v", table.FullName(), err)
		return false
	}
	return true
}

// UpdateTableStatus commits segment-list changes: delete markers,
// update-delta timestamps, segment-file stamps, and the anchor
// pointer. version suffixes the table-status file when non-empty.
func (m *Manager) UpdateTableStatus(
	ctx context.Context,
	table *meta.Table,
	updatedSegments map[string]struct{},
	timestamp string,
	stampDeltaTimestamp bool,
	stampAnchor bool,
	segmentsToDelete []string,
	segmentsNeedingFileStamp []string,
	version string,
) bool {
	resource := lockservice.Resource(table.Path, lockservice.TableStatusLock)
	locker := m.locks.GetLocker(resource)
	if !locker.TryLockWithRetries() {
		logutil.Errorf("table %s: %v", table.FullName(), moerr.NewLockFailed(resource))
		return false
	}
	defer func() {
		if locker.Unlock() {
			logutil.Infof("table %s unlocked successfully after table status update", table.FullName())
		} else {
			logutil.Errorf("table %s: %v", table.FullName(), moerr.NewUnlockFailed(resource))
		}
	}()
	logutil.Infof("acquired lock for table %s for table status update", table.FullName())

	statusMgr := meta.NewStatusManager(m.fs, table)
	segments, err := statusMgr.ReadTableStatus(ctx)
	if err != nil {
		logutil.Errorf("cannot read table status of table %s: %v", table.FullName(), err)
		return false
	}

	deleteSet := make(map[string]struct{}, len(segmentsToDelete))
	for _, id := range segmentsToDelete {
		deleteSet[id] = struct{}{}
	}
	fileStampSet := make(map[string]struct{}, len(segmentsNeedingFileStamp))
	for _, id := range segmentsNeedingFileStamp {
		fileStampSet[id] = struct{}{}
	}

	anchorSeen := false
	for _, segment := range segments {
		// the link between the two status files lives on the anchor
		// segment only
		if stampAnchor && segment.ID == meta.AnchorSegmentID {
			segment.UpdateStatusFileName = meta.UpdateStatusFileName(timestamp)
			anchorSeen = true
		}
		if _, ok := deleteSet[segment.ID]; ok {
			segment.Status = meta.StatusMarkedForDelete
			if ts, parsed := meta.TimestampAsInt64(timestamp); parsed {
				segment.ModificationOrDeletionTime = ts
			}
		}
		if _, ok := updatedSegments[segment.ID]; ok {
			// an empty timestamp means the call came from the delete
			// delta flow and the segment timestamps stay untouched
			if stampDeltaTimestamp {
				if segment.UpdateDeltaStartTimestamp == "" {
					segment.UpdateDeltaStartTimestamp = timestamp
				}
				segment.UpdateDeltaEndTimestamp = timestamp
			}
			if _, ok := fileStampSet[segment.ID]; ok {
				segment.SegmentFile = meta.SegmentFileName(segment.ID, timestamp)
			}
		}
	}
	if stampAnchor && !anchorSeen {
		logutil.Warnf("table %s has no anchor segment %q to carry the update-status link",
			table.FullName(), meta.AnchorSegmentID)
	}

	if err = statusMgr.WriteTableStatus(ctx, segments, version); err != nil {
		logutil.Errorf("cannot write table status of table %s: %v", table.FullName(), err)
		return false
	}
	return true
}
