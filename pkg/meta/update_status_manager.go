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
	"context"
	"encoding/json"
	"strings"

	"github.com/colstore/deltastore/pkg/common/moerr"
	"github.com/colstore/deltastore/pkg/fileservice"
)

// UpdateStatusManager reads and writes update-status epoch files: the
// per-block delete-delta records of a table. The current epoch is the
// one the anchor pointer names.
type UpdateStatusManager struct {
	fs    fileservice.FileService
	table *Table

	loaded  bool
	details []*SegmentUpdateDetails
}

func NewUpdateStatusManager(fs fileservice.FileService, table *Table) *UpdateStatusManager {
	return &UpdateStatusManager{fs: fs, table: table}
}

// ReadUpdateDetails returns the block delta records of the current
// epoch, empty when the table was never updated. The snapshot is
// cached for the manager's lifetime.
func (m *UpdateStatusManager) ReadUpdateDetails(ctx context.Context) ([]*SegmentUpdateDetails, error) {
	if m.loaded {
		return m.details, nil
	}
	statusMgr := NewStatusManager(m.fs, m.table)
	segments, err := statusMgr.ReadTableStatus(ctx)
	if err != nil {
		return nil, err
	}
	epochFile := statusMgr.UpdateStatusFileName(segments)
	if epochFile == "" {
		m.loaded = true
		return nil, nil
	}
	details, err := m.ReadDetailsFromFile(ctx, epochFile)
	if err != nil {
		return nil, err
	}
	m.details = details
	m.loaded = true
	return details, nil
}

// ReadDetailsFromFile reads one named epoch file, empty when missing.
func (m *UpdateStatusManager) ReadDetailsFromFile(ctx context.Context, fileName string) ([]*SegmentUpdateDetails, error) {
	path := UpdateStatusFilePath(m.table.Path, fileName)
	data, err := m.fs.Read(ctx, path)
	if err != nil {
		if moerr.IsMoErrCode(err, moerr.ErrFileNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var details []*SegmentUpdateDetails
	if err = json.Unmarshal(data, &details); err != nil {
		return nil, moerr.NewInvalidState("corrupted update status file %s: %v", path, err)
	}
	return details, nil
}

// WriteUpdateDetails publishes the record list as the epoch named by
// epochID. Callers must hold the update-status lock.
func (m *UpdateStatusManager) WriteUpdateDetails(ctx context.Context, details []*SegmentUpdateDetails, epochID string) error {
	data, err := json.Marshal(details)
	if err != nil {
		return moerr.NewInternalError("cannot encode update status: %v", err)
	}
	path := UpdateStatusFilePath(m.table.Path, UpdateStatusFileName(epochID))
	if err = m.fs.Write(ctx, path, data); err != nil {
		return err
	}
	m.details = details
	m.loaded = true
	return nil
}

// DetailsForBlock finds the record keyed by "<segmentId>/<blockName>",
// nil when the block has no recorded deletes.
func (m *UpdateStatusManager) DetailsForBlock(ctx context.Context, key string) (*SegmentUpdateDetails, error) {
	details, err := m.ReadUpdateDetails(ctx)
	if err != nil {
		return nil, err
	}
	for _, detail := range details {
		if detail.Key() == key {
			return detail, nil
		}
	}
	return nil, nil
}

// DeleteDeltaInvalidFiles classifies the delete-delta files of one
// block against a single directory listing. With needCompleteList the
// block's whole delta history is returned; with abortedOnly, only
// files newer than the committed end (written but never finalized);
// otherwise only files older than the committed start, i.e.
// superseded by a delta compaction. The two timestamp-gated
// categories are disjoint so the retention rules for aborted and
// superseded files never apply to the same file. Unparseable
// timestamps are excluded rather than guessed at.
func (m *UpdateStatusManager) DeleteDeltaInvalidFiles(
	block *SegmentUpdateDetails,
	needCompleteList bool,
	allSegmentFiles []string,
	abortedOnly bool,
) []string {
	deltaStart, startOK := block.DeltaStartAsInt64()
	deltaEnd, endOK := block.DeltaEndAsInt64()
	var files []string
	for _, fileName := range allSegmentFiles {
		if !strings.HasSuffix(fileName, DeleteDeltaExt) {
			continue
		}
		if BlockNameFromDeleteDeltaFile(fileName) != block.BlockName {
			continue
		}
		if needCompleteList {
			files = append(files, fileName)
			continue
		}
		ts, ok := TimestampAsInt64(TimestampFromDeleteDeltaFile(fileName))
		if !ok {
			continue
		}
		if abortedOnly {
			if endOK && ts > deltaEnd {
				files = append(files, fileName)
			}
			continue
		}
		if startOK && ts < deltaStart {
			files = append(files, fileName)
		}
	}
	return files
}
