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

	"github.com/colstore/deltastore/pkg/common/moerr"
	"github.com/colstore/deltastore/pkg/fileservice"
	"github.com/colstore/deltastore/pkg/logutil"
)

// StatusManager reads and writes the table-status file: the table's
// segment list. Writers must hold the table-status lock; readers take
// no lock and tolerate the transient window where the update-status
// and table-status files disagree.
type StatusManager struct {
	fs    fileservice.FileService
	table *Table
}

func NewStatusManager(fs fileservice.FileService, table *Table) *StatusManager {
	return &StatusManager{fs: fs, table: table}
}

// ReadTableStatus returns the segment list, empty when the table has
// no status file yet.
func (m *StatusManager) ReadTableStatus(ctx context.Context) ([]*Segment, error) {
	return m.ReadTableStatusVersion(ctx, "")
}

func (m *StatusManager) ReadTableStatusVersion(ctx context.Context, version string) ([]*Segment, error) {
	path := TableStatusFilePath(m.table.Path, version)
	data, err := m.fs.Read(ctx, path)
	if err != nil {
		if moerr.IsMoErrCode(err, moerr.ErrFileNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var segments []*Segment
	if err = json.Unmarshal(data, &segments); err != nil {
		return nil, moerr.NewInvalidState("corrupted table status file %s: %v", path, err)
	}
	return segments, nil
}

// WriteTableStatus publishes the full segment list atomically.
func (m *StatusManager) WriteTableStatus(ctx context.Context, segments []*Segment, version string) error {
	data, err := json.Marshal(segments)
	if err != nil {
		return moerr.NewInternalError("cannot encode table status: %v", err)
	}
	return m.fs.Write(ctx, TableStatusFilePath(m.table.Path, version), data)
}

// UpdateStatusFileName reads the anchor pointer: the name of the valid
// update-status epoch, stored on the anchor segment only. Empty when
// the anchor segment is gone, which leaves the link undefined; callers
// treat the valid epoch as unknown.
func (m *StatusManager) UpdateStatusFileName(segments []*Segment) string {
	for _, segment := range segments {
		if segment.ID == AnchorSegmentID {
			return segment.UpdateStatusFileName
		}
	}
	if len(segments) > 0 {
		logutil.Warnf("table %s has no anchor segment %q; update-status link is undefined",
			m.table.FullName(), AnchorSegmentID)
	}
	return ""
}
