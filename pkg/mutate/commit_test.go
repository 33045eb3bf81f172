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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colstore/deltastore/pkg/config"
	"github.com/colstore/deltastore/pkg/fileservice"
	"github.com/colstore/deltastore/pkg/lockservice"
	"github.com/colstore/deltastore/pkg/meta"
)

func newTestManager() (*Manager, *fileservice.MemFS, lockservice.LockService) {
	fs := fileservice.NewMemFS()
	locks := lockservice.NewLocalLockService(lockservice.Config{
		RetryCount:    2,
		RetryInterval: time.Millisecond,
	})
	props := (&config.Properties{}).FillDefaults()
	return NewManager(fs, locks, props), fs, locks
}

func newTestTable() *meta.Table {
	return &meta.Table{
		Database:   "default",
		Name:       "t1",
		Path:       "/store/default/t1",
		IsStandard: true,
	}
}

func writeSegments(t *testing.T, fs fileservice.FileService, table *meta.Table, segments []*meta.Segment) {
	t.Helper()
	require.NoError(t, meta.NewStatusManager(fs, table).WriteTableStatus(context.Background(), segments, ""))
}

func TestUpdateSegmentStatusPrunesRemovedSegments(t *testing.T) {
	mgr, fs, _ := newTestManager()
	table := newTestTable()
	ctx := context.Background()

	// segment 1 is no longer part of the table
	writeSegments(t, fs, table, []*meta.Segment{
		{ID: "0", Status: meta.StatusSuccess, UpdateStatusFileName: meta.UpdateStatusFileName("900")},
	})
	usm := meta.NewUpdateStatusManager(fs, table)
	require.NoError(t, usm.WriteUpdateDetails(ctx, []*meta.SegmentUpdateDetails{
		newDetail("0", "part-0-0_0", "800", "800", "3"),
		newDetail("1", "part-0-1_0", "800", "800", "5"),
	}, "900"))

	ok := mgr.UpdateSegmentStatus(ctx, table, []*meta.SegmentUpdateDetails{
		newDetail("0", "part-0-0_0", "1000", "1000", "6"),
	}, "1000", false)
	require.True(t, ok)

	written, err := meta.NewUpdateStatusManager(fs, table).
		ReadDetailsFromFile(ctx, meta.UpdateStatusFileName("1000"))
	require.NoError(t, err)
	require.Len(t, written, 1)
	assert.Equal(t, "0", written[0].SegmentID)
	assert.Equal(t, "800", written[0].DeleteDeltaStartTimestamp)
	assert.Equal(t, "1000", written[0].DeleteDeltaEndTimestamp)
	assert.Equal(t, "6", written[0].DeletedRowsInBlock)
}

func TestUpdateSegmentStatusLockFailureWritesNothing(t *testing.T) {
	mgr, fs, locks := newTestManager()
	table := newTestTable()
	ctx := context.Background()

	writeSegments(t, fs, table, []*meta.Segment{
		{ID: "0", Status: meta.StatusSuccess},
	})

	// hold the update lock so the commit cannot take it
	blocker := locks.GetLocker(lockservice.Resource(table.Path, lockservice.UpdateStatusLock))
	require.True(t, blocker.TryLockWithRetries())
	defer blocker.Unlock()

	ok := mgr.UpdateSegmentStatus(ctx, table, []*meta.SegmentUpdateDetails{
		newDetail("0", "part-0-0_0", "1000", "1000", "6"),
	}, "1000", false)
	assert.False(t, ok)

	exists, err := fs.Exists(ctx, meta.UpdateStatusFilePath(table.Path, meta.UpdateStatusFileName("1000")))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUpdateTableStatusStampsAnchorAndTimestamps(t *testing.T) {
	mgr, fs, _ := newTestManager()
	table := newTestTable()
	ctx := context.Background()

	writeSegments(t, fs, table, []*meta.Segment{
		{ID: "0", Status: meta.StatusSuccess},
		{ID: "1", Status: meta.StatusSuccess, UpdateDeltaStartTimestamp: "500", UpdateDeltaEndTimestamp: "500"},
	})

	updated := map[string]struct{}{"0": {}, "1": {}}
	ok := mgr.UpdateTableStatus(ctx, table, updated, "1000", true, true, nil, nil, "")
	require.True(t, ok)

	segments, err := meta.NewStatusManager(fs, table).ReadTableStatus(ctx)
	require.NoError(t, err)
	require.Len(t, segments, 2)

	// the anchor carries the pointer to the valid epoch
	assert.Equal(t, meta.UpdateStatusFileName("1000"), segments[0].UpdateStatusFileName)
	assert.Empty(t, segments[1].UpdateStatusFileName)

	// start is written once, end follows every commit
	assert.Equal(t, "1000", segments[0].UpdateDeltaStartTimestamp)
	assert.Equal(t, "1000", segments[0].UpdateDeltaEndTimestamp)
	assert.Equal(t, "500", segments[1].UpdateDeltaStartTimestamp)
	assert.Equal(t, "1000", segments[1].UpdateDeltaEndTimestamp)
}

func TestUpdateTableStatusMarksSegmentsForDelete(t *testing.T) {
	mgr, fs, _ := newTestManager()
	table := newTestTable()
	ctx := context.Background()

	writeSegments(t, fs, table, []*meta.Segment{
		{ID: "0", Status: meta.StatusSuccess},
		{ID: "1", Status: meta.StatusSuccess},
	})

	ok := mgr.UpdateTableStatus(ctx, table, nil, "2000", false, false, []string{"1"}, nil, "")
	require.True(t, ok)

	segments, err := meta.NewStatusManager(fs, table).ReadTableStatus(ctx)
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, meta.StatusSuccess, segments[0].Status)
	assert.Equal(t, meta.StatusMarkedForDelete, segments[1].Status)
	assert.Equal(t, int64(2000), segments[1].ModificationOrDeletionTime)
}

func TestUpdateTableStatusStampsSegmentFile(t *testing.T) {
	mgr, fs, _ := newTestManager()
	table := newTestTable()
	ctx := context.Background()

	writeSegments(t, fs, table, []*meta.Segment{
		{ID: "0", Status: meta.StatusSuccess},
		{ID: "2", Status: meta.StatusSuccess},
	})

	updated := map[string]struct{}{"2": {}}
	ok := mgr.UpdateTableStatus(ctx, table, updated, "3000", false, false, nil, []string{"2"}, "")
	require.True(t, ok)

	segments, err := meta.NewStatusManager(fs, table).ReadTableStatus(ctx)
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Empty(t, segments[0].SegmentFile)
	assert.Equal(t, meta.SegmentFileName("2", "3000"), segments[1].SegmentFile)
}

func TestUpdateTableStatusVersionedFile(t *testing.T) {
	mgr, fs, _ := newTestManager()
	table := newTestTable()
	ctx := context.Background()

	writeSegments(t, fs, table, []*meta.Segment{{ID: "0", Status: meta.StatusSuccess}})

	ok := mgr.UpdateTableStatus(ctx, table, nil, "4000", false, true, nil, nil, "v2")
	require.True(t, ok)

	// the current snapshot is read, the versioned file is written
	segments, err := meta.NewStatusManager(fs, table).ReadTableStatus(ctx)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Empty(t, segments[0].UpdateStatusFileName)

	segments, err = meta.NewStatusManager(fs, table).ReadTableStatusVersion(ctx, "v2")
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, meta.UpdateStatusFileName("4000"), segments[0].UpdateStatusFileName)
}
