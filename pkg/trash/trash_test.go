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

package trash

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colstore/deltastore/pkg/common/moerr"
	"github.com/colstore/deltastore/pkg/config"
	"github.com/colstore/deltastore/pkg/fileservice"
	"github.com/colstore/deltastore/pkg/meta"
)

const testNow = int64(10_000_000_000)

func newTestArchiver(fs fileservice.FileService) *Archiver {
	archiver := NewArchiver(fs, &config.Properties{})
	archiver.nowFn = func() int64 { return testNow }
	return archiver
}

// failingFS fails Copy calls whose source path contains failOn.
type failingFS struct {
	fileservice.FileService
	failOn string
}

func (f *failingFS) Copy(ctx context.Context, srcPath, dstPath string) error {
	if strings.Contains(srcPath, f.failOn) {
		return moerr.NewIOFailed(srcPath, moerr.NewInternalError("disk full"))
	}
	return f.FileService.Copy(ctx, srcPath, dstPath)
}

func TestCopyFileToTrash(t *testing.T) {
	fs := fileservice.NewMemFS()
	ctx := context.Background()
	require.NoError(t, fs.Write(ctx, "/store/t1/Fact/Part0/Segment_2/block-1.carbondata", []byte("data")))

	archiver := newTestArchiver(fs)
	trashFolder := meta.CompleteTrashFolderPath("/store/t1", testNow, "2")
	require.NoError(t, archiver.CopyFileToTrash(ctx,
		"/store/t1/Fact/Part0/Segment_2/block-1.carbondata", trashFolder))

	data, err := fs.Read(ctx, trashFolder+"/block-1.carbondata")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), data)
}

func TestCopyFileToTrashIsIdempotent(t *testing.T) {
	fs := fileservice.NewMemFS()
	ctx := context.Background()
	require.NoError(t, fs.Write(ctx, "/store/t1/Fact/Part0/Segment_2/block-1.carbondata", []byte("new")))

	archiver := newTestArchiver(fs)
	trashFolder := meta.CompleteTrashFolderPath("/store/t1", testNow, "2")

	// a previous, interrupted cleanup already archived this file
	require.NoError(t, fs.Write(ctx, trashFolder+"/block-1.carbondata", []byte("old")))
	require.NoError(t, archiver.CopyFileToTrash(ctx,
		"/store/t1/Fact/Part0/Segment_2/block-1.carbondata", trashFolder))

	// the archived copy is not overwritten
	data, err := fs.Read(ctx, trashFolder+"/block-1.carbondata")
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), data)
}

func TestCopySegmentToTrashRollsBackOnFailure(t *testing.T) {
	memFS := fileservice.NewMemFS()
	ctx := context.Background()
	segmentDir := "/store/t1/Fact/Part0/Segment_2"
	require.NoError(t, memFS.Write(ctx, segmentDir+"/block-1.carbondata", []byte("one")))
	require.NoError(t, memFS.Write(ctx, segmentDir+"/block-2.carbondata", []byte("two")))

	fs := &failingFS{FileService: memFS, failOn: "block-2"}
	archiver := newTestArchiver(fs)
	trashFolder := meta.CompleteTrashFolderPath("/store/t1", testNow, "2")

	err := archiver.CopySegmentToTrash(ctx, segmentDir, trashFolder)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrPartialUpload))
	assert.Contains(t, err.Error(), trashFolder)

	// a half-filled bucket must not look complete
	exists, eerr := memFS.Exists(ctx, trashFolder)
	require.NoError(t, eerr)
	assert.False(t, exists)
}

func TestCopyFilesToTrashSkipsMissingSources(t *testing.T) {
	fs := fileservice.NewMemFS()
	ctx := context.Background()
	segmentDir := "/store/t1/Fact/Part0/Segment_2"
	require.NoError(t, fs.Write(ctx, segmentDir+"/block-1.carbondata", []byte("one")))

	archiver := newTestArchiver(fs)
	require.NoError(t, archiver.CopyFilesToTrash(ctx, "/store/t1", []string{
		segmentDir + "/block-1.carbondata",
		segmentDir + "/gone.carbondata",
	}, testNow, "2"))

	trashFolder := meta.CompleteTrashFolderPath("/store/t1", testNow, "2")
	names, err := fs.ListFiles(ctx, trashFolder, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"block-1.carbondata"}, names)
}

func TestDeleteExpiredDataFromTrash(t *testing.T) {
	fs := fileservice.NewMemFS()
	ctx := context.Background()

	retention := config.DefaultTrashRetention.Milliseconds()
	expiredBucket := strconv.FormatInt(testNow-retention-1, 10)
	freshBucket := strconv.FormatInt(testNow-retention, 10)

	trashPath := meta.TrashFolderPath("/store/t1")
	require.NoError(t, fs.Write(ctx, trashPath+"/"+expiredBucket+"/Segment_2/block.carbondata", []byte("x")))
	require.NoError(t, fs.Write(ctx, trashPath+"/"+freshBucket+"/Segment_3/block.carbondata", []byte("y")))
	// not a timestamp bucket; left alone
	require.NoError(t, fs.Write(ctx, trashPath+"/strange/block.carbondata", []byte("z")))

	archiver := newTestArchiver(fs)
	archiver.DeleteExpiredDataFromTrash(ctx, "/store/t1")

	entries, err := fs.List(ctx, trashPath)
	require.NoError(t, err)
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name)
	}
	assert.ElementsMatch(t, []string{freshBucket, "strange"}, names)
}

func TestDeleteExpiredDataFromTrashNoTrashFolder(t *testing.T) {
	archiver := newTestArchiver(fileservice.NewMemFS())
	// no trash folder at all is not an error
	archiver.DeleteExpiredDataFromTrash(context.Background(), "/store/t1")
}

func TestEmptyTrash(t *testing.T) {
	fs := fileservice.NewMemFS()
	ctx := context.Background()

	trashPath := meta.TrashFolderPath("/store/t1")
	fresh := strconv.FormatInt(testNow, 10)
	require.NoError(t, fs.Write(ctx, trashPath+"/"+fresh+"/Segment_2/block.carbondata", []byte("x")))

	archiver := newTestArchiver(fs)
	archiver.EmptyTrash(ctx, "/store/t1")

	// even fresh buckets go; emptying is unconditional
	exists, err := fs.Exists(ctx, trashPath)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIsTrashRetentionTimeoutExceeded(t *testing.T) {
	archiver := newTestArchiver(fileservice.NewMemFS())
	retention := config.DefaultTrashRetention.Milliseconds()
	assert.False(t, archiver.isTrashRetentionTimeoutExceeded(testNow-retention))
	assert.True(t, archiver.isTrashRetentionTimeoutExceeded(testNow-retention-1))
}
