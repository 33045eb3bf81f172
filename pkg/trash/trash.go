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

// Package trash implements the copy-before-delete safety net. Data
// about to be physically removed is first copied into a per-table
// trash folder, bucketed by the timestamp of the cleanup operation,
// and expired later by retention.
package trash

import (
	"context"
	"strings"

	"github.com/colstore/deltastore/pkg/common/moerr"
	"github.com/colstore/deltastore/pkg/config"
	"github.com/colstore/deltastore/pkg/fileservice"
	"github.com/colstore/deltastore/pkg/logutil"
	"github.com/colstore/deltastore/pkg/meta"
	"github.com/colstore/deltastore/pkg/metrics"
)

// Archiver copies soon-to-be-deleted data into the trash folder and
// expires old trash buckets.
type Archiver struct {
	fs    fileservice.FileService
	props *config.Properties

	// nowFn returns the current time in milliseconds; replaceable in
	// tests to pin the retention window.
	nowFn func() int64
}

func NewArchiver(fs fileservice.FileService, props *config.Properties) *Archiver {
	return &Archiver{
		fs:    fs,
		props: props.FillDefaults(),
		nowFn: meta.ReadCurrentTime,
	}
}

func (a *Archiver) isTrashRetentionTimeoutExceeded(bucketTimestamp int64) bool {
	return a.nowFn()-bucketTimestamp > a.props.TrashRetention.Milliseconds()
}

// CopyFileToTrash copies one file into trashFolderWithTimestamp. A
// file already present in the destination is left as is, so a cleanup
// retried after a crash does not fail or duplicate work. On a copy
// failure the whole destination folder is removed before the error
// propagates: a half-filled trash bucket must never look complete.
func (a *Archiver) CopyFileToTrash(ctx context.Context, filePath, trashFolderWithTimestamp string) error {
	name := filePath
	if idx := strings.LastIndex(filePath, meta.SeparatorChar); idx >= 0 {
		name = filePath[idx+1:]
	}
	destPath := trashFolderWithTimestamp + meta.SeparatorChar + name

	exists, err := a.fs.Exists(ctx, destPath)
	if err != nil {
		return err
	}
	if exists {
		logutil.Infof("file %s already exists in the trash folder, skipping copy", destPath)
		return nil
	}
	if err = a.fs.MkdirAll(ctx, trashFolderWithTimestamp); err != nil {
		return a.rollback(ctx, trashFolderWithTimestamp, err)
	}
	if err = a.fs.Copy(ctx, filePath, destPath); err != nil {
		return a.rollback(ctx, trashFolderWithTimestamp, err)
	}
	metrics.TrashArchivedFiles.Inc()
	return nil
}

// CopySegmentToTrash copies a whole segment directory into
// trashFolderWithTimestamp, preserving its layout one level deep.
func (a *Archiver) CopySegmentToTrash(ctx context.Context, segmentPath, trashFolderWithTimestamp string) error {
	entries, err := a.fs.List(ctx, segmentPath)
	if err != nil {
		return err
	}
	if err = a.fs.MkdirAll(ctx, trashFolderWithTimestamp); err != nil {
		return a.rollback(ctx, trashFolderWithTimestamp, err)
	}
	for _, entry := range entries {
		srcPath := segmentPath + meta.SeparatorChar + entry.Name
		if entry.IsDir {
			if err = a.CopySegmentToTrash(ctx, srcPath,
				trashFolderWithTimestamp+meta.SeparatorChar+entry.Name); err != nil {
				return a.rollback(ctx, trashFolderWithTimestamp, err)
			}
			continue
		}
		if err = a.CopyFileToTrash(ctx, srcPath, trashFolderWithTimestamp); err != nil {
			return a.rollback(ctx, trashFolderWithTimestamp, err)
		}
	}
	logutil.Infof("segment %s copied to the trash folder %s", segmentPath, trashFolderWithTimestamp)
	return nil
}

// CopyFilesToTrash copies a list of files belonging to segmentNumber
// into the table's trash, bucketed by timestamp. Files already gone
// from the source are skipped.
func (a *Archiver) CopyFilesToTrash(
	ctx context.Context,
	tablePath string,
	filesToCopy []string,
	timestamp int64,
	segmentNumber string,
) error {
	trashFolderWithTimestamp := meta.CompleteTrashFolderPath(tablePath, timestamp, segmentNumber)
	for _, filePath := range filesToCopy {
		exists, err := a.fs.Exists(ctx, filePath)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		if err = a.CopyFileToTrash(ctx, filePath, trashFolderWithTimestamp); err != nil {
			return err
		}
	}
	return nil
}

// DeleteExpiredDataFromTrash removes every trash bucket older than the
// retention window. Buckets whose name does not parse as a timestamp
// are kept and reported.
func (a *Archiver) DeleteExpiredDataFromTrash(ctx context.Context, tablePath string) {
	trashPath := meta.TrashFolderPath(tablePath)
	exists, err := a.fs.Exists(ctx, trashPath)
	if err != nil || !exists {
		return
	}
	entries, err := a.fs.List(ctx, trashPath)
	if err != nil {
		logutil.Errorf("cannot list the trash folder %s: %v", trashPath, err)
		return
	}
	for _, entry := range entries {
		if !entry.IsDir {
			continue
		}
		bucketTimestamp, ok := meta.TimestampAsInt64(entry.Name)
		if !ok {
			logutil.Errorf("unexpected entry %s in the trash folder %s", entry.Name, trashPath)
			continue
		}
		if !a.isTrashRetentionTimeoutExceeded(bucketTimestamp) {
			continue
		}
		bucketPath := trashPath + meta.SeparatorChar + entry.Name
		if fileservice.DeleteSilent(ctx, a.fs, bucketPath) {
			metrics.TrashExpiredBuckets.Inc()
			logutil.Infof("deleted expired trash bucket %s", bucketPath)
		}
	}
}

// EmptyTrash removes the whole trash folder of a table regardless of
// retention.
func (a *Archiver) EmptyTrash(ctx context.Context, tablePath string) {
	trashPath := meta.TrashFolderPath(tablePath)
	exists, err := a.fs.Exists(ctx, trashPath)
	if err != nil || !exists {
		return
	}
	if !fileservice.DeleteSilent(ctx, a.fs, trashPath) {
		logutil.Errorf("cannot empty the trash folder %s", trashPath)
	}
}

// rollback removes the half-filled bucket and reports the upload as
// partial, keeping the original failure in the log.
func (a *Archiver) rollback(ctx context.Context, trashFolderWithTimestamp string, cause error) error {
	logutil.Errorf("error while copying to the trash folder %s, removing it: %v",
		trashFolderWithTimestamp, cause)
	fileservice.DeleteSilent(ctx, a.fs, trashFolderWithTimestamp)
	if moerr.IsMoErrCode(cause, moerr.ErrPartialUpload) {
		return cause
	}
	return moerr.NewPartialUpload(trashFolderWithTimestamp)
}
