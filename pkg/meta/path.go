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
	"strconv"
	"strings"
)

// Filename grammar of the table tree. The delete-delta and
// update-status conventions are bit-exact contracts shared with the
// readers.
const (
	SeparatorChar = "/"
	HyphenChar    = "-"

	DeleteDeltaExt = ".deletedelta"
	DataFileExt    = ".carbondata"
	IndexFileExt   = ".carbonindex"
	MergeIndexExt  = ".carbonindexmerge"
	SegmentFileExt = ".segment"

	// WriteMarkerExt marks a status file that never finished writing.
	WriteMarkerExt = ".write"

	TableStatusFileName = "tablestatus"
	UpdateStatusPrefix  = "tableupdatestatus"

	MetadataDirName = "Metadata"
	FactDirName     = "Fact"
	PartPrefix      = "Part"
	SegmentPrefix   = "Segment_"
	BatchPrefix     = "_batchno"
	TrashDirName    = "trash"
)

func FactDir(tablePath string) string {
	return tablePath + SeparatorChar + FactDirName
}

func AddPartPrefix(part string) string {
	return PartPrefix + part
}

func AddSegmentPrefix(segmentID string) string {
	return SegmentPrefix + segmentID
}

// SegmentPath is the standard-layout segment directory.
func SegmentPath(tablePath, segmentID string) string {
	return FactDir(tablePath) + SeparatorChar + AddPartPrefix("0") +
		SeparatorChar + AddSegmentPrefix(segmentID)
}

// SegmentIDFromDirName extracts "1" from "Segment_1".
func SegmentIDFromDirName(dirName string) string {
	parts := strings.SplitN(dirName, "_", 2)
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}

func MetadataPath(tablePath string) string {
	return tablePath + SeparatorChar + MetadataDirName
}

// TableStatusFilePath returns the segment-list file, suffixed with a
// version when one is supplied.
func TableStatusFilePath(tablePath, version string) string {
	path := MetadataPath(tablePath) + SeparatorChar + TableStatusFileName
	if version != "" {
		path += "_" + version
	}
	return path
}

// UpdateStatusFileName names one update-status epoch.
func UpdateStatusFileName(timestamp string) string {
	return UpdateStatusPrefix + HyphenChar + timestamp
}

func UpdateStatusFilePath(tablePath, fileName string) string {
	return MetadataPath(tablePath) + SeparatorChar + fileName
}

// DeleteDeltaFilePath composes <blockPath>/<blockName>-<ts>.deletedelta.
func DeleteDeltaFilePath(blockPath, blockName, timestamp string) string {
	return blockPath + SeparatorChar + blockName + HyphenChar + timestamp + DeleteDeltaExt
}

// SegmentFileName derives the segment-file name stamped by the
// table-status protocol.
func SegmentFileName(segmentID, timestamp string) string {
	return segmentID + "_" + timestamp + SegmentFileExt
}

func TrashFolderPath(tablePath string) string {
	return tablePath + SeparatorChar + TrashDirName
}

// CompleteTrashFolderPath is the timestamp-bucketed, per-segment trash
// destination: <tablePath>/trash/<ts>/Segment_<n>.
func CompleteTrashFolderPath(tablePath string, timestamp int64, segmentNumber string) string {
	return TrashFolderPath(tablePath) + SeparatorChar + strconv.FormatInt(timestamp, 10) +
		SeparatorChar + AddSegmentPrefix(segmentNumber)
}

// BlockName strips the timestamp suffix from a complete block name.
func BlockName(completeBlockName string) string {
	idx := strings.LastIndex(completeBlockName, HyphenChar)
	if idx < 0 {
		return completeBlockName
	}
	return completeBlockName[:idx]
}

// SegmentBlockNameKey builds the block key used by the row-count maps
// from a physical data file name: the part prefix and compressor
// suffix are dropped and the batch marker collapses to an underscore.
func SegmentBlockNameKey(segmentID, blockName string, isPartitionTable bool) string {
	key := blockName
	if idx := strings.Index(key, HyphenChar); idx >= 0 {
		key = key[idx+1:]
	}
	if idx := strings.LastIndex(key, DataFileExt); idx >= 0 {
		key = key[:idx]
	}
	key = strings.ReplaceAll(key, BatchPrefix, "_")
	// drop the compressor name, if any
	if idx := strings.LastIndex(key, "."); idx >= 0 {
		key = key[:idx]
	}
	if isPartitionTable {
		return key
	}
	return segmentID + SeparatorChar + key
}
