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
	"strings"

	"github.com/colstore/deltastore/pkg/common/moerr"
	"github.com/colstore/deltastore/pkg/meta"
)

// TupleField indexes the slash-delimited positional fields of a row
// address. The layout variant (standard or partitioned/external) is
// selected by table configuration, never sniffed from the string.
type TupleField int

const (
	FieldSegmentID  TupleField = 0
	FieldPartID     TupleField = 1
	FieldBlockID    TupleField = 2
	FieldBlockletID TupleField = 3
	FieldOffset     TupleField = 4

	// External segments carry the full external path, shifting the ids.
	FieldExternalSegmentID TupleField = 1
	FieldExternalBlockID   TupleField = 2

	// Partitioned tables prefix the address with path-derived fields.
	FieldPartitionPartID    TupleField = 0
	FieldPartitionSegmentID TupleField = 1
)

// externalPathMarker flags an external-segment address.
const externalPathMarker = "#/"

// standardFieldCount is the expected field count of a standard-layout
// row address: segment/part/block/blocklet/offset.
const standardFieldCount = 5

// TupleAddress is the parsed view of a row-address string.
type TupleAddress struct {
	SegmentID  string
	PartID     string
	BlockID    string
	BlockletID string
	Offset     string

	PartitionPart    string
	PartitionSegment string

	External bool
}

// RequiredFieldFromTID returns one positional field of a row address.
func RequiredFieldFromTID(tid string, field TupleField) (string, error) {
	fields := strings.Split(tid, meta.SeparatorChar)
	if int(field) >= len(fields) {
		return "", moerr.NewMalformedAddress(tid)
	}
	return fields[int(field)], nil
}

// ParseTupleAddress parses a row address for the layout the table is
// configured with.
func ParseTupleAddress(tid string, isPartitionTable bool) (TupleAddress, error) {
	fields := strings.Split(tid, meta.SeparatorChar)
	if len(fields) < standardFieldCount {
		return TupleAddress{}, moerr.NewMalformedAddress(tid)
	}
	addr := TupleAddress{
		BlockletID: fields[FieldBlockletID],
		Offset:     fields[FieldOffset],
	}
	if isPartitionTable {
		addr.PartitionPart = fields[FieldPartitionPartID]
		addr.PartitionSegment = fields[FieldPartitionSegmentID]
		addr.BlockID = fields[FieldBlockID]
		return addr, nil
	}
	if strings.Contains(tid, externalPathMarker) {
		addr.External = true
		addr.SegmentID = fields[FieldExternalSegmentID]
		addr.BlockID = fields[FieldExternalBlockID]
		return addr, nil
	}
	addr.SegmentID = fields[FieldSegmentID]
	addr.PartID = fields[FieldPartID]
	addr.BlockID = fields[FieldBlockID]
	return addr, nil
}

// SegmentWithBlockKey maps a row address to the (segment, block) key
// used by the update-status file.
func SegmentWithBlockKey(tid string, isPartitionTable bool) (string, error) {
	if isPartitionTable {
		return RequiredFieldFromTID(tid, FieldPartitionSegmentID)
	}
	// external segments embed the complete external path with # markers,
	// which shifts the segment id to the second field
	if strings.Contains(tid, externalPathMarker) {
		segment, err := RequiredFieldFromTID(tid, FieldExternalSegmentID)
		if err != nil {
			return "", err
		}
		block, err := RequiredFieldFromTID(tid, FieldExternalBlockID)
		if err != nil {
			return "", err
		}
		return segment + meta.SeparatorChar + block, nil
	}
	segment, err := RequiredFieldFromTID(tid, FieldSegmentID)
	if err != nil {
		return "", err
	}
	block, err := RequiredFieldFromTID(tid, FieldBlockID)
	if err != nil {
		return "", err
	}
	return segment + meta.SeparatorChar + block, nil
}

// TableBlockPath resolves the directory holding the addressed block.
func TableBlockPath(tid, tablePath string, isStandardTable, isPartitionTable bool) (string, error) {
	if !isStandardTable {
		if !isPartitionTable {
			return tablePath, nil
		}
		partField, err := RequiredFieldFromTID(tid, FieldPartitionPartID)
		if err != nil {
			return "", err
		}
		return tablePath + meta.SeparatorChar +
			strings.ReplaceAll(partField, "#", meta.SeparatorChar), nil
	}
	segmentID, err := RequiredFieldFromTID(tid, FieldSegmentID)
	if err != nil {
		return "", err
	}
	return meta.SegmentPath(tablePath, segmentID), nil
}
