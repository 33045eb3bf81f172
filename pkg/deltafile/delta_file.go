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

// Package deltafile reads and writes delete-delta payloads: the set of
// logically deleted row offsets of one block as of one timestamp,
// stored as a roaring bitmap, optionally lz4 compressed. File naming
// follows the <blockName>-<timestamp>.deletedelta convention.
package deltafile

import (
	"bytes"
	"context"
	"io"

	"github.com/RoaringBitmap/roaring"
	"github.com/pierrec/lz4"

	"github.com/colstore/deltastore/pkg/common/moerr"
	"github.com/colstore/deltastore/pkg/fileservice"
	"github.com/colstore/deltastore/pkg/meta"
)

var magic = []byte{'D', 'D', 'F', '1'}

const (
	flagNone       byte = 0x0
	flagCompressed byte = 0x1
)

// Encode serializes the deleted-row bitmap into the delta payload.
func Encode(rows *roaring.Bitmap, compress bool) ([]byte, error) {
	var body bytes.Buffer
	if _, err := rows.WriteTo(&body); err != nil {
		return nil, moerr.NewInternalError("cannot serialize delete bitmap: %v", err)
	}

	var out bytes.Buffer
	out.Write(magic)
	if !compress {
		out.WriteByte(flagNone)
		out.Write(body.Bytes())
		return out.Bytes(), nil
	}
	out.WriteByte(flagCompressed)
	zw := lz4.NewWriter(&out)
	if _, err := zw.Write(body.Bytes()); err != nil {
		return nil, moerr.NewInternalError("cannot compress delete bitmap: %v", err)
	}
	if err := zw.Close(); err != nil {
		return nil, moerr.NewInternalError("cannot compress delete bitmap: %v", err)
	}
	return out.Bytes(), nil
}

// Decode restores the deleted-row bitmap from a delta payload.
func Decode(data []byte) (*roaring.Bitmap, error) {
	if len(data) < len(magic)+1 || !bytes.Equal(data[:len(magic)], magic) {
		return nil, moerr.NewInvalidState("not a delete delta payload")
	}
	flags := data[len(magic)]
	body := data[len(magic)+1:]
	if flags&flagCompressed != 0 {
		raw, err := io.ReadAll(lz4.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, moerr.NewInvalidState("corrupted delete delta payload: %v", err)
		}
		body = raw
	}
	rows := roaring.New()
	if _, err := rows.ReadFrom(bytes.NewReader(body)); err != nil {
		return nil, moerr.NewInvalidState("corrupted delete bitmap: %v", err)
	}
	return rows, nil
}

// Write publishes the delta file for (blockName, timestamp) under
// blockPath and returns its path.
func Write(
	ctx context.Context,
	fs fileservice.FileService,
	blockPath, blockName, timestamp string,
	rows *roaring.Bitmap,
	compress bool,
) (string, error) {
	data, err := Encode(rows, compress)
	if err != nil {
		return "", err
	}
	path := meta.DeleteDeltaFilePath(blockPath, blockName, timestamp)
	if err = fs.Write(ctx, path, data); err != nil {
		return "", err
	}
	return path, nil
}

// Read loads one delta file.
func Read(ctx context.Context, fs fileservice.FileService, path string) (*roaring.Bitmap, error) {
	data, err := fs.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
