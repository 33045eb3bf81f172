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

package deltafile

import (
	"context"
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colstore/deltastore/pkg/common/moerr"
	"github.com/colstore/deltastore/pkg/fileservice"
)

func TestEncodeDecode(t *testing.T) {
	rows := roaring.BitmapOf(1, 5, 100000, 4_000_000)
	for _, compress := range []bool{false, true} {
		data, err := Encode(rows, compress)
		require.NoError(t, err)

		decoded, err := Decode(data)
		require.NoError(t, err)
		assert.True(t, rows.Equals(decoded))
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not a delta file"))
	require.Error(t, err)
	assert.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidState))

	_, err = Decode(nil)
	require.Error(t, err)
	assert.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidState))

	// right magic, corrupted body
	data, err := Encode(roaring.BitmapOf(1, 2, 3), false)
	require.NoError(t, err)
	_, err = Decode(data[:len(data)-3])
	require.Error(t, err)
}

func TestWriteRead(t *testing.T) {
	fs := fileservice.NewMemFS()
	ctx := context.Background()
	rows := roaring.BitmapOf(7, 42)

	path, err := Write(ctx, fs, "/store/t1/Fact/Part0/Segment_0", "part-0-0_0", "1000", rows, true)
	require.NoError(t, err)
	assert.Equal(t, "/store/t1/Fact/Part0/Segment_0/part-0-0_0-1000.deletedelta", path)

	read, err := Read(ctx, fs, path)
	require.NoError(t, err)
	assert.True(t, rows.Equals(read))
}
