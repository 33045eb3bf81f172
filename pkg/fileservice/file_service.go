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

package fileservice

import (
	"context"

	"github.com/colstore/deltastore/pkg/logutil"
)

// DirEntry is one child of a listed directory.
type DirEntry struct {
	// Name is the base name, without the directory prefix.
	Name  string
	IsDir bool
	Size  int64
}

// FileService is the storage port of the mutation layer. Paths are
// slash separated. Write publishes atomically: a reader never observes
// a half-written file under the final path.
type FileService interface {
	// Exists reports whether a file or directory is present.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns the direct children of dirPath, sorted by name.
	// A missing directory lists as empty.
	List(ctx context.Context, dirPath string) ([]DirEntry, error)

	// ListFiles returns the names of the regular files under dirPath
	// accepted by filter. A nil filter accepts everything.
	ListFiles(ctx context.Context, dirPath string, filter func(name string) bool) ([]string, error)

	// Read returns the whole content of filePath.
	Read(ctx context.Context, filePath string) ([]byte, error)

	// Write creates or replaces filePath with data, creating parent
	// directories, staging to a temporary name and renaming into place.
	Write(ctx context.Context, filePath string, data []byte) error

	// Delete removes a file, or a directory with everything below it.
	// Deleting a missing path is an error.
	Delete(ctx context.Context, path string) error

	MkdirAll(ctx context.Context, dirPath string) error

	// Copy duplicates a single file byte for byte.
	Copy(ctx context.Context, srcPath, dstPath string) error
}

// DeleteSilent removes path and only logs on failure. Used by sweeps
// where one bad file must not stop the rest.
func DeleteSilent(ctx context.Context, fs FileService, path string) bool {
	if err := fs.Delete(ctx, path); err != nil {
		logutil.Errorf("error in clean up of invalid file %s: %v", path, err)
		return false
	}
	return true
}
