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
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/colstore/deltastore/pkg/common/moerr"
)

// LocalFS is a FileService backed by the local file system. Paths are
// interpreted as-is, so callers pass absolute table paths.
type LocalFS struct{}

var _ FileService = LocalFS{}

func NewLocalFS() LocalFS {
	return LocalFS{}
}

func (l LocalFS) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(filepath.FromSlash(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, moerr.NewIOFailed(path, err)
}

func (l LocalFS) List(ctx context.Context, dirPath string) ([]DirEntry, error) {
	entries, err := os.ReadDir(filepath.FromSlash(dirPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, moerr.NewIOFailed(dirPath, err)
	}
	ret := make([]DirEntry, 0, len(entries))
	for _, entry := range entries {
		var size int64
		if info, err := entry.Info(); err == nil {
			size = info.Size()
		}
		ret = append(ret, DirEntry{
			Name:  entry.Name(),
			IsDir: entry.IsDir(),
			Size:  size,
		})
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Name < ret[j].Name })
	return ret, nil
}

func (l LocalFS) ListFiles(ctx context.Context, dirPath string, filter func(name string) bool) ([]string, error) {
	entries, err := l.List(ctx, dirPath)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir {
			continue
		}
		if filter == nil || filter(entry.Name) {
			names = append(names, entry.Name)
		}
	}
	return names, nil
}

func (l LocalFS) Read(ctx context.Context, filePath string) ([]byte, error) {
	data, err := os.ReadFile(filepath.FromSlash(filePath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, moerr.NewFileNotFound(filePath)
		}
		return nil, moerr.NewIOFailed(filePath, err)
	}
	return data, nil
}

func (l LocalFS) Write(ctx context.Context, filePath string, data []byte) error {
	nativePath := filepath.FromSlash(filePath)
	parentDir := filepath.Dir(nativePath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		return moerr.NewIOFailed(filePath, err)
	}
	// stage in the target directory so the rename cannot cross devices
	f, err := os.CreateTemp(parentDir, ".tmp-*")
	if err != nil {
		return moerr.NewIOFailed(filePath, err)
	}
	tmpName := f.Name()
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpName)
		return moerr.NewIOFailed(filePath, err)
	}
	if err = f.Close(); err != nil {
		_ = os.Remove(tmpName)
		return moerr.NewIOFailed(filePath, err)
	}
	if err = os.Rename(tmpName, nativePath); err != nil {
		_ = os.Remove(tmpName)
		return moerr.NewIOFailed(filePath, err)
	}
	return nil
}

func (l LocalFS) Delete(ctx context.Context, path string) error {
	nativePath := filepath.FromSlash(path)
	if _, err := os.Stat(nativePath); err != nil {
		if os.IsNotExist(err) {
			return moerr.NewFileNotFound(path)
		}
		return moerr.NewIOFailed(path, err)
	}
	if err := os.RemoveAll(nativePath); err != nil {
		return moerr.NewIOFailed(path, err)
	}
	return nil
}

func (l LocalFS) MkdirAll(ctx context.Context, dirPath string) error {
	if err := os.MkdirAll(filepath.FromSlash(dirPath), 0755); err != nil {
		return moerr.NewIOFailed(dirPath, err)
	}
	return nil
}

func (l LocalFS) Copy(ctx context.Context, srcPath, dstPath string) error {
	src, err := os.Open(filepath.FromSlash(srcPath))
	if err != nil {
		if os.IsNotExist(err) {
			return moerr.NewFileNotFound(srcPath)
		}
		return moerr.NewIOFailed(srcPath, err)
	}
	defer src.Close()

	nativeDst := filepath.FromSlash(dstPath)
	if err = os.MkdirAll(filepath.Dir(nativeDst), 0755); err != nil {
		return moerr.NewIOFailed(dstPath, err)
	}
	dst, err := os.Create(nativeDst)
	if err != nil {
		return moerr.NewIOFailed(dstPath, err)
	}
	if _, err = io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(nativeDst)
		return moerr.NewIOFailed(dstPath, err)
	}
	if err = dst.Close(); err != nil {
		_ = os.Remove(nativeDst)
		return moerr.NewIOFailed(dstPath, err)
	}
	return nil
}
