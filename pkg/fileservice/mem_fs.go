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
	"strings"
	"sync"

	"github.com/google/btree"

	"github.com/colstore/deltastore/pkg/common/moerr"
)

type memNode struct {
	path  string
	isDir bool
	data  []byte
}

func (n *memNode) Less(than btree.Item) bool {
	return n.path < than.(*memNode).path
}

// MemFS is an in-memory FileService keyed by a btree of paths, used by
// tests to run GC and trash logic deterministically without real I/O.
type MemFS struct {
	sync.RWMutex
	tree *btree.BTree
}

var _ FileService = new(MemFS)

func NewMemFS() *MemFS {
	return &MemFS{
		tree: btree.New(2),
	}
}

func normalize(path string) string {
	return strings.TrimSuffix(path, "/")
}

func (m *MemFS) get(path string) *memNode {
	item := m.tree.Get(&memNode{path: normalize(path)})
	if item == nil {
		return nil
	}
	return item.(*memNode)
}

func (m *MemFS) ensureParents(path string) {
	for {
		idx := strings.LastIndex(path, "/")
		if idx <= 0 {
			return
		}
		path = path[:idx]
		if m.get(path) != nil {
			return
		}
		m.tree.ReplaceOrInsert(&memNode{path: path, isDir: true})
	}
}

func (m *MemFS) Exists(ctx context.Context, path string) (bool, error) {
	m.RLock()
	defer m.RUnlock()
	return m.get(path) != nil, nil
}

func (m *MemFS) List(ctx context.Context, dirPath string) ([]DirEntry, error) {
	m.RLock()
	defer m.RUnlock()
	prefix := normalize(dirPath) + "/"
	var ret []DirEntry
	m.tree.AscendGreaterOrEqual(&memNode{path: prefix}, func(item btree.Item) bool {
		node := item.(*memNode)
		if !strings.HasPrefix(node.path, prefix) {
			return false
		}
		rest := node.path[len(prefix):]
		if !strings.Contains(rest, "/") {
			ret = append(ret, DirEntry{
				Name:  rest,
				IsDir: node.isDir,
				Size:  int64(len(node.data)),
			})
		}
		return true
	})
	return ret, nil
}

func (m *MemFS) ListFiles(ctx context.Context, dirPath string, filter func(name string) bool) ([]string, error) {
	entries, err := m.List(ctx, dirPath)
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

func (m *MemFS) Read(ctx context.Context, filePath string) ([]byte, error) {
	m.RLock()
	defer m.RUnlock()
	node := m.get(filePath)
	if node == nil || node.isDir {
		return nil, moerr.NewFileNotFound(filePath)
	}
	data := make([]byte, len(node.data))
	copy(data, node.data)
	return data, nil
}

func (m *MemFS) Write(ctx context.Context, filePath string, data []byte) error {
	m.Lock()
	defer m.Unlock()
	path := normalize(filePath)
	owned := make([]byte, len(data))
	copy(owned, data)
	m.tree.ReplaceOrInsert(&memNode{path: path, data: owned})
	m.ensureParents(path)
	return nil
}

func (m *MemFS) Delete(ctx context.Context, path string) error {
	m.Lock()
	defer m.Unlock()
	node := m.get(path)
	if node == nil {
		return moerr.NewFileNotFound(path)
	}
	m.tree.Delete(node)
	if node.isDir {
		prefix := node.path + "/"
		var doomed []*memNode
		m.tree.AscendGreaterOrEqual(&memNode{path: prefix}, func(item btree.Item) bool {
			child := item.(*memNode)
			if !strings.HasPrefix(child.path, prefix) {
				return false
			}
			doomed = append(doomed, child)
			return true
		})
		for _, child := range doomed {
			m.tree.Delete(child)
		}
	}
	return nil
}

func (m *MemFS) MkdirAll(ctx context.Context, dirPath string) error {
	m.Lock()
	defer m.Unlock()
	path := normalize(dirPath)
	if m.get(path) == nil {
		m.tree.ReplaceOrInsert(&memNode{path: path, isDir: true})
	}
	m.ensureParents(path)
	return nil
}

func (m *MemFS) Copy(ctx context.Context, srcPath, dstPath string) error {
	data, err := m.Read(ctx, srcPath)
	if err != nil {
		return err
	}
	return m.Write(ctx, dstPath, data)
}
