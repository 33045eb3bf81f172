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

package lockservice

import (
	"sync"
	"time"
)

const (
	// TableStatusLock guards the segment list file of a table.
	TableStatusLock = "tablestatus.lock"
	// UpdateStatusLock guards the update-status epoch files of a table.
	// It is a distinct resource from TableStatusLock and the two are
	// never required to be held together.
	UpdateStatusLock = "tableupdatestatus.lock"
)

// Resource names the lock guarding one status file of one table.
func Resource(tablePath, lockFile string) string {
	return tablePath + "/" + lockFile
}

// Locker is the mutual-exclusion primitive guarding a status file.
// The production implementation is an external distributed lock; it is
// injected so tests can substitute an in-memory one.
type Locker interface {
	// TryLockWithRetries blocks through a bounded number of attempts
	// and reports whether the lock was acquired.
	TryLockWithRetries() bool
	// Unlock releases the lock and reports success.
	Unlock() bool
}

// LockService hands out Lockers by resource name.
type LockService interface {
	GetLocker(resource string) Locker
}

// Config bounds the retry loop of TryLockWithRetries.
type Config struct {
	RetryCount    int
	RetryInterval time.Duration
}

// LocalLockService serializes callers within one process. Lockers for
// the same resource share state; different resources are independent.
type LocalLockService struct {
	cfg Config

	mu    sync.Mutex
	locks map[string]*resourceState
}

var _ LockService = new(LocalLockService)

func NewLocalLockService(cfg Config) *LocalLockService {
	return &LocalLockService{
		cfg:   cfg,
		locks: make(map[string]*resourceState),
	}
}

func (s *LocalLockService) GetLocker(resource string) Locker {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.locks[resource]
	if !ok {
		state = &resourceState{}
		s.locks[resource] = state
	}
	return &localLocker{cfg: s.cfg, state: state}
}

type resourceState struct {
	mu   sync.Mutex
	held bool
}

func (r *resourceState) tryLock() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.held {
		return false
	}
	r.held = true
	return true
}

func (r *resourceState) unlock() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.held {
		return false
	}
	r.held = false
	return true
}

type localLocker struct {
	cfg    Config
	state  *resourceState
	locked bool
}

func (l *localLocker) TryLockWithRetries() bool {
	retries := l.cfg.RetryCount
	if retries < 1 {
		retries = 1
	}
	for i := 0; i < retries; i++ {
		if l.state.tryLock() {
			l.locked = true
			return true
		}
		if i != retries-1 {
			time.Sleep(l.cfg.RetryInterval)
		}
	}
	return false
}

func (l *localLocker) Unlock() bool {
	if !l.locked {
		return false
	}
	l.locked = false
	return l.state.unlock()
}
