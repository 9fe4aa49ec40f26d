// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

// Package store keeps the latest accepted snapshot per watched user.
// Snapshots replace wholesale, so a latest-value cache is the whole
// contract; there is no queue to drain.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/coah80/coleswebsite-sub000/pkg/core"
)

type memoryEntry struct {
	snap      core.PresenceSnapshot
	updatedAt time.Time
}

// MemoryStore is the in-process backend, used when no redis address is
// configured.
type MemoryStore struct {
	entries map[string]memoryEntry
	ttl     time.Duration
	mu      sync.RWMutex
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryStore) Put(ctx context.Context, userID string, snap core.PresenceSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID] = memoryEntry{snap: snap.Clone(), updatedAt: m.now()}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, userID string) (core.PresenceSnapshot, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[userID]
	m.mu.RUnlock()

	if !ok {
		return core.PresenceSnapshot{}, false, nil
	}
	if m.ttl > 0 && m.now().Sub(entry.updatedAt) > m.ttl {
		m.mu.Lock()
		delete(m.entries, userID)
		m.mu.Unlock()
		return core.PresenceSnapshot{}, false, nil
	}
	return entry.snap.Clone(), true, nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memoryEntry)
	return nil
}
