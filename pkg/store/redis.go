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

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coah80/coleswebsite-sub000/pkg/core"
)

const snapshotKeyPrefix = "presence:snapshot:"

// RedisStore keeps snapshots in redis so several engine replicas (or a
// restart) share the cached state.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(addr string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func (r *RedisStore) snapshotKey(userID string) string {
	return snapshotKeyPrefix + userID
}

func (r *RedisStore) Put(ctx context.Context, userID string, snap core.PresenceSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := r.client.Set(ctx, r.snapshotKey(userID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, userID string) (core.PresenceSnapshot, bool, error) {
	data, err := r.client.Get(ctx, r.snapshotKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.PresenceSnapshot{}, false, nil
	}
	if err != nil {
		return core.PresenceSnapshot{}, false, fmt.Errorf("fetch snapshot: %w", err)
	}

	var snap core.PresenceSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return core.PresenceSnapshot{}, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
