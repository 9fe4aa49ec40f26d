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
	"fmt"
	"time"

	"github.com/coah80/coleswebsite-sub000/pkg/core"
)

// New creates a snapshot store for the configured backend. An empty backend
// means memory.
func New(backend, redisAddr string, ttl time.Duration) (core.SnapshotStore, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}

	switch backend {
	case "redis":
		if redisAddr == "" {
			return nil, fmt.Errorf("redis_addr is required when backend=redis")
		}
		return NewRedisStore(redisAddr, ttl)

	case "memory", "":
		return NewMemoryStore(ttl), nil

	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}
