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

package core

import "context"

// Surface is a downstream display transport (websocket, sse, http_get).
type Surface interface {
	Name() string
	Type() string
	Start(ctx context.Context, manager SessionManager) error
	Stop(ctx context.Context) error
}

// Sink publishes accepted snapshot events to an external broker.
type Sink interface {
	Name() string
	Type() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Publish(ctx context.Context, evt SnapshotEvent) error
}

// SnapshotStore keeps the latest accepted snapshot per watched user.
type SnapshotStore interface {
	Put(ctx context.Context, userID string, snap PresenceSnapshot) error
	Get(ctx context.Context, userID string) (PresenceSnapshot, bool, error)
	Close() error
}

type SessionManager interface {
	CreateSession(ctx context.Context, surfaceName string, clientID string) (*Session, error)
	DestroySession(sessionID string) error
}

// Session is one surface subscriber's view of a watched user's feed.
// Downstream is never closed; consumers must select on Done.
type Session struct {
	ID          string
	ClientID    string
	SurfaceName string
	UserID      string
	Downstream  chan SnapshotEvent
	Done        <-chan struct{}
	Cancel      context.CancelFunc
}
