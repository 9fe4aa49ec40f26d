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

// Package watch owns one presence client per configured user and fans every
// accepted snapshot out to the store, the sinks and all surface sessions.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coah80/coleswebsite-sub000/internal/filter"
	"github.com/coah80/coleswebsite-sub000/internal/logging"
	"github.com/coah80/coleswebsite-sub000/internal/routing"
	"github.com/coah80/coleswebsite-sub000/pkg/core"
	"github.com/coah80/coleswebsite-sub000/pkg/presence"
)

const sessionChannelSize = 16

type activeSession struct {
	session *core.Session
	cancel  context.CancelFunc
}

type Manager struct {
	routes      *routing.Table
	store       core.SnapshotStore
	sinks       map[string]core.Sink
	filter      *filter.Filter
	logger      *slog.Logger
	deliveryLog *logging.DeliveryLogger

	mu      sync.Mutex
	clients map[string]*presence.Client
	seen    map[string]bool

	sessions sync.Map
}

func NewManager(
	routes *routing.Table,
	snapStore core.SnapshotStore,
	sinks map[string]core.Sink,
	f *filter.Filter,
	logger *slog.Logger,
	deliveryLog *logging.DeliveryLogger,
) *Manager {
	return &Manager{
		routes:      routes,
		store:       snapStore,
		sinks:       sinks,
		filter:      f,
		logger:      logger,
		deliveryLog: deliveryLog,
		clients:     make(map[string]*presence.Client),
		seen:        make(map[string]bool),
	}
}

// Watch starts a presence client for userID. Watching an already watched
// user is a no-op.
func (m *Manager) Watch(ctx context.Context, userID string, opts presence.Options) error {
	m.mu.Lock()
	if _, ok := m.clients[userID]; ok {
		m.mu.Unlock()
		return nil
	}
	client := presence.New(userID, opts)
	m.clients[userID] = client
	m.mu.Unlock()

	client.OnState(func(state presence.State, err error) {
		if err != nil {
			m.logger.Warn("watcher state change", "user_id", userID, "state", state.String(), "error", err)
			return
		}
		m.logger.Info("watcher state change", "user_id", userID, "state", state.String())
	})
	client.OnSnapshot(func(snap core.PresenceSnapshot) {
		m.handleSnapshot(ctx, userID, snap)
	})

	return client.Connect()
}

// handleSnapshot is the single egress path: filter, store, publish, fan out.
func (m *Manager) handleSnapshot(ctx context.Context, userID string, snap core.PresenceSnapshot) {
	filtered := m.filter.Apply(snap)

	m.mu.Lock()
	initial := !m.seen[userID]
	m.seen[userID] = true
	m.mu.Unlock()

	evt := core.SnapshotEvent{
		ID:        uuid.New().String(),
		UserID:    userID,
		Initial:   initial,
		Snapshot:  filtered,
		Timestamp: time.Now().UTC(),
	}

	if m.store != nil {
		if err := m.store.Put(ctx, userID, filtered); err != nil {
			m.logger.Warn("snapshot store write failed", "user_id", userID, "error", err)
		}
	}

	for name, sink := range m.sinks {
		if err := sink.Publish(ctx, evt); err != nil {
			m.logger.Error("sink publish failed", "sink", name, "user_id", userID, "error", err)
		}
	}

	m.fanOut(evt)
}

func (m *Manager) fanOut(evt core.SnapshotEvent) {
	m.sessions.Range(func(_, val any) bool {
		as := val.(*activeSession)
		sess := as.session
		if sess.UserID != evt.UserID {
			return true
		}
		select {
		case sess.Downstream <- evt:
			if m.deliveryLog != nil {
				m.deliveryLog.Log(evt, sess.SurfaceName, sess.ID)
			}
		default:
			m.logger.Warn("session channel full, dropping event",
				"session_id", sess.ID, "client_id", sess.ClientID)
		}
		return true
	})
}

// CreateSession registers a surface subscriber for the user its surface
// routes to, and primes it with the latest cached snapshot so it never
// waits for the next upstream push.
func (m *Manager) CreateSession(
	ctx context.Context,
	surfaceName string,
	clientID string,
) (*core.Session, error) {
	route, ok := m.routes.Lookup(surfaceName)
	if !ok {
		return nil, fmt.Errorf("%w: source=%s", core.ErrNoWatchRoute, surfaceName)
	}

	m.mu.Lock()
	client, ok := m.clients[route.UserID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: user_id=%s", core.ErrWatcherNotFound, route.UserID)
	}

	sessionCtx, sessionCancel := context.WithCancel(ctx)
	sessionID := uuid.New().String()

	sess := &core.Session{
		ID:          sessionID,
		ClientID:    clientID,
		SurfaceName: surfaceName,
		UserID:      route.UserID,
		Downstream:  make(chan core.SnapshotEvent, sessionChannelSize),
		Done:        sessionCtx.Done(),
		Cancel:      sessionCancel,
	}

	m.sessions.Store(sessionID, &activeSession{
		session: sess,
		cancel:  sessionCancel,
	})

	if snap, ok := m.latestSnapshot(sessionCtx, client, route.UserID); ok {
		sess.Downstream <- core.SnapshotEvent{
			ID:        uuid.New().String(),
			UserID:    route.UserID,
			Initial:   true,
			Snapshot:  snap,
			Timestamp: time.Now().UTC(),
		}
	}

	m.logger.Info("session created",
		"session_id", sessionID,
		"client_id", clientID,
		"surface", surfaceName,
		"user_id", route.UserID,
	)

	return sess, nil
}

// latestSnapshot prefers the live client's state and falls back to the
// store, which may outlive a restart.
func (m *Manager) latestSnapshot(
	ctx context.Context,
	client *presence.Client,
	userID string,
) (core.PresenceSnapshot, bool) {
	if snap, ok := client.LastSnapshot(); ok {
		return m.filter.Apply(snap), true
	}
	if m.store != nil {
		snap, ok, err := m.store.Get(ctx, userID)
		if err != nil {
			m.logger.Warn("snapshot store read failed", "user_id", userID, "error", err)
			return core.PresenceSnapshot{}, false
		}
		return snap, ok
	}
	return core.PresenceSnapshot{}, false
}

func (m *Manager) DestroySession(sessionID string) error {
	val, ok := m.sessions.LoadAndDelete(sessionID)
	if !ok {
		return fmt.Errorf("%w: id=%s", core.ErrSessionNotFound, sessionID)
	}

	as := val.(*activeSession)
	as.cancel()

	m.logger.Info("session destroyed",
		"session_id", sessionID,
		"client_id", as.session.ClientID,
	)

	return nil
}

func (m *Manager) DestroyAll() {
	m.sessions.Range(func(key, _ any) bool {
		_ = m.DestroySession(key.(string))
		return true
	})
}

func (m *Manager) ActiveCount() int {
	count := 0
	m.sessions.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

// Shutdown tears down all sessions and disconnects every watcher.
func (m *Manager) Shutdown() {
	m.DestroyAll()

	m.mu.Lock()
	clients := make([]*presence.Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.mu.Unlock()

	for _, c := range clients {
		c.Disconnect()
	}
}
