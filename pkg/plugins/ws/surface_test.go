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

package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coah80/coleswebsite-sub000/pkg/core"
	"github.com/coah80/coleswebsite-sub000/pkg/presence"
)

const testUserID = "94490510688792576"

type mockManager struct {
	mu        sync.Mutex
	sessions  map[string]*core.Session
	destroyed []string
}

func newMockManager() *mockManager {
	return &mockManager{sessions: make(map[string]*core.Session)}
}

func (m *mockManager) CreateSession(ctx context.Context, surfaceName, clientID string) (*core.Session, error) {
	sessCtx, cancel := context.WithCancel(ctx)
	sess := &core.Session{
		ID:          "sess-" + clientID,
		ClientID:    clientID,
		SurfaceName: surfaceName,
		UserID:      testUserID,
		Downstream:  make(chan core.SnapshotEvent, 16),
		Done:        sessCtx.Done(),
		Cancel:      cancel,
	}
	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()
	return sess, nil
}

func (m *mockManager) DestroySession(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[sessionID]; ok {
		sess.Cancel()
		delete(m.sessions, sessionID)
	}
	m.destroyed = append(m.destroyed, sessionID)
	return nil
}

func dialSurface(t *testing.T, manager core.SessionManager) *websocket.Conn {
	t.Helper()
	s := New("ws-main", 0, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	s.manager = manager

	srv := httptest.NewServer(http.HandlerFunc(s.handleConnection))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) presence.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var env presence.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("malformed frame: %v", err)
	}
	return env
}

func sendEnvelope(t *testing.T, conn *websocket.Conn, env presence.Envelope) {
	t.Helper()
	data, _ := json.Marshal(env)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestSurfaceServesGatewayProtocol(t *testing.T) {
	manager := newMockManager()
	conn := dialSurface(t, manager)

	hello := readEnvelope(t, conn)
	if hello.Op != presence.OpHello {
		t.Fatalf("first frame op = %d, want hello", hello.Op)
	}
	var hd struct {
		HeartbeatIntervalMS int64 `json:"heartbeat_interval_ms"`
	}
	if err := json.Unmarshal(hello.D, &hd); err != nil || hd.HeartbeatIntervalMS <= 0 {
		t.Fatalf("hello payload = %s (err %v)", hello.D, err)
	}

	// Heartbeats before subscribe are tolerated.
	sendEnvelope(t, conn, presence.Envelope{Op: presence.OpHeartbeat})

	sub, _ := json.Marshal(map[string]string{"subscribe_to_id": testUserID})
	sendEnvelope(t, conn, presence.Envelope{Op: presence.OpSubscribe, D: sub})

	var sess *core.Session
	deadline := time.Now().Add(2 * time.Second)
	for sess == nil {
		if time.Now().After(deadline) {
			t.Fatal("session never created")
		}
		manager.mu.Lock()
		for _, s := range manager.sessions {
			sess = s
		}
		manager.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}

	snap := core.PresenceSnapshot{
		User:   core.DiscordUser{ID: testUserID},
		Status: core.StatusOnline,
	}
	sess.Downstream <- core.SnapshotEvent{ID: "e1", UserID: testUserID, Initial: true, Snapshot: snap}

	evt := readEnvelope(t, conn)
	if evt.Op != presence.OpEvent || evt.T != presence.EventInitState {
		t.Fatalf("event frame op=%d t=%q, want event/INIT_STATE", evt.Op, evt.T)
	}
	var got core.PresenceSnapshot
	if err := json.Unmarshal(evt.D, &got); err != nil {
		t.Fatalf("event payload: %v", err)
	}
	if got.User.ID != testUserID || got.Status != core.StatusOnline {
		t.Errorf("unexpected snapshot: %+v", got)
	}

	sess.Downstream <- core.SnapshotEvent{ID: "e2", UserID: testUserID, Snapshot: snap}
	update := readEnvelope(t, conn)
	if update.T != presence.EventPresenceUpdate {
		t.Errorf("second event t = %q, want PRESENCE_UPDATE", update.T)
	}
}

func TestSurfaceDestroysSessionOnDisconnect(t *testing.T) {
	manager := newMockManager()
	conn := dialSurface(t, manager)

	readEnvelope(t, conn) // hello
	sub, _ := json.Marshal(map[string]string{"subscribe_to_id": testUserID})
	sendEnvelope(t, conn, presence.Envelope{Op: presence.OpSubscribe, D: sub})

	deadline := time.Now().Add(2 * time.Second)
	for {
		manager.mu.Lock()
		n := len(manager.sessions)
		manager.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("session never created")
		}
		time.Sleep(10 * time.Millisecond)
	}

	conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for {
		manager.mu.Lock()
		destroyed := len(manager.destroyed)
		manager.mu.Unlock()
		if destroyed == 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("session not destroyed after client disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
