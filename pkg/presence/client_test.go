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

package presence

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coah80/coleswebsite-sub000/pkg/core"
)

const testUserID = "94490510688792576"

// newGatewayServer runs a scripted gateway. handle receives each upgraded
// connection in its own goroutine; handlers must communicate with the test
// through channels, never through t.
func newGatewayServer(t *testing.T, handle func(conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handle(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readFrame(conn *websocket.Conn) (Envelope, error) {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func writeFrame(conn *websocket.Conn, env Envelope) error {
	data, _ := json.Marshal(env)
	return conn.WriteMessage(websocket.TextMessage, data)
}

func helloFrame(intervalMs int64) Envelope {
	d, _ := json.Marshal(helloData{HeartbeatIntervalMS: intervalMs})
	return Envelope{Op: OpHello, D: d}
}

func eventFrame(eventType string, snap core.PresenceSnapshot) Envelope {
	d, _ := json.Marshal(snap)
	return Envelope{Op: OpEvent, T: eventType, D: d}
}

func onlineSnapshot() core.PresenceSnapshot {
	return core.PresenceSnapshot{
		User:   core.DiscordUser{ID: testUserID, Username: "cole"},
		Status: core.StatusOnline,
	}
}

// holdOpen keeps the server side of a connection alive until the peer goes
// away.
func holdOpen(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func waitSnapshot(t *testing.T, ch <-chan core.PresenceSnapshot) core.PresenceSnapshot {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return core.PresenceSnapshot{}
	}
}

func waitState(t *testing.T, ch <-chan State, want State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-ch:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %v", want)
		}
	}
}

func TestClientHandshakeAndInitState(t *testing.T) {
	subscribes := make(chan Envelope, 4)
	heartbeats := make(chan Envelope, 8)

	url := newGatewayServer(t, func(conn *websocket.Conn) {
		defer conn.Close()

		env, err := readFrame(conn)
		if err != nil {
			return
		}
		subscribes <- env

		if writeFrame(conn, helloFrame(50)) != nil {
			return
		}
		for i := 0; i < 2; i++ {
			hb, err := readFrame(conn)
			if err != nil {
				return
			}
			heartbeats <- hb
			if i == 0 {
				if writeFrame(conn, eventFrame(EventInitState, onlineSnapshot())) != nil {
					return
				}
			}
		}
		holdOpen(conn)
	})

	client := New(testUserID, Options{GatewayURL: url, APIKey: "secret"})
	defer client.Disconnect()

	snaps := make(chan core.PresenceSnapshot, 4)
	states := make(chan State, 16)
	client.OnSnapshot(func(s core.PresenceSnapshot) { snaps <- s })
	client.OnState(func(s State, _ error) { states <- s })

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	waitState(t, states, StateConnecting)
	waitState(t, states, StateAwaitingHandshake)

	select {
	case env := <-subscribes:
		if env.Op != OpSubscribe {
			t.Fatalf("first client frame is op %d, want subscribe", env.Op)
		}
		var sub subscribeData
		if err := json.Unmarshal(env.D, &sub); err != nil {
			t.Fatalf("malformed subscribe frame: %v", err)
		}
		if sub.SubscribeToID != testUserID {
			t.Errorf("subscribed to %q, want %q", sub.SubscribeToID, testUserID)
		}
		if sub.APIKey != "secret" {
			t.Errorf("api key %q not forwarded", sub.APIKey)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("gateway never saw a subscribe frame")
	}

	snap := waitSnapshot(t, snaps)
	if snap.Status != core.StatusOnline || snap.User.ID != testUserID {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	waitState(t, states, StateSubscribed)

	// Two heartbeats prove both the immediate send after hello and the
	// recurring loop at the hello's cadence.
	for i := 0; i < 2; i++ {
		select {
		case hb := <-heartbeats:
			if hb.Op != OpHeartbeat {
				t.Errorf("expected heartbeat, got op %d", hb.Op)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for heartbeat %d", i+1)
		}
	}

	cs := client.ConnectionState()
	if cs.State != StateSubscribed {
		t.Errorf("state = %v, want subscribed", cs.State)
	}
	if cs.HeartbeatInterval != 50*time.Millisecond {
		t.Errorf("heartbeat interval = %v, want 50ms", cs.HeartbeatInterval)
	}
	if cs.LastHeartbeatSentAt.IsZero() {
		t.Error("expected a recorded heartbeat send time")
	}

	if got, ok := client.LastSnapshot(); !ok || got.User.ID != testUserID {
		t.Errorf("LastSnapshot = %+v, %v", got, ok)
	}

	select {
	case extra := <-snaps:
		t.Errorf("single INIT_STATE delivered more than once: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClientReconnectsAfterLoss(t *testing.T) {
	var dials atomic.Int32

	url := newGatewayServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		n := dials.Add(1)

		if _, err := readFrame(conn); err != nil { // subscribe
			return
		}
		if writeFrame(conn, helloFrame(60_000)) != nil {
			return
		}
		if _, err := readFrame(conn); err != nil { // initial heartbeat
			return
		}
		if writeFrame(conn, eventFrame(EventInitState, onlineSnapshot())) != nil {
			return
		}
		if n == 1 {
			return // drop the first connection after the snapshot
		}
		holdOpen(conn)
	})

	client := New(testUserID, Options{
		GatewayURL:  url,
		BackoffBase: 10 * time.Millisecond,
		BackoffCap:  50 * time.Millisecond,
	})
	defer client.Disconnect()

	snaps := make(chan core.PresenceSnapshot, 4)
	states := make(chan State, 32)
	client.OnSnapshot(func(s core.PresenceSnapshot) { snaps <- s })
	client.OnState(func(s State, _ error) { states <- s })

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	waitSnapshot(t, snaps)
	waitState(t, states, StateReconnecting)
	waitSnapshot(t, snaps)
	waitState(t, states, StateSubscribed)

	if n := dials.Load(); n != 2 {
		t.Errorf("expected 2 gateway connections, got %d", n)
	}
	cs := client.ConnectionState()
	if cs.Attempt != 0 {
		t.Errorf("attempt counter not reset after resubscribe, got %d", cs.Attempt)
	}
}

func TestClientInvalidUserID(t *testing.T) {
	var dials atomic.Int32
	url := newGatewayServer(t, func(conn *websocket.Conn) {
		dials.Add(1)
		conn.Close()
	})

	client := New("not-a-snowflake", Options{GatewayURL: url})

	states := make(chan State, 4)
	stateErrs := make(chan error, 4)
	client.OnState(func(s State, err error) {
		stateErrs <- err
		states <- s
	})

	err := client.Connect()
	if !errors.Is(err, core.ErrInvalidUserID) {
		t.Fatalf("Connect error = %v, want ErrInvalidUserID", err)
	}

	waitState(t, states, StateDisconnected)
	if stateErr := <-stateErrs; !errors.Is(stateErr, core.ErrInvalidUserID) {
		t.Errorf("state handler error = %v, want ErrInvalidUserID", stateErr)
	}

	time.Sleep(50 * time.Millisecond)
	if n := dials.Load(); n != 0 {
		t.Errorf("client dialed the gateway %d times with an invalid id", n)
	}
	if cs := client.ConnectionState(); cs.State != StateDisconnected {
		t.Errorf("state = %v, want disconnected", cs.State)
	}
}

func TestClientDisconnectIdempotent(t *testing.T) {
	url := newGatewayServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		if _, err := readFrame(conn); err != nil {
			return
		}
		if writeFrame(conn, helloFrame(60_000)) != nil {
			return
		}
		if _, err := readFrame(conn); err != nil {
			return
		}
		if writeFrame(conn, eventFrame(EventInitState, onlineSnapshot())) != nil {
			return
		}
		holdOpen(conn)
	})

	client := New(testUserID, Options{GatewayURL: url})

	snaps := make(chan core.PresenceSnapshot, 4)
	states := make(chan State, 16)
	client.OnSnapshot(func(s core.PresenceSnapshot) { snaps <- s })
	client.OnState(func(s State, _ error) { states <- s })

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitSnapshot(t, snaps)

	client.Disconnect()
	waitState(t, states, StateDisconnected)
	client.Disconnect()
	client.Disconnect()

	select {
	case s := <-states:
		t.Errorf("redundant Disconnect produced a state notification: %v", s)
	case <-time.After(100 * time.Millisecond):
	}
	if cs := client.ConnectionState(); cs.State != StateDisconnected {
		t.Errorf("state = %v, want disconnected", cs.State)
	}
}

func TestClientDisconnectCancelsReconnect(t *testing.T) {
	var dials atomic.Int32
	url := newGatewayServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		dials.Add(1)
		if _, err := readFrame(conn); err != nil {
			return
		}
		if writeFrame(conn, helloFrame(60_000)) != nil {
			return
		}
		if _, err := readFrame(conn); err != nil {
			return
		}
		writeFrame(conn, eventFrame(EventInitState, onlineSnapshot()))
	})

	client := New(testUserID, Options{
		GatewayURL:  url,
		BackoffBase: 30 * time.Millisecond,
		BackoffCap:  30 * time.Millisecond,
	})

	snaps := make(chan core.PresenceSnapshot, 8)
	states := make(chan State, 32)
	client.OnSnapshot(func(s core.PresenceSnapshot) { snaps <- s })
	client.OnState(func(s State, _ error) { states <- s })

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitSnapshot(t, snaps)
	waitState(t, states, StateReconnecting)

	// Disconnect while the reconnect timer is pending must cancel it.
	client.Disconnect()
	waitState(t, states, StateDisconnected)

	before := dials.Load()
	time.Sleep(150 * time.Millisecond)
	if after := dials.Load(); after != before {
		t.Errorf("client redialed after Disconnect: %d -> %d", before, after)
	}
}

func TestClientIgnoresBadFrames(t *testing.T) {
	url := newGatewayServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		if _, err := readFrame(conn); err != nil {
			return
		}
		if writeFrame(conn, helloFrame(60_000)) != nil {
			return
		}
		if _, err := readFrame(conn); err != nil {
			return
		}

		// None of these may surface or kill the connection.
		conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
		writeFrame(conn, Envelope{Op: 99})
		writeFrame(conn, eventFrame("GUILD_UPDATE", onlineSnapshot()))
		writeFrame(conn, Envelope{Op: OpEvent, T: EventPresenceUpdate, D: json.RawMessage(`{"bad":`)})
		writeFrame(conn, eventFrame(EventPresenceUpdate, core.PresenceSnapshot{Status: core.StatusOnline}))
		writeFrame(conn, eventFrame(EventPresenceUpdate, core.PresenceSnapshot{User: core.DiscordUser{ID: testUserID}}))

		writeFrame(conn, eventFrame(EventPresenceUpdate, onlineSnapshot()))
		holdOpen(conn)
	})

	client := New(testUserID, Options{GatewayURL: url})
	defer client.Disconnect()

	snaps := make(chan core.PresenceSnapshot, 8)
	client.OnSnapshot(func(s core.PresenceSnapshot) { snaps <- s })

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	snap := waitSnapshot(t, snaps)
	if !snap.Valid() {
		t.Errorf("delivered snapshot is invalid: %+v", snap)
	}

	select {
	case extra := <-snaps:
		t.Errorf("invalid frame was delivered: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClientSubscriberPanicIsolation(t *testing.T) {
	url := newGatewayServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		if _, err := readFrame(conn); err != nil {
			return
		}
		if writeFrame(conn, helloFrame(60_000)) != nil {
			return
		}
		if _, err := readFrame(conn); err != nil {
			return
		}
		writeFrame(conn, eventFrame(EventInitState, onlineSnapshot()))
		holdOpen(conn)
	})

	client := New(testUserID, Options{GatewayURL: url})
	defer client.Disconnect()

	order := make(chan string, 4)
	client.OnSnapshot(func(core.PresenceSnapshot) {
		order <- "first"
		panic("subscriber bug")
	})
	client.OnSnapshot(func(core.PresenceSnapshot) { order <- "second" })

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	for _, want := range []string{"first", "second"} {
		select {
		case got := <-order:
			if got != want {
				t.Errorf("delivery order: got %q, want %q", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("subscriber %q never invoked", want)
		}
	}
}

func TestClientSnapshotReplacedWholesale(t *testing.T) {
	withMusic := onlineSnapshot()
	withMusic.ListeningToSpotify = true
	withMusic.Spotify = &core.SpotifyActivity{
		Song:       "Midnight City",
		Artist:     "M83",
		Timestamps: core.Timestamps{Start: 0, End: time.Now().Add(time.Hour).UnixMilli()},
	}

	url := newGatewayServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		if _, err := readFrame(conn); err != nil {
			return
		}
		if writeFrame(conn, helloFrame(60_000)) != nil {
			return
		}
		if _, err := readFrame(conn); err != nil {
			return
		}
		writeFrame(conn, eventFrame(EventInitState, withMusic))
		writeFrame(conn, eventFrame(EventPresenceUpdate, onlineSnapshot()))
		holdOpen(conn)
	})

	client := New(testUserID, Options{GatewayURL: url})
	defer client.Disconnect()

	snaps := make(chan core.PresenceSnapshot, 4)
	client.OnSnapshot(func(s core.PresenceSnapshot) { snaps <- s })

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	first := waitSnapshot(t, snaps)
	if !IsMusicActive(first, time.Now().UnixMilli()) {
		t.Fatal("first snapshot should have active music")
	}

	second := waitSnapshot(t, snaps)
	if second.Spotify != nil || second.ListeningToSpotify {
		t.Error("music block survived a snapshot without one")
	}

	latest, ok := client.LastSnapshot()
	if !ok {
		t.Fatal("expected a cached snapshot")
	}
	if IsMusicActive(latest, time.Now().UnixMilli()) {
		t.Error("cached snapshot still reports active music after replacement")
	}
}
