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
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coah80/coleswebsite-sub000/pkg/core"
)

// State is the connection lifecycle position of a Client.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingHandshake
	StateSubscribed
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAwaitingHandshake:
		return "awaiting_handshake"
	case StateSubscribed:
		return "subscribed"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// ConnectionState is a point-in-time copy of the client's mutable state,
// safe to hand out to callers.
type ConnectionState struct {
	State               State
	Attempt             int
	NextAttemptAt       time.Time
	HeartbeatInterval   time.Duration
	LastHeartbeatSentAt time.Time
	Err                 error
}

// Options configures a Client. Zero values take the documented defaults.
type Options struct {
	// GatewayURL is the ws:// or wss:// address of the presence gateway.
	GatewayURL string
	// APIKey is forwarded in the subscribe frame when set.
	APIKey string
	// BackoffBase is the first reconnect delay (default 1s).
	BackoffBase time.Duration
	// BackoffCap bounds the reconnect delay (default 30s).
	BackoffCap time.Duration
	Logger     *slog.Logger
}

// SnapshotHandler receives each accepted snapshot, by value.
type SnapshotHandler func(core.PresenceSnapshot)

// StateHandler receives connection state transitions. err is non-nil for
// transitions caused by a failure.
type StateHandler func(state State, err error)

var errNotConnected = errors.New("gateway connection not open")

// Client owns exactly one live gateway connection for one watched user id.
// It reconnects with exponential backoff on every loss except an explicit
// Disconnect, and retries indefinitely: a presence feed is non-critical, so
// an upstream outage must never leave the client permanently dead.
//
// All mutable state has a single writer (the client's own callbacks); owners
// must call Disconnect on teardown or a timer and socket leak.
type Client struct {
	userID string
	opts   Options
	logger *slog.Logger

	mu                  sync.Mutex
	state               State
	lastErr             error
	attempt             int
	nextAttemptAt       time.Time
	heartbeatInterval   time.Duration
	lastHeartbeatSentAt time.Time
	lastSnapshot        *core.PresenceSnapshot
	conn                *websocket.Conn
	connGen             int
	heartbeatStop       chan struct{}
	heartbeatRunning    bool
	reconnectTimer      *time.Timer
	snapshotSubs        []SnapshotHandler
	stateSubs           []StateHandler
	closed              bool

	// writeMu serializes socket writes between the heartbeat goroutine
	// and the read loop's replies.
	writeMu sync.Mutex
}

// New creates a client for one watched user id. No network activity happens
// until Connect.
func New(userID string, opts Options) *Client {
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}
	if opts.BackoffCap <= 0 {
		opts.BackoffCap = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		userID: userID,
		opts:   opts,
		logger: logger.With("component", "presence", "user_id", userID),
	}
}

// OnSnapshot registers a subscriber for accepted snapshots. Subscribers are
// invoked in registration order; a panicking subscriber does not prevent
// delivery to the rest.
func (c *Client) OnSnapshot(h SnapshotHandler) {
	c.mu.Lock()
	c.snapshotSubs = append(c.snapshotSubs, h)
	c.mu.Unlock()
}

// OnState registers a subscriber for state transitions.
func (c *Client) OnState(h StateHandler) {
	c.mu.Lock()
	c.stateSubs = append(c.stateSubs, h)
	c.mu.Unlock()
}

// Connect begins a connection attempt and returns immediately; progress is
// observed through the registered handlers. An id that does not match the
// gateway's format is a configuration error: the client stays Disconnected
// and no dial is attempted until Connect is called again with a fixed id.
func (c *Client) Connect() error {
	if !ValidUserID(c.userID) {
		err := fmt.Errorf("%w: %q", core.ErrInvalidUserID, c.userID)
		c.mu.Lock()
		c.state = StateDisconnected
		c.lastErr = err
		c.mu.Unlock()
		c.logger.Error("refusing to connect", "error", err)
		c.notifyState(StateDisconnected, err)
		return err
	}

	c.mu.Lock()
	if c.conn != nil || c.state == StateConnecting || c.state == StateReconnecting {
		c.mu.Unlock()
		return nil
	}
	c.closed = false
	c.lastErr = nil
	c.mu.Unlock()

	go c.dial()
	return nil
}

// Disconnect tears the connection down: socket closed, heartbeat and any
// pending reconnect timer cancelled, state Disconnected. It is idempotent
// and safe from any state, and is the only path that does not reconnect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.closed && c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.stopHeartbeatLocked()
	conn := c.conn
	c.conn = nil
	c.connGen++
	changed := c.state != StateDisconnected
	c.state = StateDisconnected
	c.attempt = 0
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if changed {
		c.logger.Info("disconnected")
		c.notifyState(StateDisconnected, nil)
	}
}

// ConnectionState returns a copy of the client's current state.
func (c *Client) ConnectionState() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ConnectionState{
		State:               c.state,
		Attempt:             c.attempt,
		NextAttemptAt:       c.nextAttemptAt,
		HeartbeatInterval:   c.heartbeatInterval,
		LastHeartbeatSentAt: c.lastHeartbeatSentAt,
		Err:                 c.lastErr,
	}
}

// LastSnapshot returns a copy of the most recently accepted snapshot.
func (c *Client) LastSnapshot() (core.PresenceSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastSnapshot == nil {
		return core.PresenceSnapshot{}, false
	}
	return c.lastSnapshot.Clone(), true
}

// UserID returns the watched user id.
func (c *Client) UserID() string { return c.userID }

func (c *Client) dial() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	c.state = StateConnecting
	c.mu.Unlock()
	c.notifyState(StateConnecting, nil)

	conn, resp, err := websocket.DefaultDialer.Dial(c.opts.GatewayURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.logger.Warn("gateway dial failed", "url", c.opts.GatewayURL, "error", err)
		c.scheduleReconnect(err)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.connGen++
	gen := c.connGen
	c.heartbeatStop = make(chan struct{})
	c.heartbeatRunning = false
	c.state = StateAwaitingHandshake
	c.mu.Unlock()
	c.notifyState(StateAwaitingHandshake, nil)

	sub, _ := json.Marshal(subscribeData{SubscribeToID: c.userID, APIKey: c.opts.APIKey})
	if err := c.send(Envelope{Op: OpSubscribe, D: sub}); err != nil {
		c.connLost(gen, err)
		return
	}

	go c.readLoop(conn, gen)
}

func (c *Client) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.connLost(gen, err)
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("dropping malformed gateway frame", "error", err)
			continue
		}

		switch env.Op {
		case OpHello:
			if !c.handleHello(gen, env.D) {
				return
			}
		case OpEvent:
			c.handleEvent(gen, env)
		default:
			c.logger.Debug("ignoring gateway frame", "op", env.Op)
		}
	}
}

// handleHello records the heartbeat cadence, sends one heartbeat right away
// and starts the recurring loop. Returns false when the connection was lost
// sending the first heartbeat.
func (c *Client) handleHello(gen int, d json.RawMessage) bool {
	var hd helloData
	if err := json.Unmarshal(d, &hd); err != nil || hd.HeartbeatIntervalMS <= 0 {
		c.logger.Warn("dropping malformed hello frame", "error", err)
		return true
	}
	interval := time.Duration(hd.HeartbeatIntervalMS) * time.Millisecond

	c.mu.Lock()
	if gen != c.connGen || c.closed {
		c.mu.Unlock()
		return false
	}
	c.heartbeatInterval = interval
	alreadyRunning := c.heartbeatRunning
	c.heartbeatRunning = true
	stop := c.heartbeatStop
	c.mu.Unlock()

	if err := c.sendHeartbeat(); err != nil {
		c.connLost(gen, err)
		return false
	}
	if !alreadyRunning {
		go c.heartbeatLoop(gen, interval, stop)
	}
	return true
}

func (c *Client) handleEvent(gen int, env Envelope) {
	if env.T != EventInitState && env.T != EventPresenceUpdate {
		c.logger.Debug("ignoring gateway event", "t", env.T)
		return
	}

	var snap core.PresenceSnapshot
	if err := json.Unmarshal(env.D, &snap); err != nil {
		c.logger.Warn("dropping malformed snapshot", "t", env.T, "error", err)
		return
	}
	if !snap.Valid() {
		c.logger.Warn("dropping snapshot without identity or status", "t", env.T)
		return
	}

	c.acceptSnapshot(gen, snap)
}

// acceptSnapshot replaces lastSnapshot wholesale and delivers copies to
// subscribers in registration order.
func (c *Client) acceptSnapshot(gen int, snap core.PresenceSnapshot) {
	c.mu.Lock()
	if gen != c.connGen || c.closed {
		c.mu.Unlock()
		return
	}
	c.lastSnapshot = &snap
	prev := c.state
	c.state = StateSubscribed
	c.attempt = 0
	c.lastErr = nil
	handlers := make([]SnapshotHandler, len(c.snapshotSubs))
	copy(handlers, c.snapshotSubs)
	c.mu.Unlock()

	if prev != StateSubscribed {
		c.logger.Info("subscribed", "status", string(snap.Status), "activities", len(snap.Activities))
		c.notifyState(StateSubscribed, nil)
	}
	for _, h := range handlers {
		c.deliver(h, snap.Clone())
	}
}

func (c *Client) deliver(h SnapshotHandler, snap core.PresenceSnapshot) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("snapshot subscriber panic recovered", "error", r)
		}
	}()
	h(snap)
}

func (c *Client) heartbeatLoop(gen int, interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.sendHeartbeat(); err != nil {
				// Heartbeat send failure is connection loss.
				c.connLost(gen, err)
				return
			}
		}
	}
}

func (c *Client) sendHeartbeat() error {
	if err := c.send(Envelope{Op: OpHeartbeat}); err != nil {
		return err
	}
	c.mu.Lock()
	c.lastHeartbeatSentAt = time.Now()
	c.mu.Unlock()
	return nil
}

func (c *Client) send(env Envelope) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errNotConnected
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// connLost handles socket close, socket error or heartbeat failure for the
// given connection generation. Stale generations are ignored so a loss is
// processed exactly once.
func (c *Client) connLost(gen int, cause error) {
	c.mu.Lock()
	if c.closed || gen != c.connGen || c.conn == nil {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.conn = nil
	c.stopHeartbeatLocked()
	c.mu.Unlock()

	_ = conn.Close()
	c.scheduleReconnect(cause)
}

func (c *Client) scheduleReconnect(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.attempt++
	attempt := c.attempt
	delay := backoffDelay(c.opts.BackoffBase, c.opts.BackoffCap, attempt)
	c.nextAttemptAt = time.Now().Add(delay)
	c.state = StateReconnecting
	c.lastErr = cause
	c.reconnectTimer = time.AfterFunc(delay, c.dial)
	c.mu.Unlock()

	c.logger.Warn("connection lost, reconnecting",
		"attempt", attempt,
		"delay", delay,
		"error", cause,
	)
	c.notifyState(StateReconnecting, cause)
}

// stopHeartbeatLocked must be called with c.mu held.
func (c *Client) stopHeartbeatLocked() {
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
	c.heartbeatRunning = false
}

func (c *Client) notifyState(state State, err error) {
	c.mu.Lock()
	handlers := make([]StateHandler, len(c.stateSubs))
	copy(handlers, c.stateSubs)
	c.mu.Unlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("state subscriber panic recovered", "error", r)
				}
			}()
			h(state, err)
		}()
	}
}
