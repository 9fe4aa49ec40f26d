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

// Package ws re-serves the gateway wire protocol downstream, so a browser
// widget written against the upstream gateway can point at this engine
// unmodified.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coah80/coleswebsite-sub000/internal/logging"
	"github.com/coah80/coleswebsite-sub000/pkg/core"
	"github.com/coah80/coleswebsite-sub000/pkg/presence"
)

// heartbeatIntervalMS is advertised to downstream clients in the hello
// frame. Their heartbeats are accepted and discarded; read liveness is what
// actually detects a dead peer.
const heartbeatIntervalMS = 30000

type Surface struct {
	name        string
	port        int
	upgrader    websocket.Upgrader
	manager     core.SessionManager
	server      *http.Server
	logger      *slog.Logger
	deliveryLog *logging.DeliveryLogger
	sessions    sync.Map
}

func New(name string, port int, logger *slog.Logger, deliveryLog *logging.DeliveryLogger) *Surface {
	return &Surface{
		name: name,
		port: port,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:      logger,
		deliveryLog: deliveryLog,
	}
}

func (s *Surface) Name() string { return s.name }
func (s *Surface) Type() string { return "websocket" }

func (s *Surface) Start(ctx context.Context, manager core.SessionManager) error {
	s.manager = manager

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleConnection)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("websocket surface starting", "name", s.name, "port", s.port)
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Surface) Stop(ctx context.Context) error {
	s.sessions.Range(func(_, val any) bool {
		sess := val.(*core.Session)
		s.manager.DestroySession(sess.ID)
		return true
	})
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Surface) handleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	clientID := core.GenerateClientID(r)

	hello, _ := json.Marshal(map[string]int64{"heartbeat_interval_ms": heartbeatIntervalMS})
	if err := writeEnvelope(conn, presence.Envelope{Op: presence.OpHello, D: hello}); err != nil {
		s.logger.Error("ws hello write failed", "client_id", clientID, "error", err)
		return
	}

	// The subscribe frame opens the session; heartbeats before it are fine.
	sess := s.awaitSubscribe(conn, r, clientID)
	if sess == nil {
		return
	}

	s.sessions.Store(clientID, sess)
	defer func() {
		s.sessions.Delete(clientID)
		s.manager.DestroySession(sess.ID)
		s.logger.Info("ws client disconnected", "client_id", clientID)
	}()

	s.logger.Info("ws client connected", "client_id", clientID, "session_id", sess.ID)

	go s.downstreamLoop(conn, sess)
	s.readLoop(conn, sess)
}

func (s *Surface) awaitSubscribe(conn *websocket.Conn, r *http.Request, clientID string) *core.Session {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return nil
		}

		var env presence.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			s.logger.Warn("ws dropping malformed frame", "client_id", clientID, "error", err)
			continue
		}

		switch env.Op {
		case presence.OpSubscribe:
			sess, err := s.manager.CreateSession(r.Context(), s.name, clientID)
			if err != nil {
				s.logger.Error("ws session creation failed", "client_id", clientID, "error", err)
				return nil
			}
			return sess
		case presence.OpHeartbeat:
			continue
		default:
			s.logger.Debug("ws ignoring frame before subscribe", "op", env.Op)
		}
	}
}

func (s *Surface) downstreamLoop(conn *websocket.Conn, sess *core.Session) {
	for {
		select {
		case <-sess.Done:
			return
		case evt := <-sess.Downstream:
			t := presence.EventPresenceUpdate
			if evt.Initial {
				t = presence.EventInitState
			}
			data, err := json.Marshal(evt.Snapshot)
			if err != nil {
				s.logger.Error("marshal snapshot failed", "client_id", sess.ClientID, "error", err)
				continue
			}
			if err := writeEnvelope(conn, presence.Envelope{Op: presence.OpEvent, T: t, D: data}); err != nil {
				s.logger.Error("ws write failed", "client_id", sess.ClientID, "error", err)
				return
			}
			if s.deliveryLog != nil {
				s.deliveryLog.Log(evt, s.name, sess.ID)
			}
		}
	}
}

// readLoop keeps draining client frames (heartbeats) until the peer goes
// away; its return tears the connection down.
func (s *Surface) readLoop(conn *websocket.Conn, sess *core.Session) {
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Error("ws read error", "client_id", sess.ClientID, "error", err)
			}
			return
		}
	}
}

func writeEnvelope(conn *websocket.Conn, env presence.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
