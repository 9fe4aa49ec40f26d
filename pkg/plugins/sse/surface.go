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

package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coah80/coleswebsite-sub000/internal/logging"
	"github.com/coah80/coleswebsite-sub000/pkg/core"
)

type Surface struct {
	name        string
	port        int
	manager     core.SessionManager
	server      *http.Server
	logger      *slog.Logger
	deliveryLog *logging.DeliveryLogger
	sessions    sync.Map
}

func New(name string, port int, logger *slog.Logger, deliveryLog *logging.DeliveryLogger) *Surface {
	return &Surface{name: name, port: port, logger: logger, deliveryLog: deliveryLog}
}

func (s *Surface) Name() string { return s.name }
func (s *Surface) Type() string { return "sse" }

func (s *Surface) Start(ctx context.Context, manager core.SessionManager) error {
	s.manager = manager
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleSSE)

	s.server = &http.Server{Addr: fmt.Sprintf(":%d", s.port), Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("sse surface starting", "name", s.name, "port", s.port)
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

func (s *Surface) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientID := uuid.New().String()
	sess, err := s.manager.CreateSession(r.Context(), s.name, clientID)
	if err != nil {
		s.logger.Error("sse session creation failed", "error", err)
		http.Error(w, "session creation failed", http.StatusInternalServerError)
		return
	}

	s.sessions.Store(clientID, sess)
	defer func() {
		s.sessions.Delete(clientID)
		s.manager.DestroySession(sess.ID)
		s.logger.Info("sse client disconnected", "client_id", clientID)
	}()

	s.logger.Info("sse client connected", "client_id", clientID, "session_id", sess.ID)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sess.Done:
			return
		case evt := <-sess.Downstream:
			data, err := json.Marshal(evt)
			if err != nil {
				s.logger.Error("marshal sse event failed", "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %s\ndata: %s\n\n", evt.ID, data)
			flusher.Flush()

			if s.deliveryLog != nil {
				s.deliveryLog.Log(evt, s.name, sess.ID)
			}
		}
	}
}
