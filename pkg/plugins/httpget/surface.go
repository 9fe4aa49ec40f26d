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

// Package httpget serves the latest cached snapshot over plain request/
// response for consumers that do not hold a stream open.
package httpget

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coah80/coleswebsite-sub000/pkg/core"
)

type Surface struct {
	name   string
	port   int
	store  core.SnapshotStore
	server *http.Server
	logger *slog.Logger
}

func New(name string, port int, snapStore core.SnapshotStore, logger *slog.Logger) *Surface {
	return &Surface{name: name, port: port, store: snapStore, logger: logger}
}

func (s *Surface) Name() string { return s.name }
func (s *Surface) Type() string { return "http_get" }

func (s *Surface) Start(ctx context.Context, _ core.SessionManager) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/users/", s.handleUser)

	s.server = &http.Server{Addr: fmt.Sprintf(":%d", s.port), Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http_get surface starting", "name", s.name, "port", s.port)
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Surface) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Surface) handleUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET required", http.StatusMethodNotAllowed)
		return
	}

	userID := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	if userID == "" || strings.Contains(userID, "/") {
		http.Error(w, "user id required", http.StatusBadRequest)
		return
	}

	snap, ok, err := s.store.Get(r.Context(), userID)
	if err != nil {
		s.logger.Error("snapshot lookup failed", "user_id", userID, "error", err)
		http.Error(w, "snapshot lookup failed", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "no snapshot for user", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.logger.Error("encode snapshot failed", "user_id", userID, "error", err)
	}
}
