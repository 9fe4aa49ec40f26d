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

package plugins

import (
	"context"
	"log/slog"
	"sync"

	"github.com/coah80/coleswebsite-sub000/pkg/core"
)

type Registry struct {
	surfaces map[string]core.Surface
	sinks    map[string]core.Sink
	healthy  map[string]bool
	logger   *slog.Logger
	mu       sync.RWMutex
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		surfaces: make(map[string]core.Surface),
		sinks:    make(map[string]core.Sink),
		healthy:  make(map[string]bool),
		logger:   logger,
	}
}

func (r *Registry) RegisterSurface(s core.Surface) {
	r.mu.Lock()
	r.surfaces[s.Name()] = s
	r.mu.Unlock()
	r.logger.Info("registered surface", "name", s.Name(), "type", s.Type())
}

func (r *Registry) RegisterSink(s core.Sink) {
	r.mu.Lock()
	r.sinks[s.Name()] = s
	r.mu.Unlock()
	r.logger.Info("registered sink", "name", s.Name(), "type", s.Type())
}

func (r *Registry) Surfaces() map[string]core.Surface {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make(map[string]core.Surface, len(r.surfaces))
	for k, v := range r.surfaces {
		cp[k] = v
	}
	return cp
}

// Sinks returns only the sinks that connected. A dead broker must not stop
// the presence feed from serving its surfaces.
func (r *Registry) Sinks() map[string]core.Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make(map[string]core.Sink, len(r.sinks))
	for k, v := range r.sinks {
		if r.healthy[k] {
			cp[k] = v
		}
	}
	return cp
}

func (r *Registry) ConnectSinks(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	connected := 0
	for name, sink := range r.sinks {
		if err := sink.Connect(ctx); err != nil {
			r.logger.Error("sink connect failed", "name", name, "error", err)
			r.healthy[name] = false
		} else {
			r.healthy[name] = true
			connected++
		}
	}
	return connected
}

func (r *Registry) IsSinkHealthy(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.healthy[name]
}

func (r *Registry) StartSurfaces(ctx context.Context, manager core.SessionManager) {
	for name, s := range r.Surfaces() {
		go func(n string, s core.Surface) {
			if err := s.Start(ctx, manager); err != nil {
				r.logger.Error("surface failed", "name", n, "error", err)
			}
		}(name, s)
	}
}

func (r *Registry) StopAll(ctx context.Context) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, s := range r.surfaces {
		r.logger.Info("stopping surface", "name", name)
		s.Stop(ctx)
	}
	for name, s := range r.sinks {
		r.logger.Info("stopping sink", "name", name)
		s.Disconnect(ctx)
	}
}
