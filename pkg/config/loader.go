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

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coah80/coleswebsite-sub000/pkg/core"
)

type Config struct {
	Gateway  GatewayConfig   `yaml:"gateway"`
	Watchers []WatcherConfig `yaml:"watchers"`
	Surfaces []SurfaceConfig `yaml:"surfaces"`
	Sinks    []SinkConfig    `yaml:"sinks"`
	Store    StoreConfig     `yaml:"store"`
	Filter   FilterConfig    `yaml:"filter"`
	Routes   []RouteConfig   `yaml:"routes"`
}

type GatewayConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	BackoffBase string `yaml:"backoff_base"`
	BackoffCap  string `yaml:"backoff_cap"`
}

type WatcherConfig struct {
	UserID string `yaml:"user_id"`
}

type SurfaceConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Port int    `yaml:"port"`
}

type SinkConfig struct {
	Name   string            `yaml:"name"`
	Type   string            `yaml:"type"`
	Config map[string]string `yaml:"config"`
}

type StoreConfig struct {
	Backend   string `yaml:"backend"`
	RedisAddr string `yaml:"redis_addr"`
	TTL       string `yaml:"ttl"`
}

type FilterConfig struct {
	HiddenActivities []string `yaml:"hidden_activities"`
	HideSpotify      bool     `yaml:"hide_spotify"`
}

type RouteConfig struct {
	Source string `yaml:"source"`
	UserID string `yaml:"user_id"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// ParseDurationOr parses s as a duration, falling back to def when s is
// empty or malformed.
func ParseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func (rc RouteConfig) ToRoute() *core.WatchRoute {
	return &core.WatchRoute{
		Source: rc.Source,
		UserID: rc.UserID,
	}
}

// StoreTTL returns the configured snapshot TTL, defaulting to an hour.
func (sc StoreConfig) StoreTTL() time.Duration {
	return ParseDurationOr(sc.TTL, time.Hour)
}
