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

// Package presence maintains live connections to a presence gateway and
// derives display-ready view state from the snapshots it pushes.
package presence

import (
	"encoding/json"
	"regexp"
	"time"
)

// Gateway opcodes. Op 0 dispatches events (inspect T), op 1 is the server
// hello carrying the heartbeat cadence, ops 2 and 3 are client-sent.
const (
	OpEvent     = 0
	OpHello     = 1
	OpSubscribe = 2
	OpHeartbeat = 3
)

// Event dispatch subtypes carried in Envelope.T.
const (
	EventInitState      = "INIT_STATE"
	EventPresenceUpdate = "PRESENCE_UPDATE"
)

// Envelope is the gateway frame shape in both directions.
type Envelope struct {
	Op int             `json:"op"`
	T  string          `json:"t,omitempty"`
	D  json.RawMessage `json:"d,omitempty"`
}

type helloData struct {
	HeartbeatIntervalMS int64 `json:"heartbeat_interval_ms"`
}

// subscribeData asks the gateway for one user's feed. The api key is
// optional depending on deployment.
type subscribeData struct {
	SubscribeToID string `json:"subscribe_to_id"`
	APIKey        string `json:"api_key,omitempty"`
}

// Watched user ids are snowflakes: fixed-length numeric strings.
var userIDPattern = regexp.MustCompile(`^[0-9]{17,19}$`)

// ValidUserID reports whether id matches the gateway's required id format.
func ValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}

// backoffDelay returns the reconnect delay for the given 1-based attempt:
// base doubled per attempt, never exceeding cap.
func backoffDelay(base, cap time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if cap <= 0 {
		cap = 30 * time.Second
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	if d > cap {
		return cap
	}
	return d
}
