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

package logging

import (
	"log/slog"

	"github.com/coah80/coleswebsite-sub000/pkg/core"
)

// DeliveryLogger records every snapshot event handed to a surface session.
type DeliveryLogger struct {
	logger *slog.Logger
}

func NewDeliveryLogger(logger *slog.Logger) *DeliveryLogger {
	return &DeliveryLogger{logger: logger}
}

func (d *DeliveryLogger) Log(evt core.SnapshotEvent, surfaceName, sessionID string) {
	d.logger.Info("delivery",
		"event_id", evt.ID,
		"user_id", evt.UserID,
		"surface", surfaceName,
		"session_id", sessionID,
		"status", string(evt.Snapshot.Status),
		"activities", len(evt.Snapshot.Activities),
		"initial", evt.Initial,
		"timestamp", evt.Timestamp,
	)
}
