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

package mqtt5

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"

	"github.com/coah80/coleswebsite-sub000/pkg/core"
)

// Sink publishes snapshot events to an MQTT v5 broker. The topic gets the
// user id appended so consumers can subscribe per watched user.
type Sink struct {
	name      string
	brokerURL string
	topic     string
	cm        *autopaho.ConnectionManager
	logger    *slog.Logger
}

func New(name, brokerURL, topic string, logger *slog.Logger) *Sink {
	return &Sink{
		name:      name,
		brokerURL: brokerURL,
		topic:     topic,
		logger:    logger,
	}
}

func (s *Sink) Name() string { return s.name }
func (s *Sink) Type() string { return "mqtt5" }

func (s *Sink) Connect(ctx context.Context) error {
	serverURL, err := url.Parse(s.brokerURL)
	if err != nil {
		return fmt.Errorf("mqtt5 invalid URL: %w", err)
	}

	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{serverURL},
		KeepAlive:                     30,
		CleanStartOnInitialConnection: true,
		SessionExpiryInterval:         60,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
			s.logger.Info("mqtt5 connection up", "name", s.name)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "presence-" + s.name + "-" + uuid.New().String()[:8],
		},
	}

	s.cm, err = autopaho.NewConnection(ctx, cfg)
	if err != nil {
		return fmt.Errorf("mqtt5 connection: %w", err)
	}

	if err := s.cm.AwaitConnection(ctx); err != nil {
		return fmt.Errorf("mqtt5 await connection: %w", err)
	}

	s.logger.Info("mqtt5 sink connected", "name", s.name, "broker", s.brokerURL)
	return nil
}

func (s *Sink) Disconnect(ctx context.Context) error {
	if s.cm != nil {
		return s.cm.Disconnect(ctx)
	}
	return nil
}

func (s *Sink) Publish(ctx context.Context, evt core.SnapshotEvent) error {
	if s.cm == nil {
		return nil
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal snapshot event: %w", err)
	}
	_, err = s.cm.Publish(ctx, &paho.Publish{
		QoS:     1,
		Topic:   s.topic + "/" + evt.UserID,
		Payload: data,
	})
	return err
}
