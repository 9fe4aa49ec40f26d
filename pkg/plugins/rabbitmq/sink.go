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

package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/coah80/coleswebsite-sub000/pkg/core"
)

// Sink publishes snapshot events to a durable rabbitmq queue.
type Sink struct {
	name   string
	url    string
	queue  string
	conn   *amqp.Connection
	pubCh  *amqp.Channel
	logger *slog.Logger
}

func New(name, url, queue string, logger *slog.Logger) *Sink {
	return &Sink{
		name:   name,
		url:    url,
		queue:  queue,
		logger: logger,
	}
}

func (s *Sink) Name() string { return s.name }
func (s *Sink) Type() string { return "rabbitmq" }

func (s *Sink) Connect(ctx context.Context) error {
	var err error
	s.conn, err = amqp.Dial(s.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	s.pubCh, err = s.conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq publish channel: %w", err)
	}

	if s.queue != "" {
		_, err := s.pubCh.QueueDeclare(s.queue, true, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("rabbitmq queue declare %s: %w", s.queue, err)
		}
	}

	s.logger.Info("rabbitmq sink connected", "name", s.name, "url", s.url)
	return nil
}

func (s *Sink) Disconnect(ctx context.Context) error {
	if s.pubCh != nil {
		s.pubCh.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Sink) Publish(ctx context.Context, evt core.SnapshotEvent) error {
	if s.queue == "" || s.pubCh == nil {
		return nil
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal snapshot event: %w", err)
	}
	return s.pubCh.PublishWithContext(ctx,
		"",
		s.queue,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        data,
			MessageId:   evt.ID,
			Timestamp:   evt.Timestamp,
		},
	)
}
