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

package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/coah80/coleswebsite-sub000/pkg/core"
)

// Sink publishes every accepted snapshot event to a kafka topic, keyed by
// watched user id so per-user ordering survives partitioning.
type Sink struct {
	name    string
	brokers []string
	topic   string
	writer  *kafka.Writer
	logger  *slog.Logger
}

func New(name string, brokers []string, topic string, logger *slog.Logger) *Sink {
	return &Sink{
		name:    name,
		brokers: brokers,
		topic:   topic,
		logger:  logger,
	}
}

func (s *Sink) Name() string { return s.name }
func (s *Sink) Type() string { return "kafka" }

func (s *Sink) Connect(ctx context.Context) error {
	if s.topic == "" {
		return fmt.Errorf("kafka sink %s: topic is required", s.name)
	}
	s.writer = &kafka.Writer{
		Addr:     kafka.TCP(s.brokers...),
		Topic:    s.topic,
		Balancer: &kafka.LeastBytes{},
	}
	s.logger.Info("kafka sink connected",
		"name", s.name,
		"brokers", strings.Join(s.brokers, ","),
		"topic", s.topic,
	)
	return nil
}

func (s *Sink) Disconnect(ctx context.Context) error {
	if s.writer != nil {
		return s.writer.Close()
	}
	return nil
}

func (s *Sink) Publish(ctx context.Context, evt core.SnapshotEvent) error {
	if s.writer == nil {
		return nil
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal snapshot event: %w", err)
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.UserID),
		Value: data,
		Time:  evt.Timestamp,
	})
}
