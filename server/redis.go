/*
 * Copyright 2024 The Autodash Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package server

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/rgbkrk/autodash/engine"
)

// instanceIDLen is the length of an xid string. Published payloads carry the
// publishing instance's id as a fixed-width prefix so a relay can skip its
// own messages.
const instanceIDLen = 20

// redisBridge fans frames out across relay instances through redis pub/sub.
// Each document maps to one channel under the configured prefix.
type redisBridge struct {
	client     *redis.Client
	pubsub     *redis.PubSub
	prefix     string
	instanceID string
	deliver    func(data []byte)
	logger     *zap.SugaredLogger
}

func newRedisBridge(conf *Config, deliver func([]byte), logger *zap.SugaredLogger) (*redisBridge, error) {
	client := redis.NewClient(&redis.Options{Addr: conf.RedisAddr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", conf.RedisAddr, err)
	}

	b := &redisBridge{
		client:     client,
		prefix:     conf.RedisChannelPrefix,
		instanceID: xid.New().String(),
		deliver:    deliver,
		logger:     logger,
	}
	b.pubsub = client.PSubscribe(context.Background(), b.prefix+":*")
	logger.Infof("redis bridge connected to %s as %s", conf.RedisAddr, b.instanceID)
	return b, nil
}

// run pumps subscribed messages into deliver until stop closes or the
// subscription ends.
func (b *redisBridge) run(stop <-chan struct{}) {
	ch := b.pubsub.Channel()
	for {
		select {
		case <-stop:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			payload := []byte(msg.Payload)
			if len(payload) <= instanceIDLen {
				b.logger.Warnf("short redis payload on %s", msg.Channel)
				continue
			}
			if string(payload[:instanceIDLen]) == b.instanceID {
				continue
			}
			b.deliver(payload[instanceIDLen:])
		}
	}
}

// publish sends a frame to the other relay instances. Publish failures are
// logged and dropped; local members already got the frame.
func (b *redisBridge) publish(docID engine.DocumentID, data []byte) {
	payload := make([]byte, 0, instanceIDLen+len(data))
	payload = append(payload, b.instanceID...)
	payload = append(payload, data...)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	channel := fmt.Sprintf("%s:%s", b.prefix, docID)
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		b.logger.Warnf("publish to %s: %v", channel, err)
	}
}

func (b *redisBridge) close() {
	_ = b.pubsub.Close()
	_ = b.client.Close()
}
