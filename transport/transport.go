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

// Package transport bridges a websocket connection and the synchronization
// engine. It forwards opaque binary frames in both directions and never
// inspects a payload. Reconnection policy belongs to the caller.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rgbkrk/autodash/internal/log"
)

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 10 * time.Second
)

// ErrConnection is returned when the relay is unreachable.
var ErrConnection = errors.New("relay connection failed")

// Bridge relays binary frames between one websocket connection and the
// engine. A bridge serves a single connection; dial again for a new one.
type Bridge struct {
	conn   *websocket.Conn
	logger *zap.SugaredLogger
}

// Dial connects to the relay at the given websocket URL.
func Dial(ctx context.Context, url string) (*Bridge, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnection, url, err)
	}
	return &Bridge{conn: conn, logger: log.Logger}, nil
}

// Run pumps frames in both directions until ctx is done, either side closes,
// or a read/write fails. Binary frames from the socket are delivered on
// inbound; frames read from outbound are written to the socket. Termination
// of either direction shuts down the other before Run returns, so no
// half-open pump leaks. A close during shutdown is not an error.
func (b *Bridge) Run(ctx context.Context, inbound chan<- []byte, outbound <-chan []byte) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	readErr := make(chan error, 1)
	go func() {
		readErr <- b.readPump(runCtx, inbound)
	}()

	writeErr := b.writePump(runCtx, outbound)
	cancel()
	_ = b.conn.Close()
	rerr := <-readErr

	if err := firstRealError(writeErr, rerr); err != nil && ctx.Err() == nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// Close tears down the underlying connection, unblocking a running pump.
func (b *Bridge) Close() error {
	return b.conn.Close()
}

// readPump delivers binary frames to inbound. Close frames end the pump;
// other frame kinds are ignored.
func (b *Bridge) readPump(ctx context.Context, inbound chan<- []byte) error {
	defer close(inbound)
	for {
		kind, data, err := b.conn.ReadMessage()
		if err != nil {
			if isClosedConn(err) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if kind != websocket.BinaryMessage {
			b.logger.Debugf("ignoring frame kind %d", kind)
			continue
		}
		select {
		case inbound <- data:
		case <-ctx.Done():
			return nil
		}
	}
}

func (b *Bridge) writePump(ctx context.Context, outbound <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-outbound:
			if !ok {
				return nil
			}
			if err := b.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return err
			}
			if err := b.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				if isClosedConn(err) || ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func firstRealError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// isClosedConn reports whether the error is an expected connection shutdown
// rather than a transport fault worth surfacing.
func isClosedConn(err error) bool {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) {
		return true
	}
	if errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return false
}
