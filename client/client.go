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

// Package client assembles an editing session: it owns the bundled engine,
// keeps it connected to a relay through transport bridges, and opens typed
// document handles.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/rgbkrk/autodash/engine"
	"github.com/rgbkrk/autodash/engine/repo"
	"github.com/rgbkrk/autodash/internal/log"
	"github.com/rgbkrk/autodash/pkg/document"
	"github.com/rgbkrk/autodash/transport"
)

// frameBuffer sizes the channels between a bridge and the engine.
const frameBuffer = 16

// ErrClientClosed is returned when operating on a closed client.
var ErrClientClosed = errors.New("client closed")

// Client is one collaborator's connection to a relay.
type Client struct {
	relayURL string
	options  Options
	repo     *repo.Repo
	logger   *zap.SugaredLogger

	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// Dial connects to the relay. The initial connection is required: an
// unreachable relay at startup is fatal, while later drops are handled by a
// supervisor that redials with exponential backoff and re-requests document
// state on every reconnect.
func Dial(ctx context.Context, relayURL string, opts ...Option) (*Client, error) {
	options := Options{SyncTimeout: DefaultSyncTimeout}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Actor == "" {
		options.Actor = xid.New().String()
	}
	if options.Name == "" {
		options.Name = options.Actor
	}
	if options.Logger == nil {
		options.Logger = log.Logger
	}

	repoOpts := []repo.Option{
		repo.WithActor(options.Actor),
		repo.WithLogger(options.Logger),
	}
	if options.Storage != nil {
		repoOpts = append(repoOpts, repo.WithStorage(options.Storage))
	}

	bridge, err := transport.Dial(ctx, relayURL)
	if err != nil {
		return nil, fmt.Errorf("connect to relay: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		relayURL: relayURL,
		options:  options,
		repo:     repo.New(repoOpts...),
		logger:   options.Logger,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go c.supervise(runCtx, bridge)
	return c, nil
}

// supervise runs one bridge after another until the client closes. The
// first bridge is the one Dial already established.
func (c *Client) supervise(ctx context.Context, bridge *transport.Bridge) {
	defer close(c.done)

	for {
		if err := c.runBridge(ctx, bridge); err != nil {
			c.logger.Warnf("relay connection lost: %v", err)
		}
		if ctx.Err() != nil {
			return
		}

		policy := backoff.NewExponentialBackOff()
		policy.MaxElapsedTime = 0
		next := backoff.WithContext(policy, ctx)

		redial := func() error {
			var err error
			bridge, err = transport.Dial(ctx, c.relayURL)
			return err
		}
		if err := backoff.RetryNotify(redial, next, func(err error, wait time.Duration) {
			c.logger.Debugf("relay redial failed, retrying in %s: %v", wait, err)
		}); err != nil {
			// Only context cancellation ends the retry loop.
			return
		}
		c.logger.Infof("reconnected to relay %s", c.relayURL)
	}
}

// runBridge wires one bridge to the engine and blocks until either side
// ends. The engine re-announces every open document when the connection
// registers, which doubles as the post-reconnect sync request.
func (c *Client) runBridge(ctx context.Context, bridge *transport.Bridge) error {
	bridgeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	inbound := make(chan []byte, frameBuffer)
	outbound := make(chan []byte, frameBuffer)

	bridgeErr := make(chan error, 1)
	go func() {
		bridgeErr <- bridge.Run(bridgeCtx, inbound, outbound)
	}()

	// Connect returns when inbound closes, i.e. when the bridge's read pump
	// ends for any reason.
	connErr := c.repo.Connect(bridgeCtx, inbound, outbound)
	cancel()
	_ = bridge.Close()

	if err := <-bridgeErr; err != nil {
		return err
	}
	if connErr != nil && !errors.Is(connErr, context.Canceled) {
		return connErr
	}
	return nil
}

// Actor returns the id stamped on this client's writes.
func (c *Client) Actor() string { return c.options.Actor }

// Name returns the collaborator name shown to peers.
func (c *Client) Name() string { return c.options.Name }

// Engine exposes the underlying engine.
func (c *Client) Engine() engine.Engine { return c.repo }

// Document opens the referenced document and waits, bounded by the
// configured sync timeout, for remote state. A timeout is not an error: the
// handle is returned with whatever state is locally available and the
// caller proceeds degraded.
func (c *Client) Document(ctx context.Context, ref string) (*document.Handle, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	c.mu.Unlock()

	id, err := ParseDocumentRef(ref)
	if err != nil {
		return nil, err
	}

	h, err := document.Open(ctx, c.repo, id)
	if err != nil {
		return nil, err
	}
	if err := h.AwaitSync(ctx, c.options.SyncTimeout); err != nil {
		if !errors.Is(err, document.ErrSyncUnavailable) {
			return nil, err
		}
		c.logger.Warnf("document %s not confirmed within %s, proceeding with local state",
			id, c.options.SyncTimeout)
	}
	return h, nil
}

// Close tears down the relay connection and the engine, flushing snapshot
// storage.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	<-c.done
	return c.repo.Close()
}
