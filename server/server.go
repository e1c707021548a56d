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

// Package server provides the sync relay. The relay routes opaque sync
// frames between the websocket connections interested in a document and
// keeps its own merged copy of each document so it can answer sync requests
// after the writers have gone away. Ephemeral frames are routed but never
// stored.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rgbkrk/autodash/engine"
	"github.com/rgbkrk/autodash/engine/repo"
	"github.com/rgbkrk/autodash/internal/log"
)

// relayActor is stamped on snapshots the relay synthesizes from its held
// copy, so clients can tell them apart from peer writes in logs.
const relayActor = "relay"

// member is one websocket connection's place in the fanout. Outbound frames
// pass through a bounded queue; overflow drops the oldest frame, which a
// later full snapshot supersedes.
type member struct {
	id   string
	send chan []byte
}

func (m *member) enqueue(data []byte) bool {
	select {
	case m.send <- data:
		return true
	default:
	}
	select {
	case <-m.send:
	default:
	}
	select {
	case m.send <- data:
	default:
	}
	return false
}

// Server is the sync relay server.
type Server struct {
	conf    *Config
	logger  *zap.SugaredLogger
	metrics *Metrics

	upgrader websocket.Upgrader

	mu    sync.Mutex
	rooms map[engine.DocumentID]*room

	redis *redisBridge

	httpServer    *http.Server
	metricsServer *http.Server

	shutdown   bool
	shutdownCh chan struct{}
	wg         sync.WaitGroup
}

// New creates a new relay server instance.
func New(conf *Config) (*Server, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		conf:    conf,
		logger:  log.Logger,
		metrics: NewMetrics(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The relay has no credentials to protect; origin checks are
			// left to a fronting proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		rooms:      make(map[engine.DocumentID]*room),
		shutdownCh: make(chan struct{}),
	}

	if conf.RedisAddr != "" {
		bridge, err := newRedisBridge(conf, s.deliverFromRedis, s.logger)
		if err != nil {
			return nil, err
		}
		s.redis = bridge
	}

	return s, nil
}

// Handler returns the websocket upgrade handler. Exposed so the relay can be
// mounted under a test server or an existing mux.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serveWS)
}

// Start begins serving. It returns after the listeners are bound; serving
// continues on background goroutines until Shutdown.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.conf.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.conf.ListenAddr, err)
	}

	if s.redis != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.redis.run(s.shutdownCh)
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveWS)
	s.httpServer = &http.Server{Handler: mux}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("relay serve: %v", err)
		}
	}()
	s.logger.Infof("relay listening on %s", s.conf.ListenAddr)

	if s.conf.MetricsAddr != "" {
		metricsLis, err := net.Listen("tcp", s.conf.MetricsAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", s.conf.MetricsAddr, err)
		}
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", s.metrics.Handler())
		s.metricsServer = &http.Server{Handler: metricsMux}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.metricsServer.Serve(metricsLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Errorf("metrics serve: %v", err)
			}
		}()
		s.logger.Infof("metrics on http://%s/metrics", s.conf.MetricsAddr)
	}

	return nil
}

// Shutdown stops serving and waits for the background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true
	s.mu.Unlock()
	close(s.shutdownCh)

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if s.metricsServer != nil {
		if merr := s.metricsServer.Shutdown(ctx); err == nil {
			err = merr
		}
	}
	if s.redis != nil {
		s.redis.close()
	}
	s.wg.Wait()
	return err
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("upgrade from %s: %v", r.RemoteAddr, err)
		return
	}

	m := &member{
		id:   uuid.New().String(),
		send: make(chan []byte, s.conf.SendBuffer),
	}
	s.metrics.ConnectionOpened()
	s.logger.Debugf("connection %s opened from %s", m.id, r.RemoteAddr)

	done := make(chan struct{})
	go s.writePump(ws, m, done)

	joined := make(map[engine.DocumentID]*room)
	s.readPump(ws, m, joined)

	close(done)
	_ = ws.Close()
	for id, rm := range joined {
		if rm.leave(m) == 0 {
			s.dropRoom(id, rm)
		}
	}
	s.metrics.ConnectionClosed()
	s.logger.Debugf("connection %s closed", m.id)
}

func (s *Server) writePump(ws *websocket.Conn, m *member, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-s.shutdownCh:
			_ = ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(time.Second),
			)
			return
		case data := <-m.send:
			_ = ws.SetWriteDeadline(time.Now().Add(s.conf.WriteTimeout))
			if err := ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
				s.logger.Debugf("write to %s: %v", m.id, err)
				return
			}
		}
	}
}

func (s *Server) readPump(ws *websocket.Conn, m *member, joined map[engine.DocumentID]*room) {
	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				s.logger.Debugf("read from %s: %v", m.id, err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		s.handleFrame(m, joined, data)
	}
}

func (s *Server) handleFrame(m *member, joined map[engine.DocumentID]*room, data []byte) {
	f, err := repo.DecodeFrame(data)
	if err != nil {
		s.logger.Warnf("dropping frame from %s: %v", m.id, err)
		return
	}
	if f.DocID == "" {
		s.logger.Warnf("dropping %s frame without document id from %s", f.Kind, m.id)
		return
	}
	s.metrics.FrameHandled(string(f.Kind))

	rm, ok := joined[f.DocID]
	if !ok {
		rm = s.roomFor(f.DocID)
		if rm.join(m) {
			joined[f.DocID] = rm
		}
	}

	switch f.Kind {
	case repo.FrameSnapshot:
		changed := rm.merge(f.Fields)
		rm.broadcast(m.id, data, s.metrics)
		if changed && s.redis != nil {
			s.redis.publish(f.DocID, data)
		}

	case repo.FrameRequest:
		if snap := rm.snapshot(); snap != nil {
			s.reply(m, repo.Frame{
				Kind:   repo.FrameSnapshot,
				DocID:  f.DocID,
				Actor:  relayActor,
				Fields: snap,
			})
		} else {
			s.reply(m, repo.Frame{Kind: repo.FrameAbsent, DocID: f.DocID})
		}
		// Peers that persisted the document locally can still answer with a
		// fresher snapshot than the relay holds.
		rm.broadcast(m.id, data, s.metrics)

	case repo.FrameEphemeral:
		rm.broadcast(m.id, data, s.metrics)
		if s.redis != nil {
			s.redis.publish(f.DocID, data)
		}

	case repo.FrameAbsent:
		// Clients do not send absence confirmations; drop.
	}
}

func (s *Server) reply(m *member, f repo.Frame) {
	data, err := repo.EncodeFrame(f)
	if err != nil {
		s.logger.Errorf("encode %s reply: %v", f.Kind, err)
		return
	}
	if !m.enqueue(data) {
		s.metrics.FrameDropped()
	}
}

// deliverFromRedis applies a frame published by another relay instance.
// Snapshots are merged into the held copy; everything is fanned out to every
// local member, since the original sender is connected elsewhere.
func (s *Server) deliverFromRedis(data []byte) {
	f, err := repo.DecodeFrame(data)
	if err != nil {
		s.logger.Warnf("dropping redis frame: %v", err)
		return
	}

	s.mu.Lock()
	rm, ok := s.rooms[f.DocID]
	s.mu.Unlock()
	if !ok {
		// No local member cares about this document.
		return
	}

	if f.Kind == repo.FrameSnapshot {
		rm.merge(f.Fields)
	}
	rm.broadcast("", data, s.metrics)
}

func (s *Server) roomFor(id engine.DocumentID) *room {
	s.mu.Lock()
	defer s.mu.Unlock()
	rm, ok := s.rooms[id]
	if !ok {
		rm = newRoom(id)
		s.rooms[id] = rm
		s.metrics.RoomOpened()
		s.logger.Debugf("room %s opened", id)
	}
	return rm
}

func (s *Server) dropRoom(id engine.DocumentID, rm *room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rooms[id] != rm {
		return
	}
	// Rooms that saw writes outlive their members so the relay can answer
	// the next sync request; only never-written rooms are discarded.
	if rm.snapshot() != nil {
		return
	}
	delete(s.rooms, id)
	s.metrics.RoomClosed()
	s.logger.Debugf("room %s closed", id)
}
