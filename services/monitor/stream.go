// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package monitor

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 64 * 1024,
}

// streamHub fans cycle outputs out to websocket subscribers. A slow
// subscriber is dropped rather than blocking the loop.
type streamHub struct {
	logger *slog.Logger

	mu   sync.Mutex
	subs map[*websocket.Conn]chan *CycleOutput
}

func newStreamHub(logger *slog.Logger) *streamHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &streamHub{
		logger: logger,
		subs:   make(map[*websocket.Conn]chan *CycleOutput),
	}
}

// Broadcast queues a cycle output to every subscriber without
// blocking.
func (h *streamHub) Broadcast(out *CycleOutput) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.subs {
		select {
		case ch <- out:
		default:
			h.logger.Warn("dropping slow stream subscriber")
			close(ch)
			delete(h.subs, conn)
			conn.Close()
		}
	}
}

// subscribe registers a connection and returns its output channel.
func (h *streamHub) subscribe(conn *websocket.Conn) chan *CycleOutput {
	ch := make(chan *CycleOutput, 8)
	h.mu.Lock()
	h.subs[conn] = ch
	h.mu.Unlock()
	return ch
}

// unsubscribe removes a connection if still registered.
func (h *streamHub) unsubscribe(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.subs[conn]; ok {
		close(ch)
		delete(h.subs, conn)
	}
	h.mu.Unlock()
	conn.Close()
}

// Close drops every subscriber.
func (h *streamHub) Close() {
	h.mu.Lock()
	for conn, ch := range h.subs {
		close(ch)
		conn.Close()
		delete(h.subs, conn)
	}
	h.mu.Unlock()
}

// subscriberCount reports the live subscriber count.
func (h *streamHub) subscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// handleStream upgrades the connection and writes each cycle output as
// one JSON message until the client goes away.
func (h *streamHub) handleStream() gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.logger.Error("failed to upgrade the websocket", slog.String("error", err.Error()))
			return
		}
		ch := h.subscribe(ws)
		defer h.unsubscribe(ws)
		h.logger.Info("stream client connected")

		// Reader goroutine: detect client disconnect, discard input.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case out, ok := <-ch:
				if !ok {
					return
				}
				if err := ws.WriteJSON(out); err != nil {
					h.logger.Info("stream client disconnected", slog.String("error", err.Error()))
					return
				}
			case <-done:
				return
			case <-c.Request.Context().Done():
				return
			}
		}
	}
}
