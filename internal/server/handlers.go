// Package server exposes HTTP handlers, including the WebSocket chat
// endpoint, health checks, and the built-in chat page.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// ChatWebSocketHandler upgrades requests at /ws/chat/{username} and starts a
// chat session under that name. The username is taken from the path as-is:
// the baseline protocol does not validate it and does not require it to be
// unique across sessions.
func ChatWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	username := r.PathValue("username")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(conn, chatRouter, username, r.RemoteAddr)
	chatRouter.StartSession(client)
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Parley chat server is running!")
}
