// Package server wires HTTP handlers into a ServeMux for the Parley
// application via routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes: the chat page, the health check, and the WebSocket chat endpoint.
func SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", ChatPageHandler)
	mux.HandleFunc("/healthz", HealthHandler)
	mux.HandleFunc("/ws/chat/{username}", ChatWebSocketHandler)
	return mux
}
