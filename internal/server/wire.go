// Package server defines the line-oriented wire formats exchanged with chat
// clients, plus connection error helpers shared across session and router
// logic.
package server

import "strings"

// privateCommand marks an inbound line as a directed message:
// "/private <username> <message...>".
const privateCommand = "/private"

// formatChatLine renders a broadcast or history-replay line. The two are
// deliberately indistinguishable on the wire.
func formatChatLine(username, message string) string {
	return username + ": " + message
}

func formatJoinLine(username string) string {
	return username + " joined the chat"
}

func formatLeaveLine(username string) string {
	return username + " left the chat"
}

func formatPrivateLine(fromUsername, message string) string {
	return "Private from " + fromUsername + ": " + message
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
