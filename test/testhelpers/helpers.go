// Package testhelpers provides common utilities and helper functions for
// testing the Parley chat server.
//
// This package contains reusable test utilities shared across the
// integration tests: creating test servers, dialing chat sessions, and
// asserting on the line-oriented wire protocol.
package testhelpers

import (
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// CreateTestServer creates a test HTTP server with the given handler.
// It returns a running httptest.Server that should be closed after use.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// AssertStatusCode checks if the HTTP response has the expected status code.
// It fails the test with a descriptive error message if the status codes don't match.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
// It fails the test with a descriptive error message if the content types don't match.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// ChatURL converts a test server base URL into the WebSocket chat endpoint
// for the given username.
func ChatURL(t *testing.T, baseURL, username string) string {
	t.Helper()

	u, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("Failed to parse test server URL: %v", err)
	}
	u.Scheme = "ws"
	u.Path = "/ws/chat/" + username
	return u.String()
}

// DialChat opens a chat session for username against the test server and
// fails the test if the handshake does not complete.
func DialChat(t *testing.T, baseURL, username string) *websocket.Conn {
	t.Helper()

	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	headers := http.Header{}
	headers.Set("Origin", baseURL)

	conn, resp, err := dialer.Dial(ChatURL(t, baseURL, username), headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to connect as %q: %v", username, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// ReadLine reads the next text line from the connection, failing the test
// on error or timeout.
func ReadLine(t *testing.T, conn *websocket.Conn, timeout time.Duration) string {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	return string(data)
}

// ExpectLine reads the next line and fails the test unless it matches want.
func ExpectLine(t *testing.T, conn *websocket.Conn, want string) {
	t.Helper()

	got := ReadLine(t, conn, 2*time.Second)
	if got != want {
		t.Fatalf("Expected line %q, got %q", want, got)
	}
}

// ExpectNoMessage asserts that nothing arrives on the connection within the
// timeout window.
func ExpectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("Expected no message, but received %q", string(data))
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	t.Fatalf("Unexpected error while waiting for absence of message: %v", err)
}

// SendLine writes one text line to the connection.
func SendLine(t *testing.T, conn *websocket.Conn, line string) {
	t.Helper()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		t.Fatalf("Failed to send line %q: %v", line, err)
	}
}

// CloseChat gracefully closes a chat session.
func CloseChat(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
