// Package server serves the built-in browser chat page.
package server

import (
	"fmt"
	"log"
	"net/http"
)

// ChatPageHandler serves the HTML chat page. It provides a minimal web
// interface: pick a username, connect, and exchange broadcast or /private
// messages with everyone else in the room.
func ChatPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	html := `<!DOCTYPE html>
<html>
<head>
    <title>Parley</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] {
            width: 300px;
            padding: 5px;
            margin-right: 10px;
        }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status {
            margin: 10px 0;
            padding: 5px;
            border-radius: 3px;
        }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
        .hint { color: gray; font-size: 0.9em; }
    </style>
</head>
<body>
    <h1>Parley</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="usernameInput" placeholder="Username">
        <button id="connectButton" onclick="toggleConnection()">Join</button>
    </div>

    <div>
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>
    <p class="hint">Tip: "/private bob hello" sends a direct message to bob.</p>

    <div id="messages"></div>

    <script>
        let ws = null;
        const messagesDiv = document.getElementById('messages');
        const usernameInput = document.getElementById('usernameInput');
        const messageInput = document.getElementById('messageInput');
        const sendButton = document.getElementById('sendButton');
        const connectButton = document.getElementById('connectButton');
        const statusDiv = document.getElementById('status');

        function addMessage(message, own) {
            const el = document.createElement('div');
            el.style.margin = '5px 0';
            el.style.padding = '3px';
            el.style.color = own ? 'blue' : 'black';
            el.textContent = message;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            messageInput.disabled = !connected;
            sendButton.disabled = !connected;
            usernameInput.disabled = connected;
            connectButton.textContent = connected ? 'Leave' : 'Join';
        }

        function connect() {
            const username = usernameInput.value.trim();
            if (!username) {
                addMessage('Pick a username first');
                return;
            }
            const scheme = location.protocol === 'https:' ? 'wss' : 'ws';
            ws = new WebSocket(scheme + '://' + location.host + '/ws/chat/' + encodeURIComponent(username));

            ws.onopen = function() { updateStatus(true); };
            ws.onmessage = function(event) { addMessage(event.data, false); };
            ws.onclose = function() { updateStatus(false); ws = null; };
            ws.onerror = function() { updateStatus(false); };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function sendMessage() {
            const message = messageInput.value.trim();
            if (message && ws && ws.readyState === WebSocket.OPEN) {
                ws.send(message);
                messageInput.value = '';
            }
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
	if _, err := fmt.Fprint(w, html); err != nil {
		log.Printf("Error writing HTML response: %v", err)
	}
}
