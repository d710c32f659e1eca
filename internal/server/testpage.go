package server

import (
	"fmt"
	"net/http"
)

// handleTestPage serves a minimal HTML page for exercising the relay by
// hand: log in as a user, connect, and exchange direct messages with a
// second browser tab logged in as someone else.
func (s *Server) handleTestPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	html := `<!DOCTYPE html>
<html>
<head>
    <title>chatrelay test page</title>
    <style>
        body { font-family: sans-serif; margin: 20px; }
        #messages { border: 1px solid #ccc; height: 300px; padding: 10px;
                    overflow-y: scroll; margin: 10px 0; background: #f9f9f9; }
        input { padding: 5px; margin-right: 5px; }
        button { padding: 5px 15px; }
    </style>
</head>
<body>
    <h1>chatrelay test page</h1>
    <div>
        <input type="text" id="userId" placeholder="your id">
        <input type="password" id="password" placeholder="password">
        <button onclick="login()">Login &amp; connect</button>
        <span id="status">disconnected</span>
    </div>
    <div>
        <input type="text" id="to" placeholder="recipient id">
        <input type="text" id="content" placeholder="message">
        <button onclick="send()">Send</button>
    </div>
    <div id="messages"></div>
    <script>
        let ws = null;
        function log(line) {
            const el = document.createElement('div');
            el.textContent = line;
            const box = document.getElementById('messages');
            box.appendChild(el);
            box.scrollTop = box.scrollHeight;
        }
        async function login() {
            const id = document.getElementById('userId').value;
            const password = document.getElementById('password').value;
            const resp = await fetch('/login', {
                method: 'POST',
                headers: {'Content-Type': 'application/json'},
                body: JSON.stringify({id: id, password: password})
            });
            if (!resp.ok) { log('login failed'); return; }
            const body = await resp.json();
            const proto = location.protocol === 'https:' ? 'wss' : 'ws';
            ws = new WebSocket(proto + '://' + location.host + '/ws?token=' + body.token);
            ws.onopen = () => { document.getElementById('status').textContent = 'connected as ' + id; };
            ws.onclose = () => { document.getElementById('status').textContent = 'disconnected'; ws = null; };
            ws.onmessage = (ev) => {
                const m = JSON.parse(ev.data);
                log(m.from + ': ' + m.content);
            };
        }
        function send() {
            if (!ws || ws.readyState !== WebSocket.OPEN) { log('not connected'); return; }
            const to = document.getElementById('to').value;
            const content = document.getElementById('content').value;
            ws.send(JSON.stringify({to: to, content: content}));
            log('you -> ' + to + ': ' + content);
            document.getElementById('content').value = '';
        }
    </script>
</body>
</html>`
	if _, err := fmt.Fprint(w, html); err != nil {
		s.log.Debug("write test page", "error", err)
	}
}
