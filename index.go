package main

import "net/http"

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>KarmaGate Drop</title>
<meta name="description" content="Ephemeral rooms for pushing text and files between nearby devices">
<style>
*{margin:0;padding:0;box-sizing:border-box}
:root{--bg:#191919;--card:#242424;--border:#333;--fg:#e5e5e5;--muted:#737373;--ok:#4ade80;--err:#f87171;--radius:6px}
body{font-family:system-ui,-apple-system,'Segoe UI',Roboto,Helvetica,Arial,sans-serif;background:var(--bg);color:var(--fg);min-height:100vh;display:flex;align-items:center;justify-content:center;padding:24px}
.card{width:100%;max-width:420px;background:var(--card);border:1px solid var(--border);border-radius:var(--radius);padding:28px;display:flex;flex-direction:column;gap:18px}
h1{font-size:20px;font-weight:600}
p{color:var(--muted);font-size:14px;line-height:1.5}
code{background:#111;border:1px solid var(--border);border-radius:4px;padding:2px 6px;font-size:13px}
.stats{display:flex;gap:16px;font-size:13px;color:var(--muted)}
.dot{display:inline-block;width:8px;height:8px;border-radius:50%;background:var(--muted);margin-right:6px}
.dot.ok{background:var(--ok)}.dot.err{background:var(--err)}
</style>
</head>
<body>
<div class="card">
<h1><span id="dot" class="dot"></span>KarmaGate Drop</h1>
<p>Open a room, share its id, and push text or files to every device in it. Rooms live in memory only and close after 30 minutes without activity.</p>
<p>Connect to <code>/ws</code>, send <code>join-room</code>, then <code>send-text</code> or a binary <code>send-file</code> frame. New room ids come from <code>/api/rooms/new</code>.</p>
<div class="stats"><span>Rooms: <b id="rooms">-</b></span><span>Clients: <b id="clients">-</b></span></div>
</div>
<script>
(function(){
var d=document.getElementById('dot'),ro=document.getElementById('rooms'),cl=document.getElementById('clients');
function check(){
fetch('/health').then(function(r){return r.json()}).then(function(j){
d.className=j.status==='ok'?'dot ok':'dot err';ro.textContent=j.rooms;cl.textContent=j.clients;
}).catch(function(){d.className='dot err'});
}
check();setInterval(check,30000);
})();
</script>
</body>
</html>`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write([]byte(indexHTML))
}
