package webchat

const loginHTML = loginHead + loginForm
const loginErrorHTML = loginHead + `<div class="err">Invalid username or password</div>` + loginForm

const loginHead = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Jarvis Console - Login</title>
<style>
  :root {
    --bg: #0f1117;
    --panel: #181b24;
    --border: #2a2f3d;
    --text: #e6e8ef;
    --muted: #8b91a5;
    --accent: #6c7bff;
  }
  * { box-sizing: border-box; margin: 0; padding: 0; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
    background: var(--bg); color: var(--text);
    display: flex; align-items: center; justify-content: center;
    min-height: 100vh;
  }
  .card {
    background: var(--panel); border: 1px solid var(--border);
    border-radius: 12px; padding: 32px; width: 320px;
  }
  h1 { font-size: 18px; margin-bottom: 20px; }
  label { display: block; font-size: 13px; color: var(--muted); margin-bottom: 6px; }
  input {
    width: 100%; padding: 10px 12px; margin-bottom: 16px;
    background: var(--bg); border: 1px solid var(--border); border-radius: 8px;
    color: var(--text); font-size: 14px; outline: none;
  }
  input:focus { border-color: var(--accent); }
  button {
    width: 100%; padding: 10px; background: var(--accent); color: #fff;
    border: none; border-radius: 8px; font-size: 14px; cursor: pointer;
  }
  .err { color: #ff6b7a; font-size: 13px; margin-bottom: 12px; }
</style>
</head>
<body>
  <form class="card" method="POST" action="/login">
    <h1>Jarvis Console</h1>
`

const loginForm = `    <label>Username</label>
    <input name="username" autocomplete="username" autofocus>
    <label>Password</label>
    <input name="password" type="password" autocomplete="current-password">
    <button type="submit">Sign in</button>
  </form>
</body>
</html>`

const consoleHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Jarvis Console</title>
<style>
  :root {
    --bg: #0f1117;
    --panel: #181b24;
    --panel-2: #1f2330;
    --border: #2a2f3d;
    --text: #e6e8ef;
    --muted: #8b91a5;
    --accent: #6c7bff;
    --ok: #3ecf8e;
    --bad: #ff6b7a;
    --warn: #f5b84f;
  }
  * { box-sizing: border-box; margin: 0; padding: 0; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
    background: var(--bg); color: var(--text);
    display: flex; flex-direction: column; height: 100vh;
  }
  header {
    display: flex; align-items: center; gap: 12px;
    padding: 12px 20px; background: var(--panel);
    border-bottom: 1px solid var(--border);
  }
  header h1 { font-size: 16px; font-weight: 600; }
  .dot { width: 9px; height: 9px; border-radius: 50%; background: var(--muted); }
  .dot.up { background: var(--ok); }
  .dot.down { background: var(--bad); }
  .chips { display: flex; gap: 8px; margin-left: auto; align-items: center; }
  .chip {
    font-size: 12px; color: var(--muted); background: var(--panel-2);
    border: 1px solid var(--border); border-radius: 999px; padding: 3px 10px;
  }
  .chip b { color: var(--text); font-weight: 500; }
  header button, .tools button {
    background: var(--panel-2); color: var(--text);
    border: 1px solid var(--border); border-radius: 8px;
    padding: 6px 12px; font-size: 13px; cursor: pointer;
  }
  header button:hover { border-color: var(--accent); }
  #messages { flex: 1; overflow-y: auto; padding: 20px; }
  .msg { max-width: 720px; margin: 0 auto 14px; }
  .msg .who { font-size: 12px; color: var(--muted); margin-bottom: 4px; }
  .msg .body {
    background: var(--panel); border: 1px solid var(--border);
    border-radius: 10px; padding: 10px 14px; font-size: 14px;
    line-height: 1.5; white-space: pre-wrap;
  }
  .msg.user .body { background: var(--panel-2); border-color: var(--accent); }
  .msg.error .body { border-color: var(--bad); color: var(--bad); }
  .msg .sources { font-size: 12px; color: var(--muted); margin-top: 6px; font-style: italic; }
  .typing { display: inline-flex; gap: 4px; padding: 4px 0; }
  .typing span {
    width: 6px; height: 6px; border-radius: 50%; background: var(--muted);
    animation: blink 1.2s infinite;
  }
  .typing span:nth-child(2) { animation-delay: .2s; }
  .typing span:nth-child(3) { animation-delay: .4s; }
  @keyframes blink { 0%,80%,100% { opacity: .25 } 40% { opacity: 1 } }
  #welcome { max-width: 720px; margin: 40px auto; text-align: center; color: var(--muted); }
  #welcome h2 { color: var(--text); font-size: 18px; margin-bottom: 8px; }
  .questions { display: flex; flex-direction: column; gap: 8px; margin-top: 18px; }
  .questions button {
    background: var(--panel); color: var(--text); border: 1px solid var(--border);
    border-radius: 10px; padding: 10px 14px; font-size: 14px; cursor: pointer;
    text-align: left;
  }
  .questions button:hover { border-color: var(--accent); }
  #banner {
    display: none; max-width: 720px; margin: 0 auto 10px;
    border-radius: 8px; padding: 8px 14px; font-size: 13px;
  }
  #banner.info { display: block; background: var(--panel-2); color: var(--text); border: 1px solid var(--border); }
  #banner.success { display: block; background: rgba(62,207,142,.12); color: var(--ok); border: 1px solid var(--ok); }
  #banner.error { display: block; background: rgba(255,107,122,.12); color: var(--bad); border: 1px solid var(--bad); }
  .tools {
    max-width: 720px; margin: 0 auto 10px; width: 100%;
    display: flex; gap: 8px;
  }
  .panel {
    display: none; max-width: 720px; margin: 0 auto 10px; width: 100%;
    background: var(--panel); border: 1px solid var(--border); border-radius: 10px;
    padding: 14px; font-size: 13px;
  }
  .panel.open { display: block; }
  .panel label { color: var(--muted); display: block; margin: 8px 0 4px; }
  .panel input[type=text], .panel input[type=number], .panel input[type=file] {
    width: 100%; padding: 8px 10px; background: var(--bg);
    border: 1px solid var(--border); border-radius: 8px; color: var(--text);
  }
  .panel .row { display: flex; gap: 10px; }
  .panel .row > div { flex: 1; }
  .panel .actions { margin-top: 12px; display: flex; align-items: center; gap: 10px; }
  footer {
    padding: 14px 20px 18px; background: var(--panel);
    border-top: 1px solid var(--border);
  }
  .composer { max-width: 720px; margin: 0 auto; display: flex; gap: 10px; }
  .composer input {
    flex: 1; padding: 11px 14px; background: var(--bg);
    border: 1px solid var(--border); border-radius: 10px;
    color: var(--text); font-size: 14px; outline: none;
  }
  .composer input:focus { border-color: var(--accent); }
  .composer button {
    padding: 11px 20px; background: var(--accent); color: #fff;
    border: none; border-radius: 10px; font-size: 14px; cursor: pointer;
  }
  .composer button:disabled { opacity: .45; cursor: default; }
  #modal {
    display: none; position: fixed; inset: 0;
    background: rgba(0,0,0,.55); align-items: center; justify-content: center;
  }
  #modal.open { display: flex; }
  #modal .box {
    background: var(--panel); border: 1px solid var(--bad); border-radius: 12px;
    padding: 22px 26px; max-width: 420px;
  }
  #modal h3 { font-size: 15px; color: var(--bad); margin-bottom: 10px; }
  #modal p { font-size: 13px; color: var(--text); margin-bottom: 16px; line-height: 1.5; }
  #modal button {
    background: var(--bad); color: #fff; border: none; border-radius: 8px;
    padding: 8px 18px; font-size: 13px; cursor: pointer;
  }
</style>
</head>
<body>
  <header>
    <div class="dot" id="statusDot"></div>
    <h1>Jarvis Console</h1>
    <div class="chips">
      <span class="chip" id="metricLatency" hidden>latency <b></b></span>
      <span class="chip" id="metricSim" hidden>similarity <b></b></span>
      <button id="toolsBtn">Documents</button>
      <button id="clearBtn">Clear</button>
    </div>
  </header>

  <div id="messages">
    <div id="welcome">
      <h2>Ask Jarvis about your documents</h2>
      <p>Pick an example question or type your own below.</p>
      <div class="questions" id="questions"></div>
    </div>
  </div>

  <footer>
    <div id="banner"></div>
    <div class="panel" id="toolsPanel">
      <div class="row">
        <div>
          <label>Upload files (.txt, .pdf)</label>
          <input type="file" id="fileInput" multiple accept=".txt,.pdf">
        </div>
        <div>
          <label>Server path(s), comma separated</label>
          <input type="text" id="pathInput" placeholder="/data/docs or /data/a.pdf,/data/b.txt">
        </div>
      </div>
      <div class="row">
        <div>
          <label>Chunk size (100-5000)</label>
          <input type="number" id="chunkSize" min="100" max="5000" value="1000">
        </div>
        <div>
          <label>Chunk overlap (0-1000)</label>
          <input type="number" id="chunkOverlap" min="0" max="1000" value="200">
        </div>
      </div>
      <div class="actions">
        <button id="uploadBtn">Upload</button>
        <button id="ingestBtn">Ingest path</button>
        <label style="margin:0"><input type="checkbox" id="clearExisting" style="width:auto"> clear index first</label>
      </div>
    </div>
    <div class="composer">
      <input id="input" placeholder="Ask about your documents..." autocomplete="off" autofocus>
      <button id="sendBtn">Send</button>
    </div>
  </footer>

  <div id="modal">
    <div class="box">
      <h3>Request failed</h3>
      <p id="modalText"></p>
      <button id="modalBtn">OK</button>
    </div>
  </div>

<script>
const messages = document.getElementById('messages');
const welcome = document.getElementById('welcome');
const questionsEl = document.getElementById('questions');
const input = document.getElementById('input');
const sendBtn = document.getElementById('sendBtn');
const uploadBtn = document.getElementById('uploadBtn');
const ingestBtn = document.getElementById('ingestBtn');
const banner = document.getElementById('banner');
const modal = document.getElementById('modal');
const modalText = document.getElementById('modalText');
const statusDot = document.getElementById('statusDot');

let rev = -1;
let sending = false;

function esc(s) {
  const d = document.createElement('div');
  d.textContent = s;
  return d.innerHTML;
}

function render(s) {
  statusDot.className = 'dot ' + (s.backend_up ? 'up' : 'down');

  const lat = document.getElementById('metricLatency');
  const sim = document.getElementById('metricSim');
  if (s.metrics && s.metrics.valid) {
    lat.hidden = false; sim.hidden = false;
    lat.querySelector('b').textContent = s.metrics.latency_seconds.toFixed(2) + 's';
    sim.querySelector('b').textContent = s.metrics.top_similarity.toFixed(4);
  } else {
    lat.hidden = true; sim.hidden = true;
  }

  const entries = s.entries || [];
  if (entries.length === 0 && !s.typing) {
    welcome.style.display = '';
    questionsEl.innerHTML = '';
    (s.questions || []).forEach(q => {
      const b = document.createElement('button');
      b.textContent = q;
      b.onclick = () => { input.value = q; input.focus(); };
      questionsEl.appendChild(b);
    });
    Array.from(messages.querySelectorAll('.msg')).forEach(n => n.remove());
  } else {
    welcome.style.display = 'none';
    Array.from(messages.querySelectorAll('.msg')).forEach(n => n.remove());
    entries.forEach(e => {
      const div = document.createElement('div');
      div.className = 'msg ' + (e.sender === 'user' ? 'user' : (e.error ? 'error' : ''));
      let body;
      if (e.pending) {
        body = '<div class="typing"><span></span><span></span><span></span></div>';
      } else {
        body = esc(e.text);
      }
      let sources = '';
      if (e.sources && e.sources.length) {
        sources = '<div class="sources">Sources: ' + esc(e.sources.join(', ')) + '</div>';
      }
      const who = e.sender === 'user' ? 'You' : 'Jarvis';
      div.innerHTML = '<div class="who">' + who + '</div><div class="body">' + body + '</div>' + sources;
      messages.appendChild(div);
    });
    messages.scrollTop = messages.scrollHeight;
  }

  if (s.banner && s.banner.visible) {
    banner.className = s.banner.kind;
    banner.textContent = s.banner.text;
  } else {
    banner.className = '';
  }

  if (s.modal_error) {
    modalText.textContent = s.modal_error;
    modal.classList.add('open');
  } else {
    modal.classList.remove('open');
  }

  sendBtn.disabled = s.typing;
  uploadBtn.disabled = s.uploading;
  ingestBtn.disabled = s.ingesting;
}

async function poll() {
  try {
    const r = await fetch('/console/poll');
    if (r.status === 401) { window.location = '/login'; return; }
    const s = await r.json();
    if (s.rev !== rev) { rev = s.rev; render(s); }
  } catch (e) {
    // console server unreachable; keep last view
  }
}

async function send() {
  const m = input.value.trim();
  if (!m || sending) return;
  sending = true;
  sendBtn.disabled = true;
  input.value = '';
  try {
    const p = fetch('/console/send', {
      method: 'POST',
      headers: {'Content-Type': 'application/json'},
      body: JSON.stringify({message: m})
    });
    setTimeout(poll, 120);
    const r = await p;
    if (r.status === 409) { input.value = m; }
  } catch (e) {
    modalText.textContent = 'Something went wrong: ' + e.message;
    modal.classList.add('open');
  } finally {
    sending = false;
    poll();
  }
}

async function upload() {
  const files = document.getElementById('fileInput').files;
  if (!files.length) return;
  const fd = new FormData();
  for (const f of files) fd.append('file', f);
  fd.append('chunk_size', document.getElementById('chunkSize').value);
  fd.append('chunk_overlap', document.getElementById('chunkOverlap').value);
  uploadBtn.disabled = true;
  try {
    await fetch('/console/upload', {method: 'POST', body: fd});
  } catch (e) {
    modalText.textContent = 'Something went wrong: ' + e.message;
    modal.classList.add('open');
  } finally {
    poll();
  }
}

async function ingest() {
  const paths = document.getElementById('pathInput').value.trim();
  if (!paths) return;
  ingestBtn.disabled = true;
  try {
    await fetch('/console/ingest', {
      method: 'POST',
      headers: {'Content-Type': 'application/json'},
      body: JSON.stringify({
        paths: paths,
        chunk_size: parseInt(document.getElementById('chunkSize').value, 10) || 0,
        chunk_overlap: parseInt(document.getElementById('chunkOverlap').value, 10) || 0,
        clear_existing: document.getElementById('clearExisting').checked
      })
    });
  } catch (e) {
    modalText.textContent = 'Something went wrong: ' + e.message;
    modal.classList.add('open');
  } finally {
    poll();
  }
}

sendBtn.onclick = send;
input.addEventListener('keydown', e => { if (e.key === 'Enter') send(); });
uploadBtn.onclick = upload;
ingestBtn.onclick = ingest;
document.getElementById('clearBtn').onclick = async () => {
  await fetch('/console/clear', {method: 'POST'});
  poll();
};
document.getElementById('toolsBtn').onclick = () => {
  document.getElementById('toolsPanel').classList.toggle('open');
};
document.getElementById('modalBtn').onclick = async () => {
  await fetch('/console/dismiss', {method: 'POST'});
  poll();
};

poll();
setInterval(poll, 2500);
</script>
</body>
</html>`
