package webchat

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banao-ai/jarvisctl/pkg/backend"
	"github.com/banao-ai/jarvisctl/pkg/chat"
	"github.com/banao-ai/jarvisctl/pkg/config"
)

func newConsole(t *testing.T, backendHandler http.Handler, cfg config.WebChatConfig) *httptest.Server {
	t.Helper()
	backendSrv := httptest.NewServer(backendHandler)
	t.Cleanup(backendSrv.Close)
	ctrl := chat.New(backend.New(backendSrv.URL, 0), chat.Options{ChunkSize: 1000, ChunkOverlap: 200})
	console := httptest.NewServer(NewServer(cfg, ctrl).Handler())
	t.Cleanup(console.Close)
	return console
}

func chatSuccessHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status":"success","message":"a reply","sources":["doc.pdf"],"metrics":{"latency_seconds":1.5,"top_similarity_score":0.88}}`)
	})
	mux.HandleFunc("/api/example-questions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"questions":["Q1?","Q2?","Q3?"]}`)
	})
	return mux
}

func postJSON(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var v map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func pollSnapshot(t *testing.T, consoleURL string) map[string]interface{} {
	t.Helper()
	resp, err := http.Get(consoleURL + "/console/poll")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeBody(t, resp)
}

func TestSendAndPoll(t *testing.T) {
	console := newConsole(t, chatSuccessHandler(), config.WebChatConfig{})

	resp := postJSON(t, console.URL+"/console/send", `{"message":"hello"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "success", body["status"])

	snap := pollSnapshot(t, console.URL)
	entries := snap["entries"].([]interface{})
	require.Len(t, entries, 2)
	assert.Equal(t, "user", entries[0].(map[string]interface{})["sender"])
	assert.Equal(t, "a reply", entries[1].(map[string]interface{})["text"])
	metrics := snap["metrics"].(map[string]interface{})
	assert.Equal(t, true, metrics["valid"])
	assert.Equal(t, false, snap["typing"])
}

func TestSendEmptyMessage(t *testing.T) {
	console := newConsole(t, chatSuccessHandler(), config.WebChatConfig{})

	resp := postJSON(t, console.URL+"/console/send", `{"message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	snap := pollSnapshot(t, console.URL)
	assert.Empty(t, snap["entries"])
}

func TestSendWhileBusyConflicts(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status":"success","message":"slow reply","metrics":{"latency_seconds":1,"top_similarity_score":0.5}}`)
	})
	console := newConsole(t, mux, config.WebChatConfig{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		resp, err := http.Post(console.URL+"/console/send", "application/json", strings.NewReader(`{"message":"first"}`))
		if err == nil {
			resp.Body.Close()
		}
	}()

	require.Eventually(t, func() bool {
		return pollSnapshot(t, console.URL)["typing"] == true
	}, 2*time.Second, 10*time.Millisecond)

	resp := postJSON(t, console.URL+"/console/send", `{"message":"second"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	close(release)
	<-done

	snap := pollSnapshot(t, console.URL)
	assert.Len(t, snap["entries"], 2)
}

func TestUploadRelay(t *testing.T) {
	var gotFiles []string
	var gotContent string
	var gotChunkSize string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		for _, fh := range r.MultipartForm.File["file"] {
			gotFiles = append(gotFiles, fh.Filename)
			f, _ := fh.Open()
			data, _ := io.ReadAll(f)
			f.Close()
			gotContent = string(data)
		}
		gotChunkSize = r.FormValue("chunk_size")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status":"success","message":"Successfully uploaded 1 file(s)"}`)
	})
	console := newConsole(t, mux, config.WebChatConfig{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "report.txt")
	require.NoError(t, err)
	io.WriteString(part, "hello jarvis")
	mw.WriteField("chunk_size", "800")
	mw.WriteField("chunk_overlap", "100")
	require.NoError(t, mw.Close())

	resp, err := http.Post(console.URL+"/console/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "success", body["status"])
	assert.Contains(t, body["message"], "uploaded 1 file")

	assert.Equal(t, []string{"report.txt"}, gotFiles)
	assert.Equal(t, "hello jarvis", gotContent)
	assert.Equal(t, "800", gotChunkSize)
}

func TestUploadWithoutFiles(t *testing.T) {
	console := newConsole(t, chatSuccessHandler(), config.WebChatConfig{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("chunk_size", "800")
	require.NoError(t, mw.Close())

	resp, err := http.Post(console.URL+"/console/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestIngestRelay(t *testing.T) {
	var got struct {
		FilePath      []string `json:"file_path"`
		ChunkSize     int      `json:"chunk_size"`
		ChunkOverlap  int      `json:"chunk_overlap"`
		ClearExisting bool     `json:"clear_existing"`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ingest-path", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status":"success","message":"Ingestion complete"}`)
	})
	console := newConsole(t, mux, config.WebChatConfig{})

	resp := postJSON(t, console.URL+"/console/ingest",
		`{"paths":"/data/a.pdf, /data/b.txt","clear_existing":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "success", body["status"])

	assert.Equal(t, []string{"/data/a.pdf", "/data/b.txt"}, got.FilePath)
	assert.Equal(t, 1000, got.ChunkSize)
	assert.Equal(t, 200, got.ChunkOverlap)
	assert.True(t, got.ClearExisting)
}

func TestStatusEndpoint(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status":"running","pinecone_index":"jarvis-docs","openai_model":"gpt-4o-mini","local_metrics":"active"}`)
	})
	console := newConsole(t, mux, config.WebChatConfig{})

	resp, err := http.Get(console.URL + "/console/status")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "success", body["status"])
	assert.Contains(t, body["message"], "jarvis-docs")

	snap := pollSnapshot(t, console.URL)
	assert.Equal(t, true, snap["backend_up"])
}

func TestClearAndDismiss(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":"vector store offline"}`)
	})
	mux.HandleFunc("/api/example-questions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"questions":["Q1?","Q2?","Q3?"]}`)
	})
	console := newConsole(t, mux, config.WebChatConfig{})

	resp := postJSON(t, console.URL+"/console/send", `{"message":"hello"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "error", body["status"])

	snap := pollSnapshot(t, console.URL)
	require.Contains(t, snap["modal_error"], "Something went wrong")
	assert.Len(t, snap["entries"], 2)

	resp = postJSON(t, console.URL+"/console/dismiss", `{}`)
	resp.Body.Close()
	snap = pollSnapshot(t, console.URL)
	assert.Nil(t, snap["modal_error"])

	resp = postJSON(t, console.URL+"/console/clear", `{}`)
	resp.Body.Close()
	require.Eventually(t, func() bool {
		snap := pollSnapshot(t, console.URL)
		entries, _ := snap["entries"].([]interface{})
		questions, _ := snap["questions"].([]interface{})
		return len(entries) == 0 && len(questions) == 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAuthFlow(t *testing.T) {
	cfg := config.WebChatConfig{Username: "admin", Password: "secret"}
	console := newConsole(t, chatSuccessHandler(), cfg)

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Get(console.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	resp.Body.Close()

	resp, err = client.Get(console.URL + "/console/poll")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp, err = client.PostForm(console.URL+"/login",
		url.Values{"username": {"admin"}, "password": {"wrong"}})
	require.NoError(t, err)
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(page), "Invalid username or password")

	resp, err = client.PostForm(console.URL+"/login",
		url.Values{"username": {"admin"}, "password": {"secret"}})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie {
			session = c
		}
	}
	require.NotNil(t, session)

	req, _ := http.NewRequest(http.MethodGet, console.URL+"/console/poll", nil)
	req.AddCookie(session)
	resp, err = client.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	req, _ = http.NewRequest(http.MethodGet, console.URL+"/logout", nil)
	req.AddCookie(session)
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	req, _ = http.NewRequest(http.MethodGet, console.URL+"/console/poll", nil)
	req.AddCookie(session)
	resp, err = client.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestSendRejectsGet(t *testing.T) {
	console := newConsole(t, chatSuccessHandler(), config.WebChatConfig{})
	resp, err := http.Get(console.URL + "/console/send")
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()
}
