package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestChat_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("expected /api/chat, got %s", r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected Content-Type application/json, got %q", r.Header.Get("Content-Type"))
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Message != "what is this document about?" {
			t.Errorf("unexpected message: %q", req.Message)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "success",
			"message": "It covers quarterly earnings.",
			"sources": []string{"report.pdf", "notes.txt"},
			"metrics": map[string]any{
				"latency_seconds":      1.42,
				"top_similarity_score": 0.8731,
			},
		})
	}))
	defer server.Close()

	c := New(server.URL, 0)
	result, err := c.Chat(context.Background(), "what is this document about?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Message != "It covers quarterly earnings." {
		t.Errorf("unexpected reply: %q", result.Message)
	}
	if len(result.Sources) != 2 || result.Sources[0] != "report.pdf" {
		t.Errorf("unexpected sources: %v", result.Sources)
	}
	if result.LatencySeconds != 1.42 {
		t.Errorf("expected latency 1.42, got %v", result.LatencySeconds)
	}
	if result.TopSimilarity != 0.8731 {
		t.Errorf("expected similarity 0.8731, got %v", result.TopSimilarity)
	}
}

func TestChat_ApplicationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": "No documents indexed yet"})
	}))
	defer server.Close()

	c := New(server.URL, 0)
	_, err := c.Chat(context.Background(), "hi")
	if err == nil {
		t.Fatal("expected error for error envelope")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Message != "No documents indexed yet" {
		t.Errorf("unexpected message: %q", apiErr.Message)
	}
}

func TestChat_MissingSuccessMarker(t *testing.T) {
	// HTTP 200 without status=="success" is still a failure.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "looks fine"})
	}))
	defer server.Close()

	c := New(server.URL, 0)
	_, err := c.Chat(context.Background(), "hi")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
}

func TestChat_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "Rate limit exceeded. Please wait a moment."})
	}))
	defer server.Close()

	c := New(server.URL, 0)
	_, err := c.Chat(context.Background(), "hi")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", apiErr.StatusCode)
	}
	if apiErr.Message != "Rate limit exceeded. Please wait a moment." {
		t.Errorf("unexpected message: %q", apiErr.Message)
	}
}

func TestChat_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused

	c := New(server.URL, 0)
	_, err := c.Chat(context.Background(), "hi")
	if err == nil {
		t.Fatal("expected transport error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Fatalf("transport failure must not be an APIError: %v", err)
	}
}

func TestChat_LocalValidation(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	c := New(server.URL, 0)
	if _, err := c.Chat(context.Background(), ""); err == nil {
		t.Error("expected error for empty message")
	}
	if _, err := c.Chat(context.Background(), strings.Repeat("x", MaxMessageChars+1)); err == nil {
		t.Error("expected error for oversized message")
	}
	if requests != 0 {
		t.Errorf("expected no requests, got %d", requests)
	}
}

func TestStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			t.Errorf("expected /api/status, got %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"status":         "running",
			"pinecone_index": "banao-index",
			"openai_model":   "gpt-4o-mini",
			"local_metrics":  "active",
		})
	}))
	defer server.Close()

	c := New(server.URL, 0)
	info, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Status != "running" || info.PineconeIndex != "banao-index" {
		t.Errorf("unexpected status info: %+v", info)
	}
	if info.OpenAIModel != "gpt-4o-mini" || info.LocalMetrics != "active" {
		t.Errorf("unexpected status info: %+v", info)
	}
}

func TestExampleQuestions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string][]string{
			"questions": {"What is this document about?", "Summarize it", "List the requirements"},
		})
	}))
	defer server.Close()

	c := New(server.URL, 0)
	questions, err := c.ExampleQuestions(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(questions) != 3 {
		t.Errorf("expected 3 questions, got %d", len(questions))
	}
}

func TestExampleQuestions_MissingField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"hello": "world"})
	}))
	defer server.Close()

	c := New(server.URL, 0)
	if _, err := c.ExampleQuestions(context.Background()); err == nil {
		t.Fatal("expected error for response without questions")
	}
}

func TestUpload(t *testing.T) {
	dir := t.TempDir()
	txtPath := filepath.Join(dir, "notes.txt")
	pdfPath := filepath.Join(dir, "report.pdf")
	docPath := filepath.Join(dir, "skip.docx")
	if err := os.WriteFile(txtPath, []byte("plain text notes"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pdfPath, []byte("%PDF-1.4 fake body"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(docPath, []byte("not supported"), 0644); err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/upload" {
			t.Errorf("expected /api/upload, got %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Fatalf("failed to parse multipart: %v", err)
		}
		files := r.MultipartForm.File["file"]
		if len(files) != 2 {
			t.Errorf("expected 2 file parts, got %d", len(files))
		}
		if r.FormValue("chunk_size") != "800" {
			t.Errorf("expected chunk_size 800, got %q", r.FormValue("chunk_size"))
		}
		if r.FormValue("chunk_overlap") != "100" {
			t.Errorf("expected chunk_overlap 100, got %q", r.FormValue("chunk_overlap"))
		}
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "success",
			"message": "2 files (notes.txt, report.pdf) uploaded. Ingestion started.",
		})
	}))
	defer server.Close()

	c := New(server.URL, 0)
	msg, err := c.Upload(context.Background(), []string{txtPath, pdfPath, docPath}, 800, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(msg, "Ingestion started") {
		t.Errorf("unexpected message: %q", msg)
	}
}

func TestUpload_NoSupportedFiles(t *testing.T) {
	dir := t.TempDir()
	badPdf := filepath.Join(dir, "fake.pdf")
	if err := os.WriteFile(badPdf, []byte("no pdf magic here"), 0644); err != nil {
		t.Fatal(err)
	}

	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	c := New(server.URL, 0)
	if _, err := c.Upload(context.Background(), []string{badPdf}, 1000, 200); err == nil {
		t.Fatal("expected error when no supported files remain")
	}
	if requests != 0 {
		t.Errorf("expected no requests, got %d", requests)
	}
}

func TestIngestPaths(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ingest-path" {
			t.Errorf("expected /api/ingest-path, got %s", r.URL.Path)
		}
		var req ingestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		want := []string{"/data/a.pdf", "/data/b.txt"}
		if !reflect.DeepEqual(req.FilePath, want) {
			t.Errorf("expected paths %v, got %v", want, req.FilePath)
		}
		if !req.ClearExisting {
			t.Error("expected clear_existing true")
		}
		if req.ChunkSize != 1000 || req.ChunkOverlap != 200 {
			t.Errorf("unexpected chunking: %d/%d", req.ChunkSize, req.ChunkOverlap)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "success",
			"message": "Ingestion started for 2 path(s).",
		})
	}))
	defer server.Close()

	c := New(server.URL, 0)
	msg, err := c.IngestPaths(context.Background(), []string{"/data/a.pdf, /data/b.txt"}, 1000, 200, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg != "Ingestion started for 2 path(s)." {
		t.Errorf("unexpected message: %q", msg)
	}
}

func TestValidateChunking(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{"defaults", 1000, 200, false},
		{"min size", 100, 0, false},
		{"size too small", 99, 0, true},
		{"size too large", 5001, 200, true},
		{"overlap negative", 1000, -1, true},
		{"overlap too large", 2000, 1001, true},
		{"overlap not below size", 200, 200, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateChunking(tc.size, tc.overlap)
			if tc.wantErr && err == nil {
				t.Errorf("expected error for %d/%d", tc.size, tc.overlap)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSplitPaths(t *testing.T) {
	got := SplitPaths([]string{" /a.pdf , /b.txt", "", "/c.pdf"})
	want := []string{"/a.pdf", "/b.txt", "/c.pdf"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
