package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/h2non/filetype"

	"github.com/banao-ai/jarvisctl/pkg/logger"
)

const (
	MaxMessageChars = 1000
	MinChunkSize    = 100
	MaxChunkSize    = 5000
	MinChunkOverlap = 0
	MaxChunkOverlap = 1000
)

// APIError is an application-level failure: the backend answered, but the
// payload carried an error or lacked the success marker. Transport and
// parse failures are returned as plain wrapped errors.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend error (HTTP %d)", e.StatusCode)
	}
	return e.Message
}

type Client struct {
	baseURL string
	client  *http.Client
}

// New returns a client for the assistant backend. A zero timeout leaves
// requests unbounded; ingestion of large documents can run for minutes.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type StatusInfo struct {
	Status        string `json:"status"`
	PineconeIndex string `json:"pinecone_index"`
	OpenAIModel   string `json:"openai_model"`
	LocalMetrics  string `json:"local_metrics"`
}

type ChatResult struct {
	Message        string
	Sources        []string
	LatencySeconds float64
	TopSimilarity  float64
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatEnvelope struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Sources []string `json:"sources"`
	Metrics struct {
		LatencySeconds     float64 `json:"latency_seconds"`
		TopSimilarityScore float64 `json:"top_similarity_score"`
	} `json:"metrics"`
	Error string `json:"error"`
}

type actionEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

type questionsEnvelope struct {
	Questions []string `json:"questions"`
	Error     string   `json:"error"`
}

type ingestRequest struct {
	FilePath      []string `json:"file_path"`
	ChunkSize     int      `json:"chunk_size"`
	ChunkOverlap  int      `json:"chunk_overlap"`
	ClearExisting bool     `json:"clear_existing"`
}

// Status fetches backend health and wiring details.
func (c *Client) Status(ctx context.Context) (*StatusInfo, error) {
	body, err := c.get(ctx, "/api/status")
	if err != nil {
		return nil, err
	}
	var info StatusInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("unmarshal status: %w", err)
	}
	return &info, nil
}

// ExampleQuestions fetches the suggested starter questions.
func (c *Client) ExampleQuestions(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, "/api/example-questions")
	if err != nil {
		return nil, err
	}
	var env questionsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("unmarshal questions: %w", err)
	}
	if env.Questions == nil {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "no questions in response"}
	}
	return env.Questions, nil
}

// Chat sends one user message and returns the assistant reply with its
// retrieval metrics. The backend bounds are checked before any request
// is spent; the message itself is passed through unmodified.
func (c *Client) Chat(ctx context.Context, message string) (*ChatResult, error) {
	if message == "" {
		return nil, fmt.Errorf("empty message")
	}
	if utf8.RuneCountInString(message) > MaxMessageChars {
		return nil, fmt.Errorf("message exceeds %d characters", MaxMessageChars)
	}

	body, err := json.Marshal(chatRequest{Message: message})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := c.post(ctx, "/api/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var env chatEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if env.Status != "success" {
		return nil, &APIError{StatusCode: http.StatusOK, Message: envelopeError(env.Error)}
	}

	return &ChatResult{
		Message:        env.Message,
		Sources:        env.Sources,
		LatencySeconds: env.Metrics.LatencySeconds,
		TopSimilarity:  env.Metrics.TopSimilarityScore,
	}, nil
}

// Upload streams local files to the backend as multipart form data and
// returns the backend's confirmation message. Unsupported files are
// skipped; it is an error when nothing uploadable remains.
func (c *Client) Upload(ctx context.Context, paths []string, chunkSize, chunkOverlap int) (string, error) {
	if err := validateChunking(chunkSize, chunkOverlap); err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("no files given")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	attached := 0
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		if !uploadable(path, data) {
			logger.WarnCF("backend", "Skipping unsupported file", map[string]interface{}{"path": path})
			continue
		}
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			return "", fmt.Errorf("create form file: %w", err)
		}
		if _, err := part.Write(data); err != nil {
			return "", fmt.Errorf("write form file: %w", err)
		}
		attached++
	}
	if attached == 0 {
		return "", fmt.Errorf("no supported files to upload (.txt, .pdf)")
	}
	mw.WriteField("chunk_size", strconv.Itoa(chunkSize))
	mw.WriteField("chunk_overlap", strconv.Itoa(chunkOverlap))
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finalize form: %w", err)
	}

	respBody, err := c.post(ctx, "/api/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		return "", err
	}
	return decodeAction(respBody)
}

// IngestPaths asks the backend to ingest server-side paths. Comma-separated
// input is accepted and split here; the backend receives a list.
func (c *Client) IngestPaths(ctx context.Context, paths []string, chunkSize, chunkOverlap int, clearExisting bool) (string, error) {
	if err := validateChunking(chunkSize, chunkOverlap); err != nil {
		return "", err
	}
	expanded := SplitPaths(paths)
	if len(expanded) == 0 {
		return "", fmt.Errorf("no paths given")
	}

	body, err := json.Marshal(ingestRequest{
		FilePath:      expanded,
		ChunkSize:     chunkSize,
		ChunkOverlap:  chunkOverlap,
		ClearExisting: clearExisting,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := c.post(ctx, "/api/ingest-path", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	return decodeAction(respBody)
}

// SplitPaths flattens comma-separated path arguments and drops blanks.
func SplitPaths(paths []string) []string {
	var out []string
	for _, p := range paths {
		for _, part := range strings.Split(p, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func validateChunking(chunkSize, chunkOverlap int) error {
	if chunkSize < MinChunkSize || chunkSize > MaxChunkSize {
		return fmt.Errorf("chunk_size must be between %d and %d", MinChunkSize, MaxChunkSize)
	}
	if chunkOverlap < MinChunkOverlap || chunkOverlap > MaxChunkOverlap {
		return fmt.Errorf("chunk_overlap must be between %d and %d", MinChunkOverlap, MaxChunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return fmt.Errorf("chunk_overlap must be smaller than chunk_size")
	}
	return nil
}

// uploadable accepts .txt by extension and .pdf confirmed by magic bytes.
func uploadable(path string, data []byte) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return true
	case ".pdf":
		kind, err := filetype.Match(data)
		return err == nil && kind.Extension == "pdf"
	default:
		return false
	}
}

func decodeAction(body []byte) (string, error) {
	var env actionEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if env.Status != "success" {
		return "", &APIError{StatusCode: http.StatusOK, Message: envelopeError(env.Error)}
	}
	return env.Message, nil
}

func envelopeError(msg string) string {
	if msg == "" {
		return "backend reported failure"
	}
	return msg
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("backend error (HTTP %d)", resp.StatusCode)}
	}

	return respBody, nil
}
