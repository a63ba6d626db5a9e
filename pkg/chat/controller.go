package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/banao-ai/jarvisctl/pkg/backend"
	"github.com/banao-ai/jarvisctl/pkg/logger"
)

// Backend is the slice of the API client the controller needs.
type Backend interface {
	Status(ctx context.Context) (*backend.StatusInfo, error)
	ExampleQuestions(ctx context.Context) ([]string, error)
	Chat(ctx context.Context, message string) (*backend.ChatResult, error)
	Upload(ctx context.Context, paths []string, chunkSize, chunkOverlap int) (string, error)
	IngestPaths(ctx context.Context, paths []string, chunkSize, chunkOverlap int, clearExisting bool) (string, error)
}

var (
	ErrEmptyMessage  = errors.New("empty message")
	ErrBusy          = errors.New("another request is in flight")
	ErrStale         = errors.New("response superseded")
	ErrUnknownAction = errors.New("unknown action")
)

type Options struct {
	ChunkSize    int
	ChunkOverlap int
	// ResponseDelay paces the assistant reply so the typing indicator
	// does not flash on fast responses.
	ResponseDelay  time.Duration
	BannerTTL      time.Duration
	StatusInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		ChunkSize:      1000,
		ChunkOverlap:   200,
		ResponseDelay:  500 * time.Millisecond,
		BannerTTL:      5 * time.Second,
		StatusInterval: 30 * time.Second,
	}
}

// ActionRequest carries the parameters of a named action. Unused fields
// are ignored; nil chunking values fall back to the configured defaults,
// so an explicit overlap of 0 still goes through as 0.
type ActionRequest struct {
	Message       string   `json:"message,omitempty"`
	Paths         []string `json:"paths,omitempty"`
	ChunkSize     *int     `json:"chunk_size,omitempty"`
	ChunkOverlap  *int     `json:"chunk_overlap,omitempty"`
	ClearExisting bool     `json:"clear_existing,omitempty"`
}

type ActionResult struct {
	Entry   Entry  `json:"entry,omitempty"`
	Message string `json:"message,omitempty"`
}

type actionFunc func(req ActionRequest) (ActionResult, error)

// Snapshot is a consistent copy of the controller state for rendering.
type Snapshot struct {
	Rev        int64               `json:"rev"`
	Entries    []Entry             `json:"entries"`
	Metrics    Metrics             `json:"metrics"`
	Questions  []string            `json:"questions"`
	Banner     Banner              `json:"banner"`
	Typing     bool                `json:"typing"`
	Uploading  bool                `json:"uploading"`
	Ingesting  bool                `json:"ingesting"`
	BackendUp  bool                `json:"backend_up"`
	ModalError string              `json:"modal_error,omitempty"`
	Status     *backend.StatusInfo `json:"status,omitempty"`
}

// Controller owns all conversation state. Every mutation happens under
// one mutex, so flag checks and flag flips never interleave; fronts only
// see it through Snapshot and the action table.
type Controller struct {
	backend Backend
	opts    Options
	actions map[string]actionFunc

	mu         sync.Mutex
	rev        int64
	transcript Transcript
	metrics    Metrics
	questions  []string
	banner     Banner
	bannerSeq  int
	modalErr   string
	typing     bool
	uploading  bool
	ingesting  bool
	backendUp  bool
	status     *backend.StatusInfo
	seq        int

	events chan Event
	ctx    context.Context
	cancel context.CancelFunc
}

func New(b Backend, opts Options) *Controller {
	c := &Controller{
		backend: b,
		opts:    opts,
		events:  make(chan Event, 64),
		ctx:     context.Background(),
	}
	c.actions = map[string]actionFunc{
		"send":      c.actionSend,
		"upload":    c.actionUpload,
		"ingest":    c.actionIngest,
		"clear":     c.actionClear,
		"status":    c.actionStatus,
		"questions": c.actionQuestions,
		"dismiss":   c.actionDismiss,
	}
	return c
}

// Start kicks off the question load and the periodic status check. The
// controller keeps working until Stop or the parent context ends.
func (c *Controller) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
	go c.RefreshQuestions()
	if c.opts.StatusInterval > 0 {
		go c.statusLoop()
	}
}

func (c *Controller) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// Events delivers change notifications. The channel is buffered and
// drops when full; fronts re-render from Snapshot so a dropped event is
// coalesced into the next one.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Do dispatches a named action. Fronts go through this table instead of
// reaching into controller internals.
func (c *Controller) Do(name string, req ActionRequest) (ActionResult, error) {
	fn, ok := c.actions[name]
	if !ok {
		return ActionResult{}, fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	return fn(req)
}

// Actions lists the registered action names.
func (c *Controller) Actions() []string {
	names := make([]string, 0, len(c.actions))
	for name := range c.actions {
		names = append(names, name)
	}
	return names
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	questions := make([]string, len(c.questions))
	copy(questions, c.questions)
	return Snapshot{
		Rev:        c.rev,
		Entries:    c.transcript.Entries(),
		Metrics:    c.metrics,
		Questions:  questions,
		Banner:     c.banner,
		Typing:     c.typing,
		Uploading:  c.uploading,
		Ingesting:  c.ingesting,
		BackendUp:  c.backendUp,
		ModalError: c.modalErr,
		Status:     c.status,
	}
}

// SendMessage runs one chat round trip. Empty input and overlapping
// sends are rejected without touching state; everything else appends the
// user entry optimistically, resolves the placeholder with the reply or
// an error entry, and always releases the typing flag.
func (c *Controller) SendMessage(text string) (Entry, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Entry{}, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.typing {
		c.mu.Unlock()
		return Entry{}, ErrBusy
	}
	c.typing = true
	c.seq++
	sent := c.seq
	c.transcript.Append(Entry{Sender: SenderUser, Text: text})
	placeholder := c.transcript.Append(Entry{Sender: SenderAssistant, Pending: true})
	c.publish(EventBusy)
	c.publish(EventTranscript)
	c.mu.Unlock()

	result, err := c.backend.Chat(c.ctx, text)
	if err == nil && c.opts.ResponseDelay > 0 {
		time.Sleep(c.opts.ResponseDelay)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		c.typing = false
		c.publish(EventBusy)
	}()

	if sent != c.seq {
		// Conversation was cleared while the request was in flight.
		logger.InfoCF("chat", "Discarding superseded reply", map[string]interface{}{"seq": sent})
		return Entry{}, ErrStale
	}

	if err != nil {
		msg := "Something went wrong: " + err.Error()
		entry, _ := c.transcript.Resolve(placeholder.ID, Entry{Sender: SenderSystem, Text: msg, Err: true})
		c.modalErr = msg
		c.publish(EventTranscript)
		c.publish(EventModal)
		logger.ErrorCF("chat", "Chat request failed", map[string]interface{}{"error": err.Error()})
		return entry, err
	}

	c.metrics = Metrics{
		LatencySeconds: result.LatencySeconds,
		TopSimilarity:  result.TopSimilarity,
		Valid:          true,
	}
	entry, _ := c.transcript.Resolve(placeholder.ID, Entry{
		Sender:  SenderAssistant,
		Text:    result.Message,
		Sources: result.Sources,
	})
	c.publish(EventTranscript)
	c.publish(EventMetrics)
	return entry, nil
}

// UploadFiles sends local documents to the backend. The uploading flag
// clears exactly once on every exit path, independent of the banner
// auto-hide timer.
func (c *Controller) UploadFiles(paths []string, chunkSize, chunkOverlap int) (string, error) {
	c.mu.Lock()
	if c.uploading {
		c.mu.Unlock()
		return "", ErrBusy
	}
	c.uploading = true
	c.setBanner(BannerInfo, fmt.Sprintf("Uploading %d file(s)...", len(paths)))
	c.publish(EventBusy)
	c.mu.Unlock()

	msg, err := c.backend.Upload(c.ctx, paths, chunkSize, chunkOverlap)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.uploading = false
	c.publish(EventBusy)
	if err != nil {
		c.setBanner(BannerError, "Something went wrong: "+err.Error())
		logger.ErrorCF("chat", "Upload failed", map[string]interface{}{"error": err.Error()})
		return "", err
	}
	c.setBanner(BannerSuccess, msg)
	c.armBannerHide()
	return msg, nil
}

// IngestPaths asks the backend to ingest server-side paths.
func (c *Controller) IngestPaths(paths []string, chunkSize, chunkOverlap int, clearExisting bool) (string, error) {
	c.mu.Lock()
	if c.ingesting {
		c.mu.Unlock()
		return "", ErrBusy
	}
	c.ingesting = true
	c.setBanner(BannerInfo, "Starting ingestion...")
	c.publish(EventBusy)
	c.mu.Unlock()

	msg, err := c.backend.IngestPaths(c.ctx, paths, chunkSize, chunkOverlap, clearExisting)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ingesting = false
	c.publish(EventBusy)
	if err != nil {
		c.setBanner(BannerError, "Something went wrong: "+err.Error())
		logger.ErrorCF("chat", "Ingest failed", map[string]interface{}{"error": err.Error()})
		return "", err
	}
	c.setBanner(BannerSuccess, msg)
	c.armBannerHide()
	return msg, nil
}

// CheckStatus probes the backend once. Failures are logged, never shown
// in the transcript.
func (c *Controller) CheckStatus() (*backend.StatusInfo, error) {
	info, err := c.backend.Status(c.ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.backendUp = false
		c.status = nil
		c.publish(EventStatus)
		logger.WarnCF("chat", "Status check failed", map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	c.backendUp = info.Status == "running"
	c.status = info
	c.publish(EventStatus)
	return info, nil
}

// ClearConversation wipes the transcript, resets metrics, bumps the
// response sequence so an in-flight reply is discarded, and reloads the
// example questions.
func (c *Controller) ClearConversation() {
	c.mu.Lock()
	c.transcript.Clear()
	c.metrics = Metrics{}
	c.seq++
	c.setBanner(BannerInfo, "Conversation cleared")
	c.armBannerHide()
	c.publish(EventTranscript)
	c.publish(EventMetrics)
	c.mu.Unlock()

	go c.RefreshQuestions()
}

func (c *Controller) DismissModal() {
	c.mu.Lock()
	c.modalErr = ""
	c.publish(EventModal)
	c.mu.Unlock()
}

func (c *Controller) statusLoop() {
	c.CheckStatus()
	ticker := time.NewTicker(c.opts.StatusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.CheckStatus()
		case <-c.ctx.Done():
			return
		}
	}
}

// setBanner must run with the mutex held.
func (c *Controller) setBanner(kind BannerKind, text string) {
	c.bannerSeq++
	c.banner = Banner{Kind: kind, Text: text, Visible: true}
	c.publish(EventBanner)
}

// armBannerHide schedules the auto-hide for the current banner. A later
// banner bumps the sequence, so a stale timer hides nothing. Must run
// with the mutex held.
func (c *Controller) armBannerHide() {
	if c.opts.BannerTTL <= 0 {
		return
	}
	armed := c.bannerSeq
	time.AfterFunc(c.opts.BannerTTL, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.bannerSeq != armed {
			return
		}
		c.banner.Visible = false
		c.publish(EventBanner)
	})
}

// publish must run with the mutex held.
func (c *Controller) publish(kind EventKind) {
	c.rev++
	select {
	case c.events <- Event{Kind: kind}:
	default:
	}
}

func (c *Controller) chunkSize(req ActionRequest) int {
	if req.ChunkSize != nil {
		return *req.ChunkSize
	}
	return c.opts.ChunkSize
}

func (c *Controller) chunkOverlap(req ActionRequest) int {
	if req.ChunkOverlap != nil {
		return *req.ChunkOverlap
	}
	return c.opts.ChunkOverlap
}

func (c *Controller) actionSend(req ActionRequest) (ActionResult, error) {
	entry, err := c.SendMessage(req.Message)
	return ActionResult{Entry: entry}, err
}

func (c *Controller) actionUpload(req ActionRequest) (ActionResult, error) {
	msg, err := c.UploadFiles(req.Paths, c.chunkSize(req), c.chunkOverlap(req))
	return ActionResult{Message: msg}, err
}

func (c *Controller) actionIngest(req ActionRequest) (ActionResult, error) {
	msg, err := c.IngestPaths(req.Paths, c.chunkSize(req), c.chunkOverlap(req), req.ClearExisting)
	return ActionResult{Message: msg}, err
}

func (c *Controller) actionClear(ActionRequest) (ActionResult, error) {
	c.ClearConversation()
	return ActionResult{Message: "Conversation cleared"}, nil
}

func (c *Controller) actionStatus(ActionRequest) (ActionResult, error) {
	info, err := c.CheckStatus()
	if err != nil {
		return ActionResult{}, err
	}
	return ActionResult{
		Message: fmt.Sprintf("backend %s (index %s, model %s, local metrics %s)",
			info.Status, info.PineconeIndex, info.OpenAIModel, info.LocalMetrics),
	}, nil
}

func (c *Controller) actionQuestions(ActionRequest) (ActionResult, error) {
	questions := c.RefreshQuestions()
	return ActionResult{Message: strings.Join(questions, "\n")}, nil
}

func (c *Controller) actionDismiss(ActionRequest) (ActionResult, error) {
	c.DismissModal()
	return ActionResult{}, nil
}
