package chat

type EventKind string

const (
	EventTranscript EventKind = "transcript"
	EventMetrics    EventKind = "metrics"
	EventQuestions  EventKind = "questions"
	EventBanner     EventKind = "banner"
	EventBusy       EventKind = "busy"
	EventStatus     EventKind = "status"
	EventModal      EventKind = "modal"
)

// Event tells a front that part of the controller state changed. Fronts
// re-read the snapshot; events carry no payload.
type Event struct {
	Kind EventKind
}

type BannerKind string

const (
	BannerInfo    BannerKind = "info"
	BannerSuccess BannerKind = "success"
	BannerError   BannerKind = "error"
)

// Banner is the transient notice line above the input area. Success and
// info banners auto-hide; error banners stick until the next action.
type Banner struct {
	Kind    BannerKind `json:"kind"`
	Text    string     `json:"text"`
	Visible bool       `json:"visible"`
}
