package events

// EventType represents the type of event.
type EventType string

const (
	EventTypePageView   EventType = "pageview"
	EventTypeError404   EventType = "404"
	EventTypeSessionEnd EventType = "session_end"
)

// Constants for unknown or default values
const (
	UnknownPath  = "unknown"
	UnknownLabel = "Unknown"
)

// IsPageview reports whether the event contributes to pageview counters.
// Both regular pageviews and 404 hits do; session_end events only extend
// session spans.
func (t EventType) IsPageview() bool {
	return t != EventTypeSessionEnd
}

// Payload is the tolerated subset of the beacon request body. Every
// field is optional; values of unexpected types are simply dropped.
type Payload struct {
	Path         string
	Event        string
	Timestamp    *float64
	SessionID    string
	Landing      string
	Referrer     string
	Host         string
	IsNewSession bool
}

// NormalizedEvent is one validated, canonicalized beacon event, ready to
// be folded into the aggregate document.
type NormalizedEvent struct {
	Path               string
	EventType          EventType
	TimestampMillis    int64
	SessionID          string
	Landing            string
	IsNewSession       bool
	VisitorFingerprint string

	// Geo labels; empty means unresolved.
	CountryLabel string
	RegionLabel  string
	CityLabel    string
	Timezone     string

	// Classifier output.
	Device           string
	OS               string
	Browser          string
	ReferrerCategory string
	ReferrerDomain   string
}
