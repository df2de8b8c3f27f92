// Package stats owns the aggregate stats document: the persisted shape,
// the ingest fold that applies normalized events to it, and the range
// query engine that slices it into dashboard summaries.
package stats

import (
	"encoding/json"
	"time"
)

const (
	// MaxRecent bounds the recent-events buffer; it is a recency window,
	// not a full log.
	MaxRecent = 25

	// DefaultRetentionDays is how many calendar days of per-day buckets
	// are kept relative to pruning time.
	DefaultRetentionDays = 90

	// DateKeyLayout is the UTC calendar-day key of the daily map. Keys
	// are zero-padded, so lexicographic order is chronological order.
	DateKeyLayout = "2006-01-02"

	// isoMillis matches the wire format of RecentEvent timestamps.
	isoMillis = "2006-01-02T15:04:05.000Z"
)

// Counts is a label-to-count dimension map. Counters are append-only;
// values are never decremented.
type Counts map[string]int64

// Increment bumps key by one. Empty keys are dropped so the map never
// carries an empty label.
func (c Counts) Increment(key string) {
	if key == "" {
		return
	}
	c[key]++
}

// AddAll merges source into c by per-key summation.
func (c Counts) AddAll(source Counts) {
	for key, value := range source {
		if key == "" {
			continue
		}
		c[key] += value
	}
}

// Clone returns an independent copy of c.
func (c Counts) Clone() Counts {
	out := make(Counts, len(c))
	for key, value := range c {
		out[key] = value
	}
	return out
}

// Dimensions holds the per-label counter maps shared by the
// all-time document and the per-day buckets.
type Dimensions struct {
	Pages     Counts `json:"pages"`
	Countries Counts `json:"countries"`
	Regions   Counts `json:"regions"`
	Cities    Counts `json:"cities"`
	Timezones Counts `json:"timezones"`
	Devices   Counts `json:"devices"`
	OS        Counts `json:"os"`
	Browsers  Counts `json:"browsers"`
	Referrers Counts `json:"referrers"`
	Landings  Counts `json:"landings"`
	Errors404 Counts `json:"errors404"`
}

func newDimensions() Dimensions {
	return Dimensions{
		Pages:     Counts{},
		Countries: Counts{},
		Regions:   Counts{},
		Cities:    Counts{},
		Timezones: Counts{},
		Devices:   Counts{},
		OS:        Counts{},
		Browsers:  Counts{},
		Referrers: Counts{},
		Landings:  Counts{},
		Errors404: Counts{},
	}
}

// normalize replaces nil maps so prior corruption or legacy documents
// cannot panic the fold.
func (d *Dimensions) normalize() {
	maps := []*Counts{
		&d.Pages, &d.Countries, &d.Regions, &d.Cities, &d.Timezones,
		&d.Devices, &d.OS, &d.Browsers, &d.Referrers, &d.Landings, &d.Errors404,
	}
	for _, m := range maps {
		if *m == nil {
			*m = Counts{}
		}
	}
}

// RecentEvent is a denormalized display snapshot of one ingested event,
// independent of later mutation to the dimension maps.
type RecentEvent struct {
	Time     string `json:"time"`
	Event    string `json:"event"`
	Path     string `json:"path"`
	Country  string `json:"country"`
	Region   string `json:"region"`
	City     string `json:"city"`
	Timezone string `json:"timezone"`
	Device   string `json:"device"`
	OS       string `json:"os"`
	Browser  string `json:"browser"`
	Referrer string `json:"referrer"`
}

// SessionSpan tracks the observed extent of one session within a day.
type SessionSpan struct {
	Start   int64  `json:"start"`
	End     int64  `json:"end"`
	Landing string `json:"landing,omitempty"`
}

// DayBucket aggregates one UTC calendar day with activity.
type DayBucket struct {
	Pageviews int64 `json:"pageviews"`
	Dimensions
	Uniques   int64                   `json:"uniques"`
	UniqueIDs map[string]bool         `json:"uniqueIds"`
	Sessions  map[string]*SessionSpan `json:"sessions"`
}

// NewDayBucket returns an empty bucket with all containers allocated.
func NewDayBucket() *DayBucket {
	return &DayBucket{
		Dimensions: newDimensions(),
		UniqueIDs:  map[string]bool{},
		Sessions:   map[string]*SessionSpan{},
	}
}

func (b *DayBucket) normalize() {
	b.Dimensions.normalize()
	if b.UniqueIDs == nil {
		b.UniqueIDs = map[string]bool{}
	}
	if b.Sessions == nil {
		b.Sessions = map[string]*SessionSpan{}
	}
	for id, span := range b.Sessions {
		if span == nil {
			delete(b.Sessions, id)
		}
	}
	// The cached cardinality must track the set exactly.
	b.Uniques = int64(len(b.UniqueIDs))
}

// Document is the single persisted aggregate: all-time totals, the
// bounded recent buffer, and per-day buckets.
type Document struct {
	Total int64 `json:"total"`
	Dimensions
	Recent []RecentEvent         `json:"recent"`
	Daily  map[string]*DayBucket `json:"daily"`
}

// NewDocument returns an empty aggregate document.
func NewDocument() *Document {
	return &Document{
		Dimensions: newDimensions(),
		Recent:     []RecentEvent{},
		Daily:      map[string]*DayBucket{},
	}
}

func (d *Document) normalize() {
	d.Dimensions.normalize()
	if d.Recent == nil {
		d.Recent = []RecentEvent{}
	}
	if len(d.Recent) > MaxRecent {
		d.Recent = d.Recent[:MaxRecent]
	}
	if d.Daily == nil {
		d.Daily = map[string]*DayBucket{}
	}
	for key, bucket := range d.Daily {
		if bucket == nil {
			delete(d.Daily, key)
			continue
		}
		bucket.normalize()
	}
}

// DecodeDocument validates a stored document once at the load boundary.
// Anything that fails strict decoding - absent, non-object, or mistyped -
// fails closed to an empty document; a decodable document has its nested
// containers repaired in place.
func DecodeDocument(raw json.RawMessage) *Document {
	if len(raw) == 0 {
		return NewDocument()
	}
	doc := &Document{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return NewDocument()
	}
	doc.normalize()
	return doc
}

// DateKey returns the UTC calendar-day key for a millisecond timestamp.
func DateKey(timestampMillis int64) string {
	return time.UnixMilli(timestampMillis).UTC().Format(DateKeyLayout)
}
