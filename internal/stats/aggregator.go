package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pagebeacon/internal/events"
	"pagebeacon/internal/storage"
)

// IngestResult echoes the applied event back to the beacon caller. It is
// an acknowledgement, not an analytics response.
type IngestResult struct {
	Total     int64  `json:"total"`
	Path      string `json:"path"`
	PathCount int64  `json:"pathCount"`
	Country   string `json:"country"`
	Device    string `json:"device"`
	OS        string `json:"os"`
	Browser   string `json:"browser"`
	Referrer  string `json:"referrer"`
}

// Aggregator folds normalized events into the persisted aggregate
// document through a whole-document read-modify-write cycle.
//
// The mutex serializes ingests within one process, which the original
// single-writer design did implicitly. Across processes the cycle is
// still last-writer-wins: two concurrent writers can overwrite each
// other's increments. That trade-off is part of the storage contract.
type Aggregator struct {
	store         storage.DocumentStore
	key           string
	retentionDays int
	logger        *slog.Logger
	clock         TimeProvider
	mu            sync.Mutex
}

// NewAggregator creates an aggregator writing to key in store. A zero
// retentionDays falls back to DefaultRetentionDays; a nil clock uses the
// system clock.
func NewAggregator(store storage.DocumentStore, key string, retentionDays int, logger *slog.Logger, clock TimeProvider) *Aggregator {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	if clock == nil {
		clock = &DefaultTimeProvider{}
	}
	return &Aggregator{
		store:         store,
		key:           key,
		retentionDays: retentionDays,
		logger:        logger,
		clock:         clock,
	}
}

// Ingest applies one normalized event to the aggregate document and
// persists the result. A storage failure on either side of the cycle is
// returned to the caller; the event is then lost, there is no retry.
func (a *Aggregator) Ingest(ctx context.Context, ev events.NormalizedEvent) (*IngestResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	doc, err := a.load(ctx)
	if err != nil {
		return nil, err
	}

	dayKey := DateKey(ev.TimestampMillis)
	bucket, ok := doc.Daily[dayKey]
	if !ok {
		bucket = NewDayBucket()
		doc.Daily[dayKey] = bucket
	}

	countryLabel := orUnknown(ev.CountryLabel)

	if ev.EventType.IsPageview() {
		a.applyCounters(doc, bucket, ev, countryLabel)
	}

	a.applySession(bucket, ev)

	if ev.EventType.IsPageview() {
		doc.Recent = prependRecent(doc.Recent, snapshotRecent(ev, countryLabel))
	}

	a.prune(doc)

	if err := a.persist(ctx, doc); err != nil {
		return nil, err
	}

	a.logger.Debug("Ingested event",
		slog.String("path", ev.Path),
		slog.String("event_type", string(ev.EventType)),
		slog.String("day", dayKey),
		slog.Int64("total", doc.Total))

	return &IngestResult{
		Total:     doc.Total,
		Path:      ev.Path,
		PathCount: doc.Pages[ev.Path],
		Country:   countryLabel,
		Device:    ev.Device,
		OS:        ev.OS,
		Browser:   ev.Browser,
		Referrer:  ev.ReferrerCategory,
	}, nil
}

func (a *Aggregator) load(ctx context.Context) (*Document, error) {
	raw, err := a.store.Get(ctx, a.key)
	if errors.Is(err, storage.ErrNotFound) {
		return NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load aggregate document: %w", err)
	}
	return DecodeDocument(raw), nil
}

func (a *Aggregator) persist(ctx context.Context, doc *Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode aggregate document: %w", err)
	}
	if err := a.store.Put(ctx, a.key, raw); err != nil {
		return fmt.Errorf("failed to persist aggregate document: %w", err)
	}
	return nil
}

// applyCounters increments the all-time and per-day counters for a
// pageview-class event.
func (a *Aggregator) applyCounters(doc *Document, bucket *DayBucket, ev events.NormalizedEvent, countryLabel string) {
	doc.Total++
	bucket.Pageviews++

	doc.Pages.Increment(ev.Path)
	bucket.Pages.Increment(ev.Path)

	doc.Countries.Increment(countryLabel)
	bucket.Countries.Increment(countryLabel)
	doc.Regions.Increment(ev.RegionLabel)
	bucket.Regions.Increment(ev.RegionLabel)
	doc.Cities.Increment(ev.CityLabel)
	bucket.Cities.Increment(ev.CityLabel)
	doc.Timezones.Increment(ev.Timezone)
	bucket.Timezones.Increment(ev.Timezone)

	doc.Devices.Increment(ev.Device)
	bucket.Devices.Increment(ev.Device)
	doc.OS.Increment(ev.OS)
	bucket.OS.Increment(ev.OS)
	doc.Browsers.Increment(ev.Browser)
	bucket.Browsers.Increment(ev.Browser)
	doc.Referrers.Increment(ev.ReferrerCategory)
	bucket.Referrers.Increment(ev.ReferrerCategory)

	if ev.IsNewSession && ev.Landing != "" {
		doc.Landings.Increment(ev.Landing)
		bucket.Landings.Increment(ev.Landing)
	}

	if ev.EventType == events.EventTypeError404 {
		doc.Errors404.Increment(ev.Path)
		bucket.Errors404.Increment(ev.Path)
	}

	// Idempotent per fingerprint per day.
	if ev.VisitorFingerprint != "" && !bucket.UniqueIDs[ev.VisitorFingerprint] {
		bucket.UniqueIDs[ev.VisitorFingerprint] = true
		bucket.Uniques++
	}
}

// applySession extends the day's session span for any event type,
// including session_end.
func (a *Aggregator) applySession(bucket *DayBucket, ev events.NormalizedEvent) {
	if ev.SessionID == "" {
		return
	}

	span, ok := bucket.Sessions[ev.SessionID]
	if !ok {
		span = &SessionSpan{Start: ev.TimestampMillis, End: ev.TimestampMillis, Landing: ev.Landing}
		bucket.Sessions[ev.SessionID] = span
	}
	if ev.TimestampMillis < span.Start {
		span.Start = ev.TimestampMillis
	}
	if ev.TimestampMillis > span.End {
		span.End = ev.TimestampMillis
	}
	if ev.Landing != "" {
		span.Landing = ev.Landing
	}
}

// prune removes day buckets older than the retention window. Keys are
// zero-padded ISO dates, so the cutoff comparison is lexicographic.
func (a *Aggregator) prune(doc *Document) {
	cutoff := a.clock.Now().UTC().AddDate(0, 0, -(a.retentionDays - 1)).Format(DateKeyLayout)
	for key := range doc.Daily {
		if key < cutoff {
			delete(doc.Daily, key)
		}
	}
}

func snapshotRecent(ev events.NormalizedEvent, countryLabel string) RecentEvent {
	return RecentEvent{
		Time:     time.UnixMilli(ev.TimestampMillis).UTC().Format(isoMillis),
		Event:    string(ev.EventType),
		Path:     ev.Path,
		Country:  countryLabel,
		Region:   orUnknown(ev.RegionLabel),
		City:     orUnknown(ev.CityLabel),
		Timezone: orUnknown(ev.Timezone),
		Device:   ev.Device,
		OS:       ev.OS,
		Browser:  ev.Browser,
		Referrer: ev.ReferrerCategory,
	}
}

// prependRecent inserts newest-first and truncates to MaxRecent.
func prependRecent(recent []RecentEvent, entry RecentEvent) []RecentEvent {
	recent = append([]RecentEvent{entry}, recent...)
	if len(recent) > MaxRecent {
		recent = recent[:MaxRecent]
	}
	return recent
}

func orUnknown(label string) string {
	if label == "" {
		return events.UnknownLabel
	}
	return label
}
