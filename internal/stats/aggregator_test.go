package stats_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagebeacon/internal/events"
	"pagebeacon/internal/stats"
	"pagebeacon/internal/storage"
	"pagebeacon/internal/testsupport"
)

var ingestNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func pageviewEvent(path string) events.NormalizedEvent {
	return events.NormalizedEvent{
		Path:               path,
		EventType:          events.EventTypePageView,
		TimestampMillis:    ingestNow.UnixMilli(),
		SessionID:          "s-1",
		CountryLabel:       "Germany (DE)",
		RegionLabel:        "Berlin, Germany",
		CityLabel:          "Berlin, Berlin, Germany",
		Timezone:           "Europe/Berlin",
		Device:             "Desktop",
		OS:                 "Linux",
		Browser:            "Firefox",
		ReferrerCategory:   "Google",
		ReferrerDomain:     "google.com",
		VisitorFingerprint: "fp-1",
	}
}

func TestIngestFirstPageview(t *testing.T) {
	agg, store := testsupport.NewAggregator(t, testsupport.FixedClock(ingestNow))

	result, err := agg.Ingest(context.Background(), pageviewEvent("/pricing"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Total)
	assert.Equal(t, "/pricing", result.Path)
	assert.Equal(t, int64(1), result.PathCount)
	assert.Equal(t, "Germany (DE)", result.Country)
	assert.Equal(t, "Firefox", result.Browser)
	assert.Equal(t, "Google", result.Referrer)

	doc := testsupport.LoadDocument(t, store, "stats")
	assert.Equal(t, int64(1), doc.Total)
	assert.Equal(t, int64(1), doc.Pages["/pricing"])
	assert.Equal(t, int64(1), doc.Countries["Germany (DE)"])

	bucket := doc.Daily["2026-03-14"]
	require.NotNil(t, bucket)
	assert.Equal(t, int64(1), bucket.Pageviews)
	assert.Equal(t, int64(1), bucket.Uniques)
	assert.Equal(t, int64(1), bucket.Pages["/pricing"])

	require.Len(t, doc.Recent, 1)
	assert.Equal(t, "/pricing", doc.Recent[0].Path)
	assert.Equal(t, "pageview", doc.Recent[0].Event)
	assert.Equal(t, "2026-03-14T12:00:00.000Z", doc.Recent[0].Time)
}

func TestIngestCountersAreMonotonic(t *testing.T) {
	agg, store := testsupport.NewAggregator(t, testsupport.FixedClock(ingestNow))

	for i := 0; i < 3; i++ {
		_, err := agg.Ingest(context.Background(), pageviewEvent("/"))
		require.NoError(t, err)
	}

	doc := testsupport.LoadDocument(t, store, "stats")
	assert.Equal(t, int64(3), doc.Total)
	assert.Equal(t, int64(3), doc.Pages["/"])
	assert.Equal(t, int64(3), doc.Daily["2026-03-14"].Pageviews)
}

func TestIngestSessionEndCountsNothing(t *testing.T) {
	agg, store := testsupport.NewAggregator(t, testsupport.FixedClock(ingestNow))

	ev := pageviewEvent("/")
	ev.EventType = events.EventTypeSessionEnd

	result, err := agg.Ingest(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Total)

	doc := testsupport.LoadDocument(t, store, "stats")
	assert.Zero(t, doc.Total)
	assert.Empty(t, doc.Pages)
	assert.Empty(t, doc.Recent)

	// The session span is still recorded.
	bucket := doc.Daily["2026-03-14"]
	require.NotNil(t, bucket)
	assert.Zero(t, bucket.Pageviews)
	require.Contains(t, bucket.Sessions, "s-1")
	assert.Equal(t, ingestNow.UnixMilli(), bucket.Sessions["s-1"].Start)
}

func TestIngest404(t *testing.T) {
	agg, store := testsupport.NewAggregator(t, testsupport.FixedClock(ingestNow))

	ev := pageviewEvent("/missing")
	ev.EventType = events.EventTypeError404

	_, err := agg.Ingest(context.Background(), ev)
	require.NoError(t, err)

	doc := testsupport.LoadDocument(t, store, "stats")
	assert.Equal(t, int64(1), doc.Total, "404 hits still count as pageviews")
	assert.Equal(t, int64(1), doc.Errors404["/missing"])
	assert.Equal(t, int64(1), doc.Daily["2026-03-14"].Errors404["/missing"])
	require.Len(t, doc.Recent, 1)
	assert.Equal(t, "404", doc.Recent[0].Event)
}

func TestIngestUniqueDeduplication(t *testing.T) {
	agg, store := testsupport.NewAggregator(t, testsupport.FixedClock(ingestNow))

	first := pageviewEvent("/")
	second := pageviewEvent("/pricing")
	third := pageviewEvent("/")
	third.VisitorFingerprint = "fp-2"

	// Same fingerprint next day counts again.
	fourth := pageviewEvent("/")
	fourth.TimestampMillis = ingestNow.AddDate(0, 0, 1).UnixMilli()

	for _, ev := range []events.NormalizedEvent{first, second, third, fourth} {
		_, err := agg.Ingest(context.Background(), ev)
		require.NoError(t, err)
	}

	doc := testsupport.LoadDocument(t, store, "stats")
	assert.Equal(t, int64(2), doc.Daily["2026-03-14"].Uniques)
	assert.Equal(t, int64(1), doc.Daily["2026-03-15"].Uniques)
}

func TestIngestEmptyFingerprintNotUnique(t *testing.T) {
	agg, store := testsupport.NewAggregator(t, testsupport.FixedClock(ingestNow))

	ev := pageviewEvent("/")
	ev.VisitorFingerprint = ""
	_, err := agg.Ingest(context.Background(), ev)
	require.NoError(t, err)

	doc := testsupport.LoadDocument(t, store, "stats")
	assert.Zero(t, doc.Daily["2026-03-14"].Uniques)
	assert.Equal(t, int64(1), doc.Daily["2026-03-14"].Pageviews)
}

func TestIngestLandingOnlyForNewSessions(t *testing.T) {
	agg, store := testsupport.NewAggregator(t, testsupport.FixedClock(ingestNow))

	ev := pageviewEvent("/docs")
	ev.Landing = "/docs"
	_, err := agg.Ingest(context.Background(), ev)
	require.NoError(t, err)

	ev.IsNewSession = true
	_, err = agg.Ingest(context.Background(), ev)
	require.NoError(t, err)

	doc := testsupport.LoadDocument(t, store, "stats")
	assert.Equal(t, int64(1), doc.Landings["/docs"])
}

func TestIngestUnknownFallbacks(t *testing.T) {
	agg, store := testsupport.NewAggregator(t, testsupport.FixedClock(ingestNow))

	ev := events.NormalizedEvent{
		Path:            "/",
		EventType:       events.EventTypePageView,
		TimestampMillis: ingestNow.UnixMilli(),
		Device:          "Desktop",
		OS:              "Other",
		Browser:         "Other",
	}

	result, err := agg.Ingest(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, "Unknown", result.Country)

	doc := testsupport.LoadDocument(t, store, "stats")
	assert.Equal(t, int64(1), doc.Countries["Unknown"])
	assert.Empty(t, doc.Regions, "empty region labels are not counted")
	require.Len(t, doc.Recent, 1)
	assert.Equal(t, "Unknown", doc.Recent[0].Region)
	assert.Equal(t, "Unknown", doc.Recent[0].City)
	assert.Equal(t, "Unknown", doc.Recent[0].Timezone)
}

func TestIngestSessionSpanExtension(t *testing.T) {
	agg, store := testsupport.NewAggregator(t, testsupport.FixedClock(ingestNow))

	base := ingestNow.UnixMilli()

	first := pageviewEvent("/")
	first.TimestampMillis = base + 1000
	_, err := agg.Ingest(context.Background(), first)
	require.NoError(t, err)

	// An earlier event for the same session pulls the start back.
	second := pageviewEvent("/a")
	second.TimestampMillis = base + 500
	_, err = agg.Ingest(context.Background(), second)
	require.NoError(t, err)

	// session_end pushes the end forward.
	third := pageviewEvent("/")
	third.EventType = events.EventTypeSessionEnd
	third.TimestampMillis = base + 90000
	_, err = agg.Ingest(context.Background(), third)
	require.NoError(t, err)

	doc := testsupport.LoadDocument(t, store, "stats")
	span := doc.Daily["2026-03-14"].Sessions["s-1"]
	require.NotNil(t, span)
	assert.Equal(t, base+500, span.Start)
	assert.Equal(t, base+90000, span.End)
}

func TestIngestRecentBufferCapped(t *testing.T) {
	agg, store := testsupport.NewAggregator(t, testsupport.FixedClock(ingestNow))

	for i := 0; i < stats.MaxRecent+5; i++ {
		ev := pageviewEvent("/")
		ev.TimestampMillis = ingestNow.UnixMilli() + int64(i)
		_, err := agg.Ingest(context.Background(), ev)
		require.NoError(t, err)
	}

	doc := testsupport.LoadDocument(t, store, "stats")
	require.Len(t, doc.Recent, stats.MaxRecent)
	assert.Equal(t, "2026-03-14T12:00:00.029Z", doc.Recent[0].Time, "newest entry first")
}

func TestIngestPrunesOldDays(t *testing.T) {
	agg, store := testsupport.NewAggregator(t, testsupport.FixedClock(ingestNow))

	// A backdated event one day past the retention window is pruned by
	// the same write that recorded it.
	old := pageviewEvent("/old")
	old.TimestampMillis = ingestNow.AddDate(0, 0, -stats.DefaultRetentionDays).UnixMilli()
	_, err := agg.Ingest(context.Background(), old)
	require.NoError(t, err)

	// The oldest day still inside the window survives.
	edge := pageviewEvent("/edge")
	edge.TimestampMillis = ingestNow.AddDate(0, 0, -(stats.DefaultRetentionDays - 1)).UnixMilli()
	_, err = agg.Ingest(context.Background(), edge)
	require.NoError(t, err)

	doc := testsupport.LoadDocument(t, store, "stats")
	assert.NotContains(t, doc.Daily, stats.DateKey(old.TimestampMillis))
	assert.Len(t, doc.Daily, 1)
	assert.Contains(t, doc.Daily, stats.DateKey(edge.TimestampMillis))

	// All-time counters survive pruning.
	assert.Equal(t, int64(2), doc.Total)
	assert.Equal(t, int64(1), doc.Pages["/old"])
}

func TestIngestStorageFailures(t *testing.T) {
	clock := testsupport.FixedClock(ingestNow)

	t.Run("get failure", func(t *testing.T) {
		agg, store := testsupport.NewAggregator(t, clock)
		store.FailGets = assert.AnError

		_, err := agg.Ingest(context.Background(), pageviewEvent("/"))
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("put failure", func(t *testing.T) {
		agg, store := testsupport.NewAggregator(t, clock)
		store.FailPuts = assert.AnError

		_, err := agg.Ingest(context.Background(), pageviewEvent("/"))
		assert.ErrorIs(t, err, assert.AnError)

		// Nothing was persisted.
		store.FailPuts = nil
		_, getErr := store.Get(context.Background(), "stats")
		assert.ErrorIs(t, getErr, storage.ErrNotFound)
	})
}

func TestIngestCorruptDocumentResets(t *testing.T) {
	agg, store := testsupport.NewAggregator(t, testsupport.FixedClock(ingestNow))
	require.NoError(t, store.Put(context.Background(), "stats", []byte(`{"total": "garbage"`)))

	result, err := agg.Ingest(context.Background(), pageviewEvent("/"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Total, "corrupt document is replaced by a fresh one")
}
