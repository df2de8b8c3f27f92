// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pagebeacon/internal/stats"
	"pagebeacon/internal/storage"
)

// NewTestLogger returns a logger that discards all output.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// FixedClock returns a clock pinned to the given UTC instant.
func FixedClock(t time.Time) *stats.FixedTimeProvider {
	return &stats.FixedTimeProvider{Time: t.UTC()}
}

// NewAggregator wires an aggregator over an in-memory store for tests.
// It returns the aggregator along with the store so tests can inspect or
// corrupt the persisted document.
func NewAggregator(t *testing.T, clock stats.TimeProvider) (*stats.Aggregator, *storage.InMemoryStore) {
	t.Helper()
	store := storage.NewInMemoryStore()
	agg := stats.NewAggregator(store, "stats", stats.DefaultRetentionDays, NewTestLogger(), clock)
	return agg, store
}

// LoadDocument fetches and decodes the aggregate document from a store.
func LoadDocument(t *testing.T, store storage.DocumentStore, key string) *stats.Document {
	t.Helper()
	raw, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	return stats.DecodeDocument(raw)
}

// SeedDocument marshals and stores a document under the given key.
func SeedDocument(t *testing.T, store storage.DocumentStore, key string, doc *stats.Document) {
	t.Helper()
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), key, raw))
}

// Common user agent strings used across classifier and handler tests.
const (
	UAChromeWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	UAEdgeWindows   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36 Edg/123.0.2420.65"
	UASafariMac     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"
	UAFirefoxLinux  = "Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0"
	UAiPhone        = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	UAiPad          = "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	UAAndroid       = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Mobile Safari/537.36"
	UAGooglebot     = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)
