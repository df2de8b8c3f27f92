package stats

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"pagebeacon/internal/storage"
)

// RangeMode selects between an explicit day window and the whole history.
type RangeMode string

const (
	RangeModeAll  RangeMode = "all"
	RangeModeDays RangeMode = "range"
)

// RangeSpec is a parsed range request.
type RangeSpec struct {
	Mode RangeMode
	Days int
}

// ParseRange interprets the range query parameter: "today" is a one-day
// window, a positive integer is an N-day window, everything else -
// including absence - means all time.
func ParseRange(param string) RangeSpec {
	switch param {
	case "", "all":
		return RangeSpec{Mode: RangeModeAll}
	case "today":
		return RangeSpec{Mode: RangeModeDays, Days: 1}
	}
	if days, err := strconv.Atoi(param); err == nil && days > 0 {
		return RangeSpec{Mode: RangeModeDays, Days: days}
	}
	return RangeSpec{Mode: RangeModeAll}
}

// Summary is the derived aggregate served to the dashboard.
type Summary struct {
	Range       string  `json:"range"`
	RangeStart  *string `json:"rangeStart"`
	RangeEnd    *string `json:"rangeEnd"`
	GeneratedAt string  `json:"generatedAt"`
	Pageviews   int64   `json:"pageviews"`
	Dimensions
	UniqueVisitors     int64         `json:"uniqueVisitors"`
	AvgSessionDuration int64         `json:"avgSessionDuration"`
	SessionCount       int64         `json:"sessionCount"`
	Recent             []RecentEvent `json:"recent"`
}

// Engine answers range queries against the stored aggregate document.
// It performs one read per query and never writes.
type Engine struct {
	store storage.DocumentStore
	key   string
	clock TimeProvider
}

// NewEngine creates a query engine reading key from store. A nil clock
// uses the system clock.
func NewEngine(store storage.DocumentStore, key string, clock TimeProvider) *Engine {
	if clock == nil {
		clock = &DefaultTimeProvider{}
	}
	return &Engine{store: store, key: key, clock: clock}
}

// Query loads the aggregate document and summarizes it for the requested
// range. A missing document yields an empty summary, not an error.
func (e *Engine) Query(ctx context.Context, spec RangeSpec) (*Summary, error) {
	raw, err := e.store.Get(ctx, e.key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to load aggregate document: %w", err)
	}
	return Summarize(DecodeDocument(raw), spec, e.clock.Now()), nil
}

// Summarize computes the range summary for a document. It is pure: the
// document is not mutated and now supplies "today".
func Summarize(doc *Document, spec RangeSpec, now time.Time) *Summary {
	dayKeys := make([]string, 0, len(doc.Daily))
	for key := range doc.Daily {
		dayKeys = append(dayKeys, key)
	}
	sort.Strings(dayKeys)

	selected := dayKeys
	var rangeStart, rangeEnd *string

	if spec.Mode == RangeModeDays && spec.Days > 0 {
		today := now.UTC()
		start := today.AddDate(0, 0, -(spec.Days - 1)).Format(DateKeyLayout)
		end := today.Format(DateKeyLayout)
		rangeStart, rangeEnd = &start, &end

		selected = selected[:0:0]
		for _, key := range dayKeys {
			if key >= start && key <= end {
				selected = append(selected, key)
			}
		}
	} else if len(dayKeys) > 0 {
		rangeStart, rangeEnd = &dayKeys[0], &dayKeys[len(dayKeys)-1]
	}

	summary := &Summary{
		Range:       rangeEcho(spec),
		RangeStart:  rangeStart,
		RangeEnd:    rangeEnd,
		GeneratedAt: now.UTC().Format(isoMillis),
		Dimensions:  newDimensions(),
	}

	uniqueSet := map[string]bool{}
	var totalDuration, totalSessions int64

	for _, key := range selected {
		day := doc.Daily[key]
		if day == nil {
			continue
		}
		summary.Pageviews += day.Pageviews
		summary.Pages.AddAll(day.Pages)
		summary.Countries.AddAll(day.Countries)
		summary.Regions.AddAll(day.Regions)
		summary.Cities.AddAll(day.Cities)
		summary.Timezones.AddAll(day.Timezones)
		summary.Devices.AddAll(day.Devices)
		summary.OS.AddAll(day.OS)
		summary.Browsers.AddAll(day.Browsers)
		summary.Referrers.AddAll(day.Referrers)
		summary.Landings.AddAll(day.Landings)
		summary.Errors404.AddAll(day.Errors404)

		for id := range day.UniqueIDs {
			uniqueSet[id] = true
		}

		for _, span := range day.Sessions {
			if span == nil || span.Start == 0 {
				continue
			}
			end := span.End
			if end == 0 {
				end = span.Start
			}
			if duration := end - span.Start; duration > 0 {
				totalDuration += duration
			}
			totalSessions++
		}
	}

	summary.UniqueVisitors = int64(len(uniqueSet))
	summary.SessionCount = totalSessions
	if totalSessions > 0 {
		summary.AvgSessionDuration = int64(math.Round(float64(totalDuration) / float64(totalSessions) / 1000.0))
	}

	// Legacy documents predate per-day buckets: fall back to the all-time
	// maps, without unique-visitor or session figures.
	if len(selected) == 0 && spec.Mode == RangeModeAll {
		summary.Pageviews = doc.Total
		summary.Pages = doc.Pages.Clone()
		summary.Countries = doc.Countries.Clone()
		summary.Regions = doc.Regions.Clone()
		summary.Cities = doc.Cities.Clone()
		summary.Timezones = doc.Timezones.Clone()
		summary.Devices = doc.Devices.Clone()
		summary.OS = doc.OS.Clone()
		summary.Browsers = doc.Browsers.Clone()
		summary.Referrers = doc.Referrers.Clone()
		summary.Landings = doc.Landings.Clone()
		summary.Errors404 = doc.Errors404.Clone()
	}

	summary.Recent = filterRecent(doc.Recent, spec, rangeStart, rangeEnd)
	return summary
}

// filterRecent slices the recent buffer down to the requested window.
// The buffer is already newest-first and capped, but the cap is applied
// again in case a legacy document stored more.
func filterRecent(recent []RecentEvent, spec RangeSpec, rangeStart, rangeEnd *string) []RecentEvent {
	filtered := recent
	if spec.Mode == RangeModeDays && rangeStart != nil && rangeEnd != nil {
		windowStart, startErr := time.Parse(time.RFC3339, *rangeStart+"T00:00:00Z")
		windowEnd, endErr := time.Parse(time.RFC3339, *rangeEnd+"T23:59:59Z")
		if startErr == nil && endErr == nil {
			filtered = make([]RecentEvent, 0, len(recent))
			for _, item := range recent {
				at, err := time.Parse(time.RFC3339, item.Time)
				if err != nil {
					continue
				}
				if !at.Before(windowStart) && !at.After(windowEnd) {
					filtered = append(filtered, item)
				}
			}
		}
	}

	if filtered == nil {
		filtered = []RecentEvent{}
	}
	if len(filtered) > MaxRecent {
		filtered = filtered[:MaxRecent]
	}
	return filtered
}

func rangeEcho(spec RangeSpec) string {
	if spec.Mode == RangeModeDays && spec.Days > 0 {
		return strconv.Itoa(spec.Days)
	}
	return "all"
}
