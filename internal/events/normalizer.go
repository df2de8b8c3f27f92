// Package events normalizes raw beacon payloads into typed events.
//
// Normalization never fails: every field of the inbound payload has a
// safe fallback, so a garbage body degrades to a default pageview on the
// "unknown" path instead of being rejected.
package events

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"pagebeacon/internal/pkg/geoip"
	"pagebeacon/internal/pkg/referrers"
	ua "pagebeacon/internal/pkg/user_agent"
	"pagebeacon/internal/visitors"
)

// ParsePayload extracts the known beacon fields from an untrusted JSON
// body. Malformed JSON or mistyped fields yield the zero Payload, never
// an error.
func ParsePayload(body []byte) Payload {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return Payload{}
	}

	var p Payload
	if v, ok := raw["path"].(string); ok {
		p.Path = v
	}
	if v, ok := raw["event"].(string); ok {
		p.Event = v
	}
	if v, ok := raw["timestamp"].(float64); ok {
		p.Timestamp = &v
	}
	if v, ok := raw["sessionId"].(string); ok {
		p.SessionID = v
	}
	if v, ok := raw["landing"].(string); ok {
		p.Landing = strings.TrimSpace(v)
	}
	if v, ok := raw["referrer"].(string); ok {
		p.Referrer = strings.TrimSpace(v)
	}
	if v, ok := raw["host"].(string); ok {
		p.Host = strings.TrimSpace(v)
	}
	if v, ok := raw["isNewSession"].(bool); ok {
		p.IsNewSession = v
	}
	return p
}

// NormalizeInput bundles the request-scoped inputs of normalization.
type NormalizeInput struct {
	Payload   Payload
	UserAgent string
	ClientIP  string
	Geo       geoip.Context
	Now       time.Time
}

// Normalize canonicalizes one beacon event.
func Normalize(in NormalizeInput) NormalizedEvent {
	p := in.Payload

	path := strings.TrimSpace(p.Path)
	if path == "" {
		path = UnknownPath
	}

	eventType := EventTypePageView
	switch p.Event {
	case string(EventTypeError404):
		eventType = EventTypeError404
	case string(EventTypeSessionEnd):
		eventType = EventTypeSessionEnd
	}

	timestamp := in.Now.UnixMilli()
	if p.Timestamp != nil && !math.IsNaN(*p.Timestamp) && !math.IsInf(*p.Timestamp, 0) {
		timestamp = int64(*p.Timestamp)
	}

	parsed := ua.ParseUserAgent(in.UserAgent)
	ref := referrers.Classify(p.Referrer, p.Host)

	return NormalizedEvent{
		Path:               path,
		EventType:          eventType,
		TimestampMillis:    timestamp,
		SessionID:          p.SessionID,
		Landing:            p.Landing,
		IsNewSession:       p.IsNewSession,
		VisitorFingerprint: visitors.Fingerprint(in.ClientIP, in.UserAgent),
		CountryLabel:       countryLabel(in.Geo),
		RegionLabel:        regionLabel(in.Geo),
		CityLabel:          cityLabel(in.Geo),
		Timezone:           in.Geo.Timezone,
		Device:             parsed.Device,
		OS:                 parsed.OS,
		Browser:            parsed.Browser,
		ReferrerCategory:   ref.Category,
		ReferrerDomain:     ref.Domain,
	}
}

// countryLabel renders "Name (CC)" when both parts are known, otherwise
// whichever one is.
func countryLabel(geo geoip.Context) string {
	switch {
	case geo.CountryName != "" && geo.CountryCode != "":
		return geo.CountryName + " (" + geo.CountryCode + ")"
	case geo.CountryName != "":
		return geo.CountryName
	default:
		return geo.CountryCode
	}
}

func regionLabel(geo geoip.Context) string {
	if geo.Subdivision != "" && geo.CountryName != "" {
		return geo.Subdivision + ", " + geo.CountryName
	}
	return geo.Subdivision
}

// cityLabel appends region and country to the city when present,
// comma-separated, omitting any missing piece.
func cityLabel(geo geoip.Context) string {
	if geo.City == "" {
		return ""
	}
	parts := []string{geo.City}
	if geo.Subdivision != "" {
		parts = append(parts, geo.Subdivision)
	}
	if geo.CountryName != "" {
		parts = append(parts, geo.CountryName)
	}
	return strings.Join(parts, ", ")
}
