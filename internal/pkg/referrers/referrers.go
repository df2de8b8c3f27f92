// Package referrers classifies referrer URLs into traffic-source
// categories: direct traffic, known search engines and social networks,
// or the bare referrer hostname.
package referrers

import (
	"net/url"
	"strings"

	"go.elara.ws/pcre"
)

// Direct is the category and domain for traffic without a usable
// external referrer.
const Direct = "Direct"

// Other is the fallback when a referrer has no usable hostname.
const Other = "Other"

// Classification is the result of classifying one referrer URL.
type Classification struct {
	Category string
	Domain   string
}

type knownReferrer struct {
	pattern *pcre.Regexp
	name    string
}

// Ordered known-referrer host patterns; first match wins.
var knownReferrers = []knownReferrer{
	{pcre.MustCompile(`google\.`), "Google"},
	{pcre.MustCompile(`bing\.`), "Bing"},
	{pcre.MustCompile(`duckduckgo\.`), "DuckDuckGo"},
	{pcre.MustCompile(`yahoo\.`), "Yahoo"},
	{pcre.MustCompile(`linkedin\.`), "LinkedIn"},
	{pcre.MustCompile(`facebook\.|fb\.`), "Facebook"},
	{pcre.MustCompile(`instagram\.`), "Instagram"},
	{pcre.MustCompile(`twitter\.|t\.co|x\.com`), "X (Twitter)"},
	{pcre.MustCompile(`github\.`), "GitHub"},
	{pcre.MustCompile(`whatsapp\.|wa\.me`), "WhatsApp"},
	{pcre.MustCompile(`tiktok\.`), "TikTok"},
}

// Classify maps a referrer URL and the site's own host to a traffic
// source. Empty or unparseable referrers and same-site referrals count
// as direct traffic; a leading "www." is ignored on both hosts.
func Classify(referrer, siteHost string) Classification {
	if referrer == "" {
		return Classification{Category: Direct, Domain: Direct}
	}

	parsed, err := url.Parse(referrer)
	if err != nil || parsed.Hostname() == "" {
		return Classification{Category: Direct, Domain: Direct}
	}

	refHost := trimWWW(strings.ToLower(parsed.Hostname()))
	baseHost := trimWWW(strings.ToLower(strings.TrimSpace(siteHost)))
	if baseHost != "" && refHost == baseHost {
		return Classification{Category: Direct, Domain: orDirect(refHost)}
	}

	for _, known := range knownReferrers {
		if known.pattern.MatchString(refHost) {
			return Classification{Category: known.name, Domain: refHost}
		}
	}

	return Classification{Category: orOther(refHost), Domain: orOther(refHost)}
}

func trimWWW(host string) string {
	return strings.TrimPrefix(host, "www.")
}

func orDirect(host string) string {
	if host == "" {
		return Direct
	}
	return host
}

func orOther(host string) string {
	if host == "" {
		return Other
	}
	return host
}
