// Package geoip resolves client IP addresses to geographic context using
// a local GeoLite2 City database. The database is optional: without it
// every lookup returns an empty context and the collector keeps working.
package geoip

import (
	"log/slog"
	"net"
	"os"
	"strings"

	"github.com/oschwald/geoip2-golang"
	"github.com/pariz/gountries"
)

// Context carries the geographic attributes of a request. Empty fields
// mean the attribute could not be resolved.
type Context struct {
	CountryName string
	CountryCode string
	Subdivision string
	City        string
	Timezone    string
}

// Resolver wraps the GeoLite2 reader. A nil reader is valid and yields
// empty contexts.
type Resolver struct {
	reader    *geoip2.Reader
	countries *gountries.Query
	logger    *slog.Logger
}

// NewResolver opens the GeoLite2 City database at path. A missing or
// unconfigured database disables geo resolution instead of failing.
func NewResolver(path string, logger *slog.Logger) *Resolver {
	resolver := &Resolver{
		countries: gountries.New(),
		logger:    logger,
	}

	if path == "" {
		logger.Debug("GeoIP database path not configured - geo resolution disabled")
		return resolver
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info("GeoLite2 database not found - geo resolution disabled",
			slog.String("path", path),
			slog.String("hint", "Download from https://www.maxmind.com/en/geolite2/signup"))
		return resolver
	}

	reader, err := geoip2.Open(path)
	if err != nil {
		logger.Warn("Failed to open GeoLite2 database - geo resolution disabled",
			slog.String("path", path),
			slog.Any("error", err))
		return resolver
	}

	logger.Info("GeoLite2 database loaded", slog.String("path", path))
	resolver.reader = reader
	return resolver
}

// Lookup resolves ipAddress to a geographic context. Unresolvable inputs
// return the zero Context.
func (r *Resolver) Lookup(ipAddress string) Context {
	if r.reader == nil {
		return Context{}
	}

	ip := net.ParseIP(strings.TrimSpace(ipAddress))
	if ip == nil {
		return Context{}
	}

	record, err := r.reader.City(ip)
	if err != nil {
		r.logger.Debug("GeoIP lookup failed",
			slog.String("ip_address", ipAddress),
			slog.Any("error", err))
		return Context{}
	}

	ctx := Context{
		CountryName: record.Country.Names["en"],
		CountryCode: record.Country.IsoCode,
		City:        record.City.Names["en"],
		Timezone:    record.Location.TimeZone,
	}
	if len(record.Subdivisions) > 0 {
		ctx.Subdivision = record.Subdivisions[0].Names["en"]
	}

	// Some GeoLite2 records carry only the ISO code; fill in the common
	// country name from the gountries dataset.
	if ctx.CountryName == "" && ctx.CountryCode != "" {
		if country, err := r.countries.FindCountryByAlpha(ctx.CountryCode); err == nil {
			ctx.CountryName = country.Name.Common
		}
	}

	return ctx
}

// Close releases the GeoLite2 reader.
func (r *Resolver) Close() error {
	if r.reader == nil {
		return nil
	}
	return r.reader.Close()
}
