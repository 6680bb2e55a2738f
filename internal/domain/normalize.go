package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// unixMillisThreshold separates unix-seconds from unix-millis timestamps.
// Anything above it is assumed to be milliseconds (10,000,000,000 seconds
// is the year 2286, far beyond any plausible alert time).
const unixMillisThreshold = 1e10

// Normalize converts one provider-shaped raw alert into the canonical record.
// Dispatch is driven by the shape tag set at fetch time; an unrecognized tag
// is the only error case. Field-level problems (bad timestamps, unmapped
// severities) degrade to null/Unknown rather than failing the record.
func Normalize(raw RawAlert, loc Location) (CanonicalAlert, error) {
	switch raw.Shape {
	case ShapeGovernment:
		return normalizeGovernment(raw, loc), nil
	case ShapeCommercialTag:
		return normalizeCommercial(raw, loc), nil
	case ShapeVendorCoded:
		return normalizeVendor(raw, loc), nil
	default:
		return CanonicalAlert{}, fmt.Errorf("normalize: unknown provider shape %q", raw.Shape)
	}
}

func normalizeGovernment(raw RawAlert, loc Location) CanonicalAlert {
	g := raw.Government
	a := CanonicalAlert{
		AlertID:     g.ID,
		Event:       g.Event,
		Severity:    governmentSeverity(g.Event),
		Description: g.Description,
		Headline:    g.Headline,
		Area:        g.AreaDesc,
		StartsAt:    ParseTimestamp(g.Onset),
		EndsAt:      ParseTimestamp(g.Ends),
		IssuedAt:    ParseTimestamp(g.Sent),
		LocationID:  loc.ID,
		Source:      raw.Source,
		RawType:     g.Event,
		Certainty:   g.Certainty,
		Urgency:     g.Urgency,
	}
	if a.AlertID == "" {
		a.AlertID = DeriveAlertID(a.RawType, a.StartsAt, a.Area)
	}
	return a
}

func normalizeCommercial(raw RawAlert, loc Location) CanonicalAlert {
	c := raw.Commercial
	a := CanonicalAlert{
		AlertID:     c.ID,
		Event:       c.Title,
		Severity:    commercialSeverity(c.Tags),
		Description: c.Description,
		Headline:    c.Title,
		Area:        c.Area,
		StartsAt:    ParseTimestamp(c.StartsAt),
		EndsAt:      ParseTimestamp(c.EndsAt),
		IssuedAt:    ParseTimestamp(c.IssuedAt),
		LocationID:  loc.ID,
		Source:      raw.Source,
		RawType:     strings.Join(c.Tags, ","),
		Certainty:   c.Certainty,
		Urgency:     c.Urgency,
	}
	if a.AlertID == "" {
		a.AlertID = DeriveAlertID(a.RawType, a.StartsAt, a.Area)
	}
	return a
}

func normalizeVendor(raw RawAlert, loc Location) CanonicalAlert {
	v := raw.Vendor
	a := CanonicalAlert{
		AlertID:     v.ID,
		Event:       v.Details.Name,
		Severity:    vendorSeverity(v.Details.Severity, v.Details.Priority),
		Description: v.Details.Body,
		Headline:    v.Details.Name,
		Area:        v.Zone,
		StartsAt:    ParseTimestamp(v.Timestamps.Begins),
		EndsAt:      ParseTimestamp(v.Timestamps.Expires),
		IssuedAt:    ParseTimestamp(v.Timestamps.Issued),
		LocationID:  loc.ID,
		Source:      raw.Source,
		RawType:     v.Details.Type,
	}
	if a.AlertID == "" {
		a.AlertID = DeriveAlertID(a.RawType, a.StartsAt, a.Area)
	}
	return a
}

// governmentSeverity maps a government-feed event name by substring match.
// "Emergency" outranks the rest so "Tornado Emergency Warning" lands on Extreme.
func governmentSeverity(event string) Severity {
	e := strings.ToLower(event)
	switch {
	case strings.Contains(e, "emergency"):
		return SeverityExtreme
	case strings.Contains(e, "warning"):
		return SeverityWarning
	case strings.Contains(e, "watch"):
		return SeverityWatch
	case strings.Contains(e, "advisory"):
		return SeverityAdvisory
	case strings.Contains(e, "statement"):
		return SeverityStatement
	default:
		return SeverityUnknown
	}
}

// commercialTagOrder is the priority order for free-text tag matching;
// the first tag found anywhere in the array wins.
var commercialTagOrder = []struct {
	tag string
	sev Severity
}{
	{"extreme", SeverityExtreme},
	{"severe", SeveritySevere},
	{"warning", SeverityWarning},
	{"watch", SeverityWatch},
	{"advisory", SeverityAdvisory},
	{"moderate", SeverityModerate},
}

func commercialSeverity(tags []string) Severity {
	for _, m := range commercialTagOrder {
		for _, t := range tags {
			if strings.EqualFold(strings.TrimSpace(t), m.tag) {
				return m.sev
			}
		}
	}
	return SeverityUnknown
}

// vendorSeverity maps the vendor's single-letter significance codes, falling
// back to numeric priority banding, then to Unknown. The letters f/o/n mark
// informational products (forecast, outlook, synopsis) and land on Statement;
// the untouched code is preserved in RawType either way.
func vendorSeverity(code string, priority any) Severity {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "w":
		return SeverityWarning
	case "a":
		return SeverityWatch
	case "y":
		return SeverityAdvisory
	case "s", "f", "o", "n":
		return SeverityStatement
	}

	if p, ok := numericValue(priority); ok {
		switch {
		case p <= 2:
			return SeverityExtreme
		case p <= 4:
			return SeveritySevere
		case p <= 6:
			return SeverityModerate
		case p <= 8:
			return SeverityMinor
		}
	}
	return SeverityUnknown
}

// ParseTimestamp coerces a provider timestamp value into UTC time. It accepts
// unix seconds, unix milliseconds (auto-detected by magnitude), numeric
// strings, and ISO-like strings. Invalid or missing values return nil rather
// than an error; a missing timestamp never fails a record.
func ParseTimestamp(v any) *time.Time {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		if t.IsZero() {
			return nil
		}
		u := t.UTC()
		return &u
	case *time.Time:
		if t == nil || t.IsZero() {
			return nil
		}
		u := t.UTC()
		return &u
	case string:
		return parseTimestampString(t)
	default:
		if n, ok := numericValue(v); ok {
			return fromUnix(n)
		}
		return nil
	}
}

func parseTimestampString(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return fromUnix(n)
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			return &u
		}
	}
	return nil
}

func fromUnix(n float64) *time.Time {
	if n <= 0 {
		return nil
	}
	var t time.Time
	if n >= unixMillisThreshold {
		t = time.UnixMilli(int64(n)).UTC()
	} else {
		t = time.Unix(int64(n), 0).UTC()
	}
	return &t
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// DeriveAlertID produces a deterministic fallback ID for providers that
// supply none, hashing the normalized type, start time, and area. Normalized
// inputs keep the derivation stable across fetches — and across a
// re-normalization of the canonical record itself. Changing this derivation
// silently invalidates all stored dedup state.
func DeriveAlertID(rawType string, startsAt *time.Time, area string) string {
	start := ""
	if startsAt != nil {
		start = startsAt.UTC().Format(time.RFC3339)
	}
	input := fmt.Sprintf("%s|%s|%s", strings.ToLower(strings.TrimSpace(rawType)), start, strings.TrimSpace(area))
	hash := sha256.Sum256([]byte(input))
	return "alert-" + hex.EncodeToString(hash[:8])
}

// DeriveForecastID produces the dedup key for a daily forecast record: one
// per location, provider, and calendar day.
func DeriveForecastID(locationID, source string, day time.Time) string {
	input := fmt.Sprintf("%s|%s|%s", locationID, source, day.UTC().Format("2006-01-02"))
	hash := sha256.Sum256([]byte(input))
	return "forecast-" + hex.EncodeToString(hash[:8])
}
