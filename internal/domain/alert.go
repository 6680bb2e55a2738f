package domain

import "time"

// Severity is the provider-agnostic severity vocabulary. Every provider's
// native severity value maps onto exactly one of these; anything that cannot
// be mapped becomes SeverityUnknown (the original value survives in RawType).
type Severity string

const (
	SeverityExtreme   Severity = "Extreme"
	SeveritySevere    Severity = "Severe"
	SeverityWarning   Severity = "Warning"
	SeverityWatch     Severity = "Watch"
	SeverityAdvisory  Severity = "Advisory"
	SeverityModerate  Severity = "Moderate"
	SeverityMinor     Severity = "Minor"
	SeverityStatement Severity = "Statement"
	SeverityUnknown   Severity = "Unknown"
)

// ProviderShape identifies which of the three known raw payload structures a
// RawAlert carries. The shape is decided once by the provider adapter at fetch
// time and carried explicitly so downstream code never re-sniffs fields.
type ProviderShape string

const (
	ShapeGovernment    ProviderShape = "government"
	ShapeCommercialTag ProviderShape = "commercial_tag"
	ShapeVendorCoded   ProviderShape = "vendor_coded"
)

// RawAlert is a tagged union of the three provider payload shapes.
// Exactly one of the payload pointers is non-nil, matching Shape.
type RawAlert struct {
	Shape  ProviderShape
	Source string // provider name, e.g. "nws"

	Government *GovernmentAlert
	Commercial *CommercialTagAlert
	Vendor     *VendorCodedAlert
}

// GovernmentAlert is the government-feed shape: zone/area description fields,
// spelled-out certainty and urgency, RFC3339 timestamps.
type GovernmentAlert struct {
	ID          string `json:"id"`
	Event       string `json:"event"`
	Headline    string `json:"headline"`
	Description string `json:"description"`
	AreaDesc    string `json:"areaDesc"`
	Certainty   string `json:"certainty"`
	Urgency     string `json:"urgency"`
	Onset       any    `json:"onset"`
	Ends        any    `json:"ends"`
	Sent        any    `json:"sent"`
}

// CommercialTagAlert is the commercial shape: free-text tag arrays instead of
// a severity field, unix timestamps.
type CommercialTagAlert struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Area        string   `json:"area"`
	Certainty   string   `json:"certainty"`
	Urgency     string   `json:"urgency"`
	StartsAt    any      `json:"starts_at"`
	EndsAt      any      `json:"ends_at"`
	IssuedAt    any      `json:"issued_at"`
}

// VendorCodedAlert is the vendor shape: nested details/timestamps objects with
// single-letter severity codes and a numeric priority.
type VendorCodedAlert struct {
	ID         string           `json:"id"`
	Zone       string           `json:"zone"`
	Details    VendorDetails    `json:"details"`
	Timestamps VendorTimestamps `json:"timestamps"`
}

type VendorDetails struct {
	Type     string `json:"type"` // product code, e.g. "TO.W"
	Name     string `json:"name"`
	Body     string `json:"body"`
	Severity string `json:"severity"` // single letter, free text, or empty
	Priority any    `json:"priority"` // numeric band when present
}

type VendorTimestamps struct {
	Issued  any `json:"issued"`
	Begins  any `json:"begins"`
	Expires any `json:"expires"`
}

// CanonicalAlert is the provider-agnostic record relayed to the webhook.
// AlertID is stable across repeated fetches of the same underlying event and
// is the dedup key; see DeriveAlertID for the fallback derivation.
type CanonicalAlert struct {
	AlertID     string     `json:"alert_id"`
	Event       string     `json:"event"`
	Severity    Severity   `json:"severity"`
	Description string     `json:"description"`
	Headline    string     `json:"headline"`
	Area        string     `json:"area"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	IssuedAt    *time.Time `json:"issued_at"`
	LocationID  string     `json:"location_id"`
	Source      string     `json:"source"`
	RawType     string     `json:"raw_type"`
	Certainty   string     `json:"certainty"`
	Urgency     string     `json:"urgency"`
}

// Location is a monitored place. Either PostalCode or the coordinate pair is
// set; the provider adapter prefers coordinates when both are present.
type Location struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	PostalCode string   `json:"postal_code,omitempty"`
	Lat        *float64 `json:"lat,omitempty"`
	Lon        *float64 `json:"lon,omitempty"`
	Enabled    bool     `json:"enabled"`
}

// HasCoordinates reports whether a usable lat/lon pair is present.
func (l Location) HasCoordinates() bool {
	return l.Lat != nil && l.Lon != nil
}

// AlertType narrows which alert codes are requested from providers that
// support server-side filtering. It has no lifecycle coupling to alerts.
type AlertType struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}
