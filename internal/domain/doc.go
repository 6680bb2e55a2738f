// Package domain models weather alerts, current conditions, and forecasts
// independent of any upstream provider.
//
// # Provider shapes
//
// Three raw payload structures exist in the wild, and [RawAlert] carries them
// as a tagged union decided once at fetch time:
//
//	government     — zone/area description fields, spelled-out certainty and
//	                 urgency, RFC3339 timestamps. Severity is implied by the
//	                 event name ("...Warning", "...Watch", "...Advisory",
//	                 "...Statement", "...Emergency").
//	commercial_tag — free-text tag arrays instead of a severity field, unix
//	                 timestamps. Tags are matched in priority order
//	                 extreme > severe > warning > watch > advisory > moderate.
//	vendor_coded   — nested details/timestamps objects. Severity is a single
//	                 significance letter (w/a/y/s plus the informational
//	                 products f/o/n), with numeric priority banding as a
//	                 fallback: ≤2 Extreme, ≤4 Severe, ≤6 Moderate, ≤8 Minor.
//
// Anything unmapped lands on [SeverityUnknown]; the untouched provider value
// is preserved in CanonicalAlert.RawType.
//
// # Timestamps
//
// Providers disagree on encoding. [ParseTimestamp] accepts unix seconds, unix
// milliseconds (auto-detected: values ≥ 1e10 are milliseconds), numeric
// strings, and ISO-like strings. Invalid or missing values normalize to nil,
// never an error — a bad timestamp must not drop an alert.
//
// # Identifiers
//
// CanonicalAlert.AlertID is the dedup key and must be stable across repeated
// fetches of the same underlying event. Providers that supply a native id
// keep it; otherwise [DeriveAlertID] hashes the normalized type, start time,
// and area with SHA-256. Because the hash input comes from normalized fields,
// re-normalizing a canonical record yields the same id. Changing the
// derivation silently orphans all stored dedup state.
//
// # Classification
//
// [Classify] reduces a conditions reading to good/fair/bad/severe using fixed
// thresholds (temperature, feels-like, wind, precipitation, humidity,
// visibility, description keywords). The most severe triggered band wins,
// except a storm/tornado/hurricane keyword in the description, which forces
// severe unconditionally.
package domain
