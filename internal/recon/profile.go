package recon

import (
	"strings"
)

// Per-pipeline "record too old to pursue" ceilings. The two source systems
// shipped with different values (~201 vs ~251 days); the business owner has
// not confirmed which is intended, so both are preserved as named constants
// rather than unified.
const (
	AppianMaxAgeSeconds int64 = 17366000
	MMDLMaxAgeSeconds   int64 = 21686400
)

// RevisionSuffix is the package/version identifier suffix denoting the
// revision stage eligible for reconciliation.
const RevisionSuffix = "c"

// CompareMode selects how the source and target submission dates are
// normalized before equality comparison. The pipelines disagree here and the
// difference is preserved until the intended behavior is confirmed.
type CompareMode int

const (
	// CompareLocaleDate compares M/D/YYYY renderings (Appian).
	CompareLocaleDate CompareMode = iota
	// CompareEpoch compares raw epoch milliseconds (MMDL).
	CompareEpoch
)

// EscalationModel selects the recipient resolution strategy.
type EscalationModel int

const (
	// EscalateByCcFilter uses the category recipient sets with
	// threshold-gated CC addresses (Appian).
	EscalateByCcFilter EscalationModel = iota
	// EscalateByTier uses the legacy tier-keyed recipient lists (MMDL).
	EscalateByTier
)

// Profile parameterizes the generic pipeline for one source system. The two
// pipelines share all stage logic and differ only in this capability set.
type Profile struct {
	Name  string // task routing key, e.g. "appian"
	Label string // human label for subjects and reports, e.g. "Appian"

	SourceTable string
	TargetTable string
	StatusTable string

	// SecretPurpose is the purpose segment of the alert secret scope.
	SecretPurpose string

	UrgentAfterSeconds int64
	MaxAgeSeconds      int64

	CompareMode     CompareMode
	EscalationModel EscalationModel

	// UppercaseIgnoredPrefix preserves the per-pipeline case behavior of
	// the ignored-state filter.
	UppercaseIgnoredPrefix bool

	// IgnoredStatesCsv is the configured test-jurisdiction list.
	IgnoredStatesCsv string
}

// CorrelationID derives the join key linking a submission to its SEATool
// counterpart.
func (p *Profile) CorrelationID(sub *Submission) string {
	if p.EscalationModel == EscalateByTier {
		// MMDL correlates on the trimmed, uppercased transmittal number.
		return strings.ToUpper(strings.TrimSpace(sub.TransmittalNumber))
	}
	parts := []string{sub.StateCode, sub.PackageID}
	if prog := GetProgType(sub); prog != "" {
		parts = append(parts, prog)
	}
	return strings.Join(parts, "-")
}

// DatesMatch compares the normalized source and target submission dates.
func (p *Profile) DatesMatch(source, target When) bool {
	if source.IsZero() || target.IsZero() {
		return false
	}
	if p.CompareMode == CompareEpoch {
		return source.EpochMillis() == target.EpochMillis()
	}
	return source.LocaleDate() == target.LocaleDate()
}

// AppianProfile builds the Appian↔SEATool pipeline profile.
func AppianProfile(ignoredStatesCsv string) *Profile {
	return &Profile{
		Name:                   "appian",
		Label:                  "Appian",
		SourceTable:            "appian-submissions",
		TargetTable:            "seatool-records",
		StatusTable:            "appian-status",
		SecretPurpose:          "appian-alerts",
		UrgentAfterSeconds:     UrgentAfterSeconds,
		MaxAgeSeconds:          AppianMaxAgeSeconds,
		CompareMode:            CompareLocaleDate,
		EscalationModel:        EscalateByCcFilter,
		UppercaseIgnoredPrefix: true,
		IgnoredStatesCsv:       ignoredStatesCsv,
	}
}

// MMDLProfile builds the MMDL↔SEATool pipeline profile.
func MMDLProfile(ignoredStatesCsv string) *Profile {
	return &Profile{
		Name:                   "mmdl",
		Label:                  "MMDL",
		SourceTable:            "mmdl-submissions",
		TargetTable:            "seatool-records",
		StatusTable:            "mmdl-status",
		SecretPurpose:          "mmdl-alerts",
		UrgentAfterSeconds:     UrgentAfterSeconds,
		MaxAgeSeconds:          MMDLMaxAgeSeconds,
		CompareMode:            CompareEpoch,
		EscalationModel:        EscalateByTier,
		UppercaseIgnoredPrefix: false,
		IgnoredStatesCsv:       ignoredStatesCsv,
	}
}
