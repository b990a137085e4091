package recon

import (
	"strings"

	"seatool_alerts/internal/telemetry"
)

// IsIgnoredState reports whether alerts for the record should be suppressed
// because its jurisdiction is configured as a test/ignored state. The
// configuration is a comma-separated list of 2-character jurisdiction
// prefixes; an empty configuration disables filtering entirely.
//
// The Appian pipeline uppercases the record prefix before matching while the
// MMDL pipeline matches raw case. The difference is almost certainly a latent
// upstream bug; it is preserved per pipeline behind uppercasePrefix until the
// intended behavior is confirmed.
func IsIgnoredState(tel telemetry.Emitter, recordID, ignoredStatesCsv string, uppercasePrefix bool) bool {
	if ignoredStatesCsv == "" || len(recordID) < 2 {
		return false
	}

	prefix := recordID[:2]
	if uppercasePrefix {
		prefix = strings.ToUpper(prefix)
	}

	for _, entry := range strings.Split(ignoredStatesCsv, ",") {
		if strings.TrimSpace(entry) == prefix {
			if tel != nil {
				tel.LogEvent(telemetry.StreamAlerts, "alerts ignored for test state record "+recordID)
			}
			return true
		}
	}
	return false
}
