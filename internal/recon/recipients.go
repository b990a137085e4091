package recon

// Escalation tier names used by the MMDL pipeline's secret configuration.
const (
	TierInitial        = "initial"
	TierFirstFollowUp  = "firstFollowUp"
	TierSecondFollowUp = "secondFollowUp"
)

// Escalation thresholds. These are business configuration values, not
// structural constants; pipeline profiles may override them.
const (
	// FirstFollowUpAfterSeconds promotes an alert out of the initial tier.
	FirstFollowUpAfterSeconds int64 = 48 * 3600
	// SecondFollowUpAfterSeconds promotes an alert to the final tier.
	SecondFollowUpAfterSeconds int64 = 48 * 2 * 3600
	// UrgentAfterSeconds marks an Appian alert urgent (5 days).
	UrgentAfterSeconds int64 = 432000
)

// Resolution is the outcome of the legacy tier resolver.
type Resolution struct {
	Tier       string
	Recipients []string
}

// ResolveRecipients maps elapsed time to an escalation tier and that tier's
// recipient list from the legacy secret configuration. An unconfigured tier
// resolves to an empty list, never an error.
func ResolveRecipients(secSinceSigned int64, cfg LegacyEscalationConfig) Resolution {
	tier := TierInitial
	switch {
	case secSinceSigned >= SecondFollowUpAfterSeconds:
		tier = TierSecondFollowUp
	case secSinceSigned >= FirstFollowUpAfterSeconds:
		tier = TierFirstFollowUp
	}
	return Resolution{Tier: tier, Recipients: cfg.EmailRecipients[tier]}
}

// RoutedRecipients is the outcome of the CC-filter resolver.
type RoutedRecipients struct {
	To []string
	Cc []string
}

// FilterCc selects the recipient set for the record's category and filters
// the CC list down to entries whose elapsed-time threshold has been met or
// exceeded. The threshold comparison is boundary-inclusive: an entry with
// alertIfGreaterThanSeconds equal to the elapsed time is included. An empty
// result is normal, never an error.
func FilterCc(secSinceSigned int64, isCHP bool, cfg EscalationConfig) RoutedRecipients {
	recipients := cfg.NonCHP
	if isCHP {
		recipients = cfg.CHP
	}

	routed := RoutedRecipients{To: recipients.ToAddresses}
	for _, cc := range recipients.CcAddresses {
		if secSinceSigned >= cc.AlertIfGreaterThanSeconds {
			routed.Cc = append(routed.Cc, cc.Email)
		}
	}
	return routed
}

// IsUrgent reports whether elapsed time has crossed the urgency threshold.
func IsUrgent(secSinceSigned, urgentAfterSeconds int64) bool {
	return secSinceSigned >= urgentAfterSeconds
}
