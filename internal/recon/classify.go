package recon

import (
	"fmt"
	"sort"

	"seatool_alerts/platform/apperr"
)

// SigInfo is the signature/status summary derived from a raw submission.
type SigInfo struct {
	Signed         bool
	SecSinceSigned int64
	SignedDate     When
	Status         int
	LastStatus     int
}

// GetSigInfo extracts signature and status facts from the submission.
// A missing signature-date path yields {Signed: false} with no error; that is
// the normal shape for records not yet signed. A signed date in the future is
// corrupt input and fails with a FutureDate error, terminal for the record.
func GetSigInfo(clock Clock, sub *Submission) (SigInfo, error) {
	info := SigInfo{Status: StatusSentinel, LastStatus: StatusSentinel}

	if len(sub.Statuses) > 0 {
		entries := make([]StatusEntry, len(sub.Statuses))
		copy(entries, sub.Statuses)
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].LifecycleCode > entries[j].LifecycleCode
		})
		info.Status = entries[0].FormStatus
		if len(entries) > 1 {
			info.LastStatus = entries[1].FormStatus
		}
	}

	if sub.Payload == nil || sub.Payload.SignatureDate == nil || sub.Payload.SignatureDate.IsZero() {
		return info, nil
	}

	info.Signed = true
	info.SignedDate = *sub.Payload.SignatureDate
	info.SecSinceSigned = SecondsSince(clock, info.SignedDate.Time)
	if info.SecSinceSigned < 0 {
		return info, apperr.FutureDate(
			fmt.Sprintf("record %s signed date is in the future", sub.RecordID()),
		).WithOp("recon.GetSigInfo")
	}

	return info, nil
}

// GetProgType returns the program category of the submission. The three
// program sections are checked in fixed priority order MAC > CHP > HHS and
// the first present section wins; its default label is used even when the
// nested transmittal value is empty. A submission with no section at all
// returns "" — absence is a legitimate terminal state for malformed upstream
// data, not an error.
func GetProgType(sub *Submission) string {
	if sub.Payload == nil {
		return ""
	}
	switch {
	case sub.Payload.MAC != nil:
		return ProgramMAC
	case sub.Payload.CHP != nil:
		return ProgramCHP
	case sub.Payload.HHS != nil:
		return ProgramHHS
	default:
		return ""
	}
}
