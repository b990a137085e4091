package recon

import "fmt"

// DefaultSubdomain is used when no alert subdomain is configured.
const DefaultSubdomain = "mac"

// ContentParams parameterizes the alert email body.
type ContentParams struct {
	ID        string
	IsUrgent  bool
	Subdomain string
	Category  string
}

// EmailContent is the rendered alert body in both representations.
type EmailContent struct {
	HTML string
	Text string
}

// BuildEmailContent renders the urgent or non-urgent alert body for a record.
// The subdomain is operator-controlled configuration, not end-user input, so
// it is interpolated into the hyperlink without escaping.
func BuildEmailContent(p ContentParams) EmailContent {
	subdomain := p.Subdomain
	if subdomain == "" {
		subdomain = DefaultSubdomain
	}

	link := fmt.Sprintf("https://%s.seatool.cms.gov/record/%s", subdomain, p.ID)

	lead := fmt.Sprintf(
		"Records in SEATool indicate that package %s has not been entered into SEATool.",
		p.ID,
	)
	action := "Please enter the package into SEATool or confirm that it was withdrawn."

	if !p.IsUrgent {
		return EmailContent{
			HTML: fmt.Sprintf(
				"<p>%s</p><p>%s</p><p><a href=\"%s\">Review the package</a></p>",
				lead, action, link,
			),
			Text: fmt.Sprintf("%s\n\n%s\n\nReview the package: %s\n", lead, action, link),
		}
	}

	risk := riskClause(p.Category)
	return EmailContent{
		HTML: fmt.Sprintf(
			"<p>%s</p><p><strong>%s</strong></p><p>%s</p><p><a href=\"%s\">Review the package</a></p>",
			lead, risk, action, link,
		),
		Text: fmt.Sprintf("%s\n\n%s\n\n%s\n\nReview the package: %s\n", lead, risk, action, link),
	}
}

// riskClause phrases the clock-expiration consequence. CHP packages carry
// plural statutory deadlines, every other category a single 90-day clock.
func riskClause(category string) string {
	if category == ProgramCHP {
		return "Without action, the federal review clocks for this CHIP submission " +
			"will continue to run and the packages may be deemed approved once they expire."
	}
	return "Without action, the 90-day federal review clock for this submission " +
		"will continue to run and the package may be deemed approved once it expires."
}
