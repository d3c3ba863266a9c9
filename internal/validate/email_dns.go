package validate

import (
	"net"
	"strings"

	"github.com/broadwing/dispatch/internal/domain"
)

// ValidateEmailDomain performs an optional MX lookup on email's domain.
// A lookup failure is a warning, never an error: DNS is unreliable
// enough in batch-processing contexts that a hard failure here would
// reject otherwise-deliverable addresses.
func ValidateEmailDomain(email string) []Issue {
	_, dom, ok := strings.Cut(email, "@")
	if !ok || dom == "" {
		return nil
	}

	mx, err := net.LookupMX(dom)
	if err != nil || len(mx) == 0 {
		return []Issue{{
			Field: "email", Value: email, Severity: domain.SeverityWarning, Category: CategoryDomain,
			Message:  "no MX record found for domain: " + dom,
			RuleName: "email_domain_mx",
		}}
	}
	return nil
}
