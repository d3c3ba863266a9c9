package validate

import (
	"regexp"
	"strings"

	"github.com/broadwing/dispatch/internal/domain"
	"github.com/broadwing/dispatch/pkg/disposable_emails"
)

var emailFormatRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// domainCorrections maps common misspelled free-mail domains to their
// likely intended form.
var domainCorrections = map[string]string{
	"gmail.co":   "gmail.com",
	"gmail.con":  "gmail.com",
	"gmai.com":   "gmail.com",
	"yahoo.co":   "yahoo.com",
	"yahoo.con":  "yahoo.com",
	"hotmail.co": "hotmail.com",
	"hotmail.con": "hotmail.com",
	"outlook.co": "outlook.com",
	"outlook.con": "outlook.com",
	"aol.co":     "aol.com",
	"msn.co":     "msn.com",
}

var roleBasedLocalParts = map[string]struct{}{
	"admin": {}, "administrator": {}, "info": {}, "support": {}, "help": {},
	"sales": {}, "marketing": {}, "noreply": {}, "no-reply": {}, "webmaster": {},
}

// ValidateEmail checks email against format, length, typo-correction, and
// business-rule checks. Domain existence (MX lookup) is handled
// separately by ValidateEmailDomain since it is optional and
// network-bound.
func ValidateEmail(email string) []Issue {
	if strings.TrimSpace(email) == "" {
		return []Issue{{
			Field: "email", Value: email, Severity: domain.SeverityError,
			Category: CategoryFormat, Message: "email address is required", RuleName: "email_required",
		}}
	}

	email = strings.ToLower(strings.TrimSpace(email))

	formatIssues := validateEmailFormat(email)
	if len(formatIssues) > 0 {
		return formatIssues
	}

	var issues []Issue
	issues = append(issues, validateEmailDomainTypo(email)...)
	issues = append(issues, validateEmailBusinessRules(email)...)
	return issues
}

func validateEmailFormat(email string) []Issue {
	var issues []Issue

	if !emailFormatRegex.MatchString(email) {
		return []Issue{{
			Field: "email", Value: email, Severity: domain.SeverityError, Category: CategoryFormat,
			Message: "invalid email format: " + email, Suggestion: suggestEmailFix(email), RuleName: "email_format",
		}}
	}

	local, dom, _ := strings.Cut(email, "@")

	if len(local) > 64 {
		issues = append(issues, Issue{
			Field: "email", Value: email, Severity: domain.SeverityError, Category: CategoryFormat,
			Message: "email local part too long (max 64 characters)", RuleName: "email_local_length",
		})
	}
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") || strings.Contains(local, "..") {
		issues = append(issues, Issue{
			Field: "email", Value: email, Severity: domain.SeverityError, Category: CategoryFormat,
			Message: "invalid dots in email local part", RuleName: "email_local_dots",
		})
	}
	if len(dom) > 255 {
		issues = append(issues, Issue{
			Field: "email", Value: email, Severity: domain.SeverityError, Category: CategoryFormat,
			Message: "email domain too long (max 255 characters)", RuleName: "email_domain_length",
		})
	}
	if strings.HasPrefix(dom, ".") || strings.HasSuffix(dom, ".") || strings.Contains(dom, "..") {
		issues = append(issues, Issue{
			Field: "email", Value: email, Severity: domain.SeverityError, Category: CategoryFormat,
			Message: "invalid dots in email domain", RuleName: "email_domain_dots",
		})
	}
	return issues
}

func validateEmailDomainTypo(email string) []Issue {
	_, dom, _ := strings.Cut(email, "@")
	corrected, ok := domainCorrections[dom]
	if !ok {
		return nil
	}
	return []Issue{{
		Field: "email", Value: email, Severity: domain.SeverityWarning, Category: CategoryDomain,
		Message:    "possible domain typo: " + dom,
		Suggestion: "did you mean " + strings.Replace(email, dom, corrected, 1) + "?",
		RuleName:   "email_domain_typo",
	}}
}

func validateEmailBusinessRules(email string) []Issue {
	var issues []Issue
	local, dom, _ := strings.Cut(email, "@")

	if disposable_emails.IsDisposableEmail(email) {
		issues = append(issues, Issue{
			Field: "email", Value: email, Severity: domain.SeverityWarning, Category: CategoryBusinessRule,
			Message:    "disposable email domain detected: " + dom,
			Suggestion: "consider requesting a permanent email address",
			RuleName:   "email_disposable_domain",
		})
	}

	if _, roleBased := roleBasedLocalParts[local]; roleBased {
		issues = append(issues, Issue{
			Field: "email", Value: email, Severity: domain.SeverityInfo, Category: CategoryBusinessRule,
			Message:    "role-based email address: " + email,
			Suggestion: "personal email addresses are preferred for individual contacts",
			RuleName:   "email_role_based",
		})
	}
	return issues
}

func suggestEmailFix(email string) string {
	if email == "" {
		return "provide a valid email address (example: user@domain.com)"
	}
	if !strings.Contains(email, "@") {
		return "email must contain @ symbol (example: user@domain.com)"
	}
	if strings.Count(email, "@") > 1 {
		return "email should contain only one @ symbol"
	}
	_, dom, _ := strings.Cut(email, "@")
	if dom == "" {
		return "email must have a domain after @ (example: user@domain.com)"
	}
	if !strings.Contains(dom, ".") {
		return "email domain must contain a dot (example: user@domain.com)"
	}
	for typo, correction := range domainCorrections {
		if strings.Contains(dom, typo) {
			return "did you mean " + strings.Replace(email, typo, correction, 1) + "?"
		}
	}
	return "check email format (example: user@domain.com)"
}
