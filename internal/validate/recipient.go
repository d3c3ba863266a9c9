package validate

import (
	"strings"

	"github.com/broadwing/dispatch/internal/domain"
)

var placeholderTokens = []string{"example", "test", "sample", "placeholder", "dummy"}

// Options configures which optional checks ValidateRecipient runs.
type Options struct {
	CheckEmailDomain bool
	DefaultCountry   string
}

// ValidateRecipient runs every field rule plus cross-field checks against
// r and returns a complete Report. Validation never returns an error:
// every problem becomes an Issue and IsValid reflects whether any of
// them were severity error.
func ValidateRecipient(r domain.Recipient, opts Options) Report {
	var issues []Issue

	issues = append(issues, ValidateName(r.Name)...)
	issues = append(issues, ValidateCompany(r.Company)...)

	emailIssues := ValidateEmail(r.Email)
	issues = append(issues, emailIssues...)
	if opts.CheckEmailDomain && !hasError(emailIssues) && r.Email != "" {
		issues = append(issues, ValidateEmailDomain(r.Email)...)
	}

	country := opts.DefaultCountry
	if country == "" {
		country = "US"
	}
	issues = append(issues, ValidatePhone(r.Phone, country)...)

	issues = append(issues, crossFieldIssues(r)...)

	score := qualityScore(issues, r)
	return Report{
		RowIndex:     r.RowIndex,
		IsValid:      !hasError(issues),
		Issues:       issues,
		QualityScore: score,
		Suggestions:  topSuggestions(issues, 5),
	}
}

func hasError(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == domain.SeverityError {
			return true
		}
	}
	return false
}

// crossFieldIssues warns when the email local part shares no meaningful
// substring with any name token, and flags obvious placeholder data in
// any field.
func crossFieldIssues(r domain.Recipient) []Issue {
	var issues []Issue

	if r.Name != "" && r.Email != "" && strings.Contains(r.Email, "@") {
		localPart := strings.ToLower(strings.SplitN(r.Email, "@", 2)[0])
		nameParts := strings.Fields(strings.ToLower(r.Name))

		matched := false
		for _, part := range nameParts {
			if len(part) > 2 && strings.Contains(localPart, part) {
				matched = true
				break
			}
		}
		if !matched && len(nameParts) > 0 {
			issues = append(issues, Issue{
				Field: "email", Value: r.Email, Severity: domain.SeverityInfo, Category: CategoryConsistency,
				Message:    "email address doesn't appear to match the person's name",
				Suggestion: "verify email belongs to the named person",
				RuleName:   "email_name_consistency",
			})
		}
	}

	fields := map[string]string{"name": r.Name, "company": r.Company, "email": r.Email, "phone": r.Phone}
	for field, value := range fields {
		if value == "" {
			continue
		}
		lower := strings.ToLower(value)
		for _, token := range placeholderTokens {
			if strings.Contains(lower, token) {
				issues = append(issues, Issue{
					Field: field, Value: value, Severity: domain.SeverityWarning, Category: CategoryDataQuality,
					Message:    "field appears to contain placeholder data: " + value,
					Suggestion: "replace with actual data",
					RuleName:   "placeholder_data",
				})
				break
			}
		}
	}

	return issues
}

// qualityScore starts at 100, subtracts per-severity penalties, adds a
// completeness bonus up to 10, and clamps to [0,100].
func qualityScore(issues []Issue, r domain.Recipient) float64 {
	score := 100.0
	for _, i := range issues {
		switch i.Severity {
		case domain.SeverityError:
			score -= 20
		case domain.SeverityWarning:
			score -= 10
		case domain.SeverityInfo:
			score -= 2
		}
	}

	filled := 0
	total := 4
	for _, v := range []string{r.Name, r.Company, r.Email, r.Phone} {
		if strings.TrimSpace(v) != "" {
			filled++
		}
	}
	score += 10 * float64(filled) / float64(total)

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

func topSuggestions(issues []Issue, limit int) []string {
	var suggestions []string
	seen := map[string]struct{}{}
	for _, i := range issues {
		if i.Suggestion == "" {
			continue
		}
		if _, dup := seen[i.Suggestion]; dup {
			continue
		}
		seen[i.Suggestion] = struct{}{}
		suggestions = append(suggestions, i.Suggestion)
		if len(suggestions) >= limit {
			break
		}
	}
	return suggestions
}
