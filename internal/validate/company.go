package validate

import (
	"regexp"
	"strings"

	"github.com/broadwing/dispatch/internal/domain"
)

var allNumericRegex = regexp.MustCompile(`^\d+$`)

var testDataTokens = []string{"test", "sample", "example", "demo", "placeholder"}

var companySuffixes = []string{"inc", "llc", "corp", "ltd", "co", "company", "gmbh", "sa", "srl"}

// ValidateCompany checks length and warns on numeric, test-data, or
// suffix-less single-word company names. Company is optional: a blank
// value produces no issues.
func ValidateCompany(company string) []Issue {
	company = strings.TrimSpace(company)
	if company == "" {
		return nil
	}

	var issues []Issue

	switch {
	case len(company) < 2:
		issues = append(issues, Issue{
			Field: "company", Value: company, Severity: domain.SeverityError, Category: CategoryFormat,
			Message:    "company name too short: " + company,
			Suggestion: "company names should be at least 2 characters long",
			RuleName:   "company_too_short",
		})
	case len(company) > 200:
		issues = append(issues, Issue{
			Field: "company", Value: company, Severity: domain.SeverityWarning, Category: CategoryFormat,
			Message:    "company name unusually long: " + company,
			Suggestion: "verify this is a complete company name",
			RuleName:   "company_too_long",
		})
	}

	if allNumericRegex.MatchString(company) {
		issues = append(issues, Issue{
			Field: "company", Value: company, Severity: domain.SeverityWarning, Category: CategoryDataQuality,
			Message:    "company name is all numbers: " + company,
			Suggestion: "verify this is a real company name",
			RuleName:   "company_all_numbers",
		})
	}

	lower := strings.ToLower(company)
	for _, token := range testDataTokens {
		if strings.Contains(lower, token) {
			issues = append(issues, Issue{
				Field: "company", Value: company, Severity: domain.SeverityWarning, Category: CategoryDataQuality,
				Message:    "company name appears to be test data: " + company,
				Suggestion: "replace with actual company name",
				RuleName:   "company_test_data",
			})
			break
		}
	}

	hasSuffix := false
	for _, suffix := range companySuffixes {
		if strings.Contains(lower, suffix) {
			hasSuffix = true
			break
		}
	}
	if !hasSuffix && len(strings.Fields(company)) == 1 {
		issues = append(issues, Issue{
			Field: "company", Value: company, Severity: domain.SeverityInfo, Category: CategoryBusinessRule,
			Message:    "company name may be missing legal suffix",
			Suggestion: "consider adding a suffix like Inc, LLC, Corp, etc.",
			RuleName:   "company_missing_suffix",
		})
	}

	return issues
}
