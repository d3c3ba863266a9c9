package validate

import (
	"regexp"
	"strings"

	"github.com/broadwing/dispatch/internal/domain"
)

var nameCharacterClassRegex = regexp.MustCompile(`^[a-zA-Z\s\-'.]+$`)

var suspiciousNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d+$`),
	regexp.MustCompile(`^test`),
	regexp.MustCompile(`^sample`),
}

// ValidateName checks length, character class, and suspicious or
// improperly-cased patterns in a person's name.
func ValidateName(name string) []Issue {
	if strings.TrimSpace(name) == "" {
		return []Issue{{
			Field: "name", Value: name, Severity: domain.SeverityError, Category: CategoryFormat,
			Message: "name is required", RuleName: "name_required",
		}}
	}

	name = strings.TrimSpace(name)
	var issues []Issue

	switch {
	case len(name) < 2:
		issues = append(issues, Issue{
			Field: "name", Value: name, Severity: domain.SeverityError, Category: CategoryFormat,
			Message:    "name too short: " + name,
			Suggestion: "names should be at least 2 characters long",
			RuleName:   "name_too_short",
		})
	case len(name) > 100:
		issues = append(issues, Issue{
			Field: "name", Value: name, Severity: domain.SeverityWarning, Category: CategoryFormat,
			Message:    "name unusually long: " + name,
			Suggestion: "verify this is a complete name",
			RuleName:   "name_too_long",
		})
	}

	lower := strings.ToLower(name)
	for _, pattern := range suspiciousNamePatterns {
		if pattern.MatchString(lower) {
			issues = append(issues, Issue{
				Field: "name", Value: name, Severity: domain.SeverityWarning, Category: CategoryDataQuality,
				Message:    "suspicious name pattern: " + name,
				Suggestion: "verify this is a real person's name",
				RuleName:   "name_suspicious_pattern",
			})
			break
		}
	}

	if !nameCharacterClassRegex.MatchString(name) {
		issues = append(issues, Issue{
			Field: "name", Value: name, Severity: domain.SeverityWarning, Category: CategoryFormat,
			Message:    "name contains unusual characters: " + name,
			Suggestion: "names typically contain only letters, spaces, hyphens, and apostrophes",
			RuleName:   "name_unusual_characters",
		})
	}

	switch {
	case name == strings.ToUpper(name) && strings.ToUpper(name) != strings.ToLower(name):
		issues = append(issues, Issue{
			Field: "name", Value: name, Severity: domain.SeverityInfo, Category: CategoryFormat,
			Message:    "name is in all caps",
			Suggestion: "consider proper case: " + strings.Title(strings.ToLower(name)),
			RuleName:   "name_all_caps",
		})
	case name == strings.ToLower(name) && strings.ToUpper(name) != strings.ToLower(name):
		issues = append(issues, Issue{
			Field: "name", Value: name, Severity: domain.SeverityInfo, Category: CategoryFormat,
			Message:    "name is in all lowercase",
			Suggestion: "consider proper case: " + strings.Title(name),
			RuleName:   "name_all_lowercase",
		})
	}

	return issues
}
