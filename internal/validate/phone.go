package validate

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/broadwing/dispatch/internal/domain"
)

var phoneStripRegex = regexp.MustCompile(`[+()\-\s]`)

var allSameDigitRegex = regexp.MustCompile(`^(\d)\1+$`)

// ValidatePhone checks digit count, rejects obviously-fake patterns
// (repeated digit, short monotonic runs), then defers to phonenumbers
// for a library-grade parse against defaultCountry.
func ValidatePhone(phone, defaultCountry string) []Issue {
	if strings.TrimSpace(phone) == "" {
		return []Issue{{
			Field: "phone", Value: phone, Severity: domain.SeverityError, Category: CategoryFormat,
			Message: "phone number is required", RuleName: "phone_required",
		}}
	}

	phone = strings.TrimSpace(phone)
	stripped := phoneStripRegex.ReplaceAllString(phone, "")

	var issues []Issue

	if len(stripped) < 8 || len(stripped) > 15 {
		issues = append(issues, Issue{
			Field: "phone", Value: phone, Severity: domain.SeverityError, Category: CategoryFormat,
			Message:  "phone number must have between 8 and 15 digits",
			RuleName: "phone_digit_count",
		})
	}

	if allSameDigitRegex.MatchString(stripped) {
		issues = append(issues, Issue{
			Field: "phone", Value: phone, Severity: domain.SeverityError, Category: CategoryFormat,
			Message:  "phone number uses the same digit repeated: " + phone,
			RuleName: "phone_repeated_digit",
		})
	}

	if isMonotonicSequential(stripped) {
		issues = append(issues, Issue{
			Field: "phone", Value: phone, Severity: domain.SeverityError, Category: CategoryFormat,
			Message:  "phone number looks like a sequential placeholder: " + phone,
			RuleName: "phone_sequential",
		})
	}

	if len(issues) > 0 {
		return issues
	}

	parsed, err := phonenumbers.Parse(phone, defaultCountry)
	if err != nil {
		return []Issue{{
			Field: "phone", Value: phone, Severity: domain.SeverityError, Category: CategoryFormat,
			Message:  "cannot parse phone number: " + phone,
			RuleName: "phone_parse_error",
		}}
	}

	if !phonenumbers.IsValidNumber(parsed) {
		return []Issue{{
			Field: "phone", Value: phone, Severity: domain.SeverityError, Category: CategoryFormat,
			Message:  "invalid phone number: " + phone,
			RuleName: "phone_invalid",
		}}
	}

	if !phonenumbers.IsPossibleNumber(parsed) {
		issues = append(issues, Issue{
			Field: "phone", Value: phone, Severity: domain.SeverityWarning, Category: CategoryFormat,
			Message:  "phone number may not be valid: " + phone,
			RuleName: "phone_possible",
		})
	}

	formatted := phonenumbers.Format(parsed, phonenumbers.INTERNATIONAL)
	if phone != formatted {
		issues = append(issues, Issue{
			Field: "phone", Value: phone, Severity: domain.SeverityInfo, Category: CategoryFormat,
			Message:    "phone number formatting suggestion",
			Suggestion: "consider using international format: " + formatted,
			RuleName:   "phone_format_suggestion",
		})
	}

	return issues
}

// isMonotonicSequential reports whether digits is a run of 4 or more
// consecutive ascending or descending digits, e.g. "1234" or "9876".
func isMonotonicSequential(digits string) bool {
	onlyDigits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, digits)
	if len(onlyDigits) < 4 {
		return false
	}

	ascending, descending := true, true
	for i := 1; i < len(onlyDigits); i++ {
		if onlyDigits[i] != onlyDigits[i-1]+1 {
			ascending = false
		}
		if onlyDigits[i] != onlyDigits[i-1]-1 {
			descending = false
		}
	}
	return ascending || descending
}
