package adaptererror

import (
	"regexp"
	"strconv"
)

// HTTP status extraction patterns, for adapters that surface the status
// code only inside an error string rather than a typed response.
var (
	httpStatusRegex    = regexp.MustCompile(`(?i)status[_\s]code[:\s]*(\d{3})`)
	httpPrefixRegex    = regexp.MustCompile(`(?i)http[/\d.]*\s*(\d{3})`)
	bracketStatusRegex = regexp.MustCompile(`[\[(](\d{3})[\])]`)
)

// ExtractHTTPStatus attempts to pull an HTTP status code out of an error message.
func ExtractHTTPStatus(errStr string) int {
	for _, re := range []*regexp.Regexp{httpStatusRegex, httpPrefixRegex, bracketStatusRegex} {
		if matches := re.FindStringSubmatch(errStr); len(matches) >= 2 {
			if status, err := strconv.Atoi(matches[1]); err == nil {
				return status
			}
		}
	}
	return 0
}

// FromHTTPStatus maps a provider HTTP response to an AdapterError per the
// provider-API adapter contract: 401/403 auth fatal, 4xx (other than 429)
// validation non-retriable, 429 rate_limited retriable honoring
// Retry-After, 5xx transient retriable.
func FromHTTPStatus(status int, retryAfterSeconds int, body string) *AdapterError {
	switch {
	case status == 401 || status == 403:
		return &AdapterError{Code: CodeAuth, Message: body, Retriable: false, HTTPStatus: status}
	case status == 429:
		return &AdapterError{
			Code: CodeRateLimited, Message: body, Retriable: true,
			HTTPStatus: status, RetryAfterSeconds: retryAfterSeconds,
		}
	case status >= 400 && status < 500:
		return &AdapterError{Code: CodeValidation, Message: body, Retriable: false, HTTPStatus: status}
	case status >= 500:
		return &AdapterError{Code: CodeTransient, Message: body, Retriable: true, HTTPStatus: status}
	default:
		return &AdapterError{Code: CodeUnknown, Message: body, Retriable: true, HTTPStatus: status}
	}
}
