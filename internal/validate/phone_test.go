package validate

import "testing"

func TestValidatePhone_Required(t *testing.T) {
	issues := ValidatePhone("", "US")
	if len(issues) != 1 || issues[0].RuleName != "phone_required" {
		t.Fatalf("expected phone_required issue, got %+v", issues)
	}
}

func TestValidatePhone_TooFewDigits(t *testing.T) {
	issues := ValidatePhone("12345", "US")
	found := false
	for _, i := range issues {
		if i.RuleName == "phone_digit_count" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected phone_digit_count error, got %+v", issues)
	}
}

func TestValidatePhone_RepeatedDigit(t *testing.T) {
	issues := ValidatePhone("1111111111", "US")
	found := false
	for _, i := range issues {
		if i.RuleName == "phone_repeated_digit" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected phone_repeated_digit error, got %+v", issues)
	}
}

func TestValidatePhone_SequentialDigits(t *testing.T) {
	issues := ValidatePhone("123456789", "US")
	found := false
	for _, i := range issues {
		if i.RuleName == "phone_sequential" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected phone_sequential error, got %+v", issues)
	}
}

func TestValidatePhone_ValidUSNumber(t *testing.T) {
	issues := ValidatePhone("+14155552671", "US")
	for _, i := range issues {
		if i.Severity == "error" {
			t.Errorf("did not expect an error for a valid number, got %+v", i)
		}
	}
}

func TestIsMonotonicSequential(t *testing.T) {
	if !isMonotonicSequential("1234") {
		t.Error("expected ascending run to be detected")
	}
	if !isMonotonicSequential("4321") {
		t.Error("expected descending run to be detected")
	}
	if isMonotonicSequential("1235") {
		t.Error("did not expect a non-sequential run to be flagged")
	}
	if isMonotonicSequential("123") {
		t.Error("did not expect a run shorter than 4 digits to be flagged")
	}
}
