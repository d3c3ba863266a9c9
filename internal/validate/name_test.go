package validate

import "testing"

func TestValidateName_Required(t *testing.T) {
	issues := ValidateName("")
	if len(issues) != 1 || issues[0].RuleName != "name_required" {
		t.Fatalf("expected name_required issue, got %+v", issues)
	}
}

func TestValidateName_TooShort(t *testing.T) {
	issues := ValidateName("A")
	found := false
	for _, i := range issues {
		if i.RuleName == "name_too_short" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected name_too_short error, got %+v", issues)
	}
}

func TestValidateName_AllCaps(t *testing.T) {
	issues := ValidateName("JANE DOE")
	found := false
	for _, i := range issues {
		if i.RuleName == "name_all_caps" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected name_all_caps info issue, got %+v", issues)
	}
}

func TestValidateName_AllLowercase(t *testing.T) {
	issues := ValidateName("jane doe")
	found := false
	for _, i := range issues {
		if i.RuleName == "name_all_lowercase" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected name_all_lowercase info issue, got %+v", issues)
	}
}

func TestValidateName_ProperCaseHasNoCaseIssues(t *testing.T) {
	issues := ValidateName("Jane Doe")
	for _, i := range issues {
		if i.RuleName == "name_all_caps" || i.RuleName == "name_all_lowercase" {
			t.Errorf("did not expect a casing issue for properly cased name, got %+v", i)
		}
	}
}

func TestValidateName_SuspiciousPattern(t *testing.T) {
	issues := ValidateName("test user")
	found := false
	for _, i := range issues {
		if i.RuleName == "name_suspicious_pattern" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected name_suspicious_pattern warning, got %+v", issues)
	}
}

func TestValidateName_UnusualCharacters(t *testing.T) {
	issues := ValidateName("Jane123")
	found := false
	for _, i := range issues {
		if i.RuleName == "name_unusual_characters" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected name_unusual_characters warning, got %+v", issues)
	}
}
