package campaign

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "recipients.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}

func drain(t *testing.T, path string, opts LoadOptions) (accepted int, rejected int) {
	t.Helper()
	recipients, rejections, err := Load(path, opts, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for recipients != nil || rejections != nil {
		select {
		case _, ok := <-recipients:
			if !ok {
				recipients = nil
				continue
			}
			accepted++
		case _, ok := <-rejections:
			if !ok {
				rejections = nil
				continue
			}
			rejected++
		case <-deadline:
			t.Fatal("timed out draining campaign load channels")
		}
	}
	return accepted, rejected
}

func TestLoad_StreamsValidatedRecipientsFromCSV(t *testing.T) {
	path := writeTempCSV(t, "name,email,phone,company\n"+
		"Jane Doe,jane.doe@acme.com,+14155552671,Acme Inc\n"+
		"John Smith,john.smith@acme.com,+14155552672,Acme Inc\n")

	accepted, rejected := drain(t, path, LoadOptions{})
	if accepted != 2 {
		t.Errorf("expected 2 accepted recipients, got %d", accepted)
	}
	if rejected != 0 {
		t.Errorf("expected 0 rejections, got %d", rejected)
	}
}

func TestLoad_RowsFailingValidationAreRejectedNotDropped(t *testing.T) {
	path := writeTempCSV(t, "name,email,phone,company\n"+
		"Jane Doe,jane.doe@acme.com,+14155552671,Acme Inc\n"+
		",,,\n")

	accepted, rejected := drain(t, path, LoadOptions{})
	if accepted != 1 {
		t.Errorf("expected 1 accepted recipient, got %d", accepted)
	}
	if rejected != 1 {
		t.Errorf("expected 1 rejection for the blank row, got %d", rejected)
	}
}

func TestLoad_MissingRequiredColumnsFailsOutright(t *testing.T) {
	path := writeTempCSV(t, "full_name_xyz,other_col\nJane,1\n")

	if _, _, err := Load(path, LoadOptions{}, nil); err == nil {
		t.Fatal("expected an error when required columns cannot be mapped")
	}
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "missing.csv"), LoadOptions{}, nil); err == nil {
		t.Fatal("expected an error for a nonexistent file")
	}
}
