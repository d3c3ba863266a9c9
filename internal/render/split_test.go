package render

import (
	"testing"
	"time"
)

func TestSplitConfig_Validate_RejectsLowDelay(t *testing.T) {
	cfg := SplitConfig{Strategy: SplitParagraph, Delay: 10 * time.Millisecond}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for delay below minimum")
	}
}

func TestSplitConfig_Validate_RequiresCustomDelimiter(t *testing.T) {
	cfg := SplitConfig{Strategy: SplitCustomDelimiter, Delay: time.Second}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing custom delimiter")
	}
}

func TestSplitConfig_Validate_RequiresPositiveCharacterLimit(t *testing.T) {
	cfg := SplitConfig{Strategy: SplitCharacterLimit, Delay: time.Second}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for non-positive character limit")
	}
}

func TestSplit_Paragraph(t *testing.T) {
	body := "First paragraph.\n\nSecond paragraph.\n\nThird."
	seq, err := Split(body, SplitConfig{Strategy: SplitParagraph, Delay: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seq.Parts) != 3 {
		t.Fatalf("expected 3 parts, got %d: %v", len(seq.Parts), seq.Parts)
	}
	if seq.EstimatedTotalSend != 2*time.Second {
		t.Errorf("expected estimated total 2s, got %v", seq.EstimatedTotalSend)
	}
}

func TestSplit_Sentence(t *testing.T) {
	body := "Hello there. How are you? I am fine!"
	seq, err := Split(body, SplitConfig{Strategy: SplitSentence, Delay: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seq.Parts) != 3 {
		t.Fatalf("expected 3 sentence parts, got %d: %v", len(seq.Parts), seq.Parts)
	}
}

func TestSplit_CustomDelimiter(t *testing.T) {
	body := "one|two|three"
	seq, err := Split(body, SplitConfig{Strategy: SplitCustomDelimiter, CustomDelimiter: "|", Delay: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seq.Parts) != 3 {
		t.Fatalf("expected 3 parts, got %d: %v", len(seq.Parts), seq.Parts)
	}
}

func TestSplit_CharacterLimit(t *testing.T) {
	body := "abcdefghij"
	seq, err := Split(body, SplitConfig{Strategy: SplitCharacterLimit, CharacterLimit: 4, Delay: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seq.Parts) != 3 {
		t.Fatalf("expected 3 parts (4,4,2), got %d: %v", len(seq.Parts), seq.Parts)
	}
	if seq.Parts[2] != "ij" {
		t.Errorf("expected last part 'ij', got %q", seq.Parts[2])
	}
}

func TestSplit_ShortBodyProducesSinglePart(t *testing.T) {
	seq, err := Split("short", SplitConfig{Strategy: SplitParagraph, Delay: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seq.Parts) != 1 {
		t.Errorf("expected a single part for a body with no paragraph breaks, got %d", len(seq.Parts))
	}
	if seq.EstimatedTotalSend != 0 {
		t.Errorf("expected zero estimated send time for a single part, got %v", seq.EstimatedTotalSend)
	}
}
