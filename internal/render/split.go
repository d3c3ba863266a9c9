package render

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// SplitStrategy is one of the ways a long WhatsApp body can be broken
// into an ordered sequence of shorter messages.
type SplitStrategy string

const (
	SplitParagraph        SplitStrategy = "paragraph"
	SplitSentence         SplitStrategy = "sentence"
	SplitCustomDelimiter  SplitStrategy = "custom_delimiter"
	SplitCharacterLimit   SplitStrategy = "character_limit"
)

// MinMessageDelay is the minimum inter-message delay a split may declare.
const MinMessageDelay = 100 * time.Millisecond

var sentenceBoundaryRegex = regexp.MustCompile(`[.!?]\s+(?:[A-Z])`)

// SplitConfig parameterizes Split.
type SplitConfig struct {
	Strategy        SplitStrategy
	CustomDelimiter string // required for SplitCustomDelimiter
	CharacterLimit  int    // required for SplitCharacterLimit
	Delay           time.Duration
}

// Validate rejects a delay below MinMessageDelay and a strategy missing
// its required parameter.
func (c SplitConfig) Validate() error {
	if c.Delay < MinMessageDelay {
		return fmt.Errorf("inter-message delay %v is below the minimum %v", c.Delay, MinMessageDelay)
	}
	switch c.Strategy {
	case SplitCustomDelimiter:
		if c.CustomDelimiter == "" {
			return fmt.Errorf("custom_delimiter strategy requires a non-empty delimiter")
		}
	case SplitCharacterLimit:
		if c.CharacterLimit <= 0 {
			return fmt.Errorf("character_limit strategy requires a positive limit")
		}
	case SplitParagraph, SplitSentence:
		// no extra parameter required
	default:
		return fmt.Errorf("unknown split strategy %q", c.Strategy)
	}
	return nil
}

// Sequence is the ordered, delayed set of parts one long body was split
// into.
type Sequence struct {
	Parts              []string
	DelayBetweenParts  time.Duration
	EstimatedTotalSend time.Duration
}

// Split breaks body into a Sequence according to cfg. cfg must already
// have passed Validate.
func Split(body string, cfg SplitConfig) (Sequence, error) {
	if err := cfg.Validate(); err != nil {
		return Sequence{}, err
	}

	var parts []string
	switch cfg.Strategy {
	case SplitParagraph:
		parts = splitNonEmpty(strings.Split(body, "\n\n"))
	case SplitSentence:
		parts = splitBySentence(body)
	case SplitCustomDelimiter:
		parts = splitNonEmpty(strings.Split(body, cfg.CustomDelimiter))
	case SplitCharacterLimit:
		parts = splitByCharacterLimit(body, cfg.CharacterLimit)
	}

	if len(parts) == 0 {
		parts = []string{body}
	}

	total := time.Duration(len(parts)-1) * cfg.Delay
	return Sequence{Parts: parts, DelayBetweenParts: cfg.Delay, EstimatedTotalSend: total}, nil
}

func splitNonEmpty(raw []string) []string {
	var out []string
	for _, p := range raw {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// splitBySentence breaks on sentence-ending punctuation followed by
// whitespace and an uppercase letter, keeping the terminating punctuation
// with the sentence it closes.
func splitBySentence(body string) []string {
	var out []string
	last := 0
	locs := sentenceBoundaryRegex.FindAllStringIndex(body, -1)
	for _, loc := range locs {
		// loc[0] is the punctuation position, loc[1] is one past the
		// uppercase letter; the split point is the boundary between the
		// whitespace and that letter.
		boundary := loc[1] - 1
		segment := strings.TrimSpace(body[last:boundary])
		if segment != "" {
			out = append(out, segment)
		}
		last = boundary
	}
	tail := strings.TrimSpace(body[last:])
	if tail != "" {
		out = append(out, tail)
	}
	return out
}

func splitByCharacterLimit(body string, limit int) []string {
	runes := []rune(body)
	var out []string
	for i := 0; i < len(runes); i += limit {
		end := i + limit
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

