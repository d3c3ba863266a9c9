// Package ingest turns a tabular source file (csv, tsv, xlsx, xls, json,
// jsonl, or generic delimited text) into a detected FileStructure and a
// lazy sequence of row maps, then binds free-form column headers onto the
// canonical recipient fields.
package ingest

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Format is the detected source file format.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatTSV   Format = "tsv"
	FormatXLSX  Format = "xlsx"
	FormatXLS   Format = "xls"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatTXT   Format = "txt"
)

// FileStructure describes a source file's detected shape before rows are
// streamed out of it.
type FileStructure struct {
	Format        Format
	Encoding      string
	Delimiter     rune // meaningful for csv/tsv/txt only
	Headers       []string
	Sample        []map[string]string // first ~5 rows, non-destructive
	EstimatedRows int
}

var candidateDelimiters = []rune{',', '\t', ';', '|'}

var fallbackEncodings = []string{"utf-8", "utf-8-sig", "cp1252", "latin-1"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var fallbackCharmaps = map[string]*charmap.Charmap{
	"cp1252":  charmap.Windows1252,
	"latin-1": charmap.ISO8859_1,
}

// DetectFormat classifies a file by extension first, then by content
// probe when the extension is missing, unknown, or generic (.txt).
func DetectFormat(path string, probe []byte) Format {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "csv":
		return FormatCSV
	case "tsv":
		return FormatTSV
	case "xlsx":
		return FormatXLSX
	case "xls":
		return FormatXLS
	case "json":
		return FormatJSON
	case "jsonl", "ndjson":
		return FormatJSONL
	}

	if looksLikeXLSX(probe) {
		return FormatXLSX
	}
	if looksLikeXLS(probe) {
		return FormatXLS
	}

	trimmed := bytes.TrimLeft(probe, " \t\r\n")
	if len(trimmed) > 0 {
		switch trimmed[0] {
		case '{':
			return FormatJSON
		case '[':
			return FormatJSON
		}
	}

	return FormatTXT
}

// looksLikeXLSX checks for the ZIP local-file-header magic bytes every
// .xlsx (an OOXML zip) begins with.
func looksLikeXLSX(probe []byte) bool {
	return len(probe) >= 4 && probe[0] == 'P' && probe[1] == 'K' && probe[2] == 0x03 && probe[3] == 0x04
}

// looksLikeXLS checks for the legacy OLE2 compound-file magic bytes.
func looksLikeXLS(probe []byte) bool {
	magic := []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	return len(probe) >= len(magic) && bytes.Equal(probe[:len(magic)], magic)
}

// DetectEncoding probes the first 10KB of a file and returns the first
// encoding from the fallback chain that decodes it without replacement
// characters. Reports confidence 1.0 for a clean utf-8 decode, 0.5 for a
// single-byte fallback encoding, and 0.3 (with "utf-8") when nothing
// decodes cleanly, matching the "confidence below 0.7 is a warning" rule.
func DetectEncoding(path string) (encoding string, confidence float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open for encoding probe: %w", err)
	}
	defer f.Close()

	buf := make([]byte, 10*1024)
	n, readErr := f.Read(buf)
	if readErr != nil && n == 0 {
		return "utf-8", 0, nil
	}
	probe := buf[:n]

	if bytes.HasPrefix(probe, utf8BOM) {
		return "utf-8-sig", 1.0, nil
	}
	if utf8.Valid(probe) {
		return "utf-8", 1.0, nil
	}

	// utf-8 failed: walk the rest of the fallback chain and pick the
	// first single-byte encoding that round-trips the probe through its
	// charmap decoder without producing a replacement character. The
	// cp1252 charmap decodes its five unassigned bytes to C1 controls
	// rather than a replacement character, so those are checked directly.
	cp1252Usable := true
	for _, b := range probe {
		if b == 0x81 || b == 0x8D || b == 0x8F || b == 0x90 || b == 0x9D {
			cp1252Usable = false
			break
		}
	}
	for _, enc := range fallbackEncodings[2:] {
		if enc == "cp1252" && !cp1252Usable {
			continue
		}
		if decodesCleanly(probe, fallbackCharmaps[enc]) {
			return enc, 0.5, nil
		}
	}
	return "utf-8", 0.3, nil
}

// decodesCleanly reports whether every byte in probe has a defined
// mapping in cm, i.e. decoding introduces no unicode.ReplacementChar.
func decodesCleanly(probe []byte, cm *charmap.Charmap) bool {
	decoded, err := cm.NewDecoder().Bytes(probe)
	if err != nil {
		return false
	}
	return !bytes.ContainsRune(decoded, utf8.RuneError)
}

// DetectDelimiter scores each candidate delimiter by the variance of
// field counts it produces across the first 20 non-empty lines of
// sample, lower variance winning; ties favor the delimiter yielding more
// fields.
func DetectDelimiter(sample []byte) rune {
	scanner := bufio.NewScanner(bytes.NewReader(sample))
	var lines []string
	for scanner.Scan() && len(lines) < 20 {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return ','
	}

	type candidateScore struct {
		delim     rune
		variance  float64
		avgFields float64
	}
	var scores []candidateScore
	for _, d := range candidateDelimiters {
		counts := make([]int, 0, len(lines))
		for _, line := range lines {
			counts = append(counts, strings.Count(line, string(d))+1)
		}
		scores = append(scores, candidateScore{delim: d, variance: variance(counts), avgFields: mean(counts)})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].variance != scores[j].variance {
			return scores[i].variance < scores[j].variance
		}
		return scores[i].avgFields > scores[j].avgFields
	})
	return scores[0].delim
}

func mean(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum int
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

func variance(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sumSq float64
	for _, v := range values {
		diff := float64(v) - m
		sumSq += diff * diff
	}
	return sumSq / float64(len(values))
}
