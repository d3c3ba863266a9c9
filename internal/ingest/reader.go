package ingest

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/qax-os/excelize/v2"

	"github.com/broadwing/dispatch/internal/domain"
)

// DefaultChunkSize is the default number of rows produced per chunk by
// Stream.
const DefaultChunkSize = 1000

// sampleRows is how many rows FileStructure keeps as a non-destructive
// preview.
const sampleRows = 5

// Row is one source record, 1-based to match the source file's own line
// numbering (row 1 is the first data row after the header).
type Row struct {
	Number int
	Fields map[string]string
}

// Analyze opens path, detects its structure, and returns it along with
// the full header list. It reads only as much of the file as needed for
// detection and the sample; it does not exhaust the row stream.
func Analyze(path string) (*FileStructure, error) {
	probe, err := readProbe(path, 4096)
	if err != nil {
		return nil, &domain.IngestError{Source: path, Reason: "reading probe bytes", Err: err}
	}

	format := DetectFormat(path, probe)

	var fs *FileStructure
	switch format {
	case FormatXLSX, FormatXLS:
		fs, err = analyzeSpreadsheet(path, format)
	case FormatJSON, FormatJSONL:
		fs, err = analyzeJSON(path, format)
	default:
		fs, err = analyzeDelimited(path, format)
	}
	if err != nil {
		return nil, err
	}
	return fs, nil
}

func readProbe(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, n)
	read, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:read], nil
}

func analyzeDelimited(path string, format Format) (*FileStructure, error) {
	encoding, confidence, err := DetectEncoding(path)
	if err != nil {
		return nil, &domain.IngestError{Source: path, Reason: "detecting encoding", Err: err}
	}
	_ = confidence // not surfaced: FileStructure carries only the encoding name

	sampleBytes, err := readProbe(path, 1024)
	if err != nil {
		return nil, &domain.IngestError{Source: path, Reason: "reading delimiter sample", Err: err}
	}

	var delim rune
	switch format {
	case FormatCSV:
		delim = ','
	case FormatTSV:
		delim = '\t'
	default:
		delim = DetectDelimiter(sampleBytes)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.IngestError{Source: path, Reason: "opening file", Err: err}
	}
	defer f.Close()

	reader := csv.NewReader(bufio.NewReader(f))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		return nil, &domain.IngestError{Source: path, Reason: "reading header row", Err: err}
	}

	var sample []map[string]string
	rowCount := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &domain.IngestError{Source: path, Reason: "reading sample rows", Err: err}
		}
		rowCount++
		if len(sample) < sampleRows {
			sample = append(sample, rowToMap(headers, record))
		}
	}

	return &FileStructure{
		Format:        format,
		Encoding:      encoding,
		Delimiter:     delim,
		Headers:       headers,
		Sample:        sample,
		EstimatedRows: rowCount,
	}, nil
}

func analyzeSpreadsheet(path string, format Format) (*FileStructure, error) {
	xl, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &domain.IngestError{Source: path, Reason: "opening spreadsheet", Err: err}
	}
	defer xl.Close()

	sheets := xl.GetSheetList()
	if len(sheets) == 0 {
		return nil, &domain.IngestError{Source: path, Reason: "spreadsheet has no sheets"}
	}
	sheet := sheets[0]

	rows, err := xl.GetRows(sheet)
	if err != nil {
		return nil, &domain.IngestError{Source: path, Reason: "reading spreadsheet rows", Err: err}
	}
	if len(rows) == 0 {
		return &FileStructure{Format: format, Encoding: "utf-8"}, nil
	}

	headers := rows[0]
	var sample []map[string]string
	for i, row := range rows[1:] {
		if i >= sampleRows {
			break
		}
		sample = append(sample, rowToMap(headers, row))
	}

	return &FileStructure{
		Format:        format,
		Encoding:      "utf-8",
		Headers:       headers,
		Sample:        sample,
		EstimatedRows: len(rows) - 1,
	}, nil
}

func analyzeJSON(path string, format Format) (*FileStructure, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.IngestError{Source: path, Reason: "opening file", Err: err}
	}
	defer f.Close()

	var records []map[string]any
	if format == FormatJSONL {
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var rec map[string]any
			if err := json.Unmarshal(line, &rec); err != nil {
				return nil, &domain.IngestError{Source: path, Reason: "parsing jsonl line", Err: err}
			}
			records = append(records, rec)
		}
		if err := scanner.Err(); err != nil {
			return nil, &domain.IngestError{Source: path, Reason: "scanning jsonl", Err: err}
		}
	} else {
		if err := json.NewDecoder(f).Decode(&records); err != nil {
			return nil, &domain.IngestError{Source: path, Reason: "parsing json array", Err: err}
		}
	}

	headerSet := map[string]struct{}{}
	var headers []string
	for _, rec := range records {
		for k := range rec {
			if _, seen := headerSet[k]; !seen {
				headerSet[k] = struct{}{}
				headers = append(headers, k)
			}
		}
	}

	var sample []map[string]string
	for i, rec := range records {
		if i >= sampleRows {
			break
		}
		m := make(map[string]string, len(rec))
		for k, v := range rec {
			m[k] = fmt.Sprintf("%v", v)
		}
		sample = append(sample, m)
	}

	return &FileStructure{
		Format:        format,
		Encoding:      "utf-8",
		Headers:       headers,
		Sample:        sample,
		EstimatedRows: len(records),
	}, nil
}

func rowToMap(headers, values []string) map[string]string {
	m := make(map[string]string, len(headers))
	for i, h := range headers {
		if i < len(values) {
			m[h] = values[i]
		} else {
			m[h] = ""
		}
	}
	return m
}

// Stream opens path and sends every data row through rows in chunks of
// chunkSize (DefaultChunkSize if <= 0), closing rows when the source is
// exhausted or an error occurs. The stream is finite and not restartable;
// the caller must call Stream again (which re-opens the source) to read
// it a second time.
func Stream(path string, chunkSize int, rows chan<- []Row) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	defer close(rows)

	probe, err := readProbe(path, 4096)
	if err != nil {
		return &domain.IngestError{Source: path, Reason: "reading probe bytes", Err: err}
	}
	format := DetectFormat(path, probe)

	switch format {
	case FormatXLSX, FormatXLS:
		return streamSpreadsheet(path, chunkSize, rows)
	case FormatJSON, FormatJSONL:
		return streamJSON(path, format, chunkSize, rows)
	default:
		return streamDelimited(path, format, chunkSize, rows)
	}
}

func streamDelimited(path string, format Format, chunkSize int, rows chan<- []Row) error {
	encoding, _, err := DetectEncoding(path)
	_ = encoding
	if err != nil {
		return &domain.IngestError{Source: path, Reason: "detecting encoding", Err: err}
	}

	sampleBytes, err := readProbe(path, 1024)
	if err != nil {
		return &domain.IngestError{Source: path, Reason: "reading delimiter sample", Err: err}
	}
	var delim rune
	switch format {
	case FormatCSV:
		delim = ','
	case FormatTSV:
		delim = '\t'
	default:
		delim = DetectDelimiter(sampleBytes)
	}

	f, err := os.Open(path)
	if err != nil {
		return &domain.IngestError{Source: path, Reason: "opening file", Err: err}
	}
	defer f.Close()

	reader := csv.NewReader(bufio.NewReader(f))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		return &domain.IngestError{Source: path, Reason: "reading header row", Err: err}
	}

	var chunk []Row
	n := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &domain.IngestError{Source: path, Reason: "reading row", Err: err}
		}
		n++
		chunk = append(chunk, Row{Number: n, Fields: rowToMap(headers, record)})
		if len(chunk) >= chunkSize {
			rows <- chunk
			chunk = nil
		}
	}
	if len(chunk) > 0 {
		rows <- chunk
	}
	return nil
}

func streamSpreadsheet(path string, chunkSize int, rows chan<- []Row) error {
	xl, err := excelize.OpenFile(path)
	if err != nil {
		return &domain.IngestError{Source: path, Reason: "opening spreadsheet", Err: err}
	}
	defer xl.Close()

	sheets := xl.GetSheetList()
	if len(sheets) == 0 {
		return &domain.IngestError{Source: path, Reason: "spreadsheet has no sheets"}
	}

	all, err := xl.GetRows(sheets[0])
	if err != nil {
		return &domain.IngestError{Source: path, Reason: "reading spreadsheet rows", Err: err}
	}
	if len(all) == 0 {
		return nil
	}
	headers := all[0]

	var chunk []Row
	n := 0
	for _, record := range all[1:] {
		n++
		chunk = append(chunk, Row{Number: n, Fields: rowToMap(headers, record)})
		if len(chunk) >= chunkSize {
			rows <- chunk
			chunk = nil
		}
	}
	if len(chunk) > 0 {
		rows <- chunk
	}
	return nil
}

func streamJSON(path string, format Format, chunkSize int, rows chan<- []Row) error {
	f, err := os.Open(path)
	if err != nil {
		return &domain.IngestError{Source: path, Reason: "opening file", Err: err}
	}
	defer f.Close()

	toRow := func(n int, rec map[string]any) Row {
		m := make(map[string]string, len(rec))
		for k, v := range rec {
			m[k] = fmt.Sprintf("%v", v)
		}
		return Row{Number: n, Fields: m}
	}

	var chunk []Row
	n := 0

	if format == FormatJSONL {
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var rec map[string]any
			if err := json.Unmarshal(line, &rec); err != nil {
				return &domain.IngestError{Source: path, Reason: "parsing jsonl line", Err: err}
			}
			n++
			chunk = append(chunk, toRow(n, rec))
			if len(chunk) >= chunkSize {
				rows <- chunk
				chunk = nil
			}
		}
		if err := scanner.Err(); err != nil {
			return &domain.IngestError{Source: path, Reason: "scanning jsonl", Err: err}
		}
	} else {
		var records []map[string]any
		if err := json.NewDecoder(f).Decode(&records); err != nil {
			return &domain.IngestError{Source: path, Reason: "parsing json array", Err: err}
		}
		for _, rec := range records {
			n++
			chunk = append(chunk, toRow(n, rec))
			if len(chunk) >= chunkSize {
				rows <- chunk
				chunk = nil
			}
		}
	}
	if len(chunk) > 0 {
		rows <- chunk
	}
	return nil
}
