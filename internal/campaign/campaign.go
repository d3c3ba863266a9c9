// Package campaign wires the tabular ingestor, column mapper, and
// recipient validator into the single pipeline a dispatch run consumes:
// detect a source file's structure, bind its columns onto the canonical
// recipient fields, stream it into validated domain.Recipient values, and
// hand the accepted ones to the dispatcher while the rejected ones are
// reported back to the operator instead of silently dropped.
package campaign

import (
	"fmt"

	"github.com/broadwing/dispatch/internal/domain"
	"github.com/broadwing/dispatch/internal/ingest"
	"github.com/broadwing/dispatch/internal/validate"
	"github.com/broadwing/dispatch/pkg/logger"
)

// Rejection pairs a row that failed validation with the report explaining
// why, so the operator can fix the source file instead of wondering why a
// recipient never received anything.
type Rejection struct {
	Row    ingest.Row
	Report validate.Report
}

// LoadOptions configures how a source file is bound and validated before
// its rows reach the dispatcher.
type LoadOptions struct {
	Templates            []ingest.Template
	ValidateOptions      validate.Options
	MinMappingConfidence float64
	ChunkSize            int
}

// DefaultMinMappingConfidence is the floor below which a column mapping is
// rejected outright rather than silently guessed at.
const DefaultMinMappingConfidence = 0.5

// Load analyzes path, binds its headers onto the canonical recipient
// fields, and streams validated recipients onto the returned channel.
// Missing required fields for the whole file, or a mapping confidence
// below the floor, fail Load with an error. A single row failing
// validation is reported on rejections without stopping the stream for
// the rows that did pass.
//
// The returned channel is closed once every row has been read and
// validated; Load itself returns as soon as the mapping is resolved,
// with streaming happening in a background goroutine.
func Load(path string, opts LoadOptions, log logger.Logger) (<-chan domain.Recipient, <-chan Rejection, error) {
	structure, err := ingest.Analyze(path)
	if err != nil {
		return nil, nil, fmt.Errorf("campaign: analyze %s: %w", path, err)
	}

	mapping := ingest.MapColumns(structure.Headers, structure.Sample, opts.Templates)
	minConfidence := opts.MinMappingConfidence
	if minConfidence <= 0 {
		minConfidence = DefaultMinMappingConfidence
	}
	if len(mapping.MissingRequired) > 0 {
		return nil, nil, fmt.Errorf("campaign: %s is missing required fields: %v", path, mapping.MissingRequired)
	}
	if mapping.Confidence < minConfidence {
		return nil, nil, fmt.Errorf("campaign: %s column mapping confidence %.2f is below the %.2f floor", path, mapping.Confidence, minConfidence)
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = ingest.DefaultChunkSize
	}

	rows := make(chan []ingest.Row, 4)
	recipients := make(chan domain.Recipient, chunkSize)
	rejections := make(chan Rejection, chunkSize)

	go func() {
		defer close(rows)
		if err := ingest.Stream(path, chunkSize, rows); err != nil && log != nil {
			log.WithField("path", path).WithField("error", err.Error()).Error("ingest stream ended with an error")
		}
	}()

	go func() {
		defer close(recipients)
		defer close(rejections)
		for chunk := range rows {
			for _, row := range chunk {
				recipient := bind(row, mapping)
				report := validate.ValidateRecipient(recipient, opts.ValidateOptions)
				if !report.IsValid {
					rejections <- Rejection{Row: row, Report: report}
					continue
				}
				recipients <- recipient
			}
		}
	}()

	return recipients, rejections, nil
}

// bind reads the columns mapping resolved onto each canonical field out of
// row, leaving a field empty when the row has no value under the bound
// column.
func bind(row ingest.Row, mapping ingest.MappingResult) domain.Recipient {
	r := domain.Recipient{RowIndex: row.Number}
	if b, ok := mapping.Bindings[ingest.FieldPersonName]; ok {
		r.Name = row.Fields[b.Column]
	}
	if b, ok := mapping.Bindings[ingest.FieldCompany]; ok {
		r.Company = row.Fields[b.Column]
	}
	if b, ok := mapping.Bindings[ingest.FieldEmail]; ok {
		r.Email = row.Fields[b.Column]
	}
	if b, ok := mapping.Bindings[ingest.FieldPhone]; ok {
		r.Phone = row.Fields[b.Column]
	}
	return r
}
