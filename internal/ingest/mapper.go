package ingest

import (
	"regexp"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// FieldName is one of the canonical recipient fields column mapping binds
// source columns onto.
type FieldName string

const (
	FieldPersonName FieldName = "name"
	FieldCompany    FieldName = "company"
	FieldEmail      FieldName = "email"
	FieldPhone      FieldName = "phone"
)

// RequiredFields lists the fields a binding must cover for a file to be
// usable. Company is informational only, so it is not required.
var RequiredFields = []FieldName{FieldPersonName, FieldEmail, FieldPhone}

type fieldDefinition struct {
	synonyms        []string
	patterns        []*regexp.Regexp
	dataPositive    *regexp.Regexp
	dataNegative    *regexp.Regexp
	weight          float64
}

var fieldDefinitions = map[FieldName]fieldDefinition{
	FieldPersonName: {
		synonyms: []string{
			"name", "customer_name", "full_name", "client_name", "contact_name",
			"nome", "nombre", "nom", "person_name",
		},
		patterns:     []*regexp.Regexp{regexp.MustCompile(`(?i).*name.*`), regexp.MustCompile(`(?i).*contact.*`)},
		dataPositive: regexp.MustCompile(`^[A-Za-z\s\-'.]{2,50}$`),
		dataNegative: regexp.MustCompile(`^\d+$|^[^@]+@[^@]+\.[^@]+$`),
		weight:       1.0,
	},
	FieldCompany: {
		synonyms: []string{
			"company", "company_name", "organization", "org", "business",
			"empresa", "compañía", "société",
		},
		patterns:     []*regexp.Regexp{regexp.MustCompile(`(?i).*company.*`), regexp.MustCompile(`(?i).*organization.*`)},
		dataPositive: regexp.MustCompile(`^[A-Za-z0-9\s\-&.,]{2,100}$`),
		dataNegative: regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`),
		weight:       0.8,
	},
	FieldEmail: {
		synonyms: []string{
			"email", "email_address", "e-mail", "mail", "correo", "courriel",
		},
		patterns:     []*regexp.Regexp{regexp.MustCompile(`(?i).*email.*`), regexp.MustCompile(`(?i).*mail.*`)},
		dataPositive: regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`),
		dataNegative: regexp.MustCompile(`^\d+$`),
		weight:       1.0,
	},
	FieldPhone: {
		synonyms: []string{
			"phone", "telephone", "mobile", "cell", "telefone", "teléfono", "téléphone", "phone_number", "tel",
		},
		patterns:     []*regexp.Regexp{regexp.MustCompile(`(?i).*phone.*`), regexp.MustCompile(`(?i).*tel.*`), regexp.MustCompile(`(?i).*mobile.*`)},
		dataPositive: regexp.MustCompile(`^\+?\d[\d\s\-().]{6,}$`),
		dataNegative: regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`),
		weight:       1.0,
	},
}

// Template is a stored mapping learned from a prior import. It matches a
// field when the header it recorded for that field is present (compared
// after normalization); the score comes from its historical success and
// usage only. How many of its other mappings are present is not considered.
type Template struct {
	Name         string
	Mappings     map[FieldName]string // field -> expected header text
	UsageCount   int
	SuccessRate  float64 // [0,1]
}

// Binding is one source-column-to-field assignment with the strategy and
// confidence that produced it.
type Binding struct {
	Field      FieldName
	Column     string
	Confidence float64
	Method     string
}

// MappingResult is the outcome of binding a file's headers to the
// canonical fields.
type MappingResult struct {
	Bindings        map[FieldName]Binding
	UnmappedColumns []string
	MissingRequired []FieldName
	Confidence      float64
}

// MapColumns runs the layered strategies (exact, template, regex,
// data-pattern, fuzzy) in priority order, removing a column from the
// candidate pool as soon as a higher-priority strategy claims it.
func MapColumns(headers []string, sample []map[string]string, templates []Template) MappingResult {
	pool := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		pool[h] = struct{}{}
	}

	bindings := map[FieldName]Binding{}

	for field := range fieldDefinitions {
		if b, col, ok := matchExact(field, pool); ok {
			bindings[field] = Binding{Field: field, Column: col, Confidence: b, Method: "exact"}
			delete(pool, col)
		}
	}

	for field := range fieldDefinitions {
		if _, bound := bindings[field]; bound {
			continue
		}
		if b, col, ok := matchTemplate(field, pool, templates); ok {
			bindings[field] = Binding{Field: field, Column: col, Confidence: b, Method: "template"}
			delete(pool, col)
		}
	}

	for field := range fieldDefinitions {
		if _, bound := bindings[field]; bound {
			continue
		}
		if b, col, ok := matchPattern(field, pool); ok {
			bindings[field] = Binding{Field: field, Column: col, Confidence: b, Method: "pattern"}
			delete(pool, col)
		}
	}

	for field := range fieldDefinitions {
		if _, bound := bindings[field]; bound {
			continue
		}
		if b, col, ok := matchDataPattern(field, pool, sample); ok {
			bindings[field] = Binding{Field: field, Column: col, Confidence: b, Method: "data_pattern"}
			delete(pool, col)
		}
	}

	for field := range fieldDefinitions {
		if _, bound := bindings[field]; bound {
			continue
		}
		if b, col, ok := matchFuzzy(field, pool); ok {
			bindings[field] = Binding{Field: field, Column: col, Confidence: b, Method: "fuzzy"}
			delete(pool, col)
		}
	}

	unmapped := sortedPoolKeys(pool)

	var missing []FieldName
	for _, f := range RequiredFields {
		if _, ok := bindings[f]; !ok {
			missing = append(missing, f)
		}
	}

	return MappingResult{
		Bindings:        bindings,
		UnmappedColumns: unmapped,
		MissingRequired: missing,
		Confidence:      overallConfidence(bindings),
	}
}

func overallConfidence(bindings map[FieldName]Binding) float64 {
	var weightedSum, weightTotal float64
	for field, b := range bindings {
		w := fieldDefinitions[field].weight
		weightedSum += w * b.Confidence
		weightTotal += w
	}
	if weightTotal == 0 {
		return 0
	}
	mean := weightedSum / weightTotal
	boundFraction := float64(len(requiredBound(bindings))) / float64(len(RequiredFields))
	return mean * boundFraction
}

func requiredBound(bindings map[FieldName]Binding) []FieldName {
	var out []FieldName
	for _, f := range RequiredFields {
		if _, ok := bindings[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// sortedPoolKeys returns pool's columns in a stable, deterministic order
// so that a genuine tie in score/specificity/similarity always resolves
// to the same column across runs, instead of whatever order Go's
// randomized map iteration happens to produce.
func sortedPoolKeys(pool map[string]struct{}) []string {
	keys := make([]string, 0, len(pool))
	for col := range pool {
		keys = append(keys, col)
	}
	sort.Strings(keys)
	return keys
}

func matchExact(field FieldName, pool map[string]struct{}) (confidence float64, column string, ok bool) {
	def := fieldDefinitions[field]
	for _, col := range sortedPoolKeys(pool) {
		norm := normalize(col)
		for _, syn := range def.synonyms {
			if norm == syn {
				return 1.0, col, true
			}
		}
	}
	return 0, "", false
}

// matchTemplate looks in the remaining pool for a header equal, after
// normalization, to the one a stored template recorded for field, and
// scores each hit as 0.6 + 0.3*SuccessRate + min(0.1, 0.01*UsageCount);
// the highest score wins. The fraction of a template's mappings present
// among the headers is not considered.
func matchTemplate(field FieldName, pool map[string]struct{}, templates []Template) (confidence float64, column string, ok bool) {
	var bestScore float64
	for _, tmpl := range templates {
		expected, has := tmpl.Mappings[field]
		if !has {
			continue
		}
		for _, col := range sortedPoolKeys(pool) {
			if normalize(col) != normalize(expected) {
				continue
			}
			score := 0.6 + 0.3*tmpl.SuccessRate + minFloat(0.1, float64(tmpl.UsageCount)*0.01)
			if score > bestScore {
				bestScore = score
				column = col
			}
		}
	}
	if column == "" {
		return 0, "", false
	}
	return bestScore, column, true
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func matchPattern(field FieldName, pool map[string]struct{}) (confidence float64, column string, ok bool) {
	def := fieldDefinitions[field]
	var bestSpecificity int
	for _, col := range sortedPoolKeys(pool) {
		for _, re := range def.patterns {
			if !re.MatchString(col) {
				continue
			}
			specificity := len(re.String())
			if column == "" || specificity > bestSpecificity {
				column = col
				bestSpecificity = specificity
			}
		}
	}
	if column == "" {
		return 0, "", false
	}
	score := 0.8 + minFloat(0.15, float64(bestSpecificity)/200.0)
	return minFloat(score, 0.95), column, true
}

// matchDataPattern inspects sample values for a positive/negative pattern
// match ratio rather than the header text.
func matchDataPattern(field FieldName, pool map[string]struct{}, sample []map[string]string) (confidence float64, column string, ok bool) {
	def := fieldDefinitions[field]
	if def.dataPositive == nil || len(sample) == 0 {
		return 0, "", false
	}

	var bestPositiveRatio float64
	for _, col := range sortedPoolKeys(pool) {
		var positive, negative, total int
		for _, row := range sample {
			val := strings.TrimSpace(row[col])
			if val == "" {
				continue
			}
			total++
			if def.dataPositive.MatchString(val) {
				positive++
			}
			if def.dataNegative != nil && def.dataNegative.MatchString(val) {
				negative++
			}
		}
		if total == 0 {
			continue
		}
		posRatio := float64(positive) / float64(total)
		negRatio := float64(negative) / float64(total)
		if posRatio > 0.6 && negRatio < 0.3 && posRatio > bestPositiveRatio {
			bestPositiveRatio = posRatio
			column = col
		}
	}
	if column == "" {
		return 0, "", false
	}
	return bestPositiveRatio, column, true
}

func matchFuzzy(field FieldName, pool map[string]struct{}) (confidence float64, column string, ok bool) {
	def := fieldDefinitions[field]
	var best float64
	for _, col := range sortedPoolKeys(pool) {
		norm := normalize(col)
		for _, syn := range def.synonyms {
			sim := similarity(norm, syn)
			if sim >= 0.7 && sim > best {
				best = sim
				column = col
			}
		}
	}
	if column == "" {
		return 0, "", false
	}
	return best, column, true
}

// similarity converts Levenshtein edit distance into a [0,1] ratio
// relative to the longer string's length.
func similarity(a, b string) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}
