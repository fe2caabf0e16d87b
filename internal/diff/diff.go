/**
 * Field-level document comparison.
 *
 * Compares the fields extracted from an expense document at submission
 * time against a re-scan, flagging substitutions and edits. Similarity
 * is computed over the key accounting fields; the full diff covers
 * every extracted field.
 */

package diff

import (
	"math"

	"github.com/expensekit/ocr-service/internal/extract"
)

// numericTolerance is the relative drift allowed before two amounts
// count as different, which absorbs OCR noise in the decimals.
const numericTolerance = 0.01

// keyFields drive the similarity score
var keyFields = []string{"total_amount", "date", "vendor", "currency"}

// allFields is the order fields appear in the JSON diff
var allFields = []string{
	"total_amount", "date", "vendor", "description",
	"tax_amount", "currency", "payment_method",
}

// FieldChange records one differing field
type FieldChange struct {
	Old interface{} `json:"old"`
	New interface{} `json:"new"`
}

// Result is the outcome of comparing two documents
type Result struct {
	VisualSimilarity float64                `json:"visual_similarity"`
	JSONDiff         map[string]FieldChange `json:"json_diff"`
	ChangesDetected  bool                   `json:"changes_detected"`
}

// Engine compares extracted field sets
type Engine struct {
	threshold float64
}

// NewEngine creates a comparison engine. threshold is the similarity
// below which a document is flagged as changed even when no individual
// field differs.
func NewEngine(threshold float64) *Engine {
	return &Engine{threshold: threshold}
}

// Compare scores current against original. Comparing a document with
// itself always yields similarity 1.0 and an empty diff.
func (e *Engine) Compare(original, current extract.Fields) Result {
	result := Result{
		VisualSimilarity: e.similarity(original, current),
		JSONDiff:         map[string]FieldChange{},
	}

	for _, name := range allFields {
		ov := fieldValue(original, name)
		cv := fieldValue(current, name)
		if !valuesEqual(ov, cv) {
			result.JSONDiff[name] = FieldChange{Old: ov, New: cv}
		}
	}

	result.ChangesDetected = len(result.JSONDiff) > 0 || result.VisualSimilarity < e.threshold
	return result
}

// similarity is the fraction of key fields that match. Fields missing
// from both documents are not counted; when nothing is comparable the
// documents are treated as identical.
func (e *Engine) similarity(original, current extract.Fields) float64 {
	matches := 0
	comparisons := 0

	for _, name := range keyFields {
		ov := fieldValue(original, name)
		cv := fieldValue(current, name)
		if ov == nil && cv == nil {
			continue
		}
		comparisons++
		if fieldsMatch(ov, cv) {
			matches++
		}
	}

	if comparisons == 0 {
		return 1.0
	}

	sim := float64(matches) / float64(comparisons)
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// fieldsMatch applies the numeric tolerance for amounts and exact
// equality for everything else.
func fieldsMatch(ov, cv interface{}) bool {
	if valuesEqual(ov, cv) {
		return true
	}

	of, ook := ov.(float64)
	cf, cok := cv.(float64)
	if ook && cok {
		return math.Abs(of-cf)/math.Max(of, 1) < numericTolerance
	}
	return false
}

func valuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a == b
}

// fieldValue returns the field's value as float64, string, or nil
func fieldValue(f extract.Fields, name string) interface{} {
	switch name {
	case "total_amount":
		return deref(f.TotalAmount)
	case "date":
		return derefStr(f.Date)
	case "vendor":
		return derefStr(f.Vendor)
	case "description":
		return derefStr(f.Description)
	case "tax_amount":
		return deref(f.TaxAmount)
	case "currency":
		return derefStr(f.Currency)
	case "payment_method":
		return derefStr(f.PaymentMethod)
	}
	return nil
}

func deref(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func derefStr(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
