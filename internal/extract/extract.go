/**
 * Field extraction for receipts and invoices.
 *
 * Works over raw OCR text plus the recognized regions. Every field is
 * best-effort and nullable except currency, which defaults to USD so
 * downstream accounting code always has a denomination to work with.
 */

package extract

import (
	"sort"
	"strconv"
	"strings"

	"github.com/expensekit/ocr-service/internal/engine"
)

const (
	vendorTopRegions    = 3
	vendorMinConfidence = 0.8
	vendorMinLength     = 3
	descriptionFallback = 50
)

// Fields holds the structured values recovered from a receipt. Nil
// means the field was not found; it serializes as JSON null.
type Fields struct {
	TotalAmount   *float64 `json:"total_amount"`
	Date          *string  `json:"date"`
	Vendor        *string  `json:"vendor"`
	Description   *string  `json:"description"`
	TaxAmount     *float64 `json:"tax_amount"`
	Currency      *string  `json:"currency"`
	PaymentMethod *string  `json:"payment_method"`
}

// FromOCR extracts all receipt fields from an OCR result. Extraction is
// pure: the same result always yields the same fields.
func FromOCR(res *engine.OCRResult) Fields {
	raw := res.RawText
	return Fields{
		TotalAmount:   extractTotalAmount(raw),
		Date:          extractDate(raw),
		Vendor:        extractVendor(res.TextRegions),
		Description:   extractDescription(raw),
		TaxAmount:     firstAmount(taxAmountPatterns, raw),
		Currency:      extractCurrency(raw),
		PaymentMethod: extractPaymentMethod(raw),
	}
}

// extractTotalAmount walks the labeled-amount chain first, then falls
// back to the largest two-decimal number anywhere in the text. Receipts
// put the grand total at or near the maximum charged amount, so the
// largest candidate is the safest guess.
func extractTotalAmount(raw string) *float64 {
	if v := firstAmount(totalAmountPatterns, raw); v != nil {
		return v
	}

	var best *float64
	for _, m := range anyAmountPattern.FindAllStringSubmatch(raw, -1) {
		v, ok := parseMoney(m[1])
		if !ok {
			continue
		}
		if best == nil || v > *best {
			best = &v
		}
	}
	return best
}

func firstAmount(chain patternChain, raw string) *float64 {
	for _, re := range chain {
		m := re.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		if v, ok := parseMoney(m[1]); ok {
			return &v
		}
	}
	return nil
}

func extractDate(raw string) *string {
	for _, re := range datePatterns {
		if m := re.FindStringSubmatch(raw); m != nil {
			s := m[1]
			return &s
		}
	}
	return nil
}

// extractVendor picks the vendor name from the topmost regions of the
// document. Receipts print the merchant name in the header, so the
// first confident, non-trivial line among the top three wins. When
// nothing qualifies the topmost region's text is used as-is.
func extractVendor(regions []engine.TextRegion) *string {
	if len(regions) == 0 {
		return nil
	}

	sorted := make([]engine.TextRegion, len(regions))
	copy(sorted, regions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Top() < sorted[j].Top()
	})

	limit := vendorTopRegions
	if limit > len(sorted) {
		limit = len(sorted)
	}
	for _, r := range sorted[:limit] {
		text := strings.TrimSpace(r.Text)
		if r.Confidence > vendorMinConfidence && len(text) > vendorMinLength {
			return &text
		}
	}

	top := strings.TrimSpace(sorted[0].Text)
	if top == "" {
		return nil
	}
	return &top
}

func extractDescription(raw string) *string {
	for _, re := range descriptionPatterns {
		if m := re.FindStringSubmatch(raw); m != nil {
			s := strings.TrimSpace(m[1])
			if s != "" {
				return &s
			}
		}
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	runes := []rune(trimmed)
	if len(runes) > descriptionFallback {
		runes = runes[:descriptionFallback]
	}
	s := string(runes)
	return &s
}

func extractCurrency(raw string) *string {
	for _, c := range currencySymbols {
		if strings.Contains(raw, c.symbol) {
			code := c.code
			return &code
		}
	}

	upper := strings.ToUpper(raw)
	for _, code := range currencyCodes {
		if strings.Contains(upper, code) {
			c := code
			return &c
		}
	}

	// Unlabeled amounts are assumed to be USD
	usd := "USD"
	return &usd
}

func extractPaymentMethod(raw string) *string {
	lower := strings.ToLower(raw)
	for _, p := range paymentKeywords {
		if strings.Contains(lower, p.keyword) {
			m := p.method
			return &m
		}
	}
	return nil
}

// parseMoney parses a captured amount, tolerating thousands separators.
// Trailing-dot captures like "45." parse as whole dollars.
func parseMoney(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
