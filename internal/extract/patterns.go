package extract

import "regexp"

// A patternChain is tried in order against the raw text; the first
// pattern with a parseable capture wins. Adding a new document layout
// means appending a pattern, not editing control flow.
type patternChain []*regexp.Regexp

var totalAmountPatterns = patternChain{
	regexp.MustCompile(`(?i)total[:\s]+\$?\s*([\d,]+\.?\d*)`),
	regexp.MustCompile(`(?i)amount\s+due[:\s]+\$?\s*([\d,]+\.?\d*)`),
	regexp.MustCompile(`(?i)grand\s+total[:\s]+\$?\s*([\d,]+\.?\d*)`),
	regexp.MustCompile(`(?i)balance[:\s]+\$?\s*([\d,]+\.?\d*)`),
	regexp.MustCompile(`[$€£]\s*([\d,]+\.\d{2})`),
}

// anyAmountPattern backs the last-resort fallback: every decimal number
// with exactly two fraction digits is a candidate and the largest wins.
var anyAmountPattern = regexp.MustCompile(`([\d,]+\.\d{2})`)

var taxAmountPatterns = patternChain{
	regexp.MustCompile(`(?i)tax[:\s]+\$?\s*([\d,]+\.?\d*)`),
	regexp.MustCompile(`(?i)vat[:\s]+\$?\s*([\d,]+\.?\d*)`),
	regexp.MustCompile(`(?i)gst[:\s]+\$?\s*([\d,]+\.?\d*)`),
}

// Date patterns keep the matched text verbatim; no normalization is
// applied. ISO-style dates are tried first, then US-style, then
// written-out month names.
var datePatterns = patternChain{
	regexp.MustCompile(`(\d{4}[-/]\d{1,2}[-/]\d{1,2})`),
	regexp.MustCompile(`(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})`),
	regexp.MustCompile(`(?i)((?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4})`),
}

var descriptionPatterns = patternChain{
	regexp.MustCompile(`(?i)description[:\s]+(.+)`),
	regexp.MustCompile(`(?i)memo[:\s]+(.+)`),
	regexp.MustCompile(`(?i)note[:\s]+(.+)`),
}

// currencySymbols maps symbols to ISO codes, checked in order
var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"₹", "INR"},
}

// currencyCodes are matched case-insensitively as substrings
var currencyCodes = []string{"USD", "EUR", "GBP", "JPY", "INR", "CAD", "AUD"}

// paymentKeywords maps lowercase keywords to canonical payment method
// labels, checked in order so that "visa debit" resolves to the card
// brand first.
var paymentKeywords = []struct {
	keyword string
	method  string
}{
	{"credit card", "Credit Card"},
	{"credit", "Credit Card"},
	{"visa", "Credit Card"},
	{"mastercard", "Credit Card"},
	{"amex", "Credit Card"},
	{"debit", "Debit Card"},
	{"cash", "Cash"},
	{"paypal", "PayPal"},
	{"check", "Check"},
	{"cheque", "Check"},
}
