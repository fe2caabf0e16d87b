package extract

import (
	"reflect"
	"testing"

	"github.com/expensekit/ocr-service/internal/engine"
)

func lineRegion(top float64, text string, conf float64) engine.TextRegion {
	return engine.TextRegion{
		BBox:       [4][2]float64{{0, top}, {200, top}, {200, top + 20}, {0, top + 20}},
		Text:       text,
		Confidence: conf,
	}
}

func resultFrom(regions ...engine.TextRegion) *engine.OCRResult {
	raw := ""
	for i, r := range regions {
		if i > 0 {
			raw += "\n"
		}
		raw += r.Text
	}
	return &engine.OCRResult{TextRegions: regions, RawText: raw}
}

func TestFromOCRTypicalReceipt(t *testing.T) {
	res := resultFrom(
		lineRegion(0, "ACME SUPPLIES", 0.95),
		lineRegion(30, "TOTAL: $45.67", 0.92),
		lineRegion(60, "TAX: $3.50", 0.91),
		lineRegion(90, "01/15/2024", 0.90),
	)

	fields := FromOCR(res)

	if fields.TotalAmount == nil || *fields.TotalAmount != 45.67 {
		t.Errorf("TotalAmount = %v, want 45.67", fields.TotalAmount)
	}
	if fields.TaxAmount == nil || *fields.TaxAmount != 3.50 {
		t.Errorf("TaxAmount = %v, want 3.50", fields.TaxAmount)
	}
	if fields.Date == nil || *fields.Date != "01/15/2024" {
		t.Errorf("Date = %v, want 01/15/2024", fields.Date)
	}
	if fields.Currency == nil || *fields.Currency != "USD" {
		t.Errorf("Currency = %v, want USD", fields.Currency)
	}
	if fields.Vendor == nil || *fields.Vendor != "ACME SUPPLIES" {
		t.Errorf("Vendor = %v, want ACME SUPPLIES", fields.Vendor)
	}
}

func TestFromOCRIsDeterministic(t *testing.T) {
	res := resultFrom(
		lineRegion(0, "Coffee Corner", 0.9),
		lineRegion(30, "Amount Due: 12.00", 0.9),
		lineRegion(60, "Paid by VISA", 0.9),
	)

	first := FromOCR(res)
	second := FromOCR(res)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("extraction not deterministic: %+v vs %+v", first, second)
	}
}

func TestFromOCREmptyResult(t *testing.T) {
	fields := FromOCR(&engine.OCRResult{})

	if fields.TotalAmount != nil || fields.Date != nil || fields.Vendor != nil ||
		fields.Description != nil || fields.TaxAmount != nil || fields.PaymentMethod != nil {
		t.Errorf("expected null fields for empty OCR result, got %+v", fields)
	}
	if fields.Currency == nil || *fields.Currency != "USD" {
		t.Errorf("Currency = %v, want default USD", fields.Currency)
	}
}

func TestExtractTotalAmount(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{"labeled total", "Items 3\nTOTAL: $45.67", 45.67},
		{"amount due", "AMOUNT DUE: 99.10", 99.10},
		{"grand total", "grand total: $1,234.56", 1234.56},
		{"balance", "Balance: 17.80", 17.80},
		{"symbol only", "coffee € 4.20\nbagel", 4.20},
		{"fallback largest", "3.10 latte\n12.50 sandwich\n9.99 cake", 12.50},
		{"comma thousands fallback", "items 1,100.00 and 900.00", 1100.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractTotalAmount(tt.raw)
			if got == nil || *got != tt.want {
				t.Errorf("extractTotalAmount(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}

	if got := extractTotalAmount("no numbers here"); got != nil {
		t.Errorf("expected nil for text without amounts, got %v", *got)
	}
}

func TestExtractDate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"iso", "Date 2024-01-15 thanks", "2024-01-15"},
		{"iso slashes", "2024/1/5", "2024/1/5"},
		{"us", "printed 01/15/2024", "01/15/2024"},
		{"us short year", "printed 1/15/24", "1/15/24"},
		{"month name", "Jan 15, 2024", "Jan 15, 2024"},
		{"month name full", "received January 15 2024", "January 15 2024"},
		{"iso wins over us", "2024-01-15 and 01/15/2024", "2024-01-15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractDate(tt.raw)
			if got == nil || *got != tt.want {
				t.Errorf("extractDate(%q) = %v, want %q", tt.raw, got, tt.want)
			}
		})
	}

	if got := extractDate("no date present"); got != nil {
		t.Errorf("expected nil, got %q", *got)
	}
}

func TestExtractVendor(t *testing.T) {
	t.Run("confident header wins", func(t *testing.T) {
		regions := []engine.TextRegion{
			lineRegion(40, "123 Main St", 0.95),
			lineRegion(0, "ACME SUPPLIES", 0.95),
		}
		got := extractVendor(regions)
		if got == nil || *got != "ACME SUPPLIES" {
			t.Errorf("vendor = %v, want ACME SUPPLIES", got)
		}
	})

	t.Run("low confidence falls back to topmost", func(t *testing.T) {
		regions := []engine.TextRegion{
			lineRegion(0, "Blurry Mart", 0.4),
			lineRegion(30, "xx", 0.5),
		}
		got := extractVendor(regions)
		if got == nil || *got != "Blurry Mart" {
			t.Errorf("vendor = %v, want Blurry Mart", got)
		}
	})

	t.Run("short confident text skipped", func(t *testing.T) {
		regions := []engine.TextRegion{
			lineRegion(0, "abc", 0.99),
			lineRegion(20, "Real Vendor Inc", 0.99),
		}
		got := extractVendor(regions)
		if got == nil || *got != "Real Vendor Inc" {
			t.Errorf("vendor = %v, want Real Vendor Inc", got)
		}
	})

	t.Run("no regions", func(t *testing.T) {
		if got := extractVendor(nil); got != nil {
			t.Errorf("expected nil, got %q", *got)
		}
	})
}

func TestExtractCurrency(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"total $5.00", "USD"},
		{"total €5.00", "EUR"},
		{"total £5.00", "GBP"},
		{"total ¥500", "JPY"},
		{"total ₹500", "INR"},
		{"total 5.00 EUR", "EUR"},
		{"total 5.00", "USD"}, // default
		{"", "USD"},
	}

	for _, tt := range tests {
		got := extractCurrency(tt.raw)
		if got == nil || *got != tt.want {
			t.Errorf("extractCurrency(%q) = %v, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestExtractPaymentMethod(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Paid with VISA card", "Credit Card"},
		{"MASTERCARD ****1234", "Credit Card"},
		{"debit card payment", "Debit Card"},
		{"CASH TENDERED", "Cash"},
		{"via PayPal", "PayPal"},
	}

	for _, tt := range tests {
		got := extractPaymentMethod(tt.raw)
		if got == nil || *got != tt.want {
			t.Errorf("extractPaymentMethod(%q) = %v, want %q", tt.raw, got, tt.want)
		}
	}

	if got := extractPaymentMethod("no method mentioned"); got != nil {
		t.Errorf("expected nil, got %q", *got)
	}
}

func TestExtractDescription(t *testing.T) {
	t.Run("labeled", func(t *testing.T) {
		got := extractDescription("Memo: client lunch\nTotal 10.00")
		if got == nil || *got != "client lunch" {
			t.Errorf("description = %v, want client lunch", got)
		}
	})

	t.Run("fallback truncates", func(t *testing.T) {
		long := "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
		got := extractDescription(long)
		if got == nil || len([]rune(*got)) != 50 {
			t.Errorf("description = %v, want 50-rune prefix", got)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if got := extractDescription("   "); got != nil {
			t.Errorf("expected nil, got %q", *got)
		}
	})
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"45.67", 45.67, true},
		{"1,234.56", 1234.56, true},
		{"45.", 45, true},
		{"", 0, false},
		{",", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseMoney(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("parseMoney(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
