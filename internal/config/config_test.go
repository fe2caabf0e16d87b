package config

import "testing"

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.OCRLanguage != "eng" {
		t.Errorf("OCRLanguage = %q, want eng", cfg.OCRLanguage)
	}
	if cfg.OCRTimeoutMs != 30000 {
		t.Errorf("OCRTimeoutMs = %d, want 30000", cfg.OCRTimeoutMs)
	}
	if cfg.MinConfidence != 0.85 {
		t.Errorf("MinConfidence = %v, want 0.85", cfg.MinConfidence)
	}
	if cfg.VisualDiffThreshold != 0.95 {
		t.Errorf("VisualDiffThreshold = %v, want 0.95", cfg.VisualDiffThreshold)
	}
	if cfg.MaxImageWidth != 2000 {
		t.Errorf("MaxImageWidth = %d, want 2000", cfg.MaxImageWidth)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9000")
	t.Setenv("OCR_CONCURRENCY", "8")
	t.Setenv("MIN_CONFIDENCE", "0.7")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q, want :9000", cfg.ListenAddr)
	}
	if cfg.OCRConcurrency != 8 {
		t.Errorf("OCRConcurrency = %d, want 8", cfg.OCRConcurrency)
	}
	if cfg.MinConfidence != 0.7 {
		t.Errorf("MinConfidence = %v, want 0.7", cfg.MinConfidence)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("OCR_CONCURRENCY", "0")
	if _, err := LoadConfig(); err == nil {
		t.Error("expected error for OCR_CONCURRENCY=0")
	}
}

func TestGetEnvAsIntOrDefaultIgnoresGarbage(t *testing.T) {
	t.Setenv("OCR_TIMEOUT_MS", "not-a-number")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.OCRTimeoutMs != 30000 {
		t.Errorf("OCRTimeoutMs = %d, want default 30000", cfg.OCRTimeoutMs)
	}
}
