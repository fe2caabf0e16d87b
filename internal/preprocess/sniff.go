package preprocess

import "bytes"

// DetectMimeType detects the MIME type from file content magic bytes.
// This is more reliable than trusting the multipart Content-Type header,
// which browsers and ERP clients frequently leave as application/octet-stream.
func DetectMimeType(data []byte) string {
	if len(data) < 4 {
		return ""
	}

	// PDF: %PDF-
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return "application/pdf"
	}

	// PNG: 0x89 'P' 'N' 'G' 0x0D 0x0A 0x1A 0x0A
	if len(data) >= 8 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}) {
		return "image/png"
	}

	// JPEG: 0xFF 0xD8 0xFF
	if bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}) {
		return "image/jpeg"
	}

	// GIF: 'G' 'I' 'F' '8' ('7' or '9') 'a'
	if bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")) {
		return "image/gif"
	}

	// WebP: 'R' 'I' 'F' 'F' .... 'W' 'E' 'B' 'P'
	if len(data) > 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP" {
		return "image/webp"
	}

	// TIFF: 'I' 'I' 0x2A 0x00 (little-endian) or 'M' 'M' 0x00 0x2A (big-endian)
	if bytes.HasPrefix(data, []byte{0x49, 0x49, 0x2A, 0x00}) || bytes.HasPrefix(data, []byte{0x4D, 0x4D, 0x00, 0x2A}) {
		return "image/tiff"
	}

	// BMP: 'B' 'M'
	if bytes.HasPrefix(data, []byte("BM")) {
		return "image/bmp"
	}

	return ""
}

// IsSupportedImage reports whether the detected MIME type is one the
// OCR pipeline can decode.
func IsSupportedImage(mimeType string) bool {
	switch mimeType {
	case "image/png", "image/jpeg", "image/gif", "image/webp", "image/tiff", "image/bmp":
		return true
	}
	return false
}
