package engine

// TextRegion is a single recognized text line with its quadrilateral
// bounding box. Corners run clockwise from top-left and confidence is
// normalized to [0, 1].
type TextRegion struct {
	BBox       [4][2]float64 `json:"bbox"`
	Text       string        `json:"text"`
	Confidence float64       `json:"confidence"`
}

// LayoutAnalysis summarizes the spatial structure of the document
type LayoutAnalysis struct {
	NumTextRegions int     `json:"num_text_regions"`
	AvgYPosition   float64 `json:"avg_y_position"`
	DocumentType   string  `json:"document_type"`
}

// OCRResult is the raw output of the OCR engine for one image
type OCRResult struct {
	TextRegions       []TextRegion   `json:"text_regions"`
	RawText           string         `json:"raw_text"`
	AverageConfidence float64        `json:"average_confidence"`
	Layout            LayoutAnalysis `json:"layout_analysis"`
}

// Top returns the smallest y coordinate of the region's bounding box
func (r TextRegion) Top() float64 {
	top := r.BBox[0][1]
	for _, pt := range r.BBox[1:] {
		if pt[1] < top {
			top = pt[1]
		}
	}
	return top
}
