package engine

// analyzeLayout computes spatial statistics over the recognized
// regions. AvgYPosition is the mean of every bounding-box corner's y
// coordinate, which weights tall regions the same as short ones.
func analyzeLayout(regions []TextRegion) LayoutAnalysis {
	layout := LayoutAnalysis{
		NumTextRegions: len(regions),
		DocumentType:   "receipt",
	}

	if len(regions) == 0 {
		return layout
	}

	sum := 0.0
	count := 0
	for _, r := range regions {
		for _, pt := range r.BBox {
			sum += pt[1]
			count++
		}
	}
	layout.AvgYPosition = sum / float64(count)

	return layout
}
