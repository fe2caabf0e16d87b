/**
 * Image preprocessing for receipt OCR.
 *
 * Pipeline: grayscale decode -> width cap -> bilateral denoise ->
 * deskew (Canny + Hough) -> adaptive Gaussian threshold. The output is
 * a PNG-encoded binary image ready for the OCR engine.
 */

package preprocess

import (
	"image"
	"image/color"
	"math"
	"sort"

	"gocv.io/x/gocv"

	apperrors "github.com/expensekit/ocr-service/internal/errors"
	"github.com/expensekit/ocr-service/internal/logging"
)

const (
	bilateralDiameter   = 9
	bilateralSigmaColor = 75
	bilateralSigmaSpace = 75
	cannyLow            = 50
	cannyHigh           = 150
	houghThreshold      = 200
	thresholdBlockSize  = 11
	thresholdConstant   = 2
)

// Preprocessor normalizes uploaded receipt photos before OCR.
type Preprocessor struct {
	maxWidth int
	maxSkew  float64
	log      *logging.Logger
}

// New creates a Preprocessor. maxWidth caps the working resolution and
// maxSkew bounds the rotation correction in degrees.
func New(maxWidth int, maxSkew float64) *Preprocessor {
	return &Preprocessor{
		maxWidth: maxWidth,
		maxSkew:  maxSkew,
		log:      logging.NewLogger("Preprocess"),
	}
}

// Run decodes the image bytes and applies the full preprocessing
// pipeline. It never fails on content: a blank or featureless image
// passes through untouched by the deskew step. Only non-decodable
// input returns an error.
func (p *Preprocessor) Run(data []byte) ([]byte, error) {
	gray, err := gocv.IMDecode(data, gocv.IMReadGrayScale)
	if err != nil {
		return nil, apperrors.NewInvalidImageError(err)
	}
	if gray.Empty() {
		gray.Close()
		return nil, apperrors.NewInvalidImageError(nil)
	}
	defer gray.Close()

	working := gray
	if w, h, resize := capWidth(gray.Cols(), gray.Rows(), p.maxWidth); resize {
		resized := gocv.NewMat()
		gocv.Resize(gray, &resized, image.Pt(w, h), 0, 0, gocv.InterpolationArea)
		defer resized.Close()
		working = resized
	}

	denoised := gocv.NewMat()
	defer denoised.Close()
	gocv.BilateralFilter(working, &denoised, bilateralDiameter, bilateralSigmaColor, bilateralSigmaSpace)

	deskewed := p.deskew(denoised)
	defer deskewed.Close()

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.AdaptiveThreshold(deskewed, &binary, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinary, thresholdBlockSize, thresholdConstant)

	buf, err := gocv.IMEncode(gocv.PNGFileExt, binary)
	if err != nil {
		return nil, apperrors.NewInvalidImageError(err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

// deskew estimates the dominant text angle from Hough lines and rotates
// the image to level it. Returns a clone of src when no usable lines are
// found or the estimated angle exceeds the allowed range.
func (p *Preprocessor) deskew(src gocv.Mat) gocv.Mat {
	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(src, &edges, cannyLow, cannyHigh)

	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLines(edges, &lines, 1, math.Pi/180, houghThreshold)

	angles := make([]float64, 0, lines.Rows())
	for i := 0; i < lines.Rows(); i++ {
		v := lines.GetVecfAt(i, 0)
		theta := float64(v[1])
		angle := theta*180/math.Pi - 90
		if math.Abs(angle) <= p.maxSkew {
			angles = append(angles, angle)
		}
	}

	if len(angles) == 0 {
		return src.Clone()
	}

	angle := medianAngle(angles)
	if math.Abs(angle) < 0.1 {
		return src.Clone()
	}

	p.log.Debug("Deskewing image", "angle", angle, "lines", len(angles))

	center := image.Pt(src.Cols()/2, src.Rows()/2)
	rotation := gocv.GetRotationMatrix2D(center, angle, 1.0)
	defer rotation.Close()

	rotated := gocv.NewMat()
	gocv.WarpAffineWithParams(src, &rotated, rotation, image.Pt(src.Cols(), src.Rows()),
		gocv.InterpolationCubic, gocv.BorderReplicate, color.RGBA{})
	return rotated
}

// capWidth returns the target dimensions when width exceeds max,
// preserving aspect ratio.
func capWidth(width, height, max int) (int, int, bool) {
	if max <= 0 || width <= max {
		return width, height, false
	}
	scale := float64(max) / float64(width)
	return max, int(math.Round(float64(height) * scale)), true
}

// medianAngle returns the median of the sampled line angles. The median
// resists outlier lines from receipt borders and logos better than the
// mean.
func medianAngle(angles []float64) float64 {
	sorted := make([]float64, len(angles))
	copy(sorted, angles)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
