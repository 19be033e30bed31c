// Package vision turns one video frame into a structured consultation
// annotation: facial expression, skin-texture heuristic and posture,
// each gated by fixed thresholds over landmark-model output.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	mouthOpenThreshold     = 0.03
	smileWidthThreshold    = 0.25
	mouthClosedThreshold   = 0.02
	squintThreshold        = 0.015
	tiredEyesThreshold     = 0.02
	lowBrowThreshold       = 0.35
	headTiltThreshold      = 0.1
	shoulderSlopeThreshold = 0.05
	leanForwardThreshold   = 0.2

	lowBrightnessThreshold = 80
	highContrastThreshold  = 60
	edgeDensityThreshold   = 0.15
	// Gradient magnitude above which a pixel counts as an edge.
	edgeGradientThreshold = 100

	// Frames wider than this are sampled down before pixel statistics.
	maxAnalysisWidth = 640
)

type ExpressionMetrics struct {
	EyeOpenness   float64 `json:"eye_openness"`
	MouthOpenness float64 `json:"mouth_openness"`
	MouthWidth    float64 `json:"mouth_width"`
}

type FacialExpression struct {
	Expression string            `json:"expression"`
	Indicators []string          `json:"indicators"`
	Metrics    ExpressionMetrics `json:"metrics"`
}

type SkinCondition struct {
	Brightness  float64  `json:"brightness"`
	Contrast    float64  `json:"contrast"`
	EdgeDensity float64  `json:"edge_density"`
	Indicators  []string `json:"indicators"`
}

type PostureMetrics struct {
	HeadTilt      float64 `json:"head_tilt"`
	ShoulderSlope float64 `json:"shoulder_slope"`
}

type Posture struct {
	Status     string         `json:"status"`
	Indicators []string       `json:"indicators"`
	Metrics    PostureMetrics `json:"metrics"`
}

// Analysis is one annotation as broadcast to the room and stored on
// the session. Sub-analyses are nil when their detector found nothing.
type Analysis struct {
	FacialExpression  *FacialExpression `json:"facial_expression"`
	SkinCondition     *SkinCondition    `json:"skin_condition"`
	Posture           *Posture          `json:"posture"`
	OverallIndicators []string          `json:"overall_indicators"`
}

// Analyzer wraps the external landmark models. Either detector may be
// nil; the corresponding sub-analysis is then skipped and only the
// pixel-based skin heuristic runs.
type Analyzer struct {
	face FaceMesh
	pose PoseDetector
}

func NewAnalyzer(face FaceMesh, pose PoseDetector) *Analyzer {
	return &Analyzer{face: face, pose: pose}
}

// AnalyzeFrame decodes a base64 image (data-URL prefix allowed) and
// runs all sub-analyses. It returns nil on decode failure and never
// propagates detector errors; failures are logged and the affected
// sub-analysis is omitted.
func (a *Analyzer) AnalyzeFrame(ctx context.Context, frame string) *Analysis {
	img := decodeFrame(frame)
	if img == nil {
		return nil
	}

	res := &Analysis{OverallIndicators: []string{}}

	if a.face != nil {
		geo, err := a.face.DetectFace(ctx, img)
		if err != nil {
			log.Warn().Err(err).Str("module", "vision").Msg("face detection failed")
		} else if geo != nil {
			res.FacialExpression = classifyExpression(geo)
		}
	}

	res.SkinCondition = analyzeSkin(img)

	if a.pose != nil {
		geo, err := a.pose.DetectPose(ctx, img)
		if err != nil {
			log.Warn().Err(err).Str("module", "vision").Msg("pose detection failed")
		} else if geo != nil {
			res.Posture = classifyPosture(geo)
		}
	}

	if res.FacialExpression != nil && strings.Contains(res.FacialExpression.Expression, "Pain") {
		res.OverallIndicators = append(res.OverallIndicators, "pain_detected")
	}
	if res.SkinCondition != nil && len(res.SkinCondition.Indicators) > 1 {
		res.OverallIndicators = append(res.OverallIndicators, "skin_variations_detected")
	}
	if res.Posture != nil && len(res.Posture.Indicators) > 0 {
		res.OverallIndicators = append(res.OverallIndicators, "posture_issue_detected")
	}

	return res
}

func decodeFrame(frame string) image.Image {
	// Browsers send canvas captures as data URLs.
	if i := strings.IndexByte(frame, ','); i >= 0 {
		frame = frame[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(frame)
	if err != nil {
		log.Warn().Err(err).Str("module", "vision").Msg("bad base64 frame")
		return nil
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		log.Warn().Err(err).Str("module", "vision").Msg("undecodable frame")
		return nil
	}
	return img
}

func classifyExpression(g *FaceGeometry) *FacialExpression {
	leftEye := math.Abs(g.LeftEyeTop.Y - g.LeftEyeBottom.Y)
	rightEye := math.Abs(g.RightEyeTop.Y - g.RightEyeBottom.Y)
	eyeOpenness := (leftEye + rightEye) / 2

	mouthOpenness := math.Abs(g.MouthTop.Y - g.MouthBottom.Y)
	mouthWidth := math.Abs(g.MouthRight.X - g.MouthLeft.X)
	browHeight := (g.LeftBrow.Y + g.RightBrow.Y) / 2

	expression := "Neutral"
	indicators := []string{}

	if mouthOpenness > mouthOpenThreshold {
		expression = "Mouth Open (Possible Distress/Pain)"
		indicators = append(indicators, "mouth_open")
	} else if mouthWidth > smileWidthThreshold && mouthOpenness < mouthClosedThreshold {
		expression = "Smiling"
		indicators = append(indicators, "smile")
	}

	if eyeOpenness < squintThreshold {
		expression = "Eyes Squinting (Possible Pain)"
		indicators = append(indicators, "squinting")
	} else if eyeOpenness < tiredEyesThreshold {
		indicators = append(indicators, "tired_eyes")
	}

	if browHeight < lowBrowThreshold {
		indicators = append(indicators, "frowning")
		if !strings.Contains(expression, "Pain") {
			expression = "Concerned/Worried"
		}
	}

	return &FacialExpression{
		Expression: expression,
		Indicators: indicators,
		Metrics: ExpressionMetrics{
			EyeOpenness:   round4(eyeOpenness),
			MouthOpenness: round4(mouthOpenness),
			MouthWidth:    round4(mouthWidth),
		},
	}
}

// analyzeSkin computes grayscale brightness, contrast and gradient edge
// density over the frame, sampling wide frames down to bound the cost.
func analyzeSkin(img image.Image) *SkinCondition {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}
	stride := 1
	if w > maxAnalysisWidth {
		stride = (w + maxAnalysisWidth - 1) / maxAnalysisWidth
	}

	cols := (w + stride - 1) / stride
	rows := (h + stride - 1) / stride
	lum := make([]float64, 0, cols*rows)
	for y := b.Min.Y; y < b.Max.Y; y += stride {
		for x := b.Min.X; x < b.Max.X; x += stride {
			r, g, bl, _ := img.At(x, y).RGBA()
			lum = append(lum, 0.299*float64(r>>8)+0.587*float64(g>>8)+0.114*float64(bl>>8))
		}
	}

	var sum float64
	for _, v := range lum {
		sum += v
	}
	mean := sum / float64(len(lum))

	var varSum float64
	for _, v := range lum {
		d := v - mean
		varSum += d * d
	}
	std := math.Sqrt(varSum / float64(len(lum)))

	edges := 0
	total := 0
	for y := 1; y < rows-1; y++ {
		for x := 1; x < cols-1; x++ {
			gx := lum[y*cols+x+1] - lum[y*cols+x-1]
			gy := lum[(y+1)*cols+x] - lum[(y-1)*cols+x]
			if math.Abs(gx)+math.Abs(gy) > edgeGradientThreshold {
				edges++
			}
			total++
		}
	}
	density := 0.0
	if total > 0 {
		density = float64(edges) / float64(total)
	}

	indicators := []string{}
	if mean < lowBrightnessThreshold {
		indicators = append(indicators, "low_brightness")
	}
	if std > highContrastThreshold {
		indicators = append(indicators, "high_contrast_variations")
	}
	if density > edgeDensityThreshold {
		indicators = append(indicators, "texture_irregularities")
	}

	return &SkinCondition{
		Brightness:  round2(mean),
		Contrast:    round2(std),
		EdgeDensity: round4(density),
		Indicators:  indicators,
	}
}

func classifyPosture(g *PoseGeometry) *Posture {
	centerX := (g.LeftShoulder.X + g.RightShoulder.X) / 2
	centerY := (g.LeftShoulder.Y + g.RightShoulder.Y) / 2

	headTilt := math.Abs(g.Nose.X - centerX)
	shoulderSlope := math.Abs(g.LeftShoulder.Y - g.RightShoulder.Y)

	status := "Good Posture"
	indicators := []string{}

	if headTilt > headTiltThreshold {
		status = "Head Tilted"
		indicators = append(indicators, "head_tilt")
	}
	if shoulderSlope > shoulderSlopeThreshold {
		status = "Shoulders Uneven"
		indicators = append(indicators, "shoulder_imbalance")
	}
	if g.Nose.Y < centerY-leanForwardThreshold {
		indicators = append(indicators, "leaning_forward")
	}

	return &Posture{
		Status:     status,
		Indicators: indicators,
		Metrics: PostureMetrics{
			HeadTilt:      round4(headTilt),
			ShoulderSlope: round4(shoulderSlope),
		},
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
