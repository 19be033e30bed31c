package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

var errTest = errors.New("detector down")

type fakeFaceMesh struct {
	geo *FaceGeometry
	err error
}

func (f *fakeFaceMesh) DetectFace(_ context.Context, _ image.Image) (*FaceGeometry, error) {
	return f.geo, f.err
}

type fakePose struct {
	geo *PoseGeometry
	err error
}

func (f *fakePose) DetectPose(_ context.Context, _ image.Image) (*PoseGeometry, error) {
	return f.geo, f.err
}

func encodeFrame(t *testing.T, img image.Image, dataURL bool) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	s := base64.StdEncoding.EncodeToString(buf.Bytes())
	if dataURL {
		return "data:image/png;base64," + s
	}
	return s
}

func uniformImage(c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// neutralFace sits inside every threshold.
func neutralFace() *FaceGeometry {
	return &FaceGeometry{
		LeftEyeTop: Point{Y: 0.40}, LeftEyeBottom: Point{Y: 0.425},
		RightEyeTop: Point{Y: 0.40}, RightEyeBottom: Point{Y: 0.425},
		MouthTop: Point{Y: 0.60}, MouthBottom: Point{Y: 0.61},
		MouthLeft: Point{X: 0.45}, MouthRight: Point{X: 0.55},
		LeftBrow: Point{Y: 0.38}, RightBrow: Point{Y: 0.38},
	}
}

func TestAnalyzeFrameRejectsBadInput(t *testing.T) {
	a := NewAnalyzer(nil, nil)
	if res := a.AnalyzeFrame(context.Background(), "!!not-base64!!"); res != nil {
		t.Fatalf("bad base64 must yield nil, got %+v", res)
	}
	garbage := base64.StdEncoding.EncodeToString([]byte("not an image"))
	if res := a.AnalyzeFrame(context.Background(), garbage); res != nil {
		t.Fatalf("undecodable image must yield nil, got %+v", res)
	}
}

func TestAnalyzeFrameAcceptsDataURL(t *testing.T) {
	a := NewAnalyzer(nil, nil)
	frame := encodeFrame(t, uniformImage(color.RGBA{R: 200, G: 200, B: 200, A: 255}), true)
	res := a.AnalyzeFrame(context.Background(), frame)
	if res == nil || res.SkinCondition == nil {
		t.Fatal("data-URL frame must decode and produce skin analysis")
	}
	if res.FacialExpression != nil || res.Posture != nil {
		t.Fatal("without detectors only skin analysis must be present")
	}
}

func TestSkinConditionDarkFrame(t *testing.T) {
	a := NewAnalyzer(nil, nil)
	frame := encodeFrame(t, uniformImage(color.RGBA{R: 20, G: 20, B: 20, A: 255}), false)
	res := a.AnalyzeFrame(context.Background(), frame)
	skin := res.SkinCondition
	if skin.Brightness >= 80 {
		t.Fatalf("brightness = %v, want < 80", skin.Brightness)
	}
	if len(skin.Indicators) != 1 || skin.Indicators[0] != "low_brightness" {
		t.Fatalf("indicators = %v, want [low_brightness]", skin.Indicators)
	}
	if skin.EdgeDensity != 0 {
		t.Fatalf("uniform image edge density = %v, want 0", skin.EdgeDensity)
	}
}

func TestExpressionSquintingOverridesMouth(t *testing.T) {
	geo := neutralFace()
	geo.MouthTop, geo.MouthBottom = Point{Y: 0.60}, Point{Y: 0.65}         // open mouth
	geo.LeftEyeBottom, geo.RightEyeBottom = Point{Y: 0.41}, Point{Y: 0.41} // squinting

	fe := classifyExpression(geo)
	if fe.Expression != "Eyes Squinting (Possible Pain)" {
		t.Fatalf("expression = %q", fe.Expression)
	}
	want := map[string]bool{"mouth_open": true, "squinting": true}
	for _, ind := range fe.Indicators {
		delete(want, ind)
	}
	if len(want) != 0 {
		t.Fatalf("missing indicators %v in %v", want, fe.Indicators)
	}
}

func TestExpressionSmiling(t *testing.T) {
	geo := neutralFace()
	geo.MouthLeft, geo.MouthRight = Point{X: 0.35}, Point{X: 0.65}

	fe := classifyExpression(geo)
	if fe.Expression != "Smiling" {
		t.Fatalf("expression = %q, want Smiling", fe.Expression)
	}
}

func TestExpressionFrowningDoesNotMaskPain(t *testing.T) {
	geo := neutralFace()
	geo.LeftEyeBottom, geo.RightEyeBottom = Point{Y: 0.41}, Point{Y: 0.41} // pain
	geo.LeftBrow, geo.RightBrow = Point{Y: 0.30}, Point{Y: 0.30}           // frowning

	fe := classifyExpression(geo)
	if fe.Expression != "Eyes Squinting (Possible Pain)" {
		t.Fatalf("pain expression lost to frowning: %q", fe.Expression)
	}

	// Without pain, frowning downgrades to concern.
	geo = neutralFace()
	geo.LeftBrow, geo.RightBrow = Point{Y: 0.30}, Point{Y: 0.30}
	fe = classifyExpression(geo)
	if fe.Expression != "Concerned/Worried" {
		t.Fatalf("expression = %q, want Concerned/Worried", fe.Expression)
	}
}

func TestPostureClassification(t *testing.T) {
	geo := &PoseGeometry{
		Nose:          Point{X: 0.5, Y: 0.4},
		LeftShoulder:  Point{X: 0.4, Y: 0.55},
		RightShoulder: Point{X: 0.6, Y: 0.55},
	}
	p := classifyPosture(geo)
	if p.Status != "Good Posture" || len(p.Indicators) != 0 {
		t.Fatalf("posture = %+v", p)
	}

	geo.Nose.X = 0.65 // tilt 0.15 > 0.1
	geo.LeftShoulder.Y = 0.62
	p = classifyPosture(geo)
	if p.Status != "Shoulders Uneven" {
		t.Fatalf("status = %q, want Shoulders Uneven", p.Status)
	}
	want := map[string]bool{"head_tilt": true, "shoulder_imbalance": true}
	for _, ind := range p.Indicators {
		delete(want, ind)
	}
	if len(want) != 0 {
		t.Fatalf("missing indicators %v in %v", want, p.Indicators)
	}
}

func TestOverallIndicators(t *testing.T) {
	squint := neutralFace()
	squint.LeftEyeBottom, squint.RightEyeBottom = Point{Y: 0.41}, Point{Y: 0.41}

	a := NewAnalyzer(
		&fakeFaceMesh{geo: squint},
		&fakePose{geo: &PoseGeometry{
			Nose:          Point{X: 0.8, Y: 0.3},
			LeftShoulder:  Point{X: 0.4, Y: 0.55},
			RightShoulder: Point{X: 0.6, Y: 0.55},
		}},
	)
	frame := encodeFrame(t, uniformImage(color.RGBA{R: 200, G: 200, B: 200, A: 255}), false)
	res := a.AnalyzeFrame(context.Background(), frame)

	want := map[string]bool{"pain_detected": true, "posture_issue_detected": true}
	for _, ind := range res.OverallIndicators {
		delete(want, ind)
	}
	if len(want) != 0 {
		t.Fatalf("missing overall indicators %v in %v", want, res.OverallIndicators)
	}
}

func TestDetectorFailureIsSwallowed(t *testing.T) {
	a := NewAnalyzer(&fakeFaceMesh{err: errTest}, &fakePose{err: errTest})
	frame := encodeFrame(t, uniformImage(color.RGBA{R: 200, G: 200, B: 200, A: 255}), false)
	res := a.AnalyzeFrame(context.Background(), frame)
	if res == nil {
		t.Fatal("detector failure must not kill the analysis")
	}
	if res.FacialExpression != nil || res.Posture != nil {
		t.Fatal("failed sub-analyses must be omitted")
	}
	if res.SkinCondition == nil {
		t.Fatal("skin analysis must survive detector failures")
	}
}
