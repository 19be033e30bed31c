package vision

import (
	"context"
	"image"
)

// Point is a landmark position normalized to [0,1] image coordinates.
type Point struct {
	X float64
	Y float64
}

// FaceGeometry is the subset of face-mesh landmarks the analyzer reads.
type FaceGeometry struct {
	LeftEyeTop     Point
	LeftEyeBottom  Point
	RightEyeTop    Point
	RightEyeBottom Point
	MouthTop       Point
	MouthBottom    Point
	MouthLeft      Point
	MouthRight     Point
	LeftBrow       Point
	RightBrow      Point
}

// PoseGeometry is the subset of pose landmarks the analyzer reads.
type PoseGeometry struct {
	Nose          Point
	LeftShoulder  Point
	RightShoulder Point
}

// FaceMesh is the external face-landmark model. A nil geometry with a
// nil error means no face was detected.
type FaceMesh interface {
	DetectFace(ctx context.Context, img image.Image) (*FaceGeometry, error)
}

// PoseDetector is the external pose-landmark model. A nil geometry
// with a nil error means no pose was detected.
type PoseDetector interface {
	DetectPose(ctx context.Context, img image.Image) (*PoseGeometry, error)
}
