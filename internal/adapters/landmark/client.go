// Package landmark is an HTTP client for a remote face/pose landmark
// service. It satisfies both vision detector interfaces; the server
// side is the external model, this side only ferries geometry.
package landmark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"time"

	"github.com/telecare/consult/internal/analysis/vision"
)

type Client struct {
	addr string
	http *http.Client
}

func NewClient(addr string, timeout time.Duration) *Client {
	return &Client{
		addr: addr,
		http: &http.Client{Timeout: timeout},
	}
}

type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p point) toVision() vision.Point { return vision.Point{X: p.X, Y: p.Y} }

func (c *Client) post(ctx context.Context, path string, img image.Image, out any) (bool, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.addr+path, &buf)
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("landmark: unexpected status %d", resp.StatusCode)
	}

	var envelope struct {
		Detected bool            `json:"detected"`
		Result   json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return false, fmt.Errorf("landmark: bad response: %w", err)
	}
	if !envelope.Detected {
		return false, nil
	}
	return true, json.Unmarshal(envelope.Result, out)
}

func (c *Client) DetectFace(ctx context.Context, img image.Image) (*vision.FaceGeometry, error) {
	var r struct {
		LeftEyeTop     point `json:"left_eye_top"`
		LeftEyeBottom  point `json:"left_eye_bottom"`
		RightEyeTop    point `json:"right_eye_top"`
		RightEyeBottom point `json:"right_eye_bottom"`
		MouthTop       point `json:"mouth_top"`
		MouthBottom    point `json:"mouth_bottom"`
		MouthLeft      point `json:"mouth_left"`
		MouthRight     point `json:"mouth_right"`
		LeftBrow       point `json:"left_brow"`
		RightBrow      point `json:"right_brow"`
	}
	ok, err := c.post(ctx, "/face", img, &r)
	if err != nil || !ok {
		return nil, err
	}
	return &vision.FaceGeometry{
		LeftEyeTop:     r.LeftEyeTop.toVision(),
		LeftEyeBottom:  r.LeftEyeBottom.toVision(),
		RightEyeTop:    r.RightEyeTop.toVision(),
		RightEyeBottom: r.RightEyeBottom.toVision(),
		MouthTop:       r.MouthTop.toVision(),
		MouthBottom:    r.MouthBottom.toVision(),
		MouthLeft:      r.MouthLeft.toVision(),
		MouthRight:     r.MouthRight.toVision(),
		LeftBrow:       r.LeftBrow.toVision(),
		RightBrow:      r.RightBrow.toVision(),
	}, nil
}

func (c *Client) DetectPose(ctx context.Context, img image.Image) (*vision.PoseGeometry, error) {
	var r struct {
		Nose          point `json:"nose"`
		LeftShoulder  point `json:"left_shoulder"`
		RightShoulder point `json:"right_shoulder"`
	}
	ok, err := c.post(ctx, "/pose", img, &r)
	if err != nil || !ok {
		return nil, err
	}
	return &vision.PoseGeometry{
		Nose:          r.Nose.toVision(),
		LeftShoulder:  r.LeftShoulder.toVision(),
		RightShoulder: r.RightShoulder.toVision(),
	}, nil
}
