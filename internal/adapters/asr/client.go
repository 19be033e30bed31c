// Package asr is an HTTP client for a remote speech-to-text service
// (a faster-whisper server or compatible). It satisfies speech.Engine.
package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
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

// Transcribe posts the decoded audio bytes and returns the recognized
// text. The service answers {"text": "..."}.
func (c *Client) Transcribe(ctx context.Context, audio []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.addr+"/transcribe", bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("asr: unexpected status %d: %s", resp.StatusCode, body)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("asr: bad response: %w", err)
	}
	return out.Text, nil
}
