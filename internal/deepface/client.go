// Package deepface provides an HTTP client for a DeepFace-compatible
// analysis service, implementing the harvest.Analyzer interface.
package deepface

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/wow-harvester/internal/harvest"
)

// Config controls the analysis client. CPUOnly is explicit constructor
// configuration rather than ambient process state: it is forwarded with
// every request so the service pins that work to CPU, and concurrent
// pipeline instances never race on a shared global toggle.
type Config struct {
	BaseURL string
	Timeout time.Duration
	CPUOnly bool
}

// Client calls the analysis service over HTTP.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient validates the configuration and builds a Client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid analyzer base url %q: %w", cfg.BaseURL, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

type analyzeRequest struct {
	Image   string   `json:"img"`
	Actions []string `json:"actions"`
	CPUOnly bool     `json:"cpu_only,omitempty"`
}

// faceResult mirrors the service's per-face response object.
type faceResult struct {
	Age             int                `json:"age"`
	DominantGender  string             `json:"dominant_gender"`
	Gender          map[string]float64 `json:"gender"`
	DominantRace    string             `json:"dominant_race"`
	Race            map[string]float64 `json:"race"`
	DominantEmotion string             `json:"dominant_emotion"`
	Emotion         map[string]float64 `json:"emotion"`
	FaceConfidence  float64            `json:"face_confidence"`
}

// Analyze reads the image, posts it to the service, and normalizes the
// polymorphic response (one face object or a collection) into a face slice
// right at the boundary, before any caller logic sees it.
func (c *Client) Analyze(ctx context.Context, imagePath string, actions []harvest.Action) ([]harvest.Face, error) {
	payload, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", imagePath, err)
	}

	names := make([]string, len(actions))
	for i, action := range actions {
		names[i] = string(action)
	}
	body, err := json.Marshal(analyzeRequest{
		Image:   base64.StdEncoding.EncodeToString(payload),
		Actions: names,
		CPUOnly: c.cfg.CPUOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("encode analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call analyzer: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read analyzer response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analyzer returned status %d: %s", resp.StatusCode, truncate(raw, 200))
	}

	faces, err := decodeFaces(raw)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("analysis complete",
		zap.String("image", imagePath),
		zap.Int("faces", len(faces)),
	)
	return faces, nil
}

// decodeFaces accepts `{"results": [...]}`, a bare array, or a bare single
// object, and returns the normalized shape.
func decodeFaces(raw []byte) ([]harvest.Face, error) {
	var envelope struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Results) > 0 {
		raw = envelope.Results
	}

	var many []faceResult
	if err := json.Unmarshal(raw, &many); err == nil {
		return convertFaces(many), nil
	}
	var one faceResult
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, fmt.Errorf("decode analyzer result: %w", err)
	}
	return convertFaces([]faceResult{one}), nil
}

func convertFaces(results []faceResult) []harvest.Face {
	faces := make([]harvest.Face, len(results))
	for i, r := range results {
		faces[i] = harvest.Face{
			Age:             r.Age,
			DominantGender:  r.DominantGender,
			GenderScores:    r.Gender,
			DominantRace:    r.DominantRace,
			RaceScores:      r.Race,
			DominantEmotion: r.DominantEmotion,
			EmotionScores:   r.Emotion,
			FaceConfidence:  r.FaceConfidence,
		}
	}
	return faces
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
