package faceembed

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultDeepFaceURL = "http://localhost:5005"

// DeepFaceClient talks to a DeepFace compatible REST server.
type DeepFaceClient struct {
	baseURL string
	client  *http.Client
}

// NewDeepFaceClient creates a new client. Deadlines come from the request context.
func NewDeepFaceClient(baseURL string) *DeepFaceClient {
	if baseURL == "" {
		baseURL = defaultDeepFaceURL
	}
	return &DeepFaceClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
	}
}

type representRequest struct {
	Img              string `json:"img"`
	ModelName        string `json:"model_name"`
	DetectorBackend  string `json:"detector_backend"`
	EnforceDetection bool   `json:"enforce_detection"`
	Align            bool   `json:"align"`
}

type representResult struct {
	Embedding      []float32  `json:"embedding"`
	FacialArea     FacialArea `json:"facial_area"`
	FaceConfidence float64    `json:"face_confidence"`
}

type representResponse struct {
	Results []representResult `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Represent posts the image to /represent.
func (c *DeepFaceClient) Represent(ctx context.Context, r RepresentRequest) ([]Face, error) {
	reqBody, err := json.Marshal(representRequest{
		Img:              "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(r.Image),
		ModelName:        r.Model,
		DetectorBackend:  r.Detector,
		EnforceDetection: r.EnforceDetection,
		Align:            r.Align,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/represent", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		var errResp errorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		if isNoFaceMessage(msg) {
			return nil, fmt.Errorf("%w: %s", ErrNoFaceDetected, msg)
		}
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, msg)
	}

	var repResp representResponse
	if err := json.Unmarshal(body, &repResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	faces := make([]Face, 0, len(repResp.Results))
	for _, res := range repResp.Results {
		faces = append(faces, Face{
			Embedding:  res.Embedding,
			Area:       res.FacialArea,
			Confidence: res.FaceConfidence,
		})
	}
	if len(faces) == 0 && r.EnforceDetection {
		return nil, ErrNoFaceDetected
	}
	return faces, nil
}

// isNoFaceMessage recognizes the backend's face-count failure text.
func isNoFaceMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "face could not be detected") || strings.Contains(lower, "enforce_detection")
}
