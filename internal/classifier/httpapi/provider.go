// Package httpapi adapts an HTTP inference server (TorchServe-style) to the
// models.Classifier interface.
package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/pulmoscan/pulmoscan/internal/config"
	"github.com/pulmoscan/pulmoscan/pkg/models"
)

// Sentinel errors for inference engine failures.
var (
	ErrEngineUnavailable = errors.New("inference engine unavailable")
	ErrInferenceTimeout  = errors.New("inference timeout")
	ErrInvalidResponse   = errors.New("inference engine returned invalid response")
)

// Client implements models.Classifier against the engine's HTTP API.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewClient creates a new inference HTTP client.
func NewClient(cfg config.HTTPClassifierConfig, timeout time.Duration) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return "http" }

type classifyRequest struct {
	Images []string `json:"images"` // base64-encoded payloads
}

type classifyResult struct {
	Label           string              `json:"label"`
	Confidence      float64             `json:"confidence"`
	TopClasses      []models.ClassScore `json:"top_classes"`
	InferenceTimeMS float64             `json:"inference_time_ms"`
}

type classifyResponse struct {
	Results []classifyResult `json:"results"`
}

func (c *Client) ClassifyOne(ctx context.Context, image []byte) (models.Classification, error) {
	results, err := c.ClassifyMany(ctx, [][]byte{image})
	if err != nil {
		return models.Classification{}, err
	}
	return results[0], nil
}

func (c *Client) ClassifyMany(ctx context.Context, images [][]byte) ([]models.Classification, error) {
	if len(images) == 0 {
		return []models.Classification{}, nil
	}

	encoded := make([]string, len(images))
	for i, img := range images {
		encoded[i] = base64.StdEncoding.EncodeToString(img)
	}

	body, err := json.Marshal(classifyRequest{Images: encoded})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	u := fmt.Sprintf("%s/v1/models/%s/classify", c.baseURL, url.PathEscape(c.model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrEngineUnavailable, resp.StatusCode)
	}

	var engineResp classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&engineResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	// Results must align positionally with the input batch.
	if len(engineResp.Results) != len(images) {
		return nil, fmt.Errorf("%w: got %d results for %d images",
			ErrInvalidResponse, len(engineResp.Results), len(images))
	}

	out := make([]models.Classification, len(engineResp.Results))
	for i, r := range engineResp.Results {
		out[i] = models.Classification{
			Label:           r.Label,
			Confidence:      clampConfidence(r.Confidence),
			TopClasses:      r.TopClasses,
			InferenceTimeMS: r.InferenceTimeMS,
		}
	}
	return out, nil
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}

// classifyError maps transport errors onto the package sentinels.
func classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
}

var _ models.Classifier = (*Client)(nil)
