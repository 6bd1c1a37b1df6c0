package service

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/topicsloop/topicsloop/internal/domain"
)

// Encoder turns text into embedding vectors. Implementations must return
// vectors of a fixed dimension and preserve input order in batch calls.
type Encoder interface {
	// Encode generates an embedding for a single text.
	Encode(ctx context.Context, text string) (domain.Vector, error)
	// EncodeBatch generates embeddings for multiple texts in one call.
	EncodeBatch(ctx context.Context, texts []string) ([]domain.Vector, error)
	// ModelName identifies the model producing the vectors.
	ModelName() string
	// Dimensions is the fixed vector size.
	Dimensions() int
}

// RemoteEncoder calls an OpenAI-compatible embeddings endpoint.
type RemoteEncoder struct {
	client     *resty.Client
	endpoint   string
	model      string
	dimensions int
}

// RemoteEncoderConfig holds configuration for the remote encoder
type RemoteEncoderConfig struct {
	BaseURL    string
	Model      string
	APIKey     string
	Dimensions int
}

// NewRemoteEncoder creates a new remote encoder
func NewRemoteEncoder(cfg *RemoteEncoderConfig) *RemoteEncoder {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")

	return &RemoteEncoder{
		client:     client,
		endpoint:   cfg.BaseURL + "/embeddings",
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// ModelName returns the model name being used
func (e *RemoteEncoder) ModelName() string {
	return e.model
}

// Dimensions returns the configured vector size
func (e *RemoteEncoder) Dimensions() int {
	return e.dimensions
}

// OpenAI-compatible API request/response structures
type embeddingsRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Encode generates an embedding for a single text
func (e *RemoteEncoder) Encode(ctx context.Context, text string) (domain.Vector, error) {
	embeddings, err := e.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}

// EncodeBatch generates embeddings for multiple texts
func (e *RemoteEncoder) EncodeBatch(ctx context.Context, texts []string) ([]domain.Vector, error) {
	if len(texts) == 0 {
		return []domain.Vector{}, nil
	}

	req := embeddingsRequest{
		Model:      e.model,
		Input:      texts,
		Dimensions: e.dimensions,
	}

	var resp embeddingsResponse
	httpResp, err := e.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(e.endpoint)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}

	if httpResp.StatusCode() != 200 {
		if resp.Error != nil && resp.Error.Message != "" {
			return nil, fmt.Errorf("embedding API error: %s", resp.Error.Message)
		}
		return nil, fmt.Errorf("embedding API error: status %d", httpResp.StatusCode())
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("unexpected number of embeddings: got %d, expected %d", len(resp.Data), len(texts))
	}

	// Sort by index to ensure correct order
	embeddings := make([]domain.Vector, len(texts))
	for _, item := range resp.Data {
		if item.Index < len(embeddings) {
			embeddings[item.Index] = domain.Vector(item.Embedding)
		}
	}

	return embeddings, nil
}
