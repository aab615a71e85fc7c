// Package embed provides the external embedding collaborator: it turns
// track text (title and artist) into dense vectors in the system's shared
// vector space.
//
// The embedding method itself is opaque to the rest of the agent: the
// discovery engine only requires that embeddings share the taste-vector
// dimensionality. The [OpenAI] implementation talks to the OpenAI
// embeddings API (or any OpenAI-compatible provider via WithBaseURL) and
// requests vectors truncated to that dimensionality.
package embed

import (
	"context"
	"errors"
	"net/http"

	"github.com/vexolabs/vexo/pkg/vec"
)

// Embedder converts text into dense float32 vectors.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embedding vectors for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the output vectors.
	Dimension() int
}

// ErrEmptyInput is returned when the input text is empty.
var ErrEmptyInput = errors.New("embed: empty input")

// config holds shared configuration for embedder implementations.
type config struct {
	model      string
	dim        int
	baseURL    string
	httpClient *http.Client
}

func defaultConfig() config {
	return config{
		model:      defaultModel,
		dim:        vec.Dim,
		httpClient: http.DefaultClient,
	}
}

// Option configures an embedder.
type Option func(*config)

// WithModel sets the embedding model name.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithDimension overrides the output vector dimensionality. The default
// is [vec.Dim] so embeddings drop straight into the discovery engine.
func WithDimension(dim int) Option {
	return func(c *config) { c.dim = dim }
}

// WithBaseURL overrides the API base URL, for OpenAI-compatible
// providers.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}
