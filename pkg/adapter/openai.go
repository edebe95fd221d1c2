package adapter

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sashabaranov/go-openai"
)

// OpenAI is the subset of the OpenAI API used for embeddings and answer generation
type OpenAI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	Embedding(ctx context.Context, texts []string, dimensions int) ([][]float32, error)
	Model() string
}

type OpenAIClient struct {
	client         *openai.Client
	model          string
	embeddingModel openai.EmbeddingModel
}

type OpenAIOption func(*OpenAIClient)

func WithOpenAIModel(model string) OpenAIOption {
	return func(c *OpenAIClient) {
		c.model = model
	}
}

func WithOpenAIEmbeddingModel(model string) OpenAIOption {
	return func(c *OpenAIClient) {
		c.embeddingModel = openai.EmbeddingModel(model)
	}
}

// NewOpenAI creates an OpenAI client. baseURL may point to any OpenAI compatible endpoint.
func NewOpenAI(apiKey, baseURL string, opts ...OpenAIOption) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	c := &OpenAIClient{
		client:         openai.NewClientWithConfig(config),
		model:          openai.GPT4oMini,
		embeddingModel: openai.SmallEmbedding3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *OpenAIClient) Model() string {
	return c.model
}

func (c *OpenAIClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return resp, goerr.Wrap(err, "failed to create chat completion", goerr.V("model", req.Model))
	}
	return resp, nil
}

// Embedding embeds all texts in one request. Vectors are returned in input order.
func (c *OpenAIClient) Embedding(ctx context.Context, texts []string, dimensions int) ([][]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      c.embeddingModel,
		Dimensions: dimensions,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embeddings", goerr.V("model", c.embeddingModel))
	}

	if len(resp.Data) != len(texts) {
		return nil, goerr.New("embedding count mismatch",
			goerr.V("expected", len(texts)),
			goerr.V("actual", len(resp.Data)))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, goerr.New("embedding index out of range", goerr.V("index", d.Index))
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, goerr.New("empty embedding", goerr.V("index", i))
		}
	}

	return vectors, nil
}
