package azure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// Defaults for chat completion requests.
const (
	DefaultAPIVersion       = "2023-03-15-preview"
	defaultTemperature      = 0.3
	defaultMaxTokens        = 1000
	defaultTopP             = 0.9
	defaultEmbeddingModel   = "text-embedding-ada-002"
	defaultEmbeddingDimSize = 1536
)

// Sentinel errors for OpenAI configuration.
var (
	ErrNoOpenAIKey      = errors.New("azure: no OpenAI API key configured")
	ErrNoOpenAIEndpoint = errors.New("azure: no OpenAI endpoint configured")
)

// OpenAI is a client for an Azure OpenAI resource.
type OpenAI struct {
	client *openai.Client
}

// OpenAIOption configures the OpenAI client.
type OpenAIOption func(*openai.ClientConfig)

// WithAPIVersion overrides the Azure OpenAI API version.
func WithAPIVersion(version string) OpenAIOption {
	return func(cfg *openai.ClientConfig) { cfg.APIVersion = version }
}

// NewOpenAI creates a client for the Azure OpenAI resource at endpoint,
// e.g. "https://ops-openai.openai.azure.com".
func NewOpenAI(apiKey, endpoint string, opts ...OpenAIOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, ErrNoOpenAIKey
	}
	if endpoint == "" {
		return nil, ErrNoOpenAIEndpoint
	}

	cfg := openai.DefaultAzureConfig(apiKey, endpoint)
	cfg.APIVersion = DefaultAPIVersion
	for _, opt := range opts {
		opt(&cfg)
	}

	return &OpenAI{client: openai.NewClientWithConfig(cfg)}, nil
}

// ChatOptions tunes a chat completion request. Nil Temperature and TopP
// fall back to the defaults (0.3 and 0.9); MaxTokens 0 falls back to 1000.
type ChatOptions struct {
	Temperature      *float32
	MaxTokens        int
	TopP             *float32
	FrequencyPenalty float32
	PresencePenalty  float32
}

// sampling resolves an optional sampling parameter. go-openai omits zero
// floats from the request payload, so an explicit 0 is sent as the smallest
// non-zero float32 instead.
func sampling(v *float32, fallback float32) float32 {
	if v == nil {
		return fallback
	}
	if *v == 0 {
		return math.SmallestNonzeroFloat32
	}
	return *v
}

func chatRequest(model, systemContent, userContent string, opts *ChatOptions) openai.ChatCompletionRequest {
	if opts == nil {
		opts = &ChatOptions{}
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	return openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemContent},
			{Role: openai.ChatMessageRoleUser, Content: userContent},
		},
		Temperature:      sampling(opts.Temperature, defaultTemperature),
		MaxTokens:        maxTokens,
		TopP:             sampling(opts.TopP, defaultTopP),
		FrequencyPenalty: opts.FrequencyPenalty,
		PresencePenalty:  opts.PresencePenalty,
	}
}

// ChatCompletion sends a system/user prompt pair to a deployed model and
// returns the first choice's content.
func (o *OpenAI) ChatCompletion(ctx context.Context, model, systemContent, userContent string, opts *ChatOptions) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, chatRequest(model, systemContent, userContent, opts))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("azure: chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// StructuredChatCompletion sends a system/user prompt pair and constrains
// the model output to a JSON schema generated from result, then unmarshals
// the first choice into it. result must be a pointer to a struct.
func (o *OpenAI) StructuredChatCompletion(ctx context.Context, model, systemContent, userContent string, result any, opts *ChatOptions) error {
	schema, err := jsonschema.GenerateSchemaForType(result)
	if err != nil {
		return fmt.Errorf("generating response schema: %w", err)
	}

	req := chatRequest(model, systemContent, userContent, opts)
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   schemaName(result),
			Schema: schema,
			Strict: true,
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return fmt.Errorf("structured chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return errors.New("azure: chat completion returned no choices")
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), result); err != nil {
		return fmt.Errorf("parsing structured response: %w", err)
	}
	return nil
}

// schemaName derives the response format name from the result type.
func schemaName(result any) string {
	t := reflect.TypeOf(result)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "response"
	}
	return t.Name()
}

// Embedding is one embedding vector with its position in the input batch.
type Embedding struct {
	Index  int
	Vector []float32
}

// CreateEmbeddings vectorizes the inputs. Empty model and zero dimensions
// fall back to text-embedding-ada-002 with 1536 dimensions. It returns the
// embeddings and the total tokens consumed.
func (o *OpenAI) CreateEmbeddings(ctx context.Context, inputs []string, model string, dimensions int) ([]Embedding, int, error) {
	if model == "" {
		model = defaultEmbeddingModel
	}
	if dimensions == 0 {
		dimensions = defaultEmbeddingDimSize
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      inputs,
		Model:      openai.EmbeddingModel(model),
		Dimensions: dimensions,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("creating embeddings: %w", err)
	}

	embeddings := make([]Embedding, 0, len(resp.Data))
	for _, item := range resp.Data {
		embeddings = append(embeddings, Embedding{
			Index:  item.Index,
			Vector: item.Embedding,
		})
	}
	return embeddings, resp.Usage.TotalTokens, nil
}
