package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rs/zerolog"
)

// OpenAIConfig configures an OpenAI-compatible chat endpoint.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	Temperature  float64
	Timeout      time.Duration
	StrictSchema bool
}

// OpenAIModel calls the chat completions API.
type OpenAIModel struct {
	client openai.Client
	cfg    OpenAIConfig
	log    zerolog.Logger
}

func newClient(apiKey, baseURL string, timeout time.Duration) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// timeouts and outages are surfaced, not retried
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	return openai.NewClient(opts...)
}

func NewOpenAIModel(cfg OpenAIConfig, log zerolog.Logger) *OpenAIModel {
	return &OpenAIModel{
		client: newClient(cfg.APIKey, cfg.BaseURL, cfg.Timeout),
		cfg:    cfg,
		log:    log.With().Str("component", "llm").Str("model", cfg.Model).Logger(),
	}
}

// Name identifies the model for cache keys.
func (m *OpenAIModel) Name() string {
	return m.cfg.Model
}

func (m *OpenAIModel) Complete(ctx context.Context, p Prompt) (string, error) {
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(p.Messages))
	for _, msg := range p.Messages {
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(m.cfg.Model),
		Messages:    messages,
		Temperature: openai.Float(m.cfg.Temperature),
	}
	if p.Schema != nil {
		schema := p.Schema
		if m.cfg.StrictSchema {
			schema = StrictSchema(schema)
		}
		schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
			Name:        p.SchemaName,
			Description: openai.String(p.Description),
			Schema:      schema,
			Strict:      openai.Bool(m.cfg.StrictSchema),
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schemaParam},
		}
	}

	start := time.Now()
	chat, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		m.log.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("chat completion failed")
		return "", classify(err, "model call")
	}
	if len(chat.Choices) == 0 {
		return "", classify(fmt.Errorf("empty choices in completion %s", chat.ID), "model call")
	}
	m.log.Debug().
		Dur("elapsed", time.Since(start)).
		Int64("prompt_tokens", chat.Usage.PromptTokens).
		Int64("completion_tokens", chat.Usage.CompletionTokens).
		Msg("chat completion")
	return strings.TrimSpace(chat.Choices[0].Message.Content), nil
}

// EmbedderConfig configures an OpenAI-compatible embeddings endpoint.
type EmbedderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIEmbedder calls the embeddings API.
type OpenAIEmbedder struct {
	client openai.Client
	cfg    EmbedderConfig
}

func NewOpenAIEmbedder(cfg EmbedderConfig) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: newClient(cfg.APIKey, cfg.BaseURL, cfg.Timeout), cfg: cfg}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.cfg.Model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, classify(err, "embedding call")
	}
	if len(resp.Data) != len(texts) {
		return nil, classify(fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(texts)), "embedding call")
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, classify(fmt.Errorf("embedding index %d out of range", d.Index), "embedding call")
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}
