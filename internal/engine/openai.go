package engine

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIConfig configures an OpenAIBackend.
type OpenAIConfig struct {
	// BaseURL of an OpenAI compatible API, for example a local inference
	// server. Empty uses the public endpoint.
	BaseURL string

	// APIKey sent as bearer token. Local servers usually ignore it.
	APIKey string

	// Model is the model name requested.
	Model string

	// SkipProbe disables the model lookup done by Open, for servers that
	// do not implement the models endpoint.
	SkipProbe bool

	// MaxRetries is the number of HTTP level retries done by the client.
	MaxRetries int

	// RequestTimeout bounds a single request, zero means none.
	RequestTimeout time.Duration
}

// OpenAIBackend opens sessions against an OpenAI compatible chat
// completion API.
type OpenAIBackend struct {
	cfg OpenAIConfig
	log *slog.Logger
}

// NewOpenAIBackend creates a backend from cfg.
func NewOpenAIBackend(cfg OpenAIConfig, log *slog.Logger) *OpenAIBackend {
	if log == nil {
		log = slog.Default()
	}

	return &OpenAIBackend{
		cfg: cfg,
		log: log.With("component", "openai"),
	}
}

// Open builds a client and, unless disabled, checks that the model exists.
// Progress jumps from 0 to 1 since remote models have no load phase.
func (b *OpenAIBackend) Open(ctx context.Context,
	progress ProgressFunc) (Session, error) {

	opts := []option.RequestOption{
		option.WithMaxRetries(b.cfg.MaxRetries),
	}
	if b.cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(b.cfg.APIKey))
	}
	if b.cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(b.cfg.BaseURL))
	}
	if b.cfg.RequestTimeout > 0 {
		opts = append(
			opts, option.WithRequestTimeout(b.cfg.RequestTimeout),
		)
	}

	client := openai.NewClient(opts...)

	if !b.cfg.SkipProbe {
		model, err := client.Models.Get(ctx, b.cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("probe model %q: %w", b.cfg.Model,
				err)
		}

		b.log.DebugContext(ctx, "Model available", "model", model.ID,
			"owned_by", model.OwnedBy)
	}

	progress(1)

	return &openAISession{
		client: client,
		model:  b.cfg.Model,
	}, nil
}

// openAISession streams chat completions with a shared client.
type openAISession struct {
	client openai.Client
	model  string
}

// Stream runs one streaming chat completion.
func (s *openAISession) Stream(ctx context.Context, msgs []Message,
	sampling Sampling) iter.Seq2[Chunk, error] {

	return func(yield func(Chunk, error) bool) {
		params := openai.ChatCompletionNewParams{
			Model:       shared.ChatModel(s.model),
			Messages:    convertMessages(msgs),
			Temperature: openai.Float(sampling.Temperature),
			StreamOptions: openai.ChatCompletionStreamOptionsParam{
				IncludeUsage: openai.Bool(true),
			},
		}
		if sampling.MaxTokens > 0 {
			params.MaxTokens = openai.Int(int64(sampling.MaxTokens))
		}

		stream := s.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()

			var out Chunk
			if len(chunk.Choices) > 0 {
				out.Delta = chunk.Choices[0].Delta.Content
			}
			if chunk.Usage.TotalTokens > 0 {
				out.Usage = fn.Some(Usage{
					PromptTokens:     chunk.Usage.PromptTokens,
					CompletionTokens: chunk.Usage.CompletionTokens,
					TotalTokens:      chunk.Usage.TotalTokens,
				})
			}

			if !yield(out, nil) {
				return
			}
		}

		if err := stream.Err(); err != nil {
			yield(Chunk{}, fmt.Errorf("completion stream: %w", err))
		}
	}
}

// Close is a no-op: the HTTP client holds no per-session state.
func (s *openAISession) Close() error {
	return nil
}

func convertMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}

	return out
}

var _ Backend = (*OpenAIBackend)(nil)
