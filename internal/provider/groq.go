package provider

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"chatd/internal/chat"
	"chatd/internal/config"

	openai "github.com/sashabaranov/go-openai"
)

// Gateway 使用 go-openai SDK 访问 OpenAI 兼容的补全服务
// Gateway talks to the hosted OpenAI-compatible completion API. It performs
// exactly one attempt per call; retry policy, if any, belongs to callers.
type Gateway struct {
	client *openai.Client
	model  string
	hasKey bool
	log    *slog.Logger
}

// New builds a gateway for cfg. The credential is validated eagerly: only
// its presence and length are logged, never the value. A missing credential
// does not fail construction; it degrades every completion call to
// ErrNoAPIKey.
func New(cfg config.ProviderConfig) *Gateway {
	apiKey := strings.TrimSpace(cfg.APIKey)

	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	httpClient := &http.Client{}
	if cfg.TimeoutMS > 0 {
		httpClient.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	clientCfg.HTTPClient = httpClient

	g := &Gateway{
		client: openai.NewClientWithConfig(clientCfg),
		model:  strings.TrimSpace(cfg.Model),
		hasKey: apiKey != "",
		log:    slog.Default(),
	}
	if g.hasKey {
		g.log.Info("provider credential configured", "key_length", len(apiKey))
	} else {
		g.log.Error("GROQ_API_KEY is not configured; completion calls will fail")
	}
	return g
}

// ListModels fetches the provider catalog and filters out entries unsuitable
// for chat. Any fetch failure returns an empty catalog; callers substitute
// the static fallback set.
func (g *Gateway) ListModels(ctx context.Context) []ModelInfo {
	resp, err := g.client.ListModels(ctx)
	if err != nil {
		g.log.Warn("list models failed", "error", err)
		return nil
	}
	models := make([]ModelInfo, 0, len(resp.Models))
	for _, m := range resp.Models {
		if !chatUsable(m.ID) {
			continue
		}
		models = append(models, ModelInfo{
			ID:      m.ID,
			OwnedBy: m.OwnedBy,
		})
	}
	return models
}

// CreateCompletion sends the full message history to the completion endpoint
// and returns the provider's raw envelope. A 2xx response carrying zero
// choices is reported as an APIError.
func (g *Gateway) CreateCompletion(ctx context.Context, messages []chat.Message, model string) (openai.ChatCompletionResponse, error) {
	if !g.hasKey {
		return openai.ChatCompletionResponse{}, ErrNoAPIKey
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = g.model
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: convertMessages(messages),
	})
	if err != nil {
		return openai.ChatCompletionResponse{}, translateError(err)
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionResponse{}, &APIError{
			Status:  http.StatusBadGateway,
			Payload: "completion response has no choices",
		}
	}
	return resp, nil
}

// Complete returns the top choice's message as a single assistant turn.
func (g *Gateway) Complete(ctx context.Context, messages []chat.Message, model string) (chat.Message, error) {
	resp, err := g.CreateCompletion(ctx, messages, model)
	if err != nil {
		return chat.Message{}, err
	}
	return chat.Message{
		Role:    chat.RoleAssistant,
		Content: resp.Choices[0].Message.Content,
	}, nil
}

func convertMessages(messages []chat.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return out
}

// translateError maps SDK failures into the gateway taxonomy. Transport
// errors (DNS, timeout) pass through untranslated; callers treat any error
// from a completion call the same way.
func translateError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			Status:  apiErr.HTTPStatusCode,
			Payload: apiErr.Message,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		payload := strings.TrimSpace(string(reqErr.Body))
		if payload == "" && reqErr.Err != nil {
			payload = reqErr.Err.Error()
		}
		return &APIError{
			Status:  reqErr.HTTPStatusCode,
			Payload: payload,
		}
	}
	return err
}
