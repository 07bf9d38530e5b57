package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/BaSui01/agentwatch/internal/tlsutil"
	"github.com/BaSui01/agentwatch/llm"
	"github.com/BaSui01/agentwatch/llm/providers"
	"github.com/BaSui01/agentwatch/types"
	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const providerName = "openai"

// OpenAIProvider implements llm.Provider on top of the go-openai client.
type OpenAIProvider struct {
	client *goopenai.Client
	cfg    providers.OpenAIConfig
	name   string
	logger *zap.Logger
}

// NewOpenAIProvider creates a provider from cfg.
func NewOpenAIProvider(cfg providers.OpenAIConfig, logger *zap.Logger) *OpenAIProvider {
	if logger == nil {
		logger = zap.NewNop()
	}

	var clientCfg goopenai.ClientConfig
	name := providerName
	if cfg.Azure {
		clientCfg = goopenai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		if cfg.APIVersion != "" {
			clientCfg.APIVersion = cfg.APIVersion
		}
		// deployment names are used verbatim
		clientCfg.AzureModelMapperFunc = func(model string) string { return model }
		name = "azure-openai"
	} else {
		clientCfg = goopenai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		clientCfg.OrgID = cfg.Organization
	}
	clientCfg.HTTPClient = tlsutil.HTTPClient(cfg.Timeout)

	return &OpenAIProvider{
		client: goopenai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		name:   name,
		logger: logger.With(zap.String("component", "provider"), zap.String("provider", name)),
	}
}

func (p *OpenAIProvider) Name() string { return p.name }

// Completion sends req as a chat completion.
func (p *OpenAIProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, toOpenAIRequest(model, req))
	if err != nil {
		mapped := p.mapError(ctx, err)
		p.logger.Debug("completion failed",
			zap.String("model", model),
			zap.Duration("latency", time.Since(start)),
			zap.Error(mapped),
		)
		return nil, mapped
	}

	p.logger.Debug("completion finished",
		zap.String("model", resp.Model),
		zap.Int("choices", len(resp.Choices)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("latency", time.Since(start)),
	)
	return p.toChatResponse(resp), nil
}

// mapError converts go-openai errors. Context errors from the caller pass
// through untouched so cancellation can be told apart from upstream failure.
func (p *OpenAIProvider) mapError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return providers.MapHTTPError(apiErr.HTTPStatusCode, apiErr.Message, p.name).WithCause(err)
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return providers.MapHTTPError(reqErr.HTTPStatusCode, reqErr.Error(), p.name).WithCause(err)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return types.NewProviderError(types.ErrUpstreamTimeout, "request timed out").
			WithRetryable(true).
			WithProvider(p.name).
			WithCause(err)
	}

	return types.NewProviderError(types.ErrProviderUnavailable, "provider unreachable").
		WithRetryable(true).
		WithProvider(p.name).
		WithCause(err)
}

// =============================================================================
// conversion
// =============================================================================

func toOpenAIRequest(model string, req *llm.ChatRequest) goopenai.ChatCompletionRequest {
	out := goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    make([]goopenai.ChatCompletionMessage, 0, len(req.Messages)),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		User:        req.User,
	}

	for _, m := range req.Messages {
		msg := goopenai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, goopenai.ToolCall{
				ID:   tc.ID,
				Type: goopenai.ToolTypeFunction,
				Function: goopenai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		out.Messages = append(out.Messages, msg)
	}

	for _, t := range req.Tools {
		params := t.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		out.Tools = append(out.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}

	if len(out.Tools) > 0 {
		switch req.ToolChoice {
		case "", "auto":
			out.ToolChoice = "auto"
		case "none", "required":
			out.ToolChoice = req.ToolChoice
		default:
			out.ToolChoice = goopenai.ToolChoice{
				Type:     goopenai.ToolTypeFunction,
				Function: goopenai.ToolFunction{Name: req.ToolChoice},
			}
		}
	}

	return out
}

func (p *OpenAIProvider) toChatResponse(resp goopenai.ChatCompletionResponse) *llm.ChatResponse {
	out := &llm.ChatResponse{
		ID:       resp.ID,
		Provider: p.name,
		Model:    resp.Model,
		Usage: llm.ChatUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		CreatedAt: time.Unix(resp.Created, 0),
	}

	for _, c := range resp.Choices {
		msg := llm.Message{
			Role:    types.Role(c.Message.Role),
			Content: c.Message.Content,
			Name:    c.Message.Name,
		}
		for _, tc := range c.Message.ToolCalls {
			args := json.RawMessage(tc.Function.Arguments)
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			msg.ToolCalls = append(msg.ToolCalls, types.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: args,
			})
		}
		out.Choices = append(out.Choices, llm.ChatChoice{
			Index:        c.Index,
			FinishReason: string(c.FinishReason),
			Message:      msg,
		})
	}

	return out
}
