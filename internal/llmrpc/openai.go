package llmrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// OpenAIClient speaks the OpenAI-style chat-completions wire format:
// an array of role-tagged messages in, a single choice with usage out.
//
// Grounded on OpenAIClient.CompleteWithSystem, whose request/response
// structs this mirrors almost verbatim.
type OpenAIClient struct {
	BaseURL string // e.g. https://api.openai.com/v1/chat/completions
	APIKey  string
	Model   string
	HTTP    *http.Client
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string           `json:"model"`
	Messages    []openAIMessage  `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *OpenAIClient) Send(ctx context.Context, req Request) (Response, error) {
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	messages := make([]openAIMessage, 0, 2)
	if req.SystemContext != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.SystemContext})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(openAIRequest{
		Model:       c.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return Response{}, fmt.Errorf("llmrpc: encode openai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("llmrpc: build openai request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	httpResp, err := httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Response{}, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return Response{}, fmt.Errorf("llmrpc: openai transport: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("llmrpc: read openai body: %w", err)
	}

	if httpResp.StatusCode == http.StatusTooManyRequests {
		return Response{}, fmt.Errorf("%w: status %d", ErrRateLimited, httpResp.StatusCode)
	}
	if httpResp.StatusCode >= 400 {
		return Response{}, fmt.Errorf("%w: status %d: %s", ErrFatalStatus, httpResp.StatusCode, string(raw))
	}

	var parsed openAIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Response{}, fmt.Errorf("llmrpc: decode openai response: %w", err)
	}
	if parsed.Error != nil {
		return Response{}, fmt.Errorf("%w: %s", ErrFatalStatus, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return Response{}, fmt.Errorf("%w: no choices in openai response", ErrFatalStatus)
	}

	return Response{
		Text: parsed.Choices[0].Message.Content,
		Usage: TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}
