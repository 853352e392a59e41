package llmrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// GeminiClient speaks the Gemini generateContent wire format: nested
// contents/parts in, candidates/parts out, API key passed as a query
// parameter rather than a header.
//
// Grounded on GeminiClient.CompleteWithSystem.
type GeminiClient struct {
	BaseURL string // e.g. https://generativelanguage.googleapis.com/v1beta/models/<model>:generateContent
	APIKey  string
	HTTP    *http.Client
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	SystemInstruction *geminiContent `json:"systemInstruction,omitempty"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *GeminiClient) Send(ctx context.Context, req Request) (Response, error) {
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	wire := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: req.Prompt}},
		}},
	}
	if req.SystemContext != "" {
		wire.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemContext}}}
	}
	wire.GenerationConfig.Temperature = req.Temperature
	wire.GenerationConfig.MaxOutputTokens = req.MaxTokens

	body, err := json.Marshal(wire)
	if err != nil {
		return Response{}, fmt.Errorf("llmrpc: encode gemini request: %w", err)
	}

	endpoint := c.BaseURL + "?key=" + url.QueryEscape(c.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("llmrpc: build gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Response{}, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return Response{}, fmt.Errorf("llmrpc: gemini transport: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("llmrpc: read gemini body: %w", err)
	}

	if httpResp.StatusCode == http.StatusTooManyRequests {
		return Response{}, fmt.Errorf("%w: status %d", ErrRateLimited, httpResp.StatusCode)
	}
	if httpResp.StatusCode >= 400 {
		return Response{}, fmt.Errorf("%w: status %d: %s", ErrFatalStatus, httpResp.StatusCode, string(raw))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Response{}, fmt.Errorf("llmrpc: decode gemini response: %w", err)
	}
	if parsed.Error != nil {
		return Response{}, fmt.Errorf("%w: %s", ErrFatalStatus, parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return Response{}, fmt.Errorf("%w: no candidates in gemini response", ErrFatalStatus)
	}

	return Response{
		Text: parsed.Candidates[0].Content.Parts[0].Text,
		Usage: TokenUsage{
			PromptTokens:     parsed.UsageMetadata.PromptTokenCount,
			CompletionTokens: parsed.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      parsed.UsageMetadata.TotalTokenCount,
		},
	}, nil
}
