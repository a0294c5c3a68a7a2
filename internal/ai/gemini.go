package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
)

const defaultGeminiEndpoint = "https://generativelanguage.googleapis.com"

// GeminiClient calls the Gemini REST API (v1beta) with API-key auth.
type GeminiClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// GeminiOption customizes a GeminiClient.
type GeminiOption func(*GeminiClient)

// WithGeminiEndpoint overrides the API base URL (used in tests).
func WithGeminiEndpoint(baseURL string) GeminiOption {
	return func(c *GeminiClient) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithGeminiHTTPClient replaces the underlying HTTP client.
func WithGeminiHTTPClient(hc *http.Client) GeminiOption {
	return func(c *GeminiClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewGeminiClient builds a client for model. A zero timeout leaves the HTTP
// client without one.
func NewGeminiClient(apiKey, model string, timeout time.Duration, opts ...GeminiOption) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNotConfigured
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	c := &GeminiClient{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultGeminiEndpoint,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Model returns the default model name used when a request leaves it empty.
func (c *GeminiClient) Model() string { return c.model }

// Wire shapes for models.generateContent.
type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerateRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content      *geminiContent `json:"content"`
		FinishReason string         `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Generate sends the messages as a single generateContent call. Temperature
// and token limits are left to the model defaults.
func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	model := req.Model
	if model == "" {
		model = c.model
	}
	payload, err := json.Marshal(geminiGenerateRequest{Contents: toGeminiContents(req.Messages)})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.modelURL(model)+":generateContent", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var gresp geminiGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gresp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var text strings.Builder
	if len(gresp.Candidates) > 0 && gresp.Candidates[0].Content != nil {
		for _, p := range gresp.Candidates[0].Content.Parts {
			text.WriteString(p.Text)
		}
	}
	if text.Len() == 0 {
		if gresp.PromptFeedback != nil && gresp.PromptFeedback.BlockReason != "" {
			return nil, &BadRequestError{APIError: &APIError{StatusCode: 400, Code: gresp.PromptFeedback.BlockReason, Message: "prompt blocked"}}
		}
		if len(gresp.Candidates) > 0 && gresp.Candidates[0].FinishReason != "" {
			return nil, fmt.Errorf("empty response (finish reason %s)", gresp.Candidates[0].FinishReason)
		}
		return nil, errors.New("empty response")
	}

	out := &GenerateResponse{
		Choices:   []Choice{{Message: Message{Role: "assistant", Content: text.String()}}},
		RequestID: requestIDFrom(resp.Header),
	}
	if u := gresp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     u.PromptTokenCount,
			CompletionTokens: u.CandidatesTokenCount,
			TotalTokens:      u.TotalTokenCount,
		}
	}
	return out, nil
}

// Ping fetches the model metadata, which checks key and model without
// spending generation tokens.
func (c *GeminiClient) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, c.modelURL(c.model), nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// do performs one request and returns the response only for 2xx statuses.
func (c *GeminiClient) do(ctx context.Context, method, endpoint string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("x-goog-api-key", c.apiKey)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &UnreachableError{Host: c.baseURL, Err: err}
	}
	if err := googleapi.CheckResponse(resp); err != nil {
		resp.Body.Close()
		return nil, geminiError(err)
	}
	return resp, nil
}

func (c *GeminiClient) modelURL(model string) string {
	return c.baseURL + "/v1beta/" + modelResource(model)
}

// toGeminiContents maps chat roles onto Gemini's user/model turns. System
// messages are folded into the first user turn.
func toGeminiContents(msgs []Message) []geminiContent {
	var system []string
	out := make([]geminiContent, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
			continue
		case "assistant", "model":
			out = append(out, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			out = append(out, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		prefix := strings.Join(system, "\n\n")
		if len(out) > 0 && out[0].Role == "user" {
			out[0].Parts[0].Text = prefix + "\n\n" + out[0].Parts[0].Text
		} else {
			out = append([]geminiContent{{Role: "user", Parts: []geminiPart{{Text: prefix}}}}, out...)
		}
	}
	return out
}

func modelResource(model string) string {
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

// geminiError turns a googleapi.Error into the typed errors of this package.
func geminiError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	apiErr := &APIError{
		StatusCode: gerr.Code,
		Message:    gerr.Message,
		RequestID:  requestIDFrom(gerr.Header),
	}
	if gerr.Body != "" {
		var body struct {
			Error struct {
				Status  string `json:"status"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal([]byte(gerr.Body), &body) == nil {
			apiErr.Code = body.Error.Status
			if apiErr.Message == "" {
				apiErr.Message = body.Error.Message
			}
		}
	}
	return classifyAPIError(apiErr, gerr.Header)
}
