package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAPIURL  = "https://api.openai.com/v1/chat/completions"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 60 * time.Second

	// Low temperature favors determinism for the structured analysis;
	// the conversational mode gets room for prose.
	analysisTemperature = 0.2
	askTemperature      = 0.7
	analysisMaxTokens   = 1500
	askMaxTokens        = 1000

	maxResponseBytes = 4 << 20
)

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// We only parse the fields we actually use; the backend may return
// additional fields (usage, system_fingerprint, etc.) which are ignored.
type chatResponse struct {
	Choices []chatChoice     `json:"choices"`
	Error   *apiErrorPayload `json:"error,omitempty"`
}

type chatChoice struct {
	Message message `json:"message"`
}

type apiErrorPayload struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code,omitempty"`
}

// Client issues single chat-completion requests against an OpenAI-style
// backend. The credential is injected already resolved; the client performs
// no lookup of its own. Stateless across calls beyond transport-level
// connection pooling, so concurrent calls on independent inputs are fully
// independent.
type Client struct {
	apiKey     string
	apiURL     string
	model      string
	httpClient *http.Client
}

func New(apiKey, apiURL, model string, timeout time.Duration) *Client {
	if strings.TrimSpace(apiURL) == "" {
		apiURL = defaultAPIURL
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiKey: apiKey,
		apiURL: apiURL,
		model:  model,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// Analyze runs the primary operation: one deterministic request, then the
// defensive parse. A malformed-but-received response degrades to the
// fallback result instead of failing; only transport/HTTP-level problems
// return an error.
func (c *Client) Analyze(ctx context.Context, text, studentName string) (Outcome, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return Outcome{}, &Error{Kind: KindInvalidCredential}
	}
	if strings.TrimSpace(studentName) == "" {
		studentName = "Student"
	}

	raw, err := c.complete(ctx, []message{
		{Role: "system", Content: analysisSystemPrompt},
		{Role: "user", Content: buildAnalysisPrompt(text)},
	}, analysisTemperature, analysisMaxTokens)
	if err != nil {
		return Outcome{}, err
	}

	content, ok := extractContent(raw)
	if !ok {
		// Envelope didn't decode; let the parser try the raw body and
		// fall through to the fallback result.
		content = string(raw)
	}
	return parseAnalysisResponse(content, studentName), nil
}

// Ask is the conversational follow-up mode: free text in, free text out, no
// JSON contract.
func (c *Client) Ask(ctx context.Context, question, documentText string, history []Turn) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", &Error{Kind: KindInvalidCredential}
	}

	raw, err := c.complete(ctx, buildAskMessages(question, documentText, history), askTemperature, askMaxTokens)
	if err != nil {
		return "", err
	}

	content, ok := extractContent(raw)
	if !ok || strings.TrimSpace(content) == "" {
		return "", &Error{Kind: KindInvalidResponse}
	}
	return strings.TrimSpace(content), nil
}

// complete issues exactly one request and classifies the HTTP outcome. It
// never retries; retry policy belongs to the caller.
func (c *Client) complete(ctx context.Context, msgs []message, temperature float64, maxTokens int) ([]byte, error) {
	bodyBytes, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "docanalysis/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetworkError, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Kind: KindNetworkError, Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return raw, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{Kind: KindRateLimited, StatusCode: resp.StatusCode}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		msg := errorMessage(raw)
		if isContextLengthMessage(msg) {
			return nil, &Error{Kind: KindTokenLimitExceeded, StatusCode: resp.StatusCode}
		}
		return nil, &Error{Kind: KindAPIError, StatusCode: resp.StatusCode, Message: msg}
	case resp.StatusCode >= 500 && resp.StatusCode < 600:
		return nil, &Error{Kind: KindAPIError, StatusCode: resp.StatusCode}
	default:
		return nil, &Error{Kind: KindInvalidResponse, StatusCode: resp.StatusCode}
	}
}

// extractContent pulls the assistant message text out of the completion
// envelope. ok is false when the envelope doesn't decode or carries no
// usable choice.
func extractContent(raw []byte) (string, bool) {
	var envelope chatResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", false
	}
	if envelope.Error != nil && envelope.Error.Message != "" {
		return "", false
	}
	if len(envelope.Choices) == 0 {
		return "", false
	}
	return envelope.Choices[0].Message.Content, true
}

// errorMessage extracts a human-readable message from an error body, falling
// back to a bounded slice of the body itself.
func errorMessage(body []byte) string {
	var errResp struct {
		Error apiErrorPayload `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	return msg
}

func isContextLengthMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "context length") ||
		strings.Contains(m, "context_length") ||
		strings.Contains(m, "maximum context") ||
		strings.Contains(m, "too many tokens")
}
