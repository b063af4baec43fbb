package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"envscope/internal/modules/analysis/types"
)

const (
	DefaultBaseURL     = "https://api.groq.com/openai/v1"
	DefaultModel       = "mixtral-8x7b-32768"
	DefaultTemperature = 0.5
	DefaultMaxTokens   = 2048

	// EmptyReply stands in for a completion whose first choice has no content.
	EmptyReply = "No response"
)

var (
	ErrEmptyPrompt = errors.New("completion: empty prompt")
	ErrNoChoices   = errors.New("completion: response contained no choices")
)

// StatusError is returned when the completion service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("completion: status %d", e.StatusCode)
	}
	return fmt.Sprintf("completion: status %d: %s", e.StatusCode, e.Message)
}

// Completer returns the assistant reply for a conversation.
type Completer interface {
	Complete(ctx context.Context, history []types.ConversationTurn, userText string) (string, error)
}

type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	// HTTPClient defaults to a client without a timeout; the caller's context is the only deadline.
	HTTPClient   *http.Client
	SystemPrompt string
}

// Client talks to an OpenAI-compatible chat completions endpoint. One call per
// user turn, no retry, no streaming.
type Client struct {
	baseURL      string
	apiKey       string
	model        string
	temperature  float64
	maxTokens    int
	httpClient   *http.Client
	systemPrompt string
}

func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		apiKey:       opts.APIKey,
		model:        opts.Model,
		temperature:  opts.Temperature,
		maxTokens:    opts.MaxTokens,
		httpClient:   opts.HTTPClient,
		systemPrompt: opts.SystemPrompt,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.systemPrompt == "" {
		c.systemPrompt = SystemPrompt
	}
	return c
}

// Message is one role/content pair on the wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Messages builds the wire conversation: the fixed system instruction, every
// prior turn in order, then the new user turn.
func (c *Client) Messages(history []types.ConversationTurn, userText string) []Message {
	msgs := make([]Message, 0, len(history)+2)
	msgs = append(msgs, Message{Role: "system", Content: c.systemPrompt})
	for _, t := range history {
		msgs = append(msgs, Message{Role: string(t.Role), Content: t.Content})
	}
	return append(msgs, Message{Role: string(types.RoleUser), Content: userText})
}

func (c *Client) Complete(ctx context.Context, history []types.ConversationTurn, userText string) (string, error) {
	if strings.TrimSpace(userText) == "" {
		return "", ErrEmptyPrompt
	}

	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    c.Messages(history, userText),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return "", &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrNoChoices
	}
	content := parsed.Choices[0].Message.Content
	if content == "" {
		return EmptyReply, nil
	}
	return content, nil
}

// HealthCheck lists models to confirm the endpoint and credential are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("create health check request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}
