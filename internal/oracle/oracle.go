// Package oracle talks to a local Ollama instance for the type questions
// static inference cannot answer. It is strictly advisory: every caller
// must work when the oracle is disabled, unreachable, or wrong.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "qwen2.5-coder:7b"
)

// Client is safe for concurrent use. The rate limiter keeps a burst of
// annotation requests from queueing minutes of generation on the model.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
	limiter *rate.Limiter
}

type Option func(*Client)

func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit caps requests per second to the model. Zero or negative
// values disable the limit.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   DefaultModel,
		http:    &http.Client{Timeout: 60 * time.Second},
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

// Status reports whether the Ollama endpoint answers and which models it
// has pulled.
type Status struct {
	Available bool     `json:"available"`
	Model     string   `json:"model"`
	Models    []string `json:"models,omitempty"`
	Error     string   `json:"error,omitempty"`
}

func (c *Client) CheckStatus(ctx context.Context) Status {
	status := Status{Model: c.model}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	resp, err := c.http.Do(req)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		status.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		return status
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		status.Error = fmt.Sprintf("decode tags: %v", err)
		return status
	}

	status.Available = true
	for _, m := range tags.Models {
		status.Models = append(status.Models, m.Name)
	}
	return status
}

// InferVariableTypes asks the model for types of the named variables.
// Returns a name-to-type map; unknown names are simply absent.
func (c *Client) InferVariableTypes(ctx context.Context, code string, variables []string) (map[string]string, error) {
	if len(variables) == 0 {
		return map[string]string{}, nil
	}

	prompt := fmt.Sprintf(`Analyze this Python code and infer the types of these variables: %s

Code:
%s

Respond with ONLY a JSON object mapping each variable name to its Python type annotation, for example {"x": "int", "names": "list[str]"}. Use modern annotation syntax (list[int], not List[int]).`,
		strings.Join(variables, ", "), code)

	content, err := c.chat(ctx, prompt)
	if err != nil {
		return nil, err
	}

	result := map[string]string{}
	if err := extractJSON(content, &result); err != nil {
		return nil, fmt.Errorf("parse variable types: %w", err)
	}
	return result, nil
}

// FunctionSignature is the oracle's suggestion for one function.
type FunctionSignature struct {
	Params map[string]string `json:"params"`
	Return string            `json:"return"`
}

// SuggestSignatures asks the model for parameter and return annotations
// of the named functions.
func (c *Client) SuggestSignatures(ctx context.Context, code string, functions []string) (map[string]FunctionSignature, error) {
	if len(functions) == 0 {
		return map[string]FunctionSignature{}, nil
	}

	prompt := fmt.Sprintf(`Analyze this Python code and suggest type annotations for these functions: %s

Code:
%s

Respond with ONLY a JSON object of the form {"func_name": {"params": {"param": "type"}, "return": "type"}}. Use modern annotation syntax.`,
		strings.Join(functions, ", "), code)

	content, err := c.chat(ctx, prompt)
	if err != nil {
		return nil, err
	}

	result := map[string]FunctionSignature{}
	if err := extractJSON(content, &result); err != nil {
		return nil, fmt.Errorf("parse function signatures: %w", err)
	}
	return result, nil
}

func (c *Client) chat(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a Python type inference assistant. You respond only with JSON."},
			{Role: "user", Content: prompt},
		},
		Stream: false,
		// Low temperature keeps the type answers deterministic enough to cache.
		Options: map[string]any{"temperature": 0.1},
	})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("chat request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	return parsed.Message.Content, nil
}

var (
	fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	bareJSON   = regexp.MustCompile(`(?s)\{.*\}`)
)

// extractJSON pulls a JSON object out of model output. Models wrap
// answers in fences or prose despite instructions, so try the fenced
// block first, then the widest braced span.
func extractJSON(content string, dest any) error {
	trimmed := strings.TrimSpace(content)
	if err := json.Unmarshal([]byte(trimmed), dest); err == nil {
		return nil
	}
	if m := fencedJSON.FindStringSubmatch(content); m != nil {
		if err := json.Unmarshal([]byte(m[1]), dest); err == nil {
			return nil
		}
	}
	if m := bareJSON.FindString(content); m != "" {
		if err := json.Unmarshal([]byte(m), dest); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no JSON object found in model output")
}
