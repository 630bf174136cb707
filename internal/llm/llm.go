package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"menuetl/internal/config"
	"menuetl/internal/metrics"
)

// DefaultModel is the chat model used when the config does not name one.
const DefaultModel = "o4-mini"

// defaultTimeout bounds a single classification round trip.
const defaultTimeout = 60 * time.Second

// Sentinel reasons for credential loading failures. They are wrapped in a
// *ConfigError carrying the offending path.
var (
	ErrTokenMissing = errors.New("token file not found")
	ErrTokenEmpty   = errors.New("token file is empty")
)

// ConfigError reports a fatal client construction problem, typically a
// missing or empty credential file.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("llm config: %v (path %q)", e.Err, e.Path)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// DecodeError reports a model reply that is not a valid JSON array. The raw
// reply text is kept for diagnosability.
type DecodeError struct {
	Raw string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to parse response as JSON: %v\n%s", e.Err, e.Raw)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RowResult is one decoded per-row classification. Missing keys decode to
// zero values, which are exactly the documented defaults; a null array
// element decodes to an all-defaults RowResult.
type RowResult struct {
	DishBase          string   `json:"dish_base"`
	DishFlavor        []string `json:"dish_flavor"`
	IsCombo           bool     `json:"is_combo"`
	RestaurantTypeStd string   `json:"restaurant_type_std"`
}

// Classifier is the abstraction the extraction orchestrator calls through.
type Classifier interface {
	// ClassifyBatch sends one batch of row-shaped values under the given
	// system instruction and returns the decoded per-row results in input
	// order. rows may be any JSON-serializable value whose serialization is
	// an array, or an already-serialized JSON array string.
	ClassifyBatch(ctx context.Context, system string, rows any) ([]RowResult, error)
}

// Client implements Classifier against an OpenAI-compatible Chat Completions
// endpoint. The credential is loaded once at construction and held for the
// client's lifetime.
type Client struct {
	token   string
	baseURL string
	model   string
	http    *http.Client
}

// NewClientFromConfig constructs a Client from global config. Construction
// fails immediately when the credential file is absent or empty.
func NewClientFromConfig(cfg *config.Config) (*Client, error) {
	token, err := LoadToken(cfg.LLM.TokenPath)
	if err != nil {
		return nil, err
	}

	model := cfg.LLM.Model
	if model == "" {
		model = DefaultModel
	}

	timeout := defaultTimeout
	if cfg.LLM.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
	}

	return &Client{
		token:   token,
		baseURL: cfg.LLM.BaseURL,
		model:   model,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// LoadToken reads and trims an API credential from the given file path. A
// missing file and a present-but-empty file fail with distinct reasons.
func LoadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &ConfigError{Path: path, Err: ErrTokenMissing}
		}
		return "", &ConfigError{Path: path, Err: err}
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", &ConfigError{Path: path, Err: ErrTokenEmpty}
	}
	return token, nil
}

// Model reports the chat model this client sends requests to.
func (c *Client) Model() string { return c.model }

// chatRequest is a minimal representation of the Chat Completions API.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// ClassifyBatch issues exactly one synchronous chat-completions request for
// the whole row set and decodes the single textual reply. Network and
// timeout failures propagate as-is; there is no retry.
func (c *Client) ClassifyBatch(ctx context.Context, system string, rows any) (results []RowResult, err error) {
	defer func() { metrics.RecordClassify(c.model, err == nil) }()
	userMsg, err := marshalRows(rows)
	if err != nil {
		return nil, err
	}

	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: userMsg},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	endpoint = endpoint + "/chat/completions"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("chat completion failed with status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	return DecodeReply(parsed.Choices[0].Message.Content)
}

// marshalRows serializes the task payload. A string input is treated as an
// already-serialized JSON array and validated; anything else must marshal to
// a JSON array.
func marshalRows(rows any) (string, error) {
	if s, ok := rows.(string); ok {
		var probe []json.RawMessage
		if err := json.Unmarshal([]byte(s), &probe); err != nil {
			return "", fmt.Errorf("rows string is not a JSON array: %w", err)
		}
		return s, nil
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", err
	}

	var probe []json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", fmt.Errorf("rows do not serialize to a JSON array: %w", err)
	}
	return string(data), nil
}

// DecodeReply parses the raw model reply as a strict JSON array of per-row
// results. Any parse failure is a hard stop carrying the offending text;
// callers must not substitute a default.
func DecodeReply(raw string) ([]RowResult, error) {
	var results []RowResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, &DecodeError{Raw: raw, Err: err}
	}
	return results, nil
}
