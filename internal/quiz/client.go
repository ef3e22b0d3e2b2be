// Package quiz talks to the quiz backend that generates task quizzes and
// pays out passed ones.
package quiz

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
)

// ErrMissingTxHash is returned when the verifier reports a pass without the
// transaction that paid it.
var ErrMissingTxHash = errors.New("quiz passed without a transaction hash")

const defaultBaseURL = "http://localhost:8000/api"

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  strings.TrimSpace(apiKey),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("quiz http %d", e.StatusCode)
	}
	return fmt.Sprintf("quiz http %d: %s", e.StatusCode, b)
}

func (c *Client) GenerateQuiz(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if strings.TrimSpace(req.TaskTitle) == "" {
		return nil, fmt.Errorf("task_title is required")
	}
	if req.NumQuestions <= 0 {
		req.NumQuestions = 5
	}

	var out GenerateResponse
	if err := c.post(ctx, "/generate-quiz", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify submits answers for grading. A passed result always carries the
// payout transaction hash; otherwise ErrMissingTxHash is returned together
// with the response.
func (c *Client) Verify(ctx context.Context, req VerifyRequest) (*VerifyResponse, error) {
	if strings.TrimSpace(req.TaskID) == "" {
		return nil, fmt.Errorf("taskId is required")
	}
	if strings.TrimSpace(req.WalletAddress) == "" {
		return nil, fmt.Errorf("walletAddress is required")
	}
	if len(req.Answers) == 0 {
		return nil, fmt.Errorf("answers are required")
	}

	var out VerifyResponse
	if err := c.post(ctx, "/verify-quiz", req, &out); err != nil {
		return nil, err
	}
	if out.Success && out.Passed && strings.TrimSpace(out.TxHash) == "" {
		return &out, ErrMissingTxHash
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	httpReq.Header.Set("accept", "application/json")
	httpReq.Header.Set("content-type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("x-api-key", c.APIKey)
	}

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &HTTPError{StatusCode: res.StatusCode, Body: body}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode quiz response: %w", err)
	}
	return nil
}
