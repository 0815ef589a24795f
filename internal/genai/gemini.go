// internal/genai/gemini.go
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/cloudforge/internal/config"
	"github.com/fyrsmithlabs/cloudforge/internal/logging"
)

// GeminiClient calls the Gemini generateContent REST API.
type GeminiClient struct {
	baseURL     string
	model       string
	apiKey      string
	maxTokens   int
	temperature float64
	maxAttempts int

	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logging.Logger
}

// NewGeminiClient creates a client from config. The logger may be nil.
func NewGeminiClient(cfg *config.GenerationConfig, log *logging.Logger) (*GeminiClient, error) {
	if cfg.APIKey.Value() == "" {
		return nil, fmt.Errorf("generation api_key is required")
	}
	if log == nil {
		log = logging.NewNop()
	}

	return &GeminiClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		apiKey:      cfg.APIKey.Value(),
		maxTokens:   cfg.MaxOutputTokens,
		temperature: cfg.Temperature,
		maxAttempts: cfg.MaxAttempts,
		httpClient: &http.Client{
			Timeout: cfg.Timeout.Duration(),
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		log:     log.Named("gemini"),
	}, nil
}

// Wire format for the generateContent endpoint.

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate implements Client. Transient failures (429, 5xx, transport
// errors) are retried with exponential backoff up to MaxAttempts.
func (c *GeminiClient) Generate(ctx context.Context, systemPrompt, input string, opts GenerateOptions) (string, error) {
	maxTokens := opts.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: input}}},
		},
		GenerationConfig: geminiGenConfig{
			Temperature:     temperature,
			MaxOutputTokens: maxTokens,
		},
	}
	if systemPrompt != "" {
		reqBody.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(500*time.Millisecond),
			backoff.WithMaxInterval(10*time.Second),
		),
		uint64(c.maxAttempts-1),
	), ctx)

	var text string
	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		result, callErr := c.doCall(ctx, payload)
		if callErr != nil {
			if !IsRetryable(callErr) {
				return backoff.Permanent(callErr)
			}
			c.log.Warn(ctx, "generation call failed, retrying",
				zap.Int("attempt", attempt),
				zap.Error(callErr))
			return callErr
		}
		text = result
		return nil
	}, policy)
	if err != nil {
		return "", err
	}
	return text, nil
}

// doCall performs one HTTP round trip against the generateContent endpoint.
func (c *GeminiClient) doCall(ctx context.Context, payload []byte) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", &GenerationError{Message: "rate limiter wait cancelled", Retryable: false, Err: err}
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", &GenerationError{Message: "failed to build request", Retryable: false, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport errors (connection refused, timeouts) are retryable
		// unless the context itself is done.
		retryable := ctx.Err() == nil
		return "", &GenerationError{Message: "request failed", Retryable: retryable, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", &GenerationError{Message: "failed to read response body", Retryable: true, Err: err}
	}

	c.log.Debug(ctx, "generation call completed",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		return "", c.statusError(resp.StatusCode, body)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &GenerationError{Message: "failed to decode response", Retryable: false, Err: err}
	}
	if len(parsed.Candidates) == 0 {
		return "", &GenerationError{Message: "response contained no candidates", Retryable: true}
	}

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return "", &GenerationError{Message: "candidate contained no text", Retryable: true}
	}
	return sb.String(), nil
}

// statusError classifies a non-200 response.
func (c *GeminiClient) statusError(status int, body []byte) *GenerationError {
	msg := "request rejected"
	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil {
		msg = parsed.Error.Message
	}

	retryable := status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout ||
		status >= 500

	return &GenerationError{
		StatusCode: status,
		Message:    msg,
		Retryable:  retryable,
	}
}
