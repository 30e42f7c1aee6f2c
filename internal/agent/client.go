package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	dberrors "github.com/vampirenirmal/deepbook/pkg/deepbook/errors"
)

const jsonSystemPrompt = "You are a helpful assistant that MUST respond with valid JSON only. Your entire response must be a single JSON object with no additional text, markdown, or explanations."

// Client talks to an OpenAI-compatible API for both chat completions and
// image generation. It makes exactly one attempt per call.
type Client struct {
	api          *openai.Client
	apiKey       string
	baseURL      string
	model        string
	imageModel   string
	temperature  float32
	maxTokens    int
	callTimeout  time.Duration
	imageTimeout time.Duration
	httpClient   *http.Client
	limiter      *rate.Limiter
	logger       *slog.Logger
	metrics      *Metrics
}

type Option func(*Client)

// WithTimeout sets the deadline of each chat completion call.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithImageTimeout sets the deadline of each image generation call.
func WithImageTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.imageTimeout = timeout
		}
	}
}

func WithRateLimit(requestsPerMinute int, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
	}
}

// WithAPIConfig overrides the base URL and chat model. An empty base URL
// keeps the OpenAI default.
func WithAPIConfig(baseURL, model string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
		if model != "" {
			c.model = model
		}
	}
}

func WithImageModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.imageModel = model
		}
	}
}

func WithSampling(temperature float32, maxTokens int) Option {
	return func(c *Client) {
		c.temperature = temperature
		c.maxTokens = maxTokens
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger.With("component", "ai_client")
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	// Configure transport with connection pooling
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	c := &Client{
		apiKey:       apiKey,
		model:        DefaultModel,
		imageModel:   DefaultImageModel,
		temperature:  0.7,
		maxTokens:    2048,
		callTimeout:  2 * time.Minute,
		imageTimeout: 3 * time.Minute,
		httpClient:   &http.Client{Transport: transport},
		limiter:      rate.NewLimiter(rate.Limit(1), 1), // Default: 60 req/min
		logger:       slog.Default().With("component", "ai_client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	cfg := openai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	cfg.HTTPClient = c.httpClient
	c.api = openai.NewClientWithConfig(cfg)

	c.logger.Debug("AI client initialized",
		"base_url", cfg.BaseURL,
		"model", c.model,
		"image_model", c.imageModel,
		"call_timeout", c.callTimeout,
		"image_timeout", c.imageTimeout,
		"rate_limit", fmt.Sprintf("%v req/s", c.limiter.Limit()))

	return c
}

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, prompt, false)
}

func (c *Client) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, prompt, true)
}

func (c *Client) complete(ctx context.Context, prompt string, forceJSON bool) (string, error) {
	requestID := fmt.Sprintf("chat_%d", time.Now().UnixNano())
	op := "chat"
	if forceJSON {
		op = "chat_json"
	}

	if err := c.wait(ctx, requestID); err != nil {
		return "", dberrors.NewModelError(op, 0, false, err)
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	if forceJSON {
		messages = append([]openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: jsonSystemPrompt},
		}, messages...)
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	req.Messages = messages

	c.logger.Debug("sending chat completion",
		"request_id", requestID,
		"model", c.model,
		"prompt_length", len(prompt),
		"force_json", forceJSON)

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(callCtx, req)
	duration := time.Since(start)

	if err != nil {
		callErr := classify(dberrors.ServiceModel, op, callCtx, err)
		c.metrics.observe(dberrors.ServiceModel, c.model, status(callErr), duration)
		c.logger.Error("chat completion failed",
			"request_id", requestID,
			"duration_ms", duration.Milliseconds(),
			"status_code", callErr.StatusCode,
			"timeout", callErr.Timeout,
			"error", err)
		return "", callErr
	}

	if len(resp.Choices) == 0 {
		c.metrics.observe(dberrors.ServiceModel, c.model, "error", duration)
		c.logger.Error("no choices in chat completion",
			"request_id", requestID)
		return "", dberrors.NewModelError(op, 0, false, errors.New("no choices in response"))
	}

	c.metrics.observe(dberrors.ServiceModel, c.model, "success", duration)
	c.metrics.addTokens(c.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	content := resp.Choices[0].Message.Content
	c.logger.Info("chat completion succeeded",
		"request_id", requestID,
		"duration_ms", duration.Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"finish_reason", resp.Choices[0].FinishReason,
		"response_length", len(content))

	return content, nil
}

// GenerateImage requests req.Count images and returns their URLs.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (ImageResponse, error) {
	requestID := fmt.Sprintf("image_%d", time.Now().UnixNano())
	const op = "generate"

	if err := c.wait(ctx, requestID); err != nil {
		return ImageResponse{}, dberrors.NewImageError(op, 0, false, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.imageTimeout)
	defer cancel()

	c.logger.Debug("sending image generation",
		"request_id", requestID,
		"model", c.imageModel,
		"prompt_length", len(req.Prompt),
		"size", req.Size,
		"quality", req.Quality)

	start := time.Now()
	resp, err := c.api.CreateImage(callCtx, openai.ImageRequest{
		Prompt:         req.Prompt,
		Model:          c.imageModel,
		N:              req.Count,
		Size:           req.Size,
		Quality:        req.Quality,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	duration := time.Since(start)

	if err != nil {
		callErr := classify(dberrors.ServiceImage, op, callCtx, err)
		c.metrics.observe(dberrors.ServiceImage, c.imageModel, status(callErr), duration)
		c.logger.Error("image generation failed",
			"request_id", requestID,
			"duration_ms", duration.Milliseconds(),
			"status_code", callErr.StatusCode,
			"timeout", callErr.Timeout,
			"error", err)
		return ImageResponse{}, callErr
	}

	if len(resp.Data) == 0 {
		c.metrics.observe(dberrors.ServiceImage, c.imageModel, "error", duration)
		return ImageResponse{}, dberrors.NewImageError(op, 0, false, errors.New("no images in response"))
	}

	out := ImageResponse{Data: make([]ImageData, len(resp.Data))}
	for i, d := range resp.Data {
		out.Data[i] = ImageData{URL: d.URL, RevisedPrompt: d.RevisedPrompt}
	}

	c.metrics.observe(dberrors.ServiceImage, c.imageModel, "success", duration)
	c.logger.Info("image generation succeeded",
		"request_id", requestID,
		"duration_ms", duration.Milliseconds(),
		"images", len(out.Data))

	return out, nil
}

func (c *Client) wait(ctx context.Context, requestID string) error {
	start := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		c.logger.Error("rate limit wait failed",
			"request_id", requestID,
			"error", err)
		return fmt.Errorf("rate limit wait failed: %w", err)
	}
	c.logger.Debug("rate limit passed",
		"request_id", requestID,
		"wait_duration_ms", time.Since(start).Milliseconds())
	return nil
}

// classify turns a go-openai error into an ExternalCallError, keeping the
// HTTP status and marking deadline expiry as a timeout.
func classify(service, op string, callCtx context.Context, err error) *dberrors.ExternalCallError {
	statusCode := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		statusCode = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		statusCode = reqErr.HTTPStatusCode
	}

	timeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded)
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		timeout = true
	}

	return &dberrors.ExternalCallError{
		Service:    service,
		Op:         op,
		StatusCode: statusCode,
		Timeout:    timeout,
		Cause:      err,
	}
}

func status(err *dberrors.ExternalCallError) string {
	if err.Timeout {
		return "timeout"
	}
	return "error"
}
