package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default configuration values.
const (
	defaultPollInterval = 5 * time.Second
	defaultMaxWait      = 10 * time.Minute
	defaultHTTPTimeout  = 60 * time.Second
)

// Config — конфигурация Client.
type Config struct {
	BaseURL string // адрес сервиса (обязательно)
	APIKey  string // передаётся в заголовке x-api-key

	PollInterval time.Duration // интервал опроса статуса задачи (default: 5s)
	MaxWait      time.Duration // максимальное ожидание задачи (default: 10m)
	HTTPTimeout  time.Duration // таймаут одного HTTP-запроса (default: 60s)

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client — HTTP-клиент сервиса обогащения.
//
// Enrich работает асинхронно: POST /enrich-lead-async возвращает task_id,
// затем GET /job-status/{task_id} опрашивается до завершения.
// FindEmail — синхронный POST /find-email.
type Client struct {
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	maxWait      time.Duration
	httpTimeout  time.Duration
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewClient создаёт новый Client.
func NewClient(cfg Config) *Client {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}

	httpTimeout := cfg.HTTPTimeout
	if httpTimeout <= 0 {
		httpTimeout = defaultHTTPTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		pollInterval: pollInterval,
		maxWait:      maxWait,
		httpTimeout:  httpTimeout,
		httpClient:   httpClient,
		logger:       logger,
	}
}

// Enrich отправляет асинхронную задачу и ждёт её результата.
func (c *Client) Enrich(ctx context.Context, lead Lead, fields []Field) (map[string]any, error) {
	structSpec := make(map[string]string, len(fields))
	for _, f := range fields {
		structSpec[f.Name] = f.Description
	}

	var submitted struct {
		TaskID string `json:"task_id"`
		ID     string `json:"id"`
	}
	body := map[string]any{"lead_info": lead, "struct": structSpec}
	if err := c.do(ctx, http.MethodPost, "/enrich-lead-async", body, &submitted); err != nil {
		return nil, err
	}

	taskID := submitted.TaskID
	if taskID == "" {
		taskID = submitted.ID
	}
	if taskID == "" {
		return nil, fmt.Errorf("%w: response has no task_id", ErrRequest)
	}

	return c.waitForJob(ctx, taskID)
}

// waitForJob опрашивает статус задачи до завершения, ошибки или MaxWait.
func (c *Client) waitForJob(ctx context.Context, taskID string) (map[string]any, error) {
	deadline := time.NewTimer(c.maxWait)
	defer deadline.Stop()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		var status map[string]any
		if err := c.do(ctx, http.MethodGet, "/job-status/"+url.PathEscape(taskID), nil, &status); err != nil {
			return nil, err
		}

		state, _ := status["status"].(string)
		switch strings.ToLower(state) {
		case "completed", "complete", "done", "success":
			return jobData(status), nil
		case "failed", "error":
			msg, _ := status["error"].(string)
			if msg == "" {
				msg = "job failed"
			}
			c.logger.Warn("enrichment job failed", "task_id", taskID, "error", msg)
			return nil, fmt.Errorf("%w: %s", ErrJobFailed, msg)
		}

		select {
		case <-ticker.C:
		case <-deadline.C:
			c.logger.Warn("enrichment job timed out", "task_id", taskID, "max_wait", c.maxWait)
			return nil, fmt.Errorf("%w: %s after %s", ErrJobTimeout, taskID, c.maxWait)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// jobData извлекает данные из ответа job-status: result, затем data,
// иначе весь ответ.
func jobData(status map[string]any) map[string]any {
	for _, key := range []string{"result", "data"} {
		if m, ok := status[key].(map[string]any); ok {
			return m
		}
	}
	return status
}

// FindEmail ищет email для lead.
func (c *Client) FindEmail(ctx context.Context, lead Lead, mode string) (map[string]any, error) {
	var result map[string]any
	body := map[string]any{"lead": lead, "mode": mode}
	if err := c.do(ctx, http.MethodPost, "/find-email", body, &result); err != nil {
		return nil, err
	}
	if result == nil {
		result = make(map[string]any)
	}
	return result, nil
}

// do выполняет HTTP-запрос к сервису и декодирует JSON-ответ в out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.baseURL == "" {
		return Permanent(ErrNotConfigured)
	}

	ctx, cancel := context.WithTimeout(ctx, c.httpTimeout)
	defer cancel()

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return Permanent(fmt.Errorf("%w: marshal body: %v", ErrRequest, err))
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return Permanent(fmt.Errorf("%w: create request: %v", ErrRequest, err))
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequest, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrRequest, err)
	}

	if resp.StatusCode >= 400 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 200)}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrRequest, err)
		}
	}
	return nil
}

// truncate обрезает строку до maxLen символов.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
