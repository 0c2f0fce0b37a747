// Package webhook calls user-configured HTTP endpoints from automations.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dukex/flowbase/pkg/log"
	"github.com/dukex/flowbase/pkg/models"
	"github.com/dukex/flowbase/pkg/protocol"
	"github.com/dukex/flowbase/pkg/template"
	"github.com/itchyny/gojq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultTimeoutSeconds = 30
	maxResponseBytes      = 1 << 20
	maxErrorTextLength    = 500
)

var (
	// ErrWebhookURLInvalid is returned when the rendered URL is not an absolute http(s) URL.
	ErrWebhookURLInvalid = errors.New("invalid webhook url")
	// ErrHTTPServerError is returned when the server keeps answering with 5xx.
	ErrHTTPServerError = errors.New("server error during webhook call")
	// ErrWebhookRejected is returned for non-2xx responses.
	ErrWebhookRejected = errors.New("webhook rejected")
	// ErrResponseQuery is returned when the response_query program fails.
	ErrResponseQuery = errors.New("response query failed")
)

// Action performs send_webhook actions.
type Action struct {
	client *http.Client
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error

	mu      sync.RWMutex
	queries map[string]*gojq.Code
}

// NewClient builds the HTTP client used for webhooks, traced through otelhttp.
// Timeouts are set per request from the action configuration.
func NewClient() *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func NewAction(client *http.Client, logger *slog.Logger) *Action {
	if client == nil {
		client = NewClient()
	}

	return &Action{
		client:  client,
		logger:  log.Module(logger, "webhook_action"),
		sleep:   sleepContext,
		queries: make(map[string]*gojq.Code),
	}
}

type payload struct {
	AutomationID   string         `json:"automation_id"`
	AutomationName string         `json:"automation_name"`
	Record         map[string]any `json:"record"`
}

// SendWebhook performs the request with retry on transport errors and 5xx.
func (a *Action) SendWebhook(ctx context.Context, action models.SendWebhookAction, actx *protocol.ActionContext) models.ActionResult {
	logger := a.logger.With("action_id", action.ID, "automation_id", actx.AutomationID())

	req, err := prepare(action, actx)
	if err != nil {
		return models.ActionFailed(err)
	}

	target, method, headers, body := req.url, req.method, req.headers, req.body

	timeout := time.Duration(action.TimeoutSeconds) * time.Second
	if action.TimeoutSeconds <= 0 {
		timeout = defaultTimeoutSeconds * time.Second
	}

	attempts := max(action.Retry.Attempts, 1)

	var (
		lastErr  error
		response *webhookResponse
	)

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			logger.InfoContext(ctx, "Retrying webhook", "attempt", attempt, "attempts", attempts)

			err := a.sleep(ctx, time.Duration(action.Retry.DelaySeconds)*time.Second)
			if err != nil {
				lastErr = err

				break
			}
		}

		response, err = a.do(ctx, method, target, headers, body, timeout)
		if err != nil {
			lastErr = err

			continue
		}

		if response.StatusCode >= http.StatusInternalServerError && attempt < attempts {
			lastErr = fmt.Errorf("%w: status %d", ErrHTTPServerError, response.StatusCode)
			response = nil

			continue
		}

		break
	}

	if response == nil {
		logger.WarnContext(ctx, "Webhook failed", "url", target, "error", lastErr)

		return models.ActionFailed(fmt.Errorf("all %d attempts failed: %w", attempts, lastErr))
	}

	output := response.output()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		logger.WarnContext(ctx, "Webhook returned non-2xx status", "url", target, "status_code", response.StatusCode)

		return models.ActionFailedWithOutput(fmt.Errorf("%w: %s", ErrWebhookRejected, response.errorText()), output)
	}

	if action.ResponseQuery != "" {
		shaped, err := a.query(ctx, action.ResponseQuery, output)
		if err != nil {
			return models.ActionFailedWithOutput(err, output)
		}

		logger.InfoContext(ctx, "Webhook completed", "status_code", response.StatusCode)

		return models.ActionSucceeded(shaped)
	}

	logger.InfoContext(ctx, "Webhook completed", "status_code", response.StatusCode, "body_length", len(response.raw))

	return models.ActionSucceeded(output)
}

type request struct {
	method  string
	url     string
	headers map[string]string
	body    []byte
}

func prepare(action models.SendWebhookAction, actx *protocol.ActionContext) (request, error) {
	target := strings.TrimSpace(template.Render(action.URL, actx.Record))

	err := validateURL(target)
	if err != nil {
		return request{}, err
	}

	method := strings.ToUpper(strings.TrimSpace(action.Method))
	if method == "" {
		method = http.MethodPost
	}

	body, err := buildBody(action, actx)
	if err != nil {
		return request{}, err
	}

	return request{
		method:  method,
		url:     target,
		headers: template.RenderMap(action.Headers, actx.Record),
		body:    body,
	}, nil
}

// Preview renders the request a send_webhook action would make without
// sending it.
func Preview(action models.SendWebhookAction, actx *protocol.ActionContext) (map[string]any, error) {
	req, err := prepare(action, actx)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"method":  req.method,
		"url":     req.url,
		"headers": req.headers,
		"body":    string(req.body),
	}, nil
}

type webhookResponse struct {
	StatusCode int
	Status     string
	Headers    http.Header
	raw        []byte
}

func (a *Action) do(
	ctx context.Context,
	method, target string,
	headers map[string]string,
	body []byte,
	timeout time.Duration,
) (*webhookResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if len(body) > 0 && method != http.MethodGet && method != http.MethodHead {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &webhookResponse{StatusCode: resp.StatusCode, Status: resp.Status, Headers: resp.Header, raw: raw}, nil
}

func (r *webhookResponse) body() any {
	var body any

	err := json.Unmarshal(r.raw, &body)
	if err != nil {
		return string(r.raw)
	}

	return body
}

func (r *webhookResponse) output() map[string]any {
	headers := make(map[string]any, len(r.Headers))
	for key := range r.Headers {
		headers[key] = r.Headers.Get(key)
	}

	return map[string]any{
		"status_code": r.StatusCode,
		"body":        r.body(),
		"headers":     headers,
	}
}

// errorText is the response text, or the status line for empty bodies.
func (r *webhookResponse) errorText() string {
	text := strings.TrimSpace(string(r.raw))
	if text == "" {
		return r.Status
	}

	if len(text) > maxErrorTextLength {
		return text[:maxErrorTextLength] + "..."
	}

	return text
}

func (a *Action) query(ctx context.Context, expression string, input map[string]any) (any, error) {
	code, err := a.compile(expression)
	if err != nil {
		return nil, err
	}

	iter := code.RunWithContext(ctx, input)

	var results []any

	for {
		value, ok := iter.Next()
		if !ok {
			break
		}

		if err, isErr := value.(error); isErr {
			return nil, fmt.Errorf("%w: %w", ErrResponseQuery, err)
		}

		results = append(results, value)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

func (a *Action) compile(expression string) (*gojq.Code, error) {
	a.mu.RLock()
	code, ok := a.queries[expression]
	a.mu.RUnlock()

	if ok {
		return code, nil
	}

	parsed, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResponseQuery, err)
	}

	code, err = gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResponseQuery, err)
	}

	a.mu.Lock()
	a.queries[expression] = code
	a.mu.Unlock()

	return code, nil
}

// buildBody renders the configured body, or serializes the automation and the
// in-flight record when no body is configured.
func buildBody(action models.SendWebhookAction, actx *protocol.ActionContext) ([]byte, error) {
	if strings.TrimSpace(action.Body) != "" {
		return []byte(template.Render(action.Body, actx.Record)), nil
	}

	body, err := json.Marshal(payload{
		AutomationID:   actx.AutomationID(),
		AutomationName: actx.AutomationName(),
		Record:         actx.Record.ToMap(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	return body, nil
}

func validateURL(target string) error {
	if target == "" {
		return fmt.Errorf("%w: empty url", ErrWebhookURLInvalid)
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWebhookURLInvalid, err)
	}

	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%w: %q", ErrWebhookURLInvalid, target)
	}

	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
