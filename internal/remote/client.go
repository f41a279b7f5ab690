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

	"quiz-challenge/internal/domain"
)

const (
	fetchAllPath       = "/questions/fetchAll"
	calculateScorePath = "/questions/calculateScore"

	opFetchAll       = "fetch_all"
	opCalculateScore = "calculate_score"
)

// Client talks to the remote question service. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	metrics *Metrics
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every request made by the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// WithMetrics records request counts and latencies.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New builds a client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("question service base url not configured")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid question service base url %q", baseURL)
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NetworkError reports a transport failure.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, domain.ErrNetwork, e.Err)
}

func (e *NetworkError) Unwrap() []error { return []error{domain.ErrNetwork, e.Err} }

// ServiceError reports a non-2xx status or a body that could not be used.
// StatusCode is zero when the status was fine but the body was not.
type ServiceError struct {
	Op         string
	StatusCode int
	Reason     string
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 && e.Reason == "" {
		return fmt.Sprintf("%s: %v: status %d", e.Op, domain.ErrService, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, domain.ErrService, e.Reason)
}

func (e *ServiceError) Unwrap() error { return domain.ErrService }

// FetchAllQuestions returns every question the service offers. Both the
// {"data": [...]} envelope and a bare array are accepted.
func (c *Client) FetchAllQuestions(ctx context.Context) ([]domain.Question, error) {
	body, err := c.do(ctx, opFetchAll, http.MethodGet, fetchAllPath, nil)
	if err != nil {
		return nil, err
	}
	questions, err := decodeQuestions(body)
	if err != nil {
		return nil, c.fail(opFetchAll, &ServiceError{Op: opFetchAll, Reason: err.Error()})
	}
	if err := domain.ValidateQuestions(questions); err != nil {
		return nil, c.fail(opFetchAll, &ServiceError{Op: opFetchAll, Reason: "invalid question set: " + err.Error()})
	}
	c.metrics.count(opFetchAll, outcomeOK)
	return questions, nil
}

// SubmitAnswers sends answers for scoring. The caller is responsible for
// sending exactly one answer per question.
func (c *Client) SubmitAnswers(ctx context.Context, answers []domain.Answer) (domain.ScoreResult, error) {
	if answers == nil {
		answers = []domain.Answer{}
	}
	payload, err := json.Marshal(struct {
		Answers []domain.Answer `json:"answers"`
	}{Answers: answers})
	if err != nil {
		return domain.ScoreResult{}, fmt.Errorf("encode answers: %w", err)
	}

	body, err := c.do(ctx, opCalculateScore, http.MethodPost, calculateScorePath, payload)
	if err != nil {
		return domain.ScoreResult{}, err
	}

	var envelope struct {
		Data *domain.ScoreResult `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return domain.ScoreResult{}, c.fail(opCalculateScore, &ServiceError{Op: opCalculateScore, Reason: "decode score: " + err.Error()})
	}
	if envelope.Data == nil {
		return domain.ScoreResult{}, c.fail(opCalculateScore, &ServiceError{Op: opCalculateScore, Reason: "response has no data"})
	}
	if err := envelope.Data.CheckBounds(); err != nil {
		return domain.ScoreResult{}, c.fail(opCalculateScore, &ServiceError{Op: opCalculateScore, Reason: "invalid score: " + err.Error()})
	}
	// rounded percentages and partial details are shown as the service sent them
	if err := envelope.Data.Validate(); err != nil {
		slog.Warn("score result inconsistent", "error", err)
	}
	c.metrics.count(opCalculateScore, outcomeOK)
	return *envelope.Data, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.observe(op, time.Since(start))
	if err != nil {
		return nil, c.fail(op, &NetworkError{Op: op, Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, c.fail(op, &ServiceError{Op: op, StatusCode: resp.StatusCode})
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(op, &NetworkError{Op: op, Err: err})
	}
	return body, nil
}

func (c *Client) fail(op string, err error) error {
	switch err.(type) {
	case *NetworkError:
		c.metrics.count(op, outcomeNetwork)
	default:
		c.metrics.count(op, outcomeService)
	}
	return err
}

// decodeQuestions normalizes the two response shapes of fetchAll.
func decodeQuestions(body []byte) ([]domain.Question, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty response")
	}

	var questions []domain.Question
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &questions); err != nil {
			return nil, fmt.Errorf("decode questions: %w", err)
		}
		return questions, nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil, fmt.Errorf("response has no data")
	}
	if err := json.Unmarshal(envelope.Data, &questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	return questions, nil
}
