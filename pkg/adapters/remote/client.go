// Package remote implements the classifier ports against a classifier
// service reachable over HTTP.
//
// The service exposes:
//
//	GET  {base}/ready       -> truthy JSON once a model is loaded
//	GET  {base}/tree        -> structured tree, or null
//	POST {base}/classify    -> {"label": ..., "path": [...]} for {"text": ...}
//	POST {base}/load-model  -> accepts a multipart "file" with the model text
//	POST {base}/train       -> trains on a multipart CSV "file" and "labelCol"
//	POST {base}/metrics     -> scores the model on a multipart CSV "file" and "labelCol"
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/sapling/internal/compiler"
	"github.com/aretw0/sapling/pkg/domain"
	"github.com/aretw0/sapling/pkg/ports"
	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultMaxTries = 3

	// maxErrorBody caps how much of an error response is quoted back.
	maxErrorBody = 512
)

var (
	_ ports.Classifier    = (*Client)(nil)
	_ ports.ModelUploader = (*Client)(nil)
	_ ports.Trainer       = (*Client)(nil)
	_ ports.Evaluator     = (*Client)(nil)
)

// Client talks to a remote classifier service.
type Client struct {
	baseURL  string
	http     *http.Client
	logger   *slog.Logger
	maxTries uint
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.http.Timeout = d
		}
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// WithMaxTries bounds how often idempotent reads are attempted.
func WithMaxTries(n uint) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.maxTries = n
		}
	}
}

// New creates a client for the service rooted at baseURL (e.g. "http://localhost:5000/api").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: DefaultTimeout},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxTries: DefaultMaxTries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service root the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ready reports whether the service has a model loaded.
func (c *Client) Ready(ctx context.Context) (bool, error) {
	body, err := c.get(ctx, "/ready")
	if err != nil {
		return false, err
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return false, fmt.Errorf("%w: invalid ready response: %v", domain.ErrClassifierUnavailable, err)
	}
	return truthy(v), nil
}

// Tree fetches the service's current tree. A null response yields a nil tree.
func (c *Client) Tree(ctx context.Context) (*domain.Tree, error) {
	body, err := c.get(ctx, "/tree")
	if err != nil {
		return nil, err
	}
	return compiler.DecodeJSON(body)
}

type classifyRequest struct {
	Text string `json:"text"`
}

// Classify sends text to the service and returns its label and decision path.
func (c *Client) Classify(ctx context.Context, text string) (domain.Classification, error) {
	payload, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return domain.Classification{}, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(payload))
	if err != nil {
		return domain.Classification{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return domain.Classification{}, err
	}

	var result domain.Classification
	if err := json.Unmarshal(body, &result); err != nil {
		return domain.Classification{}, fmt.Errorf("invalid classify response: %w", err)
	}
	return result, nil
}

// UploadModel sends model text to the service as a multipart "file" field.
func (c *Client) UploadModel(ctx context.Context, name, text string) error {
	if name == "" {
		name = "model.txt"
	}
	_, err := c.upload(ctx, "/load-model", name, []byte(text), nil)
	return err
}

// Train sends a labelled CSV dataset to the service, which replaces its model
// with one trained on it. The trained tree is fetched with Tree.
func (c *Client) Train(ctx context.Context, name string, data []byte, labelCol string) error {
	if name == "" {
		name = "train.csv"
	}
	_, err := c.upload(ctx, "/train", name, data, map[string]string{"labelCol": labelColumn(labelCol)})
	return err
}

// Evaluate sends a labelled CSV dataset to the service and returns how the
// current model scores on it.
func (c *Client) Evaluate(ctx context.Context, name string, data []byte, labelCol string) (domain.Metrics, error) {
	if name == "" {
		name = "test.csv"
	}
	body, err := c.upload(ctx, "/metrics", name, data, map[string]string{"labelCol": labelColumn(labelCol)})
	if err != nil {
		return domain.Metrics{}, err
	}

	var m domain.Metrics
	if err := json.Unmarshal(body, &m); err != nil {
		return domain.Metrics{}, fmt.Errorf("invalid metrics response: %w", err)
	}
	return m, nil
}

// upload posts data as the multipart "file" field, followed by fields.
func (c *Client) upload(ctx context.Context, path, name string, data []byte, fields map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to build upload: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

func labelColumn(col string) string {
	if col == "" {
		return domain.DefaultLabelColumn
	}
	return col
}

// get performs an idempotent read, retrying transport failures and 5xx responses.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	op := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
		}
		body, err := c.do(req)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && se.Code < 500 {
				return nil, backoff.Permanent(err)
			}
			c.logger.Debug("classifier request failed", "path", path, "err", err)
			return nil, err
		}
		return body, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second
	return backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxTries(c.maxTries))
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrClassifierUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", domain.ErrClassifierUnavailable, err)
	}

	c.logger.Debug("classifier request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: errorMessage(body)}
	}
	return body, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case map[string]any:
		if ready, ok := t["ready"]; ok {
			return truthy(ready)
		}
		return true
	default:
		return true
	}
}

// errorMessage extracts {"error": "..."} bodies, falling back to the raw text.
func errorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	return msg
}
