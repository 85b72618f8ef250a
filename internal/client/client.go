package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"order-workflow/internal/apperror"
)

// DefaultTimeout bounds every API call.
const DefaultTimeout = 30 * time.Second

// Client is the REST client of the pedidos API. Every call resolves with the
// resource or fails with an *apperror.Error carrying the server message.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenStore
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the API at baseURL.
func New(baseURL string, tokens TokenStore, opts ...Option) *Client {
	if tokens == nil {
		tokens = NewMemoryTokenStore()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		tokens:  tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tokens returns the store the client reads its bearer token from.
func (c *Client) Tokens() TokenStore {
	return c.tokens
}

// errorBody covers both {"error": ...} and {"detail": ...} shapes.
type errorBody struct {
	Error   string            `json:"error"`
	Detail  string            `json:"detail"`
	Code    string            `json:"code"`
	Details []apperror.Detail `json:"details"`
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
}

func jsonRequest(method, path string, payload interface{}) (request, error) {
	req := request{method: method, path: path}
	if payload == nil {
		return req, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return req, fmt.Errorf("failed to encode request: %w", err)
	}
	req.body = bytes.NewReader(raw)
	req.contentType = "application/json"
	return req, nil
}

// send performs the request and returns the response when the status is 2xx.
func (c *Client) send(ctx context.Context, r request) (*http.Response, error) {
	endpoint := c.baseURL + r.path
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, r.body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	token, err := c.tokens.Load()
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperror.Newf(apperror.KindServer, "No se pudo conectar con el servidor: %v", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, c.decodeError(resp)
}

func (c *Client) decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var body errorBody
	_ = json.Unmarshal(raw, &body)

	message := body.Error
	if message == "" {
		message = body.Detail
	}
	if message == "" {
		message = strings.TrimSpace(string(raw))
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		_ = c.tokens.Clear()
		return apperror.SessionExpired(message).WithDetails(body.Details...)
	}

	kind := apperror.KindServer
	if body.Code != "" {
		kind = apperror.ParseKind(body.Code)
	}
	return apperror.New(kind, message).WithDetails(body.Details...)
}

// doJSON sends r and decodes a JSON response into out (when non-nil).
func (c *Client) doJSON(ctx context.Context, r request, out interface{}) error {
	resp, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperror.Newf(apperror.KindServer, "Respuesta no válida del servidor: %v", err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, path string, payload, out interface{}) error {
	r, err := jsonRequest(method, path, payload)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, r, out)
}

// download returns the body and the filename announced in Content-Disposition.
func (c *Client) download(ctx context.Context, r request) (string, []byte, error) {
	resp, err := c.send(ctx, r)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read download: %w", err)
	}
	var filename string
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		filename = params["filename"]
	}
	return filename, data, nil
}

func escape(id string) string {
	return url.PathEscape(id)
}
