// Package api is the HTTP client of the remote record store. It implements
// syncer.RemoteStore and the connectivity health check.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iudanet/fitsync/internal/client/syncer"
	"github.com/iudanet/fitsync/internal/models"
	"github.com/iudanet/fitsync/pkg/api"
)

const (
	// DefaultTimeout общий таймаут HTTP клиента. Engine дополнительно
	// ограничивает каждую операцию своим remote timeout
	DefaultTimeout = 30 * time.Second
	// DefaultUserAgent отправляется, если не задан WithUserAgent
	DefaultUserAgent = "fitsync-client"

	// maxResponseBytes ограничивает чтение ответа сервера
	maxResponseBytes = 8 << 20
)

// StatusError описывает ответ сервера с кодом вне диапазона 2xx
type StatusError struct {
	Message    string
	Body       []byte
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, string(e.Body))
}

// Client talks to the remote record store over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	userAgent  string
}

var _ syncer.RemoteStore = (*Client)(nil)

// Option настраивает Client
type Option func(*Client)

// WithHTTPClient подменяет HTTP клиент (транспорт, таймауты)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithUserAgent задает заголовок User-Agent
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewClient создает API клиент. token передается как Bearer в каждом запросе.
// Редиректы не выполняются: токен не должен уходить на другой адрес
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		userAgent: DefaultUserAgent,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch получает текущую серверную версию записи
func (c *Client) Fetch(ctx context.Context, entityType, id string) (*models.Record, error) {
	var resp api.Record
	err := c.doRequest(ctx, http.MethodGet, recordPath(entityType, id), nil, &resp)
	if err != nil {
		return nil, c.mapError(err, "fetch")
	}
	return RecordFromAPI(&resp), nil
}

// Upsert отправляет запись. Сервер принимает её, только если версия больше сохранённой.
func (c *Client) Upsert(ctx context.Context, rec *models.Record) (*models.Record, error) {
	var resp api.Record
	err := c.doRequest(ctx, http.MethodPut, recordPath(rec.EntityType, rec.ID), RecordToAPI(rec), &resp)
	if err != nil {
		return nil, c.mapError(err, "upsert")
	}
	return RecordFromAPI(&resp), nil
}

// Delete удаляет запись, если сохранённая версия не новее baseVersion
func (c *Client) Delete(ctx context.Context, entityType, id string, baseVersion int64) error {
	path := recordPath(entityType, id) + "?base_version=" + strconv.FormatInt(baseVersion, 10)
	if err := c.doRequest(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return c.mapError(err, "delete")
	}
	return nil
}

// Check проверяет доступность сервера
func (c *Client) Check(ctx context.Context) error {
	var resp api.HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/health", nil, &resp); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.Status != "ok" {
		return fmt.Errorf("health check failed: status %q", resp.Status)
	}
	return nil
}

// mapError переводит HTTP-ответы в ошибки протокола удалённого хранилища
func (c *Client) mapError(err error, op string) error {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return fmt.Errorf("%s request failed: %w", op, err)
	}

	switch statusErr.StatusCode {
	case http.StatusNotFound:
		return syncer.ErrNotFound
	case http.StatusConflict:
		var conflict api.ConflictResponse
		if jsonErr := json.Unmarshal(statusErr.Body, &conflict); jsonErr != nil || conflict.Current == nil {
			return fmt.Errorf("%s request failed: conflict without current record: %w", op, err)
		}
		return &syncer.VersionConflictError{Remote: RecordFromAPI(conflict.Current)}
	default:
		return fmt.Errorf("%s request failed: %w", op, err)
	}
}

// doRequest отправляет body как JSON и декодирует 2xx ответ в result
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	reqURL := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if len(respBody) > maxResponseBytes {
		return fmt.Errorf("response body exceeds %d bytes", maxResponseBytes)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: respBody}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			statusErr.Message = errResp.Message
			if statusErr.Message == "" {
				statusErr.Message = errResp.Error
			}
		}
		return statusErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func recordPath(entityType, id string) string {
	return "/api/v1/records/" + url.PathEscape(entityType) + "/" + url.PathEscape(id)
}
