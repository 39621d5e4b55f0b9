package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slog"
)

const DefaultBaseURL = "https://api.airtable.com/v0"

// Client шлюз к удаленному табличному API. Все вызовы проходят через общий gate.
type Client struct {
	client    *http.Client
	log       *slog.Logger
	gate      *gate
	calls     atomic.Int64
	baseURL   string
	baseID    string
	token     string
	userAgent string
	limits    Limits
}

type Option func(*Client)

// WithHTTPClient подменяет HTTP транспорт
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithBaseURL подменяет адрес API
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithLimits задает параметры ограничения частоты
func WithLimits(l Limits) Option {
	return func(c *Client) { c.limits = l }
}

// New создает шлюз для одной базы
func New(token, baseID string, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 2,
			},
		},
		log:       log.With("component", "airtable_client"),
		baseURL:   DefaultBaseURL,
		baseID:    baseID,
		token:     token,
		userAgent: "airsync/1.0",
		limits:    DefaultLimits(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.gate == nil {
		c.gate = newGate(c.limits, c.log)
	}
	return c
}

func withGate(g *gate) Option {
	return func(c *Client) { c.gate = g }
}

// Calls количество запросов этого клиента, включая повторные попытки
func (c *Client) Calls() int {
	return int(c.calls.Load())
}

// Pool выдает клиентов с одним общим gate: запросы всех клиентов пула
// выполняются по одному и с общим минимальным интервалом.
type Pool struct {
	log  *slog.Logger
	opts []Option
	gate *gate
}

func NewPool(log *slog.Logger, opts ...Option) *Pool {
	proto := New("", "", log, opts...)
	return &Pool{log: log, opts: opts, gate: proto.gate}
}

// Client создает клиента базы baseID поверх gate пула
func (p *Pool) Client(token, baseID string) *Client {
	return New(token, baseID, p.log, append(slices.Clone(p.opts), withGate(p.gate))...)
}

func (c *Client) GetBaseSchema(ctx context.Context) (*BaseSchema, error) {
	var schema BaseSchema
	path := "/meta/bases/" + url.PathEscape(c.baseID) + "/tables"
	if err := c.doRequest(ctx, http.MethodGet, path, nil, nil, &schema); err != nil {
		return nil, fmt.Errorf("failed to get base schema: %w", err)
	}
	return &schema, nil
}

func (c *Client) ListRecords(ctx context.Context, table string, opts ListOptions) (*ListResult, error) {
	var result ListResult
	if err := c.doRequest(ctx, http.MethodPost, c.tablePath(table)+"/listRecords", nil, opts, &result); err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", table, err)
	}
	return &result, nil
}

func (c *Client) GetRecord(ctx context.Context, table, id string) (*Record, error) {
	var rec Record
	if err := c.doRequest(ctx, http.MethodGet, c.tablePath(table)+"/"+url.PathEscape(id), nil, nil, &rec); err != nil {
		return nil, fmt.Errorf("failed to get %s record %s: %w", table, id, err)
	}
	return &rec, nil
}

func (c *Client) CreateRecords(ctx context.Context, table string, records []Record) ([]Record, error) {
	payload := recordsPayload{Records: make([]Record, len(records))}
	for i, r := range records {
		payload.Records[i] = Record{Fields: r.Fields}
	}

	var result recordsPayload
	if err := c.doRequest(ctx, http.MethodPost, c.tablePath(table), nil, payload, &result); err != nil {
		return nil, fmt.Errorf("failed to create %s records: %w", table, err)
	}
	return result.Records, nil
}

func (c *Client) UpdateRecords(ctx context.Context, table string, records []Record) ([]Record, error) {
	payload := recordsPayload{Records: make([]Record, len(records))}
	for i, r := range records {
		payload.Records[i] = Record{ID: r.ID, Fields: r.Fields}
	}

	var result recordsPayload
	if err := c.doRequest(ctx, http.MethodPatch, c.tablePath(table), nil, payload, &result); err != nil {
		return nil, fmt.Errorf("failed to update %s records: %w", table, err)
	}
	return result.Records, nil
}

func (c *Client) DeleteRecords(ctx context.Context, table string, ids []string) ([]DeletedRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	if len(ids) == 1 {
		var rec DeletedRecord
		if err := c.doRequest(ctx, http.MethodDelete, c.tablePath(table)+"/"+url.PathEscape(ids[0]), nil, nil, &rec); err != nil {
			return nil, fmt.Errorf("failed to delete %s record %s: %w", table, ids[0], err)
		}
		return []DeletedRecord{rec}, nil
	}

	query := url.Values{}
	for _, id := range ids {
		query.Add("records[]", id)
	}
	var result deletedPayload
	if err := c.doRequest(ctx, http.MethodDelete, c.tablePath(table), query, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to delete %s records: %w", table, err)
	}
	return result.Records, nil
}

func (c *Client) tablePath(table string) string {
	return "/" + url.PathEscape(c.baseID) + "/" + url.PathEscape(table)
}

func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	status, respBody, err := c.gate.do(ctx, func(ctx context.Context) (int, []byte, error) {
		c.calls.Add(1)
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("User-Agent", c.userAgent)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		c.log.Debug("Sending request", "method", method, "path", path)

		resp, err := c.client.Do(req)
		if err != nil {
			return 0, nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
		}
		return resp.StatusCode, data, nil
	})
	if err != nil {
		return err
	}

	if status >= http.StatusBadRequest {
		return parseError(status, respBody)
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
