// Package supabase implements the remote gateway against a hosted Supabase
// project: PostgREST for tables, GoTrue for sessions, Realtime for change
// feeds and Edge Functions for server-side helpers.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"portfolio-hub/internal/remote"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// Config holds client configuration
type Config struct {
	URL        string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     logrus.FieldLogger
}

// Client talks to one Supabase project
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        logrus.FieldLogger

	mu      sync.RWMutex
	session *remote.Session

	realtime *realtime
}

var _ remote.Gateway = (*Client)(nil)
var _ remote.Invoker = (*Client)(nil)

// New creates a new Supabase client
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase url is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase api key is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		log:        log.WithField("component", "supabase"),
	}
	c.realtime = newRealtime(c.baseURL, c.apiKey, c.log)
	return c, nil
}

func (c *Client) Select(ctx context.Context, table string, q remote.Query) ([]remote.Row, error) {
	params := url.Values{}
	if len(q.Columns) > 0 {
		params.Set("select", strings.Join(q.Columns, ","))
	} else {
		params.Set("select", "*")
	}
	addFilters(params, q.Filters)
	if len(q.AnyOf) > 0 {
		parts := make([]string, 0, len(q.AnyOf))
		for _, f := range q.AnyOf {
			parts = append(parts, f.Column+"."+operand(f, true))
		}
		params.Set("or", "("+strings.Join(parts, ",")+")")
	}
	if len(q.Order) > 0 {
		orders := make([]string, 0, len(q.Order))
		for _, o := range q.Order {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			orders = append(orders, o.Column+"."+dir)
		}
		params.Set("order", strings.Join(orders, ","))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	body, err := c.do(ctx, "select", table, http.MethodGet, "/rest/v1/"+table, params, nil, "")
	if err != nil {
		return nil, err
	}
	return decodeRows("select", table, body)
}

func (c *Client) Insert(ctx context.Context, table string, rows ...remote.Row) ([]remote.Row, error) {
	body, err := c.do(ctx, "insert", table, http.MethodPost, "/rest/v1/"+table, nil, rows, "return=representation")
	if err != nil {
		return nil, err
	}
	return decodeRows("insert", table, body)
}

func (c *Client) Update(ctx context.Context, table string, patch remote.Row, filters ...remote.Filter) ([]remote.Row, error) {
	params := url.Values{}
	addFilters(params, filters)
	body, err := c.do(ctx, "update", table, http.MethodPatch, "/rest/v1/"+table, params, patch, "return=representation")
	if err != nil {
		return nil, err
	}
	return decodeRows("update", table, body)
}

func (c *Client) Delete(ctx context.Context, table string, filters ...remote.Filter) error {
	params := url.Values{}
	addFilters(params, filters)
	_, err := c.do(ctx, "delete", table, http.MethodDelete, "/rest/v1/"+table, params, nil, "return=minimal")
	return err
}

func (c *Client) Upsert(ctx context.Context, table string, rows []remote.Row, conflictKey string) ([]remote.Row, error) {
	params := url.Values{}
	if conflictKey != "" {
		params.Set("on_conflict", conflictKey)
	}
	body, err := c.do(ctx, "upsert", table, http.MethodPost, "/rest/v1/"+table, params, rows, "resolution=merge-duplicates,return=representation")
	if err != nil {
		return nil, err
	}
	return decodeRows("upsert", table, body)
}

// Invoke calls an Edge Function and returns its JSON object response
func (c *Client) Invoke(ctx context.Context, function string, payload any) (remote.Row, error) {
	body, err := c.do(ctx, "invoke", function, http.MethodPost, "/functions/v1/"+function, nil, payload, "")
	if err != nil {
		return nil, err
	}
	var row remote.Row
	if err := json.Unmarshal(body, &row); err != nil {
		return nil, &remote.Error{Op: "invoke", Table: function, Message: "decode response: " + err.Error()}
	}
	return row, nil
}

func (c *Client) Subscribe(ctx context.Context, table string, events []remote.EventType, fn func(remote.ChangeEvent)) (remote.Subscription, error) {
	return c.realtime.subscribe(ctx, table, events, fn)
}

func (c *Client) Unsubscribe(_ context.Context, sub remote.Subscription) error {
	return c.realtime.unsubscribe(sub)
}

// Close drops the realtime connection
func (c *Client) Close() error {
	return c.realtime.close()
}

func addFilters(params url.Values, filters []remote.Filter) {
	for _, f := range filters {
		params.Add(f.Column, operand(f, false))
	}
}

// operand renders "op.value" the way PostgREST expects it. Inside an or=()
// group reserved characters must be quoted.
func operand(f remote.Filter, grouped bool) string {
	if f.Op == remote.OpIn {
		vals := make([]string, 0, len(f.Values()))
		for _, v := range f.Values() {
			vals = append(vals, quote(remote.Text(v)))
		}
		return "in.(" + strings.Join(vals, ",") + ")"
	}
	v := remote.Text(f.Value)
	if grouped {
		v = quote(v)
	}
	return string(f.Op) + "." + v
}

func quote(v string) string {
	if strings.ContainsAny(v, ",.:()\"") {
		return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	return v
}

func (c *Client) authHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	token := c.apiKey
	c.mu.RLock()
	if c.session != nil && c.session.AccessToken != "" {
		token = c.session.AccessToken
	}
	c.mu.RUnlock()
	req.Header.Set("Authorization", "Bearer "+token)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
}

func (c *Client) do(ctx context.Context, op, table, method, path string, params url.Values, payload any, prefer string) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, &remote.Error{Op: op, Table: table, Message: "encode payload: " + err.Error()}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, &remote.Error{Op: op, Table: table, Message: "create request: " + err.Error()}
	}
	c.authHeaders(req)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, remote.Unavailable(op, table, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, remote.Unavailable(op, table, err)
	}
	if resp.StatusCode >= 400 {
		return nil, responseError(op, table, resp.StatusCode, data)
	}
	return data, nil
}

// responseError reads the message and code out of the error envelopes
// PostgREST, GoTrue and Edge Functions return.
func responseError(op, table string, status int, body []byte) *remote.Error {
	message := ""
	for _, path := range []string{"message", "msg", "error_description", "error"} {
		if v := gjson.GetBytes(body, path); v.Exists() && v.Type == gjson.String {
			message = v.String()
			break
		}
	}
	if message == "" {
		message = http.StatusText(status)
	}
	code := gjson.GetBytes(body, "code").String()
	if code == "" {
		code = gjson.GetBytes(body, "error_code").String()
	}
	return remote.StatusError(op, table, status, code, message)
}

func decodeRows(op, table string, body []byte) ([]remote.Row, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var rows []remote.Row
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &remote.Error{Op: op, Table: table, Message: "decode rows: " + err.Error()}
	}
	return rows, nil
}
