// Package bitable mirrors rows into a Feishu/Lark bitable table over its
// open API.
package bitable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sheetsql/internal/dataset"
	"sheetsql/internal/logger"
)

const DefaultBaseURL = "https://open.feishu.cn"

// Config identifies the app and the target table.
type Config struct {
	BaseURL   string
	AppID     string
	AppSecret string
	AppToken  string
	TableID   string
}

// Client talks to one table. It is not safe for concurrent use.
type Client struct {
	cfg   Config
	http  *http.Client
	log   *logger.Logger
	token string
}

// NewClient returns a client; a nil httpClient uses a 30 second timeout.
func NewClient(cfg Config, log *logger.Logger, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg, http: httpClient, log: log}
}

// envelope is the common response wrapper of the open API.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// APIError is a non-zero code returned by the API.
type APIError struct {
	Status int
	Code   int
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bitable api: status %d code %d: %s", e.Status, e.Code, e.Msg)
}

func (c *Client) do(ctx context.Context, method, path string, body any, auth bool, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if out == nil {
		var env envelope
		out = &env
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{Status: resp.StatusCode, Code: -1, Msg: strings.TrimSpace(string(raw))}
	}
	code, msg := 0, ""
	switch v := out.(type) {
	case *envelope:
		code, msg = v.Code, v.Msg
	case *tokenResponse:
		code, msg = v.Code, v.Msg
	}
	if resp.StatusCode != http.StatusOK || code != 0 {
		return &APIError{Status: resp.StatusCode, Code: code, Msg: msg}
	}
	return nil
}

type tokenResponse struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Token  string `json:"tenant_access_token"`
	Expire int    `json:"expire"`
}

// TenantToken exchanges the app credentials for a bearer token and keeps it
// for later calls.
func (c *Client) TenantToken(ctx context.Context) (string, error) {
	var resp tokenResponse
	body := map[string]string{"app_id": c.cfg.AppID, "app_secret": c.cfg.AppSecret}
	if err := c.do(ctx, http.MethodPost, "/open-apis/auth/v3/tenant_access_token/internal", body, false, &resp); err != nil {
		return "", fmt.Errorf("tenant token: %w", err)
	}
	c.token = resp.Token
	c.log.Debug("tenant token acquired, expires in %ds", resp.Expire)
	return c.token, nil
}

func (c *Client) ensureToken(ctx context.Context) error {
	if c.token != "" {
		return nil
	}
	_, err := c.TenantToken(ctx)
	return err
}

// Field is a remote field description.
type Field struct {
	ID   string    `json:"field_id"`
	Name string    `json:"field_name"`
	Code int       `json:"type"`
	Type FieldType `json:"-"`
}

func (c *Client) tablePath(suffix string) string {
	return fmt.Sprintf("/open-apis/bitable/v1/apps/%s/tables/%s/%s",
		url.PathEscape(c.cfg.AppToken), url.PathEscape(c.cfg.TableID), suffix)
}

// Fields lists the remote fields keyed by name, following pagination.
func (c *Client) Fields(ctx context.Context) (map[string]Field, error) {
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}
	out := make(map[string]Field)
	pageToken := ""
	for {
		path := c.tablePath("fields") + "?page_size=100"
		if pageToken != "" {
			path += "&page_token=" + url.QueryEscape(pageToken)
		}
		var env envelope
		if err := c.do(ctx, http.MethodGet, path, nil, true, &env); err != nil {
			return nil, fmt.Errorf("list fields: %w", err)
		}
		var page struct {
			Items     []Field `json:"items"`
			HasMore   bool    `json:"has_more"`
			PageToken string  `json:"page_token"`
		}
		if err := json.Unmarshal(env.Data, &page); err != nil {
			return nil, fmt.Errorf("list fields: %w", err)
		}
		for _, f := range page.Items {
			f.Type = TypeFromCode(f.Code)
			out[f.Name] = f
		}
		if !page.HasMore || page.PageToken == "" {
			return out, nil
		}
		pageToken = page.PageToken
	}
}

// FieldTypesFromRemote derives declared types from the remote table.
func (c *Client) FieldTypesFromRemote(ctx context.Context) (map[string]FieldType, error) {
	fields, err := c.Fields(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]FieldType, len(fields))
	for name, f := range fields {
		out[name] = f.Type
	}
	return out, nil
}

// WriteResult counts the outcome of WriteRecords.
type WriteResult struct {
	Written int
	Failed  int
}

// WriteRecords creates one record per row. Undeclared columns are sent as
// text. A failed record is logged and counted; only token acquisition and
// context cancellation stop the run.
func (c *Client) WriteRecords(ctx context.Context, rows []dataset.Row, types map[string]FieldType) (WriteResult, error) {
	var res WriteResult
	if err := c.ensureToken(ctx); err != nil {
		return res, err
	}
	unknown := make(map[string]bool)
	for i, r := range rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		fields := make(map[string]any, len(r))
		for name, v := range r {
			t, ok := types[name]
			if !ok {
				t = Text
				if !unknown[name] {
					unknown[name] = true
					c.log.Warn("column %s has no declared field type, sending as text", name)
				}
			}
			fields[name] = ConvertValue(v, t)
		}
		body := map[string]any{"fields": fields}
		if err := c.do(ctx, http.MethodPost, c.tablePath("records"), body, true, nil); err != nil {
			res.Failed++
			c.log.Warn("record %d not written: %v", i+1, err)
			continue
		}
		res.Written++
	}
	c.log.Info("mirrored %d records, %d failed", res.Written, res.Failed)
	return res, nil
}
